package parser

import "strings"

// Splitter turns arbitrary chunks of text into complete newline terminated lines. Whatever follows the last
// newline of a chunk is carried over and prepended to the next chunk so records split across reads survive.
type Splitter struct {
	carry strings.Builder
}

// Feed returns the complete lines contained in carry+chunk, without their terminators.
func (s *Splitter) Feed(chunk []byte) []string {
	if len(chunk) == 0 {
		return nil
	}
	s.carry.Write(chunk)
	text := s.carry.String()

	last := strings.LastIndexByte(text, '\n')
	if last < 0 {
		return nil
	}

	lines := strings.Split(text[:last], "\n")
	rest := text[last+1:]
	s.carry.Reset()
	s.carry.WriteString(rest)

	return lines
}

// Pending is the partial line waiting for its newline.
func (s *Splitter) Pending() string {
	return s.carry.String()
}

func (s *Splitter) Reset() {
	s.carry.Reset()
}
