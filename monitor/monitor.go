package monitor

import (
	"livegraph/parser"
)

const (
	DEFAULT_MAX_LINES = 1000
	SENT_PREFIX       = "SENT: "
)

var DefaultTag = Tag{Pattern: "SENT:", Colour: "#67d8ef"}

// Monitor keeps the raw text side of the stream: every chunk is treated as text, split into lines and kept in a
// bounded history. It never interprets numbers.
type Monitor struct {
	maxLines int
	splitter parser.Splitter
	lines    []string
	tags     *Tags
}

func NewMonitor(maxLines int, tags *Tags) *Monitor {
	if maxLines <= 0 {
		maxLines = DEFAULT_MAX_LINES
	}
	if tags == nil {
		tags = NewTags(DefaultTag)
	}
	return &Monitor{
		maxLines: maxLines,
		tags:     tags,
	}
}

// Feed appends the complete lines of chunk to the history and returns them.
func (m *Monitor) Feed(chunk []byte) []string {
	lines := m.splitter.Feed(chunk)
	for _, line := range lines {
		m.append(line)
	}
	return lines
}

// Send records an outgoing line. The caller is responsible for writing it to the port.
func (m *Monitor) Send(text string) string {
	line := SENT_PREFIX + text
	m.append(line)
	return line
}

func (m *Monitor) append(line string) {
	m.lines = append(m.lines, line)
	if len(m.lines) > m.maxLines {
		m.lines = m.lines[1:]
	}
}

func (m *Monitor) Lines() []string {
	return append([]string(nil), m.lines...)
}

// Tail returns at most the last n lines.
func (m *Monitor) Tail(n int) []string {
	if n >= len(m.lines) {
		return m.Lines()
	}
	return append([]string(nil), m.lines[len(m.lines)-n:]...)
}

// Pending is the partial line still waiting for a newline.
func (m *Monitor) Pending() string {
	return m.splitter.Pending()
}

func (m *Monitor) Clear() {
	m.lines = nil
	m.splitter.Reset()
}

func (m *Monitor) Tags() *Tags {
	return m.tags
}
