package monitor

import (
	"fmt"
	"strings"
)

type Tag struct {
	Pattern string
	Colour  string
}

// Segment is a run of a line, Colour is empty for text no tag matched.
type Segment struct {
	Text   string
	Colour string
}

// Tags is an insertion ordered set of highlight patterns.
type Tags struct {
	tags []Tag
}

func NewTags(tags ...Tag) *Tags {
	t := &Tags{}
	for _, tag := range tags {
		_ = t.Add(tag)
	}
	return t
}

func (t *Tags) Add(tag Tag) error {
	if tag.Pattern == "" {
		return fmt.Errorf("tag pattern is empty")
	}
	t.tags = append(t.tags, tag)
	return nil
}

func (t *Tags) Remove(index int) error {
	if index < 0 || index >= len(t.tags) {
		return fmt.Errorf("tag %d out of range [0, %d)", index, len(t.tags))
	}
	t.tags = append(t.tags[:index], t.tags[index+1:]...)
	return nil
}

func (t *Tags) List() []Tag {
	return append([]Tag(nil), t.tags...)
}

// Highlight splits line into segments. At every position the earliest starting match wins, ties go to the tag
// added first, and matches never overlap.
func (t *Tags) Highlight(line string) []Segment {
	var segments []Segment
	plainStart := 0
	pos := 0

	for pos < len(line) {
		best, bestAt := -1, len(line)
		for i, tag := range t.tags {
			at := strings.Index(line[pos:], tag.Pattern)
			if at < 0 {
				continue
			}
			if pos+at < bestAt {
				best, bestAt = i, pos+at
			}
		}
		if best < 0 {
			break
		}

		if bestAt > plainStart {
			segments = append(segments, Segment{Text: line[plainStart:bestAt]})
		}
		end := bestAt + len(t.tags[best].Pattern)
		segments = append(segments, Segment{Text: line[bestAt:end], Colour: t.tags[best].Colour})
		pos, plainStart = end, end
	}

	if plainStart < len(line) || len(segments) == 0 {
		segments = append(segments, Segment{Text: line[plainStart:]})
	}
	return segments
}
