package models

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidScale = errors.New("scale minimum must be below maximum")

type GraphMode uint8

const (
	LineGraph GraphMode = iota
	DotGraph
	BarGraph
)

var graphModeNames = map[GraphMode]string{
	LineGraph: "line",
	DotGraph:  "dot",
	BarGraph:  "bar",
}

func (m GraphMode) String() string {
	if name, ok := graphModeNames[m]; ok {
		return name
	}
	return "unknown"
}

func ParseGraphMode(s string) (GraphMode, error) {
	for mode, name := range graphModeNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return mode, nil
		}
	}
	return LineGraph, fmt.Errorf("unknown graph mode %q", s)
}

// Scale is the vertical range mode of a chart. When Auto is set the range is recomputed from the visible data on
// every redraw and Min/Max are only used as a fallback when there is nothing visible to measure.
type Scale struct {
	Auto bool
	Min  float64
	Max  float64
}

const (
	DEFAULT_Y_MIN = -10
	DEFAULT_Y_MAX = 10
)

func AutoScale() Scale {
	return Scale{Auto: true, Min: DEFAULT_Y_MIN, Max: DEFAULT_Y_MAX}
}

func FixedScale(min, max float64) (Scale, error) {
	if !(min < max) {
		return Scale{}, fmt.Errorf("fixed scale [%v, %v]: %w", min, max, ErrInvalidScale)
	}
	return Scale{Auto: false, Min: min, Max: max}, nil
}
