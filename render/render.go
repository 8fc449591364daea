package render

import (
	"fmt"

	"livegraph/models"
	"livegraph/stream"
)

const (
	BACKGROUND_COLOUR  = "#282c34"
	GRID_COLOUR        = "#31322c"
	LABEL_COLOUR       = "#d0d0d0"
	PLACEHOLDER_COLOUR = "#666666"

	GRID_DIVISIONS  = 10
	LABEL_DIVISIONS = 5
	SERIES_WIDTH    = 2
	DOT_RADIUS      = 2
	BAR_GUTTER      = 1
	LABEL_SIZE      = 12
	PLACEHOLDER     = "No data - Connect serial port to see live graph"
)

// Frame is everything a single redraw depends on.
type Frame struct {
	Width    int
	Height   int
	Samples  []models.Sample
	Channels []models.Channel
	Mode     models.GraphMode
	Scale    models.Scale
}

// Render turns a frame into drawing commands. It has no side effects.
func Render(frame Frame) []Command {
	w, h := float64(frame.Width), float64(frame.Height)
	commands := []Command{Fill{Colour: BACKGROUND_COLOUR}}

	if len(frame.Samples) == 0 {
		return append(commands, Text{
			At:     Point{w / 2, h / 2},
			Text:   PLACEHOLDER,
			Colour: PLACEHOLDER_COLOUR,
			Size:   16,
			Align:  AlignCentre,
		})
	}

	yMin, yMax := ResolveRange(frame.Samples, visibleMask(frame.Channels), frame.Scale)

	commands = append(commands, grid(w, h)...)
	commands = append(commands, labels(w, h, yMin, yMax)...)

	for _, channel := range frame.Channels {
		if !channel.Visible() {
			continue
		}
		commands = append(commands, series(frame, channel, yMin, yMax)...)
	}

	return commands
}

// ResolveRange picks the vertical range. Autoscale pads the visible extent by 10% each side, or by 1 when the
// data is flat; with nothing visible it falls back to the fixed bounds.
func ResolveRange(samples []models.Sample, visible []bool, scale models.Scale) (float64, float64) {
	if !scale.Auto {
		return scale.Min, scale.Max
	}
	min, max, ok := stream.Extent(samples, visible)
	if !ok {
		return scale.Min, scale.Max
	}
	span := max - min
	if span == 0 {
		return min - 1, max + 1
	}
	return min - span*0.1, max + span*0.1
}

func grid(w, h float64) []Command {
	commands := make([]Command, 0, 2*(GRID_DIVISIONS+1))
	for i := 0; i <= GRID_DIVISIONS; i++ {
		y := float64(i) / GRID_DIVISIONS * h
		commands = append(commands, Line{Point{0, y}, Point{w, y}, GRID_COLOUR, 1})
	}
	for i := 0; i <= GRID_DIVISIONS; i++ {
		x := float64(i) / GRID_DIVISIONS * w
		commands = append(commands, Line{Point{x, 0}, Point{x, h}, GRID_COLOUR, 1})
	}
	return commands
}

func labels(w, h, yMin, yMax float64) []Command {
	commands := make([]Command, 0, LABEL_DIVISIONS+1)
	for i := 0; i <= LABEL_DIVISIONS; i++ {
		fraction := float64(i) / LABEL_DIVISIONS
		commands = append(commands, Text{
			At:     Point{w - 5, fraction*h + 4},
			Text:   fmt.Sprintf("%.2f", yMax-fraction*(yMax-yMin)),
			Colour: LABEL_COLOUR,
			Size:   LABEL_SIZE,
			Align:  AlignRight,
		})
	}
	return commands
}

func series(frame Frame, channel models.Channel, yMin, yMax float64) []Command {
	w, h := float64(frame.Width), float64(frame.Height)
	count := len(frame.Samples)
	span := yMax - yMin
	if span == 0 {
		span = 1
	}
	toY := func(v float64) float64 {
		return h - (v-yMin)/span*h
	}

	switch frame.Mode {
	case models.BarGraph:
		slot := w / float64(count)
		commands := make([]Command, 0, count)
		for i, sample := range frame.Samples {
			y := toY(sample.Value(channel.Index()))
			commands = append(commands, Rect{
				X:      float64(i) * slot,
				Y:      y,
				Width:  slot - BAR_GUTTER,
				Height: h - y,
				Colour: channel.Colour(),
			})
		}
		return commands

	case models.DotGraph:
		commands := make([]Command, 0, count)
		for i, sample := range frame.Samples {
			commands = append(commands, Circle{
				Centre: Point{xAt(i, count, w), toY(sample.Value(channel.Index()))},
				Radius: DOT_RADIUS,
				Colour: channel.Colour(),
			})
		}
		return commands

	default:
		points := make([]Point, count)
		for i, sample := range frame.Samples {
			points[i] = Point{xAt(i, count, w), toY(sample.Value(channel.Index()))}
		}
		return []Command{Path{Points: points, Colour: channel.Colour(), Width: SERIES_WIDTH}}
	}
}

func xAt(i, count int, w float64) float64 {
	last := count - 1
	if last < 1 {
		last = 1
	}
	return float64(i) / float64(last) * w
}

func visibleMask(channels []models.Channel) []bool {
	mask := make([]bool, len(channels))
	for _, channel := range channels {
		if channel.Index() >= 0 && channel.Index() < len(mask) {
			mask[channel.Index()] = channel.Visible()
		}
	}
	return mask
}
