package render

type Point struct {
	X float64
	Y float64
}

// Command is a single drawing instruction against a width x height surface with the origin top left.
type Command interface {
	command()
}

// Fill paints the whole surface.
type Fill struct {
	Colour string
}

type Line struct {
	From   Point
	To     Point
	Colour string
	Width  float64
}

// Path strokes a polyline through Points.
type Path struct {
	Points []Point
	Colour string
	Width  float64
}

type Circle struct {
	Centre Point
	Radius float64
	Colour string
}

type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
	Colour string
}

type Align uint8

const (
	AlignLeft Align = iota
	AlignCentre
	AlignRight
)

type Text struct {
	At     Point
	Text   string
	Colour string
	Size   float64
	Align  Align
}

func (Fill) command()   {}
func (Line) command()   {}
func (Path) command()   {}
func (Circle) command() {}
func (Rect) command()   {}
func (Text) command()   {}
