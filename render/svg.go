package render

import (
	"fmt"
	"html"
	"strconv"
	"strings"
)

// SVG encodes a command list as an inline svg element sized width x height.
func SVG(commands []Command, width, height int, id string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<svg id="%s" xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`,
		html.EscapeString(id), width, height, width, height)

	for _, command := range commands {
		switch c := command.(type) {
		case Fill:
			fmt.Fprintf(&b, `<rect x="0" y="0" width="%d" height="%d" fill="%s"/>`, width, height, attr(c.Colour))
		case Line:
			fmt.Fprintf(&b, `<line x1="%s" y1="%s" x2="%s" y2="%s" stroke="%s" stroke-width="%s"/>`,
				num(c.From.X), num(c.From.Y), num(c.To.X), num(c.To.Y), attr(c.Colour), num(c.Width))
		case Path:
			if len(c.Points) == 0 {
				continue
			}
			b.WriteString(`<path fill="none" d="`)
			for i, p := range c.Points {
				if i == 0 {
					b.WriteString("M")
				} else {
					b.WriteString(" L")
				}
				b.WriteString(num(p.X))
				b.WriteString(",")
				b.WriteString(num(p.Y))
			}
			fmt.Fprintf(&b, `" stroke="%s" stroke-width="%s" stroke-linejoin="round"/>`, attr(c.Colour), num(c.Width))
		case Circle:
			fmt.Fprintf(&b, `<circle cx="%s" cy="%s" r="%s" fill="%s"/>`,
				num(c.Centre.X), num(c.Centre.Y), num(c.Radius), attr(c.Colour))
		case Rect:
			fmt.Fprintf(&b, `<rect x="%s" y="%s" width="%s" height="%s" fill="%s"/>`,
				num(c.X), num(c.Y), num(max(c.Width, 0)), num(max(c.Height, 0)), attr(c.Colour))
		case Text:
			fmt.Fprintf(&b, `<text x="%s" y="%s" fill="%s" font-family="Arial" font-size="%s" text-anchor="%s">%s</text>`,
				num(c.At.X), num(c.At.Y), attr(c.Colour), num(c.Size), anchor(c.Align), html.EscapeString(c.Text))
		}
	}

	b.WriteString(`</svg>`)
	return b.String()
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

func attr(s string) string {
	return html.EscapeString(s)
}

func anchor(a Align) string {
	switch a {
	case AlignCentre:
		return "middle"
	case AlignRight:
		return "end"
	default:
		return "start"
	}
}
