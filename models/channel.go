package models

import "fmt"

// DefaultChannelColours is the palette handed out to channels in index order, cycling when there are more
// channels than colours. Colours are 3 byte hex with the # prefix.
var DefaultChannelColours = []string{"#67d8ef", "#d02662", "#61afef", "#e05c7e"}

type Channel struct {
	// index is the channel's position in every Sample.
	index int
	// name is shown in the legend and used as the csv header.
	name string
	// colour of the series when drawn.
	colour string
	// visible determines whether the series is drawn and whether it takes part in autoscale.
	visible bool
}

func NewChannel(index int, name, colour string, visible bool) *Channel {
	return &Channel{
		index,
		name,
		colour,
		visible,
	}
}

// DefaultChannels builds n visible channels named "Channel 1".."Channel n".
func DefaultChannels(n int) []*Channel {
	channels := make([]*Channel, n)
	for i := range channels {
		channels[i] = NewChannel(
			i,
			fmt.Sprintf("Channel %d", i+1),
			DefaultChannelColours[i%len(DefaultChannelColours)],
			true,
		)
	}
	return channels
}

func (c *Channel) Index() int {
	return c.index
}

func (c *Channel) Name() string {
	return c.name
}

func (c *Channel) Colour() string {
	return c.colour
}

func (c *Channel) Visible() bool {
	return c.visible
}

func (c *Channel) SetName(name string) {
	c.name = name
}

func (c *Channel) SetColour(colour string) {
	c.colour = colour
}

func (c *Channel) SetVisible(visible bool) {
	c.visible = visible
}
