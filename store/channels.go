package store

import (
	"fmt"
	"regexp"

	"livegraph/models"
)

var colourPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Channels holds the per channel display configuration of a session. The channel count is fixed at creation.
type Channels struct {
	channels []*models.Channel
}

func NewChannels(channels []*models.Channel) *Channels {
	return &Channels{channels}
}

func (c *Channels) Len() int {
	return len(c.channels)
}

func (c *Channels) Get(index int) (*models.Channel, error) {
	if index < 0 || index >= len(c.channels) {
		return nil, fmt.Errorf("channel %d out of range [0, %d)", index, len(c.channels))
	}
	return c.channels[index], nil
}

func (c *Channels) SetName(index int, name string) error {
	channel, err := c.Get(index)
	if err != nil {
		return err
	}
	channel.SetName(name)
	return nil
}

func (c *Channels) SetColour(index int, colour string) error {
	channel, err := c.Get(index)
	if err != nil {
		return err
	}
	if !colourPattern.MatchString(colour) {
		return fmt.Errorf("colour %q is not #rrggbb", colour)
	}
	channel.SetColour(colour)
	return nil
}

func (c *Channels) SetVisible(index int, visible bool) error {
	channel, err := c.Get(index)
	if err != nil {
		return err
	}
	channel.SetVisible(visible)
	return nil
}

// Names is the csv header row.
func (c *Channels) Names() []string {
	names := make([]string, len(c.channels))
	for i, channel := range c.channels {
		names[i] = channel.Name()
	}
	return names
}

func (c *Channels) VisibleMask() []bool {
	mask := make([]bool, len(c.channels))
	for i, channel := range c.channels {
		mask[i] = channel.Visible()
	}
	return mask
}

// Snapshot copies the channels so they can be read without holding the owner's lock.
func (c *Channels) Snapshot() []models.Channel {
	out := make([]models.Channel, len(c.channels))
	for i, channel := range c.channels {
		out[i] = *channel
	}
	return out
}
