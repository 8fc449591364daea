package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livegraph/models"
)

func TestChannels(t *testing.T) {
	channels := NewChannels(models.DefaultChannels(4))

	assert.Equal(t, 4, channels.Len())
	assert.Equal(t, []string{"Channel 1", "Channel 2", "Channel 3", "Channel 4"}, channels.Names())
	assert.Equal(t, []bool{true, true, true, true}, channels.VisibleMask())

	require.NoError(t, channels.SetName(1, "Temp"))
	require.NoError(t, channels.SetVisible(2, false))
	require.NoError(t, channels.SetColour(0, "#ABCDEF"))

	assert.Equal(t, "Temp", channels.Names()[1])
	assert.Equal(t, []bool{true, true, false, true}, channels.VisibleMask())

	snapshot := channels.Snapshot()
	assert.Equal(t, "#ABCDEF", snapshot[0].Colour())

	// snapshots don't follow later edits
	require.NoError(t, channels.SetName(0, "Volts"))
	assert.Equal(t, "Channel 1", snapshot[0].Name())

	assert.Error(t, channels.SetColour(0, "red"))
	assert.Error(t, channels.SetName(4, "nope"))
	assert.Error(t, channels.SetVisible(-1, true))
}

func TestDefaultChannelsCyclePalette(t *testing.T) {
	channels := models.DefaultChannels(6)
	assert.Equal(t, models.DefaultChannelColours[0], channels[4].Colour())
	assert.Equal(t, "Channel 6", channels[5].Name())
	assert.Equal(t, 5, channels[5].Index())
}
