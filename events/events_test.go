package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeReceivesBroadcast(t *testing.T) {
	hub := NewHub()
	_, ch, cancel := hub.Subscribe()
	defer cancel()

	hub.Publish(Redraw, 3)

	ev := <-ch
	assert.Equal(t, Redraw, ev.Kind)
	assert.Equal(t, 3, ev.Value)
	assert.False(t, ev.Timestamp.IsZero())
}

func TestLateSubscriberGetsLastEvent(t *testing.T) {
	hub := NewHub()
	hub.Publish(StateChanged, "connected")

	_, ch, cancel := hub.Subscribe()
	defer cancel()

	require.Len(t, ch, 1)
	ev := <-ch
	assert.Equal(t, StateChanged, ev.Kind)
}

func TestBroadcastNeverBlocks(t *testing.T) {
	hub := NewHub()
	_, ch, cancel := hub.Subscribe()
	defer cancel()

	for i := 0; i < SUBSCRIBER_BUFFER*4; i++ {
		hub.Publish(Monitor, i)
	}
	assert.Len(t, ch, SUBSCRIBER_BUFFER)
}

func TestCancelClosesChannel(t *testing.T) {
	hub := NewHub()
	_, ch, cancel := hub.Subscribe()
	assert.Equal(t, 1, hub.Subscribers())

	cancel()
	cancel()
	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, hub.Subscribers())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "redraw", Redraw.String())
	assert.Equal(t, "unknown", Kind(42).String())
}
