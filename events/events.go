package events

import (
	"sync"
	"time"
)

type Kind int

const (
	// StateChanged carries the new models.ConnectionState.
	StateChanged Kind = iota
	// Redraw means the sample buffer or something affecting the graph changed.
	Redraw
	// Monitor carries the raw text lines that just arrived.
	Monitor
	// Stats carries the latest samples/s figure.
	Stats
)

func (k Kind) String() string {
	switch k {
	case StateChanged:
		return "state"
	case Redraw:
		return "redraw"
	case Monitor:
		return "monitor"
	case Stats:
		return "stats"
	}
	return "unknown"
}

const SUBSCRIBER_BUFFER = 16

type Event struct {
	Kind      Kind
	Timestamp time.Time
	Value     any
}

// EventHub fans events out to every subscriber. Sends never block: a subscriber that falls behind misses events,
// which is fine since every event just means "re-read the engine".
type EventHub struct {
	mu   sync.Mutex
	subs map[int]chan *Event
	next int
	last *Event
}

func NewHub() *EventHub {
	return &EventHub{subs: map[int]chan *Event{}}
}

// Subscribe registers a subscriber. The most recent event, if any, is delivered straight away so a new page
// renders without waiting for the stream.
func (h *EventHub) Subscribe() (int, <-chan *Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	ch := make(chan *Event, SUBSCRIBER_BUFFER)
	if h.last != nil {
		ch <- h.copy(h.last)
	}
	h.subs[id] = ch
	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subs[id]; ok {
			close(c)
			delete(h.subs, id)
		}
	}
	return id, ch, cancel
}

func (h *EventHub) Broadcast(event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	h.mu.Lock()
	h.last = event
	for _, ch := range h.subs {
		select {
		case ch <- h.copy(event):
		default:
		}
	}
	h.mu.Unlock()
}

// Publish is shorthand for broadcasting a fresh event of kind.
func (h *EventHub) Publish(kind Kind, value any) {
	h.Broadcast(&Event{Kind: kind, Value: value})
}

func (h *EventHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *EventHub) copy(e *Event) *Event {
	return &Event{e.Kind, e.Timestamp, e.Value}
}
