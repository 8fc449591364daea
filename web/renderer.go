package web

import (
	"html/template"
	"net/http"

	ds "github.com/starfederation/datastar-go/datastar"

	"livegraph/events"
)

type Renderer interface {
	Templates() *template.Template
	Handlers() map[string]func(w http.ResponseWriter, r *http.Request)
	Data(clientID string) map[string]interface{}
	// GeneratePatchOnEvent returns nil when the event changes nothing this client sees.
	GeneratePatchOnEvent(event *events.Event, clientID string) func(*ds.ServerSentEventGenerator) error
	OnTick(sse *ds.ServerSentEventGenerator, clientID string) error
}
