package web

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	ds "github.com/starfederation/datastar-go/datastar"

	"livegraph/config"
	"livegraph/connection"
	"livegraph/drivers"
	"livegraph/events"
	"livegraph/graph"
	"livegraph/models"
	"livegraph/monitor"
	"livegraph/recorder"
	"livegraph/render"
)

//go:embed templates/*.gohtml
var templateFS embed.FS

const (
	GRAPH_WIDTH  = 900
	GRAPH_HEIGHT = 420
	GRAPH_ID     = "graph"
	MONITOR_TAIL = 300
	RAW_TAIL     = 12

	CONNECT_TIMEOUT = 10 * time.Second

	GRAPH_TAB   = "graph"
	MONITOR_TAB = "monitor"
)

// Dashboard is the browser front end: a live graph tab and a serial monitor tab sharing one engine and one
// connection. The active tab is remembered per client.
type Dashboard struct {
	engine  *graph.Engine
	conn    *connection.Manager
	session config.Session
	logger  *log.Logger

	templates *template.Template

	mu   sync.Mutex
	baud int
	tabs map[string]string // clientID -> tab
}

type signals struct {
	Baud          int     `json:"baud"`
	Capacity      int     `json:"capacity"`
	AutoScale     bool    `json:"autoScale"`
	YMin          float64 `json:"yMin"`
	YMax          float64 `json:"yMax"`
	Channel       int     `json:"channel"`
	ChannelName   string  `json:"channelName"`
	ChannelColour string  `json:"channelColour"`
	TagPattern    string  `json:"tagPattern"`
	TagColour     string  `json:"tagColour"`
	Send          string  `json:"send"`
}

type legendEntry struct {
	Name   string
	Colour string
	Value  string
}

func NewDashboard(engine *graph.Engine, conn *connection.Manager, session config.Session, baud int, logger *log.Logger) (*Dashboard, error) {
	if logger == nil {
		logger = log.Default()
	}
	templates, err := template.New("").Funcs(template.FuncMap{
		"ToLower": strings.ToLower,
	}).ParseFS(templateFS, "templates/*.gohtml")
	if err != nil {
		return nil, err
	}
	return &Dashboard{
		engine:    engine,
		conn:      conn,
		session:   session,
		logger:    logger,
		templates: templates,
		baud:      baud,
		tabs:      map[string]string{},
	}, nil
}

func (d *Dashboard) Templates() *template.Template {
	return d.templates
}

func (d *Dashboard) Handlers() map[string]func(w http.ResponseWriter, r *http.Request) {
	return map[string]func(w http.ResponseWriter, r *http.Request){
		"POST /tab":             d.TabHandler,
		"POST /connect":         d.ConnectHandler,
		"POST /disconnect":      d.DisconnectHandler,
		"POST /clear":           d.ClearHandler,
		"POST /pause":           d.PauseHandler,
		"POST /mode":            d.ModeHandler,
		"POST /scale":           d.ScaleHandler,
		"POST /capacity":        d.elevated(d.CapacityHandler),
		"POST /baud":            d.elevated(d.BaudHandler),
		"POST /channel/visible": d.ChannelVisibleHandler,
		"POST /channel/edit":    d.ChannelEditHandler,
		"POST /record":          d.RecordHandler,
		"POST /record-log":      d.RecordLogHandler,
		"POST /tags/add":        d.AddTagHandler,
		"POST /tags/remove":     d.RemoveTagHandler,
		"POST /monitor/clear":   d.ClearMonitorHandler,
		"POST /send":            d.elevated(d.SendHandler),
		"GET /export.csv":       d.ExportCSVHandler,
		"GET /export.log":       d.ExportLogHandler,
	}
}

// Data is the full page model used by the index template and every partial.
func (d *Dashboard) Data(clientID string) map[string]interface{} {
	snapshot := d.engine.Snapshot()
	lines, tags := d.engine.MonitorTail(MONITOR_TAIL)
	tab := d.tab(clientID)

	initial, _ := json.Marshal(signals{
		Baud:          d.currentBaud(),
		Capacity:      snapshot.Capacity,
		AutoScale:     snapshot.Scale.Auto,
		YMin:          snapshot.Scale.Min,
		YMax:          snapshot.Scale.Max,
		ChannelName:   snapshot.Channels[0].Name(),
		ChannelColour: snapshot.Channels[0].Colour(),
		TagColour:     monitor.DefaultTag.Colour,
	})

	return map[string]interface{}{
		"tab":       tab,
		"elevated":  d.session.Elevated,
		"signals":   string(initial),
		"snapshot":  snapshot,
		"status":    d.statusLine(snapshot, tab),
		"connected": snapshot.State == models.Connected,
		"busy":      snapshot.State == models.Connecting || snapshot.State == models.Closing,
		"baud":      d.currentBaud(),
		"modes":     []models.GraphMode{models.LineGraph, models.DotGraph, models.BarGraph},
		"graph":     template.HTML(render.SVG(render.Render(snapshot.Frame(GRAPH_WIDTH, GRAPH_HEIGHT)), GRAPH_WIDTH, GRAPH_HEIGHT, GRAPH_ID)),
		"legend":    legend(snapshot),
		"raw":       tail(lines, RAW_TAIL),
		"monitor":   lines,
		"tags":      tags,
	}
}

// GeneratePatchOnEvent maps an engine event to the fragments it invalidates for this client's tab.
func (d *Dashboard) GeneratePatchOnEvent(event *events.Event, clientID string) func(*ds.ServerSentEventGenerator) error {
	tab := d.tab(clientID)

	var fragments []string
	switch event.Kind {
	case events.StateChanged:
		fragments = []string{"status", "sidebar"}
	case events.Stats:
		fragments = []string{"status"}
	case events.Redraw:
		if tab != GRAPH_TAB {
			return nil
		}
		fragments = []string{"graph", "legend", "sidebar"}
	case events.Monitor:
		if tab == GRAPH_TAB {
			fragments = []string{"raw"}
		} else {
			fragments = []string{"monitor", "sidebar"}
		}
	default:
		return nil
	}

	return d.patch(clientID, fragments...)
}

// OnTick refreshes what changes without an event of its own, mainly the rate readout.
func (d *Dashboard) OnTick(sse *ds.ServerSentEventGenerator, clientID string) error {
	return d.patch(clientID, "status")(sse)
}

func (d *Dashboard) patch(clientID string, fragments ...string) func(*ds.ServerSentEventGenerator) error {
	data := d.Data(clientID)
	writer := strings.Builder{}
	for _, name := range fragments {
		if err := d.templates.ExecuteTemplate(&writer, name, data); err != nil {
			d.logger.Error("error executing template", "template", name, "err", err)
		}
	}

	return func(sse *ds.ServerSentEventGenerator) error {
		if writer.Len() == 0 {
			return nil
		}
		return sse.PatchElements(writer.String())
	}
}

// respond patches the affected fragments plus a notice carrying err, if any, back to the requesting client.
func (d *Dashboard) respond(w http.ResponseWriter, r *http.Request, err error, fragments ...string) {
	clientID := getClientID(w, r)
	if err != nil {
		d.logger.Warn("request failed", "path", r.URL.Path, "err", err)
	}

	var notice strings.Builder
	if execErr := d.templates.ExecuteTemplate(&notice, "notice", errorText(err)); execErr != nil {
		d.logger.Error("error executing template", "template", "notice", "err", execErr)
	}

	sse := ds.NewSSE(w, r)
	if err := d.patch(clientID, fragments...)(sse); err != nil {
		return
	}
	_ = sse.PatchElements(notice.String())
}

func errorText(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, drivers.ErrTransportUnavailable):
		return "No device found. Check the cable and the port setting."
	case errors.Is(err, drivers.ErrOpenFailed):
		return "Could not open the device: " + err.Error()
	}
	return err.Error()
}

func (d *Dashboard) elevated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !d.session.Elevated {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		next(w, r)
	}
}

func (d *Dashboard) readSignals(w http.ResponseWriter, r *http.Request) (signals, bool) {
	var sig signals
	if err := ds.ReadSignals(r, &sig); err != nil {
		d.logger.Warn("error reading signals", "err", err)
		w.WriteHeader(http.StatusBadRequest)
		return sig, false
	}
	return sig, true
}

func (d *Dashboard) tab(clientID string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if tab, ok := d.tabs[clientID]; ok {
		return tab
	}
	return GRAPH_TAB
}

func (d *Dashboard) currentBaud() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.baud
}

// TabHandler switches the requesting client between the graph and monitor tabs.
func (d *Dashboard) TabHandler(w http.ResponseWriter, r *http.Request) {
	tab := r.URL.Query().Get("t")
	if tab != GRAPH_TAB && tab != MONITOR_TAB {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	clientID := getClientID(w, r)
	d.mu.Lock()
	d.tabs[clientID] = tab
	d.mu.Unlock()
	d.respond(w, r, nil, "tabs", "sidebar", "content", "status")
}

func (d *Dashboard) ConnectHandler(w http.ResponseWriter, r *http.Request) {
	portConfig := drivers.PortConfig{BaudRate: d.currentBaud()}
	// the read loop outlives this request, only the open itself is bound to it
	ctx, cancel := context.WithTimeout(r.Context(), CONNECT_TIMEOUT)
	defer cancel()
	err := d.conn.Connect(ctx, portConfig)
	d.respond(w, r, err, "sidebar", "status")
}

func (d *Dashboard) DisconnectHandler(w http.ResponseWriter, r *http.Request) {
	d.conn.Disconnect()
	d.respond(w, r, nil, "sidebar", "status")
}

func (d *Dashboard) ClearHandler(w http.ResponseWriter, r *http.Request) {
	d.engine.Clear()
	d.respond(w, r, nil, "graph", "legend")
}

func (d *Dashboard) PauseHandler(w http.ResponseWriter, r *http.Request) {
	d.engine.SetPaused(!d.engine.Paused())
	d.respond(w, r, nil, "sidebar")
}

func (d *Dashboard) ModeHandler(w http.ResponseWriter, r *http.Request) {
	mode, err := models.ParseGraphMode(r.URL.Query().Get("m"))
	if err == nil {
		d.engine.SetGraphMode(mode)
	}
	d.respond(w, r, err, "sidebar", "graph")
}

func (d *Dashboard) ScaleHandler(w http.ResponseWriter, r *http.Request) {
	sig, ok := d.readSignals(w, r)
	if !ok {
		return
	}
	scale := models.Scale{Auto: sig.AutoScale, Min: sig.YMin, Max: sig.YMax}
	err := d.engine.SetScale(scale)
	d.respond(w, r, err, "sidebar", "graph")
}

func (d *Dashboard) CapacityHandler(w http.ResponseWriter, r *http.Request) {
	sig, ok := d.readSignals(w, r)
	if !ok {
		return
	}
	err := d.engine.SetCapacity(sig.Capacity)
	d.respond(w, r, err, "sidebar", "graph")
}

// BaudHandler sets the baud used by the next connect.
func (d *Dashboard) BaudHandler(w http.ResponseWriter, r *http.Request) {
	sig, ok := d.readSignals(w, r)
	if !ok {
		return
	}
	err := drivers.PortConfig{BaudRate: sig.Baud}.Validate()
	if err == nil {
		d.mu.Lock()
		d.baud = sig.Baud
		d.mu.Unlock()
	}
	d.respond(w, r, err, "sidebar", "status")
}

func (d *Dashboard) ChannelVisibleHandler(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.URL.Query().Get("i"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	visible := r.URL.Query().Get("on") == "true"
	err = d.engine.SetChannelVisible(index, visible)
	d.respond(w, r, err, "sidebar", "graph", "legend")
}

func (d *Dashboard) ChannelEditHandler(w http.ResponseWriter, r *http.Request) {
	sig, ok := d.readSignals(w, r)
	if !ok {
		return
	}
	var err error
	if name := strings.TrimSpace(sig.ChannelName); name != "" {
		err = d.engine.SetChannelName(sig.Channel, name)
	}
	if err == nil && sig.ChannelColour != "" {
		err = d.engine.SetChannelColour(sig.Channel, sig.ChannelColour)
	}
	d.respond(w, r, err, "sidebar", "graph", "legend")
}

func (d *Dashboard) RecordHandler(w http.ResponseWriter, r *http.Request) {
	var err error
	if d.engine.Snapshot().Recording != "" {
		_, err = d.engine.StopRecording()
	} else {
		_, err = d.engine.StartRecording()
	}
	d.respond(w, r, err, "sidebar")
}

func (d *Dashboard) RecordLogHandler(w http.ResponseWriter, r *http.Request) {
	var err error
	if d.engine.Snapshot().LogRecording != "" {
		_, err = d.engine.StopLogRecording()
	} else {
		_, err = d.engine.StartLogRecording()
	}
	d.respond(w, r, err, "sidebar")
}

func (d *Dashboard) AddTagHandler(w http.ResponseWriter, r *http.Request) {
	sig, ok := d.readSignals(w, r)
	if !ok {
		return
	}
	err := d.engine.AddTag(monitor.Tag{Pattern: sig.TagPattern, Colour: sig.TagColour})
	d.respond(w, r, err, "sidebar", "monitor")
}

func (d *Dashboard) RemoveTagHandler(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.URL.Query().Get("i"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	err = d.engine.RemoveTag(index)
	d.respond(w, r, err, "sidebar", "monitor")
}

func (d *Dashboard) ClearMonitorHandler(w http.ResponseWriter, r *http.Request) {
	d.engine.ClearMonitor()
	d.respond(w, r, nil, "monitor")
}

func (d *Dashboard) SendHandler(w http.ResponseWriter, r *http.Request) {
	sig, ok := d.readSignals(w, r)
	if !ok {
		return
	}
	text := strings.TrimSpace(sig.Send)
	if text == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	err := d.engine.Send(d.conn, text)
	d.respond(w, r, err, "monitor")
}

func (d *Dashboard) ExportCSVHandler(w http.ResponseWriter, r *http.Request) {
	d.export(w, d.engine.ExportFilename(graph.CSV_PREFIX, graph.CSV_EXT), "text/csv", d.engine.ExportCSV)
}

func (d *Dashboard) ExportLogHandler(w http.ResponseWriter, r *http.Request) {
	d.export(w, d.engine.ExportFilename(graph.LOG_PREFIX, graph.LOG_EXT), "text/plain", d.engine.ExportLog)
}

func (d *Dashboard) export(w http.ResponseWriter, filename, contentType string, write func(io.Writer) error) {
	var body bytes.Buffer
	if err := write(&body); err != nil {
		if errors.Is(err, recorder.ErrNothingToExport) {
			http.Error(w, "No data to export", http.StatusNotFound)
			return
		}
		d.logger.Error("export failed", "file", filename, "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType+"; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = body.WriteTo(w)
}

func (d *Dashboard) statusLine(snapshot graph.Snapshot, tab string) string {
	title := "Live Graph"
	if tab == MONITOR_TAB {
		title = "Serial Monitor"
	}
	state := "Disconnected"
	switch snapshot.State {
	case models.Connected:
		state = "Connected"
	case models.Connecting:
		state = "Connecting"
	case models.Closing:
		state = "Disconnecting"
	}
	parts := []string{state, fmt.Sprintf("%d baud", d.currentBaud())}
	if tab == GRAPH_TAB {
		parts = append(parts, fmt.Sprintf("%.1f Hz", snapshot.Rate))
	}
	if snapshot.Paused {
		parts = append(parts, "Paused")
	}
	return strings.Join(append(parts, title), " | ")
}

func legend(snapshot graph.Snapshot) []legendEntry {
	var entries []legendEntry
	for _, channel := range snapshot.Channels {
		if !channel.Visible() {
			continue
		}
		entries = append(entries, legendEntry{
			Name:   channel.Name(),
			Colour: channel.Colour(),
			Value:  strconv.FormatFloat(snapshot.Latest.Value(channel.Index()), 'f', 3, 64),
		})
	}
	return entries
}

func tail[T any](items []T, n int) []T {
	if len(items) <= n {
		return items
	}
	return items[len(items)-n:]
}
