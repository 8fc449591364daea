package graph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"livegraph/events"
	"livegraph/models"
	"livegraph/monitor"
	"livegraph/parser"
	"livegraph/recorder"
	"livegraph/render"
	"livegraph/store"
	"livegraph/stream"
	"livegraph/utils"
)

const (
	DEFAULT_FRAMERATE = 30
	STATS_INTERVAL    = time.Second

	CSV_PREFIX = "live_graph"
	LOG_PREFIX = "serial_log"
	CSV_EXT    = ".csv"
	LOG_EXT    = ".txt"
)

type Options struct {
	Channels     []*models.Channel
	Capacity     int
	Mode         models.GraphMode
	Scale        models.Scale
	Framerate    float64
	MonitorLines int
	Tags         []monitor.Tag
	RecordDir    string
	// Compress zstd compresses recordings started with StartRecording / StartLogRecording.
	Compress   bool
	FlushEvery int
}

// LineWriter is where outgoing monitor lines go, normally the connection manager.
type LineWriter interface {
	Write(p []byte) error
}

// Engine owns everything the read loop produces. The read loop is the only producer, the UIs read Snapshots and
// call the setters. One mutex serialises both sides and is only held for the synchronous work of a single chunk.
type Engine struct {
	mu       sync.Mutex
	channels *store.Channels
	parser   *parser.Parser
	buffer   *stream.Buffer
	rate     *stream.RateTracker
	csv      *recorder.Recorder
	rawLog   *recorder.Recorder
	monitor  *monitor.Monitor

	mode      models.GraphMode
	scale     models.Scale
	paused    bool
	state     models.ConnectionState
	version   uint64
	published uint64

	recordDir string
	compress  bool

	hub     *events.EventHub
	limiter *rate.Limiter
	logger  *log.Logger
	now     func() time.Time
}

func NewEngine(opts Options, hub *events.EventHub, logger *log.Logger) (*Engine, error) {
	if logger == nil {
		logger = log.Default()
	}
	if hub == nil {
		hub = events.NewHub()
	}
	if len(opts.Channels) == 0 {
		return nil, fmt.Errorf("engine needs at least one channel")
	}
	if opts.Capacity == 0 {
		opts.Capacity = stream.DEFAULT_CAPACITY
	}
	buffer, err := stream.NewBuffer(opts.Capacity)
	if err != nil {
		return nil, err
	}
	if opts.Scale == (models.Scale{}) {
		opts.Scale = models.AutoScale()
	}
	if err := validateScale(opts.Scale); err != nil {
		return nil, err
	}
	if opts.Framerate == 0 {
		opts.Framerate = DEFAULT_FRAMERATE
	}
	limit := rate.Limit(opts.Framerate)
	if opts.Framerate < 0 {
		limit = rate.Inf
	}
	if len(opts.Tags) == 0 {
		opts.Tags = []monitor.Tag{monitor.DefaultTag}
	}

	now := time.Now
	return &Engine{
		channels:  store.NewChannels(opts.Channels),
		parser:    parser.NewParser(len(opts.Channels)),
		buffer:    buffer,
		rate:      stream.NewRateTracker(now()),
		csv:       recorder.NewRecorder(opts.FlushEvery, logger.With("recorder", "csv")),
		rawLog:    recorder.NewRecorder(opts.FlushEvery, logger.With("recorder", "log")),
		monitor:   monitor.NewMonitor(opts.MonitorLines, monitor.NewTags(opts.Tags...)),
		mode:      opts.Mode,
		scale:     opts.Scale,
		state:     models.Disconnected,
		recordDir: opts.RecordDir,
		compress:  opts.Compress,
		hub:       hub,
		limiter:   rate.NewLimiter(limit, 1),
		logger:    logger,
		now:       now,
	}, nil
}

func (e *Engine) Hub() *events.EventHub {
	return e.hub
}

// Feed takes one raw chunk from the read loop. The text always reaches the monitor; samples are only kept while
// not paused.
func (e *Engine) Feed(chunk []byte) {
	e.mu.Lock()
	lines := e.monitor.Feed(chunk)
	for _, line := range lines {
		e.appendRaw(line)
	}
	samples := e.parser.Feed(chunk)
	if e.paused {
		samples = nil
	}
	for _, sample := range samples {
		e.buffer.Push(sample)
		if err := e.csv.Append(recorder.FormatRow(sample)); err != nil {
			e.failRecording(e.csv, err)
		}
	}
	if len(samples) > 0 {
		e.rate.Add(len(samples))
		e.version++
	}
	e.mu.Unlock()

	if len(lines) > 0 {
		e.hub.Publish(events.Monitor, lines)
	}
	if len(samples) > 0 && e.limiter.Allow() {
		e.redraw()
	}
}

// OnStateChange is meant to be registered with the connection manager.
func (e *Engine) OnStateChange(state models.ConnectionState) {
	e.mu.Lock()
	e.state = state
	switch state {
	case models.Connected:
		e.rate.Reset(e.now())
	case models.Disconnected:
		// a half line from a dead connection must not be glued to the next one
		e.parser.Reset()
	}
	e.mu.Unlock()
	e.hub.Publish(events.StateChanged, state)
}

// Run ticks the rate tracker once a second until ctx is done. Redraws the limiter swallowed are caught up here.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(STATS_INTERVAL)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick()
		}
	}
}

func (e *Engine) tick() {
	e.mu.Lock()
	perSecond := e.rate.Tick(e.now())
	stale := e.version != e.published
	e.mu.Unlock()

	e.hub.Publish(events.Stats, perSecond)
	if stale {
		e.redraw()
	}
}

func (e *Engine) redraw() {
	e.mu.Lock()
	e.published = e.version
	version := e.version
	e.mu.Unlock()
	e.hub.Publish(events.Redraw, version)
}

// changed bumps the version and publishes a redraw. Caller must not hold the lock.
func (e *Engine) changed() {
	e.mu.Lock()
	e.version++
	e.mu.Unlock()
	e.redraw()
}

func (e *Engine) Clear() {
	e.mu.Lock()
	e.buffer.Clear()
	e.parser.Reset()
	e.rate.Reset(e.now())
	e.mu.Unlock()
	e.logger.Info("graph cleared")
	e.changed()
}

func (e *Engine) SetPaused(paused bool) {
	e.mu.Lock()
	e.paused = paused
	e.mu.Unlock()
	e.logger.Info("ingestion", "paused", paused)
	e.changed()
}

func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

func (e *Engine) SetGraphMode(mode models.GraphMode) {
	e.mu.Lock()
	e.mode = mode
	e.mu.Unlock()
	e.changed()
}

func (e *Engine) SetScale(scale models.Scale) error {
	if err := validateScale(scale); err != nil {
		return err
	}
	e.mu.Lock()
	e.scale = scale
	e.mu.Unlock()
	e.changed()
	return nil
}

func validateScale(scale models.Scale) error {
	if scale.Auto {
		return nil
	}
	_, err := models.FixedScale(scale.Min, scale.Max)
	return err
}

func (e *Engine) SetCapacity(capacity int) error {
	e.mu.Lock()
	err := e.buffer.SetCapacity(capacity)
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.logger.Info("capacity changed", "capacity", capacity)
	e.changed()
	return nil
}

func (e *Engine) SetChannelName(index int, name string) error {
	return e.editChannel(func(c *store.Channels) error { return c.SetName(index, name) })
}

func (e *Engine) SetChannelColour(index int, colour string) error {
	return e.editChannel(func(c *store.Channels) error { return c.SetColour(index, colour) })
}

func (e *Engine) SetChannelVisible(index int, visible bool) error {
	return e.editChannel(func(c *store.Channels) error { return c.SetVisible(index, visible) })
}

func (e *Engine) editChannel(edit func(*store.Channels) error) error {
	e.mu.Lock()
	err := edit(e.channels)
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.changed()
	return nil
}

// StartRecording streams every sample to a new CSV file in the record dir, starting with the samples already in
// the buffer. It returns the file's path.
func (e *Engine) StartRecording() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	samples := e.buffer.Samples()
	backlog := make([]string, len(samples))
	for i, sample := range samples {
		backlog[i] = recorder.FormatRow(sample)
	}
	path := e.recordingPath(CSV_PREFIX, CSV_EXT)
	if err := e.csv.Start(path, recorder.Header(e.channels.Names()), backlog); err != nil {
		return "", err
	}
	return path, nil
}

func (e *Engine) StopRecording() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.csv.Stop()
}

// StartLogRecording streams raw monitor lines to a new text file, starting with the current monitor history.
func (e *Engine) StartLogRecording() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	path := e.recordingPath(LOG_PREFIX, LOG_EXT)
	if err := e.rawLog.Start(path, "", e.monitor.Lines()); err != nil {
		return "", err
	}
	return path, nil
}

func (e *Engine) StopLogRecording() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rawLog.Stop()
}

// Close stops any active recordings so their buffered rows reach the disk.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, csvErr := e.csv.Stop()
	_, logErr := e.rawLog.Stop()
	return errors.Join(csvErr, logErr)
}

func (e *Engine) recordingPath(prefix, ext string) string {
	if e.compress {
		ext += recorder.ZSTD_EXT
	}
	return utils.NextAvailableFilename(e.recordDir, utils.TimestampedName(prefix, e.now()), ext)
}

func (e *Engine) appendRaw(line string) {
	if err := e.rawLog.Append(line); err != nil {
		e.failRecording(e.rawLog, err)
	}
}

// failRecording stops a recorder whose writes fail rather than retrying on every sample.
func (e *Engine) failRecording(r *recorder.Recorder, err error) {
	path, stopErr := r.Stop()
	e.logger.Error("recording failed, stopped", "path", path, "err", err, "stopErr", stopErr)
}

// ExportCSV writes the whole buffer as CSV.
func (e *Engine) ExportCSV(w io.Writer) error {
	e.mu.Lock()
	names := e.channels.Names()
	samples := e.buffer.Samples()
	e.mu.Unlock()
	return recorder.ExportCSV(w, names, samples)
}

// ExportLog writes the monitor history as plain text.
func (e *Engine) ExportLog(w io.Writer) error {
	e.mu.Lock()
	lines := e.monitor.Lines()
	e.mu.Unlock()
	return recorder.ExportLog(w, lines)
}

// ExportFilename is the download name for an export made now, e.g. live_graph_2025-01-02T15-04-05.csv.
func (e *Engine) ExportFilename(prefix, ext string) string {
	return utils.TimestampedName(prefix, e.now()) + ext
}

// Send writes text to out and, once that succeeded, echoes it to the monitor as a SENT line.
func (e *Engine) Send(out LineWriter, text string) error {
	if err := out.Write([]byte(text + "\n")); err != nil {
		return err
	}
	e.mu.Lock()
	line := e.monitor.Send(text)
	e.appendRaw(line)
	e.mu.Unlock()
	e.hub.Publish(events.Monitor, []string{line})
	return nil
}

func (e *Engine) ClearMonitor() {
	e.mu.Lock()
	e.monitor.Clear()
	e.mu.Unlock()
	e.hub.Publish(events.Monitor, []string(nil))
}

func (e *Engine) AddTag(tag monitor.Tag) error {
	e.mu.Lock()
	err := e.monitor.Tags().Add(tag)
	e.mu.Unlock()
	if err == nil {
		e.hub.Publish(events.Monitor, []string(nil))
	}
	return err
}

func (e *Engine) RemoveTag(index int) error {
	e.mu.Lock()
	err := e.monitor.Tags().Remove(index)
	e.mu.Unlock()
	if err == nil {
		e.hub.Publish(events.Monitor, []string(nil))
	}
	return err
}

// MonitorLine is a monitor line already split into highlighted segments.
type MonitorLine []monitor.Segment

// MonitorTail returns the last n monitor lines, highlighted.
func (e *Engine) MonitorTail(n int) ([]MonitorLine, []monitor.Tag) {
	e.mu.Lock()
	defer e.mu.Unlock()
	tags := e.monitor.Tags()
	lines := e.monitor.Tail(n)
	out := make([]MonitorLine, len(lines))
	for i, line := range lines {
		out[i] = tags.Highlight(line)
	}
	return out, tags.List()
}

// Snapshot is a copy of everything the UIs show, safe to use without the engine lock.
type Snapshot struct {
	Samples      []models.Sample
	Channels     []models.Channel
	Latest       models.Sample
	Mode         models.GraphMode
	Scale        models.Scale
	Capacity     int
	Rate         float64
	Paused       bool
	State        models.ConnectionState
	Recording    string
	LogRecording string
	RecordedRows int
	Version      uint64
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snapshot := Snapshot{
		Samples:      e.buffer.Samples(),
		Channels:     e.channels.Snapshot(),
		Mode:         e.mode,
		Scale:        e.scale,
		Capacity:     e.buffer.Capacity(),
		Rate:         e.rate.Rate(),
		Paused:       e.paused,
		State:        e.state,
		RecordedRows: e.csv.Rows(),
		Version:      e.version,
	}
	if latest, ok := e.buffer.Latest(); ok {
		snapshot.Latest = append(models.Sample(nil), latest...)
	}
	if e.csv.Active() {
		snapshot.Recording = e.csv.Path()
	}
	if e.rawLog.Active() {
		snapshot.LogRecording = e.rawLog.Path()
	}
	return snapshot
}

// Frame turns the snapshot into a render frame of the given size.
func (s Snapshot) Frame(width, height int) render.Frame {
	return render.Frame{
		Width:    width,
		Height:   height,
		Samples:  s.Samples,
		Channels: s.Channels,
		Mode:     s.Mode,
		Scale:    s.Scale,
	}
}

func (e *Engine) Render(width, height int) []render.Command {
	return render.Render(e.Snapshot().Frame(width, height))
}
