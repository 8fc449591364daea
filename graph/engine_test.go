package graph

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livegraph/events"
	"livegraph/models"
	"livegraph/monitor"
	"livegraph/recorder"
	"livegraph/stream"
)

var fixedNow = time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine(Options{
		Channels:  models.DefaultChannels(2),
		Capacity:  stream.MIN_CAPACITY,
		Scale:     models.AutoScale(),
		Framerate: -1,
		RecordDir: t.TempDir(),
	}, events.NewHub(), nil)
	require.NoError(t, err)
	engine.now = func() time.Time { return fixedNow }
	return engine
}

func drain(ch <-chan *events.Event) []*events.Event {
	var out []*events.Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func kinds(evs []*events.Event) []events.Kind {
	out := make([]events.Kind, len(evs))
	for i, ev := range evs {
		out[i] = ev.Kind
	}
	return out
}

func TestFeedParsesAcrossChunks(t *testing.T) {
	engine := newTestEngine(t)

	engine.Feed([]byte("1,2\n3,"))
	engine.Feed([]byte("4\nhello\n"))

	snapshot := engine.Snapshot()
	assert.Equal(t, []models.Sample{{1, 2}, {3, 4}}, snapshot.Samples)
	assert.Equal(t, models.Sample{3, 4}, snapshot.Latest)

	lines, _ := engine.MonitorTail(10)
	require.Len(t, lines, 3)
	assert.Equal(t, "hello", lines[2][0].Text)
}

func TestFeedPublishesEvents(t *testing.T) {
	engine := newTestEngine(t)
	_, ch, cancel := engine.Hub().Subscribe()
	defer cancel()

	engine.Feed([]byte("1\n"))
	assert.Equal(t, []events.Kind{events.Monitor, events.Redraw}, kinds(drain(ch)))

	engine.Feed([]byte("not a number\n"))
	assert.Equal(t, []events.Kind{events.Monitor}, kinds(drain(ch)))
}

func TestPauseKeepsMonitorRunning(t *testing.T) {
	engine := newTestEngine(t)
	engine.SetPaused(true)

	engine.Feed([]byte("1,2\n"))
	assert.Empty(t, engine.Snapshot().Samples)
	lines, _ := engine.MonitorTail(10)
	assert.Len(t, lines, 1)

	engine.SetPaused(false)
	engine.Feed([]byte("3,4\n"))
	assert.Equal(t, []models.Sample{{3, 4}}, engine.Snapshot().Samples)
}

func TestClear(t *testing.T) {
	engine := newTestEngine(t)
	engine.Feed([]byte("1,2\n5"))
	engine.Clear()
	engine.Feed([]byte("\n"))

	assert.Empty(t, engine.Snapshot().Samples)
}

func TestSettersValidate(t *testing.T) {
	engine := newTestEngine(t)

	assert.ErrorIs(t, engine.SetScale(models.Scale{Min: 5, Max: 5}), models.ErrInvalidScale)
	assert.ErrorIs(t, engine.SetCapacity(stream.MAX_CAPACITY+1), stream.ErrCapacityRange)
	assert.Error(t, engine.SetChannelColour(0, "red"))
	assert.Error(t, engine.SetChannelName(7, "nope"))

	fixed, err := models.FixedScale(0, 5)
	require.NoError(t, err)
	require.NoError(t, engine.SetScale(fixed))
	require.NoError(t, engine.SetCapacity(500))
	require.NoError(t, engine.SetChannelName(1, "Temp"))
	require.NoError(t, engine.SetChannelVisible(0, false))
	engine.SetGraphMode(models.BarGraph)

	snapshot := engine.Snapshot()
	assert.Equal(t, fixed, snapshot.Scale)
	assert.Equal(t, 500, snapshot.Capacity)
	assert.Equal(t, "Temp", snapshot.Channels[1].Name())
	assert.False(t, snapshot.Channels[0].Visible())
	assert.Equal(t, models.BarGraph, snapshot.Mode)
}

func TestRecordingStreamsBacklogAndNewSamples(t *testing.T) {
	engine := newTestEngine(t)
	engine.Feed([]byte("1,2\n3,4\n"))

	path, err := engine.StartRecording()
	require.NoError(t, err)
	assert.Equal(t, "live_graph_2025-01-02T15-04-05.csv", filepath.Base(path))
	assert.Equal(t, path, engine.Snapshot().Recording)

	engine.Feed([]byte("5,6\n"))
	stopped, err := engine.StopRecording()
	require.NoError(t, err)
	assert.Equal(t, path, stopped)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Channel 1,Channel 2\n1,2\n3,4\n5,6\n", string(data))

	// a second recording in the same second gets a fresh name
	again, err := engine.StartRecording()
	require.NoError(t, err)
	assert.NotEqual(t, path, again)
	_, err = engine.StopRecording()
	require.NoError(t, err)
}

func TestCloseFlushesRecordings(t *testing.T) {
	engine := newTestEngine(t)
	engine.Feed([]byte("1,2\n"))
	path, err := engine.StartRecording()
	require.NoError(t, err)
	_, err = engine.StartLogRecording()
	require.NoError(t, err)

	require.NoError(t, engine.Close())
	snapshot := engine.Snapshot()
	assert.Empty(t, snapshot.Recording)
	assert.Empty(t, snapshot.LogRecording)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Channel 1,Channel 2\n1,2\n", string(data))
}

func TestLogRecording(t *testing.T) {
	engine := newTestEngine(t)
	engine.Feed([]byte("boot\n"))

	path, err := engine.StartLogRecording()
	require.NoError(t, err)
	engine.Feed([]byte("1,2\n"))
	_, err = engine.StopLogRecording()
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "boot\n1,2\n", string(data))
}

func TestExports(t *testing.T) {
	engine := newTestEngine(t)
	var out bytes.Buffer

	assert.ErrorIs(t, engine.ExportCSV(&out), recorder.ErrNothingToExport)
	assert.ErrorIs(t, engine.ExportLog(&out), recorder.ErrNothingToExport)

	engine.Feed([]byte("1.5,2\n"))
	require.NoError(t, engine.ExportCSV(&out))
	assert.Equal(t, "Channel 1,Channel 2\n1.5,2", out.String())

	out.Reset()
	require.NoError(t, engine.ExportLog(&out))
	assert.Equal(t, "1.5,2", out.String())

	assert.Equal(t, "serial_log_2025-01-02T15-04-05.txt", engine.ExportFilename(LOG_PREFIX, LOG_EXT))
}

type lineWriter struct {
	written bytes.Buffer
	err     error
}

func (w *lineWriter) Write(p []byte) error {
	if w.err != nil {
		return w.err
	}
	w.written.Write(p)
	return nil
}

func TestSendEchoesOnlyOnSuccess(t *testing.T) {
	engine := newTestEngine(t)

	failing := &lineWriter{err: errors.New("not connected")}
	assert.Error(t, engine.Send(failing, "hi"))
	lines, _ := engine.MonitorTail(10)
	assert.Empty(t, lines)

	out := &lineWriter{}
	require.NoError(t, engine.Send(out, "hi"))
	assert.Equal(t, "hi\n", out.written.String())

	lines, _ = engine.MonitorTail(10)
	require.Len(t, lines, 1)
	assert.Equal(t, monitor.Segment{Text: "SENT:", Colour: monitor.DefaultTag.Colour}, lines[0][0])
	assert.Equal(t, monitor.Segment{Text: " hi"}, lines[0][1])
}

func TestTags(t *testing.T) {
	engine := newTestEngine(t)
	require.NoError(t, engine.AddTag(monitor.Tag{Pattern: "ERR", Colour: "#ff0000"}))
	assert.Error(t, engine.AddTag(monitor.Tag{}))

	engine.Feed([]byte("ERR 1\n"))
	lines, tags := engine.MonitorTail(1)
	assert.Len(t, tags, 2)
	assert.Equal(t, "#ff0000", lines[0][0].Colour)

	require.NoError(t, engine.RemoveTag(1))
	assert.Error(t, engine.RemoveTag(5))
	lines, _ = engine.MonitorTail(1)
	assert.Equal(t, "", lines[0][0].Colour)

	engine.ClearMonitor()
	lines, _ = engine.MonitorTail(1)
	assert.Empty(t, lines)
}

func TestStateChangePublishes(t *testing.T) {
	engine := newTestEngine(t)
	_, ch, cancel := engine.Hub().Subscribe()
	defer cancel()

	engine.Feed([]byte("1,"))
	engine.OnStateChange(models.Disconnected)
	engine.OnStateChange(models.Connected)
	engine.Feed([]byte("2\n"))

	evs := drain(ch)
	require.GreaterOrEqual(t, len(evs), 2)
	assert.Equal(t, events.StateChanged, evs[0].Kind)
	assert.Equal(t, models.Disconnected, evs[0].Value)
	assert.Equal(t, models.Connected, engine.Snapshot().State)
	// the dangling "1," was dropped on disconnect
	assert.Equal(t, []models.Sample{{2, 0}}, engine.Snapshot().Samples)
}

func TestTickPublishesRate(t *testing.T) {
	engine := newTestEngine(t)
	start := fixedNow
	engine.rate.Reset(start)
	engine.Feed([]byte("1\n2\n3\n4\n"))

	engine.now = func() time.Time { return start.Add(2 * time.Second) }
	_, ch, cancel := engine.Hub().Subscribe()
	defer cancel()
	drain(ch)

	engine.tick()
	evs := drain(ch)
	require.NotEmpty(t, evs)
	assert.Equal(t, events.Stats, evs[0].Kind)
	assert.InDelta(t, 2.0, evs[0].Value.(float64), 1e-9)
	assert.InDelta(t, 2.0, engine.Snapshot().Rate, 1e-9)
}

func TestRenderPlaceholderWhenEmpty(t *testing.T) {
	engine := newTestEngine(t)
	commands := engine.Render(400, 200)
	require.Len(t, commands, 2)
}

func TestNewEngineRejectsBadOptions(t *testing.T) {
	_, err := NewEngine(Options{}, nil, nil)
	assert.Error(t, err)

	_, err = NewEngine(Options{Channels: models.DefaultChannels(1), Capacity: 5}, nil, nil)
	assert.ErrorIs(t, err, stream.ErrCapacityRange)

	_, err = NewEngine(Options{Channels: models.DefaultChannels(1), Scale: models.Scale{Min: 1, Max: 0}}, nil, nil)
	assert.ErrorIs(t, err, models.ErrInvalidScale)
}
