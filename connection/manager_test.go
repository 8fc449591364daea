package connection

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livegraph/drivers"
	"livegraph/models"
)

var errPortClosed = errors.New("port closed")

type fakePort struct {
	data   chan []byte
	closed chan struct{}
	once   sync.Once

	mu      sync.Mutex
	written bytes.Buffer
}

func newFakePort() *fakePort {
	return &fakePort{data: make(chan []byte), closed: make(chan struct{})}
}

func (p *fakePort) Read(buf []byte) (int, error) {
	select {
	case chunk, ok := <-p.data:
		if !ok {
			return 0, io.EOF
		}
		return copy(buf, chunk), nil
	case <-p.closed:
		return 0, errPortClosed
	}
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.Write(b)
}

func (p *fakePort) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

// send delivers a chunk unless the port was closed first.
func (p *fakePort) send(chunk string) bool {
	select {
	case p.data <- []byte(chunk):
		return true
	case <-p.closed:
		return false
	case <-time.After(time.Second):
		return false
	}
}

type fakeTransport struct {
	port *fakePort
	err  error
}

func (t *fakeTransport) Name() string { return "fake" }

func (t *fakeTransport) Open(context.Context, drivers.PortConfig) (drivers.Port, error) {
	if t.err != nil {
		return nil, t.err
	}
	return t.port, nil
}

type recordingSink struct {
	mu     sync.Mutex
	chunks []string
	panics bool
}

func (s *recordingSink) Feed(chunk []byte) {
	if s.panics {
		panic("boom")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, string(chunk))
}

func (s *recordingSink) received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.chunks...)
}

type stateLog struct {
	mu     sync.Mutex
	states []models.ConnectionState
}

func (l *stateLog) record(s models.ConnectionState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, s)
}

func (l *stateLog) all() []models.ConnectionState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.ConnectionState(nil), l.states...)
}

var config = drivers.PortConfig{BaudRate: drivers.DEFAULT_BAUD_RATE}

func TestConnectFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"unavailable", drivers.ErrTransportUnavailable, drivers.ErrTransportUnavailable},
		{"open failed", &drivers.OpenError{Device: "x", Reason: errors.New("permission denied")}, drivers.ErrOpenFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			states := &stateLog{}
			m := NewManager(&fakeTransport{err: tt.err}, &recordingSink{}, nil)
			m.OnStateChange(states.record)

			err := m.Connect(context.Background(), config)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, models.Disconnected, m.State())
			assert.Equal(t, []models.ConnectionState{models.Connecting, models.Disconnected}, states.all())
		})
	}

	t.Run("invalid baud", func(t *testing.T) {
		m := NewManager(&fakeTransport{port: newFakePort()}, &recordingSink{}, nil)
		err := m.Connect(context.Background(), drivers.PortConfig{BaudRate: 100})
		assert.ErrorIs(t, err, drivers.ErrInvalidBaud)
		assert.Equal(t, models.Disconnected, m.State())
	})
}

func TestReadLoopFeedsSink(t *testing.T) {
	port := newFakePort()
	sink := &recordingSink{}
	states := &stateLog{}
	m := NewManager(&fakeTransport{port: port}, sink, nil)
	m.OnStateChange(states.record)

	require.NoError(t, m.Connect(context.Background(), config))
	assert.Equal(t, models.Connected, m.State())
	assert.ErrorIs(t, m.Connect(context.Background(), config), ErrAlreadyConnected)

	require.True(t, port.send("1,2\n"))
	require.True(t, port.send("3,4\n"))
	require.Eventually(t, func() bool { return len(sink.received()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"1,2\n", "3,4\n"}, sink.received())

	m.Disconnect()
	assert.Equal(t, models.Disconnected, m.State())
	assert.Equal(t, []models.ConnectionState{
		models.Connecting, models.Connected, models.Closing, models.Disconnected,
	}, states.all())
}

func TestEndOfStreamDisconnects(t *testing.T) {
	port := newFakePort()
	m := NewManager(&fakeTransport{port: port}, &recordingSink{}, nil)
	require.NoError(t, m.Connect(context.Background(), config))

	close(port.data)
	require.Eventually(t, func() bool { return m.State() == models.Disconnected }, time.Second, 5*time.Millisecond)

	// a later disconnect is harmless
	m.Disconnect()
	assert.Equal(t, models.Disconnected, m.State())
}

func TestDisconnectDuringPendingRead(t *testing.T) {
	port := newFakePort()
	sink := &recordingSink{}
	m := NewManager(&fakeTransport{port: port}, sink, nil)
	require.NoError(t, m.Connect(context.Background(), config))

	require.True(t, port.send("before\n"))
	require.Eventually(t, func() bool { return len(sink.received()) == 1 }, time.Second, 5*time.Millisecond)

	// the pump is now blocked in Read
	m.Disconnect()
	assert.Equal(t, models.Disconnected, m.State())

	assert.False(t, port.send("after\n"), "port must be closed")
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []string{"before\n"}, sink.received())

	assert.ErrorIs(t, m.Write([]byte("x")), ErrNotConnected)
}

func TestReconnectAfterDisconnect(t *testing.T) {
	transport := &fakeTransport{port: newFakePort()}
	sink := &recordingSink{}
	m := NewManager(transport, sink, nil)

	require.NoError(t, m.Connect(context.Background(), config))
	m.Disconnect()

	transport.port = newFakePort()
	require.NoError(t, m.Connect(context.Background(), config))
	require.True(t, transport.port.send("again\n"))
	require.Eventually(t, func() bool { return len(sink.received()) == 1 }, time.Second, 5*time.Millisecond)
	m.Disconnect()
}

func TestSinkPanicEndsStream(t *testing.T) {
	port := newFakePort()
	m := NewManager(&fakeTransport{port: port}, &recordingSink{panics: true}, nil)
	require.NoError(t, m.Connect(context.Background(), config))

	require.True(t, port.send("1\n"))
	require.Eventually(t, func() bool { return m.State() == models.Disconnected }, time.Second, 5*time.Millisecond)
}

func TestWrite(t *testing.T) {
	port := newFakePort()
	m := NewManager(&fakeTransport{port: port}, &recordingSink{}, nil)
	assert.ErrorIs(t, m.Write([]byte("hi\n")), ErrNotConnected)

	require.NoError(t, m.Connect(context.Background(), config))
	require.NoError(t, m.Write([]byte("hi\n")))
	m.Disconnect()

	port.mu.Lock()
	defer port.mu.Unlock()
	assert.Equal(t, "hi\n", port.written.String())
}
