package connection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"

	"livegraph/drivers"
	"livegraph/models"
)

const (
	CHUNK_QUEUE_SIZE = 16
	READ_BUFFER_SIZE = 4096
)

var (
	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyConnected = errors.New("already connected")
	ErrBusy             = errors.New("connection is changing state")
	ErrAborted          = errors.New("connect aborted by disconnect")
)

// ChunkSink consumes raw chunks in arrival order. Feed is only ever called from the read loop.
type ChunkSink interface {
	Feed(chunk []byte)
}

// Manager owns the transport lifecycle. While connected a pump goroutine reads the port into a bounded channel
// and the read loop hands every chunk to the sink until the stream ends or Disconnect is called.
type Manager struct {
	transport     drivers.Transport
	sink          ChunkSink
	logger        *log.Logger
	onStateChange func(models.ConnectionState)

	mu     sync.Mutex
	state  models.ConnectionState
	port   drivers.Port
	cancel context.CancelFunc
	done   chan struct{}
}

func NewManager(transport drivers.Transport, sink ChunkSink, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{
		transport: transport,
		sink:      sink,
		logger:    logger,
		state:     models.Disconnected,
	}
}

// OnStateChange registers a callback run after every transition, outside the manager's lock.
func (m *Manager) OnStateChange(f func(models.ConnectionState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStateChange = f
}

func (m *Manager) State() models.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Transport() drivers.Transport {
	return m.transport
}

// Connect opens the transport and starts the read loop. On any error the state is left Disconnected; nothing
// is retried.
func (m *Manager) Connect(ctx context.Context, config drivers.PortConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	switch m.state {
	case models.Connected:
		m.mu.Unlock()
		return ErrAlreadyConnected
	case models.Connecting, models.Closing:
		m.mu.Unlock()
		return ErrBusy
	}
	m.state = models.Connecting
	m.mu.Unlock()
	m.notify(models.Connecting)

	port, err := m.transport.Open(ctx, config)
	if err != nil {
		m.setState(models.Disconnected)
		m.logger.Error("connect failed", "transport", m.transport.Name(), "err", err)
		return fmt.Errorf("connect %s: %w", m.transport.Name(), err)
	}

	m.mu.Lock()
	if m.state != models.Connecting {
		// Disconnect was requested while the port was opening
		m.state = models.Disconnected
		m.mu.Unlock()
		_ = port.Close()
		m.notify(models.Disconnected)
		return ErrAborted
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.port = port
	m.cancel = cancel
	m.done = done
	m.state = models.Connected
	m.mu.Unlock()
	m.notify(models.Connected)

	go m.readLoop(loopCtx, port, done)
	return nil
}

// Disconnect cancels the read loop, releases the port and waits for the loop to exit. The state always ends up
// Disconnected, close errors are only logged. No chunk reaches the sink once Disconnect has returned.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	switch m.state {
	case models.Disconnected, models.Closing:
		m.mu.Unlock()
		return
	case models.Connecting:
		m.state = models.Closing
		m.mu.Unlock()
		m.notify(models.Closing)
		return
	}
	port, cancel, done := m.port, m.cancel, m.done
	m.port, m.cancel = nil, nil
	m.state = models.Closing
	m.mu.Unlock()
	m.notify(models.Closing)

	cancel()
	if err := port.Close(); err != nil {
		m.logger.Warn("close port", "err", err)
	}
	<-done

	m.setState(models.Disconnected)
	m.logger.Info("disconnected", "transport", m.transport.Name())
}

// Write sends bytes to the open port.
func (m *Manager) Write(p []byte) error {
	m.mu.Lock()
	port, state := m.port, m.state
	m.mu.Unlock()
	if state != models.Connected || port == nil {
		return ErrNotConnected
	}
	if _, err := port.Write(p); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

func (m *Manager) readLoop(ctx context.Context, port drivers.Port, done chan struct{}) {
	defer close(done)

	chunks := make(chan []byte, CHUNK_QUEUE_SIZE)
	readErr := make(chan error, 1)
	go pump(ctx, port, chunks, readErr)

	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-chunks:
			if !ok {
				m.streamEnded(port, <-readErr)
				return
			}
			if ctx.Err() != nil {
				return
			}
			if err := m.deliver(chunk); err != nil {
				m.streamEnded(port, err)
				return
			}
		}
	}
}

func pump(ctx context.Context, port drivers.Port, chunks chan<- []byte, readErr chan<- error) {
	defer close(chunks)
	buf := make([]byte, READ_BUFFER_SIZE)
	for {
		n, err := port.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			select {
			case chunks <- chunk:
			case <-ctx.Done():
				readErr <- ctx.Err()
				return
			}
		}
		if err != nil {
			readErr <- err
			return
		}
	}
}

func (m *Manager) deliver(chunk []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panicked: %v", r)
		}
	}()
	m.sink.Feed(chunk)
	return nil
}

// streamEnded tears the connection down after EOF or a read error, unless Disconnect already took the port.
func (m *Manager) streamEnded(port drivers.Port, cause error) {
	m.mu.Lock()
	if m.port != port {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.port, m.cancel = nil, nil
	m.state = models.Disconnected
	m.mu.Unlock()

	cancel()
	if errors.Is(cause, io.EOF) {
		m.logger.Info("stream ended", "transport", m.transport.Name())
	} else {
		m.logger.Warn("stream ended", "transport", m.transport.Name(), "err", cause)
	}
	if err := port.Close(); err != nil {
		m.logger.Debug("close port after stream end", "err", err)
	}
	m.notify(models.Disconnected)
}

func (m *Manager) setState(state models.ConnectionState) {
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
	m.notify(state)
}

func (m *Manager) notify(state models.ConnectionState) {
	m.mu.Lock()
	f := m.onStateChange
	m.mu.Unlock()
	if f != nil {
		f(state)
	}
}
