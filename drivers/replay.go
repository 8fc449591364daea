package drivers

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/zstd"

	"livegraph/recorder"
)

type ReplayOptions struct {
	Path string
	// Speed is lines per second, 0 replays as fast as possible.
	Speed float64
	// Loop restarts from the top of the file at EOF.
	Loop bool
	// SkipLines skips X amount of lines from the start of each pass.
	SkipLines int
}

// Replayer is a Transport that plays a recorded text or csv log back as if it came off the wire. Recordings
// ending in .zst are decompressed on the fly.
type Replayer struct {
	options ReplayOptions
	logger  *log.Logger
}

func NewReplayer(options ReplayOptions, logger *log.Logger) *Replayer {
	if logger == nil {
		logger = log.Default()
	}
	return &Replayer{options, logger}
}

func (r *Replayer) Name() string {
	return "replay:" + r.options.Path
}

func (r *Replayer) Open(_ context.Context, _ PortConfig) (Port, error) {
	file, err := os.Open(r.options.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("replay %s: %w", r.options.Path, ErrTransportUnavailable)
		}
		return nil, &OpenError{Device: r.options.Path, Reason: err}
	}
	r.logger.Info("replaying", "path", r.options.Path, "speed", r.options.Speed, "loop", r.options.Loop)

	port := &replayPort{
		options: r.options,
		logger:  r.logger,
		file:    file,
		closed:  make(chan struct{}),
	}
	var source io.Reader = file
	if strings.HasSuffix(r.options.Path, recorder.ZSTD_EXT) {
		port.zr, err = zstd.NewReader(file)
		if err != nil {
			_ = file.Close()
			return nil, &OpenError{Device: r.options.Path, Reason: err}
		}
		source = port.zr
	}
	port.reader = bufio.NewReaderSize(source, 1<<20)

	if err := port.skip(); err != nil {
		_ = port.Close()
		return nil, &OpenError{Device: r.options.Path, Reason: err}
	}
	return port, nil
}

type replayPort struct {
	options ReplayOptions
	logger  *log.Logger

	mu      sync.Mutex
	file    *os.File
	zr      *zstd.Decoder
	reader  *bufio.Reader
	pending []byte
	last    time.Time

	closeOnce sync.Once
	closed    chan struct{}
}

func (p *replayPort) Read(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.pending) == 0 {
		line, err := p.nextLine()
		if err != nil {
			return 0, err
		}
		if err := p.wait(); err != nil {
			return 0, err
		}
		p.pending = line
	}

	n := copy(buf, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

func (p *replayPort) nextLine() ([]byte, error) {
	rewound := false
	for {
		select {
		case <-p.closed:
			return nil, io.EOF
		default:
		}

		line, err := p.reader.ReadBytes('\n')
		if len(line) > 0 {
			if line[len(line)-1] != '\n' {
				line = append(line, '\n')
			}
			return line, nil
		}
		if err != io.EOF {
			return nil, err
		}
		if !p.options.Loop || rewound {
			p.logger.Info("end of replay", "path", p.options.Path)
			return nil, io.EOF
		}
		if err := p.rewind(); err != nil {
			return nil, err
		}
		rewound = true
	}
}

func (p *replayPort) rewind() error {
	if _, err := p.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if p.zr == nil {
		p.reader.Reset(p.file)
		return p.skip()
	}
	if err := p.zr.Reset(p.file); err != nil {
		return err
	}
	p.reader.Reset(p.zr)
	return p.skip()
}

func (p *replayPort) skip() error {
	for i := 0; i < p.options.SkipLines; i++ {
		if _, err := p.reader.ReadBytes('\n'); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
	return nil
}

// wait paces lines at options.Speed, returning early with io.EOF if the port is closed.
func (p *replayPort) wait() error {
	if p.options.Speed <= 0 {
		return nil
	}
	interval := time.Duration(float64(time.Second) / p.options.Speed)
	if !p.last.IsZero() {
		if delay := time.Until(p.last.Add(interval)); delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-p.closed:
				timer.Stop()
				return io.EOF
			case <-timer.C:
			}
		}
	}
	p.last = time.Now()
	return nil
}

// Replays are read only, writes are dropped.
func (p *replayPort) Write(b []byte) (int, error) {
	return len(b), nil
}

func (p *replayPort) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.closed)
		if p.zr != nil {
			p.zr.Close()
		}
		err = p.file.Close()
	})
	return err
}
