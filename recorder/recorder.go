package recorder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/zstd"
)

const (
	DEFAULT_FLUSH_EVERY = 100
	ZSTD_EXT            = ".zst"
)

var ErrAlreadyRecording = errors.New("recorder already active")

// Recorder appends rows to a file while active. Rows go through a large buffered writer that is flushed every
// flushEvery rows so a slow disk doesn't stall the read loop on every sample.
type Recorder struct {
	flushEvery int
	logger     *log.Logger

	path    string
	file    *os.File
	zw      *zstd.Encoder
	writer  *bufio.Writer
	pending int
	rows    int
}

func NewRecorder(flushEvery int, logger *log.Logger) *Recorder {
	if flushEvery <= 0 {
		flushEvery = DEFAULT_FLUSH_EVERY
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Recorder{flushEvery: flushEvery, logger: logger}
}

func (r *Recorder) Active() bool {
	return r.writer != nil
}

func (r *Recorder) Path() string {
	return r.path
}

// Rows is how many rows, backlog included, were written since Start.
func (r *Recorder) Rows() int {
	return r.rows
}

// Start creates path and writes the header (skipped when empty) followed by the backlog rows. Paths ending in
// .zst are zstd compressed.
func (r *Recorder) Start(path, header string, backlog []string) error {
	if r.Active() {
		return fmt.Errorf("start %s: %w", path, ErrAlreadyRecording)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create recording dir: %w", err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open recording: %w", err)
	}

	var sink io.Writer = file
	if strings.HasSuffix(path, ZSTD_EXT) {
		r.zw, err = zstd.NewWriter(file)
		if err != nil {
			_ = file.Close()
			return fmt.Errorf("zstd writer: %w", err)
		}
		sink = r.zw
	}

	r.path = path
	r.file = file
	r.writer = bufio.NewWriterSize(sink, 1<<20)
	r.pending = 0
	r.rows = 0

	if header != "" {
		if _, err := r.writer.WriteString(header + "\n"); err != nil {
			return r.abort(err)
		}
	}
	for _, row := range backlog {
		if err := r.Append(row); err != nil {
			return r.abort(err)
		}
	}

	r.logger.Info("recording started", "path", path, "backlog", len(backlog))
	return nil
}

// Append writes one row. It is a no-op while the recorder is stopped.
func (r *Recorder) Append(row string) error {
	if !r.Active() {
		return nil
	}
	if _, err := r.writer.WriteString(row + "\n"); err != nil {
		return err
	}
	r.rows++
	r.pending++
	if r.pending >= r.flushEvery {
		r.pending = 0
		return r.writer.Flush()
	}
	return nil
}

// Stop flushes and closes the file, returning its path.
func (r *Recorder) Stop() (string, error) {
	if !r.Active() {
		return "", nil
	}
	path := r.path
	err := r.writer.Flush()
	if r.zw != nil {
		err = errors.Join(err, r.zw.Close())
	}
	err = errors.Join(err, r.file.Close())

	r.logger.Info("recording stopped", "path", path, "rows", r.rows)
	r.reset()
	return path, err
}

func (r *Recorder) abort(cause error) error {
	if r.zw != nil {
		_ = r.zw.Close()
	}
	_ = r.file.Close()
	r.reset()
	return fmt.Errorf("write recording: %w", cause)
}

func (r *Recorder) reset() {
	r.file = nil
	r.zw = nil
	r.writer = nil
	r.pending = 0
}
