package drivers

import (
	"context"
	"errors"
	"fmt"
	"io"
)

const (
	MIN_BAUD_RATE     = 300
	MAX_BAUD_RATE     = 250000
	DEFAULT_BAUD_RATE = 9600
)

var (
	// ErrTransportUnavailable means the host has no such capability, e.g. no serial port or CAN interface exists.
	ErrTransportUnavailable = errors.New("transport unavailable")
	// ErrOpenFailed means the device exists but negotiation or permissions failed.
	ErrOpenFailed  = errors.New("open failed")
	ErrInvalidBaud = errors.New("baud rate outside range")
)

// OpenError carries the reason an Open call failed. It matches ErrOpenFailed with errors.Is.
type OpenError struct {
	Device string
	Reason error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open %s: %v", e.Device, e.Reason)
}

func (e *OpenError) Unwrap() []error {
	return []error{ErrOpenFailed, e.Reason}
}

type PortConfig struct {
	BaudRate int
}

func (c PortConfig) Validate() error {
	if c.BaudRate < MIN_BAUD_RATE || c.BaudRate > MAX_BAUD_RATE {
		return fmt.Errorf("baud %d not in [%d, %d]: %w", c.BaudRate, MIN_BAUD_RATE, MAX_BAUD_RATE, ErrInvalidBaud)
	}
	return nil
}

// Port is an open device link. Read blocks until bytes arrive, returning io.EOF at end of stream. Close must
// unblock a pending Read.
type Port interface {
	io.ReadWriteCloser
}

// Transport opens device links.
type Transport interface {
	Name() string
	Open(ctx context.Context, config PortConfig) (Port, error)
}
