package drivers

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/charmbracelet/log"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

const AUTO_PORT = "auto"

// Arduino & clones common VIDs
var preferredVIDs = map[string]bool{
	"2341": true, // Arduino
	"2A03": true, // Arduino (older)
	"1A86": true, // CH340
	"10C4": true, // CP210x
	"0403": true, // FTDI
}

type Serial struct {
	// port is a device path or "auto".
	port   string
	logger *log.Logger
}

func NewSerial(port string, logger *log.Logger) *Serial {
	if logger == nil {
		logger = log.Default()
	}
	return &Serial{port, logger}
}

func (s *Serial) Name() string {
	return "serial:" + s.port
}

func (s *Serial) Open(_ context.Context, config PortConfig) (Port, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	name := s.port
	if name == AUTO_PORT || name == "" {
		selected, err := autoSelectPort()
		if err != nil {
			return nil, err
		}
		name = selected
	}

	port, err := serial.Open(name, &serial.Mode{BaudRate: config.BaudRate})
	if err != nil {
		var portErr *serial.PortError
		notFound := errors.Is(err, fs.ErrNotExist) || (errors.As(err, &portErr) && portErr.Code() == serial.PortNotFound)
		if notFound {
			return nil, fmt.Errorf("serial %s: %w", name, ErrTransportUnavailable)
		}
		return nil, &OpenError{Device: name, Reason: err}
	}
	s.logger.Info("connected", "port", name, "baud", config.BaudRate)

	return port, nil
}

func autoSelectPort() (string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return "", fmt.Errorf("enumerate ports: %v: %w", err, ErrTransportUnavailable)
	}
	// Look for the first matching "arduino port"
	for _, p := range ports {
		if p.IsUSB && preferredVIDs[strings.ToUpper(p.VID)] {
			return p.Name, nil
		}
	}
	// Fall back to any usb serial device
	for _, p := range ports {
		if p.IsUSB {
			return p.Name, nil
		}
	}
	return "", fmt.Errorf("no usb serial ports found: %w", ErrTransportUnavailable)
}
