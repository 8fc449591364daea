package drivers

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"go.einride.tech/can"
	"go.einride.tech/can/pkg/socketcan"
)

// CAN is a Transport over a SocketCAN interface. Every received frame is turned into a text record
// "id,b0,b1,...", so the frame id lands on the first channel and the payload bytes on the following ones.
// Writes take candump style lines ("7E0#0322F190").
type CAN struct {
	iface  string
	logger *log.Logger
}

func NewCAN(iface string, logger *log.Logger) *CAN {
	if logger == nil {
		logger = log.Default()
	}
	return &CAN{iface, logger}
}

func (c *CAN) Name() string {
	return "can:" + c.iface
}

// Open ignores the baud rate, bitrate is a property of the interface and set with ip link.
func (c *CAN) Open(ctx context.Context, _ PortConfig) (Port, error) {
	if _, err := net.InterfaceByName(c.iface); err != nil {
		return nil, fmt.Errorf("lookup interface %s: %v: %w", c.iface, err, ErrTransportUnavailable)
	}
	conn, err := socketcan.DialContext(ctx, "can", c.iface)
	if err != nil {
		return nil, &OpenError{Device: c.iface, Reason: err}
	}
	c.logger.Info("connected", "interface", c.iface)

	return &canPort{
		conn:        conn,
		receiver:    socketcan.NewReceiver(conn),
		transmitter: socketcan.NewTransmitter(conn),
	}, nil
}

type canPort struct {
	conn        net.Conn
	receiver    *socketcan.Receiver
	transmitter *socketcan.Transmitter

	readMu  sync.Mutex
	pending []byte
}

func (p *canPort) Read(buf []byte) (int, error) {
	p.readMu.Lock()
	defer p.readMu.Unlock()

	for len(p.pending) == 0 {
		if !p.receiver.Receive() {
			if err := p.receiver.Err(); err != nil {
				return 0, err
			}
			return 0, io.EOF
		}
		if p.receiver.HasErrorFrame() {
			continue
		}
		p.pending = []byte(FormatFrame(p.receiver.Frame()) + "\n")
	}

	n := copy(buf, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

// Write transmits one frame per candump style line in b.
func (p *canPort) Write(b []byte) (int, error) {
	scanner := bufio.NewScanner(bytes.NewReader(b))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var frame can.Frame
		if err := frame.UnmarshalString(line); err != nil {
			return 0, fmt.Errorf("parse frame %q: %w", line, err)
		}
		if err := p.transmitter.TransmitFrame(context.Background(), frame); err != nil {
			return 0, fmt.Errorf("transmit frame: %w", err)
		}
	}
	return len(b), scanner.Err()
}

func (p *canPort) Close() error {
	return p.conn.Close()
}

// FormatFrame renders a frame as a comma separated record of its id and data bytes.
func FormatFrame(frame can.Frame) string {
	fields := make([]string, 0, 1+frame.Length)
	fields = append(fields, strconv.FormatUint(uint64(frame.ID), 10))
	for i := uint8(0); i < frame.Length && int(i) < len(frame.Data); i++ {
		fields = append(fields, strconv.Itoa(int(frame.Data[i])))
	}
	return strings.Join(fields, ",")
}
