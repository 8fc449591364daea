package config

import (
	"fmt"

	"github.com/charmbracelet/log"

	"livegraph/drivers"
	"livegraph/graph"
	"livegraph/models"
)

// NewTransport builds the transport named by connection.driver.
func (c *Config) NewTransport(logger *log.Logger) (drivers.Transport, error) {
	switch c.Connection.Driver {
	case Serial:
		return drivers.NewSerial(c.Serial.Port, logger), nil
	case Replay:
		return drivers.NewReplayer(drivers.ReplayOptions{
			Path:      c.Replay.Path,
			Speed:     c.Replay.Speed,
			Loop:      c.Replay.Loop,
			SkipLines: c.Replay.SkipLines,
		}, logger), nil
	case SocketCAN:
		return drivers.NewCAN(c.CAN.Interface, logger), nil
	}
	return nil, fmt.Errorf("unknown driver %q", c.Connection.Driver)
}

// EngineOptions turns the graph, record and monitor sections into engine options.
func (c *Config) EngineOptions() (graph.Options, error) {
	mode, err := models.ParseGraphMode(c.Graph.Mode)
	if err != nil {
		return graph.Options{}, err
	}
	scale, err := c.Scale()
	if err != nil {
		return graph.Options{}, err
	}
	return graph.Options{
		Channels:     c.ChannelModels(),
		Capacity:     c.Graph.Capacity,
		Mode:         mode,
		Scale:        scale,
		Framerate:    c.Graph.Framerate,
		MonitorLines: c.Monitor.MaxLines,
		Tags:         c.Tags(),
		RecordDir:    c.Record.Dir,
		Compress:     c.Record.Compress,
		FlushEvery:   c.Record.FlushEvery,
	}, nil
}
