package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/BurntSushi/toml"

	"livegraph/drivers"
	"livegraph/models"
	"livegraph/monitor"
	"livegraph/stream"
)

//go:embed config.example.toml
var exampleConf []byte

type DriverType string

const (
	Serial    DriverType = "serial"
	Replay    DriverType = "replay"
	SocketCAN DriverType = "socket-can"
)

const MAX_CHANNELS = 16

var colourPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

type Config struct {
	Connection ConnectionConfig `toml:"connection"`
	Serial     SerialConfig     `toml:"serial"`
	Replay     ReplayConfig     `toml:"replay"`
	CAN        CANConfig        `toml:"can"`
	Graph      GraphConfig      `toml:"graph"`
	Channels   []ChannelConfig  `toml:"channel"`
	Record     RecordConfig     `toml:"record"`
	Monitor    MonitorConfig    `toml:"monitor"`
	Server     ServerConfig     `toml:"server"`
	Session    Session          `toml:"session"`
	Log        LogConfig        `toml:"log"`
}

type ConnectionConfig struct {
	Driver DriverType `toml:"driver"`
	// AutoConnect connects once at startup instead of waiting for the user.
	AutoConnect bool `toml:"auto_connect"`
}

type SerialConfig struct {
	Port string `toml:"port"`
	Baud int    `toml:"baud"`
}

type ReplayConfig struct {
	Path      string  `toml:"path"`
	Speed     float64 `toml:"speed"`
	Loop      bool    `toml:"loop"`
	SkipLines int     `toml:"skip_lines"`
}

type CANConfig struct {
	Interface string `toml:"interface"`
}

type GraphConfig struct {
	Channels  int     `toml:"channels"`
	Capacity  int     `toml:"capacity"`
	Mode      string  `toml:"mode"`
	AutoScale bool    `toml:"auto_scale"`
	Min       float64 `toml:"min"`
	Max       float64 `toml:"max"`
	Framerate float64 `toml:"framerate"`
}

type ChannelConfig struct {
	Name   string `toml:"name"`
	Colour string `toml:"colour"`
	Hidden bool   `toml:"hidden"`
}

type RecordConfig struct {
	Dir        string `toml:"dir"`
	Compress   bool   `toml:"compress"`
	FlushEvery int    `toml:"flush_every"`
}

type MonitorConfig struct {
	MaxLines int         `toml:"max_lines"`
	Tags     []TagConfig `toml:"tag"`
}

type TagConfig struct {
	Pattern string `toml:"pattern"`
	Colour  string `toml:"colour"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

// Session is the capability the hosting page has already been granted. Elevated sessions get the admin
// controls.
type Session struct {
	Elevated bool `toml:"elevated"`
}

type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// DefaultConfig returns the configuration described by the embedded example file.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// LoadConfig reads a TOML file over the defaults, so a file only needs the keys it changes.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	// a file that lists tags replaces the default ones rather than appending to them
	config.Monitor.Tags = nil
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if config.Monitor.Tags == nil {
		config.Monitor.Tags = DefaultConfig().Monitor.Tags
	}
	return config, nil
}

// CreateConfigFile writes the example configuration to path, refusing to overwrite.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.WriteFile(path, exampleConf, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Connection.Driver {
	case Serial, Replay, SocketCAN:
	default:
		errs = append(errs, fmt.Errorf("unknown driver %q", c.Connection.Driver))
	}
	if err := (drivers.PortConfig{BaudRate: c.Serial.Baud}).Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Connection.Driver == Replay && c.Replay.Path == "" {
		errs = append(errs, errors.New("replay driver needs replay.path"))
	}
	if c.Replay.Speed < 0 {
		errs = append(errs, fmt.Errorf("replay speed %v is negative", c.Replay.Speed))
	}
	if c.Graph.Channels < 1 || c.Graph.Channels > MAX_CHANNELS {
		errs = append(errs, fmt.Errorf("graph channels %d outside [1, %d]", c.Graph.Channels, MAX_CHANNELS))
	}
	if err := stream.ValidateCapacity(c.Graph.Capacity); err != nil {
		errs = append(errs, err)
	}
	if _, err := models.ParseGraphMode(c.Graph.Mode); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Scale(); err != nil {
		errs = append(errs, err)
	}
	if len(c.Channels) > c.Graph.Channels {
		errs = append(errs, fmt.Errorf("%d channel overrides for %d channels", len(c.Channels), c.Graph.Channels))
	}
	for i, channel := range c.Channels {
		if channel.Colour != "" && !colourPattern.MatchString(channel.Colour) {
			errs = append(errs, fmt.Errorf("channel %d colour %q is not #rrggbb", i+1, channel.Colour))
		}
	}
	for i, tag := range c.Monitor.Tags {
		if tag.Pattern == "" {
			errs = append(errs, fmt.Errorf("monitor tag %d has no pattern", i+1))
		}
	}

	return errors.Join(errs...)
}

// Scale is the graph's starting vertical scale.
func (c *Config) Scale() (models.Scale, error) {
	if c.Graph.AutoScale {
		return models.Scale{Auto: true, Min: c.Graph.Min, Max: c.Graph.Max}, nil
	}
	return models.FixedScale(c.Graph.Min, c.Graph.Max)
}

// ChannelModels builds the session's channels, defaults first, then the [[channel]] overrides on top.
func (c *Config) ChannelModels() []*models.Channel {
	channels := models.DefaultChannels(c.Graph.Channels)
	for i, override := range c.Channels {
		if i >= len(channels) {
			break
		}
		if override.Name != "" {
			channels[i].SetName(override.Name)
		}
		if override.Colour != "" {
			channels[i].SetColour(override.Colour)
		}
		channels[i].SetVisible(!override.Hidden)
	}
	return channels
}

func (c *Config) Tags() []monitor.Tag {
	tags := make([]monitor.Tag, len(c.Monitor.Tags))
	for i, tag := range c.Monitor.Tags {
		tags[i] = monitor.Tag{Pattern: tag.Pattern, Colour: tag.Colour}
	}
	return tags
}

func (c *Config) PortConfig() drivers.PortConfig {
	return drivers.PortConfig{BaudRate: c.Serial.Baud}
}
