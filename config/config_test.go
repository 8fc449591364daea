package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livegraph/drivers"
	"livegraph/models"
	"livegraph/stream"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, Serial, config.Connection.Driver)
	assert.Equal(t, "auto", config.Serial.Port)
	assert.Equal(t, drivers.DEFAULT_BAUD_RATE, config.Serial.Baud)
	assert.Equal(t, 4, config.Graph.Channels)
	assert.Equal(t, stream.DEFAULT_CAPACITY, config.Graph.Capacity)
	assert.True(t, config.Graph.AutoScale)
	assert.Equal(t, ":8080", config.Server.Addr)
	assert.False(t, config.Session.Elevated)
	require.Len(t, config.Monitor.Tags, 1)
	assert.Equal(t, "SENT:", config.Monitor.Tags[0].Pattern)
	require.NoError(t, config.Validate())
}

func TestLoadConfigOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[graph]
channels = 2
mode = "bar"
auto_scale = false
min = 0.0
max = 5.0

[[channel]]
name = "Temp"
colour = "#ff0000"

[[channel]]
hidden = true

[[monitor.tag]]
pattern = "ERR"
colour = "#ff0000"
`), 0o644))

	config, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, config.Validate())

	assert.Equal(t, drivers.DEFAULT_BAUD_RATE, config.Serial.Baud)
	assert.Equal(t, 2, config.Graph.Channels)

	channels := config.ChannelModels()
	require.Len(t, channels, 2)
	assert.Equal(t, "Temp", channels[0].Name())
	assert.Equal(t, "#ff0000", channels[0].Colour())
	assert.Equal(t, "Channel 2", channels[1].Name())
	assert.False(t, channels[1].Visible())

	require.Len(t, config.Tags(), 1)
	assert.Equal(t, "ERR", config.Tags()[0].Pattern)

	opts, err := config.EngineOptions()
	require.NoError(t, err)
	assert.Equal(t, models.BarGraph, opts.Mode)
	assert.Equal(t, models.Scale{Min: 0, Max: 5}, opts.Scale)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[graph\n"), 0o644))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		target error
	}{
		{"baud too low", func(c *Config) { c.Serial.Baud = 100 }, drivers.ErrInvalidBaud},
		{"capacity too big", func(c *Config) { c.Graph.Capacity = 20000 }, stream.ErrCapacityRange},
		{"inverted scale", func(c *Config) { c.Graph.AutoScale = false; c.Graph.Min = 3; c.Graph.Max = 1 }, models.ErrInvalidScale},
		{"unknown driver", func(c *Config) { c.Connection.Driver = "usb" }, nil},
		{"replay without path", func(c *Config) { c.Connection.Driver = Replay }, nil},
		{"no channels", func(c *Config) { c.Graph.Channels = 0 }, nil},
		{"bad mode", func(c *Config) { c.Graph.Mode = "pie" }, nil},
		{"bad colour", func(c *Config) { c.Channels = []ChannelConfig{{Colour: "blue"}} }, nil},
		{"empty tag", func(c *Config) { c.Monitor.Tags = append(c.Monitor.Tags, TagConfig{}) }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			require.Error(t, err)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
		})
	}
}

func TestCreateConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, CreateConfigFile(path))
	assert.Error(t, CreateConfigFile(path))

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), config)
}

func TestFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[serial]\nbaud = 57600\nport = \"/dev/ttyUSB0\"\n"), 0o644))

	flags := NewFlags("test")
	require.NoError(t, flags.Parse([]string{"--config", path, "--baud", "115200", "--admin", "--replay", "run.csv"}))

	config, err := flags.Load()
	require.NoError(t, err)
	assert.Equal(t, 115200, config.Serial.Baud)
	assert.Equal(t, "/dev/ttyUSB0", config.Serial.Port)
	assert.True(t, config.Session.Elevated)
	assert.Equal(t, Replay, config.Connection.Driver)
	assert.Equal(t, "run.csv", config.Replay.Path)
}

func TestFlagsRejectInvalid(t *testing.T) {
	flags := NewFlags("test")
	require.NoError(t, flags.Parse([]string{"--baud", "1"}))
	_, err := flags.Load()
	assert.ErrorIs(t, err, drivers.ErrInvalidBaud)

	assert.Error(t, NewFlags("test").Parse([]string{"--nope"}))
}

func TestNewTransport(t *testing.T) {
	config := DefaultConfig()
	for _, driver := range []DriverType{Serial, Replay, SocketCAN} {
		config.Connection.Driver = driver
		transport, err := config.NewTransport(nil)
		require.NoError(t, err)
		assert.NotEmpty(t, transport.Name())
	}

	config.Connection.Driver = "usb"
	_, err := config.NewTransport(nil)
	assert.Error(t, err)
}
