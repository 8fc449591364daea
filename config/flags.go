package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

// Flags are command line overrides. Only flags actually given on the command line replace config file values.
type Flags struct {
	set *pflag.FlagSet

	ConfigPath string
	Help       bool

	driver       string
	connect      bool
	serialPort   string
	baud         int
	replayPath   string
	replaySpeed  float64
	replayLoop   bool
	replaySkip   int
	canInterface string
	addr         string
	logLevel     string
	logFile      string
	admin        bool
}

func NewFlags(name string) *Flags {
	f := &Flags{set: pflag.NewFlagSet(name, pflag.ContinueOnError)}
	defaults := DefaultConfig()

	f.set.StringVarP(&f.ConfigPath, "config", "c", "", "path to a TOML config file")
	f.set.BoolVarP(&f.Help, "help", "h", false, "show help")
	f.set.StringVar(&f.driver, "driver", string(defaults.Connection.Driver), "transport: serial, replay or socket-can")
	f.set.BoolVar(&f.connect, "connect", false, "connect at startup")
	f.set.StringVar(&f.serialPort, "serial-port", defaults.Serial.Port, "serial device path or 'auto'")
	f.set.IntVar(&f.baud, "baud", defaults.Serial.Baud, "baud rate")
	f.set.StringVar(&f.replayPath, "replay", "", "path to a recorded text or csv file to replay")
	f.set.Float64Var(&f.replaySpeed, "replay-speed", defaults.Replay.Speed, "replay lines per second (0 = as fast as possible)")
	f.set.BoolVar(&f.replayLoop, "replay-loop", false, "loop replay at EOF")
	f.set.IntVar(&f.replaySkip, "replay-skip-lines", 0, "skips X lines from the start of the replay")
	f.set.StringVar(&f.canInterface, "can-interface", defaults.CAN.Interface, "SocketCAN interface")
	f.set.StringVar(&f.addr, "addr", defaults.Server.Addr, "http listen address")
	f.set.StringVar(&f.logLevel, "log-level", defaults.Log.Level, "debug, info, warn or error")
	f.set.StringVar(&f.logFile, "log-file", defaults.Log.File, "write logs to this file")
	f.set.BoolVar(&f.admin, "admin", false, "elevated session: capacity, baud and raw send controls")
	return f
}

func (f *Flags) Parse(args []string) error {
	return f.set.Parse(args)
}

func (f *Flags) Usage() string {
	return f.set.FlagUsages()
}

// Load reads the config file (or the defaults when none was given), applies the overrides and validates.
func (f *Flags) Load() (*Config, error) {
	config := DefaultConfig()
	if f.ConfigPath != "" {
		loaded, err := LoadConfig(f.ConfigPath)
		if err != nil {
			return nil, err
		}
		config = loaded
	}
	f.apply(config)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

func (f *Flags) apply(c *Config) {
	changed := f.set.Changed
	if changed("driver") {
		c.Connection.Driver = DriverType(f.driver)
	}
	if changed("connect") {
		c.Connection.AutoConnect = f.connect
	}
	if changed("serial-port") {
		c.Serial.Port = f.serialPort
	}
	if changed("baud") {
		c.Serial.Baud = f.baud
	}
	if changed("replay") {
		c.Replay.Path = f.replayPath
		// --replay on its own is enough to pick the driver
		if !changed("driver") {
			c.Connection.Driver = Replay
		}
	}
	if changed("replay-speed") {
		c.Replay.Speed = f.replaySpeed
	}
	if changed("replay-loop") {
		c.Replay.Loop = f.replayLoop
	}
	if changed("replay-skip-lines") {
		c.Replay.SkipLines = f.replaySkip
	}
	if changed("can-interface") {
		c.CAN.Interface = f.canInterface
	}
	if changed("addr") {
		c.Server.Addr = f.addr
	}
	if changed("log-level") {
		c.Log.Level = f.logLevel
	}
	if changed("log-file") {
		c.Log.File = f.logFile
	}
	if changed("admin") {
		c.Session.Elevated = f.admin
	}
}
