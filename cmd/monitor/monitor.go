package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"livegraph/config"
	"livegraph/connection"
	"livegraph/events"
	"livegraph/graph"
	"livegraph/logging"
	"livegraph/ui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flags := config.NewFlags("monitor")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if flags.Help {
		fmt.Fprintf(os.Stderr, "monitor - terminal serial monitor\n\nUsage:\n  monitor [flags]\n\nFlags:\n%s", flags.Usage())
		return nil
	}

	cfg, err := flags.Load()
	if err != nil {
		return err
	}

	// The UI owns the terminal, logs go to the log file or nowhere.
	logger := logging.NewLogger(os.Stderr, cfg.Log.Level)
	cleanup, err := logging.ToFile(logger, cfg.Log.File)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer cleanup()

	opts, err := cfg.EngineOptions()
	if err != nil {
		return err
	}
	engine, err := graph.NewEngine(opts, events.NewHub(), logging.WithComponent(logger, "engine"))
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Error("closing recordings", "err", err)
		}
	}()

	transport, err := cfg.NewTransport(logging.WithComponent(logger, "transport"))
	if err != nil {
		return err
	}
	conn := connection.NewManager(transport, engine, logging.WithComponent(logger, "connection"))
	conn.OnStateChange(engine.OnStateChange)
	defer conn.Disconnect()

	if cfg.Connection.AutoConnect {
		if err := conn.Connect(context.Background(), cfg.PortConfig()); err != nil {
			logger.Warn("couldn't connect at startup", "err", err)
		}
	}

	model := ui.NewMonitor(engine, conn, cfg.Serial.Baud)
	defer model.Close()

	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err = program.Run()
	return err
}
