package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"livegraph/config"
	"livegraph/connection"
	"livegraph/events"
	"livegraph/graph"
	"livegraph/logging"
	"livegraph/web"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flags := config.NewFlags("grapher")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if flags.Help {
		fmt.Fprintf(os.Stderr, "grapher - live graph and serial monitor in the browser\n\nUsage:\n  grapher [flags]\n\nFlags:\n%s", flags.Usage())
		return nil
	}

	cfg, err := flags.Load()
	if err != nil {
		return err
	}

	logger := logging.NewLogger(os.Stderr, cfg.Log.Level)
	if cfg.Log.File != "" {
		cleanup, err := logging.ToFile(logger, cfg.Log.File)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer cleanup()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := events.NewHub()

	opts, err := cfg.EngineOptions()
	if err != nil {
		return err
	}
	engine, err := graph.NewEngine(opts, hub, logging.WithComponent(logger, "engine"))
	if err != nil {
		return fmt.Errorf("couldn't create engine: %w", err)
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Error("closing recordings", "err", err)
		}
	}()
	go engine.Run(ctx)

	// Create the correct transport
	transport, err := cfg.NewTransport(logging.WithComponent(logger, "transport"))
	if err != nil {
		return err
	}
	conn := connection.NewManager(transport, engine, logging.WithComponent(logger, "connection"))
	conn.OnStateChange(engine.OnStateChange)
	defer conn.Disconnect()

	if cfg.Connection.AutoConnect {
		if err := conn.Connect(ctx, cfg.PortConfig()); err != nil {
			logger.Warn("couldn't connect at startup", "err", err)
		}
	}

	// Initialise UI
	dashboard, err := web.NewDashboard(engine, conn, cfg.Session, cfg.Serial.Baud, logging.WithComponent(logger, "web"))
	if err != nil {
		return fmt.Errorf("couldn't create dashboard: %w", err)
	}

	// Initialise Server
	server := web.NewServer(dashboard, hub, logging.WithComponent(logger, "server"))
	if err := server.Start(ctx, cfg.Server.Addr); err != nil {
		return fmt.Errorf("couldn't start server: %w", err)
	}
	return nil
}
