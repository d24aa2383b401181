package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"

	"ticket-to-ride-server/internal/board"
	"ticket-to-ride-server/internal/database"
	"ticket-to-ride-server/internal/server"
)

var CLI struct {
	Config   string `short:"c" long:"config" default:"server.hcl" help:"Path to HCL configuration file"`
	Addr     string `short:"a" long:"addr" help:"host:port to listen on (overrides config)"`
	LogLevel string `short:"l" long:"log-level" help:"Log level (overrides config)"`
	Map      string `short:"m" long:"map" help:"Board file to play on (overrides config)"`
	Database string `long:"database-url" env:"DATABASE_URL" help:"Postgres URL; games are kept in memory when empty"`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("ticket-server"),
		kong.Description("Multiplayer Ticket to Ride game server."),
	)

	cfg, err := server.LoadConfig(CLI.Config)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		ctx.Exit(1)
	}

	if CLI.Addr != "" {
		host, port, err := net.SplitHostPort(CLI.Addr)
		if err != nil {
			fmt.Printf("Invalid address %q: %v\n", CLI.Addr, err)
			ctx.Exit(1)
		}
		p, err := strconv.Atoi(port)
		if err != nil {
			fmt.Printf("Invalid port %q: %v\n", port, err)
			ctx.Exit(1)
		}
		if host != "" {
			cfg.Server.Address = host
		}
		cfg.Server.Port = p
	}
	if CLI.LogLevel != "" {
		cfg.Server.LogLevel = CLI.LogLevel
	}
	if CLI.Map != "" {
		cfg.Server.Map = CLI.Map
	}
	if CLI.Database != "" {
		cfg.Database.URL = CLI.Database
	}

	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		ctx.Exit(1)
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
	})
	switch cfg.Server.LogLevel {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "warn":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}

	if err := run(logger, cfg); err != nil {
		logger.Error("Server failed", "error", err)
		ctx.Exit(1)
	}
}

func run(logger *log.Logger, cfg *server.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b := board.Default()
	if cfg.Server.Map != "" {
		loaded, err := board.LoadFile(cfg.Server.Map)
		if err != nil {
			return fmt.Errorf("failed to load map: %w", err)
		}
		b = loaded
	}
	logger.Info("Board loaded", "board", b.String())

	opts := server.Options{Config: cfg, Board: b, Logger: logger}

	if cfg.Database.URL != "" {
		db, err := database.New(ctx, cfg.Database.URL)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := database.Migrate(ctx, db.Pool(), logger); err != nil {
			return err
		}
		opts.DB = db
	} else {
		logger.Warn("No database configured, games will not survive a restart")
	}

	srv, err := server.New(ctx, opts)
	if err != nil {
		return err
	}

	if err := srv.Run(ctx); err != nil {
		return err
	}
	logger.Info("Graceful shutdown complete")
	return nil
}
