package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/theoremus-urban-solutions/fleet-tracker/config"

	fleettracker "github.com/theoremus-urban-solutions/fleet-tracker"
)

func main() {
	configPath := flag.String("config", "", "path to config.yml (default ./config.yml)")
	logLevel := flag.String("log-level", "info", "debug|info|warn|error")
	gtfsPath := flag.String("gtfs", "", "local GTFS zip path (overrides config)")
	flag.Parse()

	fleettracker.InitLogging(*logLevel)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}
	if *gtfsPath != "" {
		cfg.GTFS.StaticPath = *gtfsPath
		cfg.GTFS.StaticURL = ""
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := fleettracker.NewApp(cfg)
	if err != nil {
		// Running with a partial or empty reference snapshot would serve
		// wrong answers; refuse to start instead.
		slog.Error("startup failed", "err", err)
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}
