// Package fleettracker wires the tracking core and exposes it over HTTP:
// report ingestion, point-in-time queries, and a streaming subscription
// surface.
package fleettracker

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/theoremus-urban-solutions/fleet-tracker/broadcast"
	"github.com/theoremus-urban-solutions/fleet-tracker/config"
	"github.com/theoremus-urban-solutions/fleet-tracker/eta"
	"github.com/theoremus-urban-solutions/fleet-tracker/fleet"
	"github.com/theoremus-urban-solutions/fleet-tracker/geo"
	"github.com/theoremus-urban-solutions/fleet-tracker/gtfs"
	"github.com/theoremus-urban-solutions/fleet-tracker/ingest"
	"github.com/theoremus-urban-solutions/fleet-tracker/metrics"
	"github.com/theoremus-urban-solutions/fleet-tracker/query"
	"github.com/theoremus-urban-solutions/fleet-tracker/relay"
)

// refSet pairs a reference snapshot with the geo index built from it, so a
// reload swaps both in one atomic step.
type refSet struct {
	snap  *gtfs.Snapshot
	index *geo.Index
}

// App owns every component of the tracker.
type App struct {
	cfg       *config.AppConfig
	store     *fleet.Store
	bcast     *broadcast.Broadcaster
	gateway   *ingest.Gateway
	svc       *query.Service
	collector *metrics.Collector
	refs      atomic.Pointer[refSet]
	log       *slog.Logger
}

// NewApp loads reference data and wires the components. A reference-data
// load failure here is fatal by design: the tracker must not start with an
// empty GeoIndex.
func NewApp(cfg *config.AppConfig) (*App, error) {
	a := &App{
		cfg:       cfg,
		store:     fleet.NewStore(),
		collector: metrics.NewCollector(),
		log:       slog.With("component", "app"),
	}

	snap, err := loadSnapshot(cfg.GTFS)
	if err != nil {
		return nil, fmt.Errorf("load reference data: %w", err)
	}
	a.refs.Store(&refSet{snap: snap, index: geo.Build(snap)})
	a.log.Info("reference data loaded", "stops", snap.NumStops(), "routes", snap.NumRoutes())

	a.bcast = broadcast.New(cfg.Broadcast.BufferSize, a.collector)
	a.gateway = ingest.NewGateway(a.store, a.bcast, cfg.Ingest.MaxSpeedKmh, a.collector)
	est := eta.New(cfg.ETA.MinSpeedKmh, cfg.ETA.FallbackSpeedKmh, cfg.ETA.HourlySpeedKmh)
	a.svc = query.NewService(a.store, a, est)
	return a, nil
}

func loadSnapshot(cfg config.GTFSConfig) (*gtfs.Snapshot, error) {
	if cfg.StaticPath != "" {
		return gtfs.LoadFromFile(cfg.StaticPath)
	}
	return gtfs.LoadFromURL(cfg.StaticURL)
}

// Snapshot implements query.RefProvider.
func (a *App) Snapshot() *gtfs.Snapshot { return a.refs.Load().snap }

// GeoIndex implements query.RefProvider.
func (a *App) GeoIndex() *geo.Index { return a.refs.Load().index }

// ReloadReference rebuilds the snapshot and geo index and swaps them in.
// Queries in flight keep reading the old set.
func (a *App) ReloadReference() error {
	snap, err := loadSnapshot(a.cfg.GTFS)
	if err != nil {
		return fmt.Errorf("reload reference data: %w", err)
	}
	a.refs.Store(&refSet{snap: snap, index: geo.Build(snap)})
	a.log.Info("reference data reloaded", "stops", snap.NumStops(), "routes", snap.NumRoutes())
	return nil
}

// Run starts every background task and the HTTP server, then blocks until
// the context is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	window := time.Duration(a.cfg.Fleet.StalenessWindowSec) * time.Second
	sweep := time.Duration(a.cfg.Fleet.SweepIntervalSec) * time.Second
	go a.store.RunSweeper(ctx, window, sweep, a.collector.SweepObserve)

	if a.cfg.Ingest.RTFeedURL != "" {
		src := ingest.NewRTSource(
			a.cfg.Ingest.RTFeedURL,
			time.Duration(a.cfg.Ingest.RTPollIntervalMS)*time.Millisecond,
			a.gateway,
		)
		go src.Run(ctx)
	}

	if a.cfg.Relay.NATSURL != "" {
		rel, err := relay.New(a.cfg.Relay.NATSURL, a.cfg.Relay.SubjectPrefix, a.collector)
		if err != nil {
			// Egress is auxiliary; the tracker still serves its own clients.
			a.log.Warn("relay disabled", "err", err)
		} else {
			defer rel.Close()
			go rel.Run(ctx, a.bcast)
		}
	}

	var metricsSrv *http.Server
	if a.cfg.Server.MetricsAddr != "" {
		metricsSrv = a.collector.Serve(a.cfg.Server.MetricsAddr)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	a.log.Info("server listening", "addr", srv.Addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Warn("server shutdown error", "err", err)
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	a.bcast.Close()
	a.log.Info("shutdown complete")
	return nil
}
