// Package metrics exposes Prometheus instrumentation for the tracker.
package metrics

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the registry and every instrument. It satisfies the small
// observer interfaces declared by ingest, broadcast, and relay.
type Collector struct {
	reg *prometheus.Registry

	ReportsAccepted prometheus.Counter
	ReportsInvalid  prometheus.Counter
	ReportsStale    prometheus.Counter

	EventsPublished prometheus.Counter
	EventsDropped   prometheus.Counter
	Subscribers     prometheus.Gauge

	StaleVehicles prometheus.Counter
	SweepDuration prometheus.Histogram

	RelayPublished   prometheus.Counter
	RelayPublishErrs prometheus.Counter
	RelayConnected   prometheus.Gauge
	RelayDuration    prometheus.Histogram
}

// NewCollector builds and registers every instrument on a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		ReportsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleettracker_reports_accepted_total",
			Help: "Reports accepted into the vehicle state store.",
		}),
		ReportsInvalid: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleettracker_reports_invalid_total",
			Help: "Reports rejected by validation.",
		}),
		ReportsStale: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleettracker_reports_stale_total",
			Help: "Reports dropped for carrying an out-of-order timestamp.",
		}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleettracker_events_published_total",
			Help: "Change events published to the broadcaster.",
		}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleettracker_events_dropped_total",
			Help: "Events dropped from slow subscriber buffers.",
		}),
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fleettracker_subscribers",
			Help: "Live subscriptions.",
		}),
		StaleVehicles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleettracker_vehicles_marked_stale_total",
			Help: "Vehicles flipped to stale by the sweep.",
		}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fleettracker_sweep_duration_seconds",
			Help:    "Duration of staleness sweep passes.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 15),
		}),
		RelayPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleettracker_relay_published_total",
			Help: "Events republished to NATS.",
		}),
		RelayPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleettracker_relay_publish_errors_total",
			Help: "NATS publish errors.",
		}),
		RelayConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fleettracker_relay_connected",
			Help: "1 if the NATS connection is established, 0 otherwise.",
		}),
		RelayDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fleettracker_relay_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
	}

	reg.MustRegister(
		c.ReportsAccepted, c.ReportsInvalid, c.ReportsStale,
		c.EventsPublished, c.EventsDropped, c.Subscribers,
		c.StaleVehicles, c.SweepDuration,
		c.RelayPublished, c.RelayPublishErrs, c.RelayConnected, c.RelayDuration,
	)
	return c
}

// Observer interface implementations.

func (c *Collector) ReportAcceptedInc() { c.ReportsAccepted.Inc() }
func (c *Collector) ReportInvalidInc()  { c.ReportsInvalid.Inc() }
func (c *Collector) ReportStaleInc()    { c.ReportsStale.Inc() }

func (c *Collector) EventPublishedInc()  { c.EventsPublished.Inc() }
func (c *Collector) EventDroppedInc()    { c.EventsDropped.Inc() }
func (c *Collector) SubscribersSet(n int) { c.Subscribers.Set(float64(n)) }

func (c *Collector) SweepObserve(flipped int, took time.Duration) {
	c.StaleVehicles.Add(float64(flipped))
	c.SweepDuration.Observe(took.Seconds())
}

func (c *Collector) RelayPublishedInc()          { c.RelayPublished.Inc() }
func (c *Collector) RelayPublishErrInc()         { c.RelayPublishErrs.Inc() }
func (c *Collector) RelayObserve(d time.Duration) { c.RelayDuration.Observe(d.Seconds()) }
func (c *Collector) RelaySetConnected(connected bool) {
	if connected {
		c.RelayConnected.Set(1)
	} else {
		c.RelayConnected.Set(0)
	}
}

// Handler returns the /metrics handler for this registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

// Serve starts an HTTP server exposing /metrics on addr.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "err", err)
		}
	}()
	slog.Info("metrics listening", "addr", addr)
	return srv
}
