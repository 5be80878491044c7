// Package relay republishes accepted change events to NATS so collaborators
// outside the process can consume the same stream the in-process
// subscribers see. Relay failures never affect ingestion.
package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/theoremus-urban-solutions/fleet-tracker/broadcast"
)

// Metrics observes relay activity. Implemented by metrics.Collector; nil
// disables observation.
type Metrics interface {
	RelayPublishedInc()
	RelayPublishErrInc()
	RelayObserve(d time.Duration)
	RelaySetConnected(connected bool)
}

// Publisher holds the NATS connection.
type Publisher struct {
	nc            *nats.Conn
	subjectPrefix string
	metrics       Metrics
	log           *slog.Logger
}

// New connects to NATS. Reconnects are handled by the client; connection
// state transitions are logged and mirrored into metrics.
func New(url, subjectPrefix string, m Metrics) (*Publisher, error) {
	log := slog.With("component", "relay")
	nc, err := nats.Connect(url,
		nats.Name("fleet-tracker"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.RelaySetConnected(false)
			}
			log.Warn("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.RelaySetConnected(true)
			}
			log.Info("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.RelaySetConnected(false)
			}
			log.Info("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.RelaySetConnected(true)
	}
	if subjectPrefix == "" {
		subjectPrefix = "vehicles"
	}
	return &Publisher{nc: nc, subjectPrefix: subjectPrefix, metrics: m, log: log}, nil
}

// Run subscribes to the broadcaster unfiltered and forwards vehicle updates
// until the context is cancelled. Gap markers are per-subscriber state and
// are not forwarded.
func (p *Publisher) Run(ctx context.Context, b *broadcast.Broadcaster) {
	sub := b.Subscribe(broadcast.Filter{})
	defer b.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			if ev.Type != broadcast.EventVehicleUpdate {
				continue
			}
			if err := p.publish(ev); err != nil {
				p.log.Warn("publish failed", "vehicle", ev.VehicleID, "err", err)
			}
		}
	}
}

func (p *Publisher) publish(ev broadcast.Event) error {
	route := ev.RouteID
	if route == "" {
		route = "unassigned"
	}
	subject := p.subjectPrefix + "." + subjectToken(route) + "." + subjectToken(ev.VehicleID)
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	start := time.Now()
	err = p.nc.Publish(subject, b)
	if p.metrics != nil {
		p.metrics.RelayObserve(time.Since(start))
		if err != nil {
			p.metrics.RelayPublishErrInc()
		} else {
			p.metrics.RelayPublishedInc()
		}
	}
	return err
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
		p.nc.Close()
	}
}

// subjectToken sanitizes an id for use as a NATS subject token.
func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
