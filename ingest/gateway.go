package ingest

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/theoremus-urban-solutions/fleet-tracker/broadcast"
	"github.com/theoremus-urban-solutions/fleet-tracker/fleet"
)

// Publisher receives a change event for every accepted report. Satisfied by
// *broadcast.Broadcaster.
type Publisher interface {
	Publish(broadcast.Event)
}

// Metrics observes ingestion outcomes. Implemented by metrics.Collector;
// nil disables observation.
type Metrics interface {
	ReportAcceptedInc()
	ReportInvalidInc()
	ReportStaleInc()
}

// Gateway validates reports and writes them into the store.
type Gateway struct {
	store       *fleet.Store
	pub         Publisher
	validate    *validator.Validate
	maxSpeedKmh float64
	metrics     Metrics
	log         *slog.Logger
}

// NewGateway wires the write path. maxSpeedKmh is the sanity ceiling for
// reported speeds.
func NewGateway(store *fleet.Store, pub Publisher, maxSpeedKmh float64, m Metrics) *Gateway {
	return &Gateway{
		store:       store,
		pub:         pub,
		validate:    validator.New(),
		maxSpeedKmh: maxSpeedKmh,
		metrics:     m,
		log:         slog.With("component", "ingest"),
	}
}

// Submit applies one report. Malformed input returns a *ValidationError.
// A report whose timestamp is older than the stored state is dropped
// silently: reordered delivery is normal, not an error for the reporter.
func (g *Gateway) Submit(ctx context.Context, r Report) error {
	r.VehicleID = strings.TrimSpace(r.VehicleID)
	r.RouteID = strings.TrimSpace(r.RouteID)
	if r.HeadingDeg == 360 {
		r.HeadingDeg = 0
	}

	if verr := g.check(r); verr != nil {
		if g.metrics != nil {
			g.metrics.ReportInvalidInc()
		}
		return verr
	}

	status := fleet.Status(r.Status)
	if status == "" {
		status = fleet.StatusActive
	}
	st, err := g.store.Upsert(fleet.VehicleState{
		VehicleID:  r.VehicleID,
		RouteID:    r.RouteID,
		Lat:        r.Lat,
		Lng:        r.Lng,
		HeadingDeg: r.HeadingDeg,
		SpeedKmh:   r.SpeedKmh,
		Occupancy:  r.Occupancy,
		Status:     status,
		UpdatedAt:  r.Timestamp,
	})
	if err != nil {
		if errors.Is(err, fleet.ErrStaleReport) {
			if g.metrics != nil {
				g.metrics.ReportStaleInc()
			}
			g.log.Debug("dropped stale report", "vehicle", r.VehicleID, "reported", r.Timestamp)
			return nil
		}
		return err
	}

	if g.pub != nil {
		g.pub.Publish(broadcast.UpdateEvent(st))
	}
	if g.metrics != nil {
		g.metrics.ReportAcceptedInc()
	}
	return nil
}

func (g *Gateway) check(r Report) *ValidationError {
	if err := g.validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &ValidationError{Field: fe.Field(), Reason: "failed " + fe.Tag()}
		}
		return &ValidationError{Field: "report", Reason: err.Error()}
	}
	// Heading 360 was normalized above; the tag allows it so the raw value
	// does not produce a confusing message.
	if r.HeadingDeg >= 360 {
		return &ValidationError{Field: "HeadingDeg", Reason: "must be below 360"}
	}
	if g.maxSpeedKmh > 0 && r.SpeedKmh > g.maxSpeedKmh {
		return &ValidationError{Field: "SpeedKmh", Reason: "exceeds sanity ceiling"}
	}
	return nil
}
