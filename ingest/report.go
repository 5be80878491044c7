// Package ingest is the single write path into the fleet store. It
// validates and normalizes position reports, applies them to the store, and
// publishes a change event for every accepted write.
package ingest

import (
	"fmt"
	"time"
)

// Report is one raw position report from a vehicle agent or simulator.
type Report struct {
	VehicleID  string    `json:"vehicleId" validate:"required"`
	RouteID    string    `json:"routeId,omitempty"`
	Lat        float64   `json:"lat" validate:"gte=-90,lte=90"`
	Lng        float64   `json:"lng" validate:"gte=-180,lte=180"`
	HeadingDeg float64   `json:"headingDeg" validate:"gte=0,lte=360"`
	SpeedKmh   float64   `json:"speedKmh" validate:"gte=0"`
	Occupancy  float64   `json:"occupancy" validate:"gte=0,lte=1"`
	Status     string    `json:"status,omitempty" validate:"omitempty,oneof=active out_of_service maintenance"`
	Timestamp  time.Time `json:"timestamp" validate:"required"`
}

// ValidationError describes why a report was rejected. It is returned to the
// submitter synchronously; the core never retries a malformed report.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("ingest: invalid report: %s %s", e.Field, e.Reason)
}
