// Package fleet holds the authoritative per-vehicle state. The store is the
// single high-contention structure in the tracker, so synchronization is per
// vehicle entry: writes for different vehicles never block each other, and
// the staleness sweep only reads timestamps and flips a flag.
package fleet

import (
	"errors"
	"time"
)

var (
	// ErrStaleReport means the report's timestamp was not strictly newer
	// than the stored state. Reordered delivery is normal; callers drop
	// these silently.
	ErrStaleReport = errors.New("fleet: report older than stored state")
	// ErrNotFound means the vehicle id has never reported.
	ErrNotFound = errors.New("fleet: vehicle not found")
)

// Status is a vehicle's lifecycle status as reported by its agent.
type Status string

const (
	StatusActive       Status = "active"
	StatusOutOfService Status = "out_of_service"
	StatusMaintenance  Status = "maintenance"
)

// VehicleState is the latest accepted report for one vehicle. Seq is
// assigned by the store, monotonically increasing per vehicle. Stale is set
// by the sweep when no report arrived within the staleness window; stale
// entries stay in the store for diagnostics but are excluded from queries.
type VehicleState struct {
	VehicleID  string    `json:"vehicleId"`
	RouteID    string    `json:"routeId,omitempty"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	HeadingDeg float64   `json:"headingDeg"`
	SpeedKmh   float64   `json:"speedKmh"`
	Occupancy  float64   `json:"occupancy"`
	Status     Status    `json:"status"`
	UpdatedAt  time.Time `json:"timestamp"`
	Stale      bool      `json:"-"`
	Seq        uint64    `json:"sequence"`
}

// Live reports whether the vehicle should appear in query results.
func (v VehicleState) Live() bool {
	return !v.Stale && v.Status == StatusActive
}
