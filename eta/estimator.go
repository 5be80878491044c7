// Package eta computes arrival estimates from a vehicle's position along its
// route shape. Estimation is a pure function of the inputs, so it is safe
// from any goroutine.
package eta

import (
	"errors"

	"github.com/theoremus-urban-solutions/fleet-tracker/fleet"
	"github.com/theoremus-urban-solutions/fleet-tracker/gtfs"
)

// ErrNoEstimate means no meaningful arrival time exists: the stop is not on
// the vehicle's route, the vehicle is stale or out of service, or it already
// passed the stop.
var ErrNoEstimate = errors.New("eta: no estimate available")

// passedToleranceKM absorbs projection jitter when a vehicle sits right at a
// stop; anything farther beyond the stop counts as passed.
const passedToleranceKM = 0.02

// Estimator derives arrival times. Speeds below MinSpeedKmh (a vehicle
// crawling or at a light) fall back to the configured average for the hour
// of the report, or FallbackSpeedKmh when no hourly average exists.
type Estimator struct {
	MinSpeedKmh      float64
	FallbackSpeedKmh float64
	HourlySpeedKmh   map[int]float64 // hour of day (0-23) -> average km/h
}

// New returns an estimator with the given thresholds.
func New(minSpeedKmh, fallbackSpeedKmh float64, hourly map[int]float64) *Estimator {
	return &Estimator{
		MinSpeedKmh:      minSpeedKmh,
		FallbackSpeedKmh: fallbackSpeedKmh,
		HourlySpeedKmh:   hourly,
	}
}

// Estimate returns minutes until the vehicle reaches the target stop,
// measured along the route shape rather than straight-line. Estimates are
// monotonic in route order: a stop later on the route never gets a smaller
// value for the same vehicle state.
func (e *Estimator) Estimate(st fleet.VehicleState, route *gtfs.Route, targetStopID string) (float64, error) {
	if route == nil || st.Stale || st.Status != fleet.StatusActive {
		return 0, ErrNoEstimate
	}
	stopKM, ok := route.StopKM[targetStopID]
	if !ok {
		return 0, ErrNoEstimate
	}

	vehicleKM := route.DistanceAlongShapeKM(st.Lat, st.Lng)
	remainingKM := stopKM - vehicleKM
	if remainingKM < -passedToleranceKM {
		return 0, ErrNoEstimate
	}
	if remainingKM < 0 {
		remainingKM = 0
	}

	speed := e.speedFor(st)
	if speed <= 0 {
		return 0, ErrNoEstimate
	}
	return remainingKM / speed * 60, nil
}

// speedFor picks the divisor: the reported speed when it is meaningful,
// otherwise the average for the report's hour of day.
func (e *Estimator) speedFor(st fleet.VehicleState) float64 {
	if st.SpeedKmh >= e.MinSpeedKmh {
		return st.SpeedKmh
	}
	if v, ok := e.HourlySpeedKmh[st.UpdatedAt.Hour()]; ok && v > 0 {
		return v
	}
	return e.FallbackSpeedKmh
}
