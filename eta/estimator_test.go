package eta

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/theoremus-urban-solutions/fleet-tracker/fleet"
	"github.com/theoremus-urban-solutions/fleet-tracker/gtfs"
)

// testRoute runs due north along one meridian with stops A, B, C at roughly
// 1.1, 2.2 and 5.6 km from the start.
func testRoute() *gtfs.Route {
	shape := []gtfs.Waypoint{
		{Lat: 9.00, Lng: 38.70},
		{Lat: 9.10, Lng: 38.70},
	}
	cum := make([]float64, len(shape))
	for i := 1; i < len(shape); i++ {
		cum[i] = cum[i-1] + gtfs.HaversineKM(shape[i-1].Lat, shape[i-1].Lng, shape[i].Lat, shape[i].Lng)
	}
	r := &gtfs.Route{
		ID:      "R1",
		StopIDs: []string{"A", "B", "C"},
		Shape:   shape,
		CumKM:   cum,
		StopKM:  map[string]float64{},
	}
	for stopID, lat := range map[string]float64{"A": 9.01, "B": 9.02, "C": 9.05} {
		r.StopKM[stopID] = r.DistanceAlongShapeKM(lat, 38.70)
	}
	return r
}

func activeVehicle(lat float64, speedKmh float64) fleet.VehicleState {
	return fleet.VehicleState{
		VehicleID: "V1",
		RouteID:   "R1",
		Lat:       lat,
		Lng:       38.70,
		SpeedKmh:  speedKmh,
		Status:    fleet.StatusActive,
		UpdatedAt: time.Date(2026, 1, 5, 10, 30, 0, 0, time.UTC),
	}
}

func TestEstimate_MonotonicInRouteOrder(t *testing.T) {
	est := New(3, 20, nil)
	route := testRoute()
	st := activeVehicle(9.005, 30)

	etaA, errA := est.Estimate(st, route, "A")
	etaB, errB := est.Estimate(st, route, "B")
	etaC, errC := est.Estimate(st, route, "C")
	if errA != nil || errB != nil || errC != nil {
		t.Fatalf("estimates errored: %v %v %v", errA, errB, errC)
	}
	if etaA > etaB || etaB > etaC {
		t.Errorf("estimates not monotonic: A=%f B=%f C=%f", etaA, etaB, etaC)
	}

	// ~0.556 km to A at 30 km/h is ~1.11 minutes.
	if math.Abs(etaA-1.11) > 0.05 {
		t.Errorf("etaA = %f, want ~1.11 min", etaA)
	}
	if math.Abs(etaB-3.34) > 0.05 {
		t.Errorf("etaB = %f, want ~3.34 min", etaB)
	}
}

func TestEstimate_AtStopIsZero(t *testing.T) {
	est := New(3, 20, nil)
	route := testRoute()

	got, err := est.Estimate(activeVehicle(9.01, 30), route, "A")
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if got != 0 {
		t.Errorf("eta at stop = %f, want 0", got)
	}

	// Slightly past the stop, within projection tolerance: still zero, not
	// an error.
	got, err = est.Estimate(activeVehicle(9.01010, 30), route, "A")
	if err != nil {
		t.Fatalf("Estimate just past stop: %v", err)
	}
	if got != 0 {
		t.Errorf("eta just past stop = %f, want 0", got)
	}
}

func TestEstimate_NoEstimateCases(t *testing.T) {
	est := New(3, 20, nil)
	route := testRoute()

	stale := activeVehicle(9.005, 30)
	stale.Stale = true

	parked := activeVehicle(9.005, 0)
	parked.Status = fleet.StatusOutOfService

	tests := []struct {
		name   string
		st     fleet.VehicleState
		route  *gtfs.Route
		stopID string
	}{
		{"vehicle already past the stop", activeVehicle(9.03, 30), route, "A"},
		{"stop not on route", activeVehicle(9.005, 30), route, "X"},
		{"stale vehicle", stale, route, "A"},
		{"out of service vehicle", parked, route, "A"},
		{"no route", activeVehicle(9.005, 30), nil, "A"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := est.Estimate(tt.st, tt.route, tt.stopID); !errors.Is(err, ErrNoEstimate) {
				t.Fatalf("err = %v, want ErrNoEstimate", err)
			}
		})
	}
}

func TestEstimate_SlowSpeedFallsBack(t *testing.T) {
	route := testRoute()
	st := activeVehicle(9.005, 1) // crawling, below the 3 km/h floor
	st.UpdatedAt = time.Date(2026, 1, 5, 8, 15, 0, 0, time.UTC)

	// With an average for hour 8, that average is the divisor.
	est := New(3, 20, map[int]float64{8: 12})
	got, err := est.Estimate(st, route, "B")
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if math.Abs(got-8.34) > 0.1 {
		t.Errorf("eta with hourly average = %f, want ~8.34 min at 12 km/h", got)
	}

	// No entry for the hour: the flat fallback applies.
	est = New(3, 20, map[int]float64{17: 13})
	got, err = est.Estimate(st, route, "B")
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if math.Abs(got-5.0) > 0.1 {
		t.Errorf("eta with fallback = %f, want ~5.0 min at 20 km/h", got)
	}
}

func TestEstimate_NoUsableSpeed(t *testing.T) {
	est := New(3, 0, nil)
	route := testRoute()
	if _, err := est.Estimate(activeVehicle(9.005, 0), route, "A"); !errors.Is(err, ErrNoEstimate) {
		t.Fatalf("err = %v, want ErrNoEstimate when no speed is usable", err)
	}
}
