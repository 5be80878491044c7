package gtfs

import (
	"math"
	"testing"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestHaversineKM(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lng1, lat2, lng2 float64
		wantKM                 float64
		tol                    float64
	}{
		{"same point", 9.0157, 38.7469, 9.0157, 38.7469, 0, 1e-9},
		{"one degree of latitude", 0, 0, 1, 0, 111.195, 0.01},
		{"one degree of longitude at equator", 0, 0, 0, 1, 111.195, 0.01},
		{"meskel square to bole", 9.0107, 38.7613, 8.9806, 38.7998, 5.39, 0.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HaversineKM(tt.lat1, tt.lng1, tt.lat2, tt.lng2)
			if !almostEqual(got, tt.wantKM, tt.tol) {
				t.Errorf("HaversineKM = %f, want %f ± %f", got, tt.wantKM, tt.tol)
			}
			// Symmetric by definition.
			back := HaversineKM(tt.lat2, tt.lng2, tt.lat1, tt.lng1)
			if !almostEqual(got, back, 1e-12) {
				t.Errorf("asymmetric: %f vs %f", got, back)
			}
		})
	}
}

func testRoute() *Route {
	shape := []Waypoint{
		{Lat: 9.00, Lng: 38.70},
		{Lat: 9.02, Lng: 38.70},
		{Lat: 9.02, Lng: 38.72},
	}
	return &Route{
		ID:    "T",
		Shape: shape,
		CumKM: cumulativeKM(shape),
	}
}

func TestDistanceAlongShapeKM(t *testing.T) {
	r := testRoute()
	legKM := HaversineKM(9.00, 38.70, 9.02, 38.70)

	tests := []struct {
		name     string
		lat, lng float64
		wantKM   float64
	}{
		{"at start", 9.00, 38.70, 0},
		{"midway on first leg", 9.01, 38.70, legKM / 2},
		{"at the corner", 9.02, 38.70, legKM},
		{"before start clamps to zero", 8.99, 38.70, 0},
		{"past end clamps to length", 9.02, 38.73, r.LengthKM()},
		{"off to the side projects onto the leg", 9.01, 38.695, legKM / 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.DistanceAlongShapeKM(tt.lat, tt.lng)
			if !almostEqual(got, tt.wantKM, 0.01) {
				t.Errorf("DistanceAlongShapeKM(%f,%f) = %f, want %f", tt.lat, tt.lng, got, tt.wantKM)
			}
		})
	}
}

func TestPointAtDistanceKM(t *testing.T) {
	r := testRoute()

	if pt, ok := r.PointAtDistanceKM(0); !ok || pt != r.Shape[0] {
		t.Errorf("at 0 = %+v/%v, want shape start", pt, ok)
	}
	if pt, ok := r.PointAtDistanceKM(-5); !ok || pt != r.Shape[0] {
		t.Errorf("negative clamps to start, got %+v/%v", pt, ok)
	}
	if pt, ok := r.PointAtDistanceKM(r.LengthKM() + 1); !ok || pt != r.Shape[2] {
		t.Errorf("beyond length clamps to end, got %+v/%v", pt, ok)
	}

	legKM := r.CumKM[1]
	pt, ok := r.PointAtDistanceKM(legKM / 2)
	if !ok || !almostEqual(pt.Lat, 9.01, 1e-6) || !almostEqual(pt.Lng, 38.70, 1e-9) {
		t.Errorf("midway point = %+v/%v, want (9.01, 38.70)", pt, ok)
	}

	// Round trip: distance-along of the interpolated point lands back where
	// we asked.
	probe := r.LengthKM() * 0.7
	pt, _ = r.PointAtDistanceKM(probe)
	if got := r.DistanceAlongShapeKM(pt.Lat, pt.Lng); !almostEqual(got, probe, 0.01) {
		t.Errorf("round trip %f -> %f", probe, got)
	}

	empty := &Route{}
	if _, ok := empty.PointAtDistanceKM(1); ok {
		t.Error("empty shape must not yield a point")
	}
}
