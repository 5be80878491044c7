package fleet

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func stateAt(vehicleID string, ts time.Time) VehicleState {
	return VehicleState{
		VehicleID: vehicleID,
		RouteID:   "R1",
		Lat:       9.0125,
		Lng:       38.7578,
		SpeedKmh:  25,
		Status:    StatusActive,
		UpdatedAt: ts,
	}
}

func TestUpsert_InOrderReportsWin(t *testing.T) {
	s := NewStore()
	base := time.Unix(1000, 0)

	for i := 0; i < 5; i++ {
		st := stateAt("V1", base.Add(time.Duration(i)*time.Second))
		st.SpeedKmh = float64(10 + i)
		got, err := s.Upsert(st)
		if err != nil {
			t.Fatalf("upsert %d: %v", i, err)
		}
		if got.Seq != uint64(i+1) {
			t.Errorf("seq after upsert %d = %d, want %d", i, got.Seq, i+1)
		}
		cur, err := s.Get("V1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if cur.SpeedKmh != st.SpeedKmh || !cur.UpdatedAt.Equal(st.UpdatedAt) {
			t.Errorf("get after upsert %d = %+v, want speed %v at %v", i, cur, st.SpeedKmh, st.UpdatedAt)
		}
	}
}

func TestUpsert_RejectsOlderTimestamp(t *testing.T) {
	s := NewStore()

	first := stateAt("V1", time.Unix(100, 0))
	first.SpeedKmh = 25
	if _, err := s.Upsert(first); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	// Same vehicle, earlier timestamp: must be rejected, stored state kept.
	late := stateAt("V1", time.Unix(90, 0))
	late.Lat, late.Lng, late.SpeedKmh = 9.0130, 38.7580, 30
	if _, err := s.Upsert(late); !errors.Is(err, ErrStaleReport) {
		t.Fatalf("out-of-order upsert err = %v, want ErrStaleReport", err)
	}

	cur, err := s.Get("V1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !cur.UpdatedAt.Equal(time.Unix(100, 0)) || cur.SpeedKmh != 25 {
		t.Errorf("stored state changed by rejected report: %+v", cur)
	}
	if cur.Seq != 1 {
		t.Errorf("seq advanced by rejected report: %d", cur.Seq)
	}
}

func TestUpsert_EqualTimestampRejected(t *testing.T) {
	s := NewStore()
	ts := time.Unix(100, 0)
	if _, err := s.Upsert(stateAt("V1", ts)); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if _, err := s.Upsert(stateAt("V1", ts)); !errors.Is(err, ErrStaleReport) {
		t.Fatalf("duplicate timestamp err = %v, want ErrStaleReport", err)
	}
}

func TestUpsert_ReorderingIsIdempotent(t *testing.T) {
	// Whatever order reports arrive in, the store must end up holding the
	// max-timestamp report.
	orders := [][]int{
		{0, 1, 2, 3},
		{3, 2, 1, 0},
		{1, 3, 0, 2},
	}
	base := time.Unix(1000, 0)
	for _, order := range orders {
		s := NewStore()
		for _, i := range order {
			st := stateAt("V1", base.Add(time.Duration(i)*time.Second))
			st.SpeedKmh = float64(i)
			_, _ = s.Upsert(st)
		}
		cur, err := s.Get("V1")
		if err != nil {
			t.Fatalf("order %v: get: %v", order, err)
		}
		if cur.SpeedKmh != 3 || !cur.UpdatedAt.Equal(base.Add(3*time.Second)) {
			t.Errorf("order %v: final state %+v, want the t+3s report", order, cur)
		}
	}
}

func TestGet_UnknownVehicle(t *testing.T) {
	s := NewStore()
	if _, err := s.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSnapshot_Filter(t *testing.T) {
	s := NewStore()
	ts := time.Unix(100, 0)
	for _, id := range []string{"A", "B", "C"} {
		st := stateAt(id, ts)
		if id == "C" {
			st.RouteID = "R2"
		}
		if _, err := s.Upsert(st); err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
	}

	got := s.Snapshot(func(st VehicleState) bool { return st.RouteID == "R1" })
	if len(got) != 2 {
		t.Fatalf("snapshot returned %d states, want 2", len(got))
	}
	for _, st := range got {
		if st.RouteID != "R1" {
			t.Errorf("snapshot leaked %+v", st)
		}
	}
}

func TestSweepStale(t *testing.T) {
	s := NewStore()
	now := time.Unix(1000, 0)
	_, _ = s.Upsert(stateAt("OLD", now.Add(-2*time.Minute)))
	_, _ = s.Upsert(stateAt("FRESH", now.Add(-10*time.Second)))

	if flipped := s.SweepStale(time.Minute, now); flipped != 1 {
		t.Fatalf("first sweep flipped %d, want 1", flipped)
	}
	// Second pass over the same entries is a no-op.
	if flipped := s.SweepStale(time.Minute, now); flipped != 0 {
		t.Fatalf("second sweep flipped %d, want 0", flipped)
	}

	old, _ := s.Get("OLD")
	if !old.Stale {
		t.Error("OLD not marked stale")
	}
	if old.Live() {
		t.Error("stale vehicle reported as live")
	}
	fresh, _ := s.Get("FRESH")
	if fresh.Stale {
		t.Error("FRESH wrongly marked stale")
	}

	// The entry survives for diagnostics even while excluded from queries.
	live := s.Snapshot(func(st VehicleState) bool { return st.Live() })
	if len(live) != 1 || live[0].VehicleID != "FRESH" {
		t.Errorf("live snapshot = %+v, want only FRESH", live)
	}
	if s.Len() != 2 {
		t.Errorf("store len = %d, want 2", s.Len())
	}
}

func TestSweepStale_RevivedByNewReport(t *testing.T) {
	s := NewStore()
	now := time.Unix(1000, 0)
	_, _ = s.Upsert(stateAt("V1", now.Add(-2*time.Minute)))
	s.SweepStale(time.Minute, now)

	if _, err := s.Upsert(stateAt("V1", now)); err != nil {
		t.Fatalf("revival upsert: %v", err)
	}
	cur, _ := s.Get("V1")
	if cur.Stale {
		t.Error("fresh report did not clear the stale flag")
	}
}

func TestUpsert_ConcurrentVehicles(t *testing.T) {
	s := NewStore()
	base := time.Unix(1000, 0)
	const vehicles = 16
	const reports = 50

	var wg sync.WaitGroup
	for v := 0; v < vehicles; v++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			id := string(rune('A' + v))
			for i := 0; i < reports; i++ {
				_, _ = s.Upsert(stateAt(id, base.Add(time.Duration(i)*time.Second)))
			}
		}(v)
	}
	wg.Wait()

	for v := 0; v < vehicles; v++ {
		id := string(rune('A' + v))
		cur, err := s.Get(id)
		if err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
		if cur.Seq != reports {
			t.Errorf("%s seq = %d, want %d", id, cur.Seq, reports)
		}
		if !cur.UpdatedAt.Equal(base.Add((reports - 1) * time.Second)) {
			t.Errorf("%s final timestamp = %v", id, cur.UpdatedAt)
		}
	}
}
