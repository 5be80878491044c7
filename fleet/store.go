package fleet

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type entry struct {
	mu    sync.Mutex
	state VehicleState
	seq   uint64
}

// Store maps vehicle ids to their latest accepted state. Entries are created
// on first report and never physically removed while the process runs.
type Store struct {
	mu       sync.RWMutex
	vehicles map[string]*entry
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{vehicles: map[string]*entry{}}
}

func (s *Store) entryFor(vehicleID string) *entry {
	s.mu.RLock()
	e := s.vehicles[vehicleID]
	s.mu.RUnlock()
	if e != nil {
		return e
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if e = s.vehicles[vehicleID]; e == nil {
		e = &entry{}
		s.vehicles[vehicleID] = e
	}
	return e
}

// Upsert applies a report. Last writer wins by report timestamp: a report
// whose timestamp is not strictly greater than the stored one is rejected
// with ErrStaleReport. On acceptance the returned state carries the next
// per-vehicle sequence number.
func (s *Store) Upsert(st VehicleState) (VehicleState, error) {
	e := s.entryFor(st.VehicleID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.state.UpdatedAt.IsZero() && !st.UpdatedAt.After(e.state.UpdatedAt) {
		return e.state, ErrStaleReport
	}

	e.seq++
	st.Seq = e.seq
	st.Stale = false
	e.state = st
	return st, nil
}

// Get returns the stored state for the vehicle, stale or not.
func (s *Store) Get(vehicleID string) (VehicleState, error) {
	s.mu.RLock()
	e := s.vehicles[vehicleID]
	s.mu.RUnlock()
	if e == nil {
		return VehicleState{}, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.UpdatedAt.IsZero() {
		return VehicleState{}, ErrNotFound
	}
	return e.state, nil
}

// Snapshot returns a copy of every state keep accepts. Order is unspecified.
func (s *Store) Snapshot(keep func(VehicleState) bool) []VehicleState {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.vehicles))
	for _, e := range s.vehicles {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]VehicleState, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		st := e.state
		e.mu.Unlock()
		if st.UpdatedAt.IsZero() {
			continue
		}
		if keep == nil || keep(st) {
			out = append(out, st)
		}
	}
	return out
}

// Len reports the number of vehicles ever seen.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vehicles)
}

// SweepStale flips Stale on every entry whose last report is older than the
// window. Returns how many entries were flipped this pass.
func (s *Store) SweepStale(window time.Duration, now time.Time) int {
	cutoff := now.Add(-window)
	flipped := 0
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.vehicles))
	for _, e := range s.vehicles {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	for _, e := range entries {
		e.mu.Lock()
		if !e.state.UpdatedAt.IsZero() && !e.state.Stale && e.state.UpdatedAt.Before(cutoff) {
			e.state.Stale = true
			flipped++
		}
		e.mu.Unlock()
	}
	return flipped
}

// RunSweeper periodically sweeps until the context is cancelled. onSweep, if
// non-nil, observes each pass (flipped count and duration) for metrics.
func (s *Store) RunSweeper(ctx context.Context, window, interval time.Duration, onSweep func(flipped int, took time.Duration)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			flipped := s.SweepStale(window, start)
			took := time.Since(start)
			if flipped > 0 {
				slog.Debug("staleness sweep", "flipped", flipped, "took", took)
			}
			if onSweep != nil {
				onSweep(flipped, took)
			}
		}
	}
}
