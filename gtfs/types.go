package gtfs

import (
	"errors"
	"sort"
	"time"
)

var (
	// ErrEmptyFeed is returned when a GTFS feed yields no usable stops or routes.
	ErrEmptyFeed = errors.New("gtfs: feed contains no stops or routes")
	// ErrUnknownRoute is returned when a route id is absent from the snapshot.
	ErrUnknownRoute = errors.New("gtfs: unknown route")
	// ErrUnknownStop is returned when a stop id is absent from the snapshot.
	ErrUnknownStop = errors.New("gtfs: unknown stop")
)

// Waypoint is a single point of a route polyline.
type Waypoint struct {
	Lat float64
	Lng float64
}

// Stop is an immutable transit stop.
type Stop struct {
	ID       string
	Name     string
	Lat      float64
	Lng      float64
	RouteIDs []string // sorted; routes whose stop sequence includes this stop
}

// Route is an immutable transit route: ordered stops plus the shape vehicles
// follow. StopKM holds each stop's distance along the shape in kilometers,
// forced non-decreasing in stop order.
type Route struct {
	ID        string
	ShortName string
	Color     string
	StopIDs   []string
	Shape     []Waypoint
	CumKM     []float64 // cumulative km at each shape point
	StopKM    map[string]float64
}

// Snapshot is the full reference-data view loaded from one GTFS feed.
type Snapshot struct {
	AgencyID   string
	AgencyName string
	LoadedAt   time.Time

	stops  map[string]*Stop
	routes map[string]*Route
}

// Stop returns the stop with the given id.
func (s *Snapshot) Stop(id string) (*Stop, bool) {
	st, ok := s.stops[id]
	return st, ok
}

// Route returns the route with the given id.
func (s *Snapshot) Route(id string) (*Route, bool) {
	r, ok := s.routes[id]
	return r, ok
}

// Stops returns all stops ordered by id.
func (s *Snapshot) Stops() []*Stop {
	out := make([]*Stop, 0, len(s.stops))
	for _, st := range s.stops {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Routes returns all routes ordered by id.
func (s *Snapshot) Routes() []*Route {
	out := make([]*Route, 0, len(s.routes))
	for _, r := range s.routes {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// NumStops reports the number of stops in the snapshot.
func (s *Snapshot) NumStops() int { return len(s.stops) }

// NumRoutes reports the number of routes in the snapshot.
func (s *Snapshot) NumRoutes() int { return len(s.routes) }
