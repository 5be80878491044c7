// Package query answers point-in-time questions by composing the fleet
// store, the geo index, and the ETA estimator. The service holds no mutable
// state of its own and is safe for any number of concurrent readers; it
// reads reference data through a provider so reloads never block queries.
package query

import (
	"errors"
	"sort"

	"github.com/theoremus-urban-solutions/fleet-tracker/eta"
	"github.com/theoremus-urban-solutions/fleet-tracker/fleet"
	"github.com/theoremus-urban-solutions/fleet-tracker/geo"
	"github.com/theoremus-urban-solutions/fleet-tracker/gtfs"
)

var (
	// ErrUnknownRoute is returned for a route id absent from reference data.
	ErrUnknownRoute = errors.New("query: unknown route")
	// ErrUnknownStop is returned for a stop id absent from reference data.
	ErrUnknownStop = errors.New("query: unknown stop")
)

// RefProvider hands out the current reference snapshot and its geo index.
// Implementations swap both atomically on reload.
type RefProvider interface {
	Snapshot() *gtfs.Snapshot
	GeoIndex() *geo.Index
}

// LiveVehicle is one row of a live-vehicles-for-route response.
type LiveVehicle struct {
	VehicleID            string   `json:"vehicleId"`
	Lat                  float64  `json:"lat"`
	Lng                  float64  `json:"lng"`
	HeadingDeg           float64  `json:"headingDeg"`
	SpeedKmh             float64  `json:"speedKmh"`
	Occupancy            float64  `json:"occupancy"`
	ETAToNextStopMinutes *float64 `json:"etaToNextStopMinutes,omitempty"`
}

// NearbyStop is one row of a nearby-stops response.
type NearbyStop struct {
	StopID         string  `json:"stopId"`
	Name           string  `json:"name"`
	Lat            float64 `json:"lat"`
	Lng            float64 `json:"lng"`
	DistanceMeters float64 `json:"distanceMeters"`
}

// BoardEntry is one row of a stop's ETA board.
type BoardEntry struct {
	RouteID    string  `json:"routeId"`
	VehicleID  string  `json:"vehicleId"`
	ETAMinutes float64 `json:"etaMinutes"`
}

// Service is the read-side façade.
type Service struct {
	store *fleet.Store
	refs  RefProvider
	est   *eta.Estimator
}

// NewService wires the façade.
func NewService(store *fleet.Store, refs RefProvider, est *eta.Estimator) *Service {
	return &Service{store: store, refs: refs, est: est}
}

// LiveVehicles returns the active, non-stale vehicles on a route ordered by
// vehicle id, each with an ETA to its next stop when one can be computed.
func (s *Service) LiveVehicles(routeID string) ([]LiveVehicle, error) {
	snap := s.refs.Snapshot()
	route, ok := snap.Route(routeID)
	if !ok {
		return nil, ErrUnknownRoute
	}

	states := s.store.Snapshot(func(st fleet.VehicleState) bool {
		return st.RouteID == routeID && st.Live()
	})
	sort.Slice(states, func(i, j int) bool { return states[i].VehicleID < states[j].VehicleID })

	out := make([]LiveVehicle, 0, len(states))
	for _, st := range states {
		row := LiveVehicle{
			VehicleID:  st.VehicleID,
			Lat:        st.Lat,
			Lng:        st.Lng,
			HeadingDeg: st.HeadingDeg,
			SpeedKmh:   st.SpeedKmh,
			Occupancy:  st.Occupancy,
		}
		if nextStop, ok := s.nextStop(route, st); ok {
			if minutes, err := s.est.Estimate(st, route, nextStop); err == nil {
				row.ETAToNextStopMinutes = &minutes
			}
		}
		out = append(out, row)
	}
	return out, nil
}

// nextStop finds the first stop at or ahead of the vehicle's position along
// the route.
func (s *Service) nextStop(route *gtfs.Route, st fleet.VehicleState) (string, bool) {
	vehicleKM := route.DistanceAlongShapeKM(st.Lat, st.Lng)
	for _, stopID := range route.StopIDs {
		if route.StopKM[stopID] >= vehicleKM {
			return stopID, true
		}
	}
	return "", false
}

// NearbyStops returns stops within the radius ordered ascending by distance.
func (s *Service) NearbyStops(lat, lng, radiusMeters float64, limit int) []NearbyStop {
	hits := s.refs.GeoIndex().NearestStops(lat, lng, radiusMeters, limit)
	out := make([]NearbyStop, 0, len(hits))
	for _, h := range hits {
		out = append(out, NearbyStop{
			StopID:         h.Stop.ID,
			Name:           h.Stop.Name,
			Lat:            h.Stop.Lat,
			Lng:            h.Stop.Lng,
			DistanceMeters: h.DistanceMeters,
		})
	}
	return out
}

// ETABoard returns, for each route serving the stop, the estimate for the
// nearest active vehicle upstream of the stop. Routes with no such vehicle
// are omitted. Rows are ordered by route id.
func (s *Service) ETABoard(stopID string) ([]BoardEntry, error) {
	snap := s.refs.Snapshot()
	stop, ok := snap.Stop(stopID)
	if !ok {
		return nil, ErrUnknownStop
	}

	out := make([]BoardEntry, 0, len(stop.RouteIDs))
	for _, routeID := range stop.RouteIDs {
		route, ok := snap.Route(routeID)
		if !ok {
			continue
		}
		stopKM, ok := route.StopKM[stopID]
		if !ok {
			continue
		}

		states := s.store.Snapshot(func(st fleet.VehicleState) bool {
			return st.RouteID == routeID && st.Live()
		})

		// Nearest upstream vehicle: largest distance along the shape that
		// has not yet passed the stop.
		bestKM := -1.0
		var best fleet.VehicleState
		for _, st := range states {
			km := route.DistanceAlongShapeKM(st.Lat, st.Lng)
			if km <= stopKM && km > bestKM {
				bestKM = km
				best = st
			}
		}
		if bestKM < 0 {
			continue
		}
		minutes, err := s.est.Estimate(best, route, stopID)
		if err != nil {
			continue
		}
		out = append(out, BoardEntry{RouteID: routeID, VehicleID: best.VehicleID, ETAMinutes: minutes})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RouteID < out[j].RouteID })
	return out, nil
}
