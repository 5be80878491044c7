// Package broadcast fans vehicle change events out to subscribers. Each
// subscription owns a bounded buffer drained by its own goroutine, so a slow
// consumer loses its own oldest events instead of throttling ingestion.
package broadcast

import (
	"time"

	"github.com/theoremus-urban-solutions/fleet-tracker/fleet"
)

// EventType discriminates the messages pushed to subscribers.
type EventType string

const (
	// EventVehicleUpdate carries a fresh vehicle state snapshot.
	EventVehicleUpdate EventType = "vehicle_update"
	// EventGap tells a subscriber that events were dropped for a vehicle
	// because its buffer overflowed; FromSeq..ToSeq were lost.
	EventGap EventType = "gap"
)

// Event is one message on a subscription channel. Update events fill the
// state fields; gap events fill FromSeq/ToSeq only.
type Event struct {
	Type       EventType    `json:"type"`
	VehicleID  string       `json:"vehicleId"`
	RouteID    string       `json:"routeId,omitempty"`
	Lat        float64      `json:"lat,omitempty"`
	Lng        float64      `json:"lng,omitempty"`
	HeadingDeg float64      `json:"headingDeg,omitempty"`
	SpeedKmh   float64      `json:"speedKmh,omitempty"`
	Occupancy  float64      `json:"occupancy,omitempty"`
	Status     fleet.Status `json:"status,omitempty"`
	Timestamp  time.Time    `json:"timestamp,omitzero"`
	Seq        uint64       `json:"sequence,omitempty"`
	FromSeq    uint64       `json:"fromSeq,omitempty"`
	ToSeq      uint64       `json:"toSeq,omitempty"`
}

// UpdateEvent builds a vehicle_update event from an accepted state.
func UpdateEvent(st fleet.VehicleState) Event {
	return Event{
		Type:       EventVehicleUpdate,
		VehicleID:  st.VehicleID,
		RouteID:    st.RouteID,
		Lat:        st.Lat,
		Lng:        st.Lng,
		HeadingDeg: st.HeadingDeg,
		SpeedKmh:   st.SpeedKmh,
		Occupancy:  st.Occupancy,
		Status:     st.Status,
		Timestamp:  st.UpdatedAt,
		Seq:        st.Seq,
	}
}

// Viewport is a geographic bounding box filter.
type Viewport struct {
	MinLat float64 `json:"minLat"`
	MinLng float64 `json:"minLng"`
	MaxLat float64 `json:"maxLat"`
	MaxLng float64 `json:"maxLng"`
}

// Contains reports whether the point lies inside the box.
func (v Viewport) Contains(lat, lng float64) bool {
	return lat >= v.MinLat && lat <= v.MaxLat && lng >= v.MinLng && lng <= v.MaxLng
}

// Filter selects which vehicle updates a subscription receives. The zero
// value matches everything. When both route ids and a viewport are set, an
// event must satisfy both.
type Filter struct {
	RouteIDs map[string]struct{}
	Viewport *Viewport
}

// RouteFilter builds a filter matching only the given routes.
func RouteFilter(routeIDs ...string) Filter {
	set := make(map[string]struct{}, len(routeIDs))
	for _, id := range routeIDs {
		set[id] = struct{}{}
	}
	return Filter{RouteIDs: set}
}

// Matches reports whether the filter grants visibility into the event.
func (f Filter) Matches(ev Event) bool {
	if len(f.RouteIDs) > 0 {
		if _, ok := f.RouteIDs[ev.RouteID]; !ok {
			return false
		}
	}
	if f.Viewport != nil && !f.Viewport.Contains(ev.Lat, ev.Lng) {
		return false
	}
	return true
}
