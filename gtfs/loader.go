package gtfs

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// rawFeed accumulates the GTFS CSV contents before assembly into a Snapshot.
type rawFeed struct {
	agencyID   string
	agencyName string

	stopName  map[string]string
	stopCoord map[string][2]float64 // stop_id -> [lat,lng]

	routeShortName map[string]string
	routeColor     map[string]string

	tripRoute map[string]string
	tripShape map[string]string

	tripStops map[string][]seqStop // trip_id -> ordered by stop_sequence

	shapePoints map[string][]shapePoint
}

type seqStop struct {
	stopID string
	seq    int
}

type shapePoint struct {
	pt  Waypoint
	seq int
}

func newRawFeed() *rawFeed {
	return &rawFeed{
		stopName:       map[string]string{},
		stopCoord:      map[string][2]float64{},
		routeShortName: map[string]string{},
		routeColor:     map[string]string{},
		tripRoute:      map[string]string{},
		tripShape:      map[string]string{},
		tripStops:      map[string][]seqStop{},
		shapePoints:    map[string][]shapePoint{},
	}
}

// LoadFromURL fetches a GTFS static zip over HTTP and builds a snapshot.
func LoadFromURL(url string) (*Snapshot, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, fmt.Errorf("gtfs: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gtfs: fetch %s: HTTP %d", url, resp.StatusCode)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gtfs: read %s: %w", url, err)
	}
	return LoadFromBytes(b)
}

// LoadFromFile opens a local GTFS zip and builds a snapshot.
func LoadFromFile(path string) (*Snapshot, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("gtfs: open %s: %w", path, err)
	}
	return LoadFromBytes(b)
}

// LoadFromBytes builds a snapshot from an in-memory GTFS zip.
func LoadFromBytes(b []byte) (*Snapshot, error) {
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, fmt.Errorf("gtfs: open zip: %w", err)
	}
	raw := newRawFeed()
	for _, f := range zr.File {
		name := strings.ToLower(f.Name)
		switch name {
		case "agency.txt", "stops.txt", "routes.txt", "trips.txt", "stop_times.txt", "shapes.txt":
			if err := raw.consumeCSV(f); err != nil {
				return nil, fmt.Errorf("gtfs: %s: %w", name, err)
			}
		}
	}
	return raw.assemble()
}

func (raw *rawFeed) consumeCSV(f *zip.File) error {
	r, err := f.Open()
	if err != nil {
		return err
	}
	defer r.Close()
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1
	rec, err := csvr.ReadAll()
	if err != nil {
		return err
	}
	if len(rec) < 2 {
		return nil
	}
	head := rec[0]
	idx := func(col string) int {
		for i, h := range head {
			if strings.EqualFold(strings.TrimSpace(h), col) {
				return i
			}
		}
		return -1
	}
	field := func(row []string, i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	switch strings.ToLower(f.Name) {
	case "agency.txt":
		aID := idx("agency_id")
		aName := idx("agency_name")
		if row := rec[1]; true {
			raw.agencyID = field(row, aID)
			raw.agencyName = field(row, aName)
		}
	case "stops.txt":
		sID := idx("stop_id")
		sName := idx("stop_name")
		sLat := idx("stop_lat")
		sLng := idx("stop_lon")
		for _, row := range rec[1:] {
			id := field(row, sID)
			if id == "" {
				continue
			}
			raw.stopName[id] = field(row, sName)
			lat, err1 := strconv.ParseFloat(field(row, sLat), 64)
			lng, err2 := strconv.ParseFloat(field(row, sLng), 64)
			if err1 == nil && err2 == nil {
				raw.stopCoord[id] = [2]float64{lat, lng}
			}
		}
	case "routes.txt":
		rID := idx("route_id")
		rSN := idx("route_short_name")
		rCol := idx("route_color")
		for _, row := range rec[1:] {
			id := field(row, rID)
			if id == "" {
				continue
			}
			raw.routeShortName[id] = field(row, rSN)
			raw.routeColor[id] = field(row, rCol)
		}
	case "trips.txt":
		rID := idx("route_id")
		tID := idx("trip_id")
		sh := idx("shape_id")
		for _, row := range rec[1:] {
			trip := field(row, tID)
			if trip == "" {
				continue
			}
			raw.tripRoute[trip] = field(row, rID)
			raw.tripShape[trip] = field(row, sh)
		}
	case "stop_times.txt":
		tID := idx("trip_id")
		sID := idx("stop_id")
		sq := idx("stop_sequence")
		if tID < 0 || sID < 0 || sq < 0 {
			return nil
		}
		for _, row := range rec[1:] {
			trip := field(row, tID)
			stop := field(row, sID)
			seq, err := strconv.Atoi(field(row, sq))
			if trip == "" || stop == "" || err != nil {
				continue
			}
			raw.tripStops[trip] = append(raw.tripStops[trip], seqStop{stopID: stop, seq: seq})
		}
	case "shapes.txt":
		shID := idx("shape_id")
		shLat := idx("shape_pt_lat")
		shLng := idx("shape_pt_lon")
		shSeq := idx("shape_pt_sequence")
		for _, row := range rec[1:] {
			id := field(row, shID)
			lat, err1 := strconv.ParseFloat(field(row, shLat), 64)
			lng, err2 := strconv.ParseFloat(field(row, shLng), 64)
			seq, err3 := strconv.Atoi(field(row, shSeq))
			if id == "" || err1 != nil || err2 != nil || err3 != nil {
				continue
			}
			raw.shapePoints[id] = append(raw.shapePoints[id], shapePoint{pt: Waypoint{Lat: lat, Lng: lng}, seq: seq})
		}
	}
	return nil
}

// assemble turns the raw CSV maps into the immutable snapshot. Route stop
// order comes from the trip with the most stops on that route (richest
// pattern wins, ties broken by trip id).
func (raw *rawFeed) assemble() (*Snapshot, error) {
	for _, arr := range raw.tripStops {
		sort.Slice(arr, func(i, j int) bool { return arr[i].seq < arr[j].seq })
	}
	for _, arr := range raw.shapePoints {
		sort.Slice(arr, func(i, j int) bool { return arr[i].seq < arr[j].seq })
	}

	// Pick the representative trip per route.
	routeTrip := map[string]string{}
	for trip, stops := range raw.tripStops {
		routeID := raw.tripRoute[trip]
		if routeID == "" {
			continue
		}
		cur, ok := routeTrip[routeID]
		if !ok || len(stops) > len(raw.tripStops[cur]) ||
			(len(stops) == len(raw.tripStops[cur]) && trip < cur) {
			routeTrip[routeID] = trip
		}
	}

	snap := &Snapshot{
		AgencyID:   raw.agencyID,
		AgencyName: raw.agencyName,
		LoadedAt:   time.Now(),
		stops:      map[string]*Stop{},
		routes:     map[string]*Route{},
	}

	for id, coord := range raw.stopCoord {
		snap.stops[id] = &Stop{
			ID:   id,
			Name: raw.stopName[id],
			Lat:  coord[0],
			Lng:  coord[1],
		}
	}

	for routeID, trip := range routeTrip {
		stopIDs := make([]string, 0, len(raw.tripStops[trip]))
		for _, ss := range raw.tripStops[trip] {
			if _, ok := snap.stops[ss.stopID]; ok {
				stopIDs = append(stopIDs, ss.stopID)
			}
		}
		if len(stopIDs) == 0 {
			continue
		}

		shape := raw.shapeFor(trip, stopIDs, snap)
		route := &Route{
			ID:        routeID,
			ShortName: raw.routeShortName[routeID],
			Color:     raw.routeColor[routeID],
			StopIDs:   stopIDs,
			Shape:     shape,
			CumKM:     cumulativeKM(shape),
			StopKM:    map[string]float64{},
		}

		// Project each stop onto the shape. Distances are forced
		// non-decreasing in stop order so ETA math stays monotonic even
		// when a noisy shape makes a stop project slightly backwards.
		prev := 0.0
		for _, stopID := range stopIDs {
			st := snap.stops[stopID]
			km := route.DistanceAlongShapeKM(st.Lat, st.Lng)
			if km < prev {
				km = prev
			}
			route.StopKM[stopID] = km
			prev = km
		}
		snap.routes[routeID] = route
	}

	// Stop -> route membership.
	for _, route := range snap.routes {
		for _, stopID := range route.StopIDs {
			st := snap.stops[stopID]
			st.RouteIDs = append(st.RouteIDs, route.ID)
		}
	}
	for _, st := range snap.stops {
		sort.Strings(st.RouteIDs)
	}

	if len(snap.stops) == 0 || len(snap.routes) == 0 {
		return nil, ErrEmptyFeed
	}
	return snap, nil
}

// shapeFor returns the trip's shape polyline, falling back to the straight
// stop-to-stop sequence when shapes.txt has nothing for it.
func (raw *rawFeed) shapeFor(trip string, stopIDs []string, snap *Snapshot) []Waypoint {
	if shapeID := raw.tripShape[trip]; shapeID != "" {
		if pts := raw.shapePoints[shapeID]; len(pts) >= 2 {
			shape := make([]Waypoint, 0, len(pts))
			for _, p := range pts {
				shape = append(shape, p.pt)
			}
			return shape
		}
	}
	shape := make([]Waypoint, 0, len(stopIDs))
	for _, stopID := range stopIDs {
		st := snap.stops[stopID]
		shape = append(shape, Waypoint{Lat: st.Lat, Lng: st.Lng})
	}
	return shape
}
