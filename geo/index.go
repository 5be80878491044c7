// Package geo answers spatial queries over the stop reference data. The
// index is read-only after Build; a reference reload builds a fresh index.
// Distances use the haversine formula on a spherical Earth, which is a
// city-scale approximation, not a geodesic-exact one.
package geo

import (
	"math"
	"sort"

	"github.com/tidwall/rtree"

	"github.com/theoremus-urban-solutions/fleet-tracker/gtfs"
)

// metersPerDegreeLat is the spherical-Earth arc length of one degree of
// latitude, used to turn a radius into an rtree search box.
const metersPerDegreeLat = 6371000 * math.Pi / 180

// StopDistance is one nearestStops result row.
type StopDistance struct {
	Stop           *gtfs.Stop
	DistanceMeters float64
}

// Index is the stop spatial index.
type Index struct {
	tree *rtree.RTree
	snap *gtfs.Snapshot
}

// Build indexes every stop of the snapshot.
func Build(snap *gtfs.Snapshot) *Index {
	tree := &rtree.RTree{}
	for _, st := range snap.Stops() {
		tree.Insert(
			[2]float64{st.Lat, st.Lng},
			[2]float64{st.Lat, st.Lng},
			st,
		)
	}
	return &Index{tree: tree, snap: snap}
}

// NearestStops returns stops within radiusMeters of the point, ascending by
// distance, ties broken by stop id. limit <= 0 means no limit.
func (ix *Index) NearestStops(lat, lng, radiusMeters float64, limit int) []StopDistance {
	if radiusMeters <= 0 {
		return nil
	}

	latDelta := radiusMeters / metersPerDegreeLat
	cosLat := math.Cos(lat * math.Pi / 180)
	if cosLat < 0.01 {
		cosLat = 0.01 // polar guard; keeps the search box finite
	}
	lngDelta := radiusMeters / (metersPerDegreeLat * cosLat)

	var out []StopDistance
	ix.tree.Search(
		[2]float64{lat - latDelta, lng - lngDelta},
		[2]float64{lat + latDelta, lng + lngDelta},
		func(min, max [2]float64, data interface{}) bool {
			st, ok := data.(*gtfs.Stop)
			if !ok {
				return true
			}
			d := gtfs.HaversineMeters(lat, lng, st.Lat, st.Lng)
			if d <= radiusMeters {
				out = append(out, StopDistance{Stop: st, DistanceMeters: d})
			}
			return true
		},
	)

	sort.Slice(out, func(i, j int) bool {
		if out[i].DistanceMeters != out[j].DistanceMeters {
			return out[i].DistanceMeters < out[j].DistanceMeters
		}
		return out[i].Stop.ID < out[j].Stop.ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// StopsForRoute returns the route's stops in route order, not spatial order.
func (ix *Index) StopsForRoute(routeID string) ([]*gtfs.Stop, error) {
	route, ok := ix.snap.Route(routeID)
	if !ok {
		return nil, gtfs.ErrUnknownRoute
	}
	out := make([]*gtfs.Stop, 0, len(route.StopIDs))
	for _, stopID := range route.StopIDs {
		if st, ok := ix.snap.Stop(stopID); ok {
			out = append(out, st)
		}
	}
	return out, nil
}

// Snapshot returns the reference snapshot this index was built from.
func (ix *Index) Snapshot() *gtfs.Snapshot { return ix.snap }
