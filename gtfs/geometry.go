package gtfs

import "math"

const earthRadiusKM = 6371.0

// HaversineKM returns the great-circle distance between two points in
// kilometers, on a spherical Earth. Adequate at city scale; not
// geodesic-exact.
func HaversineKM(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180
	la1 := lat1 * math.Pi / 180
	la2 := lat2 * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(la1)*math.Cos(la2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKM * c
}

// HaversineMeters returns the great-circle distance in meters.
func HaversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	return HaversineKM(lat1, lng1, lat2, lng2) * 1000
}

func cumulativeKM(pts []Waypoint) []float64 {
	if len(pts) == 0 {
		return nil
	}
	cum := make([]float64, len(pts))
	for i := 1; i < len(pts); i++ {
		cum[i] = cum[i-1] + HaversineKM(pts[i-1].Lat, pts[i-1].Lng, pts[i].Lat, pts[i].Lng)
	}
	return cum
}

// nearestSegmentProjection projects a point onto the closest segment of a
// polyline. The projection is planar in degree space, which is fine for the
// short segments city shapes are made of. Returns the segment index, the
// fractional position on it, and the squared degree distance.
func nearestSegmentProjection(pts []Waypoint, lat, lng float64) (int, float64, float64) {
	bestSeg := 0
	bestT := 0.0
	minDist := math.MaxFloat64
	for i := 0; i < len(pts)-1; i++ {
		vx := pts[i+1].Lng - pts[i].Lng
		vy := pts[i+1].Lat - pts[i].Lat
		wx := lng - pts[i].Lng
		wy := lat - pts[i].Lat

		denom := vx*vx + vy*vy
		t := 0.0
		if denom > 0 {
			t = (wx*vx + wy*vy) / denom
			if t < 0 {
				t = 0
			} else if t > 1 {
				t = 1
			}
		}

		px := pts[i].Lng + t*vx
		py := pts[i].Lat + t*vy
		dx := lng - px
		dy := lat - py
		dist := dx*dx + dy*dy
		if dist < minDist {
			minDist = dist
			bestSeg = i
			bestT = t
		}
	}
	return bestSeg, bestT, minDist
}

// DistanceAlongShapeKM returns how far along the route's shape the given
// point lies, in kilometers from the shape start.
func (r *Route) DistanceAlongShapeKM(lat, lng float64) float64 {
	if len(r.Shape) < 2 {
		return 0
	}
	seg, t, _ := nearestSegmentProjection(r.Shape, lat, lng)
	segKM := r.CumKM[seg+1] - r.CumKM[seg]
	return r.CumKM[seg] + t*segKM
}

// PointAtDistanceKM returns the shape point at the given distance from the
// shape start, interpolating within segments. Clamps to the shape ends.
func (r *Route) PointAtDistanceKM(km float64) (Waypoint, bool) {
	if len(r.Shape) == 0 {
		return Waypoint{}, false
	}
	if len(r.Shape) == 1 || km <= 0 {
		return r.Shape[0], true
	}
	last := len(r.CumKM) - 1
	if km >= r.CumKM[last] {
		return r.Shape[last], true
	}
	seg := 0
	for i := 1; i <= last; i++ {
		if r.CumKM[i] >= km {
			seg = i - 1
			break
		}
	}
	t := 0.0
	if span := r.CumKM[seg+1] - r.CumKM[seg]; span > 0 {
		t = (km - r.CumKM[seg]) / span
	}
	return Waypoint{
		Lat: r.Shape[seg].Lat + t*(r.Shape[seg+1].Lat-r.Shape[seg].Lat),
		Lng: r.Shape[seg].Lng + t*(r.Shape[seg+1].Lng-r.Shape[seg].Lng),
	}, true
}

// LengthKM returns the total shape length.
func (r *Route) LengthKM() float64 {
	if len(r.CumKM) == 0 {
		return 0
	}
	return r.CumKM[len(r.CumKM)-1]
}
