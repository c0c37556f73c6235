package spatial

import "github.com/jengzang/roadsurvey-backend-go/internal/models"

// Bounds is a lon/lat bounding box
type Bounds struct {
	MinLon float64 `json:"minLon"`
	MinLat float64 `json:"minLat"`
	MaxLon float64 `json:"maxLon"`
	MaxLat float64 `json:"maxLat"`
}

// BoundingBox calculates the bounding box of a set of coordinates.
// The second return value is false when coords is empty.
func BoundingBox(coords []models.Coordinate) (Bounds, bool) {
	if len(coords) == 0 {
		return Bounds{}, false
	}

	b := Bounds{
		MinLon: coords[0].Lon, MaxLon: coords[0].Lon,
		MinLat: coords[0].Lat, MaxLat: coords[0].Lat,
	}
	for _, c := range coords[1:] {
		if c.Lat < b.MinLat {
			b.MinLat = c.Lat
		}
		if c.Lat > b.MaxLat {
			b.MaxLat = c.Lat
		}
		if c.Lon < b.MinLon {
			b.MinLon = c.Lon
		}
		if c.Lon > b.MaxLon {
			b.MaxLon = c.Lon
		}
	}

	return b, true
}

// PathLength calculates the total length of a path in meters
func PathLength(coords []models.Coordinate) float64 {
	if len(coords) < 2 {
		return 0
	}

	var totalDist float64
	for i := 1; i < len(coords); i++ {
		totalDist += HaversineDistance(coords[i-1], coords[i])
	}

	return totalDist
}

// SegmentLength sums the lengths of the individual segments of a polyline.
// Gaps between consecutive segments are not counted.
func SegmentLength(p models.Polyline) float64 {
	var total float64
	for _, s := range p {
		total += HaversineDistance(s.Start(), s.End())
	}
	return total
}
