package spatial

import (
	"math"

	"github.com/golang/geo/s2"

	"github.com/jengzang/roadsurvey-backend-go/internal/models"
)

// Constants
const (
	EarthRadiusMeters = 6371000.0 // Earth's mean radius in meters
)

// LatLng converts a lon/lat coordinate to an S2 LatLng
func LatLng(c models.Coordinate) s2.LatLng {
	return s2.LatLngFromDegrees(c.Lat, c.Lon)
}

// HaversineDistance calculates the great-circle distance between two coordinates in meters
func HaversineDistance(a, b models.Coordinate) float64 {
	return LatLng(a).Distance(LatLng(b)).Radians() * EarthRadiusMeters
}

// Bearing calculates the initial bearing (forward azimuth) from a to b.
// Returns bearing in degrees (0-360), where 0 is North, 90 is East, etc.
func Bearing(a, b models.Coordinate) float64 {
	p1, p2 := LatLng(a), LatLng(b)
	lat1 := p1.Lat.Radians()
	lat2 := p2.Lat.Radians()
	lonDiff := p2.Lng.Radians() - p1.Lng.Radians()

	y := math.Sin(lonDiff) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(lonDiff)
	bearing := math.Atan2(y, x)

	// Convert to degrees and normalize to 0-360
	bearingDeg := bearing * 180 / math.Pi
	return math.Mod(bearingDeg+360, 360)
}
