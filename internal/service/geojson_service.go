package service

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/jengzang/roadsurvey-backend-go/internal/models"
	"github.com/jengzang/roadsurvey-backend-go/internal/spatial"
)

// GetGeoJSON exports the live polylines as a FeatureCollection with one
// LineString feature per segment. lanes limits the export; nil means all lanes.
func (s *LaneService) GetGeoJSON(lanes []models.LaneID, breachesOnly bool) *geojson.FeatureCollection {
	snap := s.session.Snapshot()
	fc := geojson.NewFeatureCollection()

	if lanes == nil {
		for i := 0; i < models.LaneCount; i++ {
			lanes = append(lanes, models.LaneID(i))
		}
	}

	var coords []models.Coordinate
	for _, lane := range lanes {
		if !lane.Valid() {
			continue
		}
		for _, seg := range snap.Polylines[lane] {
			if breachesOnly && seg.WithinThreshold {
				continue
			}
			fc.Append(segmentFeature(seg))
			coords = append(coords, seg.Coords[:]...)
		}
	}

	if b, ok := spatial.BoundingBox(coords); ok {
		fc.BBox = geojson.BBox{b.MinLon, b.MinLat, b.MaxLon, b.MaxLat}
	}

	fc.ExtraMembers = geojson.Properties{
		"session": snap.Session.ID,
		"feed":    snap.Session.Feed,
	}
	return fc
}

func segmentFeature(seg models.Segment) *geojson.Feature {
	line := orb.LineString{
		orb.Point{seg.Start().Lon, seg.Start().Lat},
		orb.Point{seg.End().Lon, seg.End().Lat},
	}

	f := geojson.NewFeature(line)
	f.Properties["lane"] = seg.Lane.String()
	f.Properties["messageSeq"] = seg.MessageSeq
	f.Properties["withinThreshold"] = seg.WithinThreshold
	f.Properties["lengthMeters"] = seg.LengthMeters
	if len(seg.Breaches) > 0 {
		f.Properties["breaches"] = seg.Breaches
	}
	setMetric(f.Properties, "roughnessBI", seg.Metrics.RoughnessBI)
	setMetric(f.Properties, "rutDepth", seg.Metrics.RutDepth)
	setMetric(f.Properties, "crackArea", seg.Metrics.CrackArea)
	setMetric(f.Properties, "ravellingArea", seg.Metrics.RavellingArea)
	return f
}

func setMetric(props geojson.Properties, key string, v *float64) {
	if v != nil {
		props[key] = *v
	}
}
