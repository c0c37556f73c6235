package analysis

import (
	"github.com/jengzang/roadsurvey-backend-go/internal/models"
)

// BuildSegments maps one message onto the lane schema. Lanes whose four
// coordinate fields are not all present are skipped. The result is in
// schema order and carries geometry and metrics only.
func BuildSegments(msg Message, schema models.LaneSchema, mode PresenceMode) []models.LaneSegment {
	var out []models.LaneSegment

	for _, lane := range schema {
		startLat, ok1 := msg.Coordinate(lane.StartLat, mode)
		startLon, ok2 := msg.Coordinate(lane.StartLon, mode)
		endLat, ok3 := msg.Coordinate(lane.EndLat, mode)
		endLon, ok4 := msg.Coordinate(lane.EndLon, mode)
		if !(ok1 && ok2 && ok3 && ok4) {
			continue
		}

		out = append(out, models.LaneSegment{
			Lane: lane.ID,
			Segment: models.Segment{
				Lane: lane.ID,
				Coords: [2]models.Coordinate{
					{Lon: startLon, Lat: startLat},
					{Lon: endLon, Lat: endLat},
				},
				Metrics: models.MetricSet{
					RoughnessBI:   msg.Metric(lane.RoughnessField()),
					RutDepth:      msg.Metric(lane.RutDepthField()),
					CrackArea:     msg.Metric(lane.CrackAreaField()),
					RavellingArea: msg.Metric(lane.RavellingField()),
				},
			},
		})
	}

	return out
}
