package analysis

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/roadsurvey-backend-go/internal/models"
)

func f(v float64) *float64 { return &v }

// laneFields returns the four coordinate fields of a lane
func laneFields(prefix string, startLon, startLat, endLon, endLat float64) Message {
	return Message{
		prefix + "StartLongitude": startLon,
		prefix + "StartLatitude":  startLat,
		prefix + "EndLongitude":   endLon,
		prefix + "EndLatitude":    endLat,
	}
}

func merge(msgs ...Message) Message {
	out := Message{}
	for _, m := range msgs {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

func TestBuildSegmentsWireFieldNames(t *testing.T) {
	payload := []byte(`{
		"L1StartLatitude": 10.0, "L1StartLongitude": 77.0,
		"L1EndLatitude": 10.01, "L1EndLongitude": 77.01,
		"L1LaneRoughnessBI(inmm/km)": 2000,
		"L1RutDepth(inmm)": 3.5,
		"L1CrackArea(in%area)": 1.25,
		"L1Area(%area)": 0.5
	}`)
	msg, err := DecodeMessage(payload)
	require.NoError(t, err)

	got := BuildSegments(msg, models.Schema(), PresenceTruthy)
	want := []models.LaneSegment{{
		Lane: models.LaneL1,
		Segment: models.Segment{
			Lane:   models.LaneL1,
			Coords: [2]models.Coordinate{{Lon: 77.0, Lat: 10.0}, {Lon: 77.01, Lat: 10.01}},
			Metrics: models.MetricSet{
				RoughnessBI:   f(2000),
				RutDepth:      f(3.5),
				CrackArea:     f(1.25),
				RavellingArea: f(0.5),
			},
		},
	}}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("BuildSegments() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildSegmentsSchemaOrder(t *testing.T) {
	msg := merge(
		laneFields("R4", 77.0, 10.0, 77.1, 10.1),
		laneFields("L2", 77.0, 10.0, 77.1, 10.1),
		laneFields("R1", 77.0, 10.0, 77.1, 10.1),
	)

	got := BuildSegments(msg, models.Schema(), PresenceTruthy)
	require.Len(t, got, 3)
	assert.Equal(t, models.LaneL2, got[0].Lane)
	assert.Equal(t, models.LaneR1, got[1].Lane)
	assert.Equal(t, models.LaneR4, got[2].Lane)
	for _, ls := range got {
		assert.Equal(t, ls.Lane, ls.Segment.Lane)
	}
}

func TestBuildSegmentsIncompleteLanes(t *testing.T) {
	complete := laneFields("L1", 77.0, 10.0, 77.01, 10.01)

	roles := []string{"StartLatitude", "StartLongitude", "EndLatitude", "EndLongitude"}
	for _, role := range roles {
		t.Run("missing "+role, func(t *testing.T) {
			msg := merge(complete, laneFields("R2", 77.0, 10.0, 77.01, 10.01))
			delete(msg, "R2"+role)

			got := BuildSegments(msg, models.Schema(), PresenceTruthy)
			require.Len(t, got, 1)
			assert.Equal(t, models.LaneL1, got[0].Lane)
		})

		t.Run("null "+role, func(t *testing.T) {
			msg := laneFields("R2", 77.0, 10.0, 77.01, 10.01)
			msg["R2"+role] = nil
			assert.Empty(t, BuildSegments(msg, models.Schema(), PresenceExplicit))
		})
	}
}

func TestBuildSegmentsZeroCoordinate(t *testing.T) {
	msg := laneFields("L3", 0, 51.5, 0.001, 51.501)

	assert.Empty(t, BuildSegments(msg, models.Schema(), PresenceTruthy))

	got := BuildSegments(msg, models.Schema(), PresenceExplicit)
	require.Len(t, got, 1)
	assert.Equal(t, models.Coordinate{Lon: 0, Lat: 51.5}, got[0].Segment.Start())
}

func TestBuildSegmentsZeroStringCoordinate(t *testing.T) {
	msg := laneFields("L1", 77.0, 10.0, 77.01, 10.01)
	msg["L1StartLatitude"] = "0"

	got := BuildSegments(msg, models.Schema(), PresenceTruthy)
	require.Len(t, got, 1)
	assert.Equal(t, models.LaneL1, got[0].Lane)
	assert.Equal(t, models.Coordinate{Lon: 77.0, Lat: 0}, got[0].Segment.Start())
}

func TestBuildSegmentsMissingMetrics(t *testing.T) {
	msg := laneFields("L4", 77.0, 10.0, 77.01, 10.01)
	msg["L4RutDepth(inmm)"] = "bad"

	got := BuildSegments(msg, models.Schema(), PresenceTruthy)
	require.Len(t, got, 1)
	assert.Equal(t, models.MetricSet{}, got[0].Segment.Metrics)
}

func TestBuildSegmentsEmptyMessage(t *testing.T) {
	assert.Empty(t, BuildSegments(Message{}, models.Schema(), PresenceTruthy))
}
