package analysis

import (
	"fmt"

	"github.com/jengzang/roadsurvey-backend-go/internal/models"
	"github.com/jengzang/roadsurvey-backend-go/internal/spatial"
)

// LaneAggregator owns the per-lane polylines and running counters.
// It is not safe for concurrent use; callers serialize access.
type LaneAggregator struct {
	polylines [models.LaneCount]models.Polyline
	stats     [models.LaneCount]models.LaneStats
	received  int64
}

// NewLaneAggregator creates an empty aggregator
func NewLaneAggregator() *LaneAggregator {
	a := &LaneAggregator{}
	a.Clear()
	return a
}

// MarkReceived counts one inbound message and returns the new total
func (a *LaneAggregator) MarkReceived() int64 {
	a.received++
	return a.received
}

// Received returns the number of messages counted since the last clear
func (a *LaneAggregator) Received() int64 {
	return a.received
}

// Ingest classifies seg against thresholds and appends it to the lane.
// The stored segment is returned.
func (a *LaneAggregator) Ingest(lane models.LaneID, seg models.Segment, thresholds models.ThresholdSnapshot) (models.Segment, error) {
	if !lane.Valid() {
		return models.Segment{}, fmt.Errorf("%w: %d", models.ErrInvalidLane, int(lane))
	}

	seg.Lane = lane
	seg.Breaches = Breaches(seg.Metrics, thresholds)
	seg.WithinThreshold = len(seg.Breaches) == 0
	seg.LengthMeters = spatial.HaversineDistance(seg.Start(), seg.End())
	seg.Bearing = spatial.Bearing(seg.Start(), seg.End())

	a.polylines[lane] = append(a.polylines[lane], seg)

	st := &a.stats[lane]
	st.TotalSegments++
	if seg.WithinThreshold {
		st.SegmentsWithinThreshold++
	}
	st.PercentageWithinThreshold = percentage(st.SegmentsWithinThreshold, st.TotalSegments)

	return seg, nil
}

// Clear resets every polyline, every lane counter and the message count
func (a *LaneAggregator) Clear() {
	for i := range a.polylines {
		a.polylines[i] = models.Polyline{}
		a.stats[i] = models.LaneStats{
			Lane:   models.LaneID(i),
			Prefix: models.LaneID(i).String(),
		}
	}
	a.received = 0
}

// Stats returns the counters of one lane
func (a *LaneAggregator) Stats(lane models.LaneID) models.LaneStats {
	return a.stats[lane]
}

// Polyline returns a copy of one lane's segments
func (a *LaneAggregator) Polyline(lane models.LaneID) models.Polyline {
	return clonePolyline(a.polylines[lane])
}

// Snapshot copies the aggregator state into dst
func (a *LaneAggregator) Snapshot(dst *models.SessionSnapshot) {
	for i := range a.polylines {
		dst.Polylines[i] = clonePolyline(a.polylines[i])
	}
	dst.LaneStats = a.stats
	dst.Session.TotalSegmentsReceived = a.received
}

func percentage(within, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(within) / float64(total) * 100
}

func clonePolyline(p models.Polyline) models.Polyline {
	out := make(models.Polyline, len(p))
	for i, s := range p {
		s.Breaches = append([]string(nil), s.Breaches...)
		s.Metrics = models.MetricSet{
			RoughnessBI:   cloneFloat(s.Metrics.RoughnessBI),
			RutDepth:      cloneFloat(s.Metrics.RutDepth),
			CrackArea:     cloneFloat(s.Metrics.CrackArea),
			RavellingArea: cloneFloat(s.Metrics.RavellingArea),
		}
		out[i] = s
	}
	return out
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
