// Package metrics exposes stream session activity as Prometheus metrics.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jengzang/roadsurvey-backend-go/internal/analysis"
	"github.com/jengzang/roadsurvey-backend-go/internal/models"
	"github.com/jengzang/roadsurvey-backend-go/internal/session"
)

// Observer implements session.Observer on top of Prometheus collectors
type Observer struct {
	sessions       prometheus.Counter
	messages       prometheus.Counter
	dropped        *prometheus.CounterVec
	segments       *prometheus.CounterVec
	segmentsPerMsg prometheus.Histogram
	segmentLength  prometheus.Histogram
	laneWithin     *prometheus.GaugeVec
	laneTotal      *prometheus.GaugeVec
	roughnessLimit prometheus.Gauge

	// mirrors the aggregator counters; only touched from the consumer goroutine
	counts [models.LaneCount]struct{ within, total int }
}

var _ session.Observer = (*Observer)(nil)

// NewObserver registers the collectors with reg
func NewObserver(reg prometheus.Registerer) *Observer {
	f := promauto.With(reg)

	return &Observer{
		sessions: f.NewCounter(prometheus.CounterOpts{
			Name: "roadsurvey_sessions_started_total",
			Help: "Stream sessions started (one per transport connection)",
		}),
		messages: f.NewCounter(prometheus.CounterOpts{
			Name: "roadsurvey_messages_processed_total",
			Help: "Telemetry messages applied to the lane state",
		}),
		dropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "roadsurvey_messages_dropped_total",
			Help: "Telemetry messages dropped before reaching the lane state",
		}, []string{"reason"}),
		segments: f.NewCounterVec(prometheus.CounterOpts{
			Name: "roadsurvey_segments_total",
			Help: "Segments appended, by lane and threshold verdict",
		}, []string{"lane", "verdict"}),
		segmentsPerMsg: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "roadsurvey_segments_per_message",
			Help:    "Number of lanes present in each message",
			Buckets: prometheus.LinearBuckets(0, 1, models.LaneCount+1),
		}),
		segmentLength: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "roadsurvey_segment_length_meters",
			Help:    "Great-circle length of appended segments",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1m to ~2km
		}),
		laneWithin: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "roadsurvey_lane_percentage_within_threshold",
			Help: "Share of the lane's segments within thresholds in the current session",
		}, []string{"lane"}),
		laneTotal: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "roadsurvey_lane_segments",
			Help: "Segments held for the lane in the current session",
		}, []string{"lane"}),
		roughnessLimit: f.NewGauge(prometheus.GaugeOpts{
			Name: "roadsurvey_roughness_threshold",
			Help: "Roughness threshold applied to the last message (mm/km)",
		}),
	}
}

// SessionStarted resets the per-session gauges
func (o *Observer) SessionStarted(models.SessionInfo) {
	o.sessions.Inc()
	for i := range o.counts {
		o.counts[i] = struct{ within, total int }{}
		lane := models.LaneID(i).String()
		o.laneWithin.WithLabelValues(lane).Set(0)
		o.laneTotal.WithLabelValues(lane).Set(0)
	}
}

// MessageProcessed records the segments of one applied message
func (o *Observer) MessageProcessed(res session.Result) {
	o.messages.Inc()
	o.segmentsPerMsg.Observe(float64(len(res.Segments)))
	o.roughnessLimit.Set(res.Thresholds.RoughnessThreshold)

	for _, seg := range res.Segments {
		lane := seg.Lane.String()
		verdict := "breach"
		c := &o.counts[seg.Lane]
		c.total++
		if seg.WithinThreshold {
			verdict = "within"
			c.within++
		}
		o.segments.WithLabelValues(lane, verdict).Inc()
		o.segmentLength.Observe(seg.LengthMeters)
		o.laneTotal.WithLabelValues(lane).Set(float64(c.total))
		o.laneWithin.WithLabelValues(lane).Set(float64(c.within) / float64(c.total) * 100)
	}
}

// MessageDropped counts a dropped message
func (o *Observer) MessageDropped(err error) {
	reason := "other"
	if errors.Is(err, analysis.ErrMalformedMessage) {
		reason = "malformed"
	}
	o.dropped.WithLabelValues(reason).Inc()
}
