package models

import "time"

// LaneStats holds the running pass/fail counters of one lane
type LaneStats struct {
	Lane                      LaneID  `json:"lane"`
	Prefix                    string  `json:"prefix"`
	TotalSegments             int     `json:"totalSegments"`
	SegmentsWithinThreshold   int     `json:"segmentsWithinThreshold"`
	PercentageWithinThreshold float64 `json:"percentageWithinThreshold"` // 0-100
}

// SessionInfo describes the current transport session
type SessionInfo struct {
	ID                    string    `json:"id"`
	Feed                  string    `json:"feed,omitempty"`
	StartedAt             time.Time `json:"startedAt"`
	TotalSegmentsReceived int64     `json:"totalSegmentsReceived"` // inbound messages, not segments
	MalformedMessages     int64     `json:"malformedMessages"`
}

// SessionSnapshot is a deep copy of the committed session state
type SessionSnapshot struct {
	Session   SessionInfo          `json:"session"`
	Polylines [LaneCount]Polyline  `json:"polylines"`
	LaneStats [LaneCount]LaneStats `json:"laneStats"`
}

// MetricSummary summarizes one condition metric over a lane's segments
type MetricSummary struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Max   float64 `json:"max"`
	P50   float64 `json:"p50"`
	P90   float64 `json:"p90"`
}

// LaneSummary aggregates the metrics and geometry of one lane
type LaneSummary struct {
	Stats         LaneStats     `json:"stats"`
	LengthMeters  float64       `json:"lengthMeters"`
	Roughness     MetricSummary `json:"roughness"`
	RutDepth      MetricSummary `json:"rutDepth"`
	CrackArea     MetricSummary `json:"crackArea"`
	RavellingArea MetricSummary `json:"ravellingArea"`
}
