package models

import (
	"encoding/json"
	"fmt"
)

// Coordinate is a (longitude, latitude) pair. Serialized as [lon, lat].
type Coordinate struct {
	Lon float64
	Lat float64
}

// MarshalJSON encodes the coordinate in GeoJSON order
func (c Coordinate) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{c.Lon, c.Lat})
}

// UnmarshalJSON decodes a [lon, lat] array
func (c *Coordinate) UnmarshalJSON(data []byte) error {
	var pair [2]float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("coordinate must be [lon, lat]: %w", err)
	}
	c.Lon, c.Lat = pair[0], pair[1]
	return nil
}

// MetricSet holds the condition metrics of one segment. A nil field was not reported.
type MetricSet struct {
	RoughnessBI   *float64 `json:"roughnessBI"`   // mm/km
	RutDepth      *float64 `json:"rutDepth"`      // mm
	CrackArea     *float64 `json:"crackArea"`     // % area
	RavellingArea *float64 `json:"ravellingArea"` // % area
}

// Segment represents one measured stretch of a lane between two GPS fixes
type Segment struct {
	Lane LaneID `json:"lane"`

	// Geometry
	Coords [2]Coordinate `json:"coords"` // start, end

	// Condition
	Metrics MetricSet `json:"metrics"`

	// Derived at ingest
	WithinThreshold bool     `json:"withinThreshold"`
	Breaches        []string `json:"breaches,omitempty"`
	LengthMeters    float64  `json:"lengthMeters"`
	Bearing         float64  `json:"bearing"` // degrees, 0 = north

	// Sequence number of the message that produced this segment
	MessageSeq int64 `json:"messageSeq"`
}

// Start returns the first coordinate of the segment
func (s Segment) Start() Coordinate { return s.Coords[0] }

// End returns the second coordinate of the segment
func (s Segment) End() Coordinate { return s.Coords[1] }

// LaneSegment pairs a freshly built segment with its lane
type LaneSegment struct {
	Lane    LaneID
	Segment Segment
}

// Polyline is the ordered segment sequence of one lane
type Polyline []Segment

// Path renders the polyline as a map path: the start of the first segment,
// then the end of every segment in receipt order.
func (p Polyline) Path() []Coordinate {
	if len(p) == 0 {
		return []Coordinate{}
	}
	path := make([]Coordinate, 0, len(p)+1)
	path = append(path, p[0].Start())
	for _, s := range p {
		path = append(path, s.End())
	}
	return path
}
