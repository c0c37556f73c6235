package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// LaneID identifies one of the eight surveyed lanes (0..7)
type LaneID int

// LaneCount is the fixed number of lanes carried by every message
const LaneCount = 8

// Lane identifiers in schema order
const (
	LaneL1 LaneID = iota
	LaneL2
	LaneL3
	LaneL4
	LaneR1
	LaneR2
	LaneR3
	LaneR4
)

// ErrInvalidLane is returned when a lane reference cannot be resolved
var ErrInvalidLane = errors.New("invalid lane")

// Metric field suffixes. These are the exact names sent by the survey vehicle.
const (
	roughnessSuffix = "LaneRoughnessBI(inmm/km)"
	rutDepthSuffix  = "RutDepth(inmm)"
	crackAreaSuffix = "CrackArea(in%area)"
	ravellingSuffix = "Area(%area)"
)

// LaneKey holds the message field names for a single lane
type LaneKey struct {
	ID       LaneID `json:"id"`
	Prefix   string `json:"prefix"`   // L1..L4, R1..R4
	StartLat string `json:"startLat"` // e.g. L1StartLatitude
	StartLon string `json:"startLon"`
	EndLat   string `json:"endLat"`
	EndLon   string `json:"endLon"`
}

// RoughnessField returns the roughness (IRI) field name for the lane
func (k LaneKey) RoughnessField() string { return k.Prefix + roughnessSuffix }

// RutDepthField returns the rut depth field name for the lane
func (k LaneKey) RutDepthField() string { return k.Prefix + rutDepthSuffix }

// CrackAreaField returns the crack area field name for the lane
func (k LaneKey) CrackAreaField() string { return k.Prefix + crackAreaSuffix }

// RavellingField returns the ravelling area field name for the lane
func (k LaneKey) RavellingField() string { return k.Prefix + ravellingSuffix }

func newLaneKey(id LaneID, prefix string) LaneKey {
	return LaneKey{
		ID:       id,
		Prefix:   prefix,
		StartLat: prefix + "StartLatitude",
		StartLon: prefix + "StartLongitude",
		EndLat:   prefix + "EndLatitude",
		EndLon:   prefix + "EndLongitude",
	}
}

// LaneSchema is the fixed lane table, indexed by LaneID
type LaneSchema [LaneCount]LaneKey

var defaultSchema = LaneSchema{
	newLaneKey(LaneL1, "L1"),
	newLaneKey(LaneL2, "L2"),
	newLaneKey(LaneL3, "L3"),
	newLaneKey(LaneL4, "L4"),
	newLaneKey(LaneR1, "R1"),
	newLaneKey(LaneR2, "R2"),
	newLaneKey(LaneR3, "R3"),
	newLaneKey(LaneR4, "R4"),
}

// Schema returns the lane table. The returned value is a copy.
func Schema() LaneSchema {
	return defaultSchema
}

// Valid reports whether id is one of the eight lanes
func (id LaneID) Valid() bool {
	return id >= 0 && int(id) < LaneCount
}

// String returns the lane prefix (L1..R4)
func (id LaneID) String() string {
	if !id.Valid() {
		return fmt.Sprintf("LaneID(%d)", int(id))
	}
	return defaultSchema[id].Prefix
}

// ParseLane resolves a lane prefix ("R2", case-insensitive) or numeric index ("5")
func ParseLane(s string) (LaneID, error) {
	s = strings.TrimSpace(s)
	for _, k := range defaultSchema {
		if strings.EqualFold(k.Prefix, s) {
			return k.ID, nil
		}
	}
	if n, err := strconv.Atoi(s); err == nil && LaneID(n).Valid() {
		return LaneID(n), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidLane, s)
}
