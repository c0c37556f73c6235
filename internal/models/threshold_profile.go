package models

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidThresholds is returned for negative or non-finite threshold values
var ErrInvalidThresholds = errors.New("invalid thresholds")

// ThresholdSnapshot is the set of quality limits a segment is classified against
type ThresholdSnapshot struct {
	RoughnessThreshold float64 `json:"roughnessThreshold"` // mm/km
	RutDepthThreshold  float64 `json:"rutDepthThreshold"`  // mm
	CrackingThreshold  float64 `json:"crackingThreshold"`  // % area
	RavellingThreshold float64 `json:"ravellingThreshold"` // % area
}

// DefaultThresholds returns the limits used when nothing else is configured
func DefaultThresholds() ThresholdSnapshot {
	return ThresholdSnapshot{
		RoughnessThreshold: 2400,
		RutDepthThreshold:  5,
		CrackingThreshold:  5,
		RavellingThreshold: 1,
	}
}

// Validate checks that every threshold is a finite, non-negative number
func (t ThresholdSnapshot) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"roughnessThreshold", t.RoughnessThreshold},
		{"rutDepthThreshold", t.RutDepthThreshold},
		{"crackingThreshold", t.CrackingThreshold},
		{"ravellingThreshold", t.RavellingThreshold},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) || f.value < 0 {
			return fmt.Errorf("%w: %s=%v", ErrInvalidThresholds, f.name, f.value)
		}
	}
	return nil
}

// ThresholdProfile is a named, stored threshold configuration
type ThresholdProfile struct {
	ID int64 `json:"id" db:"id"`

	// Profile identification
	Name        string `json:"name" db:"name"`
	Description string `json:"description,omitempty" db:"description"`
	IsDefault   bool   `json:"is_default" db:"is_default"`

	// Limits
	Thresholds ThresholdSnapshot `json:"thresholds"`

	// Metadata
	CreatedBy string    `json:"created_by,omitempty" db:"created_by"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
