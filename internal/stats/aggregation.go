package stats

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/jengzang/roadsurvey-backend-go/internal/models"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// Max returns the largest value, or 0 for an empty slice
func Max(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return floats.Max(values)
}

// Summarize builds a MetricSummary over the given values
func Summarize(values []float64) models.MetricSummary {
	if len(values) == 0 {
		return models.MetricSummary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	return models.MetricSummary{
		Count: len(sorted),
		Mean:  Mean(sorted),
		Max:   Max(values),
		P50:   quantileSorted(sorted, 0.5),
		P90:   quantileSorted(sorted, 0.9),
	}
}

// MetricValues collects the reported values of one metric across a polyline.
// Segments that did not report the metric are skipped.
func MetricValues(p models.Polyline, pick func(models.MetricSet) *float64) []float64 {
	values := make([]float64, 0, len(p))
	for _, s := range p {
		if v := pick(s.Metrics); v != nil {
			values = append(values, *v)
		}
	}
	return values
}

// quantileSorted expects ascending input
func quantileSorted(sorted []float64, q float64) float64 {
	return stat.Quantile(q, stat.LinInterp, sorted, nil)
}
