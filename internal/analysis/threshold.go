package analysis

import "github.com/jengzang/roadsurvey-backend-go/internal/models"

// Metric names reported in breach lists
const (
	MetricRoughness = "roughnessBI"
	MetricRutDepth  = "rutDepth"
	MetricCrackArea = "crackArea"
	MetricRavelling = "ravellingArea"
)

// Breaches returns the names of the metrics that exceed their threshold.
// A metric that was not reported never breaches.
func Breaches(m models.MetricSet, t models.ThresholdSnapshot) []string {
	var out []string
	if exceeds(m.RoughnessBI, t.RoughnessThreshold) {
		out = append(out, MetricRoughness)
	}
	if exceeds(m.RutDepth, t.RutDepthThreshold) {
		out = append(out, MetricRutDepth)
	}
	if exceeds(m.CrackArea, t.CrackingThreshold) {
		out = append(out, MetricCrackArea)
	}
	if exceeds(m.RavellingArea, t.RavellingThreshold) {
		out = append(out, MetricRavelling)
	}
	return out
}

// IsWithinThreshold reports whether every reported metric is at or below its threshold
func IsWithinThreshold(m models.MetricSet, t models.ThresholdSnapshot) bool {
	return len(Breaches(m, t)) == 0
}

func exceeds(v *float64, limit float64) bool {
	return v != nil && *v > limit
}
