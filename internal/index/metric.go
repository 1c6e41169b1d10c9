package index

import (
	"fmt"
	"math"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// Metric is the similarity used for ranking. Scores are higher-is-better
// for every metric.
type Metric string

const (
	// MetricCosine scores by cosine similarity in [-1, 1].
	MetricCosine Metric = "cosine"
	// MetricL2 scores by negative Euclidean distance.
	MetricL2 Metric = "l2"
)

// ParseMetric validates a metric name.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case MetricCosine, MetricL2:
		return Metric(s), nil
	default:
		return "", fmt.Errorf("unknown metric %q: %w", s, domain.ErrInvalidConfig)
	}
}

// Score compares two vectors of equal length.
func (m Metric) Score(a, b []float32) float32 {
	if m == MetricL2 {
		return -L2Distance(a, b)
	}
	return CosineSimilarity(a, b)
}

// CosineSimilarity returns cos(a, b), or 0 when either vector has zero norm.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// L2Distance returns the Euclidean distance between a and b.
func L2Distance(a, b []float32) float32 {
	if len(a) != len(b) {
		return math.MaxFloat32
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(math.Sqrt(sum))
}
