// Package distance provides vector similarity primitives for the index.
//
// The store fixes its ranking metric at index creation time. The default is
// cosine similarity computed as the dot product of L2-normalized vectors,
// which keeps build-time and query-time scoring identical.
package distance

import (
	"fmt"
	"math"
	"slices"
)

// Dot calculates the dot product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Magnitude calculates the L2 norm of v.
func Magnitude(v []float32) float32 {
	return float32(math.Sqrt(float64(Dot(v, v))))
}

// NormalizeL2InPlace L2-normalizes v in place.
// Returns false if v has zero L2 norm.
func NormalizeL2InPlace(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	mag := Magnitude(v)
	if mag == 0 {
		return false
	}
	inv := 1 / mag
	for i := range v {
		v[i] *= inv
	}
	return true
}

// NormalizeL2Copy returns a normalized copy of src.
// Returns false if src has zero L2 norm.
func NormalizeL2Copy(src []float32) ([]float32, bool) {
	dst := slices.Clone(src)
	if !NormalizeL2InPlace(dst) {
		return nil, false
	}
	return dst, true
}

// Metric represents the similarity metric used for ranking.
type Metric int

const (
	// MetricCosine ranks by cosine similarity. Vectors are L2-normalized on
	// insert and query, so the score is the dot product of unit vectors.
	MetricCosine Metric = iota

	// MetricDot ranks by raw inner product without normalization.
	MetricDot
)

func (m Metric) String() string {
	switch m {
	case MetricCosine:
		return "cosine"
	case MetricDot:
		return "dot"
	default:
		return fmt.Sprintf("unknown(%d)", m)
	}
}

// MetricByName resolves a metric from its stable name, as stored in
// persisted index images.
func MetricByName(name string) (Metric, bool) {
	switch name {
	case "cosine":
		return MetricCosine, true
	case "dot":
		return MetricDot, true
	default:
		return 0, false
	}
}
