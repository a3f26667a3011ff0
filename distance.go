package covertree

import (
	"errors"
	"math"

	"github.com/viant/vec/search"
)

// ErrUnknownDistanceKind is returned when an unknown distance kind is provided to NewDistance.
var ErrUnknownDistanceKind = errors.New("unknown distance kind")

// DistanceKind represents the type of distance metric to use for point comparisons.
// The cover tree only requires the metric-space axioms from its distance:
// non-negativity, symmetry, the triangle inequality, and zero iff equal.
type DistanceKind string

const (
	// Euclidean (L2) distance measures the straight-line distance between two points.
	// This is the default metric and satisfies all metric-space axioms.
	// Formula: sqrt(sum((a[i] - b[i])^2))
	Euclidean DistanceKind = "l2"

	// Manhattan (L1) distance sums the absolute per-dimension differences.
	// Satisfies all metric-space axioms. Often preferable for sparse or
	// heavy-tailed data.
	// Formula: sum(|a[i] - b[i]|)
	Manhattan DistanceKind = "l1"

	// Cosine distance measures angular difference (1 - cosine similarity).
	// Range: [0, 2]. Cosine is NOT a true metric (no triangle inequality),
	// so KNN pruning against it is best-effort rather than exact.
	// Formula: 1 - (dot(a,b) / (||a|| * ||b||))
	Cosine DistanceKind = "cosine"
)

// Singleton instances of distance strategies.
// These are stateless and can be safely reused across goroutines.
var (
	euclideanDistanceImpl = euclidean{}
	manhattanDistanceImpl = manhattan{}
	cosineDistanceImpl    = cosine{}
)

// Distance is the injected metric capability. Implementations are pure
// functions over two equal-dimension vectors and never own data.
type Distance interface {
	// Calculate computes the distance between two vectors a and b.
	// The vectors must have the same dimensionality.
	// Returns a non-negative float32 (lower values = more similar).
	Calculate(a, b []float32) float32

	// Kind returns the metric identifier.
	Kind() DistanceKind
}

// NewDistance returns a singleton Distance implementation for the specified metric type.
// The returned instances are stateless and safe for concurrent use across goroutines.
// Returns ErrUnknownDistanceKind if the distance kind is not recognized.
//
// Example:
//
//	dist, err := NewDistance(Euclidean)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	d := dist.Calculate([]float32{1, 2, 3}, []float32{4, 5, 6})
func NewDistance(t DistanceKind) (Distance, error) {
	switch t {
	case Euclidean:
		return euclideanDistanceImpl, nil
	case Manhattan:
		return manhattanDistanceImpl, nil
	case Cosine:
		return cosineDistanceImpl, nil
	default:
		return nil, ErrUnknownDistanceKind
	}
}

// euclidean implements the Distance interface using Euclidean (L2) distance.
// The inner kernel is delegated to the SIMD-accelerated viant/vec routines.
type euclidean struct{}

// Calculate computes the Euclidean (L2) distance between two vectors.
// Time complexity: O(n) where n is the vector dimension.
func (e euclidean) Calculate(a, b []float32) float32 {
	return search.Float32s(a).EuclideanDistance(b)
}

// Kind returns the metric identifier for Euclidean distance.
func (e euclidean) Kind() DistanceKind {
	return Euclidean
}

// manhattan implements the Distance interface using L1 (taxicab) distance.
type manhattan struct{}

// Calculate computes the Manhattan (L1) distance between two vectors.
// Time complexity: O(n) where n is the vector dimension.
func (m manhattan) Calculate(a, b []float32) float32 {
	var sum float32
	for i := range a {
		diff := a[i] - b[i]
		if diff < 0 {
			diff = -diff
		}
		sum += diff
	}
	return sum
}

// Kind returns the metric identifier for Manhattan distance.
func (m manhattan) Kind() DistanceKind {
	return Manhattan
}

// cosine implements the Distance interface using cosine distance
// (1 - cosine similarity). Magnitudes are computed per call; the tree does
// not assume normalized inputs.
type cosine struct{}

// Calculate computes the cosine distance between two vectors.
// A zero vector has undefined direction; distance to it is reported as the
// maximum (1.0) rather than NaN.
func (c cosine) Calculate(a, b []float32) float32 {
	va := search.Float32s(a)
	vb := search.Float32s(b)
	if va.Magnitude() == 0 || vb.Magnitude() == 0 {
		return 1
	}
	d := va.CosineDistance(b)
	if math.IsNaN(float64(d)) {
		return 1
	}
	return d
}

// Kind returns the metric identifier for cosine distance.
func (c cosine) Kind() DistanceKind {
	return Cosine
}
