package covertree

import (
	"errors"
	"fmt"

	"github.com/x448/float16"
)

// ErrEmptyPointCloud is returned when a point cloud with zero points is constructed or built on.
var ErrEmptyPointCloud = errors.New("point cloud is empty")

// ErrDimensionMismatch is returned when point data does not match the declared dimension.
var ErrDimensionMismatch = errors.New("dimension mismatch")

// ErrLabelLengthMismatch is returned when the label array length differs from the point count.
var ErrLabelLengthMismatch = errors.New("label length mismatch")

// PointCloud is index-based, immutable-after-build storage of N points of
// uniform dimension with an optional uint64 label per point. The tree only
// requires random access by index; how vectors are laid out in memory is up
// to the implementation.
//
// Implementations must be safe for concurrent reads once constructed.
type PointCloud interface {
	// Len returns the number of points.
	Len() int

	// Dim returns the uniform dimensionality of all points.
	Dim() int

	// PointAt returns the dense vector of the point at index i.
	// The returned slice must be treated as read-only.
	PointAt(i int) []float32

	// LabelAt returns the label of the point at index i, or 0 when the
	// cloud was built without labels.
	LabelAt(i int) uint64
}

// ============================================================================
// DENSE STORAGE
// ============================================================================

// DensePointCloud stores points row-major in a single float32 slice.
// This is the default storage and the fastest to query.
type DensePointCloud struct {
	data   []float32
	dim    int
	labels []uint64
}

// Compile-time check to ensure DensePointCloud implements PointCloud
var _ PointCloud = (*DensePointCloud)(nil)

// NewDensePointCloud creates a dense point cloud from row-major data.
//
// Parameters:
//   - data: row-major float32 values, len(data) must be a multiple of dim
//   - dim: dimensionality of each point, must be positive
//   - labels: optional labels, one per point; pass nil for unlabeled data
//
// The cloud takes ownership of the slices; callers must not mutate them
// afterwards.
func NewDensePointCloud(data []float32, dim int, labels []uint64) (*DensePointCloud, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", ErrDimensionMismatch, dim)
	}
	if len(data) == 0 {
		return nil, ErrEmptyPointCloud
	}
	if len(data)%dim != 0 {
		return nil, fmt.Errorf("%w: %d values do not divide into dimension %d", ErrDimensionMismatch, len(data), dim)
	}
	n := len(data) / dim
	if labels != nil && len(labels) != n {
		return nil, fmt.Errorf("%w: %d labels for %d points", ErrLabelLengthMismatch, len(labels), n)
	}
	return &DensePointCloud{data: data, dim: dim, labels: labels}, nil
}

// NewDensePointCloudFromRows creates a dense point cloud from one slice per
// point. All rows must share the same length.
func NewDensePointCloudFromRows(rows [][]float32, labels []uint64) (*DensePointCloud, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyPointCloud
	}
	dim := len(rows[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: empty first row", ErrDimensionMismatch)
	}
	data := make([]float32, 0, len(rows)*dim)
	for i, row := range rows {
		if len(row) != dim {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrDimensionMismatch, i, len(row), dim)
		}
		data = append(data, row...)
	}
	return NewDensePointCloud(data, dim, labels)
}

// Len returns the number of points.
func (c *DensePointCloud) Len() int { return len(c.data) / c.dim }

// Dim returns the dimensionality of the points.
func (c *DensePointCloud) Dim() int { return c.dim }

// PointAt returns a read-only view of point i (no copy).
func (c *DensePointCloud) PointAt(i int) []float32 {
	return c.data[i*c.dim : (i+1)*c.dim]
}

// LabelAt returns the label of point i, or 0 for unlabeled clouds.
func (c *DensePointCloud) LabelAt(i int) uint64 {
	if c.labels == nil {
		return 0
	}
	return c.labels[i]
}

// ============================================================================
// HALF-PRECISION STORAGE
// ============================================================================

// HalfPointCloud stores points as IEEE 754 half-precision values, halving
// memory at the cost of ~3 decimal digits of precision and a decode on every
// access. Useful when the reference collection dominates resident memory.
type HalfPointCloud struct {
	bits   []uint16
	dim    int
	labels []uint64
}

// Compile-time check to ensure HalfPointCloud implements PointCloud
var _ PointCloud = (*HalfPointCloud)(nil)

// NewHalfPointCloud creates a half-precision point cloud by quantizing
// row-major float32 data. Validation rules match NewDensePointCloud.
func NewHalfPointCloud(data []float32, dim int, labels []uint64) (*HalfPointCloud, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", ErrDimensionMismatch, dim)
	}
	if len(data) == 0 {
		return nil, ErrEmptyPointCloud
	}
	if len(data)%dim != 0 {
		return nil, fmt.Errorf("%w: %d values do not divide into dimension %d", ErrDimensionMismatch, len(data), dim)
	}
	n := len(data) / dim
	if labels != nil && len(labels) != n {
		return nil, fmt.Errorf("%w: %d labels for %d points", ErrLabelLengthMismatch, len(labels), n)
	}
	bits := make([]uint16, len(data))
	for i, v := range data {
		bits[i] = float16.Fromfloat32(v).Bits()
	}
	return &HalfPointCloud{bits: bits, dim: dim, labels: labels}, nil
}

// Len returns the number of points.
func (c *HalfPointCloud) Len() int { return len(c.bits) / c.dim }

// Dim returns the dimensionality of the points.
func (c *HalfPointCloud) Dim() int { return c.dim }

// PointAt decodes point i into a freshly allocated float32 slice.
func (c *HalfPointCloud) PointAt(i int) []float32 {
	row := c.bits[i*c.dim : (i+1)*c.dim]
	out := make([]float32, c.dim)
	for j, b := range row {
		out[j] = float16.Frombits(b).Float32()
	}
	return out
}

// LabelAt returns the label of point i, or 0 for unlabeled clouds.
func (c *HalfPointCloud) LabelAt(i int) uint64 {
	if c.labels == nil {
		return 0
	}
	return c.labels[i]
}

// ============================================================================
// SPARSE STORAGE
// ============================================================================

// SparseVector is one mostly-zero point given as parallel index/value
// slices. Indices must be strictly increasing and below the cloud dimension.
type SparseVector struct {
	Indices []uint32
	Values  []float32
}

// SparsePointCloud stores points in CSR layout. PointAt materializes a dense
// row on every call, so dense storage is preferable for query-heavy use; CSR
// pays off when the data would not fit in memory densely.
type SparsePointCloud struct {
	indptr  []int
	indices []uint32
	values  []float32
	dim     int
	labels  []uint64
}

// Compile-time check to ensure SparsePointCloud implements PointCloud
var _ PointCloud = (*SparsePointCloud)(nil)

// NewSparsePointCloud creates a CSR point cloud from per-point sparse rows.
func NewSparsePointCloud(dim int, rows []SparseVector, labels []uint64) (*SparsePointCloud, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", ErrDimensionMismatch, dim)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyPointCloud
	}
	if labels != nil && len(labels) != len(rows) {
		return nil, fmt.Errorf("%w: %d labels for %d points", ErrLabelLengthMismatch, len(labels), len(rows))
	}
	c := &SparsePointCloud{
		indptr: make([]int, 1, len(rows)+1),
		dim:    dim,
		labels: labels,
	}
	for i, row := range rows {
		if len(row.Indices) != len(row.Values) {
			return nil, fmt.Errorf("%w: row %d has %d indices but %d values", ErrDimensionMismatch, i, len(row.Indices), len(row.Values))
		}
		prev := -1
		for _, idx := range row.Indices {
			if int(idx) >= dim {
				return nil, fmt.Errorf("%w: row %d index %d out of dimension %d", ErrDimensionMismatch, i, idx, dim)
			}
			if int(idx) <= prev {
				return nil, fmt.Errorf("%w: row %d indices not strictly increasing", ErrDimensionMismatch, i)
			}
			prev = int(idx)
		}
		c.indices = append(c.indices, row.Indices...)
		c.values = append(c.values, row.Values...)
		c.indptr = append(c.indptr, len(c.indices))
	}
	return c, nil
}

// Len returns the number of points.
func (c *SparsePointCloud) Len() int { return len(c.indptr) - 1 }

// Dim returns the dimensionality of the points.
func (c *SparsePointCloud) Dim() int { return c.dim }

// PointAt materializes point i into a freshly allocated dense slice.
func (c *SparsePointCloud) PointAt(i int) []float32 {
	out := make([]float32, c.dim)
	start, end := c.indptr[i], c.indptr[i+1]
	for j := start; j < end; j++ {
		out[c.indices[j]] = c.values[j]
	}
	return out
}

// LabelAt returns the label of point i, or 0 for unlabeled clouds.
func (c *SparsePointCloud) LabelAt(i int) uint64 {
	if c.labels == nil {
		return 0
	}
	return c.labels[i]
}
