package covertree

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidScaleBase is returned when the configured scale base is not greater than 1.
var ErrInvalidScaleBase = errors.New("scale base must be greater than 1")

// ErrInvalidLeafCutoff is returned when the configured leaf cutoff is not positive.
var ErrInvalidLeafCutoff = errors.New("leaf cutoff must be at least 1")

// ErrInvalidResolutionRange is returned when the configured resolution bounds are
// inverted or cannot accommodate the data's spread.
var ErrInvalidResolutionRange = errors.New("invalid resolution range")

// ErrBuilderConsumed is returned when Build is called on an already-consumed builder.
// A builder transitions into exactly one writer.
var ErrBuilderConsumed = errors.New("builder already consumed")

// Default builder configuration.
const (
	// DefaultScaleBase halves the covering radius at every layer.
	DefaultScaleBase float32 = 2.0

	// DefaultLeafCutoff consolidates subtrees of one point into singletons.
	DefaultLeafCutoff = 1

	// DefaultMinResIndex is the finest scale the construction will create.
	DefaultMinResIndex int32 = -40

	// DefaultMaxResIndex is the coarsest scale the construction will accept.
	DefaultMaxResIndex int32 = 40
)

// parameters is the frozen configuration a tree is built with, shared by the
// writer and every reader it issues.
type parameters struct {
	scaleBase     float32
	leafCutoff    int
	minResIndex   int32
	maxResIndex   int32
	useSingletons bool
	distanceKind  DistanceKind
}

// scaleRadius returns the covering radius at a scale: scaleBase^scale.
func (p *parameters) scaleRadius(scale int32) float32 {
	return float32(math.Pow(float64(p.scaleBase), float64(scale)))
}

// CoverTreeBuilder configures and runs cover-tree construction. Zero or more
// setters followed by one Build call; a builder is single-use.
//
// Example:
//
//	builder := NewCoverTreeBuilder()
//	builder.SetScaleBase(1.5)
//	builder.SetLeafCutoff(10)
//	writer, err := builder.Build(cloud, Euclidean)
type CoverTreeBuilder struct {
	scaleBase     float32
	leafCutoff    int
	minResIndex   int32
	maxResIndex   int32
	useSingletons bool
	consumed      bool
}

// NewCoverTreeBuilder returns a builder with the package defaults: scale
// base 2, leaf cutoff 1, resolution range [-40, 40], singletons enabled.
func NewCoverTreeBuilder() *CoverTreeBuilder {
	return &CoverTreeBuilder{
		scaleBase:     DefaultScaleBase,
		leafCutoff:    DefaultLeafCutoff,
		minResIndex:   DefaultMinResIndex,
		maxResIndex:   DefaultMaxResIndex,
		useSingletons: true,
	}
}

// SetScaleBase sets the geometric base of the covering radii. Must be
// greater than 1; smaller bases build deeper, tighter trees.
func (b *CoverTreeBuilder) SetScaleBase(base float32) { b.scaleBase = base }

// SetLeafCutoff sets the member count at or below which construction stops
// subdividing a subtree and records points as singletons instead.
func (b *CoverTreeBuilder) SetLeafCutoff(cutoff int) { b.leafCutoff = cutoff }

// SetMinResIndex sets the finest scale construction may create. Points that
// would descend below it become singletons of the node at the floor.
func (b *CoverTreeBuilder) SetMinResIndex(scale int32) { b.minResIndex = scale }

// SetMaxResIndex caps the root scale. Building data whose spread needs a
// coarser root than scaleBase^max fails with ErrInvalidResolutionRange.
func (b *CoverTreeBuilder) SetMaxResIndex(scale int32) { b.maxResIndex = scale }

// SetUseSingletons toggles leaf consolidation. When disabled every point
// descends to its own node (or the resolution floor), which inflates the
// tree on duplicate-heavy data.
func (b *CoverTreeBuilder) SetUseSingletons(use bool) { b.useSingletons = use }

// Build consumes the builder and constructs a tree over the point cloud
// using top-down insertion, returning the writer that owns the structure.
//
// Build fails with a configuration error for invalid parameters, and with
// ErrEmptyPointCloud for a nil or empty cloud. No partially-built tree is
// ever returned.
func (b *CoverTreeBuilder) Build(cloud PointCloud, kind DistanceKind) (*CoverTreeWriter, error) {
	if b.consumed {
		return nil, ErrBuilderConsumed
	}
	if b.scaleBase <= 1 {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidScaleBase, b.scaleBase)
	}
	if b.leafCutoff < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLeafCutoff, b.leafCutoff)
	}
	if b.minResIndex > b.maxResIndex {
		return nil, fmt.Errorf("%w: min %d > max %d", ErrInvalidResolutionRange, b.minResIndex, b.maxResIndex)
	}
	if cloud == nil || cloud.Len() == 0 {
		return nil, ErrEmptyPointCloud
	}
	distance, err := NewDistance(kind)
	if err != nil {
		return nil, err
	}
	b.consumed = true

	params := parameters{
		scaleBase:     b.scaleBase,
		leafCutoff:    b.leafCutoff,
		minResIndex:   b.minResIndex,
		maxResIndex:   b.maxResIndex,
		useSingletons: b.useSingletons,
		distanceKind:  kind,
	}
	return buildCoverTree(cloud, distance, params)
}
