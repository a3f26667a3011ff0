package covertree

import (
	"errors"
	"fmt"
	"iter"
)

// ErrNodeNotFound is returned when a queried node address does not exist in the snapshot.
var ErrNodeNotFound = errors.New("node not found")

// ErrScaleNotFound is returned when a queried scale has no layer in the snapshot.
var ErrScaleNotFound = errors.New("scale not found")

// ErrPointNotFound is returned when a point index is outside the cloud.
var ErrPointNotFound = errors.New("point not found")

// CoverTreeReader is an immutable snapshot handle over a tree. A reader
// observes the writer's state at the moment Reader() was called and never
// changes afterwards; a failed lookup leaves it fully usable. Readers are
// safe for unlimited concurrent use and may outlive each other and the
// writer independently.
type CoverTreeReader struct {
	cloud    PointCloud
	distance Distance
	params   parameters

	layers   []*treeLayer
	topScale int32
	root     NodeAddress

	summarized bool
	attached   map[PluginKind]bool
}

// RootAddress returns the address of the root node. A built tree always has
// a root; construction fails outright on empty input.
func (r *CoverTreeReader) RootAddress() NodeAddress { return r.root }

// TopScale returns the coarsest scale present in the snapshot.
func (r *CoverTreeReader) TopScale() int32 { return r.topScale }

// BottomScale returns the finest scale present in the snapshot.
func (r *CoverTreeReader) BottomScale() int32 {
	return r.topScale - int32(len(r.layers)-1)
}

// DistanceKind returns the metric the tree was built with.
func (r *CoverTreeReader) DistanceKind() DistanceKind { return r.params.distanceKind }

// ScaleBase returns the geometric base of the covering radii.
func (r *CoverTreeReader) ScaleBase() float32 { return r.params.scaleBase }

// Len returns the number of points in the underlying cloud.
func (r *CoverTreeReader) Len() int { return r.cloud.Len() }

// Dim returns the dimensionality of the underlying cloud.
func (r *CoverTreeReader) Dim() int { return r.cloud.Dim() }

// Summarized reports whether GenerateSummaries had run when this snapshot
// was taken.
func (r *CoverTreeReader) Summarized() bool { return r.summarized }

// HasPlugin reports whether the given plugin kind is attached to this
// snapshot.
func (r *CoverTreeReader) HasPlugin(kind PluginKind) bool { return r.attached[kind] }

// Point returns the vector of the point at index i.
func (r *CoverTreeReader) Point(i int) ([]float32, error) {
	if i < 0 || i >= r.cloud.Len() {
		return nil, fmt.Errorf("%w: index %d of %d", ErrPointNotFound, i, r.cloud.Len())
	}
	return r.cloud.PointAt(i), nil
}

// Label returns the label of the point at index i (0 for unlabeled clouds).
func (r *CoverTreeReader) Label(i int) (uint64, error) {
	if i < 0 || i >= r.cloud.Len() {
		return 0, fmt.Errorf("%w: index %d of %d", ErrPointNotFound, i, r.cloud.Len())
	}
	return r.cloud.LabelAt(i), nil
}

// ============================================================================
// LAYER / NODE ACCESS
// ============================================================================

func (r *CoverTreeReader) layerFor(scale int32) (*treeLayer, bool) {
	i := int(r.topScale - scale)
	if i < 0 || i >= len(r.layers) {
		return nil, false
	}
	return r.layers[i], true
}

func (r *CoverTreeReader) nodeFor(addr NodeAddress) (*CoverNode, bool) {
	l, ok := r.layerFor(addr.Scale)
	if !ok {
		return nil, false
	}
	n, ok := l.nodes[addr.Index]
	return n, ok
}

// Layer returns the set of nodes at the given scale, or ErrScaleNotFound
// when the snapshot has no layer there.
func (r *CoverTreeReader) Layer(scale int32) (*Layer, error) {
	l, ok := r.layerFor(scale)
	if !ok {
		return nil, fmt.Errorf("%w: scale %d outside [%d, %d]", ErrScaleNotFound, scale, r.BottomScale(), r.topScale)
	}
	return &Layer{scale: l.scale, nodes: l.nodes}, nil
}

// Layers iterates the snapshot's layers from coarsest to finest. Each call
// produces a fresh, restartable sequence; iteration never mutates the
// reader.
func (r *CoverTreeReader) Layers() iter.Seq2[int32, *Layer] {
	return func(yield func(int32, *Layer) bool) {
		for i, l := range r.layers {
			scale := r.topScale - int32(i)
			if !yield(scale, &Layer{scale: l.scale, nodes: l.nodes}) {
				return
			}
		}
	}
}

// Node returns the node at the given address, or ErrNodeNotFound.
func (r *CoverTreeReader) Node(addr NodeAddress) (*CoverNode, error) {
	n, ok := r.nodeFor(addr)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, addr)
	}
	return n, nil
}

// GetNodeAnd looks up the node at addr and invokes f with it under the
// snapshot's consistency, or returns ErrNodeNotFound without calling f.
// This is the single-point accessor every higher-level query is built on.
func (r *CoverTreeReader) GetNodeAnd(addr NodeAddress, f func(*CoverNode)) error {
	n, ok := r.nodeFor(addr)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, addr)
	}
	f(n)
	return nil
}

// ============================================================================
// DRY INSERTION
// ============================================================================

// PathStep is one stop on an insertion path: the node visited and the
// distance from the query to its representative point.
type PathStep struct {
	Distance float32
	Address  NodeAddress
}

// DryInsert computes the path the point would follow if actually inserted,
// without mutating the tree: the same descent as construction, recording the
// chosen node at each scale from the root down to the node where the point
// would be leaf-placed. Repeated calls with the same point on the same
// reader return identical paths.
func (r *CoverTreeReader) DryInsert(point []float32) ([]PathStep, error) {
	if len(point) != r.cloud.Dim() {
		return nil, fmt.Errorf("%w: point has %d dimensions, tree has %d", ErrDimensionMismatch, len(point), r.cloud.Dim())
	}
	path := make([]PathStep, 0, len(r.layers))
	addr := r.root
	for {
		d := r.distance.Calculate(point, r.cloud.PointAt(int(addr.Index)))
		path = append(path, PathStep{Distance: d, Address: addr})
		if d == 0 || addr.Scale <= r.params.minResIndex {
			return path, nil
		}
		node, ok := r.nodeFor(addr)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, addr)
		}
		child, ok := r.nearestCoveringChild(node, point, r.params.scaleRadius(addr.Scale-1))
		if !ok {
			return path, nil
		}
		addr = child
	}
}

// nearestCoveringChild mirrors the construction descent: the closest child
// whose covering radius still contains p, ties broken by ascending index.
func (r *CoverTreeReader) nearestCoveringChild(node *CoverNode, p []float32, radius float32) (NodeAddress, bool) {
	var best NodeAddress
	var bestDist float32
	found := false
	for _, child := range node.children {
		d := r.distance.Calculate(p, r.cloud.PointAt(int(child.Index)))
		if d > radius {
			continue
		}
		if !found || d < bestDist || (d == bestDist && child.Index < best.Index) {
			best, bestDist, found = child, d, true
		}
	}
	return best, found
}
