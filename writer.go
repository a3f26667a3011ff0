package covertree

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/RoaringBitmap/roaring"
)

// ErrSummariesRequired is returned when a plugin is attached before GenerateSummaries has run.
var ErrSummariesRequired = errors.New("summaries required: call GenerateSummaries first")

// CoverTreeWriter is the single mutation authority for one tree: it owns
// construction, summary generation and plugin attachment, and it is the only
// component that ever changes node or layer state. Mutations are
// append/copy-oriented: anything visible to an issued reader is replaced,
// never edited in place, so readers keep a consistent snapshot for their
// whole lifetime.
//
// A writer is single-owner; its methods must not be called concurrently.
// Issuing readers is cheap and may happen at any time.
type CoverTreeWriter struct {
	mu       sync.Mutex
	cloud    PointCloud
	distance Distance
	params   parameters

	// layers[i] holds scale topScale-i; scales are contiguous top to bottom.
	layers   []*treeLayer
	topScale int32
	root     NodeAddress

	summarized bool
	attached   map[PluginKind]bool
}

// buildCoverTree runs the top-down construction over the whole cloud.
// The representative of the root is point 0; the root scale is the smallest
// scale whose covering radius still contains every point.
func buildCoverTree(cloud PointCloud, distance Distance, params parameters) (*CoverTreeWriter, error) {
	rep := cloud.PointAt(0)
	var maxDist float32
	for i := 1; i < cloud.Len(); i++ {
		if d := distance.Calculate(rep, cloud.PointAt(i)); d > maxDist {
			maxDist = d
		}
	}

	topScale := params.minResIndex
	if maxDist > 0 {
		needed := int32(math.Ceil(math.Log(float64(maxDist)) / math.Log(float64(params.scaleBase))))
		if needed > topScale {
			topScale = needed
		}
	}
	if topScale > params.maxResIndex {
		return nil, fmt.Errorf("%w: data spread %g needs root scale %d, max is %d",
			ErrInvalidResolutionRange, maxDist, topScale, params.maxResIndex)
	}

	w := &CoverTreeWriter{
		cloud:    cloud,
		distance: distance,
		params:   params,
		topScale: topScale,
		root:     NodeAddress{Scale: topScale, Index: 0},
		attached: make(map[PluginKind]bool),
	}
	rootLayer := newTreeLayer(topScale)
	rootLayer.nodes[0] = newCoverNode(w.root)
	w.layers = []*treeLayer{rootLayer}

	for i := 1; i < cloud.Len(); i++ {
		w.insertPointLocked(uint32(i))
	}
	return w, nil
}

// ============================================================================
// INSERTION
// ============================================================================

// insertPointLocked descends from the root and places one point, creating at
// most one new node. At each scale it prefers the nearest existing child
// whose covering radius still contains the point (covering invariant); when
// no child qualifies it either consolidates the point as a singleton (leaf
// cutoff, resolution floor, exact duplicate) or creates a new child at the
// finer scale. Separation holds for the new child because no existing
// sibling was within the child radius.
func (w *CoverTreeWriter) insertPointLocked(pi uint32) {
	p := w.cloud.PointAt(int(pi))
	addr := w.root
	for {
		d := w.distance.Calculate(p, w.cloud.PointAt(int(addr.Index)))
		if d == 0 || addr.Scale <= w.params.minResIndex {
			w.addSingleton(addr, pi)
			return
		}
		node := w.nodeAt(addr)
		childScale := addr.Scale - 1
		childRadius := w.params.scaleRadius(childScale)
		if child, ok := w.nearestCoveringChild(node, p, childRadius); ok {
			addr = child
			continue
		}
		if w.params.useSingletons && node.IsLeaf() && node.SingletonCount() < w.params.leafCutoff {
			w.addSingleton(addr, pi)
			return
		}
		if node.IsLeaf() && d <= childRadius {
			// The point falls inside the would-be nesting child's radius, so a
			// sibling here would sit closer than the separation distance.
			// Split the leaf and keep descending through the representative.
			addr = w.addNestChild(addr)
			continue
		}
		w.addChild(addr, pi)
		return
	}
}

// addNestChild splits a leaf by creating the nesting child (same
// representative, one scale down) and returns its address.
func (w *CoverTreeWriter) addNestChild(addr NodeAddress) NodeAddress {
	childScale := addr.Scale - 1
	layer := w.mutableLayer(childScale)
	parent := w.mutableNode(addr)

	nest := newCoverNode(NodeAddress{Scale: childScale, Index: addr.Index})
	nest.parent, nest.hasParent = addr, true
	layer.nodes[nest.address.Index] = nest
	parent.children = append(parent.children, nest.address)
	return nest.address
}

// nearestCoveringChild returns the address of the child of node closest to p
// among those within radius of p, if any.
func (w *CoverTreeWriter) nearestCoveringChild(node *CoverNode, p []float32, radius float32) (NodeAddress, bool) {
	var best NodeAddress
	var bestDist float32
	found := false
	for _, child := range node.children {
		d := w.distance.Calculate(p, w.cloud.PointAt(int(child.Index)))
		if d > radius {
			continue
		}
		if !found || d < bestDist || (d == bestDist && child.Index < best.Index) {
			best, bestDist, found = child, d, true
		}
	}
	return best, found
}

// addSingleton records pi as a leaf member of the node at addr.
func (w *CoverTreeWriter) addSingleton(addr NodeAddress, pi uint32) {
	n := w.mutableNode(addr)
	n.singletons.Add(pi)
}

// addChild creates a node for pi one scale below addr. When the parent gains
// its first child, the nesting child (same representative, one scale down)
// is created alongside so the parent's representative reappears at the finer
// scale.
func (w *CoverTreeWriter) addChild(addr NodeAddress, pi uint32) {
	childScale := addr.Scale - 1
	layer := w.mutableLayer(childScale)
	parent := w.mutableNode(addr)

	if len(parent.children) == 0 && addr.Index != pi {
		nest := newCoverNode(NodeAddress{Scale: childScale, Index: addr.Index})
		nest.parent, nest.hasParent = addr, true
		layer.nodes[nest.address.Index] = nest
		parent.children = append(parent.children, nest.address)
	}

	child := newCoverNode(NodeAddress{Scale: childScale, Index: pi})
	child.parent, child.hasParent = addr, true
	layer.nodes[pi] = child
	parent.children = append(parent.children, child.address)
}

// ============================================================================
// LAYER / NODE ACCESS (writer side)
// ============================================================================

func (w *CoverTreeWriter) layerIndex(scale int32) (int, bool) {
	i := int(w.topScale - scale)
	if i < 0 || i >= len(w.layers) {
		return 0, false
	}
	return i, true
}

func (w *CoverTreeWriter) nodeAt(addr NodeAddress) *CoverNode {
	i, ok := w.layerIndex(addr.Scale)
	if !ok {
		return nil
	}
	return w.layers[i].nodes[addr.Index]
}

// mutableLayer returns the layer for a scale, thawed for mutation, creating
// it when the tree deepens by one scale.
func (w *CoverTreeWriter) mutableLayer(scale int32) *treeLayer {
	if i, ok := w.layerIndex(scale); ok {
		if w.layers[i].frozen {
			w.layers[i] = w.layers[i].thaw()
		}
		return w.layers[i]
	}
	// scales grow downward one at a time
	l := newTreeLayer(scale)
	w.layers = append(w.layers, l)
	return l
}

// mutableNode returns a clone of the node at addr, installed in a thawed
// layer, safe for the writer to mutate without disturbing issued readers.
func (w *CoverTreeWriter) mutableNode(addr NodeAddress) *CoverNode {
	layer := w.mutableLayer(addr.Scale)
	n := layer.nodes[addr.Index].clone()
	layer.nodes[addr.Index] = n
	return n
}

// ============================================================================
// SUMMARIES
// ============================================================================

// GenerateSummaries computes the base statistics every plugin depends on:
// per node, the set of covered point indices and the exact cover radius.
// It walks layers bottom-up so child member sets are available when a parent
// is summarized. The computation is deterministic and idempotent; calling it
// twice attaches identical statistics both times.
func (w *CoverTreeWriter) GenerateSummaries() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i := len(w.layers) - 1; i >= 0; i-- {
		scale := w.topScale - int32(i)
		for _, addr := range w.layers[i].addresses() {
			node := w.nodeAt(NodeAddress{Scale: scale, Index: addr})
			summary := w.summarize(node)
			n := w.mutableNode(node.address)
			n.summary = summary
		}
	}
	w.summarized = true
	return nil
}

// addresses returns the layer's representative indices in sorted order; used
// by the writer for deterministic sweeps.
func (l *treeLayer) addresses() []uint32 {
	out := make([]uint32, 0, len(l.nodes))
	for idx := range l.nodes {
		out = append(out, idx)
	}
	// small layers dominate; insertion sort keeps this dependency-free
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// summarize computes one node's member bitmap and exact cover radius from
// its singletons and already-summarized children.
func (w *CoverTreeWriter) summarize(node *CoverNode) *nodeSummary {
	members := roaring.New()
	members.Add(node.address.Index)
	members.Or(node.singletons)
	for _, child := range node.children {
		cn := w.nodeAt(child)
		if cn.summary != nil {
			members.Or(cn.summary.members)
		}
	}

	center := w.cloud.PointAt(int(node.address.Index))
	var radius float32
	it := members.Iterator()
	for it.HasNext() {
		pi := it.Next()
		if d := w.distance.Calculate(center, w.cloud.PointAt(int(pi))); d > radius {
			radius = d
		}
	}
	return &nodeSummary{members: members, radius: radius}
}

// ============================================================================
// SNAPSHOTS
// ============================================================================

// Reader returns an immutable snapshot handle reflecting the writer's state
// at call time. Readers are independent: later writer mutation is invisible
// to already-issued readers, and any number of goroutines may query one
// reader concurrently. The call is cheap; it freezes the current layer maps
// and copies only bookkeeping.
func (w *CoverTreeWriter) Reader() *CoverTreeReader {
	w.mu.Lock()
	defer w.mu.Unlock()

	layers := make([]*treeLayer, len(w.layers))
	for i, l := range w.layers {
		l.frozen = true
		layers[i] = l
	}
	attached := make(map[PluginKind]bool, len(w.attached))
	for k, v := range w.attached {
		attached[k] = v
	}
	return &CoverTreeReader{
		cloud:      w.cloud,
		distance:   w.distance,
		params:     w.params,
		layers:     layers,
		topScale:   w.topScale,
		root:       w.root,
		summarized: w.summarized,
		attached:   attached,
	}
}
