package covertree

import (
	"fmt"

	"github.com/RoaringBitmap/roaring"
)

// ============================================================================
// ADDRESSING
// ============================================================================

// NodeAddress uniquely identifies a node within a tree snapshot as a
// (scale, representative point index) pair. Scales decrease from the root
// (coarsest) toward the leaves (finest); the covering radius at a scale is
// scaleBase^Scale. The pair is the stable public identity of a node and does
// not change for the lifetime of a reader.
type NodeAddress struct {
	// Scale is the resolution index of the layer holding the node.
	Scale int32

	// Index is the point index of the node's representative (center) point.
	Index uint32
}

// String formats the address as "(scale, index)".
func (a NodeAddress) String() string {
	return fmt.Sprintf("(%d, %d)", a.Scale, a.Index)
}

// ============================================================================
// NODE
// ============================================================================

// nodeSummary holds the base statistics GenerateSummaries computes per node.
// Immutable once attached to a node visible through a reader.
type nodeSummary struct {
	// members is the set of all point indices covered by the node's
	// subtree, including the representative and attached singletons.
	members *roaring.Bitmap

	// radius is the exact distance from the representative to the farthest
	// covered member.
	radius float32
}

// CoverNode is one vertex of the tree. Nodes reference their relatives by
// address (arena style); they never own child nodes directly. All accessors
// are read-only: a node reachable through a reader is immutable, and the
// writer replaces nodes wholesale instead of mutating them in place.
type CoverNode struct {
	address    NodeAddress
	parent     NodeAddress
	hasParent  bool
	children   []NodeAddress
	singletons *roaring.Bitmap
	summary    *nodeSummary
	gaussian   *DiagGaussian
	dirichlet  *DirichletCategorical
}

func newCoverNode(address NodeAddress) *CoverNode {
	return &CoverNode{
		address:    address,
		singletons: roaring.New(),
	}
}

// clone returns a copy safe to mutate while the original stays visible to
// issued readers. Summary and plugin values are shared: they are immutable
// once computed and replaced, never edited.
func (n *CoverNode) clone() *CoverNode {
	c := *n
	c.children = append([]NodeAddress(nil), n.children...)
	c.singletons = n.singletons.Clone()
	return &c
}

// Address returns the node's (scale, representative index) address.
func (n *CoverNode) Address() NodeAddress { return n.address }

// CenterIndex returns the point index of the node's representative point.
func (n *CoverNode) CenterIndex() uint32 { return n.address.Index }

// Parent returns the parent address and true, or false for the root.
func (n *CoverNode) Parent() (NodeAddress, bool) { return n.parent, n.hasParent }

// Children returns a copy of the child addresses, nesting child (same
// representative, one scale down) first when present.
func (n *CoverNode) Children() []NodeAddress {
	return append([]NodeAddress(nil), n.children...)
}

// ChildCount returns the number of children.
func (n *CoverNode) ChildCount() int { return len(n.children) }

// IsLeaf reports whether the node has no children.
func (n *CoverNode) IsLeaf() bool { return len(n.children) == 0 }

// Singletons returns the point indices attached directly to this node by
// leaf consolidation (points recorded here instead of growing router nodes
// at every finer scale).
func (n *CoverNode) Singletons() []uint32 { return n.singletons.ToArray() }

// SingletonCount returns the number of singleton members.
func (n *CoverNode) SingletonCount() int { return int(n.singletons.GetCardinality()) }

// CoveredCount returns the number of points covered by the node's subtree
// and true, or false when GenerateSummaries has not run for this snapshot.
func (n *CoverNode) CoveredCount() (uint64, bool) {
	if n.summary == nil {
		return 0, false
	}
	return n.summary.members.GetCardinality(), true
}

// Members returns all covered point indices and true, or false when
// GenerateSummaries has not run for this snapshot.
func (n *CoverNode) Members() ([]uint32, bool) {
	if n.summary == nil {
		return nil, false
	}
	return n.summary.members.ToArray(), true
}

// CoverRadius returns the exact distance from the representative to the
// farthest covered member and true, or false when GenerateSummaries has not
// run for this snapshot.
func (n *CoverNode) CoverRadius() (float32, bool) {
	if n.summary == nil {
		return 0, false
	}
	return n.summary.radius, true
}

// DiagGaussian returns the node's diagonal Gaussian statistic and true, or
// false when the PluginDiagGaussian plugin is not attached to this snapshot.
func (n *CoverNode) DiagGaussian() (*DiagGaussian, bool) {
	if n.gaussian == nil {
		return nil, false
	}
	return n.gaussian, true
}

// Dirichlet returns the node's Dirichlet categorical baseline and true, or
// false when the PluginDirichlet plugin is not attached to this snapshot.
func (n *CoverNode) Dirichlet() (*DirichletCategorical, bool) {
	if n.dirichlet == nil {
		return nil, false
	}
	return n.dirichlet, true
}
