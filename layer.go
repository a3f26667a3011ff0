package covertree

import "sort"

// treeLayer is the arena for one scale: representative point index -> node.
//
// Copy-on-write discipline: once a layer is referenced by an issued reader
// it is marked frozen; the writer clones the map (sharing node pointers)
// before the next mutation, so readers keep observing the layer they were
// handed.
type treeLayer struct {
	scale  int32
	nodes  map[uint32]*CoverNode
	frozen bool
}

func newTreeLayer(scale int32) *treeLayer {
	return &treeLayer{scale: scale, nodes: make(map[uint32]*CoverNode)}
}

// thaw returns a layer safe for the writer to mutate, cloning the node map
// when the current one is visible to a reader.
func (l *treeLayer) thaw() *treeLayer {
	if !l.frozen {
		return l
	}
	nodes := make(map[uint32]*CoverNode, len(l.nodes))
	for k, v := range l.nodes {
		nodes[k] = v
	}
	return &treeLayer{scale: l.scale, nodes: nodes}
}

// Layer is the read-only set of nodes sharing one scale, as observed by a
// reader snapshot.
type Layer struct {
	scale int32
	nodes map[uint32]*CoverNode
}

// Scale returns the resolution index shared by all nodes on the layer.
func (l *Layer) Scale() int32 { return l.scale }

// Len returns the number of nodes on the layer.
func (l *Layer) Len() int { return len(l.nodes) }

// Addresses returns the layer's node addresses sorted by representative
// index for deterministic iteration.
func (l *Layer) Addresses() []NodeAddress {
	out := make([]NodeAddress, 0, len(l.nodes))
	for idx := range l.nodes {
		out = append(out, NodeAddress{Scale: l.scale, Index: idx})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Node returns the node whose representative is the given point index.
func (l *Layer) Node(index uint32) (*CoverNode, bool) {
	n, ok := l.nodes[index]
	return n, ok
}
