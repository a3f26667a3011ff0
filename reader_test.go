package covertree

import (
	"errors"
	"math/rand/v2"
	"reflect"
	"testing"
)

// TestReaderAccessors tests the basic snapshot accessors
func TestReaderAccessors(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 0))
	rows, labels := clusterData(rng, [][]float32{
		clusterCenter(3, 0),
		clusterCenter(3, 20),
	}, 40, 2.0)
	_, reader := buildTestTree(t, rows, labels)

	if reader.Len() != len(rows) {
		t.Errorf("Len() = %d, want %d", reader.Len(), len(rows))
	}
	if reader.Dim() != 3 {
		t.Errorf("Dim() = %d, want 3", reader.Dim())
	}
	if reader.DistanceKind() != Euclidean {
		t.Errorf("DistanceKind() = %v, want %v", reader.DistanceKind(), Euclidean)
	}
	if reader.TopScale() < reader.BottomScale() {
		t.Errorf("TopScale() = %d below BottomScale() = %d", reader.TopScale(), reader.BottomScale())
	}
	root := reader.RootAddress()
	if root.Scale != reader.TopScale() {
		t.Errorf("root scale = %d, want top scale %d", root.Scale, reader.TopScale())
	}
	if _, err := reader.Node(root); err != nil {
		t.Errorf("Node(root) error = %v", err)
	}

	p, err := reader.Point(0)
	if err != nil {
		t.Fatalf("Point(0) error = %v", err)
	}
	if !reflect.DeepEqual(p, rows[0]) {
		t.Errorf("Point(0) = %v, want %v", p, rows[0])
	}
	label, err := reader.Label(len(rows) - 1)
	if err != nil {
		t.Fatalf("Label() error = %v", err)
	}
	if label != labels[len(labels)-1] {
		t.Errorf("Label() = %d, want %d", label, labels[len(labels)-1])
	}
}

// TestReaderNotFound tests that failed lookups return sentinels and leave
// the reader usable
func TestReaderNotFound(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 1))
	rows, labels := clusterData(rng, [][]float32{clusterCenter(2, 0)}, 30, 2.0)
	_, reader := buildTestTree(t, rows, labels)

	if _, err := reader.Layer(reader.TopScale() + 1); !errors.Is(err, ErrScaleNotFound) {
		t.Errorf("Layer() error = %v, want ErrScaleNotFound", err)
	}
	if _, err := reader.Node(NodeAddress{Scale: reader.TopScale(), Index: 999999}); !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("Node() error = %v, want ErrNodeNotFound", err)
	}
	called := false
	if err := reader.GetNodeAnd(NodeAddress{Scale: reader.BottomScale() - 3, Index: 0}, func(*CoverNode) { called = true }); !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("GetNodeAnd() error = %v, want ErrNodeNotFound", err)
	}
	if called {
		t.Error("GetNodeAnd() invoked callback for a missing node")
	}
	if _, err := reader.Point(-1); !errors.Is(err, ErrPointNotFound) {
		t.Errorf("Point(-1) error = %v, want ErrPointNotFound", err)
	}
	if _, err := reader.Label(len(rows)); !errors.Is(err, ErrPointNotFound) {
		t.Errorf("Label(len) error = %v, want ErrPointNotFound", err)
	}

	// the reader must still serve queries after the failures above
	if _, err := reader.Node(reader.RootAddress()); err != nil {
		t.Errorf("Node(root) after failed lookups error = %v", err)
	}
	if _, err := reader.KNN(rows[0], 3); err != nil {
		t.Errorf("KNN() after failed lookups error = %v", err)
	}
}

// TestReaderLayers tests ordering and restartability of the layer sequence
func TestReaderLayers(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 2))
	rows, labels := clusterData(rng, [][]float32{
		clusterCenter(3, 0),
		clusterCenter(3, 15),
	}, 50, 2.0)
	_, reader := buildTestTree(t, rows, labels)

	var scales []int32
	for scale, layer := range reader.Layers() {
		if layer.Scale() != scale {
			t.Errorf("layer reports scale %d under key %d", layer.Scale(), scale)
		}
		if layer.Len() == 0 {
			t.Errorf("empty layer at scale %d", scale)
		}
		scales = append(scales, scale)
	}
	if len(scales) == 0 {
		t.Fatal("Layers() yielded nothing")
	}
	if scales[0] != reader.TopScale() || scales[len(scales)-1] != reader.BottomScale() {
		t.Errorf("scales span [%d, %d], want [%d, %d]",
			scales[len(scales)-1], scales[0], reader.BottomScale(), reader.TopScale())
	}
	for i := 1; i < len(scales); i++ {
		if scales[i] != scales[i-1]-1 {
			t.Errorf("scales not contiguous descending: %v", scales)
		}
	}

	// breaking out early and iterating again restarts from the top
	for scale := range reader.Layers() {
		if scale != reader.TopScale() {
			t.Errorf("restarted iteration began at %d, want %d", scale, reader.TopScale())
		}
		break
	}

	// addresses within a layer come back sorted
	layer, err := reader.Layer(reader.BottomScale())
	if err != nil {
		t.Fatalf("Layer() error = %v", err)
	}
	addrs := layer.Addresses()
	for i := 1; i < len(addrs); i++ {
		if addrs[i].Index <= addrs[i-1].Index {
			t.Errorf("Addresses() not strictly ascending at %d: %v", i, addrs)
		}
	}
}

// TestDryInsert tests that path computation is pure and repeatable
func TestDryInsert(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 3))
	rows, labels := clusterData(rng, [][]float32{
		clusterCenter(4, 0),
		clusterCenter(4, 12),
	}, 60, 2.0)
	writer, reader := buildTestTree(t, rows, labels)
	if err := writer.GenerateSummaries(); err != nil {
		t.Fatalf("GenerateSummaries() error = %v", err)
	}
	summarized := writer.Reader()

	query := []float32{11.5, 12.2, 12.0, 11.8}
	first, err := reader.DryInsert(query)
	if err != nil {
		t.Fatalf("DryInsert() error = %v", err)
	}
	if len(first) == 0 {
		t.Fatal("DryInsert() returned an empty path")
	}
	if first[0].Address != reader.RootAddress() {
		t.Errorf("path starts at %s, want root %s", first[0].Address, reader.RootAddress())
	}
	for i := 1; i < len(first); i++ {
		if first[i].Address.Scale != first[i-1].Address.Scale-1 {
			t.Errorf("path scale jump at step %d: %s -> %s", i, first[i-1].Address, first[i].Address)
		}
	}

	for i := 0; i < 5; i++ {
		again, err := reader.DryInsert(query)
		if err != nil {
			t.Fatalf("DryInsert() repeat error = %v", err)
		}
		if !reflect.DeepEqual(again, first) {
			t.Errorf("DryInsert() repeat %d = %v, want %v", i, again, first)
		}
	}

	// the dry run must not have touched tree structure
	before := countNodes(t, summarized)
	if _, err := summarized.DryInsert(query); err != nil {
		t.Fatalf("DryInsert() on summarized snapshot error = %v", err)
	}
	if after := countNodes(t, writer.Reader()); after != before {
		t.Errorf("node count changed from %d to %d after DryInsert", before, after)
	}

	if _, err := reader.DryInsert([]float32{1, 2}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("DryInsert() short point error = %v, want ErrDimensionMismatch", err)
	}
}

func countNodes(t *testing.T, reader *CoverTreeReader) int {
	t.Helper()
	total := 0
	for _, layer := range reader.Layers() {
		total += layer.Len()
	}
	return total
}

// TestSnapshotIsolation tests that an issued reader is unaffected by later
// writer mutations
func TestSnapshotIsolation(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 4))
	rows, labels := clusterData(rng, [][]float32{clusterCenter(3, 0)}, 40, 2.0)
	writer, before := buildBareTree(t, rows, labels)

	if before.Summarized() {
		t.Fatal("fresh snapshot reports Summarized()")
	}
	if err := writer.GenerateSummaries(); err != nil {
		t.Fatalf("GenerateSummaries() error = %v", err)
	}
	if err := writer.AddPlugin(PluginDirichlet); err != nil {
		t.Fatalf("AddPlugin() error = %v", err)
	}

	if before.Summarized() {
		t.Error("pre-summary snapshot observed summaries added later")
	}
	if before.HasPlugin(PluginDirichlet) {
		t.Error("pre-plugin snapshot observed a plugin added later")
	}

	after := writer.Reader()
	if !after.Summarized() || !after.HasPlugin(PluginDirichlet) {
		t.Error("post-mutation snapshot missing summaries or plugin")
	}
	if err := after.GetNodeAnd(after.RootAddress(), func(n *CoverNode) {
		if _, ok := n.Dirichlet(); !ok {
			t.Error("root node missing Dirichlet posterior in post-plugin snapshot")
		}
	}); err != nil {
		t.Fatalf("GetNodeAnd(root) error = %v", err)
	}
}
