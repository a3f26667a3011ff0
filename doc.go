/*
Package covertree provides a multiresolution metric index (a cover tree) for
Go, with online distribution-drift detection built on top of it.

A cover tree is built once over a reference collection of high-dimensional
points and then serves two workloads: exact nearest-neighbor queries over
arbitrary metrics, and continuous monitoring of an incoming point stream for
distributional drift, by comparing the traversal paths live points take
through the tree against the traversal distribution observed at build time
(Dirichlet-categorical posteriors scored with KL divergence).

# Quick Start

Build a tree and query it:

	package main

	import (
	    "fmt"
	    "log"

	    "github.com/wizenheimer/covertree"
	)

	func main() {
	    // 1,000 points, 8 dimensions, stored row-major
	    data := make([]float32, 1000*8)
	    // ... populate data ...

	    cloud, err := covertree.NewDensePointCloud(data, 8, nil)
	    if err != nil {
	        log.Fatal(err)
	    }

	    builder := covertree.NewCoverTreeBuilder()
	    builder.SetScaleBase(2.0)
	    builder.SetLeafCutoff(1)

	    writer, err := builder.Build(cloud, covertree.Euclidean)
	    if err != nil {
	        log.Fatal(err)
	    }
	    if err := writer.GenerateSummaries(); err != nil {
	        log.Fatal(err)
	    }

	    reader := writer.Reader()
	    query := make([]float32, 8)
	    results, err := reader.KNN(query, 5)
	    if err != nil {
	        log.Fatal(err)
	    }
	    for _, r := range results {
	        fmt.Printf("point %d at distance %.4f\n", r.Index, r.Distance)
	    }
	}

# Writer / Reader Split

A CoverTreeWriter is the single mutation authority: it owns construction,
summary generation and plugin attachment. Calling Reader() produces an
immutable snapshot handle that any number of goroutines can query
concurrently while the writer keeps evolving the structure. The writer never
mutates a node visible to an issued reader in place; it copies the node (and
the owning layer map) first, so a reader observes one consistent tree for its
whole lifetime. This is the RCU-style split that makes unlimited concurrent
querying possible without a global lock.

# Tree Invariants

Nodes live on layers indexed by an integer scale; the covering radius at
scale s is scaleBase^s, shrinking geometrically from the root down. The
construction maintains the classic cover-tree invariants:

Nesting: a node's representative point reappears as a node one scale below
once the node has children.

Covering: every point covered by a node at scale s lies within scaleBase^s of
the node's representative, and is covered by some child one scale below
(unless consolidated as a leaf singleton).

Separation: sibling representatives at scale s are at least scaleBase^s
apart.

# Drift Detection

After GenerateSummaries, attach the built-in plugins and track a stream:

	writer.AddPlugin(covertree.PluginDiagGaussian)
	writer.AddPlugin(covertree.PluginDirichlet)
	reader := writer.Reader()

	tracker, err := covertree.NewBayesCategoricalTracker(reader, 1.0, 1.0, 0)
	if err != nil {
	    log.Fatal(err)
	}
	for _, p := range stream {
	    if err := tracker.Push(p); err != nil {
	        log.Fatal(err)
	    }
	}
	fmt.Println(tracker.KLDiv())

The tracker runs a dry insertion for every incoming point, updates its own
private Dirichlet posterior for every node on the path, and scores the
posterior against the plugin baseline. To decide whether a live score is
anomalous, train a DirichletBaseline: it replays synthetic sequences sampled
from the tree's own structure and yields the empirical null distribution of
the KL statistic.

# Point Storage

Points are float32 vectors of uniform dimension behind the PointCloud
interface. Three implementations ship with the package: DensePointCloud
(row-major float32), HalfPointCloud (half-precision storage, 2x smaller) and
SparsePointCloud (CSR layout for mostly-zero data). Loaders exist for YAML
dataset configs and SQLite tables holding little-endian float32 blobs.

# Distance Metrics

Euclidean (L2), Manhattan (L1) and Cosine distance are built in. The tree
itself only requires the metric-space axioms (non-negativity, symmetry,
triangle inequality, identity of indiscernibles); cosine distance violates
the triangle inequality on general data, so the exactness guarantee of KNN
holds only for the true metrics.

# Thread Safety

The writer is single-owner: do not call its methods from multiple goroutines
concurrently. Readers are immutable and safe for unlimited concurrent use.
Trackers own private mutable state and are not safe for concurrent Push; use
one tracker per stream.

# Documentation and Examples

For detailed API documentation, see the godoc comments on each type and
function.

For more examples and use cases, visit:
https://github.com/wizenheimer/covertree

# License

MIT License - Copyright (c) 2025 wizenheimer
*/
package covertree
