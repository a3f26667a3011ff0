package covertree

import (
	"errors"
	"fmt"
	"sort"
)

// ErrTrackerFinalized is returned when a finalized tracker receives another update.
var ErrTrackerFinalized = errors.New("tracker is finalized")

// ErrInvalidWeight is returned for non-positive prior or observation weights.
var ErrInvalidWeight = errors.New("weights must be positive")

// ErrInvalidWindowSize is returned for a negative sliding-window size.
var ErrInvalidWindowSize = errors.New("window size must be non-negative")

// ErrUnknownAggregationKind is returned for an unsupported KL aggregation kind.
var ErrUnknownAggregationKind = errors.New("unknown aggregation kind")

// KLAggregationKind selects how per-node KL divergences combine into one
// sequence score.
type KLAggregationKind string

const (
	// SumAggregation sums the per-node KL divergences. This is the default.
	SumAggregation KLAggregationKind = "sum"

	// MeanAggregation averages the KL divergence over visited nodes,
	// normalizing away path length.
	MeanAggregation KLAggregationKind = "mean"

	// MaxAggregation takes the single most divergent node.
	MaxAggregation KLAggregationKind = "max"
)

// observation is one posterior update: the branch taken at one node.
type observation struct {
	addr   NodeAddress
	branch int
}

// nodePosterior is the tracker's private Dirichlet posterior for one node:
// the plugin baseline plus observed traversal counts.
type nodePosterior struct {
	baseline *DirichletCategorical
	counts   []float64
	kl       float64
}

// BayesCategoricalTracker consumes a stream of points against one reader
// snapshot and maintains a running KL divergence between the traversal
// distribution it observes and the baseline attached by PluginDirichlet.
//
// Every pushed point is dry-inserted; each node on the path gets its private
// posterior updated with the branch the point took. The tracker never
// mutates the reader or its plugins. With a non-zero window size the oldest
// pushed point's contribution is discounted once the window fills, bounding
// memory and making the score follow the recent stream.
//
// State machine: Accumulating until Finalize is called, then Finalized;
// updates in Finalized state fail with ErrTrackerFinalized.
//
// A tracker is single-owner: one goroutine, one stream. Run any number of
// trackers concurrently over the same reader.
type BayesCategoricalTracker struct {
	reader            *CoverTreeReader
	priorWeight       float64
	observationWeight float64
	windowSize        int
	aggregation       KLAggregationKind

	posteriors  map[NodeAddress]*nodePosterior
	window      [][]observation
	sequenceLen int
	finalized   bool
}

// NewBayesCategoricalTracker creates a tracker in Accumulating state bound
// to one reader, which must carry PluginDirichlet. priorWeight scales the
// baseline concentrations, observationWeight scales each observed count,
// and windowSize caps the number of points contributing to the posterior
// (0 = unbounded).
func NewBayesCategoricalTracker(reader *CoverTreeReader, priorWeight, observationWeight float64, windowSize int) (*BayesCategoricalTracker, error) {
	if !reader.HasPlugin(PluginDirichlet) {
		return nil, fmt.Errorf("%w: %s", ErrPluginRequired, PluginDirichlet)
	}
	if priorWeight <= 0 || observationWeight <= 0 {
		return nil, fmt.Errorf("%w: prior %g, observation %g", ErrInvalidWeight, priorWeight, observationWeight)
	}
	if windowSize < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWindowSize, windowSize)
	}
	return &BayesCategoricalTracker{
		reader:            reader,
		priorWeight:       priorWeight,
		observationWeight: observationWeight,
		windowSize:        windowSize,
		aggregation:       SumAggregation,
		posteriors:        make(map[NodeAddress]*nodePosterior),
	}, nil
}

// SetAggregation selects the per-node KL combination rule. The default is
// SumAggregation.
func (t *BayesCategoricalTracker) SetAggregation(kind KLAggregationKind) error {
	switch kind {
	case SumAggregation, MeanAggregation, MaxAggregation:
		t.aggregation = kind
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAggregationKind, kind)
	}
}

// Push feeds one point: dry-inserts it, updates the posterior of every node
// on the path, and evicts the oldest point once the window is full.
func (t *BayesCategoricalTracker) Push(point []float32) error {
	if t.finalized {
		return ErrTrackerFinalized
	}
	path, err := t.reader.DryInsert(point)
	if err != nil {
		return err
	}

	touched := make(map[NodeAddress]struct{}, len(path))
	obs := make([]observation, len(path))
	for i, step := range path {
		post, err := t.posteriorFor(step.Address)
		if err != nil {
			return err
		}
		var next NodeAddress
		hasNext := i+1 < len(path)
		if hasNext {
			next = path[i+1].Address
		}
		branch := post.baseline.branchIndex(next, hasNext)
		post.counts[branch]++
		obs[i] = observation{addr: step.Address, branch: branch}
		touched[step.Address] = struct{}{}
	}

	t.window = append(t.window, obs)
	if t.windowSize > 0 && len(t.window) > t.windowSize {
		oldest := t.window[0]
		t.window = t.window[1:]
		for _, o := range oldest {
			post := t.posteriors[o.addr]
			post.counts[o.branch]--
			touched[o.addr] = struct{}{}
		}
	}

	for addr := range touched {
		t.rescore(t.posteriors[addr])
	}
	t.sequenceLen++
	return nil
}

// posteriorFor returns the posterior for a node, creating it from the
// node's plugin baseline on first visit.
func (t *BayesCategoricalTracker) posteriorFor(addr NodeAddress) (*nodePosterior, error) {
	if post, ok := t.posteriors[addr]; ok {
		return post, nil
	}
	var baseline *DirichletCategorical
	err := t.reader.GetNodeAnd(addr, func(n *CoverNode) {
		baseline, _ = n.Dirichlet()
	})
	if err != nil {
		return nil, err
	}
	if baseline == nil {
		return nil, fmt.Errorf("%w: %s at node %s", ErrPluginRequired, PluginDirichlet, addr)
	}
	post := &nodePosterior{
		baseline: baseline,
		counts:   make([]float64, len(baseline.concentration)),
	}
	t.posteriors[addr] = post
	return post, nil
}

// rescore recomputes one node's KL(posterior || prior).
func (t *BayesCategoricalTracker) rescore(post *nodePosterior) {
	n := len(post.baseline.concentration)
	alpha := make([]float64, n)
	beta := make([]float64, n)
	for i := 0; i < n; i++ {
		beta[i] = t.priorWeight * post.baseline.concentration[i]
		alpha[i] = beta[i] + t.observationWeight*post.counts[i]
	}
	post.kl = dirichletKL(alpha, beta)
}

// orderedPosteriors returns the per-node posteriors sorted by address,
// top scale first. Float summation is order-sensitive, so every aggregation
// walks this fixed order to keep scores reproducible call to call.
func (t *BayesCategoricalTracker) orderedPosteriors() []*nodePosterior {
	addrs := make([]NodeAddress, 0, len(t.posteriors))
	for addr := range t.posteriors {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool {
		if addrs[i].Scale != addrs[j].Scale {
			return addrs[i].Scale > addrs[j].Scale
		}
		return addrs[i].Index < addrs[j].Index
	})
	posts := make([]*nodePosterior, len(addrs))
	for i, addr := range addrs {
		posts[i] = t.posteriors[addr]
	}
	return posts
}

// KLDiv returns the running sequence score: the per-node KL divergences
// combined under the configured aggregation rule.
func (t *BayesCategoricalTracker) KLDiv() float64 {
	posts := t.orderedPosteriors()
	switch t.aggregation {
	case MeanAggregation:
		if len(posts) == 0 {
			return 0
		}
		var sum float64
		for _, p := range posts {
			sum += p.kl
		}
		return sum / float64(len(posts))
	case MaxAggregation:
		var max float64
		for _, p := range posts {
			if p.kl > max {
				max = p.kl
			}
		}
		return max
	default:
		var sum float64
		for _, p := range posts {
			sum += p.kl
		}
		return sum
	}
}

// SequenceLen returns the number of points pushed so far.
func (t *BayesCategoricalTracker) SequenceLen() int { return t.sequenceLen }

// NodesVisited returns the number of distinct nodes with a posterior.
func (t *BayesCategoricalTracker) NodesVisited() int { return len(t.posteriors) }

// Finalize closes the sequence. Further Push calls fail with
// ErrTrackerFinalized; the accumulated score remains readable.
func (t *BayesCategoricalTracker) Finalize() { t.finalized = true }

// Finalized reports whether the tracker has been closed.
func (t *BayesCategoricalTracker) Finalized() bool { return t.finalized }

// ============================================================================
// STATS SNAPSHOTS
// ============================================================================

// KLDivergenceStats is a point-in-time snapshot of the tracker's per-node
// KL divergence distribution, recorded once per step during baseline
// training and comparable across sequences.
type KLDivergenceStats struct {
	// KL is the aggregated sequence score at snapshot time.
	KL float64

	// Max and Min are the largest and smallest non-zero per-node KL.
	Max float64
	Min float64

	// Moment1 and Moment2 are the first and second moments of the non-zero
	// per-node KL values.
	Moment1 float64
	Moment2 float64

	// Nonzero is the number of nodes with a non-zero KL.
	Nonzero int

	// SequenceLen is the number of points pushed when the snapshot was
	// taken.
	SequenceLen int
}

// Stats returns a snapshot of the current per-node KL distribution.
func (t *BayesCategoricalTracker) Stats() KLDivergenceStats {
	s := KLDivergenceStats{
		KL:          t.KLDiv(),
		SequenceLen: t.sequenceLen,
	}
	for _, p := range t.orderedPosteriors() {
		if p.kl <= 0 {
			continue
		}
		if s.Nonzero == 0 || p.kl > s.Max {
			s.Max = p.kl
		}
		if s.Nonzero == 0 || p.kl < s.Min {
			s.Min = p.kl
		}
		s.Moment1 += p.kl
		s.Moment2 += p.kl * p.kl
		s.Nonzero++
	}
	return s
}
