package covertree

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
)

// ErrInvalidSequenceConfig is returned when baseline training is configured
// with a non-positive sequence length or sequence count.
var ErrInvalidSequenceConfig = errors.New("sequence length and count must be positive")

// DirichletBaseline calibrates the null distribution of the tracker's KL
// statistic. It synthesizes sequences from the tree's own structure (each
// descent samples a branch proportional to the baseline concentrations, so
// the tree acts as its own generative null model), replays every sequence
// through a fresh BayesCategoricalTracker, and records the KL trajectory.
// The result is what an in-distribution stream looks like; a live score far
// outside it signals drift.
//
// Training is deterministic for a fixed seed and runs sequences in
// parallel, each with an independent derived RNG.
type DirichletBaseline struct {
	reader *CoverTreeReader

	priorWeight       float64
	observationWeight float64
	sequenceLen       int
	numSequences      int
	windowSize        int
	seed              uint64
}

// NewDirichletBaseline creates a trainer over one reader with unit weights,
// an unbounded window and seed 0. Sequence length and count must be set
// before Train.
func NewDirichletBaseline(reader *CoverTreeReader) *DirichletBaseline {
	return &DirichletBaseline{
		reader:            reader,
		priorWeight:       1.0,
		observationWeight: 1.0,
	}
}

// SetPriorWeight scales the baseline concentrations of every tracker prior.
func (b *DirichletBaseline) SetPriorWeight(w float64) { b.priorWeight = w }

// SetObservationWeight scales each observed traversal count.
func (b *DirichletBaseline) SetObservationWeight(w float64) { b.observationWeight = w }

// SetSequenceLen sets the number of synthetic points per sequence.
func (b *DirichletBaseline) SetSequenceLen(n int) { b.sequenceLen = n }

// SetNumSequences sets the number of independent synthetic sequences.
func (b *DirichletBaseline) SetNumSequences(n int) { b.numSequences = n }

// SetWindowSize sets the tracker sliding window (0 = unbounded).
func (b *DirichletBaseline) SetWindowSize(n int) { b.windowSize = n }

// SetSeed fixes the RNG seed; Train output is deterministic per seed.
func (b *DirichletBaseline) SetSeed(seed uint64) { b.seed = seed }

// Train runs every configured sequence and returns one KL-statistic
// trajectory per sequence: element [s][i] is the tracker snapshot after
// step i+1 of sequence s. Sequences are independent and run concurrently.
func (b *DirichletBaseline) Train() ([][]KLDivergenceStats, error) {
	if b.sequenceLen <= 0 || b.numSequences <= 0 {
		return nil, fmt.Errorf("%w: len %d, count %d", ErrInvalidSequenceConfig, b.sequenceLen, b.numSequences)
	}
	if !b.reader.HasPlugin(PluginDirichlet) {
		return nil, fmt.Errorf("%w: %s", ErrPluginRequired, PluginDirichlet)
	}

	results := make([][]KLDivergenceStats, b.numSequences)
	errs := make([]error, b.numSequences)

	var wg sync.WaitGroup
	for s := 0; s < b.numSequences; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			results[s], errs[s] = b.trainSequence(rand.New(rand.NewPCG(b.seed, uint64(s))))
		}(s)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// trainSequence replays one synthetic sequence through a fresh tracker.
func (b *DirichletBaseline) trainSequence(rng *rand.Rand) ([]KLDivergenceStats, error) {
	tracker, err := NewBayesCategoricalTracker(b.reader, b.priorWeight, b.observationWeight, b.windowSize)
	if err != nil {
		return nil, err
	}
	trajectory := make([]KLDivergenceStats, 0, b.sequenceLen)
	for i := 0; i < b.sequenceLen; i++ {
		pi, err := b.samplePoint(rng)
		if err != nil {
			return nil, err
		}
		point, err := b.reader.Point(pi)
		if err != nil {
			return nil, err
		}
		if err := tracker.Push(point); err != nil {
			return nil, err
		}
		trajectory = append(trajectory, tracker.Stats())
	}
	tracker.Finalize()
	return trajectory, nil
}

// samplePoint draws one point index from the tree's empirical distribution:
// descend from the root choosing a branch proportional to the Dirichlet
// baseline concentrations; on the stay bucket, pick uniformly among the
// node's representative and singletons.
func (b *DirichletBaseline) samplePoint(rng *rand.Rand) (int, error) {
	addr := b.reader.RootAddress()
	for {
		var node *CoverNode
		if err := b.reader.GetNodeAnd(addr, func(n *CoverNode) { node = n }); err != nil {
			return 0, err
		}
		baseline, ok := node.Dirichlet()
		if !ok {
			return 0, fmt.Errorf("%w: %s at node %s", ErrPluginRequired, PluginDirichlet, addr)
		}

		u := rng.Float64() * baseline.Total()
		branch := baseline.stayIndex()
		for i, a := range baseline.concentration {
			if u < a {
				branch = i
				break
			}
			u -= a
		}
		if branch < baseline.stayIndex() {
			addr = baseline.outcomes[branch]
			continue
		}

		singletons := node.Singletons()
		pick := rng.IntN(len(singletons) + 1)
		if pick == len(singletons) {
			return int(node.CenterIndex()), nil
		}
		return int(singletons[pick]), nil
	}
}
