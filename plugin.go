package covertree

import (
	"errors"
	"fmt"
)

// ErrUnknownPluginKind is returned when an unsupported plugin kind is attached.
var ErrUnknownPluginKind = errors.New("unknown plugin kind")

// ErrPluginRequired is returned when an operation needs a plugin that is not
// attached to the reader snapshot in use.
var ErrPluginRequired = errors.New("plugin not attached")

// PluginKind identifies a per-node statistic. The supported kinds are fixed
// at design time; the registry is a closed tagged set rather than an
// open-ended runtime lookup.
type PluginKind string

const (
	// PluginDiagGaussian attaches a diagonal-covariance Gaussian summary to
	// every node: per-dimension mean and variance over covered members.
	PluginDiagGaussian PluginKind = "diag_gaussian"

	// PluginDirichlet attaches a Dirichlet categorical model over every
	// node's child branches, concentrations proportional to covered counts.
	// This is the traversal-probability baseline the Bayesian tracker
	// scores against.
	PluginDirichlet PluginKind = "dirichlet"
)

// AddPlugin computes and attaches the given statistic kind to every node.
// GenerateSummaries must have run first (ErrSummariesRequired otherwise);
// plugin values are derived from the base summaries and are immutable for
// the lifetime of any snapshot they appear in. Re-attaching a kind simply
// recomputes identical values.
func (w *CoverTreeWriter) AddPlugin(kind PluginKind) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.summarized {
		return ErrSummariesRequired
	}

	var compute func(*CoverNode) error
	switch kind {
	case PluginDiagGaussian:
		compute = func(n *CoverNode) error {
			g, err := newDiagGaussian(w.cloud, n.summary)
			if err != nil {
				return err
			}
			w.mutableNode(n.address).gaussian = g
			return nil
		}
	case PluginDirichlet:
		compute = func(n *CoverNode) error {
			w.mutableNode(n.address).dirichlet = newDirichletCategorical(n, w.coveredCountOf)
			return nil
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPluginKind, kind)
	}

	for i := range w.layers {
		scale := w.topScale - int32(i)
		for _, idx := range w.layers[i].addresses() {
			n := w.nodeAt(NodeAddress{Scale: scale, Index: idx})
			if n.summary == nil {
				return fmt.Errorf("%w: node %s has no summary", ErrSummariesRequired, n.address)
			}
			if err := compute(n); err != nil {
				return err
			}
		}
	}
	w.attached[kind] = true
	return nil
}

// coveredCountOf resolves a node's covered count for plugin computation.
func (w *CoverTreeWriter) coveredCountOf(addr NodeAddress) uint64 {
	n := w.nodeAt(addr)
	if n == nil || n.summary == nil {
		return 0
	}
	return n.summary.members.GetCardinality()
}
