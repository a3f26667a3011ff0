package covertree

import "math"

// DirichletCategorical is a node's traversal baseline: a Dirichlet
// distribution over the categorical choice a descending point makes at the
// node. Outcomes are the node's child branches plus one trailing "stay"
// bucket for points that leaf-place at the node itself (its representative
// and singletons). Concentrations are proportional to covered counts, so
// the baseline is the empirical traversal distribution at build time.
// Immutable once attached.
type DirichletCategorical struct {
	outcomes      []NodeAddress
	concentration []float64
}

// newDirichletCategorical derives the baseline from summarized covered
// counts. Every concentration is strictly positive: children cover at least
// their representative, and the stay bucket counts the representative
// itself plus singletons.
func newDirichletCategorical(node *CoverNode, coveredCount func(NodeAddress) uint64) *DirichletCategorical {
	outcomes := node.Children()
	concentration := make([]float64, len(outcomes)+1)
	for i, child := range outcomes {
		concentration[i] = float64(coveredCount(child))
	}
	concentration[len(outcomes)] = float64(node.SingletonCount()) + 1
	return &DirichletCategorical{outcomes: outcomes, concentration: concentration}
}

// Outcomes returns a copy of the child branch addresses, aligned with the
// leading entries of Concentrations. The final concentration entry is the
// stay bucket and has no address.
func (d *DirichletCategorical) Outcomes() []NodeAddress {
	return append([]NodeAddress(nil), d.outcomes...)
}

// Concentrations returns a copy of the Dirichlet concentration parameters.
func (d *DirichletCategorical) Concentrations() []float64 {
	return append([]float64(nil), d.concentration...)
}

// Total returns the sum of the concentration parameters.
func (d *DirichletCategorical) Total() float64 {
	var t float64
	for _, a := range d.concentration {
		t += a
	}
	return t
}

// Prob returns the mean probability of outcome i under the baseline.
func (d *DirichletCategorical) Prob(i int) float64 {
	return d.concentration[i] / d.Total()
}

// stayIndex is the outcome index of the stay bucket.
func (d *DirichletCategorical) stayIndex() int { return len(d.outcomes) }

// branchIndex maps the next address on a traversal path to its outcome
// index, or the stay bucket when the path ends at this node.
func (d *DirichletCategorical) branchIndex(next NodeAddress, hasNext bool) int {
	if hasNext {
		for i, o := range d.outcomes {
			if o == next {
				return i
			}
		}
	}
	return d.stayIndex()
}

// ============================================================================
// KL DIVERGENCE
// ============================================================================

// dirichletKL computes KL(Dir(alpha) || Dir(beta)) for equal-length,
// strictly positive parameter vectors:
//
//	lnΓ(α0) − lnΓ(β0) + Σ [lnΓ(βi) − lnΓ(αi)] + Σ (αi − βi)(ψ(αi) − ψ(α0))
//
// The result is clamped at zero against floating-point round-off.
func dirichletKL(alpha, beta []float64) float64 {
	var a0, b0 float64
	for i := range alpha {
		a0 += alpha[i]
		b0 += beta[i]
	}
	lgA0, _ := math.Lgamma(a0)
	lgB0, _ := math.Lgamma(b0)
	kl := lgA0 - lgB0
	dgA0 := digamma(a0)
	for i := range alpha {
		lga, _ := math.Lgamma(alpha[i])
		lgb, _ := math.Lgamma(beta[i])
		kl += lgb - lga + (alpha[i]-beta[i])*(digamma(alpha[i])-dgA0)
	}
	if kl < 0 {
		return 0
	}
	return kl
}

// digamma evaluates ψ(x) for x > 0 via the ascending recurrence and the
// standard asymptotic series above 10. At that threshold the truncation
// error is below 1e-12, well under the precision the KL scores need.
func digamma(x float64) float64 {
	var r float64
	for x < 10 {
		r -= 1 / x
		x++
	}
	f := 1 / (x * x)
	r += math.Log(x) - 0.5/x - f*(1.0/12.0-f*(1.0/120.0-f*(1.0/252.0-f/240.0)))
	return r
}
