package covertree

// DiagGaussian is the diagonal-covariance Gaussian summary of one node's
// covered members: an independent mean and variance per dimension.
// Immutable once attached.
type DiagGaussian struct {
	mean     []float32
	variance []float32
	count    uint64
}

// newDiagGaussian accumulates per-dimension first and second moments over
// the summary's member set.
func newDiagGaussian(cloud PointCloud, summary *nodeSummary) (*DiagGaussian, error) {
	dim := cloud.Dim()
	sum := make([]float64, dim)
	sumSq := make([]float64, dim)

	var count uint64
	it := summary.members.Iterator()
	for it.HasNext() {
		p := cloud.PointAt(int(it.Next()))
		for j, v := range p {
			f := float64(v)
			sum[j] += f
			sumSq[j] += f * f
		}
		count++
	}

	mean := make([]float32, dim)
	variance := make([]float32, dim)
	n := float64(count)
	for j := 0; j < dim; j++ {
		m := sum[j] / n
		mean[j] = float32(m)
		v := sumSq[j]/n - m*m
		if v < 0 {
			v = 0
		}
		variance[j] = float32(v)
	}
	return &DiagGaussian{mean: mean, variance: variance, count: count}, nil
}

// Mean returns a copy of the per-dimension means.
func (g *DiagGaussian) Mean() []float32 {
	return append([]float32(nil), g.mean...)
}

// Variance returns a copy of the per-dimension population variances.
func (g *DiagGaussian) Variance() []float32 {
	return append([]float32(nil), g.variance...)
}

// Count returns the number of members the summary was computed over.
func (g *DiagGaussian) Count() uint64 { return g.count }
