// Package hmm implements a Gaussian hidden Markov model with diagonal
// covariances: k-means initialisation, Baum-Welch fitting, Viterbi decoding
// and forward-backward posteriors. All recursions run in log space.
package hmm

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrEmpty          = errors.New("hmm: empty observation sequence")
	ErrDimension      = errors.New("hmm: observation dimension mismatch")
	ErrTooFewSamples  = errors.New("hmm: fewer samples than states")
	ErrNonFinite      = errors.New("hmm: non-finite value")
	ErrInvalidOptions = errors.New("hmm: invalid options")
)

const (
	DefaultMinCovar   = 1e-3
	DefaultCovarPrior = 1e-2
	// occupancy below this keeps a state's previous emission parameters
	minOccupancy = 1e-300
)

// Gaussian is a K-state HMM with diagonal-covariance Gaussian emissions.
type Gaussian struct {
	StartProb []float64   // K
	TransMat  [][]float64 // K x K, rows sum to 1
	Means     [][]float64 // K x D
	Covars    [][]float64 // K x D, diagonal variances
}

func (g *Gaussian) States() int { return len(g.StartProb) }

func (g *Gaussian) Dim() int {
	if len(g.Means) == 0 {
		return 0
	}
	return len(g.Means[0])
}

// Clone returns a deep copy.
func (g *Gaussian) Clone() *Gaussian {
	c := &Gaussian{
		StartProb: clone(g.StartProb),
		TransMat:  make([][]float64, len(g.TransMat)),
		Means:     make([][]float64, len(g.Means)),
		Covars:    make([][]float64, len(g.Covars)),
	}
	for i := range g.TransMat {
		c.TransMat[i] = clone(g.TransMat[i])
	}
	for i := range g.Means {
		c.Means[i] = clone(g.Means[i])
		c.Covars[i] = clone(g.Covars[i])
	}
	return c
}

// Validate checks shapes and that every parameter is finite.
func (g *Gaussian) Validate() error {
	k, d := g.States(), g.Dim()
	if k == 0 || d == 0 {
		return fmt.Errorf("%w: no states", ErrInvalidOptions)
	}
	if len(g.TransMat) != k || len(g.Means) != k || len(g.Covars) != k {
		return fmt.Errorf("%w: parameter shapes disagree", ErrDimension)
	}
	if !finiteAll(g.StartProb) {
		return fmt.Errorf("%w: startprob", ErrNonFinite)
	}
	for i := 0; i < k; i++ {
		if len(g.TransMat[i]) != k || len(g.Means[i]) != d || len(g.Covars[i]) != d {
			return fmt.Errorf("%w: state %d", ErrDimension, i)
		}
		if !finiteAll(g.TransMat[i], g.Means[i], g.Covars[i]) {
			return fmt.Errorf("%w: state %d parameters", ErrNonFinite, i)
		}
		for _, v := range g.Covars[i] {
			if v <= 0 {
				return fmt.Errorf("%w: state %d has non-positive variance", ErrNonFinite, i)
			}
		}
	}
	return nil
}

func (g *Gaussian) checkObservations(x [][]float64) error {
	if len(x) == 0 {
		return ErrEmpty
	}
	d := g.Dim()
	for i, row := range x {
		if len(row) != d {
			return fmt.Errorf("%w: row %d has %d columns, want %d", ErrDimension, i, len(row), d)
		}
		if !finiteAll(row) {
			return fmt.Errorf("%w: row %d", ErrNonFinite, i)
		}
	}
	return nil
}

// logEmissions returns the T x K matrix of log N(x_t; mean_k, diag(covar_k)).
func (g *Gaussian) logEmissions(x [][]float64) [][]float64 {
	k, d := g.States(), g.Dim()
	consts := make([]float64, k)
	for s := 0; s < k; s++ {
		c := float64(d) * math.Log(2*math.Pi)
		for _, v := range g.Covars[s] {
			c += math.Log(v)
		}
		consts[s] = -0.5 * c
	}
	out := newMatrix(len(x), k)
	for t, row := range x {
		for s := 0; s < k; s++ {
			q := 0.0
			for j := 0; j < d; j++ {
				diff := row[j] - g.Means[s][j]
				q += diff * diff / g.Covars[s][j]
			}
			out[t][s] = consts[s] - 0.5*q
		}
	}
	return out
}

// initialParams seeds means with k-means, covariances with the per-feature
// sample variance plus minCovar, and start/transition probabilities uniform.
func initialParams(x [][]float64, k int, seed int64, minCovar float64) *Gaussian {
	d := len(x[0])
	n := float64(len(x))

	mean := make([]float64, d)
	for _, row := range x {
		for j, v := range row {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= n
	}
	variance := make([]float64, d)
	for _, row := range x {
		for j, v := range row {
			diff := v - mean[j]
			variance[j] += diff * diff
		}
	}
	for j := range variance {
		if n > 1 {
			variance[j] /= n - 1
		}
		variance[j] += minCovar
	}

	g := &Gaussian{
		StartProb: make([]float64, k),
		TransMat:  newMatrix(k, k),
		Means:     KMeans(x, k, seed),
		Covars:    make([][]float64, k),
	}
	for i := 0; i < k; i++ {
		g.StartProb[i] = 1 / float64(k)
		for j := 0; j < k; j++ {
			g.TransMat[i][j] = 1 / float64(k)
		}
		g.Covars[i] = clone(variance)
	}
	return g
}
