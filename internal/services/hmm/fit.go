package hmm

import (
	"fmt"
	"math"
)

// FitOptions configures Baum-Welch training.
type FitOptions struct {
	States     int
	Iterations int     // upper bound on EM iterations
	Tolerance  float64 // stop once the log-likelihood gain drops below this
	Seed       int64   // k-means initialiser seed
	MinCovar   float64
	CovarPrior float64
}

// FitResult reports how training went.
type FitResult struct {
	Iterations    int
	LogLikelihood float64
	Converged     bool
	History       []float64
}

type sufficientStats struct {
	start []float64
	trans [][]float64
	post  []float64   // sum_t gamma[t][k]
	obs   [][]float64 // sum_t gamma[t][k] * x_t
	obsSq [][]float64 // sum_t gamma[t][k] * x_t^2
}

// Fit trains a model on a single observation sequence. Initial parameters
// come from k-means with opts.Seed, so identical input and options always
// produce the same model.
func Fit(x [][]float64, opts FitOptions) (*Gaussian, *FitResult, error) {
	if opts.States < 1 || opts.Iterations < 1 || opts.Tolerance < 0 {
		return nil, nil, fmt.Errorf("%w: states=%d iterations=%d tol=%g",
			ErrInvalidOptions, opts.States, opts.Iterations, opts.Tolerance)
	}
	if opts.MinCovar <= 0 {
		opts.MinCovar = DefaultMinCovar
	}
	if opts.CovarPrior <= 0 {
		opts.CovarPrior = DefaultCovarPrior
	}
	if len(x) == 0 {
		return nil, nil, ErrEmpty
	}
	if len(x) < opts.States {
		return nil, nil, fmt.Errorf("%w: %d samples for %d states", ErrTooFewSamples, len(x), opts.States)
	}
	d := len(x[0])
	for i, row := range x {
		if len(row) != d || d == 0 {
			return nil, nil, fmt.Errorf("%w: row %d", ErrDimension, i)
		}
		if !finiteAll(row) {
			return nil, nil, fmt.Errorf("%w: row %d", ErrNonFinite, i)
		}
	}

	g := initialParams(x, opts.States, opts.Seed, opts.MinCovar)
	if err := g.Validate(); err != nil {
		return nil, nil, err
	}

	res := &FitResult{}
	for iter := 0; iter < opts.Iterations; iter++ {
		stats, ll := g.expectation(x)
		if math.IsNaN(ll) || math.IsInf(ll, 0) {
			return nil, res, fmt.Errorf("%w: log-likelihood at iteration %d", ErrNonFinite, iter)
		}
		g.maximization(stats, opts)
		if err := g.Validate(); err != nil {
			return nil, res, fmt.Errorf("iteration %d: %w", iter, err)
		}

		res.Iterations = iter + 1
		res.LogLikelihood = ll
		res.History = append(res.History, ll)
		if n := len(res.History); n >= 2 && res.History[n-1]-res.History[n-2] < opts.Tolerance {
			res.Converged = true
			break
		}
	}
	return g, res, nil
}

func (g *Gaussian) expectation(x [][]float64) (*sufficientStats, float64) {
	k, d := g.States(), g.Dim()
	logB := g.logEmissions(x)
	logStart := make([]float64, k)
	for i, p := range g.StartProb {
		logStart[i] = safeLog(p)
	}
	logTrans := logMatrix(g.TransMat)

	alpha, ll := forward(logStart, logTrans, logB)
	if math.IsNaN(ll) || math.IsInf(ll, 0) {
		return nil, ll
	}
	beta := backward(logTrans, logB)
	gamma := posteriors(alpha, beta)

	st := &sufficientStats{
		start: clone(gamma[0]),
		trans: newMatrix(k, k),
		post:  make([]float64, k),
		obs:   newMatrix(k, d),
		obsSq: newMatrix(k, d),
	}
	for t := 0; t+1 < len(x); t++ {
		for i := 0; i < k; i++ {
			if math.IsInf(alpha[t][i], -1) {
				continue
			}
			for j := 0; j < k; j++ {
				v := alpha[t][i] + logTrans[i][j] + logB[t+1][j] + beta[t+1][j] - ll
				st.trans[i][j] += math.Exp(v)
			}
		}
	}
	for t, row := range x {
		for s := 0; s < k; s++ {
			w := gamma[t][s]
			st.post[s] += w
			for j, v := range row {
				st.obs[s][j] += w * v
				st.obsSq[s][j] += w * v * v
			}
		}
	}
	return st, ll
}

// maximization re-estimates parameters in place. A state whose occupancy is
// effectively zero keeps its previous emission parameters, and a transition
// row with no mass keeps its previous probabilities.
func (g *Gaussian) maximization(st *sufficientStats, opts FitOptions) {
	k, d := g.States(), g.Dim()

	if total := sum(st.start); total > 0 {
		for i := range g.StartProb {
			g.StartProb[i] = st.start[i] / total
		}
	}
	for i := 0; i < k; i++ {
		total := sum(st.trans[i])
		if total <= 0 {
			continue
		}
		for j := 0; j < k; j++ {
			g.TransMat[i][j] = st.trans[i][j] / total
		}
	}

	for s := 0; s < k; s++ {
		denom := st.post[s]
		if denom < minOccupancy {
			continue
		}
		for j := 0; j < d; j++ {
			mean := st.obs[s][j] / denom
			// sum_t w (x - mean)^2 expanded in terms of the accumulated moments
			num := st.obsSq[s][j] - 2*mean*st.obs[s][j] + mean*mean*denom
			if num < 0 {
				num = 0
			}
			g.Means[s][j] = mean
			g.Covars[s][j] = (opts.CovarPrior+num)/math.Max(denom, 1e-5) + opts.MinCovar
		}
	}
}

func sum(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += x
	}
	return s
}
