package hmm

import "math"

// forward returns log alpha (T x K) and the sequence log-likelihood.
func forward(logStart []float64, logTrans, logB [][]float64) ([][]float64, float64) {
	t, k := len(logB), len(logStart)
	alpha := newMatrix(t, k)
	for s := 0; s < k; s++ {
		alpha[0][s] = logStart[s] + logB[0][s]
	}
	buf := make([]float64, k)
	for i := 1; i < t; i++ {
		for j := 0; j < k; j++ {
			for s := 0; s < k; s++ {
				buf[s] = alpha[i-1][s] + logTrans[s][j]
			}
			alpha[i][j] = logSumExp(buf) + logB[i][j]
		}
	}
	return alpha, logSumExp(alpha[t-1])
}

func backward(logTrans, logB [][]float64) [][]float64 {
	t, k := len(logB), len(logTrans)
	beta := newMatrix(t, k)
	buf := make([]float64, k)
	for i := t - 2; i >= 0; i-- {
		for s := 0; s < k; s++ {
			for j := 0; j < k; j++ {
				buf[j] = logTrans[s][j] + logB[i+1][j] + beta[i+1][j]
			}
			beta[i][s] = logSumExp(buf)
		}
	}
	return beta
}

// posteriors turns log alpha and log beta into normalised state occupation
// probabilities per time step.
func posteriors(alpha, beta [][]float64) [][]float64 {
	t, k := len(alpha), len(alpha[0])
	gamma := newMatrix(t, k)
	buf := make([]float64, k)
	for i := 0; i < t; i++ {
		for s := 0; s < k; s++ {
			buf[s] = alpha[i][s] + beta[i][s]
		}
		norm := logSumExp(buf)
		for s := 0; s < k; s++ {
			gamma[i][s] = math.Exp(buf[s] - norm)
		}
	}
	return gamma
}

// Posterior returns the T x K matrix of P(state_t = k | x) and the
// log-likelihood of x.
func (g *Gaussian) Posterior(x [][]float64) ([][]float64, float64, error) {
	if err := g.checkObservations(x); err != nil {
		return nil, 0, err
	}
	logB := g.logEmissions(x)
	logStart := make([]float64, g.States())
	for i, p := range g.StartProb {
		logStart[i] = safeLog(p)
	}
	logTrans := logMatrix(g.TransMat)
	alpha, ll := forward(logStart, logTrans, logB)
	if math.IsNaN(ll) || math.IsInf(ll, 0) {
		return nil, 0, ErrNonFinite
	}
	return posteriors(alpha, backward(logTrans, logB)), ll, nil
}

// Score returns the log-likelihood of x under the model.
func (g *Gaussian) Score(x [][]float64) (float64, error) {
	if err := g.checkObservations(x); err != nil {
		return 0, err
	}
	logStart := make([]float64, g.States())
	for i, p := range g.StartProb {
		logStart[i] = safeLog(p)
	}
	_, ll := forward(logStart, logMatrix(g.TransMat), g.logEmissions(x))
	if math.IsNaN(ll) || math.IsInf(ll, 0) {
		return 0, ErrNonFinite
	}
	return ll, nil
}

// Viterbi returns the most likely state path and its log-probability.
// Ties go to the lowest state id.
func (g *Gaussian) Viterbi(x [][]float64) ([]int, float64, error) {
	if err := g.checkObservations(x); err != nil {
		return nil, 0, err
	}
	k := g.States()
	logB := g.logEmissions(x)
	logTrans := logMatrix(g.TransMat)

	delta := make([]float64, k)
	next := make([]float64, k)
	back := make([][]int, len(x))
	for s := 0; s < k; s++ {
		delta[s] = safeLog(g.StartProb[s]) + logB[0][s]
	}
	for t := 1; t < len(x); t++ {
		back[t] = make([]int, k)
		for j := 0; j < k; j++ {
			best, arg := negInf, 0
			for s := 0; s < k; s++ {
				if v := delta[s] + logTrans[s][j]; v > best {
					best, arg = v, s
				}
			}
			next[j] = best + logB[t][j]
			back[t][j] = arg
		}
		delta, next = next, delta
	}

	best, last := negInf, 0
	for s := 0; s < k; s++ {
		if delta[s] > best {
			best, last = delta[s], s
		}
	}
	if math.IsNaN(best) || math.IsInf(best, 0) {
		return nil, 0, ErrNonFinite
	}
	path := make([]int, len(x))
	path[len(x)-1] = last
	for t := len(x) - 1; t > 0; t-- {
		path[t-1] = back[t][path[t]]
	}
	return path, best, nil
}
