package hmm

import "math"

var negInf = math.Inf(-1)

// logSumExp returns log(sum(exp(xs))) without overflow. An all -Inf input
// returns -Inf.
func logSumExp(xs []float64) float64 {
	m := negInf
	for _, x := range xs {
		if x > m {
			m = x
		}
	}
	if math.IsInf(m, -1) {
		return negInf
	}
	sum := 0.0
	for _, x := range xs {
		sum += math.Exp(x - m)
	}
	return m + math.Log(sum)
}

func safeLog(x float64) float64 {
	if x <= 0 {
		return negInf
	}
	return math.Log(x)
}

func logMatrix(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for i, row := range m {
		out[i] = make([]float64, len(row))
		for j, v := range row {
			out[i][j] = safeLog(v)
		}
	}
	return out
}

func newMatrix(rows, cols int) [][]float64 {
	out := make([][]float64, rows)
	buf := make([]float64, rows*cols)
	for i := range out {
		out[i] = buf[i*cols : (i+1)*cols : (i+1)*cols]
	}
	return out
}

func finiteAll(vs ...[]float64) bool {
	for _, v := range vs {
		for _, x := range v {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return false
			}
		}
	}
	return true
}
