package features

import (
	"math"

	"RegimeTrader/internal/domain/models"
	"RegimeTrader/internal/services/indicators"
)

// DispersionWindow is the number of returns behind the third feature.
const DispersionWindow = 20

// Vector is (log return, range ratio, return dispersion) for one bar.
type Vector [3]float64

// Matrix is the feature table with warm-up and invalid rows removed.
// Index[i] is the position in the source bar slice that produced Rows[i].
type Matrix struct {
	Rows  []Vector
	Index []int
}

func (m *Matrix) Len() int { return len(m.Rows) }

// Float64s returns the rows as a plain [][]float64 for the regime model.
func (m *Matrix) Float64s() [][]float64 {
	out := make([][]float64, len(m.Rows))
	for i := range m.Rows {
		row := m.Rows[i]
		out[i] = row[:]
	}
	return out
}

// ComputeLogReturns computes log returns r_t = ln(C_t / C_{t-1}).
// The output has len(bars) entries; entry 0 and entries touching a
// non-positive close are NaN.
func ComputeLogReturns(bars []models.Bar) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return indicators.LogReturns(closes)
}

// RangeRatio is (high - low) / close, NaN for a non-positive close.
func RangeRatio(b models.Bar) float64 {
	if b.Close <= 0 || math.IsNaN(b.Close) {
		return math.NaN()
	}
	return (b.High - b.Low) / b.Close
}

// Build derives the feature matrix. A row is kept only when all three
// features are finite, so the first DispersionWindow bars never appear.
func Build(bars []models.Bar) *Matrix {
	returns := ComputeLogReturns(bars)
	dispersion := indicators.RollingStd(returns, DispersionWindow)

	m := &Matrix{
		Rows:  make([]Vector, 0, len(bars)),
		Index: make([]int, 0, len(bars)),
	}
	for i, b := range bars {
		v := Vector{returns[i], RangeRatio(b), dispersion[i]}
		if !finite(v) {
			continue
		}
		m.Rows = append(m.Rows, v)
		m.Index = append(m.Index, i)
	}
	return m
}

func finite(v Vector) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
