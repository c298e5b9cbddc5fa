package service

import (
	"RegimeTrader/internal/domain/models"
)

// RegimeClassifier labels feature rows with hidden states and regimes.
// Implementations are trained once and then safe for concurrent use.
type RegimeClassifier interface {
	Train(features [][]float64) error
	Decode(features [][]float64) (*Decoding, error)
	Posterior(features [][]float64) (*Posterior, error)
	LabelForState(state int) models.Regime
}

// Decoding is a Viterbi path aligned back to the caller's rows.
// Rows[i] is the index of the input row that produced States[i].
type Decoding struct {
	Rows   []int
	States []int
}

// Posterior holds per-row state occupation probabilities.
type Posterior struct {
	Rows []int
	Prob [][]float64
}
