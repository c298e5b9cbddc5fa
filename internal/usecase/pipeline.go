package usecase

import (
	"fmt"

	"RegimeTrader/internal/domain/models"
	domsvc "RegimeTrader/internal/domain/service"
	"RegimeTrader/internal/services/features"
	"RegimeTrader/internal/services/indicators"
)

// ClassifierFactory builds a fresh untrained classifier for one run.
type ClassifierFactory func() domsvc.RegimeClassifier

// LabelBars computes indicators and features for bars, trains clf on the
// feature rows, decodes them and joins each state back onto the bar that
// produced it. Bars without a feature row (warm-up, bad prices) are left
// out of the result.
func LabelBars(bars []models.Bar, clf domsvc.RegimeClassifier) ([]models.LabeledBar, *features.Matrix, error) {
	bars = indicators.Apply(bars)
	fm := features.Build(bars)
	x := fm.Float64s()
	if err := clf.Train(x); err != nil {
		return nil, fm, fmt.Errorf("train: %w", err)
	}
	dec, err := clf.Decode(x)
	if err != nil {
		return nil, fm, fmt.Errorf("decode: %w", err)
	}

	out := make([]models.LabeledBar, len(dec.States))
	for i, state := range dec.States {
		out[i] = models.LabeledBar{
			Bar:    bars[fm.Index[dec.Rows[i]]],
			State:  state,
			Regime: clf.LabelForState(state),
		}
	}
	return out, fm, nil
}
