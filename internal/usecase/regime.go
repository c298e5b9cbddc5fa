package usecase

import (
	"context"
	"fmt"
	"time"

	"RegimeTrader/internal/domain/models"
	domrepo "RegimeTrader/internal/domain/repository"
	"RegimeTrader/internal/services/regime"
	applogger "RegimeTrader/pkg/logger"
	"RegimeTrader/pkg/util"
)

// RegimeUseCase trains a model over a symbol's history and reports the
// regime of the latest bar with its posterior confidence.
type RegimeUseCase struct {
	bars     domrepo.BarStore
	newModel ClassifierFactory
	l        *applogger.Logger
	now      func() time.Time
}

func NewRegimeUseCase(bars domrepo.BarStore, newModel ClassifierFactory, l *applogger.Logger) *RegimeUseCase {
	if l == nil {
		l = applogger.Nop()
	}
	return &RegimeUseCase{bars: bars, newModel: newModel, l: l, now: time.Now}
}

type RegimeParams struct {
	Symbol    string
	Days      int
	Timeframe domrepo.Timeframe
}

func (uc *RegimeUseCase) Snapshot(ctx context.Context, p RegimeParams) (*models.RegimeSnapshot, error) {
	p.Symbol = util.NormalizeSymbol(p.Symbol)
	if p.Symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if p.Days <= 0 {
		p.Days = 730
	}
	if !domrepo.IsValidTimeframe(p.Timeframe) {
		p.Timeframe = domrepo.DefaultTimeframe()
	}

	to := uc.now().UTC()
	from, to := util.AlignFromTo(to.AddDate(0, 0, -p.Days), to, string(p.Timeframe))
	bars, err := uc.bars.GetBars(ctx, p.Symbol, from, to, p.Timeframe)
	if err != nil {
		return nil, fmt.Errorf("load bars %s: %w", p.Symbol, err)
	}

	clf := uc.newModel()
	labeled, fm, err := LabelBars(bars, clf)
	if err != nil {
		return nil, fmt.Errorf("label %s: %w", p.Symbol, err)
	}
	if len(labeled) == 0 {
		return nil, fmt.Errorf("%w: no usable rows for %s", regime.ErrInsufficientData, p.Symbol)
	}

	// posterior of the last usable row, conditioned on the whole history
	post, err := clf.Posterior(fm.Float64s())
	if err != nil {
		return nil, fmt.Errorf("posterior %s: %w", p.Symbol, err)
	}
	lastBar := labeled[len(labeled)-1]
	snap := &models.RegimeSnapshot{
		Symbol:       p.Symbol,
		Timestamp:    lastBar.Timestamp,
		State:        lastBar.State,
		Regime:       lastBar.Regime,
		Distribution: map[models.Regime]int{},
		Bars:         len(labeled),
	}
	if n := len(post.Prob); n > 0 {
		snap.Prob = post.Prob[n-1]
		if lastBar.State >= 0 && lastBar.State < len(snap.Prob) {
			snap.Confidence = snap.Prob[lastBar.State]
		}
	}
	for _, b := range labeled {
		snap.Distribution[b.Regime]++
	}
	for s := range snap.Prob {
		switch clf.LabelForState(s) {
		case models.RegimeBull:
			snap.BullStates = append(snap.BullStates, s)
		case models.RegimeBear:
			snap.BearStates = append(snap.BearStates, s)
		}
	}

	uc.l.Info("regime snapshot",
		applogger.String("symbol", p.Symbol),
		applogger.String("regime", snap.Regime.String()),
		applogger.Int("state", snap.State),
		applogger.Float64("confidence", snap.Confidence),
	)
	return snap, nil
}
