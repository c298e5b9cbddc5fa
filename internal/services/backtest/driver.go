// Package backtest replays a labeled bar table through the entry/exit policy
// and the ledger.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"RegimeTrader/internal/domain/models"
	"RegimeTrader/internal/services/ledger"
	"RegimeTrader/internal/services/policy"
	"RegimeTrader/pkg/config"
	"RegimeTrader/pkg/logger"
)

var (
	ErrNoBars       = errors.New("no bars to backtest")
	ErrUnsortedBars = errors.New("bars are not strictly increasing in time")
)

// Driver runs one symbol at a time. It holds no per-run state, so a single
// Driver may serve concurrent runs.
type Driver struct {
	cfg    config.BacktestConfig
	policy *policy.Policy
	log    *logger.Logger
	now    func() time.Time
}

type Option func(*Driver)

func WithLogger(l *logger.Logger) Option {
	return func(d *Driver) { d.log = l }
}

// WithClock overrides the wall clock used for run timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Driver) { d.now = now }
}

func NewDriver(cfg config.BacktestConfig, pol config.PolicyConfig, opts ...Option) *Driver {
	d := &Driver{
		cfg:    cfg,
		policy: policy.New(pol, cfg.Cooldown),
		log:    logger.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.cfg.SampleEvery < 1 {
		d.cfg.SampleEvery = 1
	}
	return d
}

// Run simulates the strategy over bars. Each bar checks exit before entry,
// then marks to market; equity is sampled every SampleEvery bars starting
// at index 0. Any position still open after the last usable bar is closed
// there. A cancelled context abandons the run without a result.
func (d *Driver) Run(ctx context.Context, symbol string, bars []models.LabeledBar) (*models.BacktestResult, error) {
	if len(bars) == 0 {
		return nil, ErrNoBars
	}
	for i := 1; i < len(bars); i++ {
		if !bars[i].Timestamp.After(bars[i-1].Timestamp) {
			return nil, fmt.Errorf("%w: index %d (%s after %s)", ErrUnsortedBars, i,
				bars[i].Timestamp.Format(time.RFC3339), bars[i-1].Timestamp.Format(time.RFC3339))
		}
	}

	log := d.log.With(logger.String("symbol", symbol))
	started := d.now()
	led := ledger.New(d.cfg.InitialCapital, d.cfg.Leverage)
	curve := make([]models.EquityPoint, 0, len(bars)/d.cfg.SampleEvery+1)
	counts := map[models.Regime]int{}

	last := -1
	for i, bar := range bars {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("backtest %s cancelled at bar %d: %w", symbol, i, err)
		}
		counts[bar.Regime]++

		if !models.Defined(bar.Close) || bar.Close <= 0 {
			log.Warn("skipping bar with unusable close",
				logger.Int("index", i),
				logger.Time("timestamp", bar.Timestamp),
				logger.Float64("close", bar.Close))
			continue
		}
		last = i

		score := d.policy.Score(bar.Bar)
		log.Debug("conditions",
			logger.Time("timestamp", bar.Timestamp),
			logger.String("regime", bar.Regime.String()),
			logger.Int("met", score.Count),
			logger.String("checks", score.String()))

		if d.policy.ShouldExit(led.HasPosition(), bar.Regime) {
			led.Exit(bar.Timestamp, bar.Close, bar.Regime)
			log.Info("exit",
				logger.Time("timestamp", bar.Timestamp),
				logger.Float64("price", bar.Close),
				logger.String("regime", bar.Regime.String()),
				logger.Float64("cash", led.Cash()))
		}

		remaining := d.policy.CooldownRemaining(bar.Timestamp, led.LastExit())
		if d.policy.ShouldEnter(led.HasPosition(), bar.Regime, remaining, score) {
			led.Enter(bar.Timestamp, bar.Close, bar.Regime, score.Count)
			log.Info("entry",
				logger.Time("timestamp", bar.Timestamp),
				logger.Float64("price", bar.Close),
				logger.Int("conditions", score.Count))
		}

		led.MarkToMarket(bar.Close)
		if i%d.cfg.SampleEvery == 0 {
			curve = append(curve, models.EquityPoint{Timestamp: bar.Timestamp, Equity: led.Equity()})
		}
	}

	if last >= 0 && led.HasPosition() {
		b := bars[last]
		led.Exit(b.Timestamp, b.Close, b.Regime)
		log.Info("closing open position at end of data",
			logger.Time("timestamp", b.Timestamp),
			logger.Float64("price", b.Close))
	}

	res := summarize(led, bars, curve, d.cfg.InitialCapital)
	res.RunID = uuid.NewString()
	res.Symbol = symbol
	res.Bars = len(bars)
	res.RegimeCounts = counts
	res.StartedAt = started
	res.FinishedAt = d.now()

	log.Info("backtest finished",
		logger.String("run_id", res.RunID),
		logger.Float64("final_equity", res.FinalEquity),
		logger.Float64("total_return_pct", res.TotalReturnPct),
		logger.Float64("alpha", res.Alpha),
		logger.Int("trades", res.NumTrades))
	return res, nil
}
