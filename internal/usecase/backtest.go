package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"RegimeTrader/internal/domain/models"
	domrepo "RegimeTrader/internal/domain/repository"
	"RegimeTrader/internal/services/backtest"
	"RegimeTrader/internal/services/regime"
	applogger "RegimeTrader/pkg/logger"
	pkgmetrics "RegimeTrader/pkg/metrics"
	"RegimeTrader/pkg/util"
)

// ResultCache is the subset of the result cache the use case needs.
type ResultCache interface {
	Get(ctx context.Context, key string) (*models.BacktestResult, error)
	Put(ctx context.Context, key string, r *models.BacktestResult) error
}

// BacktestUseCase runs the full pipeline for one symbol: load bars, label
// them with a freshly trained regime model, replay them through the driver
// and hand the result to the configured sinks.
type BacktestUseCase struct {
	bars     domrepo.BarStore
	newModel ClassifierFactory
	driver   *backtest.Driver
	metrics  domrepo.Metrics
	l        *applogger.Logger

	publisher domrepo.ResultPublisher
	store     domrepo.ResultStore
	cache     ResultCache
	cacheKey  func(symbol, tf string, days int) string

	days    int
	tf      domrepo.Timeframe
	timeout time.Duration
	now     func() time.Time
}

type BacktestOption func(*BacktestUseCase)

func WithPublisher(p domrepo.ResultPublisher) BacktestOption {
	return func(uc *BacktestUseCase) { uc.publisher = p }
}

func WithResultStore(s domrepo.ResultStore) BacktestOption {
	return func(uc *BacktestUseCase) { uc.store = s }
}

func WithResultCache(c ResultCache, key func(symbol, tf string, days int) string) BacktestOption {
	return func(uc *BacktestUseCase) { uc.cache, uc.cacheKey = c, key }
}

// WithDefaults sets the lookback and timeframe used when a request leaves
// them empty.
func WithDefaults(days int, tf domrepo.Timeframe) BacktestOption {
	return func(uc *BacktestUseCase) { uc.days, uc.tf = days, tf }
}

// WithTimeout bounds a single run, fetch included.
func WithTimeout(d time.Duration) BacktestOption {
	return func(uc *BacktestUseCase) { uc.timeout = d }
}

func WithNow(now func() time.Time) BacktestOption {
	return func(uc *BacktestUseCase) { uc.now = now }
}

func NewBacktestUseCase(bars domrepo.BarStore, newModel ClassifierFactory, driver *backtest.Driver, m domrepo.Metrics, l *applogger.Logger, opts ...BacktestOption) *BacktestUseCase {
	if l == nil {
		l = applogger.Nop()
	}
	if m == nil {
		m = pkgmetrics.Nop{}
	}
	uc := &BacktestUseCase{
		bars:     bars,
		newModel: newModel,
		driver:   driver,
		metrics:  m,
		l:        l,
		days:     730,
		tf:       domrepo.DefaultTimeframe(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

type BacktestParams struct {
	Symbol    string
	Days      int
	Timeframe domrepo.Timeframe
	// Bars, when set, replaces the bar store (e.g. a CSV given on the CLI).
	Bars []models.Bar
	// Fresh skips the result cache lookup.
	Fresh bool
}

func (uc *BacktestUseCase) defaults(p *BacktestParams) error {
	p.Symbol = util.NormalizeSymbol(p.Symbol)
	if p.Symbol == "" {
		return fmt.Errorf("symbol required")
	}
	if p.Days <= 0 {
		p.Days = uc.days
	}
	if p.Timeframe == "" {
		p.Timeframe = uc.tf
	}
	if !domrepo.IsValidTimeframe(p.Timeframe) {
		return fmt.Errorf("unsupported timeframe: %s", p.Timeframe)
	}
	return nil
}

// Run executes one backtest. A failed run returns no result; sink failures
// are logged and counted but never fail the run.
func (uc *BacktestUseCase) Run(ctx context.Context, p BacktestParams) (*models.BacktestResult, error) {
	if err := uc.defaults(&p); err != nil {
		return nil, err
	}
	if uc.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.timeout)
		defer cancel()
	}

	key := ""
	if uc.cache != nil && p.Bars == nil {
		key = uc.cacheKey(p.Symbol, string(p.Timeframe), p.Days)
		if !p.Fresh {
			if r, err := uc.cache.Get(ctx, key); err != nil {
				uc.l.Warn("result cache get failed", applogger.String("key", key), applogger.Error(err))
			} else if r != nil {
				uc.l.Debug("result cache hit", applogger.String("key", key))
				return r, nil
			}
		}
	}

	start := time.Now()
	res, err := uc.run(ctx, p)
	if err != nil {
		uc.metrics.RecordRun(p.Symbol, "error", time.Since(start).Seconds())
		switch {
		case errors.Is(err, regime.ErrInsufficientData):
			uc.metrics.RecordTrainingFailure("insufficient_data")
		case errors.Is(err, regime.ErrModelFit):
			uc.metrics.RecordTrainingFailure("model_fit")
		}
		uc.l.Error("backtest failed", applogger.String("symbol", p.Symbol), applogger.Error(err))
		return nil, err
	}
	uc.metrics.RecordRun(p.Symbol, "ok", time.Since(start).Seconds())
	uc.metrics.RecordTrades(p.Symbol, res.NumTrades)
	uc.metrics.RecordResult(p.Symbol, res.FinalEquity, res.Alpha)

	uc.sink(ctx, key, res)
	return res, nil
}

func (uc *BacktestUseCase) run(ctx context.Context, p BacktestParams) (*models.BacktestResult, error) {
	bars := p.Bars
	if bars == nil {
		to := uc.now().UTC()
		from, to := util.AlignFromTo(to.AddDate(0, 0, -p.Days), to, string(p.Timeframe))
		var err error
		bars, err = uc.bars.GetBars(ctx, p.Symbol, from, to, p.Timeframe)
		if err != nil {
			return nil, fmt.Errorf("load bars %s: %w", p.Symbol, err)
		}
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: no bars for %s", regime.ErrInsufficientData, p.Symbol)
	}

	labeled, _, err := LabelBars(bars, uc.newModel())
	if err != nil {
		return nil, fmt.Errorf("label %s: %w", p.Symbol, err)
	}
	return uc.driver.Run(ctx, p.Symbol, labeled)
}

func (uc *BacktestUseCase) sink(ctx context.Context, key string, res *models.BacktestResult) {
	if uc.publisher != nil {
		if err := uc.publisher.Publish(ctx, res); err != nil {
			uc.metrics.RecordError("publish")
			uc.l.Warn("publish result failed", applogger.String("run_id", res.RunID), applogger.Error(err))
		}
	}
	if uc.store != nil {
		if err := uc.store.Store(ctx, res); err != nil {
			uc.metrics.RecordError("store")
			uc.l.Warn("store result failed", applogger.String("run_id", res.RunID), applogger.Error(err))
		}
	}
	if key != "" {
		if err := uc.cache.Put(ctx, key, res); err != nil {
			uc.metrics.RecordError("cache")
			uc.l.Warn("cache result failed", applogger.String("key", key), applogger.Error(err))
		}
	}
}
