package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"RegimeTrader/internal/domain/models"
	domrepo "RegimeTrader/internal/domain/repository"
	domsvc "RegimeTrader/internal/domain/service"
	"RegimeTrader/internal/repository"
	"RegimeTrader/internal/services/backtest"
	"RegimeTrader/internal/services/regime"
	"RegimeTrader/pkg/cache"
	"RegimeTrader/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// trendingBars alternates 30-bar up and down legs.
func trendingBars(n int) []models.Bar {
	bars := make([]models.Bar, n)
	price := 100.0
	for i := range bars {
		open := price
		if i > 0 {
			drift := 0.004
			if (i/30)%2 == 1 {
				drift = -0.004
			}
			price *= math.Exp(drift)
		}
		bars[i] = models.Bar{
			Timestamp: t0.Add(time.Duration(i) * time.Hour),
			Open:      open,
			High:      price * 1.005,
			Low:       price * 0.995,
			Close:     price,
			Volume:    1000,
		}
	}
	return bars
}

// signClassifier labels rows by the sign of the return column: state 0
// (Bull) for positive returns, state 1 (Bear) otherwise.
type signClassifier struct{}

func (signClassifier) Train(x [][]float64) error {
	if len(x) < 10 {
		return regime.ErrInsufficientData
	}
	return nil
}

func (signClassifier) Decode(x [][]float64) (*domsvc.Decoding, error) {
	d := &domsvc.Decoding{}
	for i, row := range x {
		d.Rows = append(d.Rows, i)
		if row[0] > 0 {
			d.States = append(d.States, 0)
		} else {
			d.States = append(d.States, 1)
		}
	}
	return d, nil
}

func (c signClassifier) Posterior(x [][]float64) (*domsvc.Posterior, error) {
	d, _ := c.Decode(x)
	p := &domsvc.Posterior{Rows: d.Rows}
	for _, s := range d.States {
		row := []float64{0, 0}
		row[s] = 1
		p.Prob = append(p.Prob, row)
	}
	return p, nil
}

func (signClassifier) LabelForState(s int) models.Regime {
	switch s {
	case 0:
		return models.RegimeBull
	case 1:
		return models.RegimeBear
	}
	return models.RegimeNeutral
}

func signFactory() domsvc.RegimeClassifier { return signClassifier{} }

type fakeStore struct {
	mu    sync.Mutex
	bars  map[string][]models.Bar
	calls int
}

func (f *fakeStore) GetBars(_ context.Context, symbol string, _, _ time.Time, _ domrepo.Timeframe) ([]models.Bar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	b, ok := f.bars[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", repository.ErrSymbolNotFound, symbol)
	}
	// callers mutate indicators in place
	return append([]models.Bar(nil), b...), nil
}

type fakeMetrics struct {
	mu       sync.Mutex
	runs     map[string]int
	failures map[string]int
	errors   map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{runs: map[string]int{}, failures: map[string]int{}, errors: map[string]int{}}
}

func (m *fakeMetrics) RecordRun(_, status string, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[status]++
}
func (m *fakeMetrics) RecordTrades(string, int) {}
func (m *fakeMetrics) RecordResult(string, float64, float64) {}
func (m *fakeMetrics) RecordTrainingFailure(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[kind]++
}
func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

type fakePublisher struct {
	n   int
	err error
}

func (p *fakePublisher) Publish(context.Context, *models.BacktestResult) error {
	p.n++
	return p.err
}
func (p *fakePublisher) Close() error { return nil }

func newUseCase(store domrepo.BarStore, m domrepo.Metrics, f ClassifierFactory, opts ...BacktestOption) *BacktestUseCase {
	cfg := config.Default()
	drv := backtest.NewDriver(cfg.Backtest, cfg.Policy)
	opts = append(opts, WithNow(func() time.Time { return t0.Add(300 * time.Hour) }))
	return NewBacktestUseCase(store, f, drv, m, nil, opts...)
}

func countActions(trades []models.Trade) (buys, sells int) {
	for _, t := range trades {
		if t.Action == models.ActionBuy {
			buys++
		} else {
			sells++
		}
	}
	return buys, sells
}

func TestLabelBarsJoinsByIndex(t *testing.T) {
	bars := trendingBars(100)
	labeled, fm, err := LabelBars(bars, signClassifier{})
	require.NoError(t, err)
	// 20 warm-up bars have no dispersion feature
	require.Len(t, labeled, 80)
	assert.Equal(t, 80, fm.Len())
	assert.Equal(t, bars[20].Timestamp, labeled[0].Timestamp)
	assert.Equal(t, models.RegimeBull, labeled[0].Regime)
	assert.Equal(t, models.RegimeBear, labeled[10].Regime) // bar 30 starts the first down leg
	assert.False(t, math.IsNaN(labeled[79].Indicators.EMAShort))
}

func TestBacktestRun(t *testing.T) {
	store := &fakeStore{bars: map[string][]models.Bar{"AAPL": trendingBars(200)}}
	m := newFakeMetrics()
	pub := &fakePublisher{err: errors.New("broker down")}
	uc := newUseCase(store, m, signFactory, WithPublisher(pub))

	res, err := uc.Run(context.Background(), BacktestParams{Symbol: " aapl "})
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, "AAPL", res.Symbol)
	assert.Equal(t, 180, res.Bars)
	assert.NotEmpty(t, res.RunID)
	buys, sells := countActions(res.Trades)
	assert.Greater(t, buys, 0)
	assert.Equal(t, buys, sells)
	assert.Equal(t, buys, res.NumTrades)

	total := 0
	for _, n := range res.RegimeCounts {
		total += n
	}
	assert.Equal(t, res.Bars, total)

	// a failing sink is logged and counted, never fatal
	assert.Equal(t, 1, pub.n)
	assert.Equal(t, 1, m.errors["publish"])
	assert.Equal(t, 1, m.runs["ok"])
}

func TestBacktestRunUsesCache(t *testing.T) {
	store := &fakeStore{bars: map[string][]models.Bar{"AAPL": trendingBars(200)}}
	mc := cache.NewMemoryCache()
	defer mc.Close()
	rc := repository.NewResultCache(mc, time.Minute)
	uc := newUseCase(store, nil, signFactory, WithResultCache(rc, repository.ResultKey))
	ctx := context.Background()

	first, err := uc.Run(ctx, BacktestParams{Symbol: "AAPL"})
	require.NoError(t, err)
	second, err := uc.Run(ctx, BacktestParams{Symbol: "AAPL"})
	require.NoError(t, err)
	assert.Equal(t, 1, store.calls)
	assert.Equal(t, first.RunID, second.RunID)

	third, err := uc.Run(ctx, BacktestParams{Symbol: "AAPL", Fresh: true})
	require.NoError(t, err)
	assert.Equal(t, 2, store.calls)
	assert.NotEqual(t, first.RunID, third.RunID)
}

func TestBacktestRunWithPreloadedBars(t *testing.T) {
	store := &fakeStore{}
	uc := newUseCase(store, nil, signFactory)

	res, err := uc.Run(context.Background(), BacktestParams{Symbol: "CSV", Bars: trendingBars(120)})
	require.NoError(t, err)
	assert.Equal(t, 100, res.Bars)
	assert.Equal(t, 0, store.calls)
}

func TestBacktestRunInsufficientData(t *testing.T) {
	store := &fakeStore{bars: map[string][]models.Bar{"TINY": trendingBars(50)}}
	m := newFakeMetrics()
	newModel := func() domsvc.RegimeClassifier { return regime.New(config.Default().Regime) }
	uc := newUseCase(store, m, newModel)

	res, err := uc.Run(context.Background(), BacktestParams{Symbol: "TINY"})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, regime.ErrInsufficientData)
	assert.Equal(t, 1, m.failures["insufficient_data"])
	assert.Equal(t, 1, m.runs["error"])
}

func TestBacktestRunErrors(t *testing.T) {
	store := &fakeStore{bars: map[string][]models.Bar{}}
	uc := newUseCase(store, nil, signFactory)
	ctx := context.Background()

	_, err := uc.Run(ctx, BacktestParams{Symbol: "  "})
	assert.Error(t, err)

	_, err = uc.Run(ctx, BacktestParams{Symbol: "AAPL", Timeframe: "4h"})
	assert.Error(t, err)

	_, err = uc.Run(ctx, BacktestParams{Symbol: "NOPE"})
	assert.ErrorIs(t, err, repository.ErrSymbolNotFound)
}

func TestRegimeSnapshot(t *testing.T) {
	store := &fakeStore{bars: map[string][]models.Bar{"AAPL": trendingBars(200)}}
	uc := NewRegimeUseCase(store, signFactory, nil)

	snap, err := uc.Snapshot(context.Background(), RegimeParams{Symbol: "AAPL"})
	require.NoError(t, err)
	// bar 199 sits on an up leg
	assert.Equal(t, models.RegimeBull, snap.Regime)
	assert.Equal(t, 0, snap.State)
	assert.Equal(t, 1.0, snap.Confidence)
	assert.Equal(t, t0.Add(199*time.Hour), snap.Timestamp)
	assert.Equal(t, 180, snap.Bars)
	assert.Equal(t, []int{0}, snap.BullStates)
	assert.Equal(t, []int{1}, snap.BearStates)
	assert.Equal(t, 180, snap.Distribution[models.RegimeBull]+snap.Distribution[models.RegimeBear])
}

func TestWatchlistRun(t *testing.T) {
	store := &fakeStore{bars: map[string][]models.Bar{
		"AAA": trendingBars(200),
		"BBB": trendingBars(150),
	}}
	bt := newUseCase(store, nil, signFactory)
	uc := NewWatchlistUseCase(bt, []string{"AAA", "BAD", "BBB"}, 2, nil)

	entries := uc.Run(context.Background(), nil, 0, "")
	require.Len(t, entries, 3)
	assert.Equal(t, "AAA", entries[0].Symbol)
	assert.NotNil(t, entries[0].Result)
	assert.Equal(t, "BAD", entries[1].Symbol)
	assert.Nil(t, entries[1].Result)
	assert.Contains(t, entries[1].Error, "symbol not found")
	assert.Equal(t, "BBB", entries[2].Symbol)
	assert.NotNil(t, entries[2].Result)

	ranked := RankByAlpha(entries)
	require.Len(t, ranked, 2)
	assert.GreaterOrEqual(t, ranked[0].Result.Alpha, ranked[1].Result.Alpha)
}

func TestWatchlistCancelled(t *testing.T) {
	store := &fakeStore{bars: map[string][]models.Bar{"AAA": trendingBars(200)}}
	uc := NewWatchlistUseCase(newUseCase(store, nil, signFactory), []string{"AAA", "AAA"}, 1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, e := range uc.Run(ctx, nil, 0, "") {
		assert.Nil(t, e.Result)
		assert.NotEmpty(t, e.Error)
	}
}
