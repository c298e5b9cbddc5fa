package usecase

import (
	"context"
	"sort"
	"sync"

	"RegimeTrader/internal/domain/models"
	domrepo "RegimeTrader/internal/domain/repository"
	applogger "RegimeTrader/pkg/logger"
)

// WatchlistEntry is the outcome of one symbol's run. Exactly one of Result
// and Error is set.
type WatchlistEntry struct {
	Symbol string                 `json:"symbol"`
	Result *models.BacktestResult `json:"result,omitempty"`
	Error  string                 `json:"error,omitempty"`
}

// WatchlistUseCase runs independent backtests for many symbols on a
// bounded worker pool. One symbol failing never affects the others.
type WatchlistUseCase struct {
	bt      *BacktestUseCase
	symbols []string
	workers int
	l       *applogger.Logger
}

func NewWatchlistUseCase(bt *BacktestUseCase, symbols []string, workers int, l *applogger.Logger) *WatchlistUseCase {
	if workers < 1 {
		workers = 1
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &WatchlistUseCase{bt: bt, symbols: symbols, workers: workers, l: l}
}

// Symbols returns the configured watchlist.
func (uc *WatchlistUseCase) Symbols() []string {
	return append([]string(nil), uc.symbols...)
}

// Run backtests symbols (the configured list when empty) and returns the
// entries in input order.
func (uc *WatchlistUseCase) Run(ctx context.Context, symbols []string, days int, tf domrepo.Timeframe) []WatchlistEntry {
	if len(symbols) == 0 {
		symbols = uc.symbols
	}

	type item struct {
		idx   int
		entry WatchlistEntry
	}
	jobs := make(chan int)
	ch := make(chan item, len(symbols))
	var wg sync.WaitGroup

	for w := 0; w < min(uc.workers, len(symbols)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				e := WatchlistEntry{Symbol: symbols[i]}
				res, err := uc.bt.Run(ctx, BacktestParams{Symbol: symbols[i], Days: days, Timeframe: tf})
				if err != nil {
					e.Error = err.Error()
				} else {
					e.Result = res
				}
				ch <- item{i, e}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range symbols {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() { wg.Wait(); close(ch) }()

	out := make([]WatchlistEntry, len(symbols))
	done := make([]bool, len(symbols))
	for it := range ch {
		out[it.idx] = it.entry
		done[it.idx] = true
	}
	for i, ok := range done {
		if !ok {
			msg := "not run"
			if cause := context.Cause(ctx); cause != nil {
				msg = cause.Error()
			}
			out[i] = WatchlistEntry{Symbol: symbols[i], Error: msg}
		}
	}

	failed := 0
	for _, e := range out {
		if e.Error != "" {
			failed++
		}
	}
	uc.l.Info("watchlist finished",
		applogger.Int("symbols", len(symbols)),
		applogger.Int("failed", failed),
	)
	return out
}

// RankByAlpha returns successful entries ordered by alpha, best first.
func RankByAlpha(entries []WatchlistEntry) []WatchlistEntry {
	out := make([]WatchlistEntry, 0, len(entries))
	for _, e := range entries {
		if e.Result != nil {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Result.Alpha > out[j].Result.Alpha
	})
	return out
}
