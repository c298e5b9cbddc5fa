package server

import (
	"context"
	"fmt"
	"time"

	"RegimeTrader/internal/domain/models"
	domrepo "RegimeTrader/internal/domain/repository"
	"RegimeTrader/internal/repository"
	"RegimeTrader/internal/service/ratelimit"
	"RegimeTrader/internal/usecase"
	"RegimeTrader/pkg/config"
	xhttp "RegimeTrader/pkg/http"
	applogger "RegimeTrader/pkg/logger"
	"RegimeTrader/pkg/queue"
)

const limiterSweepInterval = time.Minute

// UseCases groups the application's entry points.
type UseCases struct {
	Backtest  *usecase.BacktestUseCase
	Regime    *usecase.RegimeUseCase
	Watchlist *usecase.WatchlistUseCase
	Jobs      *usecase.JobUseCase
}

// App encapsulates the application lifecycle. The CLI calls the use cases
// directly; Serve exposes them over HTTP and Work only consumes jobs.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	uc         UseCases
	queue      queue.Queue
	handlers   []xhttp.Handler
	limiter    *ratelimit.Limiter
	writer     *repository.CHBarStore
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	uc UseCases,
	q queue.Queue,
	handlers []xhttp.Handler,
	limiter *ratelimit.Limiter,
	writer *repository.CHBarStore,
) *App {
	return &App{
		cfg:      cfg,
		l:        l,
		uc:       uc,
		queue:    q,
		handlers: handlers,
		limiter:  limiter,
		writer:   writer,
	}
}

func (a *App) Logger() *applogger.Logger { return a.l }

// Backtest runs a single backtest.
func (a *App) Backtest(ctx context.Context, p usecase.BacktestParams) (*models.BacktestResult, error) {
	return a.uc.Backtest.Run(ctx, p)
}

// Regime returns the latest regime reading for a symbol.
func (a *App) Regime(ctx context.Context, p usecase.RegimeParams) (*models.RegimeSnapshot, error) {
	return a.uc.Regime.Snapshot(ctx, p)
}

// Watchlist backtests symbols, or the configured watchlist when empty.
// Entries come back in input order.
func (a *App) Watchlist(ctx context.Context, symbols []string, days int, tf domrepo.Timeframe) []usecase.WatchlistEntry {
	return a.uc.Watchlist.Run(ctx, symbols, days, tf)
}

// Import writes bars into the ClickHouse bar table for tf.
func (a *App) Import(ctx context.Context, symbol string, tf domrepo.Timeframe, bars []models.Bar) (int, error) {
	if a.writer == nil {
		return 0, fmt.Errorf("import requires clickhouse.enabled")
	}
	if !domrepo.IsValidTimeframe(tf) {
		return 0, fmt.Errorf("unsupported timeframe: %s", tf)
	}
	return a.writer.InsertBars(ctx, symbol, tf, bars)
}

// Serve runs the HTTP API and the job workers until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	metricsPath := ""
	if a.cfg.Metrics.Enabled {
		metricsPath = a.cfg.Metrics.Path
	}
	a.httpServer = xhttp.NewServer(a.l, a.handlers,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithCORS(a.cfg.Server.CORSOrigins...),
		xhttp.WithRateLimit(a.limiter),
	)

	if err := a.queue.Start(); err != nil {
		return fmt.Errorf("start job queue: %w", err)
	}
	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		a.stopQueue()
		return err
	}

	ticker := time.NewTicker(limiterSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			a.l.Info("shutdown signal received")
			return a.shutdown()
		case now := <-ticker.C:
			if n := a.limiter.Sweep(now); n > 0 {
				a.l.Debug("rate limiter swept", applogger.Int("clients", n))
			}
		}
	}
}

// Work consumes backtest jobs without serving HTTP. With the Redis queue
// workers scale apart from the API.
func (a *App) Work(ctx context.Context) error {
	if err := a.queue.Start(); err != nil {
		return fmt.Errorf("start job queue: %w", err)
	}
	a.l.Info("job worker running")
	<-ctx.Done()
	a.l.Info("shutdown signal received")
	a.stopQueue()
	return nil
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	err := a.httpServer.Stop(ctx)
	if err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}
	a.stopQueue()
	a.l.Info("shutdown complete")
	return err
}

func (a *App) stopQueue() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.queue.Stop(ctx); err != nil {
		a.l.Warn("job queue stop error", applogger.Error(err))
	}
}
