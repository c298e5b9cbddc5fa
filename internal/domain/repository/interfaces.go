package repository

import (
	"context"
	"time"

	"RegimeTrader/internal/domain/models"
)

// BarStore provides read-only access to OHLCV bars ordered by timestamp.
type BarStore interface {
	GetBars(ctx context.Context, symbol string, from, to time.Time, tf Timeframe) ([]models.Bar, error)
}

// ResultPublisher ships finished backtest results to downstream consumers.
// The underlying connection is owned and closed by its provider.
type ResultPublisher interface {
	Publish(ctx context.Context, r *models.BacktestResult) error
}

// ResultStore persists trade logs and run summaries.
type ResultStore interface {
	Store(ctx context.Context, r *models.BacktestResult) error
}

type Metrics interface {
	RecordRun(symbol, status string, seconds float64)
	RecordTrades(symbol string, n int)
	RecordTrainingFailure(kind string)
	RecordResult(symbol string, finalEquity, alpha float64)
	RecordError(kind string)
}
