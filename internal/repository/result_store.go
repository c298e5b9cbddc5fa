package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"RegimeTrader/internal/domain/models"
	domrepo "RegimeTrader/internal/domain/repository"
	pkgch "RegimeTrader/pkg/clickhouse"
)

// CHResultStore writes trade logs and run summaries to ClickHouse.
type CHResultStore struct {
	db       *sql.DB
	database string
}

func NewCHResultStore(ch *pkgch.Client, database string) *CHResultStore {
	return &CHResultStore{db: ch.DB(), database: database}
}

func (s *CHResultStore) Store(ctx context.Context, r *models.BacktestResult) error {
	if err := s.storeTrades(ctx, r); err != nil {
		return err
	}
	q := fmt.Sprintf(`INSERT INTO %s.backtest_results
        (run_id, symbol, bars, started_at, finished_at, initial_capital, final_equity,
         total_return_pct, buy_hold_return_pct, alpha, win_rate, max_drawdown, num_trades, avg_trade_seconds)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.database)
	_, err := s.db.ExecContext(ctx, q,
		r.RunID,
		r.Symbol,
		uint32(r.Bars),
		r.StartedAt.UTC(),
		r.FinishedAt.UTC(),
		r.InitialCapital,
		r.FinalEquity,
		r.TotalReturnPct,
		r.BuyHoldReturnPct,
		r.Alpha,
		r.WinRatePct,
		r.MaxDrawdownPct,
		uint32(r.NumTrades),
		r.AvgTradeDuration.Seconds(),
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

func (s *CHResultStore) storeTrades(ctx context.Context, r *models.BacktestResult) error {
	for start := 0; start < len(r.Trades); start += insertChunk {
		end := min(start+insertChunk, len(r.Trades))

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*10)
		for _, t := range r.Trades[start:end] {
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				r.RunID,
				r.Symbol,
				t.Timestamp.UTC(),
				string(t.Action),
				t.Price,
				t.Size,
				string(t.Regime),
				t.Reason,
				t.PnL,
				t.PnLPct,
			)
		}
		q := fmt.Sprintf("INSERT INTO %s.backtest_trades (run_id, symbol, ts, action, price, size, regime, reason, pnl, pnl_pct) VALUES %s",
			s.database, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert trades: %w", err)
		}
	}
	return nil
}

var _ domrepo.ResultStore = (*CHResultStore)(nil)
