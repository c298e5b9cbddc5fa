package clickhouse

import "fmt"

// BarTimeframes are the bar resolutions that get a table.
var BarTimeframes = []string{"5m", "15m", "1h", "1d"}

// SchemaStatements returns idempotent DDL for the bar tables and the
// backtest output tables in database db.
func SchemaStatements(db string) []string {
	stmts := []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", db),
	}
	for _, tf := range BarTimeframes {
		stmts = append(stmts, fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s.bars_%s (
            symbol LowCardinality(String),
            ts     DateTime64(3, 'UTC'),
            open   Float64,
            high   Float64,
            low    Float64,
            close  Float64,
            volume Float64
        ) ENGINE = ReplacingMergeTree
        PARTITION BY toYYYYMM(ts)
        ORDER BY (symbol, ts)`, db, tf))
	}
	stmts = append(stmts,
		fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s.backtest_trades (
            run_id  UUID,
            symbol  LowCardinality(String),
            ts      DateTime64(3, 'UTC'),
            action  LowCardinality(String),
            price   Float64,
            size    Float64,
            regime  LowCardinality(String),
            reason  String,
            pnl     Float64,
            pnl_pct Float64
        ) ENGINE = MergeTree
        PARTITION BY toYYYYMM(ts)
        ORDER BY (symbol, run_id, ts)`, db),
		fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s.backtest_results (
            run_id              UUID,
            symbol              LowCardinality(String),
            bars                UInt32,
            started_at          DateTime64(3, 'UTC'),
            finished_at         DateTime64(3, 'UTC'),
            initial_capital     Float64,
            final_equity        Float64,
            total_return_pct    Float64,
            buy_hold_return_pct Float64,
            alpha               Float64,
            win_rate            Float64,
            max_drawdown        Float64,
            num_trades          UInt32,
            avg_trade_seconds   Float64
        ) ENGINE = MergeTree
        ORDER BY (symbol, finished_at)`, db),
	)
	return stmts
}
