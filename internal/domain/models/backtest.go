package models

import "time"

type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// Trade is an immutable entry in the trade log.
type Trade struct {
	Timestamp time.Time `json:"timestamp"`
	Action    Action    `json:"action"`
	Price     float64   `json:"price"`
	Size      float64   `json:"size"`
	Regime    Regime    `json:"regime"`
	Reason    string    `json:"reason"`
	// PnL and PnLPct are set on SELL trades only.
	PnL    float64 `json:"pnl,omitempty"`
	PnLPct float64 `json:"pnl_pct,omitempty"`
}

// Position is the single open long position.
type Position struct {
	EntryPrice float64   `json:"entry_price"`
	EntryTime  time.Time `json:"entry_time"`
	Size       float64   `json:"size"`
}

type EquityPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Equity    float64   `json:"equity"`
}

// BacktestResult is computed once at the end of a successful run.
type BacktestResult struct {
	RunID            string         `json:"run_id"`
	Symbol           string         `json:"symbol"`
	Bars             int            `json:"bars"`
	StartedAt        time.Time      `json:"started_at"`
	FinishedAt       time.Time      `json:"finished_at"`
	InitialCapital   float64        `json:"initial_capital"`
	FinalEquity      float64        `json:"final_equity"`
	TotalReturnPct   float64        `json:"total_return_pct"`
	BuyHoldReturnPct float64        `json:"buy_hold_return_pct"`
	Alpha            float64        `json:"alpha"`
	WinRatePct       float64        `json:"win_rate"`
	MaxDrawdownPct   float64        `json:"max_drawdown"`
	NumTrades        int            `json:"num_trades"`
	AvgTradeDuration time.Duration  `json:"avg_trade_duration"`
	RegimeCounts     map[Regime]int `json:"regime_counts"`
	EquityCurve      []EquityPoint  `json:"equity_curve"`
	Trades           []Trade        `json:"trades"`
}
