package backtest

import (
	"math"
	"time"

	"RegimeTrader/internal/domain/models"
	"RegimeTrader/internal/services/ledger"
)

func summarize(led *ledger.Ledger, bars []models.LabeledBar, curve []models.EquityPoint, initial float64) *models.BacktestResult {
	trades := led.Trades()
	final := led.Equity()
	total := (final - initial) / initial * 100
	buyHold := BuyAndHoldReturn(bars)

	return &models.BacktestResult{
		InitialCapital:   initial,
		FinalEquity:      final,
		TotalReturnPct:   total,
		BuyHoldReturnPct: buyHold,
		Alpha:            total - buyHold,
		WinRatePct:       WinRate(trades),
		MaxDrawdownPct:   MaxDrawdown(curve),
		NumTrades:        countAction(trades, models.ActionBuy),
		AvgTradeDuration: AverageTradeDuration(trades),
		EquityCurve:      curve,
		Trades:           trades,
	}
}

// BuyAndHoldReturn compares the first and last usable closes, in percent.
func BuyAndHoldReturn(bars []models.LabeledBar) float64 {
	first, last := math.NaN(), math.NaN()
	for _, b := range bars {
		if models.Defined(b.Close) && b.Close > 0 {
			if math.IsNaN(first) {
				first = b.Close
			}
			last = b.Close
		}
	}
	if math.IsNaN(first) {
		return 0
	}
	return (last - first) / first * 100
}

// WinRate is the share of SELL trades with positive PnL, in percent.
func WinRate(trades []models.Trade) float64 {
	sells, wins := 0, 0
	for _, t := range trades {
		if t.Action != models.ActionSell {
			continue
		}
		sells++
		if t.PnL > 0 {
			wins++
		}
	}
	if sells == 0 {
		return 0
	}
	return float64(wins) / float64(sells) * 100
}

// MaxDrawdown is the deepest fall of the sampled equity below its running
// peak, in percent. It is zero or negative.
func MaxDrawdown(curve []models.EquityPoint) float64 {
	if len(curve) == 0 {
		return 0
	}
	peak := math.Inf(-1)
	worst := 0.0
	for _, p := range curve {
		peak = math.Max(peak, p.Equity)
		dd := (p.Equity - peak) / (peak + 1e-10)
		worst = math.Min(worst, dd)
	}
	return worst * 100
}

// AverageTradeDuration pairs each BUY with the following SELL.
func AverageTradeDuration(trades []models.Trade) time.Duration {
	var total time.Duration
	n := 0
	var open *models.Trade
	for i := range trades {
		switch trades[i].Action {
		case models.ActionBuy:
			open = &trades[i]
		case models.ActionSell:
			if open != nil {
				total += trades[i].Timestamp.Sub(open.Timestamp)
				n++
				open = nil
			}
		}
	}
	if n == 0 {
		return 0
	}
	return total / time.Duration(n)
}

func countAction(trades []models.Trade, a models.Action) int {
	n := 0
	for _, t := range trades {
		if t.Action == a {
			n++
		}
	}
	return n
}
