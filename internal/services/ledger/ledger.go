// Package ledger tracks cash, the single open position, equity and the
// append-only trade log of one backtest run.
package ledger

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"RegimeTrader/internal/domain/models"
	"RegimeTrader/internal/services/policy"
)

type Ledger struct {
	leverage float64
	cash     float64
	equity   float64
	position *models.Position
	lastExit time.Time
	trades   []models.Trade
}

func New(initialCapital, leverage float64) *Ledger {
	return &Ledger{
		leverage: leverage,
		cash:     initialCapital,
		equity:   initialCapital,
	}
}

// Enter opens a long sized at cash*leverage/price. It is a no-op while a
// position is open or when price is unusable.
func (l *Ledger) Enter(ts time.Time, price float64, regime models.Regime, conditions int) bool {
	if l.position != nil || !validPrice(price) {
		return false
	}
	size := l.cash * l.leverage / price
	l.position = &models.Position{EntryPrice: price, EntryTime: ts, Size: size}
	l.trades = append(l.trades, models.Trade{
		Timestamp: ts,
		Action:    models.ActionBuy,
		Price:     price,
		Size:      size,
		Regime:    regime,
		Reason:    fmt.Sprintf("Conditions: %d/%d", conditions, policy.NumConditions),
	})
	return true
}

// Exit closes the open position at price. Realised PnL moves into cash and
// equity becomes cash. It is a no-op while flat.
func (l *Ledger) Exit(ts time.Time, price float64, regime models.Regime) bool {
	if l.position == nil || !validPrice(price) {
		return false
	}
	pos := l.position
	pnl := (price - pos.EntryPrice) * pos.Size
	pnlPct := (price - pos.EntryPrice) / pos.EntryPrice * 100

	l.cash += pnl
	l.equity = l.cash
	l.trades = append(l.trades, models.Trade{
		Timestamp: ts,
		Action:    models.ActionSell,
		Price:     price,
		Size:      pos.Size,
		Regime:    regime,
		Reason:    sellReason(pnl, pnlPct),
		PnL:       pnl,
		PnLPct:    pnlPct,
	})
	l.position = nil
	l.lastExit = ts
	return true
}

// MarkToMarket revalues equity against price without touching cash or the
// trade log.
func (l *Ledger) MarkToMarket(price float64) {
	if !validPrice(price) {
		return
	}
	if l.position == nil {
		l.equity = l.cash
		return
	}
	l.equity = l.cash + l.position.Size*price - l.position.Size*l.position.EntryPrice
}

func (l *Ledger) Cash() float64   { return l.cash }
func (l *Ledger) Equity() float64 { return l.equity }

func (l *Ledger) HasPosition() bool { return l.position != nil }

// Position returns a copy of the open position, or nil when flat.
func (l *Ledger) Position() *models.Position {
	if l.position == nil {
		return nil
	}
	p := *l.position
	return &p
}

// LastExit is the zero time until the first SELL.
func (l *Ledger) LastExit() time.Time { return l.lastExit }

// Trades returns a copy of the log.
func (l *Ledger) Trades() []models.Trade {
	out := make([]models.Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

func sellReason(pnl, pnlPct float64) string {
	return fmt.Sprintf("PnL: $%s (%s%%)",
		decimal.NewFromFloat(pnl).StringFixed(2),
		decimal.NewFromFloat(pnlPct).StringFixed(2))
}

func validPrice(p float64) bool {
	return p > 0 && !math.IsNaN(p) && !math.IsInf(p, 0)
}
