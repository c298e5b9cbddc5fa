package ledger

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegimeTrader/internal/domain/models"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestEnterSizesWithLeverage(t *testing.T) {
	l := New(2000, 2.5)
	require.True(t, l.Enter(t0, 100, models.RegimeBull, 6))

	pos := l.Position()
	require.NotNil(t, pos)
	assert.InDelta(t, 50.0, pos.Size, 1e-9)
	assert.Equal(t, 2000.0, l.Cash())

	trades := l.Trades()
	require.Len(t, trades, 1)
	assert.Equal(t, models.ActionBuy, trades[0].Action)
	assert.Equal(t, "Conditions: 6/8", trades[0].Reason)

	// second entry while open is ignored
	assert.False(t, l.Enter(t0.Add(time.Hour), 90, models.RegimeBull, 8))
	assert.Len(t, l.Trades(), 1)
}

func TestExitRealisesPnL(t *testing.T) {
	l := New(2000, 2.5)
	l.Enter(t0, 100, models.RegimeBull, 8)
	require.True(t, l.Exit(t0.Add(time.Hour), 110, models.RegimeBear))

	assert.InDelta(t, 2500.0, l.Cash(), 1e-9)
	assert.InDelta(t, 2500.0, l.Equity(), 1e-9)
	assert.False(t, l.HasPosition())
	assert.Nil(t, l.Position())
	assert.Equal(t, t0.Add(time.Hour), l.LastExit())

	sell := l.Trades()[1]
	assert.Equal(t, models.ActionSell, sell.Action)
	assert.InDelta(t, 500.0, sell.PnL, 1e-9)
	assert.InDelta(t, 10.0, sell.PnLPct, 1e-9)
	assert.Equal(t, "PnL: $500.00 (10.00%)", sell.Reason)
	assert.Equal(t, models.RegimeBear, sell.Regime)
}

func TestExitWhileFlatIsNoop(t *testing.T) {
	l := New(1000, 1)
	assert.False(t, l.Exit(t0, 100, models.RegimeBear))
	assert.Empty(t, l.Trades())
	assert.True(t, l.LastExit().IsZero())
}

func TestMarkToMarket(t *testing.T) {
	l := New(2000, 2.5)
	l.MarkToMarket(100)
	assert.Equal(t, 2000.0, l.Equity())

	l.Enter(t0, 100, models.RegimeBull, 8)
	l.MarkToMarket(90)
	assert.InDelta(t, 1500.0, l.Equity(), 1e-9)
	assert.Equal(t, 2000.0, l.Cash())
	assert.Len(t, l.Trades(), 1)

	l.MarkToMarket(math.NaN())
	assert.InDelta(t, 1500.0, l.Equity(), 1e-9)
}

func TestLosingTradeReason(t *testing.T) {
	l := New(1000, 1)
	l.Enter(t0, 200, models.RegimeBull, 3)
	l.Exit(t0.Add(time.Hour), 190, models.RegimeNeutral)
	sell := l.Trades()[1]
	assert.InDelta(t, -50.0, sell.PnL, 1e-9)
	assert.Equal(t, "PnL: $-50.00 (-5.00%)", sell.Reason)
}

func TestEnterRejectsBadPrice(t *testing.T) {
	l := New(1000, 1)
	assert.False(t, l.Enter(t0, 0, models.RegimeBull, 8))
	assert.False(t, l.Enter(t0, math.NaN(), models.RegimeBull, 8))
	assert.False(t, l.HasPosition())
}
