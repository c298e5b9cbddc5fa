package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegimeTrader/internal/domain/models"
)

func rampBars(n int) []models.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, n)
	for i := range bars {
		c := 100 + float64(i) + math.Sin(float64(i))
		bars[i] = models.Bar{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      c - 0.5,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    1000 + float64(i%10),
		}
	}
	return bars
}

func TestSMA(t *testing.T) {
	out := SMA([]float64{1, 2, 3, 4, 5}, 3)
	assert.True(t, math.IsNaN(out[0]))
	assert.True(t, math.IsNaN(out[1]))
	assert.InDelta(t, 2.0, out[2], 1e-12)
	assert.InDelta(t, 4.0, out[4], 1e-12)
}

func TestEMASeededWithFirstValue(t *testing.T) {
	out := EMA([]float64{10, 10, 10, 20}, 3)
	assert.Equal(t, 10.0, out[0])
	assert.InDelta(t, 15.0, out[3], 1e-12)
}

func TestRSIBounds(t *testing.T) {
	up := make([]float64, 30)
	for i := range up {
		up[i] = float64(i + 1)
	}
	rsi := RSI(up, 14)
	for i := 0; i < 14; i++ {
		assert.True(t, math.IsNaN(rsi[i]))
	}
	assert.Greater(t, rsi[20], 99.0)

	down := make([]float64, 30)
	for i := range down {
		down[i] = float64(100 - i)
	}
	assert.Less(t, RSI(down, 14)[20], 1.0)
}

func TestMomentum(t *testing.T) {
	closes := []float64{100, 101, 110}
	out := Momentum(closes, 2)
	assert.True(t, math.IsNaN(out[1]))
	assert.InDelta(t, 10.0, out[2], 1e-12)
}

func TestVolatilityWarmup(t *testing.T) {
	closes := make([]float64, 25)
	for i := range closes {
		closes[i] = 100 * math.Exp(0.01*float64(i%2))
	}
	vol := Volatility(closes, 20)
	for i := 0; i < 20; i++ {
		assert.True(t, math.IsNaN(vol[i]), "index %d", i)
	}
	assert.Greater(t, vol[20], 0.0)
}

func TestApplyWarmup(t *testing.T) {
	bars := Apply(rampBars(300))
	require.Len(t, bars, 300)

	first := bars[0].Indicators
	assert.False(t, models.Defined(first.RSI))
	assert.False(t, models.Defined(first.ADX))
	assert.False(t, models.Defined(first.Volatility))
	assert.True(t, models.Defined(first.EMALong))

	last := bars[299].Indicators
	for name, v := range map[string]float64{
		"rsi": last.RSI, "momentum": last.Momentum, "volatility": last.Volatility,
		"volume_sma": last.VolumeSMA, "adx": last.ADX, "ema50": last.EMAShort,
		"ema200": last.EMALong, "macd": last.MACD, "signal": last.MACDSignal,
	} {
		assert.True(t, models.Defined(v), name)
	}
	assert.True(t, models.Defined(bars[2*ADXPeriod-2].Indicators.ADX))
	assert.False(t, models.Defined(bars[2*ADXPeriod-3].Indicators.ADX))
	// steady uptrend
	assert.Greater(t, last.MACD, 0.0)
	assert.Greater(t, bars[299].Close, last.EMALong)
}
