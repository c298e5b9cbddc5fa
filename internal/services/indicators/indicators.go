// Package indicators computes the per-bar technical indicator table consumed by
// the entry policy. Every series has the same length as its input and holds NaN
// until its warm-up window is complete.
package indicators

import (
	"math"

	"RegimeTrader/internal/domain/models"
)

const (
	RSIPeriod        = 14
	MACDFast         = 12
	MACDSlow         = 26
	MACDSignalPeriod = 9
	ADXPeriod        = 14
	EMAShortPeriod   = 50
	EMALongPeriod    = 200
	VolumeSMAPeriod  = 20
	VolatilityPeriod = 20
	MomentumPeriod   = 14
)

// Apply fills bars[i].Indicators in place and returns bars for chaining.
func Apply(bars []models.Bar) []models.Bar {
	n := len(bars)
	if n == 0 {
		return bars
	}
	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	volumes := make([]float64, n)
	for i, b := range bars {
		closes[i] = b.Close
		highs[i] = b.High
		lows[i] = b.Low
		volumes[i] = b.Volume
	}

	rsi := RSI(closes, RSIPeriod)
	macd, signal := MACD(closes, MACDFast, MACDSlow, MACDSignalPeriod)
	adx := ADX(highs, lows, closes, ADXPeriod)
	emaShort := EMA(closes, EMAShortPeriod)
	emaLong := EMA(closes, EMALongPeriod)
	volSMA := SMA(volumes, VolumeSMAPeriod)
	vol := Volatility(closes, VolatilityPeriod)
	mom := Momentum(closes, MomentumPeriod)

	for i := range bars {
		bars[i].Indicators = models.Indicators{
			RSI:        rsi[i],
			Momentum:   mom[i],
			Volatility: vol[i],
			VolumeSMA:  volSMA[i],
			ADX:        adx[i],
			EMAShort:   emaShort[i],
			EMALong:    emaLong[i],
			MACD:       macd[i],
			MACDSignal: signal[i],
		}
	}
	return bars
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// EMA is a recursive exponential average seeded with the first value
// (alpha = 2/(period+1)), so it is defined from index 0.
func EMA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	alpha := 2.0 / float64(period+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// SMA is the trailing simple mean over period values.
func SMA(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 {
		return out
	}
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// RSI averages the positive up-moves and positive down-moves of the last
// period closes separately.
func RSI(closes []float64, period int) []float64 {
	out := nanSeries(len(closes))
	for i := period; i < len(closes); i++ {
		var gainSum, lossSum float64
		var gains, losses int
		for j := i - period; j < i; j++ {
			d := closes[j+1] - closes[j]
			if d > 0 {
				gainSum += d
				gains++
			} else if d < 0 {
				lossSum -= d
				losses++
			}
		}
		var gain, loss float64
		if gains > 0 {
			gain = gainSum / float64(gains)
		}
		if losses > 0 {
			loss = lossSum / float64(losses)
		}
		rs := gain / (loss + 1e-10)
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// MACD returns the fast-minus-slow EMA line and its signal EMA.
func MACD(closes []float64, fast, slow, signal int) (line, sig []float64) {
	ef := EMA(closes, fast)
	es := EMA(closes, slow)
	line = make([]float64, len(closes))
	for i := range closes {
		line[i] = ef[i] - es[i]
	}
	return line, EMA(line, signal)
}

// ADX uses simple rolling means for true range, directional movement and DX.
func ADX(highs, lows, closes []float64, period int) []float64 {
	n := len(closes)
	tr := make([]float64, n)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 0; i < n; i++ {
		if i == 0 {
			tr[i] = highs[i] - lows[i]
			continue
		}
		tr[i] = math.Max(highs[i]-lows[i],
			math.Max(math.Abs(highs[i]-closes[i-1]), math.Abs(lows[i]-closes[i-1])))
		up := highs[i] - highs[i-1]
		down := lows[i-1] - lows[i]
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}

	atr := SMA(tr, period)
	plus := SMA(plusDM, period)
	minus := SMA(minusDM, period)
	dx := nanSeries(n)
	for i := 0; i < n; i++ {
		if math.IsNaN(atr[i]) {
			continue
		}
		pdi := 100 * plus[i] / (atr[i] + 0.0001)
		mdi := 100 * minus[i] / (atr[i] + 0.0001)
		dx[i] = 100 * math.Abs(pdi-mdi) / (pdi + mdi + 0.0001)
	}

	out := nanSeries(n)
	start := 2*period - 2
	for i := start; i < n; i++ {
		sum := 0.0
		for j := i - period + 1; j <= i; j++ {
			sum += dx[j]
		}
		out[i] = sum / float64(period)
	}
	return out
}

// LogReturns returns ln(c[i]/c[i-1]); index 0 and non-positive prices are NaN.
func LogReturns(closes []float64) []float64 {
	out := nanSeries(len(closes))
	for i := 1; i < len(closes); i++ {
		if closes[i] > 0 && closes[i-1] > 0 {
			out[i] = math.Log(closes[i] / closes[i-1])
		}
	}
	return out
}

// RollingStd is the sample standard deviation over the trailing window.
// A window containing NaN yields NaN.
func RollingStd(values []float64, window int) []float64 {
	out := nanSeries(len(values))
	if window < 2 {
		return out
	}
	for i := window - 1; i < len(values); i++ {
		sum, sum2 := 0.0, 0.0
		ok := true
		for j := i - window + 1; j <= i; j++ {
			v := values[j]
			if math.IsNaN(v) {
				ok = false
				break
			}
			sum += v
			sum2 += v * v
		}
		if !ok {
			continue
		}
		w := float64(window)
		mean := sum / w
		variance := (sum2 - w*mean*mean) / (w - 1)
		if variance < 0 {
			variance = 0
		}
		out[i] = math.Sqrt(variance)
	}
	return out
}

// Volatility is the rolling std of log returns in percent.
func Volatility(closes []float64, period int) []float64 {
	out := RollingStd(LogReturns(closes), period)
	for i := range out {
		out[i] *= 100
	}
	return out
}

// Momentum is the percent change over period bars.
func Momentum(closes []float64, period int) []float64 {
	out := nanSeries(len(closes))
	for i := period; i < len(closes); i++ {
		prev := closes[i-period]
		if prev != 0 {
			out[i] = (closes[i] - prev) / prev * 100
		}
	}
	return out
}
