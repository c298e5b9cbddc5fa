package models

import (
	"math"
	"time"
)

// Bar is one OHLCV time step plus its derived indicator fields.
type Bar struct {
	Timestamp  time.Time  `json:"timestamp"`
	Open       float64    `json:"open"`
	High       float64    `json:"high"`
	Low        float64    `json:"low"`
	Close      float64    `json:"close"`
	Volume     float64    `json:"volume"`
	Indicators Indicators `json:"-"`
}

// Indicators holds per-bar technical indicators. NaN marks a value that is
// not defined yet (warm-up window).
type Indicators struct {
	RSI        float64
	Momentum   float64 // percent change over the momentum period
	Volatility float64 // rolling std of log returns, in percent
	VolumeSMA  float64
	ADX        float64
	EMAShort   float64 // EMA50
	EMALong    float64 // EMA200
	MACD       float64
	MACDSignal float64
}

// UndefinedIndicators returns an Indicators value with every field unset.
func UndefinedIndicators() Indicators {
	nan := math.NaN()
	return Indicators{
		RSI:        nan,
		Momentum:   nan,
		Volatility: nan,
		VolumeSMA:  nan,
		ADX:        nan,
		EMAShort:   nan,
		EMALong:    nan,
		MACD:       nan,
		MACDSignal: nan,
	}
}

// Defined reports whether v is a usable number.
func Defined(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// LabeledBar is a bar joined with its decoded hidden state and regime label.
type LabeledBar struct {
	Bar
	State  int    `json:"state"`
	Regime Regime `json:"regime"`
}
