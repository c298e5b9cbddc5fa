// Package policy holds the entry/exit rules of the regime strategy.
package policy

import (
	"strings"

	"RegimeTrader/internal/domain/models"
	"RegimeTrader/pkg/config"
)

// Status is the outcome of one confirmation check.
type Status int

const (
	Unsatisfied Status = iota
	Satisfied
	// Unavailable means an input was undefined; it counts as unsatisfied.
	Unavailable
)

func (s Status) String() string {
	switch s {
	case Satisfied:
		return "ok"
	case Unavailable:
		return "n/a"
	default:
		return "no"
	}
}

// NumConditions is the size of the confirmation battery.
const NumConditions = 8

var conditionNames = [NumConditions]string{
	"rsi", "momentum", "volatility", "volume", "adx", "ema50", "ema200", "macd",
}

type Check struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
}

// Score is the result of the 8-check battery for one bar.
type Score struct {
	Checks [NumConditions]Check
	Count  int
}

// String renders the battery compactly for logs, e.g. "rsi=ok momentum=n/a ...".
func (s Score) String() string {
	var b strings.Builder
	for i, c := range s.Checks {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(c.Name)
		b.WriteByte('=')
		b.WriteString(c.Status.String())
	}
	return b.String()
}

// ScoreConditions evaluates the confirmation checks in a fixed order:
// RSI below max, momentum defined, volatility below max, volume above its
// SMA, ADX above min, close above EMA50, close above EMA200, MACD above
// its signal line.
func ScoreConditions(bar models.Bar, cfg config.PolicyConfig) Score {
	ind := bar.Indicators
	results := [NumConditions]Status{
		less(ind.RSI, cfg.RSIMax),
		defined(ind.Momentum),
		less(ind.Volatility, cfg.VolatilityMax),
		greater(bar.Volume, ind.VolumeSMA),
		greater(ind.ADX, cfg.ADXMin),
		greater(bar.Close, ind.EMAShort),
		greater(bar.Close, ind.EMALong),
		greater(ind.MACD, ind.MACDSignal),
	}

	var s Score
	for i, st := range results {
		s.Checks[i] = Check{Name: conditionNames[i], Status: st}
		if st == Satisfied {
			s.Count++
		}
	}
	return s
}

func defined(v float64) Status {
	if !models.Defined(v) {
		return Unavailable
	}
	return Satisfied
}

func less(a, b float64) Status {
	if !models.Defined(a) || !models.Defined(b) {
		return Unavailable
	}
	if a < b {
		return Satisfied
	}
	return Unsatisfied
}

func greater(a, b float64) Status {
	if !models.Defined(a) || !models.Defined(b) {
		return Unavailable
	}
	if a > b {
		return Satisfied
	}
	return Unsatisfied
}
