package models

import "time"

// Regime is the Bull/Bear/Neutral label derived from a hidden state.
type Regime string

const (
	RegimeBull    Regime = "Bull"
	RegimeBear    Regime = "Bear"
	RegimeNeutral Regime = "Neutral"
)

func (r Regime) String() string { return string(r) }

// RegimeSnapshot is the latest regime reading for a symbol, used by the API.
type RegimeSnapshot struct {
	Symbol       string         `json:"symbol"`
	Timestamp    time.Time      `json:"timestamp"`
	State        int            `json:"state"`
	Regime       Regime         `json:"regime"`
	Confidence   float64        `json:"confidence"`
	Prob         []float64      `json:"prob"`
	Distribution map[Regime]int `json:"distribution"`
	BullStates   []int          `json:"bull_states"`
	BearStates   []int          `json:"bear_states"`
	Bars         int            `json:"bars"`
}
