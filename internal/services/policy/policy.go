package policy

import (
	"time"

	"RegimeTrader/internal/domain/models"
	"RegimeTrader/pkg/config"
)

// Policy decides FLAT -> LONG and LONG -> FLAT transitions.
type Policy struct {
	cfg      config.PolicyConfig
	cooldown time.Duration
}

func New(cfg config.PolicyConfig, cooldown time.Duration) *Policy {
	return &Policy{cfg: cfg, cooldown: cooldown}
}

func (p *Policy) Score(bar models.Bar) Score { return ScoreConditions(bar, p.cfg) }

func (p *Policy) Cooldown() time.Duration { return p.cooldown }

// ShouldEnter requires no open position, a Bull regime and an expired
// cooldown. The condition vote only gates entry when EnforceVote is set.
func (p *Policy) ShouldEnter(hasOpen bool, regime models.Regime, cooldownRemaining time.Duration, score Score) bool {
	if !ShouldEnter(hasOpen, regime, cooldownRemaining) {
		return false
	}
	if p.cfg.EnforceVote && score.Count < p.cfg.MinConditions {
		return false
	}
	return true
}

func (p *Policy) ShouldExit(hasOpen bool, regime models.Regime) bool {
	return ShouldExit(hasOpen, regime)
}

// CooldownRemaining returns how long entries stay blocked after lastExit.
// A zero lastExit means there has been no exit yet.
func (p *Policy) CooldownRemaining(now, lastExit time.Time) time.Duration {
	return CooldownRemaining(now, lastExit, p.cooldown)
}

func ShouldEnter(hasOpen bool, regime models.Regime, cooldownRemaining time.Duration) bool {
	return !hasOpen && regime == models.RegimeBull && cooldownRemaining <= 0
}

func ShouldExit(hasOpen bool, regime models.Regime) bool {
	return hasOpen && (regime == models.RegimeBear || regime == models.RegimeNeutral)
}

func CooldownRemaining(now, lastExit time.Time, cooldown time.Duration) time.Duration {
	if lastExit.IsZero() {
		return 0
	}
	left := cooldown - now.Sub(lastExit)
	if left < 0 {
		return 0
	}
	return left
}
