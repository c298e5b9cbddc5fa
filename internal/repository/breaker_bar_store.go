package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"RegimeTrader/internal/domain/models"
	domrepo "RegimeTrader/internal/domain/repository"
	applogger "RegimeTrader/pkg/logger"

	"github.com/sony/gobreaker"
)

// ErrSourceUnavailable is returned while the breaker is open.
var ErrSourceUnavailable = errors.New("bar source unavailable")

// BreakerBarStore guards a remote BarStore with a circuit breaker so a dead
// source fails fast instead of stalling every watchlist worker.
type BreakerBarStore struct {
	next domrepo.BarStore
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerBarStore(name string, next domrepo.BarStore, maxFailures uint32, openTimeout time.Duration, l *applogger.Logger) *BreakerBarStore {
	if l == nil {
		l = applogger.Nop()
	}
	st := gobreaker.Settings{
		Name:    name,
		Timeout: openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// unknown symbols are caller errors, not source failures
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrSymbolNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.Warn("bar source breaker state change",
				applogger.String("name", name),
				applogger.String("from", from.String()),
				applogger.String("to", to.String()),
			)
		},
	}
	return &BreakerBarStore{next: next, cb: gobreaker.NewCircuitBreaker(st)}
}

func (s *BreakerBarStore) GetBars(ctx context.Context, symbol string, from, to time.Time, tf domrepo.Timeframe) ([]models.Bar, error) {
	out, err := s.cb.Execute(func() (interface{}, error) {
		return s.next.GetBars(ctx, symbol, from, to, tf)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
		}
		return nil, err
	}
	return out.([]models.Bar), nil
}

// State reports the breaker state, e.g. "closed" or "open".
func (s *BreakerBarStore) State() string { return s.cb.State().String() }

var _ domrepo.BarStore = (*BreakerBarStore)(nil)
