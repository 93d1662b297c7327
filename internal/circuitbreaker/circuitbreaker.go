// Package circuitbreaker wraps sony/gobreaker with the project's error and
// logging conventions, grounded on how business/blockchain/infra/ethereum's
// Subscriber drove its wsCB/httpCB breakers around unreliable upstream calls.
package circuitbreaker

import (
	"context"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/mdagg/mdagg/internal/apperror"
	"github.com/mdagg/mdagg/internal/logger"
)

// Config tunes a CircuitBreaker's trip and recovery behavior.
type Config struct {
	Name          string
	MaxRequests   uint32
	Interval      time.Duration
	Timeout       time.Duration
	TripThreshold uint32 // consecutive failures before the breaker opens
	OnStateChange func(name string, from, to gobreaker.State)
}

// DefaultConfig returns sane defaults for catalog/discovery calls: a short
// half-open probe window and a trip after 5 consecutive failures.
func DefaultConfig(name string) Config {
	return Config{
		Name:          name,
		MaxRequests:   1,
		Interval:      time.Minute,
		Timeout:       30 * time.Second,
		TripThreshold: 5,
	}
}

// CircuitBreaker wraps gobreaker.CircuitBreaker[T], translating its open/
// too-many-requests errors into apperror codes the rest of the codebase
// already understands.
type CircuitBreaker[T any] struct {
	cb  *gobreaker.CircuitBreaker[T]
	log logger.LoggerInterface
}

// New constructs a CircuitBreaker from Config.
func New[T any](cfg Config, log logger.LoggerInterface) *CircuitBreaker[T] {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.TripThreshold
		},
		OnStateChange: cfg.OnStateChange,
	}

	return &CircuitBreaker[T]{
		cb:  gobreaker.NewCircuitBreaker[T](settings),
		log: log,
	}
}

// Execute runs req through the breaker, mapping gobreaker's sentinel errors
// to apperror.CodeCircuitOpen/CodeCircuitHalfOpen.
func (c *CircuitBreaker[T]) Execute(ctx context.Context, req func() (T, error)) (T, error) {
	result, err := c.cb.Execute(req)
	if err == nil {
		return result, nil
	}

	switch err {
	case gobreaker.ErrOpenState:
		return result, apperror.Wrap(err, apperror.CodeCircuitOpen, c.cb.Name())
	case gobreaker.ErrTooManyRequests:
		return result, apperror.Wrap(err, apperror.CodeCircuitHalfOpen, c.cb.Name())
	default:
		return result, err
	}
}

// State reports the breaker's current state.
func (c *CircuitBreaker[T]) State() gobreaker.State {
	return c.cb.State()
}
