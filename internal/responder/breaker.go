package responder

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"github.com/xaenox/unimind/internal/models"
	"go.uber.org/zap"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("responder circuit breaker is open")

type BreakerConfig struct {
	// MaxFailures consecutive failures trip the breaker.
	MaxFailures uint32
	// Timeout is how long the breaker stays open before probing again.
	Timeout time.Duration
	// HalfOpenMaxRequests probes are allowed while half-open.
	HalfOpenMaxRequests uint32
}

// Breaker guards a Responder with a circuit breaker.
type Breaker struct {
	next    Responder
	breaker *gobreaker.CircuitBreaker
}

func NewBreaker(next Responder, cfg BreakerConfig, logger *zap.Logger) *Breaker {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.HalfOpenMaxRequests == 0 {
		cfg.HalfOpenMaxRequests = 1
	}

	settings := gobreaker.Settings{
		Name:        "responder",
		MaxRequests: cfg.HalfOpenMaxRequests,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Responder circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &Breaker{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

func (b *Breaker) Respond(ctx context.Context, history []models.Turn) (Reply, error) {
	result, err := b.breaker.Execute(func() (interface{}, error) {
		return b.next.Respond(ctx, history)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return Reply{}, ErrCircuitOpen
		}
		return Reply{}, err
	}
	return result.(Reply), nil
}

// State reports the breaker state: "closed", "half-open" or "open".
func (b *Breaker) State() string {
	return b.breaker.State().String()
}
