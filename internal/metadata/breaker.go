package metadata

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
)

// BreakerConfig tunes the per-catalog circuit breaker.
type BreakerConfig struct {
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

// DefaultBreakerConfig returns the breaker settings used outside tests.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		ConsecutiveFailures: 5,
		OpenTimeout:         time.Minute,
	}
}

// breakerCatalog fails fast with a transient error while its catalog is
// known to be unreachable. Not-found answers count as successes.
type breakerCatalog struct {
	next Catalog
	cb   *gobreaker.CircuitBreaker[*Record]
}

// WithBreaker wraps c in a circuit breaker.
func WithBreaker(c Catalog, cfg BreakerConfig, logger zerolog.Logger) Catalog {
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = DefaultBreakerConfig().ConsecutiveFailures
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = DefaultBreakerConfig().OpenTimeout
	}

	cb := gobreaker.NewCircuitBreaker[*Record](gobreaker.Settings{
		Name:        c.Name(),
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("catalog", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Catalog circuit breaker state changed")
		},
	})

	return &breakerCatalog{next: c, cb: cb}
}

func (b *breakerCatalog) Name() string {
	return b.next.Name()
}

func (b *breakerCatalog) Lookup(ctx context.Context, q Query) (*Record, error) {
	rec, err := b.cb.Execute(func() (*Record, error) {
		return b.next.Lookup(ctx, q)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, Transient(b.next.Name(), err)
	}
	return rec, err
}
