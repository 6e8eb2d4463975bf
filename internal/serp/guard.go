package serp

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/FranksOps/metasearch/internal/metrics"
	"github.com/FranksOps/metasearch/pkg/ratelimit"
	"github.com/sony/gobreaker/v2"
)

// Breaker defaults, shared with the configuration layer.
const (
	DefaultMaxFailures uint32 = 5
	DefaultCooldown           = time.Minute
)

// SearchOutcome describes one guarded provider call.
type SearchOutcome struct {
	Provider string
	Query    string
	Results  int
	// Outcome is one of the metrics outcome labels.
	Outcome  string
	Err      error
	Duration time.Duration
}

// GuardConfig configures the circuit breaker and pacing placed in front of a provider.
type GuardConfig struct {
	// MaxFailures is the number of consecutive failures that opens the breaker.
	// Zero means DefaultMaxFailures.
	MaxFailures uint32
	// Cooldown is how long an open breaker rejects calls before probing again.
	// Zero means DefaultCooldown.
	Cooldown time.Duration
	Limiter  *ratelimit.Limiter
	// Observer, if set, is called after every call, including rejected ones.
	Observer func(SearchOutcome)
	Logger   *slog.Logger
}

// Guarded wraps a Provider with a circuit breaker, an optional rate limit and
// per-call metrics. The breaker state is shared by all callers of the same Guarded.
type Guarded struct {
	inner    Provider
	cb       *gobreaker.CircuitBreaker[[]SearchResult]
	limiter  *ratelimit.Limiter
	observer func(SearchOutcome)
}

var _ Provider = (*Guarded)(nil)

// Guard wraps p.
func Guard(p Provider, cfg GuardConfig) *Guarded {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = DefaultMaxFailures
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxFailures := cfg.MaxFailures

	cb := gobreaker.NewCircuitBreaker[[]SearchResult](gobreaker.Settings{
		Name:        p.Name(),
		MaxRequests: 1,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("provider breaker changed state", "provider", name, "from", from.String(), "to", to.String())
		},
		// Caller cancellation and bad arguments say nothing about the engine's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrInvalidCount)
		},
	})

	return &Guarded{
		inner:    p,
		cb:       cb,
		limiter:  cfg.Limiter,
		observer: cfg.Observer,
	}
}

// Name implements Provider.
func (g *Guarded) Name() string { return g.inner.Name() }

// State reports the breaker state.
func (g *Guarded) State() gobreaker.State { return g.cb.State() }

// Search implements Provider.
func (g *Guarded) Search(ctx context.Context, query string, count int) ([]SearchResult, error) {
	start := time.Now()
	results, err := g.cb.Execute(func() ([]SearchResult, error) {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return g.inner.Search(ctx, query, count)
	})
	elapsed := time.Since(start)

	outcome := metrics.OutcomeOK
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		outcome = metrics.OutcomeOpen
		err = &ProviderError{Provider: g.Name(), Op: "search", Err: err}
	case err != nil:
		outcome = metrics.OutcomeError
		var perr *ProviderError
		if !errors.As(err, &perr) {
			err = &ProviderError{Provider: g.Name(), Op: "search", Err: err}
		}
	case len(results) == 0:
		outcome = metrics.OutcomeEmpty
	}
	metrics.RecordSearch(g.Name(), outcome, elapsed, len(results))

	if g.observer != nil {
		g.observer(SearchOutcome{
			Provider: g.Name(),
			Query:    query,
			Results:  len(results),
			Outcome:  outcome,
			Err:      err,
			Duration: elapsed,
		})
	}
	if err != nil {
		return nil, err
	}
	return results, nil
}
