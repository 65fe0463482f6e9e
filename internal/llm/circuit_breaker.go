package llm

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// CircuitBreakerConfig holds the configuration for the circuit breaker.
type CircuitBreakerConfig struct {
	// Name identifies the breaker in state-change log lines.
	Name string

	// MaxFailures is the number of consecutive failures that trips the circuit.
	// Default: 3
	MaxFailures uint32

	// Timeout is how long the circuit stays open before going half-open.
	// Default: 30 seconds
	Timeout time.Duration

	// HalfOpenMaxRequests is the number of trial calls admitted while half-open.
	// Default: 2
	HalfOpenMaxRequests uint32
}

// CircuitBreakerMetrics is a snapshot of breaker activity.
type CircuitBreakerMetrics struct {
	TotalRequests        uint64
	TotalSuccesses       uint64
	TotalFailures        uint64
	TotalRejected        uint64
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// CircuitBreaker wraps gobreaker so a failing embedding backend is not
// hammered on every extracted candidate. After MaxFailures consecutive
// failures calls fail fast with ErrCircuitOpen until Timeout elapses.
type CircuitBreaker struct {
	breaker *gobreaker.CircuitBreaker
	mu      sync.Mutex
	metrics CircuitBreakerMetrics
}

// DefaultCircuitBreakerConfig returns the settings used by the embedding clients.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:                name,
		MaxFailures:         3,
		Timeout:             30 * time.Second,
		HalfOpenMaxRequests: 2,
	}
}

// NewCircuitBreaker creates a breaker with DefaultCircuitBreakerConfig.
func NewCircuitBreaker(name string) *CircuitBreaker {
	return NewCircuitBreakerWithConfig(DefaultCircuitBreakerConfig(name))
}

// NewCircuitBreakerWithConfig creates a breaker with custom settings. Zero
// fields fall back to the defaults.
func NewCircuitBreakerWithConfig(config CircuitBreakerConfig) *CircuitBreaker {
	defaults := DefaultCircuitBreakerConfig(config.Name)
	if config.Name == "" {
		config.Name = "embedding"
	}
	if config.MaxFailures == 0 {
		config.MaxFailures = defaults.MaxFailures
	}
	if config.Timeout == 0 {
		config.Timeout = defaults.Timeout
	}
	if config.HalfOpenMaxRequests == 0 {
		config.HalfOpenMaxRequests = defaults.HalfOpenMaxRequests
	}

	maxFailures := config.MaxFailures
	settings := gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.HalfOpenMaxRequests,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("llm: circuit breaker %q %s -> %s", name, from, to)
		},
	}

	return &CircuitBreaker{breaker: gobreaker.NewCircuitBreaker(settings)}
}

// Embed runs fn through the breaker. A cancelled context fails before fn
// is invoked and counts against the breaker like any other failure.
func (cb *CircuitBreaker) Embed(ctx context.Context, fn func(context.Context) ([]float32, error)) ([]float32, error) {
	result, err := cb.breaker.Execute(func() (interface{}, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return fn(ctx)
	})

	cb.mu.Lock()
	cb.metrics.TotalRequests++
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		cb.metrics.TotalRejected++
	case err != nil:
		cb.metrics.TotalFailures++
	default:
		cb.metrics.TotalSuccesses++
	}
	cb.mu.Unlock()

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrCircuitOpen
		}
		return nil, err
	}
	return result.([]float32), nil
}

// State returns "closed", "open", or "half-open".
func (cb *CircuitBreaker) State() string {
	return cb.breaker.State().String()
}

// Metrics returns a snapshot of the breaker counters.
func (cb *CircuitBreaker) Metrics() CircuitBreakerMetrics {
	cb.mu.Lock()
	m := cb.metrics
	cb.mu.Unlock()

	counts := cb.breaker.Counts()
	m.ConsecutiveSuccesses = counts.ConsecutiveSuccesses
	m.ConsecutiveFailures = counts.ConsecutiveFailures
	return m
}
