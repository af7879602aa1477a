package backend

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerConfig tunes the per-agent circuit breakers.
type BreakerConfig struct {
	ConsecutiveFailures uint32        // Trip after this many failures in a row (default 5)
	OpenTimeout         time.Duration // Stay open this long before probing (default 30s)
	HalfOpenRequests    uint32        // Probe requests allowed while half-open (default 3)
}

// BreakerRegistry manages one circuit breaker per agent. An open breaker
// fails stage calls immediately; nothing is retried.
type BreakerRegistry struct {
	cfg      BreakerConfig
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewBreakerRegistry creates a new circuit breaker registry.
func NewBreakerRegistry(cfg BreakerConfig) *BreakerRegistry {
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.HalfOpenRequests == 0 {
		cfg.HalfOpenRequests = 3
	}
	return &BreakerRegistry{
		cfg:      cfg,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Get returns the circuit breaker for the given agent, creating it on first use.
func (r *BreakerRegistry) Get(agent string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[agent]; ok {
		return cb
	}

	threshold := r.cfg.ConsecutiveFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        agent,
		MaxRequests: r.cfg.HalfOpenRequests,
		Interval:    0, // Don't clear counts automatically
		Timeout:     r.cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("WARNING: circuit breaker for %s agent: %s -> %s", name, from, to)
		},
		IsSuccessful: func(err error) bool {
			// A caller cancelling the run says nothing about the agent
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	r.breakers[agent] = cb
	return cb
}

// State returns the breaker state for agent, closed if never used.
func (r *BreakerRegistry) State(agent string) gobreaker.State {
	r.mu.Lock()
	cb, ok := r.breakers[agent]
	r.mu.Unlock()
	if !ok {
		return gobreaker.StateClosed
	}
	return cb.State()
}
