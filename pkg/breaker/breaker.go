// Package breaker guards outbound calls to a named downstream service with a
// CLOSED/OPEN/HALF_OPEN state machine, implemented on top of sony/gobreaker.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// Config holds the per-service thresholds from the workflow's circuit
// breaker section.
type Config struct {
	FailureThreshold uint32
	RecoveryTimeout  time.Duration
	SuccessThreshold uint32
	RequestTimeout   time.Duration
}

// DefaultConfig matches the documented defaults: 5 failures to open, 60s
// recovery, 3 consecutive successes to close, 30s per-request timeout.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		RecoveryTimeout:  60 * time.Second,
		SuccessThreshold: 3,
		RequestTimeout:   30 * time.Second,
	}
}

// ErrOpen is returned when the breaker refuses a call outright.
var ErrOpen = errors.New("breaker: circuit open")

// Registry owns one gobreaker.CircuitBreaker per service name, created
// lazily and shared across every call for that service within the process.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
	configs  map[string]Config
}

// NewRegistry returns an empty registry. It is safe for concurrent use.
func NewRegistry() *Registry {
	return &Registry{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		configs:  make(map[string]Config),
	}
}

// Configure sets (or replaces) the thresholds for a service name. Must be
// called before the first Call for that service to take effect; calling it
// afterward is a no-op for breakers already constructed.
func (r *Registry) Configure(service string, cfg Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[service] = cfg
}

func (r *Registry) get(service string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[service]; ok {
		return cb
	}

	cfg, ok := r.configs[service]
	if !ok {
		cfg = DefaultConfig()
	}

	settings := gobreaker.Settings{
		Name:        service,
		MaxRequests: cfg.SuccessThreshold,
		Interval:    0,
		Timeout:     cfg.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
	}

	cb := gobreaker.NewCircuitBreaker(settings)
	r.breakers[service] = cb
	return cb
}

// Call runs fn through the named service's breaker, enforcing the
// configured per-request timeout and translating gobreaker's open-state
// errors into ErrOpen.
func (r *Registry) Call(ctx context.Context, service string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	cb := r.get(service)

	cfg, ok := r.configs[service]
	if !ok {
		cfg = DefaultConfig()
	}

	result, err := cb.Execute(func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
		defer cancel()
		return fn(callCtx)
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %s", ErrOpen, service)
		}
		return nil, err
	}
	return result, nil
}

// State reports the current state of a service's breaker as a string, one
// of "closed", "open", "half-open". A service that has never been called
// reports "closed" (no breaker constructed yet).
func (r *Registry) State(service string) string {
	r.mu.Lock()
	cb, ok := r.breakers[service]
	r.mu.Unlock()
	if !ok {
		return "closed"
	}
	switch cb.State() {
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}
