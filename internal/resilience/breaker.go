package resilience

import (
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"github.com/ternarybob/arbor"
)

// CircuitState is the externally visible breaker state.
type CircuitState string

const (
	StateClosed   CircuitState = "closed"
	StateOpen     CircuitState = "open"
	StateHalfOpen CircuitState = "half_open"
)

// BreakerConfig controls per-service circuit breakers.
type BreakerConfig struct {
	FailureThreshold uint32        // Consecutive failures before opening
	RecoveryTimeout  time.Duration // Time in open before admitting a probe
}

// DefaultBreakerConfig returns the standard breaker policy.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  60 * time.Second,
	}
}

// Breaker is a circuit breaker for one logical service. Open rejections and
// extra half-open callers both surface the distinguished circuit_open
// error; at most one probe is admitted while half-open.
type Breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker
}

// NewBreaker creates a breaker for the named service.
func NewBreaker(name string, cfg BreakerConfig, logger arbor.ILogger) *Breaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = DefaultBreakerConfig().RecoveryTimeout
	}

	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1, // single half-open probe
		Timeout:     cfg.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
	}
	if logger != nil {
		st.OnStateChange = func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("service", name).
				Str("from", string(mapState(from))).
				Str("to", string(mapState(to))).
				Msg("Circuit breaker state change")
		}
	}

	return &Breaker{name: name, cb: gobreaker.NewCircuitBreaker(st)}
}

// Execute runs fn through the breaker.
func (b *Breaker) Execute(fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return NewCircuitOpen(b.name)
	}
	return err
}

// State reports the current breaker state.
func (b *Breaker) State() CircuitState {
	return mapState(b.cb.State())
}

// Name returns the service the breaker guards.
func (b *Breaker) Name() string { return b.name }

func mapState(s gobreaker.State) CircuitState {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// BreakerSet is the process-wide breaker table, one breaker per logical
// service name.
type BreakerSet struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
	cfg      BreakerConfig
	logger   arbor.ILogger
}

// NewBreakerSet creates the shared breaker table.
func NewBreakerSet(cfg BreakerConfig, logger arbor.ILogger) *BreakerSet {
	return &BreakerSet{
		breakers: make(map[string]*Breaker),
		cfg:      cfg,
		logger:   logger,
	}
}

// Get returns the breaker for a service, creating it on first use.
func (s *BreakerSet) Get(name string) *Breaker {
	s.mu.RLock()
	b, ok := s.breakers[name]
	s.mu.RUnlock()
	if ok {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok = s.breakers[name]; ok {
		return b
	}
	b = NewBreaker(name, s.cfg, s.logger)
	s.breakers[name] = b
	return b
}

// States snapshots every known breaker state.
func (s *BreakerSet) States() map[string]CircuitState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]CircuitState, len(s.breakers))
	for name, b := range s.breakers {
		out[name] = b.State()
	}
	return out
}
