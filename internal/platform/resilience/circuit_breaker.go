package resilience

import (
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig is the env-facing shape of a breaker. A disabled
// config yields a nil breaker.
type CircuitBreakerConfig struct {
	Enabled          bool
	FailureThreshold int
	OpenTimeout      time.Duration
	HalfOpenMaxReq   int
}

func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{Enabled: true, FailureThreshold: 5, OpenTimeout: 30 * time.Second, HalfOpenMaxReq: 1}
}

// NormalizeCircuitBreakerConfig fills zero or invalid fields from the
// defaults and leaves Enabled untouched.
func NormalizeCircuitBreakerConfig(cfg CircuitBreakerConfig) CircuitBreakerConfig {
	def := DefaultCircuitBreakerConfig()
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}
	if cfg.HalfOpenMaxReq < 1 {
		cfg.HalfOpenMaxReq = def.HalfOpenMaxReq
	}
	return cfg
}

type CircuitState string

const (
	CircuitStateClosed   CircuitState = "closed"
	CircuitStateOpen     CircuitState = "open"
	CircuitStateHalfOpen CircuitState = "half_open"
)

// Outcome classifies a guarded call for the breaker.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailure
	// OutcomeIgnored frees a half-open probe slot without counting, for
	// calls that ended for reasons unrelated to upstream health.
	OutcomeIgnored
)

// StateChangeFunc is called with the breaker lock released.
type StateChangeFunc func(name string, from, to CircuitState)

// CircuitBreaker guards one upstream. A nil *CircuitBreaker allows
// everything, which is what a disabled config produces.
type CircuitBreaker struct {
	name     string
	cfg      CircuitBreakerConfig
	onChange StateChangeFunc
	now      func() time.Time

	mu        sync.Mutex
	state     CircuitState
	failures  int
	openedAt  time.Time
	probes    int
	successes int
}

// NewCircuitBreakerFromConfig returns nil when the config is disabled.
func NewCircuitBreakerFromConfig(name string, cfg CircuitBreakerConfig, onChange StateChangeFunc) *CircuitBreaker {
	if !cfg.Enabled {
		return nil
	}
	return &CircuitBreaker{
		name:     name,
		cfg:      NormalizeCircuitBreakerConfig(cfg),
		onChange: onChange,
		now:      time.Now,
		state:    CircuitStateClosed,
	}
}

func (b *CircuitBreaker) Name() string {
	if b == nil {
		return ""
	}
	return b.name
}

// Guard runs fn when the breaker admits it and records classify(err).
// A rejected call returns ErrCircuitOpen without running fn.
func (b *CircuitBreaker) Guard(fn func() error, classify func(error) Outcome) error {
	if err := b.Allow(); err != nil {
		return err
	}
	err := fn()
	b.Record(classify(err))
	return err
}

// Allow admits a call or returns ErrCircuitOpen. Every admitted call must be
// followed by exactly one Record.
func (b *CircuitBreaker) Allow() error {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	from := b.state
	if b.state == CircuitStateOpen && b.now().Sub(b.openedAt) >= b.cfg.OpenTimeout {
		b.enter(CircuitStateHalfOpen)
	}
	var err error
	switch b.state {
	case CircuitStateOpen:
		err = ErrCircuitOpen
	case CircuitStateHalfOpen:
		if b.probes >= b.cfg.HalfOpenMaxReq {
			err = ErrCircuitOpen
		} else {
			b.probes++
		}
	}
	to := b.state
	b.mu.Unlock()

	b.notify(from, to)
	return err
}

func (b *CircuitBreaker) Record(outcome Outcome) {
	if b == nil {
		return
	}
	b.mu.Lock()
	from := b.state
	if b.state == CircuitStateHalfOpen && b.probes > 0 {
		b.probes--
	}
	switch outcome {
	case OutcomeSuccess:
		b.recordSuccessLocked()
	case OutcomeFailure:
		b.recordFailureLocked()
	}
	to := b.state
	b.mu.Unlock()

	b.notify(from, to)
}

func (b *CircuitBreaker) RecordSuccess() { b.Record(OutcomeSuccess) }
func (b *CircuitBreaker) RecordFailure() { b.Record(OutcomeFailure) }
func (b *CircuitBreaker) Release() { b.Record(OutcomeIgnored) }

func (b *CircuitBreaker) recordSuccessLocked() {
	switch b.state {
	case CircuitStateClosed:
		b.failures = 0
	case CircuitStateHalfOpen:
		b.successes++
		if b.successes >= b.cfg.HalfOpenMaxReq && b.probes == 0 {
			b.enter(CircuitStateClosed)
		}
	}
}

func (b *CircuitBreaker) recordFailureLocked() {
	switch b.state {
	case CircuitStateClosed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.enter(CircuitStateOpen)
		}
	case CircuitStateHalfOpen:
		b.enter(CircuitStateOpen)
	case CircuitStateOpen:
		// A straggler admitted before the trip extends the open window.
		b.openedAt = b.now()
	}
}

// State reports half open once the open window has elapsed, even before the
// next Allow performs the transition.
func (b *CircuitBreaker) State() CircuitState {
	if b == nil {
		return CircuitStateClosed
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == CircuitStateOpen && b.now().Sub(b.openedAt) >= b.cfg.OpenTimeout {
		return CircuitStateHalfOpen
	}
	return b.state
}

func (b *CircuitBreaker) enter(state CircuitState) {
	b.state = state
	b.probes = 0
	b.successes = 0
	switch state {
	case CircuitStateOpen:
		b.openedAt = b.now()
	case CircuitStateClosed:
		b.failures = 0
		b.openedAt = time.Time{}
	}
}

func (b *CircuitBreaker) notify(from, to CircuitState) {
	if from != to && b.onChange != nil {
		b.onChange(b.name, from, to)
	}
}
