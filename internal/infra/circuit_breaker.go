package infra

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// CBState is the breaker position reported by /health.
type CBState int

const (
	CBClosed CBState = iota
	CBOpen
	CBHalfOpen
)

func (s CBState) String() string {
	switch s {
	case CBClosed:
		return "closed"
	case CBOpen:
		return "open"
	case CBHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned without calling the sidecar while the breaker
// is open, or while a half-open probe is already in flight.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type CircuitBreakerConfig struct {
	FailureThreshold int           // consecutive failures that open the breaker
	SuccessThreshold int           // consecutive probe successes that close it
	OpenTimeout      time.Duration // wait before the first probe
	Clock            clockwork.Clock
	// IsFailure decides which errors count against the sidecar.
	// Defaults to EsFallaSidecar.
	IsFailure func(error) bool
}

func DefaultCBConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenTimeout:      60 * time.Second,
	}
}

// EsFallaSidecar counts transport errors and 5xx answers. A 4xx is the
// sidecar rejecting one request and a cancelled context is the caller
// leaving; neither says the sidecar is down.
func EsFallaSidecar(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var remote *SunatRemoteError
	if errors.As(err, &remote) {
		return remote.StatusCode >= 500
	}
	return true
}

// CircuitBreaker guards submissions to the SUNAT sidecar. Safe for concurrent use.
type CircuitBreaker struct {
	cfg   CircuitBreakerConfig
	clock clockwork.Clock
	log   zerolog.Logger

	mu        sync.Mutex
	state     CBState
	fallos    int
	exitos    int
	abiertoEn time.Time
	sondeando bool
}

func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	def := DefaultCBConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = def.SuccessThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = EsFallaSidecar
	}
	return &CircuitBreaker{cfg: cfg, clock: cfg.Clock, log: Componente("circuit_breaker")}
}

func (cb *CircuitBreaker) State() CBState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.vencer()
	return cb.state
}

// vencer moves Open to HalfOpen once the open timeout has passed. Caller holds mu.
func (cb *CircuitBreaker) vencer() {
	if cb.state == CBOpen && cb.clock.Since(cb.abiertoEn) >= cb.cfg.OpenTimeout {
		cb.pasarA(CBHalfOpen)
	}
}

// pasarA changes state and resets the counters. Caller holds mu.
func (cb *CircuitBreaker) pasarA(s CBState) {
	if cb.state == s {
		return
	}
	cb.log.Warn().Str("from", cb.state.String()).Str("to", s.String()).Msg("state change")
	cb.state = s
	cb.fallos, cb.exitos = 0, 0
	if s == CBOpen {
		cb.abiertoEn = cb.clock.Now()
	}
}

// Execute runs fn unless the breaker is open. In half-open only one call
// runs at a time; concurrent callers get ErrCircuitOpen.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	cb.vencer()
	switch {
	case cb.state == CBOpen:
		cb.mu.Unlock()
		return ErrCircuitOpen
	case cb.state == CBHalfOpen && cb.sondeando:
		cb.mu.Unlock()
		return ErrCircuitOpen
	}
	sonda := cb.state == CBHalfOpen
	cb.sondeando = sonda
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if sonda {
		cb.sondeando = false
	}
	if err != nil && cb.cfg.IsFailure(err) {
		cb.registrarFallo()
	} else {
		cb.registrarExito()
	}
	return err
}

func (cb *CircuitBreaker) registrarFallo() {
	switch cb.state {
	case CBClosed:
		cb.fallos++
		if cb.fallos >= cb.cfg.FailureThreshold {
			cb.pasarA(CBOpen)
		}
	case CBHalfOpen:
		cb.pasarA(CBOpen)
	}
}

func (cb *CircuitBreaker) registrarExito() {
	switch cb.state {
	case CBClosed:
		cb.fallos = 0
	case CBHalfOpen:
		cb.exitos++
		if cb.exitos >= cb.cfg.SuccessThreshold {
			cb.pasarA(CBClosed)
		}
	}
}
