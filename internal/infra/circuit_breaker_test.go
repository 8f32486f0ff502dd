package infra

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

var errSidecar = errors.New("sidecar down")

func TestCircuitBreaker_TripsAfterThreshold(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, SuccessThreshold: 1, OpenTimeout: time.Minute, Clock: clock})

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(func() error { return errSidecar }), errSidecar)
	}
	assert.Equal(t, CBOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, SuccessThreshold: 2, OpenTimeout: time.Minute, Clock: clock})

	_ = cb.Execute(func() error { return errSidecar })
	assert.Equal(t, CBOpen, cb.State())

	clock.Advance(time.Minute)
	assert.Equal(t, CBHalfOpen, cb.State())

	assert.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, CBHalfOpen, cb.State())
	assert.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, CBClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenProbeFailureReopens(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, OpenTimeout: time.Minute, Clock: clock})

	_ = cb.Execute(func() error { return errSidecar })
	clock.Advance(time.Minute)
	_ = cb.Execute(func() error { return errSidecar })

	assert.Equal(t, CBOpen, cb.State())
	assert.Equal(t, "open", cb.State().String())
}

func TestCircuitBreaker_RemoteRejectionDoesNotCount(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, Clock: clockwork.NewFakeClock()})

	rechazo := &SunatRemoteError{StatusCode: 422, Message: "RUC inválido"}
	assert.ErrorIs(t, cb.Execute(func() error { return rechazo }), rechazo)
	assert.Equal(t, CBClosed, cb.State())

	_ = cb.Execute(func() error { return &SunatRemoteError{StatusCode: 503, Message: "portal caído"} })
	assert.Equal(t, CBOpen, cb.State())
}

func TestCircuitBreaker_SingleProbeInFlight(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, SuccessThreshold: 1, OpenTimeout: time.Minute, Clock: clock})
	_ = cb.Execute(func() error { return errSidecar })
	clock.Advance(time.Minute)

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Execute(func() error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	assert.ErrorIs(t, cb.Execute(func() error { return nil }), ErrCircuitOpen)
	close(release)
	assert.NoError(t, <-done)
	assert.Equal(t, CBClosed, cb.State())
}

func TestEsFallaSidecar(t *testing.T) {
	assert.True(t, EsFallaSidecar(errSidecar))
	assert.False(t, EsFallaSidecar(context.Canceled))
	assert.False(t, EsFallaSidecar(&SunatRemoteError{StatusCode: 400}))
	assert.True(t, EsFallaSidecar(&SunatRemoteError{StatusCode: 502}))
}
