package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b := NewBreaker("llm", BreakerConfig{FailureThreshold: 3, RecoveryTimeout: time.Minute}, nil)
	boom := errors.New("upstream down")

	for i := 0; i < 3; i++ {
		err := b.Execute(func() error { return boom })
		assert.Equal(t, boom, err)
	}
	assert.Equal(t, StateOpen, b.State())

	// Open circuit rejects without invoking the operation.
	invoked := false
	err := b.Execute(func() error {
		invoked = true
		return nil
	})
	assert.False(t, invoked)
	assert.True(t, IsCircuitOpen(err))
}

func TestBreakerRecoversThroughHalfOpenProbe(t *testing.T) {
	b := NewBreaker("benchmarks", BreakerConfig{FailureThreshold: 2, RecoveryTimeout: 20 * time.Millisecond}, nil)

	for i := 0; i < 2; i++ {
		_ = b.Execute(func() error { return errors.New("fail") })
	}
	require.Equal(t, StateOpen, b.State())

	time.Sleep(30 * time.Millisecond)

	// First call after the recovery timeout is the probe.
	err := b.Execute(func() error { return nil })
	require.NoError(t, err)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerReopensOnFailedProbe(t *testing.T) {
	b := NewBreaker("ocr", BreakerConfig{FailureThreshold: 2, RecoveryTimeout: 20 * time.Millisecond}, nil)

	for i := 0; i < 2; i++ {
		_ = b.Execute(func() error { return errors.New("fail") })
	}
	time.Sleep(30 * time.Millisecond)

	_ = b.Execute(func() error { return errors.New("probe fails") })
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerSetReturnsSameInstance(t *testing.T) {
	set := NewBreakerSet(DefaultBreakerConfig(), nil)

	a := set.Get("llm")
	b := set.Get("llm")
	c := set.Get("benchmarks")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)

	states := set.States()
	assert.Len(t, states, 2)
	assert.Equal(t, StateClosed, states["llm"])
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker("llm", BreakerConfig{FailureThreshold: 3, RecoveryTimeout: time.Minute}, nil)

	_ = b.Execute(func() error { return errors.New("one") })
	_ = b.Execute(func() error { return errors.New("two") })
	require.NoError(t, b.Execute(func() error { return nil }))

	// Two more failures are below the consecutive threshold again.
	_ = b.Execute(func() error { return errors.New("three") })
	_ = b.Execute(func() error { return errors.New("four") })
	assert.Equal(t, StateClosed, b.State())
}
