package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDown = errors.New("down")

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func fail(context.Context) error { return errDown }
func ok(context.Context) error   { return nil }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	ctx := context.Background()
	var transitions []string
	cb := New("test",
		WithFailureThreshold(2),
		WithOnStateChange(func(_ string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		}),
	)

	assert.ErrorIs(t, cb.Execute(ctx, fail), errDown)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(ctx, fail), errDown)
	assert.Equal(t, StateOpen, cb.State())

	err := cb.Execute(ctx, ok)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.True(t, Rejected(err))
	assert.Equal(t, []string{"closed->open"}, transitions)
	assert.Equal(t, 1, cb.Counts().Rejected)
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := New("test", WithFailureThreshold(1), WithSuccessThreshold(1), WithCooldown(time.Minute), WithClock(clock.now))

	require.ErrorIs(t, cb.Execute(ctx, fail), errDown)
	require.Equal(t, StateOpen, cb.State())

	clock.advance(30 * time.Second)
	assert.ErrorIs(t, cb.Execute(ctx, ok), ErrCircuitOpen)

	clock.advance(30 * time.Second)
	assert.Equal(t, StateHalfOpen, cb.State())
	require.NoError(t, cb.Execute(ctx, ok))
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := New("test", WithFailureThreshold(1), WithCooldown(time.Minute), WithClock(clock.now))

	require.ErrorIs(t, cb.Execute(ctx, fail), errDown)
	clock.advance(time.Minute)
	require.ErrorIs(t, cb.Execute(ctx, fail), errDown)
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(ctx, ok), ErrCircuitOpen)
}

func TestBreaker_IsFailureFilter(t *testing.T) {
	ctx := context.Background()
	miss := errors.New("miss")
	cb := New("test", WithFailureThreshold(1), WithIsFailure(func(err error) bool { return !errors.Is(err, miss) }))

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(ctx, func(context.Context) error { return miss }), miss)
	}
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 3, cb.Counts().TotalSuccesses)

	cb.Reset()
	assert.Zero(t, cb.Counts().Requests)
}

func TestCacheBreaker(t *testing.T) {
	cb := CacheBreaker("cache", nil, nil)
	assert.Equal(t, "cache", cb.Name())
	for i := 0; i < 3; i++ {
		_ = cb.Execute(context.Background(), fail)
	}
	assert.Equal(t, StateOpen, cb.State())
}
