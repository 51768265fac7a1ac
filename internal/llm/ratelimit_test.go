package llm

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingProvider struct {
	calls atomic.Int32
}

func (p *countingProvider) Generate(context.Context, Request) (*Envelope, error) {
	p.calls.Add(1)
	return &Envelope{Text: "ok"}, nil
}

func (p *countingProvider) Name() string { return "counting" }
func (p *countingProvider) Close() error { return nil }

func TestRateLimiter_Refill(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(60)
	rl.now = func() time.Time { return now }
	rl.lastRefill = now

	for i := 0; i < 60; i++ {
		require.Zero(t, rl.reserve(), "token %d", i)
	}
	assert.Equal(t, time.Second, rl.reserve())

	now = now.Add(400 * time.Millisecond)
	assert.Equal(t, 600*time.Millisecond, rl.reserve())

	// Partial periods are carried over rather than lost.
	now = now.Add(1100 * time.Millisecond)
	assert.Zero(t, rl.reserve())
	assert.Equal(t, 500*time.Millisecond, rl.reserve())

	now = now.Add(time.Hour)
	for i := 0; i < 60; i++ {
		require.Zero(t, rl.reserve())
	}
	assert.NotZero(t, rl.reserve())
}

func TestRateLimiter_WaitCancelled(t *testing.T) {
	rl := NewRateLimiter(1)
	require.NoError(t, rl.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := rl.Wait(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestNewRateLimitedProvider(t *testing.T) {
	inner := &countingProvider{}

	assert.Same(t, Provider(inner), NewRateLimitedProvider(inner, 0, zap.NewNop()))

	limited := NewRateLimitedProvider(inner, 600, zap.NewNop())
	require.IsType(t, &RateLimitedProvider{}, limited)
	assert.Equal(t, "counting", limited.Name())

	env, err := limited.Generate(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "ok", env.Text)
	assert.EqualValues(t, 1, inner.calls.Load())
}

func TestRateLimitedProvider_CancelledWaitSkipsCall(t *testing.T) {
	inner := &countingProvider{}
	limited := NewRateLimitedProvider(inner, 1, zap.NewNop())

	_, err := limited.Generate(context.Background(), Request{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = limited.Generate(ctx, Request{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.EqualValues(t, 1, inner.calls.Load())
}
