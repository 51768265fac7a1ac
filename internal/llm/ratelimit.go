package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RateLimiter implements token bucket rate limiting
type RateLimiter struct {
	mu         sync.Mutex
	tokens     int
	maxTokens  int
	refillRate time.Duration
	lastRefill time.Time
	now        func() time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	return &RateLimiter{
		tokens:     requestsPerMinute,
		maxTokens:  requestsPerMinute,
		refillRate: time.Minute / time.Duration(requestsPerMinute),
		lastRefill: time.Now(),
		now:        time.Now,
	}
}

// Wait blocks until a token is available or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		wait := rl.reserve()
		if wait == 0 {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// reserve takes a token and returns 0, or returns how long until the next refill.
func (rl *RateLimiter) reserve() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	elapsed := now.Sub(rl.lastRefill)
	if added := int(elapsed / rl.refillRate); added > 0 {
		rl.tokens += added
		if rl.tokens >= rl.maxTokens {
			rl.tokens = rl.maxTokens
			rl.lastRefill = now
		} else {
			rl.lastRefill = rl.lastRefill.Add(time.Duration(added) * rl.refillRate)
		}
	}

	if rl.tokens > 0 {
		rl.tokens--
		return 0
	}
	return rl.refillRate - now.Sub(rl.lastRefill)
}

// RateLimitedProvider wraps a provider with rate limiting
type RateLimitedProvider struct {
	provider Provider
	limiter  *RateLimiter
	logger   *zap.Logger
}

// NewRateLimitedProvider wraps provider. A non-positive requestsPerMinute
// returns provider unchanged.
func NewRateLimitedProvider(provider Provider, requestsPerMinute int, logger *zap.Logger) Provider {
	if requestsPerMinute <= 0 {
		return provider
	}
	logger.Info("Provider rate limit enabled",
		zap.String("provider", provider.Name()),
		zap.Int("requests_per_minute", requestsPerMinute))
	return &RateLimitedProvider{
		provider: provider,
		limiter:  NewRateLimiter(requestsPerMinute),
		logger:   logger,
	}
}

func (p *RateLimitedProvider) Generate(ctx context.Context, req Request) (*Envelope, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		p.logger.Warn("Rate limit wait cancelled", zap.String("provider", p.provider.Name()), zap.Error(err))
		return nil, fmt.Errorf("rate limit wait cancelled: %w", err)
	}
	return p.provider.Generate(ctx, req)
}

func (p *RateLimitedProvider) Name() string {
	return p.provider.Name()
}

func (p *RateLimitedProvider) Close() error {
	return p.provider.Close()
}
