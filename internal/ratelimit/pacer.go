package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Shopify's published REST Admin API quota: a 40-call bucket leaking at
// 2 calls per second per shop.
const (
	shopifyBucketCapacity  = 40
	shopifyRefillPerSecond = 2
)

// Pacer spaces outbound API calls per shop using a token bucket with
// continuous refill, backed by golang.org/x/time/rate. Acquire blocks until
// the bucket can cover the requested cost, so concurrent callers waiting on
// the same bucket are served in order rather than racing for tokens.
type Pacer struct {
	refill   rate.Limit
	capacity int

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// NewPacer creates a pacer with the given refill rate and bucket capacity.
// Non-positive values fall back to the Shopify REST quota.
func NewPacer(refillPerSecond float64, capacity int) *Pacer {
	if refillPerSecond <= 0 {
		refillPerSecond = shopifyRefillPerSecond
	}
	if capacity <= 0 {
		capacity = shopifyBucketCapacity
	}
	return &Pacer{
		refill:   rate.Limit(refillPerSecond),
		capacity: capacity,
		buckets:  make(map[string]*rate.Limiter),
	}
}

// Acquire takes cost tokens from the shop's bucket, blocking while the
// bucket refills if needed. The wait is proportional to the token deficit.
// It returns the bucket state after the grant, or the context error if the
// caller was cancelled while waiting.
func (p *Pacer) Acquire(ctx context.Context, shop string, cost int) (Info, error) {
	if cost <= 0 {
		cost = 1
	}

	lim := p.bucket(shop)
	if err := lim.WaitN(ctx, cost); err != nil {
		return Info{}, err
	}

	now := time.Now()
	tokens := lim.TokensAt(now)
	remaining := int(math.Max(0, math.Floor(tokens)))

	// Reset time: how long until the bucket is full again.
	tokensNeeded := float64(p.capacity) - tokens
	resetAt := now
	if tokensNeeded > 0 {
		resetAt = now.Add(time.Duration(tokensNeeded / float64(p.refill) * float64(time.Second)))
	}

	return Info{
		Limit:     p.capacity,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

// bucket returns the shop's limiter, creating it lazily on first use.
// Buckets live for the process lifetime; shops are a small, bounded set.
func (p *Pacer) bucket(shop string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	lim, exists := p.buckets[shop]
	if !exists {
		lim = rate.NewLimiter(p.refill, p.capacity)
		p.buckets[shop] = lim
	}
	return lim
}
