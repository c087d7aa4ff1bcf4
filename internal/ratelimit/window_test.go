package ratelimit

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopbridge/internal/apperr"
)

// newTestLimiter returns a limiter with a controllable clock and the sweep
// disabled, so tests are deterministic.
func newTestLimiter(overrides map[Class]Policy) (*WindowLimiter, *time.Time) {
	l := NewWindowLimiter(overrides)
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	l.sweepRoll = func() float64 { return 1.0 }
	return l, &now
}

func TestWindowLimiter_AllowsUpToLimit(t *testing.T) {
	l, _ := newTestLimiter(map[Class]Policy{
		ClassAPI: {Window: time.Minute, MaxRequests: 3},
	})

	for i := 0; i < 3; i++ {
		info, err := l.Check("shop-a", "/orders", ClassAPI)
		require.NoError(t, err)
		assert.Equal(t, 3, info.Limit)
		assert.Equal(t, 3-(i+1), info.Remaining)
	}

	info, err := l.Check("shop-a", "/orders", ClassAPI)
	require.Error(t, err)
	assert.Equal(t, 0, info.Remaining)
	assert.Greater(t, info.RetryAfter, time.Duration(0))

	appErr := apperr.From(err)
	assert.Equal(t, apperr.KindRateLimit, appErr.Kind)
	retryAfter, ok := appErr.Context["retryAfter"].(int)
	require.True(t, ok)
	assert.GreaterOrEqual(t, retryAfter, 1)
}

func TestWindowLimiter_RejectionDoesNotConsume(t *testing.T) {
	l, _ := newTestLimiter(map[Class]Policy{
		ClassAPI: {Window: time.Minute, MaxRequests: 1},
	})

	_, err := l.Check("shop-a", "/orders", ClassAPI)
	require.NoError(t, err)

	// Repeated rejections keep reporting the same state.
	for i := 0; i < 5; i++ {
		info, err := l.Check("shop-a", "/orders", ClassAPI)
		require.Error(t, err)
		assert.Equal(t, 0, info.Remaining)
	}
}

func TestWindowLimiter_WindowExpiryResets(t *testing.T) {
	l, now := newTestLimiter(map[Class]Policy{
		ClassAPI: {Window: time.Minute, MaxRequests: 1},
	})

	_, err := l.Check("shop-a", "/orders", ClassAPI)
	require.NoError(t, err)

	_, err = l.Check("shop-a", "/orders", ClassAPI)
	require.Error(t, err)

	// Advance past the window boundary; the counter starts fresh.
	*now = now.Add(61 * time.Second)

	info, err := l.Check("shop-a", "/orders", ClassAPI)
	require.NoError(t, err)
	assert.Equal(t, 0, info.Remaining)
	assert.Equal(t, now.Add(time.Minute), info.ResetAt)
}

func TestWindowLimiter_KeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(map[Class]Policy{
		ClassAPI: {Window: time.Minute, MaxRequests: 1},
	})

	_, err := l.Check("shop-a", "/orders", ClassAPI)
	require.NoError(t, err)

	// Different identity, endpoint, or class each get their own counter.
	_, err = l.Check("shop-b", "/orders", ClassAPI)
	assert.NoError(t, err)

	_, err = l.Check("shop-a", "/products", ClassAPI)
	assert.NoError(t, err)

	_, err = l.Check("shop-a", "/orders", ClassExternal)
	assert.NoError(t, err)
}

func TestWindowLimiter_RecordOutcomeSkipOnSuccess(t *testing.T) {
	l, _ := newTestLimiter(map[Class]Policy{
		ClassAuth: {Window: time.Minute, MaxRequests: 2, SkipOnSuccess: true},
	})

	// Each successful attempt is refunded, so the budget never depletes.
	for i := 0; i < 10; i++ {
		_, err := l.Check("shop-a", "/auth/login", ClassAuth)
		require.NoError(t, err)
		l.RecordOutcome("shop-a", "/auth/login", ClassAuth, true)
	}

	// Failures stick.
	for i := 0; i < 2; i++ {
		_, err := l.Check("shop-a", "/auth/login", ClassAuth)
		require.NoError(t, err)
		l.RecordOutcome("shop-a", "/auth/login", ClassAuth, false)
	}

	_, err := l.Check("shop-a", "/auth/login", ClassAuth)
	assert.Error(t, err)
}

func TestWindowLimiter_RecordOutcomeSkipOnFailure(t *testing.T) {
	l, _ := newTestLimiter(map[Class]Policy{
		ClassShopify: {Window: time.Minute, MaxRequests: 2, SkipOnFailure: true},
	})

	// Failed upstream calls are refunded.
	for i := 0; i < 10; i++ {
		_, err := l.Check("shop-a", "/shopify/products", ClassShopify)
		require.NoError(t, err)
		l.RecordOutcome("shop-a", "/shopify/products", ClassShopify, false)
	}

	// Successes consume the budget.
	for i := 0; i < 2; i++ {
		_, err := l.Check("shop-a", "/shopify/products", ClassShopify)
		require.NoError(t, err)
		l.RecordOutcome("shop-a", "/shopify/products", ClassShopify, true)
	}

	_, err := l.Check("shop-a", "/shopify/products", ClassShopify)
	assert.Error(t, err)
}

func TestWindowLimiter_RecordOutcomeFloorsAtZero(t *testing.T) {
	l, _ := newTestLimiter(map[Class]Policy{
		ClassAuth: {Window: time.Minute, MaxRequests: 5, SkipOnSuccess: true},
	})

	_, err := l.Check("shop-a", "/auth/login", ClassAuth)
	require.NoError(t, err)

	// Refund more than was counted; the counter must not go negative.
	for i := 0; i < 3; i++ {
		l.RecordOutcome("shop-a", "/auth/login", ClassAuth, true)
	}

	info, err := l.Check("shop-a", "/auth/login", ClassAuth)
	require.NoError(t, err)
	assert.Equal(t, 4, info.Remaining)
}

func TestWindowLimiter_RecordOutcomeIgnoresExpiredWindow(t *testing.T) {
	l, now := newTestLimiter(map[Class]Policy{
		ClassAuth: {Window: time.Minute, MaxRequests: 2, SkipOnSuccess: true},
	})

	_, err := l.Check("shop-a", "/auth/login", ClassAuth)
	require.NoError(t, err)

	*now = now.Add(2 * time.Minute)

	// The window has expired; the refund must not resurrect it.
	l.RecordOutcome("shop-a", "/auth/login", ClassAuth, true)

	info, err := l.Check("shop-a", "/auth/login", ClassAuth)
	require.NoError(t, err)
	assert.Equal(t, 1, info.Remaining)
}

func TestWindowLimiter_UnknownClassFallsBackToAPI(t *testing.T) {
	l, _ := newTestLimiter(nil)

	info, err := l.Check("shop-a", "/whatever", Class("bogus"))
	require.NoError(t, err)
	assert.Equal(t, DefaultPolicies()[ClassAPI].MaxRequests, info.Limit)
}

func TestWindowLimiter_SweepEvictsExpired(t *testing.T) {
	l, now := newTestLimiter(map[Class]Policy{
		ClassAPI: {Window: time.Minute, MaxRequests: 10},
	})

	_, err := l.Check("shop-a", "/orders", ClassAPI)
	require.NoError(t, err)
	_, err = l.Check("shop-b", "/orders", ClassAPI)
	require.NoError(t, err)

	l.mu.Lock()
	assert.Len(t, l.windows, 2)
	l.mu.Unlock()

	*now = now.Add(2 * time.Minute)

	// Force the sweep on the next check.
	l.sweepRoll = func() float64 { return 0.0 }
	_, err = l.Check("shop-c", "/orders", ClassAPI)
	require.NoError(t, err)

	l.mu.Lock()
	assert.Len(t, l.windows, 1)
	l.mu.Unlock()
}

func TestDefaultPolicies(t *testing.T) {
	policies := DefaultPolicies()

	assert.Equal(t, Policy{Window: time.Minute, MaxRequests: 60}, policies[ClassAPI])
	assert.Equal(t, Policy{Window: time.Minute, MaxRequests: 40, SkipOnFailure: true}, policies[ClassShopify])
	assert.Equal(t, Policy{Window: time.Minute, MaxRequests: 100}, policies[ClassExternal])
	assert.Equal(t, Policy{Window: 15 * time.Minute, MaxRequests: 10, SkipOnSuccess: true}, policies[ClassAuth])
	assert.Equal(t, Policy{Window: 5 * time.Minute, MaxRequests: 5}, policies[ClassToken])
}

func TestWindowLimiter_RateLimitErrorIsTyped(t *testing.T) {
	l, _ := newTestLimiter(map[Class]Policy{
		ClassToken: {Window: 5 * time.Minute, MaxRequests: 1},
	})

	_, err := l.Check("shop-a", "/auth/token", ClassToken)
	require.NoError(t, err)

	_, err = l.Check("shop-a", "/auth/token", ClassToken)
	require.Error(t, err)

	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, 429, appErr.StatusCode)
	assert.Equal(t, apperr.SeverityMedium, appErr.Severity)
}
