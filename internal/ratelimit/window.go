package ratelimit

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"shopbridge/internal/apperr"
)

// sweepProbability is the chance that a Check call scans for and evicts
// expired windows. There is no background timer; stale entries only waste
// memory because expiry is re-checked at every lookup.
const sweepProbability = 0.01

// window tracks one (class, identity, endpoint) counter.
type window struct {
	count     int
	resetAt   time.Time
	firstSeen time.Time // diagnostic only
}

// WindowLimiter is a fixed-window request counter. Each key gets a counter
// that resets when the current time passes its window boundary. State is
// owned by the instance; callers share a limiter by sharing the pointer.
type WindowLimiter struct {
	mu       sync.Mutex
	policies map[Class]Policy
	windows  map[string]*window

	// Injectable for tests.
	now       func() time.Time
	sweepRoll func() float64
}

// NewWindowLimiter creates a limiter using the default policy table merged
// with any overrides.
func NewWindowLimiter(overrides map[Class]Policy) *WindowLimiter {
	policies := DefaultPolicies()
	for class, p := range overrides {
		policies[class] = p
	}
	return &WindowLimiter{
		policies:  policies,
		windows:   make(map[string]*window),
		now:       time.Now,
		sweepRoll: rand.Float64,
	}
}

// Check counts one request for the given identity, endpoint, and class.
// It returns the window state for response headers, or a RATE_LIMIT error
// carrying the retry-after seconds when the window quota was already
// exhausted before this call.
func (l *WindowLimiter) Check(identity, endpoint string, class Class) (Info, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	policy := l.policy(class)
	now := l.now()

	if l.sweepRoll() < sweepProbability {
		l.sweepLocked(now)
	}

	key := windowKey(class, identity, endpoint)
	w, exists := l.windows[key]
	if !exists || now.After(w.resetAt) {
		w = &window{
			resetAt:   now.Add(policy.Window),
			firstSeen: now,
		}
		l.windows[key] = w
	}

	if w.count >= policy.MaxRequests {
		wait := w.resetAt.Sub(now)
		retrySecs := int(math.Ceil(wait.Seconds()))
		if retrySecs < 1 {
			retrySecs = 1
		}
		return Info{
			Limit:      policy.MaxRequests,
			Remaining:  0,
			ResetAt:    w.resetAt,
			RetryAfter: wait,
		}, apperr.RateLimit(retrySecs)
	}

	w.count++
	return Info{
		Limit:     policy.MaxRequests,
		Remaining: policy.MaxRequests - w.count,
		ResetAt:   w.resetAt,
	}, nil
}

// RecordOutcome applies the class's skip rules after a request completes:
// a successful request under skip-on-success (or a failed one under
// skip-on-failure) refunds one count, never below zero. Best-effort
// bookkeeping; a refund cannot undo a rejection that already happened.
func (l *WindowLimiter) RecordOutcome(identity, endpoint string, class Class, success bool) {
	policy := l.policy(class)
	refund := (success && policy.SkipOnSuccess) || (!success && policy.SkipOnFailure)
	if !refund {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	w, exists := l.windows[windowKey(class, identity, endpoint)]
	if !exists || l.now().After(w.resetAt) {
		return
	}
	if w.count > 0 {
		w.count--
	}
}

func (l *WindowLimiter) policy(class Class) Policy {
	if p, ok := l.policies[class]; ok {
		return p
	}
	return l.policies[ClassAPI]
}

// sweepLocked evicts expired windows. Caller must hold l.mu.
func (l *WindowLimiter) sweepLocked(now time.Time) {
	for key, w := range l.windows {
		if now.After(w.resetAt) {
			delete(l.windows, key)
		}
	}
}

func windowKey(class Class, identity, endpoint string) string {
	return fmt.Sprintf("%s:%s:%s", class, identity, endpoint)
}
