// Package ratelimit throttles inbound HTTP traffic and paces outbound
// Shopify API calls. Inbound requests are counted against fixed windows
// keyed by client identity, endpoint, and a named limit class; outbound
// calls pass through a per-shop token bucket with continuous refill.
// All state is process-local and in-memory.
package ratelimit

import "time"

// Class names a rate-limiting policy profile. The catalog is fixed; each
// class carries its own window duration, quota, and skip rules.
type Class string

const (
	// ClassAPI covers general API traffic.
	ClassAPI Class = "api"
	// ClassShopify covers inbound routes that proxy to the Shopify Admin API.
	ClassShopify Class = "shopify"
	// ClassExternal covers routes that proxy to the third-party order API.
	ClassExternal Class = "external"
	// ClassAuth covers login and OAuth begin/callback routes.
	ClassAuth Class = "auth"
	// ClassToken covers token exchange, the most sensitive surface.
	ClassToken Class = "token"
)

// Policy configures one limit class. SkipOnSuccess and SkipOnFailure refund
// the window counter after the request completes, so e.g. successful logins
// are not counted against the auth quota.
type Policy struct {
	Window        time.Duration
	MaxRequests   int
	SkipOnSuccess bool
	SkipOnFailure bool
}

// DefaultPolicies returns the built-in policy table.
func DefaultPolicies() map[Class]Policy {
	return map[Class]Policy{
		ClassAPI:      {Window: 60 * time.Second, MaxRequests: 60},
		ClassShopify:  {Window: 60 * time.Second, MaxRequests: 40, SkipOnFailure: true},
		ClassExternal: {Window: 60 * time.Second, MaxRequests: 100},
		ClassAuth:     {Window: 15 * time.Minute, MaxRequests: 10, SkipOnSuccess: true},
		ClassToken:    {Window: 5 * time.Minute, MaxRequests: 5},
	}
}

// Info contains rate limit state for populating response headers.
type Info struct {
	Limit      int           // Maximum requests per window
	Remaining  int           // Requests (or tokens) left
	ResetAt    time.Time     // When the window resets or the bucket refills
	RetryAfter time.Duration // How long to wait (meaningful only when denied)
}
