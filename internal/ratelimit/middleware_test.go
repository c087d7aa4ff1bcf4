package ratelimit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestMiddleware_AllowedRequest(t *testing.T) {
	limiter := NewWindowLimiter(nil)

	handler := Middleware(limiter, ClassAPI)(http.HandlerFunc(okHandler))

	req := httptest.NewRequest("GET", "/test?shop=demo.myshopify.com", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "59", rr.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rr.Header().Get("X-RateLimit-Reset"))
}

func TestMiddleware_DeniedRequest(t *testing.T) {
	limiter := NewWindowLimiter(map[Class]Policy{
		ClassAPI: {Window: time.Minute, MaxRequests: 2},
	})

	handler := Middleware(limiter, ClassAPI)(http.HandlerFunc(okHandler))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("GET", "/test?shop=demo.myshopify.com", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	}

	// Third request should be denied
	req := httptest.NewRequest("GET", "/test?shop=demo.myshopify.com", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))

	retryAfter, err := strconv.Atoi(rr.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, retryAfter, 1)

	// Verify JSON error body
	var errResp map[string]interface{}
	err = json.NewDecoder(rr.Body).Decode(&errResp)
	require.NoError(t, err)
	assert.Equal(t, "Rate limit exceeded, please try again later", errResp["message"])
	assert.Equal(t, "RATE_LIMIT_ERROR", errResp["code"])
}

func TestMiddleware_ResetHeaderIsMilliseconds(t *testing.T) {
	limiter := NewWindowLimiter(nil)

	handler := Middleware(limiter, ClassAPI)(http.HandlerFunc(okHandler))

	req := httptest.NewRequest("GET", "/test?shop=demo.myshopify.com", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	reset, err := strconv.ParseInt(rr.Header().Get("X-RateLimit-Reset"), 10, 64)
	require.NoError(t, err)
	assert.InDelta(t, time.Now().Add(time.Minute).UnixMilli(), reset, float64(5*time.Second/time.Millisecond))
}

func TestMiddleware_SkipOnSuccessRefundsCount(t *testing.T) {
	limiter := NewWindowLimiter(map[Class]Policy{
		ClassAuth: {Window: time.Minute, MaxRequests: 2, SkipOnSuccess: true},
	})

	handler := Middleware(limiter, ClassAuth)(http.HandlerFunc(okHandler))

	// Successful requests are refunded, so far more than MaxRequests pass.
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest("POST", "/auth/login?shop=demo.myshopify.com", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	}
}

func TestMiddleware_FailuresCountAgainstAuthLimit(t *testing.T) {
	limiter := NewWindowLimiter(map[Class]Policy{
		ClassAuth: {Window: time.Minute, MaxRequests: 2, SkipOnSuccess: true},
	})

	failHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	handler := Middleware(limiter, ClassAuth)(failHandler)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("POST", "/auth/login?shop=demo.myshopify.com", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	}

	req := httptest.NewRequest("POST", "/auth/login?shop=demo.myshopify.com", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
}

func TestClientIdentity(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(r *http.Request)
		expected string
	}{
		{
			name: "shop parameter wins",
			setup: func(r *http.Request) {
				q := r.URL.Query()
				q.Set("shop", "demo.myshopify.com")
				r.URL.RawQuery = q.Encode()
				r.Header.Set("X-Forwarded-For", "203.0.113.50")
			},
			expected: "demo.myshopify.com",
		},
		{
			name: "first forwarded entry",
			setup: func(r *http.Request) {
				r.Header.Set("X-Forwarded-For", "203.0.113.50, 70.41.3.18")
			},
			expected: "203.0.113.50",
		},
		{
			name: "real ip fallback",
			setup: func(r *http.Request) {
				r.Header.Set("X-Real-Ip", "203.0.113.50")
			},
			expected: "203.0.113.50",
		},
		{
			name:     "unknown without any hint",
			setup:    func(r *http.Request) {},
			expected: "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test", nil)
			tt.setup(req)
			assert.Equal(t, tt.expected, ClientIdentity(req))
		})
	}
}

func TestMiddleware_SeparateIdentitiesSeparateBudgets(t *testing.T) {
	limiter := NewWindowLimiter(map[Class]Policy{
		ClassAPI: {Window: time.Minute, MaxRequests: 1},
	})

	handler := Middleware(limiter, ClassAPI)(http.HandlerFunc(okHandler))

	req := httptest.NewRequest("GET", "/test?shop=alpha.myshopify.com", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	// alpha's budget is spent
	req = httptest.NewRequest("GET", "/test?shop=alpha.myshopify.com", nil)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)

	// beta is unaffected
	req = httptest.NewRequest("GET", "/test?shop=beta.myshopify.com", nil)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}
