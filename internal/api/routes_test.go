package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopbridge/internal/models"
	"shopbridge/internal/ratelimit"
)

func testRouter(t *testing.T, mutate func(*models.Config)) http.Handler {
	t.Helper()

	handlers, _ := testStack(t, nil, nil)
	config := models.NewDefaultConfig()
	if mutate != nil {
		mutate(config)
	}
	limiter := ratelimit.NewWindowLimiter(nil)
	return SetupRoutes(handlers, limiter, config)
}

func TestRouterHealthEndpoints(t *testing.T) {
	router := testRouter(t, nil)

	for _, path := range []string{"/health", "/api/v1/health"} {
		req := httptest.NewRequest("GET", path, nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code, path)
	}
}

func TestRouterRequestIDEcho(t *testing.T) {
	router := testRouter(t, nil)

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("X-Request-Id", "req-abc-123")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, "req-abc-123", rr.Header().Get("X-Request-Id"))
}

func TestRouterGeneratesRequestID(t *testing.T) {
	router := testRouter(t, nil)

	req := httptest.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.NotEmpty(t, rr.Header().Get("X-Request-Id"))
}

func TestRouterSecurityHeaders(t *testing.T) {
	router := testRouter(t, nil)

	req := httptest.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
}

func TestRouterRateLimitHeaders(t *testing.T) {
	router := testRouter(t, nil)

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, "60", rr.Header().Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, rr.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rr.Header().Get("X-RateLimit-Reset"))
}

func TestRouterRateLimitDisabled(t *testing.T) {
	router := testRouter(t, func(c *models.Config) {
		c.Security.RateLimit.Enabled = false
	})

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Header().Get("X-RateLimit-Limit"))
}

func TestRouterRootHealthUnthrottled(t *testing.T) {
	router := testRouter(t, nil)

	req := httptest.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Header().Get("X-RateLimit-Limit"))
}

func TestRouterTokenClassExhaustion(t *testing.T) {
	router := testRouter(t, nil)

	// The token class allows 5 requests per 5 minutes per client. All
	// requests fail validation here but still consume budget.
	var last *httptest.ResponseRecorder
	for i := 0; i < 6; i++ {
		req := httptest.NewRequest("POST", "/api/v1/auth/token", nil)
		req.Header.Set("X-Forwarded-For", "198.51.100.7")
		last = httptest.NewRecorder()
		router.ServeHTTP(last, req)
	}

	require.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.NotEmpty(t, last.Header().Get("Retry-After"))
}

func TestRouterNotFoundJSON(t *testing.T) {
	router := testRouter(t, nil)

	req := httptest.NewRequest("GET", "/api/v1/nope", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	body := decodeBodyMap(t, rr)
	assert.Equal(t, "NOT_FOUND_ERROR", body["code"])
}

func TestRouterMethodNotAllowedJSON(t *testing.T) {
	router := testRouter(t, nil)

	req := httptest.NewRequest("PUT", "/api/v1/auth/sessions", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	body := decodeBodyMap(t, rr)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
}

func TestRouterCORSHeaders(t *testing.T) {
	router := testRouter(t, nil)

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	req.Header.Set("Origin", "https://admin.shopify.com")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "https://admin.shopify.com", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouterRecoversFromPanic(t *testing.T) {
	handlers, _ := testStack(t, nil, nil)
	config := models.NewDefaultConfig()
	limiter := ratelimit.NewWindowLimiter(map[ratelimit.Class]ratelimit.Policy{
		ratelimit.ClassAPI: {Window: time.Minute, MaxRequests: 100},
	})
	router := SetupRoutes(handlers, limiter, config)
	router.HandleFunc("/boom", func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	})

	req := httptest.NewRequest("GET", "/boom", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	body := decodeBodyMap(t, rr)
	assert.Equal(t, "INTERNAL_SERVER_ERROR", body["code"])
}
