package ratelimit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"shopbridge/internal/apperr"
	"shopbridge/internal/models"
)

// Middleware returns HTTP middleware that enforces the given limit class
// against the shared window limiter. Attach it per route group so that, for
// example, /auth endpoints are counted under the auth class while general
// API endpoints stay under api.
//
// After the handler runs, the request's outcome (status < 400 counts as
// success) is reported back so classes with skip rules can refund the count.
func Middleware(limiter *WindowLimiter, class Class) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := ClientIdentity(r)
			endpoint := endpointName(r)

			info, err := limiter.Check(identity, endpoint, class)

			// Always set rate limit headers. Reset is epoch milliseconds.
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetAt.UnixMilli()))

			if err != nil {
				retryAfter := retryAfterSeconds(err, info)
				w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)

				errorResp := models.NewErrorResponse("Rate limit exceeded, please try again later", string(apperr.KindRateLimit))
				json.NewEncoder(w).Encode(errorResp)

				slog.Warn("Rate limit exceeded",
					"class", string(class),
					"identity", identity,
					"endpoint", endpoint,
					"limit", info.Limit,
					"retry_after", retryAfter,
				)
				return
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			limiter.RecordOutcome(identity, endpoint, class, rec.status < 400)
		})
	}
}

// ClientIdentity derives the rate limit key for a request. Embedded app
// requests carry the shop domain as a query parameter, which is a more
// stable key than the client address; otherwise fall back to proxy headers
// and finally to a shared "unknown" bucket.
func ClientIdentity(r *http.Request) string {
	if shop := r.URL.Query().Get("shop"); shop != "" {
		return shop
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if ip := strings.TrimSpace(ips[0]); ip != "" {
			return ip
		}
	}

	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		return xri
	}

	return "unknown"
}

// endpointName keys the window by route template rather than raw path, so
// /orders/123 and /orders/456 share one counter.
func endpointName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return r.URL.Path
}

// retryAfterSeconds reads the retry hint from the rate limit error's
// context, falling back to the window state.
func retryAfterSeconds(err error, info Info) int {
	if appErr := apperr.From(err); appErr.Context != nil {
		if secs, ok := appErr.Context["retryAfter"].(int); ok && secs > 0 {
			return secs
		}
	}
	secs := int(info.RetryAfter.Seconds()) + 1
	if secs < 1 {
		secs = 1
	}
	return secs
}

// statusRecorder captures the response status for outcome reporting.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}
