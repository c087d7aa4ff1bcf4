package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	"shopbridge/internal/apperr"
	"shopbridge/internal/models"
	"shopbridge/internal/ratelimit"
)

// RouteOption configures optional route behavior.
type RouteOption func(*mux.Router)

// WithOTelMiddleware adds OpenTelemetry HTTP instrumentation middleware.
func WithOTelMiddleware(serviceName string) RouteOption {
	return func(r *mux.Router) {
		r.Use(otelmux.Middleware(serviceName,
			otelmux.WithFilter(func(r *http.Request) bool {
				return r.URL.Path != "/health" &&
					r.URL.Path != "/api/v1/health" &&
					r.URL.Path != "/metrics"
			}),
		))
	}
}

// SetupRoutes configures the HTTP routes for the API. Each route group is
// throttled under its own limit class; health stays unthrottled so probes
// never compete with traffic.
func SetupRoutes(handlers *Handlers, limiter *ratelimit.WindowLimiter, config *models.Config, opts ...RouteOption) *mux.Router {
	router := mux.NewRouter()

	for _, opt := range opts {
		opt(router)
	}

	limit := func(class ratelimit.Class) mux.MiddlewareFunc {
		if !config.Security.RateLimit.Enabled {
			return func(next http.Handler) http.Handler { return next }
		}
		return ratelimit.Middleware(limiter, class)
	}

	api := router.PathPrefix("/api/v1").Subrouter()

	// General API endpoints
	generalAPI := api.PathPrefix("").Subrouter()
	generalAPI.Use(limit(ratelimit.ClassAPI))
	generalAPI.HandleFunc("/health", handlers.HealthCheck).Methods("GET")

	// Shopify Admin API proxy
	shopifyAPI := api.PathPrefix("/shopify").Subrouter()
	shopifyAPI.Use(limit(ratelimit.ClassShopify))
	shopifyAPI.HandleFunc("/products", handlers.ShopifyProducts).Methods("GET")
	shopifyAPI.HandleFunc("/orders/count", handlers.ShopifyOrdersCount).Methods("GET")
	shopifyAPI.HandleFunc("/shop", handlers.ShopifyShop).Methods("GET")

	// Third-party order API
	ordersAPI := api.PathPrefix("/orders").Subrouter()
	ordersAPI.Use(limit(ratelimit.ClassExternal))
	ordersAPI.HandleFunc("", handlers.CreateOrder).Methods("POST")
	ordersAPI.HandleFunc("/{order_id}", handlers.GetOrder).Methods("GET")

	// Session management. The token rotation endpoint gets its own, stricter
	// class; everything else under /auth shares the auth budget.
	tokenAPI := api.PathPrefix("/auth/token").Subrouter()
	tokenAPI.Use(limit(ratelimit.ClassToken))
	tokenAPI.HandleFunc("", handlers.RotateToken).Methods("POST")

	authAPI := api.PathPrefix("/auth").Subrouter()
	authAPI.Use(limit(ratelimit.ClassAuth))
	authAPI.HandleFunc("/sessions", handlers.CreateSession).Methods("POST")
	authAPI.HandleFunc("/sessions", handlers.ListSessions).Methods("GET")
	authAPI.HandleFunc("/sessions", handlers.DeleteSessions).Methods("DELETE")

	router.HandleFunc("/health", handlers.HealthCheck).Methods("GET")

	if config.Server.CORS.Enabled {
		router.Use(corsMiddleware(config.Server.CORS))
	}

	router.Use(requestIDMiddleware)
	router.Use(securityHeadersMiddleware)
	router.Use(loggingMiddleware)
	router.Use(recoveryMiddleware)

	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		errorResp := models.NewErrorResponse("Method not allowed", string(apperr.KindValidation))
		json.NewEncoder(w).Encode(errorResp)
	})

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		errorResp := models.NewErrorResponse("Resource not found", string(apperr.KindNotFound))
		json.NewEncoder(w).Encode(errorResp)
	})

	return router
}

// corsMiddleware handles Cross-Origin Resource Sharing
func corsMiddleware(corsConfig models.CORSConfig) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(corsConfig.AllowedOrigins) > 0 {
				origin := r.Header.Get("Origin")
				if origin != "" && (contains(corsConfig.AllowedOrigins, "*") || contains(corsConfig.AllowedOrigins, origin)) {
					w.Header().Set("Access-Control-Allow-Origin", origin)
				}
			}
			if len(corsConfig.AllowedMethods) > 0 {
				w.Header().Set("Access-Control-Allow-Methods", strings.Join(corsConfig.AllowedMethods, ", "))
			}
			if len(corsConfig.AllowedHeaders) > 0 {
				w.Header().Set("Access-Control-Allow-Headers", strings.Join(corsConfig.AllowedHeaders, ", "))
			}
			if corsConfig.MaxAge > 0 {
				w.Header().Set("Access-Control-Max-Age", fmt.Sprintf("%d", corsConfig.MaxAge))
			}
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slog.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"request_id", RequestID(r))
		next.ServeHTTP(w, r)
	})
}

// recoveryMiddleware handles panics
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				slog.Error("Panic recovered", "error", err, "path", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				errorResp := models.NewErrorResponse("Internal server error", string(apperr.KindInternal))
				json.NewEncoder(w).Encode(errorResp)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
