package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shopbridge/internal/api"
	"shopbridge/internal/config"
	"shopbridge/internal/logger"
	"shopbridge/internal/models"
	"shopbridge/internal/observability"
	"shopbridge/internal/ratelimit"
	"shopbridge/internal/storage"
	"shopbridge/internal/upstream"
	"shopbridge/internal/version"
)

var (
	configFile  = flag.String("config", "", "Path to configuration file")
	showVersion = flag.Bool("version", false, "Print version information and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.GetInfo().String())
		return
	}

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logging
	log, closer, err := logger.Setup(cfg.Logging, version.GetInfo())
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}
	slog.SetDefault(log)

	// Initialize observability (OpenTelemetry)
	otelProvider, err := observability.Setup(cfg.Metrics, cfg.Observability, version.GetInfo())
	if err != nil {
		slog.Error("Failed to initialize observability", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown observability", "error", err)
		}
	}()

	// Initialize session storage
	storeInstance, err := storage.NewFactory().Create(context.Background(), cfg.Storage)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer storeInstance.Close()

	// Wrap storage with instrumentation if metrics are enabled
	var activeStore storage.SessionStore = storeInstance
	if cfg.Metrics.Enabled {
		instrumented, err := observability.NewInstrumentedSessionStore(storeInstance)
		if err != nil {
			slog.Error("Failed to create instrumented storage", "error", err)
			os.Exit(1)
		}
		activeStore = instrumented
	}

	// Initialize upstream clients. Outbound Shopify calls share one pacer so
	// the whole process stays inside the per-shop call quota.
	pacer := ratelimit.NewPacer(cfg.Shopify.RefillPerSecond, cfg.Shopify.BucketCapacity)
	shopifyClient := upstream.NewShopifyClient(cfg.Shopify, pacer)
	orderClient := upstream.NewOrderClient(cfg.OrderAPI)

	handlers := api.NewHandlers(activeStore, shopifyClient, orderClient)

	// Setup routes with middleware
	routeOpts := []api.RouteOption{}
	if cfg.Observability.Tracing.Enabled {
		routeOpts = append(routeOpts, api.WithOTelMiddleware(cfg.Observability.ServiceName))
	}

	limiter := ratelimit.NewWindowLimiter(limitOverrides(cfg.Security.RateLimit))

	router := api.SetupRoutes(handlers, limiter, cfg, routeOpts...)

	// Start metrics server if enabled
	var metricsServer *observability.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = observability.NewMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path, otelProvider)
		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Starting server", "addr", server.Addr)

		var err error
		if cfg.Server.TLSEnabled {
			if cfg.Server.TLSCertFile == "" || cfg.Server.TLSKeyFile == "" {
				slog.Error("TLS is enabled but cert file or key file is not specified")
				os.Exit(1)
			}
			slog.Info("Starting HTTPS server with TLS")
			err = server.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			slog.Info("Starting HTTP server")
			err = server.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server")

	// Create a deadline to wait for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown metrics server
	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			slog.Error("Metrics server forced to shutdown", "error", err)
		}
	}

	// Attempt graceful shutdown
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server shutdown complete")
}

// limitOverrides converts configured per-class policies into limiter
// overrides. Classes absent from the config keep the built-in defaults.
func limitOverrides(cfg models.RateLimitConfig) map[ratelimit.Class]ratelimit.Policy {
	if len(cfg.Classes) == 0 {
		return nil
	}
	overrides := make(map[ratelimit.Class]ratelimit.Policy, len(cfg.Classes))
	for name, policy := range cfg.Classes {
		overrides[ratelimit.Class(name)] = ratelimit.Policy{
			Window:        policy.Window,
			MaxRequests:   policy.MaxRequests,
			SkipOnSuccess: policy.SkipOnSuccess,
			SkipOnFailure: policy.SkipOnFailure,
		}
	}
	return overrides
}
