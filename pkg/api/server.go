// Package api serves the SYSCONF record store over HTTP.
//
// All routes except /metrics live under /api/v1 and require the X-API-Key
// header. Responses use the APIResponse envelope.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 5 * time.Second

// NewRouter builds the HTTP routes for s. Metrics are served from gatherer.
func NewRouter(s *Server, gatherer prometheus.Gatherer) http.Handler {
	metrics := s.metrics
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Prometheus metrics endpoint (unprotected for scraping)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(apiKeyMiddleware(s.config.APIKey, metrics))

		r.Get("/health", metrics.InstrumentHandler("GET", "/api/v1/health", s.handleHealth))

		// Entries
		r.Get("/entries", metrics.InstrumentHandler("GET", "/api/v1/entries", s.handleListEntries))
		r.Get("/entries/{name}", metrics.InstrumentHandler("GET", "/api/v1/entries/{name}", s.handleGetEntry))
		r.Put("/entries/{name}", metrics.InstrumentHandler("PUT", "/api/v1/entries/{name}", s.handleSetEntry))
		r.Get("/check", metrics.InstrumentHandler("GET", "/api/v1/check", s.handleCheck))

		// Clock sync
		r.Post("/sync", metrics.InstrumentHandler("POST", "/api/v1/sync", s.handleSync))

		// Snapshots
		r.Get("/snapshots", metrics.InstrumentHandler("GET", "/api/v1/snapshots", s.handleListSnapshots))
		r.Post("/snapshots/{id}/restore",
			metrics.InstrumentHandler("POST", "/api/v1/snapshots/{id}/restore", s.handleRestoreSnapshot))
	})

	return r
}

// StartServer serves the API until ctx is cancelled
func StartServer(ctx context.Context, deps Dependencies, config ServerConfig) error {
	metrics := NewMetrics(prometheus.DefaultRegisterer)
	server := NewServer(deps, config, metrics)

	httpServer := &http.Server{
		Addr:              net.JoinHostPort(config.Bind, strconv.Itoa(config.Port)),
		Handler:           NewRouter(server, prometheus.DefaultGatherer),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	server.logger.Info().Str("addr", httpServer.Addr).Msg("starting sysconf REST API server")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	server.logger.Info().Msg("sysconf REST API server stopped")
	return nil
}
