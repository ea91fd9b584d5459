package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"outpost-hq/warden/pkg/audit"
	"outpost-hq/warden/pkg/config"
	"outpost-hq/warden/pkg/decision"
	"outpost-hq/warden/pkg/rules"
	"outpost-hq/warden/pkg/simulation"
	"outpost-hq/warden/pkg/store"
	"outpost-hq/warden/pkg/telemetry/metrics"
)

// Deps are the engine components the API serves.
type Deps struct {
	Store    store.Store
	Registry *rules.Registry
	Engine   *decision.Engine
	Runner   *simulation.Runner
	AuditLog *audit.Log
	Metrics  *metrics.Metrics
}

// Server is the HTTP API consumed by the administrative front end and the
// sandbox runtime.
type Server struct {
	cfg    *config.Config
	deps   Deps
	logger *slog.Logger

	httpServer *http.Server
	started    time.Time

	mu        sync.Mutex
	isRunning bool
}

// NewServer creates the API server.
func NewServer(cfg *config.Config, deps Deps) *Server {
	return &Server{
		cfg:    cfg,
		deps:   deps,
		logger: slog.Default().With("component", "server"),
	}
}

// Start starts the HTTP server and blocks until the context is cancelled
// or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.started = time.Now()
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:         s.cfg.Server.ListenAddress,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting api server", "address", s.cfg.Server.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
	}
	s.logger.Info("api server stopped")
	return nil
}

// Handler builds the router with the full middleware chain. It is exposed
// for tests.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	if s.cfg.Server.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.Server.CORS.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         s.cfg.Server.CORS.MaxAge,
		}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/apps", func(r chi.Router) {
			r.Get("/", s.handleListApps)
			r.Post("/", s.handleCreateApp)
			r.Get("/{id}", s.handleGetApp)
			r.Delete("/{id}", s.handleDeleteApp)
			r.Post("/{id}/launch", s.handleLaunchApp)
			r.Post("/{id}/stop", s.handleStopApp)
			r.Put("/{id}/policy", s.handleAssignPolicy)
		})

		r.Route("/policies", func(r chi.Router) {
			r.Get("/", s.handleListPolicies)
			r.Post("/", s.handleCreatePolicy)
			r.Get("/{id}", s.handleGetPolicy)
			r.Delete("/{id}", s.handleDeletePolicy)
		})

		r.Get("/audit-log", s.handleAuditLog)
		r.Post("/audit/ingest", s.handleAuditIngest)

		r.Route("/telemetry", func(r chi.Router) {
			r.Post("/ingest", s.handleIngestTelemetry)
			r.Get("/summary", s.handleTelemetrySummary)
			r.Get("/network", s.handleNetworkEvents)
			r.Get("/syscalls", s.handleSyscallEvents)
			r.Get("/files", s.handleFileEvents)
		})

		r.Route("/opa", func(r chi.Router) {
			r.Get("/policies", s.handleListRuleModules)
			r.Post("/policies", s.handleCreateRuleModule)
			r.Get("/policies/{id}", s.handleGetRuleModule)
			r.Delete("/policies/{id}", s.handleDeleteRuleModule)
			r.Post("/validate", s.handleValidateRego)
			r.Post("/simulate", s.handleSimulate)
			r.Post("/evaluate", s.handleEvaluate)
		})

		r.Post("/decisions", s.handleDecide)
	})

	if s.cfg.Telemetry.Metrics.Enabled && s.deps.Metrics != nil {
		r.Handle("/metrics", s.deps.Metrics.Handler())
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	uptime := ""
	if !started.IsZero() {
		uptime = time.Since(started).Round(time.Second).String()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"uptime":       uptime,
		"rule_modules": s.deps.Registry.Count(),
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	})
}

// writeJSON encodes v as the response body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// writeError sends the standard error shape. Details are optional.
func writeError(w http.ResponseWriter, status int, message, details string) {
	body := map[string]any{"error": message}
	if details != "" {
		body["details"] = details
	}
	writeJSON(w, status, body)
}
