// Package server wires the stores, provider registry, job scheduler
// and HTTP API together and manages their lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/siftlabs/sift/internal/api"
	"github.com/siftlabs/sift/internal/config"
	"github.com/siftlabs/sift/internal/jobs"
	"github.com/siftlabs/sift/internal/providers"
	"github.com/siftlabs/sift/internal/server/endpoints"
	"github.com/siftlabs/sift/internal/store"
	"github.com/siftlabs/sift/internal/svcctx"
)

// Server is the main Sift HTTP server. It owns the SQLite store, the
// job manager and the background scheduler, starting them on Start and
// shutting them down when the context is cancelled.
type Server struct {
	httpServer *http.Server
	store      *store.Store
	jobManager *jobs.Manager
	scheduler  *jobs.Scheduler
	registry   *providers.Registry
	configMgr  *config.Manager
	logger     *slog.Logger

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	maxWorkers int
	dataDir    string

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8321)
	Port int
	// DataDir is where the SQLite database lives (default: ~/.sift/data)
	DataDir string
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	defaults := config.DefaultConfig()
	if cfg.ConfigManager != nil {
		defaults = cfg.ConfigManager.Get()
	}
	if cfg.Host == "" {
		cfg.Host = defaults.Server.Host
	}
	if cfg.Port == 0 {
		cfg.Port = defaults.Server.Port
	}
	if cfg.DataDir == "" {
		cfg.DataDir = defaults.Storage.DataDir
	}

	// Create provider registry
	registry := providers.NewRegistry()
	registry.SetLogger(cfg.Logger)

	// If config manager provided, set up providers and hot reload
	if cfg.ConfigManager != nil {
		registry.Reload(cfg.ConfigManager.Get().ToProviderRegistryConfig())

		// Watch for config changes
		cfg.ConfigManager.OnChange(func(c *config.Config) {
			registry.Reload(c.ToProviderRegistryConfig())
			cfg.Logger.Info("provider registry reloaded from config")
		})
	}

	s := &Server{
		registry:   registry,
		configMgr:  cfg.ConfigManager,
		logger:     cfg.Logger,
		maxWorkers: defaults.Defaults.MaxWorkers,
		dataDir:    cfg.DataDir,
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All() {
		s.endpointRegistry.Register(ep)
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:      s.withServices(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start starts the store, the job workers and the HTTP server. It
// blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	st, err := store.NewStore(s.dataDir)
	if err != nil {
		s.setNotRunning()
		return fmt.Errorf("failed to open store: %w", err)
	}
	s.logger.Info("store ready", "path", st.Path())

	manager := jobs.NewManager(s.logger)

	processor := jobs.NewProcessor(jobs.ProcessorConfig{
		Manager:  manager,
		Rows:     st,
		Results:  st,
		Feedback: st,
		Resolver: s.registry,
		Logger:   s.logger,
	})

	queueSize := 0
	if s.configMgr != nil {
		queueSize = s.configMgr.Get().Defaults.QueueSize
	}
	scheduler := jobs.NewScheduler(jobs.SchedulerConfig{
		Processor: processor,
		QueueSize: queueSize,
		Logger:    s.logger,
	})

	// Worker contexts outlive individual requests but not the server
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	scheduler.RunWorkers(workerCtx, s.maxWorkers)

	s.mu.Lock()
	s.store = st
	s.jobManager = manager
	s.scheduler = scheduler
	s.services = &svcctx.Services{
		JobManager:    manager,
		Scheduler:     scheduler,
		Registry:      s.registry,
		Store:         st,
		ConfigManager: s.configMgr,
		Logger:        s.logger,
	}
	s.mu.Unlock()

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			stopWorkers()
			_ = s.shutdown()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	stopWorkers()
	return s.shutdown()
}

// shutdown performs graceful shutdown of the HTTP server and the store.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("store close error", "error", err)
		}
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// JobManager returns the job manager.
// Returns nil if the server hasn't started yet.
func (s *Server) JobManager() *jobs.Manager {
	return s.jobManager
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Registry returns the provider registry.
func (s *Server) Registry() *providers.Registry {
	return s.registry
}

// Handler returns the fully wired HTTP handler. Useful for tests that
// serve the API without binding a port.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		s.mu.RLock()
		services := s.services
		s.mu.RUnlock()

		if services != nil {
			ctx = svcctx.WithServices(ctx, services)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable if the store or job manager aren't ready.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		ready := s.store != nil && s.jobManager != nil
		s.mu.RUnlock()

		if !ready {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
