package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/liamcoop/dewater/dewater"
	"github.com/liamcoop/dewater/internal/config"
	"github.com/liamcoop/dewater/internal/logger"
	"github.com/liamcoop/dewater/internal/metrics"
	"github.com/liamcoop/dewater/migrations"
	"github.com/liamcoop/dewater/scenario"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	store   scenario.Store
	cache   scenario.ResultCache
	opts    dewater.Options
	timeout time.Duration
	router  *chi.Mux

	// scenario ID -> fingerprint of its last run, dropped from the cache
	// when the scenario changes
	lastRuns sync.Map

	// optional backends, nil when running in-memory
	db    *sql.DB
	redis *redis.Client

	storeKind string
	cacheKind string
}

// NewServer wires the scenario store and result cache selected by cfg
func NewServer(cfg *config.Config) (*Server, error) {
	var store scenario.Store
	var db *sql.DB
	storeKind := "memory"

	if cfg.DatabaseURL != "" {
		var err error
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}

		if cfg.AutoMigrate {
			logger.Info("running database migrations")
			if err := migrations.Up(cfg.DatabaseURL); err != nil {
				db.Close()
				return nil, fmt.Errorf("failed to migrate database: %w", err)
			}
		}

		store = scenario.NewPostgresStore(db)
		storeKind = "postgres"
	} else {
		store = scenario.NewInMemoryStore()
	}

	cacheConfig := scenario.CacheConfig{TTL: cfg.Cache.TTL, MaxEntries: cfg.Cache.MaxEntries}
	var cache scenario.ResultCache
	var rdb *redis.Client
	cacheKind := "memory"

	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rc := scenario.NewRedisResultCache(rdb, cacheConfig)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rc.Ping(ctx); err != nil {
			// the server still works without a shared cache
			logger.Warn("redis unavailable, falling back to in-memory cache", "addr", cfg.Redis.Addr, "error", err.Error())
			rdb.Close()
			rdb = nil
			cache = scenario.NewInMemoryResultCache(cacheConfig)
		} else {
			cache = rc
			cacheKind = "redis"
		}
	} else {
		cache = scenario.NewInMemoryResultCache(cacheConfig)
	}

	opts := dewater.DefaultOptions()
	if cfg.Sim.Workers > 0 {
		opts.Workers = cfg.Sim.Workers
	}
	opts.MaxCells = cfg.Sim.MaxCells

	s := NewServerWithDeps(store, cache, opts)
	s.timeout = cfg.RequestTimeout
	s.db, s.redis = db, rdb
	s.storeKind, s.cacheKind = storeKind, cacheKind
	s.setupRoutes()

	return s, nil
}

// NewServerWithDeps builds a server around existing dependencies
func NewServerWithDeps(store scenario.Store, cache scenario.ResultCache, opts dewater.Options) *Server {
	if cache == nil {
		cache = scenario.NoopCache{}
	}
	s := &Server{
		store:     store,
		cache:     cache,
		opts:      opts,
		timeout:   60 * time.Second,
		storeKind: "memory",
		cacheKind: "memory",
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(middleware.Timeout(s.timeout))

	r.Get("/api/v1/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	// Evaluation
	r.Post("/api/v1/water-table", s.handleWaterTable)
	r.Get("/api/v1/water-table", s.handleLegacyWaterTable)
	r.Post("/api/v1/elevation", s.handleElevation)

	// Saved scenarios
	r.Route("/api/v1/scenarios", func(r chi.Router) {
		r.Get("/", s.handleListScenarios)
		r.Post("/", s.handleCreateScenario)

		r.Route("/{scenarioId}", func(r chi.Router) {
			r.Get("/", s.handleGetScenario)
			r.Put("/", s.handleUpdateScenario)
			r.Delete("/", s.handleDeleteScenario)
			r.Post("/water-table", s.handleRunScenario)
		})
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close releases the optional backends
func (s *Server) Close() {
	if s.redis != nil {
		s.redis.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
}

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "healthy", Store: s.storeKind, Cache: s.cacheKind}

	if err := s.store.Ping(); err != nil {
		resp.Status, resp.Error = "unhealthy", err.Error()
		respondJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	if s.redis != nil {
		if err := s.redis.Ping(r.Context()).Err(); err != nil {
			// results are recomputed on a cache outage
			resp.Status, resp.Error = "degraded", err.Error()
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

// Helper functions
func respondJSON(w http.ResponseWriter, status int, data any) {
	// encode before writing the status so a failure can still become a 500
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		logger.ErrorHttp5xx()
		logger.Error("failed to encode response", "status", status, "error", err.Error())
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintf(w, "{\"error\":\"failed to encode response\"}\n")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		logger.Debug("failed to write response", "error", err.Error())
	}
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := ErrorResponse{Error: message}
	if err != nil {
		response.Details = err.Error()
	}
	if status >= 500 {
		logger.ErrorHttp5xx()
		logger.Error(message, "status", status, "details", response.Details)
	} else {
		logger.WarnHttp4xx()
	}
	respondJSON(w, status, response)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", "error", err.Error())
	}
	if level, err := logger.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	server, err := NewServer(cfg)
	if err != nil {
		logger.Fatal("failed to create server", "error", err.Error())
	}
	defer server.Close()

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		logger.Info("server starting", "port", cfg.Port, "store", server.storeKind, "cache", server.cacheKind)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", "error", err.Error())
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err.Error())
	}

	logger.Info("server stopped")
	if err := logger.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to flush logs: %v\n", err)
	}
}
