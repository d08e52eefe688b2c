package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/parley-ai/parley/api/handlers"
	"github.com/parley-ai/parley/config"
	"github.com/parley-ai/parley/engage"
	"github.com/parley-ai/parley/internal/metrics"
	"github.com/parley-ai/parley/internal/server"
	"github.com/parley-ai/parley/llm"
	"github.com/parley-ai/parley/rag"
	"github.com/parley-ai/parley/store"
)

// Server assembles the service: storage, gateways, the engagement engine,
// and the HTTP surface.
type Server struct {
	cfg       *config.Config
	logger    *zap.Logger
	manager   *server.Manager
	writeback *engage.Writeback
	cache     *store.CachedDirectory
}

// NewServer wires every component from configuration.
func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	var directory store.Directory
	var ledger store.Ledger

	switch cfg.Store.Driver {
	case "", "memory":
		mem := store.NewMemory()
		directory, ledger = mem, mem
		logger.Info("using in-memory store")
	case "sqlite", "postgres", "mysql":
		db, err := store.OpenDB(cfg.Store, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		gs, err := store.NewGormStore(db, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize store: %w", err)
		}
		directory, ledger = gs, gs
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}

	var cache *store.CachedDirectory
	if cfg.Cache.Enabled {
		cached, err := store.NewCachedDirectory(directory, cfg.Cache, logger)
		if err != nil {
			// The cache is an optimization; run uncached rather than refuse
			// to start.
			logger.Warn("redis unavailable, directory cache disabled", zap.Error(err))
		} else {
			directory = cached
			cache = cached
		}
	}

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector(cfg.Metrics.Namespace, logger)
	}

	gateway := llm.NewRouterGateway(cfg.LLM, logger)
	knowledge := rag.NewHTTPClient(cfg.RAG, logger)

	writeback := engage.NewWriteback(knowledge,
		cfg.Engage.WritebackWorkers, cfg.Engage.WritebackQueue, collector, logger)

	engine := engage.NewEngine(directory, ledger, gateway, knowledge, writeback, engage.Options{
		Engage:        cfg.Engage,
		Temperature:   cfg.LLM.Temperature,
		MaxTokens:     cfg.LLM.MaxTokens,
		TopK:          cfg.RAG.TopK,
		MinConfidence: cfg.RAG.MinConfidence,
		SessionTTL:    cfg.Store.SessionTTL,
		Collector:     collector,
		Logger:        logger,
	})

	health := handlers.NewHealthHandler(logger)
	health.RegisterCheck(handlers.HealthCheckFunc{CheckName: "llm-router", Fn: gateway.HealthCheck})
	health.RegisterCheck(handlers.HealthCheckFunc{CheckName: "rag-service", Fn: knowledge.HealthCheck})

	router := handlers.NewRouter(
		handlers.NewTeamHandler(directory, logger),
		handlers.NewChatHandler(engine, ledger, logger),
		health,
		handlers.RouterOptions{
			MetricsEnabled: cfg.Metrics.Enabled,
			Collector:      collector,
			ServiceName:    "parley",
			Version:        Version,
		},
	)

	return &Server{
		cfg:       cfg,
		logger:    logger,
		manager:   server.NewManager(router, cfg.Server, logger),
		writeback: writeback,
		cache:     cache,
	}, nil
}

// Start begins serving without blocking.
func (s *Server) Start() error {
	return s.manager.Start()
}

// WaitForShutdown blocks until termination, then drains the writeback queue
// and releases the cache connection.
func (s *Server) WaitForShutdown() {
	s.manager.WaitForShutdown()

	s.writeback.Close()
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.Warn("failed to close cache", zap.Error(err))
		}
	}
}

// Shutdown stops the server immediately and drains the writeback queue.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.manager.Shutdown(ctx)
	s.writeback.Close()
	if s.cache != nil {
		_ = s.cache.Close()
	}
	return err
}
