// Package app wires configuration into a running set of services.
package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/custodia-labs/support-rag/internal/adapters/driven/ai"
	authadapter "github.com/custodia-labs/support-rag/internal/adapters/driven/auth"
	"github.com/custodia-labs/support-rag/internal/adapters/driven/memory"
	"github.com/custodia-labs/support-rag/internal/adapters/driven/postgres"
	redisadapter "github.com/custodia-labs/support-rag/internal/adapters/driven/redis"
	"github.com/custodia-labs/support-rag/internal/adapters/driven/sqlite"
	"github.com/custodia-labs/support-rag/internal/adapters/driven/vespa"
	httpadapter "github.com/custodia-labs/support-rag/internal/adapters/driving/http"
	"github.com/custodia-labs/support-rag/internal/config"
	"github.com/custodia-labs/support-rag/internal/core/domain"
	"github.com/custodia-labs/support-rag/internal/core/ports/driven"
	"github.com/custodia-labs/support-rag/internal/core/ports/driving"
	"github.com/custodia-labs/support-rag/internal/core/services"
	"github.com/custodia-labs/support-rag/internal/normalisers"
	"github.com/custodia-labs/support-rag/internal/postprocessors"
	"github.com/custodia-labs/support-rag/internal/runtime"
	"github.com/custodia-labs/support-rag/internal/worker"
)

// App holds the constructed services and the resources behind them.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Services *runtime.Services
	Store    driven.VectorStore

	Documents driving.DocumentService
	Search    driving.SearchService
	Auth      driving.AuthService

	// Checks feed /ready and the availability monitor
	Checks []httpadapter.Check

	closers []func() error
}

// New connects every configured backend and builds the services.
// On error, anything already opened is closed again.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Services: runtime.NewServices(domain.NewRuntimeConfig(cfg.VectorStore.Backend, cfg.Ingest.LockBackend)),
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	if err := a.initAI(); err != nil {
		return nil, err
	}
	if err := a.initStore(ctx); err != nil {
		return nil, err
	}

	var db *postgres.DB
	var queryLog driven.QueryLogStore
	if cfg.Postgres.URL != "" {
		db, err = a.connectPostgres(ctx)
		if err != nil {
			return nil, err
		}
		queryLog = postgres.NewQueryLogStore(db)
	}

	lock, err := a.initLock(ctx, db)
	if err != nil {
		return nil, err
	}

	authService, err := a.initAuth()
	if err != nil {
		return nil, err
	}
	a.Auth = authService

	a.Documents = services.NewDocumentService(services.DocumentServiceConfig{
		Store:            a.Store,
		Normaliser:       normalisers.NewTextNormaliser(),
		Pipeline:         postprocessors.NewPipelineWithConfig(cfg.Chunking),
		Lock:             lock,
		LockTTL:          cfg.Ingest.LockTTL,
		Atomic:           cfg.Ingest.Atomic,
		MinContentLength: cfg.Ingest.MinContentLength,
		Logger:           logger,
	})

	a.Search = services.NewSearchService(services.SearchServiceConfig{
		Retriever: services.NewRetriever(services.RetrieverConfig{
			Store:        a.Store,
			DefaultLimit: cfg.Retrieval.DefaultLimit,
			MaxLimit:     cfg.Retrieval.MaxLimit,
			Logger:       logger,
		}),
		Scorer: services.NewConfidenceScorer(cfg.Confidence),
		Synthesizer: services.NewSynthesizer(services.SynthesizerConfig{
			Services:         a.Services,
			MaxContextChunks: cfg.Retrieval.MaxContextChunks,
			Logger:           logger,
		}),
		QueryLog:     queryLog,
		DefaultLimit: cfg.Retrieval.DefaultLimit,
		MaxLimit:     cfg.Retrieval.MaxLimit,
		Logger:       logger,
	})

	logger.Info("services ready",
		"vector_store", cfg.VectorStore.Backend,
		"lock_backend", cfg.Ingest.LockBackend,
		"query_log", queryLog != nil,
		"embedding", a.Services.EmbeddingService() != nil,
		"llm", a.Services.LLMService() != nil,
		"atomic_ingest", cfg.Ingest.Atomic,
	)
	return a, nil
}

func (a *App) initAI() error {
	factory := ai.NewFactory()

	embedder, err := factory.CreateEmbeddingService(&a.Config.Embedding)
	if err != nil {
		return fmt.Errorf("embedding service: %w", err)
	}
	if embedder == nil {
		a.Logger.Warn("no embedding service configured; uploads and queries will fail", "provider", a.Config.Embedding.Provider)
	} else {
		a.Services.SetEmbeddingService(embedder)
	}

	llm, err := factory.CreateLLMService(&a.Config.LLM)
	if err != nil {
		return fmt.Errorf("llm service: %w", err)
	}
	if llm == nil {
		a.Logger.Warn("no llm configured; answers will fall back to raw context", "provider", a.Config.LLM.Provider)
	} else {
		a.Services.SetLLMService(llm)
	}

	a.closers = append(a.closers, a.Services.Close)
	return nil
}

func (a *App) initStore(ctx context.Context) error {
	cfg := a.Config.VectorStore
	embedder := a.Services.EmbeddingService()

	switch cfg.Backend {
	case config.BackendVespa:
		if cfg.Vespa.Deploy {
			if embedder == nil {
				return fmt.Errorf("%w: vespa schema deploy needs an embedding service for its dimension", domain.ErrInvalidInput)
			}
			result, err := vespa.NewDeployer().Deploy(ctx, cfg.Vespa.ConfigURL, embedder.Dimensions())
			if err != nil {
				return fmt.Errorf("vespa deploy: %w", err)
			}
			a.Logger.Info("vespa schema deployed", "dimension", result.EmbeddingDim, "version", result.SchemaVersion)
		}
		a.Store = vespa.NewVectorStore(vespa.Config{
			BaseURL:    cfg.Vespa.URL,
			Namespace:  cfg.Vespa.Namespace,
			Cluster:    cfg.Vespa.Cluster,
			TargetHits: cfg.Vespa.TargetHits,
			Timeout:    cfg.Vespa.Timeout,
		}, embedder)

	case config.BackendSQLite:
		store, err := sqlite.NewVectorStore(cfg.SQLite.Path, embedder)
		if err != nil {
			return fmt.Errorf("sqlite store: %w", err)
		}
		a.Store = store
		a.closers = append(a.closers, store.Close)

	case config.BackendMemory:
		a.Store = memory.NewVectorStore(embedder)

	default:
		return fmt.Errorf("%w: unknown vector store backend %q", domain.ErrInvalidInput, cfg.Backend)
	}

	a.Checks = append(a.Checks, httpadapter.Check{Name: "vector_store", Required: true, Probe: a.Store.HealthCheck})
	return nil
}

func (a *App) connectPostgres(ctx context.Context) (*postgres.DB, error) {
	pgCfg := postgres.DefaultConfig(a.Config.Postgres.URL)
	if a.Config.Postgres.MaxOpenConns > 0 {
		pgCfg.MaxOpenConns = a.Config.Postgres.MaxOpenConns
	}
	if a.Config.Postgres.MaxIdleConns > 0 {
		pgCfg.MaxIdleConns = a.Config.Postgres.MaxIdleConns
	}

	db, err := postgres.Connect(ctx, pgCfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db.Close)

	if err := db.InitSchema(ctx); err != nil {
		return nil, err
	}
	a.Logger.Info("postgres connected and schema initialized")

	// The query log is best effort, so postgres only gates readiness when it holds the locks.
	a.Checks = append(a.Checks, httpadapter.Check{
		Name:     "postgres",
		Required: a.Config.Ingest.LockBackend == config.LockPostgres,
		Probe:    db.Ping,
	})
	return db, nil
}

func (a *App) initLock(ctx context.Context, db *postgres.DB) (driven.DistributedLock, error) {
	switch a.Config.Ingest.LockBackend {
	case config.LockRedis:
		client, err := redisadapter.Connect(ctx, a.Config.Redis.URL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)

		lock := redisadapter.NewLock(client, redisadapter.LockConfig{
			Prefix: a.Config.Redis.LockPrefix,
			Logger: a.Logger,
		})
		a.Checks = append(a.Checks, httpadapter.Check{Name: "redis", Required: true, Probe: lock.Ping})
		a.Logger.Info("using redis group locks")
		return lock, nil

	case config.LockPostgres:
		if db == nil {
			return nil, fmt.Errorf("%w: postgres group locks need postgres.url", domain.ErrInvalidInput)
		}
		a.Logger.Info("using postgres advisory group locks")
		return postgres.NewAdvisoryLock(db), nil

	default:
		return nil, nil
	}
}

func (a *App) initAuth() (driving.AuthService, error) {
	cfg := a.Config.Auth

	secret := cfg.JWTSecret
	if secret == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
		secret = hex.EncodeToString(buf)
		a.Logger.Warn("auth.jwt_secret not set; bearer tokens will not survive a restart")
	}
	adapter := authadapter.NewAdapter(secret)

	hash := cfg.PasswordHash
	if hash == "" {
		var err error
		hash, err = adapter.HashPassword(cfg.Password)
		if err != nil {
			return nil, err
		}
	}
	if a.Config.UsesDefaultPassword() {
		a.Logger.Warn("using the built-in development password; set auth.password_hash for production")
	}

	return services.NewAuthService(services.AuthServiceConfig{
		Username:     cfg.Username,
		PasswordHash: hash,
		AuthAdapter:  adapter,
		TokenTTL:     cfg.TokenTTL,
		Logger:       a.Logger,
	}), nil
}

// NewServer builds the HTTP surface over the app's services.
func (a *App) NewServer(version string) *httpadapter.Server {
	return httpadapter.NewServer(httpadapter.Config{
		Host:        a.Config.Server.Host,
		Port:        a.Config.Server.Port,
		Version:     version,
		CORSOrigins: a.Config.Server.CORSOrigins,
		Logger:      a.Logger,
	}, httpadapter.Deps{
		AuthService:     a.Auth,
		DocumentService: a.Documents,
		SearchService:   a.Search,
		Services:        a.Services,
		Checks:          a.Checks,
	})
}

// NewMonitor builds an availability monitor over the app's checks.
func (a *App) NewMonitor() *worker.Monitor {
	probes := make([]worker.Probe, 0, len(a.Checks))
	for _, c := range a.Checks {
		probes = append(probes, worker.Probe{Name: c.Name, Check: c.Probe})
	}
	return worker.NewMonitor(worker.MonitorConfig{
		Services: a.Services,
		Probes:   probes,
		Interval: a.Config.Server.MonitorInterval,
		Logger:   a.Logger,
	})
}

// Close releases every opened resource in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
