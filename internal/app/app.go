// Package app assembles the service from configuration. Both the HTTP server
// and the admin CLI build their object graph here.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/chunker"
	"github.com/kailas-cloud/ragdex/internal/config"
	"github.com/kailas-cloud/ragdex/internal/db"
	dbRedis "github.com/kailas-cloud/ragdex/internal/db/redis"
	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/extract"
	"github.com/kailas-cloud/ragdex/internal/hashembed"
	"github.com/kailas-cloud/ragdex/internal/index"
	"github.com/kailas-cloud/ragdex/internal/metrics"
	"github.com/kailas-cloud/ragdex/internal/repository/embcache"
	"github.com/kailas-cloud/ragdex/internal/repository/files"
	filerepo "github.com/kailas-cloud/ragdex/internal/repository/snapshot/file"
	sqliterepo "github.com/kailas-cloud/ragdex/internal/repository/snapshot/sqlite"
	openaiTransport "github.com/kailas-cloud/ragdex/internal/transport/openai"
	askuc "github.com/kailas-cloud/ragdex/internal/usecase/ask"
	documentuc "github.com/kailas-cloud/ragdex/internal/usecase/document"
	embeddinguc "github.com/kailas-cloud/ragdex/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/ragdex/internal/usecase/health"
	"github.com/kailas-cloud/ragdex/internal/usecase/vector"
)

// App is the assembled service.
type App struct {
	Engine    *vector.Engine
	Files     *files.Store
	Documents *documentuc.Service
	Ask       *askuc.Service
	Health    *healthuc.Service

	cache   db.Store
	closers []func() error
	logger  *zap.Logger
}

// New wires every component and loads the index. The caller must Close the
// returned App.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	a := &App{logger: logger}
	if err := a.build(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, cfg config.Config) error {
	if cfg.Cache.Enabled() {
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Username: cfg.Cache.Username,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			return fmt.Errorf("create cache store: %w", err)
		}
		a.cache = store
		a.closers = append(a.closers, func() error { store.Close(); return nil })

		timeout := time.Duration(cfg.Cache.ReadinessTimeout) * time.Second
		if err := store.WaitForReady(ctx, timeout); err != nil {
			return fmt.Errorf("cache not ready: %w", err)
		}
		a.logger.Info("Connected to embedding cache", zap.Strings("addrs", cfg.Cache.Addrs))
	}

	docEmbedder, err := BuildEmbedder(cfg.Embedding, cfg.Embedding.DocumentInstruction, a.cache, cfg.Cache, a.logger)
	if err != nil {
		return err
	}
	queryEmbedder, err := BuildEmbedder(cfg.Embedding, cfg.Embedding.QueryInstruction, a.cache, cfg.Cache, a.logger)
	if err != nil {
		return err
	}
	a.logger.Info("Embedders created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	splitter, err := chunker.New(cfg.Chunker.Size, cfg.Chunker.Overlap, cfg.ChunkSeparator())
	if err != nil {
		return fmt.Errorf("create chunker: %w", err)
	}
	mode, err := vector.ParseMode(cfg.Index.Reingest)
	if err != nil {
		return err
	}

	repo, err := a.openRepository(cfg.Storage)
	if err != nil {
		return err
	}

	a.Engine = vector.New(repo, extract.NewRegistry(nil), splitter, docEmbedder, IndexConfig(cfg)).
		WithQueryEmbedder(queryEmbedder).
		WithMode(mode).
		WithRecoverCorrupt(cfg.Index.RecoverCorrupt).
		WithLogger(a.logger)
	if err := a.Engine.Load(ctx); err != nil {
		return fmt.Errorf("load index: %w", err)
	}

	a.Files, err = files.New(cfg.Storage.FilesDir)
	if err != nil {
		return err
	}
	a.Documents = documentuc.New(a.Files, a.Engine)

	generator := openaiTransport.NewGenerator(&openaiTransport.GeneratorConfig{
		APIKey:      cfg.Generator.APIKey,
		BaseURL:     cfg.Generator.BaseURL,
		Model:       cfg.Generator.Model,
		Temperature: cfg.Generator.Temperature,
		MaxTokens:   cfg.Generator.MaxTokens,
		Timeout:     time.Duration(cfg.Generator.TimeoutSec) * time.Second,
		Logger:      a.logger,
	})
	a.Ask = askuc.New(a.Engine, generator).WithLimits(cfg.Index.DefaultK, cfg.Index.MaxK)

	a.Health = healthuc.New(a.Engine).
		WithChecker("embedding", embeddingChecker(docEmbedder)).
		WithChecker("generator", healthuc.CheckerFunc(generator.HealthCheck))
	if a.cache != nil {
		a.Health = a.Health.WithChecker("cache", healthuc.CheckerFunc(a.cache.Ping))
	}
	return nil
}

func (a *App) openRepository(cfg config.StorageConfig) (vector.Repository, error) {
	switch cfg.Driver {
	case "sqlite":
		repo, err := sqliterepo.New(cfg.IndexPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite index: %w", err)
		}
		a.closers = append(a.closers, repo.Close)
		a.logger.Info("Using sqlite index", zap.String("path", repo.Path()))
		return repo, nil
	default:
		a.logger.Info("Using file index", zap.String("path", cfg.IndexPath))
		return filerepo.New(cfg.IndexPath, a.logger), nil
	}
}

// Close releases storage and cache connections in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
}

// IndexConfig maps the index section onto the store config.
func IndexConfig(cfg config.Config) index.Config {
	return index.Config{
		Kind:       index.Kind(cfg.Index.Kind),
		Metric:     index.Metric(cfg.Index.Metric),
		Dimensions: cfg.Embedding.Dimensions,
		HNSW: index.HNSWConfig{
			M:              cfg.Index.HNSWM,
			EfConstruction: cfg.Index.HNSWEFConstruction,
			EfSearch:       cfg.Index.HNSWEFSearch,
		},
	}
}

// BuildEmbedder assembles the decorator chain:
// provider -> cache -> instrumented -> instruction.
// The instruction is outermost so it becomes part of the cache key.
func BuildEmbedder(
	cfg config.EmbeddingConfig,
	instruction string,
	cache db.Store,
	cacheCfg config.CacheConfig,
	logger *zap.Logger,
) (domain.Embedder, error) {
	var base domain.Embedder
	switch cfg.Provider {
	case "hash":
		h, err := hashembed.New(cfg.Dimensions)
		if err != nil {
			return nil, fmt.Errorf("create hash embedder: %w", err)
		}
		base = h
	default:
		base = openaiTransport.NewEmbedder(&openaiTransport.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Provider:   cfg.Provider,
			Timeout:    time.Duration(cfg.TimeoutSec) * time.Second,
			Logger:     logger,
		})
	}

	embedder := base
	if cache != nil {
		embedder = embcache.New(base, cache, cfg.Provider+"/"+cfg.Model, metrics.EmbeddingCacheTotal, logger).
			WithTTL(time.Duration(cacheCfg.TTLSec) * time.Second)
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, cfg.Provider, cfg.Model, logger).
		WithBatching(cfg.BatchSize, cfg.Concurrency)

	if instruction != "" {
		return domain.NewInstructionEmbedder(embedder, instruction), nil
	}
	return embedder, nil
}

// embeddingChecker probes the provider when it supports health checks.
func embeddingChecker(e domain.Embedder) healthuc.Checker {
	return healthuc.CheckerFunc(func(ctx context.Context) error {
		if hc, ok := e.(domain.HealthChecker); ok {
			if err := hc.HealthCheck(ctx); err != nil {
				return fmt.Errorf("embedding health check: %w", err)
			}
		}
		return nil
	})
}
