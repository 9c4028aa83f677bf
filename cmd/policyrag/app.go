package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/policyrag/internal/config"
	"github.com/kailas-cloud/policyrag/internal/db"
	dbValkey "github.com/kailas-cloud/policyrag/internal/db/valkey"
	"github.com/kailas-cloud/policyrag/internal/domain"
	logpkg "github.com/kailas-cloud/policyrag/internal/logger"
	"github.com/kailas-cloud/policyrag/internal/metrics"
	"github.com/kailas-cloud/policyrag/internal/repository/embcache"
	"github.com/kailas-cloud/policyrag/internal/repository/pgvector"
	recordrepo "github.com/kailas-cloud/policyrag/internal/repository/record"
	openaiTransport "github.com/kailas-cloud/policyrag/internal/transport/openai"
	answeruc "github.com/kailas-cloud/policyrag/internal/usecase/answer"
	embeddinguc "github.com/kailas-cloud/policyrag/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/policyrag/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/policyrag/internal/usecase/ingest"
	retrievaluc "github.com/kailas-cloud/policyrag/internal/usecase/retrieval"
	"github.com/kailas-cloud/policyrag/internal/version"
)

// recordStore is what the pipeline needs from either vector store backend.
type recordStore interface {
	ingestuc.Repository
	retrievaluc.Searcher
}

// app is the composition root shared by every command.
type app struct {
	cfg       config.Config
	env       string
	logger    *zap.Logger
	ingest    *ingestuc.Service
	retrieval *retrievaluc.Service
	answer    *answeruc.Service // nil without a generation model
	health    *healthuc.Service
	closers   []func()
}

func newApp(ctx context.Context, env string) (*app, error) {
	cfg, err := config.Load(env)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, logpkg.Options{Level: cfg.Logging.Level, File: cfg.Logging.File})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	a := &app{cfg: cfg, env: env, logger: logger}
	a.closers = append(a.closers, func() { _ = logger.Sync() })

	if err := a.build(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) build(ctx context.Context) error {
	cfg := a.cfg
	logger := a.logger

	logger.Info("Starting policyrag",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", a.env),
		zap.String("db_driver", cfg.Database.Driver),
	)

	metrics.RegisterHTTPMetrics()
	metrics.RegisterProviderMetrics()
	metrics.RegisterPipelineMetrics()

	repo, pinger, kv, err := a.openStore(ctx)
	if err != nil {
		return err
	}

	embedder := a.buildEmbedder(kv)
	retryPolicy := cfg.RetryPolicy()

	tagger, err := cfg.Tagger()
	if err != nil {
		return fmt.Errorf("build tagger: %w", err)
	}
	scopes, err := cfg.Scopes()
	if err != nil {
		return fmt.Errorf("build role scopes: %w", err)
	}

	a.ingest = ingestuc.New(repo, embedder, tagger, ingestuc.Config{
		ChunkSize:    cfg.Chunking.Size,
		ChunkOverlap: cfg.Chunking.Overlap,
		Concurrency:  cfg.Ingest.Concurrency,
		Retry:        retryPolicy,
	}, logger.Named("ingest"))

	a.retrieval = retrievaluc.New(embedder, repo, scopes, retrievaluc.Config{
		FanOut:  cfg.Retrieval.FanOut,
		TopN:    cfg.Retrieval.TopN,
		Timeout: time.Duration(cfg.Retrieval.TimeoutSec) * time.Second,
		Retry:   retryPolicy,
	}, logger.Named("retrieval"))

	a.health = healthuc.New(pinger).WithProvider("embedding", embedder)

	if cfg.Generation.Model != "" {
		chat := openaiTransport.NewChat(&openaiTransport.Config{
			APIKey:   cfg.Generation.APIKey,
			BaseURL:  cfg.Generation.BaseURL,
			Model:    cfg.Generation.Model,
			Provider: cfg.Generation.Provider,
			Logger:   logger,
		})
		a.answer = answeruc.New(a.retrieval, answeruc.NewPromptClassifier(chat), chat, answeruc.Config{
			Assistant: cfg.Generation.Assistant,
			TopN:      cfg.Retrieval.TopN,
			Timeout:   time.Duration(cfg.Generation.TimeoutSec) * time.Second,
		}, logger.Named("answer"))
		logger.Info("Answer generation enabled", zap.String("model", cfg.Generation.Model))
	}
	return nil
}

// kvStore backs the embedding cache.
type kvStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// openStore connects the configured vector store. The Valkey/Redis store also
// backs the embedding cache; with Postgres the cache stays in process.
func (a *app) openStore(ctx context.Context) (recordStore, healthuc.StorePinger, kvStore, error) {
	cfg := a.cfg.Database
	dim := a.cfg.Embedding.Dimensions
	readiness := time.Duration(cfg.ReadinessTimeout) * time.Second

	switch cfg.Driver {
	case config.DriverValkey, config.DriverRedis:
		store, err := dbValkey.NewStore(dbValkey.Config{
			Addrs:    cfg.Addrs,
			Password: cfg.Password,
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("create %s store: %w", cfg.Driver, err)
		}
		a.closers = append(a.closers, store.Close)

		if err := store.WaitForReady(ctx, readiness); err != nil {
			return nil, nil, nil, fmt.Errorf("database not ready: %w", err)
		}
		algo, err := db.ParseVectorAlgorithm(cfg.IndexAlgorithm)
		if err != nil {
			return nil, nil, nil, err
		}
		repo := recordrepo.New(store, dim, algo)
		if err := repo.EnsureIndex(ctx); err != nil {
			return nil, nil, nil, fmt.Errorf("ensure index: %w", err)
		}
		a.logger.Info("Connected to database", zap.Strings("addrs", cfg.Addrs), zap.String("algorithm", string(algo)))
		return repo, store, store, nil

	case config.DriverPostgres:
		connectCtx, cancel := context.WithTimeout(ctx, readiness)
		defer cancel()
		pool, err := pgvector.Connect(connectCtx, cfg.DSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)

		repo := pgvector.New(pool, dim)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		a.logger.Info("Connected to database", zap.String("table", pgvector.Table))
		ttl := time.Duration(a.cfg.Embedding.CacheTTLHours) * time.Hour
		return repo, repo, embcache.NewMemoryStore(ttl, a.cfg.Embedding.CacheMaxEntries), nil
	}
	return nil, nil, nil, errors.New("unknown database driver " + cfg.Driver)
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Gateway.
func (a *app) buildEmbedder(kv kvStore) *embeddinguc.Gateway {
	cfg := a.cfg.Embedding

	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
		User:       "policyrag",
		Provider:   cfg.Provider,
		Logger:     a.logger,
	})

	var embedder domain.Embedder = base
	if cfg.Cache && kv != nil {
		ttl := time.Duration(cfg.CacheTTLHours) * time.Hour
		embedder = embcache.New(base, kv, cfg.Model, ttl, metrics.EmbeddingCacheTotal, a.logger)
	}

	a.logger.Info("Embedder created",
		zap.String("provider", cfg.Provider),
		zap.String("model", cfg.Model),
		zap.Int("dimensions", cfg.Dimensions),
		zap.Bool("cache", cfg.Cache),
	)

	return embeddinguc.NewGateway(embedder, embeddinguc.Config{
		Dimensions: cfg.Dimensions,
		Timeout:    time.Duration(cfg.TimeoutSec) * time.Second,
		Provider:   cfg.Provider,
		Model:      cfg.Model,
	}, a.logger)
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
