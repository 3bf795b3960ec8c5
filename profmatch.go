// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package profmatch wires the ingestion and retrieval pipelines from one
// application configuration.
package profmatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/profmatch/ai"
	"github.com/poiesic/profmatch/ai/mock"
	"github.com/poiesic/profmatch/ai/openai"
	"github.com/poiesic/profmatch/answer"
	"github.com/poiesic/profmatch/config"
	"github.com/poiesic/profmatch/core"
	"github.com/poiesic/profmatch/embedding"
	"github.com/poiesic/profmatch/extract"
	"github.com/poiesic/profmatch/fetch"
	"github.com/poiesic/profmatch/index"
	"github.com/poiesic/profmatch/ingestion"
	"github.com/poiesic/profmatch/metrics"
	"github.com/poiesic/profmatch/retrieval"
	"github.com/poiesic/profmatch/retry"
	"github.com/poiesic/profmatch/storage"
	"github.com/poiesic/profmatch/storage/badger"
	"github.com/poiesic/profmatch/storage/pinecone"
	"github.com/redis/go-redis/v9"
)

// App owns every component built from an AppConfig.
type App struct {
	cfg       *config.AppConfig
	provider  ai.Provider
	backend   *badger.Backend
	store     storage.Store
	redis     *redis.Client
	fetcher   fetch.Fetcher
	extractor *extract.Extractor
	embedder  *embedding.Client
	gateway   *index.Gateway
	composer  *answer.Composer
	ingest    *ingestion.Pipeline
	retrieve  *retrieval.Pipeline
	metrics   *metrics.Registry
	logger    *slog.Logger
}

// AppOption configures an App.
type AppOption func(*appOptions)

type appOptions struct {
	provider ai.Provider
	fetcher  fetch.Fetcher
	logger   *slog.Logger
}

// WithProvider replaces the AI provider selected by the config.
func WithProvider(p ai.Provider) AppOption {
	return func(o *appOptions) {
		o.provider = p
	}
}

// WithFetcher replaces the page fetcher selected by the config.
func WithFetcher(f fetch.Fetcher) AppOption {
	return func(o *appOptions) {
		o.fetcher = f
	}
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) AppOption {
	return func(o *appOptions) {
		o.logger = logger
	}
}

// New validates cfg and builds the application.
func New(ctx context.Context, cfg *config.AppConfig, opts ...AppOption) (*App, error) {
	if cfg == nil {
		return nil, errors.New("profmatch: config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := &appOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}

	a := &App{
		cfg:       cfg,
		extractor: NewExtractor(cfg),
		metrics:   metrics.New(),
		logger:    options.logger,
	}

	if err := a.build(ctx, options); err != nil {
		a.Close()
		return nil, err
	}
	a.logger.Info("profmatch ready",
		"index", cfg.Index.Backend,
		"namespace", cfg.Index.Namespace,
		"fetch", cfg.Fetch.Driver,
		"cache", cfg.Cache.Backend,
		"top_k", cfg.Retrieval.TopK)
	return a, nil
}

func (a *App) build(ctx context.Context, options *appOptions) error {
	var err error
	cfg := a.cfg

	a.provider = options.provider
	if a.provider == nil {
		if a.provider, err = newProvider(cfg); err != nil {
			return fmt.Errorf("ai provider: %w", err)
		}
	}

	if err = a.openStore(); err != nil {
		return fmt.Errorf("index store: %w", err)
	}

	a.fetcher = options.fetcher
	if a.fetcher == nil {
		if a.fetcher, err = NewFetcher(cfg, a.logger); err != nil {
			return fmt.Errorf("fetcher: %w", err)
		}
	}

	cache, err := a.openCache(ctx)
	if err != nil {
		return fmt.Errorf("embedding cache: %w", err)
	}

	embedOpts := []embedding.Option{
		embedding.WithMinDimension(cfg.AI.Dimension),
		embedding.WithTimeout(cfg.AI.EmbedTimeout),
		embedding.WithModel(cfg.AI.EmbeddingModel),
		embedding.WithLogger(a.logger),
	}
	if cache != nil {
		embedOpts = append(embedOpts, embedding.WithCache(cache))
	}
	if a.embedder, err = embedding.NewClient(a.provider.Embedder(), embedOpts...); err != nil {
		return err
	}

	if a.gateway, err = index.NewGateway(a.store,
		index.WithNamespace(cfg.Index.Namespace),
		index.WithDimension(cfg.AI.Dimension),
		index.WithTimeout(cfg.Index.Timeout),
		index.WithLogger(a.logger),
	); err != nil {
		return err
	}

	if a.composer, err = answer.NewComposer(a.provider.Generator(),
		answer.WithTimeout(cfg.AI.GenerateTimeout),
		answer.WithLogger(a.logger),
	); err != nil {
		return err
	}

	if a.ingest, err = ingestion.NewPipeline(a.fetcher, a.extractor, a.embedder, a.gateway,
		ingestion.WithPoolSize(cfg.Fetch.PoolSize),
		ingestion.WithObserver(a.metrics),
		ingestion.WithLogger(a.logger),
	); err != nil {
		return err
	}

	a.retrieve, err = retrieval.NewPipeline(a.embedder, a.gateway, a.composer,
		retrieval.WithTopK(cfg.Retrieval.TopK),
		retrieval.WithMonitor(a.metrics),
		retrieval.WithLogger(a.logger),
	)
	return err
}

func newProvider(cfg *config.AppConfig) (ai.Provider, error) {
	if cfg.AI.Provider == "mock" {
		return mock.NewMockProviderWithServices(
			mock.NewMockEmbedderWithDimension(cfg.AI.Dimension),
			mock.NewMockGenerator("No generation service is configured; showing retrieved context only."),
		), nil
	}
	return openai.NewProvider(cfg.AIServiceConfig())
}

// NewExtractor builds the field extractor from cfg.Extract.
func NewExtractor(cfg *config.AppConfig) *extract.Extractor {
	return extract.New(cfg.Extract)
}

// NewFetcher builds the page fetcher selected by cfg.Fetch.Driver.
func NewFetcher(cfg *config.AppConfig, logger *slog.Logger) (fetch.Fetcher, error) {
	if cfg.Fetch.Driver == "chromedp" {
		opts := []fetch.ChromeOption{
			fetch.WithChromeTimeout(cfg.Fetch.Timeout),
			fetch.WithExecPath(cfg.Fetch.ChromePath),
			fetch.WithChromeLogger(logger),
		}
		if cfg.Fetch.WaitSelector != "" {
			opts = append(opts, fetch.WithWaitSelector(cfg.Fetch.WaitSelector))
		}
		return fetch.NewChromeFetcher(opts...)
	}

	opts := []fetch.Option{
		fetch.WithTimeout(cfg.Fetch.Timeout),
		fetch.WithMaxBytes(cfg.Fetch.MaxBodyBytes),
		fetch.WithLogger(logger),
	}
	if cfg.Fetch.UserAgent != "" {
		opts = append(opts, fetch.WithUserAgent(cfg.Fetch.UserAgent))
	}
	return fetch.NewHTTPFetcher(opts...)
}

func (a *App) openStore() error {
	var err error
	switch a.cfg.Index.Backend {
	case "pinecone":
		a.store, err = pinecone.NewStore(pinecone.Config{
			Host:    a.cfg.Index.Pinecone.Host,
			APIKey:  a.cfg.Index.Pinecone.APIKey,
			Timeout: a.cfg.Index.Timeout,
		}, pinecone.WithLogger(a.logger))
		return err
	case "memory":
		a.backend, err = badger.OpenBackend("", true)
	default:
		a.backend, err = badger.OpenBackend(a.cfg.Index.Path, false)
	}
	if err != nil {
		return err
	}
	a.store, err = badger.NewStore(a.backend)
	return err
}

func (a *App) openCache(ctx context.Context) (embedding.Cache, error) {
	switch a.cfg.Cache.Backend {
	case "memory":
		return embedding.NewMemoryCache(a.cfg.Cache.Capacity), nil
	case "redis":
		r := a.cfg.Cache.Redis
		client, err := embedding.DialRedis(ctx, r.Addr, r.Password, r.DB)
		if err != nil {
			return nil, err
		}
		a.redis = client
		return embedding.NewRedisCache(client, r.Prefix, r.TTL), nil
	default:
		return nil, nil
	}
}

// Close releases every component. It is safe to call on a partially built App.
func (a *App) Close() error {
	var errs []error
	if a.ingest != nil {
		a.ingest.Release()
	}
	if a.provider != nil {
		if err := a.provider.Close(); err != nil {
			a.logger.Error("error closing AI provider", "err", err)
			errs = append(errs, err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("error closing redis client", "err", err)
			errs = append(errs, err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Error("error closing index store", "err", err)
			errs = append(errs, err)
		}
	}
	if a.backend != nil {
		if err := a.backend.Close(); err != nil {
			a.logger.Error("error closing backend storage", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Ingest runs one submission, resubmitting up to attempts times while the
// failure is transient. attempts <= 1 means a single try.
func (a *App) Ingest(ctx context.Context, url string, attempts int, delay time.Duration) (*ingestion.Outcome, error) {
	if attempts < 1 {
		attempts = 1
	}
	var outcome *ingestion.Outcome
	err := retry.Do(ctx, func(ctx context.Context) error {
		var err error
		outcome, err = a.ingest.Ingest(ctx, url)
		return err
	}, attempts, delay, core.IsTransient)
	if outcome == nil {
		// Canceled before the first attempt.
		outcome = &ingestion.Outcome{URL: url, Stage: ingestion.StageFailed}
		outcome.Err = &ingestion.StageError{Stage: ingestion.StageFetching, URL: url, Err: err}
		return outcome, outcome.Err
	}
	return outcome, err
}

// Config returns the configuration the app was built from.
func (a *App) Config() *config.AppConfig { return a.cfg }

// Fetcher returns the page fetcher.
func (a *App) Fetcher() fetch.Fetcher { return a.fetcher }

// Extractor returns the field extractor.
func (a *App) Extractor() *extract.Extractor { return a.extractor }

// Embedder returns the embedding client.
func (a *App) Embedder() *embedding.Client { return a.embedder }

// Gateway returns the vector index gateway.
func (a *App) Gateway() *index.Gateway { return a.gateway }

// Composer returns the answer composer.
func (a *App) Composer() *answer.Composer { return a.composer }

// Ingestion returns the ingestion pipeline.
func (a *App) Ingestion() *ingestion.Pipeline { return a.ingest }

// Retrieval returns the retrieval pipeline.
func (a *App) Retrieval() *retrieval.Pipeline { return a.retrieve }

// Metrics returns the metrics registry.
func (a *App) Metrics() *metrics.Registry { return a.metrics }
