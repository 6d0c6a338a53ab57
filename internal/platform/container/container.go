package container

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jinford/honyaku/internal/core/translation"
	"github.com/jinford/honyaku/internal/infra/artifact"
	"github.com/jinford/honyaku/internal/infra/extract"
	"github.com/jinford/honyaku/internal/infra/notify"
	"github.com/jinford/honyaku/internal/infra/openai"
	"github.com/jinford/honyaku/internal/infra/postgres"
	"github.com/jinford/honyaku/internal/infra/storage"
	"github.com/jinford/honyaku/internal/infra/tokenizer"
	"github.com/jinford/honyaku/pkg/config"
	"github.com/jinford/honyaku/pkg/db"
)

// Container はアプリケーションの依存関係を保持する
type Container struct {
	Config   *config.Config
	Logger   *slog.Logger
	Database *db.DB
	Jobs     *postgres.JobRepository
	Storage  *storage.LocalStore
	Hub      *notify.Hub
	Service  *translation.Service
}

type containerOptions struct {
	completionClient translation.CompletionClient
	tokenCounter     translation.TokenCounter
}

// Option は Container 構築時のオプション
type Option func(*containerOptions)

// WithCompletionClient は補完クライアントを差し替える
func WithCompletionClient(client translation.CompletionClient) Option {
	return func(opts *containerOptions) {
		opts.completionClient = client
	}
}

// WithTokenCounter は TokenCounter を差し替える
func WithTokenCounter(counter translation.TokenCounter) Option {
	return func(opts *containerOptions) {
		opts.tokenCounter = counter
	}
}

// New は設定からコンテナを生成する
func New(ctx context.Context, logger *slog.Logger, cfg *config.Config, opts ...Option) (*Container, error) {
	options := &containerOptions{}
	for _, opt := range opts {
		opt(options)
	}

	database, err := db.New(ctx, db.ConnectionParams{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	jobs := postgres.NewJobRepository(database.Pool)
	if err := jobs.EnsureSchema(ctx); err != nil {
		database.Close()
		return nil, err
	}

	store, err := storage.NewLocalStore(cfg.StorageDir)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	client := options.completionClient
	if client == nil {
		c, err := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
		if err != nil {
			database.Close()
			return nil, err
		}
		client = c
	}

	counter := options.tokenCounter
	if counter == nil {
		tc, err := tokenizer.NewTokenCounter()
		if err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to initialize token counter: %w", err)
		}
		counter = tc
	}

	pricing, err := config.LoadPricing(cfg.PricingPath)
	if err != nil {
		database.Close()
		return nil, err
	}
	inputRate, outputRate := pricing.RatesFor(cfg.OpenAI.Model)

	translator := translation.NewChunkTranslator(
		client,
		translation.WithModel(cfg.OpenAI.Model),
		translation.WithTokenCounter(counter),
		translation.WithPricingRates(translation.PricingRates{
			InputPer1K:  inputRate,
			OutputPer1K: outputRate,
		}),
		translation.WithMaxChunkSize(cfg.Translation.MaxChunkSize),
		translation.WithAttemptBudget(cfg.Translation.AttemptBudget),
		translation.WithCallTimeout(cfg.Translation.CallTimeout),
		translation.WithTemperature(cfg.Translation.Temperature),
		translation.WithTranslatorLogger(logger),
	)

	hub := notify.NewHub(notify.WithHubLogger(logger))

	service := translation.NewService(
		jobs,
		store,
		extract.NewExtractor(),
		artifact.NewRenderer(),
		translator,
		hub,
		translation.WithLogger(logger),
		translation.WithServiceMaxChunkSize(cfg.Translation.MaxChunkSize),
		translation.WithChunkDelay(cfg.Translation.ChunkDelay),
		translation.WithFailedChunkLimit(cfg.Translation.FailedChunkLimit),
	)

	return &Container{
		Config:   cfg,
		Logger:   logger,
		Database: database,
		Jobs:     jobs,
		Storage:  store,
		Hub:      hub,
		Service:  service,
	}, nil
}

// Close はコンテナが保持するリソースをクリーンアップする
func (c *Container) Close() {
	if c.Database != nil {
		c.Database.Close()
	}
}
