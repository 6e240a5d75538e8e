package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/brainybinder/internal/domain/deck"
	"github.com/yanqian/brainybinder/internal/domain/summarizer"
	"github.com/yanqian/brainybinder/internal/infra/config"
	"github.com/yanqian/brainybinder/internal/infra/deck/chunker"
	"github.com/yanqian/brainybinder/internal/infra/deck/extractor"
	"github.com/yanqian/brainybinder/internal/infra/deck/repo"
	"github.com/yanqian/brainybinder/internal/infra/deck/segmenter"
	"github.com/yanqian/brainybinder/internal/infra/deck/storage"
	"github.com/yanqian/brainybinder/internal/infra/deck/store"
	"github.com/yanqian/brainybinder/internal/infra/llm"
	"github.com/yanqian/brainybinder/internal/infra/llm/chatgpt"
	"github.com/yanqian/brainybinder/internal/infra/tokenizer"
	"github.com/yanqian/brainybinder/pkg/metrics"
)

func provideDeckConfig(cfg *config.Config) deck.Config {
	return deck.Config{
		MaxFileBytes:    cfg.Deck.MaxFileBytes,
		DefaultPrompt:   cfg.Summary.DefaultPrompt,
		UpstreamTimeout: cfg.Deck.UpstreamTimeout,
		QueryLogLimit:   cfg.QueryLog.Limit,
	}
}

func provideSummaryConfig(cfg *config.Config) summarizer.Config {
	return summarizer.Config{
		MaxSummaryLen:     cfg.Summary.MaxSummaryLen,
		MaxTldrLen:        cfg.Summary.MaxTldrLen,
		MaxParallelChunks: cfg.Summary.MaxParallelChunks,
	}
}

func provideLatencyStats(cfg *config.Config) *metrics.LatencyStats {
	return metrics.NewLatencyStats(cfg.LLM.StatsWindow)
}

// provideLLMClient builds the configured provider and times every call.
func provideLLMClient(cfg *config.Config, stats *metrics.LatencyStats, logger *slog.Logger) (llm.Client, error) {
	var (
		client llm.Client
		err    error
	)
	switch cfg.LLM.Provider {
	case config.ProviderChatGPT:
		var raw *chatgpt.Client
		raw, err = chatgpt.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Timeout)
		if err == nil {
			client = llm.NewChatGPT(raw, cfg.LLM.Model, cfg.LLM.Temperature, cfg.LLM.MaxTokens, logger)
		}
	case config.ProviderOpenAI:
		client, err = llm.NewOpenAIResponses(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Model, cfg.LLM.Temperature, cfg.LLM.MaxTokens)
	case config.ProviderAnthropic:
		client, err = llm.NewAnthropic(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Model, cfg.LLM.Temperature, cfg.LLM.MaxTokens)
	default:
		logger.Warn("llm api key not set, using offline echo client")
		client = llm.Echo{}
	}
	if err != nil {
		return nil, fmt.Errorf("init %s client: %w", cfg.LLM.Provider, err)
	}
	logger.Info("llm provider ready", "provider", cfg.LLM.Provider, "model", cfg.LLM.Model)
	return llm.NewTimedClient(client, stats), nil
}

func provideTokenChunker(cfg *config.Config, logger *slog.Logger) summarizer.TopicChunker {
	return chunker.NewTokenChunker(tokenizer.New(cfg.Summary.Encoding, logger), cfg.Summary.TopicTokenBudget)
}

func provideSummarizer(cfg summarizer.Config, client llm.Client, topicChunker summarizer.TopicChunker, logger *slog.Logger) deck.Summarizer {
	return summarizer.NewService(cfg, client, topicChunker, logger)
}

func provideExtractor(cfg *config.Config, logger *slog.Logger) deck.Extractor {
	return extractor.NewPDFExtractor(cfg.Deck.PdftotextFallback, logger)
}

func provideSegmenter(cfg *config.Config, client llm.Client, logger *slog.Logger) deck.Segmenter {
	headings := segmenter.NewHeadingSegmenter()
	if cfg.Deck.Segmenter == config.SegmenterLLM {
		return segmenter.NewLLMSegmenter(client, headings, logger)
	}
	return headings
}

func provideDocumentRepository() deck.DocumentRepository {
	return repo.NewMemoryDocumentRepository()
}

func provideQueryLogRepository(cfg *config.Config, logger *slog.Logger) (deck.QueryLogRepository, func()) {
	fallback := repo.NewMemoryQueryLogRepository(cfg.QueryLog.Capacity)
	noop := func() {}
	dsn := strings.TrimSpace(cfg.QueryLog.DSN)
	if dsn == "" {
		logger.Info("query log postgres dsn not set, using memory repository")
		return fallback, noop
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error("invalid postgres dsn, using memory repository", "error", err)
		return fallback, noop
	}
	if cfg.QueryLog.MaxConns > 0 {
		poolConfig.MaxConns = cfg.QueryLog.MaxConns
	}
	if cfg.QueryLog.MinConns > 0 {
		poolConfig.MinConns = cfg.QueryLog.MinConns
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Error("failed to initialize postgres pool, using memory repository", "error", err)
		return fallback, noop
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres ping failed, using memory repository", "error", err)
		pool.Close()
		return fallback, noop
	}
	pgRepo := repo.NewPostgresQueryLogRepository(pool)
	if err := pgRepo.EnsureSchema(ctx); err != nil {
		logger.Error("query log schema setup failed, using memory repository", "error", err)
		pool.Close()
		return fallback, noop
	}
	logger.Info("query log postgres repository enabled")
	return pgRepo, pool.Close
}

func provideSummaryStore(cfg *config.Config, logger *slog.Logger) (deck.SummaryStore, func()) {
	fallback := store.NewMemoryStore(cfg.Deck.MaxPromptsPerPage)
	noop := func() {}
	if !cfg.Cache.Enabled {
		return fallback, noop
	}
	opt, err := buildValkeyOptions(cfg.Cache.Addr)
	if err != nil {
		logger.Error("invalid valkey configuration, falling back to memory store", "error", err)
		return fallback, noop
	}
	client, err := valkey.NewClient(opt)
	if err != nil {
		logger.Error("failed to create valkey client, falling back to memory store", "error", err)
		return fallback, noop
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		logger.Error("valkey ping failed, falling back to memory store", "error", err)
		client.Close()
		return fallback, noop
	}
	logger.Info("summary valkey store enabled", "addr", cfg.Cache.Addr)
	return store.NewValkeyStore(client, cfg.Cache.Prefix, cfg.Cache.TTL, cfg.Deck.MaxPromptsPerPage), client.Close
}

func buildValkeyOptions(addr string) (valkey.ClientOption, error) {
	if strings.Contains(addr, "://") {
		return valkey.ParseURL(addr)
	}
	return valkey.ClientOption{InitAddress: []string{addr}}, nil
}

// provideObjectStorage returns nil when archiving is disabled; ingest then skips it.
func provideObjectStorage(cfg *config.Config, logger *slog.Logger) deck.ObjectStorage {
	if !cfg.Storage.Enabled {
		logger.Info("deck archive storage disabled")
		return nil
	}
	s3, err := storage.NewS3Storage(storage.S3Config{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Bucket:    cfg.Storage.Bucket,
		Region:    cfg.Storage.Region,
	}, logger)
	if err != nil {
		logger.Error("failed to init object storage, archiving disabled", "error", err)
		return nil
	}
	logger.Info("deck archive storage enabled", "bucket", cfg.Storage.Bucket)
	return s3
}
