//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/yanqian/brainybinder/internal/bootstrap"
	"github.com/yanqian/brainybinder/internal/domain/deck"
	"github.com/yanqian/brainybinder/internal/infra/config"
	httpiface "github.com/yanqian/brainybinder/internal/interface/http"
	"github.com/yanqian/brainybinder/pkg/logger"
)

func initializeApp() (*bootstrap.App, func(), error) {
	wire.Build(
		config.Load,
		logger.New,
		provideDeckConfig,
		provideSummaryConfig,
		provideLatencyStats,
		provideLLMClient,
		provideTokenChunker,
		provideSummarizer,
		provideExtractor,
		provideSegmenter,
		provideDocumentRepository,
		provideQueryLogRepository,
		provideSummaryStore,
		provideObjectStorage,
		deck.NewService,
		wire.Bind(new(httpiface.DeckService), new(*deck.Service)),
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil, nil
}
