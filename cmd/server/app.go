package main

import (
	"context"
	"fmt"
	"io"

	"github.com/katakuxiko/docquiz/internal/cache"
	"github.com/katakuxiko/docquiz/internal/chunker"
	"github.com/katakuxiko/docquiz/internal/config"
	"github.com/katakuxiko/docquiz/internal/service"
	"github.com/katakuxiko/docquiz/internal/store"
)

// общие зависимости команд
type deps struct {
	cfg     *config.Config
	llm     *service.LLMClient
	rag     *service.RAGService
	backend store.Backend
}

func (d *deps) Close() {
	if c, ok := d.backend.(io.Closer); ok {
		_ = c.Close()
	}
}

func buildDeps(ctx context.Context, cfgPath string) (*deps, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	return wire(ctx, cfg)
}

func wire(ctx context.Context, cfg *config.Config) (*deps, error) {
	ch, err := chunker.New(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		return nil, err
	}
	// Подключение к векторному хранилищу
	backend, err := store.NewBackend(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.Index.Backend, err)
	}

	// LM Studio client (OpenAI совместимый)
	llm := service.NewLLMClient(cfg)
	index := store.NewIndex(backend, cfg.Index.Name, cfg.Index.Dimension,
		store.WithBatchSize(cfg.Index.UpsertBatch),
		store.WithRetry(cfg.Index.FetchRetries, cfg.Index.RetryBase),
	)
	rag := service.NewRAGService(
		ch,
		cache.NewRecent(cache.WithTTL(cfg.CacheTTL)),
		service.NewEmbedder(llm, cfg.Index.Dimension, cfg.Chunking.EmbedBatch),
		index,
		service.NewSynthesizer(llm, cfg.Questions.MaxChunks),
		service.Options{
			FetchLimit: cfg.Index.FetchLimit,
			TopicTopK:  cfg.Index.TopicTopK,
			Dedupe: service.DedupeOptions{
				Threshold: cfg.Questions.DedupeThreshold,
				Markers:   cfg.Questions.GenericMarkers,
				Limit:     cfg.Questions.Limit,
			},
		},
	)
	return &deps{cfg: cfg, llm: llm, rag: rag, backend: backend}, nil
}
