package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/katakuxiko/docquiz/internal/config"
	"github.com/sashabaranov/go-openai"
)

// LLMClient: клиент для LM Studio (OpenAI совместимый API).
type LLMClient struct {
	client      *openai.Client
	embedName   string
	chatName    string
	temperature float32
}

// NewLLMClient собирает клиент из конфига.
func NewLLMClient(cfg *config.Config) *LLMClient {
	oaiCfg := openai.DefaultConfig(cfg.APIKey)
	oaiCfg.BaseURL = cfg.LMBaseURL
	client := openai.NewClientWithConfig(oaiCfg)

	return &LLMClient{
		client:      client,
		embedName:   cfg.EmbedModel,
		chatName:    cfg.ChatModel,
		temperature: 0.7,
	}
}

// Embed возвращает по вектору на каждый текст, в порядке входа.
func (l *LLMClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := l.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(l.embedName),
		Input: texts,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings: got %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	out := make([][]float32, len(data))
	for i, d := range data {
		out[i] = d.Embedding
	}
	return out, nil
}

// Complete отправляет системную инструкцию и промпт, возвращает сырой ответ.
func (l *LLMClient) Complete(ctx context.Context, system, prompt string) (openai.ChatCompletionResponse, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, 2)
	if system != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	resp, err := l.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       l.chatName,
		Messages:    msgs,
		Temperature: l.temperature,
	})
	if err != nil {
		return openai.ChatCompletionResponse{}, err
	}
	// Пустой ответ не ошибка: разбор вопроса решает сам.
	return resp, nil
}

// ListModels возвращает список моделей сервера.
func (l *LLMClient) ListModels(ctx context.Context) ([]openai.Model, error) {
	resp, err := l.client.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	return resp.Models, nil
}
