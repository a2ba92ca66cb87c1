// Package store persists embedded chunks in a vector index and reads them back.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/katakuxiko/docquiz/internal/config"
	"github.com/katakuxiko/docquiz/internal/model"
)

// ErrDimensionMismatch is returned when a vector does not fit the index.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Backend is a remote or local vector index scoped to one index name.
// Implementations may be eventually consistent.
type Backend interface {
	Upsert(ctx context.Context, records []model.Record) error
	Query(ctx context.Context, vector []float32, topK int) ([]model.Match, error)
	DeleteAll(ctx context.Context) error
}

// Sampler is implemented by backends that can list records without a probe vector.
type Sampler interface {
	Sample(ctx context.Context, limit int) ([]model.Match, error)
}

// NewBackend opens the backend selected in cfg.
func NewBackend(ctx context.Context, cfg *config.Config) (Backend, error) {
	switch cfg.Index.Backend {
	case config.BackendPgvector:
		return NewPgStore(cfg.PgConn, cfg.Index.Name, cfg.Index.Dimension)
	case config.BackendQdrant:
		q := NewQdrantStore(QdrantConfig{
			URL:        cfg.Index.Qdrant.URL,
			APIKey:     cfg.Index.Qdrant.APIKey,
			Collection: cfg.Index.Name,
			Timeout:    time.Duration(cfg.Index.Qdrant.TimeoutSecs) * time.Second,
		})
		if err := q.Init(ctx, cfg.Index.Dimension); err != nil {
			return nil, fmt.Errorf("init qdrant collection: %w", err)
		}
		return q, nil
	case config.BackendMemory:
		return NewMemoryStore(cfg.Index.Dimension), nil
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.Index.Backend)
	}
}
