package service

import (
	"context"
	"log"

	"github.com/katakuxiko/docquiz/internal/util"
	"golang.org/x/sync/errgroup"
)

// EmbeddingBackend produces one vector per input text, in order.
type EmbeddingBackend interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

var _ EmbeddingBackend = (*LLMClient)(nil)

// Embedder never fails: any text the backend cannot embed gets a zero vector
// of the configured dimension. A zero vector says nothing about the text.
type Embedder struct {
	backend   EmbeddingBackend
	dim       int
	batchSize int
}

func NewEmbedder(backend EmbeddingBackend, dim, batchSize int) *Embedder {
	if batchSize <= 0 {
		batchSize = 20
	}
	return &Embedder{backend: backend, dim: dim, batchSize: batchSize}
}

func (e *Embedder) Dimension() int { return e.dim }

// EmbedOne embeds a single text.
func (e *Embedder) EmbedOne(ctx context.Context, text string) []float32 {
	vecs, err := e.backend.Embed(ctx, []string{text})
	if err != nil || len(vecs) != 1 {
		log.Printf("embedding failed, using zero vector: %v", err)
		return e.zero()
	}
	return e.shape(vecs[0])
}

// EmbedMany embeds texts in batches. When a batch call fails its texts are
// retried one by one so a single bad input only costs its own vector.
func (e *Embedder) EmbedMany(ctx context.Context, texts []string) [][]float32 {
	out := make([][]float32, 0, len(texts))
	for _, batch := range util.Batches(texts, e.batchSize) {
		vecs, err := e.backend.Embed(ctx, batch)
		if err == nil && len(vecs) == len(batch) {
			for _, v := range vecs {
				out = append(out, e.shape(v))
			}
			continue
		}
		log.Printf("batch embedding of %d texts failed, falling back per text: %v", len(batch), err)
		out = append(out, e.embedEach(ctx, batch)...)
	}
	log.Printf("generated %d embeddings with %d dimensions each", len(out), e.dim)
	return out
}

func (e *Embedder) embedEach(ctx context.Context, texts []string) [][]float32 {
	vecs := make([][]float32, len(texts))
	var g errgroup.Group
	g.SetLimit(4)
	for i, t := range texts {
		i, t := i, t
		g.Go(func() error {
			vecs[i] = e.EmbedOne(ctx, t)
			return nil
		})
	}
	_ = g.Wait()
	return vecs
}

func (e *Embedder) shape(v []float32) []float32 {
	if len(v) != e.dim {
		log.Printf("embedding has %d dimensions, want %d; using zero vector", len(v), e.dim)
		return e.zero()
	}
	return v
}

func (e *Embedder) zero() []float32 {
	return make([]float32, e.dim)
}
