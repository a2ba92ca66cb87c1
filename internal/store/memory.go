package store

import (
	"context"
	"fmt"
	"maps"
	"math"
	"sort"
	"sync"

	"github.com/katakuxiko/docquiz/internal/model"
)

// MemoryStore is an in-process index using brute-force cosine similarity.
// It is used for local runs and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	dimension int
	order     []string
	records   map[string]model.Record
}

var _ Backend = (*MemoryStore)(nil)

func NewMemoryStore(dimension int) *MemoryStore {
	return &MemoryStore{dimension: dimension, records: make(map[string]model.Record)}
}

func (s *MemoryStore) Upsert(_ context.Context, records []model.Record) error {
	for _, r := range records {
		if len(r.Vector) != s.dimension {
			return fmt.Errorf("record %s: %w", r.ID, ErrDimensionMismatch)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		if _, ok := s.records[r.ID]; !ok {
			s.order = append(s.order, r.ID)
		}
		r.Metadata = maps.Clone(r.Metadata)
		s.records[r.ID] = r
	}
	return nil
}

// Query ranks by cosine similarity. Similarity with a zero vector is 0, so a
// zero probe returns records in insertion order.
func (s *MemoryStore) Query(_ context.Context, vector []float32, topK int) ([]model.Match, error) {
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("query: %w", ErrDimensionMismatch)
	}
	if topK <= 0 {
		topK = 5
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]model.Match, 0, len(s.order))
	for _, id := range s.order {
		r := s.records[id]
		matches = append(matches, model.Match{ID: id, Score: cosine(vector, r.Vector), Metadata: maps.Clone(r.Metadata)})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if topK < len(matches) {
		matches = matches[:topK]
	}
	return matches, nil
}

func (s *MemoryStore) DeleteAll(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = nil
	s.records = make(map[string]model.Record)
	return nil
}

// Len reports how many records are stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
