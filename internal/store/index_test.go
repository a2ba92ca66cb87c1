package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/katakuxiko/docquiz/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend records calls and can be scripted to fail or stay empty.
type fakeBackend struct {
	mu          sync.Mutex
	upserts     [][]model.Record
	queries     [][]float32
	deletes     int
	failBatchOf string
	queryErr    error
	emptyFor    int
	matches     []model.Match
	deleteErr   error
}

func (f *fakeBackend) Upsert(_ context.Context, records []model.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, records)
	for _, r := range records {
		if f.failBatchOf != "" && strings.Contains(r.Metadata["text"].(string), f.failBatchOf) {
			return errors.New("index not found")
		}
	}
	return nil
}

func (f *fakeBackend) Query(_ context.Context, vector []float32, topK int) ([]model.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, vector)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if len(f.queries) <= f.emptyFor {
		return nil, nil
	}
	if topK < len(f.matches) {
		return f.matches[:topK], nil
	}
	return f.matches, nil
}

func (f *fakeBackend) DeleteAll(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	return f.deleteErr
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) Sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return nil
}

func embedded(n, dim int) []model.EmbeddedChunk {
	out := make([]model.EmbeddedChunk, n)
	for i := range out {
		out[i] = model.EmbeddedChunk{Text: fmt.Sprintf("chunk %d", i), Embedding: make([]float32, dim)}
	}
	return out
}

var fixedNow = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

func TestIndex_UpsertSingleBatch(t *testing.T) {
	fb := &fakeBackend{}
	ix := NewIndex(fb, "pdf-embedding", 384, WithClock(func() time.Time { return fixedNow }))

	res := ix.Upsert(context.Background(), embedded(12, 384), model.Provenance{
		Filename: "cv.pdf", JobTitle: "Web Developer", Source: "pdf-upload", JobID: "job-1",
	})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 12, res.VectorCount)
	require.Len(t, fb.upserts, 1)
	require.Len(t, fb.upserts[0], 12)

	r := fb.upserts[0][3]
	assert.Equal(t, fmt.Sprintf("cv.pdf-chunk-3-%d", fixedNow.UnixMilli()), r.ID)
	assert.Equal(t, "chunk 3", r.Metadata["text"])
	assert.Equal(t, "cv.pdf", r.Metadata["filename"])
	assert.Equal(t, "Web Developer", r.Metadata["jobTitle"])
	assert.Equal(t, "pdf-upload", r.Metadata["source"])
	assert.Equal(t, "job-1", r.Metadata["jobId"])
	assert.Equal(t, "2026-03-04T05:06:07Z", r.Metadata["timestamp"])
}

func TestIndex_UpsertDefaultsDocPrefix(t *testing.T) {
	fb := &fakeBackend{}
	ix := NewIndex(fb, "idx", 2, WithClock(func() time.Time { return fixedNow }))
	res := ix.Upsert(context.Background(), embedded(1, 2), model.Provenance{})
	require.True(t, res.Success)
	assert.True(t, strings.HasPrefix(fb.upserts[0][0].ID, "doc-chunk-0-"))
	assert.NotEmpty(t, fb.upserts[0][0].Metadata["jobId"])
}

func TestIndex_UpsertBatchesOfHundred(t *testing.T) {
	fb := &fakeBackend{}
	ix := NewIndex(fb, "idx", 4)
	res := ix.Upsert(context.Background(), embedded(250, 4), model.Provenance{Filename: "a.pdf"})
	require.True(t, res.Success)
	assert.Equal(t, 250, res.VectorCount)
	require.Len(t, fb.upserts, 3)
	require.Len(t, res.Batches, 3)
	assert.Equal(t, 50, res.Batches[2].Count)

	seen := map[string]bool{}
	for _, batch := range fb.upserts {
		assert.LessOrEqual(t, len(batch), 100)
		for _, r := range batch {
			seen[r.ID] = true
		}
	}
	assert.Len(t, seen, 250, "ids are unique")
}

func TestIndex_UpsertPartialFailure(t *testing.T) {
	fb := &fakeBackend{failBatchOf: "chunk 150"}
	ix := NewIndex(fb, "idx", 4)
	res := ix.Upsert(context.Background(), embedded(250, 4), model.Provenance{})

	assert.False(t, res.Success)
	assert.Equal(t, "batch 2: index not found", res.Error)
	assert.Equal(t, 150, res.VectorCount)
	require.Len(t, res.Batches, 3)
	assert.Empty(t, res.Batches[0].Error)
	assert.NotEmpty(t, res.Batches[1].Error)
	assert.Empty(t, res.Batches[2].Error)
}

func TestIndex_UpsertEmpty(t *testing.T) {
	fb := &fakeBackend{}
	res := NewIndex(fb, "idx", 4).Upsert(context.Background(), nil, model.Provenance{})
	assert.True(t, res.Success)
	assert.Zero(t, res.VectorCount)
	assert.Empty(t, fb.upserts)
}

func TestIndex_QuerySimilar(t *testing.T) {
	fb := &fakeBackend{matches: []model.Match{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}}
	res := NewIndex(fb, "idx", 2).QuerySimilar(context.Background(), []float32{1, 0}, 3)
	require.True(t, res.Success)
	assert.Len(t, res.Matches, 3)
}

func TestIndex_QuerySimilarFailure(t *testing.T) {
	fb := &fakeBackend{queryErr: errors.New("unauthorized")}
	res := NewIndex(fb, "idx", 2).QuerySimilar(context.Background(), []float32{1, 0}, 3)
	assert.False(t, res.Success)
	assert.NotNil(t, res.Matches)
	assert.Empty(t, res.Matches)
	assert.Equal(t, "unauthorized", res.Error)
}

func TestIndex_FetchAnyUsesZeroProbe(t *testing.T) {
	fb := &fakeBackend{matches: []model.Match{{ID: "a"}}}
	sr := &sleepRecorder{}
	got := NewIndex(fb, "idx", 384, WithSleep(sr.Sleep)).FetchAny(context.Background(), 10)

	assert.Len(t, got, 1)
	require.Len(t, fb.queries, 1)
	assert.Equal(t, make([]float32, 384), fb.queries[0])
	assert.Empty(t, sr.delays)
}

func TestIndex_FetchAnyRetriesUntilVisible(t *testing.T) {
	fb := &fakeBackend{emptyFor: 3, matches: []model.Match{{ID: "a"}, {ID: "b"}}}
	sr := &sleepRecorder{}
	got := NewIndex(fb, "idx", 2, WithSleep(sr.Sleep)).FetchAny(context.Background(), 10)

	assert.Len(t, got, 2)
	assert.Len(t, fb.queries, 4)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, sr.delays)
}

func TestIndex_FetchAnyExhaustsRetries(t *testing.T) {
	fb := &fakeBackend{emptyFor: 100}
	sr := &sleepRecorder{}
	got := NewIndex(fb, "idx", 2, WithSleep(sr.Sleep)).FetchAny(context.Background(), 10)

	assert.Empty(t, got)
	assert.Len(t, fb.queries, 6)
	assert.Equal(t, []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second,
	}, sr.delays)
}

func TestIndex_FetchAnyErrorsAreRetried(t *testing.T) {
	fb := &fakeBackend{queryErr: errors.New("timeout")}
	sr := &sleepRecorder{}
	got := NewIndex(fb, "idx", 2, WithSleep(sr.Sleep), WithRetry(2, time.Millisecond)).FetchAny(context.Background(), 10)

	assert.Empty(t, got)
	assert.Len(t, fb.queries, 3)
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, sr.delays)
}

func TestIndex_FetchAnyStopsOnCancel(t *testing.T) {
	fb := &fakeBackend{emptyFor: 100}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got := NewIndex(fb, "idx", 2).FetchAny(ctx, 10)
	assert.Empty(t, got)
	assert.Len(t, fb.queries, 1)
}

func TestIndex_DeleteAll(t *testing.T) {
	fb := &fakeBackend{}
	res := NewIndex(fb, "pdf-embedding", 2).DeleteAll(context.Background())
	assert.True(t, res.Success)
	assert.Contains(t, res.Message, "pdf-embedding")
	assert.Equal(t, 1, fb.deletes)

	fb.deleteErr = errors.New("forbidden")
	res = NewIndex(fb, "pdf-embedding", 2).DeleteAll(context.Background())
	assert.False(t, res.Success)
	assert.Equal(t, "forbidden", res.Error)
}

func TestIndex_WithMemoryStore(t *testing.T) {
	ms := NewMemoryStore(3)
	ix := NewIndex(ms, "idx", 3)
	chunks := []model.EmbeddedChunk{
		{Text: "cats", Embedding: []float32{1, 0, 0}},
		{Text: "dogs", Embedding: []float32{0, 1, 0}},
	}
	require.True(t, ix.Upsert(context.Background(), chunks, model.Provenance{Filename: "pets.pdf"}).Success)

	res := ix.QuerySimilar(context.Background(), []float32{0, 0.9, 0.1}, 1)
	require.True(t, res.Success)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "dogs", res.Matches[0].Text())

	assert.Len(t, ix.FetchAny(context.Background(), 10), 2)
	assert.True(t, ix.DeleteAll(context.Background()).Success)
	assert.Zero(t, ms.Len())
}
