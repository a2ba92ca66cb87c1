package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/katakuxiko/docquiz/internal/model"
	"github.com/katakuxiko/docquiz/internal/util"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultUpsertBatch  = 100
	DefaultFetchRetries = 5
	DefaultRetryBase    = time.Second
)

// Index wraps a Backend for one named index. None of its methods return an
// error: failures come back inside the result value.
type Index struct {
	backend   Backend
	name      string
	dim       int
	batchSize int
	retries   int
	retryBase time.Duration
	sleep     func(context.Context, time.Duration) error
	now       func() time.Time
}

type IndexOption func(*Index)

func WithBatchSize(n int) IndexOption {
	return func(ix *Index) {
		if n > 0 {
			ix.batchSize = n
		}
	}
}

// WithRetry sets how many times FetchAny retries and the first delay.
// Delays double on every retry.
func WithRetry(retries int, base time.Duration) IndexOption {
	return func(ix *Index) {
		if retries >= 0 {
			ix.retries = retries
		}
		if base > 0 {
			ix.retryBase = base
		}
	}
}

// WithSleep replaces the backoff wait, for tests.
func WithSleep(sleep func(context.Context, time.Duration) error) IndexOption {
	return func(ix *Index) {
		if sleep != nil {
			ix.sleep = sleep
		}
	}
}

func WithClock(now func() time.Time) IndexOption {
	return func(ix *Index) {
		if now != nil {
			ix.now = now
		}
	}
}

func NewIndex(backend Backend, name string, dim int, opts ...IndexOption) *Index {
	ix := &Index{
		backend:   backend,
		name:      name,
		dim:       dim,
		batchSize: DefaultUpsertBatch,
		retries:   DefaultFetchRetries,
		retryBase: DefaultRetryBase,
		sleep:     sleepCtx,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

func (ix *Index) Name() string { return ix.name }

// Upsert stores chunks with the shared provenance. Batches are sent
// concurrently and each reports its own outcome; VectorCount counts only
// records in batches that landed. Any failed batch makes the call unsuccessful.
func (ix *Index) Upsert(ctx context.Context, chunks []model.EmbeddedChunk, prov model.Provenance) model.UpsertResult {
	if len(chunks) == 0 {
		return model.UpsertResult{Success: true, Message: "nothing to store"}
	}
	if got := len(chunks[0].Embedding); got != ix.dim {
		log.Printf("warning: embeddings have %d dimensions, index %q expects %d", got, ix.name, ix.dim)
	}

	records := ix.records(chunks, prov)
	batches := util.Batches(records, ix.batchSize)
	outcomes := make([]model.BatchOutcome, len(batches))
	log.Printf("storing %d chunks in index %s (%d batches)", len(records), ix.name, len(batches))

	var g errgroup.Group
	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			outcomes[i] = model.BatchOutcome{Batch: i + 1, Count: len(batch)}
			if err := ix.backend.Upsert(ctx, batch); err != nil {
				log.Printf("batch %d/%d failed: %v", i+1, len(batches), err)
				outcomes[i].Error = err.Error()
				return err
			}
			log.Printf("batch %d/%d upserted: %d vectors", i+1, len(batches), len(batch))
			return nil
		})
	}
	_ = g.Wait()

	res := model.UpsertResult{Success: true, Batches: outcomes}
	for _, o := range outcomes {
		if o.Error != "" {
			if res.Success {
				res.Error = fmt.Sprintf("batch %d: %s", o.Batch, o.Error)
			}
			res.Success = false
			continue
		}
		res.VectorCount += o.Count
	}
	if res.Success {
		res.Message = fmt.Sprintf("stored %d vectors in index %s", res.VectorCount, ix.name)
	}
	return res
}

func (ix *Index) records(chunks []model.EmbeddedChunk, prov model.Provenance) []model.Record {
	now := ix.now()
	if prov.Timestamp == "" {
		prov.Timestamp = now.UTC().Format(time.RFC3339)
	}
	if prov.JobID == "" {
		prov.JobID = uuid.NewString()
	}
	prefix := prov.Filename
	if prefix == "" {
		prefix = "doc"
	}
	stamp := now.UnixMilli()

	records := make([]model.Record, len(chunks))
	for i, c := range chunks {
		meta := map[string]any{
			"text":      c.Text,
			"timestamp": prov.Timestamp,
			"jobId":     prov.JobID,
		}
		if prov.Source != "" {
			meta["source"] = prov.Source
		}
		if prov.Filename != "" {
			meta["filename"] = prov.Filename
		}
		if prov.JobTitle != "" {
			meta["jobTitle"] = prov.JobTitle
		}
		records[i] = model.Record{
			ID:       fmt.Sprintf("%s-chunk-%d-%d", prefix, i, stamp),
			Vector:   c.Embedding,
			Metadata: meta,
		}
	}
	return records
}

// QuerySimilar returns the topK nearest records.
func (ix *Index) QuerySimilar(ctx context.Context, vector []float32, topK int) model.QueryResult {
	matches, err := ix.backend.Query(ctx, vector, topK)
	if err != nil {
		log.Printf("query index %s: %v", ix.name, err)
		return model.QueryResult{Success: false, Matches: []model.Match{}, Error: err.Error()}
	}
	if matches == nil {
		matches = []model.Match{}
	}
	return model.QueryResult{Success: true, Matches: matches}
}

// FetchAny returns up to limit records as a sample of the index. It is not an
// exhaustive or uniform listing. An empty answer is retried with exponential
// backoff because a fresh upsert may not be visible yet.
func (ix *Index) FetchAny(ctx context.Context, limit int) []model.Match {
	for attempt := 0; ; attempt++ {
		matches, err := ix.sample(ctx, limit)
		if err != nil {
			log.Printf("fetch from index %s (attempt %d): %v", ix.name, attempt+1, err)
		}
		if len(matches) > 0 {
			log.Printf("retrieved %d chunks on attempt %d", len(matches), attempt+1)
			return matches
		}
		if attempt >= ix.retries {
			break
		}
		wait := ix.retryBase << attempt
		log.Printf("no data in index %s, retrying in %s", ix.name, wait)
		if err := ix.sleep(ctx, wait); err != nil {
			log.Printf("fetch from index %s cancelled: %v", ix.name, err)
			return nil
		}
	}
	log.Printf("no data in index %s after %d retries", ix.name, ix.retries)
	return nil
}

func (ix *Index) sample(ctx context.Context, limit int) ([]model.Match, error) {
	if s, ok := ix.backend.(Sampler); ok {
		return s.Sample(ctx, limit)
	}
	return ix.backend.Query(ctx, make([]float32, ix.dim), limit)
}

// DeleteAll irreversibly removes every record of the index.
func (ix *Index) DeleteAll(ctx context.Context) model.DeleteResult {
	if err := ix.backend.DeleteAll(ctx); err != nil {
		log.Printf("delete all from index %s: %v", ix.name, err)
		return model.DeleteResult{Success: false, Error: err.Error()}
	}
	log.Printf("deleted all documents from index %s", ix.name)
	return model.DeleteResult{Success: true, Message: fmt.Sprintf("all documents deleted from index %q", ix.name)}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
