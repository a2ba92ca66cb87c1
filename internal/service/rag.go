package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/katakuxiko/docquiz/internal/cache"
	"github.com/katakuxiko/docquiz/internal/chunker"
	"github.com/katakuxiko/docquiz/internal/model"
	"github.com/katakuxiko/docquiz/internal/store"
)

// ErrNoChunks is returned by Ingest when the text yields no chunks.
var ErrNoChunks = errors.New("no chunks created")

const uploadSource = "pdf-upload"

// VectorIndex is the subset of store.Index the service uses.
type VectorIndex interface {
	Name() string
	Upsert(ctx context.Context, chunks []model.EmbeddedChunk, prov model.Provenance) model.UpsertResult
	QuerySimilar(ctx context.Context, vector []float32, topK int) model.QueryResult
	FetchAny(ctx context.Context, limit int) []model.Match
	DeleteAll(ctx context.Context) model.DeleteResult
}

var _ VectorIndex = (*store.Index)(nil)

type TextEmbedder interface {
	EmbedOne(ctx context.Context, text string) []float32
	EmbedMany(ctx context.Context, texts []string) [][]float32
}

type QuestionSynthesizer interface {
	Synthesize(ctx context.Context, chunks []string) []string
}

var (
	_ TextEmbedder        = (*Embedder)(nil)
	_ QuestionSynthesizer = (*Synthesizer)(nil)
)

type Options struct {
	FetchLimit int
	TopicTopK  int
	Dedupe     DedupeOptions
}

func DefaultOptions() Options {
	return Options{FetchLimit: 10, TopicTopK: 3, Dedupe: DefaultDedupeOptions()}
}

// RAGService runs uploads into the index and answers question requests.
type RAGService struct {
	chunker *chunker.Chunker
	recent  cache.Store
	embed   TextEmbedder
	index   VectorIndex
	synth   QuestionSynthesizer
	opts    Options
	now     func() time.Time
}

func NewRAGService(ch *chunker.Chunker, recent cache.Store, embed TextEmbedder, index VectorIndex, synth QuestionSynthesizer, opts Options) *RAGService {
	if opts.FetchLimit <= 0 {
		opts.FetchLimit = 10
	}
	if opts.TopicTopK <= 0 {
		opts.TopicTopK = 3
	}
	if opts.Dedupe.Limit <= 0 {
		opts.Dedupe.Limit = 5
	}
	return &RAGService{
		chunker: ch,
		recent:  recent,
		embed:   embed,
		index:   index,
		synth:   synth,
		opts:    opts,
		now:     time.Now,
	}
}

// Ingest chunks text, stages the chunks in the recent cache, embeds them and
// stores them in the index. A storage failure is reported in the result, not
// as an error, because the cached chunks remain usable.
func (s *RAGService) Ingest(ctx context.Context, filename, jobTitle, text string) (model.IngestResult, error) {
	chunks := s.chunker.Split(text)
	if len(chunks) == 0 {
		return model.IngestResult{}, ErrNoChunks
	}
	log.Printf("created %d text chunks with %d character overlap", len(chunks), s.chunker.Overlap())
	s.recent.Put(chunks)

	vecs := s.embed.EmbedMany(ctx, chunks)
	embedded := make([]model.EmbeddedChunk, len(chunks))
	for i, c := range chunks {
		embedded[i] = model.EmbeddedChunk{Text: c, Embedding: vecs[i]}
	}

	jobID := uuid.NewString()
	res := s.index.Upsert(ctx, embedded, model.Provenance{
		Filename:  filename,
		JobTitle:  jobTitle,
		Source:    uploadSource,
		JobID:     jobID,
		Timestamp: s.now().UTC().Format(time.RFC3339),
	})

	out := model.IngestResult{
		JobID:       jobID,
		Filename:    filename,
		JobTitle:    jobTitle,
		Chunks:      chunks,
		VectorCount: res.VectorCount,
	}
	if res.Success {
		out.VectorStorage = "success"
		log.Printf("stored %d vectors for %s", res.VectorCount, filename)
	} else {
		out.VectorStorage = "failed"
		out.Error = res.Error
		log.Printf("warning: failed to store vectors for %s: %s", filename, res.Error)
	}
	return out, nil
}

// Questions picks a source for the given topic and returns at most
// Dedupe.Limit questions. It always returns something usable.
func (s *RAGService) Questions(ctx context.Context, topic string) model.QuestionSet {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return s.generalQuestions(ctx)
	}
	return s.topicQuestions(ctx, topic)
}

func (s *RAGService) generalQuestions(ctx context.Context) model.QuestionSet {
	limit := s.opts.Dedupe.Limit

	if chunks, ok := s.recent.Get(); ok {
		log.Printf("using %d recent chunks for question generation", len(chunks))
		qs := Dedupe(s.synth.Synthesize(ctx, chunks), s.opts.Dedupe)
		return model.QuestionSet{
			Questions: PadQuestions(qs, FallbackQuestions, limit),
			Topic:     "general",
			Source:    model.SourceRecentUpload,
		}
	}

	log.Printf("no recent chunks, sampling index %s", s.index.Name())
	texts := matchTexts(s.index.FetchAny(ctx, s.opts.FetchLimit))
	if len(texts) == 0 {
		return s.fallback("general")
	}
	qs := Dedupe(s.synth.Synthesize(ctx, texts), s.opts.Dedupe)
	if len(qs) == 0 {
		return s.fallback("general")
	}
	return model.QuestionSet{
		Questions:  PadQuestions(qs, nil, limit),
		Topic:      "general",
		Source:     model.SourceIndex,
		MatchCount: len(texts),
	}
}

func (s *RAGService) topicQuestions(ctx context.Context, topic string) model.QuestionSet {
	vec := s.embed.EmbedOne(ctx, topic)
	res := s.index.QuerySimilar(ctx, vec, s.opts.TopicTopK)
	if !res.Success || len(res.Matches) == 0 {
		log.Printf("no matches for topic %q (success=%v)", topic, res.Success)
		return s.fallback(topic)
	}

	qs := Dedupe(s.synth.Synthesize(ctx, matchTexts(res.Matches)), s.opts.Dedupe)
	return model.QuestionSet{
		Questions:  PadQuestions(qs, TopicFallbacks(topic), s.opts.Dedupe.Limit),
		Topic:      topic,
		Source:     model.SourceTopicQuery,
		MatchCount: len(res.Matches),
	}
}

func (s *RAGService) fallback(topic string) model.QuestionSet {
	return model.QuestionSet{
		Questions: append([]string(nil), FallbackQuestions...),
		Topic:     topic,
		Source:    model.SourceFallback,
	}
}

// Purge deletes everything in the index and, on success, forgets the recent upload.
func (s *RAGService) Purge(ctx context.Context) model.DeleteResult {
	res := s.index.DeleteAll(ctx)
	if res.Success {
		s.recent.Clear()
	}
	return res
}

func matchTexts(matches []model.Match) []string {
	var out []string
	for _, m := range matches {
		if t := m.Text(); strings.TrimSpace(t) != "" {
			out = append(out, t)
		}
	}
	return out
}
