package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/katakuxiko/docquiz/internal/model"
)

// recordIDKey holds the caller's record id in the point payload, since Qdrant
// only accepts UUIDs or integers as point ids.
const recordIDKey = "record_id"

// QdrantStore is a minimal REST client to Qdrant.
// It assumes cosine distance and creates the collection if missing.
type QdrantStore struct {
	url        string
	apiKey     string
	collection string
	dimension  int
	client     *http.Client
}

var (
	_ Backend = (*QdrantStore)(nil)
	_ Sampler = (*QdrantStore)(nil)
)

type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewQdrantStore(cfg QdrantConfig) *QdrantStore {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &QdrantStore{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// Init creates the collection if it does not exist yet.
func (s *QdrantStore) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	s.dimension = dimension

	exists, err := s.collectionExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	return s.do(ctx, http.MethodPut, s.collectionURL(""), body, nil)
}

func (s *QdrantStore) Upsert(ctx context.Context, records []model.Record) error {
	points := make([]map[string]any, len(records))
	for i, r := range records {
		if s.dimension > 0 && len(r.Vector) != s.dimension {
			return fmt.Errorf("record %s: %w: got %d, want %d", r.ID, ErrDimensionMismatch, len(r.Vector), s.dimension)
		}
		payload := make(map[string]any, len(r.Metadata)+1)
		for k, v := range r.Metadata {
			payload[k] = v
		}
		payload[recordIDKey] = r.ID
		points[i] = map[string]any{
			"id":      pointID(r.ID),
			"vector":  r.Vector,
			"payload": payload,
		}
	}
	return s.do(ctx, http.MethodPut, s.collectionURL("/points?wait=true"), map[string]any{"points": points}, nil)
}

type qdrantPoint struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

func (s *QdrantStore) Query(ctx context.Context, vector []float32, topK int) ([]model.Match, error) {
	if topK <= 0 {
		topK = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	var resp struct {
		Result []qdrantPoint `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, s.collectionURL("/points/search"), req, &resp); err != nil {
		return nil, err
	}
	return toMatches(resp.Result), nil
}

// Sample lists up to limit points with the scroll API.
func (s *QdrantStore) Sample(ctx context.Context, limit int) ([]model.Match, error) {
	req := map[string]any{
		"limit":        limit,
		"with_payload": true,
		"with_vector":  false,
	}
	var resp struct {
		Result struct {
			Points []qdrantPoint `json:"points"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, s.collectionURL("/points/scroll"), req, &resp); err != nil {
		return nil, err
	}
	return toMatches(resp.Result.Points), nil
}

// DeleteAll drops the collection and creates it again empty.
func (s *QdrantStore) DeleteAll(ctx context.Context) error {
	if err := s.do(ctx, http.MethodDelete, s.collectionURL(""), nil, nil); err != nil {
		return err
	}
	if s.dimension <= 0 {
		return nil
	}
	return s.Init(ctx, s.dimension)
}

func (s *QdrantStore) collectionExists(ctx context.Context) (bool, error) {
	var resp struct {
		Result struct {
			Exists bool `json:"exists"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodGet, s.collectionURL("/exists"), nil, &resp); err != nil {
		return false, err
	}
	return resp.Result.Exists, nil
}

func (s *QdrantStore) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.url, s.collection, suffix)
}

func (s *QdrantStore) do(ctx context.Context, method, url string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("qdrant %s %s failed: %s: %s", method, url, resp.Status, bytes.TrimSpace(msg))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func pointID(recordID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(recordID)).String()
}

func toMatches(points []qdrantPoint) []model.Match {
	out := make([]model.Match, 0, len(points))
	for _, p := range points {
		m := model.Match{Score: p.Score, Metadata: p.Payload}
		if id, ok := p.Payload[recordIDKey].(string); ok {
			m.ID = id
			delete(m.Metadata, recordIDKey)
		} else {
			m.ID = fmt.Sprint(p.ID)
		}
		out = append(out, m)
	}
	return out
}
