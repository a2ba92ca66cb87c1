package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Векторные хранилища, которые понимает store.NewBackend.
const (
	BackendPgvector = "pgvector"
	BackendQdrant   = "qdrant"
	BackendMemory   = "memory"
)

type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

type ChunkingConfig struct {
	Size       int `yaml:"size"`
	Overlap    int `yaml:"overlap"`
	EmbedBatch int `yaml:"embed_batch"`
}

type IndexConfig struct {
	Name         string        `yaml:"name"`
	Backend      string        `yaml:"backend"`
	Dimension    int           `yaml:"dimension"`
	UpsertBatch  int           `yaml:"upsert_batch"`
	FetchLimit   int           `yaml:"fetch_limit"`
	FetchRetries int           `yaml:"fetch_retries"`
	RetryBase    time.Duration `yaml:"retry_base"`
	TopicTopK    int           `yaml:"topic_top_k"`
	Qdrant       QdrantConfig  `yaml:"qdrant"`
}

type QuestionsConfig struct {
	MaxChunks       int      `yaml:"max_chunks"`
	Limit           int      `yaml:"limit"`
	DedupeThreshold float64  `yaml:"dedupe_threshold"`
	GenericMarkers  []string `yaml:"generic_markers"`
}

type Config struct {
	PgConn      string          `yaml:"pg_conn"`
	ServerAddr  string          `yaml:"server_addr"`
	EmbedModel  string          `yaml:"embed_model"`
	ChatModel   string          `yaml:"chat_model"`
	LMBaseURL   string          `yaml:"lm_base_url"`
	APIKey      string          `yaml:"-"`
	UploadDir   string          `yaml:"upload_dir"`
	MaxUploadMB int             `yaml:"max_upload_mb"`
	CacheTTL    time.Duration   `yaml:"cache_ttl"`
	Chunking    ChunkingConfig  `yaml:"chunking"`
	Index       IndexConfig     `yaml:"index"`
	Questions   QuestionsConfig `yaml:"questions"`
}

// Default возвращает конфиг по умолчанию.
func Default() *Config {
	return &Config{
		PgConn:      "host=localhost port=5432 user=postgres password=123123 dbname=pdf_ai sslmode=disable",
		ServerAddr:  ":8080",
		EmbedModel:  "text-embedding-all-minilm-l6-v2",
		ChatModel:   "google/gemma-3n-e4b",
		LMBaseURL:   "http://localhost:1234/v1",
		APIKey:      "not-needed",
		UploadDir:   "data/pdfs",
		MaxUploadMB: 20,
		CacheTTL:    5 * time.Minute,
		Chunking: ChunkingConfig{
			Size:       500,
			Overlap:    200,
			EmbedBatch: 20,
		},
		Index: IndexConfig{
			Name:         "pdf-embedding",
			Backend:      BackendPgvector,
			Dimension:    384,
			UpsertBatch:  100,
			FetchLimit:   10,
			FetchRetries: 5,
			RetryBase:    time.Second,
			TopicTopK:    3,
			Qdrant: QdrantConfig{
				URL:         "http://localhost:6333",
				TimeoutSecs: 15,
			},
		},
		Questions: QuestionsConfig{
			MaxChunks:       10,
			Limit:           5,
			DedupeThreshold: 0.6,
			GenericMarkers:  []string{"insights", "drawn", "what insights can be drawn"},
		},
	}
}

// Load собирает конфиг: значения по умолчанию, затем YAML-файл, затем окружение.
// Сначала подгружается .env из рабочей директории, если он есть.
// Пустой path берётся из $DOCQUIZ_CONFIG; отсутствие файла не ошибка.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path == "" {
		path = os.Getenv("DOCQUIZ_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.PgConn = getenv("PG_CONN", cfg.PgConn)
	cfg.ServerAddr = getenv("SERVER_ADDR", cfg.ServerAddr)
	cfg.EmbedModel = getenv("EMBED_MODEL", cfg.EmbedModel)
	cfg.ChatModel = getenv("LLM_MODEL", cfg.ChatModel)
	cfg.LMBaseURL = getenv("LMSTUDIO_BASE_URL", cfg.LMBaseURL)
	cfg.APIKey = getenv("OPENAI_API_KEY", cfg.APIKey)
	cfg.UploadDir = getenv("UPLOAD_DIR", cfg.UploadDir)
	cfg.Index.Name = getenv("INDEX_NAME", cfg.Index.Name)
	cfg.Index.Backend = getenv("VECTOR_BACKEND", cfg.Index.Backend)
	cfg.Index.Qdrant.URL = getenv("QDRANT_URL", cfg.Index.Qdrant.URL)
	cfg.Index.Qdrant.APIKey = getenv("QDRANT_API_KEY", cfg.Index.Qdrant.APIKey)
	cfg.Index.Dimension = getenvInt("EMBED_DIM", cfg.Index.Dimension)
}

// Validate отклоняет значения, с которыми пайплайн не запустится.
func (c *Config) Validate() error {
	if c.Chunking.Size <= 0 {
		return fmt.Errorf("config: chunking.size must be positive, got %d", c.Chunking.Size)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("config: chunking.overlap must be in [0,%d), got %d", c.Chunking.Size, c.Chunking.Overlap)
	}
	if c.Index.Dimension <= 0 {
		return fmt.Errorf("config: index.dimension must be positive, got %d", c.Index.Dimension)
	}
	if c.Index.Name == "" {
		return errors.New("config: index.name is required")
	}
	switch c.Index.Backend {
	case BackendPgvector, BackendQdrant, BackendMemory:
	default:
		return fmt.Errorf("config: unknown vector backend %q", c.Index.Backend)
	}
	return nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
