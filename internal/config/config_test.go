package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DOCQUIZ_CONFIG", "PG_CONN", "SERVER_ADDR", "EMBED_MODEL", "LLM_MODEL",
		"LMSTUDIO_BASE_URL", "OPENAI_API_KEY", "UPLOAD_DIR", "INDEX_NAME",
		"VECTOR_BACKEND", "QDRANT_URL", "QDRANT_API_KEY", "EMBED_DIM",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 500, cfg.Chunking.Size)
	assert.Equal(t, 200, cfg.Chunking.Overlap)
	assert.Equal(t, "pdf-embedding", cfg.Index.Name)
	assert.Equal(t, 384, cfg.Index.Dimension)
	assert.Equal(t, 0.6, cfg.Questions.DedupeThreshold)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().ServerAddr, cfg.ServerAddr)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "docquiz.yaml")
	yml := `
server_addr: ":9090"
cache_ttl: 90s
chunking:
  size: 300
  overlap: 50
index:
  name: from-yaml
  backend: memory
  retry_base: 250ms
questions:
  dedupe_threshold: 0.8
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))
	t.Setenv("INDEX_NAME", "from-env")
	t.Setenv("EMBED_DIM", "768")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.ServerAddr)
	assert.Equal(t, 90*time.Second, cfg.CacheTTL)
	assert.Equal(t, 300, cfg.Chunking.Size)
	assert.Equal(t, 50, cfg.Chunking.Overlap)
	assert.Equal(t, BackendMemory, cfg.Index.Backend)
	assert.Equal(t, 250*time.Millisecond, cfg.Index.RetryBase)
	assert.Equal(t, "from-env", cfg.Index.Name)
	assert.Equal(t, 768, cfg.Index.Dimension)
	assert.Equal(t, 0.8, cfg.Questions.DedupeThreshold)
	// untouched nested defaults survive a partial file
	assert.Equal(t, 100, cfg.Index.UpsertBatch)
}

func TestLoad_ConfigPathFromEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("upload_dir: /tmp/up\n"), 0o644))
	t.Setenv("DOCQUIZ_CONFIG", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/up", cfg.UploadDir)
}

func TestLoad_BadYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunking: [1, 2"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_InvalidEmbedDimIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("EMBED_DIM", "lots")
	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 384, cfg.Index.Dimension)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero size", func(c *Config) { c.Chunking.Size = 0 }},
		{"overlap equals size", func(c *Config) { c.Chunking.Overlap = c.Chunking.Size }},
		{"negative overlap", func(c *Config) { c.Chunking.Overlap = -1 }},
		{"zero dimension", func(c *Config) { c.Index.Dimension = 0 }},
		{"empty index", func(c *Config) { c.Index.Name = "" }},
		{"unknown backend", func(c *Config) { c.Index.Backend = "pinecone" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
