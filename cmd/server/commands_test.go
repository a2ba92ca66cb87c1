package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/katakuxiko/docquiz/internal/config"
	"github.com/katakuxiko/docquiz/internal/model"
	"github.com/katakuxiko/docquiz/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig(t *testing.T) string {
	t.Helper()
	for _, k := range []string{"DOCQUIZ_CONFIG", "VECTOR_BACKEND", "INDEX_NAME", "EMBED_DIM"} {
		t.Setenv(k, "")
	}
	path := filepath.Join(t.TempDir(), "docquiz.yaml")
	yml := "index:\n  backend: memory\n  fetch_retries: 0\n  retry_base: 1ms\n"
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRootHasCommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "ingest", "questions", "purge"})
}

func TestPurgeNeedsConfirmation(t *testing.T) {
	_, err := run(t, "purge")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")
}

func TestPurgeMemoryBackend(t *testing.T) {
	cfg := memoryConfig(t)
	out, err := run(t, "purge", "--yes", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "pdf-embedding")
}

func TestQuestionsOnEmptyIndexFallsBack(t *testing.T) {
	cfg := memoryConfig(t)
	out, err := run(t, "questions", "--json", "--config", cfg)
	require.NoError(t, err)

	var set model.QuestionSet
	require.NoError(t, json.Unmarshal([]byte(out), &set))
	assert.Equal(t, service.FallbackQuestions, set.Questions)
	assert.Equal(t, model.SourceFallback, set.Source)
}

func TestWireRejectsBadChunking(t *testing.T) {
	cfg := config.Default()
	cfg.Index.Backend = config.BackendMemory
	cfg.Chunking.Overlap = cfg.Chunking.Size
	_, err := wire(context.Background(), cfg)
	assert.Error(t, err)
}
