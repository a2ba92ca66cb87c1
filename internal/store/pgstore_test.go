package store

import (
	"context"
	"os"
	"testing"

	"github.com/katakuxiko/docquiz/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a real Postgres with pgvector when PG_TEST_CONN is set.
func TestPgStore_RoundTrip(t *testing.T) {
	conn := os.Getenv("PG_TEST_CONN")
	if conn == "" {
		t.Skip("PG_TEST_CONN not set")
	}
	ctx := context.Background()
	s, err := NewPgStore(conn, "docquiz-test", 3)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.DeleteAll(ctx))

	require.NoError(t, s.Upsert(ctx, []model.Record{
		{ID: "a", Vector: []float32{1, 0, 0}, Metadata: map[string]any{"text": "first"}},
		{ID: "b", Vector: []float32{0, 1, 0}, Metadata: map[string]any{"text": "second"}},
	}))

	got, err := s.Query(ctx, []float32{0, 0.9, 0}, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "second", got[0].Text())

	all, err := s.Query(ctx, []float32{0, 0, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	err = s.Upsert(ctx, []model.Record{{ID: "c", Vector: []float32{1}}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	require.NoError(t, s.DeleteAll(ctx))
	all, err = s.Query(ctx, []float32{0, 0, 0}, 10)
	require.NoError(t, err)
	assert.Empty(t, all)
}
