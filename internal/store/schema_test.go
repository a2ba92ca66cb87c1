package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchemaStatements_ExactScanOnly(t *testing.T) {
	stmts := schemaStatements(384)
	all := strings.Join(stmts, "\n")

	assert.Contains(t, all, "vector(384)")
	assert.Contains(t, all, "PRIMARY KEY (index_name, id)")
	for _, s := range stmts {
		assert.NotContains(t, s, "CREATE INDEX")
		assert.NotContains(t, s, "USING ivfflat")
		assert.NotContains(t, s, "USING hnsw")
	}
	assert.Contains(t, all, "DROP INDEX IF EXISTS chunks_embedding_ivfflat_idx")
}
