package store

import (
	"database/sql"
	"fmt"
)

// schemaStatements возвращает DDL для таблицы чанков.
// ANN-индекса нет: поиск идёт точным перебором по index_name, иначе
// ivfflat с фильтром возвращает меньше строк, чем есть в таблице.
func schemaStatements(dim int) []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
			index_name TEXT NOT NULL,
			id TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (index_name, id)
		)`, dim),
		// остаток старых версий схемы
		`DROP INDEX IF EXISTS chunks_embedding_ivfflat_idx`,
	}
}

// ensureSchema создаёт расширение и таблицу чанков.
func ensureSchema(db *sql.DB, dim int) error {
	for _, s := range schemaStatements(dim) {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}
