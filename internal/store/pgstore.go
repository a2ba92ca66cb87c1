package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/katakuxiko/docquiz/internal/model"
	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// PgStore хранит записи в Postgres с pgvector. Несколько индексов
// живут в одной таблице и различаются по index_name.
type PgStore struct {
	db    *sql.DB
	index string
	dim   int
}

var _ Backend = (*PgStore)(nil)

func NewPgStore(conn, index string, dim int) (*PgStore, error) {
	db, err := sql.Open("postgres", conn)
	if err != nil {
		return nil, err
	}
	if err := ensureSchema(db, dim); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &PgStore{db: db, index: index, dim: dim}, nil
}

func (s *PgStore) Close() error { return s.db.Close() }

func (s *PgStore) Upsert(ctx context.Context, records []model.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (index_name, id, embedding, metadata)
		VALUES ($1, $2, $3, $4::jsonb)
		ON CONFLICT (index_name, id)
		DO UPDATE SET embedding = EXCLUDED.embedding, metadata = EXCLUDED.metadata
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		if len(r.Vector) != s.dim {
			return fmt.Errorf("record %s: %w: got %d, want %d", r.ID, ErrDimensionMismatch, len(r.Vector), s.dim)
		}
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("record %s metadata: %w", r.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, s.index, r.ID, pgvector.NewVector(r.Vector), string(meta)); err != nil {
			return fmt.Errorf("insert %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

// Query сортирует по L2-расстоянию: оно определено и для нулевого вектора.
// Без ANN-индекса это точный перебор, поэтому topK строк всегда полные.
func (s *PgStore) Query(ctx context.Context, vector []float32, topK int) ([]model.Match, error) {
	if len(vector) != s.dim {
		return nil, fmt.Errorf("query: %w: got %d, want %d", ErrDimensionMismatch, len(vector), s.dim)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, metadata, embedding <-> $2 AS distance
		FROM chunks
		WHERE index_name = $1
		ORDER BY embedding <-> $2
		LIMIT $3
	`, s.index, pgvector.NewVector(vector), topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []model.Match
	for rows.Next() {
		var (
			m    model.Match
			meta []byte
			dist float64
		)
		if err := rows.Scan(&m.ID, &meta, &dist); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(meta, &m.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata of %s: %w", m.ID, err)
		}
		m.Score = 1 / (1 + dist)
		res = append(res, m)
	}
	return res, rows.Err()
}

func (s *PgStore) DeleteAll(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE index_name = $1`, s.index)
	return err
}
