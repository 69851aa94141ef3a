// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package index

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jaycherian/gcp-go-media-indexer/internal/core/model"
	"github.com/pgvector/pgvector-go"
)

// Querier is the part of *pgxpool.Pool the store uses.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PgVectorStore keeps the index in a Postgres table with a vector column.
type PgVectorStore struct {
	db         Querier
	table      string // Quoted identifier.
	dimensions int
}

// NewPgVectorStore uses table. dimensions of 0 leaves the column width
// unconstrained and skips the length check on upsert.
func NewPgVectorStore(db Querier, table string, dimensions int) *PgVectorStore {
	return &PgVectorStore{db: db, table: pgx.Identifier{table}.Sanitize(), dimensions: dimensions}
}

// SchemaSQL returns the statements creating the extension and the table.
func (s *PgVectorStore) SchemaSQL() []string {
	column := "vector"
	if s.dimensions > 0 {
		column = fmt.Sprintf("vector(%d)", s.dimensions)
	}
	return []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
        id TEXT PRIMARY KEY,
        name TEXT NOT NULL,
        url TEXT NOT NULL,
        embedding %s NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`, s.table, column),
	}
}

// EnsureSchema creates the extension and the table when missing.
func (s *PgVectorStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range s.SchemaSQL() {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return model.E(model.KindService, "index.EnsureSchema", err)
		}
	}
	return nil
}

// UpsertSQL returns the insert statement, overwriting on id conflicts.
func (s *PgVectorStore) UpsertSQL() string {
	return fmt.Sprintf(`INSERT INTO %s (id, name, url, embedding, updated_at)
        VALUES ($1, $2, $3, $4, now())
        ON CONFLICT (id) DO UPDATE SET
            name = EXCLUDED.name,
            url = EXCLUDED.url,
            embedding = EXCLUDED.embedding,
            updated_at = now()`, s.table)
}

// SearchSQL returns the cosine similarity query.
func (s *PgVectorStore) SearchSQL() string {
	return fmt.Sprintf(`SELECT id, name, url, 1 - (embedding <=> $1) AS similarity
        FROM %s
        ORDER BY embedding <=> $1
        LIMIT $2`, s.table)
}

// Upsert writes record.
func (s *PgVectorStore) Upsert(ctx context.Context, record *model.IndexRecord) error {
	const op = "index.Upsert"
	if err := validateRecord(op, record); err != nil {
		return err
	}
	if s.dimensions > 0 && len(record.Vector) != s.dimensions {
		return model.Ef(model.KindService, op, "record %s has %d dimensions, the table holds %d", record.ID, len(record.Vector), s.dimensions)
	}
	_, err := s.db.Exec(ctx, s.UpsertSQL(),
		record.ID, record.Metadata.Name, record.Metadata.URL, pgvector.NewVector(record.Vector))
	if err != nil {
		return model.E(model.KindService, op, err)
	}
	return nil
}

// QuerySimilar returns at most k matches, most similar first.
func (s *PgVectorStore) QuerySimilar(ctx context.Context, vector []float32, k int) ([]*model.Match, error) {
	const op = "index.QuerySimilar"
	out := make([]*model.Match, 0)
	if k < 1 {
		return out, nil
	}
	if len(vector) == 0 {
		return out, model.Ef(model.KindService, op, "empty query vector")
	}

	rows, err := s.db.Query(ctx, s.SearchSQL(), pgvector.NewVector(vector), k)
	if err != nil {
		return out, model.E(model.KindService, op, err)
	}
	defer rows.Close()

	for rows.Next() {
		m := &model.Match{}
		if err := rows.Scan(&m.ID, &m.Metadata.Name, &m.Metadata.URL, &m.Score); err != nil {
			return out, model.E(model.KindService, op, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return out, model.E(model.KindService, op, err)
	}
	return out, nil
}
