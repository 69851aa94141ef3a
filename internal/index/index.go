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

// Package index turns descriptions into vectors and keeps them in a vector
// store. Two stores are available: BigQuery (VECTOR_SEARCH) and Postgres
// with the pgvector extension. Both overwrite a record written twice under
// the same id and rank matches by cosine similarity, highest first.
package index

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jaycherian/gcp-go-media-indexer/internal/cloud"
	"github.com/jaycherian/gcp-go-media-indexer/internal/core/model"
)

// Store is a vector store.
type Store interface {
	Upsert(ctx context.Context, record *model.IndexRecord) error
	QuerySimilar(ctx context.Context, vector []float32, k int) ([]*model.Match, error)
}

// NewStore returns the store selected by pipeline.index_backend.
func NewStore(config *cloud.Config, clients *cloud.ServiceClients) (Store, error) {
	switch config.Pipeline.IndexBackend {
	case cloud.IndexBackendBigQuery:
		if clients.BiqQueryClient == nil {
			return nil, errors.New("bigquery index selected but no bigquery client was created")
		}
		return NewBigQueryStore(clients.BiqQueryClient, config.BigQueryDataSource.DatasetName, config.BigQueryDataSource.IndexTable), nil
	case cloud.IndexBackendPgVector:
		if clients.PgPool == nil {
			return nil, errors.New("pgvector index selected but no pgx pool was created")
		}
		return NewPgVectorStore(clients.PgPool, config.PgVector.Table, config.PgVector.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown index backend %q", config.Pipeline.IndexBackend)
	}
}

// validateRecord rejects records no store could search.
func validateRecord(op string, record *model.IndexRecord) error {
	if record == nil || record.ID == "" {
		return model.Ef(model.KindService, op, "record has no id")
	}
	if len(record.Vector) == 0 {
		return model.Ef(model.KindService, op, "record %s has an empty vector", record.ID)
	}
	return nil
}

// VectorLiteral renders a vector as the comma separated list used inside
// an SQL array literal.
func VectorLiteral(vector []float32) string {
	values := make([]string, len(vector))
	for i, f := range vector {
		values[i] = strconv.FormatFloat(float64(f), 'f', -1, 32)
	}
	return strings.Join(values, ",")
}

// Prepare creates the index table of store when it is missing.
func Prepare(ctx context.Context, store Store) error {
	switch s := store.(type) {
	case *BigQueryStore:
		return s.EnsureTable(ctx)
	case *PgVectorStore:
		return s.EnsureSchema(ctx)
	}
	return nil
}
