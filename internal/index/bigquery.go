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
	"errors"
	"fmt"
	"net/http"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/jaycherian/gcp-go-media-indexer/internal/core/model"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

const (
	// QryMergeRecord writes one record, replacing any row with the same id.
	//
	// Placeholders:
	// - `%s`: The fully qualified name of the index table.
	QryMergeRecord = "MERGE `%s` T " +
		"USING (SELECT @id AS id, @name AS name, @url AS url, @embedding AS embedding) S " +
		"ON T.id = S.id " +
		"WHEN MATCHED THEN UPDATE SET name = S.name, url = S.url, embedding = S.embedding, updated_at = CURRENT_TIMESTAMP() " +
		"WHEN NOT MATCHED THEN INSERT (id, name, url, embedding, updated_at) " +
		"VALUES (S.id, S.name, S.url, S.embedding, CURRENT_TIMESTAMP())"

	// QryVectorSearch returns the k rows closest to a query vector. Cosine
	// distance is turned into a similarity so higher is better.
	//
	// Placeholders:
	// - `%s`: The fully qualified name of the index table.
	// - `%s`: The query vector as a comma separated list.
	// - `%d`: k.
	QryVectorSearch = "SELECT base.id AS id, 1 - distance AS score, " +
		"STRUCT(base.name AS name, base.url AS url) AS metadata " +
		"FROM VECTOR_SEARCH(TABLE `%s`, 'embedding', (SELECT [ %s ] AS embedding), " +
		"top_k => %d, distance_type => 'COSINE') ORDER BY distance ASC"
)

// IndexSchema is the layout of the BigQuery index table.
var IndexSchema = bigquery.Schema{
	{Name: "id", Type: bigquery.StringFieldType, Required: true},
	{Name: "name", Type: bigquery.StringFieldType},
	{Name: "url", Type: bigquery.StringFieldType},
	{Name: "embedding", Type: bigquery.FloatFieldType, Repeated: true},
	{Name: "updated_at", Type: bigquery.TimestampFieldType},
}

// BigQueryStore keeps the index in a BigQuery table.
type BigQueryStore struct {
	client  *bigquery.Client
	dataset string
	table   string
}

// NewBigQueryStore uses dataset.table of client's project.
func NewBigQueryStore(client *bigquery.Client, dataset string, table string) *BigQueryStore {
	return &BigQueryStore{client: client, dataset: dataset, table: table}
}

// TableName returns the name as written in a query, project.dataset.table.
func (s *BigQueryStore) TableName() string {
	return strings.Replace(s.client.Dataset(s.dataset).Table(s.table).FullyQualifiedName(), ":", ".", -1)
}

// EnsureTable creates the index table when it does not exist.
func (s *BigQueryStore) EnsureTable(ctx context.Context) error {
	table := s.client.Dataset(s.dataset).Table(s.table)
	_, err := table.Metadata(ctx)
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusNotFound {
		return model.E(model.KindService, "index.EnsureTable", err)
	}
	if err := table.Create(ctx, &bigquery.TableMetadata{Schema: IndexSchema}); err != nil {
		return model.E(model.KindService, "index.EnsureTable", err)
	}
	return nil
}

// Upsert merges record into the table and waits for the job.
func (s *BigQueryStore) Upsert(ctx context.Context, record *model.IndexRecord) error {
	const op = "index.Upsert"
	if err := validateRecord(op, record); err != nil {
		return err
	}
	q := s.client.Query(fmt.Sprintf(QryMergeRecord, s.TableName()))
	q.Parameters = MergeParameters(record)

	job, err := q.Run(ctx)
	if err != nil {
		return model.E(model.KindService, op, err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return model.E(model.KindService, op, err)
	}
	if err := status.Err(); err != nil {
		return model.E(model.KindService, op, err)
	}
	return nil
}

// MergeParameters binds record to the named parameters of QryMergeRecord.
func MergeParameters(record *model.IndexRecord) []bigquery.QueryParameter {
	embedding := make([]float64, len(record.Vector))
	for i, f := range record.Vector {
		embedding[i] = float64(f)
	}
	return []bigquery.QueryParameter{
		{Name: "id", Value: record.ID},
		{Name: "name", Value: record.Metadata.Name},
		{Name: "url", Value: record.Metadata.URL},
		{Name: "embedding", Value: embedding},
	}
}

// QuerySimilar returns at most k matches, most similar first.
func (s *BigQueryStore) QuerySimilar(ctx context.Context, vector []float32, k int) (out []*model.Match, err error) {
	const op = "index.QuerySimilar"
	out = make([]*model.Match, 0)
	if k < 1 {
		return out, nil
	}
	if len(vector) == 0 {
		return out, model.Ef(model.KindService, op, "empty query vector")
	}

	itr, err := s.client.Query(fmt.Sprintf(QryVectorSearch, s.TableName(), VectorLiteral(vector), k)).Read(ctx)
	if err != nil {
		return out, model.E(model.KindService, op, err)
	}
	for {
		var m = &model.Match{}
		err := itr.Next(m)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return out, model.E(model.KindService, op, err)
		}
		out = append(out, m)
	}
	return out, nil
}
