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

package index_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"cloud.google.com/go/bigquery"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jaycherian/gcp-go-media-indexer/internal/cloud"
	"github.com/jaycherian/gcp-go-media-indexer/internal/core/model"
	"github.com/jaycherian/gcp-go-media-indexer/internal/index"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/genai"
)

func record(id string, vector ...float32) *model.IndexRecord {
	return model.NewIndexRecord(&model.ItemDescriptor{ID: id, Name: id + ".mp4", SourceURL: "https://drive.google.com/file/d/" + id + "/view"}, vector)
}

func TestVectorLiteral(t *testing.T) {
	assert.Equal(t, "0.1,-2,3.25", index.VectorLiteral([]float32{0.1, -2, 3.25}))
	assert.Equal(t, "", index.VectorLiteral(nil))
}

type fakeEmbedder struct {
	calls int
	err   error
}

func (f *fakeEmbedder) EmbedContent(_ context.Context, _ string, contents []*genai.Content, _ *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	n := float32(len(contents[0].Parts[0].Text))
	return &genai.EmbedContentResponse{Embeddings: []*genai.ContentEmbedding{{Values: []float32{n, 1}}}}, nil
}

func TestGenAIEmbedder(t *testing.T) {
	fake := &fakeEmbedder{}
	e := index.NewGenAIEmbedder(cloud.NewQuotaAwareEmbeddingModel("text-embedding-004", 0, fake, 0))

	vector, err := e.Embed(context.Background(), "abcd")
	require.NoError(t, err)
	assert.Equal(t, []float32{4, 1}, vector)

	_, err = e.Embed(context.Background(), " \n ")
	assert.True(t, model.IsKind(err, model.KindService))
	assert.Equal(t, 1, fake.calls)

	fake.err = errors.New("429")
	_, err = e.Embed(context.Background(), "abcd")
	assert.True(t, model.IsKind(err, model.KindService))
	assert.Equal(t, 2, fake.calls)
}

func TestBigQueryQueries(t *testing.T) {
	client, err := bigquery.NewClient(context.Background(), "test-project", option.WithoutAuthentication())
	require.NoError(t, err)
	defer client.Close()

	store := index.NewBigQueryStore(client, "media_ds", "media_index")
	assert.Equal(t, "test-project.media_ds.media_index", store.TableName())

	search := fmt.Sprintf(index.QryVectorSearch, store.TableName(), index.VectorLiteral([]float32{0.5, 0.25}), 3)
	assert.Contains(t, search, "TABLE `test-project.media_ds.media_index`")
	assert.Contains(t, search, "[ 0.5,0.25 ]")
	assert.Contains(t, search, "top_k => 3")
	assert.Contains(t, search, "'COSINE'")

	merge := fmt.Sprintf(index.QryMergeRecord, store.TableName())
	assert.Contains(t, merge, "ON T.id = S.id")
	assert.Contains(t, merge, "WHEN MATCHED THEN UPDATE")

	matches, err := store.QuerySimilar(context.Background(), []float32{1}, 0)
	require.NoError(t, err)
	assert.Empty(t, matches)

	err = store.Upsert(context.Background(), record("x"))
	assert.True(t, model.IsKind(err, model.KindService))
}

func TestMergeParameters(t *testing.T) {
	params := index.MergeParameters(record("abc", 1, 0.5))
	require.Len(t, params, 4)
	assert.Equal(t, bigquery.QueryParameter{Name: "id", Value: "abc"}, params[0])
	assert.Equal(t, "abc.mp4", params[1].Value)
	assert.Equal(t, "https://drive.google.com/file/d/abc/view", params[2].Value)
	assert.Equal(t, []float64{1, 0.5}, params[3].Value)
}

// fakeDB records statements and serves canned rows.
type fakeDB struct {
	statements []string
	args       [][]any
	rows       [][]any
	err        error
}

func (f *fakeDB) Exec(_ context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	f.statements = append(f.statements, sql)
	f.args = append(f.args, arguments)
	return pgconn.NewCommandTag("INSERT 0 1"), f.err
}

func (f *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.statements = append(f.statements, sql)
	f.args = append(f.args, args)
	if f.err != nil {
		return nil, f.err
	}
	return &fakeRows{rows: f.rows, pos: -1}, nil
}

type fakeRows struct {
	rows   [][]any
	pos    int
	closed bool
}

func (r *fakeRows) Close()                                       { r.closed = true }
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	r.pos++
	return r.pos < len(r.rows)
}

func (r *fakeRows) Values() ([]any, error) { return r.rows[r.pos], nil }

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.pos]
	*dest[0].(*string) = row[0].(string)
	*dest[1].(*string) = row[1].(string)
	*dest[2].(*string) = row[2].(string)
	*dest[3].(*float64) = row[3].(float64)
	return nil
}

func TestPgVectorSchema(t *testing.T) {
	db := &fakeDB{}
	store := index.NewPgVectorStore(db, "media_index", 3)
	require.NoError(t, store.EnsureSchema(context.Background()))

	require.Len(t, db.statements, 2)
	assert.Equal(t, "CREATE EXTENSION IF NOT EXISTS vector", db.statements[0])
	assert.Contains(t, db.statements[1], `CREATE TABLE IF NOT EXISTS "media_index"`)
	assert.Contains(t, db.statements[1], "embedding vector(3) NOT NULL")

	unbounded := index.NewPgVectorStore(db, "media_index", 0)
	assert.Contains(t, unbounded.SchemaSQL()[1], "embedding vector NOT NULL")
}

func TestPgVectorUpsert(t *testing.T) {
	db := &fakeDB{}
	store := index.NewPgVectorStore(db, "media_index", 2)

	require.NoError(t, store.Upsert(context.Background(), record("a", 0.1, 0.2)))
	require.Len(t, db.statements, 1)
	assert.Contains(t, db.statements[0], "ON CONFLICT (id) DO UPDATE")
	assert.Equal(t, "a", db.args[0][0])
	assert.Equal(t, "a.mp4", db.args[0][1])
	assert.Equal(t, pgvector.NewVector([]float32{0.1, 0.2}), db.args[0][3])

	err := store.Upsert(context.Background(), record("b", 1, 2, 3))
	assert.True(t, model.IsKind(err, model.KindService))
	err = store.Upsert(context.Background(), record("c"))
	assert.True(t, model.IsKind(err, model.KindService))
	assert.Len(t, db.statements, 1)

	db.err = errors.New("connection reset")
	err = store.Upsert(context.Background(), record("a", 0.1, 0.2))
	assert.True(t, model.IsKind(err, model.KindService))
}

func TestPgVectorQuerySimilar(t *testing.T) {
	db := &fakeDB{rows: [][]any{
		{"a", "a.mp4", "https://x/a", 0.98},
		{"b", "b.mp4", "https://x/b", 0.51},
	}}
	store := index.NewPgVectorStore(db, "media_index", 0)

	matches, err := store.QuerySimilar(context.Background(), []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "a", matches[0].ID)
	assert.Equal(t, 0.98, matches[0].Score)
	assert.Equal(t, "b.mp4", matches[1].Metadata.Name)
	assert.True(t, strings.Contains(db.statements[0], "ORDER BY embedding <=> $1"))
	assert.Equal(t, 2, db.args[0][1])

	none, err := store.QuerySimilar(context.Background(), []float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
	assert.Len(t, db.statements, 1)
}

func TestNewStore(t *testing.T) {
	config := cloud.NewConfig()
	_, err := index.NewStore(config, &cloud.ServiceClients{})
	assert.Error(t, err)

	config.Pipeline.IndexBackend = cloud.IndexBackendPgVector
	_, err = index.NewStore(config, &cloud.ServiceClients{})
	assert.Error(t, err)

	config.Pipeline.IndexBackend = "faiss"
	_, err = index.NewStore(config, &cloud.ServiceClients{})
	assert.ErrorContains(t, err, "faiss")
}
