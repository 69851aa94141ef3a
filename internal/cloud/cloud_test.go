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

package cloud_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/jaycherian/gcp-go-media-indexer/internal/cloud"
	"github.com/jaycherian/gcp-go-media-indexer/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-indexer/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{cloud.EnvProject, cloud.EnvLocation, cloud.EnvAPIKey, cloud.EnvIndexName, cloud.EnvPgDSN} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigLayersRuntimeOverBase(t *testing.T) {
	clearEnv(t)
	t.Setenv(cloud.EnvConfigFilePrefix, filepath.Join("..", "..", "configs"))
	t.Setenv(cloud.EnvConfigRuntime, "test")

	config := cloud.NewConfig()
	require.NoError(t, cloud.LoadConfig(config))

	assert.Equal(t, "test-project", config.Application.GoogleProjectId)
	assert.Equal(t, "us-central1", config.Application.GoogleLocation)
	assert.Equal(t, 4, config.Pipeline.FrameCount)
	assert.True(t, config.Pipeline.StrictUpsert)
	assert.Equal(t, "media_index", config.BigQueryDataSource.IndexTable)
	assert.Equal(t, "text-embedding-004", config.EmbeddingModels[cloud.DefaultEmbeddingModel].Model)
	assert.Contains(t, config.TopicSubscriptions, "folder_triggers")
	assert.NotEmpty(t, config.PromptTemplates.FramesPrompt)
	assert.NoError(t, config.Validate())
}

func TestLoadConfigMissingFilesKeepsDefaults(t *testing.T) {
	t.Setenv(cloud.EnvConfigFilePrefix, t.TempDir())
	t.Setenv(cloud.EnvConfigRuntime, "nowhere")

	config := cloud.NewConfig()
	require.NoError(t, cloud.LoadConfig(config))
	assert.Equal(t, 10, config.Pipeline.FrameCount)
	assert.Equal(t, cloud.IndexBackendBigQuery, config.Pipeline.IndexBackend)
}

func TestLoadConfigReportsDecodeErrors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.toml"), []byte("[pipeline\nframe_count = "), 0o644))
	t.Setenv(cloud.EnvConfigFilePrefix, dir)

	err := cloud.LoadConfig(cloud.NewConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), ".env.toml")
}

func TestApplyEnvironmentOverridesCredentials(t *testing.T) {
	clearEnv(t)
	t.Setenv(cloud.EnvProject, "env-project")
	t.Setenv(cloud.EnvAPIKey, "key")
	t.Setenv(cloud.EnvIndexName, "videos")
	t.Setenv(cloud.EnvPgDSN, "postgres://localhost/media")

	config := cloud.NewConfig()
	config.Application.GoogleLocation = "europe-west1"
	config.ApplyEnvironment()

	assert.Equal(t, "env-project", config.Application.GoogleProjectId)
	assert.Equal(t, "europe-west1", config.Application.GoogleLocation)
	assert.Equal(t, "key", config.Application.GeminiAPIKey)
	assert.Equal(t, "videos", config.BigQueryDataSource.IndexTable)
	assert.Equal(t, "videos", config.PgVector.Table)
	assert.Equal(t, "postgres://localhost/media", config.PgVector.DSN)
}

func TestLoadDotEnvIgnoresMissingFile(t *testing.T) {
	assert.NoError(t, cloud.LoadDotEnv(filepath.Join(t.TempDir(), ".env")))
}

func TestLoadDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	const unset = "MEDIA_INDEXER_DOTENV_UNSET"
	clearEnv(t)
	t.Setenv(cloud.EnvLocation, "set-by-shell")
	require.NoError(t, os.Unsetenv(unset))
	t.Cleanup(func() { _ = os.Unsetenv(unset) })

	file := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(file, []byte("GOOGLE_CLOUD_LOCATION=from-file\n"+unset+"=from-file\n"), 0o644))

	require.NoError(t, cloud.LoadDotEnv(file))
	assert.Equal(t, "set-by-shell", os.Getenv(cloud.EnvLocation))
	assert.Equal(t, "from-file", os.Getenv(unset))
}

func validConfig() *cloud.Config {
	config := cloud.NewConfig()
	config.Application.GoogleProjectId = "p"
	config.BigQueryDataSource = cloud.BigQueryDataSource{DatasetName: "ds", IndexTable: "t"}
	config.EmbeddingModels[cloud.DefaultEmbeddingModel] = cloud.VertexAiEmbeddingModel{Model: "e"}
	config.AgentModels[cloud.VisionAgentModel] = cloud.VertexAiLLMModel{Model: "v"}
	config.AgentModels[cloud.TranscriptAgentModel] = cloud.VertexAiLLMModel{Model: "t"}
	return config
}

func TestValidate(t *testing.T) {
	assert.NoError(t, validConfig().Validate())

	missingCreds := validConfig()
	missingCreds.Application.GoogleProjectId = ""
	assert.Error(t, missingCreds.Validate())

	badFrames := validConfig()
	badFrames.Pipeline.FrameCount = 0
	assert.ErrorContains(t, badFrames.Validate(), "frame_count")

	pg := validConfig()
	pg.Pipeline.IndexBackend = cloud.IndexBackendPgVector
	assert.ErrorContains(t, pg.Validate(), "PGVECTOR_DSN")
	pg.PgVector = cloud.PgVector{DSN: "postgres://x", Table: "media"}
	assert.NoError(t, pg.Validate())

	unknown := validConfig()
	unknown.Pipeline.Transcriber = "whisper"
	assert.ErrorContains(t, unknown.Validate(), "whisper")
}

func TestAudioFileNameFollowsTranscriber(t *testing.T) {
	config := cloud.NewConfig()
	assert.Equal(t, "audio.mp3", config.AudioFileName())
	config.Pipeline.Transcriber = cloud.TranscriberSpeech
	assert.Equal(t, "audio.wav", config.AudioFileName())
}

type fakeModels struct {
	calls    int
	response *genai.GenerateContentResponse
	err      error
	vectors  [][]float32
}

func (f *fakeModels) GenerateContent(_ context.Context, _ string, _ []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls++
	return f.response, f.err
}

func (f *fakeModels) EmbedContent(_ context.Context, _ string, _ []*genai.Content, _ *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	resp := &genai.EmbedContentResponse{}
	for _, v := range f.vectors {
		resp.Embeddings = append(resp.Embeddings, &genai.ContentEmbedding{Values: v})
	}
	return resp, nil
}

func textResponse(parts ...string) *genai.GenerateContentResponse {
	content := &genai.Content{Role: genai.RoleModel}
	for _, p := range parts {
		content.Parts = append(content.Parts, &genai.Part{Text: p})
	}
	return &genai.GenerateContentResponse{
		Candidates:    []*genai.Candidate{{Content: content}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 3, CandidatesTokenCount: 2},
	}
}

func TestGenerateMultiModalResponseDoesNotRetry(t *testing.T) {
	fake := &fakeModels{err: errors.New("quota exceeded")}
	model := cloud.NewQuotaAwareModel(&genai.GenerateContentConfig{}, "m", fake, 0)

	_, err := cloud.GenerateMultiModalResponse(context.Background(), nil, nil, model, nil)
	require.Error(t, err)
	assert.Equal(t, 1, fake.calls)
}

func TestGenerateMultiModalResponseJoinsParts(t *testing.T) {
	fake := &fakeModels{response: textResponse("```json", "A dog ", "runs.```")}
	model := cloud.NewQuotaAwareModel(&genai.GenerateContentConfig{}, "m", fake, 5)

	value, err := cloud.GenerateMultiModalResponse(context.Background(), nil, nil, model, nil)
	require.NoError(t, err)
	assert.Equal(t, "A dog runs.", value)
}

func TestQuotaAwareModelHonoursCancellation(t *testing.T) {
	fake := &fakeModels{response: textResponse("x")}
	model := cloud.NewQuotaAwareModel(&genai.GenerateContentConfig{}, "m", fake, 1)
	ctx, cancel := context.WithCancel(context.Background())

	_, err := model.GenerateContent(ctx, nil)
	require.NoError(t, err)
	cancel()
	_, err = model.GenerateContent(ctx, nil)
	assert.Error(t, err)
	assert.Equal(t, 1, fake.calls)
}

func TestEmbedText(t *testing.T) {
	fake := &fakeModels{vectors: [][]float32{{0.1, 0.2}}}
	model := cloud.NewQuotaAwareEmbeddingModel("e", 2, fake, 0)

	vector, err := model.EmbedText(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, vector)

	empty := cloud.NewQuotaAwareEmbeddingModel("e", 0, &fakeModels{}, 0)
	_, err = empty.EmbedText(context.Background(), "hello")
	assert.Error(t, err)
}

func TestGenAIClientConfigPrefersAPIKey(t *testing.T) {
	config := cloud.NewConfig()
	config.Application.GoogleProjectId = "p"
	assert.Equal(t, genai.BackendVertexAI, cloud.NewGenAIClientConfig(config).Backend)
	config.Application.GeminiAPIKey = "k"
	assert.Equal(t, genai.BackendGeminiAPI, cloud.NewGenAIClientConfig(config).Backend)
}

func TestThumbnailObject(t *testing.T) {
	obj := cloud.ThumbnailObject("bucket", "abc123")
	assert.Equal(t, "abc123/thumbnail.jpg", obj.Name)
	assert.Equal(t, "bucket", obj.Bucket)
}

type captureCommand struct {
	cor.BaseCommand
	got  string
	fail bool
	err  error
}

func (c *captureCommand) Execute(context cor.Context) {
	c.got, _ = context.Get(c.GetInputParam()).(string)
	if c.err != nil {
		context.AddError(c.GetName(), c.err)
	} else if c.fail {
		context.AddError(c.GetName(), errors.New("failed"))
	}
}

func TestListenerHandle(t *testing.T) {
	listener := cloud.NewPubSubListener(nil, "sub", nil)
	assert.False(t, listener.Handle(context.Background(), []byte("{}")))

	command := &captureCommand{BaseCommand: *cor.NewBaseCommand("capture")}
	listener.SetCommand(command)
	assert.True(t, listener.Handle(context.Background(), []byte(`{"folder_url":"x"}`)))
	assert.Equal(t, `{"folder_url":"x"}`, command.got)

	// SetCommand does not replace an attached command.
	listener.SetCommand(&captureCommand{BaseCommand: *cor.NewBaseCommand("other"), fail: true})
	assert.True(t, listener.Handle(context.Background(), []byte("again")))

	failing := cloud.NewPubSubListener(nil, "sub", &captureCommand{BaseCommand: *cor.NewBaseCommand("capture"), fail: true})
	assert.False(t, failing.Handle(context.Background(), []byte("{}")))
}

func TestListenerAcksMessagesThatCannotSucceed(t *testing.T) {
	cases := map[string]struct {
		err error
		ack bool
	}{
		"invalid reference": {model.Ef(model.KindInvalidReference, "drive.FolderID", "not a folder link"), true},
		"wrapped decode":    {fmt.Errorf("failed to list folder F: %w", model.Ef(model.KindDecode, "drive.ListFolder", "bad page")), true},
		"panic":             {fmt.Errorf("%w: folder-run: boom", cor.ErrCommandPanicked), true},
		"access":            {model.Ef(model.KindAccess, "drive.ListFolder", "403 Forbidden"), false},
		"service":           {model.Ef(model.KindService, "describe.Describe", "unavailable"), false},
		"cancelled":         {context.Canceled, false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			listener := cloud.NewPubSubListener(nil, "sub", &captureCommand{BaseCommand: *cor.NewBaseCommand("capture"), err: tc.err})
			assert.Equal(t, tc.ack, listener.Handle(context.Background(), []byte("{}")))
			assert.Equal(t, !tc.ack, cloud.Retryable(tc.err))
		})
	}
	assert.False(t, cloud.Retryable(nil))
}
