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

// Package cloud creates the service clients once at startup. Clients for
// backends the configuration does not select are left nil.
//
// Logic Flow:
//  1. genai is always created (Vertex AI, or the Gemini API with a key).
//  2. BigQuery or a pgx pool, depending on pipeline.index_backend.
//  3. Speech-to-Text when pipeline.transcriber is "speech".
//  4. Storage when a project is configured (archive and signed URLs).
//  5. IAM credentials when a signer service account is configured.
//  6. Pub/Sub plus one listener per configured subscription.
//  7. The agent and embedding models, wrapped with their rate limits.
package cloud

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/bigquery"
	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/pubsub"
	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"google.golang.org/genai"
)

// ServiceClients holds every external client used by the pipeline.
type ServiceClients struct {
	StorageClient   *storage.Client                   // Thumbnail archive and signed URLs.
	PubsubClient    *pubsub.Client                    // Folder triggers.
	GenAIClient     *genai.Client                     // Description, transcription and embeddings.
	BiqQueryClient  *bigquery.Client                  // BigQuery vector index.
	IAMClient       *credentials.IamCredentialsClient // Signs GCS URLs.
	SpeechClient    *speech.Client                    // Speech-to-Text transcriber.
	PgPool          *pgxpool.Pool                     // pgvector index.
	PubSubListeners map[string]*PubSubListener        // Keyed by the name in [topic_subscriptions].
	EmbeddingModels map[string]*QuotaAwareEmbeddingModel
	AgentModels     map[string]*QuotaAwareGenerativeAIModel
}

// Close releases every client that was created.
func (c *ServiceClients) Close() {
	if c.StorageClient != nil {
		_ = c.StorageClient.Close()
	}
	if c.PubsubClient != nil {
		_ = c.PubsubClient.Close()
	}
	if c.BiqQueryClient != nil {
		_ = c.BiqQueryClient.Close()
	}
	if c.IAMClient != nil {
		_ = c.IAMClient.Close()
	}
	if c.SpeechClient != nil {
		_ = c.SpeechClient.Close()
	}
	if c.PgPool != nil {
		c.PgPool.Close()
	}
}

// NewGenAIClientConfig selects the Gemini API backend when an API key is
// configured and Vertex AI otherwise.
func NewGenAIClientConfig(config *Config) *genai.ClientConfig {
	if config.Application.GeminiAPIKey != "" {
		return &genai.ClientConfig{
			APIKey:  config.Application.GeminiAPIKey,
			Backend: genai.BackendGeminiAPI,
		}
	}
	return &genai.ClientConfig{
		Project:  config.Application.GoogleProjectId,
		Location: config.Application.GoogleLocation,
		Backend:  genai.BackendVertexAI,
	}
}

// NewGenerateContentConfig translates a model entry into a genai config.
func NewGenerateContentConfig(values VertexAiLLMModel) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](values.Temperature),
		TopP:             genai.Ptr[float32](values.TopP),
		TopK:             genai.Ptr[float32](values.TopK),
		MaxOutputTokens:  values.MaxTokens,
		SafetySettings:   DefaultSafetySettings,
		ResponseMIMEType: values.OutputFormat,
	}
	if values.SystemInstructions != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: values.SystemInstructions}}}
	}
	return cfg
}

// NewCloudServiceClients creates the clients the configuration asks for.
// On failure every client created so far is closed.
func NewCloudServiceClients(ctx context.Context, config *Config) (cloud *ServiceClients, err error) {
	cloud = &ServiceClients{
		PubSubListeners: make(map[string]*PubSubListener),
		EmbeddingModels: make(map[string]*QuotaAwareEmbeddingModel),
		AgentModels:     make(map[string]*QuotaAwareGenerativeAIModel),
	}
	defer func() {
		if err != nil {
			cloud.Close()
			cloud = nil
		}
	}()

	cloud.GenAIClient, err = genai.NewClient(ctx, NewGenAIClientConfig(config))
	if err != nil {
		return cloud, fmt.Errorf("error creating genai client: %w", err)
	}

	switch config.Pipeline.IndexBackend {
	case IndexBackendBigQuery:
		cloud.BiqQueryClient, err = bigquery.NewClient(ctx, config.Application.GoogleProjectId)
		if err != nil {
			return cloud, fmt.Errorf("error creating bigquery client: %w", err)
		}
	case IndexBackendPgVector:
		cloud.PgPool, err = NewPgPool(ctx, config.PgVector.DSN)
		if err != nil {
			return cloud, err
		}
	}

	if config.Pipeline.Transcriber == TranscriberSpeech {
		cloud.SpeechClient, err = speech.NewClient(ctx)
		if err != nil {
			return cloud, fmt.Errorf("error creating speech client: %w", err)
		}
	}

	if config.Application.GoogleProjectId != "" {
		cloud.StorageClient, err = storage.NewClient(ctx)
		if err != nil {
			return cloud, fmt.Errorf("error creating storage client: %w", err)
		}
	}

	if config.Application.SignerServiceAccountEmail != "" {
		cloud.IAMClient, err = credentials.NewIamCredentialsClient(ctx)
		if err != nil {
			return cloud, fmt.Errorf("error creating iam credentials client: %w", err)
		}
	}

	if len(config.TopicSubscriptions) > 0 {
		cloud.PubsubClient, err = pubsub.NewClient(ctx, config.Application.GoogleProjectId)
		if err != nil {
			return cloud, fmt.Errorf("error creating pubsub client: %w", err)
		}
		// Commands are attached once the workflows are built.
		for subKey, values := range config.TopicSubscriptions {
			cloud.PubSubListeners[subKey] = NewPubSubListener(cloud.PubsubClient, values.Name, nil)
		}
	}

	for embKey, values := range config.EmbeddingModels {
		cloud.EmbeddingModels[embKey] = NewQuotaAwareEmbeddingModel(values.Model, values.Dimensions, cloud.GenAIClient.Models, values.MaxRequestsPerMinute)
	}
	for amKey, values := range config.AgentModels {
		cloud.AgentModels[amKey] = NewQuotaAwareModel(NewGenerateContentConfig(values), values.Model, cloud.GenAIClient.Models, values.RateLimit)
	}

	slog.Info("service clients created",
		"project", config.Application.GoogleProjectId,
		"location", config.Application.GoogleLocation,
		"index_backend", config.Pipeline.IndexBackend,
		"transcriber", config.Pipeline.Transcriber,
	)
	return cloud, nil
}

// NewPgPool opens a connection pool and checks it is reachable.
func NewPgPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("error creating pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error connecting to pgvector: %w", err)
	}
	return pool, nil
}
