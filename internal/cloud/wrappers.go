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

// Package cloud wraps the genai model handles with a client side rate limit.
// A call blocks until the limiter grants a token or the context is done; it
// is then made exactly once.
package cloud

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// ContentGenerator is the subset of *genai.Models used for generation.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// ContentEmbedder is the subset of *genai.Models used for embeddings.
type ContentEmbedder interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// QuotaAwareGenerativeAIModel is a rate limited generative model.
type QuotaAwareGenerativeAIModel struct {
	GenerativeContentConfig *genai.GenerateContentConfig
	ModelName               string
	ModelHandle             ContentGenerator
	RateLimit               *rate.Limiter
}

// NewQuotaAwareModel wraps a model handle. requestsPerSecond < 1 disables
// the limit.
func NewQuotaAwareModel(wrapped *genai.GenerateContentConfig, name string, handle ContentGenerator, requestsPerSecond int) *QuotaAwareGenerativeAIModel {
	return &QuotaAwareGenerativeAIModel{
		GenerativeContentConfig: wrapped,
		ModelName:               name,
		ModelHandle:             handle,
		RateLimit:               newLimiter(rate.Every(time.Second), requestsPerSecond),
	}
}

// GenerateContent waits for the limiter and calls the model once.
func (q *QuotaAwareGenerativeAIModel) GenerateContent(ctx context.Context, content []*genai.Content) (*genai.GenerateContentResponse, error) {
	if err := q.RateLimit.Wait(ctx); err != nil {
		return nil, err
	}
	return q.ModelHandle.GenerateContent(ctx, q.ModelName, content, q.GenerativeContentConfig)
}

// QuotaAwareEmbeddingModel is a rate limited embedding model.
type QuotaAwareEmbeddingModel struct {
	ModelName   string
	Dimensions  int32
	ModelHandle ContentEmbedder
	RateLimit   *rate.Limiter
}

// NewQuotaAwareEmbeddingModel wraps an embedding handle. requestsPerMinute < 1
// disables the limit.
func NewQuotaAwareEmbeddingModel(name string, dimensions int32, handle ContentEmbedder, requestsPerMinute int) *QuotaAwareEmbeddingModel {
	return &QuotaAwareEmbeddingModel{
		ModelName:   name,
		Dimensions:  dimensions,
		ModelHandle: handle,
		RateLimit:   perMinuteLimiter(requestsPerMinute),
	}
}

// EmbedText returns the embedding of text.
func (q *QuotaAwareEmbeddingModel) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if err := q.RateLimit.Wait(ctx); err != nil {
		return nil, err
	}
	var config *genai.EmbedContentConfig
	if q.Dimensions > 0 {
		config = &genai.EmbedContentConfig{OutputDimensionality: genai.Ptr[int32](q.Dimensions)}
	}
	resp, err := q.ModelHandle.EmbedContent(ctx, q.ModelName, []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, config)
	if err != nil {
		return nil, err
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, errors.New("embedding response contained no vectors")
	}
	return resp.Embeddings[0].Values, nil
}

func newLimiter(every rate.Limit, burst int) *rate.Limiter {
	if burst < 1 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(every, burst)
}

func perMinuteLimiter(requestsPerMinute int) *rate.Limiter {
	if requestsPerMinute < 1 {
		return newLimiter(rate.Inf, 0)
	}
	return newLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1)
}
