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
	"strings"

	"github.com/jaycherian/gcp-go-media-indexer/internal/cloud"
	"github.com/jaycherian/gcp-go-media-indexer/internal/core/model"
)

// GenAIEmbedder embeds text with a rate limited genai embedding model.
type GenAIEmbedder struct {
	model *cloud.QuotaAwareEmbeddingModel
}

// NewGenAIEmbedder wraps model.
func NewGenAIEmbedder(model *cloud.QuotaAwareEmbeddingModel) *GenAIEmbedder {
	return &GenAIEmbedder{model: model}
}

// Embed returns the vector of text. Blank text is rejected because the
// embedding service refuses it.
func (e *GenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	const op = "index.Embed"
	if strings.TrimSpace(text) == "" {
		return nil, model.Ef(model.KindService, op, "nothing to embed")
	}
	vector, err := e.model.EmbedText(ctx, text)
	if err != nil {
		return nil, model.E(model.KindService, op, err)
	}
	return vector, nil
}
