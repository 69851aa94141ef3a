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

// Package services contains the read side of the index: similarity search by
// text and signed links to archived thumbnails.
package services

import (
	"context"
	"sort"
	"strings"

	"github.com/jaycherian/gcp-go-media-indexer/internal/core/model"
)

// Embedder turns a query into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SimilarityIndex answers nearest neighbour queries.
type SimilarityIndex interface {
	QuerySimilar(ctx context.Context, vector []float32, k int) ([]*model.Match, error)
}

// SearchService embeds a text query with the same model used at ingestion
// and looks it up in the vector index.
type SearchService struct {
	Embedder Embedder
	Index    SimilarityIndex
}

// NewSearchService is the constructor for SearchService.
func NewSearchService(embedder Embedder, index SimilarityIndex) *SearchService {
	return &SearchService{Embedder: embedder, Index: index}
}

// FindSimilar returns at most maxResults items ranked by similarity to query.
//
// Inputs:
//   - ctx: The context for the request, used for cancellation, deadlines, and tracing.
//   - query: The natural language search string, e.g. "a dog running on a beach".
//   - maxResults: The k of the nearest neighbour search. Below 1 nothing is returned.
//
// Outputs:
//   - []*model.Match: The matches, highest score first.
//   - error: A service error when embedding or the index query fails.
func (s *SearchService) FindSimilar(ctx context.Context, query string, maxResults int) ([]*model.Match, error) {
	out := make([]*model.Match, 0)
	if maxResults < 1 || strings.TrimSpace(query) == "" {
		return out, nil
	}
	vector, err := s.Embedder.Embed(ctx, query)
	if err != nil {
		return out, err
	}
	matches, err := s.Index.QuerySimilar(ctx, vector, maxResults)
	if err != nil {
		return out, err
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > maxResults {
		matches = matches[:maxResults]
	}
	return matches, nil
}
