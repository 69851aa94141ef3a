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

// Package api exposes search, thumbnails and ingestion over HTTP with gin.
//
// Routes, all under /api/v1:
//   - GET  /media?s=<query>&count=<k>: similarity search.
//   - GET  /media/:id/thumbnail: signed URL of the archived first frame.
//   - POST /ingest {"folder_url": "..."}: synchronous ingestion run.
//   - GET  /stats: summary of the last run started over HTTP.
//   - GET  /health: liveness.
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jaycherian/gcp-go-media-indexer/internal/core/model"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// DefaultResultCount is used when count is missing or invalid.
const DefaultResultCount = 5

// Searcher finds indexed items similar to a text query.
type Searcher interface {
	FindSimilar(ctx context.Context, query string, maxResults int) ([]*model.Match, error)
}

// Thumbnails signs links to archived thumbnails.
type Thumbnails interface {
	ThumbnailURL(ctx context.Context, itemID string, expires time.Duration) (string, error)
}

// Ingester runs the pipeline, refusing to queue behind a run in progress.
type Ingester interface {
	TryRun(ctx context.Context, folderRef string) (*model.RunSummary, error)
}

// Server holds the collaborators of the handlers. A nil collaborator
// disables its routes with 503.
type Server struct {
	Search     Searcher
	Thumbnails Thumbnails
	Ingest     Ingester
	RunTimeout time.Duration // Upper bound of an ingestion started over HTTP, 0 for none.
	URLExpiry  time.Duration // Lifetime of signed thumbnail URLs.

	mu      sync.Mutex
	lastRun *model.RunSummary
}

// NewRouter returns the gin engine serving every route.
func NewRouter(s *Server) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("media-indexer-server"))
	r.Use(cors.Default())

	apiV1 := r.Group("/api/v1")
	{
		MediaRouter(apiV1, s)
		IngestRouter(apiV1, s)
		Dashboard(apiV1, s)
		apiV1.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
	}
	return r
}

func unavailable(c *gin.Context, what string) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": what + " is not configured"})
}
