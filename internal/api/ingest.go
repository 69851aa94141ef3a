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

package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jaycherian/gcp-go-media-indexer/internal/cloud"
	"github.com/jaycherian/gcp-go-media-indexer/internal/core/model"
	"github.com/jaycherian/gcp-go-media-indexer/internal/core/workflow"
)

// IngestRouter registers POST /ingest. The run is synchronous; the response
// is its summary. A second request while a run is active gets 409.
func IngestRouter(r *gin.RouterGroup, s *Server) {
	r.POST("/ingest", func(c *gin.Context) {
		if s.Ingest == nil {
			unavailable(c, "ingestion")
			return
		}
		var trigger cloud.FolderTrigger
		if err := c.ShouldBindJSON(&trigger); err != nil || trigger.FolderURL == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": `body must be {"folder_url": "<shared folder link>"}`})
			return
		}

		ctx := c.Request.Context()
		if s.RunTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.RunTimeout)
			defer cancel()
		}

		summary, err := s.Ingest.TryRun(ctx, trigger.FolderURL)
		if summary != nil {
			s.mu.Lock()
			s.lastRun = summary
			s.mu.Unlock()
		}
		switch {
		case errors.Is(err, workflow.ErrRunInProgress):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case model.IsKind(err, model.KindInvalidReference):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case model.IsKind(err, model.KindAccess):
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		case err != nil && summary != nil:
			// Cancelled or timed out between items: report what was done.
			c.JSON(http.StatusGatewayTimeout, summary)
		case err != nil:
			slog.ErrorContext(ctx, "ingestion failed", "folder", trigger.FolderURL, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusOK, summary)
		}
	})
}
