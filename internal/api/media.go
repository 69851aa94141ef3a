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
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jaycherian/gcp-go-media-indexer/internal/core/model"
)

// MediaRouter registers the read side of the index.
func MediaRouter(r *gin.RouterGroup, s *Server) {
	media := r.Group("/media")
	{
		media.GET("", func(c *gin.Context) {
			if s.Search == nil {
				unavailable(c, "search")
				return
			}
			query := c.Query("s")
			if len(query) == 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "missing query parameter s"})
				return
			}
			count, err := strconv.Atoi(c.DefaultQuery("count", strconv.Itoa(DefaultResultCount)))
			if err != nil || count < 1 {
				count = DefaultResultCount
			}

			matches, err := s.Search.FindSimilar(c.Request.Context(), query, count)
			if err != nil {
				slog.ErrorContext(c.Request.Context(), "search failed", "query", query, "error", err)
				c.JSON(http.StatusBadGateway, gin.H{"error": "search failed"})
				return
			}
			c.JSON(http.StatusOK, matches)
		})

		media.GET("/:id/thumbnail", func(c *gin.Context) {
			if s.Thumbnails == nil {
				unavailable(c, "thumbnail archive")
				return
			}
			expiry := s.URLExpiry
			if expiry <= 0 {
				expiry = 15 * time.Minute
			}
			url, err := s.Thumbnails.ThumbnailURL(c.Request.Context(), c.Param("id"), expiry)
			switch {
			case model.IsKind(err, model.KindNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			case err != nil:
				slog.ErrorContext(c.Request.Context(), "failed to sign thumbnail url", "id", c.Param("id"), "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "could not sign thumbnail url"})
			default:
				c.JSON(http.StatusOK, gin.H{"url": url})
			}
		})
	}
}
