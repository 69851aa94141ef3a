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

package workflow

import (
	goctx "context"
	"fmt"
	"log/slog"

	"github.com/jaycherian/gcp-go-media-indexer/internal/core/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Run ingests every item of folderRef, waiting for any run in progress.
//
// Inputs:
//   - ctx: Cancelling it stops the run before the next item.
//   - folderRef: A shared folder link, ".../folders/<id>".
//
// Outputs:
//   - *model.RunSummary: The outcome of every attempted item. It is
//     returned even when err is set, except when the folder cannot be listed.
//   - error: The listing failure, or the context error when cancelled.
func (w *MediaIngestionWorkflow) Run(ctx goctx.Context, folderRef string) (*model.RunSummary, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.run(ctx, folderRef)
}

// TryRun is Run, failing with ErrRunInProgress instead of waiting.
func (w *MediaIngestionWorkflow) TryRun(ctx goctx.Context, folderRef string) (*model.RunSummary, error) {
	if !w.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer w.mu.Unlock()
	return w.run(ctx, folderRef)
}

func (w *MediaIngestionWorkflow) run(ctx goctx.Context, folderRef string) (*model.RunSummary, error) {
	spanCtx, span := w.Tracer.Start(ctx, "ingestion-run")
	defer span.End()
	span.SetAttributes(attribute.String("folder", folderRef))

	if err := w.dirs.Ensure(); err != nil {
		span.SetStatus(codes.Error, "work directories")
		return nil, err
	}

	items, err := w.deps.Fetcher.ListFolder(spanCtx, folderRef)
	if err != nil {
		span.SetStatus(codes.Error, "listing failed")
		return nil, fmt.Errorf("failed to list folder %s: %w", folderRef, err)
	}

	summary := model.NewRunSummary(folderRef)
	slog.InfoContext(spanCtx, "run started", "run_id", summary.RunID, "folder", folderRef, "items", len(items))

	for i, item := range items {
		if err := spanCtx.Err(); err != nil {
			slog.WarnContext(spanCtx, "run cancelled", "run_id", summary.RunID, "remaining", len(items)-i)
			summary.Finish()
			span.SetStatus(codes.Error, "cancelled")
			return summary, err
		}
		summary.Add(w.ProcessItem(spanCtx, item))
	}
	if err := spanCtx.Err(); err != nil {
		summary.Finish()
		span.SetStatus(codes.Error, "cancelled")
		return summary, err
	}

	w.diagnose(spanCtx, summary)
	summary.Finish()

	slog.InfoContext(spanCtx, "run finished",
		"run_id", summary.RunID,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"partially_stored", summary.PartiallyStored,
	)
	span.SetStatus(codes.Ok, "run finished")
	return summary, nil
}

// diagnose issues the configured similarity query. A failure is logged and
// leaves the summary without diagnostics.
func (w *MediaIngestionWorkflow) diagnose(ctx goctx.Context, summary *model.RunSummary) {
	query := w.config.Pipeline.DiagnosticQuery
	if query == "" || w.deps.Searcher == nil {
		return
	}
	matches, err := w.deps.Searcher.FindSimilar(ctx, query, w.config.Pipeline.DiagnosticTopK)
	if err != nil {
		slog.WarnContext(ctx, "diagnostic query failed", "query", query, "error", err)
		return
	}
	for _, m := range matches {
		slog.InfoContext(ctx, "diagnostic match", "query", query, "id", m.ID, "name", m.Metadata.Name, "score", m.Score)
	}
	summary.Diagnostics = matches
}
