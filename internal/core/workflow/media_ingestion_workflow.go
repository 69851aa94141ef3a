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

// Package workflow assembles the ingestion commands into pipelines. This
// file defines MediaIngestionWorkflow, the per-item chain, and the run loop
// that feeds it every item of a shared folder.
//
// Logic Flow:
//  1. Run lists the folder. A listing failure ends the run with an error.
//  2. Items are processed one at a time, in listing order. Each gets a
//     fresh cor.Context, so nothing leaks from one item into the next.
//  3. The chain stops at the first failing command; the finally sequence
//     removes the item's local artifacts whatever happened.
//  4. The outcome of every item is added to the RunSummary. A failed item
//     never stops the run, a cancelled context does, between items.
//  5. An optional diagnostic similarity query runs at the end.
package workflow

import (
	goctx "context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/jaycherian/gcp-go-media-indexer/internal/cloud"
	"github.com/jaycherian/gcp-go-media-indexer/internal/core/commands"
	"github.com/jaycherian/gcp-go-media-indexer/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-indexer/internal/core/model"
	"github.com/jaycherian/gcp-go-media-indexer/internal/fsx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Command names, also used as FailedStage in item results.
const (
	StageDownload   = "drive-download"
	StageAudio      = "audio-extract"
	StageFrames     = "frame-extract"
	StageDescribe   = "frame-describe"
	StageTranscribe = "audio-transcribe"
	StageCombine    = "description-combine"
	StageEmbed      = "text-embed"
	StageUpsert     = "index-upsert"
	StageThumbnail  = "thumbnail-archive"
	StageCleanup    = "artifact-cleanup"
)

// ErrRunInProgress is returned by TryRun while another run holds the work
// directories.
var ErrRunInProgress = errors.New("an ingestion run is already in progress")

// Searcher runs the diagnostic query.
type Searcher interface {
	FindSimilar(ctx goctx.Context, query string, maxResults int) ([]*model.Match, error)
}

// Dependencies are the collaborators of the ingestion chain. Uploader and
// Searcher are optional.
type Dependencies struct {
	Fetcher        commands.Fetcher
	Sampler        commands.Sampler
	AudioExtractor commands.AudioExtractor
	Describer      commands.FrameDescriber
	Transcriber    commands.Transcriber
	Embedder       commands.Embedder
	Store          commands.IndexStore
	Uploader       commands.Uploader
	Searcher       Searcher
}

// WorkDirs are the fixed directories every item is processed in.
type WorkDirs struct {
	Videos string
	Frames string
	Audios string
}

// NewWorkDirs places videos/, frames/ and audios/ under root.
func NewWorkDirs(root string) WorkDirs {
	return WorkDirs{
		Videos: filepath.Join(root, "videos"),
		Frames: filepath.Join(root, "frames"),
		Audios: filepath.Join(root, "audios"),
	}
}

// Ensure creates the directories.
func (w WorkDirs) Ensure() error {
	for _, dir := range []string{w.Videos, w.Frames, w.Audios} {
		if err := fsx.EnsureDir(dir); err != nil {
			return fmt.Errorf("failed to create work directory %s: %w", dir, err)
		}
	}
	return nil
}

// MediaIngestionWorkflow turns the videos of a shared folder into index
// records.
type MediaIngestionWorkflow struct {
	cor.BaseCommand
	config *cloud.Config
	deps   Dependencies
	dirs   WorkDirs
	chain  cor.Chain
	mu     sync.Mutex // One run at a time: the work directories are shared.
}

// NewMediaIngestionWorkflow is the constructor for MediaIngestionWorkflow.
//
// Inputs:
//   - config: The application configuration. The pipeline section sets the
//     work directory, frame count, audio format and upsert policy.
//   - deps: The collaborators. Every field but Uploader and Searcher is required.
//
// Outputs:
//   - *MediaIngestionWorkflow: The workflow, with its chain built.
func NewMediaIngestionWorkflow(config *cloud.Config, deps Dependencies) *MediaIngestionWorkflow {
	w := &MediaIngestionWorkflow{
		BaseCommand: *cor.NewBaseCommand("media-ingestion"),
		config:      config,
		deps:        deps,
		dirs:        NewWorkDirs(config.Pipeline.WorkDir),
	}
	w.initializeChain()
	return w
}

func (w *MediaIngestionWorkflow) initializeChain() {
	out := cor.NewBaseChain(w.GetName())

	out.AddCommand(commands.NewDriveDownload(StageDownload, w.deps.Fetcher, w.dirs.Videos))
	out.AddCommand(commands.NewAudioExtract(StageAudio, w.deps.AudioExtractor, w.dirs.Audios, w.config.AudioFileName()))
	out.AddCommand(commands.NewFrameExtract(StageFrames, w.deps.Sampler, w.dirs.Frames, w.config.Pipeline.FrameCount))
	out.AddCommand(commands.NewFrameDescribe(StageDescribe, w.deps.Describer))
	out.AddCommand(commands.NewAudioTranscribe(StageTranscribe, w.deps.Transcriber))
	out.AddCommand(commands.NewDescriptionCombine(StageCombine))
	out.AddCommand(commands.NewTextEmbed(StageEmbed, w.deps.Embedder))
	out.AddCommand(commands.NewIndexUpsert(StageUpsert, w.deps.Store, w.config.Pipeline.StrictUpsert))
	if w.deps.Uploader != nil && w.config.Storage.ArchiveBucket != "" {
		out.AddCommand(commands.NewThumbnailArchive(StageThumbnail, w.deps.Uploader, w.config.Storage.ArchiveBucket))
	}

	out.AddFinally(commands.NewArtifactCleanup(StageCleanup))

	w.chain = out
}

// Dirs returns the work directories.
func (w *MediaIngestionWorkflow) Dirs() WorkDirs {
	return w.dirs
}

// IsExecutable requires an item descriptor.
func (w *MediaIngestionWorkflow) IsExecutable(context cor.Context) bool {
	return context != nil && context.GetContext() != nil && commands.Item(context) != nil
}

// Execute runs the per-item chain on context.
func (w *MediaIngestionWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
}

// ProcessItem runs one item through the chain and reports its outcome.
// It never returns an error and never panics: failures are part of the result.
func (w *MediaIngestionWorkflow) ProcessItem(ctx goctx.Context, item *model.ItemDescriptor) (result *model.ItemResult) {
	started := time.Now()
	spanCtx, span := w.Tracer.Start(ctx, "process-item")
	defer span.End()
	span.SetAttributes(attribute.String("item.id", item.ID), attribute.String("item.name", item.Name))

	chCtx := cor.NewBaseContext()
	chCtx.SetContext(spanCtx)
	chCtx.Add(commands.ParamItem, item)
	chCtx.Add(commands.ParamState, model.StatePending)
	chCtx.Add(cor.CtxIn, item)
	// The chain cleans up in its finally sequence; this covers a panic
	// before the chain starts.
	defer chCtx.Close()
	// Commands panicking are recorded by the chain; this catches the rest.
	defer func() {
		if r := recover(); r != nil {
			stage, _ := chCtx.FirstError()
			if stage == "" {
				stage = w.GetName()
			}
			result = &model.ItemResult{
				Item:        *item,
				State:       model.StateFailed,
				FailedStage: stage,
				Err:         fmt.Errorf("%w: %s: %v", cor.ErrCommandPanicked, stage, r),
				Duration:    time.Since(started),
			}
			span.SetStatus(codes.Error, "item panicked")
			slog.ErrorContext(spanCtx, "item panicked",
				"item", item.ID, "stage", stage, "reached", commands.State(chCtx).String(), "panic", r)
		}
	}()

	w.Execute(chCtx)

	result = &model.ItemResult{Item: *item, Duration: time.Since(started)}
	if stage, err := chCtx.FirstError(); err != nil {
		result.State = model.StateFailed
		result.FailedStage = stage
		result.Err = err
		span.SetStatus(codes.Error, "item failed")
		slog.ErrorContext(spanCtx, "item failed",
			"item", item.ID, "name", item.Name, "stage", stage,
			"reached", commands.State(chCtx).String(), "error", err)
		return result
	}

	result.State = model.StateDone
	result.Stored, _ = chCtx.Get(commands.ParamStored).(bool)
	if upsertErr, ok := chCtx.Get(commands.ParamUpsertError).(error); ok {
		result.Err = upsertErr
	}
	span.SetStatus(codes.Ok, "item processed")
	slog.InfoContext(spanCtx, "item processed",
		"item", item.ID, "name", item.Name, "stored", result.Stored, "duration", result.Duration)
	return result
}
