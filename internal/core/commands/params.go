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

// Package commands provides the concrete implementations of the Chain of
// Responsibility (COR) pattern's Command interface. Each command is one
// stage of the per-item ingestion chain:
//
//	drive-download -> audio-extract -> frame-extract -> frame-describe ->
//	audio-transcribe -> description-combine -> text-embed -> index-upsert
//	[-> thumbnail-archive], finally artifact-cleanup
//
// Commands exchange values through well-known context keys, defined here,
// and advance the item state stored under ParamState when they succeed.
package commands

import (
	"context"

	"github.com/jaycherian/gcp-go-media-indexer/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-indexer/internal/core/model"
)

// Context keys shared by the ingestion commands.
const (
	ParamItem        = "__item__"         // *model.ItemDescriptor being processed.
	ParamState       = "__state__"        // model.ItemState reached so far.
	ParamVideoPath   = "__video_path__"   // Local path of the downloaded video.
	ParamAudioPath   = "__audio_path__"   // Local path of the extracted soundtrack.
	ParamFramesDir   = "__frames_dir__"   // Directory holding the sampled frames.
	ParamFrameSet    = "__frame_set__"    // *model.FrameSet.
	ParamVision      = "__vision__"       // Frame description text.
	ParamTranscript  = "__transcript__"   // Transcript text.
	ParamDescription = "__description__"  // *model.DescriptionRecord.
	ParamVector      = "__vector__"       // []float32 embedding.
	ParamStored      = "__stored__"       // bool, true once the index accepted the record.
	ParamUpsertError = "__upsert_error__" // error of a tolerated upsert failure.
	ParamFolderURL   = "__folder_url__"   // Folder reference of a triggered run.
)

// Fetcher lists shared folders and downloads their files.
type Fetcher interface {
	ListFolder(ctx context.Context, folderRef string) ([]*model.ItemDescriptor, error)
	Download(ctx context.Context, itemRef string, destDir string, filename string) (string, error)
}

// Sampler samples still frames from a video.
type Sampler interface {
	ExtractEvenlySpreadFrames(ctx context.Context, videoPath string, outputDir string, numFrames int) (*model.FrameSet, error)
}

// AudioExtractor writes the soundtrack of a video to a file.
type AudioExtractor interface {
	VideoToAudio(ctx context.Context, videoPath string, outputDir string, filename string) (string, error)
}

// FrameDescriber describes a directory of frames.
type FrameDescriber interface {
	DescribeFrames(ctx context.Context, framesDir string) (string, error)
}

// Transcriber transcribes an audio file.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// IndexStore writes index records.
type IndexStore interface {
	Upsert(ctx context.Context, record *model.IndexRecord) error
}

// Item returns the item of the current chain, or nil.
func Item(context cor.Context) *model.ItemDescriptor {
	item, _ := context.Get(ParamItem).(*model.ItemDescriptor)
	return item
}

// State returns the state reached by the current item.
func State(context cor.Context) model.ItemState {
	state, ok := context.Get(ParamState).(model.ItemState)
	if !ok {
		return model.StatePending
	}
	return state
}

func advance(context cor.Context, state model.ItemState) {
	context.Add(ParamState, state)
}

// hasString reports whether key holds a string, empty or not.
func hasString(context cor.Context, key string) bool {
	_, ok := context.Get(key).(string)
	return ok
}

// hasPath reports whether key holds a non empty string.
func hasPath(context cor.Context, key string) bool {
	v, ok := context.Get(key).(string)
	return ok && v != ""
}
