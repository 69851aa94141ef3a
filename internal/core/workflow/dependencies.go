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
	"time"

	"github.com/jaycherian/gcp-go-media-indexer/internal/cloud"
	"github.com/jaycherian/gcp-go-media-indexer/internal/core/services"
	"github.com/jaycherian/gcp-go-media-indexer/internal/describe"
	"github.com/jaycherian/gcp-go-media-indexer/internal/drive"
	"github.com/jaycherian/gcp-go-media-indexer/internal/index"
	"github.com/jaycherian/gcp-go-media-indexer/internal/media"
)

// NewDependencies builds the production collaborators from the
// configuration and the service clients.
//
// Logic Flow:
//  1. The Drive client gets the configured base URL, user agent and timeout.
//  2. ffprobe and ffmpeg run as subprocesses.
//  3. Frames are described by the "vision" agent model.
//  4. Soundtracks are transcribed by the "transcript" agent model or by
//     Speech-to-Text, per pipeline.transcriber.
//  5. Text is embedded with the "default" embedding model.
//  6. The index store is selected by pipeline.index_backend and its table
//     is created when missing.
//  7. Thumbnails are archived when a bucket and a storage client exist.
func NewDependencies(ctx goctx.Context, config *cloud.Config, clients *cloud.ServiceClients) (Dependencies, error) {
	var deps Dependencies

	opts := []drive.Option{drive.WithBaseURL(config.Drive.BaseURL)}
	if config.Drive.UserAgent != "" {
		opts = append(opts, drive.WithUserAgent(config.Drive.UserAgent))
	}
	if config.Drive.TimeoutSeconds > 0 {
		opts = append(opts, drive.WithTimeout(time.Duration(config.Drive.TimeoutSeconds)*time.Second))
	}
	fetcher, err := drive.NewClient(opts...)
	if err != nil {
		return deps, err
	}
	deps.Fetcher = fetcher

	runner := media.ExecRunner{}
	prober := media.NewProber(runner, config.Pipeline.FFprobePath)
	deps.Sampler = media.NewFrameSampler(runner, config.Pipeline.FFmpegPath, prober)
	deps.AudioExtractor = media.NewAudioExtractor(runner, config.Pipeline.FFmpegPath, prober).
		WithSampleRate(config.Speech.SampleRateHertz)

	vision, ok := clients.AgentModels[cloud.VisionAgentModel]
	if !ok {
		return deps, fmt.Errorf("agent model %q is not configured", cloud.VisionAgentModel)
	}
	deps.Describer = describe.NewGeminiDescriber(vision, config.PromptTemplates.FramesPrompt)

	switch config.Pipeline.Transcriber {
	case cloud.TranscriberSpeech:
		if clients.SpeechClient == nil {
			return deps, fmt.Errorf("speech transcriber selected but no speech client was created")
		}
		deps.Transcriber = describe.NewSpeechTranscriber(
			&describe.ClientRecognizer{Client: clients.SpeechClient},
			config.Speech.LanguageCode,
			config.Speech.SampleRateHertz)
	default:
		transcript, ok := clients.AgentModels[cloud.TranscriptAgentModel]
		if !ok {
			return deps, fmt.Errorf("agent model %q is not configured", cloud.TranscriptAgentModel)
		}
		deps.Transcriber = describe.NewGeminiTranscriber(transcript, config.PromptTemplates.TranscriptPrompt)
	}

	embeddingModel, ok := clients.EmbeddingModels[cloud.DefaultEmbeddingModel]
	if !ok {
		return deps, fmt.Errorf("embedding model %q is not configured", cloud.DefaultEmbeddingModel)
	}
	embedder := index.NewGenAIEmbedder(embeddingModel)
	deps.Embedder = embedder

	store, err := index.NewStore(config, clients)
	if err != nil {
		return deps, err
	}
	if err := index.Prepare(ctx, store); err != nil {
		return deps, err
	}
	deps.Store = store
	deps.Searcher = services.NewSearchService(embedder, store)

	if config.Storage.ArchiveBucket != "" && clients.StorageClient != nil {
		deps.Uploader = cloud.NewObjectArchiver(clients.StorageClient)
	}
	return deps, nil
}
