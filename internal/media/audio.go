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

package media

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jaycherian/gcp-go-media-indexer/internal/core/model"
	"github.com/jaycherian/gcp-go-media-indexer/internal/fsx"
)

// DefaultSampleRate is the rate of wav soundtracks unless WithSampleRate
// says otherwise.
const DefaultSampleRate = 16000

// AudioExtractor writes the soundtrack of a video to its own file.
type AudioExtractor struct {
	runner     Runner
	ffmpeg     string
	prober     *Prober
	sampleRate int32
}

// NewAudioExtractor returns an extractor using the given ffmpeg binary.
func NewAudioExtractor(runner Runner, ffmpegPath string, prober *Prober) *AudioExtractor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &AudioExtractor{runner: runner, ffmpeg: ffmpegPath, prober: prober, sampleRate: DefaultSampleRate}
}

// WithSampleRate sets the rate wav soundtracks are resampled to. It must
// match the rate the transcriber declares. Non-positive values are ignored.
func (a *AudioExtractor) WithSampleRate(hz int32) *AudioExtractor {
	if hz > 0 {
		a.sampleRate = hz
	}
	return a
}

// VideoToAudio writes the audio track of videoPath to outputDir/filename and
// returns that path. The codec follows the extension: mp3, or mono 16 bit
// PCM at the configured sample rate for wav. A video without an audio track is a decode error.
func (a *AudioExtractor) VideoToAudio(ctx context.Context, videoPath string, outputDir string, filename string) (string, error) {
	const op = "media.VideoToAudio"
	if err := fsx.EnsureDir(outputDir); err != nil {
		return "", err
	}
	probe, err := a.prober.Probe(ctx, videoPath)
	if err != nil {
		return "", model.E(model.KindDecode, op, err)
	}
	if !probe.HasAudio {
		return "", model.Ef(model.KindDecode, op, "no audio stream in %s", filepath.Base(videoPath))
	}

	out := filepath.Join(outputDir, filepath.Base(filename))
	args := []string{"-hide_banner", "-loglevel", "error", "-y", "-i", videoPath, "-vn"}
	args = append(args, codecArgs(out, a.sampleRate)...)
	args = append(args, out)
	if _, err := a.runner.Run(ctx, a.ffmpeg, args...); err != nil {
		return "", model.E(model.KindDecode, op, err)
	}
	if !fsx.NonEmptyFile(out) {
		return "", model.Ef(model.KindDecode, op, "audio file %s was not written", out)
	}
	return out, nil
}

func codecArgs(out string, sampleRate int32) []string {
	switch strings.ToLower(filepath.Ext(out)) {
	case ".mp3":
		return []string{"-acodec", "libmp3lame", "-q:a", "4"}
	case ".wav":
		return []string{"-acodec", "pcm_s16le", "-ar", strconv.Itoa(int(sampleRate)), "-ac", "1"}
	default:
		return nil
	}
}
