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
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"

	"github.com/jaycherian/gcp-go-media-indexer/internal/core/model"
	"github.com/jaycherian/gcp-go-media-indexer/internal/fsx"
)

// FrameNamePattern names frame files so that they sort in capture order.
const FrameNamePattern = "frame_%04d.jpg"

// ErrInvalidFrameCount is returned when fewer than one frame is requested.
var ErrInvalidFrameCount = errors.New("frame count must be at least 1")

// SampleTimestamps returns n timestamps spread evenly over [0, duration].
// The first is 0 and the last is duration; a single sample is taken at the
// end of the video.
func SampleTimestamps(duration float64, n int) []float64 {
	if n < 1 {
		return nil
	}
	if n == 1 {
		return []float64{duration}
	}
	timestamps := make([]float64, n)
	for i := range timestamps {
		timestamps[i] = min(float64(i)*duration/float64(n-1), duration)
	}
	// Rounding can leave the product just below duration.
	timestamps[n-1] = duration
	return timestamps
}

// FrameSampler writes still frames of a video to disk.
type FrameSampler struct {
	runner Runner
	ffmpeg string
	prober *Prober
}

// NewFrameSampler returns a sampler using the given ffmpeg and ffprobe paths.
func NewFrameSampler(runner Runner, ffmpegPath string, prober *Prober) *FrameSampler {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FrameSampler{runner: runner, ffmpeg: ffmpegPath, prober: prober}
}

// ExtractEvenlySpreadFrames decodes numFrames frames at evenly spread
// timestamps into outputDir, named frame_0000.jpg, frame_0001.jpg and so on.
// outputDir is created when missing. Frames already written stay on disk
// when an error is returned; the caller owns their removal.
//
// Inputs:
//   - videoPath: The local video file.
//   - outputDir: Where the frames are written.
//   - numFrames: How many frames to sample, at least 1.
//
// Outputs:
//   - *model.FrameSet: The frames in timestamp order.
//   - error: ErrInvalidFrameCount, or a decode error.
func (s *FrameSampler) ExtractEvenlySpreadFrames(ctx context.Context, videoPath string, outputDir string, numFrames int) (*model.FrameSet, error) {
	const op = "media.ExtractEvenlySpreadFrames"
	if numFrames < 1 {
		return nil, ErrInvalidFrameCount
	}
	if err := fsx.EnsureDir(outputDir); err != nil {
		return nil, err
	}

	probe, err := s.prober.Probe(ctx, videoPath)
	if err != nil {
		return nil, model.E(model.KindDecode, op, err)
	}
	if !probe.HasVideo {
		return nil, model.Ef(model.KindDecode, op, "no video stream in %s", filepath.Base(videoPath))
	}
	if probe.Duration <= 0 {
		return nil, model.Ef(model.KindDecode, op, "unknown duration for %s", filepath.Base(videoPath))
	}

	set := &model.FrameSet{Duration: probe.Duration}
	for i, t := range SampleTimestamps(probe.Duration, numFrames) {
		out := filepath.Join(outputDir, fmt.Sprintf(FrameNamePattern, i))
		if _, err := s.runner.Run(ctx, s.ffmpeg, frameArgs(videoPath, out, t, probe.Duration)...); err != nil {
			return set, model.E(model.KindDecode, op, fmt.Errorf("frame %d at %.3fs: %w", i, t, err))
		}
		if !fsx.NonEmptyFile(out) {
			return set, model.Ef(model.KindDecode, op, "frame %d at %.3fs was not written", i, t)
		}
		set.Frames = append(set.Frames, model.Frame{Index: i, Timestamp: t, Path: out})
	}
	slog.DebugContext(ctx, "frames extracted", "video", videoPath, "count", len(set.Frames), "duration", probe.Duration)
	return set, nil
}

// frameArgs seeks to t and writes one frame. A timestamp at the end of the
// stream has no frame to seek to, so the last second is decoded and the
// final frame kept instead.
func frameArgs(videoPath, out string, t, duration float64) []string {
	if t >= duration {
		return []string{"-hide_banner", "-loglevel", "error", "-y",
			"-sseof", "-1", "-i", videoPath,
			"-update", "1", "-q:v", "2", out}
	}
	return []string{"-hide_banner", "-loglevel", "error", "-y",
		"-ss", strconv.FormatFloat(t, 'f', 3, 64), "-i", videoPath,
		"-frames:v", "1", "-q:v", "2", out}
}
