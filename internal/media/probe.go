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
	"encoding/json"
	"fmt"
	"strconv"
)

// ProbeResult is what the pipeline needs to know about a video.
type ProbeResult struct {
	Duration float64
	HasVideo bool
	HasAudio bool
}

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
	Format  ffprobeFormat   `json:"format"`
}

type ffprobeStream struct {
	Index     int    `json:"index"`
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"`
	Duration  string `json:"duration"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
}

// Prober reads container metadata with ffprobe.
type Prober struct {
	runner Runner
	path   string
}

// NewProber returns a Prober running the ffprobe binary at path.
func NewProber(runner Runner, path string) *Prober {
	if path == "" {
		path = "ffprobe"
	}
	return &Prober{runner: runner, path: path}
}

// Probe returns the duration and the stream kinds of file. The duration is
// taken from the container and falls back to the longest stream.
func (p *Prober) Probe(ctx context.Context, file string) (*ProbeResult, error) {
	output, err := p.runner.Run(ctx, p.path,
		"-v", "error",
		"-show_format",
		"-show_streams",
		"-of", "json",
		file,
	)
	if err != nil {
		return nil, err
	}
	var ff ffprobeOutput
	if err := json.Unmarshal(output, &ff); err != nil {
		return nil, fmt.Errorf("unreadable ffprobe output: %w", err)
	}

	result := &ProbeResult{}
	if dur, err := strconv.ParseFloat(ff.Format.Duration, 64); err == nil {
		result.Duration = dur
	}
	for _, s := range ff.Streams {
		switch s.CodecType {
		case "video":
			result.HasVideo = true
		case "audio":
			result.HasAudio = true
		}
		if result.Duration <= 0 {
			if dur, err := strconv.ParseFloat(s.Duration, 64); err == nil && dur > result.Duration {
				result.Duration = dur
			}
		}
	}
	return result, nil
}
