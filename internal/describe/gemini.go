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

package describe

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jaycherian/gcp-go-media-indexer/internal/cloud"
	"github.com/jaycherian/gcp-go-media-indexer/internal/core/cor"
	"github.com/jaycherian/gcp-go-media-indexer/internal/core/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"google.golang.org/genai"
)

// tokenCounters records model usage under a metric prefix.
type tokenCounters struct {
	input  metric.Int64Counter
	output metric.Int64Counter
}

func newTokenCounters(prefix string) tokenCounters {
	meter := otel.Meter(cor.MeterNamespace)
	input, err := meter.Int64Counter(prefix + ".token.input")
	if err != nil {
		slog.Warn("failed to create token counter", "prefix", prefix, "error", err)
	}
	output, err := meter.Int64Counter(prefix + ".token.output")
	if err != nil {
		slog.Warn("failed to create token counter", "prefix", prefix, "error", err)
	}
	return tokenCounters{input: input, output: output}
}

// GeminiDescriber describes a video from its frames in one request.
type GeminiDescriber struct {
	model    *cloud.QuotaAwareGenerativeAIModel
	prompt   string
	counters tokenCounters
}

// NewGeminiDescriber uses model with the frames prompt template.
func NewGeminiDescriber(model *cloud.QuotaAwareGenerativeAIModel, prompt string) *GeminiDescriber {
	return &GeminiDescriber{model: model, prompt: prompt, counters: newTokenCounters("describe.frames")}
}

// DescribeFrames sends every image of framesDir, in capture order, after
// the prompt and returns the model's description.
func (d *GeminiDescriber) DescribeFrames(ctx context.Context, framesDir string) (string, error) {
	const op = "describe.DescribeFrames"
	images, err := ListFrameImages(framesDir)
	if err != nil {
		return "", err
	}

	parts := []*genai.Part{genai.NewPartFromText(d.prompt)}
	for _, image := range images {
		data, err := os.ReadFile(image)
		if err != nil {
			return "", model.E(model.KindNotFound, op, err)
		}
		parts = append(parts, cloud.NewInlinePart(data, MIMEType(image)))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	text, err := cloud.GenerateMultiModalResponse(ctx, d.counters.input, d.counters.output, d.model, contents)
	if err != nil {
		return "", model.E(model.KindService, op, err)
	}
	slog.DebugContext(ctx, "frames described", "images", len(images), "chars", len(text))
	return text, nil
}

// GeminiTranscriber transcribes an audio file with a multimodal model.
type GeminiTranscriber struct {
	model    *cloud.QuotaAwareGenerativeAIModel
	prompt   string
	counters tokenCounters
}

// NewGeminiTranscriber uses model with the transcript prompt template.
func NewGeminiTranscriber(model *cloud.QuotaAwareGenerativeAIModel, prompt string) *GeminiTranscriber {
	return &GeminiTranscriber{model: model, prompt: prompt, counters: newTokenCounters("describe.transcript")}
}

// Transcribe returns the speech of audioPath as text. Silence yields "".
func (t *GeminiTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	const op = "describe.Transcribe"
	data, err := os.ReadFile(audioPath)
	if err != nil {
		return "", model.E(model.KindNotFound, op, err)
	}
	contents := []*genai.Content{genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromText(t.prompt),
		cloud.NewInlinePart(data, MIMEType(audioPath)),
	}, genai.RoleUser)}

	text, err := cloud.GenerateMultiModalResponse(ctx, t.counters.input, t.counters.output, t.model, contents)
	if err != nil {
		return "", model.E(model.KindService, op, fmt.Errorf("transcribing %s: %w", audioPath, err))
	}
	return strings.TrimSpace(text), nil
}
