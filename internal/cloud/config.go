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

// Package cloud defines the application configuration, loaded from TOML
// files, and the clients for the Google Cloud services the pipeline talks to.
//
// This file centralizes the configuration structs. One Config is built at
// startup and handed to every component that needs it; nothing else in the
// repository reads the process environment.
//
// Structs:
//   - Application: Project, location, logging and telemetry switches.
//   - Pipeline: Work directory, frame policy, backend selection.
//   - Drive: Folder listing and download settings.
//   - Storage: Optional thumbnail archive bucket.
//   - BigQueryDataSource / PgVector: The two vector index backends.
//   - Speech: Speech-to-Text transcriber settings.
//   - PromptTemplates: Prompts for frame description and transcription.
//   - VertexAiEmbeddingModel / VertexAiLLMModel: Model settings.
//   - TopicSubscription: Pub/Sub trigger subscriptions.
//   - Server: HTTP surface.
package cloud

import (
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// Backend and transcriber names accepted in [pipeline].
const (
	IndexBackendBigQuery = "bigquery"
	IndexBackendPgVector = "pgvector"
	TranscriberGemini    = "gemini"
	TranscriberSpeech    = "speech"
)

// Logical model keys looked up in EmbeddingModels and AgentModels.
const (
	DefaultEmbeddingModel = "default"
	VisionAgentModel      = "vision"
	TranscriptAgentModel  = "transcript"
)

// DefaultSafetySettings lets every content category through. Frames and
// soundtracks come from a folder the operator chose to index.
var DefaultSafetySettings = []*genai.SafetySetting{
	{
		Category:  genai.HarmCategoryDangerousContent,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHarassment,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHateSpeech,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategorySexuallyExplicit,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
}

// Application holds general settings.
type Application struct {
	Name                      string `toml:"name"`
	GoogleProjectId           string `toml:"google_project_id"`
	GoogleLocation            string `toml:"location"`
	GeminiAPIKey              string `toml:"gemini_api_key"` // Uses the Gemini API backend instead of Vertex AI when set.
	LogLevel                  string `toml:"log_level"`      // debug, info, warn, error.
	LogFormat                 string `toml:"log_format"`     // json or console.
	TelemetryEnabled          bool   `toml:"telemetry_enabled"`
	SignerServiceAccountEmail string `toml:"signer_service_account_email"`
}

// Pipeline holds the ingestion policy.
type Pipeline struct {
	WorkDir         string `toml:"work_dir"`         // Parent of videos/, frames/ and audios/.
	FrameCount      int    `toml:"frame_count"`      // Frames sampled per video.
	StrictUpsert    bool   `toml:"strict_upsert"`    // An upsert failure fails the item.
	DiagnosticQuery string `toml:"diagnostic_query"` // Similarity query issued after a run, empty to skip.
	DiagnosticTopK  int    `toml:"diagnostic_top_k"`
	FFmpegPath      string `toml:"ffmpeg_path"`
	FFprobePath     string `toml:"ffprobe_path"`
	Transcriber     string `toml:"transcriber"`   // gemini or speech.
	IndexBackend    string `toml:"index_backend"` // bigquery or pgvector.
}

// Drive holds the folder listing and download settings.
type Drive struct {
	BaseURL        string `toml:"base_url"`
	UserAgent      string `toml:"user_agent"`
	// TimeoutSeconds bounds the wait for response headers, not the body.
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// Storage holds the optional GCS archive.
type Storage struct {
	ArchiveBucket string `toml:"archive_bucket"` // Thumbnails are archived here when set.
}

// BigQueryDataSource locates the BigQuery vector table.
type BigQueryDataSource struct {
	DatasetName string `toml:"dataset"`
	IndexTable  string `toml:"index_table"`
}

// PgVector locates the Postgres vector table.
type PgVector struct {
	DSN        string `toml:"dsn"`
	Table      string `toml:"table"`
	Dimensions int    `toml:"dimensions"`
}

// Speech configures the Speech-to-Text transcriber.
type Speech struct {
	LanguageCode    string `toml:"language_code"`
	SampleRateHertz int32  `toml:"sample_rate_hertz"` // Also the rate wav soundtracks are extracted at.
}

// PromptTemplates holds the text templates sent with the media.
type PromptTemplates struct {
	FramesPrompt     string `toml:"frames"`
	TranscriptPrompt string `toml:"transcript"`
}

// VertexAiEmbeddingModel configures an embedding model.
type VertexAiEmbeddingModel struct {
	Model                string `toml:"model"`
	MaxRequestsPerMinute int    `toml:"max_requests_per_minute"`
	Dimensions           int32  `toml:"dimensions"`
}

// VertexAiLLMModel configures a generative model.
type VertexAiLLMModel struct {
	Model              string  `toml:"model"`
	SystemInstructions string  `toml:"system_instructions"`
	Temperature        float32 `toml:"temperature"`
	TopP               float32 `toml:"top_p"`
	TopK               float32 `toml:"top_k"`
	MaxTokens          int32   `toml:"max_tokens"`
	OutputFormat       string  `toml:"output_format"`
	RateLimit          int     `toml:"rate_limit"` // Requests per second.
}

// TopicSubscription configures one Pub/Sub trigger.
type TopicSubscription struct {
	Name             string `toml:"name"`
	DeadLetterTopic  string `toml:"dead_letter_topic"`
	TimeoutInSeconds int    `toml:"timeout_in_seconds"`
}

// Server configures the HTTP surface.
type Server struct {
	Port              int `toml:"port"`
	RunTimeoutSeconds int `toml:"run_timeout_seconds"`
}

// Config is the root of the configuration tree.
type Config struct {
	Application        Application                       `toml:"application"`
	Pipeline           Pipeline                          `toml:"pipeline"`
	Drive              Drive                             `toml:"drive"`
	Storage            Storage                           `toml:"storage"`
	BigQueryDataSource BigQueryDataSource                `toml:"big_query_data_source"`
	PgVector           PgVector                          `toml:"pgvector"`
	Speech             Speech                            `toml:"speech"`
	PromptTemplates    PromptTemplates                   `toml:"prompt_templates"`
	TopicSubscriptions map[string]TopicSubscription      `toml:"topic_subscriptions"`
	EmbeddingModels    map[string]VertexAiEmbeddingModel `toml:"embedding_models"`
	AgentModels        map[string]VertexAiLLMModel       `toml:"agent_models"`
	Server             Server                            `toml:"server"`
}

// NewConfig returns a Config holding the defaults every file may override.
// The maps are initialized so the TOML decoder can merge into them.
//
// Outputs:
//   - *Config: A Config with defaults applied.
func NewConfig() *Config {
	return &Config{
		Application: Application{
			Name:      "media-indexer",
			LogLevel:  "info",
			LogFormat: "json",
		},
		Pipeline: Pipeline{
			WorkDir:        ".",
			FrameCount:     10,
			StrictUpsert:   true,
			DiagnosticTopK: 5,
			FFmpegPath:     "ffmpeg",
			FFprobePath:    "ffprobe",
			Transcriber:    TranscriberGemini,
			IndexBackend:   IndexBackendBigQuery,
		},
		Drive: Drive{
			BaseURL:        "https://drive.google.com",
			TimeoutSeconds: 300,
		},
		Speech: Speech{
			LanguageCode:    "en-US",
			SampleRateHertz: 16000,
		},
		Server: Server{
			Port:              8080,
			RunTimeoutSeconds: 3600,
		},
		TopicSubscriptions: make(map[string]TopicSubscription),
		EmbeddingModels:    make(map[string]VertexAiEmbeddingModel),
		AgentModels:        make(map[string]VertexAiLLMModel),
	}
}

// Validate checks that the settings and credentials required by the
// selected backends are present. A failure here is fatal at startup.
func (c *Config) Validate() error {
	var errs []error
	if c.Application.GoogleProjectId == "" && c.Application.GeminiAPIKey == "" {
		errs = append(errs, errors.New("application.google_project_id (GOOGLE_CLOUD_PROJECT) or application.gemini_api_key (GEMINI_API_KEY) is required"))
	}
	if c.Pipeline.FrameCount < 1 {
		errs = append(errs, fmt.Errorf("pipeline.frame_count must be >= 1, got %d", c.Pipeline.FrameCount))
	}
	if _, ok := c.EmbeddingModels[DefaultEmbeddingModel]; !ok {
		errs = append(errs, fmt.Errorf("embedding_models.%s is required", DefaultEmbeddingModel))
	}
	if _, ok := c.AgentModels[VisionAgentModel]; !ok {
		errs = append(errs, fmt.Errorf("agent_models.%s is required", VisionAgentModel))
	}

	switch c.Pipeline.Transcriber {
	case TranscriberGemini:
		if _, ok := c.AgentModels[TranscriptAgentModel]; !ok {
			errs = append(errs, fmt.Errorf("agent_models.%s is required by the gemini transcriber", TranscriptAgentModel))
		}
	case TranscriberSpeech:
		if c.Application.GoogleProjectId == "" {
			errs = append(errs, errors.New("the speech transcriber requires application.google_project_id"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown pipeline.transcriber %q", c.Pipeline.Transcriber))
	}

	switch c.Pipeline.IndexBackend {
	case IndexBackendBigQuery:
		if c.Application.GoogleProjectId == "" {
			errs = append(errs, errors.New("the bigquery index requires application.google_project_id"))
		}
		if c.BigQueryDataSource.DatasetName == "" || c.BigQueryDataSource.IndexTable == "" {
			errs = append(errs, errors.New("big_query_data_source.dataset and index_table (MEDIA_INDEX_NAME) are required"))
		}
	case IndexBackendPgVector:
		if c.PgVector.DSN == "" {
			errs = append(errs, errors.New("pgvector.dsn (PGVECTOR_DSN) is required"))
		}
		if c.PgVector.Table == "" {
			errs = append(errs, errors.New("pgvector.table (MEDIA_INDEX_NAME) is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown pipeline.index_backend %q", c.Pipeline.IndexBackend))
	}
	return errors.Join(errs...)
}

// AudioFileName returns the name of the extracted soundtrack. Speech-to-Text
// needs uncompressed 16 kHz PCM, the Gemini transcriber takes mp3.
func (c *Config) AudioFileName() string {
	if c.Pipeline.Transcriber == TranscriberSpeech {
		return "audio.wav"
	}
	return "audio.mp3"
}
