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

package cloud

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables that override the TOML files.
const (
	EnvProject   = "GOOGLE_CLOUD_PROJECT"
	EnvLocation  = "GOOGLE_CLOUD_LOCATION"
	EnvAPIKey    = "GEMINI_API_KEY"
	EnvIndexName = "MEDIA_INDEX_NAME"
	EnvPgDSN     = "PGVECTOR_DSN"
)

// LoadDotEnv loads a .env file from the working directory into the process
// environment. Variables already set win. A missing file is not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	present := make([]string, 0, len(files))
	for _, f := range files {
		if fileExists(f) {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	if err := godotenv.Load(present...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// ApplyEnvironment copies the credential and index variables onto c. An empty
// variable leaves the configured value untouched.
func (c *Config) ApplyEnvironment() {
	set := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
			slog.Debug("configuration overridden from environment", "variable", key)
		}
	}
	set(&c.Application.GoogleProjectId, EnvProject)
	set(&c.Application.GoogleLocation, EnvLocation)
	set(&c.Application.GeminiAPIKey, EnvAPIKey)
	set(&c.PgVector.DSN, EnvPgDSN)
	if v := os.Getenv(EnvIndexName); v != "" {
		c.BigQueryDataSource.IndexTable = v
		c.PgVector.Table = v
	}
}

// Load builds the full configuration: defaults, TOML files, .env file and
// environment overrides, then validation.
func Load() (*Config, error) {
	config := NewConfig()
	if err := LoadConfig(config); err != nil {
		return nil, err
	}
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}
	config.ApplyEnvironment()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}
