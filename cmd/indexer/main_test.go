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

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{"-folder", "https://drive.google.com/drive/folders/abc", "-query", "dogs", "-top-k", "3", "-pretty"})
	require.NoError(t, err)
	assert.Equal(t, "https://drive.google.com/drive/folders/abc", opts.folder)
	assert.Equal(t, "dogs", opts.query)
	assert.Equal(t, 3, opts.topK)
	assert.True(t, opts.pretty)

	opts, err = parseFlags([]string{"-query", "dogs"})
	require.NoError(t, err)
	assert.Equal(t, 5, opts.topK)
}

func TestParseFlagsRejectsUsageErrors(t *testing.T) {
	_, err := parseFlags(nil)
	assert.Error(t, err)

	_, err = parseFlags([]string{"-folder", "f", "-top-k", "0"})
	assert.Error(t, err)

	_, err = parseFlags([]string{"-unknown"})
	assert.Error(t, err)
}

func TestRunReturnsUsageCode(t *testing.T) {
	assert.Equal(t, exitUsage, run([]string{}))
}
