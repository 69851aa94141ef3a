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

package test

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// NoAudioMarker in a fake video makes FakeFFmpeg report it without an
// audio stream.
const NoAudioMarker = "no-audio"

// JPEGHeader is written into every fake frame so content sniffing sees an
// image.
var JPEGHeader = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}

// FakeFFmpeg stands in for the ffprobe and ffmpeg binaries. ffprobe
// reports Duration and a video stream, plus an audio stream unless the
// file contains NoAudioMarker. ffmpeg writes its last argument.
type FakeFFmpeg struct {
	Duration string

	mu    sync.Mutex
	calls [][]string
}

// Run implements media.Runner.
func (f *FakeFFmpeg) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{name}, args...))
	f.mu.Unlock()

	target := args[len(args)-1]
	if strings.HasSuffix(name, "ffprobe") {
		data, err := os.ReadFile(target)
		if err != nil {
			return nil, fmt.Errorf("ffprobe: %s: %w", target, err)
		}
		streams := `{"index":0,"codec_type":"video"}`
		if !bytes.Contains(data, []byte(NoAudioMarker)) {
			streams += `,{"index":1,"codec_type":"audio"}`
		}
		return []byte(fmt.Sprintf(`{"streams":[%s],"format":{"duration":%q}}`, streams, f.duration())), nil
	}

	content := []byte("ID3 fake audio")
	if strings.HasSuffix(target, ".jpg") {
		content = append(append([]byte{}, JPEGHeader...), filepath.Base(target)...)
	}
	return nil, os.WriteFile(target, content, 0o644)
}

// Calls returns every invocation, program name first.
func (f *FakeFFmpeg) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.calls...)
}

func (f *FakeFFmpeg) duration() string {
	if f.Duration == "" {
		return "30.000000"
	}
	return f.Duration
}
