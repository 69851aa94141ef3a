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

package commands

import (
	"github.com/jaycherian/gcp-go-media-indexer/internal/core/cor"
)

// AudioTranscribe transcribes the extracted soundtrack.
type AudioTranscribe struct {
	cor.BaseCommand
	transcriber Transcriber
}

// NewAudioTranscribe is the constructor for AudioTranscribe.
func NewAudioTranscribe(name string, transcriber Transcriber) *AudioTranscribe {
	return &AudioTranscribe{BaseCommand: *cor.NewBaseCommand(name), transcriber: transcriber}
}

// IsExecutable requires the audio file.
func (c *AudioTranscribe) IsExecutable(context cor.Context) bool {
	return context != nil && context.GetContext() != nil && hasPath(context, ParamAudioPath)
}

// Execute stores the transcript under ParamTranscript. A silent soundtrack
// gives an empty transcript, which is not an error.
func (c *AudioTranscribe) Execute(context cor.Context) {
	text, err := c.transcriber.Transcribe(context.GetContext(), context.Get(ParamAudioPath).(string))
	if err != nil {
		c.Fail(context, err)
		return
	}
	c.Succeed(context)
	context.Add(ParamTranscript, text)
	context.Add(c.GetOutputParam(), text)
}
