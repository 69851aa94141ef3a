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
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/jaycherian/gcp-go-media-indexer/internal/core/model"
)

// MaxRequestAudioBytes bounds the audio sent inline in one request. The
// service rejects inline content above 10 MB, about five minutes of 16 kHz
// mono LINEAR16.
const MaxRequestAudioBytes = 9 << 20

// Recognizer runs one recognition over inline audio.
type Recognizer interface {
	Recognize(ctx context.Context, config *speechpb.RecognitionConfig, audio []byte) ([]*speechpb.SpeechRecognitionResult, error)
}

// ClientRecognizer uses the long running API, which accepts inline audio
// longer than the one minute limit of synchronous recognition. The inline
// size limit still applies; SpeechTranscriber splits longer soundtracks.
type ClientRecognizer struct {
	Client *speech.Client
}

// Recognize starts the operation and waits for it.
func (r *ClientRecognizer) Recognize(ctx context.Context, config *speechpb.RecognitionConfig, audio []byte) ([]*speechpb.SpeechRecognitionResult, error) {
	op, err := r.Client.LongRunningRecognize(ctx, &speechpb.LongRunningRecognizeRequest{
		Config: config,
		Audio:  &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Content{Content: audio}},
	})
	if err != nil {
		return nil, err
	}
	resp, err := op.Wait(ctx)
	if err != nil {
		return nil, err
	}
	return resp.GetResults(), nil
}

// SpeechTranscriber transcribes mono LINEAR16 wav files with Speech-to-Text.
// A soundtrack larger than one request is sent as consecutive segments of raw
// samples; a word straddling two segments may be lost.
type SpeechTranscriber struct {
	recognizer   Recognizer
	languageCode string
	sampleRate   int32
	maxBytes     int
}

// NewSpeechTranscriber returns a transcriber for languageCode audio.
func NewSpeechTranscriber(recognizer Recognizer, languageCode string, sampleRateHertz int32) *SpeechTranscriber {
	if languageCode == "" {
		languageCode = "en-US"
	}
	if sampleRateHertz == 0 {
		sampleRateHertz = 16000
	}
	return &SpeechTranscriber{
		recognizer:   recognizer,
		languageCode: languageCode,
		sampleRate:   sampleRateHertz,
		maxBytes:     MaxRequestAudioBytes,
	}
}

// WithMaxRequestBytes overrides MaxRequestAudioBytes.
func (s *SpeechTranscriber) WithMaxRequestBytes(n int) *SpeechTranscriber {
	if n > 1 {
		s.maxBytes = n
	}
	return s
}

// Transcribe joins the best alternative of every result with spaces.
func (s *SpeechTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	const op = "describe.SpeechTranscribe"
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return "", model.E(model.KindNotFound, op, err)
	}
	config := &speechpb.RecognitionConfig{
		Encoding:                   speechpb.RecognitionConfig_LINEAR16,
		SampleRateHertz:            s.sampleRate,
		AudioChannelCount:          1,
		LanguageCode:               s.languageCode,
		EnableAutomaticPunctuation: true,
	}

	var segments []string
	for _, part := range splitSamples(audio, s.maxBytes) {
		results, err := s.recognizer.Recognize(ctx, config, part)
		if err != nil {
			return "", model.E(model.KindService, op, err)
		}
		for _, r := range results {
			alts := r.GetAlternatives()
			if len(alts) == 0 {
				continue
			}
			if text := strings.TrimSpace(alts[0].GetTranscript()); text != "" {
				segments = append(segments, text)
			}
		}
	}
	return strings.Join(segments, " "), nil
}

// splitSamples returns audio as is when it fits in one request. Otherwise the
// samples of the wav data chunk are cut into pieces of at most maxBytes, on
// 16 bit boundaries.
func splitSamples(audio []byte, maxBytes int) [][]byte {
	if len(audio) <= maxBytes {
		return [][]byte{audio}
	}
	pcm := wavData(audio)
	size := maxBytes &^ 1
	parts := make([][]byte, 0, len(pcm)/size+1)
	for len(pcm) > 0 {
		n := min(size, len(pcm))
		parts = append(parts, pcm[:n])
		pcm = pcm[n:]
	}
	return parts
}

// wavData returns the payload of the RIFF "data" chunk, or audio unchanged
// when it is not a wav file.
func wavData(audio []byte) []byte {
	if len(audio) < 12 || !bytes.Equal(audio[0:4], []byte("RIFF")) || !bytes.Equal(audio[8:12], []byte("WAVE")) {
		return audio
	}
	for i := 12; i+8 <= len(audio); {
		id := audio[i : i+4]
		size := int(binary.LittleEndian.Uint32(audio[i+4 : i+8]))
		start := i + 8
		if bytes.Equal(id, []byte("data")) {
			// Streams written through a pipe leave the size at its maximum.
			if start+size > len(audio) {
				return audio[start:]
			}
			return audio[start : start+size]
		}
		i = start + size + size&1
	}
	return audio
}
