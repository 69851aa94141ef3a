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

package describe_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/jaycherian/gcp-go-media-indexer/internal/cloud"
	"github.com/jaycherian/gcp-go-media-indexer/internal/core/model"
	"github.com/jaycherian/gcp-go-media-indexer/internal/describe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

var jpegMagic = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}

type fakeGenerator struct {
	calls    int
	contents []*genai.Content
	reply    string
	err      error
}

func (f *fakeGenerator) GenerateContent(_ context.Context, _ string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls++
	f.contents = contents
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(f.reply, genai.RoleModel)}},
	}, nil
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestListFrameImages(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "frame_0002.jpg"), jpegMagic)
	writeFile(t, filepath.Join(dir, "frame_0000.JPEG"), jpegMagic)
	writeFile(t, filepath.Join(dir, "frame_0001.png"), jpegMagic)
	writeFile(t, filepath.Join(dir, "notes.txt"), []byte("ignored"))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.jpg"), 0o755))

	images, err := describe.ListFrameImages(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "frame_0000.JPEG"),
		filepath.Join(dir, "frame_0001.png"),
		filepath.Join(dir, "frame_0002.jpg"),
	}, images)
}

func TestListFrameImagesErrors(t *testing.T) {
	_, err := describe.ListFrameImages(filepath.Join(t.TempDir(), "missing"))
	assert.True(t, model.IsKind(err, model.KindNotFound))

	empty := t.TempDir()
	writeFile(t, filepath.Join(empty, "readme.md"), []byte("x"))
	_, err = describe.ListFrameImages(empty)
	assert.True(t, model.IsKind(err, model.KindNoImages))
}

func TestMIMEType(t *testing.T) {
	dir := t.TempDir()
	sniffed := filepath.Join(dir, "frame.png")
	writeFile(t, sniffed, jpegMagic)
	assert.Equal(t, "image/jpeg", describe.MIMEType(sniffed))

	opaque := filepath.Join(dir, "audio.mp3")
	writeFile(t, opaque, []byte("not really audio"))
	assert.Equal(t, "audio/mpeg", describe.MIMEType(opaque))

	assert.Equal(t, "application/octet-stream", describe.MIMEType(filepath.Join(dir, "missing.bin")))
}

func TestDescribeFramesSendsPromptThenFramesInOrder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"frame_0001.jpg", "frame_0000.jpg"} {
		writeFile(t, filepath.Join(dir, name), append(append([]byte{}, jpegMagic...), name...))
	}
	fake := &fakeGenerator{reply: "A cat on a sofa."}
	d := describe.NewGeminiDescriber(cloud.NewQuotaAwareModel(&genai.GenerateContentConfig{}, "vision", fake, 0), "Describe the video.")

	text, err := d.DescribeFrames(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "A cat on a sofa.", text)
	assert.Equal(t, 1, fake.calls)

	require.Len(t, fake.contents, 1)
	parts := fake.contents[0].Parts
	require.Len(t, parts, 3)
	assert.Equal(t, "Describe the video.", parts[0].Text)
	require.NotNil(t, parts[1].InlineData)
	assert.Equal(t, "image/jpeg", parts[1].InlineData.MIMEType)
	assert.Contains(t, string(parts[1].InlineData.Data), "frame_0000.jpg")
	assert.Contains(t, string(parts[2].InlineData.Data), "frame_0001.jpg")
}

func TestDescribeFramesErrors(t *testing.T) {
	fake := &fakeGenerator{err: errors.New("503 unavailable")}
	d := describe.NewGeminiDescriber(cloud.NewQuotaAwareModel(&genai.GenerateContentConfig{}, "vision", fake, 0), "p")

	_, err := d.DescribeFrames(context.Background(), t.TempDir())
	assert.True(t, model.IsKind(err, model.KindNoImages))
	assert.Zero(t, fake.calls)

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "frame_0000.jpg"), jpegMagic)
	_, err = d.DescribeFrames(context.Background(), dir)
	assert.True(t, model.IsKind(err, model.KindService))
	assert.Equal(t, 1, fake.calls)
}

func TestGeminiTranscriber(t *testing.T) {
	audio := filepath.Join(t.TempDir(), "audio.mp3")
	writeFile(t, audio, []byte("ID3 fake mp3"))
	fake := &fakeGenerator{reply: "  hello there \n"}
	tr := describe.NewGeminiTranscriber(cloud.NewQuotaAwareModel(&genai.GenerateContentConfig{}, "transcript", fake, 0), "Transcribe.")

	text, err := tr.Transcribe(context.Background(), audio)
	require.NoError(t, err)
	assert.Equal(t, "hello there", text)
	parts := fake.contents[0].Parts
	require.Len(t, parts, 2)
	assert.Equal(t, "Transcribe.", parts[0].Text)
	assert.Equal(t, "audio/mpeg", parts[1].InlineData.MIMEType)

	_, err = tr.Transcribe(context.Background(), filepath.Join(t.TempDir(), "none.mp3"))
	assert.True(t, model.IsKind(err, model.KindNotFound))

	fake.err = errors.New("quota")
	_, err = tr.Transcribe(context.Background(), audio)
	assert.True(t, model.IsKind(err, model.KindService))
}

type fakeRecognizer struct {
	config  *speechpb.RecognitionConfig
	audio   []byte
	calls   [][]byte
	results []*speechpb.SpeechRecognitionResult
	err     error
}

func (f *fakeRecognizer) Recognize(_ context.Context, config *speechpb.RecognitionConfig, audio []byte) ([]*speechpb.SpeechRecognitionResult, error) {
	f.config = config
	f.audio = audio
	f.calls = append(f.calls, audio)
	if f.results == nil {
		return []*speechpb.SpeechRecognitionResult{result(fmt.Sprintf("part %d.", len(f.calls)))}, f.err
	}
	return f.results, f.err
}

// wavFile builds a RIFF/WAVE file with an odd sized chunk before the samples.
func wavFile(samples []byte) []byte {
	var b bytes.Buffer
	chunk := func(id string, data []byte) {
		b.WriteString(id)
		_ = binary.Write(&b, binary.LittleEndian, uint32(len(data)))
		b.Write(data)
		if len(data)%2 == 1 {
			b.WriteByte(0)
		}
	}
	b.WriteString("RIFF")
	_ = binary.Write(&b, binary.LittleEndian, uint32(0))
	b.WriteString("WAVE")
	chunk("fmt ", make([]byte, 16))
	chunk("LIST", []byte("abc"))
	chunk("data", samples)
	return b.Bytes()
}

func result(alternatives ...string) *speechpb.SpeechRecognitionResult {
	r := &speechpb.SpeechRecognitionResult{}
	for _, a := range alternatives {
		r.Alternatives = append(r.Alternatives, &speechpb.SpeechRecognitionAlternative{Transcript: a})
	}
	return r
}

func TestSpeechTranscriberJoinsBestAlternatives(t *testing.T) {
	audio := filepath.Join(t.TempDir(), "audio.wav")
	writeFile(t, audio, []byte("RIFF"))
	fake := &fakeRecognizer{results: []*speechpb.SpeechRecognitionResult{
		result("Hello world.", "Yellow world."),
		result(),
		result(" How are you? "),
	}}

	text, err := describe.NewSpeechTranscriber(fake, "", 0).Transcribe(context.Background(), audio)
	require.NoError(t, err)
	assert.Equal(t, "Hello world. How are you?", text)
	assert.Equal(t, []byte("RIFF"), fake.audio)
	assert.Equal(t, speechpb.RecognitionConfig_LINEAR16, fake.config.Encoding)
	assert.Equal(t, int32(16000), fake.config.SampleRateHertz)
	assert.Equal(t, "en-US", fake.config.LanguageCode)
	assert.True(t, fake.config.EnableAutomaticPunctuation)
}

func TestSpeechTranscriberSilenceAndErrors(t *testing.T) {
	audio := filepath.Join(t.TempDir(), "audio.wav")
	writeFile(t, audio, []byte("RIFF"))

	silent := &fakeRecognizer{results: []*speechpb.SpeechRecognitionResult{}}
	text, err := describe.NewSpeechTranscriber(silent, "fr-FR", 8000).Transcribe(context.Background(), audio)
	require.NoError(t, err)
	assert.Empty(t, text)
	assert.Equal(t, int32(8000), silent.config.SampleRateHertz)

	_, err = describe.NewSpeechTranscriber(&fakeRecognizer{err: errors.New("denied")}, "", 0).Transcribe(context.Background(), audio)
	assert.True(t, model.IsKind(err, model.KindService))
}

func TestSpeechTranscriberSplitsLongSoundtracks(t *testing.T) {
	samples := make([]byte, 25)
	for i := range samples {
		samples[i] = byte(i + 1)
	}
	audio := filepath.Join(t.TempDir(), "audio.wav")
	writeFile(t, audio, wavFile(samples))

	fake := &fakeRecognizer{}
	text, err := describe.NewSpeechTranscriber(fake, "", 0).WithMaxRequestBytes(11).Transcribe(context.Background(), audio)
	require.NoError(t, err)

	// Header bytes are never sent and each request holds whole samples.
	require.Len(t, fake.calls, 3)
	assert.Equal(t, samples[0:10], fake.calls[0])
	assert.Equal(t, samples[10:20], fake.calls[1])
	assert.Equal(t, samples[20:25], fake.calls[2])
	assert.Equal(t, "part 1. part 2. part 3.", text)
}

func TestSpeechTranscriberSendsSmallFilesWhole(t *testing.T) {
	audio := filepath.Join(t.TempDir(), "audio.wav")
	data := wavFile(make([]byte, 8))
	writeFile(t, audio, data)

	fake := &fakeRecognizer{}
	_, err := describe.NewSpeechTranscriber(fake, "", 0).Transcribe(context.Background(), audio)
	require.NoError(t, err)
	require.Len(t, fake.calls, 1)
	assert.Equal(t, data, fake.calls[0])
}
