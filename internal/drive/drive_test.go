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

package drive_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-media-indexer/internal/core/model"
	"github.com/jaycherian/gcp-go-media-indexer/internal/drive"
	test "github.com/jaycherian/gcp-go-media-indexer/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, base string) *drive.Client {
	t.Helper()
	client, err := drive.NewClient(drive.WithBaseURL(base))
	require.NoError(t, err)
	return client
}

func TestFolderID(t *testing.T) {
	id, err := drive.FolderID("https://drive.google.com/drive/folders/1AbC_d-9?usp=sharing")
	require.NoError(t, err)
	assert.Equal(t, "1AbC_d-9", id)

	id, err = drive.FolderID("https://drive.google.com/drive/u/0/folders/XYZ/")
	require.NoError(t, err)
	assert.Equal(t, "XYZ", id)

	_, err = drive.FolderID("https://drive.google.com/file/d/abc/view")
	assert.True(t, model.IsKind(err, model.KindInvalidReference))

	_, err = drive.FolderID("https://drive.google.com/drive/folders/?usp=sharing")
	assert.True(t, model.IsKind(err, model.KindInvalidReference))
}

func TestExtractFileID(t *testing.T) {
	client := newClient(t, drive.DefaultBaseURL)

	cases := map[string]string{
		"https://drive.google.com/file/d/1a2B3c/view?usp=sharing": "1a2B3c",
		"https://drive.google.com/file/d/1a2B3c":                  "1a2B3c",
		"https://drive.google.com/open?id=ZZ_top-1":               "ZZ_top-1",
		"https://drive.google.com/uc?export=download&id=Q9":       "Q9",
	}
	for link, want := range cases {
		got, err := client.ExtractFileID(link)
		require.NoError(t, err, link)
		assert.Equal(t, want, got, link)
	}

	for _, bad := range []string{
		"https://example.com/file/d/abc/view",
		"https://drive.google.com/drive/my-drive",
		"https://drive.google.com/file/d//view",
	} {
		_, err := client.ExtractFileID(bad)
		assert.True(t, model.IsKind(err, model.KindInvalidReference), bad)
	}
}

func TestListFolderDeduplicatesInFirstOccurrenceOrder(t *testing.T) {
	fake := test.NewFakeDrive("FOLDER1",
		&test.FakeFile{ID: "idB", Name: "beach.mp4"},
		&test.FakeFile{ID: "idA", Name: "city walk.mov"},
	)
	defer fake.Close()
	client := newClient(t, fake.URL())

	items, err := client.ListFolder(context.Background(), fake.FolderURL())
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "idB", items[0].ID)
	assert.Equal(t, "beach.mp4", items[0].Name)
	assert.Equal(t, fake.URL()+"/file/d/idB/view", items[0].SourceURL)
	assert.Equal(t, "idA", items[1].ID)
	assert.Equal(t, "city walk.mov", items[1].Name)

	// The listing was requested with a browser user agent.
	assert.Contains(t, fake.Requests()[0], "/drive/folders/FOLDER1")
}

func TestListFolderNameFallbacks(t *testing.T) {
	page := `<html><body>
<script>var d = ["/d/withQuote","movie one.mp4"]; var e = "/d/noName";</script>
</body></html>`
	var userAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.UserAgent()
		_, _ = w.Write([]byte(page))
	}))
	defer server.Close()

	items, err := newClient(t, server.URL).ListFolder(context.Background(), server.URL+"/drive/folders/F")
	require.NoError(t, err)
	require.Len(t, items, 2)
	// Without a labelled element the next quoted run in the source is used.
	assert.Equal(t, ",", items[0].Name)
	assert.Equal(t, "file_noName", items[1].Name)
	assert.True(t, strings.HasPrefix(userAgent, "Mozilla/5.0"))
}

func TestListFolderErrors(t *testing.T) {
	fake := test.NewFakeDrive("FOLDER1")
	defer fake.Close()
	client := newClient(t, fake.URL())

	_, err := client.ListFolder(context.Background(), fake.URL()+"/file/d/abc/view")
	assert.True(t, model.IsKind(err, model.KindInvalidReference))

	_, err = client.ListFolder(context.Background(), fake.URL()+"/drive/folders/OTHER")
	assert.True(t, model.IsKind(err, model.KindAccess))
}

func TestListFolderEmpty(t *testing.T) {
	fake := test.NewFakeDrive("EMPTY")
	defer fake.Close()

	items, err := newClient(t, fake.URL()).ListFolder(context.Background(), fake.FolderURL())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestDownloadUsesContentDisposition(t *testing.T) {
	fake := test.NewFakeDrive("F", &test.FakeFile{ID: "vid1", Name: "clip.mp4", Data: []byte("movie-bytes")})
	defer fake.Close()
	dest := filepath.Join(t.TempDir(), "videos")

	path, err := newClient(t, fake.URL()).Download(context.Background(), fake.URL()+"/file/d/vid1/view", dest, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "clip.mp4"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "movie-bytes", string(data))
}

func TestDownloadExplicitNameAndFallback(t *testing.T) {
	fake := test.NewFakeDrive("F",
		&test.FakeFile{ID: "named", Name: "ignored.mp4", Data: []byte("a")},
		&test.FakeFile{ID: "anon", Data: []byte("b")},
	)
	defer fake.Close()
	client := newClient(t, fake.URL())
	dest := t.TempDir()

	path, err := client.Download(context.Background(), fake.URL()+"/open?id=named", dest, "../video.mp4")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "video.mp4"), path)

	path, err = client.Download(context.Background(), fake.URL()+"/open?id=anon", dest, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "downloaded_file_anon"), path)
}

func TestDownloadFollowsConfirmationCookie(t *testing.T) {
	big := make([]byte, 3*drive.ChunkSize+17)
	for i := range big {
		big[i] = byte(i % 251)
	}
	fake := test.NewFakeDrive("F", &test.FakeFile{ID: "big", Name: "big.mp4", Data: big, Confirm: test.ConfirmCookie})
	defer fake.Close()

	path, err := newClient(t, fake.URL()).Download(context.Background(), fake.URL()+"/file/d/big/view", t.TempDir(), "")
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, big, data)

	requests := fake.Requests()
	require.Len(t, requests, 2)
	assert.Contains(t, requests[1], "confirm=token-big")
}

func TestDownloadFollowsWarningForm(t *testing.T) {
	fake := test.NewFakeDrive("F", &test.FakeFile{ID: "huge", Name: "huge.mp4", Data: []byte("xyz"), Confirm: test.ConfirmForm})
	defer fake.Close()

	path, err := newClient(t, fake.URL()).Download(context.Background(), fake.URL()+"/file/d/huge/view", t.TempDir(), "")
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "xyz", string(data))
	assert.Contains(t, fake.Requests()[1], "/uc/confirmed")
}

func TestDownloadErrors(t *testing.T) {
	fake := test.NewFakeDrive("F", &test.FakeFile{ID: "locked", Name: "x.mp4", Status: http.StatusForbidden})
	defer fake.Close()
	client := newClient(t, fake.URL())
	dest := t.TempDir()

	_, err := client.Download(context.Background(), fake.URL()+"/file/d/locked/view", dest, "")
	assert.True(t, model.IsKind(err, model.KindAccess))

	_, err = client.Download(context.Background(), fake.URL()+"/file/d/missing/view", dest, "")
	assert.True(t, model.IsKind(err, model.KindAccess))

	_, err = client.Download(context.Background(), "https://example.com/x", dest, "")
	assert.True(t, model.IsKind(err, model.KindInvalidReference))

	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTimeoutDoesNotCutOffSlowBodies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="slow.mp4"`)
		w.WriteHeader(http.StatusOK)
		for i := 0; i < 4; i++ {
			_, _ = w.Write([]byte("chunk"))
			w.(http.Flusher).Flush()
			time.Sleep(60 * time.Millisecond)
		}
	}))
	defer srv.Close()

	client, err := drive.NewClient(drive.WithBaseURL(srv.URL), drive.WithTimeout(100*time.Millisecond))
	require.NoError(t, err)
	path, err := client.Download(context.Background(), srv.URL+"/file/d/slow/view", t.TempDir(), "")
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("chunk", 4), string(data))
}

func TestTimeoutBoundsSilentServers(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client, err := drive.NewClient(drive.WithBaseURL(srv.URL), drive.WithTimeout(50*time.Millisecond))
	require.NoError(t, err)
	_, err = client.Download(context.Background(), srv.URL+"/file/d/mute/view", t.TempDir(), "")
	assert.True(t, model.IsKind(err, model.KindAccess))
}
