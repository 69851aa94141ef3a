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

package drive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jaycherian/gcp-go-media-indexer/internal/core/model"
	"github.com/jaycherian/gcp-go-media-indexer/internal/fsx"
)

// confirmCookiePrefix marks a response that needs a confirmed second request.
const confirmCookiePrefix = "download_warning"

// Download saves the file behind itemRef into destDir and returns its path.
// When filename is empty the name comes from the Content-Disposition header,
// falling back to downloaded_file_{id}. Only the base name is ever used.
// A partially written file is removed on failure.
//
// Inputs:
//   - ctx: Bounds the download, body included.
//   - itemRef: A file share link.
//   - destDir: Created when missing.
//   - filename: Optional name of the local file.
//
// Outputs:
//   - string: The path of the downloaded file.
//   - error: An invalid reference or access error.
func (c *Client) Download(ctx context.Context, itemRef string, destDir string, filename string) (string, error) {
	const op = "drive.Download"
	id, err := c.ExtractFileID(itemRef)
	if err != nil {
		return "", err
	}
	if err := fsx.EnsureDir(destDir); err != nil {
		return "", err
	}

	query := url.Values{"export": {"download"}, "id": {id}}
	resp, err := c.get(ctx, c.endpoint("/uc", query))
	if err != nil {
		return "", model.E(model.KindAccess, op, err)
	}
	for _, cookie := range resp.Cookies() {
		if strings.HasPrefix(cookie.Name, confirmCookiePrefix) {
			resp.Body.Close()
			query.Set("confirm", cookie.Value)
			if resp, err = c.get(ctx, c.endpoint("/uc", query)); err != nil {
				return "", model.E(model.KindAccess, op, err)
			}
			break
		}
	}
	if resp, err = c.followWarningPage(ctx, resp); err != nil {
		return "", model.E(model.KindAccess, op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", model.Ef(model.KindAccess, op, "download of %s returned %s", id, resp.Status)
	}

	name := outputName(filename, resp.Header.Get("Content-Disposition"), id)
	path := filepath.Join(destDir, name)
	written, err := writeChunks(path, resp.Body)
	if err != nil {
		_ = fsx.RemoveIfExists(path)
		return "", model.E(model.KindAccess, op, err)
	}
	slog.InfoContext(ctx, "downloaded drive file", "id", id, "path", path, "bytes", written)
	return path, nil
}

func (c *Client) get(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	return c.http.Do(req)
}

// followWarningPage handles the HTML interstitial Drive serves instead of
// the cookie for files it cannot scan: the page holds a form whose action
// and hidden fields make up the confirmed download URL. Any other response
// is returned as is.
func (c *Client) followWarningPage(ctx context.Context, resp *http.Response) (*http.Response, error) {
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		return resp, nil
	}
	page, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, err
	}
	form := doc.Find("form#download-form").First()
	action, ok := form.Attr("action")
	if !ok {
		// Not a warning page; hand the body back untouched.
		resp.Body = io.NopCloser(bytes.NewReader(page))
		return resp, nil
	}
	target, err := resp.Request.URL.Parse(action)
	if err != nil {
		return nil, fmt.Errorf("bad download form action %q: %w", action, err)
	}
	query := target.Query()
	form.Find("input[type=hidden]").Each(func(_ int, s *goquery.Selection) {
		if name := s.AttrOr("name", ""); name != "" {
			query.Set(name, s.AttrOr("value", ""))
		}
	})
	target.RawQuery = query.Encode()
	return c.get(ctx, target.String())
}

// outputName picks the local file name.
func outputName(explicit string, contentDisposition string, id string) string {
	name := explicit
	if name == "" && contentDisposition != "" {
		if _, params, err := mime.ParseMediaType(contentDisposition); err == nil {
			name = params["filename"]
		}
	}
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == ".." || name == string(filepath.Separator) {
		name = "downloaded_file_" + id
	}
	return name
}

// writeChunks copies body to path through a ChunkSize buffer.
func writeChunks(path string, body io.Reader) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	buf := make([]byte, ChunkSize)
	var written int64
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, err := f.Write(buf[:n]); err != nil {
				_ = f.Close()
				return written, err
			}
			written += int64(n)
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			_ = f.Close()
			return written, readErr
		}
	}
	return written, f.Close()
}
