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
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jaycherian/gcp-go-media-indexer/internal/core/model"
)

// fileIDPattern matches the /d/{id} segment of file links in the page source.
var fileIDPattern = regexp.MustCompile(`/d/([^/\\"]+)`)

// ListFolder returns the files of a publicly shared folder. Each distinct
// id is returned once, in the order it first appears in the listing.
//
// Inputs:
//   - ctx: Bounds the listing request.
//   - folderRef: A folder share link; it must contain "folders/".
//
// Outputs:
//   - []*model.ItemDescriptor: The files, with best effort names.
//   - error: An invalid reference or access error.
func (c *Client) ListFolder(ctx context.Context, folderRef string) ([]*model.ItemDescriptor, error) {
	const op = "drive.ListFolder"
	folderID, err := FolderID(folderRef)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/drive/folders/"+folderID, nil), nil)
	if err != nil {
		return nil, model.E(model.KindInvalidReference, op, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, model.E(model.KindAccess, op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, model.Ef(model.KindAccess, op, "folder %s returned %s; make sure it is shared publicly", folderID, resp.Status)
	}
	page, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, model.E(model.KindAccess, op, err)
	}

	items := c.parseListing(page, folderID)
	slog.InfoContext(ctx, "listed drive folder", "folder", folderID, "items", len(items))
	return items, nil
}

// parseListing extracts the file descriptors from a listing page.
func (c *Client) parseListing(page []byte, folderID string) []*model.ItemDescriptor {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		slog.Debug("listing is not parseable html, names fall back to the page source", "error", err)
		doc = nil
	}
	html := string(page)

	seen := make(map[string]struct{})
	items := make([]*model.ItemDescriptor, 0)
	for _, match := range fileIDPattern.FindAllStringSubmatch(html, -1) {
		id := match[1]
		if id == folderID {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		items = append(items, &model.ItemDescriptor{
			ID:        id,
			Name:      lookupName(doc, html, id),
			SourceURL: c.FileURL(id),
		})
	}
	return items
}

// lookupName finds a display name for id: first the labelled element
// carrying the id, then the first quoted string following the id in the
// page source, then a synthetic name.
func lookupName(doc *goquery.Document, html string, id string) string {
	if doc != nil {
		sel := doc.Find(fmt.Sprintf(`[data-id=%q]`, id)).First()
		for _, attr := range []string{"aria-label", "data-tooltip"} {
			if v := strings.TrimSpace(sel.AttrOr(attr, "")); v != "" {
				return v
			}
		}
	}
	pattern, err := regexp.Compile(regexp.QuoteMeta(id) + `[^"]*?"([^"]+)"`)
	if err == nil {
		if m := pattern.FindStringSubmatch(html); m != nil {
			return m[1]
		}
	}
	return "file_" + id
}
