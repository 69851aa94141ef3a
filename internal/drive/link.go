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
	"net/url"
	"strings"

	"github.com/jaycherian/gcp-go-media-indexer/internal/core/model"
)

// FolderID returns the id of a folder link such as
// https://drive.google.com/drive/folders/{id}?usp=sharing.
func FolderID(folderRef string) (string, error) {
	const op = "drive.FolderID"
	_, rest, ok := strings.Cut(folderRef, "folders/")
	if !ok {
		return "", model.Ef(model.KindInvalidReference, op, "not a folder reference: %q", folderRef)
	}
	id := rest
	if i := strings.IndexAny(id, "?/#"); i >= 0 {
		id = id[:i]
	}
	if id == "" {
		return "", model.Ef(model.KindInvalidReference, op, "folder reference has no id: %q", folderRef)
	}
	return id, nil
}

// ExtractFileID returns the file id of a share link. Two shapes are
// supported: .../file/d/{id}/view and .../open?id={id}.
func (c *Client) ExtractFileID(link string) (string, error) {
	const op = "drive.ExtractFileID"
	if !strings.Contains(link, DriveHost) && !strings.Contains(link, c.base.Host) {
		return "", model.Ef(model.KindInvalidReference, op, "not a Drive link: %q", link)
	}
	if _, rest, ok := strings.Cut(link, "/file/d/"); ok {
		id := rest
		if i := strings.IndexAny(id, "/?#"); i >= 0 {
			id = id[:i]
		}
		if id != "" {
			return id, nil
		}
	} else if u, err := url.Parse(link); err == nil {
		if id := u.Query().Get("id"); id != "" {
			return id, nil
		}
	}
	return "", model.Ef(model.KindInvalidReference, op, "no file id in %q", link)
}
