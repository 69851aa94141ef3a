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
	"context"
	"fmt"
	"io"
	"path"

	"cloud.google.com/go/storage"
)

// ThumbnailObjectName is the archive object holding an item's first frame.
const ThumbnailObjectName = "thumbnail.jpg"

// GCSObject identifies an object in Cloud Storage.
type GCSObject struct {
	Bucket   string // The name of the GCS bucket.
	Name     string // The name of the object.
	MIMEType string // The MIME type of the object (e.g., "image/jpeg").
}

// ThumbnailObject returns the archive location of an item's thumbnail.
func ThumbnailObject(bucket string, itemID string) GCSObject {
	return GCSObject{
		Bucket:   bucket,
		Name:     path.Join(itemID, ThumbnailObjectName),
		MIMEType: "image/jpeg",
	}
}

// ObjectArchiver writes objects to Cloud Storage.
type ObjectArchiver struct {
	client *storage.Client
}

// NewObjectArchiver wraps client.
func NewObjectArchiver(client *storage.Client) *ObjectArchiver {
	return &ObjectArchiver{client: client}
}

// Upload copies r to obj. The object only becomes visible once the writer
// is closed, so a failed copy leaves nothing behind.
func (a *ObjectArchiver) Upload(ctx context.Context, obj GCSObject, r io.Reader) error {
	writer := a.client.Bucket(obj.Bucket).Object(obj.Name).NewWriter(ctx)
	writer.ContentType = obj.MIMEType
	if written, err := io.Copy(writer, r); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to copy to gs://%s/%s after %d bytes: %w", obj.Bucket, obj.Name, written, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close writer for gs://%s/%s: %w", obj.Bucket, obj.Name, err)
	}
	return nil
}
