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

package services

import (
	"context"
	"fmt"
	"time"

	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/iam/credentials/apiv1/credentialspb"
	"cloud.google.com/go/storage"
	"github.com/jaycherian/gcp-go-media-indexer/internal/cloud"
	"github.com/jaycherian/gcp-go-media-indexer/internal/core/model"
)

// SignFunc signs payload as the signer service account.
type SignFunc func(ctx context.Context, payload []byte) ([]byte, error)

// MediaService hands out links to the archived thumbnails.
type MediaService struct {
	Bucket      string // The thumbnail archive bucket.
	SignerEmail string // The service account the URLs are signed as.
	sign        SignFunc
}

// NewMediaService signs with the IAM credentials API, which works on
// runtimes without a private key such as Cloud Run.
func NewMediaService(iamClient *credentials.IamCredentialsClient, signerEmail string, bucket string) *MediaService {
	sign := func(ctx context.Context, payload []byte) ([]byte, error) {
		resp, err := iamClient.SignBlob(ctx, &credentialspb.SignBlobRequest{
			Name:    fmt.Sprintf("projects/-/serviceAccounts/%s", signerEmail),
			Payload: payload,
		})
		if err != nil {
			return nil, err
		}
		return resp.SignedBlob, nil
	}
	return NewMediaServiceWithSigner(bucket, signerEmail, sign)
}

// NewMediaServiceWithSigner uses sign instead of the IAM API.
func NewMediaServiceWithSigner(bucket string, signerEmail string, sign SignFunc) *MediaService {
	return &MediaService{Bucket: bucket, SignerEmail: signerEmail, sign: sign}
}

// ThumbnailURL returns a V4 signed GET URL for the thumbnail of itemID,
// valid for expires.
func (s *MediaService) ThumbnailURL(ctx context.Context, itemID string, expires time.Duration) (string, error) {
	const op = "services.ThumbnailURL"
	if s.Bucket == "" {
		return "", model.Ef(model.KindNotFound, op, "no thumbnail archive is configured")
	}
	if itemID == "" {
		return "", model.Ef(model.KindInvalidReference, op, "empty item id")
	}
	if s.sign == nil || s.SignerEmail == "" {
		return "", model.Ef(model.KindService, op, "no signer service account is configured")
	}

	obj := cloud.ThumbnailObject(s.Bucket, itemID)
	opts := &storage.SignedURLOptions{
		GoogleAccessID: s.SignerEmail,
		Scheme:         storage.SigningSchemeV4,
		Method:         "GET",
		Expires:        time.Now().Add(expires),
		SignBytes: func(payload []byte) ([]byte, error) {
			return s.sign(ctx, payload)
		},
	}
	u, err := storage.SignedURL(obj.Bucket, obj.Name, opts)
	if err != nil {
		return "", model.E(model.KindService, op, fmt.Errorf("signing gs://%s/%s: %w", obj.Bucket, obj.Name, err))
	}
	return u, nil
}
