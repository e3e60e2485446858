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

// Package services contains the business logic for interacting with data sources.
// This file, `media.go`, defines the MediaArchive, which keeps a copy of every
// analyzed source video in Google Cloud Storage (GCS) and generates secure,
// time-limited URLs so the client can preview the item being processed.
package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"regexp"
	"strings"
	"time"

	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/iam/credentials/apiv1/credentialspb"
	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/jaycherian/gcp-go-script-studio/internal/cloud"
	"github.com/jaycherian/gcp-go-script-studio/internal/core/model"
	"github.com/pkg/errors"
)

// DefaultSignedURLTTL is the lifetime of a preview URL.
const DefaultSignedURLTTL = 15 * time.Minute

var unsafeObjectChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// MediaArchive encapsulates the clients needed to archive source videos. The
// archive is optional: without a bucket every method is a no-op.
type MediaArchive struct {
	StorageClient *storage.Client                   // Client for interacting with Google Cloud Storage.
	IAMClient     *credentials.IamCredentialsClient // Used for signing URLs when no local key is available.
	SignerEmail   string                            // The service account email used to sign URLs.
	Bucket        string                            // Destination bucket, empty disables archiving.
	SignedURLTTL  time.Duration
}

// NewMediaArchive builds the archive from the service clients and config.
func NewMediaArchive(clients *cloud.ServiceClients, config *cloud.Config) *MediaArchive {
	ttl := time.Duration(config.Storage.SignedURLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = DefaultSignedURLTTL
	}
	return &MediaArchive{
		StorageClient: clients.StorageClient,
		IAMClient:     clients.IAMClient,
		SignerEmail:   config.Application.SignerServiceAccountEmail,
		Bucket:        config.Storage.ArchiveBucket,
		SignedURLTTL:  ttl,
	}
}

// Enabled reports whether a bucket and a storage client are configured.
func (s *MediaArchive) Enabled() bool {
	return s != nil && s.Bucket != "" && s.StorageClient != nil
}

// ObjectName returns the archive object name of a video: the owner folder
// followed by a unique prefix and a sanitized copy of the display name.
//
// Example: `guest/6f1c...-my_video.mp4`
func ObjectName(ownerID string, name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if i := strings.Index(base, "?"); i >= 0 {
		base = base[:i]
	}
	base = strings.Trim(unsafeObjectChars.ReplaceAllString(base, "_"), "_")
	if base == "" || base == "." {
		base = "video"
	}
	owner := unsafeObjectChars.ReplaceAllString(ownerID, "_")
	if owner == "" {
		owner = model.GuestUserID
	}
	return fmt.Sprintf("%s/%s-%s", owner, uuid.NewString(), base)
}

// Upload streams r into the archive bucket and returns the object name.
//
// Inputs:
//   - ctx: The context for the request.
//   - ownerID: The owner folder.
//   - name: The display name of the video.
//   - mimeType: Content type stored on the object.
//   - r: The video bytes.
func (s *MediaArchive) Upload(ctx context.Context, ownerID string, name string, mimeType string, r io.Reader) (string, error) {
	if !s.Enabled() {
		return "", nil
	}
	objectName := ObjectName(ownerID, name)
	writer := s.StorageClient.Bucket(s.Bucket).Object(objectName).NewWriter(ctx)
	writer.ContentType = mimeType

	// The writer must be closed to finalize the upload.
	if written, err := io.Copy(writer, r); err != nil {
		_ = writer.Close()
		return "", errors.Wrapf(err, "copy to gs://%s/%s failed after %d bytes", s.Bucket, objectName, written)
	}
	if err := writer.Close(); err != nil {
		return "", errors.Wrapf(err, "finalize gs://%s/%s", s.Bucket, objectName)
	}
	slog.InfoContext(ctx, "archived source video", "bucket", s.Bucket, "object", objectName)
	return objectName, nil
}

// GenerateSignedURL creates a time-limited URL to read an archived object.
// When a signer service account is configured the bytes are signed with the
// IAM Credentials API, otherwise the client's own credentials are used.
func (s *MediaArchive) GenerateSignedURL(ctx context.Context, objectName string) (string, error) {
	if !s.Enabled() {
		return "", errors.New("media archive is not configured")
	}
	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(s.SignedURLTTL),
	}
	if s.SignerEmail != "" && s.IAMClient != nil {
		opts.GoogleAccessID = s.SignerEmail
		opts.SignBytes = func(b []byte) ([]byte, error) {
			req := &credentialspb.SignBlobRequest{
				Name:    fmt.Sprintf("projects/-/serviceAccounts/%s", s.SignerEmail),
				Payload: b,
			}
			resp, err := s.IAMClient.SignBlob(ctx, req)
			if err != nil {
				return nil, errors.Wrap(err, "IAMClient.SignBlob")
			}
			return resp.SignedBlob, nil
		}
	}
	u, err := s.StorageClient.Bucket(s.Bucket).SignedURL(objectName, opts)
	if err != nil {
		return "", errors.Wrapf(err, "Bucket(%q).SignedURL(%q)", s.Bucket, objectName)
	}
	return u, nil
}
