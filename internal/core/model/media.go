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

package model

import (
	"io"
	"path/filepath"
	"strings"
)

// SourceKind tells the acquisition step where the bytes come from.
type SourceKind string

const (
	SourceFile SourceKind = "file"
	SourceURL  SourceKind = "url"
)

// DefaultVideoMIMEType is used whenever no video MIME type can be determined.
const DefaultVideoMIMEType = "video/mp4"

var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".avi": true, ".wmv": true, ".flv": true, ".webm": true, ".mkv": true,
}

// MediaSource is one item of a batch: an uploaded file or a URL.
type MediaSource struct {
	Kind     SourceKind `json:"kind"`
	Name     string     `json:"name"`               // Display name used in notifications.
	URL      string     `json:"url,omitempty"`      // Set for SourceURL.
	Path     string     `json:"-"`                  // Local path of an uploaded file.
	Size     int64      `json:"size,omitempty"`     // Declared size of an uploaded file in bytes.
	MIMEType string     `json:"mimeType,omitempty"` // Declared MIME type, may be empty.
}

// NewFileSource describes an uploaded file stored at path.
func NewFileSource(name string, path string, size int64, mimeType string) *MediaSource {
	return &MediaSource{Kind: SourceFile, Name: name, Path: path, Size: size, MIMEType: mimeType}
}

// NewURLSource describes a remote video. The URL doubles as the display name.
func NewURLSource(url string) *MediaSource {
	url = strings.TrimSpace(url)
	return &MediaSource{Kind: SourceURL, Name: url, URL: url}
}

// IsAcceptedUpload reports whether an uploaded file looks like a video, either
// by its declared MIME type or by its extension.
func IsAcceptedUpload(name string, mimeType string) bool {
	if strings.HasPrefix(mimeType, "video/") {
		return true
	}
	return videoExtensions[strings.ToLower(filepath.Ext(name))]
}

// MediaPayload is the acquired video. Reader yields the raw bytes and must be
// closed by whoever consumes it.
type MediaPayload struct {
	Name     string
	MIMEType string
	Size     int64
	Reader   io.ReadCloser
}

// Close releases the underlying reader.
func (p *MediaPayload) Close() error {
	if p == nil || p.Reader == nil {
		return nil
	}
	return p.Reader.Close()
}

// EncodedMedia is the transport-safe form of a payload.
type EncodedMedia struct {
	Name     string
	MIMEType string
	Base64   string
}

// SizeMB is the size of the encoded text in megabytes.
func (e *EncodedMedia) SizeMB() float64 {
	return float64(len(e.Base64)) / 1024 / 1024
}

// NormalizeVideoMIMEType keeps video/* types and maps everything else to the
// default video type.
func NormalizeVideoMIMEType(mimeType string) string {
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	mimeType = strings.TrimSpace(strings.ToLower(mimeType))
	if strings.HasPrefix(mimeType, "video/") {
		return mimeType
	}
	return DefaultVideoMIMEType
}

// IsRejectedContentType reports declared types that indicate a proxy error
// page or a still image instead of a video.
func IsRejectedContentType(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	return strings.HasPrefix(ct, "image/") || strings.HasPrefix(ct, "text/html")
}
