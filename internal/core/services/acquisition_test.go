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

package services_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-script-studio/internal/core/model"
	"github.com/jaycherian/gcp-go-script-studio/internal/core/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	fakeVideo = append([]byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'm', 'p', '4', '2'}, bytes.Repeat([]byte{0x01}, 64)...)
	fakePNG   = append([]byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}, bytes.Repeat([]byte{0x02}, 64)...)
)

// failingTransport fails the test if any request is sent.
type failingTransport struct{ t *testing.T }

func (f failingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.t.Errorf("unexpected request to %s", req.URL)
	return nil, fmt.Errorf("no network")
}

func newAcquirer(routes ...string) *services.MediaAcquirer {
	return &services.MediaAcquirer{
		Client:          http.DefaultClient,
		MaxFileSize:     1024,
		FetchTimeout:    2 * time.Second,
		PlatformDomains: []string{"tiktok.com"},
		ProxyRoutes:     routes,
		UserAgent:       "test-agent",
	}
}

func readAll(t *testing.T, payload *model.MediaPayload) []byte {
	t.Helper()
	defer payload.Close()
	data, err := io.ReadAll(payload.Reader)
	require.NoError(t, err)
	return data
}

func TestAcquireFileTooLargeFailsBeforeIO(t *testing.T) {
	acquirer := newAcquirer()
	acquirer.Client = &http.Client{Transport: failingTransport{t}}

	source := model.NewFileSource("big.mp4", "/does/not/exist.mp4", 31*1024*1024, "video/mp4")
	_, err := acquirer.Acquire(context.Background(), source, nil)
	require.ErrorIs(t, err, model.ErrFileTooLarge)
	assert.Contains(t, model.UserMessage(err), "File quá lớn")
}

func TestAcquireFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, fakeVideo, 0o600))

	var statuses []string
	source := model.NewFileSource("clip.mp4", path, int64(len(fakeVideo)), "")
	payload, err := newAcquirer().Acquire(context.Background(), source, func(s string) { statuses = append(statuses, s) })
	require.NoError(t, err)

	assert.Equal(t, "video/mp4", payload.MIMEType)
	assert.Equal(t, fakeVideo, readAll(t, payload))
	assert.Equal(t, []string{model.ProgressReadingFile}, statuses)
}

func TestAcquireFileRejectsImages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, fakePNG, 0o600))

	source := model.NewFileSource("clip.mp4", path, int64(len(fakePNG)), "video/mp4")
	_, err := newAcquirer().Acquire(context.Background(), source, nil)
	assert.ErrorIs(t, err, model.ErrNotAVideo)
}

func TestAcquireFileMissing(t *testing.T) {
	source := model.NewFileSource("gone.mp4", filepath.Join(t.TempDir(), "gone.mp4"), 10, "video/mp4")
	_, err := newAcquirer().Acquire(context.Background(), source, nil)
	assert.ErrorIs(t, err, model.ErrReadFailed)
}

func TestAcquirePlatformURL(t *testing.T) {
	var proxied atomic.Int32
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "https://www.tiktok.com/@shop/video/1", r.URL.Query().Get("url"))
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		fmt.Fprintf(w, `{"code":0,"msg":"success","data":{"play":"%s/play.mp4"}}`, server.URL)
	})
	mux.HandleFunc("/blocked", func(w http.ResponseWriter, r *http.Request) {
		proxied.Add(1)
		w.WriteHeader(http.StatusForbidden)
	})
	mux.HandleFunc("/proxy", func(w http.ResponseWriter, r *http.Request) {
		proxied.Add(1)
		assert.Equal(t, server.URL+"/play.mp4", r.URL.Query().Get("u"))
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write(fakeVideo)
	})

	acquirer := newAcquirer(server.URL+"/blocked?u=%s", server.URL+"/proxy?u=%s")
	acquirer.ResolverURL = server.URL + "/api/"

	var statuses []string
	source := model.NewURLSource("https://www.tiktok.com/@shop/video/1")
	payload, err := acquirer.Acquire(context.Background(), source, func(s string) { statuses = append(statuses, s) })
	require.NoError(t, err)
	assert.Equal(t, fakeVideo, readAll(t, payload))
	assert.Equal(t, int32(2), proxied.Load())
	assert.Equal(t, []string{model.ProgressResolvingTikTok, model.ProgressDownloadTikTok}, statuses)
}

func TestAcquirePlatformResolutionFailed(t *testing.T) {
	var proxied atomic.Int32
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":-1,"msg":"Url parsing is failed!"}`))
	})
	mux.HandleFunc("/proxy", func(w http.ResponseWriter, r *http.Request) {
		proxied.Add(1)
	})

	acquirer := newAcquirer(server.URL + "/proxy?u=%s")
	acquirer.ResolverURL = server.URL + "/api/"
	_, err := acquirer.Acquire(context.Background(), model.NewURLSource("https://vm.tiktok.com/abc"), nil)
	require.ErrorIs(t, err, model.ErrResolutionFailed)
	assert.Zero(t, proxied.Load())
}

func TestAcquirePlatformDownloadBlocked(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"code":0,"data":{"play":"%s/play.mp4"}}`, server.URL)
	})
	mux.HandleFunc("/proxy", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	acquirer := newAcquirer(server.URL + "/proxy?u=%s")
	acquirer.ResolverURL = server.URL + "/api/"
	_, err := acquirer.Acquire(context.Background(), model.NewURLSource("https://www.tiktok.com/@a/video/2"), nil)
	assert.ErrorIs(t, err, model.ErrDownloadBlocked)
}

func TestAcquireGenericURLFallsBackToProxy(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()
	mux.HandleFunc("/video.mp4", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/proxy", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/quicktime")
		_, _ = w.Write(fakeVideo)
	})

	acquirer := newAcquirer(server.URL + "/proxy?u=%s")
	payload, err := acquirer.Acquire(context.Background(), model.NewURLSource(server.URL+"/video.mp4"), nil)
	require.NoError(t, err)
	assert.Equal(t, "video/quicktime", payload.MIMEType)
	assert.Equal(t, int64(len(fakeVideo)), payload.Size)
}

func TestAcquireGenericURLFailures(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        []byte
		status      int
		want        error
	}{
		{name: "all routes fail", status: http.StatusBadGateway, want: model.ErrDownloadFailed},
		{name: "empty body", status: http.StatusOK, want: model.ErrDownloadFailed},
		{name: "html page", status: http.StatusOK, contentType: "text/html; charset=utf-8", body: []byte("<html></html>"), want: model.ErrNotAVideo},
		{name: "image bytes", status: http.StatusOK, contentType: "application/octet-stream", body: fakePNG, want: model.ErrNotAVideo},
		{name: "too large", status: http.StatusOK, contentType: "video/mp4", body: bytes.Repeat([]byte{1}, 2048), want: model.ErrFileTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				if tt.contentType != "" {
					w.Header().Set("Content-Type", tt.contentType)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write(tt.body)
			}))
			defer server.Close()

			acquirer := newAcquirer(server.URL + "/proxy?u=%s")
			_, err := acquirer.Acquire(context.Background(), model.NewURLSource(server.URL+"/v.mp4"), nil)
			assert.ErrorIs(t, err, tt.want)
			if tt.want == model.ErrFileTooLarge {
				assert.Equal(t, int32(1), calls.Load(), "oversize must stop the route iteration")
			}
		})
	}
}

func TestAcquireTimeoutAdvancesToNextRoute(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	mux.HandleFunc("/proxy", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(fakeVideo)
	})

	acquirer := newAcquirer(server.URL + "/proxy?u=%s")
	acquirer.FetchTimeout = 100 * time.Millisecond
	payload, err := acquirer.Acquire(context.Background(), model.NewURLSource(server.URL+"/slow"), nil)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultVideoMIMEType, payload.MIMEType)
}

func TestAcquireInvalidURL(t *testing.T) {
	acquirer := newAcquirer()
	acquirer.Client = &http.Client{Transport: failingTransport{t}}
	_, err := acquirer.Acquire(context.Background(), model.NewURLSource("not a url"), nil)
	assert.ErrorIs(t, err, model.ErrDownloadFailed)
}

func TestIsPlatformURL(t *testing.T) {
	acquirer := newAcquirer()
	assert.True(t, acquirer.IsPlatformURL("https://www.tiktok.com/@a/video/1"))
	assert.True(t, acquirer.IsPlatformURL("https://vt.tiktok.com/x"))
	assert.False(t, acquirer.IsPlatformURL("https://nottiktok.com/x"))
	assert.False(t, acquirer.IsPlatformURL("https://example.com/tiktok.com"))
}
