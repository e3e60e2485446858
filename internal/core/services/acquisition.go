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

// Package services contains the business logic of the application: fetching
// videos, talking to the generative models, archiving source media and
// managing a user's script library.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/h2non/filetype"
	"github.com/jaycherian/gcp-go-script-studio/internal/cloud"
	"github.com/jaycherian/gcp-go-script-studio/internal/core/model"
	"github.com/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// sniffLength is the number of leading bytes inspected to detect the file type.
const sniffLength = 261

// resolverResponse is the reply of the platform link resolver.
type resolverResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data *struct {
		Play string `json:"play"`
	} `json:"data"`
}

// MediaAcquirer turns a MediaSource into raw video bytes. Uploaded files are
// streamed from disk; URLs are downloaded into memory, bounded by the size
// limit, trying the direct URL and then each proxy route in order.
type MediaAcquirer struct {
	Client          *http.Client
	MaxFileSize     int64         // Bytes.
	FetchTimeout    time.Duration // Per request.
	ResolverURL     string
	PlatformDomains []string
	ProxyRoutes     []string
	UserAgent       string
}

// NewMediaAcquirer builds an acquirer from config. A nil client gets a traced
// default client.
func NewMediaAcquirer(config cloud.Acquisition, client *http.Client) *MediaAcquirer {
	if client == nil {
		client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return &MediaAcquirer{
		Client:          client,
		MaxFileSize:     config.MaxFileSize(),
		FetchTimeout:    config.FetchTimeout(),
		ResolverURL:     config.ResolverURL,
		PlatformDomains: config.PlatformDomains,
		ProxyRoutes:     config.ProxyRoutes,
		UserAgent:       config.UserAgent,
	}
}

// Acquire fetches the bytes of source.
//
// Inputs:
//   - ctx: cancels resolver and download requests.
//   - source: an uploaded file or a URL.
//   - progress: receives status lines, may be nil.
//
// Outputs:
//   - *model.MediaPayload: the video stream. The caller must close it.
//   - error: a classified *model.Error, e.g. FileTooLarge or DownloadBlocked.
func (a *MediaAcquirer) Acquire(ctx context.Context, source *model.MediaSource, progress model.ProgressFunc) (*model.MediaPayload, error) {
	switch source.Kind {
	case model.SourceFile:
		return a.acquireFile(source, progress)
	case model.SourceURL:
		return a.acquireURL(ctx, source, progress)
	default:
		return nil, errors.Errorf("unknown source kind %q", source.Kind)
	}
}

func (a *MediaAcquirer) maxMB() int {
	return int(a.MaxFileSize / (1024 * 1024))
}

func (a *MediaAcquirer) acquireFile(source *model.MediaSource, progress model.ProgressFunc) (*model.MediaPayload, error) {
	if source.Size > a.MaxFileSize {
		sizeMB := float64(source.Size) / 1024 / 1024
		return nil, model.Errorf(model.KindFileTooLarge, nil, model.FileTooLargeFormat, sizeMB, a.maxMB())
	}
	progress.Report(model.ProgressReadingFile)

	file, err := os.Open(source.Path)
	if err != nil {
		return nil, model.NewError(model.KindReadFailed, "", errors.Wrapf(err, "open %s", source.Name))
	}
	head := make([]byte, sniffLength)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		_ = file.Close()
		return nil, model.NewError(model.KindReadFailed, "", errors.Wrapf(err, "read %s", source.Name))
	}
	head = head[:n]

	mimeType, err := validateVideo(source.MIMEType, head)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	return &model.MediaPayload{
		Name:     source.Name,
		MIMEType: mimeType,
		Size:     source.Size,
		Reader:   &prefixedFile{Reader: io.MultiReader(bytes.NewReader(head), file), file: file},
	}, nil
}

// prefixedFile replays the sniffed header before the rest of the file.
type prefixedFile struct {
	io.Reader
	file *os.File
}

func (p *prefixedFile) Close() error {
	return p.file.Close()
}

// IsPlatformURL reports whether rawURL belongs to one of the platform domains
// that need the link resolver.
func (a *MediaAcquirer) IsPlatformURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, domain := range a.PlatformDomains {
		domain = strings.ToLower(domain)
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

func (a *MediaAcquirer) acquireURL(ctx context.Context, source *model.MediaSource, progress model.ProgressFunc) (*model.MediaPayload, error) {
	u, err := url.Parse(source.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, model.NewError(model.KindDownloadFailed, model.InvalidURLMessage, err)
	}

	var (
		candidates []string
		failKind   = model.KindDownloadFailed
	)
	if a.IsPlatformURL(source.URL) {
		progress.Report(model.ProgressResolvingTikTok)
		playURL, err := a.resolve(ctx, source.URL)
		if err != nil {
			return nil, err
		}
		progress.Report(model.ProgressDownloadTikTok)
		candidates = a.routesFor(playURL)
		failKind = model.KindDownloadBlocked
	} else {
		progress.Report(model.ProgressDownloadURL)
		candidates = append([]string{source.URL}, a.routesFor(source.URL)...)
	}

	body, contentType, err := a.fetchFirst(ctx, candidates)
	if err != nil {
		if model.KindOf(err) == model.KindFileTooLarge {
			return nil, err
		}
		return nil, model.NewError(failKind, "", err)
	}

	if model.IsRejectedContentType(contentType) {
		return nil, model.NewError(model.KindNotAVideo, "", errors.Errorf("content type %q", contentType))
	}
	head := body
	if len(head) > sniffLength {
		head = head[:sniffLength]
	}
	mimeType, err := validateVideo(contentType, head)
	if err != nil {
		return nil, err
	}
	return &model.MediaPayload{
		Name:     source.Name,
		MIMEType: mimeType,
		Size:     int64(len(body)),
		Reader:   io.NopCloser(bytes.NewReader(body)),
	}, nil
}

func (a *MediaAcquirer) routesFor(target string) []string {
	routes := make([]string, 0, len(a.ProxyRoutes))
	for _, route := range a.ProxyRoutes {
		routes = append(routes, fmt.Sprintf(route, url.QueryEscape(target)))
	}
	return routes
}

// resolve asks the resolver for a direct, watermark free video URL.
func (a *MediaAcquirer) resolve(ctx context.Context, pageURL string) (string, error) {
	endpoint, err := url.Parse(a.ResolverURL)
	if err != nil {
		return "", model.NewError(model.KindResolutionFailed, "", errors.Wrap(err, "resolver url"))
	}
	query := endpoint.Query()
	query.Set("url", pageURL)
	endpoint.RawQuery = query.Encode()

	reqCtx, cancel := context.WithTimeout(ctx, a.FetchTimeout)
	defer cancel()
	resp, err := a.get(reqCtx, endpoint.String())
	if err != nil {
		return "", model.NewError(model.KindResolutionFailed, "", errors.Wrap(err, "call resolver"))
	}
	defer resp.Body.Close()

	var decoded resolverResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&decoded); err != nil {
		return "", model.NewError(model.KindResolutionFailed, "", errors.Wrap(err, "decode resolver response"))
	}
	if decoded.Code != 0 || decoded.Data == nil || decoded.Data.Play == "" {
		return "", model.NewError(model.KindResolutionFailed, "", errors.Errorf("resolver code %d: %s", decoded.Code, decoded.Msg))
	}
	return decoded.Data.Play, nil
}

// fetchFirst tries candidates in order and returns the first non-empty 2xx
// body. An oversize body stops the iteration.
func (a *MediaAcquirer) fetchFirst(ctx context.Context, candidates []string) ([]byte, string, error) {
	if len(candidates) == 0 {
		return nil, "", errors.New("no fetch route configured")
	}
	type fetched struct {
		body        []byte
		contentType string
	}
	attempt := 0
	result, err := retry.DoWithData(
		func() (fetched, error) {
			target := candidates[attempt]
			attempt++
			body, contentType, err := a.fetch(ctx, target)
			if err != nil {
				if model.KindOf(err) == model.KindFileTooLarge {
					return fetched{}, retry.Unrecoverable(err)
				}
				return fetched{}, errors.Wrapf(err, "route %d", attempt)
			}
			return fetched{body: body, contentType: contentType}, nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(len(candidates))),
		retry.DelayType(retry.FixedDelay),
		retry.Delay(0),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		var modelErr *model.Error
		if errors.As(err, &modelErr) && modelErr.Kind == model.KindFileTooLarge {
			return nil, "", modelErr
		}
		return nil, "", err
	}
	return result.body, result.contentType, nil
}

// fetch downloads one URL within the per request timeout.
func (a *MediaAcquirer) fetch(ctx context.Context, target string) ([]byte, string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, a.FetchTimeout)
	defer cancel()

	resp, err := a.get(reqCtx, target)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", errors.Errorf("status %d", resp.StatusCode)
	}
	if resp.ContentLength > a.MaxFileSize {
		return nil, "", model.Errorf(model.KindFileTooLarge, nil, model.VideoTooLargeFormat, a.maxMB())
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, a.MaxFileSize+1))
	if err != nil {
		return nil, "", errors.Wrap(err, "read body")
	}
	if int64(len(body)) > a.MaxFileSize {
		return nil, "", model.Errorf(model.KindFileTooLarge, nil, model.VideoTooLargeFormat, a.maxMB())
	}
	if len(body) == 0 {
		return nil, "", errors.New("empty body")
	}
	return body, resp.Header.Get("Content-Type"), nil
}

func (a *MediaAcquirer) get(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	if a.UserAgent != "" {
		req.Header.Set("User-Agent", a.UserAgent)
	}
	return a.Client.Do(req)
}

// validateVideo rejects payloads whose leading bytes are an image and picks
// the MIME type: the declared video type, else the sniffed video type, else
// the default.
func validateVideo(declared string, head []byte) (string, error) {
	if filetype.IsImage(head) {
		return "", model.NewError(model.KindNotAVideo, "", errors.New("payload is an image"))
	}
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(declared)), "video/") {
		return model.NormalizeVideoMIMEType(declared), nil
	}
	if filetype.IsVideo(head) {
		if kind, err := filetype.Match(head); err == nil && kind != filetype.Unknown {
			return kind.MIME.Value, nil
		}
	}
	return model.DefaultVideoMIMEType, nil
}
