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

// Package api exposes the script studio over HTTP. Every route resolves the
// caller's session from the X-User-Id header; requests without the header
// act on the shared guest session.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/jaycherian/gcp-go-script-studio/internal/core/model"
	"github.com/jaycherian/gcp-go-script-studio/internal/core/workflow"
)

// HeaderUserID carries the signed-in user. Absent means guest.
const HeaderUserID = "X-User-Id"

// Handlers holds what the routes need.
type Handlers struct {
	Registry   *workflow.SessionRegistry
	UploadDir  string          // Parent of the per-batch temporary directories.
	RunContext context.Context // Parent of asynchronous runs, cancelled on shutdown.
}

// NewHandlers creates the handlers. Uploads are staged under the system
// temporary directory.
func NewHandlers(ctx context.Context, registry *workflow.SessionRegistry) *Handlers {
	return &Handlers{Registry: registry, UploadDir: os.TempDir(), RunContext: ctx}
}

// Register adds every route to r, typically the /api/v1 group.
func Register(r *gin.RouterGroup, h *Handlers) {
	ScriptRouter(r, h)
	BatchRouter(r, h)
	SessionRouter(r, h)
	Dashboard(r, h)
}

func owner(c *gin.Context) string {
	return workflow.NormalizeOwner(c.GetHeader(HeaderUserID))
}

func (h *Handlers) session(c *gin.Context) (*workflow.Session, bool) {
	s, err := h.Registry.Get(c.Request.Context(), owner(c))
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return s, true
}

func (h *Handlers) runContext() context.Context {
	if h.RunContext == nil {
		return context.Background()
	}
	return h.RunContext
}

// statusFor maps an error kind to an HTTP status.
func statusFor(kind model.ErrorKind) int {
	switch kind {
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindBusy:
		return http.StatusConflict
	case model.KindFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case model.KindPersistenceWriteFailed, model.KindPersistenceDeleteFailed, model.KindOptimizationFailed,
		model.KindAnalysisTimeout, model.KindAnalysisRejected, model.KindDownloadBlocked, model.KindDownloadFailed,
		model.KindResolutionFailed:
		return http.StatusBadGateway
	case model.KindMissingAPIKey:
		return http.StatusServiceUnavailable
	case model.KindNotAVideo, model.KindReadFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	kind := model.KindOf(err)
	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": string(kind), "message": model.UserMessage(err)})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "BadRequest", "message": message})
}
