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

package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jaycherian/gcp-go-script-studio/internal/core/model"
	"github.com/jaycherian/gcp-go-script-studio/internal/core/workflow"
)

type urlRequest struct {
	URL string `json:"url" binding:"required"`
}

// batchStatus is the polling view of a session.
type batchStatus struct {
	State         model.BatchState     `json:"state"`
	Notifications []model.Notification `json:"notifications"`
}

// BatchRouter registers the run routes. Runs are started in the background
// and observed through GET /batches/current.
func BatchRouter(r *gin.RouterGroup, h *Handlers) {
	batches := r.Group("/batches")
	{
		batches.POST("", func(c *gin.Context) {
			s, ok := h.session(c)
			if !ok {
				return
			}
			if s.Orchestrator.State().Phase.IsActive() {
				writeError(c, model.NewError(model.KindBusy, "", nil))
				return
			}
			form, err := c.MultipartForm()
			if err != nil {
				badRequest(c, err.Error())
				return
			}

			dir, err := os.MkdirTemp(h.UploadDir, "batch-")
			if err != nil {
				writeError(c, err)
				return
			}
			items := make([]*model.MediaSource, 0)
			skipped := make([]string, 0)
			notices := make([]string, 0)
			for i, file := range form.File["files"] {
				mimeType := file.Header.Get("Content-Type")
				if !model.IsAcceptedUpload(file.Filename, mimeType) {
					skipped = append(skipped, file.Filename)
					notices = append(notices, fmt.Sprintf(model.UnsupportedUploadFormat, file.Filename))
					continue
				}
				localPath := filepath.Join(dir, fmt.Sprintf("%03d-%s", i, filepath.Base(file.Filename)))
				if err := c.SaveUploadedFile(file, localPath); err != nil {
					_ = os.RemoveAll(dir)
					writeError(c, model.NewError(model.KindReadFailed, "", err))
					return
				}
				items = append(items, model.NewFileSource(file.Filename, localPath, file.Size, mimeType))
			}
			if len(items) == 0 {
				_ = os.RemoveAll(dir)
				message := "no video files in request"
				if len(notices) > 0 {
					message = strings.Join(notices, " ")
				}
				badRequest(c, message)
				return
			}

			if err := h.startBatch(s, items, dir); err != nil {
				_ = os.RemoveAll(dir)
				writeError(c, err)
				return
			}
			c.JSON(http.StatusAccepted, gin.H{"accepted": len(items), "skipped": skipped, "notices": notices})
		})

		batches.POST("/url", func(c *gin.Context) {
			s, ok := h.session(c)
			if !ok {
				return
			}
			var req urlRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, err.Error())
				return
			}
			source := model.NewURLSource(req.URL)
			if source.URL == "" {
				badRequest(c, "url is empty")
				return
			}
			if err := h.startSingle(s, source); err != nil {
				writeError(c, err)
				return
			}
			c.JSON(http.StatusAccepted, gin.H{"accepted": 1})
		})

		batches.GET("/current", func(c *gin.Context) {
			s, ok := h.session(c)
			if !ok {
				return
			}
			c.JSON(http.StatusOK, batchStatus{State: s.Orchestrator.State(), Notifications: s.Orchestrator.Notifications()})
		})
	}
}

// startBatch claims the session orchestrator before the response is sent.
// The upload directory is removed when the run ends.
func (h *Handlers) startBatch(s *workflow.Session, items []*model.MediaSource, dir string) error {
	return s.Orchestrator.StartBatch(h.runContext(), items, func(report *model.BatchReport) {
		slog.Info("batch finished", "owner", s.Owner, "succeeded", report.Succeeded, "total", report.Total)
		if err := os.RemoveAll(dir); err != nil {
			slog.Warn("failed to remove upload directory", "dir", dir, "error", err)
		}
	})
}

func (h *Handlers) startSingle(s *workflow.Session, source *model.MediaSource) error {
	return s.Orchestrator.StartSingle(h.runContext(), source, func(_ *model.ScriptAnalysis, err error) {
		if err != nil {
			slog.Warn("url analysis failed", "owner", s.Owner, "url", source.URL, "error", err)
		}
	})
}
