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
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jaycherian/gcp-go-script-studio/internal/core/model"
)

type tagRequest struct {
	Tag string `json:"tag" binding:"required"`
}

// scriptList is the library as seen by one owner.
type scriptList struct {
	Scripts  []*model.ScriptAnalysis `json:"scripts"`
	Current  string                  `json:"current,omitempty"`
	Unsynced []string                `json:"unsynced"`
}

// ScriptRouter registers the library routes.
func ScriptRouter(r *gin.RouterGroup, h *Handlers) {
	scripts := r.Group("/scripts")
	{
		scripts.GET("", func(c *gin.Context) {
			s, ok := h.session(c)
			if !ok {
				return
			}
			out := scriptList{Scripts: s.Library.Workspace.Scripts(), Unsynced: make([]string, 0)}
			if current, ok := s.Library.Workspace.Current(); ok {
				out.Current = current.ID
			}
			for _, u := range s.Library.Workspace.Unsynced() {
				out.Unsynced = append(out.Unsynced, u.ID)
			}
			c.JSON(http.StatusOK, out)
		})

		scripts.POST("/resync", func(c *gin.Context) {
			s, ok := h.session(c)
			if !ok {
				return
			}
			n, err := s.Library.Resync(c.Request.Context())
			if err != nil {
				writeError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"synced": n, "message": fmt.Sprintf(model.NotifyResyncedFormat, n)})
		})

		scripts.GET("/:id", func(c *gin.Context) {
			s, ok := h.session(c)
			if !ok {
				return
			}
			script, err := s.Library.Get(c.Param("id"))
			if err != nil {
				writeError(c, err)
				return
			}
			s.Library.Workspace.SetCurrent(script.ID)
			c.JSON(http.StatusOK, script)
		})

		scripts.DELETE("/:id", func(c *gin.Context) {
			s, ok := h.session(c)
			if !ok {
				return
			}
			if err := s.Library.Delete(c.Request.Context(), c.Param("id")); err != nil {
				writeError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"message": model.NotifyDeleted})
		})

		scripts.POST("/:id/tags", func(c *gin.Context) {
			s, ok := h.session(c)
			if !ok {
				return
			}
			var req tagRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, err.Error())
				return
			}
			script, err := s.Library.AddTag(c.Request.Context(), c.Param("id"), req.Tag)
			respondEdit(c, script, err)
		})

		scripts.DELETE("/:id/tags/:tag", func(c *gin.Context) {
			s, ok := h.session(c)
			if !ok {
				return
			}
			script, err := s.Library.RemoveTag(c.Request.Context(), c.Param("id"), c.Param("tag"))
			respondEdit(c, script, err)
		})

		scripts.POST("/:id/optimize", func(c *gin.Context) {
			s, ok := h.session(c)
			if !ok {
				return
			}
			script, err := s.Orchestrator.Optimize(c.Request.Context(), c.Param("id"))
			if err != nil {
				writeError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"script": script, "notifications": s.Orchestrator.Notifications()})
		})

		scripts.GET("/:id/export", func(c *gin.Context) {
			s, ok := h.session(c)
			if !ok {
				return
			}
			tsv, err := s.Library.Export(c.Param("id"))
			if err != nil {
				writeError(c, err)
				return
			}
			c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", c.Param("id")+".tsv"))
			c.Data(http.StatusOK, "text/tab-separated-values; charset=utf-8", []byte(tsv))
		})
	}
}

// respondEdit answers a tag edit. An edit that was applied but not written
// is still returned, flagged as unsynced.
func respondEdit(c *gin.Context, script *model.ScriptAnalysis, err error) {
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"script": script, "synced": true})
	case script != nil:
		c.JSON(http.StatusAccepted, gin.H{"script": script, "synced": false, "message": model.NotifyTagSaveFailed})
	default:
		writeError(c, err)
	}
}
