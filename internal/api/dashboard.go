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
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jaycherian/gcp-go-script-studio/internal/core/model"
)

// SessionStats summarises one loaded session.
type SessionStats struct {
	Owner    string      `json:"owner"`
	Scripts  int         `json:"scripts"`
	Scenes   int         `json:"scenes"`
	Unsynced int         `json:"unsynced"`
	Phase    model.Phase `json:"phase"`
}

// Stats is the body of GET /stats.
type Stats struct {
	Sessions []SessionStats `json:"sessions"`
	Scripts  int            `json:"scripts"`
	Unsynced int            `json:"unsynced"`
	Active   int            `json:"active"`
}

// Dashboard registers the statistics route. Only sessions loaded since the
// server started are counted.
func Dashboard(r *gin.RouterGroup, h *Handlers) {
	stats := r.Group("/stats")
	{
		stats.GET("", func(c *gin.Context) {
			c.JSON(http.StatusOK, h.stats())
		})
	}
}

func (h *Handlers) stats() Stats {
	out := Stats{Sessions: make([]SessionStats, 0)}
	for _, s := range h.Registry.Sessions() {
		scripts := s.Library.Workspace.Scripts()
		entry := SessionStats{
			Owner:    s.Owner,
			Scripts:  len(scripts),
			Unsynced: len(s.Library.Workspace.Unsynced()),
			Phase:    s.Orchestrator.State().Phase,
		}
		for _, script := range scripts {
			entry.Scenes += len(script.Scenes)
		}
		out.Sessions = append(out.Sessions, entry)
		out.Scripts += entry.Scripts
		out.Unsynced += entry.Unsynced
		if entry.Phase.IsActive() {
			out.Active++
		}
	}
	return out
}
