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

// SessionRouter registers the account routes.
func SessionRouter(r *gin.RouterGroup, h *Handlers) {
	session := r.Group("/session")
	{
		// Moves every guest script to the signed-in caller.
		session.POST("/migrate", func(c *gin.Context) {
			userID := owner(c)
			if model.IsGuest(userID) {
				badRequest(c, "sign in before migrating guest scripts")
				return
			}
			n, err := h.Registry.MigrateGuest(c.Request.Context(), userID)
			if err != nil {
				writeError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"migrated": n, "message": fmt.Sprintf(model.NotifyMigratedFormat, n)})
		})
	}
}
