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
	"fmt"
	"time"
)

// Phase is the orchestrator state.
type Phase string

const (
	PhaseIdle       Phase = "IDLE"
	PhaseAnalyzing  Phase = "ANALYZING"
	PhaseOptimizing Phase = "OPTIMIZING"
	PhaseComplete   Phase = "COMPLETE"
	PhaseError      Phase = "ERROR"
)

// IsActive reports whether a run is in progress.
func (p Phase) IsActive() bool {
	return p == PhaseAnalyzing || p == PhaseOptimizing
}

// ProgressFunc receives human readable status updates.
type ProgressFunc func(status string)

// Report calls the function if it is set.
func (f ProgressFunc) Report(status string) {
	if f != nil {
		f(status)
	}
}

// CurrentItem is the item being processed, exposed for previews.
type CurrentItem struct {
	Name       string     `json:"name"`
	Kind       SourceKind `json:"kind"`
	PreviewURL string     `json:"previewUrl,omitempty"`
}

// BatchState is the observable orchestrator state.
type BatchState struct {
	Phase       Phase        `json:"phase"`
	Current     int          `json:"current"`
	Total       int          `json:"total"`
	CurrentItem *CurrentItem `json:"currentItem,omitempty"`
	Status      string       `json:"status,omitempty"`
	StartedAt   time.Time    `json:"startedAt,omitempty"`
	Elapsed     string       `json:"elapsed"`
}

// NotificationLevel separates success from error notifications.
type NotificationLevel string

const (
	NotifySuccess NotificationLevel = "success"
	NotifyError   NotificationLevel = "error"
)

// Notification is one user-visible message produced during a run.
type Notification struct {
	Level   NotificationLevel `json:"level"`
	Message string            `json:"message"`
	Item    string            `json:"item,omitempty"`
	At      time.Time         `json:"at"`
}

// BatchReport summarises a finished run.
type BatchReport struct {
	Total     int               `json:"total"`
	Succeeded int               `json:"succeeded"`
	Failed    []string          `json:"failed"`
	Scripts   []*ScriptAnalysis `json:"scripts"`
	Unsynced  []string          `json:"unsynced"`
}

// AllFailed reports the distinct all-failed outcome.
func (r *BatchReport) AllFailed() bool {
	return r.Succeeded == 0
}

// Summary is the final notification text of a run.
func (r *BatchReport) Summary() string {
	if r.AllFailed() {
		return NotifyBatchAllFailed
	}
	return fmt.Sprintf(NotifyBatchDoneFormat, r.Succeeded, r.Total)
}

// BatchRequest is an asynchronous request to analyze a list of URLs.
type BatchRequest struct {
	UserID string   `json:"userId"`
	URLs   []string `json:"urls"`
}

// FormatElapsed renders a duration as mm:ss.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	seconds := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
