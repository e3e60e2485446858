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

// Package model holds the data structures shared by the ingestion pipeline,
// the persistence gateway and the HTTP API.
//
// This file defines the persistent shape of an analyzed video: a ScriptAnalysis
// owning an ordered list of Scenes. All helpers that "change" a script return a
// new value and leave the receiver untouched, so a record that has already been
// handed to the UI or to a store is never mutated in place.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// GuestUserID is the owner value used for records that live only in the
// local guest store. Any other owner value routes to the remote store.
const GuestUserID = "guest"

const (
	scriptIDPrefix = "script-"
	sceneIDPrefix  = "scene-"
)

// IsGuest reports whether the owner id is the local guest sentinel.
func IsGuest(ownerID string) bool {
	return ownerID == GuestUserID
}

// Scene is one shot of an analyzed video.
type Scene struct {
	ID                string `json:"id"`                // Unique id generated at creation, never taken from the model.
	StartTime         string `json:"startTime"`         // Display-only timestamp, e.g. "00:05".
	EndTime           string `json:"endTime"`           // Display-only timestamp.
	Type              string `json:"type"`              // Open-vocabulary label such as "Hook".
	VisualDescription string `json:"visualDescription"` // What is on screen.
	AudioScript       string `json:"audioScript"`       // What is said.
}

// NewSceneID returns a fresh, collision-resistant scene id.
func NewSceneID() string {
	return sceneIDPrefix + uuid.NewString()
}

// Clone returns a copy of the scene.
func (s *Scene) Clone() *Scene {
	if s == nil {
		return nil
	}
	out := *s
	return &out
}

// ScriptAnalysis is one analyzed video and the unit of persistence.
type ScriptAnalysis struct {
	ID        string   `json:"id"`
	UserID    string   `json:"userId"`
	Title     string   `json:"title"`
	VideoName string   `json:"videoName"`
	CreatedAt int64    `json:"createdAt"` // Epoch millis; lists are sorted on it, newest first.
	Tags      []string `json:"tags"`
	Scenes    []*Scene `json:"scenes"`
}

// NewScriptID returns a fresh script id. Ids are uuid based so that scripts
// created within the same millisecond of a fast batch never collide.
func NewScriptID() string {
	return scriptIDPrefix + uuid.NewString()
}

// NewScriptAnalysis builds a brand new record for the given owner from an
// analysis result. Tags start empty and CreatedAt is taken from now.
func NewScriptAnalysis(ownerID string, videoName string, result *AnalysisResult, now time.Time) *ScriptAnalysis {
	title := videoName
	scenes := make([]*Scene, 0)
	if result != nil {
		if strings.TrimSpace(result.Title) != "" {
			title = result.Title
		}
		for _, s := range result.Scenes {
			scenes = append(scenes, s.Clone())
		}
	}
	return &ScriptAnalysis{
		ID:        NewScriptID(),
		UserID:    ownerID,
		Title:     title,
		VideoName: videoName,
		CreatedAt: now.UnixMilli(),
		Tags:      make([]string, 0),
		Scenes:    scenes,
	}
}

// Clone returns a deep copy; scenes are copied so they are never shared
// between two script values.
func (s *ScriptAnalysis) Clone() *ScriptAnalysis {
	if s == nil {
		return nil
	}
	out := *s
	out.Tags = append(make([]string, 0, len(s.Tags)), s.Tags...)
	out.Scenes = make([]*Scene, 0, len(s.Scenes))
	for _, scene := range s.Scenes {
		out.Scenes = append(out.Scenes, scene.Clone())
	}
	return &out
}

// WithScenes returns a copy whose scenes are replaced. Id, owner and creation
// time are preserved.
func (s *ScriptAnalysis) WithScenes(scenes []*Scene) *ScriptAnalysis {
	out := s.Clone()
	out.Scenes = make([]*Scene, 0, len(scenes))
	for _, scene := range scenes {
		out.Scenes = append(out.Scenes, scene.Clone())
	}
	return out
}

// WithTags returns a copy with the given tag list.
func (s *ScriptAnalysis) WithTags(tags []string) *ScriptAnalysis {
	out := s.Clone()
	out.Tags = append(make([]string, 0, len(tags)), tags...)
	return out
}

// WithOwner returns a copy owned by ownerID.
func (s *ScriptAnalysis) WithOwner(ownerID string) *ScriptAnalysis {
	out := s.Clone()
	out.UserID = ownerID
	return out
}

// HasTag reports whether tag is already assigned.
func (s *ScriptAnalysis) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// AddTag returns a copy with the trimmed tag appended. The second return value
// is false, and the copy equals the receiver, when the tag is blank or
// already present.
func (s *ScriptAnalysis) AddTag(tag string) (*ScriptAnalysis, bool) {
	tag = strings.TrimSpace(tag)
	if tag == "" || s.HasTag(tag) {
		return s.Clone(), false
	}
	return s.WithTags(append(append(make([]string, 0, len(s.Tags)+1), s.Tags...), tag)), true
}

// RemoveTag returns a copy without tag.
func (s *ScriptAnalysis) RemoveTag(tag string) (*ScriptAnalysis, bool) {
	kept := make([]string, 0, len(s.Tags))
	for _, t := range s.Tags {
		if t != tag {
			kept = append(kept, t)
		}
	}
	return s.WithTags(kept), len(kept) != len(s.Tags)
}
