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

package model_test

import (
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-script-studio/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScriptAnalysis(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	doc := &model.AnalysisDocument{Title: "", Scenes: model.GetExampleScenes()}
	script := model.NewScriptAnalysis("user-1", "clip.mp4", doc.ToResult(), now)

	assert.Equal(t, "user-1", script.UserID)
	assert.Equal(t, model.PlaceholderTitle, script.Title)
	assert.Equal(t, "clip.mp4", script.VideoName)
	assert.Equal(t, now.UnixMilli(), script.CreatedAt)
	assert.Empty(t, script.Tags)
	require.Len(t, script.Scenes, 2)
	assert.NotEqual(t, script.Scenes[0].ID, script.Scenes[1].ID)

	noResult := model.NewScriptAnalysis("guest", "clip.mp4", nil, now)
	assert.Equal(t, "clip.mp4", noResult.Title)
	assert.NotNil(t, noResult.Scenes)
}

func TestScriptIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	now := time.Now()
	for i := 0; i < 500; i++ {
		s := model.NewScriptAnalysis(model.GuestUserID, "a.mp4", nil, now)
		require.False(t, seen[s.ID], "duplicate id %s", s.ID)
		seen[s.ID] = true
	}
}

func TestSceneDocumentPlaceholders(t *testing.T) {
	scene := (&model.SceneDocument{Type: "Hook"}).ToScene()
	assert.Equal(t, "Hook", scene.Type)
	assert.Equal(t, model.PlaceholderStartTime, scene.StartTime)
	assert.Equal(t, model.PlaceholderEndTime, scene.EndTime)
	assert.Equal(t, model.PlaceholderVisual, scene.VisualDescription)
	assert.Equal(t, model.PlaceholderAudio, scene.AudioScript)
	assert.Contains(t, scene.ID, "scene-")
}

func TestNewMalformedResult(t *testing.T) {
	res := model.NewMalformedResult("not json at all")
	assert.True(t, res.Malformed)
	assert.Equal(t, "Lỗi định dạng (Xem chi tiết)", res.Title)
	require.Len(t, res.Scenes, 1)
	assert.Equal(t, "00:00", res.Scenes[0].StartTime)
	assert.Equal(t, "End", res.Scenes[0].EndTime)
	assert.Equal(t, "Lỗi phân tích", res.Scenes[0].Type)
	assert.Equal(t, "not json at all", res.Scenes[0].AudioScript)
}

func TestCopyOnWrite(t *testing.T) {
	original := model.GetExampleScript("user-1")
	origTags := append([]string{}, original.Tags...)
	origAudio := original.Scenes[0].AudioScript

	tagged, added := original.AddTag("  Viral ")
	require.True(t, added)
	assert.Equal(t, append(origTags, "Viral"), tagged.Tags)
	assert.Equal(t, origTags, original.Tags)

	_, added = tagged.AddTag("Viral")
	assert.False(t, added)
	_, added = tagged.AddTag("   ")
	assert.False(t, added)

	removed, ok := tagged.RemoveTag("Emmie")
	assert.True(t, ok)
	assert.False(t, removed.HasTag("Emmie"))
	assert.True(t, tagged.HasTag("Emmie"))

	scenes := []*model.Scene{original.Scenes[0].Clone()}
	scenes[0].AudioScript = "rewritten"
	optimized := original.WithScenes(scenes)
	assert.Equal(t, original.ID, optimized.ID)
	assert.Equal(t, original.UserID, optimized.UserID)
	assert.Equal(t, original.CreatedAt, optimized.CreatedAt)
	assert.Equal(t, "rewritten", optimized.Scenes[0].AudioScript)
	assert.Equal(t, origAudio, original.Scenes[0].AudioScript)

	scenes[0].AudioScript = "changed after the fact"
	assert.Equal(t, "rewritten", optimized.Scenes[0].AudioScript)

	moved := original.WithOwner("user-2")
	assert.Equal(t, "user-2", moved.UserID)
	assert.Equal(t, "user-1", original.UserID)
}
