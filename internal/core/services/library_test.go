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
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-script-studio/internal/core/model"
	"github.com/jaycherian/gcp-go-script-studio/internal/core/services"
	test "github.com/jaycherian/gcp-go-script-studio/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLibrary(t *testing.T, owner string) (*services.ScriptLibrary, *test.MemoryGateway, *model.ScriptAnalysis) {
	t.Helper()
	script := model.GetExampleScript(owner)
	older := model.NewScriptAnalysis(owner, "old.mp4", &model.AnalysisResult{Title: "Cũ"}, time.Now().Add(-time.Hour))
	gateway := test.NewMemoryGateway(older, script)
	library := services.NewScriptLibrary(model.NewWorkspace(owner), gateway)
	require.NoError(t, library.Load(context.Background()))
	return library, gateway, script
}

func TestLibraryLoadSortsNewestFirst(t *testing.T) {
	library, _, script := newLibrary(t, "user-1")
	scripts := library.Workspace.Scripts()
	require.Len(t, scripts, 2)
	assert.Equal(t, script.ID, scripts[0].ID)
}

func TestLibraryAddAndRemoveTag(t *testing.T) {
	ctx := context.Background()
	library, gateway, script := newLibrary(t, "user-1")

	updated, err := library.AddTag(ctx, script.ID, "  Sale  ")
	require.NoError(t, err)
	assert.Equal(t, []string{"Skincare", "Emmie", "MaskPad", "Sale"}, updated.Tags)
	stored, _ := gateway.Stored(script.ID)
	assert.True(t, stored.HasTag("Sale"))

	// Duplicates and blanks are ignored without a write.
	saves := gateway.Saves
	_, err = library.AddTag(ctx, script.ID, "Sale")
	require.NoError(t, err)
	_, err = library.AddTag(ctx, script.ID, "   ")
	require.NoError(t, err)
	assert.Equal(t, saves, gateway.Saves)

	updated, err = library.RemoveTag(ctx, script.ID, "Emmie")
	require.NoError(t, err)
	assert.Equal(t, []string{"Skincare", "MaskPad", "Sale"}, updated.Tags)

	// The original record is never modified in place.
	assert.Equal(t, []string{"Skincare", "Emmie", "MaskPad"}, script.Tags)
}

func TestLibraryFailedTagSaveKeepsLocalEdit(t *testing.T) {
	ctx := context.Background()
	library, gateway, script := newLibrary(t, "user-1")
	gateway.SetSaveErr(errors.New("bigquery down"))

	updated, err := library.AddTag(ctx, script.ID, "Sale")
	require.ErrorIs(t, err, model.ErrPersistenceWriteFailed)
	require.NotNil(t, updated)

	local, _ := library.Workspace.Get(script.ID)
	assert.True(t, local.HasTag("Sale"))
	assert.False(t, library.Workspace.IsSynced(script.ID))

	stored, _ := gateway.Stored(script.ID)
	assert.False(t, stored.HasTag("Sale"))

	// Resync pushes the pending edit once the store is back.
	gateway.SetSaveErr(nil)
	n, err := library.Resync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, library.Workspace.IsSynced(script.ID))
	stored, _ = gateway.Stored(script.ID)
	assert.True(t, stored.HasTag("Sale"))
}

func TestLibraryDelete(t *testing.T) {
	ctx := context.Background()
	library, gateway, script := newLibrary(t, model.GuestUserID)
	library.Workspace.SetCurrent(script.ID)

	gateway.DeleteErr = errors.New("locked")
	err := library.Delete(ctx, script.ID)
	require.ErrorIs(t, err, model.ErrPersistenceDeleteFailed)
	_, ok := library.Workspace.Get(script.ID)
	assert.True(t, ok, "a failed delete keeps the script")

	gateway.DeleteErr = nil
	require.NoError(t, library.Delete(ctx, script.ID))
	_, ok = library.Workspace.Get(script.ID)
	assert.False(t, ok)
	_, ok = library.Workspace.Current()
	assert.False(t, ok)
	_, ok = gateway.Stored(script.ID)
	assert.False(t, ok)

	assert.ErrorIs(t, library.Delete(ctx, script.ID), model.ErrNotFound)
}

func TestLibraryExport(t *testing.T) {
	library, _, script := newLibrary(t, "user-1")
	out, err := library.Export(script.ID)
	require.NoError(t, err)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "Skincare, Emmie, MaskPad\t"))

	_, err = library.Export("script-missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestLibraryReplaceScenesKeepsIdentity(t *testing.T) {
	library, _, script := newLibrary(t, "user-1")
	scenes := []*model.Scene{{ID: script.Scenes[0].ID, AudioScript: "mới"}}

	updated, err := library.ReplaceScenes(context.Background(), script.ID, scenes)
	require.NoError(t, err)
	assert.Equal(t, script.ID, updated.ID)
	assert.Equal(t, script.UserID, updated.UserID)
	assert.Equal(t, script.CreatedAt, updated.CreatedAt)
	assert.Len(t, updated.Scenes, 1)
}

func TestLibraryResyncWritesNewestVersion(t *testing.T) {
	ctx := context.Background()
	library, gateway, script := newLibrary(t, "user-1")
	older := library.Workspace.Scripts()[1]

	gateway.SetSaveErr(errors.New("offline"))
	_, err := library.AddTag(ctx, script.ID, "Sale")
	require.Error(t, err)
	_, err = library.AddTag(ctx, older.ID, "Cũ")
	require.Error(t, err)
	require.Len(t, library.Workspace.Unsynced(), 2)
	gateway.SetSaveErr(nil)

	// The older script is edited while the newer one is being written.
	edited := false
	gateway.BeforeSave = func(saving *model.ScriptAnalysis) {
		if edited || saving.ID != script.ID {
			return
		}
		edited = true
		current, ok := library.Workspace.Get(older.ID)
		require.True(t, ok)
		next, _ := current.AddTag("Hot")
		require.True(t, library.Workspace.Replace(next))
	}

	synced, err := library.Resync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, synced)
	assert.True(t, edited)

	stored, ok := gateway.Stored(older.ID)
	require.True(t, ok)
	assert.True(t, stored.HasTag("Cũ"))
	assert.True(t, stored.HasTag("Hot"))
	assert.Empty(t, library.Workspace.Unsynced())
}

func TestLibraryLoadKeepsUnsyncedScripts(t *testing.T) {
	ctx := context.Background()
	library, gateway, script := newLibrary(t, "user-1")

	gateway.SetSaveErr(errors.New("offline"))
	_, err := library.AddTag(ctx, script.ID, "Sale")
	require.Error(t, err)
	gateway.SetSaveErr(nil)

	require.NoError(t, library.Load(ctx))
	current, ok := library.Workspace.Get(script.ID)
	require.True(t, ok)
	assert.True(t, current.HasTag("Sale"))
	assert.False(t, library.Workspace.IsSynced(script.ID))
}
