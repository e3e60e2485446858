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

package services

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jaycherian/gcp-go-script-studio/internal/core/model"
	"github.com/jaycherian/gcp-go-script-studio/internal/core/persistence"
	"github.com/pkg/errors"
)

// ScriptLibrary applies single-script actions to one owner's workspace and
// persists them through the gateway. Writes are serialized so a retried save
// never overtakes a newer edit of the same script.
type ScriptLibrary struct {
	Workspace *model.Workspace
	Gateway   persistence.Gateway

	mu sync.Mutex
}

// NewScriptLibrary creates a library over an existing workspace.
func NewScriptLibrary(workspace *model.Workspace, gateway persistence.Gateway) *ScriptLibrary {
	return &ScriptLibrary{Workspace: workspace, Gateway: gateway}
}

// Load refreshes the workspace from the owner's stored scripts. Scripts whose
// last write failed are kept in their local version.
//
// Inputs:
//   - ctx: context of the store read
//
// Outputs:
//   - error: the store read error; the workspace is unchanged then
func (l *ScriptLibrary) Load(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	scripts, err := l.Gateway.FetchAll(ctx, l.Workspace.OwnerID())
	if err != nil {
		return err
	}
	l.Workspace.Reload(scripts)
	slog.DebugContext(ctx, "library loaded", "owner", l.Workspace.OwnerID(), "count", len(scripts))
	return nil
}

// Get returns one script of the workspace or NotFound.
func (l *ScriptLibrary) Get(id string) (*model.ScriptAnalysis, error) {
	script, ok := l.Workspace.Get(id)
	if !ok {
		return nil, model.NewError(model.KindNotFound, "", errors.Errorf("script %s", id))
	}
	return script, nil
}

// Store saves script and records the outcome on the workspace. The local
// version is kept either way; a failed write marks it unsynced.
func (l *ScriptLibrary) Store(ctx context.Context, script *model.ScriptAnalysis) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store(ctx, script)
}

func (l *ScriptLibrary) store(ctx context.Context, script *model.ScriptAnalysis) error {
	if err := l.Gateway.Save(ctx, script); err != nil {
		l.Workspace.MarkUnsynced(script.ID)
		slog.WarnContext(ctx, "script kept locally, write failed", "script_id", script.ID, "error", err)
		return err
	}
	l.Workspace.MarkSynced(script.ID)
	return nil
}

// AddTag assigns a tag. A blank or duplicate tag leaves the script untouched
// and returns it without error.
func (l *ScriptLibrary) AddTag(ctx context.Context, id string, tag string) (*model.ScriptAnalysis, error) {
	script, err := l.Get(id)
	if err != nil {
		return nil, err
	}
	updated, changed := script.AddTag(tag)
	if !changed {
		return script, nil
	}
	return l.replace(ctx, updated)
}

// RemoveTag drops a tag.
func (l *ScriptLibrary) RemoveTag(ctx context.Context, id string, tag string) (*model.ScriptAnalysis, error) {
	script, err := l.Get(id)
	if err != nil {
		return nil, err
	}
	updated, changed := script.RemoveTag(tag)
	if !changed {
		return script, nil
	}
	return l.replace(ctx, updated)
}

// ReplaceScenes stores the rewritten scenes of a script.
func (l *ScriptLibrary) ReplaceScenes(ctx context.Context, id string, scenes []*model.Scene) (*model.ScriptAnalysis, error) {
	script, err := l.Get(id)
	if err != nil {
		return nil, err
	}
	return l.replace(ctx, script.WithScenes(scenes))
}

// replace swaps the record in the workspace before saving, so a failed write
// keeps the edit. The updated script is returned together with the write error.
func (l *ScriptLibrary) replace(ctx context.Context, updated *model.ScriptAnalysis) (*model.ScriptAnalysis, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.Workspace.Replace(updated) {
		return nil, model.NewError(model.KindNotFound, "", errors.Errorf("script %s", updated.ID))
	}
	if err := l.store(ctx, updated); err != nil {
		return updated, err
	}
	return updated, nil
}

// Delete removes the script from the store first and from the workspace only
// once that succeeded.
func (l *ScriptLibrary) Delete(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.Get(id); err != nil {
		return err
	}
	if err := l.Gateway.Delete(ctx, id, l.Workspace.OwnerID()); err != nil {
		return err
	}
	l.Workspace.Remove(id)
	return nil
}

// Export renders a script as TSV.
func (l *ScriptLibrary) Export(id string) (string, error) {
	script, err := l.Get(id)
	if err != nil {
		return "", err
	}
	return model.ExportTSV(script), nil
}

// Resync retries the writes of every unsynced script and returns how many
// succeeded. The error of the last failed write, if any, is returned too.
// Each script is read again right before its write so the newest local
// version is the one saved.
func (l *ScriptLibrary) Resync(ctx context.Context) (int, error) {
	synced := 0
	var lastErr error
	for _, pending := range l.Workspace.Unsynced() {
		if ctx.Err() != nil {
			return synced, ctx.Err()
		}
		ok, err := l.resyncOne(ctx, pending.ID)
		if err != nil {
			lastErr = err
			continue
		}
		if ok {
			synced++
		}
	}
	if synced > 0 {
		slog.InfoContext(ctx, "resynced scripts", "owner", l.Workspace.OwnerID(), "count", synced)
	}
	return synced, lastErr
}

func (l *ScriptLibrary) resyncOne(ctx context.Context, id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	script, ok := l.Workspace.Get(id)
	if !ok || l.Workspace.IsSynced(id) {
		return false, nil
	}
	if err := l.store(ctx, script); err != nil {
		return false, err
	}
	return true, nil
}
