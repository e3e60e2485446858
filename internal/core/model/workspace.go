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
	"sort"
	"sync"
)

// Workspace is the in-memory view of one owner's library: the saved scripts,
// newest first, the script currently displayed, and the ids of scripts whose
// last write to the backing store failed.
//
// Updates are copy-on-write. The slice returned by Scripts is never modified
// after it is returned and records are replaced rather than edited.
type Workspace struct {
	mu       sync.RWMutex
	ownerID  string
	scripts  []*ScriptAnalysis
	current  string
	unsynced map[string]bool
}

// NewWorkspace creates an empty workspace for ownerID.
func NewWorkspace(ownerID string) *Workspace {
	return &Workspace{ownerID: ownerID, scripts: make([]*ScriptAnalysis, 0), unsynced: make(map[string]bool)}
}

// OwnerID returns the owner the workspace belongs to.
func (w *Workspace) OwnerID() string {
	return w.ownerID
}

// Reset replaces the whole list, e.g. after loading from the store.
func (w *Workspace) Reset(scripts []*ScriptAnalysis) {
	sorted := append(make([]*ScriptAnalysis, 0, len(scripts)), scripts...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt > sorted[j].CreatedAt })
	w.mu.Lock()
	defer w.mu.Unlock()
	w.scripts = sorted
	w.current = ""
	w.unsynced = make(map[string]bool)
}

// Reload replaces the list with the stored scripts but keeps every record
// still waiting for a write. The local version of such a record wins over the
// stored one and stays flagged unsynced. The current pointer survives when
// its script is still listed.
func (w *Workspace) Reload(stored []*ScriptAnalysis) {
	w.mu.Lock()
	defer w.mu.Unlock()
	pending := make([]*ScriptAnalysis, 0, len(w.unsynced))
	for _, s := range w.scripts {
		if w.unsynced[s.ID] {
			pending = append(pending, s)
		}
	}
	merged := make([]*ScriptAnalysis, 0, len(stored)+len(pending))
	merged = append(merged, pending...)
	for _, s := range stored {
		if !w.unsynced[s.ID] {
			merged = append(merged, s)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].CreatedAt > merged[j].CreatedAt })

	unsynced := make(map[string]bool, len(pending))
	current := ""
	for _, s := range merged {
		if w.unsynced[s.ID] {
			unsynced[s.ID] = true
		}
		if s.ID == w.current {
			current = s.ID
		}
	}
	w.scripts = merged
	w.unsynced = unsynced
	w.current = current
}

// Scripts returns the saved scripts, newest first.
func (w *Workspace) Scripts() []*ScriptAnalysis {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.scripts
}

// Get returns the script with the given id.
func (w *Workspace) Get(id string) (*ScriptAnalysis, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, s := range w.scripts {
		if s.ID == id {
			return s, true
		}
	}
	return nil, false
}

// Prepend adds a new script at the front of the list.
func (w *Workspace) Prepend(script *ScriptAnalysis) {
	w.mu.Lock()
	defer w.mu.Unlock()
	next := make([]*ScriptAnalysis, 0, len(w.scripts)+1)
	next = append(next, script)
	for _, s := range w.scripts {
		if s.ID != script.ID {
			next = append(next, s)
		}
	}
	w.scripts = next
}

// Replace swaps the stored record that has the same id. It returns false when
// no such record exists.
func (w *Workspace) Replace(script *ScriptAnalysis) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	next := make([]*ScriptAnalysis, len(w.scripts))
	found := false
	for i, s := range w.scripts {
		if s.ID == script.ID {
			next[i] = script
			found = true
		} else {
			next[i] = s
		}
	}
	if found {
		w.scripts = next
	}
	return found
}

// Remove drops the script with the given id and clears the current pointer
// if it referenced it.
func (w *Workspace) Remove(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	next := make([]*ScriptAnalysis, 0, len(w.scripts))
	for _, s := range w.scripts {
		if s.ID != id {
			next = append(next, s)
		}
	}
	w.scripts = next
	delete(w.unsynced, id)
	if w.current == id {
		w.current = ""
	}
}

// SetCurrent marks the script shown to the user.
func (w *Workspace) SetCurrent(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.current = id
}

// Current returns the displayed script, if any.
func (w *Workspace) Current() (*ScriptAnalysis, bool) {
	w.mu.RLock()
	id := w.current
	w.mu.RUnlock()
	if id == "" {
		return nil, false
	}
	return w.Get(id)
}

// MarkUnsynced flags a script whose last write did not reach the store.
func (w *Workspace) MarkUnsynced(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.unsynced[id] = true
}

// MarkSynced clears the unsynced flag.
func (w *Workspace) MarkSynced(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.unsynced, id)
}

// IsSynced reports whether the script's last write was confirmed.
func (w *Workspace) IsSynced(id string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return !w.unsynced[id]
}

// Unsynced returns the scripts waiting for a successful write, newest first.
func (w *Workspace) Unsynced() []*ScriptAnalysis {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]*ScriptAnalysis, 0, len(w.unsynced))
	for _, s := range w.scripts {
		if w.unsynced[s.ID] {
			out = append(out, s)
		}
	}
	return out
}
