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

package test

import (
	"context"
	"sort"
	"sync"

	"github.com/jaycherian/gcp-go-script-studio/internal/core/model"
)

// MemoryGateway is an in-memory persistence.Gateway. Errors can be injected
// per operation.
type MemoryGateway struct {
	mu        sync.Mutex
	rows      map[string]*model.ScriptAnalysis
	SaveErr   error
	FetchErr  error
	DeleteErr error
	Saves     int

	// BeforeSave, when set, runs at the start of every Save.
	BeforeSave func(script *model.ScriptAnalysis)
}

// NewMemoryGateway creates an empty gateway holding scripts.
func NewMemoryGateway(scripts ...*model.ScriptAnalysis) *MemoryGateway {
	g := &MemoryGateway{rows: make(map[string]*model.ScriptAnalysis)}
	for _, s := range scripts {
		g.rows[s.ID] = s.Clone()
	}
	return g
}

// SetSaveErr changes the error returned by Save.
func (g *MemoryGateway) SetSaveErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.SaveErr = err
}

// Save implements persistence.Gateway.
func (g *MemoryGateway) Save(_ context.Context, script *model.ScriptAnalysis) error {
	if g.BeforeSave != nil {
		g.BeforeSave(script)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Saves++
	if g.SaveErr != nil {
		return model.NewError(model.KindPersistenceWriteFailed, "", g.SaveErr)
	}
	g.rows[script.ID] = script.Clone()
	return nil
}

// FetchAll implements persistence.Gateway.
func (g *MemoryGateway) FetchAll(_ context.Context, ownerID string) ([]*model.ScriptAnalysis, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FetchErr != nil {
		return nil, g.FetchErr
	}
	out := make([]*model.ScriptAnalysis, 0, len(g.rows))
	for _, s := range g.rows {
		if s.UserID == ownerID {
			out = append(out, s.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out, nil
}

// Delete implements persistence.Gateway.
func (g *MemoryGateway) Delete(_ context.Context, id string, ownerID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.DeleteErr != nil {
		return model.NewError(model.KindPersistenceDeleteFailed, "", g.DeleteErr)
	}
	if s, ok := g.rows[id]; ok && s.UserID == ownerID {
		delete(g.rows, id)
	}
	return nil
}

// MigrateGuestToUser implements persistence.Gateway.
func (g *MemoryGateway) MigrateGuestToUser(_ context.Context, userID string) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	count := 0
	for id, s := range g.rows {
		if s.UserID == model.GuestUserID {
			g.rows[id] = s.WithOwner(userID)
			count++
		}
	}
	return count, nil
}

// Stored returns the persisted copy of a script.
func (g *MemoryGateway) Stored(id string) (*model.ScriptAnalysis, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.rows[id]
	return s, ok
}
