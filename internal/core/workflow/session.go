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

package workflow

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jaycherian/gcp-go-script-studio/internal/core/model"
	"github.com/jaycherian/gcp-go-script-studio/internal/core/persistence"
	"github.com/jaycherian/gcp-go-script-studio/internal/core/services"
)

// Session is everything the server keeps for one owner: the library and the
// orchestrator that runs its batches.
type Session struct {
	Owner        string
	Library      *services.ScriptLibrary
	Orchestrator *BatchOrchestrator
}

// SessionRegistry creates sessions on first use. The guest owner shares a
// single session because guest scripts live in one local store.
type SessionRegistry struct {
	gateway   persistence.Gateway
	ingester  Ingester
	optimizer Optimizer
	delay     time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry(gateway persistence.Gateway, ingester Ingester, optimizer Optimizer, delay time.Duration) *SessionRegistry {
	return &SessionRegistry{
		gateway:   gateway,
		ingester:  ingester,
		optimizer: optimizer,
		delay:     delay,
		sessions:  make(map[string]*Session),
	}
}

// NormalizeOwner maps an empty owner id to the guest sentinel.
func NormalizeOwner(owner string) string {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return model.GuestUserID
	}
	return owner
}

// Get returns the owner's session, loading its library on first use.
func (r *SessionRegistry) Get(ctx context.Context, owner string) (*Session, error) {
	owner = NormalizeOwner(owner)
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[owner]; ok {
		return s, nil
	}
	library := services.NewScriptLibrary(model.NewWorkspace(owner), r.gateway)
	if err := library.Load(ctx); err != nil {
		return nil, err
	}
	s := &Session{
		Owner:        owner,
		Library:      library,
		Orchestrator: NewBatchOrchestrator(r.ingester, r.optimizer, library, r.delay),
	}
	r.sessions[owner] = s
	return s, nil
}

// Sessions returns the open sessions ordered by owner.
func (r *SessionRegistry) Sessions() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Owner < out[j].Owner })
	return out
}

// MigrateGuest moves the guest scripts to userID and reloads the affected
// sessions. Scripts still waiting for a write survive the reload.
//
// Inputs:
//   - ctx: context of the store calls.
//   - userID: the signed-in owner receiving the guest scripts.
//
// Outputs:
//   - int: the number of migrated scripts.
//   - error: Busy while either session is running, or the store error.
func (r *SessionRegistry) MigrateGuest(ctx context.Context, userID string) (int, error) {
	userID = NormalizeOwner(userID)
	r.mu.Lock()
	guest := r.sessions[model.GuestUserID]
	user := r.sessions[userID]
	r.mu.Unlock()
	for _, s := range []*Session{guest, user} {
		if s != nil && s.Orchestrator.State().Phase.IsActive() {
			return 0, model.NewError(model.KindBusy, "", nil)
		}
	}

	count, err := r.gateway.MigrateGuestToUser(ctx, userID)
	if err != nil || count == 0 {
		return count, err
	}
	for _, s := range []*Session{guest, user} {
		if s == nil {
			continue
		}
		if err := s.Library.Load(ctx); err != nil {
			return count, err
		}
	}
	return count, nil
}
