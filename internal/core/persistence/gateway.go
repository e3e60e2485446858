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

// Package persistence stores scripts. Guest scripts live in a local SQLite
// database and scripts of signed in users in BigQuery, scoped by user id.
// Router hides the split behind a single Gateway and owns the one-shot
// migration of guest scripts to a user account.
package persistence

import (
	"context"
	"log/slog"

	"github.com/jaycherian/gcp-go-script-studio/internal/core/model"
	"github.com/pkg/errors"
)

// ScriptStore is one storage backend.
type ScriptStore interface {
	// Save inserts the record or replaces the stored record with the same id.
	Save(ctx context.Context, script *model.ScriptAnalysis) error
	// SaveAll upserts several records in one write.
	SaveAll(ctx context.Context, scripts []*model.ScriptAnalysis) error
	// FetchAll lists the owner's records, newest first.
	FetchAll(ctx context.Context, ownerID string) ([]*model.ScriptAnalysis, error)
	// Delete removes one record of the owner.
	Delete(ctx context.Context, id string, ownerID string) error
}

// LocalScriptStore is the guest backend. Everything it holds belongs to the
// guest namespace, so it can be emptied after a migration.
type LocalScriptStore interface {
	ScriptStore
	Clear(ctx context.Context) error
}

// Gateway is what the rest of the application persists through.
type Gateway interface {
	Save(ctx context.Context, script *model.ScriptAnalysis) error
	FetchAll(ctx context.Context, ownerID string) ([]*model.ScriptAnalysis, error)
	Delete(ctx context.Context, id string, ownerID string) error
	MigrateGuestToUser(ctx context.Context, userID string) (int, error)
}

var errRemoteNotConfigured = errors.New("remote script store is not configured")

// Router dispatches on the owner id: the guest sentinel goes to the local
// store, any other value to the remote store.
type Router struct {
	local  LocalScriptStore
	remote ScriptStore
}

// NewRouter creates a Router. remote may be nil when no project is
// configured; user scoped writes then fail and reads return nothing.
func NewRouter(local LocalScriptStore, remote ScriptStore) *Router {
	return &Router{local: local, remote: remote}
}

func (r *Router) storeFor(ownerID string) ScriptStore {
	if model.IsGuest(ownerID) {
		return r.local
	}
	return r.remote
}

// Save writes the full record to the store selected by its owner.
func (r *Router) Save(ctx context.Context, script *model.ScriptAnalysis) error {
	store := r.storeFor(script.UserID)
	if store == nil {
		return model.NewError(model.KindPersistenceWriteFailed, "", errRemoteNotConfigured)
	}
	if err := store.Save(ctx, script); err != nil {
		return model.NewError(model.KindPersistenceWriteFailed, "", errors.Wrapf(err, "save script %s", script.ID))
	}
	return nil
}

// FetchAll lists the owner's scripts, newest first. A remote failure is
// logged and reported as an empty list.
func (r *Router) FetchAll(ctx context.Context, ownerID string) ([]*model.ScriptAnalysis, error) {
	if model.IsGuest(ownerID) {
		scripts, err := r.local.FetchAll(ctx, ownerID)
		if err != nil {
			return nil, errors.Wrap(err, "fetch guest scripts")
		}
		return scripts, nil
	}
	store := r.storeFor(ownerID)
	if store == nil {
		slog.WarnContext(ctx, "remote store not configured, returning no scripts", "user_id", ownerID)
		return make([]*model.ScriptAnalysis, 0), nil
	}
	scripts, err := store.FetchAll(ctx, ownerID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to fetch scripts", "user_id", ownerID, "error", err)
		return make([]*model.ScriptAnalysis, 0), nil
	}
	return scripts, nil
}

// Delete removes the script from the owner's store. Failures are returned.
func (r *Router) Delete(ctx context.Context, id string, ownerID string) error {
	store := r.storeFor(ownerID)
	if store == nil {
		return model.NewError(model.KindPersistenceDeleteFailed, "", errRemoteNotConfigured)
	}
	if err := store.Delete(ctx, id, ownerID); err != nil {
		return model.NewError(model.KindPersistenceDeleteFailed, "", errors.Wrapf(err, "delete script %s", id))
	}
	return nil
}

// MigrateGuestToUser moves the guest scripts to userID. Records whose owner is
// exactly the guest sentinel are rewritten and written remotely in one batch;
// the local store is cleared once that write succeeded. It returns the number
// of migrated scripts, 0 without touching anything when there are none.
func (r *Router) MigrateGuestToUser(ctx context.Context, userID string) (int, error) {
	if model.IsGuest(userID) || userID == "" {
		return 0, errors.Errorf("cannot migrate guest scripts to owner %q", userID)
	}
	guests, err := r.local.FetchAll(ctx, model.GuestUserID)
	if err != nil {
		return 0, errors.Wrap(err, "read guest scripts")
	}
	migrated := make([]*model.ScriptAnalysis, 0, len(guests))
	for _, script := range guests {
		if script.UserID == model.GuestUserID {
			migrated = append(migrated, script.WithOwner(userID))
		}
	}
	if len(migrated) == 0 {
		return 0, nil
	}
	if r.remote == nil {
		return 0, model.NewError(model.KindPersistenceWriteFailed, "", errRemoteNotConfigured)
	}
	if err := r.remote.SaveAll(ctx, migrated); err != nil {
		return 0, model.NewError(model.KindPersistenceWriteFailed, "", errors.Wrap(err, "migrate guest scripts"))
	}
	if err := r.local.Clear(ctx); err != nil {
		// Remote copies are committed; a later migration upserts the same ids.
		slog.ErrorContext(ctx, "failed to clear guest scripts after migration", "error", err)
	}
	slog.InfoContext(ctx, "migrated guest scripts", "user_id", userID, "count", len(migrated))
	return len(migrated), nil
}
