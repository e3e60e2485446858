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

package persistence

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jaycherian/gcp-go-script-studio/internal/core/model"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// LocalStore keeps guest scripts in a SQLite file. Tags and scenes are stored
// as JSON columns.
type LocalStore struct {
	conn *sql.DB
}

// NewLocalStore opens (and creates) the database at dbPath and applies the
// embedded migrations.
func NewLocalStore(dbPath string) (*LocalStore, error) {
	if dbPath != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, errors.Wrap(err, "failed to create database directory")
		}
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	// One connection: SQLite serializes writers and an in-memory database
	// only exists per connection.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, errors.Wrapf(err, "failed to execute %s", pragma)
		}
	}

	store := &LocalStore{conn: conn}
	if err := store.migrate(); err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "failed to run migrations")
	}
	return store, nil
}

// Close closes the database.
func (s *LocalStore) Close() error {
	return s.conn.Close()
}

func (s *LocalStore) migrate() error {
	migrations, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return errors.Wrap(err, "failed to read migrations")
	}
	for _, m := range migrations {
		if m.IsDir() {
			continue
		}
		name := m.Name()
		if s.isMigrationApplied(name) {
			continue
		}
		content, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return errors.Wrapf(err, "failed to read migration %s", name)
		}
		if _, err := s.conn.Exec(string(content)); err != nil {
			return errors.Wrapf(err, "failed to execute migration %s", name)
		}
		if _, err := s.conn.Exec("INSERT INTO _migrations (name) VALUES (?)", name); err != nil {
			return errors.Wrapf(err, "failed to record migration %s", name)
		}
		slog.Info("applied migration", "name", name)
	}
	return nil
}

func (s *LocalStore) isMigrationApplied(name string) bool {
	var exists int
	err := s.conn.QueryRow("SELECT 1 FROM sqlite_master WHERE type='table' AND name='_migrations'").Scan(&exists)
	if err != nil {
		return false
	}
	var applied int
	err = s.conn.QueryRow("SELECT 1 FROM _migrations WHERE name = ?", name).Scan(&applied)
	return err == nil && applied == 1
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func upsert(ctx context.Context, db execer, script *model.ScriptAnalysis) error {
	tags, err := json.Marshal(nonNilTags(script.Tags))
	if err != nil {
		return errors.Wrap(err, "encode tags")
	}
	scenes, err := json.Marshal(nonNilScenes(script.Scenes))
	if err != nil {
		return errors.Wrap(err, "encode scenes")
	}
	_, err = db.ExecContext(ctx, sqlUpsertScript,
		script.ID, script.UserID, script.Title, script.VideoName, script.CreatedAt, string(tags), string(scenes))
	return errors.Wrapf(err, "upsert script %s", script.ID)
}

// Save upserts one script.
func (s *LocalStore) Save(ctx context.Context, script *model.ScriptAnalysis) error {
	return upsert(ctx, s.conn, script)
}

// SaveAll upserts the scripts in a single transaction.
func (s *LocalStore) SaveAll(ctx context.Context, scripts []*model.ScriptAnalysis) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	for _, script := range scripts {
		if err := upsert(ctx, tx, script); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return errors.Wrap(tx.Commit(), "commit transaction")
}

// FetchAll returns every record of the guest namespace, newest first. The
// owner argument is accepted for interface symmetry; records keep their own
// user id so a migration can tell guest records apart.
func (s *LocalStore) FetchAll(ctx context.Context, _ string) ([]*model.ScriptAnalysis, error) {
	rows, err := s.conn.QueryContext(ctx, sqlSelectScripts)
	if err != nil {
		return nil, errors.Wrap(err, "query scripts")
	}
	defer rows.Close()

	out := make([]*model.ScriptAnalysis, 0)
	for rows.Next() {
		var (
			script model.ScriptAnalysis
			tags   string
			scenes string
		)
		if err := rows.Scan(&script.ID, &script.UserID, &script.Title, &script.VideoName, &script.CreatedAt, &tags, &scenes); err != nil {
			return nil, errors.Wrap(err, "scan script")
		}
		if err := json.Unmarshal([]byte(tags), &script.Tags); err != nil {
			return nil, errors.Wrapf(err, "decode tags of %s", script.ID)
		}
		if err := json.Unmarshal([]byte(scenes), &script.Scenes); err != nil {
			return nil, errors.Wrapf(err, "decode scenes of %s", script.ID)
		}
		script.Tags = nonNilTags(script.Tags)
		script.Scenes = nonNilScenes(script.Scenes)
		out = append(out, &script)
	}
	return out, errors.Wrap(rows.Err(), "iterate scripts")
}

// Delete removes a script by id. Deleting a missing id is not an error.
func (s *LocalStore) Delete(ctx context.Context, id string, _ string) error {
	_, err := s.conn.ExecContext(ctx, sqlDeleteScript, id)
	return errors.Wrapf(err, "delete script %s", id)
}

// Clear empties the guest namespace.
func (s *LocalStore) Clear(ctx context.Context) error {
	_, err := s.conn.ExecContext(ctx, sqlClearScripts)
	return errors.Wrap(err, "clear scripts")
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return make([]string, 0)
	}
	return tags
}

func nonNilScenes(scenes []*model.Scene) []*model.Scene {
	if scenes == nil {
		return make([]*model.Scene, 0)
	}
	return scenes
}
