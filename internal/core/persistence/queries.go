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

// BigQuery statements of the remote store. The %s placeholder receives the
// fully qualified table name; every value is passed as a named parameter.
const (
	// QryMergeScripts upserts a batch of full records. @rows is an array of
	// scriptRow structs, the match is on the script id.
	QryMergeScripts = "MERGE `%s` T USING UNNEST(@rows) S ON T.id = S.id " +
		"WHEN MATCHED THEN UPDATE SET user_id = S.user_id, title = S.title, video_name = S.video_name, " +
		"created_at = S.created_at, tags = S.tags, scenes = S.scenes " +
		"WHEN NOT MATCHED THEN INSERT (id, user_id, title, video_name, created_at, tags, scenes) " +
		"VALUES (S.id, S.user_id, S.title, S.video_name, S.created_at, S.tags, S.scenes)"

	// QryFindScriptsByUser lists one owner's scripts, newest first.
	QryFindScriptsByUser = "SELECT id, user_id, title, video_name, created_at, tags, scenes FROM `%s` " +
		"WHERE user_id = @user_id ORDER BY created_at DESC"

	// QryDeleteScript removes one script, scoped to its owner.
	QryDeleteScript = "DELETE FROM `%s` WHERE id = @id AND user_id = @user_id"
)

// SQLite statements of the local store.
const (
	sqlUpsertScript = `INSERT INTO scripts (id, user_id, title, video_name, created_at, tags, scenes)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    user_id = excluded.user_id,
    title = excluded.title,
    video_name = excluded.video_name,
    created_at = excluded.created_at,
    tags = excluded.tags,
    scenes = excluded.scenes`

	sqlSelectScripts = `SELECT id, user_id, title, video_name, created_at, tags, scenes
FROM scripts ORDER BY created_at DESC, rowid DESC`

	sqlDeleteScript = `DELETE FROM scripts WHERE id = ?`

	sqlClearScripts = `DELETE FROM scripts`
)
