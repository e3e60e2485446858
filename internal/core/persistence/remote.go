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
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/jaycherian/gcp-go-script-studio/internal/core/model"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"
)

// sceneRow is the BigQuery shape of a scene, nested in scriptRow.
type sceneRow struct {
	ID                string `bigquery:"id"`
	StartTime         string `bigquery:"start_time"`
	EndTime           string `bigquery:"end_time"`
	Type              string `bigquery:"type"`
	VisualDescription string `bigquery:"visual_description"`
	AudioScript       string `bigquery:"audio_script"`
}

// scriptRow is one row of the scripts table. It doubles as the element type
// of the @rows MERGE parameter.
type scriptRow struct {
	ID        string     `bigquery:"id"`
	UserID    string     `bigquery:"user_id"`
	Title     string     `bigquery:"title"`
	VideoName string     `bigquery:"video_name"`
	CreatedAt int64      `bigquery:"created_at"`
	Tags      []string   `bigquery:"tags"`
	Scenes    []sceneRow `bigquery:"scenes"`
}

func toRow(script *model.ScriptAnalysis) scriptRow {
	row := scriptRow{
		ID:        script.ID,
		UserID:    script.UserID,
		Title:     script.Title,
		VideoName: script.VideoName,
		CreatedAt: script.CreatedAt,
		Tags:      nonNilTags(script.Tags),
		Scenes:    make([]sceneRow, 0, len(script.Scenes)),
	}
	for _, s := range script.Scenes {
		row.Scenes = append(row.Scenes, sceneRow{
			ID:                s.ID,
			StartTime:         s.StartTime,
			EndTime:           s.EndTime,
			Type:              s.Type,
			VisualDescription: s.VisualDescription,
			AudioScript:       s.AudioScript,
		})
	}
	return row
}

func (r *scriptRow) toModel() *model.ScriptAnalysis {
	out := &model.ScriptAnalysis{
		ID:        r.ID,
		UserID:    r.UserID,
		Title:     r.Title,
		VideoName: r.VideoName,
		CreatedAt: r.CreatedAt,
		Tags:      nonNilTags(r.Tags),
		Scenes:    make([]*model.Scene, 0, len(r.Scenes)),
	}
	for _, s := range r.Scenes {
		out.Scenes = append(out.Scenes, &model.Scene{
			ID:                s.ID,
			StartTime:         s.StartTime,
			EndTime:           s.EndTime,
			Type:              s.Type,
			VisualDescription: s.VisualDescription,
			AudioScript:       s.AudioScript,
		})
	}
	return out
}

// RemoteStore keeps the scripts of signed in users in one BigQuery table,
// one row per script with the scenes nested.
type RemoteStore struct {
	BigqueryClient *bigquery.Client
	DatasetName    string
	ScriptsTable   string
}

// NewRemoteStore creates a store over dataset.table.
func NewRemoteStore(client *bigquery.Client, dataset string, table string) *RemoteStore {
	return &RemoteStore{BigqueryClient: client, DatasetName: dataset, ScriptsTable: table}
}

// GetFQN returns the table name as used in standard SQL, e.g.
// project.script_studio.scripts.
func (s *RemoteStore) GetFQN() string {
	fqn := s.BigqueryClient.Dataset(s.DatasetName).Table(s.ScriptsTable).FullyQualifiedName()
	return strings.Replace(fqn, ":", ".", -1)
}

func (s *RemoteStore) run(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return err
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return err
	}
	return status.Err()
}

// Save upserts one script.
func (s *RemoteStore) Save(ctx context.Context, script *model.ScriptAnalysis) error {
	return s.SaveAll(ctx, []*model.ScriptAnalysis{script})
}

// SaveAll upserts all scripts with a single MERGE statement.
func (s *RemoteStore) SaveAll(ctx context.Context, scripts []*model.ScriptAnalysis) error {
	if len(scripts) == 0 {
		return nil
	}
	rows := make([]scriptRow, 0, len(scripts))
	for _, script := range scripts {
		rows = append(rows, toRow(script))
	}
	q := s.BigqueryClient.Query(fmt.Sprintf(QryMergeScripts, s.GetFQN()))
	q.Parameters = []bigquery.QueryParameter{{Name: "rows", Value: rows}}
	return errors.Wrapf(s.run(ctx, q), "merge %d scripts", len(rows))
}

// FetchAll lists the scripts of ownerID, newest first.
func (s *RemoteStore) FetchAll(ctx context.Context, ownerID string) ([]*model.ScriptAnalysis, error) {
	q := s.BigqueryClient.Query(fmt.Sprintf(QryFindScriptsByUser, s.GetFQN()))
	q.Parameters = []bigquery.QueryParameter{{Name: "user_id", Value: ownerID}}
	itr, err := q.Read(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "query scripts")
	}
	out := make([]*model.ScriptAnalysis, 0)
	for {
		var row scriptRow
		err := itr.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "read script row")
		}
		out = append(out, row.toModel())
	}
	return out, nil
}

// Delete removes one script of ownerID.
func (s *RemoteStore) Delete(ctx context.Context, id string, ownerID string) error {
	q := s.BigqueryClient.Query(fmt.Sprintf(QryDeleteScript, s.GetFQN()))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "id", Value: id},
		{Name: "user_id", Value: ownerID},
	}
	return errors.Wrapf(s.run(ctx, q), "delete script %s", id)
}
