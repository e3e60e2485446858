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

package workflow_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-script-studio/internal/core/cor"
	"github.com/jaycherian/gcp-go-script-studio/internal/core/model"
	"github.com/jaycherian/gcp-go-script-studio/internal/core/workflow"
	test "github.com/jaycherian/gcp-go-script-studio/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storedScript(owner string, title string, createdAt int64) *model.ScriptAnalysis {
	result := &model.AnalysisResult{Title: title, Scenes: []*model.Scene{{ID: model.NewSceneID(), AudioScript: "xin chào"}}}
	return model.NewScriptAnalysis(owner, title+".mp4", result, time.UnixMilli(createdAt))
}

func TestSessionRegistryLoadsOnce(t *testing.T) {
	gateway := test.NewMemoryGateway(storedScript("user-1", "old", 1000), storedScript("user-1", "new", 2000), storedScript(model.GuestUserID, "guest", 1500))
	registry := workflow.NewSessionRegistry(gateway, nil, nil, 0)

	session, err := registry.Get(context.Background(), "  ")
	require.NoError(t, err)
	assert.Equal(t, model.GuestUserID, session.Owner)
	assert.Len(t, session.Library.Workspace.Scripts(), 1)

	user, err := registry.Get(context.Background(), "user-1")
	require.NoError(t, err)
	scripts := user.Library.Workspace.Scripts()
	require.Len(t, scripts, 2)
	assert.Equal(t, "new", scripts[0].Title)

	again, err := registry.Get(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Same(t, user, again)

	sessions := registry.Sessions()
	require.Len(t, sessions, 2)
	assert.Equal(t, model.GuestUserID, sessions[0].Owner)
	assert.Equal(t, "user-1", sessions[1].Owner)
}

func TestSessionRegistryLoadFailure(t *testing.T) {
	gateway := test.NewMemoryGateway()
	gateway.FetchErr = errors.New("dataset not found")
	registry := workflow.NewSessionRegistry(gateway, nil, nil, 0)

	_, err := registry.Get(context.Background(), "user-1")
	assert.Error(t, err)
	assert.Empty(t, registry.Sessions())
}

func TestMigrateGuest(t *testing.T) {
	gateway := test.NewMemoryGateway(storedScript(model.GuestUserID, "a", 1000), storedScript(model.GuestUserID, "b", 2000), storedScript("user-1", "c", 3000))
	registry := workflow.NewSessionRegistry(gateway, nil, nil, 0)
	guest, err := registry.Get(context.Background(), model.GuestUserID)
	require.NoError(t, err)
	user, err := registry.Get(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, guest.Library.Workspace.Scripts(), 2)

	count, err := registry.MigrateGuest(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Empty(t, guest.Library.Workspace.Scripts())
	scripts := user.Library.Workspace.Scripts()
	require.Len(t, scripts, 3)
	for _, s := range scripts {
		assert.Equal(t, "user-1", s.UserID)
	}

	count, err = registry.MigrateGuest(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMigrateGuestWhileBusy(t *testing.T) {
	gate := &gatedIngester{started: make(chan struct{}), release: make(chan struct{})}
	registry := workflow.NewSessionRegistry(test.NewMemoryGateway(), gate, nil, 0)
	guest, err := registry.Get(context.Background(), model.GuestUserID)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := guest.Orchestrator.RunSingle(context.Background(), model.NewURLSource("https://cdn.example.com/a.mp4"))
		done <- err
	}()
	<-gate.started

	_, err = registry.MigrateGuest(context.Background(), "user-1")
	assert.ErrorIs(t, err, model.ErrBusy)

	close(gate.release)
	require.NoError(t, <-done)
}

func TestMigrateGuestKeepsUnsyncedUserScripts(t *testing.T) {
	ctx := context.Background()
	gateway := test.NewMemoryGateway(storedScript(model.GuestUserID, "a", 1000))
	registry := workflow.NewSessionRegistry(gateway, nil, nil, 0)
	_, err := registry.Get(ctx, model.GuestUserID)
	require.NoError(t, err)
	user, err := registry.Get(ctx, "user-1")
	require.NoError(t, err)

	pending := storedScript("user-1", "pending", 5000)
	gateway.SetSaveErr(errors.New("quota exceeded"))
	require.Error(t, user.Library.Store(ctx, pending))
	user.Library.Workspace.Prepend(pending)
	gateway.SetSaveErr(nil)

	count, err := registry.MigrateGuest(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	scripts := user.Library.Workspace.Scripts()
	require.Len(t, scripts, 2)
	assert.Equal(t, pending.ID, scripts[0].ID)
	assert.False(t, user.Library.Workspace.IsSynced(pending.ID))
	_, stored := gateway.Stored(pending.ID)
	assert.False(t, stored)

	synced, err := user.Library.Resync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, synced)
	_, stored = gateway.Stored(pending.ID)
	assert.True(t, stored)
}

func TestScriptResyncWorkflow(t *testing.T) {
	gateway := test.NewMemoryGateway()
	registry := workflow.NewSessionRegistry(gateway, nil, nil, 0)
	session, err := registry.Get(context.Background(), "user-1")
	require.NoError(t, err)

	script := storedScript("user-1", "pending", 1000)
	gateway.SetSaveErr(errors.New("quota exceeded"))
	require.Error(t, session.Library.Store(context.Background(), script))
	session.Library.Workspace.Prepend(script)

	resync := workflow.NewScriptResyncWorkflow(registry, time.Minute)
	chCtx := cor.NewBaseContext()
	chCtx.SetContext(context.Background())
	resync.Execute(chCtx)
	assert.True(t, chCtx.HasErrors())
	assert.Contains(t, chCtx.GetErrors(), "script-resync/user-1")
	assert.False(t, session.Library.Workspace.IsSynced(script.ID))

	gateway.SetSaveErr(nil)
	chCtx = cor.NewBaseContext()
	chCtx.SetContext(context.Background())
	resync.Execute(chCtx)
	require.False(t, chCtx.HasErrors())
	assert.Equal(t, 1, chCtx.Get(cor.CtxOut))
	assert.True(t, session.Library.Workspace.IsSynced(script.ID))
	_, ok := gateway.Stored(script.ID)
	assert.True(t, ok)
}

func TestScriptResyncTimerStops(t *testing.T) {
	gateway := test.NewMemoryGateway()
	registry := workflow.NewSessionRegistry(gateway, nil, nil, 0)
	session, err := registry.Get(context.Background(), "user-1")
	require.NoError(t, err)
	script := storedScript("user-1", "pending", 1000)
	session.Library.Workspace.Prepend(script)
	session.Library.Workspace.MarkUnsynced(script.ID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	workflow.NewScriptResyncWorkflow(registry, 10*time.Millisecond).StartTimer(ctx)

	assert.Eventually(t, func() bool {
		return session.Library.Workspace.IsSynced(script.ID)
	}, time.Second, 10*time.Millisecond)
}

func TestBatchRequestWorkflow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write(fakeVideo)
	}))
	defer server.Close()

	h := newHarness(t, model.GuestUserID, 0)
	registry := workflow.NewSessionRegistry(h.gateway, h.ingestion, nil, 0)
	batch := workflow.NewBatchRequestWorkflow(registry)

	traceCtx, span := tracer.Start(context.Background(), "batch-request")
	defer span.End()
	chCtx := cor.NewBaseContext()
	chCtx.SetContext(traceCtx)
	chCtx.Add(cor.CtxIn, `{"userId":"user-42","urls":["`+server.URL+`/a.mp4","  ","`+server.URL+`/b.mp4"]}`)
	batch.Execute(chCtx)
	require.False(t, chCtx.HasErrors(), "%v", chCtx.GetErrors())

	report, ok := chCtx.Get(cor.CtxIn).(*model.BatchReport)
	require.True(t, ok)
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 2, report.Succeeded)
	logger.InfoContext(traceCtx, "batch request report", "summary", report.Summary())

	session, err := registry.Get(context.Background(), "user-42")
	require.NoError(t, err)
	scripts := session.Library.Workspace.Scripts()
	require.Len(t, scripts, 2)
	assert.Equal(t, server.URL+"/b.mp4", scripts[0].VideoName)
	assert.Equal(t, "Review Son Môi", scripts[0].Title)
	assert.Equal(t, "user-42", scripts[0].UserID)
}

func TestBatchRequestWorkflowRejectsEmptyRequest(t *testing.T) {
	registry := workflow.NewSessionRegistry(test.NewMemoryGateway(), nil, nil, 0)
	batch := workflow.NewBatchRequestWorkflow(registry)

	traceCtx, span := tracer.Start(context.Background(), "batch-request")
	defer span.End()
	chCtx := cor.NewBaseContext()
	chCtx.SetContext(traceCtx)
	chCtx.Add(cor.CtxIn, `{"userId":"user-42","urls":[" "]}`)
	batch.Execute(chCtx)
	assert.True(t, chCtx.HasErrors())
	assert.Empty(t, registry.Sessions())
}
