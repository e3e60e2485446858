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
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"text/template"
	"time"

	"github.com/jaycherian/gcp-go-script-studio/internal/core/model"
	"github.com/jaycherian/gcp-go-script-studio/internal/core/services"
	"github.com/jaycherian/gcp-go-script-studio/internal/core/workflow"
	test "github.com/jaycherian/gcp-go-script-studio/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fakeVideo = append([]byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'm', 'p', '4', '2'}, bytes.Repeat([]byte{0x01}, 64)...)

type harness struct {
	model        *test.FakeModel
	gateway      *test.MemoryGateway
	library      *services.ScriptLibrary
	orchestrator *workflow.BatchOrchestrator
	ingestion    *workflow.ScriptIngestionWorkflow
}

func newHarness(t *testing.T, owner string, delay time.Duration, replies ...test.ModelReply) *harness {
	t.Helper()
	if len(replies) == 0 {
		replies = []test.ModelReply{{Text: test.GetTestAnalysisText()}}
	}
	fake := test.NewFakeModel(replies...)
	gateway := test.NewMemoryGateway()
	acquirer := services.NewMediaAcquirer(config.Acquisition, http.DefaultClient)
	analyzer := &services.ScriptAnalyzer{Model: fake, Prompt: services.DefaultAnalysisPrompt, Timeout: time.Second}
	tmpl := template.Must(template.New("optimize").Parse(services.DefaultOptimizePrompt))
	optimizer := &services.ScriptOptimizer{Model: fake, Template: tmpl, Timeout: time.Second}

	ingestion := workflow.NewScriptIngestionWorkflow(acquirer, nil, analyzer, gateway, nil)
	library := services.NewScriptLibrary(model.NewWorkspace(owner), gateway)
	return &harness{
		model:        fake,
		gateway:      gateway,
		library:      library,
		orchestrator: workflow.NewBatchOrchestrator(ingestion, optimizer, library, delay),
		ingestion:    ingestion,
	}
}

func writeVideo(t *testing.T, name string) *model.MediaSource {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, fakeVideo, 0o600))
	return model.NewFileSource(name, path, int64(len(fakeVideo)), "video/mp4")
}

func tooLarge(t *testing.T, name string) *model.MediaSource {
	source := writeVideo(t, name)
	source.Size = 31 * 1024 * 1024
	return source
}

type recorder struct {
	mu     sync.Mutex
	states []model.BatchState
}

func (r *recorder) observe(s model.BatchState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) phases() []model.Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Phase, 0)
	for _, s := range r.states {
		if len(out) == 0 || out[len(out)-1] != s.Phase {
			out = append(out, s.Phase)
		}
	}
	return out
}

func (r *recorder) progress() [][2]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][2]int, 0)
	for _, s := range r.states {
		p := [2]int{s.Current, s.Total}
		if s.Phase == model.PhaseAnalyzing && (len(out) == 0 || out[len(out)-1] != p) {
			out = append(out, p)
		}
	}
	return out
}

func messages(notifications []model.Notification, level model.NotificationLevel) []string {
	out := make([]string, 0)
	for _, n := range notifications {
		if n.Level == level {
			out = append(out, n.Message)
		}
	}
	return out
}

func TestRunBatchIsolatesItemFailures(t *testing.T) {
	h := newHarness(t, model.GuestUserID, 0)
	rec := &recorder{}
	h.orchestrator.Subscribe(rec.observe)

	items := []*model.MediaSource{writeVideo(t, "a.mp4"), tooLarge(t, "b.mp4"), writeVideo(t, "c.mp4")}
	report, err := h.orchestrator.RunBatch(context.Background(), items)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, []string{"b.mp4"}, report.Failed)
	assert.Equal(t, "Đã hoàn thành 2/3 video!", report.Summary())
	assert.Equal(t, 2, h.model.Calls())

	// Newest first, the first success is the current script.
	scripts := h.library.Workspace.Scripts()
	require.Len(t, scripts, 2)
	assert.Equal(t, "c.mp4", scripts[0].VideoName)
	assert.Equal(t, "a.mp4", scripts[1].VideoName)
	current, ok := h.library.Workspace.Current()
	require.True(t, ok)
	assert.Equal(t, "a.mp4", current.VideoName)
	for _, s := range scripts {
		assert.Equal(t, model.GuestUserID, s.UserID)
		assert.Empty(t, s.Tags)
		_, stored := h.gateway.Stored(s.ID)
		assert.True(t, stored)
	}

	notes := h.orchestrator.Notifications()
	errs := messages(notes, model.NotifyError)
	require.Len(t, errs, 1)
	assert.True(t, strings.HasPrefix(errs[0], "Lỗi b.mp4: File quá lớn"), errs[0])
	successes := messages(notes, model.NotifySuccess)
	assert.Equal(t, []string{"Đã phân tích xong: c.mp4", "Đã hoàn thành 2/3 video!"}, successes)

	assert.Equal(t, [][2]int{{0, 3}, {1, 3}, {2, 3}, {3, 3}}, rec.progress())
	assert.Equal(t, []model.Phase{model.PhaseAnalyzing, model.PhaseComplete}, rec.phases())

	state := h.orchestrator.State()
	assert.Equal(t, model.PhaseComplete, state.Phase)
	assert.Nil(t, state.CurrentItem)
	assert.Zero(t, state.Total)
}

func TestRunBatchAllFailed(t *testing.T) {
	h := newHarness(t, model.GuestUserID, 0)
	report, err := h.orchestrator.RunBatch(context.Background(), []*model.MediaSource{tooLarge(t, "a.mp4"), tooLarge(t, "b.mp4")})
	require.NoError(t, err)

	assert.True(t, report.AllFailed())
	assert.Equal(t, model.NotifyBatchAllFailed, report.Summary())
	assert.Empty(t, h.library.Workspace.Scripts())
	_, ok := h.library.Workspace.Current()
	assert.False(t, ok)
	assert.Equal(t, model.PhaseComplete, h.orchestrator.State().Phase)
	assert.Equal(t, 0, h.model.Calls())

	errs := messages(h.orchestrator.Notifications(), model.NotifyError)
	assert.Len(t, errs, 3)
	assert.Equal(t, model.NotifyBatchAllFailed, errs[2])
}

func TestRunBatchEmpty(t *testing.T) {
	h := newHarness(t, model.GuestUserID, time.Hour)
	report, err := h.orchestrator.RunBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Total)
	assert.Equal(t, model.PhaseComplete, h.orchestrator.State().Phase)
}

func TestRunBatchPausesBetweenItems(t *testing.T) {
	delay := 40 * time.Millisecond
	h := newHarness(t, model.GuestUserID, delay)

	start := time.Now()
	_, err := h.orchestrator.RunBatch(context.Background(), []*model.MediaSource{writeVideo(t, "a.mp4"), writeVideo(t, "b.mp4"), writeVideo(t, "c.mp4")})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 2*delay)
}

func TestRunBatchKeepsUnsyncedScripts(t *testing.T) {
	h := newHarness(t, "user-1", 0)
	h.gateway.SetSaveErr(errors.New("bigquery unavailable"))

	report, err := h.orchestrator.RunBatch(context.Background(), []*model.MediaSource{writeVideo(t, "a.mp4")})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	require.Len(t, report.Unsynced, 1)

	script := report.Scripts[0]
	_, ok := h.library.Workspace.Get(script.ID)
	assert.True(t, ok)
	assert.False(t, h.library.Workspace.IsSynced(script.ID))
	assert.Contains(t, messages(h.orchestrator.Notifications(), model.NotifyError), "Lỗi lưu kịch bản lên Cloud: a.mp4")

	h.gateway.SetSaveErr(nil)
	n, err := h.library.Resync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, h.library.Workspace.IsSynced(script.ID))
}

// gatedIngester blocks every call until released.
type gatedIngester struct {
	started chan struct{}
	release chan struct{}
	err     error
}

func (g *gatedIngester) Ingest(ctx context.Context, req *workflow.IngestRequest) (*workflow.IngestResult, error) {
	close(g.started)
	<-g.release
	if g.err != nil {
		return nil, g.err
	}
	result := &model.AnalysisResult{Title: "t", Scenes: []*model.Scene{{ID: model.NewSceneID()}}}
	return &workflow.IngestResult{Script: model.NewScriptAnalysis(req.Owner, req.Source.Name, result, time.Now())}, nil
}

func TestConcurrentRunIsBusy(t *testing.T) {
	gate := &gatedIngester{started: make(chan struct{}), release: make(chan struct{})}
	library := services.NewScriptLibrary(model.NewWorkspace(model.GuestUserID), test.NewMemoryGateway())
	orchestrator := workflow.NewBatchOrchestrator(gate, nil, library, 0)

	done := make(chan error, 1)
	go func() {
		_, err := orchestrator.RunSingle(context.Background(), model.NewURLSource("https://cdn.example.com/a.mp4"))
		done <- err
	}()
	<-gate.started

	state := orchestrator.State()
	assert.Equal(t, model.PhaseAnalyzing, state.Phase)
	require.NotNil(t, state.CurrentItem)
	assert.Equal(t, "https://cdn.example.com/a.mp4", state.CurrentItem.PreviewURL)

	_, err := orchestrator.RunBatch(context.Background(), []*model.MediaSource{model.NewURLSource("https://x/b.mp4")})
	assert.ErrorIs(t, err, model.ErrBusy)

	close(gate.release)
	require.NoError(t, <-done)
	assert.Equal(t, model.PhaseComplete, orchestrator.State().Phase)
	assert.Equal(t, []string{model.NotifyURLSavedLocal}, messages(orchestrator.Notifications(), model.NotifySuccess))
}

func TestStartBatchClaimsBeforeReturning(t *testing.T) {
	gate := &gatedIngester{started: make(chan struct{}), release: make(chan struct{})}
	library := services.NewScriptLibrary(model.NewWorkspace("user-1"), test.NewMemoryGateway())
	orchestrator := workflow.NewBatchOrchestrator(gate, nil, library, 0)

	reports := make(chan *model.BatchReport, 1)
	err := orchestrator.StartBatch(context.Background(), []*model.MediaSource{model.NewURLSource("https://x/a.mp4")}, func(r *model.BatchReport) {
		reports <- r
	})
	require.NoError(t, err)
	assert.Equal(t, model.PhaseAnalyzing, orchestrator.State().Phase)

	err = orchestrator.StartSingle(context.Background(), model.NewURLSource("https://x/b.mp4"), nil)
	assert.ErrorIs(t, err, model.ErrBusy)

	<-gate.started
	close(gate.release)
	report := <-reports
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, model.PhaseComplete, orchestrator.State().Phase)
}

func TestRunSingleFailureReturnsToIdle(t *testing.T) {
	gate := &gatedIngester{started: make(chan struct{}), release: make(chan struct{}), err: model.NewError(model.KindResolutionFailed, "", nil)}
	close(gate.release)
	library := services.NewScriptLibrary(model.NewWorkspace("user-1"), test.NewMemoryGateway())
	orchestrator := workflow.NewBatchOrchestrator(gate, nil, library, 0)
	rec := &recorder{}
	orchestrator.Subscribe(rec.observe)

	url := "https://www.tiktok.com/@shop/video/1"
	_, err := orchestrator.RunSingle(context.Background(), model.NewURLSource(url))
	require.ErrorIs(t, err, model.ErrResolutionFailed)

	assert.Equal(t, []model.Phase{model.PhaseAnalyzing, model.PhaseError, model.PhaseIdle}, rec.phases())
	errs := messages(orchestrator.Notifications(), model.NotifyError)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], url)
	assert.Empty(t, library.Workspace.Scripts())
}

func TestOptimizeReplacesScenes(t *testing.T) {
	h := newHarness(t, "user-1", 0,
		test.ModelReply{Text: test.GetTestAnalysisText()},
		test.ModelReply{Text: test.GetTestOptimizeText()},
	)
	script, err := h.orchestrator.RunSingle(context.Background(), writeVideo(t, "a.mp4"))
	require.NoError(t, err)
	assert.Equal(t, []string{model.NotifyURLSaved}, messages(h.orchestrator.Notifications(), model.NotifySuccess))

	rec := &recorder{}
	h.orchestrator.Subscribe(rec.observe)
	updated, err := h.orchestrator.Optimize(context.Background(), script.ID)
	require.NoError(t, err)

	assert.Equal(t, script.ID, updated.ID)
	assert.Equal(t, script.CreatedAt, updated.CreatedAt)
	require.Len(t, updated.Scenes, len(script.Scenes))
	for i := range updated.Scenes {
		assert.Equal(t, script.Scenes[i].ID, updated.Scenes[i].ID)
		assert.Equal(t, script.Scenes[i].StartTime, updated.Scenes[i].StartTime)
	}
	assert.Equal(t, "Dừng lại! Thỏi son này cháy hàng khắp TikTok.", updated.Scenes[0].AudioScript)

	stored, _ := h.gateway.Stored(script.ID)
	assert.Equal(t, updated.Scenes[0].AudioScript, stored.Scenes[0].AudioScript)
	assert.Equal(t, []model.Phase{model.PhaseOptimizing, model.PhaseComplete}, rec.phases())
	assert.Equal(t, []string{model.NotifyOptimized}, messages(h.orchestrator.Notifications(), model.NotifySuccess))
}

func TestOptimizeFailure(t *testing.T) {
	h := newHarness(t, model.GuestUserID, 0,
		test.ModelReply{Text: test.GetTestAnalysisText()},
		test.ModelReply{Text: "không phải JSON"},
	)
	script, err := h.orchestrator.RunSingle(context.Background(), writeVideo(t, "a.mp4"))
	require.NoError(t, err)

	_, err = h.orchestrator.Optimize(context.Background(), script.ID)
	require.ErrorIs(t, err, model.ErrOptimizationFailed)
	assert.Equal(t, model.PhaseError, h.orchestrator.State().Phase)
	assert.Equal(t, []string{model.NotifyOptimizeFailed}, messages(h.orchestrator.Notifications(), model.NotifyError))

	unchanged, _ := h.library.Workspace.Get(script.ID)
	assert.Equal(t, script.Scenes[0].AudioScript, unchanged.Scenes[0].AudioScript)

	_, err = h.orchestrator.Optimize(context.Background(), "script-missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestIdleStateElapsed(t *testing.T) {
	h := newHarness(t, model.GuestUserID, 0)
	state := h.orchestrator.State()
	assert.Equal(t, model.PhaseIdle, state.Phase)
	assert.Equal(t, "00:00", state.Elapsed)
}
