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
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jaycherian/gcp-go-script-studio/internal/core/model"
	"github.com/jaycherian/gcp-go-script-studio/internal/core/services"
	"github.com/pkg/errors"
)

// Optimizer rewrites the spoken text of a script.
type Optimizer interface {
	Optimize(ctx context.Context, script *model.ScriptAnalysis) ([]*model.Scene, error)
}

// StateObserver is notified after every state change.
type StateObserver func(state model.BatchState)

// BatchOrchestrator drives the runs of one owner session: batches of
// uploaded files, single URLs and single-script optimizations. Only one run
// is active at a time. Items are processed strictly in order and one item's
// failure never stops the others.
//
// The timer, progress and notifications belong to the orchestrator instance
// and are reset when a run starts.
type BatchOrchestrator struct {
	ingester  Ingester
	optimizer Optimizer
	library   *services.ScriptLibrary
	delay     time.Duration
	now       func() time.Time

	mu            sync.Mutex
	state         model.BatchState
	finishedAt    time.Time
	notifications []model.Notification
	observers     []StateObserver
}

// NewBatchOrchestrator creates an idle orchestrator. delay is the pause
// between two batch items.
func NewBatchOrchestrator(ingester Ingester, optimizer Optimizer, library *services.ScriptLibrary, delay time.Duration) *BatchOrchestrator {
	return &BatchOrchestrator{
		ingester:  ingester,
		optimizer: optimizer,
		library:   library,
		delay:     delay,
		now:       time.Now,
		state:     model.BatchState{Phase: model.PhaseIdle, Elapsed: model.FormatElapsed(0)},
	}
}

// Library returns the library the orchestrator writes to.
func (o *BatchOrchestrator) Library() *services.ScriptLibrary {
	return o.library
}

// State returns a snapshot of the current state.
func (o *BatchOrchestrator) State() model.BatchState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshot()
}

func (o *BatchOrchestrator) snapshot() model.BatchState {
	out := o.state
	if out.CurrentItem != nil {
		item := *out.CurrentItem
		out.CurrentItem = &item
	}
	switch {
	case out.StartedAt.IsZero():
		out.Elapsed = model.FormatElapsed(0)
	case out.Phase.IsActive():
		out.Elapsed = model.FormatElapsed(o.now().Sub(out.StartedAt))
	default:
		out.Elapsed = model.FormatElapsed(o.finishedAt.Sub(out.StartedAt))
	}
	return out
}

// Subscribe registers an observer. Observers run on the goroutine of the run
// and must not block.
func (o *BatchOrchestrator) Subscribe(observer StateObserver) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.observers = append(o.observers, observer)
}

// Notifications returns the messages of the current or last run.
func (o *BatchOrchestrator) Notifications() []model.Notification {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append(make([]model.Notification, 0, len(o.notifications)), o.notifications...)
}

// update applies fn under the lock and publishes the new state.
func (o *BatchOrchestrator) update(fn func(state *model.BatchState)) {
	o.mu.Lock()
	fn(&o.state)
	if !o.state.Phase.IsActive() && o.finishedAt.Before(o.state.StartedAt) {
		o.finishedAt = o.now()
	}
	snapshot := o.snapshot()
	observers := append(make([]StateObserver, 0, len(o.observers)), o.observers...)
	o.mu.Unlock()
	for _, observer := range observers {
		observer(snapshot)
	}
}

// begin enters phase, resetting the session values, or fails with Busy.
func (o *BatchOrchestrator) begin(phase model.Phase, total int) error {
	o.mu.Lock()
	if o.state.Phase.IsActive() {
		o.mu.Unlock()
		return model.NewError(model.KindBusy, "", nil)
	}
	o.state = model.BatchState{Phase: phase, Total: total, StartedAt: o.now()}
	o.finishedAt = time.Time{}
	o.notifications = make([]model.Notification, 0)
	o.mu.Unlock()
	o.update(func(*model.BatchState) {})
	return nil
}

func (o *BatchOrchestrator) notify(level model.NotificationLevel, item string, message string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.notifications = append(o.notifications, model.Notification{Level: level, Message: message, Item: item, At: o.now()})
}

func (o *BatchOrchestrator) progressFor(current int, total int) model.ProgressFunc {
	return func(status string) {
		o.update(func(s *model.BatchState) {
			if s.Current == current && s.Total == total {
				s.Status = status
			}
		})
	}
}

func (o *BatchOrchestrator) previewFor(current int) func(string) {
	return func(url string) {
		o.update(func(s *model.BatchState) {
			if s.Current == current && s.CurrentItem != nil {
				s.CurrentItem.PreviewURL = url
			}
		})
	}
}

func (o *BatchOrchestrator) owner() string {
	return o.library.Workspace.OwnerID()
}

// keep adds a produced script to the workspace and records whether it reached
// the store.
func (o *BatchOrchestrator) keep(result *IngestResult) {
	o.library.Workspace.Prepend(result.Script)
	if result.PersistErr != nil {
		o.library.Workspace.MarkUnsynced(result.Script.ID)
	}
}

// RunBatch analyzes items in order and returns the report of the run. The
// first successful script becomes the current one; later ones are only
// added to the list. The run ends in COMPLETE even when every item failed.
func (o *BatchOrchestrator) RunBatch(ctx context.Context, items []*model.MediaSource) (*model.BatchReport, error) {
	if err := o.begin(model.PhaseAnalyzing, len(items)); err != nil {
		return nil, err
	}
	return o.runBatch(ctx, items), nil
}

// StartBatch claims the orchestrator and runs the batch in the background.
//
// Inputs:
//   - ctx: context of the background run
//   - items: the batch, processed in order
//   - done: called with the report once the run finished, may be nil
//
// Outputs:
//   - error: Busy when another run is active; nothing was started then
func (o *BatchOrchestrator) StartBatch(ctx context.Context, items []*model.MediaSource, done func(*model.BatchReport)) error {
	if err := o.begin(model.PhaseAnalyzing, len(items)); err != nil {
		return err
	}
	go func() {
		report := o.runBatch(ctx, items)
		if done != nil {
			done(report)
		}
	}()
	return nil
}

func (o *BatchOrchestrator) runBatch(ctx context.Context, items []*model.MediaSource) *model.BatchReport {
	total := len(items)
	report := &model.BatchReport{Total: total, Failed: make([]string, 0), Scripts: make([]*model.ScriptAnalysis, 0), Unsynced: make([]string, 0)}
	slog.InfoContext(ctx, "batch started", "owner", o.owner(), "items", total)

	for i, item := range items {
		current := i + 1
		o.update(func(s *model.BatchState) {
			s.Current = current
			s.CurrentItem = &model.CurrentItem{Name: item.Name, Kind: item.Kind, PreviewURL: item.URL}
			s.Status = fmt.Sprintf(model.ProgressItemFormat, current, total, item.Name)
		})

		result, err := o.ingester.Ingest(ctx, &IngestRequest{
			Owner:    o.owner(),
			Source:   item,
			Progress: o.progressFor(current, total),
			Preview:  o.previewFor(current),
		})
		if err != nil {
			slog.WarnContext(ctx, "batch item failed", "item", item.Name, "error", err)
			report.Failed = append(report.Failed, item.Name)
			o.notify(model.NotifyError, item.Name, fmt.Sprintf(model.NotifyItemFailedFormat, item.Name, model.UserMessage(err)))
		} else {
			o.keep(result)
			report.Succeeded++
			report.Scripts = append(report.Scripts, result.Script)
			if report.Succeeded == 1 {
				o.library.Workspace.SetCurrent(result.Script.ID)
			} else {
				o.notify(model.NotifySuccess, item.Name, fmt.Sprintf(model.NotifyItemDoneFormat, item.Name))
			}
			if result.PersistErr != nil {
				report.Unsynced = append(report.Unsynced, result.Script.ID)
				o.notify(model.NotifyError, item.Name, fmt.Sprintf(model.NotifySyncFailedFormat, item.Name))
			}
		}

		if current < total && o.delay > 0 {
			if err := sleep(ctx, o.delay); err != nil {
				slog.WarnContext(ctx, "batch pause interrupted", "error", err)
			}
		}
	}

	level := model.NotifySuccess
	if report.AllFailed() {
		level = model.NotifyError
	}
	o.notify(level, "", report.Summary())
	o.update(func(s *model.BatchState) {
		s.Phase = model.PhaseComplete
		s.Current, s.Total = 0, 0
		s.CurrentItem = nil
		s.Status = report.Summary()
	})
	slog.InfoContext(ctx, "batch finished", "owner", o.owner(), "succeeded", report.Succeeded, "total", total)
	return report
}

// RunSingle analyzes one item, typically a URL. A failure moves the
// orchestrator to ERROR and straight back to IDLE.
func (o *BatchOrchestrator) RunSingle(ctx context.Context, item *model.MediaSource) (*model.ScriptAnalysis, error) {
	if err := o.begin(model.PhaseAnalyzing, 1); err != nil {
		return nil, err
	}
	return o.runSingle(ctx, item)
}

// StartSingle claims the orchestrator and analyzes item in the background.
// It returns Busy without starting anything when another run is active.
func (o *BatchOrchestrator) StartSingle(ctx context.Context, item *model.MediaSource, done func(*model.ScriptAnalysis, error)) error {
	if err := o.begin(model.PhaseAnalyzing, 1); err != nil {
		return err
	}
	go func() {
		script, err := o.runSingle(ctx, item)
		if done != nil {
			done(script, err)
		}
	}()
	return nil
}

func (o *BatchOrchestrator) runSingle(ctx context.Context, item *model.MediaSource) (*model.ScriptAnalysis, error) {
	o.update(func(s *model.BatchState) {
		s.Current = 1
		s.CurrentItem = &model.CurrentItem{Name: item.Name, Kind: item.Kind, PreviewURL: item.URL}
		s.Status = model.ProgressURLAnalysis
	})

	result, err := o.ingester.Ingest(ctx, &IngestRequest{
		Owner:    o.owner(),
		Source:   item,
		Progress: o.progressFor(1, 1),
		Preview:  o.previewFor(1),
	})
	if err != nil {
		o.fail(item.Name, fmt.Sprintf(model.NotifyItemFailedFormat, item.Name, model.UserMessage(err)))
		o.update(func(s *model.BatchState) {
			s.Phase = model.PhaseIdle
			s.Current, s.Total = 0, 0
			s.CurrentItem = nil
		})
		return nil, err
	}

	o.keep(result)
	o.library.Workspace.SetCurrent(result.Script.ID)
	switch {
	case result.PersistErr != nil:
		o.notify(model.NotifyError, item.Name, fmt.Sprintf(model.NotifySyncFailedFormat, item.Name))
	case model.IsGuest(o.owner()):
		o.notify(model.NotifySuccess, item.Name, model.NotifyURLSavedLocal)
	default:
		o.notify(model.NotifySuccess, item.Name, model.NotifyURLSaved)
	}
	o.update(func(s *model.BatchState) {
		s.Phase = model.PhaseComplete
		s.Current, s.Total = 0, 0
		s.CurrentItem = nil
		s.Status = ""
	})
	return result.Script, nil
}

func (o *BatchOrchestrator) fail(item string, message string) {
	o.notify(model.NotifyError, item, message)
	o.update(func(s *model.BatchState) {
		s.Phase = model.PhaseError
		s.Status = message
	})
}

// Optimize rewrites the spoken text of one saved script and stores the
// result. The scenes keep their ids, order and timing.
func (o *BatchOrchestrator) Optimize(ctx context.Context, scriptID string) (*model.ScriptAnalysis, error) {
	script, err := o.library.Get(scriptID)
	if err != nil {
		return nil, err
	}
	if o.optimizer == nil {
		return nil, model.NewError(model.KindOptimizationFailed, "", errors.New("no optimizer configured"))
	}
	if err := o.begin(model.PhaseOptimizing, 1); err != nil {
		return nil, err
	}
	o.update(func(s *model.BatchState) {
		s.Current = 1
		s.CurrentItem = &model.CurrentItem{Name: script.Title}
		s.Status = model.ProgressOptimizing
	})

	scenes, err := o.optimizer.Optimize(ctx, script)
	if err != nil {
		slog.WarnContext(ctx, "optimization failed", "script_id", scriptID, "error", err)
		o.fail(script.Title, model.UserMessage(err))
		return nil, err
	}

	updated, saveErr := o.library.ReplaceScenes(ctx, scriptID, scenes)
	if updated == nil {
		o.fail(script.Title, model.UserMessage(saveErr))
		return nil, saveErr
	}
	o.library.Workspace.SetCurrent(updated.ID)
	if saveErr != nil {
		o.notify(model.NotifyError, script.Title, fmt.Sprintf(model.NotifySyncFailedFormat, script.Title))
	} else {
		o.notify(model.NotifySuccess, script.Title, model.NotifyOptimized)
	}
	o.update(func(s *model.BatchState) {
		s.Phase = model.PhaseComplete
		s.Current, s.Total = 0, 0
		s.CurrentItem = nil
		s.Status = ""
	})
	return updated, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
