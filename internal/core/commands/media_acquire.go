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

package commands

import (
	"github.com/jaycherian/gcp-go-script-studio/internal/core/cor"
	"github.com/jaycherian/gcp-go-script-studio/internal/core/model"
	"github.com/jaycherian/gcp-go-script-studio/internal/core/services"
)

// MediaAcquire turns a *model.MediaSource into a *model.MediaPayload. The
// payload is registered on the context so it is closed with the chain even
// when a later stage fails. An uploaded file is registered as a temporary file
// and removed once its item is done.
type MediaAcquire struct {
	cor.BaseCommand
	acquirer *services.MediaAcquirer
}

// NewMediaAcquire creates the acquisition stage.
func NewMediaAcquire(name string, acquirer *services.MediaAcquirer) *MediaAcquire {
	return &MediaAcquire{BaseCommand: *cor.NewBaseCommand(name), acquirer: acquirer}
}

func (c *MediaAcquire) Execute(context cor.Context) {
	source, ok := context.Get(c.GetInputParam()).(*model.MediaSource)
	if !ok || source == nil {
		c.Fail(context, model.NewError(model.KindReadFailed, "", nil))
		return
	}
	if source.Kind == model.SourceFile && source.Path != "" {
		context.AddTempFile(source.Path)
	}
	payload, err := c.acquirer.Acquire(context.GetContext(), source, context.Progress)
	if err != nil {
		c.Fail(context, err)
		return
	}
	context.AddCloser(payload)
	c.Succeed(context, payload)
}
