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

// Package commands provides the concrete implementations of the Chain of
// Responsibility (COR) pattern's Command interface. This file defines the
// optional archive stage. It uploads the source video to the archive bucket
// and publishes a signed preview URL.
//
// Logic Flow:
//  1. The encoded media arrives from MediaEncode and is passed on unchanged.
//  2. Without a configured bucket the stage does nothing.
//  3. The base64 text is decoded while it streams into the bucket writer.
//  4. On success the object name and a signed URL are stored in the context.
//     An archive failure is logged and never fails the item.
package commands

import (
	"encoding/base64"
	"log/slog"
	"strings"

	"github.com/jaycherian/gcp-go-script-studio/internal/core/cor"
	"github.com/jaycherian/gcp-go-script-studio/internal/core/model"
	"github.com/jaycherian/gcp-go-script-studio/internal/core/services"
)

// MediaArchive is the archive stage.
type MediaArchive struct {
	cor.BaseCommand
	archive *services.MediaArchive
}

// NewMediaArchive creates the archive stage.
func NewMediaArchive(name string, archive *services.MediaArchive) *MediaArchive {
	return &MediaArchive{BaseCommand: *cor.NewBaseCommand(name), archive: archive}
}

func (c *MediaArchive) Execute(context cor.Context) {
	media, ok := context.Get(c.GetInputParam()).(*model.EncodedMedia)
	if !ok || media == nil {
		c.Fail(context, model.NewError(model.KindReadFailed, "", nil))
		return
	}
	if !c.archive.Enabled() {
		context.Add(c.GetOutputParam(), media)
		return
	}

	context.Progress(model.ProgressArchiving)
	owner, _ := context.Get(ParamOwner).(string)
	reader := base64.NewDecoder(base64.StdEncoding, strings.NewReader(media.Base64))
	objectName, err := c.archive.Upload(context.GetContext(), owner, media.Name, media.MIMEType, reader)
	if err != nil {
		c.GetErrorCounter().Add(context.GetContext(), 1)
		slog.WarnContext(context.GetContext(), "failed to archive source video", "video", media.Name, "error", err)
		context.Add(c.GetOutputParam(), media)
		return
	}
	context.Add(ParamArchiveObject, objectName)
	if url, err := c.archive.GenerateSignedURL(context.GetContext(), objectName); err != nil {
		slog.WarnContext(context.GetContext(), "failed to sign preview url", "object", objectName, "error", err)
	} else {
		context.Add(ParamPreviewURL, url)
		if hook, ok := context.Get(ParamPreviewHook).(func(string)); ok && hook != nil {
			hook(url)
		}
	}
	c.Succeed(context, media)
}
