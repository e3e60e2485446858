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
	"encoding/base64"
	"io"
	"strings"

	"github.com/jaycherian/gcp-go-script-studio/internal/core/cor"
	"github.com/jaycherian/gcp-go-script-studio/internal/core/model"
	"github.com/pkg/errors"
)

// EncodeBase64 streams r through a standard base64 encoder. Any read error is
// reported as ReadFailed.
func EncodeBase64(r io.Reader) (string, error) {
	var sb strings.Builder
	encoder := base64.NewEncoder(base64.StdEncoding, &sb)
	if _, err := io.Copy(encoder, r); err != nil {
		return "", model.NewError(model.KindReadFailed, "", errors.Wrap(err, "encode payload"))
	}
	// Close flushes the final partial block.
	if err := encoder.Close(); err != nil {
		return "", model.NewError(model.KindReadFailed, "", errors.Wrap(err, "flush encoder"))
	}
	return sb.String(), nil
}

// MediaEncode converts the acquired payload into its transport form and
// closes the payload reader.
type MediaEncode struct {
	cor.BaseCommand
}

// NewMediaEncode creates the encoding stage.
func NewMediaEncode(name string) *MediaEncode {
	return &MediaEncode{BaseCommand: *cor.NewBaseCommand(name)}
}

func (c *MediaEncode) Execute(context cor.Context) {
	payload, ok := context.Get(c.GetInputParam()).(*model.MediaPayload)
	if !ok || payload == nil {
		c.Fail(context, model.NewError(model.KindReadFailed, "", nil))
		return
	}
	context.Progress(model.ProgressEncoding)
	data, err := EncodeBase64(payload.Reader)
	_ = payload.Close()
	if err != nil {
		c.Fail(context, err)
		return
	}
	c.Succeed(context, &model.EncodedMedia{Name: payload.Name, MIMEType: payload.MIMEType, Base64: data})
}
