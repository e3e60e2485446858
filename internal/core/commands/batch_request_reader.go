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
	"encoding/json"
	"strings"

	"github.com/jaycherian/gcp-go-script-studio/internal/core/cor"
	"github.com/jaycherian/gcp-go-script-studio/internal/core/model"
	"github.com/pkg/errors"
)

// BatchRequestReader parses a Pub/Sub batch request message into a
// *model.BatchRequest. Blank URLs are dropped; a request without any URL is
// rejected.
type BatchRequestReader struct {
	cor.BaseCommand
}

// NewBatchRequestReader creates the message parsing stage.
func NewBatchRequestReader(name string) *BatchRequestReader {
	return &BatchRequestReader{BaseCommand: *cor.NewBaseCommand(name)}
}

func (c *BatchRequestReader) Execute(context cor.Context) {
	in, ok := context.Get(c.GetInputParam()).(string)
	if !ok {
		c.Fail(context, errors.New("batch request message is not text"))
		return
	}
	var req model.BatchRequest
	if err := json.Unmarshal([]byte(in), &req); err != nil {
		c.Fail(context, errors.Wrap(err, "failed to unmarshal batch request"))
		return
	}
	urls := make([]string, 0, len(req.URLs))
	for _, u := range req.URLs {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) == 0 {
		c.Fail(context, errors.New("batch request has no urls"))
		return
	}
	req.URLs = urls
	if strings.TrimSpace(req.UserID) == "" {
		req.UserID = model.GuestUserID
	}
	c.Succeed(context, &req)
}
