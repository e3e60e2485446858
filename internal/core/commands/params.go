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
// Responsibility (COR) pattern's Command interface. Each command is one stage
// of the script ingestion pipeline; this file defines the context keys the
// stages share besides the piped CtxIn/CtxOut values.
package commands

const (
	// ParamSource holds the *model.MediaSource being processed.
	ParamSource = "__SOURCE__"
	// ParamOwner holds the owner id the resulting script is created for.
	ParamOwner = "__OWNER__"
	// ParamArchiveObject holds the archive object name of the source video.
	ParamArchiveObject = "__ARCHIVE_OBJECT__"
	// ParamPreviewURL holds a signed URL of the archived source video.
	ParamPreviewURL = "__PREVIEW_URL__"
	// ParamPreviewHook optionally holds a func(string) told about the
	// preview URL as soon as it is known.
	ParamPreviewHook = "__PREVIEW_HOOK__"
	// ParamScript holds the assembled *model.ScriptAnalysis.
	ParamScript = "__SCRIPT__"
	// ParamPersistError holds the write error of a script that was kept
	// but could not be saved.
	ParamPersistError = "__PERSIST_ERROR__"
)
