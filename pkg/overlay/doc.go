// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package overlay turns a rendered page into a set of click-to-edit units.
//
// The package owns every decision about the preview document:
//
//   - which nodes may become editable units (Classifier)
//   - wrapping raw text into units, idempotently (Document.Wrap)
//   - the edit state machine for one loaded document (Session)
//   - how a link click inside the preview is handled (Navigate)
//   - batching of re-wrap notifications from a live page (Debouncer)
//
// The browser agent served alongside (AgentScript) applies the same Rules to
// the live DOM and forwards operator events to a Session.
package overlay
