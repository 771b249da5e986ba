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

package overlay

// CommandKind names an instruction for the browser agent
type CommandKind string

const (
	CommandActivate   CommandKind = "activate"
	CommandDeactivate CommandKind = "deactivate"
	CommandSetText    CommandKind = "set_text"
)

// Command is one instruction for the browser agent. Commands are applied in
// the order they are returned.
type Command struct {
	Kind     CommandKind `json:"kind"`
	UnitID   string      `json:"unit_id"`
	Text     string      `json:"text,omitempty"`
	Original string      `json:"original,omitempty"`
	// X and Y are the click point used for caret placement on activate
	X float64 `json:"x,omitempty"`
	Y float64 `json:"y,omitempty"`
}
