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

import (
	_ "embed"
	"sort"
	"strings"

	"golang.org/x/net/html/atom"
)

// AgentScript is the browser side of the overlay. It runs in the editor shell
// page, applies Rules to the preview frame's document and talks to a Session
// over the overlay websocket.
//
//go:embed agent.js
var AgentScript []byte

// 📜 Rules are the wrapping rules shared with the browser agent
type Rules struct {
	UnitAttr       string   `json:"unit_attr"`
	UnitIDAttr     string   `json:"unit_id_attr"`
	IgnoreAttr     string   `json:"ignore_attr"`
	EditingAttr    string   `json:"editing_attr"`
	HighlightAttr  string   `json:"highlight_attr"`
	OriginalAttr   string   `json:"original_attr"`
	ScrollAttr     string   `json:"scroll_attr"`
	StructuralTags []string `json:"structural_tags"`
	ControlTags    []string `json:"control_tags"`
	LandmarkAttrs  []string `json:"landmark_attrs"`
	ResyncWindowMS int64    `json:"resync_window_ms"`
}

// DefaultRules returns the rules the Go wrap pass itself follows
func DefaultRules() Rules {
	return Rules{
		UnitAttr:       AttrUnit,
		UnitIDAttr:     AttrUnitID,
		IgnoreAttr:     AttrIgnore,
		EditingAttr:    AttrEditing,
		HighlightAttr:  AttrHighlight,
		OriginalAttr:   AttrOriginal,
		ScrollAttr:     AttrScroll,
		StructuralTags: tagNames(structuralTags),
		ControlTags:    tagNames(controlTags),
		LandmarkAttrs:  append([]string(nil), LandmarkAttrs...),
		ResyncWindowMS: DefaultResyncWindow.Milliseconds(),
	}
}

func tagNames(set map[atom.Atom]bool) []string {
	out := make([]string, 0, len(set))
	for a := range set {
		out = append(out, strings.ToUpper(a.String()))
	}
	sort.Strings(out)
	return out
}
