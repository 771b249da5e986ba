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

package status

import (
	"fmt"
	"strings"
)

// EditSummary is the badge text for n pending edits
func EditSummary(n int) string {
	if n == 0 {
		return "No edits"
	}
	return fmt.Sprintf("%d edit(s)", n)
}

// ChipText is the compact header indicator for n pending edits
func ChipText(n int) string {
	if n == 0 {
		return "Idle"
	}
	return fmt.Sprintf("%d edits", n)
}

// FormatChangeList renders pending edits as Original/Updated pairs
func FormatChangeList(pairs [][2]string) string {
	if len(pairs) == 0 {
		return "No edits yet."
	}
	var sb strings.Builder
	for i, p := range pairs {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "Original %s\nUpdated %s\n", p[0], p[1])
	}
	return sb.String()
}
