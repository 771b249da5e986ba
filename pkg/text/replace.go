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

package text

import (
	"strings"

	"gitlab.com/tozd/go/errors"
)

// 🔄 Result is the outcome of a single literal replacement
type Result struct {
	Text  string // Content after replacement
	Count int    // Number of occurrences substituted
}

// 🎯 Mode selects how many occurrences of a find string are replaced
type Mode string

const (
	ModeFirst Mode = "first"
	ModeAll   Mode = "all"
)

// ParseMode converts a user supplied mode, defaulting to ModeAll when empty
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeAll:
		return ModeAll, nil
	case ModeFirst:
		return ModeFirst, nil
	default:
		return "", errors.Errorf("unknown replace mode %q (want %q or %q)", s, ModeFirst, ModeAll)
	}
}

// Replace dispatches to ReplaceFirst or ReplaceAll
func (m Mode) Replace(text, find, replace string) Result {
	if m == ModeFirst {
		return ReplaceFirst(text, find, replace)
	}
	return ReplaceAll(text, find, replace)
}

// ReplaceFirst substitutes the leftmost literal occurrence of find.
// Count is 0 or 1; with no match the text is returned unchanged.
func ReplaceFirst(text, find, replace string) Result {
	if find == "" {
		return Result{Text: text}
	}
	idx := strings.Index(text, find)
	if idx == -1 {
		return Result{Text: text}
	}
	return Result{
		Text:  text[:idx] + replace + text[idx+len(find):],
		Count: 1,
	}
}

// ReplaceAll splits text on every non-overlapping occurrence of find and
// rejoins the parts with replace. Count is the number of splits.
func ReplaceAll(text, find, replace string) Result {
	if find == "" {
		return Result{Text: text}
	}
	parts := strings.Split(text, find)
	if len(parts) == 1 {
		return Result{Text: text}
	}
	return Result{
		Text:  strings.Join(parts, replace),
		Count: len(parts) - 1,
	}
}
