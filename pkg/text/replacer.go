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
	"context"

	"gitlab.com/tozd/go/errors"
)

// ReplacementRule defines a single find/replace pair
type ReplacementRule struct {
	// FromText is the literal text to find
	FromText string

	// ToText is the replacement text
	ToText string
}

// ReplacementResult contains the results of applying a rule set to one blob
type ReplacementResult struct {
	// WasModified indicates the content changed
	WasModified bool

	// ReplacementCount is the total number of substitutions
	ReplacementCount int

	// Usage maps each rule's FromText to the matches it found in this blob
	Usage map[string]int

	// OriginalContent is the content before replacements
	OriginalContent string

	// ModifiedContent is the content after replacements
	ModifiedContent string
}

// 🔧 Replacer applies ordered replacement rules using a fixed mode
type Replacer struct {
	mode Mode
}

// 🏭 NewReplacer creates a Replacer for the given mode
func NewReplacer(mode Mode) *Replacer {
	if mode == "" {
		mode = ModeAll
	}
	return &Replacer{mode: mode}
}

// Mode returns the replace mode
func (r *Replacer) Mode() Mode {
	return r.mode
}

// Apply runs every rule in order over content. Each rule sees the output of
// the previous one. Rules with empty FromText are skipped.
func (r *Replacer) Apply(ctx context.Context, content string, rules []ReplacementRule) (*ReplacementResult, error) {
	result := &ReplacementResult{
		OriginalContent: content,
		ModifiedContent: content,
		Usage:           make(map[string]int, len(rules)),
	}

	current := content
	for _, rule := range rules {
		if err := ctx.Err(); err != nil {
			return nil, errors.Errorf("applying replacements: %w", err)
		}

		if rule.FromText == "" {
			continue
		}

		res := r.mode.Replace(current, rule.FromText, rule.ToText)
		if res.Count > 0 {
			result.Usage[rule.FromText] += res.Count
			result.ReplacementCount += res.Count
		}
		current = res.Text
	}

	result.ModifiedContent = current
	result.WasModified = current != content
	return result, nil
}
