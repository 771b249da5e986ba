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

package preview

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/walteh/copyedit/pkg/overlay"
)

// PageParam names the target element to scroll to after load
const PageParam = "page"

// Selector is one scroll target lookup strategy
type Selector struct {
	Attr   string `json:"attr"`
	Value  string `json:"value"`
	Prefix bool   `json:"prefix,omitempty"`
}

// CSS renders the selector for the browser
func (s Selector) CSS() string {
	op := "="
	if s.Prefix {
		op = "^="
	}
	return "[" + s.Attr + op + cssString(s.Value) + "]"
}

// cssString quotes v as a CSS string token. Quotes and backslashes are
// escaped, control characters become hex escapes and NUL becomes U+FFFD.
func cssString(v string) string {
	var b strings.Builder
	b.Grow(len(v) + 2)
	b.WriteByte('"')
	for _, r := range v {
		switch {
		case r == 0:
			b.WriteRune('\uFFFD')
		case r < 0x20 || r == 0x7f:
			b.WriteByte('\\')
			b.WriteString(strconv.FormatInt(int64(r), 16))
			b.WriteByte(' ')
		case r == '"' || r == '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// Matches reports whether n satisfies the selector
func (s Selector) Matches(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, a := range n.Attr {
		if a.Key != s.Attr {
			continue
		}
		if s.Prefix {
			return strings.HasPrefix(a.Val, s.Value)
		}
		return a.Val == s.Value
	}
	return false
}

// ScrollSelectors lists the lookup strategies for a page name, in order:
// each landmark attribute by exact value, then an id prefix match.
func ScrollSelectors(page string) []Selector {
	page = strings.TrimSpace(page)
	if page == "" {
		return nil
	}
	out := make([]Selector, 0, len(overlay.LandmarkAttrs)+1)
	for _, attr := range overlay.LandmarkAttrs {
		out = append(out, Selector{Attr: attr, Value: page})
	}
	return append(out, Selector{Attr: "id", Value: page, Prefix: true})
}

// FindScrollTarget returns the first element matched by the first selector
// that matches anything, or nil
func FindScrollTarget(root *html.Node, selectors []Selector) *html.Node {
	for _, sel := range selectors {
		matches := overlay.FindAll(root, sel.Matches)
		if len(matches) > 0 {
			return matches[0]
		}
	}
	return nil
}
