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
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"
)

// NavAction is how a link click inside the preview is handled
type NavAction string

const (
	// NavDefault leaves the click to the browser
	NavDefault NavAction = "default"
	// NavHash only updates the frame's location hash
	NavHash NavAction = "hash"
	// NavScroll scrolls to an in-page landmark
	NavScroll NavAction = "scroll"
	// NavReload loads the target as a fresh preview session
	NavReload NavAction = "reload"
)

// LandmarkAttrs are the attributes that name in-page scroll targets, in
// lookup order
var LandmarkAttrs = []string{"id", "data-page", "data-section", "data-page-key", "data-route"}

// EditorParam marks preview URLs so the target site can tell it is framed
const EditorParam = "editor"

// LinkClick is an anchor click reported by the agent
type LinkClick struct {
	Href string `json:"href"`
	// Target is the anchor's target attribute
	Target string `json:"target"`
	// Modified is set when any of meta, ctrl, shift or alt was held
	Modified bool `json:"modified"`
	Button   int  `json:"button"`
	// Landmarks are the landmark names present in the current document
	Landmarks []string `json:"landmarks"`
}

// NavDecision is the answer to a LinkClick. A default decision carries URL
// only for mailto and tel links, which the agent opens itself.
type NavDecision struct {
	Action NavAction `json:"action"`
	URL    string    `json:"url,omitempty"`
	Hash   string    `json:"hash,omitempty"`
	Scroll string    `json:"scroll,omitempty"`
}

// 🧭 Navigate decides how a link click from the document at current is
// handled. Only an unparseable current URL or a non-web scheme falls back to
// the browser default; it never fails.
func Navigate(current string, click LinkClick) NavDecision {
	def := NavDecision{Action: NavDefault}

	if click.Modified || click.Button != 0 {
		return def
	}
	if t := strings.ToLower(strings.TrimSpace(click.Target)); t != "" && t != "_self" {
		return def
	}

	href := strings.TrimSpace(click.Href)
	if href == "" {
		return def
	}
	if strings.HasPrefix(href, "#") {
		return NavDecision{Action: NavHash, Hash: href}
	}

	base, err := url.Parse(current)
	if err != nil {
		return def
	}
	ref, err := url.Parse(href)
	if err != nil {
		return def
	}
	next := base.ResolveReference(ref)
	if next.Scheme != "http" && next.Scheme != "https" {
		if next.Scheme == "mailto" || next.Scheme == "tel" {
			def.URL = next.String()
		}
		return def
	}

	sameOrigin := strings.EqualFold(next.Scheme, base.Scheme) && strings.EqualFold(next.Host, base.Host)

	if sameOrigin && samePath(base, next) && sameQuery(base, next) && next.Fragment != "" {
		return NavDecision{Action: NavHash, Hash: "#" + next.Fragment}
	}

	if sameOrigin {
		if seg := lastSegment(next.Path); seg != "" {
			for _, l := range click.Landmarks {
				if l == seg {
					return NavDecision{Action: NavScroll, Scroll: seg}
				}
			}
		}
	}

	return NavDecision{Action: NavReload, URL: WithEditorParam(next).String()}
}

// WithEditorParam returns a copy of u carrying editor=1
func WithEditorParam(u *url.URL) *url.URL {
	c := *u
	q := c.Query()
	if !q.Has(EditorParam) {
		q.Set(EditorParam, "1")
		c.RawQuery = q.Encode()
	}
	return &c
}

// Landmarks lists the landmark names present in a document
func Landmarks(root *html.Node) []string {
	seen := make(map[string]bool)
	var out []string
	walk(root, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return true
		}
		for _, key := range LandmarkAttrs {
			if v := Attr(n, key); v != "" && !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
		return true
	})
	return out
}

func samePath(a, b *url.URL) bool {
	return normalizePath(a.Path) == normalizePath(b.Path)
}

func normalizePath(p string) string {
	if p == "" {
		return "/"
	}
	return p
}

// sameQuery compares queries ignoring the editor marker
func sameQuery(a, b *url.URL) bool {
	qa, qb := a.Query(), b.Query()
	qa.Del(EditorParam)
	qb.Del(EditorParam)
	return qa.Encode() == qb.Encode()
}

func lastSegment(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	return path.Base(p)
}
