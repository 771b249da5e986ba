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
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/walteh/copyedit/pkg/overlay"
)

// EditorStyles highlight the active unit inside the preview
const EditorStyles = `
[data-editor-highlight="true"] { outline: 2px solid #17645f; outline-offset: 2px; }
[data-editor-editing="true"] { background: rgba(23, 100, 95, 0.08); }
`

const styleMarker = "data-editor-style"

// Prepared is a rewritten source document ready for the preview frame
type Prepared struct {
	HTML         string         `json:"html"`
	Units        []overlay.Unit `json:"units"`
	Landmarks    []string       `json:"landmarks"`
	ScrollTarget string         `json:"scroll_target,omitempty"`
	// Projected counts units rewritten with a pending edit
	Projected int `json:"projected"`
}

// Edits looks up the pending replacement for a unit's original text
type Edits interface {
	Get(original string) (string, bool)
}

// PrepareOptions control Prepare
type PrepareOptions struct {
	// BaseHref resolves relative assets and links, usually the preview URL
	BaseHref string
	// Page is the scroll target name from the page query parameter
	Page string
	// Wrap runs the unit wrap pass before rendering
	Wrap bool
	// Edits, when set, are written into the wrapped units so the served
	// document already shows them
	Edits Edits
}

// Prepare rewrites raw page html for use as a source document: it sets the
// base URL, injects the editor styles, decorates same-origin links, wraps text
// into units, projects pending edits and marks the scroll target.
func Prepare(raw string, opts PrepareOptions) (*Prepared, error) {
	root, err := overlay.ParseString(raw)
	if err != nil {
		return nil, err
	}

	head := overlay.FindFirst(root, atom.Head)
	if opts.BaseHref != "" && head != nil {
		setBase(root, head, opts.BaseHref)
	}
	if head != nil {
		injectStyle(head)
	}
	if base, err := url.Parse(opts.BaseHref); err == nil && base.Host != "" {
		DecorateLinks(root, base)
	}

	out := &Prepared{}
	if opts.Wrap {
		doc := overlay.NewDocument(root, overlay.NewClassifier())
		out.Units = doc.Wrap()
		out.Projected = project(doc, out.Units, opts.Edits)
	}
	out.Landmarks = overlay.Landmarks(root)

	if target := FindScrollTarget(root, ScrollSelectors(opts.Page)); target != nil {
		overlay.SetAttr(target, overlay.AttrScroll, "true")
		out.ScrollTarget = opts.Page
	}

	rendered, err := overlay.Render(root)
	if err != nil {
		return nil, err
	}
	if !hasDoctype(root) {
		rendered = "<!DOCTYPE html>" + rendered
	}
	out.HTML = rendered
	return out, nil
}

// DecorateLinks adds editor=1 to every same-origin link. Hash, mailto and tel
// links are left alone.
func DecorateLinks(root *html.Node, base *url.URL) int {
	changed := 0
	for _, a := range overlay.FindAll(root, overlay.IsAnchor) {
		raw := strings.TrimSpace(overlay.Attr(a, "href"))
		if raw == "" || strings.HasPrefix(raw, "#") || strings.HasPrefix(raw, "mailto:") || strings.HasPrefix(raw, "tel:") {
			continue
		}
		ref, err := url.Parse(raw)
		if err != nil {
			continue
		}
		abs := base.ResolveReference(ref)
		if !strings.EqualFold(abs.Scheme, base.Scheme) || !strings.EqualFold(abs.Host, base.Host) {
			continue
		}
		if abs.Query().Has(overlay.EditorParam) {
			continue
		}
		overlay.SetAttr(a, "href", overlay.WithEditorParam(abs).String())
		changed++
	}
	return changed
}

// project rewrites every unit whose text has a pending edit. The returned
// units keep their original text so the session can still match them.
func project(doc *overlay.Document, units []overlay.Unit, edits Edits) int {
	if edits == nil {
		return 0
	}
	n := 0
	for _, u := range units {
		updated, ok := edits.Get(u.Text)
		if !ok {
			continue
		}
		doc.Apply(overlay.Command{Kind: overlay.CommandSetText, UnitID: u.ID, Text: updated, Original: u.Text})
		n++
	}
	return n
}

// setBase updates the first base element or prepends one to head
func setBase(root, head *html.Node, href string) {
	if b := overlay.FindFirst(root, atom.Base); b != nil {
		overlay.SetAttr(b, "href", href)
		return
	}
	b := &html.Node{
		Type:     html.ElementNode,
		Data:     "base",
		DataAtom: atom.Base,
		Attr:     []html.Attribute{{Key: "href", Val: href}},
	}
	head.InsertBefore(b, head.FirstChild)
}

// injectStyle appends the editor stylesheet to head once
func injectStyle(head *html.Node) {
	for c := head.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Style && overlay.Attr(c, styleMarker) != "" {
			return
		}
	}
	style := &html.Node{
		Type:     html.ElementNode,
		Data:     "style",
		DataAtom: atom.Style,
		Attr:     []html.Attribute{{Key: styleMarker, Val: "true"}},
	}
	style.AppendChild(&html.Node{Type: html.TextNode, Data: EditorStyles})
	head.AppendChild(style)
}

func hasDoctype(root *html.Node) bool {
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.DoctypeNode {
			return true
		}
	}
	return false
}
