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
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Markers written onto the preview document.
const (
	AttrUnit      = "data-editor-text"
	AttrUnitID    = "data-editor-id"
	AttrIgnore    = "data-editor-ignore"
	AttrEditing   = "data-editor-editing"
	AttrHighlight = "data-editor-highlight"
	AttrOriginal  = "data-original-text"
	AttrScroll    = "data-editor-scroll-target"
)

// 🎯 Kind is the tagged classification of a document node
type Kind int

const (
	// KindPlainContainer may hold editable text
	KindPlainContainer Kind = iota
	// KindIgnored sits inside an explicit ignore region, or is not an element
	KindIgnored
	// KindStructuralOrControl is document structure, script, style or a form control
	KindStructuralOrControl
	// KindEditableUnit is an already wrapped unit
	KindEditableUnit
)

func (k Kind) String() string {
	switch k {
	case KindPlainContainer:
		return "plain_container"
	case KindIgnored:
		return "ignored"
	case KindStructuralOrControl:
		return "structural_or_control"
	case KindEditableUnit:
		return "editable_unit"
	default:
		return "unknown"
	}
}

var structuralTags = map[atom.Atom]bool{
	atom.Html:     true,
	atom.Head:     true,
	atom.Body:     true,
	atom.Title:    true,
	atom.Meta:     true,
	atom.Link:     true,
	atom.Base:     true,
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Svg:      true,
	atom.Iframe:   true,
	atom.Object:   true,
	atom.Canvas:   true,
}

var controlTags = map[atom.Atom]bool{
	atom.A:        true,
	atom.Button:   true,
	atom.Input:    true,
	atom.Select:   true,
	atom.Option:   true,
	atom.Textarea: true,
	atom.Label:    true,
}

// IsControl reports whether n is an anchor or a native form control
func IsControl(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode && controlTags[n.DataAtom]
}

// IsAnchor reports whether n is an anchor element
func IsAnchor(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode && n.DataAtom == atom.A
}

// 🔍 Classifier maps nodes to a Kind, computing each node at most once
type Classifier struct {
	mu    sync.Mutex
	cache map[*html.Node]Kind
}

// 🏭 NewClassifier creates an empty classifier
func NewClassifier() *Classifier {
	return &Classifier{cache: make(map[*html.Node]Kind)}
}

// Classify returns the kind of n. The result only depends on n itself; the
// ancestry rules live in the wrap pass.
func (c *Classifier) Classify(n *html.Node) Kind {
	c.mu.Lock()
	defer c.mu.Unlock()

	if k, ok := c.cache[n]; ok {
		return k
	}
	k := classify(n)
	c.cache[n] = k
	return k
}

func classify(n *html.Node) Kind {
	if n == nil {
		return KindIgnored
	}
	switch n.Type {
	case html.DocumentNode:
		return KindPlainContainer
	case html.ElementNode:
	default:
		return KindIgnored
	}

	if hasAttr(n, AttrIgnore) {
		return KindIgnored
	}
	if hasAttr(n, AttrUnit) {
		return KindEditableUnit
	}
	if structuralTags[n.DataAtom] || controlTags[n.DataAtom] {
		return KindStructuralOrControl
	}
	// foreign content such as nested svg children
	if n.Namespace != "" {
		return KindStructuralOrControl
	}
	return KindPlainContainer
}
