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
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// 📝 Unit is an editable text region as reported to and from the browser
type Unit struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// 📄 Document is a parsed preview page that can be wrapped into units
type Document struct {
	Root       *html.Node
	classifier *Classifier
	nextID     int
}

// 🏭 NewDocument prepares root for wrapping. Units already present in root
// keep their ids and new ids continue after the highest one found.
func NewDocument(root *html.Node, classifier *Classifier) *Document {
	if classifier == nil {
		classifier = NewClassifier()
	}
	d := &Document{Root: root, classifier: classifier}
	for _, n := range FindAll(root, isUnit) {
		if id, ok := parseUnitID(Attr(n, AttrUnitID)); ok && id >= d.nextID {
			d.nextID = id + 1
		}
	}
	return d
}

// Wrap replaces every qualifying raw text node under the body with a unit
// span and returns the units it created. Running it again on the same tree
// creates nothing.
func (d *Document) Wrap() []Unit {
	var created []Unit
	walk(d.body(), func(n *html.Node) bool {
		if n.Type == html.ElementNode && d.classifier.Classify(n) != KindPlainContainer && n.DataAtom != atom.Body {
			// nothing below an ignored, structural or wrapped node qualifies
			return false
		}
		if n.Type != html.TextNode || !d.Qualifies(n) {
			return true
		}
		created = append(created, d.wrapText(n))
		return false
	})
	return created
}

// Qualifies reports whether a raw text node may become a unit
func (d *Document) Qualifies(n *html.Node) bool {
	if n == nil || n.Type != html.TextNode || strings.TrimSpace(n.Data) == "" {
		return false
	}
	parent := n.Parent
	if parent == nil || parent.Type != html.ElementNode {
		return false
	}
	if Attr(parent, AttrEditing) == "true" {
		return false
	}
	if d.classifier.Classify(parent) != KindPlainContainer {
		return false
	}
	for a := parent.Parent; a != nil && a.Type == html.ElementNode; a = a.Parent {
		if a.DataAtom == atom.Body {
			break
		}
		if d.classifier.Classify(a) != KindPlainContainer {
			return false
		}
	}
	return true
}

// Units lists every unit in the document in document order
func (d *Document) Units() []Unit {
	nodes := FindAll(d.Root, isUnit)
	out := make([]Unit, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, Unit{ID: Attr(n, AttrUnitID), Text: TextContent(n)})
	}
	return out
}

// UnitNode finds the span for a unit id
func (d *Document) UnitNode(id string) *html.Node {
	var found *html.Node
	walk(d.Root, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if isUnit(n) && Attr(n, AttrUnitID) == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// Apply writes a command onto the tree. Used to project restored edits into
// a document before it is served.
func (d *Document) Apply(cmd Command) {
	n := d.UnitNode(cmd.UnitID)
	if n == nil {
		return
	}
	switch cmd.Kind {
	case CommandSetText:
		if cmd.Original != "" {
			SetAttr(n, AttrOriginal, cmd.Original)
		}
		SetTextContent(n, cmd.Text)
	case CommandActivate:
		SetAttr(n, AttrHighlight, "true")
		SetAttr(n, AttrEditing, "true")
		SetAttr(n, "contenteditable", "true")
	case CommandDeactivate:
		SetAttr(n, AttrHighlight, "false")
		SetAttr(n, AttrEditing, "false")
		SetAttr(n, "contenteditable", "false")
	}
}

func (d *Document) wrapText(n *html.Node) Unit {
	id := "s" + strconv.Itoa(d.nextID)
	d.nextID++

	span := &html.Node{
		Type:     html.ElementNode,
		Data:     "span",
		DataAtom: atom.Span,
		Attr: []html.Attribute{
			{Key: AttrUnit, Val: ""},
			{Key: AttrUnitID, Val: id},
		},
	}
	parent := n.Parent
	parent.InsertBefore(span, n)
	parent.RemoveChild(n)
	span.AppendChild(n)

	return Unit{ID: id, Text: n.Data}
}

func (d *Document) body() *html.Node {
	if b := FindFirst(d.Root, atom.Body); b != nil {
		return b
	}
	return d.Root
}

func isUnit(n *html.Node) bool {
	return n.Type == html.ElementNode && hasAttr(n, AttrUnit)
}

func parseUnitID(s string) (int, bool) {
	if !strings.HasPrefix(s, "s") {
		return 0, false
	}
	n, err := strconv.Atoi(s[1:])
	if err != nil {
		return 0, false
	}
	return n, true
}
