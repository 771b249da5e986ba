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
	"bytes"
	"io"
	"strings"

	"gitlab.com/tozd/go/errors"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Parse reads an HTML document
func Parse(r io.Reader) (*html.Node, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, errors.Errorf("parsing html: %w", err)
	}
	return root, nil
}

// ParseString reads an HTML document from a string
func ParseString(s string) (*html.Node, error) {
	return Parse(strings.NewReader(s))
}

// Render writes the document back out as HTML
func Render(n *html.Node) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return "", errors.Errorf("rendering html: %w", err)
	}
	return buf.String(), nil
}

// TextContent concatenates every text node under n
func TextContent(n *html.Node) string {
	var sb strings.Builder
	walk(n, func(x *html.Node) bool {
		if x.Type == html.TextNode {
			sb.WriteString(x.Data)
		}
		return true
	})
	return sb.String()
}

// SetTextContent replaces the children of n with a single text node
func SetTextContent(n *html.Node, text string) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

// FindFirst returns the first element in document order with the given atom
func FindFirst(root *html.Node, a atom.Atom) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if n.Type == html.ElementNode && n.DataAtom == a {
			found = n
			return false
		}
		return true
	})
	return found
}

// FindAll returns every element matching pred in document order
func FindAll(root *html.Node, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && pred(n) {
			out = append(out, n)
		}
		return true
	})
	return out
}

// Attr returns the value of key on n
func Attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// SetAttr sets or adds key on n
func SetAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

// walk visits n and its descendants in document order. Returning false from
// fn skips the children of the visited node.
func walk(n *html.Node, fn func(*html.Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; {
		// fn may replace c, so read the sibling first
		next := c.NextSibling
		walk(c, fn)
		c = next
	}
}
