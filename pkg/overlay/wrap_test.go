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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

func wrapped(t *testing.T, src string) (*Document, []Unit) {
	t.Helper()
	root, err := ParseString(src)
	require.NoError(t, err, "parsing should succeed")
	doc := NewDocument(root, NewClassifier())
	return doc, doc.Wrap()
}

func unitTexts(units []Unit) []string {
	out := make([]string, 0, len(units))
	for _, u := range units {
		out = append(out, u.Text)
	}
	return out
}

func TestWrap(t *testing.T) {
	tests := []struct {
		name string
		html string
		want []string
	}{
		{
			name: "inline_children_are_independent_units",
			html: `<p>Hello <b>World</b></p>`,
			want: []string{"Hello ", "World"},
		},
		{
			name: "whitespace_only_text_is_skipped",
			html: "<div>\n  <p>One</p>\n  <p>Two</p>\n</div>",
			want: []string{"One", "Two"},
		},
		{
			name: "script_style_and_noscript_are_skipped",
			html: `<p>Keep</p><script>var a = "x";</script><style>p{}</style><noscript>enable js</noscript>`,
			want: []string{"Keep"},
		},
		{
			name: "form_controls_and_anchors_are_skipped",
			html: `<button>Send</button><label>Name</label><a href="/x">Link</a><select><option>One</option></select><textarea>Body</textarea><p>Text</p>`,
			want: []string{"Text"},
		},
		{
			name: "text_nested_in_anchor_is_skipped",
			html: `<a href="/x"><span>Inside</span></a><span>Outside</span>`,
			want: []string{"Outside"},
		},
		{
			name: "ignore_region_is_skipped",
			html: `<div data-editor-ignore><p>Hidden</p><div><em>Deep</em></div></div><p>Shown</p>`,
			want: []string{"Shown"},
		},
		{
			name: "svg_text_is_skipped",
			html: `<svg><text>Label</text></svg><p>Body</p>`,
			want: []string{"Body"},
		},
		{
			name: "existing_units_are_not_double_wrapped",
			html: `<p><span data-editor-text data-editor-id="s4">Done</span> and new</p>`,
			want: []string{" and new"},
		},
		{
			name: "editing_parent_is_skipped",
			html: `<p data-editor-editing="true">Being edited</p><p>Free</p>`,
			want: []string{"Free"},
		},
		{
			name: "head_title_is_skipped",
			html: `<html><head><title>Title</title></head><body><h1>Heading</h1></body></html>`,
			want: []string{"Heading"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, units := wrapped(t, tt.html)
			assert.Equal(t, tt.want, unitTexts(units), "wrapped unit texts should match")
		})
	}
}

func TestWrapIsIdempotent(t *testing.T) {
	doc, first := wrapped(t, `<main><h1>Title</h1><p>Hello <b>World</b></p></main>`)
	require.Len(t, first, 3)

	before, err := Render(doc.Root)
	require.NoError(t, err)

	again := doc.Wrap()
	assert.Empty(t, again, "second pass should create nothing")

	after, err := Render(doc.Root)
	require.NoError(t, err)
	assert.Equal(t, before, after, "tree should be unchanged by a second pass")
	assert.Equal(t, first, doc.Units(), "units should be listed in document order")
}

func TestWrapRendersUnitMarkers(t *testing.T) {
	doc, units := wrapped(t, `<p>Hello <b>World</b></p>`)
	require.Len(t, units, 2)
	assert.Equal(t, "s0", units[0].ID)
	assert.Equal(t, "s1", units[1].ID)

	body := FindFirst(doc.Root, atom.Body)
	out, err := Render(body)
	require.NoError(t, err)
	assert.Equal(t,
		`<body><p><span data-editor-text="" data-editor-id="s0">Hello </span><b><span data-editor-text="" data-editor-id="s1">World</span></b></p></body>`,
		out)
}

func TestWrapAfterMutation(t *testing.T) {
	doc, units := wrapped(t, `<div id="app"><p>First</p></div>`)
	require.Len(t, units, 1)

	// simulate client side routing adding content
	app := FindAll(doc.Root, func(n *html.Node) bool { return Attr(n, "id") == "app" })[0]
	extra, err := ParseString(`<section><h2>Second</h2></section>`)
	require.NoError(t, err)
	section := FindFirst(extra, atom.Section)
	section.Parent.RemoveChild(section)
	app.AppendChild(section)

	added := doc.Wrap()
	require.Len(t, added, 1)
	assert.Equal(t, "Second", added[0].Text)
	assert.Equal(t, "s1", added[0].ID, "ids should keep counting")
}

func TestNewDocumentContinuesIDs(t *testing.T) {
	root, err := ParseString(`<p><span data-editor-text data-editor-id="s7">Old</span></p><p>New</p>`)
	require.NoError(t, err)
	doc := NewDocument(root, nil)
	units := doc.Wrap()
	require.Len(t, units, 1)
	assert.Equal(t, "s8", units[0].ID)
}

func TestDocumentApply(t *testing.T) {
	doc, units := wrapped(t, `<p>Welcome</p>`)
	require.Len(t, units, 1)

	doc.Apply(Command{Kind: CommandSetText, UnitID: units[0].ID, Text: "Hello", Original: "Welcome"})

	n := doc.UnitNode(units[0].ID)
	require.NotNil(t, n)
	assert.Equal(t, "Hello", TextContent(n))
	assert.Equal(t, "Welcome", Attr(n, AttrOriginal))

	doc.Apply(Command{Kind: CommandSetText, UnitID: "missing", Text: "x"})
}

func TestClassifier(t *testing.T) {
	root, err := ParseString(`<div data-editor-ignore></div><script></script><span data-editor-text></span><section></section><input>`)
	require.NoError(t, err)

	c := NewClassifier()
	kinds := map[string]Kind{}
	for _, n := range FindAll(root, func(*html.Node) bool { return true }) {
		kinds[n.Data] = c.Classify(n)
	}

	assert.Equal(t, KindIgnored, kinds["div"])
	assert.Equal(t, KindStructuralOrControl, kinds["script"])
	assert.Equal(t, KindEditableUnit, kinds["span"])
	assert.Equal(t, KindPlainContainer, kinds["section"])
	assert.Equal(t, KindStructuralOrControl, kinds["input"])
	assert.Equal(t, KindStructuralOrControl, kinds["body"])
	assert.Equal(t, "editable_unit", KindEditableUnit.String())
}

func TestDefaultRules(t *testing.T) {
	r := DefaultRules()
	assert.Contains(t, r.StructuralTags, "SCRIPT")
	assert.Contains(t, r.ControlTags, "TEXTAREA")
	assert.Equal(t, AttrUnit, r.UnitAttr)
	assert.Equal(t, LandmarkAttrs, r.LandmarkAttrs)
	assert.NotEmpty(t, AgentScript, "agent script should be embedded")
}

func TestAgentReadsEveryRule(t *testing.T) {
	raw, err := json.Marshal(DefaultRules())
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))

	script := string(AgentScript)
	for key := range fields {
		assert.Contains(t, script, "rules."+key, "agent should read %s", key)
	}

	// load result fields applied once the frame has loaded
	for _, field := range []string{"scroll_selectors", "scroll_target", "commands"} {
		assert.Contains(t, script, "pending."+field)
	}
	assert.Contains(t, script, "scrollIntoView")
	assert.Contains(t, script, `d.action === "default"`, "default navigation must not be a dead click")
	assert.Contains(t, script, "text: unitId ? unit.textContent", "clicks report the current unit text")
}
