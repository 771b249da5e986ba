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

// Package preview loads a target site into the editor's preview frame.
package preview

import (
	"context"
	"net/url"
	"path"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/copyedit/pkg/overlay"
)

// ErrInvalidURL is returned for a missing or unusable site URL
var ErrInvalidURL = errors.New("enter a valid site URL")

// Status is the outcome of a preview load
type Status string

const (
	// StatusLoadedEditable is a same-origin page navigated directly
	StatusLoadedEditable Status = "loaded_editable"
	// StatusLoadedLimited is a fetched page served as a source document
	StatusLoadedLimited Status = "loaded_limited"
	// StatusBlockedFallback is a direct, uneditable navigation after a failed fetch
	StatusBlockedFallback Status = "blocked_fallback"
)

// Mode is how the frame receives the page
type Mode string

const (
	ModeDirect Mode = "direct"
	ModeSrcDoc Mode = "srcdoc"
)

// Messages shown to the operator for each outcome.
const (
	MessageEditable = "Preview loaded. Click text to edit."
	MessageLimited  = "Preview loaded (limited access)."
	MessageBlocked  = "Preview blocked. Host this editor on the same domain as the site."
)

// 🖼️ Result describes how to show the page in the preview frame
type Result struct {
	Status          Status         `json:"status"`
	Mode            Mode           `json:"mode"`
	URL             string         `json:"url"`
	SrcDoc          string         `json:"srcdoc,omitempty"`
	Message         string         `json:"message"`
	Warning         string         `json:"warning,omitempty"`
	Page            string         `json:"page,omitempty"`
	ScrollSelectors []string       `json:"scroll_selectors,omitempty"`
	ScrollTarget    string         `json:"scroll_target,omitempty"`
	Units           []overlay.Unit `json:"units,omitempty"`
	Landmarks       []string       `json:"landmarks,omitempty"`
}

// Editable reports whether the overlay can attach to the loaded page
func (r *Result) Editable() bool {
	return r.Status == StatusLoadedEditable || r.Status == StatusLoadedLimited
}

// Source fetches raw page html
type Source interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// 🔄 Loader picks the load strategy for a target page
type Loader struct {
	source Source
	edits  Edits
}

// 🏭 NewLoader creates a loader reading cross-origin pages from source. Pending
// edits are projected into source documents; edits may be nil.
func NewLoader(source Source, edits Edits) *Loader {
	return &Loader{source: source, edits: edits}
}

// NormalizeURL trims the input, requires an http(s) URL with a host, gives a
// directory-like path a trailing slash and adds the editor marker
func NormalizeURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.Errorf("empty url: %w", ErrInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.Errorf("parsing %q: %w", raw, ErrInvalidURL)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.Errorf("unsupported url %q: %w", raw, ErrInvalidURL)
	}
	u.Path = withTrailingSlash(u.Path)
	return overlay.WithEditorParam(u), nil
}

// withTrailingSlash appends a slash unless the last segment looks like a file
func withTrailingSlash(p string) string {
	if strings.HasSuffix(p, "/") {
		return p
	}
	if strings.Contains(path.Base(p), ".") {
		return p
	}
	return p + "/"
}

// Load resolves target against the origin the editor is served from. Only an
// invalid target is returned as an error; every other failure degrades to a
// fallback result with a warning.
func (l *Loader) Load(ctx context.Context, target, hostOrigin string) (*Result, error) {
	logger := zerolog.Ctx(ctx)

	u, err := NormalizeURL(target)
	if err != nil {
		return nil, err
	}

	page := u.Query().Get(PageParam)
	res := &Result{
		URL:  u.String(),
		Page: page,
	}
	for _, sel := range ScrollSelectors(page) {
		res.ScrollSelectors = append(res.ScrollSelectors, sel.CSS())
	}

	if sameOrigin(u, hostOrigin) {
		res.Status = StatusLoadedEditable
		res.Mode = ModeDirect
		res.Message = MessageEditable
		logger.Debug().Str("url", res.URL).Msg("same-origin preview, navigating directly")
		return res, nil
	}

	body, err := l.source.Fetch(ctx, res.URL)
	if err == nil {
		var prepared *Prepared
		prepared, err = Prepare(string(body), PrepareOptions{BaseHref: res.URL, Page: page, Wrap: true, Edits: l.edits})
		if err == nil {
			res.Status = StatusLoadedLimited
			res.Mode = ModeSrcDoc
			res.SrcDoc = prepared.HTML
			res.Units = prepared.Units
			res.Landmarks = prepared.Landmarks
			res.ScrollTarget = prepared.ScrollTarget
			res.Message = MessageLimited
			logger.Debug().
				Str("url", res.URL).
				Int("units", len(prepared.Units)).
				Int("projected", prepared.Projected).
				Msg("prepared source document")
			return res, nil
		}
	}

	logger.Warn().Err(err).Str("url", res.URL).Msg("preview fetch failed, falling back to direct navigation")
	res.Status = StatusBlockedFallback
	res.Mode = ModeDirect
	res.Message = MessageBlocked
	res.Warning = err.Error()
	return res, nil
}

func sameOrigin(u *url.URL, hostOrigin string) bool {
	if hostOrigin == "" {
		return false
	}
	h, err := url.Parse(hostOrigin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Scheme, h.Scheme) && strings.EqualFold(u.Host, h.Host)
}
