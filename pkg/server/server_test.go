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

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-github/v60/github"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/walteh/copyedit/pkg/config"
	"github.com/walteh/copyedit/pkg/draft"
	"github.com/walteh/copyedit/pkg/overlay"
	gh "github.com/walteh/copyedit/pkg/remote/github"
	"github.com/walteh/copyedit/pkg/session"
	"github.com/walteh/copyedit/pkg/status"
)

const sitePage = `<html><head><title>Site</title></head><body><h1>Welcome</h1><p>About us</p></body></html>`

// fakeGitHub serves files from memory. Methods the tests never reach are
// left to the embedded nil interface.
type fakeGitHub struct {
	gh.GitHubClient
	mock.Mock

	mu    sync.Mutex
	files map[string]string
}

func (f *fakeGitHub) GetContents(ctx context.Context, owner, repo, path string, opts *github.RepositoryContentGetOptions) (*github.RepositoryContent, []*github.RepositoryContent, *github.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	content, ok := f.files[path]
	if !ok {
		resp := &http.Response{StatusCode: http.StatusNotFound}
		return nil, nil, &github.Response{Response: resp}, &github.ErrorResponse{Response: resp, Message: "Not Found"}
	}
	return &github.RepositoryContent{Path: github.String(path), Content: github.String(content)}, nil, nil, nil
}

func (f *fakeGitHub) GetAuthenticatedUser(ctx context.Context) (*github.User, *github.Response, error) {
	args := f.Called(ctx)
	var u *github.User
	if v := args.Get(0); v != nil {
		u = v.(*github.User)
	}
	return u, nil, args.Error(1)
}

type mockSource struct {
	mock.Mock
}

func (m *mockSource) Fetch(ctx context.Context, url string) ([]byte, error) {
	args := m.Called(ctx, url)
	var body []byte
	if v := args.Get(0); v != nil {
		body = v.([]byte)
	}
	return body, args.Error(1)
}

type fixture struct {
	srv  *Server
	ctrl *session.Controller
	gh   *fakeGitHub
}

func newFixture(t *testing.T, mutate func(cfg *config.Config)) *fixture {
	cfg := config.Default()
	cfg.Commit.Files = []string{"siteData.js"}
	cfg.Repository.TokenEnv = "COPYEDIT_TEST_UNSET_TOKEN"
	if mutate != nil {
		mutate(cfg)
	}

	log := zerolog.New(zerolog.TestWriter{T: t})
	ctx := log.WithContext(context.Background())

	f := &fixture{gh: &fakeGitHub{files: map[string]string{
		"siteData.js": `export const hero = "Welcome to our site.";`,
	}}}
	src := &mockSource{}
	src.On("Fetch", mock.Anything, mock.Anything).Return([]byte(sitePage), nil).Maybe()

	f.ctrl = session.New(ctx, session.Options{
		Config:    cfg,
		Store:     draft.NewFileStore(filepath.Join(t.TempDir(), "draft.json")),
		Source:    src,
		NewClient: func(string) gh.GitHubClient { return f.gh },
	})
	f.srv = NewServer(f.ctrl, log)
	return f
}

type reply struct {
	Status     status.Status     `json:"status"`
	Changes    changesView       `json:"changes"`
	Connection connectionView    `json:"connection"`
	Preview    json.RawMessage   `json:"preview"`
	Push       *pushView         `json:"push"`
	Commands   []overlay.Command `json:"commands"`
}

func (f *fixture) do(t *testing.T, method, path string, body any) (int, reply) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)

	var out reply
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "decoding %s %s", method, path)
	}
	return rec.Code, out
}

func (f *fixture) connect(t *testing.T) {
	f.gh.On("GetAuthenticatedUser", mock.Anything).Return(&github.User{Login: github.String("octo")}, nil).Once()
	code, out := f.do(t, http.MethodPost, "/api/connect", session.ConnectRequest{RepoURL: "https://github.com/acme/site", Token: "ghp_x"})
	require.Equal(t, http.StatusOK, code, out.Status.Message)
}

func TestStaticRoutes(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		name        string
		path        string
		contentType string
		contains    string
	}{
		{name: "shell", path: "/", contentType: "text/html", contains: "/assets/overlay.js"},
		{name: "agent", path: "/assets/overlay.js", contentType: "application/javascript", contains: "copyeditAgent"},
		{name: "health", path: "/health", contentType: "application/json", contains: `"tone":"is-good"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			f.srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), tt.contentType), "content type should be %s", tt.contentType)
			assert.Contains(t, rec.Body.String(), tt.contains)
		})
	}
}

// TestShellWiring checks the shell page drives every route and agent hook it
// depends on.
func TestShellWiring(t *testing.T) {
	f := newFixture(t, nil)
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	page := rec.Body.String()

	tests := []struct {
		name    string
		snippet string
	}{
		{name: "preview_payload_reaches_agent", snippet: "agent.begin(p.generation, p.rules, p)"},
		{name: "stale_preview_is_ignored", snippet: "seq !== loads"},
		{name: "deselect_control", snippet: `agent.send({ type: "deselect" })`},
		{name: "discard_draft", snippet: `api("DELETE", "/api/draft")`},
		{name: "team_form_posts", snippet: `api("POST", "/api/records/team", new FormData(teamForm))`},
		{name: "news_slot_path", snippet: `"/api/records/news/"`},
		{name: "service_slot_path", snippet: `"/api/records/services/"`},
		{name: "slot_save", snippet: `api("PUT", slotPath(form), new FormData(form))`},
		{name: "slot_clear", snippet: `api("DELETE", slotPath(form))`},
		{name: "consultation_actions", snippet: `api("POST", path + "/reject")`},
		{name: "form_data_keeps_browser_content_type", snippet: "body instanceof FormData"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, page, tt.snippet)
		})
	}
}

func TestConnectRoutes(t *testing.T) {
	t.Run("invalid_input_is_rejected_before_network", func(t *testing.T) {
		f := newFixture(t, nil)
		code, out := f.do(t, http.MethodPost, "/api/connect", session.ConnectRequest{RepoURL: "not a repo", Token: "t"})
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "Enter a valid GitHub repo URL.", out.Status.Message)
		assert.Equal(t, status.ToneBad, out.Status.Tone)
		f.gh.AssertNotCalled(t, "GetAuthenticatedUser", mock.Anything)
	})

	t.Run("malformed_body", func(t *testing.T) {
		f := newFixture(t, nil)
		req := httptest.NewRequest(http.MethodPost, "/api/connect", strings.NewReader("{"))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		f.srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Request body is not valid JSON.")
	})

	t.Run("bad_credentials", func(t *testing.T) {
		f := newFixture(t, nil)
		f.gh.On("GetAuthenticatedUser", mock.Anything).Return(nil, gh.ErrBadCredentials).Once()
		code, out := f.do(t, http.MethodPost, "/api/connect", session.ConnectRequest{RepoURL: "https://github.com/acme/site", Token: "bad"})
		assert.Equal(t, http.StatusUnauthorized, code)
		assert.True(t, strings.HasPrefix(out.Status.Message, "Token validation failed: "), "got %q", out.Status.Message)
	})

	t.Run("connect_and_disconnect", func(t *testing.T) {
		f := newFixture(t, nil)
		f.connect(t)

		code, out := f.do(t, http.MethodGet, "/api/connect", nil)
		assert.Equal(t, http.StatusOK, code)
		assert.True(t, out.Connection.Connected)
		assert.Equal(t, "acme/site", out.Connection.Repo)
		assert.Equal(t, "octo", out.Connection.Login)
		require.NotNil(t, out.Connection.Saved, "connection form should be remembered")
		assert.Equal(t, "https://github.com/acme/site", out.Connection.Saved.RepoURL)

		code, out = f.do(t, http.MethodDelete, "/api/connect", nil)
		assert.Equal(t, http.StatusOK, code)
		assert.False(t, out.Connection.Connected)
	})
}

func TestPreviewRoute(t *testing.T) {
	f := newFixture(t, nil)

	code, out := f.do(t, http.MethodPost, "/api/preview", previewRequest{URL: "https://site.example/"})
	require.Equal(t, http.StatusOK, code, out.Status.Message)

	var p session.PreviewResult
	require.NoError(t, json.Unmarshal(out.Preview, &p))
	assert.Equal(t, uint64(1), p.Generation)
	assert.Len(t, p.Units, 2)
	assert.Equal(t, overlay.DefaultRules(), p.Rules)

	code, out = f.do(t, http.MethodPost, "/api/preview", previewRequest{URL: "   "})
	assert.Equal(t, http.StatusBadRequest, code, "blank url with no configured site")
	assert.Equal(t, "Enter a valid site URL.", out.Status.Message)

	t.Run("page_param_carries_scroll_selectors", func(t *testing.T) {
		code, out := f.do(t, http.MethodPost, "/api/preview", previewRequest{URL: "https://site.example/?page=team"})
		require.Equal(t, http.StatusOK, code, out.Status.Message)

		var p struct {
			Page            string   `json:"page"`
			ScrollSelectors []string `json:"scroll_selectors"`
			ScrollTarget    string   `json:"scroll_target"`
		}
		require.NoError(t, json.Unmarshal(out.Preview, &p))
		assert.Equal(t, "team", p.Page)
		require.Len(t, p.ScrollSelectors, 6)
		assert.Equal(t, `[id="team"]`, p.ScrollSelectors[0])
		assert.Empty(t, p.ScrollTarget, "the page has no team landmark")
	})

	t.Run("pending_edit_is_served_in_source_document", func(t *testing.T) {
		code, _ := f.do(t, http.MethodPost, "/api/changes", changeRequest{Original: "About us", Updated: "Our story"})
		require.Equal(t, http.StatusOK, code)

		code, out := f.do(t, http.MethodPost, "/api/preview", previewRequest{URL: "https://site.example/"})
		require.Equal(t, http.StatusOK, code, out.Status.Message)

		var p struct {
			SrcDoc   string            `json:"srcdoc"`
			Commands []overlay.Command `json:"commands"`
		}
		require.NoError(t, json.Unmarshal(out.Preview, &p))
		assert.Contains(t, p.SrcDoc, `data-editor-original="About us"`)
		assert.Contains(t, p.SrcDoc, `>Our story</span>`)
		assert.Equal(t, []overlay.Command{{Kind: overlay.CommandSetText, UnitID: "s1", Text: "Our story", Original: "About us"}}, p.Commands)
	})
}

func (f *fixture) raw(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

func TestRequestGuards(t *testing.T) {
	const change = `{"original":"Welcome","updated":"Pwned"}`

	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		headers  map[string]string
		wantCode int
	}{
		{
			name:     "foreign_origin_is_rejected",
			method:   http.MethodPost,
			path:     "/api/changes",
			body:     change,
			headers:  map[string]string{"Content-Type": "application/json", "Origin": "https://evil.example"},
			wantCode: http.StatusForbidden,
		},
		{
			name:     "null_origin_is_rejected",
			method:   http.MethodPost,
			path:     "/api/changes",
			body:     change,
			headers:  map[string]string{"Content-Type": "application/json", "Origin": "null"},
			wantCode: http.StatusForbidden,
		},
		{
			name:     "cross_site_fetch_without_origin_is_rejected",
			method:   http.MethodPost,
			path:     "/api/changes",
			body:     change,
			headers:  map[string]string{"Content-Type": "application/json", "Sec-Fetch-Site": "cross-site"},
			wantCode: http.StatusForbidden,
		},
		{
			name:     "bodyless_post_from_other_site_is_rejected",
			method:   http.MethodPost,
			path:     "/api/draft/save",
			headers:  map[string]string{"Origin": "https://evil.example"},
			wantCode: http.StatusForbidden,
		},
		{
			name:     "plain_text_body_is_unsupported",
			method:   http.MethodPost,
			path:     "/api/changes",
			body:     change,
			headers:  map[string]string{"Content-Type": "text/plain"},
			wantCode: http.StatusUnsupportedMediaType,
		},
		{
			name:     "form_encoded_body_is_unsupported",
			method:   http.MethodPost,
			path:     "/api/changes",
			body:     "original=Welcome&updated=Pwned",
			headers:  map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
			wantCode: http.StatusUnsupportedMediaType,
		},
		{
			name:     "same_host_origin_is_accepted",
			method:   http.MethodPost,
			path:     "/api/changes",
			body:     change,
			headers:  map[string]string{"Content-Type": "application/json", "Origin": "http://example.com"},
			wantCode: http.StatusOK,
		},
		{
			name:     "reads_ignore_origin",
			method:   http.MethodGet,
			path:     "/api/changes",
			headers:  map[string]string{"Origin": "https://evil.example"},
			wantCode: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			rec := f.raw(t, tt.method, tt.path, tt.body, tt.headers)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantCode != http.StatusOK {
				assert.Empty(t, f.ctrl.Changes(), "a rejected request must not reach the ledger")
			}
			if tt.wantCode == http.StatusForbidden {
				assert.Contains(t, rec.Body.String(), MessageCrossSite)
			}
		})
	}
}

func TestChangeRoutes(t *testing.T) {
	f := newFixture(t, nil)

	code, out := f.do(t, http.MethodGet, "/api/changes", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0, out.Changes.Count)
	assert.Equal(t, "No edits yet.", out.Changes.Text)
	assert.Equal(t, "Idle", out.Changes.Chip)

	code, out = f.do(t, http.MethodPost, "/api/changes", changeRequest{Original: "Welcome", Updated: "Hello"})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, out.Changes.Count)
	assert.Equal(t, "1 edit(s)", out.Status.Message)
	assert.Equal(t, "Original Welcome\nUpdated Hello\n", out.Changes.Text)

	code, _ = f.do(t, http.MethodPost, "/api/changes", changeRequest{Updated: "Hello"})
	assert.Equal(t, http.StatusBadRequest, code, "original text is required")

	code, out = f.do(t, http.MethodPost, "/api/draft/save", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, session.MessageSaved, out.Status.Message)

	code, out = f.do(t, http.MethodDelete, "/api/changes", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0, out.Changes.Count)

	code, out = f.do(t, http.MethodPost, "/api/draft/load", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, session.MessageLoaded, out.Status.Message)
	require.Len(t, out.Changes.Entries, 1)
	assert.Equal(t, "Hello", out.Changes.Entries[0].Updated)

	code, out = f.do(t, http.MethodDelete, "/api/draft", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, session.MessageDiscarded, out.Status.Message)

	code, _ = f.do(t, http.MethodPost, "/api/draft/load", nil)
	assert.Equal(t, http.StatusBadRequest, code, "the discarded draft is gone")
	assert.Len(t, f.ctrl.Changes(), 1, "discarding keeps the ledger")
}

func TestDraftLoadWithoutDraft(t *testing.T) {
	f := newFixture(t, nil)
	code, out := f.do(t, http.MethodPost, "/api/draft/load", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "No saved draft found.", out.Status.Message)
}

func TestPushRoute(t *testing.T) {
	t.Run("not_connected", func(t *testing.T) {
		f := newFixture(t, nil)
		code, out := f.do(t, http.MethodPost, "/api/push", session.PushRequest{})
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "Connect to GitHub first.", out.Status.Message)
	})

	t.Run("bad_mode", func(t *testing.T) {
		f := newFixture(t, nil)
		code, out := f.do(t, http.MethodPost, "/api/push", session.PushRequest{Mode: "some"})
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "Choose a replace mode: first or all.", out.Status.Message)
	})

	t.Run("dry_run", func(t *testing.T) {
		f := newFixture(t, nil)
		f.connect(t)
		f.do(t, http.MethodPost, "/api/changes", changeRequest{Original: "Welcome", Updated: "Hello"})

		code, out := f.do(t, http.MethodPost, "/api/push", session.PushRequest{Mode: "first", DryRun: true})
		require.Equal(t, http.StatusOK, code, out.Status.Message)
		require.NotNil(t, out.Push)
		assert.Equal(t, "dry_run", string(out.Push.Result))
		require.Len(t, out.Push.Files, 1)
		assert.Equal(t, fileView{Path: "siteData.js", Changed: true, Replacements: 1}, out.Push.Files[0])
		assert.Equal(t, 1, out.Push.Totals["Welcome"])
	})

	t.Run("unmatched_edits", func(t *testing.T) {
		f := newFixture(t, nil)
		f.connect(t)
		f.do(t, http.MethodPost, "/api/changes", changeRequest{Original: "Nowhere", Updated: "Here"})

		code, out := f.do(t, http.MethodPost, "/api/push", session.PushRequest{DryRun: true})
		assert.Equal(t, http.StatusConflict, code)
		require.NotNil(t, out.Push, "the plan is returned so unmatched edits can be listed")
		assert.Equal(t, []string{"Nowhere"}, out.Push.Unused)
	})
}

func TestRecordRoutes(t *testing.T) {
	t.Run("not_configured", func(t *testing.T) {
		f := newFixture(t, nil)
		code, out := f.do(t, http.MethodGet, "/api/records/consultations", nil)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "Connect the records backend first.", out.Status.Message)
	})

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/rest/v1/consultations" && r.URL.Query().Get("id") == "eq.7":
			w.Write([]byte(`[{"id":7,"status":"rejected"}]`))
		case r.Method == http.MethodGet && r.URL.Path == "/rest/v1/consultations":
			w.Write([]byte(`[{"id":7,"full_name":"Ada","email":"ada@example.com","message":"Hi","status":"rejected"}]`))
		case r.Method == http.MethodDelete && r.URL.Path == "/rest/v1/consultations":
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodGet && r.URL.Path == "/rest/v1/news_slots":
			w.Write([]byte(`[]`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message":"no route"}`))
		}
	}))
	t.Cleanup(backend.Close)

	t.Setenv("COPYEDIT_TEST_RECORDS_KEY", "anon")
	f := newFixture(t, func(cfg *config.Config) {
		cfg.Records.URL = backend.URL
		cfg.Records.KeyEnv = "COPYEDIT_TEST_RECORDS_KEY"
	})

	t.Run("list_consultations", func(t *testing.T) {
		rec := httptest.NewRecorder()
		f.srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/records/consultations", nil))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var out struct {
			Status        status.Status `json:"status"`
			Consultations []struct {
				ID      string `json:"id"`
				Display string `json:"display_name"`
				State   string `json:"current_status"`
			} `json:"consultations"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		assert.Equal(t, "1 consultation", out.Status.Message)
		require.Len(t, out.Consultations, 1)
		assert.Equal(t, "7", out.Consultations[0].ID)
		assert.Equal(t, "Ada", out.Consultations[0].Display)
		assert.Equal(t, "rejected", out.Consultations[0].State)
	})

	t.Run("reject_twice_is_invalid", func(t *testing.T) {
		code, _ := f.do(t, http.MethodPost, "/api/records/consultations/7/reject", nil)
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("delete_consultation", func(t *testing.T) {
		code, out := f.do(t, http.MethodDelete, "/api/records/consultations/7", nil)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "Consultation deleted.", out.Status.Message)
	})

	t.Run("list_news", func(t *testing.T) {
		code, out := f.do(t, http.MethodGet, "/api/records/news", nil)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "0 news slots", out.Status.Message)
	})

	t.Run("backend_error", func(t *testing.T) {
		code, _ := f.do(t, http.MethodGet, "/api/records/team", nil)
		assert.Equal(t, http.StatusBadGateway, code)
	})
}

// backendCall is one request seen by the records backend
type backendCall struct {
	Method string
	Path   string
	Query  string
	Body   string
}

type backendRoute struct {
	method string
	prefix string
	query  string
	out    string
}

// recordsBackend answers the records API from prefix routes and records calls.
// The first matching route wins.
type recordsBackend struct {
	*httptest.Server

	mu     sync.Mutex
	calls  []backendCall
	routes []backendRoute
}

func newRecordsBackend(t *testing.T) *recordsBackend {
	b := &recordsBackend{}
	b.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		b.mu.Lock()
		b.calls = append(b.calls, backendCall{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: string(body)})
		out, ok := "", false
		for _, rt := range b.routes {
			if rt.method == r.Method && strings.HasPrefix(r.URL.Path, rt.prefix) && strings.Contains(r.URL.RawQuery, rt.query) {
				out, ok = rt.out, true
				break
			}
		}
		b.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message":"no route"}`))
			return
		}
		w.Write([]byte(out))
	}))
	t.Cleanup(b.Close)
	return b
}

func (b *recordsBackend) on(method, prefix, query, out string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.routes = append(b.routes, backendRoute{method: method, prefix: prefix, query: query, out: out})
}

func (b *recordsBackend) seen(method, prefix string) []backendCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []backendCall
	for _, c := range b.calls {
		if c.Method == method && strings.HasPrefix(c.Path, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// form sends a multipart record form, attaching an image when fileName is set
func (f *fixture) form(t *testing.T, method, path string, fields map[string]string, fileName string) (int, reply) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileName != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="image"; filename="`+fileName+`"`)
		h.Set("Content-Type", "image/png")
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte("png-bytes"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)

	var out reply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "decoding %s %s", method, path)
	return rec.Code, out
}

func TestRecordWriteRoutes(t *testing.T) {
	setup := func(t *testing.T) (*fixture, *recordsBackend) {
		b := newRecordsBackend(t)
		t.Setenv("COPYEDIT_TEST_RECORDS_KEY", "anon")
		f := newFixture(t, func(cfg *config.Config) {
			cfg.Records.URL = b.URL
			cfg.Records.KeyEnv = "COPYEDIT_TEST_RECORDS_KEY"
		})
		return f, b
	}
	public := func(b *recordsBackend, bucket, path string) string {
		return b.URL + "/storage/v1/object/public/" + bucket + "/" + path
	}

	t.Run("save_team_member_with_image", func(t *testing.T) {
		f, b := setup(t)
		b.on(http.MethodPost, "/storage/v1/object/team-images/team/", "", `{}`)
		b.on(http.MethodPost, "/rest/v1/team_members", "", ``)

		code, out := f.form(t, http.MethodPost, "/api/records/team", map[string]string{
			"name": "Ada", "title": "CEO", "role": "lead", "bio": "Founder",
		}, "ada photo.png")
		require.Equal(t, http.StatusOK, code, out.Status.Message)
		assert.Equal(t, "Team member saved.", out.Status.Message)

		uploads := b.seen(http.MethodPost, "/storage/v1/object/team-images/team/")
		require.Len(t, uploads, 1)
		assert.True(t, strings.HasSuffix(uploads[0].Path, "-ada-photo.png"), uploads[0].Path)
		assert.Equal(t, "png-bytes", uploads[0].Body)

		rows := b.seen(http.MethodPost, "/rest/v1/team_members")
		require.Len(t, rows, 1)
		var row map[string]any
		require.NoError(t, json.Unmarshal([]byte(rows[0].Body), &row))
		assert.Equal(t, "Ada", row["name"])
		assert.Equal(t, b.URL+strings.Replace(uploads[0].Path, "/object/", "/object/public/", 1), row["image_url"])
	})

	t.Run("update_team_member_keeps_image_url", func(t *testing.T) {
		f, b := setup(t)
		b.on(http.MethodPatch, "/rest/v1/team_members", "", ``)

		code, out := f.form(t, http.MethodPost, "/api/records/team", map[string]string{
			"id": "4", "name": "Ada", "title": "CEO", "role": "lead", "bio": "Founder", "image_url": "https://cdn.example/ada.png",
		}, "")
		require.Equal(t, http.StatusOK, code, out.Status.Message)

		rows := b.seen(http.MethodPatch, "/rest/v1/team_members")
		require.Len(t, rows, 1)
		assert.Equal(t, "id=eq.4", rows[0].Query)
		assert.Contains(t, rows[0].Body, `"image_url":"https://cdn.example/ada.png"`)
	})

	t.Run("incomplete_team_member_uploads_nothing", func(t *testing.T) {
		f, b := setup(t)
		code, out := f.form(t, http.MethodPost, "/api/records/team", map[string]string{"name": "Ada"}, "ada.png")
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "Please fill out all fields.", out.Status.Message)
		assert.Empty(t, b.seen(http.MethodPost, "/storage/"))
	})

	t.Run("save_news_slot_keeps_stored_image", func(t *testing.T) {
		f, b := setup(t)
		old := public(b, "news-images", "news/slot-2.png")
		b.on(http.MethodGet, "/rest/v1/news_slots", "slot_number=eq.2", `[{"slot_number":2,"caption":"Old","image_url":"`+old+`"}]`)
		b.on(http.MethodPost, "/rest/v1/news_slots", "", ``)

		code, out := f.form(t, http.MethodPut, "/api/records/news/2", map[string]string{"caption": " New "}, "")
		require.Equal(t, http.StatusOK, code, out.Status.Message)
		assert.Equal(t, "News slot 2 saved.", out.Status.Message)

		rows := b.seen(http.MethodPost, "/rest/v1/news_slots")
		require.Len(t, rows, 1)
		assert.JSONEq(t, `{"slot_number":2,"caption":"New","image_url":"`+old+`"}`, rows[0].Body)
	})

	t.Run("save_news_slot_with_upload", func(t *testing.T) {
		f, b := setup(t)
		b.on(http.MethodGet, "/rest/v1/news_slots", "", `[]`)
		b.on(http.MethodPost, "/storage/v1/object/news-images/news/slot-3.png", "", `{}`)
		b.on(http.MethodPost, "/rest/v1/news_slots", "", ``)

		code, out := f.form(t, http.MethodPut, "/api/records/news/3", map[string]string{"caption": ""}, "pic.png")
		require.Equal(t, http.StatusOK, code, out.Status.Message)

		rows := b.seen(http.MethodPost, "/rest/v1/news_slots")
		require.Len(t, rows, 1)
		assert.JSONEq(t, `{"slot_number":3,"caption":null,"image_url":"`+public(b, "news-images", "news/slot-3.png")+`"}`, rows[0].Body)
	})

	t.Run("clear_news_slot_removes_image", func(t *testing.T) {
		f, b := setup(t)
		b.on(http.MethodGet, "/rest/v1/news_slots", "", `[{"slot_number":2,"caption":"Old","image_url":"`+public(b, "news-images", "news/slot-2.png")+`"}]`)
		b.on(http.MethodDelete, "/storage/v1/object/news-images", "", `[]`)
		b.on(http.MethodPost, "/rest/v1/news_slots", "", ``)

		code, out := f.do(t, http.MethodDelete, "/api/records/news/2", nil)
		require.Equal(t, http.StatusOK, code, out.Status.Message)
		assert.Equal(t, "News slot 2 cleared.", out.Status.Message)

		removed := b.seen(http.MethodDelete, "/storage/v1/object/news-images")
		require.Len(t, removed, 1)
		assert.JSONEq(t, `{"prefixes":["news/slot-2.png"]}`, removed[0].Body)
		rows := b.seen(http.MethodPost, "/rest/v1/news_slots")
		require.Len(t, rows, 1)
		assert.JSONEq(t, `{"slot_number":2,"caption":null,"image_url":null}`, rows[0].Body)
	})

	t.Run("service_slot_save_and_clear", func(t *testing.T) {
		f, b := setup(t)
		img := public(b, "service-images", "services/audit-slot-1.png")
		b.on(http.MethodGet, "/rest/v1/service_slots", "", `[{"service_key":"audit","slot_number":1,"caption":null,"image_url":"`+img+`"}]`)
		b.on(http.MethodPost, "/storage/v1/object/service-images/services/audit-slot-1.png", "", `{}`)
		b.on(http.MethodDelete, "/storage/v1/object/service-images", "", `[]`)
		b.on(http.MethodPost, "/rest/v1/service_slots", "", ``)

		code, out := f.form(t, http.MethodPut, "/api/records/services/audit/1", map[string]string{"caption": "Audits"}, "shot.png")
		require.Equal(t, http.StatusOK, code, out.Status.Message)
		assert.Equal(t, "Service slot audit:1 saved.", out.Status.Message)

		lookups := b.seen(http.MethodGet, "/rest/v1/service_slots")
		require.Len(t, lookups, 1)
		assert.Contains(t, lookups[0].Query, "service_key=eq.audit")
		assert.Contains(t, lookups[0].Query, "slot_number=eq.1")

		code, out = f.do(t, http.MethodDelete, "/api/records/services/audit/1", nil)
		require.Equal(t, http.StatusOK, code, out.Status.Message)

		removed := b.seen(http.MethodDelete, "/storage/v1/object/service-images")
		require.Len(t, removed, 1)
		assert.JSONEq(t, `{"prefixes":["services/audit-slot-1.png"]}`, removed[0].Body)

		rows := b.seen(http.MethodPost, "/rest/v1/service_slots")
		require.Len(t, rows, 2)
		assert.JSONEq(t, `{"service_key":"audit","slot_number":1,"caption":"Audits","image_url":"`+img+`"}`, rows[0].Body)
		assert.JSONEq(t, `{"service_key":"audit","slot_number":1,"caption":null,"image_url":null}`, rows[1].Body)
	})

	t.Run("invalid_slot", func(t *testing.T) {
		f, b := setup(t)
		code, out := f.form(t, http.MethodPut, "/api/records/news/zero", map[string]string{"caption": "x"}, "")
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "Slot must be a positive number.", out.Status.Message)
		assert.Empty(t, b.seen(http.MethodGet, "/rest/"))
	})
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/overlay"
	ws, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err, "dialing overlay channel")
	t.Cleanup(func() { ws.Close() })
	return ws
}

func read(t *testing.T, ws *websocket.Conn) outbound {
	var raw struct {
		Type       string               `json:"type"`
		Generation uint64               `json:"generation"`
		Commands   []overlay.Command    `json:"commands"`
		Decision   *overlay.NavDecision `json:"decision"`
		Status     *status.Status       `json:"status"`
		Changes    *changesView         `json:"changes"`
	}
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, ws.ReadJSON(&raw))
	return outbound{Type: raw.Type, Generation: raw.Generation, Commands: raw.Commands, Decision: raw.Decision, Status: raw.Status, Changes: raw.Changes}
}

func TestOverlayChannel(t *testing.T) {
	f := newFixture(t, nil)
	ts := httptest.NewServer(f.srv)
	t.Cleanup(ts.Close)

	code, out := f.do(t, http.MethodPost, "/api/preview", previewRequest{URL: "https://site.example/"})
	require.Equal(t, http.StatusOK, code, out.Status.Message)
	gen := f.ctrl.Generation()

	ws := dial(t, ts)
	first := read(t, ws)
	assert.Equal(t, "changes", first.Type, "a ledger snapshot is sent on connect")
	require.Eventually(t, func() bool { return f.srv.hub.len() == 1 }, time.Second, 10*time.Millisecond)

	send := func(msg map[string]any) {
		require.NoError(t, ws.WriteJSON(msg))
	}

	send(map[string]any{"type": "click", "generation": gen, "click": map[string]any{"unit_id": "s0", "x": 3, "y": 4}})
	msg := read(t, ws)
	require.Equal(t, "commands", msg.Type)
	require.Len(t, msg.Commands, 1)
	assert.Equal(t, overlay.CommandActivate, msg.Commands[0].Kind)
	assert.Equal(t, "Welcome", msg.Commands[0].Original)

	send(map[string]any{"type": "input", "generation": gen, "unit_id": "s0", "text": "Hello"})
	msg = read(t, ws)
	require.Equal(t, "changes", msg.Type, "ledger changes are pushed to the shell")
	assert.Equal(t, 1, msg.Changes.Count)

	// a stale event is dropped without a reply
	send(map[string]any{"type": "input", "generation": gen + 5, "unit_id": "s0", "text": "Late"})

	send(map[string]any{"type": "blur", "generation": gen, "unit_id": "s0"})
	msg = read(t, ws)
	require.Equal(t, "commands", msg.Type)
	assert.Equal(t, []overlay.Command{{Kind: overlay.CommandDeactivate, UnitID: "s0"}}, msg.Commands)

	got, _ := f.ctrl.Ledger().Get("Welcome")
	assert.Equal(t, "Hello", got, "stale input must not touch the ledger")

	send(map[string]any{"type": "navigate", "generation": gen, "link": map[string]any{"href": "#team"}})
	msg = read(t, ws)
	require.Equal(t, "navigate", msg.Type)
	require.NotNil(t, msg.Decision)
	assert.Equal(t, overlay.NavHash, msg.Decision.Action)
}

func TestOverlayRejectsForeignOrigin(t *testing.T) {
	f := newFixture(t, nil)
	ts := httptest.NewServer(f.srv)
	t.Cleanup(ts.Close)

	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/overlay"
	_, resp, err := websocket.DefaultDialer.Dial(u, http.Header{"Origin": []string{"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
