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
	"net/http"
	"strings"

	"gitlab.com/tozd/go/errors"

	"github.com/walteh/copyedit/pkg/draft"
	"github.com/walteh/copyedit/pkg/ledger"
	"github.com/walteh/copyedit/pkg/reconcile"
	"github.com/walteh/copyedit/pkg/session"
	"github.com/walteh/copyedit/pkg/status"
)

// ErrMissingOriginal is returned when a change names no original text
var ErrMissingOriginal = status.NewUserError("Select text to edit first.")

// 📝 changesView is the ledger as the shell shows it
type changesView struct {
	Count   int            `json:"count"`
	Summary string         `json:"summary"`
	Chip    string         `json:"chip"`
	Text    string         `json:"text"`
	Entries []ledger.Entry `json:"entries"`
}

func (s *Server) changes() changesView {
	entries := s.ctrl.Changes()
	pairs := make([][2]string, 0, len(entries))
	for _, e := range entries {
		pairs = append(pairs, [2]string{e.Original, e.Updated})
	}
	if entries == nil {
		entries = []ledger.Entry{}
	}
	return changesView{
		Count:   len(entries),
		Summary: status.EditSummary(len(entries)),
		Chip:    status.ChipText(len(entries)),
		Text:    status.FormatChangeList(pairs),
		Entries: entries,
	}
}

type connectionView struct {
	Connected bool              `json:"connected"`
	Repo      string            `json:"repo,omitempty"`
	Branch    string            `json:"branch,omitempty"`
	Login     string            `json:"login,omitempty"`
	Saved     *draft.Connection `json:"saved,omitempty"`
}

func (s *Server) connection(r *http.Request) connectionView {
	var v connectionView
	if repo, login, ok := s.ctrl.Connected(); ok {
		v.Connected = true
		v.Repo = repo.Name()
		v.Branch = repo.Branch()
		v.Login = login
	}
	if saved, err := s.ctrl.SavedConnection(r.Context()); err == nil {
		v.Saved = saved
	}
	return v
}

func (s *Server) handleConnection(w http.ResponseWriter, r *http.Request) {
	v := s.connection(r)
	st := status.Info("Not connected.")
	if v.Connected {
		st = status.Good(session.MessageConnected)
	}
	respond(w, http.StatusOK, st, map[string]any{"connection": v})
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req session.ConnectRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err, nil)
		return
	}
	st, err := s.ctrl.Connect(r.Context(), req)
	if err != nil {
		fail(w, r, err, &st)
		return
	}
	respond(w, http.StatusOK, st, map[string]any{"connection": s.connection(r)})
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	st := s.ctrl.Disconnect(r.Context())
	respond(w, http.StatusOK, st, map[string]any{"connection": s.connection(r)})
}

type previewRequest struct {
	URL string `json:"url"`
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err, nil)
		return
	}
	target := strings.TrimSpace(req.URL)
	if target == "" {
		target = s.ctrl.Config().Site.URL
	}
	res, err := s.ctrl.LoadPreview(r.Context(), target, hostOrigin(r))
	if err != nil {
		fail(w, r, err, nil)
		return
	}
	respond(w, http.StatusOK, res.Notice, map[string]any{"preview": res})
}

func (s *Server) handleListChanges(w http.ResponseWriter, r *http.Request) {
	v := s.changes()
	respond(w, http.StatusOK, status.Info(v.Summary), map[string]any{"changes": v})
}

type changeRequest struct {
	Original string `json:"original"`
	Updated  string `json:"updated"`
}

func (s *Server) handleRegisterChange(w http.ResponseWriter, r *http.Request) {
	var req changeRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err, nil)
		return
	}
	if req.Original == "" {
		fail(w, r, ErrMissingOriginal, nil)
		return
	}
	st := s.ctrl.RegisterChange(req.Original, req.Updated)
	respond(w, http.StatusOK, st, map[string]any{"changes": s.changes()})
}

func (s *Server) handleClearChanges(w http.ResponseWriter, r *http.Request) {
	st := s.ctrl.ClearChanges()
	respond(w, http.StatusOK, st, map[string]any{"changes": s.changes()})
}

func (s *Server) handleSaveDraft(w http.ResponseWriter, r *http.Request) {
	st, err := s.ctrl.SaveDraft(r.Context())
	if err != nil {
		fail(w, r, err, &st)
		return
	}
	respond(w, http.StatusOK, st, nil)
}

func (s *Server) handleLoadDraft(w http.ResponseWriter, r *http.Request) {
	st, cmds, err := s.ctrl.LoadDraft(r.Context())
	if err != nil {
		fail(w, r, err, &st)
		return
	}
	gen := s.ctrl.Generation()
	if len(cmds) > 0 {
		s.hub.broadcast(outbound{Type: "commands", Generation: gen, Commands: cmds})
	}
	respond(w, http.StatusOK, st, map[string]any{
		"generation": gen,
		"commands":   cmds,
		"changes":    s.changes(),
	})
}

func (s *Server) handleDiscardDraft(w http.ResponseWriter, r *http.Request) {
	st, err := s.ctrl.DiscardDraft(r.Context())
	if err != nil {
		fail(w, r, err, &st)
		return
	}
	respond(w, http.StatusOK, st, nil)
}

// 📦 pushView is a finished push as the shell shows it
type pushView struct {
	Result  reconcile.Status `json:"result"`
	Message string           `json:"message"`
	Commit  string           `json:"commit,omitempty"`
	Files   []fileView       `json:"files,omitempty"`
	Missing []string         `json:"missing,omitempty"`
	Unused  []string         `json:"unused,omitempty"`
	Totals  map[string]int   `json:"totals,omitempty"`
}

type fileView struct {
	Path         string `json:"path"`
	Changed      bool   `json:"changed"`
	Replacements int    `json:"replacements"`
}

func newPushView(o *reconcile.Outcome) *pushView {
	if o == nil {
		return nil
	}
	v := &pushView{Result: o.Status, Message: o.Message}
	if o.Commit != nil {
		v.Commit = o.Commit.SHA
	}
	if p := o.Plan; p != nil {
		v.Missing = p.Missing
		v.Unused = p.Unused
		v.Totals = p.Totals
		for _, f := range p.Files {
			v.Files = append(v.Files, fileView{Path: f.Path, Changed: f.Changed(), Replacements: f.Replacements()})
		}
	}
	return v
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	var req session.PushRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err, nil)
		return
	}
	res, err := s.ctrl.Push(r.Context(), req)
	if err != nil {
		var st *status.Status
		if res != nil {
			st = &res.Status
		}
		if errors.Is(err, reconcile.ErrUnmatchedEdits) && res != nil {
			_, code := status.Classify(err)
			respond(w, code, res.Status, map[string]any{"push": newPushView(res.Outcome)})
			return
		}
		fail(w, r, err, st)
		return
	}
	respond(w, http.StatusOK, res.Status, map[string]any{"push": newPushView(res.Outcome)})
}
