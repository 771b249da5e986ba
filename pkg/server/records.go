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
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/copyedit/pkg/records"
	"github.com/walteh/copyedit/pkg/status"
)

// maxUploadBytes bounds a record form, image included
const maxUploadBytes = 10 << 20

var (
	// ErrBadForm is returned for a record form that cannot be parsed
	ErrBadForm = status.NewUserError("Could not read the form.")
	// ErrInvalidSlot is returned for a slot that is not a positive number
	ErrInvalidSlot = status.NewUserError("Slot must be a positive number.")
)

type recordsHandler func(w http.ResponseWriter, r *http.Request, c *records.Client)

// withRecords resolves the records client before calling fn
func (s *Server) withRecords(fn recordsHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := s.ctrl.Records()
		if err != nil {
			fail(w, r, err, nil)
			return
		}
		fn(w, r, c)
	}
}

func count(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// consultationView adds the derived display fields the shell lists
type consultationView struct {
	records.Consultation
	Display string `json:"display_name"`
	Reach   string `json:"contact_line"`
	Text    string `json:"body"`
	State   string `json:"current_status"`
	From    string `json:"source_name"`
	Files   string `json:"record_list"`
}

func newConsultationView(c records.Consultation) consultationView {
	return consultationView{
		Consultation: c,
		Display:      c.DisplayName(),
		Reach:        c.ContactLine(),
		Text:         c.Body(),
		State:        string(c.CurrentStatus()),
		From:         c.SourceName(),
		Files:        c.RecordList(),
	}
}

func (s *Server) listConsultations(w http.ResponseWriter, r *http.Request, c *records.Client) {
	list, err := c.ListConsultations(r.Context())
	if err != nil {
		fail(w, r, err, nil)
		return
	}
	views := make([]consultationView, 0, len(list))
	for _, cs := range list {
		views = append(views, newConsultationView(cs))
	}
	respond(w, http.StatusOK, status.Info(count(len(list), "consultation")), map[string]any{"consultations": views})
}

func (s *Server) rejectConsultation(w http.ResponseWriter, r *http.Request, c *records.Client) {
	if err := c.RejectConsultation(r.Context(), records.ID(chi.URLParam(r, "id"))); err != nil {
		fail(w, r, err, nil)
		return
	}
	respond(w, http.StatusOK, status.Good("Consultation rejected."), nil)
}

func (s *Server) deleteConsultation(w http.ResponseWriter, r *http.Request, c *records.Client) {
	if err := c.DeleteConsultation(r.Context(), records.ID(chi.URLParam(r, "id"))); err != nil {
		fail(w, r, err, nil)
		return
	}
	respond(w, http.StatusOK, status.Good("Consultation deleted."), nil)
}

func (s *Server) listTeam(w http.ResponseWriter, r *http.Request, c *records.Client) {
	team, err := c.ListTeam(r.Context())
	if err != nil {
		fail(w, r, err, nil)
		return
	}
	respond(w, http.StatusOK, status.Info(count(len(team), "team member")), map[string]any{"team": team})
}

func (s *Server) deleteTeamMember(w http.ResponseWriter, r *http.Request, c *records.Client) {
	if err := c.DeleteTeamMember(r.Context(), records.ID(chi.URLParam(r, "id"))); err != nil {
		fail(w, r, err, nil)
		return
	}
	respond(w, http.StatusOK, status.Good("Team member deleted."), nil)
}

func (s *Server) listNews(w http.ResponseWriter, r *http.Request, c *records.Client) {
	slots, err := c.ListNewsSlots(r.Context())
	if err != nil {
		fail(w, r, err, nil)
		return
	}
	respond(w, http.StatusOK, status.Info(count(len(slots), "news slot")), map[string]any{"news": slots})
}

func (s *Server) listServices(w http.ResponseWriter, r *http.Request, c *records.Client) {
	slots, err := c.ListServiceSlots(r.Context())
	if err != nil {
		fail(w, r, err, nil)
		return
	}
	respond(w, http.StatusOK, status.Info(count(len(slots), "service slot")), map[string]any{"services": slots})
}

// upload is the optional image attached to a record form
type upload struct {
	name        string
	contentType string
	file        multipart.File
}

// readForm parses a multipart record form. The returned upload is nil when
// no image was attached; otherwise the caller closes it.
func readForm(w http.ResponseWriter, r *http.Request) (*upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, errors.Errorf("%w: %s", ErrBadForm, err.Error())
	}
	f, hdr, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Errorf("%w: %s", ErrBadForm, err.Error())
	}
	return &upload{name: hdr.Filename, contentType: hdr.Header.Get("Content-Type"), file: f}, nil
}

func (u *upload) close(r *http.Request) {
	if u == nil {
		return
	}
	if err := u.file.Close(); err != nil {
		zerolog.Ctx(r.Context()).Debug().Err(err).Msg("closing upload")
	}
}

// optional is nil for blank input
func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func slotParam(r *http.Request) (int, error) {
	n, err := strconv.Atoi(chi.URLParam(r, "slot"))
	if err != nil || n < 1 {
		return 0, ErrInvalidSlot
	}
	return n, nil
}

// saveTeamMember inserts or, when id is set, updates a member. An attached
// image replaces image_url.
func (s *Server) saveTeamMember(w http.ResponseWriter, r *http.Request, c *records.Client) {
	up, err := readForm(w, r)
	if err != nil {
		fail(w, r, err, nil)
		return
	}
	defer up.close(r)

	m := records.TeamMember{
		ID:       records.ID(strings.TrimSpace(r.FormValue("id"))),
		Name:     r.FormValue("name"),
		Title:    r.FormValue("title"),
		Role:     r.FormValue("role"),
		Bio:      r.FormValue("bio"),
		ImageURL: optional(r.FormValue("image_url")),
	}
	if err := m.Validate(); err != nil {
		fail(w, r, err, nil)
		return
	}
	if up != nil {
		u, err := c.UploadTeamImage(r.Context(), up.name, up.contentType, up.file)
		if err != nil {
			fail(w, r, err, nil)
			return
		}
		m.ImageURL = &u
	}
	if err := c.SaveTeamMember(r.Context(), m); err != nil {
		fail(w, r, err, nil)
		return
	}
	respond(w, http.StatusOK, status.Good("Team member saved."), map[string]any{"member": m})
}

// saveNewsSlot sets the caption and, when an image is attached, replaces the
// slot image. Without one the stored image is kept.
func (s *Server) saveNewsSlot(w http.ResponseWriter, r *http.Request, c *records.Client) {
	slot, err := slotParam(r)
	if err != nil {
		fail(w, r, err, nil)
		return
	}
	up, err := readForm(w, r)
	if err != nil {
		fail(w, r, err, nil)
		return
	}
	defer up.close(r)

	current, err := c.GetNewsSlot(r.Context(), slot)
	if err != nil {
		fail(w, r, err, nil)
		return
	}
	next := records.NewsSlot{SlotNumber: slot, Caption: optional(r.FormValue("caption")), ImageURL: current.ImageURL}
	if up != nil {
		u, err := c.UploadNewsImage(r.Context(), slot, up.name, up.contentType, up.file)
		if err != nil {
			fail(w, r, err, nil)
			return
		}
		next.ImageURL = &u
	}
	if err := c.SaveNewsSlot(r.Context(), next); err != nil {
		fail(w, r, err, nil)
		return
	}
	respond(w, http.StatusOK, status.Good(fmt.Sprintf("News slot %d saved.", slot)), map[string]any{"slot": next})
}

func (s *Server) clearNewsSlot(w http.ResponseWriter, r *http.Request, c *records.Client) {
	slot, err := slotParam(r)
	if err != nil {
		fail(w, r, err, nil)
		return
	}
	current, err := c.GetNewsSlot(r.Context(), slot)
	if err != nil {
		fail(w, r, err, nil)
		return
	}
	if err := c.ClearNewsSlot(r.Context(), current); err != nil {
		fail(w, r, err, nil)
		return
	}
	respond(w, http.StatusOK, status.Good(fmt.Sprintf("News slot %d cleared.", slot)), nil)
}

func (s *Server) saveServiceSlot(w http.ResponseWriter, r *http.Request, c *records.Client) {
	key := strings.TrimSpace(chi.URLParam(r, "key"))
	slot, err := slotParam(r)
	if err != nil {
		fail(w, r, err, nil)
		return
	}
	up, err := readForm(w, r)
	if err != nil {
		fail(w, r, err, nil)
		return
	}
	defer up.close(r)

	current, err := c.GetServiceSlot(r.Context(), key, slot)
	if err != nil {
		fail(w, r, err, nil)
		return
	}
	next := records.ServiceSlot{ServiceKey: key, SlotNumber: slot, Caption: optional(r.FormValue("caption")), ImageURL: current.ImageURL}
	if up != nil {
		u, err := c.UploadServiceImage(r.Context(), key, slot, up.name, up.contentType, up.file)
		if err != nil {
			fail(w, r, err, nil)
			return
		}
		next.ImageURL = &u
	}
	if err := c.SaveServiceSlot(r.Context(), next); err != nil {
		fail(w, r, err, nil)
		return
	}
	respond(w, http.StatusOK, status.Good("Service slot "+next.Key()+" saved."), map[string]any{"slot": next})
}

func (s *Server) clearServiceSlot(w http.ResponseWriter, r *http.Request, c *records.Client) {
	key := strings.TrimSpace(chi.URLParam(r, "key"))
	slot, err := slotParam(r)
	if err != nil {
		fail(w, r, err, nil)
		return
	}
	current, err := c.GetServiceSlot(r.Context(), key, slot)
	if err != nil {
		fail(w, r, err, nil)
		return
	}
	if err := c.ClearServiceSlot(r.Context(), current); err != nil {
		fail(w, r, err, nil)
		return
	}
	respond(w, http.StatusOK, status.Good("Service slot "+current.Key()+" cleared."), nil)
}
