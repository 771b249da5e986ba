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
	"context"
	"sync"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

var (
	// ErrStaleSession is returned for events addressed to a document that is
	// no longer loaded
	ErrStaleSession = errors.New("overlay session is no longer active")
	// ErrUnknownUnit is returned for events naming a unit the session never saw
	ErrUnknownUnit = errors.New("unknown editable unit")
)

// Ledger is the part of the change ledger a session writes to
type Ledger interface {
	RegisterChange(original, updated string)
	Get(original string) (string, bool)
}

// UnitState is the state of one editable unit
type UnitState int

const (
	// StateWrapped is the resting state of every known unit
	StateWrapped UnitState = iota
	// StateEditing is the highlighted, natively editable state
	StateEditing
)

func (s UnitState) String() string {
	if s == StateEditing {
		return "editing"
	}
	return "wrapped"
}

// 🧩 UnitInfo is the session's view of one unit
type UnitInfo struct {
	ID string `json:"id"`
	// Text is the latest text reported by the browser
	Text string `json:"text"`
	// Original is captured on first activation and never overwritten
	Original string    `json:"original,omitempty"`
	State    UnitState `json:"-"`
}

// ClickEvent describes a click inside the preview document
type ClickEvent struct {
	// UnitID is the nearest unit found walking up from the click target,
	// empty when the body was reached first
	UnitID string `json:"unit_id"`
	// Text is the unit's text at the moment of the click
	Text    string  `json:"text,omitempty"`
	Anchor  bool    `json:"anchor"`
	Control bool    `json:"control"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
}

// 🎯 Session is the edit state machine for one loaded preview document.
//
// Exactly one generation is live at a time. Every event carries the
// generation it was produced for, and events for any other generation, or
// after Close, fail with ErrStaleSession without touching the ledger.
type Session struct {
	mu sync.Mutex

	generation     uint64
	url            string
	ledger         Ledger
	units          map[string]*UnitInfo
	order          []string
	active         string
	editingEnabled bool
	closed         bool
}

// 🏭 NewSession starts the session for one document load
func NewSession(generation uint64, url string, ledger Ledger, editingEnabled bool) *Session {
	return &Session{
		generation:     generation,
		url:            url,
		ledger:         ledger,
		units:          make(map[string]*UnitInfo),
		editingEnabled: editingEnabled,
	}
}

// Generation identifies the document this session belongs to
func (s *Session) Generation() uint64 {
	return s.generation
}

// URL is the resolved preview URL of the document
func (s *Session) URL() string {
	return s.url
}

// Active returns the id of the unit in edit mode, if any
func (s *Session) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// EditingEnabled reports the editing toggle
func (s *Session) EditingEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editingEnabled
}

// Unit returns a copy of the session's view of a unit
func (s *Session) Unit(id string) (UnitInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.units[id]
	if !ok {
		return UnitInfo{}, false
	}
	return *u, true
}

// Units returns every known unit in registration order
func (s *Session) Units() []UnitInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]UnitInfo, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.units[id])
	}
	return out
}

// Resync registers units the session has not seen before and returns the
// projection commands for those whose text has a pending edit. A known unit
// that was never edited takes the reported text, since page scripts may have
// rewritten it; edited and active units are left as they are, so repeated
// notifications are harmless.
func (s *Session) Resync(ctx context.Context, generation uint64, units []Unit) ([]Command, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked(generation); err != nil {
		return nil, err
	}

	var cmds []Command
	added := 0
	for _, u := range units {
		if u.ID == "" {
			continue
		}
		if known, ok := s.units[u.ID]; ok {
			if known.Original != "" || s.active == u.ID || known.Text == u.Text {
				continue
			}
			known.Text = u.Text
			if cmd, ok := s.projectLocked(known); ok {
				cmds = append(cmds, cmd)
			}
			continue
		}
		info := &UnitInfo{ID: u.ID, Text: u.Text}
		s.units[u.ID] = info
		s.order = append(s.order, u.ID)
		added++
		if cmd, ok := s.projectLocked(info); ok {
			cmds = append(cmds, cmd)
		}
	}

	zerolog.Ctx(ctx).Debug().
		Uint64("generation", s.generation).
		Int("reported", len(units)).
		Int("added", added).
		Int("projected", len(cmds)).
		Msg("resynced overlay units")

	return cmds, nil
}

// Click handles a click inside the preview
func (s *Session) Click(ctx context.Context, generation uint64, ev ClickEvent) ([]Command, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked(generation); err != nil {
		return nil, err
	}

	if ev.Anchor {
		// navigation proceeds untouched, only the selection is cleared
		if !s.editingEnabled {
			return nil, nil
		}
		return s.clearLocked(), nil
	}
	if !s.editingEnabled || ev.Control || ev.UnitID == "" {
		return nil, nil
	}

	u, ok := s.units[ev.UnitID]
	if !ok {
		return nil, errors.Errorf("clicking %q: %w", ev.UnitID, ErrUnknownUnit)
	}

	cmds := s.clearLocked()

	u.State = StateEditing
	if u.Original == "" {
		if ev.Text != "" {
			u.Text = ev.Text
		}
		u.Original = u.Text
	}
	s.active = u.ID

	zerolog.Ctx(ctx).Debug().Str("unit", u.ID).Str("original", u.Original).Msg("activated unit")

	return append(cmds, Command{
		Kind:     CommandActivate,
		UnitID:   u.ID,
		Original: u.Original,
		X:        ev.X,
		Y:        ev.Y,
	}), nil
}

// Input records the current text of the active unit in the ledger. Input for
// a unit that is not in edit mode is dropped.
func (s *Session) Input(ctx context.Context, generation uint64, unitID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked(generation); err != nil {
		return err
	}

	u, ok := s.units[unitID]
	if !ok {
		return errors.Errorf("input for %q: %w", unitID, ErrUnknownUnit)
	}
	if u.State != StateEditing || s.active != unitID {
		return nil
	}

	u.Text = text
	s.ledger.RegisterChange(u.Original, text)
	return nil
}

// Blur returns the unit to the wrapped state
func (s *Session) Blur(ctx context.Context, generation uint64, unitID string) ([]Command, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked(generation); err != nil {
		return nil, err
	}
	if s.active != unitID {
		return nil, nil
	}
	return s.clearLocked(), nil
}

// Deselect clears the active unit, if any
func (s *Session) Deselect(generation uint64) ([]Command, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked(generation); err != nil {
		return nil, err
	}
	return s.clearLocked(), nil
}

// SetEditingEnabled toggles editing. Disabling clears the active unit.
func (s *Session) SetEditingEnabled(enabled bool) []Command {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.editingEnabled = enabled
	if enabled || s.closed {
		return nil
	}
	return s.clearLocked()
}

// Project re-applies the ledger to every known unit, used after a draft is
// restored
func (s *Session) Project(generation uint64) ([]Command, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked(generation); err != nil {
		return nil, err
	}

	var cmds []Command
	for _, id := range s.order {
		if cmd, ok := s.projectLocked(s.units[id]); ok {
			cmds = append(cmds, cmd)
		}
	}
	return cmds, nil
}

// Close ends the session. Every later event fails with ErrStaleSession.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.active = ""
}

// Closed reports whether Close was called
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) checkLocked(generation uint64) error {
	if s.closed || generation != s.generation {
		return errors.Errorf("generation %d (current %d): %w", generation, s.generation, ErrStaleSession)
	}
	return nil
}

func (s *Session) clearLocked() []Command {
	if s.active == "" {
		return nil
	}
	id := s.active
	s.active = ""
	if u, ok := s.units[id]; ok {
		u.State = StateWrapped
	}
	return []Command{{Kind: CommandDeactivate, UnitID: id}}
}

func (s *Session) projectLocked(u *UnitInfo) (Command, bool) {
	original := u.Original
	if original == "" {
		original = u.Text
	}
	if original == "" {
		return Command{}, false
	}
	replacement, ok := s.ledger.Get(original)
	if !ok {
		return Command{}, false
	}
	u.Original = original
	u.Text = replacement
	return Command{Kind: CommandSetText, UnitID: u.ID, Text: replacement, Original: original}, true
}
