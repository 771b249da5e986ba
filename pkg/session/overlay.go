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

package session

import (
	"context"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/copyedit/pkg/overlay"
	"github.com/walteh/copyedit/pkg/preview"
	"github.com/walteh/copyedit/pkg/status"
)

// 🖼️ PreviewResult is a loaded preview bound to a fresh overlay session
type PreviewResult struct {
	*preview.Result
	Generation uint64            `json:"generation"`
	Commands   []overlay.Command `json:"commands,omitempty"`
	Rules      overlay.Rules     `json:"rules"`
	Notice     status.Status     `json:"-"` // status line for the load
}

// LoadPreview loads target and starts a new overlay session. The previous
// session is closed before the new one is published, so late events for it
// are rejected. Only the most recently started load may publish; an older
// load that finishes later fails with ErrPreviewSuperseded and leaves the
// live session alone.
func (c *Controller) LoadPreview(ctx context.Context, target, hostOrigin string) (*PreviewResult, error) {
	logger := zerolog.Ctx(ctx)

	c.mu.Lock()
	c.loads++
	seq := c.loads
	c.mu.Unlock()

	res, err := c.loader.Load(ctx, target, hostOrigin)

	c.mu.Lock()
	if seq != c.loads {
		c.mu.Unlock()
		logger.Debug().Str("target", target).Uint64("load", seq).Msg("dropping superseded preview load")
		return nil, errors.Errorf("loading %q: %w", target, ErrPreviewSuperseded)
	}
	if err != nil {
		c.mu.Unlock()
		c.Fail(err)
		return nil, err
	}

	bg := context.WithoutCancel(ctx)

	c.closeSessionLocked()
	c.generation++
	gen := c.generation
	sess := overlay.NewSession(gen, res.URL, c.ledger, c.editing)
	c.session = sess
	c.debouncer = overlay.NewDebouncer(overlay.DefaultResyncWindow, overlay.DefaultResyncMaxBuffer, func(units []overlay.Unit) {
		cmds, err := sess.Resync(bg, gen, units)
		if err != nil {
			logger.Debug().Err(err).Uint64("generation", gen).Msg("dropping resync for closed session")
			return
		}
		c.emitCommands(gen, cmds)
	})
	c.mu.Unlock()

	out := &PreviewResult{Result: res, Generation: gen, Rules: overlay.DefaultRules()}
	if len(res.Units) > 0 {
		cmds, err := sess.Resync(ctx, gen, res.Units)
		if err != nil {
			// only a newer load can close the session this early
			return nil, errors.Errorf("registering units: %w", ErrPreviewSuperseded)
		}
		out.Commands = cmds
	}

	s := status.Info(res.Message)
	if !res.Editable() {
		s = status.Bad(status.KindEnvironment, res.Message)
	}
	out.Notice = c.emit(s)

	logger.Info().Str("url", res.URL).Str("status", string(res.Status)).Uint64("generation", gen).Msg("preview loaded")
	return out, nil
}

func (c *Controller) closeSessionLocked() {
	if c.debouncer != nil {
		c.debouncer.Stop()
		c.debouncer = nil
	}
	if c.session != nil {
		c.session.Close()
	}
}

// current returns the active session when generation matches it
func (c *Controller) current(generation uint64) (*overlay.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil, ErrNoPreview
	}
	if c.session.Generation() != generation || c.session.Closed() {
		return nil, overlay.ErrStaleSession
	}
	return c.session, nil
}

// Generation is the active session generation, zero before any preview
func (c *Controller) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return 0
	}
	return c.session.Generation()
}

// QueueResync debounces units reported by a mutating page. Commands for the
// batch are delivered to OnCommands listeners.
func (c *Controller) QueueResync(generation uint64, units []overlay.Unit) error {
	if _, err := c.current(generation); err != nil {
		return err
	}
	c.mu.Lock()
	d := c.debouncer
	c.mu.Unlock()
	if d != nil {
		d.Add(units...)
	}
	return nil
}

// Resync registers units immediately
func (c *Controller) Resync(ctx context.Context, generation uint64, units []overlay.Unit) ([]overlay.Command, error) {
	sess, err := c.current(generation)
	if err != nil {
		return nil, err
	}
	return sess.Resync(ctx, generation, units)
}

// Click handles a click inside the preview
func (c *Controller) Click(ctx context.Context, generation uint64, ev overlay.ClickEvent) ([]overlay.Command, error) {
	sess, err := c.current(generation)
	if err != nil {
		return nil, err
	}
	return sess.Click(ctx, generation, ev)
}

// Input records the current text of the unit being edited
func (c *Controller) Input(ctx context.Context, generation uint64, unitID, text string) error {
	sess, err := c.current(generation)
	if err != nil {
		return err
	}
	return sess.Input(ctx, generation, unitID, text)
}

// Blur ends editing of a unit
func (c *Controller) Blur(ctx context.Context, generation uint64, unitID string) ([]overlay.Command, error) {
	sess, err := c.current(generation)
	if err != nil {
		return nil, err
	}
	return sess.Blur(ctx, generation, unitID)
}

// Deselect clears the active unit
func (c *Controller) Deselect(generation uint64) ([]overlay.Command, error) {
	sess, err := c.current(generation)
	if err != nil {
		return nil, err
	}
	return sess.Deselect(generation)
}

// SetEditing toggles editing; disabling clears the active unit
func (c *Controller) SetEditing(enabled bool) []overlay.Command {
	c.mu.Lock()
	c.editing = enabled
	sess := c.session
	c.mu.Unlock()
	if sess == nil {
		return nil
	}
	return sess.SetEditingEnabled(enabled)
}

// Editing reports whether editing is enabled
func (c *Controller) Editing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.editing
}

// NavigateResult is the answer to a link click. Preview is set when the
// click reloaded the preview.
type NavigateResult struct {
	Decision overlay.NavDecision `json:"decision"`
	Preview  *PreviewResult      `json:"preview,omitempty"`
}

// Navigate decides how a link click is handled and reloads the preview when needed
func (c *Controller) Navigate(ctx context.Context, generation uint64, click overlay.LinkClick, hostOrigin string) (*NavigateResult, error) {
	sess, err := c.current(generation)
	if err != nil {
		return nil, err
	}
	decision := overlay.Navigate(sess.URL(), click)
	out := &NavigateResult{Decision: decision}
	if decision.Action != overlay.NavReload {
		return out, nil
	}
	p, err := c.LoadPreview(ctx, decision.URL, hostOrigin)
	if err != nil {
		return nil, err
	}
	out.Preview = p
	return out, nil
}
