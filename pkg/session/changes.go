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

	"github.com/walteh/copyedit/pkg/draft"
	"github.com/walteh/copyedit/pkg/ledger"
	"github.com/walteh/copyedit/pkg/overlay"
	"github.com/walteh/copyedit/pkg/status"
)

// RegisterChange records original -> updated outside the overlay
func (c *Controller) RegisterChange(original, updated string) status.Status {
	c.ledger.RegisterChange(original, updated)
	return status.Info(status.EditSummary(c.ledger.Len()))
}

// Changes returns the ledger entries in order
func (c *Controller) Changes() []ledger.Entry {
	return c.ledger.Entries()
}

// ClearChanges empties the ledger
func (c *Controller) ClearChanges() status.Status {
	c.ledger.Clear()
	return c.emit(status.Good(MessageCleared))
}

// SaveDraft persists the ledger to the draft store
func (c *Controller) SaveDraft(ctx context.Context) (status.Status, error) {
	if c.store == nil {
		err := errors.New("no draft store configured")
		return c.Fail(err), err
	}
	blob, err := c.ledger.Serialize(c.now())
	if err != nil {
		return c.Fail(err), err
	}
	if err := c.store.Save(ctx, draft.KeyDraft, blob); err != nil {
		return c.Fail(err), errors.Errorf("saving draft: %w", err)
	}
	zerolog.Ctx(ctx).Info().Int("entries", c.ledger.Len()).Msg("draft saved")
	return c.emit(status.Good(MessageSaved)), nil
}

// LoadDraft restores the ledger from the draft store and re-projects it onto
// the loaded preview. A corrupted draft leaves the ledger untouched.
func (c *Controller) LoadDraft(ctx context.Context) (status.Status, []overlay.Command, error) {
	if c.store == nil {
		return c.Fail(ErrNoDraft), nil, ErrNoDraft
	}
	data, err := c.store.Load(ctx, draft.KeyDraft)
	if errors.Is(err, draft.ErrNotFound) {
		return c.Fail(ErrNoDraft), nil, ErrNoDraft
	}
	if err != nil {
		return c.Fail(err), nil, errors.Errorf("loading draft: %w", err)
	}

	d, err := c.ledger.Restore(data)
	if err != nil {
		return c.Fail(err), nil, err
	}
	zerolog.Ctx(ctx).Info().Int("entries", len(d.Entries)).Time("saved_at", d.SavedAt).Msg("draft restored")

	var cmds []overlay.Command
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if sess != nil && !sess.Closed() {
		cmds, err = sess.Project(sess.Generation())
		if err != nil && !errors.Is(err, overlay.ErrStaleSession) {
			return c.Fail(err), nil, err
		}
	}
	return c.emit(status.Good(MessageLoaded)), cmds, nil
}

// ResumeDraft restores the saved draft when one exists. It reports whether a
// draft was restored; a missing draft is not an error.
func (c *Controller) ResumeDraft(ctx context.Context) (bool, error) {
	if c.store == nil {
		return false, nil
	}
	if _, err := c.store.Load(ctx, draft.KeyDraft); errors.Is(err, draft.ErrNotFound) {
		return false, nil
	}
	if _, _, err := c.LoadDraft(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// DiscardDraft removes the saved draft. The ledger is left as it is.
func (c *Controller) DiscardDraft(ctx context.Context) (status.Status, error) {
	if c.store == nil {
		return c.Fail(ErrNoDraft), ErrNoDraft
	}
	if err := c.store.Delete(ctx, draft.KeyDraft); err != nil {
		return c.Fail(err), errors.Errorf("discarding draft: %w", err)
	}
	zerolog.Ctx(ctx).Info().Msg("draft discarded")
	return c.emit(status.Good(MessageDiscarded)), nil
}
