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
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/copyedit/pkg/reconcile"
	"github.com/walteh/copyedit/pkg/status"
	"github.com/walteh/copyedit/pkg/text"
)

// PushRequest is the push form
type PushRequest struct {
	Mode    string `json:"mode"`
	Message string `json:"message"`
	DryRun  bool   `json:"dry_run"`
}

// PushResult is a finished push attempt
type PushResult struct {
	Outcome *reconcile.Outcome `json:"-"`
	Status  status.Status      `json:"status"`
}

// StatusFor maps a reconcile outcome to its status line
func StatusFor(o *reconcile.Outcome) status.Status {
	switch o.Status {
	case reconcile.StatusPushed:
		return status.Good(o.Message)
	case reconcile.StatusNoEdits:
		return status.Bad(status.KindUserInput, o.Message)
	case reconcile.StatusNothingToPush:
		return status.Bad(status.KindAmbiguity, o.Message)
	default:
		return status.Info(o.Message)
	}
}

func (c *Controller) reconciler(mode text.Mode) (*reconcile.Reconciler, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.repo == nil {
		return nil, ErrNotConnected
	}
	r, ok := c.reconcilers[mode]
	if !ok {
		r = reconcile.New(c.repo, reconcile.Options{
			Mode: mode,
			Progress: func(msg string) {
				c.emit(status.Progress(msg))
			},
		})
		c.reconcilers[mode] = r
	}
	return r, nil
}

// Push reconciles the ledger against the configured files and commits the
// result. Only one push runs at a time across every mode.
func (c *Controller) Push(ctx context.Context, req PushRequest) (*PushResult, error) {
	logger := zerolog.Ctx(ctx)

	mode := c.cfg.Mode()
	if strings.TrimSpace(req.Mode) != "" {
		m, err := text.ParseMode(req.Mode)
		if err != nil {
			uerr := status.NewUserError("Choose a replace mode: first or all.")
			return &PushResult{Status: c.Fail(uerr)}, errors.Errorf("%w: %s", uerr, err.Error())
		}
		mode = m
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		message = c.cfg.Commit.Message
	}

	r, err := c.reconciler(mode)
	if err != nil {
		return &PushResult{Status: c.Fail(err)}, err
	}

	if !c.pushing.CompareAndSwap(false, true) {
		return &PushResult{Status: c.Fail(reconcile.ErrPushInProgress)}, reconcile.ErrPushInProgress
	}
	defer c.pushing.Store(false)

	c.emit(status.Progress(MessagePushing))

	repo, _, _ := c.Connected()
	if repo == nil {
		return &PushResult{Status: c.Fail(ErrNotConnected)}, ErrNotConnected
	}
	paths, err := repo.ExpandPaths(ctx, c.cfg.Commit.Files)
	if err != nil {
		return &PushResult{Status: c.Fail(err)}, errors.Errorf("expanding file patterns: %w", err)
	}

	outcome, err := r.Push(ctx, c.ledger.Entries(), paths, message, req.DryRun)
	if err != nil {
		return &PushResult{Outcome: outcome, Status: c.Fail(err)}, err
	}

	logger.Info().Str("status", string(outcome.Status)).Str("mode", string(mode)).Msg(outcome.Message)
	return &PushResult{Outcome: outcome, Status: c.emit(StatusFor(outcome))}, nil
}
