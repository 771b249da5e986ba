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

// Package reconcile re-applies the change ledger to pristine source files and
// pushes the result as one atomic commit.
package reconcile

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"

	"github.com/walteh/copyedit/pkg/ledger"
	"github.com/walteh/copyedit/pkg/remote/github"
	"github.com/walteh/copyedit/pkg/text"
)

var (
	// ErrUnmatchedEdits aborts a push when an edit matched no source text
	ErrUnmatchedEdits = errors.New("some edits did not match source text")
	// ErrPushInProgress is returned while another push is running
	ErrPushInProgress = errors.New("a push is already in progress")
)

// Progress messages reported during a push.
const (
	MessagePreparing  = "Preparing edits..."
	MessageCommitting = "Creating commit..."
	MessageNoEdits    = "No edits to push."
	MessageNoChanges  = "No files changed. Edits might not match source text."
)

// DefaultMessage is the commit message used when none is given
const DefaultMessage = "Update content via editor"

// DefaultConcurrency bounds parallel file fetches
const DefaultConcurrency = 4

// Repository is the source-control boundary used by the reconciler
type Repository interface {
	GetFile(ctx context.Context, path string) (string, error)
	CommitFiles(ctx context.Context, message string, changes []github.FileChange) (*github.CommitResult, error)
}

// Status is the outcome kind of a push
type Status string

const (
	StatusPushed        Status = "pushed"
	StatusNoEdits       Status = "no_edits"
	StatusNothingToPush Status = "nothing_to_push"
	StatusDryRun        Status = "dry_run"
)

// 📄 FilePlan is the effect of the ledger on one source file
type FilePlan struct {
	Path     string
	Original string
	Updated  string
	// Usage counts matches per ledger key in this file
	Usage map[string]int
}

// Changed reports whether the file content differs
func (f FilePlan) Changed() bool {
	return f.Original != f.Updated
}

// Replacements is the total number of matches in this file
func (f FilePlan) Replacements() int {
	n := 0
	for _, c := range f.Usage {
		n += c
	}
	return n
}

// 📋 Plan is the result of applying the ledger to every candidate file
type Plan struct {
	Mode    text.Mode
	Entries []ledger.Entry
	// Files holds every fetched file in candidate order
	Files []FilePlan
	// Missing lists candidate paths that do not exist on the branch
	Missing []string
	// Totals counts matches per ledger key across all files
	Totals map[string]int
	// Unused lists ledger keys that matched nowhere, in ledger order
	Unused []string
}

// Changed returns the files whose content would change
func (p *Plan) Changed() []FilePlan {
	var out []FilePlan
	for _, f := range p.Files {
		if f.Changed() {
			out = append(out, f)
		}
	}
	return out
}

// Changes converts the changed files to commit input
func (p *Plan) Changes() []github.FileChange {
	changed := p.Changed()
	out := make([]github.FileChange, 0, len(changed))
	for _, f := range changed {
		out = append(out, github.FileChange{Path: f.Path, Content: f.Updated})
	}
	return out
}

// Outcome describes a finished push attempt
type Outcome struct {
	Status  Status
	Message string
	Plan    *Plan
	Commit  *github.CommitResult
}

// Options configure a Reconciler
type Options struct {
	Mode        text.Mode
	Concurrency int
	// Progress receives operator-facing progress messages
	Progress func(msg string)
}

// 🔁 Reconciler turns the ledger into a commit
type Reconciler struct {
	repo     Repository
	replacer *text.Replacer
	limit    int
	progress func(string)
	inflight atomic.Bool
}

// 🏭 New creates a Reconciler
func New(repo Repository, opts Options) *Reconciler {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Progress == nil {
		opts.Progress = func(string) {}
	}
	return &Reconciler{
		repo:     repo,
		replacer: text.NewReplacer(opts.Mode),
		limit:    opts.Concurrency,
		progress: opts.Progress,
	}
}

// Mode is the replacement mode in use
func (r *Reconciler) Mode() text.Mode {
	return r.replacer.Mode()
}

// Plan fetches every candidate path at the branch tip and applies the entries
// to each in ledger order. Missing files are skipped; any other fetch failure
// aborts the plan.
func (r *Reconciler) Plan(ctx context.Context, entries []ledger.Entry, paths []string) (*Plan, error) {
	logger := zerolog.Ctx(ctx)

	contents := make([]*string, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.limit)
	for i, path := range paths {
		g.Go(func() error {
			content, err := r.repo.GetFile(gctx, path)
			if err != nil {
				if errors.Is(err, github.ErrNotFound) {
					logger.Debug().Str("path", path).Msg("candidate file not on branch, skipping")
					return nil
				}
				return errors.Errorf("failed updating %s: %w", path, err)
			}
			contents[i] = &content
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rules := make([]text.ReplacementRule, 0, len(entries))
	for _, e := range entries {
		rules = append(rules, text.ReplacementRule{FromText: e.Original, ToText: e.Updated})
	}

	plan := &Plan{
		Mode:    r.replacer.Mode(),
		Entries: entries,
		Totals:  make(map[string]int, len(entries)),
	}
	for i, path := range paths {
		if contents[i] == nil {
			plan.Missing = append(plan.Missing, path)
			continue
		}
		res, err := r.replacer.Apply(ctx, *contents[i], rules)
		if err != nil {
			return nil, errors.Errorf("applying edits to %s: %w", path, err)
		}
		for k, n := range res.Usage {
			plan.Totals[k] += n
		}
		plan.Files = append(plan.Files, FilePlan{
			Path:     path,
			Original: res.OriginalContent,
			Updated:  res.ModifiedContent,
			Usage:    res.Usage,
		})
		logger.Debug().
			Str("path", path).
			Bool("changed", res.WasModified).
			Int("replacements", res.ReplacementCount).
			Msg("applied edits")
	}

	for _, e := range entries {
		if plan.Totals[e.Original] == 0 {
			plan.Unused = append(plan.Unused, e.Original)
		}
	}
	return plan, nil
}

// Push plans the ledger against paths and, when every edit matched and at
// least one file changed, writes all changed files in one commit. A second
// Push while one is running fails with ErrPushInProgress.
func (r *Reconciler) Push(ctx context.Context, entries []ledger.Entry, paths []string, message string, dryRun bool) (*Outcome, error) {
	if !r.inflight.CompareAndSwap(false, true) {
		return nil, ErrPushInProgress
	}
	defer r.inflight.Store(false)

	logger := zerolog.Ctx(ctx)

	if len(entries) == 0 {
		return &Outcome{Status: StatusNoEdits, Message: MessageNoEdits}, nil
	}

	r.progress(MessagePreparing)
	plan, err := r.Plan(ctx, entries, paths)
	if err != nil {
		return nil, err
	}

	if len(plan.Unused) > 0 {
		logger.Warn().Strs("unused", plan.Unused).Msg("edits did not match source text")
		return &Outcome{Plan: plan}, errors.Errorf("%w: %d of %d edit(s) unmatched", ErrUnmatchedEdits, len(plan.Unused), len(entries))
	}

	changes := plan.Changes()
	if len(changes) == 0 {
		return &Outcome{Status: StatusNothingToPush, Message: MessageNoChanges, Plan: plan}, nil
	}

	if dryRun {
		return &Outcome{
			Status:  StatusDryRun,
			Message: fmt.Sprintf("Would push %d file(s) in one commit.", len(changes)),
			Plan:    plan,
		}, nil
	}

	if message == "" {
		message = DefaultMessage
	}

	r.progress(MessageCommitting)
	commit, err := r.repo.CommitFiles(ctx, message, changes)
	if err != nil {
		return &Outcome{Plan: plan}, errors.Errorf("pushing edits: %w", err)
	}

	return &Outcome{
		Status:  StatusPushed,
		Message: fmt.Sprintf("Pushed %d file(s) in one commit.", len(changes)),
		Plan:    plan,
		Commit:  commit,
	}, nil
}

// InFlight reports whether a push is running
func (r *Reconciler) InFlight() bool {
	return r.inflight.Load()
}
