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

package commands

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/copyedit/cmd/copyedit/opts"
	"github.com/walteh/copyedit/pkg/log"
	"github.com/walteh/copyedit/pkg/reconcile"
	"github.com/walteh/copyedit/pkg/session"
	"github.com/walteh/copyedit/pkg/status"
)

// ErrNoRepository is returned when the config names no repository to push to
var ErrNoRepository = status.NewUserError("Set repository.url in the config file.")

// NewPushCmd creates the push command
func NewPushCmd(opts *opts.RootOpts) *cobra.Command {
	var (
		mode    string
		message string
		dryRun  bool
	)

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Push the saved draft to the repository",
		Long: `Push restores the saved draft and commits it to the configured repository.
It will:
1. Validate the token and connect to the branch
2. Restore the saved edits
3. Apply every edit to the configured files
4. Create one commit with all changed files

With --dry-run the plan is printed and nothing is committed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := opts.Config

			if cfg.Repository.URL == "" {
				return ErrNoRepository
			}

			ctrl := opts.Controller(ctx)
			ctrl.OnStatus(opts.UserLogger.LogStatus)

			if _, err := ctrl.Connect(ctx, session.ConnectRequest{
				RepoURL:   cfg.Repository.URL,
				Branch:    cfg.Repository.Branch,
				AccessKey: cfg.Repository.AccessKey,
			}); err != nil {
				return err
			}
			if _, _, err := ctrl.LoadDraft(ctx); err != nil {
				return err
			}

			repo, _, _ := ctrl.Connected()
			if strings.TrimSpace(message) == "" {
				message = cfg.Commit.Message
			}

			console := log.FromContext(ctx)
			console.StartCommit(ctx, log.CommitOperation{
				Repo:    repo.Name(),
				Branch:  repo.Branch(),
				Message: message,
				DryRun:  dryRun,
			})

			res, err := ctrl.Push(ctx, session.PushRequest{Mode: mode, Message: message, DryRun: dryRun})
			if res != nil && res.Outcome != nil && res.Outcome.Plan != nil {
				reportPlan(ctx, console, opts.UserLogger, res.Outcome.Plan, dryRun)
			}
			if err != nil {
				return errors.Errorf("pushing: %w", err)
			}

			sha := ""
			if res.Outcome.Commit != nil {
				sha = res.Outcome.Commit.SHA
			}
			console.EndCommit(ctx, sha)

			if res.Status.Failed() {
				return errors.New(res.Status.Message)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "replace mode: first or all (defaults to commit.mode from the config)")
	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the plan without committing")
	return cmd
}

// reportPlan prints one line per file, the per-edit match totals and any
// edit that matched nothing
func reportPlan(ctx context.Context, console *log.Logger, user *status.UserLogger, plan *reconcile.Plan, dryRun bool) {
	for _, f := range plan.Files {
		state := "UNCHANGED"
		if f.Changed() {
			state = "UPDATED"
			if dryRun {
				state = "WOULD UPDATE"
			}
		}
		console.LogFileOperation(ctx, log.FileOperation{
			Path:         f.Path,
			Status:       state,
			IsModified:   f.Changed(),
			Replacements: f.Replacements(),
		})
	}
	for _, p := range plan.Missing {
		console.LogFileOperation(ctx, log.FileOperation{Path: p, Status: "MISSING", IsMissing: true})
	}

	console.LogNewline()
	for _, e := range plan.Entries {
		console.LogEntry(ctx, log.EntryTotal{Original: e.Original, Updated: e.Updated, Count: plan.Totals[e.Original]})
	}
	user.LogUnmatched(plan.Unused)
}
