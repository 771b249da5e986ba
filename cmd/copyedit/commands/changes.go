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
	"fmt"

	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/copyedit/cmd/copyedit/opts"
	"github.com/walteh/copyedit/pkg/draft"
	"github.com/walteh/copyedit/pkg/ledger"
	"github.com/walteh/copyedit/pkg/session"
	"github.com/walteh/copyedit/pkg/status"
)

// NewChangesCmd creates the changes command
func NewChangesCmd(opts *opts.RootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "changes",
		Short: "Print the edits in the saved draft",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			data, err := opts.Store.Load(ctx, draft.KeyDraft)
			if errors.Is(err, draft.ErrNotFound) {
				return session.ErrNoDraft
			}
			if err != nil {
				return errors.Errorf("loading draft: %w", err)
			}
			d, err := ledger.DecodeDraft(data)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(d.Entries) == 0 {
				fmt.Fprintln(out, status.FormatChangeList(nil))
				return nil
			}
			fmt.Fprint(out, status.FormatChangeList(d.Entries))
			fmt.Fprintf(out, "\n%s, saved %s\n", status.EditSummary(len(d.Entries)), d.SavedAt.Format("2006-01-02 15:04:05 MST"))
			return nil
		},
	}
}
