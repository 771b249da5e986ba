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

	"github.com/walteh/copyedit/cmd/copyedit/opts"
	"github.com/walteh/copyedit/pkg/preview"
)

// NewPreviewCmd creates the preview command
func NewPreviewCmd(opts *opts.RootOpts) *cobra.Command {
	var units bool

	cmd := &cobra.Command{
		Use:   "preview [url]",
		Short: "Load a page the way the editor does and print it",
		Long: `Preview runs the preview loader against a URL and prints the prepared
document: base href, editor styles, decorated links and wrapped text units.
Without a URL the site.url from the config is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			target := opts.Config.Site.URL
			if len(args) == 1 {
				target = args[0]
			}

			ctrl := opts.Controller(ctx)
			res, err := ctrl.LoadPreview(ctx, target, "")
			if err != nil {
				opts.UserLogger.LogError(err)
				return err
			}
			opts.UserLogger.LogStatus(res.Notice)

			out := cmd.OutOrStdout()
			if units {
				for _, u := range res.Units {
					fmt.Fprintf(out, "%s\t%s\n", u.ID, u.Text)
				}
				return nil
			}
			if res.Mode == preview.ModeSrcDoc {
				fmt.Fprintln(out, res.SrcDoc)
				return nil
			}
			fmt.Fprintln(out, res.URL)
			return nil
		},
	}

	cmd.Flags().BoolVar(&units, "units", false, "list the editable units instead of the document")
	return cmd
}
