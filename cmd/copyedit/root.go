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

package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/walteh/copyedit/cmd/copyedit/commands"
	"github.com/walteh/copyedit/cmd/copyedit/opts"
	"github.com/walteh/copyedit/pkg/log"
)

var (
	// Flags
	configFile string
	debugFlag  bool
)

// newRootCmd builds the command tree. Options are filled in once flags are
// parsed, before any subcommand runs.
func newRootCmd(o *opts.RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "copyedit",
		Short: "Click-to-edit content for sites backed by a GitHub repository",
		Long: `copyedit serves an editor that loads a website into a preview frame, lets
you edit its text in place and commits every edit back to the site's GitHub
repository as one commit.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ctx := setupLogging(cmd.Context())
			if err := o.Init(ctx, configFile, cmd.OutOrStdout()); err != nil {
				return err
			}
			cmd.SetContext(log.NewContext(ctx, o.Console))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return o.Close()
		},
	}

	addRootFlags(cmd)

	cmd.AddCommand(
		commands.NewServeCmd(o),
		commands.NewPushCmd(o),
		commands.NewPreviewCmd(o),
		commands.NewChangesCmd(o),
		newVersionCmd(),
	)
	return cmd
}

// addRootFlags adds shared flags to the root command
func addRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", ".copyedit.yaml", "config file path")
	cmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false, "enable debug logging")
}

// setupLogging configures zerolog based on flags
func setupLogging(ctx context.Context) context.Context {
	if debugFlag {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &logger
	return logger.WithContext(ctx)
}
