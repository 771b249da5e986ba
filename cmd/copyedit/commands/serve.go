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
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/copyedit/cmd/copyedit/opts"
	"github.com/walteh/copyedit/pkg/server"
	"github.com/walteh/copyedit/pkg/session"
	"github.com/walteh/copyedit/pkg/status"
)

// NewServeCmd creates the serve command
func NewServeCmd(opts *opts.RootOpts) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the editor server",
		Long: `Serve hosts the editor shell on a local address. Open it in a browser,
connect the site repository, load a preview and click text to edit it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if addr == "" {
				addr = opts.Config.Server.Addr
			}
			logger := zerolog.Ctx(ctx).With().Str("command", "serve").Logger()
			ctx = logger.WithContext(ctx)

			srv := newEditor(ctx, opts, logger)
			httpServer := &http.Server{
				Addr:              addr,
				Handler:           srv,
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       30 * time.Second,
				WriteTimeout:      120 * time.Second,
				IdleTimeout:       60 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				errCh <- httpServer.ListenAndServe()
			}()
			opts.UserLogger.LogStatus(status.Info("Editor running at http://" + addr))

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return errors.Errorf("serving: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return errors.Errorf("shutting down: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to server.addr from the config)")
	return cmd
}

// newEditor builds the editor server and restores the saved draft, if any
func newEditor(ctx context.Context, o *opts.RootOpts, logger zerolog.Logger) *server.Server {
	ctrl := o.Controller(ctx)
	srv := server.NewServer(ctrl, logger)

	resumed, err := ctrl.ResumeDraft(ctx)
	switch {
	case err != nil:
		logger.Warn().Err(err).Msg("saved draft not restored")
	case resumed:
		o.UserLogger.LogStatus(status.Info(session.MessageLoaded + " " + status.EditSummary(len(ctrl.Changes()))))
	}
	return srv
}
