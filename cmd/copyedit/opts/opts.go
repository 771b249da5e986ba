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

package opts

import (
	"context"
	"io"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/copyedit/pkg/config"
	"github.com/walteh/copyedit/pkg/draft"
	"github.com/walteh/copyedit/pkg/log"
	"github.com/walteh/copyedit/pkg/preview"
	"github.com/walteh/copyedit/pkg/session"
	"github.com/walteh/copyedit/pkg/status"
)

// RootOpts contains shared options used by all commands
type RootOpts struct {
	Config     *config.Config
	Store      draft.Store
	UserLogger *status.UserLogger
	Console    *log.Logger

	// Source and NewClient override the preview fetcher and the GitHub
	// client; nil uses the real ones
	Source    preview.Source
	NewClient session.ClientFactory
}

// Init loads the config file and opens the draft store. A missing config
// file falls back to defaults.
func (o *RootOpts) Init(ctx context.Context, configPath string, console io.Writer) error {
	cfg, err := config.LoadOrDefault(ctx, configPath)
	if err != nil {
		return errors.Errorf("loading config: %w", err)
	}

	store, err := draft.Open(ctx, cfg.Draft.Backend, cfg.Draft.Path)
	if err != nil {
		return errors.Errorf("opening draft store: %w", err)
	}

	o.Config = cfg
	o.Store = store
	o.UserLogger = status.NewUserLogger(ctx)
	o.Console = log.New(console, zerolog.GlobalLevel())
	return nil
}

// Controller builds the application context for one command run
func (o *RootOpts) Controller(ctx context.Context) *session.Controller {
	return session.New(ctx, session.Options{
		Config:    o.Config,
		Store:     o.Store,
		Source:    o.Source,
		NewClient: o.NewClient,
	})
}

// Close releases the draft store
func (o *RootOpts) Close() error {
	if o.Store == nil {
		return nil
	}
	return o.Store.Close()
}
