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

// Package session holds the application context of a running editor: the
// change ledger, the active overlay session and the handles to source
// control, the records backend and the local draft store. Every operation the
// shell or the CLI performs goes through a Controller.
package session

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/copyedit/pkg/config"
	"github.com/walteh/copyedit/pkg/draft"
	"github.com/walteh/copyedit/pkg/ledger"
	"github.com/walteh/copyedit/pkg/overlay"
	"github.com/walteh/copyedit/pkg/preview"
	"github.com/walteh/copyedit/pkg/reconcile"
	"github.com/walteh/copyedit/pkg/records"
	"github.com/walteh/copyedit/pkg/remote/github"
	"github.com/walteh/copyedit/pkg/status"
	"github.com/walteh/copyedit/pkg/text"
)

var (
	ErrNotConnected     = status.NewUserError("Connect to GitHub first.")
	ErrMissingToken     = status.NewUserError("Paste a GitHub token.")
	ErrInvalidAccessKey = status.NewUserError("Invalid access key.")
	ErrNoDraft          = status.NewUserError("No saved draft found.")
	ErrNoPreview        = &status.Error{Kind: status.KindEnvironment, Message: "Load a preview first."}
	// ErrPreviewSuperseded is returned by a load that finished after a newer
	// one was started
	ErrPreviewSuperseded = &status.Error{Kind: status.KindEnvironment, Message: "A newer preview replaced this one."}
)

// Operator messages
const (
	MessageConnecting = "Connecting..."
	MessageConnected  = "Connected. Click text to edit."
	MessagePushing    = "Pushing edits..."
	MessageSaved      = "Draft saved locally."
	MessageLoaded     = "Draft loaded."
	MessageCleared    = "Cleared edits."
	MessageDiscarded  = "Saved draft discarded."
)

// ClientFactory builds a source-control client for a token
type ClientFactory func(token string) github.GitHubClient

// Options configure a Controller
type Options struct {
	Config    *config.Config
	Store     draft.Store
	Source    preview.Source
	NewClient ClientFactory
	// HTTPClient is used for the records backend
	HTTPClient *http.Client
	Now        func() time.Time
}

// 🎛️ Controller is the explicit application context
type Controller struct {
	cfg       *config.Config
	ledger    *ledger.Ledger
	loader    *preview.Loader
	store     draft.Store
	newClient ClientFactory
	httpc     *http.Client
	now       func() time.Time

	pushing atomic.Bool

	mu          sync.Mutex
	repo        *github.Repository
	login       string
	reconcilers map[text.Mode]*reconcile.Reconciler
	records     *records.Client
	session     *overlay.Session
	debouncer   *overlay.Debouncer
	generation  uint64
	loads       uint64
	editing     bool

	lmu       sync.Mutex
	onStatus  []func(status.Status)
	onCommand []func(generation uint64, cmds []overlay.Command)
}

// 🏭 New creates a controller. Missing options fall back to defaults.
func New(ctx context.Context, opts Options) *Controller {
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.Source == nil {
		opts.Source = preview.NewFetcher(preview.FetchOptions{
			Timeout:  opts.Config.PreviewTimeout(),
			MaxBytes: opts.Config.Preview.MaxBytes,
		})
	}
	if opts.NewClient == nil {
		opts.NewClient = func(token string) github.GitHubClient {
			return github.NewClient(token, nil)
		}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	l := ledger.New()
	c := &Controller{
		cfg:       opts.Config,
		ledger:    l,
		loader:    preview.NewLoader(opts.Source, l),
		store:     opts.Store,
		newClient: opts.NewClient,
		httpc:     opts.HTTPClient,
		now:       opts.Now,
		editing:   true,
	}

	if opts.Config.Records.URL != "" {
		if err := c.ConnectRecords(ctx, opts.Config.Records.URL, opts.Config.RecordsKey()); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("records backend not connected")
		}
	}
	return c
}

// Config returns the active configuration
func (c *Controller) Config() *config.Config {
	return c.cfg
}

// Ledger returns the change ledger
func (c *Controller) Ledger() *ledger.Ledger {
	return c.ledger
}

// OnStatus registers a listener for status lines
func (c *Controller) OnStatus(fn func(status.Status)) {
	c.lmu.Lock()
	defer c.lmu.Unlock()
	c.onStatus = append(c.onStatus, fn)
}

// OnCommands registers a listener for commands produced outside a request,
// such as debounced resyncs
func (c *Controller) OnCommands(fn func(generation uint64, cmds []overlay.Command)) {
	c.lmu.Lock()
	defer c.lmu.Unlock()
	c.onCommand = append(c.onCommand, fn)
}

func (c *Controller) emit(s status.Status) status.Status {
	c.lmu.Lock()
	listeners := append([]func(status.Status){}, c.onStatus...)
	c.lmu.Unlock()
	for _, fn := range listeners {
		fn(s)
	}
	return s
}

func (c *Controller) emitCommands(generation uint64, cmds []overlay.Command) {
	if len(cmds) == 0 {
		return
	}
	c.lmu.Lock()
	listeners := append([]func(uint64, []overlay.Command){}, c.onCommand...)
	c.lmu.Unlock()
	for _, fn := range listeners {
		fn(generation, cmds)
	}
}

// Fail maps err to its status line and publishes it
func (c *Controller) Fail(err error) status.Status {
	return c.emit(status.FromError(err))
}

// ConnectRequest is the connect form
type ConnectRequest struct {
	RepoURL   string `json:"repo_url"`
	Token     string `json:"token"`
	Branch    string `json:"branch"`
	AccessKey string `json:"access_key"`
	SiteURL   string `json:"site_url"`
}

// Connect validates the form, then the token, and keeps the repository handle.
// Input errors are reported before any network call.
func (c *Controller) Connect(ctx context.Context, req ConnectRequest) (status.Status, error) {
	logger := zerolog.Ctx(ctx)

	owner, name, err := github.ParseRepoURL(req.RepoURL)
	if err != nil {
		return c.Fail(err), err
	}
	token := strings.TrimSpace(req.Token)
	if token == "" {
		token = c.cfg.Token()
	}
	if token == "" {
		return c.Fail(ErrMissingToken), ErrMissingToken
	}
	if key := c.cfg.Repository.AccessKey; key != "" && strings.TrimSpace(req.AccessKey) != key {
		return c.Fail(ErrInvalidAccessKey), ErrInvalidAccessKey
	}
	branch := strings.TrimSpace(req.Branch)
	if branch == "" {
		branch = c.cfg.Repository.Branch
	}

	c.emit(status.Progress(MessageConnecting))

	repo := github.NewRepository(c.newClient(token), owner, name, branch)
	login, err := repo.ValidateToken(ctx)
	if err != nil {
		s := status.FromError(err)
		s.Message = "Token validation failed: " + s.Message
		return c.emit(s), errors.Errorf("validating token: %w", err)
	}

	c.mu.Lock()
	c.repo = repo
	c.login = login
	c.reconcilers = map[text.Mode]*reconcile.Reconciler{}
	c.mu.Unlock()

	logger.Info().Str("repo", repo.Name()).Str("branch", branch).Str("login", login).Msg("connected")

	if c.store != nil {
		conn := draft.Connection{RepoURL: strings.TrimSpace(req.RepoURL), Branch: branch, SiteURL: strings.TrimSpace(req.SiteURL)}
		if err := draft.SaveConnection(ctx, c.store, conn); err != nil {
			logger.Warn().Err(err).Msg("saving connection settings")
		}
	}

	return c.emit(status.Good(MessageConnected)), nil
}

// Connected reports the repository and login when connected
func (c *Controller) Connected() (repo *github.Repository, login string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.repo, c.login, c.repo != nil
}

// Disconnect drops every collaborator handle, closes the overlay session and
// clears the ledger
func (c *Controller) Disconnect(ctx context.Context) status.Status {
	c.mu.Lock()
	c.repo = nil
	c.login = ""
	c.reconcilers = nil
	c.closeSessionLocked()
	c.session = nil
	c.mu.Unlock()

	c.ledger.Clear()
	zerolog.Ctx(ctx).Info().Msg("disconnected")
	return c.emit(status.Info("Disconnected."))
}

// ConnectRecords points the controller at a records backend
func (c *Controller) ConnectRecords(ctx context.Context, baseURL, key string) error {
	client, err := records.NewClient(baseURL, key, c.httpc)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.records = client
	c.mu.Unlock()
	zerolog.Ctx(ctx).Debug().Str("url", client.URL()).Msg("records backend connected")
	return nil
}

// Records returns the records client
func (c *Controller) Records() (*records.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.records == nil {
		return nil, records.ErrNotConfigured
	}
	return c.records, nil
}

// SavedConnection returns the last saved connection form
func (c *Controller) SavedConnection(ctx context.Context) (*draft.Connection, error) {
	if c.store == nil {
		return nil, draft.ErrNotFound
	}
	return draft.LoadConnection(ctx, c.store)
}
