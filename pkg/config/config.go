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

package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/copyedit/pkg/text"
)

// 🔌 Parser is the interface for config parsers
type Parser interface {
	// 📝 Parse parses the config from bytes
	Parse(ctx context.Context, data []byte) (*Config, error)

	// 🔍 CanParse checks if this parser can handle the given file
	CanParse(filename string) bool
}

var (
	// 🗺️ parsers is a list of available parsers
	parsers []Parser
)

// 📝 Register registers a parser
func Register(p Parser) {
	parsers = append(parsers, p)
}

// 🎯 GetParser returns a parser that can handle the given file
func GetParser(filename string) Parser {
	for _, p := range parsers {
		if p.CanParse(filename) {
			return p
		}
	}
	return nil
}

// Defaults
const (
	DefaultBranch       = "master"
	DefaultTokenEnv     = "GITHUB_TOKEN"
	DefaultMessage      = "Update content via editor"
	DefaultAddr         = "127.0.0.1:8484"
	DefaultDraftBackend = "file"
	DefaultDraftPath    = ".copyedit/draft.json"
	DefaultRecordsKey   = "COPYEDIT_RECORDS_KEY"
	DefaultTimeout      = 15 * time.Second
	DefaultMaxBytes     = 5 << 20
)

// DefaultFiles are the data files that hold the site copy
var DefaultFiles = []string{
	"siteData.js",
	"home.js",
	"consultForm.js",
	"consultations.js",
	"services.js",
	"advisors.js",
	"specialists.js",
	"team.js",
	"news.js",
	"process.js",
	"stories.js",
	"contact.js",
	"footer.js",
	"header.js",
}

// 🌐 SiteArgs describes the site being edited
type SiteArgs struct {
	URL       string `json:"url,omitempty" yaml:"url,omitempty"`
	PublicURL string `json:"public_url,omitempty" yaml:"public_url,omitempty"`
}

// 📦 RepositoryArgs describes where the site source lives
type RepositoryArgs struct {
	URL       string `json:"url,omitempty" yaml:"url,omitempty"`
	Branch    string `json:"branch,omitempty" yaml:"branch,omitempty"`
	TokenEnv  string `json:"token_env,omitempty" yaml:"token_env,omitempty"`
	AccessKey string `json:"access_key,omitempty" yaml:"access_key,omitempty"`
}

// 📝 CommitArgs controls how edits become a commit
type CommitArgs struct {
	Message string   `json:"message,omitempty" yaml:"message,omitempty"`
	Mode    string   `json:"mode,omitempty" yaml:"mode,omitempty"`
	Files   []string `json:"files,omitempty" yaml:"files,omitempty"`
}

// 🖥️ ServerArgs configures the editor server
type ServerArgs struct {
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

// 💾 DraftArgs selects the local draft store
type DraftArgs struct {
	Backend string `json:"backend,omitempty" yaml:"backend,omitempty"`
	Path    string `json:"path,omitempty" yaml:"path,omitempty"`
}

// 🗂️ RecordsArgs points at the records backend
type RecordsArgs struct {
	URL    string `json:"url,omitempty" yaml:"url,omitempty"`
	KeyEnv string `json:"key_env,omitempty" yaml:"key_env,omitempty"`
}

// 🔍 PreviewArgs bounds the preview fetcher
type PreviewArgs struct {
	Timeout  string `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	MaxBytes int64  `json:"max_bytes,omitempty" yaml:"max_bytes,omitempty"`
}

// 📚 Config represents the complete configuration
type Config struct {
	Site       SiteArgs       `json:"site" yaml:"site"`
	Repository RepositoryArgs `json:"repository" yaml:"repository"`
	Commit     CommitArgs     `json:"commit" yaml:"commit"`
	Server     ServerArgs     `json:"server" yaml:"server"`
	Draft      DraftArgs      `json:"draft" yaml:"draft"`
	Records    RecordsArgs    `json:"records" yaml:"records"`
	Preview    PreviewArgs    `json:"preview" yaml:"preview"`

	timeout time.Duration
}

// 🏭 Default returns a validated config with every default applied
func Default() *Config {
	cfg := &Config{}
	_ = cfg.Validate()
	return cfg
}

// 🎯 Load loads the configuration from a file
func Load(ctx context.Context, path string) (*Config, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("path", path).Msg("loading configuration")

	// Read config file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading config file: %w", err)
	}

	// Get parser
	p := GetParser(path)
	if p == nil {
		return nil, errors.Errorf("no parser found for file: %s", path)
	}

	// Parse config
	cfg, err := p.Parse(ctx, data)
	if err != nil {
		return nil, errors.Errorf("parsing config: %w", err)
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads path, falling back to defaults when the file does not exist
func LoadOrDefault(ctx context.Context, path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		zerolog.Ctx(ctx).Debug().Str("path", path).Msg("config file not found, using defaults")
		return Default(), nil
	}
	return Load(ctx, path)
}

// 🔍 Validate checks the configuration and fills defaults
func (cfg *Config) Validate() error {
	cfg.Site.URL = strings.TrimSpace(cfg.Site.URL)
	cfg.Repository.URL = strings.TrimSpace(cfg.Repository.URL)

	// Set defaults
	if cfg.Repository.Branch == "" {
		cfg.Repository.Branch = DefaultBranch
	}
	if cfg.Repository.TokenEnv == "" {
		cfg.Repository.TokenEnv = DefaultTokenEnv
	}
	if cfg.Commit.Message == "" {
		cfg.Commit.Message = DefaultMessage
	}
	if cfg.Commit.Mode == "" {
		cfg.Commit.Mode = string(text.ModeAll)
	}
	if len(cfg.Commit.Files) == 0 {
		cfg.Commit.Files = append([]string(nil), DefaultFiles...)
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultAddr
	}
	if cfg.Draft.Backend == "" {
		cfg.Draft.Backend = DefaultDraftBackend
	}
	if cfg.Draft.Path == "" {
		cfg.Draft.Path = DefaultDraftPath
	}
	if cfg.Records.KeyEnv == "" {
		cfg.Records.KeyEnv = DefaultRecordsKey
	}
	if cfg.Preview.MaxBytes == 0 {
		cfg.Preview.MaxBytes = DefaultMaxBytes
	}

	// Check values
	if _, err := text.ParseMode(cfg.Commit.Mode); err != nil {
		return errors.Errorf("commit.mode: %w", err)
	}
	switch cfg.Draft.Backend {
	case "file", "sqlite":
	default:
		return errors.Errorf("draft.backend must be file or sqlite, got %q", cfg.Draft.Backend)
	}
	if cfg.Preview.MaxBytes < 0 {
		return errors.Errorf("preview.max_bytes must be positive")
	}

	cfg.timeout = DefaultTimeout
	if cfg.Preview.Timeout != "" {
		d, err := time.ParseDuration(cfg.Preview.Timeout)
		if err != nil {
			return errors.Errorf("preview.timeout: %w", err)
		}
		if d <= 0 {
			return errors.Errorf("preview.timeout must be positive")
		}
		cfg.timeout = d
	}

	return nil
}

// PreviewTimeout is the parsed preview fetch timeout
func (cfg *Config) PreviewTimeout() time.Duration {
	if cfg.timeout == 0 {
		return DefaultTimeout
	}
	return cfg.timeout
}

// Mode is the parsed replacement mode
func (cfg *Config) Mode() text.Mode {
	m, err := text.ParseMode(cfg.Commit.Mode)
	if err != nil {
		return text.ModeAll
	}
	return m
}

// Token reads the GitHub token from the configured environment variable
func (cfg *Config) Token() string {
	return strings.TrimSpace(os.Getenv(cfg.Repository.TokenEnv))
}

// RecordsKey reads the records backend key from the configured environment variable
func (cfg *Config) RecordsKey() string {
	return strings.TrimSpace(os.Getenv(cfg.Records.KeyEnv))
}

// 📝 String returns a string representation of the config
func (cfg *Config) String() string {
	return fmt.Sprintf("%s@%s (%d files, mode %s)", cfg.Repository.URL, cfg.Repository.Branch, len(cfg.Commit.Files), cfg.Commit.Mode)
}
