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

package preview

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

const (
	defaultTimeout      = 15 * time.Second
	defaultMaxBytes     = 5 * 1024 * 1024
	defaultMaxRedirects = 5
	defaultUserAgent    = "copyedit-preview/1.0"
)

// ErrPageTooLarge is returned when a page body exceeds FetchOptions.MaxBytes
var ErrPageTooLarge = errors.New("page exceeds the preview size limit")

// FetchOptions configures the site fetcher
type FetchOptions struct {
	Timeout      time.Duration
	MaxBytes     int64
	MaxRedirects int
	UserAgent    string
}

func (o *FetchOptions) defaults() {
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.MaxBytes <= 0 {
		o.MaxBytes = defaultMaxBytes
	}
	if o.MaxRedirects <= 0 {
		o.MaxRedirects = defaultMaxRedirects
	}
	if o.UserAgent == "" {
		o.UserAgent = defaultUserAgent
	}
}

// 🌐 Fetcher downloads the raw html of a target page
type Fetcher struct {
	client *http.Client
	opts   FetchOptions
}

// 🏭 NewFetcher creates a fetcher with redirect and size limits
func NewFetcher(opts FetchOptions) *Fetcher {
	opts.defaults()
	return &Fetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= opts.MaxRedirects {
					return errors.Errorf("too many redirects (%d)", len(via))
				}
				return nil
			},
		},
		opts: opts,
	}
}

// Fetch gets the page bypassing caches. Any non-2xx response is an error.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Cache-Control", "no-store")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Errorf("fetching site: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Errorf("site fetch failed: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBytes+1))
	if err != nil {
		return nil, errors.Errorf("reading site body: %w", err)
	}
	if int64(len(body)) > f.opts.MaxBytes {
		return nil, errors.Errorf("%w (%d bytes)", ErrPageTooLarge, f.opts.MaxBytes)
	}

	zerolog.Ctx(ctx).Debug().Str("url", url).Int("bytes", len(body)).Msg("fetched preview source")
	return body, nil
}
