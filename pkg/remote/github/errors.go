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

package github

import (
	"context"
	"net/http"
	"regexp"

	"github.com/google/go-github/v60/github"
	"gitlab.com/tozd/go/errors"
)

var (
	// ErrNotFound is returned when a path or ref does not exist
	ErrNotFound = errors.New("not found")
	// ErrBadCredentials carries the operator guidance for a rejected token
	ErrBadCredentials = errors.New("Bad credentials. Verify the PAT is correct, not revoked, and authorized for SSO if required.")
	// ErrInvalidRepoURL is returned for a malformed repository reference
	ErrInvalidRepoURL = errors.New("enter a valid GitHub repo URL")
	// ErrRateLimited is returned when GitHub throttles the token
	ErrRateLimited = errors.New("rate limit exceeded")
)

var badCredentials = regexp.MustCompile(`(?i)bad credentials`)

// mapError converts a GitHub API failure into one of the package errors
// where it has a meaning for the operator
func mapError(ctx context.Context, action string, resp *github.Response, err error) error {
	if ctx.Err() != nil {
		return errors.Errorf("%s: context error: %w", action, ctx.Err())
	}

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return errors.Errorf("%s: %w: %s", action, ErrRateLimited, rateErr.Message)
	}

	status := 0
	if resp != nil && resp.Response != nil {
		status = resp.StatusCode
	}

	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		status = ghErr.Response.StatusCode
		if status == http.StatusUnauthorized && badCredentials.MatchString(ghErr.Message) {
			return errors.Errorf("%s: %w", action, ErrBadCredentials)
		}
	}

	if status == http.StatusNotFound {
		return errors.Errorf("%s: %w", action, ErrNotFound)
	}
	return errors.Errorf("%s: %w", action, err)
}
