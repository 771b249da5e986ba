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

// Package github is the source-control boundary: reading pristine file
// content and writing one atomic multi-file commit through the GitHub REST API.
package github

import (
	"context"
	"net/http"

	"github.com/google/go-github/v60/github"
)

// GitHubClient defines the GitHub API operations we need
type GitHubClient interface {
	GetContents(ctx context.Context, owner, repo, path string, opts *github.RepositoryContentGetOptions) (*github.RepositoryContent, []*github.RepositoryContent, *github.Response, error)
	GetTree(ctx context.Context, owner, repo, sha string, recursive bool) (*github.Tree, *github.Response, error)
	GetRef(ctx context.Context, owner, repo, ref string) (*github.Reference, *github.Response, error)
	GetCommit(ctx context.Context, owner, repo, sha string) (*github.Commit, *github.Response, error)
	CreateBlob(ctx context.Context, owner, repo string, blob *github.Blob) (*github.Blob, *github.Response, error)
	CreateTree(ctx context.Context, owner, repo, baseTree string, entries []*github.TreeEntry) (*github.Tree, *github.Response, error)
	CreateCommit(ctx context.Context, owner, repo string, commit *github.Commit, opts *github.CreateCommitOptions) (*github.Commit, *github.Response, error)
	UpdateRef(ctx context.Context, owner, repo string, ref *github.Reference, force bool) (*github.Reference, *github.Response, error)
	GetAuthenticatedUser(ctx context.Context) (*github.User, *github.Response, error)
}

// NewClient creates a GitHubClient authenticated with a bearer token. A nil
// httpClient uses http.DefaultClient.
func NewClient(token string, httpClient *http.Client) GitHubClient {
	client := github.NewClient(httpClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return &githubClientWrapper{client: client}
}

// githubClientWrapper wraps the GitHub client to implement our interface
type githubClientWrapper struct {
	client *github.Client
}

func (w *githubClientWrapper) GetContents(ctx context.Context, owner, repo, path string, opts *github.RepositoryContentGetOptions) (*github.RepositoryContent, []*github.RepositoryContent, *github.Response, error) {
	return w.client.Repositories.GetContents(ctx, owner, repo, path, opts)
}

func (w *githubClientWrapper) GetTree(ctx context.Context, owner, repo, sha string, recursive bool) (*github.Tree, *github.Response, error) {
	return w.client.Git.GetTree(ctx, owner, repo, sha, recursive)
}

func (w *githubClientWrapper) GetRef(ctx context.Context, owner, repo, ref string) (*github.Reference, *github.Response, error) {
	return w.client.Git.GetRef(ctx, owner, repo, ref)
}

func (w *githubClientWrapper) GetCommit(ctx context.Context, owner, repo, sha string) (*github.Commit, *github.Response, error) {
	return w.client.Git.GetCommit(ctx, owner, repo, sha)
}

func (w *githubClientWrapper) CreateBlob(ctx context.Context, owner, repo string, blob *github.Blob) (*github.Blob, *github.Response, error) {
	return w.client.Git.CreateBlob(ctx, owner, repo, blob)
}

func (w *githubClientWrapper) CreateTree(ctx context.Context, owner, repo, baseTree string, entries []*github.TreeEntry) (*github.Tree, *github.Response, error) {
	return w.client.Git.CreateTree(ctx, owner, repo, baseTree, entries)
}

func (w *githubClientWrapper) CreateCommit(ctx context.Context, owner, repo string, commit *github.Commit, opts *github.CreateCommitOptions) (*github.Commit, *github.Response, error) {
	return w.client.Git.CreateCommit(ctx, owner, repo, commit, opts)
}

func (w *githubClientWrapper) UpdateRef(ctx context.Context, owner, repo string, ref *github.Reference, force bool) (*github.Reference, *github.Response, error) {
	return w.client.Git.UpdateRef(ctx, owner, repo, ref, force)
}

func (w *githubClientWrapper) GetAuthenticatedUser(ctx context.Context) (*github.User, *github.Response, error) {
	return w.client.Users.Get(ctx, "")
}
