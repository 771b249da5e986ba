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

	"github.com/google/go-github/v60/github"
	"github.com/stretchr/testify/mock"
)

type mockGitHubClient struct {
	mock.Mock
}

var _ GitHubClient = (*mockGitHubClient)(nil)

func response(args mock.Arguments, i int) *github.Response {
	if v := args.Get(i); v != nil {
		return v.(*github.Response)
	}
	return nil
}

func (m *mockGitHubClient) GetContents(ctx context.Context, owner, repo, path string, opts *github.RepositoryContentGetOptions) (*github.RepositoryContent, []*github.RepositoryContent, *github.Response, error) {
	args := m.Called(ctx, owner, repo, path, opts)
	var file *github.RepositoryContent
	if v := args.Get(0); v != nil {
		file = v.(*github.RepositoryContent)
	}
	return file, nil, response(args, 1), args.Error(2)
}

func (m *mockGitHubClient) GetTree(ctx context.Context, owner, repo, sha string, recursive bool) (*github.Tree, *github.Response, error) {
	args := m.Called(ctx, owner, repo, sha, recursive)
	var tree *github.Tree
	if v := args.Get(0); v != nil {
		tree = v.(*github.Tree)
	}
	return tree, response(args, 1), args.Error(2)
}

func (m *mockGitHubClient) GetRef(ctx context.Context, owner, repo, ref string) (*github.Reference, *github.Response, error) {
	args := m.Called(ctx, owner, repo, ref)
	var r *github.Reference
	if v := args.Get(0); v != nil {
		r = v.(*github.Reference)
	}
	return r, response(args, 1), args.Error(2)
}

func (m *mockGitHubClient) GetCommit(ctx context.Context, owner, repo, sha string) (*github.Commit, *github.Response, error) {
	args := m.Called(ctx, owner, repo, sha)
	var c *github.Commit
	if v := args.Get(0); v != nil {
		c = v.(*github.Commit)
	}
	return c, response(args, 1), args.Error(2)
}

func (m *mockGitHubClient) CreateBlob(ctx context.Context, owner, repo string, blob *github.Blob) (*github.Blob, *github.Response, error) {
	args := m.Called(ctx, owner, repo, blob)
	var b *github.Blob
	if v := args.Get(0); v != nil {
		b = v.(*github.Blob)
	}
	return b, response(args, 1), args.Error(2)
}

func (m *mockGitHubClient) CreateTree(ctx context.Context, owner, repo, baseTree string, entries []*github.TreeEntry) (*github.Tree, *github.Response, error) {
	args := m.Called(ctx, owner, repo, baseTree, entries)
	var tree *github.Tree
	if v := args.Get(0); v != nil {
		tree = v.(*github.Tree)
	}
	return tree, response(args, 1), args.Error(2)
}

func (m *mockGitHubClient) CreateCommit(ctx context.Context, owner, repo string, commit *github.Commit, opts *github.CreateCommitOptions) (*github.Commit, *github.Response, error) {
	args := m.Called(ctx, owner, repo, commit, opts)
	var c *github.Commit
	if v := args.Get(0); v != nil {
		c = v.(*github.Commit)
	}
	return c, response(args, 1), args.Error(2)
}

func (m *mockGitHubClient) UpdateRef(ctx context.Context, owner, repo string, ref *github.Reference, force bool) (*github.Reference, *github.Response, error) {
	args := m.Called(ctx, owner, repo, ref, force)
	var r *github.Reference
	if v := args.Get(0); v != nil {
		r = v.(*github.Reference)
	}
	return r, response(args, 1), args.Error(2)
}

func (m *mockGitHubClient) GetAuthenticatedUser(ctx context.Context) (*github.User, *github.Response, error) {
	args := m.Called(ctx)
	var u *github.User
	if v := args.Get(0); v != nil {
		u = v.(*github.User)
	}
	return u, response(args, 1), args.Error(2)
}
