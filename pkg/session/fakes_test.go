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

package session

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/go-github/v60/github"
	"github.com/stretchr/testify/mock"
)

// fakeGitHub serves file contents from memory and records commits. Token
// validation goes through mock.Mock so tests can assert it was not called.
type fakeGitHub struct {
	mock.Mock

	mu      sync.Mutex
	files   map[string]string
	blobs   []string
	commits int
	ref     string
}

func newFakeGitHub(files map[string]string) *fakeGitHub {
	return &fakeGitHub{files: files, ref: "base"}
}

func notFound() (*github.Response, error) {
	resp := &http.Response{StatusCode: http.StatusNotFound}
	return &github.Response{Response: resp}, &github.ErrorResponse{Response: resp, Message: "Not Found"}
}

func (f *fakeGitHub) GetContents(ctx context.Context, owner, repo, path string, opts *github.RepositoryContentGetOptions) (*github.RepositoryContent, []*github.RepositoryContent, *github.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	content, ok := f.files[path]
	if !ok {
		resp, err := notFound()
		return nil, nil, resp, err
	}
	return &github.RepositoryContent{Path: github.String(path), Content: github.String(content)}, nil, nil, nil
}

func (f *fakeGitHub) GetTree(ctx context.Context, owner, repo, sha string, recursive bool) (*github.Tree, *github.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tree := &github.Tree{SHA: github.String("tree")}
	for p := range f.files {
		tree.Entries = append(tree.Entries, &github.TreeEntry{Path: github.String(p), Type: github.String("blob")})
	}
	return tree, nil, nil
}

func (f *fakeGitHub) GetRef(ctx context.Context, owner, repo, ref string) (*github.Reference, *github.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &github.Reference{Ref: github.String("refs/" + ref), Object: &github.GitObject{SHA: github.String(f.ref)}}, nil, nil
}

func (f *fakeGitHub) GetCommit(ctx context.Context, owner, repo, sha string) (*github.Commit, *github.Response, error) {
	return &github.Commit{SHA: github.String(sha), Tree: &github.Tree{SHA: github.String("tree-" + sha)}}, nil, nil
}

func (f *fakeGitHub) CreateBlob(ctx context.Context, owner, repo string, blob *github.Blob) (*github.Blob, *github.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs = append(f.blobs, blob.GetContent())
	return &github.Blob{SHA: github.String("blob")}, nil, nil
}

func (f *fakeGitHub) CreateTree(ctx context.Context, owner, repo, baseTree string, entries []*github.TreeEntry) (*github.Tree, *github.Response, error) {
	return &github.Tree{SHA: github.String("new-tree")}, nil, nil
}

func (f *fakeGitHub) CreateCommit(ctx context.Context, owner, repo string, commit *github.Commit, opts *github.CreateCommitOptions) (*github.Commit, *github.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits++
	return &github.Commit{SHA: github.String("commit")}, nil, nil
}

func (f *fakeGitHub) UpdateRef(ctx context.Context, owner, repo string, ref *github.Reference, force bool) (*github.Reference, *github.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ref = ref.GetObject().GetSHA()
	return ref, nil, nil
}

func (f *fakeGitHub) GetAuthenticatedUser(ctx context.Context) (*github.User, *github.Response, error) {
	args := f.Called(ctx)
	var u *github.User
	if v := args.Get(0); v != nil {
		u = v.(*github.User)
	}
	var resp *github.Response
	if v := args.Get(1); v != nil {
		resp = v.(*github.Response)
	}
	return u, resp, args.Error(2)
}

func (f *fakeGitHub) pushed() (blobs []string, commits int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.blobs...), f.commits
}

// mockSource is a preview source
type mockSource struct {
	mock.Mock
}

func (m *mockSource) Fetch(ctx context.Context, url string) ([]byte, error) {
	args := m.Called(ctx, url)
	var body []byte
	if v := args.Get(0); v != nil {
		body = v.([]byte)
	}
	return body, args.Error(1)
}
