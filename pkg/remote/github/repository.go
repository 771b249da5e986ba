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
	"fmt"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/go-github/v60/github"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// DefaultBranch is used when no branch is configured
const DefaultBranch = "master"

var repoURLPattern = regexp.MustCompile(`(?i)github\.com/([^/]+)/([^/]+?)(?:\.git)?/?$`)

// ParseRepoURL extracts owner and repo from a github.com URL
func ParseRepoURL(raw string) (owner, repo string, err error) {
	m := repoURLPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return "", "", errors.Errorf("parsing %q: %w", raw, ErrInvalidRepoURL)
	}
	return m[1], m[2], nil
}

// FileChange is the proposed new content of one file
type FileChange struct {
	Path    string
	Content string
}

// CommitResult describes a pushed commit
type CommitResult struct {
	SHA       string
	TreeSHA   string
	ParentSHA string
	Files     int
}

// 📦 Repository is one branch of one GitHub repository
type Repository struct {
	client GitHubClient
	owner  string
	repo   string
	branch string
}

// 🏭 NewRepository creates a Repository. An empty branch means DefaultBranch.
func NewRepository(client GitHubClient, owner, repo, branch string) *Repository {
	if strings.TrimSpace(branch) == "" {
		branch = DefaultBranch
	}
	return &Repository{
		client: client,
		owner:  owner,
		repo:   repo,
		branch: strings.TrimSpace(branch),
	}
}

// Name returns owner/repo
func (r *Repository) Name() string {
	return fmt.Sprintf("%s/%s", r.owner, r.repo)
}

// Owner returns the owner part of the repository name
func (r *Repository) Owner() string {
	return r.owner
}

// Repo returns the repo part of the repository name
func (r *Repository) Repo() string {
	return r.repo
}

// Branch returns the branch commits are read from and written to
func (r *Repository) Branch() string {
	return r.branch
}

// ValidateToken checks the token by fetching the authenticated user and
// returns its login
func (r *Repository) ValidateToken(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.Errorf("context error: %w", err)
	}
	user, resp, err := r.client.GetAuthenticatedUser(ctx)
	if err != nil {
		return "", mapError(ctx, "validating token", resp, err)
	}
	zerolog.Ctx(ctx).Debug().Str("login", user.GetLogin()).Msg("token validated")
	return user.GetLogin(), nil
}

// GetFile returns the decoded content of path at the branch tip. A missing
// file fails with ErrNotFound.
func (r *Repository) GetFile(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.Errorf("context error: %w", err)
	}

	file, _, resp, err := r.client.GetContents(ctx, r.owner, r.repo, path, &github.RepositoryContentGetOptions{Ref: r.branch})
	if err != nil {
		return "", mapError(ctx, "getting "+path, resp, err)
	}
	if file == nil {
		// a directory listing
		return "", errors.Errorf("getting %s: not a file: %w", path, ErrNotFound)
	}

	content, err := file.GetContent()
	if err != nil {
		return "", errors.Errorf("decoding %s: %w", path, err)
	}
	return content, nil
}

// ExpandPaths resolves the configured file list against the branch tree.
// Literal paths pass through unchanged, patterns are matched with doublestar
// against every blob in the tree. Order follows the list, duplicates are
// dropped.
func (r *Repository) ExpandPaths(ctx context.Context, patterns []string) ([]string, error) {
	var (
		out   []string
		seen  = make(map[string]bool)
		blobs []string
	)
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		if !strings.ContainsAny(pattern, "*?[{") {
			add(pattern)
			continue
		}
		if !doublestar.ValidatePattern(pattern) {
			return nil, errors.Errorf("invalid file pattern %q", pattern)
		}
		if blobs == nil {
			var err error
			if blobs, err = r.listBlobs(ctx); err != nil {
				return nil, err
			}
		}
		for _, p := range blobs {
			ok, err := doublestar.Match(pattern, p)
			if err != nil {
				return nil, errors.Errorf("matching %q: %w", pattern, err)
			}
			if ok {
				add(p)
			}
		}
	}
	return out, nil
}

func (r *Repository) listBlobs(ctx context.Context) ([]string, error) {
	tree, resp, err := r.client.GetTree(ctx, r.owner, r.repo, r.branch, true)
	if err != nil {
		return nil, mapError(ctx, "listing tree", resp, err)
	}
	if tree.GetTruncated() {
		zerolog.Ctx(ctx).Warn().Str("repo", r.Name()).Msg("tree listing truncated, patterns may miss files")
	}
	blobs := make([]string, 0, len(tree.Entries))
	for _, e := range tree.Entries {
		if e.GetType() == "blob" {
			blobs = append(blobs, e.GetPath())
		}
	}
	return blobs, nil
}

// CommitFiles writes every change as one commit on the branch: resolve the
// branch tip, create one blob per file, build a tree on top of the tip's tree,
// create the commit and fast-forward the branch to it. The branch is only
// moved by the last call, so a failure at any step leaves it untouched.
func (r *Repository) CommitFiles(ctx context.Context, message string, changes []FileChange) (*CommitResult, error) {
	logger := zerolog.Ctx(ctx)

	if len(changes) == 0 {
		return nil, errors.Errorf("no files to commit")
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Errorf("context error: %w", err)
	}

	ref, resp, err := r.client.GetRef(ctx, r.owner, r.repo, "heads/"+r.branch)
	if err != nil {
		return nil, mapError(ctx, "resolving branch "+r.branch, resp, err)
	}
	parentSHA := ref.GetObject().GetSHA()

	parent, resp, err := r.client.GetCommit(ctx, r.owner, r.repo, parentSHA)
	if err != nil {
		return nil, mapError(ctx, "getting base commit", resp, err)
	}
	baseTree := parent.GetTree().GetSHA()

	entries := make([]*github.TreeEntry, 0, len(changes))
	for _, c := range changes {
		blob, resp, err := r.client.CreateBlob(ctx, r.owner, r.repo, &github.Blob{
			Content:  github.String(c.Content),
			Encoding: github.String("utf-8"),
		})
		if err != nil {
			return nil, mapError(ctx, "creating blob for "+c.Path, resp, err)
		}
		entries = append(entries, &github.TreeEntry{
			Path: github.String(c.Path),
			Mode: github.String("100644"),
			Type: github.String("blob"),
			SHA:  github.String(blob.GetSHA()),
		})
	}

	tree, resp, err := r.client.CreateTree(ctx, r.owner, r.repo, baseTree, entries)
	if err != nil {
		return nil, mapError(ctx, "creating tree", resp, err)
	}

	commit, resp, err := r.client.CreateCommit(ctx, r.owner, r.repo, &github.Commit{
		Message: github.String(message),
		Tree:    &github.Tree{SHA: github.String(tree.GetSHA())},
		Parents: []*github.Commit{{SHA: github.String(parentSHA)}},
	}, &github.CreateCommitOptions{})
	if err != nil {
		return nil, mapError(ctx, "creating commit", resp, err)
	}

	_, resp, err = r.client.UpdateRef(ctx, r.owner, r.repo, &github.Reference{
		Ref:    github.String("refs/heads/" + r.branch),
		Object: &github.GitObject{SHA: github.String(commit.GetSHA())},
	}, false)
	if err != nil {
		return nil, mapError(ctx, "updating branch "+r.branch, resp, err)
	}

	logger.Info().
		Str("repo", r.Name()).
		Str("branch", r.branch).
		Str("commit", commit.GetSHA()).
		Int("files", len(changes)).
		Msg("pushed commit")

	return &CommitResult{
		SHA:       commit.GetSHA(),
		TreeSHA:   tree.GetSHA(),
		ParentSHA: parentSHA,
		Files:     len(changes),
	}, nil
}
