package store

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"

	"github.com/stagecraft/stagecraft/internal/errors"
	"github.com/stagecraft/stagecraft/internal/idea"
)

// GitHubStore implements VersionedStore against the GitHub REST API.
// File writes use the contents API, whose blob-SHA precondition gives the
// compare-and-swap semantics the ledger's append path depends on.
type GitHubStore struct {
	client *github.Client
}

// NewGitHubStore creates a store authenticated with the given token.
// baseURL overrides the API endpoint for GitHub Enterprise; leave it
// empty for github.com.
func NewGitHubStore(ctx context.Context, token, baseURL string) (*GitHubStore, error) {
	var hc *http.Client
	if token != "" {
		hc = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}

	client := github.NewClient(hc)
	if baseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(baseURL, baseURL)
		if err != nil {
			return nil, fmt.Errorf("configuring enterprise URL: %w", err)
		}
	}
	return &GitHubStore{client: client}, nil
}

// NewGitHubStoreWithClient wraps an existing client. Used by tests that
// point the client at a local HTTP fixture.
func NewGitHubStoreWithClient(client *github.Client) *GitHubStore {
	return &GitHubStore{client: client}
}

// mapError converts go-github errors into the engine's store taxonomy.
func mapError(op string, repo idea.Repository, err error) error {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		var cause error
		switch code := ghErr.Response.StatusCode; {
		case code == http.StatusNotFound:
			cause = errors.ErrNotFound
		case code == http.StatusConflict || code == http.StatusUnprocessableEntity:
			cause = errors.ErrConflictingWrite
		case code == http.StatusUnauthorized || code == http.StatusForbidden:
			cause = errors.ErrPermissionDenied
		case code >= 500:
			cause = errors.ErrStoreUnavailable
		default:
			cause = err
		}
		return errors.NewStoreError(op, cause).WithRepository(repo.Address())
	}

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return errors.NewStoreError(op, errors.ErrStoreUnavailable).WithRepository(repo.Address())
	}

	// No HTTP response at all: transport failure, store unreachable.
	return errors.NewStoreError(op, errors.Join(errors.ErrStoreUnavailable, err)).
		WithRepository(repo.Address())
}

// GetBranchHead implements VersionedStore.
func (g *GitHubStore) GetBranchHead(ctx context.Context, repo idea.Repository, branch string) (string, error) {
	ref, _, err := g.client.Git.GetRef(ctx, repo.Owner, repo.Name, "refs/heads/"+branch)
	if err != nil {
		return "", mapError("get branch head", repo, err)
	}
	return ref.GetObject().GetSHA(), nil
}

// ReadFile implements VersionedStore.
func (g *GitHubStore) ReadFile(ctx context.Context, repo idea.Repository, branch, path string) (*File, error) {
	fc, _, _, err := g.client.Repositories.GetContents(ctx, repo.Owner, repo.Name, path,
		&github.RepositoryContentGetOptions{Ref: branch})
	if err != nil {
		return nil, mapError("read file", repo, err)
	}
	if fc == nil {
		return nil, errors.NewStoreError("read file: path is a directory", errors.ErrNotFound).
			WithRepository(repo.Address()).WithBranch(branch).WithPath(path)
	}

	content, err := fc.GetContent()
	if err != nil {
		return nil, errors.NewStoreError("decode file content", err).
			WithRepository(repo.Address()).WithBranch(branch).WithPath(path)
	}
	return &File{Data: []byte(content), SHA: fc.GetSHA()}, nil
}

// WriteFile implements VersionedStore.
func (g *GitHubStore) WriteFile(ctx context.Context, repo idea.Repository, branch, path string, data []byte, message, expectedParentSHA string) (string, error) {
	opts := &github.RepositoryContentFileOptions{
		Message: github.String(message),
		Content: data,
		Branch:  github.String(branch),
	}

	var resp *github.RepositoryContentResponse
	var err error
	if expectedParentSHA == "" {
		// Create: GitHub rejects the call with 422 if the file already
		// exists, which maps to ErrConflictingWrite as intended.
		resp, _, err = g.client.Repositories.CreateFile(ctx, repo.Owner, repo.Name, path, opts)
	} else {
		opts.SHA = github.String(expectedParentSHA)
		resp, _, err = g.client.Repositories.UpdateFile(ctx, repo.Owner, repo.Name, path, opts)
	}
	if err != nil {
		return "", mapError("write file", repo, err)
	}
	return resp.Commit.GetSHA(), nil
}

// ListDir implements VersionedStore.
func (g *GitHubStore) ListDir(ctx context.Context, repo idea.Repository, branch, path string) ([]DirEntry, error) {
	_, dir, _, err := g.client.Repositories.GetContents(ctx, repo.Owner, repo.Name, path,
		&github.RepositoryContentGetOptions{Ref: branch})
	if err != nil {
		return nil, mapError("list directory", repo, err)
	}

	entries := make([]DirEntry, 0, len(dir))
	for _, item := range dir {
		t := EntryFile
		if item.GetType() == "dir" {
			t = EntryDir
		}
		entries = append(entries, DirEntry{Name: item.GetName(), Type: t})
	}
	return entries, nil
}

// ListBranches implements VersionedStore.
func (g *GitHubStore) ListBranches(ctx context.Context, repo idea.Repository) ([]string, error) {
	var names []string
	opts := &github.BranchListOptions{ListOptions: github.ListOptions{PerPage: 100}}
	for {
		branches, resp, err := g.client.Repositories.ListBranches(ctx, repo.Owner, repo.Name, opts)
		if err != nil {
			return nil, mapError("list branches", repo, err)
		}
		for _, b := range branches {
			names = append(names, b.GetName())
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return names, nil
}

// CreateBranch implements VersionedStore.
func (g *GitHubStore) CreateBranch(ctx context.Context, repo idea.Repository, name, fromSHA string) error {
	_, _, err := g.client.Git.CreateRef(ctx, repo.Owner, repo.Name, &github.Reference{
		Ref:    github.String("refs/heads/" + name),
		Object: &github.GitObject{SHA: github.String(fromSHA)},
	})
	if err != nil {
		var ghErr *github.ErrorResponse
		if errors.As(err, &ghErr) && ghErr.Response != nil &&
			ghErr.Response.StatusCode == http.StatusUnprocessableEntity &&
			strings.Contains(strings.ToLower(ghErr.Message), "already exists") {
			return errors.NewStoreError("create branch", errors.ErrBranchExists).
				WithRepository(repo.Address()).WithBranch(name)
		}
		return mapError("create branch", repo, err)
	}
	return nil
}

// OpenPullRequest implements VersionedStore.
func (g *GitHubStore) OpenPullRequest(ctx context.Context, repo idea.Repository, head, base, title, body string) (*PullRequest, error) {
	pr, _, err := g.client.PullRequests.Create(ctx, repo.Owner, repo.Name, &github.NewPullRequest{
		Title: github.String(title),
		Head:  github.String(head),
		Base:  github.String(base),
		Body:  github.String(body),
	})
	if err != nil {
		return nil, mapError("open pull request", repo, err)
	}
	return toPullRequest(pr), nil
}

// FindOpenPullRequest implements VersionedStore.
func (g *GitHubStore) FindOpenPullRequest(ctx context.Context, repo idea.Repository, head, base string) (*PullRequest, error) {
	prs, _, err := g.client.PullRequests.List(ctx, repo.Owner, repo.Name, &github.PullRequestListOptions{
		State: "open",
		Head:  fmt.Sprintf("%s:%s", repo.Owner, head),
		Base:  base,
	})
	if err != nil {
		return nil, mapError("find pull request", repo, err)
	}
	if len(prs) == 0 {
		return nil, errors.NewStoreError("no open pull request", errors.ErrNotFound).
			WithRepository(repo.Address()).WithBranch(head)
	}
	return toPullRequest(prs[0]), nil
}

// MergePullRequest implements VersionedStore.
func (g *GitHubStore) MergePullRequest(ctx context.Context, repo idea.Repository, number int, method MergeMethod) error {
	_, _, err := g.client.PullRequests.Merge(ctx, repo.Owner, repo.Name, number, "",
		&github.PullRequestOptions{MergeMethod: string(method)})
	if err != nil {
		return mapError("merge pull request", repo, err)
	}
	return nil
}

func toPullRequest(pr *github.PullRequest) *PullRequest {
	return &PullRequest{
		Number: pr.GetNumber(),
		Head:   pr.GetHead().GetRef(),
		Base:   pr.GetBase().GetRef(),
		Title:  pr.GetTitle(),
		Body:   pr.GetBody(),
		Open:   pr.GetState() == "open",
	}
}

var _ VersionedStore = (*GitHubStore)(nil)
