// Package store defines the versioned store adapter: the thin interface
// the engine and ledger use to read and write branch-scoped files, query
// history, and drive pull requests in a remote versioned-object
// repository. Two implementations are provided: GitHubStore for the real
// remote store and MemStore for tests and stub backends.
package store

import (
	"context"

	"github.com/stagecraft/stagecraft/internal/idea"
)

// File is a file read from a branch. SHA identifies the stored blob and is
// the compare-and-swap token for WriteFile.
type File struct {
	Data []byte
	SHA  string
}

// EntryType distinguishes directory listing entries.
type EntryType string

const (
	EntryFile EntryType = "file"
	EntryDir  EntryType = "dir"
)

// DirEntry is one entry in a directory listing.
type DirEntry struct {
	Name string
	Type EntryType
}

// PullRequest is a transition pull request handle.
type PullRequest struct {
	Number int
	Head   string
	Base   string
	Title  string
	Body   string
	Open   bool
}

// MergeMethod selects how a pull request is merged.
type MergeMethod string

const (
	// MergeSquash collapses the transition history to one commit on the
	// target branch.
	MergeSquash MergeMethod = "squash"
	// MergeCommit performs a regular merge commit.
	MergeCommit MergeMethod = "merge"
)

// VersionedStore is the adapter contract to the remote versioned-object
// repository. All errors wrap the package-level taxonomy in
// internal/errors: ErrStoreUnavailable for transport failures,
// ErrConflictingWrite for compare-and-swap losses and merge conflicts,
// ErrNotFound for absent branches, files, and pull requests.
type VersionedStore interface {
	// GetBranchHead returns the commit SHA at the tip of branch.
	GetBranchHead(ctx context.Context, repo idea.Repository, branch string) (string, error)

	// ReadFile reads path from branch. The returned SHA is the blob's
	// identity at read time, usable as expectedParentSHA in WriteFile.
	ReadFile(ctx context.Context, repo idea.Repository, branch, path string) (*File, error)

	// WriteFile creates or overwrites path on branch in a single commit
	// with the given message, returning the new commit SHA.
	//
	// expectedParentSHA implements optimistic concurrency: for updates it
	// must equal the blob SHA returned by the ReadFile the caller based
	// its write on, and for creates it must be empty. A mismatch (the
	// file changed, appeared, or vanished in between) fails with
	// ErrConflictingWrite and writes nothing.
	WriteFile(ctx context.Context, repo idea.Repository, branch, path string, data []byte, message, expectedParentSHA string) (string, error)

	// ListDir lists the entries under path on branch.
	ListDir(ctx context.Context, repo idea.Repository, branch, path string) ([]DirEntry, error)

	// ListBranches returns the repository's branch names.
	ListBranches(ctx context.Context, repo idea.Repository) ([]string, error)

	// CreateBranch creates branch name at the given commit.
	// Fails with ErrBranchExists if the branch is already present.
	CreateBranch(ctx context.Context, repo idea.Repository, name, fromSHA string) error

	// OpenPullRequest opens a pull request from head into base.
	OpenPullRequest(ctx context.Context, repo idea.Repository, head, base, title, body string) (*PullRequest, error)

	// FindOpenPullRequest returns the open pull request from head into
	// base, or ErrNotFound when none exists.
	FindOpenPullRequest(ctx context.Context, repo idea.Repository, head, base string) (*PullRequest, error)

	// MergePullRequest merges the numbered pull request. Merge conflicts
	// surface as ErrConflictingWrite.
	MergePullRequest(ctx context.Context, repo idea.Repository, number int, method MergeMethod) error
}
