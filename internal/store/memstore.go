package store

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/stagecraft/stagecraft/internal/errors"
	"github.com/stagecraft/stagecraft/internal/idea"
)

// MemStore is an in-memory VersionedStore with real compare-and-swap
// semantics. It backs every engine and ledger test and the stub store
// backend; a failure hook lets tests inject transient store errors.
type MemStore struct {
	mu      sync.Mutex
	repos   map[string]*memRepo
	seq     int
	commits int

	// FailNext, when non-nil, is returned (and cleared) by the next
	// store call, reads included. Tests use it to simulate store
	// outages.
	FailNext error
}

type memRepo struct {
	branches map[string]*memBranch
	prs      []*PullRequest
	nextPR   int
}

type memBranch struct {
	head  string
	files map[string]*File
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{repos: make(map[string]*memRepo)}
}

// InitRepo creates a repository with the given branches, each starting
// empty at a distinct head commit.
func (m *MemStore) InitRepo(repo idea.Repository, branches ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := &memRepo{branches: make(map[string]*memBranch), nextPR: 1}
	for _, b := range branches {
		r.branches[b] = &memBranch{head: m.nextSHA(), files: make(map[string]*File)}
	}
	m.repos[repo.Address()] = r
}

// Seed writes a file to a branch directly, bypassing CAS. Test setup only.
func (m *MemStore) Seed(repo idea.Repository, branch, path string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.repos[repo.Address()].branches[branch]
	b.files[path] = &File{Data: append([]byte(nil), data...), SHA: m.blobSHA(data)}
	b.head = m.nextSHA()
}

// CommitCount returns the number of commits made through the
// VersionedStore interface (writes and merges). Setup helpers such as
// InitRepo and Seed mint head SHAs without counting, so tests can assert
// absolute commit counts against their own writes.
func (m *MemStore) CommitCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commits
}

// PullRequests returns all pull requests for a repository, in creation order.
func (m *MemStore) PullRequests(repo idea.Repository) []*PullRequest {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.repos[repo.Address()]
	if !ok {
		return nil
	}
	out := make([]*PullRequest, len(r.prs))
	for i, pr := range r.prs {
		cp := *pr
		out[i] = &cp
	}
	return out
}

// nextSHA mints a distinct head SHA without counting a commit.
func (m *MemStore) nextSHA() string {
	m.seq++
	sum := sha1.Sum([]byte(fmt.Sprintf("commit-%d", m.seq)))
	return hex.EncodeToString(sum[:])
}

// nextCommit mints a head SHA and counts it as a commit.
func (m *MemStore) nextCommit() string {
	m.commits++
	return m.nextSHA()
}

func (m *MemStore) blobSHA(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

func (m *MemStore) repo(repo idea.Repository) (*memRepo, error) {
	r, ok := m.repos[repo.Address()]
	if !ok {
		return nil, errors.NewStoreError("unknown repository", errors.ErrNotFound).
			WithRepository(repo.Address())
	}
	return r, nil
}

func (m *MemStore) branch(repo idea.Repository, name string) (*memBranch, error) {
	r, err := m.repo(repo)
	if err != nil {
		return nil, err
	}
	b, ok := r.branches[name]
	if !ok {
		return nil, errors.NewStoreError("unknown branch", errors.ErrNotFound).
			WithRepository(repo.Address()).WithBranch(name)
	}
	return b, nil
}

func (m *MemStore) takeInjectedFailure() error {
	if m.FailNext != nil {
		err := m.FailNext
		m.FailNext = nil
		return err
	}
	return nil
}

// GetBranchHead implements VersionedStore.
func (m *MemStore) GetBranchHead(_ context.Context, repo idea.Repository, branch string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, err := m.branch(repo, branch)
	if err != nil {
		return "", err
	}
	return b.head, nil
}

// ReadFile implements VersionedStore.
func (m *MemStore) ReadFile(_ context.Context, repo idea.Repository, branch, path string) (*File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeInjectedFailure(); err != nil {
		return nil, err
	}

	b, err := m.branch(repo, branch)
	if err != nil {
		return nil, err
	}
	f, ok := b.files[path]
	if !ok {
		return nil, errors.NewStoreError("file not found", errors.ErrNotFound).
			WithRepository(repo.Address()).WithBranch(branch).WithPath(path)
	}
	return &File{Data: append([]byte(nil), f.Data...), SHA: f.SHA}, nil
}

// WriteFile implements VersionedStore.
func (m *MemStore) WriteFile(_ context.Context, repo idea.Repository, branch, path string, data []byte, message, expectedParentSHA string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeInjectedFailure(); err != nil {
		return "", err
	}

	b, err := m.branch(repo, branch)
	if err != nil {
		return "", err
	}

	existing, exists := b.files[path]
	switch {
	case !exists && expectedParentSHA != "":
		return "", errors.NewStoreError("expected parent missing", errors.ErrConflictingWrite).
			WithRepository(repo.Address()).WithBranch(branch).WithPath(path)
	case exists && existing.SHA != expectedParentSHA:
		return "", errors.NewStoreError("parent moved since read", errors.ErrConflictingWrite).
			WithRepository(repo.Address()).WithBranch(branch).WithPath(path)
	}

	b.files[path] = &File{Data: append([]byte(nil), data...), SHA: m.blobSHA(data)}
	b.head = m.nextCommit()
	return b.head, nil
}

// ListDir implements VersionedStore. path "" lists the branch root.
func (m *MemStore) ListDir(_ context.Context, repo idea.Repository, branch, path string) ([]DirEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeInjectedFailure(); err != nil {
		return nil, err
	}

	b, err := m.branch(repo, branch)
	if err != nil {
		return nil, err
	}

	prefix := path
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	seen := make(map[string]EntryType)
	for p := range b.files {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := strings.TrimPrefix(p, prefix)
		if rest == "" {
			continue
		}
		if name, _, nested := strings.Cut(rest, "/"); nested {
			seen[name] = EntryDir
		} else {
			seen[name] = EntryFile
		}
	}

	if len(seen) == 0 && path != "" {
		return nil, errors.NewStoreError("directory not found", errors.ErrNotFound).
			WithRepository(repo.Address()).WithBranch(branch).WithPath(path)
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]DirEntry, 0, len(names))
	for _, name := range names {
		entries = append(entries, DirEntry{Name: name, Type: seen[name]})
	}
	return entries, nil
}

// ListBranches implements VersionedStore.
func (m *MemStore) ListBranches(_ context.Context, repo idea.Repository) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, err := m.repo(repo)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(r.branches))
	for name := range r.branches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// CreateBranch implements VersionedStore. The new branch shares the files
// of whichever branch fromSHA is the head of, or starts empty if fromSHA
// does not match a known head.
func (m *MemStore) CreateBranch(_ context.Context, repo idea.Repository, name, fromSHA string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeInjectedFailure(); err != nil {
		return err
	}

	r, err := m.repo(repo)
	if err != nil {
		return err
	}
	if _, exists := r.branches[name]; exists {
		return errors.NewStoreError("create branch", errors.ErrBranchExists).
			WithRepository(repo.Address()).WithBranch(name)
	}

	nb := &memBranch{head: fromSHA, files: make(map[string]*File)}
	for _, b := range r.branches {
		if b.head == fromSHA {
			for p, f := range b.files {
				nb.files[p] = &File{Data: append([]byte(nil), f.Data...), SHA: f.SHA}
			}
			break
		}
	}
	if nb.head == "" {
		nb.head = m.nextSHA()
	}
	r.branches[name] = nb
	return nil
}

// OpenPullRequest implements VersionedStore.
func (m *MemStore) OpenPullRequest(_ context.Context, repo idea.Repository, head, base, title, body string) (*PullRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeInjectedFailure(); err != nil {
		return nil, err
	}

	r, err := m.repo(repo)
	if err != nil {
		return nil, err
	}
	for _, b := range []string{head, base} {
		if _, ok := r.branches[b]; !ok {
			return nil, errors.NewStoreError("pull request branch missing", errors.ErrNotFound).
				WithRepository(repo.Address()).WithBranch(b)
		}
	}

	pr := &PullRequest{
		Number: r.nextPR,
		Head:   head,
		Base:   base,
		Title:  title,
		Body:   body,
		Open:   true,
	}
	r.nextPR++
	r.prs = append(r.prs, pr)

	cp := *pr
	return &cp, nil
}

// FindOpenPullRequest implements VersionedStore.
func (m *MemStore) FindOpenPullRequest(_ context.Context, repo idea.Repository, head, base string) (*PullRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, err := m.repo(repo)
	if err != nil {
		return nil, err
	}
	for _, pr := range r.prs {
		if pr.Open && pr.Head == head && pr.Base == base {
			cp := *pr
			return &cp, nil
		}
	}
	return nil, errors.NewStoreError("no open pull request", errors.ErrNotFound).
		WithRepository(repo.Address()).WithBranch(head)
}

// MergePullRequest implements VersionedStore. Merging copies the head
// branch's files onto the base branch in one commit, matching squash
// semantics closely enough for tests.
func (m *MemStore) MergePullRequest(_ context.Context, repo idea.Repository, number int, _ MergeMethod) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeInjectedFailure(); err != nil {
		return err
	}

	r, err := m.repo(repo)
	if err != nil {
		return err
	}
	for _, pr := range r.prs {
		if pr.Number != number {
			continue
		}
		if !pr.Open {
			return errors.NewStoreError("pull request already closed", errors.ErrConflictingWrite).
				WithRepository(repo.Address())
		}
		head := r.branches[pr.Head]
		base := r.branches[pr.Base]
		for p, f := range head.files {
			base.files[p] = &File{Data: append([]byte(nil), f.Data...), SHA: f.SHA}
		}
		base.head = m.nextCommit()
		pr.Open = false
		return nil
	}
	return errors.NewStoreError("pull request not found", errors.ErrNotFound).
		WithRepository(repo.Address())
}

var _ VersionedStore = (*MemStore)(nil)
