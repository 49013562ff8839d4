package store

import (
	"context"
	"testing"

	"github.com/stagecraft/stagecraft/internal/errors"
	"github.com/stagecraft/stagecraft/internal/idea"
)

var testRepo = idea.Repository{Owner: "acme", Name: "idea-1"}

func newTestStore(branches ...string) *MemStore {
	m := NewMemStore()
	m.InitRepo(testRepo, branches...)
	return m
}

func TestWriteThenRead(t *testing.T) {
	ctx := context.Background()
	m := newTestStore("requirements")

	if _, err := m.WriteFile(ctx, testRepo, "requirements", "goals.md", []byte("# Goals"), "add goals", ""); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	f, err := m.ReadFile(ctx, testRepo, "requirements", "goals.md")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(f.Data) != "# Goals" {
		t.Errorf("Data = %q", f.Data)
	}
	if f.SHA == "" {
		t.Error("expected non-empty blob SHA")
	}
}

func TestReadMissingFileIsNotFound(t *testing.T) {
	m := newTestStore("requirements")

	_, err := m.ReadFile(context.Background(), testRepo, "requirements", "absent.md")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCASRejectsStaleParent(t *testing.T) {
	ctx := context.Background()
	m := newTestStore("analysis")

	if _, err := m.WriteFile(ctx, testRepo, "analysis", "decisions.log", []byte("a\n"), "first", ""); err != nil {
		t.Fatalf("initial write: %v", err)
	}

	f, err := m.ReadFile(ctx, testRepo, "analysis", "decisions.log")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	// A concurrent writer lands between our read and our write.
	if _, err := m.WriteFile(ctx, testRepo, "analysis", "decisions.log", []byte("a\nb\n"), "concurrent", f.SHA); err != nil {
		t.Fatalf("concurrent write: %v", err)
	}

	_, err = m.WriteFile(ctx, testRepo, "analysis", "decisions.log", []byte("a\nc\n"), "stale", f.SHA)
	if !errors.Is(err, errors.ErrConflictingWrite) {
		t.Errorf("stale write err = %v, want ErrConflictingWrite", err)
	}

	// The losing write must not have landed.
	cur, err := m.ReadFile(ctx, testRepo, "analysis", "decisions.log")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(cur.Data) != "a\nb\n" {
		t.Errorf("content after conflict = %q", cur.Data)
	}
}

func TestCreateRequiresAbsentFile(t *testing.T) {
	ctx := context.Background()
	m := newTestStore("design")

	if _, err := m.WriteFile(ctx, testRepo, "design", "design.md", []byte("v1"), "create", ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := m.WriteFile(ctx, testRepo, "design", "design.md", []byte("v2"), "create again", "")
	if !errors.Is(err, errors.ErrConflictingWrite) {
		t.Errorf("second create err = %v, want ErrConflictingWrite", err)
	}
}

func TestListDir(t *testing.T) {
	ctx := context.Background()
	m := newTestStore("implementation/active")

	seed := map[string]string{
		"src/main.go":        "package main",
		"src/api/routes.go":  "package api",
		"tests/main_test.go": "package main",
		"README.md":          "readme",
	}
	for p, c := range seed {
		m.Seed(testRepo, "implementation/active", p, []byte(c))
	}

	root, err := m.ListDir(ctx, testRepo, "implementation/active", "")
	if err != nil {
		t.Fatalf("ListDir root: %v", err)
	}
	want := map[string]EntryType{"README.md": EntryFile, "src": EntryDir, "tests": EntryDir}
	if len(root) != len(want) {
		t.Fatalf("root entries = %v", root)
	}
	for _, e := range root {
		if want[e.Name] != e.Type {
			t.Errorf("entry %s type = %s, want %s", e.Name, e.Type, want[e.Name])
		}
	}

	src, err := m.ListDir(ctx, testRepo, "implementation/active", "src")
	if err != nil {
		t.Fatalf("ListDir src: %v", err)
	}
	if len(src) != 2 {
		t.Errorf("src entries = %v", src)
	}

	if _, err := m.ListDir(ctx, testRepo, "implementation/active", "docs"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("missing dir err = %v, want ErrNotFound", err)
	}
}

func TestPullRequestLifecycle(t *testing.T) {
	ctx := context.Background()
	m := newTestStore("analysis", "design")
	m.Seed(testRepo, "design", "design.md", []byte("draft"))

	pr, err := m.OpenPullRequest(ctx, testRepo, "design", "implementation/active", "x", "y")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("PR against missing base: err = %v, pr = %v", err, pr)
	}

	pr, err = m.OpenPullRequest(ctx, testRepo, "design", "analysis", "Populate design", "body")
	if err != nil {
		t.Fatalf("OpenPullRequest: %v", err)
	}
	if pr.Number != 1 || !pr.Open {
		t.Fatalf("pr = %+v", pr)
	}

	found, err := m.FindOpenPullRequest(ctx, testRepo, "design", "analysis")
	if err != nil {
		t.Fatalf("FindOpenPullRequest: %v", err)
	}
	if found.Number != pr.Number {
		t.Errorf("found PR %d, want %d", found.Number, pr.Number)
	}

	if err := m.MergePullRequest(ctx, testRepo, pr.Number, MergeSquash); err != nil {
		t.Fatalf("MergePullRequest: %v", err)
	}

	if _, err := m.FindOpenPullRequest(ctx, testRepo, "design", "analysis"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("merged PR still findable: %v", err)
	}

	// Head files landed on base.
	f, err := m.ReadFile(ctx, testRepo, "analysis", "design.md")
	if err != nil || string(f.Data) != "draft" {
		t.Errorf("merge did not copy files: %v, %q", err, f)
	}

	if err := m.MergePullRequest(ctx, testRepo, pr.Number, MergeSquash); !errors.Is(err, errors.ErrConflictingWrite) {
		t.Errorf("double merge err = %v, want ErrConflictingWrite", err)
	}
}

func TestInjectedFailure(t *testing.T) {
	ctx := context.Background()
	m := newTestStore("requirements")
	m.FailNext = errors.NewStoreError("outage", errors.ErrStoreUnavailable)

	_, err := m.WriteFile(ctx, testRepo, "requirements", "goals.md", []byte("x"), "m", "")
	if !errors.Is(err, errors.ErrStoreUnavailable) {
		t.Fatalf("err = %v, want ErrStoreUnavailable", err)
	}

	// Failure is one-shot.
	if _, err := m.WriteFile(ctx, testRepo, "requirements", "goals.md", []byte("x"), "m", ""); err != nil {
		t.Fatalf("second write: %v", err)
	}
}

func TestInjectedFailureCoversReads(t *testing.T) {
	ctx := context.Background()
	m := newTestStore("requirements")
	m.Seed(testRepo, "requirements", "goals.md", []byte("# Goals"))

	m.FailNext = errors.ErrStoreUnavailable
	if _, err := m.ReadFile(ctx, testRepo, "requirements", "goals.md"); !errors.Is(err, errors.ErrStoreUnavailable) {
		t.Fatalf("ReadFile err = %v, want ErrStoreUnavailable", err)
	}

	m.FailNext = errors.ErrStoreUnavailable
	if _, err := m.ListDir(ctx, testRepo, "requirements", ""); !errors.Is(err, errors.ErrStoreUnavailable) {
		t.Fatalf("ListDir err = %v, want ErrStoreUnavailable", err)
	}
}

func TestCommitCountIgnoresSetup(t *testing.T) {
	ctx := context.Background()
	m := newTestStore("requirements", "analysis")
	m.Seed(testRepo, "requirements", "goals.md", []byte("g"))

	if got := m.CommitCount(); got != 0 {
		t.Fatalf("CommitCount after setup = %d, want 0", got)
	}
	if _, err := m.WriteFile(ctx, testRepo, "requirements", "notes.md", []byte("n"), "add notes", ""); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if got := m.CommitCount(); got != 1 {
		t.Fatalf("CommitCount after one write = %d, want 1", got)
	}
}
