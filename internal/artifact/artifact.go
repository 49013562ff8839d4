// Package artifact names the documents each stage branch carries, loads a
// stage's artifact set from the versioned store, and parses the structured
// sub-records (assumptions, risks, bullet lists) the completeness
// evaluators inspect.
package artifact

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/stagecraft/stagecraft/internal/errors"
	"github.com/stagecraft/stagecraft/internal/idea"
	"github.com/stagecraft/stagecraft/internal/stage"
	"github.com/stagecraft/stagecraft/internal/store"
)

// Artifact paths. These names are part of the repository layout contract:
// generators produce them and evaluators look them up.
const (
	RequirementsDoc     = "requirements.md"
	AssumptionsDoc      = "assumptions.yaml"
	GoalsDoc            = "goals.md"
	AnalysisDoc         = "analysis.md"
	RisksDoc            = "risks.yaml"
	CompetitorsDoc      = "competitors.md"
	MVPDoc              = "mvp.md"
	DesignDoc           = "design.md"
	ArchitectureDoc     = "architecture.md"
	InterfacesDoc       = "interfaces.md"
	SourceDir           = "src"
	TestsDir            = "tests"
	TestPlanDoc         = "test-plan.md"
	TestReportDoc       = "test-report.md"
	ValidationReportDoc = "validation-report.md"
	FeedbackDoc         = "feedback.md"
	DeploymentDoc       = "deployment.md"

	// DecisionLog is the per-branch append-only decision log. Written
	// only by the ledger; listed here because it is part of every
	// stage's layout.
	DecisionLog = "decisions.log"
)

// stageDocs maps each stage name to the documents its evaluator inspects.
var stageDocs = map[stage.Name][]string{
	stage.Requirements:   {RequirementsDoc, AssumptionsDoc, GoalsDoc},
	stage.Analysis:       {AnalysisDoc, RisksDoc, CompetitorsDoc, MVPDoc},
	stage.Design:         {DesignDoc, ArchitectureDoc, InterfacesDoc},
	stage.Implementation: {},
	stage.Testing:        {TestPlanDoc, TestReportDoc},
	stage.Validation:     {ValidationReportDoc, FeedbackDoc},
	stage.Deployment:     {DeploymentDoc},
}

// stageDirs maps stages to the directories their evaluator inspects.
var stageDirs = map[stage.Name][]string{
	stage.Implementation: {SourceDir, TestsDir},
}

// Docs returns the document paths loaded for a stage.
func Docs(s stage.Stage) []string {
	return append([]string(nil), stageDocs[s.Name]...)
}

// Set is the artifact set of one stage branch at load time. Missing
// documents are simply absent from Files; evaluators treat absence as
// incompleteness, never as an error.
type Set struct {
	Stage stage.Stage
	Files map[string][]byte
	Dirs  map[string][]store.DirEntry
}

// Has reports whether the document was present at load time.
func (s *Set) Has(path string) bool {
	_, ok := s.Files[path]
	return ok
}

// Content returns a document's bytes, or nil when absent.
func (s *Set) Content(path string) []byte {
	return s.Files[path]
}

// DirEntries returns a directory's listing, or nil when absent or empty.
func (s *Set) DirEntries(path string) []store.DirEntry {
	return s.Dirs[path]
}

// Load reads the artifact set for a stage from its branch. Documents and
// directories are fetched concurrently; absence is tolerated, any other
// store error aborts the load.
func Load(ctx context.Context, vs store.VersionedStore, repo idea.Repository, s stage.Stage) (*Set, error) {
	set := &Set{
		Stage: s,
		Files: make(map[string][]byte),
		Dirs:  make(map[string][]store.DirEntry),
	}
	branch := s.BranchName()

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for _, path := range stageDocs[s.Name] {
		g.Go(func() error {
			f, err := vs.ReadFile(gctx, repo, branch, path)
			if err != nil {
				if errors.Is(err, errors.ErrNotFound) {
					return nil
				}
				return err
			}
			mu.Lock()
			set.Files[path] = f.Data
			mu.Unlock()
			return nil
		})
	}

	for _, dir := range stageDirs[s.Name] {
		g.Go(func() error {
			entries, err := vs.ListDir(gctx, repo, branch, dir)
			if err != nil {
				if errors.Is(err, errors.ErrNotFound) {
					return nil
				}
				return err
			}
			mu.Lock()
			set.Dirs[dir] = entries
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, errors.Wrapf(err, "loading %s artifacts", branch)
	}
	return set, nil
}
