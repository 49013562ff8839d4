package engine

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagecraft/stagecraft/internal/artifact"
	"github.com/stagecraft/stagecraft/internal/completeness"
	"github.com/stagecraft/stagecraft/internal/config"
	"github.com/stagecraft/stagecraft/internal/errors"
	"github.com/stagecraft/stagecraft/internal/event"
	"github.com/stagecraft/stagecraft/internal/generate"
	"github.com/stagecraft/stagecraft/internal/idea"
	"github.com/stagecraft/stagecraft/internal/ledger"
	"github.com/stagecraft/stagecraft/internal/review"
	"github.com/stagecraft/stagecraft/internal/stage"
	"github.com/stagecraft/stagecraft/internal/store"
)

type fakeGenerator struct {
	calls     atomic.Int32
	decisions []generate.ProposedDecision
	err       error
}

func (f *fakeGenerator) Generate(_ context.Context, req generate.Request) (*generate.Result, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	next, err := stage.ParseBranch(req.NextStage)
	if err != nil {
		return nil, err
	}
	files := make(map[string][]byte)
	for _, doc := range artifact.Docs(next) {
		files[doc] = []byte("# " + doc + "\n\ngenerated draft\n")
	}
	// A generator must never write the decision log directly.
	files[artifact.DecisionLog] = []byte("should be skipped")
	return &generate.Result{Files: files, Decisions: f.decisions, Summary: "ok"}, nil
}

type fakeReviewer struct {
	calls      atomic.Int32
	approved   bool
	confidence float64
	err        error
}

func (f *fakeReviewer) Review(context.Context, review.Request) (*review.Assessment, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &review.Assessment{Approved: f.approved, Confidence: f.confidence, Notes: "n"}, nil
}

type fixture struct {
	engine    *Engine
	store     *store.MemStore
	repo      idea.Repository
	generator *fakeGenerator
	reviewer  *fakeReviewer
	bus       *event.Bus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ms := store.NewMemStore()
	repo := idea.Repository{Owner: "acme", Name: "venture"}
	ms.InitRepo(repo, stage.AllBranches()...)

	cfg := config.Default()
	bus := event.NewBus()
	gen := &fakeGenerator{}
	rev := &fakeReviewer{approved: true, confidence: 0.9}
	eng := New(
		ms,
		ledger.New(ms, bus, nil, cfg.Ledger),
		completeness.NewRegistry(cfg.Completeness),
		gen,
		rev,
		bus,
		nil,
		cfg,
	)
	return &fixture{engine: eng, store: ms, repo: repo, generator: gen, reviewer: rev, bus: bus}
}

func (f *fixture) seedCompleteRequirements(t *testing.T) {
	t.Helper()
	f.store.Seed(f.repo, "requirements", artifact.RequirementsDoc,
		[]byte(strings.Repeat("The system shall do useful things. ", 20)))
	f.store.Seed(f.repo, "requirements", artifact.AssumptionsDoc, []byte(`
- text: founders can sell
  criticality: 0.8
  validated: true
`))
	f.store.Seed(f.repo, "requirements", artifact.GoalsDoc, []byte("# Goals\n\n- reach 100 users\n"))
}

func trigger(f *fixture, branch string) Trigger {
	return Trigger{IdeaID: "idea-1", Repo: f.repo, BranchRef: branch}
}

func TestIncompleteStageHalts(t *testing.T) {
	f := newFixture(t)

	out, err := f.engine.HandleBranchUpdate(context.Background(), trigger(f, "requirements"))
	require.NoError(t, err, "incomplete is a normal outcome")

	assert.False(t, out.Verdict.Complete)
	assert.Equal(t, -1, out.PRNumber)
	assert.Equal(t, int32(0), f.generator.calls.Load(), "no generation for an incomplete stage")
	assert.Empty(t, f.store.PullRequests(f.repo))
}

func TestCompleteStageTransitionsAndMerges(t *testing.T) {
	f := newFixture(t)
	f.seedCompleteRequirements(t)

	out, err := f.engine.HandleBranchUpdate(context.Background(), trigger(f, "requirements"))
	require.NoError(t, err)

	assert.True(t, out.Verdict.Complete)
	assert.True(t, out.Merged)
	assert.Positive(t, out.GeneratedFiles)

	// Generated analysis drafts landed on the analysis branch.
	file, err := f.store.ReadFile(context.Background(), f.repo, "analysis", artifact.AnalysisDoc)
	require.NoError(t, err)
	assert.Contains(t, string(file.Data), "generated draft")

	// PR flows forward: head is the populated stage, base its successor.
	prs := f.store.PullRequests(f.repo)
	require.Len(t, prs, 1)
	assert.Equal(t, "analysis", prs[0].Head)
	assert.Equal(t, "design", prs[0].Base)
	assert.False(t, prs[0].Open, "approved above threshold merges immediately")
}

func TestGeneratorNeverWritesDecisionLog(t *testing.T) {
	f := newFixture(t)
	f.seedCompleteRequirements(t)

	_, err := f.engine.HandleBranchUpdate(context.Background(), trigger(f, "requirements"))
	require.NoError(t, err)

	_, err = f.store.ReadFile(context.Background(), f.repo, "analysis", artifact.DecisionLog)
	assert.True(t, errors.Is(err, errors.ErrNotFound), "decision log paths are skipped on commit")
}

func TestProposedDecisionsReconciledThroughLedger(t *testing.T) {
	f := newFixture(t)
	f.seedCompleteRequirements(t)
	f.generator.decisions = []generate.ProposedDecision{{
		Name: "use-database", Type: "technology-choice",
		Alternatives: []string{"PostgreSQL", "MongoDB"},
		Chosen:       "PostgreSQL", Reason: "relational fit",
		Confidence: 0.85, RevisitProbability: 0.05,
	}}

	out, err := f.engine.HandleBranchUpdate(context.Background(), trigger(f, "requirements"))
	require.NoError(t, err)
	assert.Equal(t, 1, out.DecisionsNew)
	assert.Equal(t, 0, out.DecisionsReused)

	// The record landed on the successor branch decision log.
	file, err := f.store.ReadFile(context.Background(), f.repo, "analysis", artifact.DecisionLog)
	require.NoError(t, err)
	assert.Contains(t, string(file.Data), "Decision: use-database")
	assert.Contains(t, string(file.Data), "Chosen: PostgreSQL")
}

func TestDuplicateTriggerReusesOpenPR(t *testing.T) {
	f := newFixture(t)
	f.seedCompleteRequirements(t)
	f.reviewer.approved = false
	f.reviewer.confidence = 0.4

	first, err := f.engine.HandleBranchUpdate(context.Background(), trigger(f, "requirements"))
	require.NoError(t, err)
	assert.True(t, first.Blocked)
	assert.False(t, first.PRReused)

	second, err := f.engine.HandleBranchUpdate(context.Background(), trigger(f, "requirements"))
	require.NoError(t, err)
	assert.True(t, second.PRReused, "redelivered trigger must not open a second PR")
	assert.Equal(t, first.PRNumber, second.PRNumber)
	assert.Len(t, f.store.PullRequests(f.repo), 1)
}

func TestConcurrentTriggersCollapse(t *testing.T) {
	f := newFixture(t)
	f.seedCompleteRequirements(t)
	f.reviewer.approved = false

	const n = 4
	var wg sync.WaitGroup
	outs := make([]*Outcome, n)
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outs[i], errs[i] = f.engine.HandleBranchUpdate(context.Background(), trigger(f, "requirements"))
		}()
	}
	wg.Wait()

	for i := range n {
		require.NoError(t, errs[i])
		require.NotNil(t, outs[i])
	}
	assert.Len(t, f.store.PullRequests(f.repo), 1)
}

func TestBlockedReviewLeavesPROpen(t *testing.T) {
	f := newFixture(t)
	f.seedCompleteRequirements(t)
	f.reviewer.approved = true
	f.reviewer.confidence = 0.8 // not strictly above the threshold

	var blocked []event.TransitionBlockedEvent
	f.bus.Subscribe(event.TypeTransitionBlocked, func(e event.Event) {
		blocked = append(blocked, e.(event.TransitionBlockedEvent))
	})

	out, err := f.engine.HandleBranchUpdate(context.Background(), trigger(f, "requirements"))
	require.NoError(t, err)

	assert.True(t, out.Blocked)
	assert.False(t, out.Merged)
	prs := f.store.PullRequests(f.repo)
	require.Len(t, prs, 1)
	assert.True(t, prs[0].Open)
	require.Len(t, blocked, 1)
	assert.Equal(t, out.PRNumber, blocked[0].PRNumber)
}

func TestGeneratorFailureAbortsWithoutCommit(t *testing.T) {
	f := newFixture(t)
	f.seedCompleteRequirements(t)
	f.generator.err = errors.ErrGeneratorFailure

	_, err := f.engine.HandleBranchUpdate(context.Background(), trigger(f, "requirements"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrGeneratorFailure))

	_, err = f.store.ReadFile(context.Background(), f.repo, "analysis", artifact.AnalysisDoc)
	assert.True(t, errors.Is(err, errors.ErrNotFound), "no partial commit on generator failure")
	assert.Empty(t, f.store.PullRequests(f.repo))
}

func TestReviewerFailureKeepsRecordedPR(t *testing.T) {
	f := newFixture(t)
	f.seedCompleteRequirements(t)
	f.reviewer.err = errors.ErrReviewerFailure

	out, err := f.engine.HandleBranchUpdate(context.Background(), trigger(f, "requirements"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrReviewerFailure))
	require.NotNil(t, out, "the opened PR number is recorded before review")
	assert.Greater(t, out.PRNumber, 0)
}

func TestTerminalStageNoGeneration(t *testing.T) {
	f := newFixture(t)
	f.store.Seed(f.repo, "deployment", artifact.DeploymentDoc, []byte("# Deployment\n"))

	out, err := f.engine.HandleBranchUpdate(context.Background(), trigger(f, "deployment"))
	require.NoError(t, err)
	assert.True(t, out.Terminal)
	assert.Equal(t, int32(0), f.generator.calls.Load())
	assert.Equal(t, -1, out.PRNumber)
}

func TestPopulatingTerminalStageSkipsPR(t *testing.T) {
	f := newFixture(t)
	f.store.Seed(f.repo, "validation", artifact.ValidationReportDoc, []byte("# Validation\n"))
	f.store.Seed(f.repo, "validation", artifact.FeedbackDoc,
		[]byte("- loved onboarding\n- price too high\n- wants exports\n"))

	out, err := f.engine.HandleBranchUpdate(context.Background(), trigger(f, "validation"))
	require.NoError(t, err)

	assert.True(t, out.Verdict.Complete)
	assert.Positive(t, out.GeneratedFiles)
	assert.Equal(t, -1, out.PRNumber, "deployment has no forward branch to PR into")
	assert.Equal(t, int32(0), f.reviewer.calls.Load())
	assert.Empty(t, f.store.PullRequests(f.repo))
}

func TestStageOrderEnforced(t *testing.T) {
	f := newFixture(t)
	// requirements is complete but analysis is not; a trigger on analysis
	// must not generate design content.
	f.seedCompleteRequirements(t)

	out, err := f.engine.HandleBranchUpdate(context.Background(), trigger(f, "analysis"))
	require.NoError(t, err)
	assert.False(t, out.Verdict.Complete)
	assert.Equal(t, int32(0), f.generator.calls.Load())

	_, err = f.store.ReadFile(context.Background(), f.repo, "design", artifact.DesignDoc)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func (f *fixture) seedCompleteImplementation(t *testing.T) {
	t.Helper()
	f.store.Seed(f.repo, "implementation/active", "src/main.go", []byte("package main\n"))
	f.store.Seed(f.repo, "implementation/active", "tests/main_test.go", []byte("package main\n"))
}

func (f *fixture) recordPromotionDecision(t *testing.T, chosen string) {
	t.Helper()
	lg := ledger.New(f.store, f.bus, nil, config.Default().Ledger)
	_, err := lg.Record(context.Background(), ledger.RecordRequest{
		IdeaID: "idea-1", Repo: f.repo, Branch: "implementation/active",
		Proposed: ledger.Decision{
			Name:               PromotionDecision,
			Type:               ledger.FeatureScope,
			Alternatives:       []string{"stable", "hold"},
			Chosen:             chosen,
			Reason:             "release readiness call",
			Confidence:         0.9,
			RevisitProbability: 0.1,
		},
	})
	require.NoError(t, err)
}

func TestPromotionIncompleteActiveHalts(t *testing.T) {
	f := newFixture(t)

	out, err := f.engine.PromoteImplementation(context.Background(), trigger(f, "implementation/active"))
	require.NoError(t, err)
	assert.False(t, out.Verdict.Complete)
	assert.Equal(t, -1, out.PRNumber)
	assert.Equal(t, int32(0), f.reviewer.calls.Load())
	assert.Empty(t, f.store.PullRequests(f.repo))
}

func TestPromotionBlockedWithoutDecision(t *testing.T) {
	f := newFixture(t)
	f.seedCompleteImplementation(t)

	out, err := f.engine.PromoteImplementation(context.Background(), trigger(f, "implementation/active"))
	require.NoError(t, err)

	assert.True(t, out.Verdict.Complete)
	assert.True(t, out.Blocked, "promotion without a gating decision is blocked, not an error")
	assert.False(t, out.Merged)
	assert.Equal(t, -1, out.PRNumber)
	assert.Empty(t, f.store.PullRequests(f.repo))
}

func TestPromotionBlockedByContraryDecision(t *testing.T) {
	f := newFixture(t)
	f.seedCompleteImplementation(t)
	f.recordPromotionDecision(t, "hold")

	out, err := f.engine.PromoteImplementation(context.Background(), trigger(f, "implementation/active"))
	require.NoError(t, err)
	assert.True(t, out.Blocked)
	assert.Empty(t, f.store.PullRequests(f.repo))
}

func TestPromotionMergesWithDecision(t *testing.T) {
	f := newFixture(t)
	f.seedCompleteImplementation(t)
	f.recordPromotionDecision(t, PromotionChoice)

	out, err := f.engine.PromoteImplementation(context.Background(), trigger(f, "implementation/active"))
	require.NoError(t, err)

	assert.True(t, out.Merged)
	assert.False(t, out.Blocked)

	prs := f.store.PullRequests(f.repo)
	require.Len(t, prs, 1)
	assert.Equal(t, "implementation/active", prs[0].Head)
	assert.Equal(t, "implementation/stable", prs[0].Base)
	assert.False(t, prs[0].Open)

	// The stable branch now carries the promoted sources.
	file, err := f.store.ReadFile(context.Background(), f.repo, "implementation/stable", "src/main.go")
	require.NoError(t, err)
	assert.Equal(t, "package main\n", string(file.Data))
}

func TestUnknownBranchRejected(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.HandleBranchUpdate(context.Background(), trigger(f, "refs/heads/feature/foo"))
	require.Error(t, err)
}
