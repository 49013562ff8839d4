// Package engine drives stage progression. One invocation per
// branch-update trigger: evaluate the stage, and when complete, generate
// successor content, reconcile its decisions through the ledger, commit,
// open the transition pull request, review, and merge or leave blocked.
package engine

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/singleflight"

	"github.com/stagecraft/stagecraft/internal/artifact"
	"github.com/stagecraft/stagecraft/internal/completeness"
	"github.com/stagecraft/stagecraft/internal/config"
	"github.com/stagecraft/stagecraft/internal/errors"
	"github.com/stagecraft/stagecraft/internal/event"
	"github.com/stagecraft/stagecraft/internal/generate"
	"github.com/stagecraft/stagecraft/internal/idea"
	"github.com/stagecraft/stagecraft/internal/ledger"
	"github.com/stagecraft/stagecraft/internal/logging"
	"github.com/stagecraft/stagecraft/internal/review"
	"github.com/stagecraft/stagecraft/internal/stage"
	"github.com/stagecraft/stagecraft/internal/store"
)

// Trigger is one branch-update notification. Delivery is at-least-once;
// duplicate triggers for the same branch collapse onto the in-flight
// invocation and later redeliveries find their work already done.
type Trigger struct {
	// IdeaID tags events and ledger records. Defaults to the repository
	// address when empty.
	IdeaID    string
	Repo      idea.Repository
	BranchRef string
}

// Outcome reports what one invocation did. Incomplete stages and blocked
// reviews are normal outcomes, not errors.
type Outcome struct {
	Stage   stage.Stage
	Verdict completeness.Verdict

	// GeneratedFiles counts files committed to the successor branch.
	GeneratedFiles  int
	DecisionsNew    int
	DecisionsReused int

	// PRNumber is the transition pull request, -1 when none was opened
	// (incomplete stage or terminal stage).
	PRNumber int
	PRReused bool
	Merged   bool
	// Blocked is set when review did not clear the merge threshold and
	// the PR was left open for manual resolution.
	Blocked bool
	// Terminal is set when the stage has no successor.
	Terminal bool
	// Collapsed is set on callers whose trigger joined an invocation
	// already in flight.
	Collapsed bool
}

// Engine is the stage progression state machine.
type Engine struct {
	store     store.VersionedStore
	ledger    *ledger.Ledger
	registry  *completeness.Registry
	generator generate.ContentGenerator
	reviewer  review.Reviewer
	bus       *event.Bus
	log       *logging.Logger
	cfg       *config.Config

	flight singleflight.Group
}

// New wires an engine. bus may be nil.
func New(
	vs store.VersionedStore,
	lg *ledger.Ledger,
	registry *completeness.Registry,
	generator generate.ContentGenerator,
	reviewer review.Reviewer,
	bus *event.Bus,
	log *logging.Logger,
	cfg *config.Config,
) *Engine {
	if log == nil {
		log = logging.NopLogger()
	}
	return &Engine{
		store:     vs,
		ledger:    lg,
		registry:  registry,
		generator: generator,
		reviewer:  reviewer,
		bus:       bus,
		log:       log.WithComponent("engine"),
		cfg:       cfg,
	}
}

// HandleBranchUpdate processes one trigger. Concurrent triggers for the
// same (repo, branch) share a single invocation; everything else runs
// concurrently. Adapter, generator and reviewer errors abort the
// invocation and bubble unmodified; the engine performs no retries.
func (e *Engine) HandleBranchUpdate(ctx context.Context, trig Trigger) (*Outcome, error) {
	s, err := stage.ParseBranch(trig.BranchRef)
	if err != nil {
		return nil, err
	}
	if trig.IdeaID == "" {
		trig.IdeaID = trig.Repo.Address()
	}

	key := trig.Repo.Address() + "@" + s.BranchName()
	v, err, shared := e.flight.Do(key, func() (any, error) {
		return e.process(ctx, trig, s)
	})
	var out *Outcome
	if v != nil {
		if o, ok := v.(*Outcome); ok && o != nil {
			copied := *o
			copied.Collapsed = shared
			out = &copied
		}
	}
	return out, err
}

func (e *Engine) process(ctx context.Context, trig Trigger, s stage.Stage) (*Outcome, error) {
	log := e.log.WithIdea(trig.IdeaID).WithStage(s.BranchName())
	out := &Outcome{Stage: s, PRNumber: -1}

	set, err := artifact.Load(ctx, e.store, trig.Repo, s)
	if err != nil {
		return nil, err
	}

	out.Verdict = e.registry.Evaluate(ctx, set)
	e.publish(event.NewStageEvaluatedEvent(trig.IdeaID, s.BranchName(), out.Verdict.Complete, out.Verdict.Reason))
	if !out.Verdict.Complete {
		log.Info("stage incomplete", "reason", out.Verdict.Reason)
		return out, nil
	}

	succ, ok := s.Successor()
	if !ok {
		out.Terminal = true
		log.Info("terminal stage complete")
		return out, nil
	}

	result, err := e.generateContent(ctx, s, succ, set)
	if err != nil {
		return nil, err
	}
	e.publish(event.NewTransitionGeneratedEvent(trig.IdeaID, s.BranchName(), succ.BranchName(),
		len(result.Files), len(result.Decisions)))

	if err := e.ensureBranch(ctx, trig.Repo, s, succ); err != nil {
		return nil, err
	}

	out.DecisionsNew, out.DecisionsReused, err = e.reconcileDecisions(ctx, trig, succ, result.Decisions)
	if err != nil {
		return nil, err
	}

	out.GeneratedFiles, err = e.commitFiles(ctx, trig.Repo, s, succ, result.Files)
	if err != nil {
		return nil, err
	}
	log.Info("successor content committed",
		"successor", succ.BranchName(), "files", out.GeneratedFiles,
		"decisions_new", out.DecisionsNew, "decisions_reused", out.DecisionsReused)

	base, ok := succ.Successor()
	if !ok {
		// Terminal successor: content lands by commit alone, there is no
		// forward branch for a transition PR.
		log.Info("populated terminal stage, no transition PR")
		return out, nil
	}

	pr, reused, err := e.ensurePullRequest(ctx, trig.Repo, s, succ, base)
	if err != nil {
		return nil, err
	}
	// The PR number is recorded before review so a cancelled review never
	// leaves an untracked open PR.
	out.PRNumber = pr.Number
	out.PRReused = reused
	e.publish(event.NewTransitionOpenedEvent(trig.IdeaID, pr.Head, pr.Base, pr.Number, reused))

	assessment, err := e.reviewPullRequest(ctx, trig.Repo, pr)
	if err != nil {
		return out, err
	}

	threshold := e.cfg.Review.MergeThreshold
	if assessment.Approved && assessment.Confidence > threshold {
		if err := e.store.MergePullRequest(ctx, trig.Repo, pr.Number, e.mergeMethod()); err != nil {
			return out, err
		}
		out.Merged = true
		log.Info("transition merged", "pr", pr.Number, "confidence", assessment.Confidence)
		e.publish(event.NewTransitionMergedEvent(trig.IdeaID, pr.Number, assessment.Confidence))
		return out, nil
	}

	out.Blocked = true
	log.Info("transition blocked, PR left open",
		"pr", pr.Number, "approved", assessment.Approved,
		"confidence", assessment.Confidence, "threshold", threshold)
	e.publish(event.NewTransitionBlockedEvent(trig.IdeaID, pr.Number,
		assessment.Approved, assessment.Confidence, assessment.Notes))
	return out, nil
}

// PromotionDecision is the ledger name gating implementation promotion.
// Promotion runs only while an active decision with this name chooses
// PromotionChoice.
const (
	PromotionDecision = "promote-implementation"
	PromotionChoice   = "stable"
)

// PromoteImplementation moves the active implementation branch's content
// onto the stable branch. The side step is gated twice: the active
// sub-stage must be complete, and the ledger must hold an active
// promotion decision. A missing or contrary decision blocks the
// promotion without error, like an unapproved review.
func (e *Engine) PromoteImplementation(ctx context.Context, trig Trigger) (*Outcome, error) {
	if trig.IdeaID == "" {
		trig.IdeaID = trig.Repo.Address()
	}
	stable := stage.ImplementationStable()

	key := trig.Repo.Address() + "@" + stable.BranchName()
	v, err, shared := e.flight.Do(key, func() (any, error) {
		return e.promote(ctx, trig, stage.ImplementationActive(), stable)
	})
	var out *Outcome
	if v != nil {
		if o, ok := v.(*Outcome); ok && o != nil {
			copied := *o
			copied.Collapsed = shared
			out = &copied
		}
	}
	return out, err
}

func (e *Engine) promote(ctx context.Context, trig Trigger, active, stable stage.Stage) (*Outcome, error) {
	log := e.log.WithIdea(trig.IdeaID).WithStage(active.BranchName())
	out := &Outcome{Stage: active, PRNumber: -1}

	set, err := artifact.Load(ctx, e.store, trig.Repo, active)
	if err != nil {
		return nil, err
	}
	out.Verdict = e.registry.Evaluate(ctx, set)
	e.publish(event.NewStageEvaluatedEvent(trig.IdeaID, active.BranchName(), out.Verdict.Complete, out.Verdict.Reason))
	if !out.Verdict.Complete {
		log.Info("active implementation incomplete", "reason", out.Verdict.Reason)
		return out, nil
	}

	gate, err := e.ledger.Find(ctx, trig.Repo, PromotionDecision)
	if err != nil {
		return nil, err
	}
	if gate == nil || gate.Chosen != PromotionChoice {
		out.Blocked = true
		log.Info("promotion not decided, active stays in place")
		e.publish(event.NewTransitionBlockedEvent(trig.IdeaID, -1, false, 0,
			"no active "+PromotionDecision+" decision choosing "+PromotionChoice))
		return out, nil
	}

	if err := e.ensureBranch(ctx, trig.Repo, active, stable); err != nil {
		return nil, err
	}

	pr, reused, err := e.ensurePullRequest(ctx, trig.Repo, active, active, stable)
	if err != nil {
		return nil, err
	}
	out.PRNumber = pr.Number
	out.PRReused = reused
	e.publish(event.NewTransitionOpenedEvent(trig.IdeaID, pr.Head, pr.Base, pr.Number, reused))

	assessment, err := e.reviewPullRequest(ctx, trig.Repo, pr)
	if err != nil {
		return out, err
	}
	threshold := e.cfg.Review.MergeThreshold
	if assessment.Approved && assessment.Confidence > threshold {
		if err := e.store.MergePullRequest(ctx, trig.Repo, pr.Number, e.mergeMethod()); err != nil {
			return out, err
		}
		out.Merged = true
		log.Info("implementation promoted", "pr", pr.Number, "confidence", assessment.Confidence)
		e.publish(event.NewTransitionMergedEvent(trig.IdeaID, pr.Number, assessment.Confidence))
		return out, nil
	}

	out.Blocked = true
	log.Info("promotion blocked, PR left open",
		"pr", pr.Number, "approved", assessment.Approved,
		"confidence", assessment.Confidence, "threshold", threshold)
	e.publish(event.NewTransitionBlockedEvent(trig.IdeaID, pr.Number,
		assessment.Approved, assessment.Confidence, assessment.Notes))
	return out, nil
}

func (e *Engine) generateContent(ctx context.Context, s, succ stage.Stage, set *artifact.Set) (*generate.Result, error) {
	gctx, cancel := context.WithTimeout(ctx, e.cfg.Engine.GenerationTimeout())
	defer cancel()
	return e.generator.Generate(gctx, generate.Request{
		Stage:     s.BranchName(),
		NextStage: succ.BranchName(),
		Artifacts: set.Files,
	})
}

// ensureBranch creates the successor branch from the current stage's head
// when it does not exist yet.
func (e *Engine) ensureBranch(ctx context.Context, repo idea.Repository, s, succ stage.Stage) error {
	_, err := e.store.GetBranchHead(ctx, repo, succ.BranchName())
	if err == nil {
		return nil
	}
	if !errors.Is(err, errors.ErrNotFound) {
		return err
	}
	head, err := e.store.GetBranchHead(ctx, repo, s.BranchName())
	if err != nil {
		return err
	}
	if err := e.store.CreateBranch(ctx, repo, succ.BranchName(), head); err != nil && !errors.Is(err, errors.ErrBranchExists) {
		return err
	}
	return nil
}

func (e *Engine) reconcileDecisions(ctx context.Context, trig Trigger, succ stage.Stage, proposed []generate.ProposedDecision) (newCount, reusedCount int, err error) {
	for _, p := range proposed {
		res, err := e.ledger.Record(ctx, ledger.RecordRequest{
			IdeaID: trig.IdeaID,
			Repo:   trig.Repo,
			Branch: succ.BranchName(),
			Proposed: ledger.Decision{
				Name:               p.Name,
				Type:               ledger.Type(p.Type),
				Alternatives:       p.Alternatives,
				Chosen:             p.Chosen,
				Reason:             p.Reason,
				Confidence:         p.Confidence,
				RevisitProbability: p.RevisitProbability,
				Context:            p.Context,
			},
			Blocked: p.Blocked,
		})
		if err != nil {
			return newCount, reusedCount, err
		}
		if res.WasNew {
			newCount++
		} else {
			reusedCount++
		}
	}
	return newCount, reusedCount, nil
}

// commitFiles writes the generated artifacts to the successor branch. The
// decision log path is skipped; only the ledger appends there. Paths are
// committed in sorted order so duplicate runs produce identical commit
// sequences.
func (e *Engine) commitFiles(ctx context.Context, repo idea.Repository, s, succ stage.Stage, files map[string][]byte) (int, error) {
	paths := make([]string, 0, len(files))
	for p := range files {
		if p == artifact.DecisionLog {
			continue
		}
		paths = append(paths, p)
	}
	sort.Strings(paths)

	message := fmt.Sprintf("stage: populate %s from %s", succ.BranchName(), s.BranchName())
	committed := 0
	for _, p := range paths {
		var parentSHA string
		existing, err := e.store.ReadFile(ctx, repo, succ.BranchName(), p)
		switch {
		case err == nil:
			parentSHA = existing.SHA
		case errors.Is(err, errors.ErrNotFound):
		default:
			return committed, err
		}
		if _, err := e.store.WriteFile(ctx, repo, succ.BranchName(), p, files[p], message, parentSHA); err != nil {
			return committed, err
		}
		committed++
	}
	return committed, nil
}

// ensurePullRequest reuses an already-open transition PR when a duplicate
// trigger arrives, otherwise opens one.
func (e *Engine) ensurePullRequest(ctx context.Context, repo idea.Repository, s, head, base stage.Stage) (*store.PullRequest, bool, error) {
	existing, err := e.store.FindOpenPullRequest(ctx, repo, head.BranchName(), base.BranchName())
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		return nil, false, err
	}
	if existing != nil {
		return existing, true, nil
	}

	title := fmt.Sprintf("Transition: %s -> %s", head.BranchName(), base.BranchName())
	body := fmt.Sprintf("Automated stage transition. %s is complete; this PR carries its generated content forward from %s.",
		s.BranchName(), head.BranchName())
	pr, err := e.store.OpenPullRequest(ctx, repo, head.BranchName(), base.BranchName(), title, body)
	if err != nil {
		return nil, false, err
	}
	return pr, false, nil
}

func (e *Engine) reviewPullRequest(ctx context.Context, repo idea.Repository, pr *store.PullRequest) (*review.Assessment, error) {
	rctx, cancel := context.WithTimeout(ctx, e.cfg.Engine.ReviewTimeout())
	defer cancel()
	return e.reviewer.Review(rctx, review.Request{
		Repo:     repo.Address(),
		PRNumber: pr.Number,
		Head:     pr.Head,
		Base:     pr.Base,
		Title:    pr.Title,
	})
}

func (e *Engine) mergeMethod() store.MergeMethod {
	if e.cfg.Review.MergeMethod == "commit" {
		return store.MergeCommit
	}
	return store.MergeSquash
}

func (e *Engine) publish(ev event.Event) {
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}
