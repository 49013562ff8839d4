package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/stagecraft/stagecraft/internal/artifact"
	"github.com/stagecraft/stagecraft/internal/config"
	"github.com/stagecraft/stagecraft/internal/errors"
	"github.com/stagecraft/stagecraft/internal/event"
	"github.com/stagecraft/stagecraft/internal/idea"
	"github.com/stagecraft/stagecraft/internal/logging"
	"github.com/stagecraft/stagecraft/internal/stage"
	"github.com/stagecraft/stagecraft/internal/store"
)

// Ledger records decisions into per-branch append-only logs and answers
// whether a decision with a given name already exists. Concurrent Record
// calls for the same (idea, name) are serialized in-process; cross-process
// writers are caught by the store's compare-and-append precondition.
type Ledger struct {
	store store.VersionedStore
	bus   *event.Bus
	log   *logging.Logger
	cfg   config.LedgerConfig

	mu   sync.Mutex
	keys map[string]*sync.Mutex
}

// New builds a Ledger on a versioned store. bus may be nil when no one
// listens for decision events.
func New(vs store.VersionedStore, bus *event.Bus, log *logging.Logger, cfg config.LedgerConfig) *Ledger {
	if log == nil {
		log = logging.NopLogger()
	}
	return &Ledger{
		store: vs,
		bus:   bus,
		log:   log.WithComponent("ledger"),
		cfg:   cfg,
		keys:  make(map[string]*sync.Mutex),
	}
}

// RecordRequest is one proposed decision to reconcile against the log.
type RecordRequest struct {
	IdeaID string
	Repo   idea.Repository
	// Branch is the stage branch a new record would be appended to.
	Branch   string
	Proposed Decision
	// Blocked asserts that a dependent goal is blocked on this decision.
	// Without it a high revisit probability alone never reverses an
	// existing record.
	Blocked bool
}

// RecordResult reports what Record did. Exactly one of WasNew and Reused
// is set.
type RecordResult struct {
	Decision *Decision
	WasNew   bool
	Reused   bool
}

// Record reconciles a proposed decision against the existing logs.
//
// When no active record exists for the name, the proposal is appended to
// the target branch as one commit. When one exists with revisit
// probability below the configured threshold, it is returned unchanged and
// the proposal is discarded. At or above the threshold, a reversal is
// appended only when the caller asserts a blocking condition; otherwise
// the existing record is still returned unchanged.
//
// A conflicting concurrent append triggers a fresh lookup and bounded
// retries; exhaustion surfaces the conflict to the caller.
func (l *Ledger) Record(ctx context.Context, req RecordRequest) (RecordResult, error) {
	if err := req.Proposed.Validate(); err != nil {
		return RecordResult{}, err
	}
	name := NormalizeName(req.Proposed.Name)

	key := l.keyFor(req.IdeaID, name)
	key.Lock()
	defer key.Unlock()

	var lastErr error
	for attempt := 0; attempt <= l.cfg.MaxWriteRetries; attempt++ {
		res, err := l.recordOnce(ctx, req, name)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, errors.ErrConflictingWrite) {
			return RecordResult{}, err
		}
		lastErr = err
		l.log.Warn("decision append conflicted, retrying",
			"decision", name, "attempt", attempt+1)
	}
	return RecordResult{}, errors.NewLedgerError("append retries exhausted", lastErr).
		WithIdea(req.IdeaID).WithDecision(name).WithBranch(req.Branch)
}

func (l *Ledger) recordOnce(ctx context.Context, req RecordRequest, name string) (RecordResult, error) {
	existing, snap, err := l.observe(ctx, req.Repo, req.Branch, name)
	if err != nil {
		return RecordResult{}, err
	}

	if existing != nil {
		revisit := existing.RevisitProbability >= l.cfg.RevisitThreshold && req.Blocked
		if !revisit {
			l.log.Debug("decision reused", "decision", name, "chosen", existing.Chosen)
			l.publish(event.NewDecisionReusedEvent(req.IdeaID, name, existing.Chosen))
			return RecordResult{Decision: existing, Reused: true}, nil
		}
	}

	rec := req.Proposed
	rec.Name = name
	if existing != nil {
		rec.ReversalOf = existing.Locator()
	}
	if err := l.appendAt(ctx, req.Repo, req.Branch, snap, &rec); err != nil {
		return RecordResult{}, err
	}

	l.log.Info("decision recorded",
		"decision", name, "chosen", rec.Chosen, "branch", req.Branch,
		"reversal", rec.IsReversal())
	l.publish(event.NewDecisionRecordedEvent(req.IdeaID, name, rec.Chosen, req.Branch, rec.IsReversal()))
	return RecordResult{Decision: &rec, WasNew: true}, nil
}

// Find returns the active record for a normalized name, or nil when no
// decision with that name has been made.
func (l *Ledger) Find(ctx context.Context, repo idea.Repository, name string) (*Decision, error) {
	return l.findActive(ctx, repo, NormalizeName(name))
}

// Active returns every active decision across the idea's stage branches,
// in stage order then log order.
func (l *Ledger) Active(ctx context.Context, repo idea.Repository) ([]*Decision, error) {
	all, err := l.History(ctx, repo)
	if err != nil {
		return nil, err
	}
	active := make(map[string]*Decision)
	var order []string
	for _, d := range all {
		cur, seen := active[d.Name]
		if !seen {
			order = append(order, d.Name)
		}
		resolved, err := resolveActive(cur, d)
		if err != nil {
			return nil, err
		}
		active[d.Name] = resolved
	}
	out := make([]*Decision, 0, len(order))
	for _, n := range order {
		out = append(out, active[n])
	}
	return out, nil
}

// History returns every decision record across the idea's stage branches,
// reversals included, in stage order then log order.
func (l *Ledger) History(ctx context.Context, repo idea.Repository) ([]*Decision, error) {
	var out []*Decision
	for _, branch := range stage.AllBranches() {
		recs, err := l.readLog(ctx, repo, branch)
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
	}
	return out, nil
}

// logSnapshot is one branch's decision log as observed during a lookup.
// Its blob SHA is the compare-and-append precondition for the write that
// follows, tying the write to the lookup that justified it.
type logSnapshot struct {
	data    []byte
	sha     string
	records int
}

// findActive scans all stage branch logs for records of one name and
// resolves which is active. Two unreversed records for the same name mean
// the append serialization failed somewhere; that is surfaced loudly, not
// resolved.
func (l *Ledger) findActive(ctx context.Context, repo idea.Repository, name string) (*Decision, error) {
	active, _, err := l.observe(ctx, repo, "", name)
	return active, err
}

// observe is findActive plus a snapshot of the target branch's log, taken
// from the same read the scan used. A record that lands on the target
// branch after observe returns moves the blob SHA and fails the
// subsequent appendAt instead of being silently overwritten or
// duplicated.
func (l *Ledger) observe(ctx context.Context, repo idea.Repository, target, name string) (*Decision, logSnapshot, error) {
	var snap logSnapshot
	var active *Decision
	captured := false
	for _, branch := range stage.AllBranches() {
		data, sha, recs, err := l.readLogRaw(ctx, repo, branch)
		if err != nil {
			return nil, snap, err
		}
		if branch == target {
			snap = logSnapshot{data: data, sha: sha, records: len(recs)}
			captured = true
		}
		for _, rec := range recs {
			if rec.Name != name {
				continue
			}
			active, err = resolveActive(active, rec)
			if err != nil {
				return nil, snap, err
			}
		}
	}
	if target != "" && !captured {
		data, sha, recs, err := l.readLogRaw(ctx, repo, target)
		if err != nil {
			return nil, snap, err
		}
		snap = logSnapshot{data: data, sha: sha, records: len(recs)}
	}
	return active, snap, nil
}

// resolveActive folds one record into the running active record for its
// name, scanning in stage order then log order. Reversals supersede
// everything before them. A non-reversal record restating the active
// choice is a merge-propagated copy of an upstream record, not a
// conflict: transition merges carry the whole log forward, so the same
// record shows up on every downstream branch. Two unreversed records
// that disagree mean the append serialization failed somewhere; that is
// surfaced loudly, not resolved.
func resolveActive(active, rec *Decision) (*Decision, error) {
	switch {
	case rec.IsReversal():
		return rec, nil
	case active == nil:
		return rec, nil
	case active.IsReversal():
		// Copy of a record the reversal already superseded.
		return active, nil
	case rec.Chosen == active.Chosen:
		return active, nil
	default:
		return nil, errors.NewLedgerError(
			fmt.Sprintf("two active records: %s and %s", active.Locator(), rec.Locator()),
			errors.ErrInvariantViolation,
		).WithDecision(rec.Name)
	}
}

// readLog parses one branch's decision log. Absent branch or absent log
// both mean "no records", not an error.
func (l *Ledger) readLog(ctx context.Context, repo idea.Repository, branch string) ([]*Decision, error) {
	_, _, recs, err := l.readLogRaw(ctx, repo, branch)
	return recs, err
}

func (l *Ledger) readLogRaw(ctx context.Context, repo idea.Repository, branch string) ([]byte, string, []*Decision, error) {
	f, err := l.store.ReadFile(ctx, repo, branch, artifact.DecisionLog)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, "", nil, nil
		}
		return nil, "", nil, err
	}
	recs, err := ParseLog(f.Data)
	if err != nil {
		return nil, "", nil, errors.NewLedgerError("parsing "+branch+" log", err).WithBranch(branch)
	}
	for i, rec := range recs {
		rec.Branch = branch
		rec.ordinal = i + 1
	}
	return f.Data, f.SHA, recs, nil
}

// appendAt writes the record as exactly one compare-and-append commit
// against the snapshot from the lookup. Any append that landed after the
// lookup, in this process or another, surfaces as ErrConflictingWrite
// and sends Record back through a fresh lookup.
func (l *Ledger) appendAt(ctx context.Context, repo idea.Repository, branch string, snap logSnapshot, rec *Decision) error {
	sha, err := l.store.WriteFile(ctx, repo, branch, artifact.DecisionLog,
		AppendRecord(snap.data, rec), commitMessage(rec), snap.sha)
	if err != nil {
		return err
	}
	rec.Branch = branch
	rec.CommitSHA = sha
	rec.ordinal = snap.records + 1
	return nil
}

func commitMessage(rec *Decision) string {
	if rec.IsReversal() {
		return fmt.Sprintf("decision: reverse %s -> %s", rec.Name, rec.Chosen)
	}
	return fmt.Sprintf("decision: %s -> %s", rec.Name, rec.Chosen)
}

func (l *Ledger) keyFor(ideaID, name string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := ideaID + "/" + name
	m, ok := l.keys[k]
	if !ok {
		m = &sync.Mutex{}
		l.keys[k] = m
	}
	return m
}

func (l *Ledger) publish(e event.Event) {
	if l.bus != nil {
		l.bus.Publish(e)
	}
}

// Locator identifies a record by branch and position in that branch's
// log. It is what a reversal's "Reversal Of" field carries.
func (d *Decision) Locator() string {
	if d.Branch == "" {
		return d.Name
	}
	return fmt.Sprintf("%s#%d", d.Branch, d.ordinal)
}
