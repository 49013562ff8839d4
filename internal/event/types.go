// Package event defines the engine's domain events and a synchronous
// pub-sub bus for delivering them. Events cover decision ledger activity
// and stage-transition outcomes.
package event

import "time"

// Event type identifiers. Subscribe with these rather than repeating the
// literals.
const (
	TypeDecisionRecorded    = "decision.recorded"
	TypeDecisionReversed    = "decision.reversed"
	TypeDecisionReused      = "decision.reused"
	TypeStageEvaluated      = "stage.evaluated"
	TypeTransitionGenerated = "transition.generated"
	TypeTransitionOpened    = "transition.opened"
	TypeTransitionMerged    = "transition.merged"
	TypeTransitionBlocked   = "transition.blocked"
)

// Event is the interface all events implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g. "decision.recorded").
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events. Embed it in concrete
// event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Ledger Events
// -----------------------------------------------------------------------------

// DecisionRecordedEvent is emitted when the ledger appends a new decision.
type DecisionRecordedEvent struct {
	baseEvent
	IdeaID   string
	Name     string // normalized decision name
	Chosen   string
	Branch   string // stage branch the record was committed to
	Reversal bool   // true when the record supersedes a prior decision
}

// NewDecisionRecordedEvent creates a DecisionRecordedEvent. Reversals use
// the "decision.reversed" type so subscribers can watch them separately.
func NewDecisionRecordedEvent(ideaID, name, chosen, branch string, reversal bool) DecisionRecordedEvent {
	eventType := TypeDecisionRecorded
	if reversal {
		eventType = TypeDecisionReversed
	}
	return DecisionRecordedEvent{
		baseEvent: newBaseEvent(eventType),
		IdeaID:    ideaID,
		Name:      name,
		Chosen:    chosen,
		Branch:    branch,
		Reversal:  reversal,
	}
}

// DecisionReusedEvent is emitted when a recording request was answered
// with an existing decision instead of a new commit.
type DecisionReusedEvent struct {
	baseEvent
	IdeaID string
	Name   string
	Chosen string
}

// NewDecisionReusedEvent creates a DecisionReusedEvent.
func NewDecisionReusedEvent(ideaID, name, chosen string) DecisionReusedEvent {
	return DecisionReusedEvent{
		baseEvent: newBaseEvent(TypeDecisionReused),
		IdeaID:    ideaID,
		Name:      name,
		Chosen:    chosen,
	}
}

// -----------------------------------------------------------------------------
// Stage Events
// -----------------------------------------------------------------------------

// StageEvaluatedEvent is emitted after a completeness evaluation.
type StageEvaluatedEvent struct {
	baseEvent
	IdeaID   string
	Stage    string
	Complete bool
	Reason   string
}

// NewStageEvaluatedEvent creates a StageEvaluatedEvent.
func NewStageEvaluatedEvent(ideaID, stage string, complete bool, reason string) StageEvaluatedEvent {
	return StageEvaluatedEvent{
		baseEvent: newBaseEvent(TypeStageEvaluated),
		IdeaID:    ideaID,
		Stage:     stage,
		Complete:  complete,
		Reason:    reason,
	}
}

// TransitionGeneratedEvent is emitted when the content generator produced
// a candidate artifact set for the next stage.
type TransitionGeneratedEvent struct {
	baseEvent
	IdeaID    string
	FromStage string
	ToStage   string
	FileCount int
	Decisions int // proposed decisions embedded in the generated content
}

// NewTransitionGeneratedEvent creates a TransitionGeneratedEvent.
func NewTransitionGeneratedEvent(ideaID, from, to string, files, decisions int) TransitionGeneratedEvent {
	return TransitionGeneratedEvent{
		baseEvent: newBaseEvent(TypeTransitionGenerated),
		IdeaID:    ideaID,
		FromStage: from,
		ToStage:   to,
		FileCount: files,
		Decisions: decisions,
	}
}

// TransitionOpenedEvent is emitted when a transition pull request exists
// (newly opened or found already open from a duplicate trigger).
type TransitionOpenedEvent struct {
	baseEvent
	IdeaID   string
	Head     string
	Base     string
	PRNumber int
	Reused   bool // an open PR for this transition already existed
}

// NewTransitionOpenedEvent creates a TransitionOpenedEvent.
func NewTransitionOpenedEvent(ideaID, head, base string, number int, reused bool) TransitionOpenedEvent {
	return TransitionOpenedEvent{
		baseEvent: newBaseEvent(TypeTransitionOpened),
		IdeaID:    ideaID,
		Head:      head,
		Base:      base,
		PRNumber:  number,
		Reused:    reused,
	}
}

// TransitionMergedEvent is emitted when a transition PR was merged.
type TransitionMergedEvent struct {
	baseEvent
	IdeaID     string
	PRNumber   int
	Confidence float64
}

// NewTransitionMergedEvent creates a TransitionMergedEvent.
func NewTransitionMergedEvent(ideaID string, number int, confidence float64) TransitionMergedEvent {
	return TransitionMergedEvent{
		baseEvent:  newBaseEvent(TypeTransitionMerged),
		IdeaID:     ideaID,
		PRNumber:   number,
		Confidence: confidence,
	}
}

// TransitionBlockedEvent is emitted when review did not clear the merge
// threshold and the PR was left open for manual resolution. This is a
// normal terminal outcome of one invocation, not a failure.
type TransitionBlockedEvent struct {
	baseEvent
	IdeaID     string
	PRNumber   int
	Approved   bool
	Confidence float64
	Notes      string
}

// NewTransitionBlockedEvent creates a TransitionBlockedEvent.
func NewTransitionBlockedEvent(ideaID string, number int, approved bool, confidence float64, notes string) TransitionBlockedEvent {
	return TransitionBlockedEvent{
		baseEvent:  newBaseEvent(TypeTransitionBlocked),
		IdeaID:     ideaID,
		PRNumber:   number,
		Approved:   approved,
		Confidence: confidence,
		Notes:      notes,
	}
}
