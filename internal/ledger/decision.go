// Package ledger keeps the per-idea decision log: an append-only record of
// every substantive choice, at most one active record per decision name,
// with reversals appended rather than edits made in place.
package ledger

import (
	"strings"

	"github.com/stagecraft/stagecraft/internal/errors"
)

// Type categorizes a decision.
type Type string

const (
	TechnologyChoice     Type = "technology-choice"
	Architecture         Type = "architecture"
	FeatureScope         Type = "feature-scope"
	BusinessModel        Type = "business-model"
	ResourceAllocation   Type = "resource-allocation"
	AssumptionValidation Type = "assumption-validation"
	GoalPrioritization   Type = "goal-prioritization"
)

// Types returns all valid decision types.
func Types() []Type {
	return []Type{
		TechnologyChoice,
		Architecture,
		FeatureScope,
		BusinessModel,
		ResourceAllocation,
		AssumptionValidation,
		GoalPrioritization,
	}
}

// Valid reports whether t is a known decision type.
func (t Type) Valid() bool {
	for _, known := range Types() {
		if t == known {
			return true
		}
	}
	return false
}

// Decision is one record in the log. Records are immutable once appended;
// a change of mind is a new record with ReversalOf pointing at the old
// one.
type Decision struct {
	// Name is the normalized unique name, scoped per idea.
	Name string
	Type Type
	// Alternatives preserves the order the options were considered in.
	Alternatives []string
	Chosen       string
	Reason       string
	Confidence   float64
	// RevisitProbability grades how likely this decision is to need
	// revisiting. Only decisions at or above the configured threshold
	// may be reversed, and then only under a blocking condition.
	RevisitProbability float64
	// Context is optional free text carried on the record.
	Context string
	// ReversalOf names the superseded record's commit SHA when this
	// record is a reversal.
	ReversalOf string

	// Branch is the stage branch whose log holds the record. Filled on
	// read and on a successful append.
	Branch string
	// CommitSHA is the commit that appended the record. Filled the same
	// way as Branch.
	CommitSHA string

	// ordinal is the record's 1-based position in its branch log.
	ordinal int
}

// IsReversal reports whether the record supersedes an earlier one.
func (d *Decision) IsReversal() bool {
	return d.ReversalOf != ""
}

// NormalizeName canonicalizes a decision name: lowercased, runs of
// non-alphanumeric characters collapse to single hyphens, leading and
// trailing hyphens dropped. "Use Database?" and "use-database" are the
// same decision.
func NormalizeName(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// Validate checks the fields a proposed decision must carry before it can
// be recorded.
func (d *Decision) Validate() error {
	if NormalizeName(d.Name) == "" {
		return errors.NewValidationError("decision name is empty")
	}
	if !d.Type.Valid() {
		return errors.NewValidationError("unknown decision type: " + string(d.Type))
	}
	if d.Chosen == "" {
		return errors.NewValidationError("decision has no chosen alternative")
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		return errors.NewValidationError("confidence out of range [0,1]")
	}
	if d.RevisitProbability < 0 || d.RevisitProbability > 1 {
		return errors.NewValidationError("revisit probability out of range [0,1]")
	}
	return nil
}
