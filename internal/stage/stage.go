// Package stage defines the fixed waterfall stage sequence an idea moves
// through, and the mapping between stages and branches in the versioned
// store. Stages are totally ordered; every stage except deployment has a
// deterministic successor.
package stage

import (
	"fmt"
	"strings"
)

// Name identifies one of the seven waterfall stages.
type Name string

const (
	Requirements   Name = "requirements"
	Analysis       Name = "analysis"
	Design         Name = "design"
	Implementation Name = "implementation"
	Testing        Name = "testing"
	Validation     Name = "validation"
	Deployment     Name = "deployment"
)

// Substage distinguishes the two implementation sub-branches. It is empty
// for every other stage.
type Substage string

const (
	// SubstageNone is the substage for all non-implementation stages.
	SubstageNone Substage = ""
	// SubstageActive is the implementation sub-branch that accepts new
	// decisions and commits.
	SubstageActive Substage = "active"
	// SubstageStable is the implementation sub-branch populated only by
	// decision-gated promotion from active.
	SubstageStable Substage = "stable"
)

// Stage is a tagged variant: a stage name plus, for implementation only,
// the active/stable substage. Modeling the pair explicitly keeps the
// ordering and successor functions total instead of string-splitting
// branch names at every call site.
type Stage struct {
	Name     Name
	Substage Substage
}

// Simple returns the Stage for a non-implementation stage name.
func Simple(n Name) Stage {
	return Stage{Name: n}
}

// ImplementationActive is the implementation stage's active sub-stage.
func ImplementationActive() Stage {
	return Stage{Name: Implementation, Substage: SubstageActive}
}

// ImplementationStable is the implementation stage's stable sub-stage.
func ImplementationStable() Stage {
	return Stage{Name: Implementation, Substage: SubstageStable}
}

// ordered is the canonical forward sequence. Implementation appears as its
// active sub-stage: that is the branch that receives generated content and
// new decisions. The stable sub-stage sits beside active and is reached by
// promotion, not by the successor function.
var ordered = []Stage{
	Simple(Requirements),
	Simple(Analysis),
	Simple(Design),
	ImplementationActive(),
	Simple(Testing),
	Simple(Validation),
	Simple(Deployment),
}

// All returns the forward stage sequence, requirements through deployment.
// The returned slice is a copy and safe to mutate.
func All() []Stage {
	out := make([]Stage, len(ordered))
	copy(out, ordered)
	return out
}

// AllBranches returns every stage branch name, including both
// implementation sub-branches.
func AllBranches() []string {
	out := make([]string, 0, len(ordered)+1)
	for _, s := range ordered {
		out = append(out, s.BranchName())
	}
	out = append(out, ImplementationStable().BranchName())
	return out
}

// ordinal returns the position of the stage's name in the forward order.
func (s Stage) ordinal() int {
	switch s.Name {
	case Requirements:
		return 0
	case Analysis:
		return 1
	case Design:
		return 2
	case Implementation:
		return 3
	case Testing:
		return 4
	case Validation:
		return 5
	case Deployment:
		return 6
	default:
		return -1
	}
}

// Valid reports whether the stage is a well-formed member of the sequence.
// Implementation requires a substage; no other stage may carry one.
func (s Stage) Valid() bool {
	if s.ordinal() < 0 {
		return false
	}
	if s.Name == Implementation {
		return s.Substage == SubstageActive || s.Substage == SubstageStable
	}
	return s.Substage == SubstageNone
}

// Before reports whether s precedes other in the stage order. Within the
// implementation stage, active precedes stable.
func (s Stage) Before(other Stage) bool {
	if s.ordinal() != other.ordinal() {
		return s.ordinal() < other.ordinal()
	}
	return s.Substage == SubstageActive && other.Substage == SubstageStable
}

// Successor returns the next stage in the forward order. ok is false for
// deployment, the terminal stage. The successor of both implementation
// sub-stages is testing; promotion from active to stable is a
// decision-gated side step handled by the ledger, not a forward
// transition.
func (s Stage) Successor() (Stage, bool) {
	ord := s.ordinal()
	if ord < 0 || ord+1 >= len(ordered) {
		return Stage{}, false
	}
	return ordered[ord+1], true
}

// Terminal reports whether the stage has no successor.
func (s Stage) Terminal() bool {
	_, ok := s.Successor()
	return !ok
}

// BranchName returns the store branch this stage lives on.
// Implementation sub-stages map to "implementation/active" and
// "implementation/stable"; every other stage maps to its plain name.
func (s Stage) BranchName() string {
	if s.Name == Implementation {
		return fmt.Sprintf("%s/%s", Implementation, s.Substage)
	}
	return string(s.Name)
}

// String returns the branch-name form of the stage.
func (s Stage) String() string {
	return s.BranchName()
}

// ParseBranch maps a branch name (or a fully qualified ref such as
// "refs/heads/analysis") back to its stage. A bare "implementation"
// branch resolves to the active sub-stage, the only implementation
// branch that accepts new work.
func ParseBranch(branch string) (Stage, error) {
	name := strings.TrimPrefix(branch, "refs/heads/")
	name = strings.TrimSuffix(name, "/")

	if rest, ok := strings.CutPrefix(name, string(Implementation)+"/"); ok {
		switch Substage(rest) {
		case SubstageActive:
			return ImplementationActive(), nil
		case SubstageStable:
			return ImplementationStable(), nil
		default:
			return Stage{}, fmt.Errorf("unknown implementation substage %q", rest)
		}
	}

	if name == string(Implementation) {
		return ImplementationActive(), nil
	}

	s := Simple(Name(name))
	if !s.Valid() {
		return Stage{}, fmt.Errorf("branch %q does not map to a stage", branch)
	}
	return s, nil
}
