// Package completeness holds the per-stage exit predicates. Each predicate
// is a pure function of the stage's artifact set: missing artifacts mean
// incomplete, malformed artifacts mean incomplete with the parse failure
// named, and neither is ever an error.
package completeness

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/stagecraft/stagecraft/internal/artifact"
	"github.com/stagecraft/stagecraft/internal/config"
	"github.com/stagecraft/stagecraft/internal/stage"
)

// Verdict is the outcome of one evaluation. Reason explains an incomplete
// verdict in terms of the specific failing criteria; Metrics carries the
// counts and fractions the predicate measured.
type Verdict struct {
	Complete bool
	Reason   string
	Metrics  map[string]float64
}

// Func evaluates one stage's artifact set.
type Func func(ctx context.Context, set *artifact.Set) Verdict

// Registry maps stages to their predicates. Stages can be added or
// overridden without touching the engine.
type Registry struct {
	mu    sync.RWMutex
	funcs map[stage.Stage]Func
}

// NewRegistry builds a registry with the built-in predicates for all seven
// stages, parameterized by the configured thresholds.
func NewRegistry(cfg config.CompletenessConfig) *Registry {
	r := &Registry{funcs: make(map[stage.Stage]Func)}
	r.Register(stage.Stage{Name: stage.Requirements}, requirements(cfg))
	r.Register(stage.Stage{Name: stage.Analysis}, analysis(cfg))
	r.Register(stage.Stage{Name: stage.Design}, design(cfg))
	r.Register(stage.ImplementationActive(), implementation())
	r.Register(stage.ImplementationStable(), implementation())
	r.Register(stage.Stage{Name: stage.Testing}, testingStage())
	r.Register(stage.Stage{Name: stage.Validation}, validation(cfg))
	r.Register(stage.Stage{Name: stage.Deployment}, deployment())
	return r
}

// Register installs or replaces the predicate for a stage.
func (r *Registry) Register(s stage.Stage, f Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[s] = f
}

// Lookup returns the predicate for a stage.
func (r *Registry) Lookup(s stage.Stage) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.funcs[s]
	return f, ok
}

// Evaluate runs the stage's predicate against the set. An unknown stage is
// incomplete with a reason, matching the missing-artifact policy.
func (r *Registry) Evaluate(ctx context.Context, set *artifact.Set) Verdict {
	f, ok := r.Lookup(set.Stage)
	if !ok {
		return incomplete("no completeness rule for stage "+set.Stage.BranchName(), nil)
	}
	return f(ctx, set)
}

func requirements(cfg config.CompletenessConfig) Func {
	return func(_ context.Context, set *artifact.Set) Verdict {
		metrics := map[string]float64{}

		doc := set.Content(artifact.RequirementsDoc)
		metrics["requirements_chars"] = float64(len(doc))
		if !set.Has(artifact.RequirementsDoc) {
			return incomplete(artifact.RequirementsDoc+" is missing", metrics)
		}
		if len(doc) < cfg.MinRequirementsChars {
			return incomplete(fmt.Sprintf("%s has %d chars, need at least %d",
				artifact.RequirementsDoc, len(doc), cfg.MinRequirementsChars), metrics)
		}

		if !set.Has(artifact.AssumptionsDoc) {
			return incomplete(artifact.AssumptionsDoc+" is missing", metrics)
		}
		assumptions, err := artifact.ParseAssumptions(set.Content(artifact.AssumptionsDoc))
		if err != nil {
			return incomplete(err.Error(), metrics)
		}
		metrics["assumptions"] = float64(len(assumptions))
		if len(assumptions) == 0 {
			return incomplete(artifact.AssumptionsDoc+" lists no assumptions", metrics)
		}

		if !set.Has(artifact.GoalsDoc) {
			return incomplete(artifact.GoalsDoc+" is missing", metrics)
		}

		critical, validated := 0, 0
		for _, a := range assumptions {
			if a.Criticality > cfg.CriticalAssumptionCutoff {
				critical++
				if a.Validated {
					validated++
				}
			}
		}
		metrics["critical_assumptions"] = float64(critical)
		metrics["validated_critical"] = float64(validated)
		// Zero critical assumptions satisfy the clause vacuously.
		fraction := 1.0
		if critical > 0 {
			fraction = float64(validated) / float64(critical)
		}
		metrics["validated_fraction"] = fraction
		if fraction < cfg.MinValidatedFraction {
			return incomplete(fmt.Sprintf(
				"only %d of %d critical assumptions validated (%.2f, need %.2f)",
				validated, critical, fraction, cfg.MinValidatedFraction), metrics)
		}
		return complete(metrics)
	}
}

func analysis(cfg config.CompletenessConfig) Func {
	return func(_ context.Context, set *artifact.Set) Verdict {
		metrics := map[string]float64{}

		unknowns := artifact.SectionBullets(set.Content(artifact.AnalysisDoc), "Unknowns")
		metrics["unknowns"] = float64(len(unknowns))
		if !set.Has(artifact.AnalysisDoc) {
			return incomplete(artifact.AnalysisDoc+" is missing", metrics)
		}
		if len(unknowns) < cfg.MinUnknowns {
			return incomplete(fmt.Sprintf("%s documents %d unknowns, need at least %d",
				artifact.AnalysisDoc, len(unknowns), cfg.MinUnknowns), metrics)
		}

		if !set.Has(artifact.RisksDoc) {
			return incomplete(artifact.RisksDoc+" is missing", metrics)
		}
		risks, err := artifact.ParseRisks(set.Content(artifact.RisksDoc))
		if err != nil {
			return incomplete(err.Error(), metrics)
		}
		metrics["risks"] = float64(len(risks))
		if len(risks) < cfg.MinRisks {
			return incomplete(fmt.Sprintf("%s documents %d risks, need at least %d",
				artifact.RisksDoc, len(risks), cfg.MinRisks), metrics)
		}

		competitors := artifact.Bullets(set.Content(artifact.CompetitorsDoc))
		metrics["competitors"] = float64(len(competitors))
		if !set.Has(artifact.CompetitorsDoc) {
			return incomplete(artifact.CompetitorsDoc+" is missing", metrics)
		}
		if len(competitors) < cfg.MinCompetitors {
			return incomplete(fmt.Sprintf("%s documents %d competitors, need at least %d",
				artifact.CompetitorsDoc, len(competitors), cfg.MinCompetitors), metrics)
		}

		if !set.Has(artifact.MVPDoc) {
			return incomplete(artifact.MVPDoc+" is missing", metrics)
		}
		return complete(metrics)
	}
}

func design(cfg config.CompletenessConfig) Func {
	return func(_ context.Context, set *artifact.Set) Verdict {
		metrics := map[string]float64{}
		for _, doc := range []string{artifact.DesignDoc, artifact.ArchitectureDoc} {
			if !set.Has(doc) {
				return incomplete(doc+" is missing", metrics)
			}
		}
		interfaces := artifact.Bullets(set.Content(artifact.InterfacesDoc))
		metrics["interfaces"] = float64(len(interfaces))
		if !set.Has(artifact.InterfacesDoc) {
			return incomplete(artifact.InterfacesDoc+" is missing", metrics)
		}
		if len(interfaces) < cfg.MinInterfaces {
			return incomplete(fmt.Sprintf("%s lists %d interfaces, need at least %d",
				artifact.InterfacesDoc, len(interfaces), cfg.MinInterfaces), metrics)
		}
		return complete(metrics)
	}
}

func implementation() Func {
	return func(_ context.Context, set *artifact.Set) Verdict {
		metrics := map[string]float64{}
		for _, dir := range []string{artifact.SourceDir, artifact.TestsDir} {
			entries := set.DirEntries(dir)
			metrics[strings.TrimSuffix(dir, "/")+"_entries"] = float64(len(entries))
			if len(entries) == 0 {
				return incomplete(dir+"/ is missing or empty", metrics)
			}
		}
		return complete(metrics)
	}
}

func testingStage() Func {
	return func(_ context.Context, set *artifact.Set) Verdict {
		metrics := map[string]float64{}
		if !set.Has(artifact.TestPlanDoc) {
			return incomplete(artifact.TestPlanDoc+" is missing", metrics)
		}
		results := artifact.Bullets(set.Content(artifact.TestReportDoc))
		metrics["test_results"] = float64(len(results))
		if !set.Has(artifact.TestReportDoc) {
			return incomplete(artifact.TestReportDoc+" is missing", metrics)
		}
		if len(results) < 1 {
			return incomplete(artifact.TestReportDoc+" lists no results", metrics)
		}
		return complete(metrics)
	}
}

func validation(cfg config.CompletenessConfig) Func {
	return func(_ context.Context, set *artifact.Set) Verdict {
		metrics := map[string]float64{}
		if !set.Has(artifact.ValidationReportDoc) {
			return incomplete(artifact.ValidationReportDoc+" is missing", metrics)
		}
		feedback := artifact.Bullets(set.Content(artifact.FeedbackDoc))
		metrics["feedback_entries"] = float64(len(feedback))
		if !set.Has(artifact.FeedbackDoc) {
			return incomplete(artifact.FeedbackDoc+" is missing", metrics)
		}
		if len(feedback) < cfg.MinFeedbackEntries {
			return incomplete(fmt.Sprintf("%s lists %d feedback entries, need at least %d",
				artifact.FeedbackDoc, len(feedback), cfg.MinFeedbackEntries), metrics)
		}
		return complete(metrics)
	}
}

func deployment() Func {
	return func(_ context.Context, set *artifact.Set) Verdict {
		if !set.Has(artifact.DeploymentDoc) {
			return incomplete(artifact.DeploymentDoc+" is missing", nil)
		}
		return complete(nil)
	}
}

func complete(metrics map[string]float64) Verdict {
	return Verdict{Complete: true, Reason: "all criteria satisfied", Metrics: metrics}
}

func incomplete(reason string, metrics map[string]float64) Verdict {
	return Verdict{Complete: false, Reason: reason, Metrics: metrics}
}
