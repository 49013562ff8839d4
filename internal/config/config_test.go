package config

import (
	"strings"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	// The defaults must pass their own validation so the engine runs
	// without a config file.
	cfg := Default()
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Fatalf("default config invalid: %v", ValidationErrors(errs))
	}
}

func TestValidateCatchesBadValues(t *testing.T) {
	cfg := Default()
	cfg.Store.Backend = "svn"
	cfg.Review.MergeThreshold = 1.5
	cfg.Review.MergeMethod = "rebase"
	cfg.Ledger.RevisitThreshold = -0.1
	cfg.Completeness.MinCompetitors = 0
	cfg.Logging.Level = "verbose"

	errs := cfg.Validate()
	wantFields := []string{
		"store.backend",
		"review.merge_threshold",
		"review.merge_method",
		"ledger.revisit_threshold",
		"completeness.min_competitors",
		"logging.level",
	}
	if len(errs) != len(wantFields) {
		t.Fatalf("got %d errors, want %d: %v", len(errs), len(wantFields), ValidationErrors(errs))
	}
	for i, f := range wantFields {
		if errs[i].Field != f {
			t.Errorf("errs[%d].Field = %s, want %s", i, errs[i].Field, f)
		}
	}
}

func TestHTTPBackendsRequireURLs(t *testing.T) {
	cfg := Default()
	cfg.Engine.Generator = "http"
	cfg.Engine.GeneratorURL = ""
	cfg.Review.Reviewer = "http"
	cfg.Review.ReviewerURL = ""

	errs := cfg.Validate()
	var fields []string
	for _, e := range errs {
		fields = append(fields, e.Field)
	}
	joined := strings.Join(fields, ",")
	if !strings.Contains(joined, "engine.generator_url") {
		t.Errorf("missing engine.generator_url error: %v", fields)
	}
	if !strings.Contains(joined, "review.reviewer_url") {
		t.Errorf("missing review.reviewer_url error: %v", fields)
	}
}

func TestValidationErrorsFormatting(t *testing.T) {
	errs := ValidationErrors{
		{Field: "a.b", Value: 3, Message: "must be positive"},
		{Field: "c.d", Value: "x", Message: "unknown"},
	}
	msg := errs.Error()
	if !strings.HasPrefix(msg, "2 validation errors:") {
		t.Errorf("unexpected message: %q", msg)
	}
	if !strings.Contains(msg, "a.b: must be positive (got: 3)") {
		t.Errorf("missing first error: %q", msg)
	}
}

func TestTimeoutAccessors(t *testing.T) {
	cfg := Default()
	if cfg.Engine.GenerationTimeout().Seconds() != 300 {
		t.Errorf("GenerationTimeout = %v", cfg.Engine.GenerationTimeout())
	}
	if cfg.Engine.ReviewTimeout().Seconds() != 120 {
		t.Errorf("ReviewTimeout = %v", cfg.Engine.ReviewTimeout())
	}
}
