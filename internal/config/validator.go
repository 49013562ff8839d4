package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure.
type ValidationError struct {
	Field   string // the config field path (e.g. "review.merge_threshold")
	Value   any    // the invalid value
	Message string // human-readable error description
}

// Error implements the error interface for ValidationError.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidStoreBackends returns the supported store backends.
func ValidStoreBackends() []string {
	return []string{"github", "memory"}
}

// ValidCollaboratorBackends returns the supported generator/reviewer backends.
func ValidCollaboratorBackends() []string {
	return []string{"http", "stub"}
}

// ValidMergeMethods returns the supported PR merge methods.
func ValidMergeMethods() []string {
	return []string{"squash", "merge"}
}

// ValidLogLevels returns the supported log levels.
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation
// errors found.
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError

	errs = append(errs, c.validateStore()...)
	errs = append(errs, c.validateEngine()...)
	errs = append(errs, c.validateReview()...)
	errs = append(errs, c.validateLedger()...)
	errs = append(errs, c.validateCompleteness()...)
	errs = append(errs, c.validateLogging()...)

	return errs
}

func (c *Config) validateStore() []ValidationError {
	var errs []ValidationError

	if !slices.Contains(ValidStoreBackends(), c.Store.Backend) {
		errs = append(errs, ValidationError{
			Field:   "store.backend",
			Value:   c.Store.Backend,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidStoreBackends(), ", ")),
		})
	}

	return errs
}

func (c *Config) validateEngine() []ValidationError {
	var errs []ValidationError

	if !slices.Contains(ValidCollaboratorBackends(), c.Engine.Generator) {
		errs = append(errs, ValidationError{
			Field:   "engine.generator",
			Value:   c.Engine.Generator,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidCollaboratorBackends(), ", ")),
		})
	}
	if c.Engine.Generator == "http" && c.Engine.GeneratorURL == "" {
		errs = append(errs, ValidationError{
			Field:   "engine.generator_url",
			Value:   c.Engine.GeneratorURL,
			Message: "required when engine.generator is http",
		})
	}
	if c.Engine.GenerationTimeoutSeconds <= 0 {
		errs = append(errs, ValidationError{
			Field:   "engine.generation_timeout_seconds",
			Value:   c.Engine.GenerationTimeoutSeconds,
			Message: "must be positive",
		})
	}
	if c.Engine.ReviewTimeoutSeconds <= 0 {
		errs = append(errs, ValidationError{
			Field:   "engine.review_timeout_seconds",
			Value:   c.Engine.ReviewTimeoutSeconds,
			Message: "must be positive",
		})
	}

	return errs
}

func (c *Config) validateReview() []ValidationError {
	var errs []ValidationError

	if !slices.Contains(ValidCollaboratorBackends(), c.Review.Reviewer) {
		errs = append(errs, ValidationError{
			Field:   "review.reviewer",
			Value:   c.Review.Reviewer,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidCollaboratorBackends(), ", ")),
		})
	}
	if c.Review.Reviewer == "http" && c.Review.ReviewerURL == "" {
		errs = append(errs, ValidationError{
			Field:   "review.reviewer_url",
			Value:   c.Review.ReviewerURL,
			Message: "required when review.reviewer is http",
		})
	}
	if c.Review.MergeThreshold < 0 || c.Review.MergeThreshold > 1 {
		errs = append(errs, ValidationError{
			Field:   "review.merge_threshold",
			Value:   c.Review.MergeThreshold,
			Message: "must be in [0, 1]",
		})
	}
	if !slices.Contains(ValidMergeMethods(), c.Review.MergeMethod) {
		errs = append(errs, ValidationError{
			Field:   "review.merge_method",
			Value:   c.Review.MergeMethod,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidMergeMethods(), ", ")),
		})
	}

	return errs
}

func (c *Config) validateLedger() []ValidationError {
	var errs []ValidationError

	if c.Ledger.RevisitThreshold < 0 || c.Ledger.RevisitThreshold > 1 {
		errs = append(errs, ValidationError{
			Field:   "ledger.revisit_threshold",
			Value:   c.Ledger.RevisitThreshold,
			Message: "must be in [0, 1]",
		})
	}
	if c.Ledger.MaxWriteRetries < 1 {
		errs = append(errs, ValidationError{
			Field:   "ledger.max_write_retries",
			Value:   c.Ledger.MaxWriteRetries,
			Message: "must be at least 1",
		})
	}

	return errs
}

func (c *Config) validateCompleteness() []ValidationError {
	var errs []ValidationError

	if c.Completeness.MinRequirementsChars < 0 {
		errs = append(errs, ValidationError{
			Field:   "completeness.min_requirements_chars",
			Value:   c.Completeness.MinRequirementsChars,
			Message: "must not be negative",
		})
	}
	if c.Completeness.CriticalAssumptionCutoff < 0 || c.Completeness.CriticalAssumptionCutoff > 1 {
		errs = append(errs, ValidationError{
			Field:   "completeness.critical_assumption_cutoff",
			Value:   c.Completeness.CriticalAssumptionCutoff,
			Message: "must be in [0, 1]",
		})
	}
	if c.Completeness.MinValidatedFraction < 0 || c.Completeness.MinValidatedFraction > 1 {
		errs = append(errs, ValidationError{
			Field:   "completeness.min_validated_fraction",
			Value:   c.Completeness.MinValidatedFraction,
			Message: "must be in [0, 1]",
		})
	}
	counts := []struct {
		field string
		value int
	}{
		{"completeness.min_unknowns", c.Completeness.MinUnknowns},
		{"completeness.min_risks", c.Completeness.MinRisks},
		{"completeness.min_competitors", c.Completeness.MinCompetitors},
		{"completeness.min_interfaces", c.Completeness.MinInterfaces},
		{"completeness.min_feedback_entries", c.Completeness.MinFeedbackEntries},
	}
	for _, cnt := range counts {
		if cnt.value < 1 {
			errs = append(errs, ValidationError{
				Field:   cnt.field,
				Value:   cnt.value,
				Message: "must be at least 1",
			})
		}
	}

	return errs
}

func (c *Config) validateLogging() []ValidationError {
	var errs []ValidationError

	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errs
}
