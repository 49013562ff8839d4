// Package errors provides centralized error definitions and error handling
// utilities for the stagecraft engine. It defines the engine's error
// taxonomy as sentinel errors, domain-specific error types with context
// wrapping, and classification helpers.
//
// # Taxonomy
//
// Sentinel errors map one-to-one onto the engine's failure modes:
//   - ErrStoreUnavailable: the versioned store cannot be reached (transient)
//   - ErrConflictingWrite: a concurrent writer moved the log tip (transient)
//   - ErrNotFound: an artifact or branch is absent, usually a signal of
//     incompleteness, not a failure
//   - ErrMalformedArtifact: an artifact failed to parse
//   - ErrGeneratorFailure / ErrReviewerFailure: an external collaborator
//     failed; the current transition attempt is aborted
//   - ErrInvariantViolation: the ledger observed a state that its
//     serialization should make impossible; never resolved silently
//
// Domain error types (StoreError, LedgerError, TransitionError) carry
// structured context and a severity/retryable/user-facing classification.
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewLedgerError("append decision", errors.ErrConflictingWrite).
//		WithDecision("use-database")
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrConflictingWrite) { ... }
//	if errors.IsRetryable(err) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience so callers can
// import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate operator attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Store-related sentinel errors
var (
	// ErrStoreUnavailable indicates the versioned store cannot be reached.
	// Transient; the caller may retry.
	ErrStoreUnavailable = New("versioned store unavailable")
	// ErrConflictingWrite indicates a concurrent writer changed the target
	// between read and append. Transient; retry with a fresh read.
	ErrConflictingWrite = New("conflicting write")
	// ErrNotFound indicates an artifact, branch, or pull request is absent.
	ErrNotFound = New("not found")
	// ErrBranchExists indicates a branch already exists.
	ErrBranchExists = New("branch already exists")
	// ErrPermissionDenied indicates the store rejected the credentials.
	ErrPermissionDenied = New("permission denied")
)

// Ledger-related sentinel errors
var (
	// ErrInvariantViolation indicates two decision records both claim to be
	// active for the same name. It points at a ledger serialization bug and
	// must be surfaced loudly, never resolved silently.
	ErrInvariantViolation = New("decision ledger invariant violated")
	// ErrDecisionInvalid indicates a proposed decision failed validation.
	ErrDecisionInvalid = New("invalid decision")
)

// Artifact and collaborator sentinel errors
var (
	// ErrMalformedArtifact indicates an artifact failed to parse. Evaluators
	// convert this into an incomplete verdict naming the parse failure.
	ErrMalformedArtifact = New("malformed artifact")
	// ErrGeneratorFailure indicates the external content generator failed.
	ErrGeneratorFailure = New("content generator failed")
	// ErrReviewerFailure indicates the external PR reviewer failed.
	ErrReviewerFailure = New("pull request reviewer failed")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// EngineError is the base interface for all stagecraft errors. It extends
// the standard error interface with classification methods.
type EngineError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// StoreError represents errors from the versioned store adapter.
//
// Example:
//
//	err := errors.NewStoreError("write file", errors.ErrConflictingWrite).
//		WithBranch("analysis").WithPath("decisions.log")
type StoreError struct {
	baseError
	Repository string
	Branch     string
	Path       string
}

// NewStoreError creates a new StoreError. Retryability follows the cause:
// store-unavailable and conflicting-write causes are retryable by the
// caller, everything else is not.
func NewStoreError(message string, cause error) *StoreError {
	return &StoreError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  errors.Is(cause, ErrStoreUnavailable) || errors.Is(cause, ErrConflictingWrite),
			userFacing: true,
		},
	}
}

// WithRepository adds a repository address to the error context.
func (e *StoreError) WithRepository(repo string) *StoreError {
	e.Repository = repo
	return e
}

// WithBranch adds a branch name to the error context.
func (e *StoreError) WithBranch(branch string) *StoreError {
	e.Branch = branch
	return e
}

// WithPath adds a file path to the error context.
func (e *StoreError) WithPath(path string) *StoreError {
	e.Path = path
	return e
}

// WithSeverity sets the error severity.
func (e *StoreError) WithSeverity(s Severity) *StoreError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *StoreError) Error() string {
	var parts []string
	if e.Repository != "" {
		parts = append(parts, fmt.Sprintf("repo=%s", e.Repository))
	}
	if e.Branch != "" {
		parts = append(parts, fmt.Sprintf("branch=%s", e.Branch))
	}
	if e.Path != "" {
		parts = append(parts, fmt.Sprintf("path=%s", e.Path))
	}

	prefix := "store error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("store error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *StoreError) Is(target error) bool {
	if _, ok := target.(*StoreError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// LedgerError represents errors from the decision ledger.
//
// Example:
//
//	err := errors.NewLedgerError("duplicate active records", errors.ErrInvariantViolation).
//		WithDecision("use-database").WithIdea("i-42")
type LedgerError struct {
	baseError
	IdeaID   string
	Decision string
	Branch   string
}

// NewLedgerError creates a new LedgerError. Invariant violations are
// critical and never retryable; conflicting writes are retryable.
func NewLedgerError(message string, cause error) *LedgerError {
	severity := SeverityError
	if errors.Is(cause, ErrInvariantViolation) {
		severity = SeverityCritical
	}
	return &LedgerError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   severity,
			retryable:  errors.Is(cause, ErrConflictingWrite) || errors.Is(cause, ErrStoreUnavailable),
			userFacing: true,
		},
	}
}

// WithIdea adds an idea ID to the error context.
func (e *LedgerError) WithIdea(id string) *LedgerError {
	e.IdeaID = id
	return e
}

// WithDecision adds a decision name to the error context.
func (e *LedgerError) WithDecision(name string) *LedgerError {
	e.Decision = name
	return e
}

// WithBranch adds a stage branch to the error context.
func (e *LedgerError) WithBranch(branch string) *LedgerError {
	e.Branch = branch
	return e
}

// Error returns the formatted error message.
func (e *LedgerError) Error() string {
	var parts []string
	if e.IdeaID != "" {
		parts = append(parts, fmt.Sprintf("idea=%s", e.IdeaID))
	}
	if e.Decision != "" {
		parts = append(parts, fmt.Sprintf("decision=%s", e.Decision))
	}
	if e.Branch != "" {
		parts = append(parts, fmt.Sprintf("branch=%s", e.Branch))
	}

	prefix := "ledger error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("ledger error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *LedgerError) Is(target error) bool {
	if _, ok := target.(*LedgerError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// TransitionError represents errors aborting a stage-transition attempt.
//
// Example:
//
//	err := errors.NewTransitionError("generate analysis content", errors.ErrGeneratorFailure).
//		WithStages("requirements", "analysis")
type TransitionError struct {
	baseError
	FromStage string
	ToStage   string
	PRNumber  int
}

// NewTransitionError creates a new TransitionError.
func NewTransitionError(message string, cause error) *TransitionError {
	return &TransitionError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  errors.Is(cause, ErrStoreUnavailable) || errors.Is(cause, ErrTimeout),
			userFacing: true,
		},
		PRNumber: -1,
	}
}

// WithStages adds the transition endpoints to the error context.
func (e *TransitionError) WithStages(from, to string) *TransitionError {
	e.FromStage = from
	e.ToStage = to
	return e
}

// WithPR records the transition pull request number, when one was opened
// before the failure.
func (e *TransitionError) WithPR(number int) *TransitionError {
	e.PRNumber = number
	return e
}

// Error returns the formatted error message.
func (e *TransitionError) Error() string {
	var parts []string
	if e.FromStage != "" {
		parts = append(parts, fmt.Sprintf("from=%s", e.FromStage))
	}
	if e.ToStage != "" {
		parts = append(parts, fmt.Sprintf("to=%s", e.ToStage))
	}
	if e.PRNumber >= 0 {
		parts = append(parts, fmt.Sprintf("pr=%d", e.PRNumber))
	}

	prefix := "transition error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("transition error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *TransitionError) Is(target error) bool {
	if _, ok := target.(*TransitionError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("branch", "analysis")
//	fmt.Println(err) // "branch 'analysis' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			cause:      ErrNotFound,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state.
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			cause:      ErrInvalidInput,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// TimeoutError represents an operation that timed out.
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:    operation,
			cause:      ErrTimeout,
			severity:   SeverityWarning,
			retryable:  true,
			userFacing: true,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry: errors implementing EngineError with a
// retryable classification, and errors wrapping the transient sentinels.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var engineErr EngineError
	if As(err, &engineErr) {
		return engineErr.IsRetryable()
	}

	return Is(err, ErrStoreUnavailable) || Is(err, ErrConflictingWrite) || Is(err, ErrTimeout)
}

// IsUserFacing returns true if the error message is safe to display to end
// users rather than a generic "internal error" placeholder.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var engineErr EngineError
	if As(err, &engineErr) {
		return engineErr.IsUserFacing()
	}

	var notFound *NotFoundError
	var validation *ValidationError
	var timeout *TimeoutError
	return As(err, &notFound) || As(err, &validation) || As(err, &timeout)
}

// GetSeverity returns the severity level of the error. Unknown errors
// default to SeverityError; invariant violations always report critical.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	if Is(err, ErrInvariantViolation) {
		return SeverityCritical
	}

	var engineErr EngineError
	if As(err, &engineErr) {
		return engineErr.Severity()
	}

	return SeverityError
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with an additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
