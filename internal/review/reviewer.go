// Package review defines the pull-request reviewer capability. Like the
// content generator, the reviewer is an opaque external collaborator; the
// engine only consumes its approved/confidence verdict.
package review

import (
	"context"
	"fmt"
	"strings"

	"github.com/stagecraft/stagecraft/internal/config"
)

// BackendName identifies a supported reviewer backend.
type BackendName string

const (
	BackendHTTP BackendName = "http"
	BackendStub BackendName = "stub"
)

// Request identifies the transition pull request under review.
type Request struct {
	Repo     string `json:"repo"`
	PRNumber int    `json:"pr_number"`
	Head     string `json:"head"`
	Base     string `json:"base"`
	Title    string `json:"title"`
}

// Assessment is the reviewer's verdict. Confidence is only meaningful
// when Approved is set; the engine merges above its configured threshold
// and otherwise leaves the PR open.
type Assessment struct {
	Approved   bool    `json:"approved"`
	Confidence float64 `json:"confidence"`
	Notes      string  `json:"notes"`
}

// Reviewer assesses a transition pull request. Implementations must honor
// ctx cancellation; the engine supplies the timeout.
type Reviewer interface {
	Review(ctx context.Context, req Request) (*Assessment, error)
}

// ErrUnknownBackend is returned when the configured backend is unsupported.
var ErrUnknownBackend = fmt.Errorf("unknown reviewer backend")

// NewFromConfig builds a Reviewer from configuration.
func NewFromConfig(cfg *config.Config) (Reviewer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("missing config")
	}
	switch strings.ToLower(cfg.Review.Reviewer) {
	case string(BackendHTTP), "":
		return NewHTTPReviewer(cfg.Review.ReviewerURL), nil
	case string(BackendStub):
		return NewStubReviewer(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Review.Reviewer)
	}
}

// StubReviewer approves everything with a fixed confidence. Useful for
// dry runs and tests that exercise the merge path.
type StubReviewer struct{}

// NewStubReviewer builds the stub backend.
func NewStubReviewer() *StubReviewer {
	return &StubReviewer{}
}

// Review approves unconditionally at 0.9 confidence.
func (s *StubReviewer) Review(_ context.Context, req Request) (*Assessment, error) {
	return &Assessment{
		Approved:   true,
		Confidence: 0.9,
		Notes:      fmt.Sprintf("stub approval for %s -> %s", req.Head, req.Base),
	}, nil
}
