// Package generate defines the content generator capability: given one
// stage's artifacts, produce a candidate artifact set for the next stage.
// The generator is an opaque external collaborator reached over HTTP; a
// deterministic stub stands in for tests and dry runs.
package generate

import (
	"context"
	"fmt"
	"strings"

	"github.com/stagecraft/stagecraft/internal/config"
)

// BackendName identifies a supported generator backend.
type BackendName string

const (
	BackendHTTP BackendName = "http"
	BackendStub BackendName = "stub"
)

// Request carries one stage's artifacts to the generator.
type Request struct {
	Stage     string            `json:"stage"`
	NextStage string            `json:"next_stage"`
	Artifacts map[string][]byte `json:"artifacts"`
}

// ProposedDecision is a decision the generator embedded in its output. The
// engine reconciles these through the ledger before committing files.
type ProposedDecision struct {
	Name               string   `json:"name"`
	Type               string   `json:"type"`
	Alternatives       []string `json:"alternatives"`
	Chosen             string   `json:"chosen"`
	Reason             string   `json:"reason"`
	Confidence         float64  `json:"confidence"`
	RevisitProbability float64  `json:"revisit_probability"`
	Context            string   `json:"context,omitempty"`
	// Blocked asserts a dependent goal is blocked on this decision,
	// which is what authorizes reversing a high-revisit record.
	Blocked bool `json:"blocked,omitempty"`
}

// Result is the generator's candidate artifact set for the next stage.
type Result struct {
	Files     map[string][]byte  `json:"files"`
	Decisions []ProposedDecision `json:"decisions"`
	Summary   string             `json:"summary"`
}

// ContentGenerator produces next-stage content from current-stage
// artifacts. Implementations must honor ctx cancellation; the engine
// supplies the timeout.
type ContentGenerator interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}

// ErrUnknownBackend is returned when the configured backend is unsupported.
var ErrUnknownBackend = fmt.Errorf("unknown generator backend")

// NewFromConfig builds a ContentGenerator from configuration.
func NewFromConfig(cfg *config.Config) (ContentGenerator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("missing config")
	}
	switch strings.ToLower(cfg.Engine.Generator) {
	case string(BackendHTTP), "":
		return NewHTTPGenerator(cfg.Engine.GeneratorURL), nil
	case string(BackendStub):
		return NewStubGenerator(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Engine.Generator)
	}
}
