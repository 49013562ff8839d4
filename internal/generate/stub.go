package generate

import (
	"context"
	"fmt"

	"github.com/stagecraft/stagecraft/internal/artifact"
	"github.com/stagecraft/stagecraft/internal/stage"
)

// StubGenerator emits deterministic draft skeletons for the next stage's
// expected documents. It never proposes decisions, so dry runs exercise
// the whole pipeline without touching the ledger.
type StubGenerator struct{}

// NewStubGenerator builds the stub backend.
func NewStubGenerator() *StubGenerator {
	return &StubGenerator{}
}

// Generate returns one skeleton file per document the next stage's
// evaluator will look for.
func (s *StubGenerator) Generate(_ context.Context, req Request) (*Result, error) {
	next, err := stage.ParseBranch(req.NextStage)
	if err != nil {
		return nil, err
	}

	files := make(map[string][]byte)
	for _, doc := range artifact.Docs(next) {
		files[doc] = []byte(fmt.Sprintf("# %s\n\nDraft generated from %s artifacts.\n", doc, req.Stage))
	}
	return &Result{
		Files:   files,
		Summary: fmt.Sprintf("drafted %d %s documents", len(files), next.BranchName()),
	}, nil
}
