package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/stagecraft/stagecraft/internal/errors"
)

// HTTPGenerator reaches the generator service over a JSON POST. Timeouts
// come from the caller's context, not a client-level deadline, so one
// configuration serves both generation and dry-run calls.
type HTTPGenerator struct {
	url    string
	client *http.Client
}

// NewHTTPGenerator builds a generator client for the given endpoint.
func NewHTTPGenerator(url string) *HTTPGenerator {
	return &HTTPGenerator{url: url, client: &http.Client{}}
}

// Generate posts the request and decodes the candidate artifact set. Any
// transport or service failure surfaces as ErrGeneratorFailure; a context
// deadline surfaces as ErrTimeout.
func (g *HTTPGenerator) Generate(ctx context.Context, req Request) (*Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrGeneratorFailure, "encoding request: %v", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrapf(errors.ErrGeneratorFailure, "building request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrapf(errors.ErrTimeout, "generating %s content: %v", req.NextStage, ctx.Err())
		}
		return nil, errors.Wrapf(errors.ErrGeneratorFailure, "calling generator: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Wrapf(errors.ErrGeneratorFailure, "generator returned %d: %s",
			resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.Wrapf(errors.ErrGeneratorFailure, "decoding response: %v", err)
	}
	if result.Files == nil {
		return nil, fmt.Errorf("%w: response carries no files", errors.ErrGeneratorFailure)
	}
	return &result, nil
}
