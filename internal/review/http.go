package review

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/stagecraft/stagecraft/internal/errors"
)

// HTTPReviewer reaches the reviewer service over a JSON POST. Timeouts
// come from the caller's context.
type HTTPReviewer struct {
	url    string
	client *http.Client
}

// NewHTTPReviewer builds a reviewer client for the given endpoint.
func NewHTTPReviewer(url string) *HTTPReviewer {
	return &HTTPReviewer{url: url, client: &http.Client{}}
}

// Review posts the request and decodes the assessment. Transport or
// service failures surface as ErrReviewerFailure; a context deadline
// surfaces as ErrTimeout.
func (r *HTTPReviewer) Review(ctx context.Context, req Request) (*Assessment, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrReviewerFailure, "encoding request: %v", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrapf(errors.ErrReviewerFailure, "building request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrapf(errors.ErrTimeout, "reviewing PR #%d: %v", req.PRNumber, ctx.Err())
		}
		return nil, errors.Wrapf(errors.ErrReviewerFailure, "calling reviewer: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Wrapf(errors.ErrReviewerFailure, "reviewer returned %d: %s",
			resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var a Assessment
	if err := json.NewDecoder(resp.Body).Decode(&a); err != nil {
		return nil, errors.Wrapf(errors.ErrReviewerFailure, "decoding response: %v", err)
	}
	return &a, nil
}
