package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gitgov-dev/gitgov-core/record"
)

const (
	apiMaxRetries     = 3
	apiRetryBaseDelay = 500 * time.Millisecond
)

// httpDoer is the seam api dispatch runs through, grounded on the
// teacher's cursor.Client wrapping *http.Client behind an interface
// (server/cursor/client.go) so tests can substitute a fake transport
// instead of hitting the network.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

var defaultHTTPClient httpDoer = &http.Client{Timeout: 30 * time.Second}

// IdentityAdapter signs an outbound api-engine request when
// AgentEngine.Auth is "actor-signature" (§4.9 "auth actor-signature
// requires an identity adapter").
type IdentityAdapter interface {
	SignRequest(ctx context.Context, execCtx ExecutionContext) (header string, err error)
}

// dispatchAPI implements §4.9 step 2's "api" branch: requires a URL,
// optionally signs the request via an injected IdentityAdapter, and posts
// the execution context with the same retry-on-429/5xx policy the
// teacher's Cursor client uses (server/cursor/client.go's doRequest).
func (r *Runner) dispatchAPI(ctx context.Context, engine record.AgentEngine, execCtx ExecutionContext) (any, error) {
	if engine.URL == "" {
		return nil, record.NewKindError(record.ErrInvalidData, "api engine requires a url")
	}

	var authHeader string
	if engine.Auth == "actor-signature" {
		if r.identity == nil {
			return nil, record.NewKindError(record.ErrMissingDependency, "api engine auth %q requires an identity adapter", engine.Auth)
		}
		header, err := r.identity.SignRequest(ctx, execCtx)
		if err != nil {
			return nil, fmt.Errorf("agent: failed to sign request: %w", err)
		}
		authHeader = header
	}

	body, err := json.Marshal(execCtx)
	if err != nil {
		return nil, fmt.Errorf("agent: failed to encode execution context: %w", err)
	}

	respBody, err := r.postWithRetry(ctx, engine.URL, body, authHeader)
	if err != nil {
		return nil, err
	}

	var output any
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &output); err != nil {
			return nil, fmt.Errorf("agent: failed to decode api response: %w", err)
		}
	}
	return output, nil
}

func (r *Runner) postWithRetry(ctx context.Context, url string, body []byte, authHeader string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < apiMaxRetries; attempt++ {
		if attempt > 0 {
			delay := apiRetryBaseDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("agent: failed to build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if authHeader != "" {
			req.Header.Set("Authorization", authHeader)
		}

		resp, err := r.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return respBody, nil
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("agent: api returned status %d: %s", resp.StatusCode, string(respBody))
			continue
		}
		return nil, fmt.Errorf("agent: api returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil, fmt.Errorf("agent: api request failed after %d attempts: %w", apiMaxRetries, lastErr)
}
