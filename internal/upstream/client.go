// Package upstream contains the outbound API clients: the Shopify Admin
// REST client and the third-party order API client. Both share a retrying
// transport that classifies failures, backs off linearly between attempts,
// and never retries client errors.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"shopbridge/internal/apperr"
)

// maxErrorBodyBytes caps how much of an upstream error response is read
// for diagnostics.
const maxErrorBodyBytes = 4096

// retryPolicy controls the shared retry loop.
type retryPolicy struct {
	maxRetries int
	retryDelay time.Duration
}

// doWithRetry executes the request built by build, retrying on server
// errors and network failures. Client errors (4xx) are terminal. The delay
// between attempts grows linearly: delay, 2*delay, 3*delay.
//
// build is called once per attempt so each request gets a fresh body.
// On success the caller owns the response body.
func doWithRetry(ctx context.Context, client *http.Client, policy retryPolicy, build func(ctx context.Context) (*http.Request, error)) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= policy.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * policy.retryDelay
			slog.Debug("Retrying upstream request",
				"attempt", attempt,
				"backoff", backoff,
			)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := build(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			// Network failures are retryable.
			lastErr = apperr.Network(req.Method+" "+req.URL.Path, err)
			continue
		}

		if resp.StatusCode >= 500 {
			// Server errors are retryable; drain the body so the
			// connection can be reused.
			body := readErrorBody(resp)
			lastErr = apperr.ExternalAPI(req.URL.Host, resp.StatusCode, "upstream server error", body)
			continue
		}

		return resp, nil
	}

	return nil, lastErr
}

// readErrorBody reads a bounded prefix of the response body and closes it.
func readErrorBody(resp *http.Response) string {
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if err != nil {
		return ""
	}
	return string(body)
}

// decodeJSON decodes the response body into a generic map and closes it.
func decodeJSON(resp *http.Response) (map[string]any, error) {
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return out, nil
}

// jsonBody marshals v for use as a request body.
func jsonBody(v any) (io.Reader, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	return bytes.NewReader(data), nil
}
