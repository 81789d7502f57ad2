package payment

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// requestFactory builds a fresh request per attempt so the body can be
// re-read on retry.
type requestFactory func(ctx context.Context) (*http.Request, error)

// sendWithRetry performs the call with a bounded timeout and a single
// retry budget. Only transient failures (network errors, 5xx) are
// retried; a 4xx is a deterministic rejection and retrying it would
// burn a single-use authorization or payment attempt for nothing.
func sendWithRetry(ctx context.Context, client *http.Client, build requestFactory) (int, []byte, error) {
	const attempts = 2

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		status, body, err := sendOnce(ctx, client, build)
		if err == nil && status < http.StatusInternalServerError {
			return status, body, nil
		}

		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("gateway returned HTTP %d", status)
		}

		if attempt < attempts {
			select {
			case <-ctx.Done():
				return 0, nil, ctx.Err()
			case <-time.After(500 * time.Millisecond):
			}
		}
	}
	return 0, nil, lastErr
}

func sendOnce(ctx context.Context, client *http.Client, build requestFactory) (int, []byte, error) {
	req, err := build(ctx)
	if err != nil {
		return 0, nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read gateway response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &http.Client{Timeout: timeout}
}
