package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxResponseBytes caps how much of a sink's HTTP response is read back for
// error reporting.
const maxResponseBytes = 4 << 10

// retryDelay is the linear backoff unit between delivery attempts.
const retryDelay = 200 * time.Millisecond

// PostJSON delivers a JSON document to url, retrying up to retryLimit extra
// times with linear backoff and honouring context cancellation between
// attempts. Non-2xx responses are errors carrying the truncated response
// body. label names the sink in error messages.
func PostJSON(ctx context.Context, client *http.Client, label, url string, body []byte, retryLimit int) error {
	var lastErr error
	for attempt := 0; attempt <= retryLimit; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, time.Duration(attempt)*retryDelay); err != nil {
				return err
			}
		}
		if lastErr = postOnce(ctx, client, label, url, body); lastErr == nil {
			return nil
		}
	}
	return lastErr
}

func postOnce(ctx context.Context, client *http.Client, label, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", label, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", label, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read %s response: %w", label, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: %s", label, resp.Status, strings.TrimSpace(string(respBody)))
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
