package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/blackwell-systems/winpacman/internal/core"
)

const (
	userAgent      = "winpacman/0.5 (metadata sync)"
	requestTimeout = 30 * time.Second
	maxRetries     = 2
)

// httpClient wraps net/http with the per-request deadline, User-Agent and
// retry policy shared by all network providers. Transient failures (network
// errors and 5xx responses) are retried with exponential backoff; anything
// else is returned to the caller as-is.
type httpClient struct {
	client *http.Client
	log    *zap.Logger
}

func newHTTPClient(log *zap.Logger) *httpClient {
	if log == nil {
		log = zap.NewNop()
	}
	return &httpClient{
		client: &http.Client{Timeout: requestTimeout},
		log:    log,
	}
}

// get issues a GET with retries and returns the response body. The accept
// header is optional. Non-2xx statuses other than 5xx return an
// *httpStatusError without retrying.
func (c *httpClient) get(ctx context.Context, url, accept string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<(attempt-1)) * time.Second
			c.log.Debug("retrying request",
				zap.String("url", url),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		body, retryable, err := c.getOnce(ctx, url, accept)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}

	return nil, core.WrapError(core.KindProviderUnavailable, lastErr,
		"request failed after %d retries: %s", maxRetries, url)
}

func (c *httpClient) getOnce(ctx context.Context, url, accept string) (body []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("User-Agent", userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, true, &httpStatusError{URL: url, Status: resp.StatusCode}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, false, &httpStatusError{URL: url, Status: resp.StatusCode}
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, err
	}
	return b, false, nil
}

type httpStatusError struct {
	URL    string
	Status int
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.URL, e.Status)
}

// isStatus reports whether err is an *httpStatusError with the given code.
func isStatus(err error, code int) bool {
	var se *httpStatusError
	return errors.As(err, &se) && se.Status == code
}
