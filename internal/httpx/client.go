package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"time"

	clierr "github.com/ssandoval/treasury-cli/internal/errors"
)

type Client struct {
	httpClient *http.Client
	retries    int
	userAgent  string
}

func New(timeout time.Duration, retries int) *Client {
	if retries < 0 {
		retries = 0
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		retries:    retries,
		userAgent:  "treasury-cli/1.0",
	}
}

// Once returns a client that performs each request exactly once, with no
// retries. Non-idempotent requests must go through it.
func (c *Client) Once() *Client {
	if c.retries == 0 {
		return c
	}
	clone := *c
	clone.retries = 0
	return &clone
}

func (c *Client) DoJSON(ctx context.Context, req *http.Request, out any) (http.Header, error) {
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	var lastErr error
	var lastHeader http.Header
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return lastHeader, clierr.Wrap(clierr.CodeUnavailable, "request cancelled", ctx.Err())
			case <-time.After(backoff(attempt)):
			}
		}
		header, retryable, err := c.attempt(ctx, req, out)
		if err == nil {
			return header, nil
		}
		lastHeader, lastErr = header, err
		if !retryable {
			return header, err
		}
	}
	return lastHeader, lastErr
}

// attempt performs a single request/decode cycle. The retryable flag reports
// whether a further attempt could change the outcome.
func (c *Client) attempt(ctx context.Context, req *http.Request, out any) (http.Header, bool, error) {
	cloneReq := req.Clone(ctx)
	if req.Body != nil && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, false, clierr.Wrap(clierr.CodeInternal, "clone request body", err)
		}
		cloneReq.Body = body
	}

	resp, err := c.httpClient.Do(cloneReq)
	if err != nil {
		return nil, true, mapNetError(err)
	}
	buf, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp.Header, true, clierr.Wrap(clierr.CodeUnavailable, "read upstream response", readErr)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr, retryable := statusError(resp.StatusCode)
		return resp.Header, retryable, statusErr
	}

	if out == nil {
		return resp.Header, false, nil
	}
	if len(bytes.TrimSpace(buf)) == 0 {
		return resp.Header, false, clierr.New(clierr.CodeUnavailable, "upstream returned empty response")
	}
	if err := json.Unmarshal(buf, out); err != nil {
		return resp.Header, false, clierr.Wrap(clierr.CodeUnavailable, "decode upstream JSON", err)
	}
	return resp.Header, false, nil
}

// statusError maps a non-2xx status to a typed error and reports whether the
// request may be attempted again.
func statusError(status int) (error, bool) {
	switch {
	case status == http.StatusTooManyRequests:
		return clierr.New(clierr.CodeRateLimited, "upstream rate limited request"), true
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return clierr.New(clierr.CodeAuth, "upstream authentication failed"), false
	case status >= http.StatusInternalServerError:
		return clierr.New(clierr.CodeUnavailable, fmt.Sprintf("upstream unavailable (status %d)", status)), true
	default:
		return clierr.New(clierr.CodeUnsupported, fmt.Sprintf("upstream returned unexpected status %d", status)), false
	}
}

func DoBodyJSON(ctx context.Context, c *Client, method, url string, body []byte, headers map[string]string, out any) (http.Header, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "build request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.DoJSON(ctx, req, out)
}

func mapNetError(err error) error {
	if nerr, ok := err.(net.Error); ok {
		if nerr.Timeout() {
			return clierr.Wrap(clierr.CodeUnavailable, "upstream timeout", err)
		}
	}
	return clierr.Wrap(clierr.CodeUnavailable, "upstream request failed", err)
}

func backoff(attempt int) time.Duration {
	base := 120 * time.Millisecond
	d := base * time.Duration(1<<uint(attempt-1))
	if d > 2*time.Second {
		d = 2 * time.Second
	}
	jitter := time.Duration(rand.Intn(75)) * time.Millisecond
	return d + jitter
}
