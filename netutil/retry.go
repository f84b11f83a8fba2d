package netutil

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// Retry defaults.
const (
	DefaultMaxRetries     = 3
	DefaultInitialBackoff = time.Second
	DefaultMaxBackoff     = 30 * time.Second
)

// RetryTransport retries transient download failures with exponential
// backoff. Network errors, 429 and 502-504 are transient; a Retry-After
// header overrides the computed backoff, capped at the maximum.
type RetryTransport struct {
	base       http.RoundTripper
	maxRetries int
	initial    time.Duration
	max        time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// RetryOption configures a RetryTransport.
type RetryOption func(*RetryTransport)

// WithMaxRetries sets how many times a request is retried.
func WithMaxRetries(n int) RetryOption {
	return func(t *RetryTransport) { t.maxRetries = n }
}

// WithBackoff sets the first wait and the cap of the exponential backoff.
func WithBackoff(initial, maxWait time.Duration) RetryOption {
	return func(t *RetryTransport) {
		t.initial = initial
		t.max = maxWait
	}
}

// WithRetryLogger sets the logger reporting retries.
func WithRetryLogger(l *slog.Logger) RetryOption {
	return func(t *RetryTransport) { t.logger = l }
}

// NewRetryTransport wraps base, or http.DefaultTransport when base is nil.
func NewRetryTransport(base http.RoundTripper, opts ...RetryOption) *RetryTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	t := &RetryTransport{
		base:       base,
		maxRetries: DefaultMaxRetries,
		initial:    DefaultInitialBackoff,
		max:        DefaultMaxBackoff,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RoundTrip implements http.RoundTripper. Requests with a body are retried
// only when the body can be replayed through GetBody.
func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	replayable := req.Body == nil || req.Body == http.NoBody || req.GetBody != nil

	for attempt := 0; ; attempt++ {
		attemptReq, err := replay(req, attempt)
		if err != nil {
			return nil, err
		}

		resp, err := t.base.RoundTrip(attemptReq)
		final := attempt >= t.maxRetries || !replayable

		switch {
		case err != nil:
			if ctx.Err() != nil || final {
				return nil, err
			}
			t.logger.Debug("retrying request after network error",
				"url", StripCredentials(req.URL.String()), "attempt", attempt+1, "error", err)
			if err := sleep(ctx, t.backoff(attempt, nil)); err != nil {
				return nil, err
			}

		case !RetryableStatus(resp.StatusCode) || final:
			return resp, nil

		default:
			wait := t.backoff(attempt, resp)
			t.logger.Warn("retrying request",
				"url", StripCredentials(req.URL.String()), "status", resp.StatusCode,
				"attempt", attempt+1, "wait", wait)
			_ = resp.Body.Close()
			if err := sleep(ctx, wait); err != nil {
				return nil, err
			}
		}
	}
}

// replay returns the request for the given attempt.
func replay(req *http.Request, attempt int) (*http.Request, error) {
	if attempt == 0 {
		return req, nil
	}
	clone := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		clone.Body = body
	}
	return clone, nil
}

func (t *RetryTransport) backoff(attempt int, resp *http.Response) time.Duration {
	if wait, ok := t.retryAfter(resp); ok {
		return min(wait, t.max)
	}
	wait := t.initial << attempt
	if wait <= 0 || wait > t.max {
		return t.max
	}
	return wait
}

// retryAfter reads a Retry-After header in seconds or HTTP-date form.
func (t *RetryTransport) retryAfter(resp *http.Response) (time.Duration, bool) {
	if resp == nil {
		return 0, false
	}
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(v); err == nil {
		return max(at.Sub(t.now()), 0), true
	}
	return 0, false
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryableStatus reports whether a response status is worth retrying.
func RetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
