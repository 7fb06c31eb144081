package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"market-intel-bot/internal/logging"
)

const (
	requestTimeout = 10 * time.Second

	// Clamp applied to the vendor's 429 reset hint
	minRetryAfter = 2 * time.Second
	maxRetryAfter = 30 * time.Second
)

// ResetHeader is the vendor header carrying the per-minute reset hint on 429s
const ResetHeader = "x-uw-req-per-minute-reset"

// RESTClient is a rate-limited, circuit-broken JSON GET client shared by both
// vendor wrappers. Failures are not errors to callers: a nil payload means
// "no data" and the poll cycle moves on.
type RESTClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *SlidingWindow
	breaker    *gobreaker.CircuitBreaker
	logger     *logging.Logger

	// OnSuccess is invoked once per 200 response, including retried 200s.
	// The budget governor hangs its daily call counter here.
	OnSuccess func()
}

// NewRESTClient creates a client for one vendor base URL
func NewRESTClient(name, baseURL, token string, limiter *SlidingWindow, logger *logging.Logger) *RESTClient {
	settings := gobreaker.Settings{
		Name:    name,
		Timeout: 60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}

	return &RESTClient{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: requestTimeout},
		limiter:    limiter,
		breaker:    gobreaker.NewCircuitBreaker(settings),
		logger:     logger.WithComponent("upstream." + name),
	}
}

// SetTransport swaps the HTTP transport. Mock modes install a synthetic
// round-tripper here; everything above the transport (limiter, breaker,
// retries) keeps running against it.
func (c *RESTClient) SetTransport(rt http.RoundTripper) {
	c.httpClient = &http.Client{Timeout: requestTimeout, Transport: rt}
}

// Get performs a rate-limited GET and returns the raw JSON body. A nil result
// with a nil error means the vendor had no usable data; the caller must treat
// that as absence, not failure.
func (c *RESTClient) Get(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	body, err := c.breaker.Execute(func() (interface{}, error) {
		return c.do(ctx, path, params, true)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			c.logger.Debug("circuit open, skipping call", "path", path)
			return nil, nil
		}
		c.logger.Warn("upstream call failed", "path", path, "error", err)
		return nil, nil
	}
	if body == nil {
		return nil, nil
	}
	return body.(json.RawMessage), nil
}

// do issues the request. On 429 it honors the vendor reset hint (clamped to
// [2s,30s]) and retries exactly once.
func (c *RESTClient) do(ctx context.Context, path string, params url.Values, allowRetry bool) (json.RawMessage, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if c.OnSuccess != nil {
			c.OnSuccess()
		}
		return json.RawMessage(data), nil

	case resp.StatusCode == http.StatusTooManyRequests && allowRetry:
		wait := parseResetHint(resp.Header.Get(ResetHeader))
		c.logger.Warn("rate limited by vendor", "path", path, "wait", wait.String())

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		return c.do(ctx, path, params, false)

	default:
		// Non-200 responses are logged once and surfaced as "no data"
		c.logger.Warn("unexpected status", "path", path, "status", resp.StatusCode)
		return nil, nil
	}
}

// parseResetHint converts the vendor reset header (seconds) into a wait
// duration clamped to [minRetryAfter, maxRetryAfter]
func parseResetHint(hint string) time.Duration {
	wait := minRetryAfter
	if hint != "" {
		if secs, err := strconv.ParseFloat(hint, 64); err == nil {
			wait = time.Duration(secs * float64(time.Second))
		}
	}
	if wait < minRetryAfter {
		wait = minRetryAfter
	}
	if wait > maxRetryAfter {
		wait = maxRetryAfter
	}
	return wait
}
