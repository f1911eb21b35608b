// Package httpclient is the resilient HTTP transport shared by the upstream
// source clients (ChEMBL, NCBI E-utilities, Ollama). It paces requests with a
// token bucket, retries transport failures and 5xx responses with jittered
// exponential backoff, and classifies every outcome into a pkg/errors code.
//
// A 429 response is never retried. It is returned as CodeDataSourceRateLimited
// carrying the server's Retry-After hint so the caller can decide to pause.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/juju/ratelimit"

	"github.com/turtacn/trialscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/trialscope/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/trialscope/pkg/errors"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultRetryMax     = 3
	defaultRetryWaitMin = 500 * time.Millisecond
	defaultRetryWaitMax = 5 * time.Second
	defaultRetryAfter   = 60 * time.Second
	defaultUserAgent    = "trialscope/1.0"
	maxErrorBodyBytes   = 4 << 10
	headerRequestID     = "X-Request-ID"
	headerRetryAfter    = "Retry-After"
	outcomeOK           = "ok"
	outcomeNotFound     = "not_found"
	outcomeRateLimited  = "rate_limited"
	outcomeTransient    = "transient"
	outcomeMalformed    = "malformed"
)

// APIError describes a non-success HTTP response. It is attached as the Cause
// of the AppError returned to callers.
type APIError struct {
	StatusCode int
	RequestID  string
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http %d (request %s)", e.StatusCode, e.RequestID)
	}
	return fmt.Sprintf("http %d (request %s): %s", e.StatusCode, e.RequestID, e.Body)
}

// Client is a paced, retrying HTTP client bound to one upstream source.
type Client struct {
	source            string
	baseURL           string
	httpClient        *http.Client
	userAgent         string
	accept            string
	username          string
	password          string
	logger            logging.Logger
	metrics           *prometheus.AppMetrics
	bucket            *ratelimit.Bucket
	retryMax          int
	retryWaitMin      time.Duration
	retryWaitMax      time.Duration
	defaultRetryAfter time.Duration
	now               func() time.Time
}

// New creates a Client for source rooted at baseURL.
func New(source, baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(source) == "" {
		return nil, errors.InvalidParam("httpclient: source name is required")
	}
	if baseURL == "" {
		return nil, errors.InvalidParam("httpclient: base URL is required")
	}
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.InvalidParam("httpclient: invalid base URL").WithDetail(baseURL)
	}

	c := &Client{
		source:            source,
		baseURL:           baseURL,
		httpClient:        &http.Client{Timeout: defaultTimeout},
		userAgent:         defaultUserAgent,
		accept:            "application/json",
		logger:            logging.NewNopLogger(),
		retryMax:          defaultRetryMax,
		retryWaitMin:      defaultRetryWaitMin,
		retryWaitMax:      defaultRetryWaitMax,
		defaultRetryAfter: defaultRetryAfter,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(logging.Source(source))
	return c, nil
}

// Source returns the source label used in logs and metrics.
func (c *Client) Source() string { return c.source }

// GetJSON issues a GET for path with query and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, op, path string, query url.Values, out interface{}) error {
	body, err := c.Get(ctx, op, path, query)
	if err != nil {
		return err
	}
	return c.decodeJSON(op, body, out)
}

// Get issues a GET for path with query and returns the raw response body.
func (c *Client) Get(ctx context.Context, op, path string, query url.Values) ([]byte, error) {
	return c.do(ctx, op, http.MethodGet, c.resolve(path, query), nil)
}

// PostJSON posts payload as JSON to path and decodes the JSON response into out.
func (c *Client) PostJSON(ctx context.Context, op, path string, payload, out interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, errors.CodeSerialization, "httpclient: encode request body")
	}
	body, err := c.do(ctx, op, http.MethodPost, c.resolve(path, nil), raw)
	if err != nil {
		return err
	}
	return c.decodeJSON(op, body, out)
}

func (c *Client) decodeJSON(op string, body []byte, out interface{}) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		c.metrics.RecordSourceRequest(c.source, op, outcomeMalformed, 0)
		return errors.Wrap(err, errors.CodeDataSourceParseError, c.source+": decode response").WithDetail(op)
	}
	return nil
}

func (c *Client) resolve(path string, query url.Values) string {
	full := strings.TrimRight(c.baseURL, "/")
	if path != "" {
		full += "/" + strings.TrimLeft(path, "/")
	}
	if len(query) > 0 {
		full += "?" + query.Encode()
	}
	return full
}

// do executes one logical request, retrying transport errors and 5xx.
func (c *Client) do(ctx context.Context, op, method, fullURL string, payload []byte) ([]byte, error) {
	start := c.now()
	var lastErr error

	for attempt := 0; attempt <= c.retryMax; attempt++ {
		if attempt > 0 {
			wait := c.calculateBackoff(attempt)
			c.logger.Debug("retrying request",
				logging.Op(op), logging.Int("attempt", attempt), logging.Duration("backoff", wait))
			if err := sleep(ctx, wait); err != nil {
				return nil, c.fail(op, start, outcomeTransient, errors.Wrap(err, errors.CodeDataSourceUnavailable, c.source+": request cancelled"))
			}
		}
		if err := c.pace(ctx); err != nil {
			return nil, c.fail(op, start, outcomeTransient, errors.Wrap(err, errors.CodeDataSourceUnavailable, c.source+": request cancelled"))
		}

		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
		if err != nil {
			return nil, c.fail(op, start, outcomeTransient, errors.Wrap(err, errors.CodeInternal, c.source+": build request"))
		}
		requestID := uuid.New().String()
		req.Header.Set(headerRequestID, requestID)
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", c.accept)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.username != "" || c.password != "" {
			req.SetBasicAuth(c.username, c.password)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = errors.Wrap(err, errors.CodeDataSourceUnavailable, c.source+": transport error").WithDetail(op)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = errors.Wrap(readErr, errors.CodeDataSourceUnavailable, c.source+": read response").WithDetail(op)
			continue
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			c.metrics.RecordSourceRequest(c.source, op, outcomeOK, c.now().Sub(start))
			return respBody, nil

		case resp.StatusCode == http.StatusNotFound:
			return nil, c.fail(op, start, outcomeNotFound,
				errors.Wrap(apiError(resp, requestID, respBody), errors.CodeNotFound, c.source+": not found").WithDetail(op))

		case resp.StatusCode == http.StatusTooManyRequests:
			retryAfter := ParseRetryAfter(resp.Header.Get(headerRetryAfter), c.now(), c.defaultRetryAfter)
			c.logger.Warn("rate limited by upstream",
				logging.Op(op), logging.Duration("retry_after", retryAfter), logging.String("request_id", requestID))
			rl := errors.RateLimited(retryAfter, c.source+rateLimitedSuffix).WithDetail(op).WithCause(apiError(resp, requestID, respBody))
			return nil, c.fail(op, start, outcomeRateLimited, rl)

		case shouldRetry(resp.StatusCode):
			lastErr = errors.Wrap(apiError(resp, requestID, respBody), errors.CodeDataSourceUnavailable, c.source+": server error").WithDetail(op)
			continue

		default:
			return nil, c.fail(op, start, outcomeTransient,
				errors.Wrap(apiError(resp, requestID, respBody), errors.CodeDataSourceUnavailable, c.source+": unexpected status").WithDetail(op))
		}
	}

	if lastErr == nil {
		lastErr = errors.Unavailable(c.source + ": request failed").WithDetail(op)
	}
	return nil, c.fail(op, start, outcomeTransient, lastErr)
}

func (c *Client) fail(op string, start time.Time, outcome string, err error) error {
	c.metrics.RecordSourceRequest(c.source, op, outcome, c.now().Sub(start))
	return err
}

// pace blocks until the token bucket grants one request or ctx is done.
func (c *Client) pace(ctx context.Context) error {
	if c.bucket == nil {
		return ctx.Err()
	}
	wait := c.bucket.Take(1)
	if wait <= 0 {
		return ctx.Err()
	}
	return sleep(ctx, wait)
}

// calculateBackoff returns retryWaitMin * 2^(attempt-1), capped at
// retryWaitMax, plus up to 25% jitter.
func (c *Client) calculateBackoff(attempt int) time.Duration {
	backoff := float64(c.retryWaitMin) * math.Pow(2, float64(attempt-1))
	if backoff > float64(c.retryWaitMax) {
		backoff = float64(c.retryWaitMax)
	}
	wait := time.Duration(backoff)
	if quarter := int64(wait) / 4; quarter > 0 {
		wait += time.Duration(rand.Int63n(quarter))
	}
	return wait
}

func shouldRetry(statusCode int) bool {
	return statusCode >= 500 && statusCode <= 599
}

func apiError(resp *http.Response, requestID string, body []byte) *APIError {
	if len(body) > maxErrorBodyBytes {
		body = body[:maxErrorBodyBytes]
	}
	return &APIError{StatusCode: resp.StatusCode, RequestID: requestID, Body: strings.TrimSpace(string(body))}
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

// ParseRetryAfter interprets a Retry-After header given either as delay
// seconds or as an HTTP date. Empty, unparsable or past values yield def.
func ParseRetryAfter(header string, now time.Time, def time.Duration) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return def
	}
	if secs, err := strconv.Atoi(header); err == nil {
		if secs < 0 {
			return def
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := at.Sub(now); d > 0 {
			return d.Round(time.Second)
		}
	}
	return def
}

const rateLimitedSuffix = ": rate limited"

// RateLimitedSource returns the source named by the first rate-limit error a
// Client raised in err's chain.
func RateLimitedSource(err error) (string, bool) {
	var ae *errors.AppError
	for err != nil {
		if stderrors.As(err, &ae) && ae.Code == errors.CodeDataSourceRateLimited {
			if src, ok := strings.CutSuffix(ae.Message, rateLimitedSuffix); ok {
				return src, true
			}
		}
		err = stderrors.Unwrap(err)
	}
	return "", false
}
