package httpclient

import (
	"net/http"
	"time"

	"github.com/juju/ratelimit"

	"github.com/turtacn/trialscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/trialscope/internal/infrastructure/monitoring/prometheus"
)

// Option is a functional option for configuring the Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithTimeout sets the per-attempt timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithLogger sets a custom logger
func WithLogger(logger logging.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records request outcomes on m.
func WithMetrics(m *prometheus.AppMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithRateLimit paces requests to rps with the given burst. A non-positive
// rps disables pacing.
func WithRateLimit(rps float64, burst int64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.bucket = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.bucket = ratelimit.NewBucketWithRate(rps, burst)
	}
}

// WithRetryMax sets the maximum number of retries
func WithRetryMax(retryMax int) Option {
	return func(c *Client) {
		if retryMax >= 0 {
			c.retryMax = retryMax
		}
	}
}

// WithRetryWait sets the minimum and maximum retry wait durations
// Both min and max must be positive, and max must be >= min for values to be set
func WithRetryWait(min, max time.Duration) Option {
	return func(c *Client) {
		if min > 0 {
			c.retryWaitMin = min
			if max >= min {
				c.retryWaitMax = max
			}
		}
	}
}

// WithDefaultRetryAfter sets the wait reported for a 429 without a usable
// Retry-After header.
func WithDefaultRetryAfter(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.defaultRetryAfter = d
		}
	}
}

// WithUserAgent sets a custom User-Agent string
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		if userAgent != "" {
			c.userAgent = userAgent
		}
	}
}

// WithAccept sets the Accept header.
func WithAccept(accept string) Option {
	return func(c *Client) {
		if accept != "" {
			c.accept = accept
		}
	}
}

// WithBasicAuth sends HTTP basic credentials on every request.
func WithBasicAuth(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}
