package api

// Functional options that configure the Client during New.

import (
	"fmt"
	"net/http"
	"time"
)

// Option mutates the Client during New().
type Option func(*Client) error

// WithHTTPClient uses hc's transport as the innermost round tripper and its
// timeout as the per-call timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return fmt.Errorf("nil http client")
		}
		if hc.Transport != nil {
			c.base = hc.Transport
		}
		if hc.Timeout > 0 {
			c.timeout = hc.Timeout
		}
		return nil
	}
}

// WithTimeout bounds every call, retries included.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %s", d)
		}
		c.timeout = d
		return nil
	}
}

// WithDebugLogging dumps every request and response at debug level.
func WithDebugLogging(enabled bool) Option {
	return func(c *Client) error {
		c.debug = enabled
		return nil
	}
}

// WithRetryPolicy replaces the transient retry policy. MaxAttempts 1
// disables retries.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) error {
		if p.MaxAttempts < 1 {
			return fmt.Errorf("retry max attempts must be at least 1, got %d", p.MaxAttempts)
		}
		if p.InitialInterval <= 0 {
			p.InitialInterval = DefaultRetryPolicy().InitialInterval
		}
		if p.MaxInterval < p.InitialInterval {
			p.MaxInterval = p.InitialInterval
		}
		c.retry = p
		return nil
	}
}

// WithCallRecorder records every call's route, status and latency.
func WithCallRecorder(r CallRecorder) Option {
	return func(c *Client) error {
		c.recorder = r
		return nil
	}
}
