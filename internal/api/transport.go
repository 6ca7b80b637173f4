package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"recipe-companion/internal/metrics"
	"recipe-companion/internal/session"
)

// RetryPolicy bounds retries of transient failures on GET and HEAD.
type RetryPolicy struct {
	// MaxAttempts counts the first try.
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialInterval: 200 * time.Millisecond, MaxInterval: 2 * time.Second}
}

// CallRecorder stores one row per backend call.
type CallRecorder interface {
	RecordCall(ctx context.Context, call metrics.APICall) error
}

// --------------------------------------------------------------------
// metricsTransport: outermost, one observation per logical call
// --------------------------------------------------------------------

type metricsTransport struct {
	base     http.RoundTripper
	recorder CallRecorder
}

func (t *metricsTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.base.RoundTrip(req)

	status := 0
	label := "error"
	if err == nil {
		status = resp.StatusCode
		label = strconv.Itoa(status)
	}
	requestsTotal.WithLabelValues(req.Method, label).Inc()

	if t.recorder != nil {
		call := metrics.APICall{
			Endpoint:  routeOf(req),
			Method:    req.Method,
			Status:    status,
			Latency:   time.Since(start),
			Timestamp: start.UTC(),
		}
		// Recording must outlive a cancelled request context.
		if rerr := t.recorder.RecordCall(context.WithoutCancel(req.Context()), call); rerr != nil {
			log.Warn().Err(rerr).Str("endpoint", call.Endpoint).Msg("Failed to record API call")
		}
	}
	return resp, err
}

// --------------------------------------------------------------------
// authTransport: bearer injection and the single renew-and-retry on 403
// --------------------------------------------------------------------

type authTransport struct {
	base   http.RoundTripper
	source session.Source
	// host is the backend's host; redirects elsewhere get no token.
	host string
}

func withBearer(req *http.Request, token string) *http.Request {
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Bearer "+token)
	return r
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !requiresAuth(req.Context()) || (t.host != "" && req.URL.Host != t.host) {
		return t.base.RoundTrip(req)
	}
	if t.source == nil {
		return nil, session.ErrNoAccessToken
	}
	stale, ok := t.source.Current()
	if !ok || stale.AccessToken == "" {
		return nil, session.ErrNoAccessToken
	}

	resp, err := t.base.RoundTrip(withBearer(req, stale.AccessToken))
	if err != nil || resp.StatusCode != http.StatusForbidden {
		return resp, err
	}
	// A body that cannot be replayed cannot be retried.
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		return resp, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	log.Debug().Str("method", req.Method).Str("route", routeOf(req)).Msg("Access token rejected, renewing session")
	fresh, err := t.source.Renew(req.Context(), stale)
	if err != nil {
		reauthTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	reauthTotal.WithLabelValues("renewed").Inc()

	retry := withBearer(req, fresh.AccessToken)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("replay request body: %w", err)
		}
		retry.Body = body
	}
	return t.base.RoundTrip(retry)
}

// --------------------------------------------------------------------
// retryTransport: exponential backoff for transient read failures
// --------------------------------------------------------------------

type retryTransport struct {
	base   http.RoundTripper
	policy RetryPolicy
}

func transientStatus(code int) bool {
	switch code {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func idempotent(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.policy.MaxAttempts <= 1 || !idempotent(req.Method) {
		return t.base.RoundTrip(req)
	}

	ctx := req.Context()
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = t.policy.InitialInterval
	eb.MaxInterval = t.policy.MaxInterval
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(t.policy.MaxAttempts-1)), ctx)

	var resp *http.Response
	attempt := 0
	op := func() error {
		attempt++
		r, err := t.base.RoundTrip(req)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, session.ErrNoAccessToken) {
				return backoff.Permanent(err)
			}
			if attempt < t.policy.MaxAttempts {
				retriesTotal.WithLabelValues("transport").Inc()
			}
			return err
		}
		if transientStatus(r.StatusCode) && attempt < t.policy.MaxAttempts {
			_, _ = io.Copy(io.Discard, r.Body)
			r.Body.Close()
			retriesTotal.WithLabelValues(strconv.Itoa(r.StatusCode)).Inc()
			return fmt.Errorf("transient status %d", r.StatusCode)
		}
		resp = r
		return nil
	}
	notify := func(err error, wait time.Duration) {
		log.Debug().Err(err).Str("route", routeOf(req)).Int("attempt", attempt).Dur("wait", wait).Msg("Retrying request")
	}

	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return nil, err
	}
	return resp, nil
}

// --------------------------------------------------------------------
// debugTransport: optional HTTP round-trip logger
// --------------------------------------------------------------------

type debugTransport struct{ base http.RoundTripper }

func redact(dump []byte, req *http.Request) string {
	s := string(dump)
	if auth := req.Header.Get("Authorization"); auth != "" {
		s = strings.ReplaceAll(s, auth, "Bearer [redacted]")
	}
	return s
}

func (dt *debugTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if reqDump, err := httputil.DumpRequestOut(req, true); err == nil {
		log.Debug().Str("method", req.Method).Str("url", req.URL.String()).Str("request_dump", redact(reqDump, req)).Msg("HTTP request")
	}

	resp, err := dt.base.RoundTrip(req)
	if err != nil {
		log.Error().Err(err).Str("method", req.Method).Str("url", req.URL.String()).Msg("HTTP request failed")
		return nil, err
	}

	if respDump, err := httputil.DumpResponse(resp, true); err == nil {
		log.Debug().Str("method", req.Method).Str("url", req.URL.String()).Int("status_code", resp.StatusCode).Str("response_dump", string(respDump)).Msg("HTTP response")
	}
	return resp, nil
}
