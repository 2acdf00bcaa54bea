package telegram

import (
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/slrbot/core/telegram/netutil"
)

const (
	defaultDialTimeout   = 5 * time.Second
	defaultTLSHandshake  = 5 * time.Second
	defaultIdleTimeout   = 30 * time.Second
	defaultKeepAlive     = 30 * time.Second
	defaultRequestBudget = 15 * time.Second
	defaultRetryAttempts = 3
	defaultRetryBackoff  = 2 * time.Second
)

// BuildHTTPClient returns an HTTP client tuned for Telegram API calls.
// longPoll is the getUpdates timeout; responses may legitimately take that long.
func BuildHTTPClient(longPoll time.Duration) *http.Client {
	budget := longPoll + defaultRequestBudget
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       defaultIdleTimeout,
		TLSHandshakeTimeout:   defaultTLSHandshake,
		ResponseHeaderTimeout: budget,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{
		Timeout: budget + defaultRequestBudget,
		Transport: &retryTransport{
			base:       transport,
			maxRetries: defaultRetryAttempts,
			backoff:    defaultRetryBackoff,
		},
	}
}

// retryTransport replays requests that failed before reaching Telegram.
type retryTransport struct {
	base       http.RoundTripper
	maxRetries int
	backoff    time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		r := req
		if attempt > 0 {
			if req.Body != nil && req.GetBody == nil {
				return nil, lastErr
			}
			r = req.Clone(req.Context())
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, err
				}
				r.Body = body
			}
			timer := time.NewTimer(t.backoff * time.Duration(attempt))
			select {
			case <-req.Context().Done():
				timer.Stop()
				return nil, req.Context().Err()
			case <-timer.C:
			}
		}
		resp, err := t.base.RoundTrip(r)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !netutil.ShouldRetry(err) {
			break
		}
	}
	return nil, lastErr
}
