package telegram

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestRetryTransportReplaysDialFailures(t *testing.T) {
	calls := 0
	rt := &retryTransport{
		maxRetries: 2,
		backoff:    time.Millisecond,
		base: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			calls++
			if calls < 3 {
				return nil, &net.OpError{Op: "dial", Err: errors.New("refused")}
			}
			return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody}, nil
		}),
	}
	req, err := http.NewRequest(http.MethodPost, "https://api.telegram.org/botX/sendMessage", strings.NewReader("text=hi"))
	require.NoError(t, err)

	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, calls)
}

func TestRetryTransportStopsOnPermanentErrors(t *testing.T) {
	calls := 0
	rt := &retryTransport{
		maxRetries: 3,
		base: roundTripFunc(func(*http.Request) (*http.Response, error) {
			calls++
			return nil, errors.New("certificate signed by unknown authority")
		}),
	}
	req, err := http.NewRequest(http.MethodGet, "https://api.telegram.org/botX/getMe", nil)
	require.NoError(t, err)

	_, err = rt.RoundTrip(req)
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestBuildHTTPClientOutlastsLongPoll(t *testing.T) {
	c := BuildHTTPClient(50 * time.Second)
	assert.Greater(t, c.Timeout, 50*time.Second)
}

func TestBuildPoller(t *testing.T) {
	p := BuildPoller(PollerOptions{RunMode: "webhook", Webhook: WebhookOptions{Listen: "0.0.0.0", Port: 8443, URL: "https://bot.example.com/hook"}})
	wh, ok := p.(*tele.Webhook)
	require.True(t, ok)
	assert.Equal(t, "0.0.0.0:8443", wh.Listen)
	assert.Equal(t, "https://bot.example.com/hook", wh.Endpoint.PublicURL)

	lp, ok := BuildPoller(PollerOptions{}).(*tele.LongPoller)
	require.True(t, ok)
	assert.Equal(t, 10*time.Second, lp.Timeout)
}
