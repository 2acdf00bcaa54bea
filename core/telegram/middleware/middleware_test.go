package middleware

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/slrbot/core/logger"
	tghelpers "github.com/m3rciful/slrbot/core/telegram/helpers"
)

func newContext(t *testing.T, updateID int, userID int64, text string) tele.Context {
	t.Helper()
	b, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)
	return b.NewContext(tele.Update{
		ID: updateID,
		Message: &tele.Message{
			Sender: &tele.User{ID: userID},
			Chat:   &tele.Chat{ID: userID},
			Text:   text,
		},
	})
}

func TestRateLimitBlocksBurstsPerUser(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	limited := 0
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Second,
		Now:       func() time.Time { return now },
		OnLimited: func(tele.Context) error { limited++; return nil },
	})
	calls := 0
	h := mw(func(tele.Context) error { calls++; return nil })

	require.NoError(t, h(newContext(t, 1, 10, "a")))
	require.NoError(t, h(newContext(t, 2, 10, "b")))
	require.NoError(t, h(newContext(t, 3, 11, "c")))
	now = now.Add(2 * time.Second)
	require.NoError(t, h(newContext(t, 4, 10, "d")))

	assert.Equal(t, 3, calls)
	assert.Equal(t, 1, limited)
}

func TestRateLimitHonoursExclusions(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval: time.Minute,
		Exclude:  map[string]struct{}{"message": {}},
		Now:      func() time.Time { return now },
	})
	calls := 0
	h := mw(func(tele.Context) error { calls++; return nil })
	for i := 0; i < 3; i++ {
		require.NoError(t, h(newContext(t, i, 10, "x")))
	}
	assert.Equal(t, 3, calls)
}

func TestAdminOnly(t *testing.T) {
	rejected := 0
	mw := AdminOnlyMiddleware(AdminOptions{
		AdminID:  99,
		OnReject: func(tele.Context) error { rejected++; return nil },
	})
	calls := 0
	h := mw(func(tele.Context) error { calls++; return nil })

	require.NoError(t, h(newContext(t, 1, 99, "/orders")))
	require.NoError(t, h(newContext(t, 2, 5, "/orders")))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, rejected)
}

func TestRecoverSwallowsPanics(t *testing.T) {
	h := RecoverMiddleware(func(tele.Context) error { panic("boom") })
	assert.NoError(t, h(newContext(t, 1, 1, "x")))

	want := errors.New("plain")
	h = RecoverMiddleware(func(tele.Context) error { return want })
	assert.ErrorIs(t, h(newContext(t, 1, 1, "x")), want)
}

func TestLoggerMiddlewareStoresCorrelation(t *testing.T) {
	c := newContext(t, 42, 7, "hello")
	h := LoggerMiddleware(func(c tele.Context) error {
		ctx, ok := tghelpers.ContextFrom(c)
		require.True(t, ok)
		assert.Equal(t, logger.BuildRID(42, 7, 7), logger.RIDFrom(ctx))
		assert.Equal(t, int64(7), logger.UserIDFrom(ctx))
		return nil
	})
	require.NoError(t, h(c))
}

func TestMetricsCountsSends(t *testing.T) {
	c := newContext(t, 1, 1, "x")
	h := MessageMetricsMiddleware(func(c tele.Context) error {
		CountSent(c, true)
		CountSent(c, false)
		return nil
	})
	require.NoError(t, h(c))
	msgs, kb := GetCounters(c)
	assert.Equal(t, 2, msgs)
	assert.True(t, kb)
}
