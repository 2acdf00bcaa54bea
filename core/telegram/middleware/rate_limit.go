package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/slrbot/core/logger"
	tghelpers "github.com/m3rciful/slrbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// RateLimitOptions configures behaviour of the rate limit middleware.
type RateLimitOptions struct {
	Interval  time.Duration
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
	// Now defaults to time.Now.
	Now func() time.Time
}

// RateLimitMiddleware returns a middleware that enforces a minimum interval
// between updates from the same user.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	var (
		mu       sync.Mutex
		lastSeen = make(map[int64]time.Time)
	)
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			if _, skip := opts.Exclude[updateKind(c.Update())]; skip {
				return next(c)
			}

			t := now()
			mu.Lock()
			last, seen := lastSeen[user.ID]
			limited := seen && t.Sub(last) < opts.Interval
			if !limited {
				lastSeen[user.ID] = t
			}
			mu.Unlock()

			if !limited {
				return next(c)
			}
			logger.TG.LogAttrs(tghelpers.BuildContext(c), slog.LevelWarn, "rate limit",
				slog.String("event", "tg.rate_limit"),
				slog.Int64("user_id", user.ID),
			)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}

func updateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return "callback"
	case upd.Message != nil:
		return "message"
	default:
		return "other"
	}
}
