package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/m3rciful/slrbot/core/logger"
	tghelpers "github.com/m3rciful/slrbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// RecoverMiddleware turns a handler panic into a logged error. A pending
// callback is answered so the client stops showing the spinner.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			logger.TG.LogAttrs(tghelpers.BuildContext(c), slog.LevelError, "panic recovered",
				slog.String("event", "tg.panic"),
				slog.String("err", logger.SanitizeLimit(fmt.Sprint(r), 256)),
				slog.String("stack", string(debug.Stack())),
			)
			if c.Callback() != nil {
				_ = c.Respond()
			}
			err = nil
		}()
		return next(c)
	}
}
