package helpers

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/slrbot/core/logger"
	"github.com/m3rciful/slrbot/core/telegram/sender"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by helper functions.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

// Dispatch hands run to the asynchronous sender under key, usually the target chat ID.
// Without a dispatcher, or when its queue refuses the job, run executes inline.
func Dispatch(ctx context.Context, key int64, action string, run func() error) error {
	disp := globalDispatcher.Load()
	if disp == nil {
		return run()
	}
	if err := disp.Enqueue(ctx, key, action, run); err != nil {
		if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
			logger.Warn(ctx, "tg.sender", "queue.fallback",
				slog.String("action", action),
				slog.String("err", err.Error()),
			)
			return run()
		}
		return err
	}
	return nil
}
