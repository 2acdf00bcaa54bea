package order

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/m3rciful/slrbot/core/clock"
	"github.com/m3rciful/slrbot/core/logger"
)

// SequencerOptions configure a Sequencer.
type SequencerOptions struct {
	Clock clock.Clock
	// Location decides which calendar year goes into the order number. UTC when nil.
	Location *time.Location
}

// Sequencer issues order numbers and appends orders. Every read-modify-write of
// the store runs under one lock, so the counter never skips backwards or repeats.
type Sequencer struct {
	mu    sync.Mutex
	store Store
	clock clock.Clock
	loc   *time.Location
}

// NewSequencer returns a Sequencer persisting through store.
func NewSequencer(store Store, opts SequencerOptions) *Sequencer {
	c := opts.Clock
	if c == nil {
		c = clock.NewSystem()
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Sequencer{store: store, clock: c, loc: loc}
}

// Now returns the sequencer clock reading.
func (s *Sequencer) Now() time.Time {
	return s.clock.Now()
}

// Location returns the time zone used for order numbers.
func (s *Sequencer) Location() *time.Location {
	return s.loc
}

// NextNumber increments the counter, persists it and only then returns the
// formatted number. A store failure yields ErrStorage and no number.
func (s *Sequencer) NextNumber(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	st, err := s.store.Load(ctx)
	if err != nil {
		s.logFailure(ctx, "order.number", "load", err)
		return "", fmt.Errorf("%w: load: %w", ErrStorage, err)
	}
	st.Counter++
	if err := s.store.Save(ctx, st); err != nil {
		s.logFailure(ctx, "order.number", "save", err)
		return "", fmt.Errorf("%w: save counter: %w", ErrStorage, err)
	}

	no := FormatNumber(s.clock.Now().In(s.loc).Year(), st.Counter)
	logger.LogEvent(ctx, logger.Orders, slog.LevelInfo, "order.number",
		slog.String("status", "ok"),
		slog.String("order_no", no),
		slog.Int64("counter", st.Counter),
		slog.Duration("duration", logger.Took(start)),
	)
	return no, nil
}

// Append persists a completed order after the ones already stored.
func (s *Sequencer) Append(ctx context.Context, o Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	st, err := s.store.Load(ctx)
	if err != nil {
		s.logFailure(ctx, "order.append", "load", err)
		return fmt.Errorf("%w: load: %w", ErrStorage, err)
	}
	st.Orders = append(st.Orders, o)
	if err := s.store.Save(ctx, st); err != nil {
		s.logFailure(ctx, "order.append", "save", err)
		return fmt.Errorf("%w: save order %s: %w", ErrStorage, o.OrderNo, err)
	}
	logger.LogEvent(ctx, logger.Orders, slog.LevelInfo, "order.append",
		slog.String("status", "ok"),
		slog.String("order_no", o.OrderNo),
		slog.Int("orders", len(st.Orders)),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}

// Recent returns up to n orders, newest first. n <= 0 returns all of them.
func (s *Sequencer) Recent(ctx context.Context, n int) ([]Order, error) {
	s.mu.Lock()
	st, err := s.store.Load(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%w: load: %w", ErrStorage, err)
	}
	out := slices.Clone(st.Orders)
	slices.Reverse(out)
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// Counter returns the last issued counter value.
func (s *Sequencer) Counter(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.store.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: load: %w", ErrStorage, err)
	}
	return st.Counter, nil
}

func (s *Sequencer) logFailure(ctx context.Context, event, step string, err error) {
	logger.LogEvent(ctx, logger.Orders, slog.LevelError, event,
		slog.String("status", "fail"),
		slog.String("step", step),
		slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
	)
}
