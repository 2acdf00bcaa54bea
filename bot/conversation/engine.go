// Package conversation drives the per-user order dialogue. The engine turns
// inbound events into intents and never talks to Telegram itself.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/m3rciful/slrbot/bot/order"
	"github.com/m3rciful/slrbot/core/clock"
	"github.com/m3rciful/slrbot/core/logger"
	"github.com/m3rciful/slrbot/core/telegram/state"
)

// Dialogue steps. A user without a session has no step.
const (
	StepService state.State = "service"
	StepAmount  state.State = "amount"
	StepAddress state.State = "address"
)

// PayloadPrefix marks a start payload carrying a pre-selected service and price.
const PayloadPrefix = "order_"

// Sequencer numbers and records completed orders.
type Sequencer interface {
	NextNumber(ctx context.Context) (string, error)
	Append(ctx context.Context, o order.Order) error
}

// Sessions is the per-user session table used by the engine.
type Sessions = state.Store[order.Draft]

// NewSessions returns an empty session table.
func NewSessions(opts state.Options) *Sessions {
	return state.NewStore[order.Draft](opts)
}

// Options configure an Engine.
type Options struct {
	Sequencer Sequencer
	// Sessions defaults to a table whose sessions never expire.
	Sessions *Sessions
	Clock    clock.Clock
	// Location is used for dates shown to the back office. UTC when nil.
	Location *time.Location
}

// Engine is the order dialogue state machine.
type Engine struct {
	seq      Sequencer
	sessions *Sessions
	clock    clock.Clock
	loc      *time.Location
}

// New returns an Engine. It panics without a Sequencer.
func New(opts Options) *Engine {
	if opts.Sequencer == nil {
		panic("conversation: nil sequencer")
	}
	c := opts.Clock
	if c == nil {
		c = clock.NewSystem()
	}
	sessions := opts.Sessions
	if sessions == nil {
		sessions = NewSessions(state.Options{Clock: c})
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{seq: opts.Sequencer, sessions: sessions, clock: c, loc: loc}
}

// Active reports whether the user is in the middle of an order.
func (e *Engine) Active(userID int64) bool {
	return e.sessions.InProgress(userID)
}

// Session returns the current step and draft of a user.
func (e *Engine) Session(userID int64) (state.State, order.Draft, bool) {
	sess, ok := e.sessions.Get(userID)
	if !ok {
		return "", order.Draft{}, false
	}
	return sess.State, sess.Data, true
}

// Sessions exposes the session table, for sweeping.
func (e *Engine) Sessions() *Sessions {
	return e.sessions
}

// Handle applies one event and returns the intents to deliver. Events of one
// user are serialized. The only error returned is a wrapped order.ErrStorage
// when a completed order could not be recorded; the retry prompt is still
// among the returned intents.
func (e *Engine) Handle(ctx context.Context, ev Event) ([]Intent, error) {
	unlock := e.sessions.Lock(ev.User.ID)
	defer unlock()

	switch ev.Kind {
	case EventWelcome:
		out := []Intent{Welcome{ChatID: ev.ChatID, Text: welcomeText}}
		if draft, ok := DecodePayload(ev.Payload); ok {
			out = append(out, e.seed(ctx, ev, draft))
		}
		return out, nil
	case EventStart:
		if draft, ok := DecodePayload(ev.Payload); ok {
			return []Intent{e.seed(ctx, ev, draft)}, nil
		}
		e.sessions.Put(ev.User.ID, StepService, order.Draft{})
		e.trace(ctx, "order.start", ev, StepService)
		return []Intent{Prompt{ChatID: ev.ChatID, Text: askServiceText, Markdown: true, Choices: ChoiceCancel}}, nil
	case EventCancel:
		if e.sessions.Delete(ev.User.ID) {
			e.trace(ctx, "order.cancel", ev, "")
		}
		return []Intent{CancelAck{ChatID: ev.ChatID, Text: cancelledText}}, nil
	case EventText:
		return e.text(ctx, ev)
	default:
		return nil, nil
	}
}

func (e *Engine) seed(ctx context.Context, ev Event, draft order.Draft) Intent {
	e.sessions.Put(ev.User.ID, StepAddress, draft)
	e.trace(ctx, "order.start", ev, StepAddress, slog.Bool("seeded", true))
	return Prompt{ChatID: ev.ChatID, Text: seededPromptText(draft), Markdown: true, Choices: ChoiceCancel}
}

func (e *Engine) text(ctx context.Context, ev Event) ([]Intent, error) {
	text := strings.TrimSpace(ev.Text)
	if text == "" || strings.HasPrefix(text, "/") {
		return nil, nil
	}
	sess, ok := e.sessions.Get(ev.User.ID)
	if !ok {
		return nil, nil
	}

	draft := sess.Data
	switch sess.State {
	case StepService:
		draft.Service = text
		e.sessions.Put(ev.User.ID, StepAmount, draft)
		e.trace(ctx, "order.step", ev, StepAmount)
		return []Intent{Prompt{ChatID: ev.ChatID, Text: askAmountText, Choices: ChoiceCancel}}, nil
	case StepAmount:
		draft.Amount = order.NormalizeAmount(text)
		e.sessions.Put(ev.User.ID, StepAddress, draft)
		e.trace(ctx, "order.step", ev, StepAddress)
		return []Intent{Prompt{ChatID: ev.ChatID, Text: askAddressText, Choices: ChoiceCancel}}, nil
	case StepAddress:
		draft.Address = text
		return e.complete(ctx, ev, draft)
	default:
		return nil, nil
	}
}

func (e *Engine) complete(ctx context.Context, ev Event, draft order.Draft) ([]Intent, error) {
	retry := []Intent{Prompt{ChatID: ev.ChatID, Text: retryText, Choices: ChoiceCancel}}

	no, err := e.seq.NextNumber(ctx)
	if err != nil {
		return retry, fmt.Errorf("conversation: number order: %w", asStorage(err))
	}
	customer := order.Customer{
		UserID:      ev.User.ID,
		DisplayName: displayName(ev.User),
		Handle:      strings.TrimPrefix(strings.TrimSpace(ev.User.Username), "@"),
	}
	o := order.New(no, customer, draft, e.clock.Now())
	if err := e.seq.Append(ctx, o); err != nil {
		return retry, fmt.Errorf("conversation: record order %s: %w", no, asStorage(err))
	}
	e.sessions.Delete(ev.User.ID)
	e.trace(ctx, "order.complete", ev, "", slog.String("order_no", no))

	return []Intent{
		NotifyBackOffice{Text: Summary(o, e.loc), Order: o},
		ConfirmUser{ChatID: ev.ChatID, OrderNo: no, Text: confirmationText(no)},
	}, nil
}

func (e *Engine) trace(ctx context.Context, event string, ev Event, next state.State, attrs ...slog.Attr) {
	attrs = append([]slog.Attr{
		slog.Int64("user_id", ev.User.ID),
		slog.String("step", string(next)),
	}, attrs...)
	logger.LogEvent(ctx, logger.Orders, slog.LevelDebug, event, attrs...)
}

// DecodePayload extracts the draft encoded in an order_<service>_<price>
// payload. Missing or badly escaped segments decode to empty strings.
func DecodePayload(payload string) (order.Draft, bool) {
	payload = strings.TrimSpace(payload)
	if !strings.HasPrefix(payload, PayloadPrefix) {
		return order.Draft{}, false
	}
	parts := strings.Split(payload, "_")
	return order.Draft{
		Service: segment(parts, 1),
		Amount:  segment(parts, 2),
	}, true
}

func segment(parts []string, i int) string {
	if i >= len(parts) {
		return ""
	}
	s, err := url.PathUnescape(parts[i])
	if err != nil {
		return ""
	}
	return s
}

func asStorage(err error) error {
	if errors.Is(err, order.ErrStorage) {
		return err
	}
	return fmt.Errorf("%w: %w", order.ErrStorage, err)
}
