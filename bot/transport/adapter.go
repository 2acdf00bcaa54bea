// Package transport connects the order conversation to Telegram: it maps
// updates to engine events and renders the resulting intents.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/slrbot/bot/conversation"
	"github.com/m3rciful/slrbot/bot/order"
	"github.com/m3rciful/slrbot/core/logger"
	tg "github.com/m3rciful/slrbot/core/telegram"
	"github.com/m3rciful/slrbot/core/telegram/commands"
	tghelpers "github.com/m3rciful/slrbot/core/telegram/helpers"
	"github.com/m3rciful/slrbot/core/telegram/keyboard"
	"github.com/m3rciful/slrbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CallbackOrderStart is the unique data of the welcome menu order button.
const CallbackOrderStart = "ORDER_START"

// Sender is the part of the Telegram API used to deliver messages.
// *tele.Bot satisfies it.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Respond(c *tele.Callback, resp ...*tele.CallbackResponse) error
}

// Engine is the conversation state machine driven by the adapter.
type Engine interface {
	Handle(ctx context.Context, ev conversation.Event) ([]conversation.Intent, error)
	Active(userID int64) bool
}

// OrderLister returns the latest orders, newest first.
type OrderLister interface {
	Recent(ctx context.Context, n int) ([]order.Order, error)
}

// Options configure an Adapter.
type Options struct {
	Engine           Engine
	Orders           OrderLister
	BackOfficeChatID int64
	ShopURL          string
	RecentLimit      int
	Location         *time.Location
	// Sender overrides the bot taken from the update context.
	Sender Sender
}

// Adapter is the Telegram side of the order conversation.
type Adapter struct {
	engine      Engine
	orders      OrderLister
	backOffice  int64
	shopURL     string
	recentLimit int
	loc         *time.Location
	sender      Sender
}

// New returns an Adapter. Engine is required.
func New(opts Options) (*Adapter, error) {
	if opts.Engine == nil {
		return nil, errors.New("transport: nil engine")
	}
	if opts.BackOfficeChatID == 0 {
		return nil, errors.New("transport: back office chat id is required")
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	limit := opts.RecentLimit
	if limit <= 0 {
		limit = 10
	}
	return &Adapter{
		engine:      opts.Engine,
		orders:      opts.Orders,
		backOffice:  opts.BackOfficeChatID,
		shopURL:     opts.ShopURL,
		recentLimit: limit,
		loc:         loc,
		sender:      opts.Sender,
	}, nil
}

// Register adds the bot commands and callbacks to reg.
func (a *Adapter) Register(reg *tg.Registry) error {
	cmds := []struct {
		name string
		cmd  commands.Command
	}{
		{"/start", commands.Command{Handler: a.onWelcome, Description: "Menu principal"}},
		{"/order", commands.Command{Handler: a.onOrder, Description: "Passer commande", Aliases: []string{"commande"}}},
		{"/cancel", commands.Command{Handler: a.onCancel, Description: "Annuler la commande", Aliases: []string{"annuler"}}},
		{"/orders", commands.Command{Handler: a.onRecent, Description: "Dernières commandes", AdminOnly: true, Hidden: true}},
	}
	for _, c := range cmds {
		if err := reg.RegisterCommand(c.name, c.cmd); err != nil {
			return err
		}
	}
	return reg.RegisterCallback(CallbackOrderStart, a.onOrderCallback)
}

// InProgress reports whether the user has an order in progress.
func (a *Adapter) InProgress(userID int64) bool {
	return a.engine.Active(userID)
}

// ManagerHandler handles text sent during an order.
func (a *Adapter) ManagerHandler(c tele.Context) error {
	return a.onText(c)
}

// UnknownText handles text outside of an order. The cancel label still works.
func (a *Adapter) UnknownText() tele.HandlerFunc {
	return a.onText
}

// UnknownCallback answers stale or foreign buttons without side effects.
func (a *Adapter) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		return a.respond(c)
	}
}

func (a *Adapter) onWelcome(c tele.Context) error {
	return a.dispatch(c, "start", event(c, conversation.EventWelcome, payload(c)))
}

func (a *Adapter) onOrder(c tele.Context) error {
	return a.dispatch(c, "order", event(c, conversation.EventStart, payload(c)))
}

func (a *Adapter) onOrderCallback(c tele.Context) error {
	if err := a.respond(c); err != nil {
		logger.Warn(tghelpers.BuildContext(c), "tg", "callback.respond",
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
	}
	return a.dispatch(c, "order", event(c, conversation.EventStart, ""))
}

func (a *Adapter) onCancel(c tele.Context) error {
	return a.dispatch(c, "cancel", event(c, conversation.EventCancel, ""))
}

func (a *Adapter) onText(c tele.Context) error {
	if strings.TrimSpace(c.Text()) == conversation.CancelLabel {
		return a.onCancel(c)
	}
	ev := event(c, conversation.EventText, "")
	ev.Text = c.Text()
	return a.dispatch(c, "text", ev)
}

// dispatch runs one event through the engine and renders what it returns.
// Engine errors are logged and returned for the handler summary; the user
// only ever sees the intents.
func (a *Adapter) dispatch(c tele.Context, name string, ev conversation.Event) error {
	if c.Sender() == nil {
		return nil
	}
	ctx := tghelpers.WithHandler(c, "order."+name)
	intents, err := a.engine.Handle(ctx, ev)
	a.render(ctx, c, intents)
	if err != nil {
		logger.Error(ctx, "service.orders", "order.failed",
			slog.String("status", "fail"),
			slog.String("kind", ev.Kind.String()),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return err
	}
	return nil
}

func event(c tele.Context, kind conversation.EventKind, payload string) conversation.Event {
	ev := conversation.Event{Kind: kind, Payload: strings.TrimSpace(payload)}
	if u := c.Sender(); u != nil {
		ev.User = conversation.User{
			ID:        u.ID,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Username:  u.Username,
		}
		ev.ChatID = u.ID
	}
	if chat := c.Chat(); chat != nil {
		ev.ChatID = chat.ID
	}
	return ev
}

func (a *Adapter) render(ctx context.Context, c tele.Context, intents []conversation.Intent) {
	for _, in := range intents {
		switch v := in.(type) {
		case conversation.Welcome:
			markup := keyboard.InlineButtons(
				keyboard.InlineBtn{Text: conversation.OrderButtonLabel, Unique: CallbackOrderStart},
				keyboard.InlineBtn{Text: conversation.ShopButtonLabel, URL: a.shopURL},
			)
			a.deliver(ctx, c, v.ChatID, "welcome", v.Text, &tele.SendOptions{ParseMode: tele.ModeMarkdown, ReplyMarkup: markup})
		case conversation.Prompt:
			opts := &tele.SendOptions{}
			if v.Markdown {
				opts.ParseMode = tele.ModeMarkdown
			}
			if v.Choices == conversation.ChoiceCancel {
				opts.ReplyMarkup = keyboard.ReplyButtons([]string{conversation.CancelLabel})
			}
			a.deliver(ctx, c, v.ChatID, "prompt", v.Text, opts)
		case conversation.NotifyBackOffice:
			a.deliver(ctx, c, a.backOffice, "backoffice", v.Text, &tele.SendOptions{ParseMode: tele.ModeMarkdown})
		case conversation.ConfirmUser:
			a.deliver(ctx, c, v.ChatID, "confirm", v.Text, &tele.SendOptions{ReplyMarkup: keyboard.RemoveKeyboard()})
		case conversation.CancelAck:
			a.deliver(ctx, c, v.ChatID, "cancel_ack", v.Text, &tele.SendOptions{ReplyMarkup: keyboard.RemoveKeyboard()})
		default:
			logger.Warn(ctx, "tg", "intent.unknown", slog.String("type", fmt.Sprintf("%T", in)))
		}
	}
}

// deliver queues a message for chatID. Failures are logged by the sender and
// never undo what the engine already persisted.
func (a *Adapter) deliver(ctx context.Context, c tele.Context, chatID int64, action, text string, opts *tele.SendOptions) {
	s := a.senderFor(c)
	if s == nil {
		logger.Error(ctx, "tg.sender", "send.skip", slog.String("action", action), slog.String("reason", "no_sender"))
		return
	}
	middleware.CountSent(c, opts != nil && opts.ReplyMarkup != nil)
	err := tghelpers.Dispatch(ctx, chatID, "order."+action, func() error {
		var err error
		if opts != nil {
			_, err = s.Send(tele.ChatID(chatID), text, opts)
		} else {
			_, err = s.Send(tele.ChatID(chatID), text)
		}
		return err
	})
	if err != nil {
		logger.Error(ctx, "tg.sender", "send.failed",
			slog.String("action", action),
			slog.Int64("to", chatID),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
	}
}

func (a *Adapter) respond(c tele.Context) error {
	cb := c.Callback()
	if cb == nil {
		return nil
	}
	s := a.senderFor(c)
	if s == nil {
		return nil
	}
	return s.Respond(cb)
}

func (a *Adapter) senderFor(c tele.Context) Sender {
	if a.sender != nil {
		return a.sender
	}
	if c == nil {
		return nil
	}
	var api any = c.Bot()
	if b, ok := api.(Sender); ok {
		return b
	}
	return nil
}

func payload(c tele.Context) string {
	if m := c.Message(); m != nil {
		return m.Payload
	}
	return ""
}
