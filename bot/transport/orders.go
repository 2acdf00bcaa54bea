package transport

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/slrbot/bot/order"
	"github.com/m3rciful/slrbot/core/logger"
	tghelpers "github.com/m3rciful/slrbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

const (
	noOrdersText    = "Aucune commande pour le moment."
	historyDownText = "⚠️ Historique indisponible, réessaie plus tard."
)

// onRecent lists the latest orders for the operator.
func (a *Adapter) onRecent(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "order.recent")
	ev := event(c, 0, "")
	if a.orders == nil {
		a.deliver(ctx, c, ev.ChatID, "recent", historyDownText, nil)
		return nil
	}
	list, err := a.orders.Recent(ctx, a.recentLimit)
	if err != nil {
		logger.Error(ctx, "service.orders", "order.recent",
			slog.String("status", "fail"),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		a.deliver(ctx, c, ev.ChatID, "recent", historyDownText, nil)
		return err
	}
	a.deliver(ctx, c, ev.ChatID, "recent", FormatRecent(list, a.loc), nil)
	return nil
}

// FormatRecent renders a plain-text listing of orders, one per line.
func FormatRecent(list []order.Order, loc *time.Location) string {
	if len(list) == 0 {
		return noOrdersText
	}
	if loc == nil {
		loc = time.UTC
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🧾 Dernières commandes (%d)\n", len(list))
	for _, o := range list {
		who := o.DisplayName
		if o.Handle != "" {
			who += " (@" + o.Handle + ")"
		}
		fmt.Fprintf(&b, "\n%s · %s · %s · %s · %s €",
			o.OrderNo,
			o.CreatedAt.In(loc).Format("02/01/2006 15:04"),
			who,
			o.Service,
			o.Amount,
		)
	}
	return b.String()
}
