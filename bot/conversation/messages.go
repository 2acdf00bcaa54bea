package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/m3rciful/slrbot/bot/order"
	"github.com/m3rciful/slrbot/core/telegram/format"
)

// User-facing copy. Texts marked Markdown are sent with the legacy Markdown
// parse mode: user-provided values are escaped outside entities and go
// through format.MDBold inside bold ones.
const (
	// CancelLabel is the reply keyboard button that cancels the current order.
	CancelLabel = "❌ Annuler"
	// OrderButtonLabel starts a new order from the welcome menu.
	OrderButtonLabel = "📦 Passer commande"
	// ShopButtonLabel opens the shop URL from the welcome menu.
	ShopButtonLabel = "🛒 Ouvrir le Shop"

	// Markdown.
	welcomeText = "👋 *Bienvenue chez SLR BOOST*\n\n" +
		"Tu peux commander en 30 secondes.\n" +
		"Clique ci-dessous :"
	// Markdown.
	askServiceText = "📦 *Nouvelle commande SLR BOOST*\n\n🛠 Quel service souhaites-tu commander ?"
	askAmountText  = "💰 Quel est le montant de la commande (€) ?"
	askAddressText = "📍 Donne ton adresse complète :"
	cancelledText  = "✅ Commande annulée."
	retryText      = "⚠️ Ta commande n'a pas pu être enregistrée. Renvoie ton adresse pour réessayer, ou annule."

	defaultDisplayName = "Client"
	noHandleText       = "(sans username)"
	summaryDateLayout  = "02/01/2006 15:04:05"
)

// seededPromptText is sent when a deep link pre-fills service and amount. Markdown.
func seededPromptText(d order.Draft) string {
	return fmt.Sprintf("🛠 Service détecté : %s\n💰 Montant détecté : %s\n\n%s",
		format.MDBold(d.Service), format.MDBold(d.Amount+" €"), askAddressText)
}

// confirmationText is sent to the customer once the order is stored.
func confirmationText(orderNo string) string {
	return fmt.Sprintf("✅ Commande reçue !\n\nNuméro : %s\nOn te recontacte rapidement.", orderNo)
}

// Summary renders the back-office notice for an order, with the date shown in loc. Markdown.
func Summary(o order.Order, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	handle := noHandleText
	if o.Handle != "" {
		handle = format.MD("@" + o.Handle)
	}
	var b strings.Builder
	b.WriteString("🆕 *NOUVELLE COMMANDE SLR BOOST*\n\n")
	fmt.Fprintf(&b, "🧾 Commande : *%s*\n", o.OrderNo)
	fmt.Fprintf(&b, "👤 Client : %s %s (ID %d)\n", format.MDBold(o.DisplayName), handle, o.UserID)
	fmt.Fprintf(&b, "🛠 Service : %s\n", format.MDBold(o.Service))
	fmt.Fprintf(&b, "💰 Montant : %s\n", format.MDBold(o.Amount+" €"))
	fmt.Fprintf(&b, "📍 Adresse :\n%s\n\n", format.MD(o.Address))
	fmt.Fprintf(&b, "⏱ Date : %s", o.CreatedAt.In(loc).Format(summaryDateLayout))
	return b.String()
}

// displayName joins first and last name, falling back to a neutral label.
func displayName(u User) string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name == "" {
		return defaultDisplayName
	}
	return name
}
