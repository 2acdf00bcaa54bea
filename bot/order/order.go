// Package order holds the order data model and the sequencer that numbers
// completed orders.
package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrStorage marks failures to read or write the persisted order state.
	ErrStorage = errors.New("order storage unavailable")
	// ErrCorruptState is returned by stores whose persisted state cannot be decoded.
	ErrCorruptState = errors.New("order state corrupt")
)

// Draft is the partial order collected during a conversation.
type Draft struct {
	Service string
	Amount  string
	Address string
}

// Customer identifies who placed an order.
type Customer struct {
	UserID      int64
	DisplayName string
	// Handle is the Telegram username without the leading @.
	Handle string
}

// Order is a completed, immutable order record.
type Order struct {
	OrderNo     string
	UserID      int64
	DisplayName string
	Handle      string
	Service     string
	Amount      string
	Address     string
	CreatedAt   time.Time
}

// New builds the order record for a finished draft. CreatedAt is kept in UTC
// at millisecond precision so every store round-trips it exactly.
func New(orderNo string, c Customer, d Draft, at time.Time) Order {
	return Order{
		OrderNo:     orderNo,
		UserID:      c.UserID,
		DisplayName: c.DisplayName,
		Handle:      c.Handle,
		Service:     d.Service,
		Amount:      d.Amount,
		Address:     d.Address,
		CreatedAt:   at.UTC().Truncate(time.Millisecond),
	}
}

// State is the persisted unit: the counter and every order issued so far.
type State struct {
	Counter int64
	Orders  []Order
}

// Store loads and saves the whole order state at once.
// Load returns the zero State when nothing was saved yet.
// Save replaces the persisted state atomically.
type Store interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, st State) error
}

// FormatNumber renders SLR-YYYY-NNNN. Counters above 9999 widen.
func FormatNumber(year int, counter int64) string {
	return fmt.Sprintf("SLR-%04d-%04d", year, counter)
}

// NormalizeAmount turns a decimal comma into a decimal point.
// Only the first comma is replaced.
func NormalizeAmount(s string) string {
	return strings.Replace(s, ",", ".", 1)
}
