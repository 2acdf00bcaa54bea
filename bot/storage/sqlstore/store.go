// Package sqlstore persists the order state in PostgreSQL or SQLite through sqlx.
package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/slrbot/bot/order"
	coredatabase "github.com/m3rciful/slrbot/core/database"
	"github.com/m3rciful/slrbot/core/logger"
)

//go:embed migrations
var migrationFiles embed.FS

// ErrShrink is returned when a save would drop orders already stored.
var ErrShrink = errors.New("sqlstore: orders are append-only")

// Migrations returns the embedded schema for the given database driver.
func Migrations(driver string) coredatabase.Migrations {
	return coredatabase.Migrations{FS: migrationFiles, Dir: "migrations/" + driver}
}

type orderRow struct {
	Position    int64     `db:"position"`
	OrderNo     string    `db:"order_no"`
	UserID      int64     `db:"user_id"`
	DisplayName string    `db:"display_name"`
	Handle      string    `db:"handle"`
	Service     string    `db:"service"`
	Amount      string    `db:"amount"`
	Address     string    `db:"address"`
	CreatedAt   time.Time `db:"created_at"`
}

// Store implements order.Store on top of the order_counter and orders tables.
type Store struct {
	db     *sqlx.DB
	driver string
}

// New wraps an open connection. The schema must already be migrated.
func New(db *sqlx.DB) *Store {
	return &Store{db: db, driver: db.DriverName()}
}

// Load reads the counter and every order in insertion order.
func (s *Store) Load(ctx context.Context) (order.State, error) {
	var st order.State
	err := s.db.GetContext(ctx, &st.Counter, `SELECT value FROM order_counter WHERE id = 1`)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return order.State{}, fmt.Errorf("sqlstore: read counter: %w", err)
	}

	var rows []orderRow
	if err := s.db.SelectContext(ctx, &rows, `
SELECT position, order_no, user_id, display_name, handle, service, amount, address, created_at
FROM orders
ORDER BY position`); err != nil {
		return order.State{}, fmt.Errorf("sqlstore: read orders: %w", err)
	}
	for i, r := range rows {
		if r.Position != int64(i+1) {
			return order.State{}, fmt.Errorf("sqlstore: gap before position %d: %w", r.Position, order.ErrCorruptState)
		}
		st.Orders = append(st.Orders, order.Order{
			OrderNo:     r.OrderNo,
			UserID:      r.UserID,
			DisplayName: r.DisplayName,
			Handle:      r.Handle,
			Service:     r.Service,
			Amount:      r.Amount,
			Address:     r.Address,
			CreatedAt:   r.CreatedAt.UTC(),
		})
	}
	return st, nil
}

// Save stores the counter and the orders not yet present in one transaction.
// A duplicate order number fails the insert and rolls everything back.
func (s *Store) Save(ctx context.Context, st order.State) (err error) {
	start := time.Now()
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, tx.Rebind(`
INSERT INTO order_counter (id, value) VALUES (1, ?)
ON CONFLICT (id) DO UPDATE SET value = excluded.value`), st.Counter); err != nil {
		return fmt.Errorf("sqlstore: write counter: %w", err)
	}

	var stored int
	if err = tx.GetContext(ctx, &stored, `SELECT COUNT(*) FROM orders`); err != nil {
		return fmt.Errorf("sqlstore: count orders: %w", err)
	}
	if len(st.Orders) < stored {
		err = fmt.Errorf("%w: have %d, got %d", ErrShrink, stored, len(st.Orders))
		return err
	}

	insert := tx.Rebind(`
INSERT INTO orders (position, order_no, user_id, display_name, handle, service, amount, address, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	for i := stored; i < len(st.Orders); i++ {
		o := st.Orders[i]
		if _, err = tx.ExecContext(ctx, insert,
			int64(i+1), o.OrderNo, o.UserID, o.DisplayName, o.Handle,
			o.Service, o.Amount, o.Address, o.CreatedAt.UTC(),
		); err != nil {
			return fmt.Errorf("sqlstore: insert %s: %w", o.OrderNo, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sqlstore: commit: %w", err)
	}
	logger.Debug(ctx, "store", "store.save",
		slog.String("driver", s.driver),
		slog.Int64("counter", st.Counter),
		slog.Int("inserted", len(st.Orders)-stored),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}
