// Package jsonfile persists the order state as a single JSON document.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/m3rciful/slrbot/bot/order"
	"github.com/m3rciful/slrbot/core/logger"
)

// NoHandle is written in place of a missing @username.
const NoHandle = "(sans username)"

type document struct {
	Counter int64    `json:"counter"`
	Orders  []record `json:"orders"`
}

type record struct {
	OrderNo  string    `json:"orderNo"`
	UserID   int64     `json:"userId"`
	Username string    `json:"username"`
	Name     string    `json:"name"`
	Service  string    `json:"service"`
	Amount   string    `json:"amount"`
	Address  string    `json:"address"`
	Date     time.Time `json:"date"`
}

// Store keeps the state in one file that is replaced on every save.
type Store struct {
	mu   sync.Mutex
	path string
}

// New returns a store backed by path. The file is created on first save.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// Load reads the state. A missing file yields the zero state.
func (s *Store) Load(ctx context.Context) (order.State, error) {
	if err := ctx.Err(); err != nil {
		return order.State{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return order.State{}, nil
	}
	if err != nil {
		return order.State{}, fmt.Errorf("jsonfile: read %s: %w", s.path, err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return order.State{}, fmt.Errorf("jsonfile: decode %s: %w: %w", s.path, order.ErrCorruptState, err)
	}
	if doc.Counter < 0 {
		return order.State{}, fmt.Errorf("jsonfile: negative counter in %s: %w", s.path, order.ErrCorruptState)
	}
	return fromDocument(doc), nil
}

// Save writes the whole state to a temporary file and renames it over the
// target, so a reader sees either the old or the new document.
func (s *Store) Save(ctx context.Context, st order.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(toDocument(st), "", "  ")
	if err != nil {
		return fmt.Errorf("jsonfile: encode: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("jsonfile: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("jsonfile: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("jsonfile: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("jsonfile: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("jsonfile: close: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("jsonfile: replace %s: %w", s.path, err)
	}
	committed = true
	syncDir(dir)

	logger.Debug(ctx, "store", "store.save",
		slog.String("driver", "file"),
		slog.Int64("counter", st.Counter),
		slog.Int("orders", len(st.Orders)),
		slog.Int("bytes", len(data)),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}

// syncDir flushes the rename to disk where the platform allows it.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

func toDocument(st order.State) document {
	doc := document{Counter: st.Counter, Orders: make([]record, 0, len(st.Orders))}
	for _, o := range st.Orders {
		username := NoHandle
		if o.Handle != "" {
			username = "@" + o.Handle
		}
		doc.Orders = append(doc.Orders, record{
			OrderNo:  o.OrderNo,
			UserID:   o.UserID,
			Username: username,
			Name:     o.DisplayName,
			Service:  o.Service,
			Amount:   o.Amount,
			Address:  o.Address,
			Date:     o.CreatedAt.UTC(),
		})
	}
	return doc
}

func fromDocument(doc document) order.State {
	st := order.State{Counter: doc.Counter}
	if len(doc.Orders) > 0 {
		st.Orders = make([]order.Order, 0, len(doc.Orders))
	}
	for _, r := range doc.Orders {
		handle := ""
		if r.Username != NoHandle {
			handle = strings.TrimPrefix(r.Username, "@")
		}
		st.Orders = append(st.Orders, order.Order{
			OrderNo:     r.OrderNo,
			UserID:      r.UserID,
			DisplayName: r.Name,
			Handle:      handle,
			Service:     r.Service,
			Amount:      r.Amount,
			Address:     r.Address,
			CreatedAt:   r.Date.UTC(),
		})
	}
	return st
}
