package state

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/slrbot/core/clock"
	"github.com/m3rciful/slrbot/core/logger"
)

// State identifies a finite-state-machine step used in conversations.
type State string

const lockStripes = 64

// Session stores the conversation step and its payload for one user.
type Session[T any] struct {
	State     State
	Data      T
	UpdatedAt time.Time
}

// Options configure a Store.
type Options struct {
	// IdleTTL expires sessions untouched for longer than this. Zero keeps them forever.
	IdleTTL time.Duration
	Clock   clock.Clock
}

// Store is an in-memory session table keyed by Telegram user ID.
type Store[T any] struct {
	mu       sync.Mutex
	sessions map[int64]Session[T]
	ttl      time.Duration
	clock    clock.Clock
	locks    [lockStripes]sync.Mutex
}

// NewStore constructs an empty Store.
func NewStore[T any](opts Options) *Store[T] {
	c := opts.Clock
	if c == nil {
		c = clock.NewSystem()
	}
	return &Store[T]{
		sessions: make(map[int64]Session[T]),
		ttl:      opts.IdleTTL,
		clock:    c,
	}
}

// Lock serializes work for a single user and returns the matching unlock function.
// Users sharing a stripe also wait for each other.
func (s *Store[T]) Lock(userID int64) func() {
	m := &s.locks[uint64(userID)%lockStripes]
	m.Lock()
	return m.Unlock
}

// Get returns the live session of a user. Expired sessions are dropped on access.
func (s *Store[T]) Get(userID int64) (Session[T], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return Session[T]{}, false
	}
	if s.expired(sess, s.clock.Now()) {
		delete(s.sessions, userID)
		return Session[T]{}, false
	}
	return sess, true
}

// Put creates or replaces the session of a user.
func (s *Store[T]) Put(userID int64, st State, data T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[userID] = Session[T]{State: st, Data: data, UpdatedAt: s.clock.Now()}
}

// Delete removes the session of a user and reports whether one was live.
func (s *Store[T]) Delete(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	delete(s.sessions, userID)
	return ok && !s.expired(sess, s.clock.Now())
}

// InProgress reports whether the user has a live session.
func (s *Store[T]) InProgress(userID int64) bool {
	_, ok := s.Get(userID)
	return ok
}

// Len returns the number of stored sessions, expired ones included until swept.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep drops expired sessions and returns how many were removed. Each
// removal holds the user's lock, so a session being handled is not dropped
// underneath its handler; a session refreshed meanwhile is kept.
func (s *Store[T]) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}
	var ids []int64
	s.mu.Lock()
	now := s.clock.Now()
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			ids = append(ids, id)
		}
	}
	s.mu.Unlock()

	n := 0
	for _, id := range ids {
		unlock := s.Lock(id)
		s.mu.Lock()
		if sess, ok := s.sessions[id]; ok && s.expired(sess, s.clock.Now()) {
			delete(s.sessions, id)
			n++
		}
		s.mu.Unlock()
		unlock()
	}
	return n
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *Store[T]) RunSweeper(ctx context.Context, interval time.Duration) {
	if s.ttl <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				logger.Debug(ctx, "tg.state", "session.sweep",
					slog.Int("expired", n),
					slog.Int("live", s.Len()),
				)
			}
		}
	}
}

func (s *Store[T]) expired(sess Session[T], now time.Time) bool {
	return s.ttl > 0 && now.Sub(sess.UpdatedAt) > s.ttl
}
