package feed

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/steemit/chirp/pkg/logging"
)

// Store keeps the FeedCache of every viewing session.
//
// Update is an atomic read-modify-write of one feed: fn sees the current
// value and its result replaces it as a whole, so readers observe either the
// old or the new value and never a partial one.
type Store interface {
	Load(ctx context.Context, session string, key Key) (*Infinite, error)
	Update(ctx context.Context, session string, key Key, fn UpdateFunc) (*Infinite, error)
	Discard(ctx context.Context, session string) error
}

type memorySession struct {
	feeds   map[Key]*Infinite
	touched time.Time
}

// MemoryStore is an in-process Store. Sessions idle for longer than ttl are
// dropped on access and by Sweep.
type MemoryStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]*memorySession
	logger   *zap.Logger
}

// NewMemoryStore creates an empty in-process store
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*memorySession),
		logger:   logging.WithComponent("feed-memory-store"),
	}
}

// session returns the live session entry, creating it when create is set.
// Callers hold s.mu.
func (s *MemoryStore) session(id string, create bool) *memorySession {
	now := s.now()
	sess, ok := s.sessions[id]
	if ok && now.Sub(sess.touched) > s.ttl {
		delete(s.sessions, id)
		sess, ok = nil, false
	}
	if !ok {
		if !create {
			return nil
		}
		sess = &memorySession{feeds: make(map[Key]*Infinite)}
		s.sessions[id] = sess
	}
	sess.touched = now
	return sess
}

// Load returns the cached pages of one feed, or nil
func (s *MemoryStore) Load(_ context.Context, session string, key Key) (*Infinite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.session(session, false)
	if sess == nil {
		return nil, nil
	}
	return sess.feeds[key], nil
}

// Update applies fn to one feed under the store lock
func (s *MemoryStore) Update(_ context.Context, session string, key Key, fn UpdateFunc) (*Infinite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.session(session, true)
	old := sess.feeds[key]
	updated := fn(old)
	switch {
	case updated == old:
	case updated == nil:
		delete(sess.feeds, key)
	default:
		sess.feeds[key] = updated
	}
	return updated, nil
}

// Discard drops every feed of a session
func (s *MemoryStore) Discard(_ context.Context, session string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, session)
	return nil
}

// Sweep drops idle sessions and returns how many were removed
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.touched) > s.ttl {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Run sweeps idle sessions every interval until ctx is done
func (s *MemoryStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Debug("Swept idle feed sessions", zap.Int("count", n))
			}
		}
	}
}
