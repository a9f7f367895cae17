package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	model "github.com/tripmate/backend/internal/model/dialogue"
)

var (
	ErrSessionIDRequired = errors.New("session id is required")
	ErrSessionNotFound   = errors.New("session not found")
)

// DefaultTTL is how long an untouched session survives.
const DefaultTTL = 30 * time.Minute

type entry struct {
	// lock is a one-slot semaphore so waiters can give up on ctx.
	lock    chan struct{}
	session *model.Session
}

func (e *entry) acquire(ctx context.Context) error {
	select {
	case e.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *entry) release() {
	<-e.lock
}

// Store keeps dialogue sessions in memory and serializes work on each of them.
type Store struct {
	mu    sync.Mutex
	ttl   time.Duration
	cache *cache.Cache
}

// NewStore creates a store whose sessions expire after ttl without activity.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		ttl:   ttl,
		cache: cache.New(ttl, ttl/2),
	}
}

// Create provisions a fresh session with a random identifier.
func (s *Store) Create(_ context.Context) (model.Session, error) {
	e := s.insert(uuid.NewString())
	return e.session.Clone(), nil
}

// Open returns the session for id, creating it in the initial state when absent.
func (s *Store) Open(ctx context.Context, id string) (model.Session, error) {
	if id == "" {
		return model.Session{}, ErrSessionIDRequired
	}

	s.mu.Lock()
	e, ok := s.lookup(id)
	if !ok {
		e = s.insertLocked(id)
	}
	s.mu.Unlock()

	if err := e.acquire(ctx); err != nil {
		return model.Session{}, err
	}
	defer e.release()
	return e.session.Clone(), nil
}

// Get returns a copy of the session. It waits for any transition in flight.
func (s *Store) Get(ctx context.Context, id string) (model.Session, error) {
	var out model.Session
	err := s.Do(ctx, id, func(sess *model.Session) error {
		out = sess.Clone()
		return nil
	})
	return out, err
}

// Delete drops the session. Deleting an unknown id reports ErrSessionNotFound.
func (s *Store) Delete(_ context.Context, id string) error {
	if id == "" {
		return ErrSessionIDRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lookup(id); !ok {
		return ErrSessionNotFound
	}
	s.cache.Delete(id)
	return nil
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	return s.cache.ItemCount()
}

// Do runs fn with exclusive access to the session. Concurrent callers for the same
// id queue up; a caller whose ctx ends while waiting returns ctx.Err() untouched.
// Each completed call refreshes the session's expiry.
func (s *Store) Do(ctx context.Context, id string, fn func(*model.Session) error) error {
	if id == "" {
		return ErrSessionIDRequired
	}

	s.mu.Lock()
	e, ok := s.lookup(id)
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	if err := e.acquire(ctx); err != nil {
		return err
	}
	defer e.release()

	err := fn(e.session)

	s.mu.Lock()
	if current, ok := s.lookup(id); ok && current == e {
		s.cache.Set(id, e, s.ttl)
	}
	s.mu.Unlock()
	return err
}

func (s *Store) lookup(id string) (*entry, bool) {
	v, ok := s.cache.Get(id)
	if !ok {
		return nil, false
	}
	return v.(*entry), true
}

func (s *Store) insert(id string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(id)
}

func (s *Store) insertLocked(id string) *entry {
	e := &entry{
		lock:    make(chan struct{}, 1),
		session: model.NewSession(id),
	}
	s.cache.Set(id, e, s.ttl)
	return e
}
