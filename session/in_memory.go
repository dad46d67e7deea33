package session

import (
	"sync"
	"time"

	"github.com/contractguard/contractguard/core"
)

// DefaultTTL is how long a session survives after its last touch.
const DefaultTTL = 24 * time.Hour

// Options configures the in-memory session store.
type Options struct {
	// TTL is the session lifetime measured from the last touch.
	TTL time.Duration
	// Clock overrides time.Now, used by tests to cross TTL boundaries.
	Clock func() time.Time
}

// InMemoryStore is a process-local core.SessionStore. It is safe for
// concurrent access: the store map is guarded by a read/write lock while
// each session serializes its own writers, so appends to one session are
// strictly ordered and reads elsewhere proceed concurrently. Returned
// sessions are clones to prevent external mutation of internal state.
//
// Expiry is lazy: any accessor that finds a session past its TTL deletes it
// and reports core.ErrNotFound. There is no background sweep.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
	ttl      time.Duration
	now      func() time.Time
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore(optFns ...func(o *Options)) *InMemoryStore {
	opts := Options{TTL: DefaultTTL, Clock: time.Now}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &InMemoryStore{
		sessions: make(map[string]*core.Session),
		ttl:      opts.TTL,
		now:      opts.Clock,
	}
}

// Create allocates a new session with a generated id.
func (s *InMemoryStore) Create(userID string, documents []string) (*core.Session, error) {
	sess := core.NewSessionAt(core.NewID(), userID, documents, s.now().UTC())
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess.Clone(), nil
}

// Get returns a snapshot of the session, refreshing its TTL.
func (s *InMemoryStore) Get(sessionID string) (*core.Session, error) {
	sess, err := s.live(sessionID)
	if err != nil {
		return nil, err
	}
	sess.TouchAt(s.now().UTC())
	return sess.Clone(), nil
}

// Append adds a message to the session, refreshes the TTL and returns the
// updated snapshot. The session's own lock serializes concurrent appends.
func (s *InMemoryStore) Append(sessionID string, msg core.Message) (*core.Session, error) {
	sess, err := s.live(sessionID)
	if err != nil {
		return nil, err
	}
	sess.AppendAt(msg, s.now().UTC())
	return sess.Clone(), nil
}

// AddDocuments extends the session's document scope.
func (s *InMemoryStore) AddDocuments(sessionID string, ids ...string) error {
	sess, err := s.live(sessionID)
	if err != nil {
		return err
	}
	sess.AddDocumentsAt(s.now().UTC(), ids...)
	return nil
}

// Touch refreshes the TTL only.
func (s *InMemoryStore) Touch(sessionID string) error {
	sess, err := s.live(sessionID)
	if err != nil {
		return err
	}
	sess.TouchAt(s.now().UTC())
	return nil
}

// Delete removes the session explicitly.
func (s *InMemoryStore) Delete(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return core.ErrNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}

// live returns the stored session if present and unexpired, reaping it
// otherwise.
func (s *InMemoryStore) live(sessionID string) (*core.Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, core.ErrNotFound
	}
	if sess.ExpiredAt(s.now(), s.ttl) {
		s.mu.Lock()
		// Re-check under the write lock; another caller may have reaped or
		// a writer may have touched it in the meantime.
		if cur, ok := s.sessions[sessionID]; ok && cur.ExpiredAt(s.now(), s.ttl) {
			delete(s.sessions, sessionID)
		}
		s.mu.Unlock()
		return nil, core.ErrNotFound
	}
	return sess, nil
}
