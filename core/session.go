package core

import (
	"sync"
	"time"
)

// Session is a TTL-bounded conversation container tracking an append-only,
// arrival-ordered message history plus the set of documents in scope. It is
// safe for concurrent access.
//
// Contract:
//   - Messages are append-only and ordered by arrival
//   - Every read or write refreshes LastTouched (the TTL anchor)
//   - Messages/Documents return defensive copies
//   - Clone performs deep copies for safe divergence
type Session struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id,omitempty"`
	Created     time.Time `json:"created"`
	LastTouched time.Time `json:"last_touched"`

	messages  []Message
	documents []string
	mu        sync.RWMutex
}

// NewSession creates an empty session owned by userID (may be empty) scoped
// to the given document ids.
func NewSession(id, userID string, documents []string) *Session {
	return NewSessionAt(id, userID, documents, time.Now().UTC())
}

// NewSessionAt is NewSession with an explicit creation time, so stores with
// their own clock anchor the TTL consistently.
func NewSessionAt(id, userID string, documents []string, now time.Time) *Session {
	return &Session{
		ID:          id,
		UserID:      userID,
		Created:     now,
		LastTouched: now,
		documents:   append([]string(nil), documents...),
	}
}

// Append adds a message to the history and refreshes the TTL anchor.
func (s *Session) Append(msg Message) {
	s.AppendAt(msg, time.Now().UTC())
}

// AppendAt is Append with an explicit touch time.
func (s *Session) AppendAt(msg Message, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	s.LastTouched = now
}

// Messages returns a copy of the full message history to prevent callers
// from mutating internal state.
func (s *Session) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// LastMessages returns up to n most recent messages, oldest first.
func (s *Session) LastMessages(n int) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 || n > len(s.messages) {
		n = len(s.messages)
	}
	out := make([]Message, n)
	copy(out, s.messages[len(s.messages)-n:])
	return out
}

// Documents returns a copy of the document ids currently in scope.
func (s *Session) Documents() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.documents...)
}

// AddDocuments extends the document scope, skipping ids already present.
func (s *Session) AddDocuments(ids ...string) {
	s.AddDocumentsAt(time.Now().UTC(), ids...)
}

// AddDocumentsAt is AddDocuments with an explicit touch time.
func (s *Session) AddDocumentsAt(now time.Time, ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if !containsString(s.documents, id) {
			s.documents = append(s.documents, id)
		}
	}
	s.LastTouched = now
}

// Touch refreshes the TTL anchor without other side effects.
func (s *Session) Touch() {
	s.TouchAt(time.Now().UTC())
}

// TouchAt is Touch with an explicit touch time.
func (s *Session) TouchAt(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastTouched = now
}

// ExpiredAt reports whether the session's TTL has elapsed at the given time.
func (s *Session) ExpiredAt(now time.Time, ttl time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return now.Sub(s.LastTouched) > ttl
}

// Clone returns a deep copy of the session safe for independent mutation.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &Session{
		ID:          s.ID,
		UserID:      s.UserID,
		Created:     s.Created,
		LastTouched: s.LastTouched,
		messages:    make([]Message, len(s.messages)),
		documents:   append([]string(nil), s.documents...),
	}
	copy(clone.messages, s.messages)
	return clone
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// SessionStore persists sessions and serializes writes per session so message
// ordering is preserved. Implementations must treat expired sessions as
// absent (ErrNotFound) and reap them lazily on access.
type SessionStore interface {
	// Create allocates a new session with a generated id.
	Create(userID string, documents []string) (*Session, error)

	// Get returns a consistent snapshot of the session, refreshing its TTL.
	// Returns ErrNotFound if the session is absent or expired.
	Get(sessionID string) (*Session, error)

	// Append adds a message, refreshing the TTL, and returns the updated
	// snapshot. Returns ErrNotFound if the session is absent or expired.
	Append(sessionID string, msg Message) (*Session, error)

	// AddDocuments extends the session's document scope.
	AddDocuments(sessionID string, ids ...string) error

	// Touch refreshes the TTL only.
	Touch(sessionID string) error

	// Delete removes the session explicitly.
	Delete(sessionID string) error
}
