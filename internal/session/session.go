// Package session keeps per-contact conversational state in memory.
//
// Sessions hold the human-handoff flag, interaction counter, intake state and
// the collected-field buffer. The store is bounded: least-recently-used
// contacts are evicted once capacity is reached, so a long-lived process does
// not grow without limit.
package session

import (
	"log/slog"
	"sync"

	"github.com/brightlawyers/courier/internal/models"
	"github.com/elliotchance/orderedmap/v3"
)

// DefaultCapacity bounds the number of concurrently tracked contacts.
const DefaultCapacity = 10000

// Store provides access to per-contact sessions. Get returns a default
// session for unseen contacts; Set records the session and refreshes its
// recency.
type Store interface {
	Get(contactID string) models.ContactSession
	Set(contactID string, s models.ContactSession)
	Len() int
}

// LRUStore is a bounded, mutex-guarded session store. Inbound events for a
// single contact are processed serially by the orchestrator, so the lock only
// arbitrates between contacts.
type LRUStore struct {
	mu       sync.Mutex
	capacity int
	sessions *orderedmap.OrderedMap[string, models.ContactSession]
}

// NewLRUStore creates a session store bounded to capacity contacts.
// A capacity <= 0 falls back to DefaultCapacity.
func NewLRUStore(capacity int) *LRUStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &LRUStore{
		capacity: capacity,
		sessions: orderedmap.NewOrderedMap[string, models.ContactSession](),
	}
}

// Get returns the session for a contact, or a fresh default session for an
// unseen one. The returned value is a copy; callers persist changes with Set.
func (s *LRUStore) Get(contactID string) models.ContactSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions.Get(contactID); ok {
		return sess
	}
	return models.NewContactSession()
}

// Set stores the session and marks the contact as most recently used,
// evicting the least recently used contact when over capacity.
func (s *LRUStore) Set(contactID string, sess models.ContactSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Re-insertion moves the key to the back of the iteration order.
	s.sessions.Delete(contactID)
	s.sessions.Set(contactID, sess)
	for s.sessions.Len() > s.capacity {
		front := s.sessions.Front()
		if front == nil {
			break
		}
		slog.Debug("session store evicting least recently used contact", "contact", front.Key)
		s.sessions.Delete(front.Key)
	}
}

// Len returns the number of tracked contacts.
func (s *LRUStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions.Len()
}
