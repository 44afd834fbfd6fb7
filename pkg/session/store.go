package session

import (
	"sort"
	"sync"
	"time"
)

// Store holds sessions keyed by conversation identifier
type Store interface {
	// Get returns a copy of the session, creating an empty one if absent
	Get(conversationID string) Session
	// SetOperation records op and returns the references it dropped
	SetOperation(conversationID string, op Operation) []string
	// AppendPending buffers ref and returns the new buffer length
	AppendPending(conversationID string, ref string) int
	// SetSingleFile holds ref and returns the reference it replaced, if any
	SetSingleFile(conversationID string, ref string) string
	// Clear resets the session and returns the references it dropped
	Clear(conversationID string) []string
	// Expire removes sessions idle for longer than idle, except those for
	// which keep returns true
	Expire(idle time.Duration, keep func(conversationID string) bool) map[string][]string
	Len() int
	Snapshot() []Session
}

// MemoryStore is an in-memory Store. The mutex only guards the map shared by
// all conversations; events of a single conversation are expected to arrive
// one at a time.
type MemoryStore struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	now      func() time.Time
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// getLocked returns the session for conversationID, creating it. Callers hold mu.
func (m *MemoryStore) getLocked(conversationID string) *Session {
	s, exists := m.sessions[conversationID]
	if !exists {
		s = &Session{
			ConversationID: conversationID,
			UpdatedAt:      m.now(),
		}
		m.sessions[conversationID] = s
	}
	return s
}

// Get returns a copy of the session
func (m *MemoryStore) Get(conversationID string) Session {
	m.mu.RLock()
	s, exists := m.sessions[conversationID]
	if exists {
		c := s.clone()
		m.mu.RUnlock()
		return c
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getLocked(conversationID).clone()
}

// SetOperation resets the buffers and records op
func (m *MemoryStore) SetOperation(conversationID string, op Operation) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.getLocked(conversationID)
	dropped := s.Files()
	s.Operation = op
	s.PendingFiles = nil
	s.SingleFile = ""
	s.UpdatedAt = m.now()
	return dropped
}

// AppendPending appends ref to the pending files
func (m *MemoryStore) AppendPending(conversationID string, ref string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.getLocked(conversationID)
	s.PendingFiles = append(s.PendingFiles, ref)
	s.UpdatedAt = m.now()
	return len(s.PendingFiles)
}

// SetSingleFile holds ref as the single input file
func (m *MemoryStore) SetSingleFile(conversationID string, ref string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.getLocked(conversationID)
	replaced := s.SingleFile
	s.SingleFile = ref
	s.UpdatedAt = m.now()
	return replaced
}

// Clear resets the session to no operation and empty buffers
func (m *MemoryStore) Clear(conversationID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, exists := m.sessions[conversationID]
	if !exists {
		return nil
	}
	dropped := s.Files()
	s.Operation = OpNone
	s.PendingFiles = nil
	s.SingleFile = ""
	s.UpdatedAt = m.now()
	return dropped
}

// Expire removes every session whose last update is older than idle and
// returns the references each of them held. keep may be nil; it is called
// with the store locked and must not call back into the store.
func (m *MemoryStore) Expire(idle time.Duration, keep func(conversationID string) bool) map[string][]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-idle)
	expired := make(map[string][]string)
	for id, s := range m.sessions {
		if !s.UpdatedAt.Before(cutoff) || (keep != nil && keep(id)) {
			continue
		}
		expired[id] = s.Files()
		delete(m.sessions, id)
	}
	return expired
}

// Len returns the number of known sessions
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Snapshot returns copies of all sessions ordered by conversation id
func (m *MemoryStore) Snapshot() []Session {
	m.mu.RLock()
	out := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.clone())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].ConversationID < out[j].ConversationID
	})
	return out
}
