package chat

import (
	"sort"
	"sync"

	"piazza-chat/internal/domain/message"
)

// UpsertOutcome reports what an Upsert actually did, so callers can tell a
// fresh insert from an absorbed duplicate.
type UpsertOutcome int

const (
	UpsertInserted UpsertOutcome = iota
	UpsertReplaced
	UpsertStale
)

// Store holds the ordered message sequence for one topic. It is the single
// source of truth for display order; all mutation goes through Upsert and
// Remove so the idempotence guarantee holds no matter how confirm responses
// and realtime deliveries interleave.
type Store struct {
	mu      sync.RWMutex
	topicID string
	byID    map[string]message.Message
	order   []string // message IDs sorted by (CreatedAt, ID)
}

func NewStore(topicID string) *Store {
	return &Store{
		topicID: topicID,
		byID:    make(map[string]message.Message),
	}
}

func (s *Store) TopicID() string { return s.topicID }

// Load replaces the store contents with an initial batch.
func (s *Store) Load(batch []message.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID = make(map[string]message.Message, len(batch))
	s.order = s.order[:0]
	for _, m := range batch {
		if _, ok := s.byID[m.ID]; ok {
			continue
		}
		s.byID[m.ID] = m
		s.order = append(s.order, m.ID)
	}
	s.sortLocked()
}

// Prepend merges an older history batch. IDs already loaded are skipped, so
// overlapping pagination windows never duplicate.
func (s *Store) Prepend(older []message.Message) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	added := 0
	for _, m := range older {
		if _, ok := s.byID[m.ID]; ok {
			continue
		}
		s.byID[m.ID] = m
		s.order = append(s.order, m.ID)
		added++
	}
	if added > 0 {
		s.sortLocked()
	}
	return added
}

// Upsert inserts a new message or replaces an existing one. A stale update
// (UpdatedAt older than what is held) is dropped: last write wins. Applying
// the same confirmed message twice is a no-op the second time.
func (s *Store) Upsert(m message.Message) UpsertOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byID[m.ID]
	if !ok {
		s.byID[m.ID] = m
		s.order = append(s.order, m.ID)
		s.sortLocked()
		return UpsertInserted
	}
	if m.UpdatedAt.Before(existing.UpdatedAt) {
		return UpsertStale
	}
	s.byID[m.ID] = m
	if !m.CreatedAt.Equal(existing.CreatedAt) {
		s.sortLocked()
	}
	return UpsertReplaced
}

// Remove deletes a message entirely (used for optimistic rollback).
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return false
	}
	delete(s.byID, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Get returns a message by identity.
func (s *Store) Get(id string) (message.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.byID[id]
	return m, ok
}

// Snapshot returns the messages in display order.
func (s *Store) Snapshot() []message.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]message.Message, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// OldestID returns the pagination cursor: the oldest loaded confirmed
// identity. Pending messages are skipped; the server does not know them.
func (s *Store) OldestID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		if !message.IsTempID(id) {
			return id, true
		}
	}
	return "", false
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

func (s *Store) sortLocked() {
	sort.Slice(s.order, func(i, j int) bool {
		return s.byID[s.order[i]].Before(s.byID[s.order[j]])
	})
}
