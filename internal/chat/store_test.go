package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"piazza-chat/internal/domain/message"
)

func msgAt(id string, created time.Time) message.Message {
	return message.Message{
		ID:        id,
		TopicID:   "topic-1",
		AuthorID:  "user-a",
		Kind:      message.KindText,
		Content:   "hello",
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestStoreOrdering(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore("topic-1")

	// Insert out of arrival order; display order must follow creation time.
	s.Upsert(msgAt("m3", base.Add(3*time.Second)))
	s.Upsert(msgAt("m1", base.Add(1*time.Second)))
	s.Upsert(msgAt("m2", base.Add(2*time.Second)))

	snap := s.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "m1", snap[0].ID)
	assert.Equal(t, "m2", snap[1].ID)
	assert.Equal(t, "m3", snap[2].ID)
}

func TestStoreOrderingTieBreak(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore("topic-1")

	s.Upsert(msgAt("bbb", base))
	s.Upsert(msgAt("aaa", base))

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "aaa", snap[0].ID, "equal timestamps break ties by identity")
}

func TestStoreUpsertIdempotent(t *testing.T) {
	base := time.Now()
	s := NewStore("topic-1")
	m := msgAt("m1", base)

	assert.Equal(t, UpsertInserted, s.Upsert(m))
	first := s.Snapshot()

	assert.Equal(t, UpsertReplaced, s.Upsert(m))
	second := s.Snapshot()

	assert.Equal(t, first, second, "re-applying the same message changes nothing")
	assert.Equal(t, 1, s.Len())
}

func TestStoreUpsertLastWriteWins(t *testing.T) {
	base := time.Now()
	s := NewStore("topic-1")

	m := msgAt("m1", base)
	newer := m
	newer.Content = "edited"
	newer.UpdatedAt = base.Add(5 * time.Second)

	s.Upsert(newer)
	assert.Equal(t, UpsertStale, s.Upsert(m), "older edit after newer edit is dropped")

	got, ok := s.Get("m1")
	require.True(t, ok)
	assert.Equal(t, "edited", got.Content)
}

func TestStorePrependSkipsLoaded(t *testing.T) {
	base := time.Now()
	s := NewStore("topic-1")
	s.Load([]message.Message{msgAt("m2", base.Add(time.Second)), msgAt("m3", base.Add(2*time.Second))})

	added := s.Prepend([]message.Message{msgAt("m1", base), msgAt("m2", base.Add(time.Second))})
	assert.Equal(t, 1, added)
	assert.Equal(t, 3, s.Len())

	snap := s.Snapshot()
	assert.Equal(t, "m1", snap[0].ID)
}

func TestStoreOldestIDSkipsPending(t *testing.T) {
	base := time.Now()
	s := NewStore("topic-1")

	pending := msgAt(message.NewTempID(), base)
	pending.State = message.StatePending
	s.Upsert(pending)

	_, ok := s.OldestID()
	assert.False(t, ok, "a store of only pending messages has no cursor")

	s.Upsert(msgAt("m9", base.Add(time.Second)))
	cursor, ok := s.OldestID()
	require.True(t, ok)
	assert.Equal(t, "m9", cursor)
}

func TestStoreRemove(t *testing.T) {
	s := NewStore("topic-1")
	s.Upsert(msgAt("m1", time.Now()))

	assert.True(t, s.Remove("m1"))
	assert.False(t, s.Remove("m1"))
	assert.Equal(t, 0, s.Len())
}

func TestStoreConcurrentUpsertSingleSurvivor(t *testing.T) {
	// Realtime delivery and local confirmation race to insert the same
	// confirmed identity; both observe one final entry.
	m := msgAt("m1", time.Now())
	s := NewStore("topic-1")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			s.Upsert(m)
		}
	}()
	for i := 0; i < 100; i++ {
		s.Upsert(m)
	}
	<-done

	assert.Equal(t, 1, s.Len())
}
