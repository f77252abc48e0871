package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"piazza-chat/internal/domain/message"
	piazza_errors "piazza-chat/pkg/errors"
)

func newTestReconciler() (*Reconciler, *Store) {
	store := NewStore("topic-1")
	self := message.Author{ID: "user-a", Name: "Anna"}
	return NewReconciler(store, self), store
}

func TestBeginSendVisibleImmediately(t *testing.T) {
	r, store := newTestReconciler()

	pending := r.BeginSend(Draft{Content: "Ciao a tutti"})

	assert.True(t, message.IsTempID(pending.ID))
	assert.Equal(t, message.StatePending, pending.State)
	assert.Equal(t, "user-a", pending.AuthorID)

	got, ok := store.Get(pending.ID)
	require.True(t, ok, "optimistic message present before any round trip")
	assert.Equal(t, "Ciao a tutti", got.Content)
}

func TestConfirmExactlyOnce(t *testing.T) {
	r, store := newTestReconciler()
	pending := r.BeginSend(Draft{Content: "Ciao a tutti"})

	server := message.Message{
		ID:        "msg_123",
		TopicID:   "topic-1",
		AuthorID:  "user-a",
		Kind:      message.KindText,
		Content:   "Ciao a tutti",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	r.Confirm(pending.ID, server)

	snap := store.Snapshot()
	require.Len(t, snap, 1, "exactly one visible message, never zero, never two")
	assert.Equal(t, "msg_123", snap[0].ID)
	assert.Equal(t, "Ciao a tutti", snap[0].Content)
	assert.Equal(t, message.StateConfirmed, snap[0].State)
}

func TestConfirmAbsorbsRealtimeRace(t *testing.T) {
	r, store := newTestReconciler()
	pending := r.BeginSend(Draft{Content: "hi"})

	server := message.Message{
		ID: "msg_9", TopicID: "topic-1", AuthorID: "user-a",
		Kind: message.KindText, Content: "hi",
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}

	// Realtime channel lands first with the same confirmed identity.
	server.State = message.StateConfirmed
	store.Upsert(server)
	r.Confirm(pending.ID, server)

	assert.Equal(t, 1, store.Len())
}

func TestFailRemovesPendingEntirely(t *testing.T) {
	r, store := newTestReconciler()
	pending := r.BeginSend(Draft{Content: "doomed"})

	r.Fail(pending.ID)

	assert.Equal(t, 0, store.Len(), "no stuck message left behind")
}

func TestRequireConfirmedRejectsTempIdentity(t *testing.T) {
	r, _ := newTestReconciler()
	pending := r.BeginSend(Draft{Content: "hi"})

	assert.ErrorIs(t, r.RequireConfirmed(pending.ID), piazza_errors.ErrPendingMessage)
	assert.NoError(t, r.RequireConfirmed("msg_1"))
}

func TestTempIdentityNamespace(t *testing.T) {
	id := message.NewTempID()
	assert.True(t, message.IsTempID(id))
	assert.False(t, message.IsTempID("3f2c8a54-0000-0000-0000-000000000000"))
}
