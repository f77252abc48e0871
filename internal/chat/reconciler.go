package chat

import (
	"time"

	"piazza-chat/internal/domain/message"
	piazza_errors "piazza-chat/pkg/errors"
)

// Draft is the local shape of a message about to be sent.
type Draft struct {
	Content   string
	Kind      message.Kind
	Payload   message.Payload
	ReplyToID string
	ReplyTo   *message.Message
}

// Reconciler maps temporary client identities to confirmed server
// identities. It owns the pending half of the message lifecycle: a draft
// becomes visible immediately under a temp identity and is swapped for the
// server entry on confirmation, or removed outright on failure.
type Reconciler struct {
	store *Store
	self  message.Author
}

func NewReconciler(store *Store, self message.Author) *Reconciler {
	return &Reconciler{store: store, self: self}
}

// BeginSend inserts a pending message and returns it. The temp identity
// lives in its own namespace and can never collide with a server UUID.
func (r *Reconciler) BeginSend(draft Draft) message.Message {
	now := time.Now()
	kind := draft.Kind
	if kind == "" {
		kind = message.KindText
	}
	author := r.self
	m := message.Message{
		ID:        message.NewTempID(),
		TopicID:   r.store.TopicID(),
		AuthorID:  r.self.ID,
		Author:    &author,
		Kind:      kind,
		Content:   draft.Content,
		Payload:   draft.Payload,
		ReplyToID: draft.ReplyToID,
		ReplyTo:   draft.ReplyTo,
		State:     message.StatePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.store.Upsert(m)
	return m
}

// Confirm swaps the temp entry for the server-confirmed one. If the
// realtime channel already delivered the same confirmed message, the
// store's idempotent upsert absorbs the second application: exactly one
// visible message survives.
func (r *Reconciler) Confirm(tempID string, server message.Message) message.Message {
	server.State = message.StateConfirmed
	if server.ReplyTo == nil {
		if temp, ok := r.store.Get(tempID); ok {
			server.ReplyTo = temp.ReplyTo
		}
	}
	r.store.Remove(tempID)
	r.store.Upsert(server)
	return server
}

// Fail removes the pending entry entirely. No retry is automatic; the
// caller surfaces the error.
func (r *Reconciler) Fail(tempID string) {
	r.store.Remove(tempID)
}

// RequireConfirmed gates operations that need a server identity. Edits,
// deletes and reactions against a pending message are rejected locally
// without a network call.
func (r *Reconciler) RequireConfirmed(id string) error {
	if message.IsTempID(id) {
		return piazza_errors.ErrPendingMessage
	}
	return nil
}
