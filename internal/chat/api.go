package chat

import (
	"context"

	"piazza-chat/internal/domain/message"
)

// SendInput is the outgoing shape of a message send.
type SendInput struct {
	Content   string             `json:"content"`
	ReplyToID string             `json:"reply_to_id,omitempty"`
	Images    []message.ImageRef `json:"images,omitempty"`
}

// Page is one window of a topic's history.
type Page struct {
	Items   []message.Message `json:"items"`
	HasMore bool              `json:"has_more"`
}

// MessageAPI is the persistence boundary. Implementations live outside the
// engine (HTTP client in production, fakes in tests).
type MessageAPI interface {
	SendMessage(ctx context.Context, topicID string, in SendInput) (message.Message, error)
	EditMessage(ctx context.Context, messageID, newContent string) (message.Message, error)
	DeleteMessage(ctx context.Context, messageID string) error
	FetchMessages(ctx context.Context, topicID, beforeID string, limit int) (Page, error)
}

// ReactionAPI toggles a reaction server-side. The server applies the same
// single-reaction-per-user rule authoritatively.
type ReactionAPI interface {
	ToggleReaction(ctx context.Context, messageID, emoji string) error
}

// VoiceAPI stores a finished voice recording. The upload directly yields a
// finished message.
type VoiceAPI interface {
	UploadVoice(ctx context.Context, topicID string, blob []byte, durationSeconds float64, mimeType string, waveform []float64) (message.Message, error)
}

// EventKind discriminates realtime events.
type EventKind string

const (
	EventNewMessage     EventKind = "new_message"
	EventEditMessage    EventKind = "edit"
	EventDeleteMessage  EventKind = "delete"
	EventReactionAdd    EventKind = "reaction_add"
	EventReactionRemove EventKind = "reaction_remove"
)

// Event is one decoded realtime delivery. Message is set for message
// events, Reaction for reaction events.
type Event struct {
	Kind     EventKind
	Message  message.Message
	Reaction message.Reaction
}

// Subscription is a scoped handle on one topic's realtime stream. The
// Events channel closes when the stream drops; Err reports why.
type Subscription interface {
	Events() <-chan Event
	Err() error
	Close() error
}

// Realtime opens per-topic subscriptions. Delivery is at-least-once, so
// consumers must be idempotent.
type Realtime interface {
	Subscribe(ctx context.Context, topicID string) (Subscription, error)
}
