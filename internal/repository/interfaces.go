package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"piazza-chat/internal/domain/message"
	"piazza-chat/internal/domain/topic"
)

type MessageRepository interface {
	Create(ctx context.Context, m *message.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (message.Message, error)
	UpdateContent(ctx context.Context, id uuid.UUID, content string, editedAt time.Time) error
	SoftDelete(ctx context.Context, id uuid.UUID, deletedAt time.Time) error
	ListBefore(ctx context.Context, topicID uuid.UUID, before *message.Message, limit int) ([]message.Message, error)
}

type ReactionRepository interface {
	// Toggle applies the single-reaction rule for (messageID, userID) in one
	// transaction and reports what changed.
	Toggle(ctx context.Context, messageID, userID uuid.UUID, emoji string) (ToggleOutcome, error)
	ListForMessages(ctx context.Context, messageIDs []uuid.UUID) ([]message.Reaction, error)
}

// ToggleOutcome describes the result of a reaction toggle.
type ToggleOutcome struct {
	Previous string // emoji the user had before, "" if none
	Removed  bool   // true when the toggle cleared the reaction
}

type TopicRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (topic.Topic, error)
	GetMembership(ctx context.Context, topicID, userID uuid.UUID) (topic.Membership, error)
	AddMember(ctx context.Context, m *topic.Membership) error
	Create(ctx context.Context, t *topic.Topic) error
	IncrementMessageCount(ctx context.Context, id uuid.UUID, delta int) error
}
