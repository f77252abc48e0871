package services

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"piazza-chat/internal/domain/message"
	"piazza-chat/internal/events"
	"piazza-chat/internal/repository"
	piazza_errors "piazza-chat/pkg/errors"
	"piazza-chat/pkg/logger"
)

type ReactionService struct {
	reactions repository.ReactionRepository
	messages  repository.MessageRepository
	topics    repository.TopicRepository
	publisher events.Publisher
	log       *logger.Logger
}

func NewReactionService(
	reactions repository.ReactionRepository,
	messages repository.MessageRepository,
	topics repository.TopicRepository,
	publisher events.Publisher,
	log *logger.Logger,
) *ReactionService {
	return &ReactionService{
		reactions: reactions,
		messages:  messages,
		topics:    topics,
		publisher: publisher,
		log:       log,
	}
}

// Toggle flips the caller's reaction on a message. A user holds at most
// one reaction per message; reacting with a different emoji replaces the
// old one, reacting with the same emoji removes it.
func (s *ReactionService) Toggle(ctx context.Context, id Identity, messageID, emoji string) (repository.ToggleOutcome, error) {
	if emoji == "" {
		return repository.ToggleOutcome{}, piazza_errors.ErrInvalidInput
	}
	msgID, err := uuid.Parse(messageID)
	if err != nil {
		return repository.ToggleOutcome{}, piazza_errors.ErrInvalidInput
	}
	userID, err := uuid.Parse(id.UserID)
	if err != nil {
		return repository.ToggleOutcome{}, piazza_errors.ErrUnauthorized
	}

	m, err := s.messages.GetByID(ctx, msgID)
	if err != nil {
		return repository.ToggleOutcome{}, err
	}
	if m.IsDeleted {
		return repository.ToggleOutcome{}, piazza_errors.ErrNotFound
	}

	topicID, err := uuid.Parse(m.TopicID)
	if err != nil {
		return repository.ToggleOutcome{}, piazza_errors.ErrNotFound
	}
	if _, err := s.topics.GetMembership(ctx, topicID, userID); err != nil {
		return repository.ToggleOutcome{}, err
	}

	outcome, err := s.reactions.Toggle(ctx, msgID, userID, emoji)
	if err != nil {
		return repository.ToggleOutcome{}, err
	}

	if outcome.Removed {
		s.publish(ctx, events.EventTypeReactionRemoved, m, id.UserID, emoji, "")
	} else {
		s.publish(ctx, events.EventTypeReactionAdded, m, id.UserID, emoji, outcome.Previous)
	}
	return outcome, nil
}

func (s *ReactionService) publish(ctx context.Context, eventType string, m message.Message, userID, emoji, previous string) {
	env, err := events.NewEnvelope(eventType, events.AggregateTypeReaction, m.ID, m.TopicID, events.ReactionPayload{
		MessageID: m.ID,
		TopicID:   m.TopicID,
		UserID:    userID,
		Emoji:     emoji,
		Previous:  previous,
	})
	if err != nil {
		s.log.Errorf("encode %s event: %v", eventType, err)
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		s.log.Errorf("marshal %s envelope: %v", eventType, err)
		return
	}
	if err := s.publisher.Publish(ctx, events.TopicChannel(m.TopicID), data); err != nil {
		s.log.Errorf("publish %s for message %s: %v", eventType, m.ID, err)
	}
}
