package services

import (
	"context"

	"github.com/google/uuid"

	"piazza-chat/internal/redis"
	"piazza-chat/internal/repository"
	piazza_errors "piazza-chat/pkg/errors"
)

// TypingService relays typing signals. Signals are ephemeral: they live in
// Redis with a TTL and are never written to Postgres.
type TypingService struct {
	typing *redis.TypingStore
	topics repository.TopicRepository
}

func NewTypingService(typing *redis.TypingStore, topics repository.TopicRepository) *TypingService {
	return &TypingService{typing: typing, topics: topics}
}

func (s *TypingService) Start(ctx context.Context, id Identity, topicIDStr string) error {
	if err := s.authorize(ctx, id, topicIDStr); err != nil {
		return err
	}
	return s.typing.SetTyping(ctx, topicIDStr, id.UserID, id.Name)
}

func (s *TypingService) Stop(ctx context.Context, id Identity, topicIDStr string) error {
	if err := s.authorize(ctx, id, topicIDStr); err != nil {
		return err
	}
	return s.typing.ClearTyping(ctx, topicIDStr, id.UserID, id.Name)
}

func (s *TypingService) authorize(ctx context.Context, id Identity, topicIDStr string) error {
	topicID, err := uuid.Parse(topicIDStr)
	if err != nil {
		return piazza_errors.ErrInvalidInput
	}
	userID, err := uuid.Parse(id.UserID)
	if err != nil {
		return piazza_errors.ErrUnauthorized
	}
	membership, err := s.topics.GetMembership(ctx, topicID, userID)
	if err != nil {
		return err
	}
	if !membership.CanWrite {
		return piazza_errors.ErrReadOnlyTopic
	}
	return nil
}
