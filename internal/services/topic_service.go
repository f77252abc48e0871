package services

import (
	"context"

	"github.com/google/uuid"

	"piazza-chat/internal/domain/topic"
	"piazza-chat/internal/repository"
	piazza_errors "piazza-chat/pkg/errors"
)

type TopicService struct {
	topics repository.TopicRepository
}

func NewTopicService(topics repository.TopicRepository) *TopicService {
	return &TopicService{topics: topics}
}

// Get returns a topic together with the caller's membership. Private
// topics are invisible to non-members.
func (s *TopicService) Get(ctx context.Context, id Identity, topicIDStr string) (topic.Topic, topic.Membership, error) {
	topicID, err := uuid.Parse(topicIDStr)
	if err != nil {
		return topic.Topic{}, topic.Membership{}, piazza_errors.ErrInvalidInput
	}
	userID, err := uuid.Parse(id.UserID)
	if err != nil {
		return topic.Topic{}, topic.Membership{}, piazza_errors.ErrUnauthorized
	}

	t, err := s.topics.GetByID(ctx, topicID)
	if err != nil {
		return topic.Topic{}, topic.Membership{}, err
	}

	membership, err := s.topics.GetMembership(ctx, topicID, userID)
	if err != nil {
		if t.Visibility == topic.VisibilityPrivate {
			return topic.Topic{}, topic.Membership{}, piazza_errors.ErrNotFound
		}
		return topic.Topic{}, topic.Membership{}, err
	}
	return t, membership, nil
}

// Join adds the caller to a public topic as a regular member.
func (s *TopicService) Join(ctx context.Context, id Identity, topicIDStr string) (topic.Membership, error) {
	topicID, err := uuid.Parse(topicIDStr)
	if err != nil {
		return topic.Membership{}, piazza_errors.ErrInvalidInput
	}
	if _, err := uuid.Parse(id.UserID); err != nil {
		return topic.Membership{}, piazza_errors.ErrUnauthorized
	}

	t, err := s.topics.GetByID(ctx, topicID)
	if err != nil {
		return topic.Membership{}, err
	}
	if t.Visibility == topic.VisibilityPrivate {
		return topic.Membership{}, piazza_errors.ErrForbidden
	}

	m := topic.Membership{
		TopicID:  topicIDStr,
		UserID:   id.UserID,
		Role:     topic.RoleMember,
		CanWrite: true,
	}
	if err := s.topics.AddMember(ctx, &m); err != nil {
		return topic.Membership{}, err
	}
	return m, nil
}

// IsMember reports whether a user belongs to a topic. Used by the
// websocket layer to authorize channel subscriptions.
func (s *TopicService) IsMember(ctx context.Context, userIDStr, topicIDStr string) (bool, error) {
	topicID, err := uuid.Parse(topicIDStr)
	if err != nil {
		return false, nil
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return false, nil
	}
	_, err = s.topics.GetMembership(ctx, topicID, userID)
	if err != nil {
		if err == piazza_errors.ErrForbidden {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
