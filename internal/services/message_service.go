package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"piazza-chat/internal/domain/message"
	"piazza-chat/internal/domain/topic"
	"piazza-chat/internal/events"
	"piazza-chat/internal/repository"
	piazza_errors "piazza-chat/pkg/errors"
	"piazza-chat/pkg/logger"
)

const maxContentLength = 4000

// SendMessageInput is the validated shape of an incoming send.
type SendMessageInput struct {
	TopicID   string
	Content   string
	ReplyToID string
	Images    []message.ImageRef
}

// MessagePage is one window of topic history, oldest first.
type MessagePage struct {
	Items   []message.Message
	HasMore bool
}

type MessageService struct {
	messages  repository.MessageRepository
	reactions repository.ReactionRepository
	topics    repository.TopicRepository
	publisher events.Publisher
	log       *logger.Logger
}

func NewMessageService(
	messages repository.MessageRepository,
	reactions repository.ReactionRepository,
	topics repository.TopicRepository,
	publisher events.Publisher,
	log *logger.Logger,
) *MessageService {
	return &MessageService{
		messages:  messages,
		reactions: reactions,
		topics:    topics,
		publisher: publisher,
		log:       log,
	}
}

func (s *MessageService) SendMessage(ctx context.Context, id Identity, in SendMessageInput) (message.Message, error) {
	topicID, err := uuid.Parse(in.TopicID)
	if err != nil {
		return message.Message{}, piazza_errors.ErrInvalidInput
	}
	userID, err := uuid.Parse(id.UserID)
	if err != nil {
		return message.Message{}, piazza_errors.ErrUnauthorized
	}

	membership, err := s.requireMembership(ctx, topicID, userID)
	if err != nil {
		return message.Message{}, err
	}
	if !membership.CanWrite {
		return message.Message{}, piazza_errors.ErrReadOnlyTopic
	}

	content := strings.TrimSpace(in.Content)
	if content == "" && len(in.Images) == 0 {
		return message.Message{}, piazza_errors.ErrInvalidInput
	}
	if len(content) > maxContentLength {
		return message.Message{}, piazza_errors.ErrTooLarge
	}

	now := time.Now()
	m := message.Message{
		ID:        uuid.New().String(),
		TopicID:   in.TopicID,
		AuthorID:  id.UserID,
		Author:    &message.Author{ID: id.UserID, Name: id.Name, Avatar: id.Avatar},
		Kind:      message.KindText,
		Content:   content,
		ReplyToID: in.ReplyToID,
		State:     message.StateConfirmed,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if len(in.Images) > 0 {
		m.Kind = message.KindImage
		m.Payload = message.ImagePayload{Images: in.Images}
	}

	if in.ReplyToID != "" {
		replyID, err := uuid.Parse(in.ReplyToID)
		if err != nil {
			return message.Message{}, piazza_errors.ErrInvalidInput
		}
		parent, err := s.messages.GetByID(ctx, replyID)
		if err != nil {
			return message.Message{}, err
		}
		if parent.TopicID != in.TopicID {
			return message.Message{}, piazza_errors.ErrInvalidInput
		}
		m.ReplyTo = &parent
	}

	if err := s.messages.Create(ctx, &m); err != nil {
		return message.Message{}, err
	}
	if err := s.topics.IncrementMessageCount(ctx, topicID, 1); err != nil {
		s.log.Warnf("message count bump failed for topic %s: %v", in.TopicID, err)
	}

	s.publishMessage(ctx, events.EventTypeMessageCreated, m)
	return m, nil
}

// SendVoiceMessage wraps an uploaded voice payload in a message. The blob
// is already in object storage by the time this runs.
func (s *MessageService) SendVoiceMessage(ctx context.Context, id Identity, topicIDStr string, payload message.VoicePayload) (message.Message, error) {
	topicID, err := uuid.Parse(topicIDStr)
	if err != nil {
		return message.Message{}, piazza_errors.ErrInvalidInput
	}
	userID, err := uuid.Parse(id.UserID)
	if err != nil {
		return message.Message{}, piazza_errors.ErrUnauthorized
	}

	membership, err := s.requireMembership(ctx, topicID, userID)
	if err != nil {
		return message.Message{}, err
	}
	if !membership.CanWrite {
		return message.Message{}, piazza_errors.ErrReadOnlyTopic
	}

	now := time.Now()
	m := message.Message{
		ID:        uuid.New().String(),
		TopicID:   topicIDStr,
		AuthorID:  id.UserID,
		Author:    &message.Author{ID: id.UserID, Name: id.Name, Avatar: id.Avatar},
		Kind:      message.KindVoice,
		Payload:   payload,
		State:     message.StateConfirmed,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.messages.Create(ctx, &m); err != nil {
		return message.Message{}, err
	}
	if err := s.topics.IncrementMessageCount(ctx, topicID, 1); err != nil {
		s.log.Warnf("message count bump failed for topic %s: %v", topicIDStr, err)
	}

	s.publishMessage(ctx, events.EventTypeMessageCreated, m)
	return m, nil
}

func (s *MessageService) EditMessage(ctx context.Context, id Identity, messageID, newContent string) (message.Message, error) {
	msgID, err := uuid.Parse(messageID)
	if err != nil {
		return message.Message{}, piazza_errors.ErrInvalidInput
	}

	content := strings.TrimSpace(newContent)
	if content == "" {
		return message.Message{}, piazza_errors.ErrInvalidInput
	}
	if len(content) > maxContentLength {
		return message.Message{}, piazza_errors.ErrTooLarge
	}

	m, err := s.messages.GetByID(ctx, msgID)
	if err != nil {
		return message.Message{}, err
	}
	if m.AuthorID != id.UserID {
		return message.Message{}, piazza_errors.ErrNotAuthor
	}
	if m.IsDeleted {
		return message.Message{}, piazza_errors.ErrNotFound
	}

	now := time.Now()
	if err := s.messages.UpdateContent(ctx, msgID, content, now); err != nil {
		return message.Message{}, err
	}
	m.MarkEdited(content, now)

	s.publishMessage(ctx, events.EventTypeMessageUpdated, m)
	return m, nil
}

func (s *MessageService) DeleteMessage(ctx context.Context, id Identity, messageID string) error {
	msgID, err := uuid.Parse(messageID)
	if err != nil {
		return piazza_errors.ErrInvalidInput
	}

	m, err := s.messages.GetByID(ctx, msgID)
	if err != nil {
		return err
	}
	if m.IsDeleted {
		return piazza_errors.ErrNotFound
	}
	if m.AuthorID != id.UserID {
		if err := s.requireModerator(ctx, m, id); err != nil {
			return err
		}
	}

	now := time.Now()
	if err := s.messages.SoftDelete(ctx, msgID, now); err != nil {
		return err
	}
	m.SoftDelete(now)

	s.publishMessage(ctx, events.EventTypeMessageDeleted, m)
	return nil
}

// ListMessages pages backwards through a topic's history. beforeID is the
// exclusive cursor; empty starts from the newest message.
func (s *MessageService) ListMessages(ctx context.Context, id Identity, topicIDStr, beforeID string, limit int) (MessagePage, error) {
	topicID, err := uuid.Parse(topicIDStr)
	if err != nil {
		return MessagePage{}, piazza_errors.ErrInvalidInput
	}
	userID, err := uuid.Parse(id.UserID)
	if err != nil {
		return MessagePage{}, piazza_errors.ErrUnauthorized
	}
	if _, err := s.requireMembership(ctx, topicID, userID); err != nil {
		return MessagePage{}, err
	}

	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var cursor *message.Message
	if beforeID != "" {
		cursorID, err := uuid.Parse(beforeID)
		if err != nil {
			return MessagePage{}, piazza_errors.ErrInvalidInput
		}
		m, err := s.messages.GetByID(ctx, cursorID)
		if err != nil {
			return MessagePage{}, err
		}
		cursor = &m
	}

	// Fetch one extra row to learn whether older history remains.
	items, err := s.messages.ListBefore(ctx, topicID, cursor, limit+1)
	if err != nil {
		return MessagePage{}, err
	}
	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	// Repository returns newest first; the wire contract is oldest first.
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}

	if err := s.attachReactions(ctx, items); err != nil {
		return MessagePage{}, err
	}

	return MessagePage{Items: items, HasMore: hasMore}, nil
}

// GetReactions loads the raw reaction rows for a set of messages.
func (s *MessageService) GetReactions(ctx context.Context, messageIDs []string) ([]message.Reaction, error) {
	ids := make([]uuid.UUID, 0, len(messageIDs))
	for _, raw := range messageIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, piazza_errors.ErrInvalidInput
		}
		ids = append(ids, id)
	}
	return s.reactions.ListForMessages(ctx, ids)
}

func (s *MessageService) attachReactions(ctx context.Context, items []message.Message) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(items))
	for _, m := range items {
		if id, err := uuid.Parse(m.ID); err == nil {
			ids = append(ids, id)
		}
	}
	rxns, err := s.reactions.ListForMessages(ctx, ids)
	if err != nil {
		return err
	}
	byMessage := make(map[string][]message.Reaction)
	for _, r := range rxns {
		byMessage[r.MessageID] = append(byMessage[r.MessageID], r)
	}
	for i := range items {
		items[i].Reactions = byMessage[items[i].ID]
	}
	return nil
}

func (s *MessageService) requireMembership(ctx context.Context, topicID, userID uuid.UUID) (topic.Membership, error) {
	if _, err := s.topics.GetByID(ctx, topicID); err != nil {
		return topic.Membership{}, err
	}
	return s.topics.GetMembership(ctx, topicID, userID)
}

func (s *MessageService) requireModerator(ctx context.Context, m message.Message, id Identity) error {
	topicID, err := uuid.Parse(m.TopicID)
	if err != nil {
		return piazza_errors.ErrNotAuthor
	}
	userID, err := uuid.Parse(id.UserID)
	if err != nil {
		return piazza_errors.ErrUnauthorized
	}
	membership, err := s.topics.GetMembership(ctx, topicID, userID)
	if err != nil {
		return piazza_errors.ErrNotAuthor
	}
	if membership.Role != topic.RoleModerator && membership.Role != topic.RoleOwner {
		return piazza_errors.ErrNotAuthor
	}
	return nil
}

func (s *MessageService) publishMessage(ctx context.Context, eventType string, m message.Message) {
	env, err := events.NewEnvelope(eventType, events.AggregateTypeMessage, m.ID, m.TopicID, m)
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
