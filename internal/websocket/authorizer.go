package websocket

import (
	"context"
	"strings"

	"piazza-chat/internal/events"
	"piazza-chat/internal/services"
)

// ChannelAuthorizer decides which channels a user may subscribe to.
type ChannelAuthorizer struct {
	topics *services.TopicService
}

func NewChannelAuthorizer(topics *services.TopicService) *ChannelAuthorizer {
	return &ChannelAuthorizer{topics: topics}
}

// CanSubscribe allows a user's own channel unconditionally and topic
// channels only to members. Everything else is denied.
func (a *ChannelAuthorizer) CanSubscribe(ctx context.Context, userID, channel string) (bool, error) {
	if channel == events.UserChannel(userID) {
		return true, nil
	}

	if strings.HasPrefix(channel, events.ChannelPrefixTopic) {
		topicID := strings.TrimPrefix(channel, events.ChannelPrefixTopic)
		return a.topics.IsMember(ctx, userID, topicID)
	}

	return false, nil
}
