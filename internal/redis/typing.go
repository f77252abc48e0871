package redis

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"piazza-chat/internal/events"
)

// Redis key patterns for typing presence:
// - typing:{topic_id}:{user_id} - string with TTL, holds the typer's display name
// - typing:{topic_id}            - sorted set of user IDs scored by signal time

const (
	typingKeyPrefix = "typing:"
)

// TypingStore tracks who is typing in a topic. Signals carry a TTL so a
// client that disappears mid-keystroke stops showing as typing without an
// explicit stop.
type TypingStore struct {
	client    *goredis.Client
	publisher *Publisher
	ttl       time.Duration
}

func NewTypingStore(client *goredis.Client, publisher *Publisher, ttl time.Duration) *TypingStore {
	if ttl == 0 {
		ttl = 3 * time.Second
	}
	return &TypingStore{
		client:    client,
		publisher: publisher,
		ttl:       ttl,
	}
}

// SetTyping records a typing signal and broadcasts it on the topic channel.
func (t *TypingStore) SetTyping(ctx context.Context, topicID, userID, userName string) error {
	now := time.Now()

	pipe := t.client.Pipeline()
	pipe.Set(ctx, typingKeyPrefix+topicID+":"+userID, userName, t.ttl)
	pipe.ZAdd(ctx, typingKeyPrefix+topicID, goredis.Z{
		Score:  float64(now.UnixMilli()),
		Member: userID,
	})
	pipe.Expire(ctx, typingKeyPrefix+topicID, t.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	return t.publish(ctx, events.EventTypeTypingStarted, topicID, userID, userName, now)
}

// ClearTyping removes a typing signal and broadcasts the stop.
func (t *TypingStore) ClearTyping(ctx context.Context, topicID, userID, userName string) error {
	pipe := t.client.Pipeline()
	pipe.Del(ctx, typingKeyPrefix+topicID+":"+userID)
	pipe.ZRem(ctx, typingKeyPrefix+topicID, userID)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	return t.publish(ctx, events.EventTypeTypingStopped, topicID, userID, userName, time.Now())
}

// ActiveTypers returns the user IDs with a live typing signal in the topic.
// Entries older than the TTL are pruned on read.
func (t *TypingStore) ActiveTypers(ctx context.Context, topicID string) ([]string, error) {
	key := typingKeyPrefix + topicID
	cutoff := time.Now().Add(-t.ttl).UnixMilli()

	if err := t.client.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10)).Err(); err != nil {
		return nil, err
	}
	return t.client.ZRange(ctx, key, 0, -1).Result()
}

func (t *TypingStore) publish(ctx context.Context, eventType, topicID, userID, userName string, at time.Time) error {
	env, err := events.NewEnvelope(eventType, events.AggregateTypeTyping, userID, topicID, events.TypingPayload{
		TopicID:  topicID,
		UserID:   userID,
		UserName: userName,
		At:       at,
	})
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return t.publisher.Publish(ctx, events.TopicChannel(topicID), data)
}
