package websocket

import (
	"context"

	"piazza-chat/internal/events"
)

// RedisBridge feeds Redis pub/sub traffic into the hub so every API
// instance fans the same events out to its own connections.
type RedisBridge struct {
	subscriber events.Subscriber
	hub        *Hub
}

func NewRedisBridge(subscriber events.Subscriber, hub *Hub) *RedisBridge {
	return &RedisBridge{subscriber: subscriber, hub: hub}
}

// Run blocks until the context is cancelled or the subscription fails.
func (b *RedisBridge) Run(ctx context.Context) error {
	channels := []string{
		events.ChannelPrefixTopic + "*",
		events.ChannelPrefixUser + "*",
	}
	return b.subscriber.Subscribe(ctx, channels, func(channel string, payload []byte) {
		b.hub.Broadcast(channel, payload)
	})
}
