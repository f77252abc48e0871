package events

import "context"

// Publisher fans an envelope out to a named channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Subscriber delivers raw envelope payloads from a set of channel patterns
// until ctx is cancelled.
type Subscriber interface {
	Subscribe(ctx context.Context, channels []string, handler func(channel string, payload []byte)) error
}
