package events

import (
	"encoding/json"
	"time"
)

// Envelope is the wire shape of every realtime event. Payload decoding is
// deferred to the consumer so relays stay schema-agnostic.
type Envelope struct {
	EventType     string          `json:"event_type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	TopicID       string          `json:"topic_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope wraps a payload value, stamping the current time.
func NewEnvelope(eventType, aggregateType, aggregateID, topicID string, payload interface{}) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		TopicID:       topicID,
		OccurredAt:    time.Now(),
		Payload:       raw,
	}, nil
}

// TypingPayload is the body of typing.* envelopes.
type TypingPayload struct {
	TopicID  string    `json:"topic_id"`
	UserID   string    `json:"user_id"`
	UserName string    `json:"user_name"`
	At       time.Time `json:"at"`
}
