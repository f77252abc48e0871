package events

// ReactionPayload is the body of reaction.* envelopes. Previous carries
// the emoji that was displaced when a user switched reactions.
type ReactionPayload struct {
	MessageID string `json:"message_id"`
	TopicID   string `json:"topic_id"`
	UserID    string `json:"user_id"`
	Emoji     string `json:"emoji"`
	Previous  string `json:"previous,omitempty"`
}
