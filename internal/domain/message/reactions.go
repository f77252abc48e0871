package message

import "time"

// Reaction is one (message, emoji, user) tuple. A user holds at most one
// reaction per message; selecting a new emoji replaces the previous one.
type Reaction struct {
	MessageID string    `json:"message_id"`
	Emoji     string    `json:"emoji"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// ReactionGroup is the display aggregation of one emoji on one message.
type ReactionGroup struct {
	Emoji   string   `json:"emoji"`
	UserIDs []string `json:"user_ids"`
}

// Count returns the group's member count.
func (g ReactionGroup) Count() int { return len(g.UserIDs) }
