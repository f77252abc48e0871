package topic

import "time"

// Visibility classifies who can see a topic.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Role is the caller's membership role within a topic.
type Role string

const (
	RoleMember    Role = "member"
	RoleModerator Role = "moderator"
	RoleOwner     Role = "owner"
)

// Topic is the read-only room context the chat engine operates in. It is
// owned by the community platform; the engine never mutates it.
type Topic struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Visibility   Visibility `json:"visibility"`
	MemberCount  int        `json:"member_count"`
	MessageCount int        `json:"message_count"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Membership is the caller's relationship to a topic. CanWrite gates the
// whole send surface.
type Membership struct {
	TopicID  string `json:"topic_id"`
	UserID   string `json:"user_id"`
	Role     Role   `json:"role"`
	CanWrite bool   `json:"can_write"`
}
