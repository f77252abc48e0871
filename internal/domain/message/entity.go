package message

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind discriminates the payload carried by a message.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindVoice Kind = "voice"
)

// DeliveryState tracks the local lifecycle of a message. Only Pending
// messages carry a temporary identity; a Confirmed message's identity is
// server-assigned and stable.
type DeliveryState string

const (
	StatePending   DeliveryState = "pending"
	StateConfirmed DeliveryState = "confirmed"
	StateFailed    DeliveryState = "failed"
)

// TempIDPrefix namespaces client-generated identities so they can never
// collide with server UUIDs.
const TempIDPrefix = "temp-"

// NewTempID returns a fresh temporary message identity.
func NewTempID() string {
	return TempIDPrefix + uuid.New().String()
}

// IsTempID reports whether id belongs to the temporary namespace.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// Author is the display projection of a message sender.
type Author struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// Message is one entry in a topic's thread. AuthorID is empty for system
// messages. Content is empty for media-only messages.
type Message struct {
	ID        string        `json:"id"`
	TopicID   string        `json:"topic_id"`
	AuthorID  string        `json:"author_id,omitempty"`
	Author    *Author       `json:"author,omitempty"`
	Kind      Kind          `json:"kind"`
	Content   string        `json:"content,omitempty"`
	Payload   Payload       `json:"-"`
	ReplyToID string        `json:"reply_to_id,omitempty"`
	ReplyTo   *Message      `json:"reply_to,omitempty"`
	Reactions []Reaction    `json:"reactions,omitempty"`
	State     DeliveryState `json:"-"`
	IsEdited  bool          `json:"is_edited"`
	EditedAt  *time.Time    `json:"edited_at,omitempty"`
	IsDeleted bool          `json:"is_deleted"`
	DeletedAt *time.Time    `json:"deleted_at,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Before orders messages for display: ascending creation time, identity
// string as a deterministic tie-break.
func (m Message) Before(other Message) bool {
	if m.CreatedAt.Equal(other.CreatedAt) {
		return m.ID < other.ID
	}
	return m.CreatedAt.Before(other.CreatedAt)
}

// SoftDelete hides the message content while keeping its slot in the
// thread. Deletion and edit flags are orthogonal.
func (m *Message) SoftDelete(at time.Time) {
	m.IsDeleted = true
	m.DeletedAt = &at
	m.Content = ""
	m.Payload = nil
	m.UpdatedAt = at
}

// MarkEdited records an author edit.
func (m *Message) MarkEdited(content string, at time.Time) {
	m.Content = content
	m.IsEdited = true
	m.EditedAt = &at
	m.UpdatedAt = at
}
