package httpdto

import "piazza-chat/internal/domain/message"

type SendMessageRequest struct {
	TopicID   string             `json:"topic_id"`
	Content   string             `json:"content"`
	ReplyToID string             `json:"reply_to_id,omitempty"`
	Images    []message.ImageRef `json:"images,omitempty"`
}

type EditMessageRequest struct {
	Content string `json:"content"`
}

type MessagePageResponse struct {
	Messages []message.Message `json:"messages"`
	HasMore  bool              `json:"has_more"`
}

type ToggleReactionRequest struct {
	Emoji string `json:"emoji"`
}

type ToggleReactionResponse struct {
	Removed  bool   `json:"removed"`
	Previous string `json:"previous,omitempty"`
}

type TypingRequest struct {
	TopicID string `json:"topic_id"`
}
