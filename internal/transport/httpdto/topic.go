package httpdto

import "piazza-chat/internal/domain/topic"

type TopicResponse struct {
	Topic      topic.Topic      `json:"topic"`
	Membership topic.Membership `json:"membership"`
}
