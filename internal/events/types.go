package events

// Event type constants, format: domain.action

// Message events
const (
	EventTypeMessageCreated = "message.created"
	EventTypeMessageUpdated = "message.updated"
	EventTypeMessageDeleted = "message.deleted"
)

// Reaction events
const (
	EventTypeReactionAdded   = "reaction.added"
	EventTypeReactionRemoved = "reaction.removed"
)

// Typing events (real-time only, never persisted)
const (
	EventTypeTypingStarted = "typing.started"
	EventTypeTypingStopped = "typing.stopped"
)

// Aggregate type constants
const (
	AggregateTypeMessage  = "message"
	AggregateTypeReaction = "reaction"
	AggregateTypeTyping   = "typing"
)

// Redis channel prefixes
const (
	ChannelPrefixTopic = "channel:topic:"
	ChannelPrefixUser  = "channel:user:"
)
