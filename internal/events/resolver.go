package events

// TopicChannel returns the fanout channel for one topic's events.
func TopicChannel(topicID string) string {
	return ChannelPrefixTopic + topicID
}

// UserChannel returns the direct channel for one user's events.
func UserChannel(userID string) string {
	return ChannelPrefixUser + userID
}
