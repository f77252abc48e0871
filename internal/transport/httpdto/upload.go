package httpdto

import "piazza-chat/internal/domain/message"

type UploadImageResponse struct {
	Image message.ImageRef `json:"image"`
}

// UploadVoiceRequest accompanies the multipart voice blob as a JSON form
// field named "meta".
type UploadVoiceRequest struct {
	TopicID         string    `json:"topic_id"`
	DurationSeconds float64   `json:"duration_seconds"`
	Waveform        []float64 `json:"waveform,omitempty"`
}
