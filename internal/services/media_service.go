package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"mime"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/google/uuid"

	"piazza-chat/internal/config"
	"piazza-chat/internal/domain/message"
	piazza_errors "piazza-chat/pkg/errors"
	"piazza-chat/pkg/logger"
)

// ObjectStore abstracts the S3 client so media handling is testable
// without a bucket.
type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
}

var imageMimes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

var voiceMimes = map[string]string{
	"audio/webm": "webm",
	"audio/ogg":  "ogg",
	"audio/mp4":  "m4a",
	"audio/mpeg": "mp3",
}

// baseMime strips parameters from a Content-Type value. Recorded audio
// arrives as "audio/webm;codecs=opus"; the whitelist keys on the media
// type alone.
func baseMime(contentType string) string {
	parsed, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return contentType
	}
	return parsed
}

// MediaService stores chat media in object storage. Images arrive already
// compressed by the client; the server still validates type and size and
// probes dimensions itself rather than trusting the upload.
type MediaService struct {
	store ObjectStore
	cfg   config.ChatConfig
	log   *logger.Logger
}

func NewMediaService(store ObjectStore, cfg config.ChatConfig, log *logger.Logger) *MediaService {
	return &MediaService{store: store, cfg: cfg, log: log}
}

func (s *MediaService) UploadImage(ctx context.Context, id Identity, data []byte, mimeType string) (message.ImageRef, error) {
	mimeType = baseMime(mimeType)
	ext, ok := imageMimes[mimeType]
	if !ok {
		return message.ImageRef{}, piazza_errors.ErrUnsupportedType
	}
	if int64(len(data)) > s.cfg.MaxAttachmentBytes {
		return message.ImageRef{}, piazza_errors.ErrTooLarge
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return message.ImageRef{}, piazza_errors.ErrInvalidInput
	}

	key := fmt.Sprintf("images/%s/%s.%s", id.UserID, uuid.New().String(), ext)
	url, err := s.store.Upload(ctx, key, mimeType, data)
	if err != nil {
		return message.ImageRef{}, err
	}

	return message.ImageRef{URL: url, Width: cfg.Width, Height: cfg.Height}, nil
}

func (s *MediaService) UploadVoice(ctx context.Context, id Identity, data []byte, durationSeconds float64, mimeType string, waveform []float64) (message.VoicePayload, error) {
	mimeType = baseMime(mimeType)
	ext, ok := voiceMimes[mimeType]
	if !ok {
		return message.VoicePayload{}, piazza_errors.ErrUnsupportedType
	}
	if len(data) == 0 {
		return message.VoicePayload{}, piazza_errors.ErrInvalidInput
	}

	duration := time.Duration(durationSeconds * float64(time.Second))
	if duration < s.cfg.VoiceMinDuration {
		return message.VoicePayload{}, piazza_errors.ErrTooShort
	}
	if duration > s.cfg.VoiceMaxDuration {
		return message.VoicePayload{}, piazza_errors.ErrTooLarge
	}

	key := fmt.Sprintf("voice/%s/%s.%s", id.UserID, uuid.New().String(), ext)
	url, err := s.store.Upload(ctx, key, mimeType, data)
	if err != nil {
		return message.VoicePayload{}, err
	}

	return message.VoicePayload{
		URL:      url,
		Duration: durationSeconds,
		MimeType: mimeType,
		Size:     int64(len(data)),
		Waveform: waveform,
	}, nil
}
