package services

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"piazza-chat/internal/config"
	piazza_errors "piazza-chat/pkg/errors"
	"piazza-chat/pkg/logger"
)

type fakeStore struct {
	keys []string
}

func (s *fakeStore) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	s.keys = append(s.keys, key)
	return "https://media.example/" + key, nil
}

func testChatConfig() config.ChatConfig {
	return config.ChatConfig{
		VoiceMinDuration:   500 * time.Millisecond,
		VoiceMaxDuration:   60 * time.Second,
		MaxAttachmentBytes: 5 * 1024 * 1024,
	}
}

func pngData(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestUploadImage(t *testing.T) {
	store := &fakeStore{}
	svc := NewMediaService(store, testChatConfig(), logger.NewNop())
	id := Identity{UserID: "u1"}

	ref, err := svc.UploadImage(context.Background(), id, pngData(t, 320, 240), "image/png")
	require.NoError(t, err)

	assert.Equal(t, 320, ref.Width)
	assert.Equal(t, 240, ref.Height)
	assert.True(t, strings.HasPrefix(ref.URL, "https://media.example/images/u1/"))
	require.Len(t, store.keys, 1)
	assert.True(t, strings.HasSuffix(store.keys[0], ".png"))
}

func TestUploadImageRejections(t *testing.T) {
	store := &fakeStore{}
	svc := NewMediaService(store, testChatConfig(), logger.NewNop())
	id := Identity{UserID: "u1"}

	t.Run("unsupported type", func(t *testing.T) {
		_, err := svc.UploadImage(context.Background(), id, []byte("%PDF-"), "application/pdf")
		assert.ErrorIs(t, err, piazza_errors.ErrUnsupportedType)
	})

	t.Run("not an image", func(t *testing.T) {
		_, err := svc.UploadImage(context.Background(), id, []byte("garbage"), "image/png")
		assert.ErrorIs(t, err, piazza_errors.ErrInvalidInput)
	})

	t.Run("too large", func(t *testing.T) {
		cfg := testChatConfig()
		cfg.MaxAttachmentBytes = 10
		small := NewMediaService(store, cfg, logger.NewNop())
		_, err := small.UploadImage(context.Background(), id, pngData(t, 64, 64), "image/png")
		assert.ErrorIs(t, err, piazza_errors.ErrTooLarge)
	})
}

func TestUploadVoice(t *testing.T) {
	store := &fakeStore{}
	svc := NewMediaService(store, testChatConfig(), logger.NewNop())
	id := Identity{UserID: "u1"}

	payload, err := svc.UploadVoice(context.Background(), id, []byte{1, 2, 3}, 2.5, "audio/webm", []float64{0.2, 0.9})
	require.NoError(t, err)

	assert.InDelta(t, 2.5, payload.Duration, 0.001)
	assert.Equal(t, "audio/webm", payload.MimeType)
	assert.Equal(t, int64(3), payload.Size)
	assert.True(t, strings.HasPrefix(payload.URL, "https://media.example/voice/u1/"))
	assert.True(t, strings.HasSuffix(payload.URL, ".webm"))
}

func TestUploadVoiceWithCodecsParameter(t *testing.T) {
	store := &fakeStore{}
	svc := NewMediaService(store, testChatConfig(), logger.NewNop())
	id := Identity{UserID: "u1"}

	// Recorded streams carry the codec alongside the media type.
	payload, err := svc.UploadVoice(context.Background(), id, []byte{1, 2, 3}, 2, "audio/webm;codecs=opus", nil)
	require.NoError(t, err)

	assert.Equal(t, "audio/webm", payload.MimeType)
	assert.True(t, strings.HasSuffix(payload.URL, ".webm"))
}

func TestUploadVoiceRejections(t *testing.T) {
	store := &fakeStore{}
	svc := NewMediaService(store, testChatConfig(), logger.NewNop())
	id := Identity{UserID: "u1"}

	t.Run("below minimum duration", func(t *testing.T) {
		_, err := svc.UploadVoice(context.Background(), id, []byte{1}, 0.3, "audio/webm", nil)
		assert.ErrorIs(t, err, piazza_errors.ErrTooShort)
	})

	t.Run("above maximum duration", func(t *testing.T) {
		_, err := svc.UploadVoice(context.Background(), id, []byte{1}, 61, "audio/webm", nil)
		assert.ErrorIs(t, err, piazza_errors.ErrTooLarge)
	})

	t.Run("unsupported mime", func(t *testing.T) {
		_, err := svc.UploadVoice(context.Background(), id, []byte{1}, 2, "video/mp4", nil)
		assert.ErrorIs(t, err, piazza_errors.ErrUnsupportedType)
	})

	t.Run("empty blob", func(t *testing.T) {
		_, err := svc.UploadVoice(context.Background(), id, nil, 2, "audio/webm", nil)
		assert.ErrorIs(t, err, piazza_errors.ErrInvalidInput)
	})
}
