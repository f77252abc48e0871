package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"piazza-chat/internal/services"
	"piazza-chat/internal/transport/httpdto"
)

type UploadHandler struct {
	media    *services.MediaService
	messages *services.MessageService
	maxBytes int64
}

func NewUploadHandler(media *services.MediaService, messages *services.MessageService, maxBytes int64) *UploadHandler {
	return &UploadHandler{media: media, messages: messages, maxBytes: maxBytes}
}

// UploadImage accepts one multipart image under field "file" and returns
// its stored reference. Messages attach these references on send.
func (h *UploadHandler) UploadImage(c *gin.Context) {
	id, ok := services.IdentityFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	data, mimeType, ok := h.readFile(c)
	if !ok {
		return
	}

	ref, err := h.media.UploadImage(c.Request.Context(), id, data, mimeType)
	if err != nil {
		c.JSON(services.HTTPStatus(err), httpdto.NewErrorResponse(err.Error(), "UPLOAD_FAILED"))
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.UploadImageResponse{Image: ref}))
}

// UploadVoice accepts a multipart voice blob under field "file" plus a
// JSON "meta" field, stores the audio and creates the voice message in
// one request.
func (h *UploadHandler) UploadVoice(c *gin.Context) {
	id, ok := services.IdentityFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	var meta httpdto.UploadVoiceRequest
	if raw := c.PostForm("meta"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid meta", "INVALID_REQUEST"))
			return
		}
	}
	if meta.TopicID == "" {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("topic_id is required", "INVALID_REQUEST"))
		return
	}

	data, mimeType, ok := h.readFile(c)
	if !ok {
		return
	}

	payload, err := h.media.UploadVoice(c.Request.Context(), id, data, meta.DurationSeconds, mimeType, meta.Waveform)
	if err != nil {
		c.JSON(services.HTTPStatus(err), httpdto.NewErrorResponse(err.Error(), "UPLOAD_FAILED"))
		return
	}

	m, err := h.messages.SendVoiceMessage(c.Request.Context(), id, meta.TopicID, payload)
	if err != nil {
		c.JSON(services.HTTPStatus(err), httpdto.NewErrorResponse(err.Error(), "REQUEST_FAILED"))
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(m))
}

func (h *UploadHandler) readFile(c *gin.Context) ([]byte, string, bool) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("file is required", "INVALID_REQUEST"))
		return nil, "", false
	}
	if h.maxBytes > 0 && header.Size > h.maxBytes {
		c.JSON(http.StatusRequestEntityTooLarge, httpdto.NewErrorResponse("file too large", "TOO_LARGE"))
		return nil, "", false
	}

	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("unreadable file", "INVALID_REQUEST"))
		return nil, "", false
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("unreadable file", "INVALID_REQUEST"))
		return nil, "", false
	}

	return data, header.Header.Get("Content-Type"), true
}
