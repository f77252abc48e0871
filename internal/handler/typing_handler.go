package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"piazza-chat/internal/services"
	"piazza-chat/internal/transport/httpdto"
)

type TypingHandler struct {
	service *services.TypingService
}

func NewTypingHandler(service *services.TypingService) *TypingHandler {
	return &TypingHandler{service: service}
}

func (h *TypingHandler) Start(c *gin.Context) {
	h.signal(c, h.service.Start)
}

func (h *TypingHandler) Stop(c *gin.Context) {
	h.signal(c, h.service.Stop)
}

func (h *TypingHandler) signal(c *gin.Context, fn func(ctx context.Context, id services.Identity, topicID string) error) {
	var req httpdto.TypingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	id, ok := services.IdentityFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	if err := fn(c.Request.Context(), id, req.TopicID); err != nil {
		c.JSON(services.HTTPStatus(err), httpdto.NewErrorResponse(err.Error(), "REQUEST_FAILED"))
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"ok": true}))
}
