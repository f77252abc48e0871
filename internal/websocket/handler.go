package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"piazza-chat/internal/events"
	"piazza-chat/internal/redis"
	"piazza-chat/internal/services"
	"piazza-chat/internal/transport/httpdto"
	"piazza-chat/pkg/logger"
)

// controlFrame is the only inbound message shape clients send. All chat
// operations go over HTTP; the socket is subscribe-and-listen.
type controlFrame struct {
	Action  string `json:"action"` // subscribe | unsubscribe
	TopicID string `json:"topic_id"`
}

type Handler struct {
	auth       *services.AuthService
	authorizer *ChannelAuthorizer
	hub        *Hub
	limiter    *redis.RateLimiter
	log        *logger.Logger
}

func NewHandler(auth *services.AuthService, authorizer *ChannelAuthorizer, hub *Hub, limiter *redis.RateLimiter, log *logger.Logger) *Handler {
	return &Handler{auth: auth, authorizer: authorizer, hub: hub, limiter: limiter, log: log}
}

// Connect upgrades the request and serves the connection until it drops.
// Auth rides in the query string because browsers cannot set headers on
// websocket dials.
func (h *Handler) Connect(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	identity, err := h.auth.ParseAccessToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	if h.limiter != nil {
		result, err := h.limiter.AllowConnect(c.Request.Context(), identity.UserID)
		if err != nil {
			h.log.Errorf("connect rate limit check failed for user %s: %v", identity.UserID, err)
		} else if !result.Allowed {
			c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse("connection rate limit exceeded", "RATE_LIMITED"))
			return
		}
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := NewClient(conn, identity.UserID)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.hub.Register(client)
	go client.WriteLoop(ctx)

	// Every connection listens on its user channel from the start.
	h.hub.Subscribe(client, events.UserChannel(identity.UserID))

	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(readWait))
		h.handleFrame(ctx, client, data)
	}

	h.hub.Unregister(client)
}

func (h *Handler) handleFrame(ctx context.Context, client *Client, data []byte) {
	var frame controlFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return
	}
	if frame.TopicID == "" {
		return
	}
	channel := events.TopicChannel(frame.TopicID)

	switch frame.Action {
	case "subscribe":
		ok, err := h.authorizer.CanSubscribe(ctx, client.UserID, channel)
		if err != nil {
			h.log.Errorf("channel authorization failed for user %s: %v", client.UserID, err)
			return
		}
		if !ok {
			return
		}
		h.hub.Subscribe(client, channel)
	case "unsubscribe":
		h.hub.Unsubscribe(client, channel)
	}
}
