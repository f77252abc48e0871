package client

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"piazza-chat/internal/chat"
	"piazza-chat/internal/domain/message"
	"piazza-chat/internal/events"
	piazza_errors "piazza-chat/pkg/errors"
)

const (
	dialTimeout  = 10 * time.Second
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
	pingPeriod   = 30 * time.Second
)

// TypingFunc receives decoded typing signals. started is false for
// typing.stopped envelopes.
type TypingFunc func(sig events.TypingPayload, started bool)

// RealtimeClient opens per-topic websocket subscriptions against the
// piazza-chat /ws endpoint. Each subscription holds its own connection,
// so closing one topic's stream never disturbs another's.
type RealtimeClient struct {
	wsURL    string
	token    string
	onTyping TypingFunc
}

var _ chat.Realtime = (*RealtimeClient)(nil)

// NewRealtimeClient builds a realtime client. wsURL is the ws:// or
// wss:// address of the /ws endpoint.
func NewRealtimeClient(wsURL, token string, onTyping TypingFunc) *RealtimeClient {
	return &RealtimeClient{wsURL: wsURL, token: token, onTyping: onTyping}
}

func (c *RealtimeClient) Subscribe(ctx context.Context, topicID string) (chat.Subscription, error) {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("token", c.token)
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}

	frame := map[string]string{"action": "subscribe", "topic_id": topicID}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(frame); err != nil {
		conn.Close()
		return nil, err
	}

	sub := &subscription{
		conn:     conn,
		topicID:  topicID,
		events:   make(chan chat.Event, 64),
		done:     make(chan struct{}),
		onTyping: c.onTyping,
	}
	go sub.readLoop()
	go sub.pingLoop()
	return sub, nil
}

type subscription struct {
	conn     *websocket.Conn
	topicID  string
	events   chan chat.Event
	onTyping TypingFunc

	mu     sync.Mutex
	err    error
	closed bool
	done   chan struct{}
}

func (s *subscription) Events() <-chan chat.Event { return s.events }

func (s *subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *subscription) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	frame := map[string]string{"action": "unsubscribe", "topic_id": s.topicID}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_ = s.conn.WriteJSON(frame)
	err := s.conn.Close()
	<-s.done
	return err
}

func (s *subscription) readLoop() {
	defer close(s.done)
	defer close(s.events)

	_ = s.conn.SetReadDeadline(time.Now().Add(readTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			if !s.closed {
				s.err = err
			} else {
				s.err = piazza_errors.ErrClosed
			}
			s.mu.Unlock()
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(readTimeout))

		event, typing, ok := decodeEnvelope(data, s.topicID)
		if !ok {
			continue
		}
		if typing != nil {
			if s.onTyping != nil {
				s.onTyping(typing.payload, typing.started)
			}
			continue
		}
		select {
		case s.events <- event:
		default:
			// Buffer full. Drop rather than block the socket; the
			// surface refetches after reconnecting.
		}
	}
}

func (s *subscription) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			_ = s.conn.WriteMessage(websocket.PingMessage, nil)
		}
	}
}

type typingEvent struct {
	payload events.TypingPayload
	started bool
}

func decodeEnvelope(data []byte, topicID string) (chat.Event, *typingEvent, bool) {
	var env events.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return chat.Event{}, nil, false
	}
	if env.TopicID != topicID {
		return chat.Event{}, nil, false
	}

	switch env.EventType {
	case events.EventTypeMessageCreated, events.EventTypeMessageUpdated, events.EventTypeMessageDeleted:
		var m message.Message
		if err := json.Unmarshal(env.Payload, &m); err != nil {
			return chat.Event{}, nil, false
		}
		kind := chat.EventNewMessage
		switch env.EventType {
		case events.EventTypeMessageUpdated:
			kind = chat.EventEditMessage
		case events.EventTypeMessageDeleted:
			kind = chat.EventDeleteMessage
		}
		return chat.Event{Kind: kind, Message: m}, nil, true

	case events.EventTypeReactionAdded, events.EventTypeReactionRemoved:
		var p events.ReactionPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return chat.Event{}, nil, false
		}
		kind := chat.EventReactionAdd
		if env.EventType == events.EventTypeReactionRemoved {
			kind = chat.EventReactionRemove
		}
		return chat.Event{
			Kind: kind,
			Reaction: message.Reaction{
				MessageID: p.MessageID,
				UserID:    p.UserID,
				Emoji:     p.Emoji,
				CreatedAt: env.OccurredAt,
			},
		}, nil, true

	case events.EventTypeTypingStarted, events.EventTypeTypingStopped:
		var p events.TypingPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return chat.Event{}, nil, false
		}
		return chat.Event{}, &typingEvent{
			payload: p,
			started: env.EventType == events.EventTypeTypingStarted,
		}, true

	default:
		return chat.Event{}, nil, false
	}
}
