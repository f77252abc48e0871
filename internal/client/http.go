package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"time"

	"piazza-chat/internal/attach"
	"piazza-chat/internal/chat"
	"piazza-chat/internal/domain/message"
	"piazza-chat/internal/transport/httpdto"
	piazza_errors "piazza-chat/pkg/errors"
)

// HTTPClient implements the chat engine's persistence boundary against
// the piazza-chat REST API.
type HTTPClient struct {
	baseURL string
	token   string
	http    *http.Client
}

var (
	_ chat.MessageAPI  = (*HTTPClient)(nil)
	_ chat.ReactionAPI = (*HTTPClient)(nil)
	_ chat.VoiceAPI    = (*HTTPClient)(nil)
	_ attach.Uploader  = (*HTTPClient)(nil)
)

func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) SendMessage(ctx context.Context, topicID string, in chat.SendInput) (message.Message, error) {
	req := httpdto.SendMessageRequest{
		TopicID:   topicID,
		Content:   in.Content,
		ReplyToID: in.ReplyToID,
		Images:    in.Images,
	}
	var out message.Message
	if err := c.doJSON(ctx, http.MethodPost, "/v1/messages", req, &out); err != nil {
		return message.Message{}, err
	}
	return out, nil
}

func (c *HTTPClient) EditMessage(ctx context.Context, messageID, newContent string) (message.Message, error) {
	req := httpdto.EditMessageRequest{Content: newContent}
	var out message.Message
	if err := c.doJSON(ctx, http.MethodPatch, "/v1/messages/"+url.PathEscape(messageID), req, &out); err != nil {
		return message.Message{}, err
	}
	return out, nil
}

func (c *HTTPClient) DeleteMessage(ctx context.Context, messageID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/v1/messages/"+url.PathEscape(messageID), nil, nil)
}

func (c *HTTPClient) FetchMessages(ctx context.Context, topicID, beforeID string, limit int) (chat.Page, error) {
	q := url.Values{}
	if beforeID != "" {
		q.Set("before", beforeID)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/v1/topics/" + url.PathEscape(topicID) + "/messages"
	if encoded := q.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var out httpdto.MessagePageResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return chat.Page{}, err
	}
	return chat.Page{Items: out.Messages, HasMore: out.HasMore}, nil
}

func (c *HTTPClient) ToggleReaction(ctx context.Context, messageID, emoji string) error {
	req := httpdto.ToggleReactionRequest{Emoji: emoji}
	return c.doJSON(ctx, http.MethodPost, "/v1/messages/"+url.PathEscape(messageID)+"/reactions", req, nil)
}

func (c *HTTPClient) TypingStart(ctx context.Context, topicID string) error {
	req := httpdto.TypingRequest{TopicID: topicID}
	return c.doJSON(ctx, http.MethodPost, "/v1/typing/start", req, nil)
}

func (c *HTTPClient) TypingStop(ctx context.Context, topicID string) error {
	req := httpdto.TypingRequest{TopicID: topicID}
	return c.doJSON(ctx, http.MethodPost, "/v1/typing/stop", req, nil)
}

// TypingEmitter adapts the typing endpoints to the broadcaster's emitter
// contract for one topic. Signal delivery is best effort; a lost signal
// self-heals when the server-side TTL lapses.
func (c *HTTPClient) TypingEmitter(topicID string) chat.TypingEmitter {
	return chat.TypingEmitterFunc(func(started bool) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if started {
			_ = c.TypingStart(ctx, topicID)
			return
		}
		_ = c.TypingStop(ctx, topicID)
	})
}

// UploadImage stores one compressed attachment and returns its reference
// for the eventual message send.
func (c *HTTPClient) UploadImage(ctx context.Context, data []byte, mimeType string) (message.ImageRef, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="image"`)
	header.Set("Content-Type", mimeType)
	part, err := w.CreatePart(header)
	if err != nil {
		return message.ImageRef{}, err
	}
	if _, err := part.Write(data); err != nil {
		return message.ImageRef{}, err
	}
	if err := w.Close(); err != nil {
		return message.ImageRef{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/uploads/images", &body)
	if err != nil {
		return message.ImageRef{}, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.token)

	var out httpdto.UploadImageResponse
	if err := c.do(req, &out); err != nil {
		return message.ImageRef{}, err
	}
	return out.Image, nil
}

func (c *HTTPClient) UploadVoice(ctx context.Context, topicID string, blob []byte, durationSeconds float64, mimeType string, waveform []float64) (message.Message, error) {
	meta, err := json.Marshal(httpdto.UploadVoiceRequest{
		TopicID:         topicID,
		DurationSeconds: durationSeconds,
		Waveform:        waveform,
	})
	if err != nil {
		return message.Message{}, err
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("meta", string(meta)); err != nil {
		return message.Message{}, err
	}

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="voice"`)
	header.Set("Content-Type", mimeType)
	part, err := w.CreatePart(header)
	if err != nil {
		return message.Message{}, err
	}
	if _, err := part.Write(blob); err != nil {
		return message.Message{}, err
	}
	if err := w.Close(); err != nil {
		return message.Message{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/uploads/voice", &body)
	if err != nil {
		return message.Message{}, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.token)

	var out message.Message
	if err := c.do(req, &out); err != nil {
		return message.Message{}, err
	}
	return out, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	return c.do(req, out)
}

func (c *HTTPClient) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		return statusError(resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return err
	}
	if !envelope.Success {
		return fmt.Errorf("request failed")
	}
	return json.Unmarshal(envelope.Data, out)
}

func statusError(status int, raw []byte) error {
	var envelope struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(raw, &envelope)

	var base error
	switch status {
	case http.StatusBadRequest:
		base = piazza_errors.ErrInvalidInput
	case http.StatusUnauthorized:
		base = piazza_errors.ErrUnauthorized
	case http.StatusForbidden:
		base = piazza_errors.ErrForbidden
	case http.StatusNotFound:
		base = piazza_errors.ErrNotFound
	case http.StatusConflict:
		base = piazza_errors.ErrConflict
	case http.StatusRequestEntityTooLarge:
		base = piazza_errors.ErrTooLarge
	case http.StatusTooManyRequests:
		base = piazza_errors.ErrRateLimited
	default:
		return fmt.Errorf("server returned %d: %s", status, envelope.Error)
	}
	if envelope.Error != "" {
		return fmt.Errorf("%w: %s", base, envelope.Error)
	}
	return base
}
