package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"piazza-chat/internal/domain/message"
	"piazza-chat/internal/domain/topic"
	piazza_errors "piazza-chat/pkg/errors"
	"piazza-chat/pkg/logger"
)

// SurfaceConfig wires the collaborators of one topic view.
type SurfaceConfig struct {
	Topic      topic.Topic
	Membership topic.Membership
	Self       message.Author
	Messages   MessageAPI
	Reactions  ReactionAPI
	Voice      VoiceAPI
	Realtime   Realtime
	Logger     *logger.Logger
	PageSize   int
	// OnError receives user-facing failures (failed sends, rejected
	// reactions). Optional.
	OnError func(error)
}

// Surface composes the store, reconciler, aggregator and typing tracker
// into a single topic view. It owns the realtime subscription for its
// lifetime: created on Open, released on Close, never a process-wide
// singleton.
type Surface struct {
	mu sync.Mutex

	topic  topic.Topic
	member topic.Membership
	self   message.Author

	store     *Store
	recon     *Reconciler
	reactions *Aggregator
	typing    *TypingTracker

	api         MessageAPI
	reactionAPI ReactionAPI
	voiceAPI    VoiceAPI
	realtime    Realtime
	log         *logger.Logger
	onError     func(error)

	sub      Subscription
	loopDone chan struct{}
	closed   bool

	pageSize   int
	hasMore    bool
	nearBottom bool
	unread     int
}

func NewSurface(cfg SurfaceConfig) *Surface {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	store := NewStore(cfg.Topic.ID)
	return &Surface{
		topic:       cfg.Topic,
		member:      cfg.Membership,
		self:        cfg.Self,
		store:       store,
		recon:       NewReconciler(store, cfg.Self),
		reactions:   NewAggregator(),
		typing:      NewTypingTracker(0),
		api:         cfg.Messages,
		reactionAPI: cfg.Reactions,
		voiceAPI:    cfg.Voice,
		realtime:    cfg.Realtime,
		log:         log.With(zap.String("topic_id", cfg.Topic.ID)),
		onError:     cfg.OnError,
		pageSize:    pageSize,
		hasMore:     true,
		nearBottom:  true,
	}
}

// Open loads the initial window and starts routing realtime events. The
// subscription handle is scoped to this surface.
func (s *Surface) Open(ctx context.Context) error {
	page, err := s.api.FetchMessages(ctx, s.topic.ID, "", s.pageSize)
	if err != nil {
		return err
	}
	s.store.Load(confirmAll(page.Items))

	sub, err := s.realtime.Subscribe(ctx, s.topic.ID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.sub = sub
	s.hasMore = page.HasMore
	s.loopDone = make(chan struct{})
	s.mu.Unlock()

	go s.loop(ctx, sub)
	return nil
}

// Close releases the subscription and stops the event loop.
func (s *Surface) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	sub := s.sub
	done := s.loopDone
	s.mu.Unlock()

	if sub != nil {
		_ = sub.Close()
	}
	if done != nil {
		<-done
	}
	return nil
}

// loop routes realtime events until the subscription ends. A dropped
// stream is not fatal: delivery is at-least-once but not gap-free, so on
// reconnect the newest window is re-fetched to fill any gap.
func (s *Surface) loop(ctx context.Context, sub Subscription) {
	defer close(s.loopDone)
	for {
		for ev := range sub.Events() {
			s.route(ev)
		}

		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed || ctx.Err() != nil {
			return
		}
		if err := sub.Err(); err != nil {
			s.log.Warnf("realtime stream dropped: %v", err)
		}

		next, err := s.resubscribe(ctx)
		if err != nil {
			s.report(err)
			return
		}
		sub = next
	}
}

func (s *Surface) resubscribe(ctx context.Context) (Subscription, error) {
	var lastErr error
	for attempt := 0; attempt < 5; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * time.Second):
		}

		sub, err := s.realtime.Subscribe(ctx, s.topic.ID)
		if err != nil {
			lastErr = err
			continue
		}

		// Fill the delivery gap before resuming.
		page, err := s.api.FetchMessages(ctx, s.topic.ID, "", s.pageSize)
		if err == nil {
			for _, m := range page.Items {
				m.State = message.StateConfirmed
				s.store.Upsert(m)
			}
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = sub.Close()
			return nil, piazza_errors.ErrClosed
		}
		s.sub = sub
		s.mu.Unlock()
		return sub, nil
	}
	return nil, lastErr
}

func (s *Surface) route(ev Event) {
	switch ev.Kind {
	case EventNewMessage:
		m := ev.Message
		m.State = message.StateConfirmed
		if s.store.Upsert(m) == UpsertInserted {
			s.bumpUnread(m)
		}
		// A participant who delivered a message is no longer typing.
		s.typing.Apply(false, TypingSignal{TopicID: m.TopicID, UserID: m.AuthorID, At: m.CreatedAt})
	case EventEditMessage, EventDeleteMessage:
		m := ev.Message
		m.State = message.StateConfirmed
		s.store.Upsert(m)
		if m.IsDeleted {
			s.reactions.Forget(m.ID)
		}
	case EventReactionAdd:
		s.reactions.ApplyAdd(ev.Reaction)
	case EventReactionRemove:
		s.reactions.ApplyRemove(ev.Reaction)
	}
}

// Send pushes a text draft through the optimistic lifecycle: visible
// immediately under a temp identity, swapped for the server entry on
// confirmation, removed with a surfaced error on failure.
func (s *Surface) Send(ctx context.Context, content string, replyToID string, images []message.ImageRef) (message.Message, error) {
	if !s.member.CanWrite {
		return message.Message{}, piazza_errors.ErrReadOnlyTopic
	}
	content = strings.TrimSpace(content)
	if content == "" && len(images) == 0 {
		return message.Message{}, piazza_errors.ErrInvalidInput
	}

	draft := Draft{Content: content, ReplyToID: replyToID}
	if replyToID != "" {
		if target, ok := s.store.Get(replyToID); ok {
			draft.ReplyTo = &target
		}
	}
	if len(images) > 0 {
		draft.Kind = message.KindImage
		draft.Payload = message.ImagePayload{Images: images}
	}

	pending := s.recon.BeginSend(draft)

	server, err := s.api.SendMessage(ctx, s.topic.ID, SendInput{
		Content:   content,
		ReplyToID: replyToID,
		Images:    images,
	})
	if err != nil {
		s.recon.Fail(pending.ID)
		s.report(err)
		return message.Message{}, err
	}
	return s.recon.Confirm(pending.ID, server), nil
}

// SendVoice uploads a finished recording; the upload directly yields the
// confirmed message, so no optimistic entry is created.
func (s *Surface) SendVoice(ctx context.Context, blob []byte, duration time.Duration, mimeType string, waveform []float64) (message.Message, error) {
	if !s.member.CanWrite {
		return message.Message{}, piazza_errors.ErrReadOnlyTopic
	}
	m, err := s.voiceAPI.UploadVoice(ctx, s.topic.ID, blob, duration.Seconds(), mimeType, waveform)
	if err != nil {
		s.report(err)
		return message.Message{}, err
	}
	m.State = message.StateConfirmed
	s.store.Upsert(m)
	return m, nil
}

// Edit changes a confirmed message's content. Author-only; pending
// messages are rejected locally.
func (s *Surface) Edit(ctx context.Context, messageID, newContent string) error {
	if err := s.recon.RequireConfirmed(messageID); err != nil {
		return err
	}
	existing, ok := s.store.Get(messageID)
	if !ok {
		return piazza_errors.ErrNotFound
	}
	if existing.AuthorID != s.self.ID {
		return piazza_errors.ErrNotAuthor
	}
	newContent = strings.TrimSpace(newContent)
	if newContent == "" || newContent == existing.Content {
		return nil
	}

	updated, err := s.api.EditMessage(ctx, messageID, newContent)
	if err != nil {
		s.report(err)
		return err
	}
	updated.State = message.StateConfirmed
	s.store.Upsert(updated)
	return nil
}

// Delete soft-deletes a confirmed message. The entry stays in the thread
// with cleared content so the conversation remains coherent.
func (s *Surface) Delete(ctx context.Context, messageID string) error {
	if err := s.recon.RequireConfirmed(messageID); err != nil {
		return err
	}
	existing, ok := s.store.Get(messageID)
	if !ok {
		return piazza_errors.ErrNotFound
	}
	if existing.AuthorID != s.self.ID {
		return piazza_errors.ErrNotAuthor
	}

	if err := s.api.DeleteMessage(ctx, messageID); err != nil {
		s.report(err)
		return err
	}
	existing.SoftDelete(time.Now())
	existing.State = message.StateConfirmed
	s.store.Upsert(existing)
	s.reactions.Forget(messageID)
	return nil
}

// ToggleReaction applies a reaction optimistically and reconciles against
// the server, rolling back to the pre-toggle value on rejection.
func (s *Surface) ToggleReaction(ctx context.Context, messageID, emoji string) error {
	if err := s.recon.RequireConfirmed(messageID); err != nil {
		return err
	}
	if _, ok := s.store.Get(messageID); !ok {
		return piazza_errors.ErrNotFound
	}

	res := s.reactions.Toggle(messageID, emoji, s.self.ID)
	if err := s.reactionAPI.ToggleReaction(ctx, messageID, emoji); err != nil {
		s.reactions.Rollback(messageID, s.self.ID, res.Previous)
		s.report(err)
		return err
	}
	return nil
}

// LoadOlder pages history toward the past using the oldest loaded
// confirmed identity as cursor. It stops issuing requests once the server
// reports no further history.
func (s *Surface) LoadOlder(ctx context.Context) (int, error) {
	s.mu.Lock()
	if !s.hasMore {
		s.mu.Unlock()
		return 0, nil
	}
	s.mu.Unlock()

	cursor, ok := s.store.OldestID()
	if !ok {
		return 0, nil
	}
	page, err := s.api.FetchMessages(ctx, s.topic.ID, cursor, s.pageSize)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.hasMore = page.HasMore
	s.mu.Unlock()
	return s.store.Prepend(confirmAll(page.Items)), nil
}

// HasMore reports whether older history may still exist server-side.
func (s *Surface) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMore
}

// SetNearBottom records the viewer's scroll position. Near the bottom, new
// messages auto-scroll and the unread counter resets; scrolled up, arrivals
// accumulate behind an unread affordance.
func (s *Surface) SetNearBottom(near bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nearBottom = near
	if near {
		s.unread = 0
	}
}

// Unread returns the count of messages that arrived while scrolled up.
func (s *Surface) Unread() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// Messages returns the thread in display order.
func (s *Surface) Messages() []message.Message {
	return s.store.Snapshot()
}

// ReactionGroups returns the display aggregation for one message.
func (s *Surface) ReactionGroups(messageID string) ([]message.ReactionGroup, int) {
	return s.reactions.Groups(messageID)
}

// ApplyTyping merges a typing signal from the realtime transport.
func (s *Surface) ApplyTyping(started bool, sig TypingSignal) {
	s.typing.Apply(started, sig)
}

// TypingLabel composes the indicator text for the current instant.
func (s *Surface) TypingLabel() string {
	return s.typing.Label(time.Now(), s.self.ID)
}

// Store exposes the underlying message store (read-side composition).
func (s *Surface) Store() *Store { return s.store }

func (s *Surface) bumpUnread(m message.Message) {
	if m.AuthorID == s.self.ID {
		return
	}
	s.mu.Lock()
	if !s.nearBottom {
		s.unread++
	}
	s.mu.Unlock()
}

func (s *Surface) report(err error) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	if s.onError != nil {
		s.onError(err)
	}
}

func confirmAll(items []message.Message) []message.Message {
	for i := range items {
		items[i].State = message.StateConfirmed
	}
	return items
}
