package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"piazza-chat/internal/domain/message"
	"piazza-chat/internal/domain/topic"
	piazza_errors "piazza-chat/pkg/errors"
)

type fakeMessageAPI struct {
	mu         sync.Mutex
	history    []message.Message
	hasMore    bool
	sendErr    error
	nextID     string
	editCalls  int
	delCalls   int
	fetchCalls int
}

func (f *fakeMessageAPI) SendMessage(_ context.Context, topicID string, in SendInput) (message.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return message.Message{}, f.sendErr
	}
	id := f.nextID
	if id == "" {
		id = "msg_srv"
	}
	now := time.Now()
	m := message.Message{
		ID: id, TopicID: topicID, AuthorID: "user-a",
		Kind: message.KindText, Content: in.Content, ReplyToID: in.ReplyToID,
		CreatedAt: now, UpdatedAt: now,
	}
	if len(in.Images) > 0 {
		m.Kind = message.KindImage
		m.Payload = message.ImagePayload{Images: in.Images}
	}
	return m, nil
}

func (f *fakeMessageAPI) EditMessage(_ context.Context, messageID, newContent string) (message.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.editCalls++
	now := time.Now()
	return message.Message{
		ID: messageID, TopicID: "topic-1", AuthorID: "user-a",
		Kind: message.KindText, Content: newContent,
		IsEdited: true, EditedAt: &now,
		CreatedAt: now.Add(-time.Minute), UpdatedAt: now,
	}, nil
}

func (f *fakeMessageAPI) DeleteMessage(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delCalls++
	return nil
}

func (f *fakeMessageAPI) FetchMessages(_ context.Context, _, beforeID string, _ int) (Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	if beforeID == "" {
		return Page{Items: f.history, HasMore: f.hasMore}, nil
	}
	return Page{Items: nil, HasMore: false}, nil
}

type fakeReactionAPI struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (f *fakeReactionAPI) ToggleReaction(context.Context, string, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *fakeReactionAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeVoiceAPI struct{}

func (fakeVoiceAPI) UploadVoice(_ context.Context, topicID string, blob []byte, duration float64, mimeType string, waveform []float64) (message.Message, error) {
	now := time.Now()
	return message.Message{
		ID: "msg_voice", TopicID: topicID, AuthorID: "user-a", Kind: message.KindVoice,
		Payload:   message.VoicePayload{URL: "https://cdn/voice.webm", Duration: duration, MimeType: mimeType, Waveform: waveform, Size: int64(len(blob))},
		CreatedAt: now, UpdatedAt: now,
	}, nil
}

type fakeSub struct {
	events chan Event
	once   sync.Once
	err    error
}

func newFakeSub() *fakeSub {
	return &fakeSub{events: make(chan Event, 16)}
}

func (s *fakeSub) Events() <-chan Event { return s.events }
func (s *fakeSub) Err() error           { return s.err }
func (s *fakeSub) Close() error {
	s.once.Do(func() { close(s.events) })
	return nil
}

type fakeRealtime struct {
	mu   sync.Mutex
	subs []*fakeSub
}

func (f *fakeRealtime) Subscribe(context.Context, string) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub := newFakeSub()
	f.subs = append(f.subs, sub)
	return sub, nil
}

func (f *fakeRealtime) current() *fakeSub {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[len(f.subs)-1]
}

func newTestSurface(t *testing.T, api *fakeMessageAPI, reactions *fakeReactionAPI) (*Surface, *fakeRealtime) {
	t.Helper()
	rt := &fakeRealtime{}
	s := NewSurface(SurfaceConfig{
		Topic:      topic.Topic{ID: "topic-1", Name: "general"},
		Membership: topic.Membership{TopicID: "topic-1", UserID: "user-a", Role: topic.RoleMember, CanWrite: true},
		Self:       message.Author{ID: "user-a", Name: "Anna"},
		Messages:   api,
		Reactions:  reactions,
		Voice:      fakeVoiceAPI{},
		Realtime:   rt,
	})
	require.NoError(t, s.Open(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s, rt
}

func TestSurfaceTextSendRoundTrip(t *testing.T) {
	api := &fakeMessageAPI{nextID: "msg_123"}
	s, _ := newTestSurface(t, api, &fakeReactionAPI{})

	got, err := s.Send(context.Background(), "Ciao a tutti", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "msg_123", got.ID)

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "msg_123", msgs[0].ID)
	assert.Equal(t, "Ciao a tutti", msgs[0].Content)
}

func TestSurfaceSendFailureRollsBack(t *testing.T) {
	var toasts []error
	api := &fakeMessageAPI{sendErr: errors.New("boom")}
	rt := &fakeRealtime{}
	s := NewSurface(SurfaceConfig{
		Topic:      topic.Topic{ID: "topic-1"},
		Membership: topic.Membership{CanWrite: true},
		Self:       message.Author{ID: "user-a", Name: "Anna"},
		Messages:   api,
		Reactions:  &fakeReactionAPI{},
		Realtime:   rt,
		OnError:    func(err error) { toasts = append(toasts, err) },
	})
	require.NoError(t, s.Open(context.Background()))
	defer s.Close()

	_, err := s.Send(context.Background(), "doomed", "", nil)
	require.Error(t, err)
	assert.Empty(t, s.Messages(), "failed send disappears, no stuck entry")
	assert.Len(t, toasts, 1)
}

func TestSurfaceSendValidation(t *testing.T) {
	s, _ := newTestSurface(t, &fakeMessageAPI{}, &fakeReactionAPI{})

	_, err := s.Send(context.Background(), "   ", "", nil)
	assert.ErrorIs(t, err, piazza_errors.ErrInvalidInput)
	assert.Empty(t, s.Messages(), "validation rejects before mutating state")
}

func TestSurfaceReadOnlyMember(t *testing.T) {
	rt := &fakeRealtime{}
	s := NewSurface(SurfaceConfig{
		Topic:      topic.Topic{ID: "topic-1"},
		Membership: topic.Membership{CanWrite: false},
		Self:       message.Author{ID: "user-a"},
		Messages:   &fakeMessageAPI{},
		Reactions:  &fakeReactionAPI{},
		Realtime:   rt,
	})
	require.NoError(t, s.Open(context.Background()))
	defer s.Close()

	_, err := s.Send(context.Background(), "hi", "", nil)
	assert.ErrorIs(t, err, piazza_errors.ErrReadOnlyTopic)
}

func TestSurfaceRealtimeDeliveryAndDuplicates(t *testing.T) {
	s, rt := newTestSurface(t, &fakeMessageAPI{}, &fakeReactionAPI{})

	now := time.Now()
	m := message.Message{
		ID: "msg_55", TopicID: "topic-1", AuthorID: "user-b",
		Kind: message.KindText, Content: "hello", CreatedAt: now, UpdatedAt: now,
	}
	sub := rt.current()
	sub.events <- Event{Kind: EventNewMessage, Message: m}
	sub.events <- Event{Kind: EventNewMessage, Message: m} // at-least-once

	require.Eventually(t, func() bool { return len(s.Messages()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, s.Messages(), 1, "duplicate delivery absorbed silently")
}

func TestSurfaceUnreadCounter(t *testing.T) {
	s, rt := newTestSurface(t, &fakeMessageAPI{}, &fakeReactionAPI{})
	s.SetNearBottom(false)

	now := time.Now()
	sub := rt.current()
	for _, id := range []string{"m1", "m2"} {
		sub.events <- Event{Kind: EventNewMessage, Message: message.Message{
			ID: id, TopicID: "topic-1", AuthorID: "user-b", Kind: message.KindText,
			Content: "x", CreatedAt: now, UpdatedAt: now,
		}}
		now = now.Add(time.Second)
	}

	require.Eventually(t, func() bool { return s.Unread() == 2 }, time.Second, 5*time.Millisecond)

	s.SetNearBottom(true)
	assert.Equal(t, 0, s.Unread(), "returning to the bottom clears the counter")
}

func TestSurfaceReactionRollbackOnRejection(t *testing.T) {
	api := &fakeMessageAPI{history: []message.Message{{
		ID: "msg_1", TopicID: "topic-1", AuthorID: "user-b", Kind: message.KindText,
		Content: "hey", CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}}}
	reactions := &fakeReactionAPI{err: errors.New("rejected")}
	s, _ := newTestSurface(t, api, reactions)

	err := s.ToggleReaction(context.Background(), "msg_1", "👍")
	require.Error(t, err)

	groups, _ := s.ReactionGroups("msg_1")
	assert.Empty(t, groups, "local state rolled back to pre-toggle value")
}

func TestSurfaceTempIdentityOperationsRejectedLocally(t *testing.T) {
	api := &fakeMessageAPI{sendErr: errors.New("offline")}
	reactions := &fakeReactionAPI{}
	s, _ := newTestSurface(t, api, reactions)

	// Produce a lingering pending entry by hand.
	pending := s.recon.BeginSend(Draft{Content: "pending"})

	assert.ErrorIs(t, s.ToggleReaction(context.Background(), pending.ID, "👍"), piazza_errors.ErrPendingMessage)
	assert.ErrorIs(t, s.Edit(context.Background(), pending.ID, "new"), piazza_errors.ErrPendingMessage)
	assert.ErrorIs(t, s.Delete(context.Background(), pending.ID), piazza_errors.ErrPendingMessage)

	assert.Equal(t, 0, reactions.callCount(), "no network call for temp identities")
	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Zero(t, api.editCalls)
	assert.Zero(t, api.delCalls)
}

func TestSurfaceEditAndDeleteAuthorOnly(t *testing.T) {
	api := &fakeMessageAPI{history: []message.Message{{
		ID: "msg_other", TopicID: "topic-1", AuthorID: "user-b", Kind: message.KindText,
		Content: "theirs", CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}}}
	s, _ := newTestSurface(t, api, &fakeReactionAPI{})

	assert.ErrorIs(t, s.Edit(context.Background(), "msg_other", "hacked"), piazza_errors.ErrNotAuthor)
	assert.ErrorIs(t, s.Delete(context.Background(), "msg_other"), piazza_errors.ErrNotAuthor)
}

func TestSurfaceDeleteSoftDeletes(t *testing.T) {
	api := &fakeMessageAPI{history: []message.Message{{
		ID: "msg_mine", TopicID: "topic-1", AuthorID: "user-a", Kind: message.KindText,
		Content: "mine", CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}}}
	s, _ := newTestSurface(t, api, &fakeReactionAPI{})

	require.NoError(t, s.Delete(context.Background(), "msg_mine"))

	msgs := s.Messages()
	require.Len(t, msgs, 1, "deleted message keeps its slot in the thread")
	assert.True(t, msgs[0].IsDeleted)
	assert.Empty(t, msgs[0].Content)
}

func TestSurfacePaginationStopsAtEnd(t *testing.T) {
	api := &fakeMessageAPI{
		history: []message.Message{{
			ID: "msg_1", TopicID: "topic-1", AuthorID: "user-b", Kind: message.KindText,
			Content: "old", CreatedAt: time.Now(), UpdatedAt: time.Now(),
		}},
		hasMore: true,
	}
	s, _ := newTestSurface(t, api, &fakeReactionAPI{})
	require.True(t, s.HasMore())

	_, err := s.LoadOlder(context.Background())
	require.NoError(t, err)
	assert.False(t, s.HasMore())

	api.mu.Lock()
	before := api.fetchCalls
	api.mu.Unlock()

	_, err = s.LoadOlder(context.Background())
	require.NoError(t, err)

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Equal(t, before, api.fetchCalls, "no request once the server reported the end")
}

func TestSurfaceVoiceSend(t *testing.T) {
	s, _ := newTestSurface(t, &fakeMessageAPI{}, &fakeReactionAPI{})

	m, err := s.SendVoice(context.Background(), []byte{1, 2, 3}, 1500*time.Millisecond, "audio/webm", []float64{0.2, 1})
	require.NoError(t, err)
	assert.Equal(t, message.KindVoice, m.Kind)

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	payload, ok := msgs[0].Payload.(message.VoicePayload)
	require.True(t, ok)
	assert.InDelta(t, 1.5, payload.Duration, 0.001)
}
