package voice

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	piazza_errors "piazza-chat/pkg/errors"
)

type fakeStream struct {
	chunks chan Chunk
	once   sync.Once
	closed bool
	mu     sync.Mutex
}

func newFakeStream() *fakeStream {
	return &fakeStream{chunks: make(chan Chunk, 64)}
}

func (s *fakeStream) Chunks() <-chan Chunk { return s.chunks }
func (s *fakeStream) MimeType() string     { return "audio/webm;codecs=opus" }

func (s *fakeStream) Close() error {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.chunks)
	})
	return nil
}

func (s *fakeStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeMic struct {
	mu      sync.Mutex
	err     error
	streams []*fakeStream
}

func (m *fakeMic) Acquire(context.Context) (Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	s := newFakeStream()
	m.streams = append(m.streams, s)
	return s, nil
}

func (m *fakeMic) last() *fakeStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streams[len(m.streams)-1]
}

// fixedClock lets tests control elapsed duration exactly.
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestRecorder(mic *fakeMic) (*Recorder, *fixedClock) {
	r := NewRecorder(mic, Config{
		MinDuration:     500 * time.Millisecond,
		LockThreshold:   80,
		CancelThreshold: 120,
	})
	clock := &fixedClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	r.now = clock.Now
	return r, clock
}

func TestRecorderStartAndRelease(t *testing.T) {
	mic := &fakeMic{}
	r, clock := newTestRecorder(mic)

	require.NoError(t, r.Start(context.Background()))
	assert.Equal(t, StateRecording, r.State())

	stream := mic.last()
	stream.chunks <- Chunk{Data: []byte{1, 2}, Level: 0.4}
	stream.chunks <- Chunk{Data: []byte{3}, Level: 0.8}

	clock.Advance(800 * time.Millisecond)
	res, err := r.Release()
	require.NoError(t, err)

	assert.Equal(t, []byte{1, 2, 3}, res.Data)
	assert.Equal(t, 800*time.Millisecond, res.Duration)
	assert.Equal(t, "audio/webm;codecs=opus", res.MimeType)
	assert.NotEmpty(t, res.Waveform)
	assert.Equal(t, StateIdle, r.State())
	assert.True(t, stream.isClosed(), "microphone released after sending")
}

func TestRecorderMinimumDuration(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		sends   bool
	}{
		{"below threshold cancels", 300 * time.Millisecond, false},
		{"above threshold sends", 800 * time.Millisecond, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mic := &fakeMic{}
			r, clock := newTestRecorder(mic)
			require.NoError(t, r.Start(context.Background()))

			clock.Advance(tc.elapsed)
			_, err := r.Release()
			if tc.sends {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, piazza_errors.ErrTooShort)
			}
			assert.Equal(t, StateIdle, r.State())
			assert.True(t, mic.last().isClosed(), "microphone released on every exit path")
		})
	}
}

func TestRecorderLockGesture(t *testing.T) {
	mic := &fakeMic{}
	r, clock := newTestRecorder(mic)
	require.NoError(t, r.Start(context.Background()))

	// Swipe up past the lock threshold.
	r.MoveDelta(0, -50)
	assert.Equal(t, StateRecording, r.State())
	r.MoveDelta(0, -40)
	assert.Equal(t, StateLocked, r.State())

	// Once locked, a leftward swipe no longer cancels.
	r.MoveDelta(-500, 0)
	assert.Equal(t, StateLocked, r.State())

	clock.Advance(2 * time.Second)
	_, err := r.Release()
	assert.NoError(t, err)
}

func TestRecorderCancelGesture(t *testing.T) {
	mic := &fakeMic{}
	r, _ := newTestRecorder(mic)
	require.NoError(t, r.Start(context.Background()))

	r.MoveDelta(-130, 0)
	assert.Equal(t, StateIdle, r.State(), "swipe-left discards and returns to idle")
	assert.True(t, mic.last().isClosed())

	// Gesture events after cancellation are ignored.
	r.MoveDelta(-10, 0)
	_, err := r.Release()
	assert.ErrorIs(t, err, piazza_errors.ErrBadTransition)
}

func TestRecorderTrashWhileLocked(t *testing.T) {
	mic := &fakeMic{}
	r, _ := newTestRecorder(mic)
	require.NoError(t, r.Start(context.Background()))
	r.MoveDelta(0, -100)
	require.Equal(t, StateLocked, r.State())

	r.Cancel()
	assert.Equal(t, StateIdle, r.State())
	assert.True(t, mic.last().isClosed())
}

func TestRecorderMaxDurationCapsRelease(t *testing.T) {
	mic := &fakeMic{}
	r, clock := newTestRecorder(mic)
	r.cfg.MaxDuration = time.Second

	require.NoError(t, r.Start(context.Background()))
	stream := mic.last()
	stream.chunks <- Chunk{Data: []byte{1, 2}, Level: 0.5}

	// Capture runs out while the gesture is still held.
	clock.Advance(time.Second)
	r.autoStop()
	assert.True(t, stream.isClosed(), "capture stops at the limit")

	// A late release reports the captured length, not the hold time.
	clock.Advance(1500 * time.Millisecond)
	assert.Equal(t, time.Second, r.Elapsed())

	res, err := r.Release()
	require.NoError(t, err)
	assert.Equal(t, time.Second, res.Duration)
	assert.Equal(t, []byte{1, 2}, res.Data)
	assert.Equal(t, StateIdle, r.State())
}

func TestRecorderPermissionDenied(t *testing.T) {
	mic := &fakeMic{err: piazza_errors.ErrMicDenied}
	r, _ := newTestRecorder(mic)

	err := r.Start(context.Background())
	assert.ErrorIs(t, err, piazza_errors.ErrMicDenied)
	assert.Equal(t, StateIdle, r.State(), "denial leaves nothing acquired")
}

func TestRecorderDoubleStart(t *testing.T) {
	mic := &fakeMic{}
	r, _ := newTestRecorder(mic)
	require.NoError(t, r.Start(context.Background()))

	assert.ErrorIs(t, r.Start(context.Background()), piazza_errors.ErrBadTransition)
	r.Cancel()
}

func TestDownsample(t *testing.T) {
	samples := []float64{0.1, 0.1, 0.5, 0.5, 1.0, 1.0, 0.2, 0.2}

	wf := Downsample(samples, 4)
	require.Len(t, wf, 4)
	assert.Equal(t, 1.0, wf[2], "peak bucket normalizes to 1")
	assert.InDelta(t, 0.1, wf[0], 0.001)

	assert.Nil(t, Downsample(nil, 4))
	assert.Len(t, Downsample([]float64{0.3}, 8), 1, "never more buckets than samples")
}
