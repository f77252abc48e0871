package chat

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type typingRecorder struct {
	mu     sync.Mutex
	events []bool
}

func (r *typingRecorder) EmitTyping(started bool) {
	r.mu.Lock()
	r.events = append(r.events, started)
	r.mu.Unlock()
}

func (r *typingRecorder) snapshot() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.events...)
}

func TestBroadcasterDebounce(t *testing.T) {
	rec := &typingRecorder{}
	b := NewTypingBroadcaster(rec, 60*time.Millisecond)
	defer b.Close()

	// Many keystrokes inside one idle period emit a single "started".
	for i := 0; i < 5; i++ {
		b.NotifyTyping()
	}
	assert.Equal(t, []bool{true}, rec.snapshot())

	// Silence past the quiet window emits "stopped" on its own.
	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, []bool{true, false}, rec.snapshot())

	// A new burst starts a fresh period.
	b.NotifyTyping()
	assert.Equal(t, []bool{true, false, true}, rec.snapshot())
}

func TestBroadcasterStopNowOnSend(t *testing.T) {
	rec := &typingRecorder{}
	b := NewTypingBroadcaster(rec, time.Minute)
	defer b.Close()

	b.NotifyTyping()
	b.StopNow()
	assert.Equal(t, []bool{true, false}, rec.snapshot())

	// StopNow while not typing emits nothing.
	b.StopNow()
	assert.Equal(t, []bool{true, false}, rec.snapshot())
}

func TestTrackerExpiry(t *testing.T) {
	tr := NewTypingTracker(2 * time.Second)
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tr.Apply(true, TypingSignal{TopicID: "t1", UserID: "a", UserName: "Anna", At: start})

	assert.Equal(t, "Anna is typing", tr.Label(start.Add(500*time.Millisecond), "self"))
	assert.Equal(t, "", tr.Label(start.Add(2100*time.Millisecond), "self"), "signal gone at t=2.1s")
}

func TestTrackerLateStopDoesNotClearRestart(t *testing.T) {
	tr := NewTypingTracker(5 * time.Second)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tr.Apply(true, TypingSignal{UserID: "a", UserName: "Anna", At: base})
	// The user restarted typing...
	tr.Apply(true, TypingSignal{UserID: "a", UserName: "Anna", At: base.Add(2 * time.Second)})
	// ...then the stop from the first burst arrives late.
	tr.Apply(false, TypingSignal{UserID: "a", UserName: "Anna", At: base.Add(1 * time.Second)})

	active := tr.Active(base.Add(3 * time.Second))
	require.Len(t, active, 1, "a stale stop must not clear a fresher start")
}

func TestTrackerLabels(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sig := func(id, name string, offset time.Duration) TypingSignal {
		return TypingSignal{UserID: id, UserName: name, At: base.Add(offset)}
	}

	tests := []struct {
		name    string
		signals []TypingSignal
		want    string
	}{
		{"nobody", nil, ""},
		{"one user", []TypingSignal{sig("a", "Anna", 0)}, "Anna is typing"},
		{"two users", []TypingSignal{sig("a", "Anna", 0), sig("b", "Bruno", time.Millisecond)}, "Anna and Bruno are typing"},
		{"three users", []TypingSignal{sig("a", "Anna", 0), sig("b", "Bruno", time.Millisecond), sig("c", "Carla", 2 * time.Millisecond)}, "3 people are typing"},
		{"self excluded", []TypingSignal{sig("self", "Me", 0), sig("a", "Anna", time.Millisecond)}, "Anna is typing"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tr := NewTypingTracker(time.Minute)
			for _, s := range tc.signals {
				tr.Apply(true, s)
			}
			assert.Equal(t, tc.want, tr.Label(base.Add(time.Second), "self"))
		})
	}
}
