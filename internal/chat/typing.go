package chat

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// TypingSignal is one ephemeral "is typing" claim. Signals are never
// persisted; consumers drop them once stale.
type TypingSignal struct {
	TopicID  string
	UserID   string
	UserName string
	At       time.Time
}

// TypingEmitter pushes started/stopped signals to the transport.
type TypingEmitter interface {
	EmitTyping(started bool)
}

// TypingEmitterFunc adapts a function to TypingEmitter.
type TypingEmitterFunc func(started bool)

func (f TypingEmitterFunc) EmitTyping(started bool) { f(started) }

// TypingBroadcaster debounces keystroke notifications into at most one
// "started" per idle period and an automatic "stopped" after the quiet
// window, or immediately on send/cancel.
type TypingBroadcaster struct {
	mu      sync.Mutex
	emitter TypingEmitter
	quiet   time.Duration
	timer   *time.Timer
	typing  bool
	closed  bool
}

func NewTypingBroadcaster(emitter TypingEmitter, quiet time.Duration) *TypingBroadcaster {
	if quiet <= 0 {
		quiet = 2 * time.Second
	}
	return &TypingBroadcaster{emitter: emitter, quiet: quiet}
}

// NotifyTyping is called on every content change.
func (b *TypingBroadcaster) NotifyTyping() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	if !b.typing {
		b.typing = true
		b.emitter.EmitTyping(true)
	}
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.quiet, b.quietExpired)
}

// StopNow emits "stopped" immediately; called on send or cancel.
func (b *TypingBroadcaster) StopNow() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopLocked()
}

// Close stops the broadcaster for good, emitting a final "stopped" if one
// is pending.
func (b *TypingBroadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopLocked()
	b.closed = true
}

func (b *TypingBroadcaster) quietExpired() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopLocked()
}

func (b *TypingBroadcaster) stopLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	if b.typing {
		b.typing = false
		if !b.closed {
			b.emitter.EmitTyping(false)
		}
	}
}

// TypingTracker is the consumer side: the set of active typing signals for
// one topic. Signals are keyed by user and compared by freshness, so a
// late-arriving "stopped" never clears a user who already restarted.
type TypingTracker struct {
	mu     sync.RWMutex
	ttl    time.Duration
	byUser map[string]TypingSignal
}

func NewTypingTracker(ttl time.Duration) *TypingTracker {
	if ttl <= 0 {
		ttl = 3 * time.Second
	}
	return &TypingTracker{ttl: ttl, byUser: make(map[string]TypingSignal)}
}

// Apply merges one started/stopped signal.
func (t *TypingTracker) Apply(started bool, sig TypingSignal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	existing, ok := t.byUser[sig.UserID]
	if ok && sig.At.Before(existing.At) {
		return // stale, a fresher signal already applied
	}
	if started {
		t.byUser[sig.UserID] = sig
	} else {
		delete(t.byUser, sig.UserID)
	}
}

// Active returns the non-expired signals, oldest first.
func (t *TypingTracker) Active(now time.Time) []TypingSignal {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TypingSignal, 0, len(t.byUser))
	for id, sig := range t.byUser {
		if now.Sub(sig.At) > t.ttl {
			delete(t.byUser, id)
			continue
		}
		out = append(out, sig)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].At.Equal(out[j].At) {
			return out[i].UserID < out[j].UserID
		}
		return out[i].At.Before(out[j].At)
	})
	return out
}

// Label composes the human-readable indicator, excluding the viewer's own
// signal. Empty string means nobody is typing.
func (t *TypingTracker) Label(now time.Time, selfID string) string {
	active := t.Active(now)
	names := make([]string, 0, len(active))
	for _, sig := range active {
		if sig.UserID == selfID {
			continue
		}
		names = append(names, sig.UserName)
	}
	switch len(names) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("%s is typing", names[0])
	case 2:
		return fmt.Sprintf("%s and %s are typing", names[0], names[1])
	default:
		return fmt.Sprintf("%d people are typing", len(names))
	}
}
