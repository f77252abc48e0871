package chat

import (
	"sort"
	"sync"

	"piazza-chat/internal/domain/message"
)

// MaxReactionGroups bounds how many distinct emoji groups render per
// message; the remainder collapses into a total count.
const MaxReactionGroups = 6

// Aggregator maintains per-message emoji membership with the
// single-reaction-per-user invariant: selecting a new emoji replaces the
// old one, selecting the same emoji again removes it. This replace
// behavior is a product decision, not a bug.
type Aggregator struct {
	mu sync.RWMutex
	// messageID -> emoji -> userID set
	byMessage map[string]map[string]map[string]struct{}
}

func NewAggregator() *Aggregator {
	return &Aggregator{byMessage: make(map[string]map[string]map[string]struct{})}
}

// ToggleResult captures the pre-toggle state so a rejected server toggle
// can be rolled back.
type ToggleResult struct {
	// Previous is the emoji the user held before the toggle, "" for none.
	Previous string
	// Removed is true when the toggle was a toggle-off (no reaction left).
	Removed bool
}

// Toggle applies the local half of a reaction toggle. Remove-from-old and
// add-to-new happen under one lock: no observer sees the user with zero or
// two reactions mid-transition.
func (a *Aggregator) Toggle(messageID, emoji, userID string) ToggleResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	prev, _ := a.userEmojiLocked(messageID, userID)
	if prev != "" {
		a.removeLocked(messageID, prev, userID)
	}
	if prev == emoji {
		return ToggleResult{Previous: prev, Removed: true}
	}
	a.addLocked(messageID, emoji, userID)
	return ToggleResult{Previous: prev}
}

// Rollback restores a user's membership to its pre-toggle value after the
// server rejected the toggle.
func (a *Aggregator) Rollback(messageID, userID, previous string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if cur, ok := a.userEmojiLocked(messageID, userID); ok {
		a.removeLocked(messageID, cur, userID)
	}
	if previous != "" {
		a.addLocked(messageID, previous, userID)
	}
}

// ApplyAdd merges a realtime reaction-add from any participant. The same
// remove-then-add rule keeps the invariant against out-of-order delivery,
// and re-applying a duplicate delivery is a no-op.
func (a *Aggregator) ApplyAdd(r message.Reaction) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if prev, ok := a.userEmojiLocked(r.MessageID, r.UserID); ok && prev != r.Emoji {
		a.removeLocked(r.MessageID, prev, r.UserID)
	}
	a.addLocked(r.MessageID, r.Emoji, r.UserID)
}

// ApplyRemove merges a realtime reaction-remove. Removing an absent
// membership is a no-op.
func (a *Aggregator) ApplyRemove(r message.Reaction) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.removeLocked(r.MessageID, r.Emoji, r.UserID)
}

// Load seeds a message's reactions from fetched history.
func (a *Aggregator) Load(messageID string, reactions []message.Reaction) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.byMessage, messageID)
	for _, r := range reactions {
		if prev, ok := a.userEmojiLocked(messageID, r.UserID); ok {
			a.removeLocked(messageID, prev, r.UserID)
		}
		a.addLocked(messageID, r.Emoji, r.UserID)
	}
}

// UserEmoji returns the emoji the user currently holds on a message.
func (a *Aggregator) UserEmoji(messageID, userID string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.userEmojiLocked(messageID, userID)
}

// Groups returns display groups sorted by member count descending, emoji
// codepoint order as tie-break, capped at MaxReactionGroups. The second
// return is the member total collapsed behind the cap.
func (a *Aggregator) Groups(messageID string) ([]message.ReactionGroup, int) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	emojis := a.byMessage[messageID]
	groups := make([]message.ReactionGroup, 0, len(emojis))
	for emoji, users := range emojis {
		ids := make([]string, 0, len(users))
		for id := range users {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		groups = append(groups, message.ReactionGroup{Emoji: emoji, UserIDs: ids})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Count() != groups[j].Count() {
			return groups[i].Count() > groups[j].Count()
		}
		return groups[i].Emoji < groups[j].Emoji
	})

	if len(groups) <= MaxReactionGroups {
		return groups, 0
	}
	collapsed := 0
	for _, g := range groups[MaxReactionGroups:] {
		collapsed += g.Count()
	}
	return groups[:MaxReactionGroups], collapsed
}

// Forget drops all state for a message (deleted messages keep no
// reactions).
func (a *Aggregator) Forget(messageID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.byMessage, messageID)
}

func (a *Aggregator) userEmojiLocked(messageID, userID string) (string, bool) {
	for emoji, users := range a.byMessage[messageID] {
		if _, ok := users[userID]; ok {
			return emoji, true
		}
	}
	return "", false
}

func (a *Aggregator) addLocked(messageID, emoji, userID string) {
	emojis, ok := a.byMessage[messageID]
	if !ok {
		emojis = make(map[string]map[string]struct{})
		a.byMessage[messageID] = emojis
	}
	users, ok := emojis[emoji]
	if !ok {
		users = make(map[string]struct{})
		emojis[emoji] = users
	}
	users[userID] = struct{}{}
}

func (a *Aggregator) removeLocked(messageID, emoji, userID string) {
	emojis, ok := a.byMessage[messageID]
	if !ok {
		return
	}
	users, ok := emojis[emoji]
	if !ok {
		return
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(emojis, emoji)
	}
	if len(emojis) == 0 {
		delete(a.byMessage, messageID)
	}
}
