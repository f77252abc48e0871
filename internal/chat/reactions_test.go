package chat

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"piazza-chat/internal/domain/message"
)

func TestToggleSymmetry(t *testing.T) {
	a := NewAggregator()

	a.Toggle("m1", "👍", "user-a")
	groups, _ := a.Groups("m1")
	require.Len(t, groups, 1)

	res := a.Toggle("m1", "👍", "user-a")
	assert.True(t, res.Removed)
	groups, _ = a.Groups("m1")
	assert.Empty(t, groups, "toggle round trip is a no-op")
}

func TestToggleReplacesPreviousEmoji(t *testing.T) {
	a := NewAggregator()

	a.Toggle("m1", "👍", "user-a")
	res := a.Toggle("m1", "❤️", "user-a")

	assert.Equal(t, "👍", res.Previous)
	emoji, ok := a.UserEmoji("m1", "user-a")
	require.True(t, ok)
	assert.Equal(t, "❤️", emoji)

	groups, _ := a.Groups("m1")
	require.Len(t, groups, 1, "the old membership is gone")
}

func TestSingleReactionInvariant(t *testing.T) {
	a := NewAggregator()
	emojis := []string{"👍", "❤️", "😂", "👍", "🎉", "❤️"}

	for _, e := range emojis {
		a.Toggle("m1", e, "user-a")
	}

	// However the sequence went, user-a appears under at most one emoji.
	count := 0
	groups, _ := a.Groups("m1")
	for _, g := range groups {
		for _, id := range g.UserIDs {
			if id == "user-a" {
				count++
			}
		}
	}
	assert.LessOrEqual(t, count, 1)
}

func TestApplyAddIsIdempotentAndReplaces(t *testing.T) {
	a := NewAggregator()
	r := message.Reaction{MessageID: "m1", Emoji: "👍", UserID: "user-b"}

	a.ApplyAdd(r)
	a.ApplyAdd(r) // duplicate realtime delivery
	groups, _ := a.Groups("m1")
	require.Len(t, groups, 1)
	assert.Equal(t, 1, groups[0].Count())

	// An add for a different emoji moves the membership.
	a.ApplyAdd(message.Reaction{MessageID: "m1", Emoji: "❤️", UserID: "user-b"})
	emoji, _ := a.UserEmoji("m1", "user-b")
	assert.Equal(t, "❤️", emoji)
}

func TestApplyRemoveAbsentIsNoop(t *testing.T) {
	a := NewAggregator()
	a.ApplyRemove(message.Reaction{MessageID: "m1", Emoji: "👍", UserID: "ghost"})
	groups, _ := a.Groups("m1")
	assert.Empty(t, groups)
}

func TestRollbackRestoresPreToggleState(t *testing.T) {
	a := NewAggregator()
	a.Toggle("m1", "👍", "user-a")

	res := a.Toggle("m1", "❤️", "user-a")
	a.Rollback("m1", "user-a", res.Previous)

	emoji, ok := a.UserEmoji("m1", "user-a")
	require.True(t, ok)
	assert.Equal(t, "👍", emoji)

	// Rolling back a toggle that started from nothing clears it.
	res = a.Toggle("m2", "🎉", "user-a")
	a.Rollback("m2", "user-a", res.Previous)
	_, ok = a.UserEmoji("m2", "user-a")
	assert.False(t, ok)
}

func TestGroupsSortingAndCollapse(t *testing.T) {
	a := NewAggregator()

	// 3 users on 😂, 2 on 👍, 1 each on several more.
	for i := 0; i < 3; i++ {
		a.ApplyAdd(message.Reaction{MessageID: "m1", Emoji: "😂", UserID: fmt.Sprintf("laugh-%d", i)})
	}
	for i := 0; i < 2; i++ {
		a.ApplyAdd(message.Reaction{MessageID: "m1", Emoji: "👍", UserID: fmt.Sprintf("thumb-%d", i)})
	}
	singles := []string{"🎉", "🔥", "💯", "😮", "😢", "🙏"}
	for i, e := range singles {
		a.ApplyAdd(message.Reaction{MessageID: "m1", Emoji: e, UserID: fmt.Sprintf("single-%d", i)})
	}

	groups, collapsed := a.Groups("m1")
	require.Len(t, groups, MaxReactionGroups)
	assert.Equal(t, "😂", groups[0].Emoji)
	assert.Equal(t, "👍", groups[1].Emoji)
	// Singles tie on count; codepoint order decides, and the remainder
	// collapses into a total.
	assert.Equal(t, 2, collapsed)
	for i := 3; i < len(groups); i++ {
		assert.Less(t, groups[i-1].Emoji, groups[i].Emoji)
	}
}

func TestLoadSeedsFromHistory(t *testing.T) {
	a := NewAggregator()
	a.Load("m1", []message.Reaction{
		{MessageID: "m1", Emoji: "👍", UserID: "user-a"},
		{MessageID: "m1", Emoji: "👍", UserID: "user-b"},
		{MessageID: "m1", Emoji: "❤️", UserID: "user-a"}, // later row wins
	})

	emoji, _ := a.UserEmoji("m1", "user-a")
	assert.Equal(t, "❤️", emoji)
	groups, _ := a.Groups("m1")
	require.Len(t, groups, 2)
}
