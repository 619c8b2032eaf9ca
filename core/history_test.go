package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryAppendPreservesOrder(t *testing.T) {
	h := NewHistory()
	h.Append(NewUserTurn("first"))
	h.Append(NewAssistantTurn("billing", "second"))
	h.Append(NewUserTurn("third"))

	turns := h.Turns()
	require.Len(t, turns, 3)
	assert.Equal(t, "first", turns[0].Content)
	assert.Equal(t, "second", turns[1].Content)
	assert.Equal(t, "third", turns[2].Content)
}

func TestHistoryTurnsWithoutFiltersRole(t *testing.T) {
	h := NewHistory()
	h.Append(NewSystemTurn("supervisor", "routing instructions"))
	h.Append(NewUserTurn("hello"))
	h.Append(NewAssistantTurn("general", "hi"))
	h.Append(NewSystemTurn("billing", "billing instructions"))
	h.Append(NewUserTurn("my bill is wrong"))

	var contents []string
	for turn := range h.TurnsWithout(RoleSystem) {
		assert.NotEqual(t, RoleSystem, turn.Role)
		contents = append(contents, turn.Content)
	}
	assert.Equal(t, []string{"hello", "hi", "my bill is wrong"}, contents)
}

func TestHistoryTurnsWithoutIsRestartable(t *testing.T) {
	h := NewHistory()
	h.Append(NewSystemTurn("supervisor", "instructions"))
	h.Append(NewUserTurn("hello"))
	h.Append(NewAssistantTurn("general", "hi"))

	seq := h.TurnsWithout(RoleSystem)

	first := make([]Turn, 0, 2)
	for turn := range seq {
		first = append(first, turn)
	}
	second := make([]Turn, 0, 2)
	for turn := range seq {
		second = append(second, turn)
	}

	assert.Equal(t, first, second, "ranging twice must yield the same subsequence")
	assert.Len(t, first, 2)
}

func TestHistoryTurnsWithoutEarlyBreak(t *testing.T) {
	h := NewHistory()
	h.Append(NewUserTurn("one"))
	h.Append(NewUserTurn("two"))

	count := 0
	for range h.TurnsWithout(RoleSystem) {
		count++
		break
	}
	assert.Equal(t, 1, count)
}

func TestHistoryReplaceAllIsAtomicCopy(t *testing.T) {
	h := NewHistory()
	h.Append(NewUserTurn("stale"))

	replacement := []Turn{NewUserTurn("fresh"), NewAssistantTurn("billing", "answer")}
	h.ReplaceAll(replacement)

	// Mutating the caller's slice must not leak into the history.
	replacement[0].Content = "mutated"

	turns := h.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, "fresh", turns[0].Content)
	assert.Equal(t, "answer", turns[1].Content)
}

func TestHistoryTurnsReturnsDefensiveCopy(t *testing.T) {
	h := NewHistory()
	h.Append(NewUserTurn("original"))

	turns := h.Turns()
	turns[0].Content = "mutated"

	assert.Equal(t, "original", h.Turns()[0].Content)
}

func TestHistoryClearAndHasRole(t *testing.T) {
	h := NewHistory()
	h.Append(NewSystemTurn("supervisor", "instructions"))
	assert.True(t, h.HasRole(RoleSystem))
	assert.False(t, h.HasRole(RoleTool))

	h.Clear()
	assert.Equal(t, 0, h.Len())
	assert.False(t, h.HasRole(RoleSystem))
}
