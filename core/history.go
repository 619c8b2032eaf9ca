package core

import (
	"iter"
	"sync"
)

// History is the ordered, append-only log of turns shared across all
// specialists in one session. Insertion order defines the context order sent
// to the completion service.
//
// Contract:
//   - Append preserves order and never fails
//   - TurnsWithout yields a restartable sequence excluding a role, used to
//     strip foreign system instructions before each specialist call
//   - ReplaceAll atomically substitutes the full sequence when the completion
//     service hands back its authoritative merged view
//
// A session owns its history exclusively; the mutex guards against misuse
// from concurrent callers rather than enabling parallel turns.
type History struct {
	mu    sync.RWMutex
	turns []Turn
}

// NewHistory creates an empty history.
func NewHistory() *History { return &History{} }

// Append adds a turn to the end of the history.
func (h *History) Append(t Turn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, t)
}

// Turns returns a defensive copy of the full turn sequence.
func (h *History) Turns() []Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	turns := make([]Turn, len(h.turns))
	copy(turns, h.turns)
	return turns
}

// TurnsWithout returns a lazy, restartable sequence of turns excluding the
// given role. The sequence iterates over a snapshot taken at call time, so
// ranging over it twice yields the same turns in the same relative order.
func (h *History) TurnsWithout(role Role) iter.Seq[Turn] {
	snapshot := h.Turns()
	return func(yield func(Turn) bool) {
		for _, t := range snapshot {
			if t.Role == role {
				continue
			}
			if !yield(t) {
				return
			}
		}
	}
}

// ReplaceAll atomically substitutes the full turn sequence. The provided
// slice is copied; the update is never partial.
func (h *History) ReplaceAll(turns []Turn) {
	replacement := make([]Turn, len(turns))
	copy(replacement, turns)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = replacement
}

// Len returns the number of turns currently in the history.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}

// Clear removes all turns.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = nil
}

// HasRole reports whether any turn with the given role is present.
func (h *History) HasRole(role Role) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, t := range h.turns {
		if t.Role == role {
			return true
		}
	}
	return false
}
