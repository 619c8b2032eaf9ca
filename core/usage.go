package core

import "sync"

// Delta captures the cost of a single completion-service call.
type Delta struct {
	Requests         int `json:"requests"`
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add returns the element-wise sum of two deltas.
func (d Delta) Add(other Delta) Delta {
	return Delta{
		Requests:         d.Requests + other.Requests,
		PromptTokens:     d.PromptTokens + other.PromptTokens,
		CompletionTokens: d.CompletionTokens + other.CompletionTokens,
		TotalTokens:      d.TotalTokens + other.TotalTokens,
	}
}

// Usage holds monotonically non-decreasing counters for completion-service
// requests and tokens consumed by a session. Every completion call within a
// turn (router classification included) merges its delta exactly once, so a
// turn's displayed usage reflects all underlying calls it triggered.
type Usage struct {
	mu     sync.Mutex
	totals Delta
}

// NewUsage creates a zeroed accumulator.
func NewUsage() *Usage { return &Usage{} }

// Add merges a per-call delta into the running totals.
func (u *Usage) Add(d Delta) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.totals = u.totals.Add(d)
}

// Totals returns a snapshot of the accumulated counters.
func (u *Usage) Totals() Delta {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.totals
}

// Requests returns the number of completion-service calls accumulated so far.
func (u *Usage) Requests() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.totals.Requests
}

// Reset zeroes all counters. Only an explicit session reset calls this.
func (u *Usage) Reset() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.totals = Delta{}
}
