package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUsageAddAccumulates(t *testing.T) {
	u := NewUsage()
	u.Add(Delta{Requests: 1, PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15})
	u.Add(Delta{Requests: 2, PromptTokens: 4, CompletionTokens: 6, TotalTokens: 10})

	totals := u.Totals()
	assert.Equal(t, 3, totals.Requests)
	assert.Equal(t, 14, totals.PromptTokens)
	assert.Equal(t, 11, totals.CompletionTokens)
	assert.Equal(t, 25, totals.TotalTokens)
	assert.Equal(t, 3, u.Requests())
}

func TestUsageReset(t *testing.T) {
	u := NewUsage()
	u.Add(Delta{Requests: 5, TotalTokens: 100})
	u.Reset()
	assert.Equal(t, Delta{}, u.Totals())
}

func TestDeltaAdd(t *testing.T) {
	sum := Delta{Requests: 1, TotalTokens: 10}.Add(Delta{Requests: 1, PromptTokens: 3, TotalTokens: 8})
	assert.Equal(t, Delta{Requests: 2, PromptTokens: 3, TotalTokens: 18}, sum)
}
