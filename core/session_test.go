package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSessionStateGeneratesID(t *testing.T) {
	s := NewSessionState("")
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "fixed", NewSessionState("fixed").ID)
}

func TestSessionBeginTurnClearsTerminalFields(t *testing.T) {
	s := NewSessionState("sess-1")
	s.FinalResponse = "previous answer"
	s.ActiveSpecialist = "billing"

	s.BeginTurn("new question")

	assert.Equal(t, "new question", s.Prompt)
	assert.Empty(t, s.FinalResponse)
	assert.Empty(t, s.ActiveSpecialist)
}

func TestSessionResetClearsHistoryAndUsage(t *testing.T) {
	s := NewSessionState("sess-1")
	for range 3 {
		s.History.Append(NewUserTurn("question"))
		s.History.Append(NewAssistantTurn("general", "answer"))
		s.Usage.Add(Delta{Requests: 1, TotalTokens: 10})
	}
	s.FinalResponse = "answer"

	s.Reset()

	assert.Equal(t, 0, s.History.Len())
	assert.Equal(t, Delta{}, s.Usage.Totals())
	assert.Empty(t, s.FinalResponse)
	assert.Empty(t, s.Prompt)
}
