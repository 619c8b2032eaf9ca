package core

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the kind of a conversation turn.
type Role string

const (
	// RoleSystem marks fixed instructions recorded for a handler.
	RoleSystem Role = "system"
	// RoleUser marks input entered by the user.
	RoleUser Role = "user"
	// RoleAssistant marks generated text returned to the user.
	RoleAssistant Role = "assistant"
	// RoleTool marks the result of a tool invocation.
	RoleTool Role = "tool"
)

// Turn is one exchange unit in the conversation history. Turns are treated as
// immutable once appended.
type Turn struct {
	ID         string    `json:"id"`
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	Specialist string    `json:"specialist,omitempty"` // handler the turn is attributable to
	ToolName   string    `json:"tool_name,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewTurn creates a turn with a fresh ID and UTC timestamp.
func NewTurn(role Role, content string) Turn {
	return Turn{
		ID:        NewID(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

// NewUserTurn creates a user-authored text turn.
func NewUserTurn(content string) Turn {
	return NewTurn(RoleUser, content)
}

// NewAssistantTurn creates an assistant turn attributed to the given specialist.
func NewAssistantTurn(specialist, content string) Turn {
	t := NewTurn(RoleAssistant, content)
	t.Specialist = specialist
	return t
}

// NewSystemTurn records the fixed instructions of the named handler. System
// turns are never forwarded to a completion call for a different handler; see
// History.TurnsWithout.
func NewSystemTurn(specialist, content string) Turn {
	t := NewTurn(RoleSystem, content)
	t.Specialist = specialist
	return t
}

// NewToolTurn records the result of a named tool invocation.
func NewToolTurn(toolName, content string) Turn {
	t := NewTurn(RoleTool, content)
	t.ToolName = toolName
	return t
}

// NewID generates a new unique identifier for turns and sessions.
func NewID() string { return uuid.NewString() }
