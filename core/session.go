package core

// SessionState is the per-conversation aggregate mutated in place by the
// orchestrator and specialist handlers during a turn. It is owned by exactly
// one session; turns are processed start-to-finish, one at a time.
type SessionState struct {
	ID               string
	Prompt           string // current user input
	History          *History
	Usage            *Usage
	ActiveSpecialist string
	FinalResponse    string // set only when a turn reaches its terminal state
}

// NewSessionState creates a fresh session aggregate. An empty id is replaced
// with a generated one.
func NewSessionState(id string) *SessionState {
	if id == "" {
		id = NewID()
	}
	return &SessionState{
		ID:      id,
		History: NewHistory(),
		Usage:   NewUsage(),
	}
}

// BeginTurn installs the new prompt and clears the previous turn's terminal
// response and active specialist. History and usage carry over.
func (s *SessionState) BeginTurn(prompt string) {
	s.Prompt = prompt
	s.FinalResponse = ""
	s.ActiveSpecialist = ""
}

// Reset discards all conversation state: history becomes empty, usage
// counters return to zero.
func (s *SessionState) Reset() {
	s.Prompt = ""
	s.FinalResponse = ""
	s.ActiveSpecialist = ""
	s.History.Clear()
	s.Usage.Reset()
}
