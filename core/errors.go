package core

import "fmt"

// ClassificationError reports router output that was absent, malformed or
// outside the known specialist set. The router recovers from it locally by
// retrying and finally falling back to the general specialist.
type ClassificationError struct {
	Raw      string // raw structured payload that failed to classify
	Attempts int
	Err      error
}

func (e *ClassificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("classification failed after %d attempt(s): %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("classification failed after %d attempt(s): unknown specialist in %q", e.Attempts, e.Raw)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// CompletionError wraps a completion-service failure raised during a named
// stage of a turn (routing, dispatch). The orchestrator does not retry it;
// the turn fails and the session accepts the next prompt.
type CompletionError struct {
	Stage string
	Err   error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("completion service failed during %s: %v", e.Stage, e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }

// RoutingLoopError reports that the hop bound was reached without reaching a
// terminal state. The orchestrator recovers by forcing a fallback response.
type RoutingLoopError struct {
	Hops int
}

func (e *RoutingLoopError) Error() string {
	return fmt.Sprintf("routing loop exceeded %d hop(s) without terminal response", e.Hops)
}

// HistoryInvariantError reports a foreign system-instruction turn that leaked
// into a handler's call context. This is a defect: the TurnsWithout filter
// exists to make it impossible by construction.
type HistoryInvariantError struct {
	Specialist string
	TurnID     string
}

func (e *HistoryInvariantError) Error() string {
	return fmt.Sprintf("system-instruction turn %s leaked into %s call context", e.TurnID, e.Specialist)
}
