package specialist

import (
	"context"
	"fmt"

	"github.com/hupe1980/callcentre/core"
	"github.com/hupe1980/callcentre/logging"
	"github.com/hupe1980/callcentre/model"
)

// Options configure a Specialist instance.
type Options struct {
	Logger logging.Logger
}

// Specialist issues completion calls under its own fixed instructions. It
// holds no reference to any other specialist; hand-off is the orchestrator's
// responsibility.
type Specialist struct {
	cfg    Config
	llm    model.Model
	logger logging.Logger
}

// New creates a specialist from its config and a model handle.
func New(cfg Config, llm model.Model, optFns ...func(o *Options)) *Specialist {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Specialist{cfg: cfg, llm: llm, logger: opts.Logger}
}

// ID returns the specialist's identifier.
func (s *Specialist) ID() ID { return s.cfg.ID }

// Description returns the routing / tool description.
func (s *Specialist) Description() string { return s.cfg.Description }

// Instructions returns the specialist's fixed instructions.
func (s *Specialist) Instructions() string { return s.cfg.Instructions }

// Respond issues one completion call using the specialist's instructions,
// the given prompt and an already-filtered history. The call's usage delta is
// merged into the accumulator exactly once. History is not mutated.
func (s *Specialist) Respond(
	ctx context.Context,
	prompt string,
	history []core.Turn,
	usage *core.Usage,
	onDelta func(string),
) (string, error) {
	if err := ensureNoForeignInstructions(s.cfg.ID, history); err != nil {
		return "", err
	}

	s.logger.Debug("specialist.respond.start", "specialist", s.cfg.ID, "history_turns", len(history))

	respCh, errCh := s.llm.Generate(ctx, model.Request{
		Instructions: s.cfg.Instructions,
		History:      history,
		Prompt:       prompt,
		Stream:       onDelta != nil,
	})
	resp, err := model.Consume(ctx, respCh, errCh, onDelta)
	if err != nil {
		s.logger.Error("specialist.respond.error", "specialist", s.cfg.ID, "error", err)
		return "", fmt.Errorf("specialist %s: %w", s.cfg.ID, err)
	}

	usage.Add(resp.Usage)
	s.logger.Debug("specialist.respond.done", "specialist", s.cfg.ID, "requests", resp.Usage.Requests)

	return resp.Text, nil
}

// Handle processes the session's current prompt: it strips foreign system
// instructions from the shared history, calls the completion service, and on
// success appends the user/assistant exchange. An empty reply records
// nothing, so repeated routing to a silent specialist cannot pollute the
// history. The specialist's own instructions are never persisted as a
// history turn.
func (s *Specialist) Handle(ctx context.Context, sess *core.SessionState, onDelta func(string)) (string, error) {
	filtered := filterHistory(sess.History)

	text, err := s.Respond(ctx, sess.Prompt, filtered, sess.Usage, onDelta)
	if err != nil {
		return "", err
	}
	if text == "" {
		s.logger.Warn("specialist.handle.empty", "specialist", s.cfg.ID)
		return "", nil
	}

	sess.History.Append(core.NewUserTurn(sess.Prompt))
	sess.History.Append(core.NewAssistantTurn(string(s.cfg.ID), text))

	return text, nil
}

// Tool exposes the specialist as a named, single-string-argument callable.
// The session's history and usage accumulator are captured at registration
// time; there is no other channel for accounting.
func (s *Specialist) Tool(sess *core.SessionState) model.Tool {
	return model.Tool{
		Name:        fmt.Sprintf("%s_specialist", s.cfg.ID),
		Description: s.cfg.Description,
		Handler: func(ctx context.Context, input string) (string, error) {
			return s.Respond(ctx, input, filterHistory(sess.History), sess.Usage, nil)
		},
	}
}

// filterHistory collects the shared history without system-instruction turns.
func filterHistory(h *core.History) []core.Turn {
	var turns []core.Turn
	for t := range h.TurnsWithout(core.RoleSystem) {
		turns = append(turns, t)
	}
	return turns
}

// ensureNoForeignInstructions rejects a call context that still carries a
// system-instruction turn. The filter makes this impossible by construction;
// a hit is a defect, not a recoverable condition.
func ensureNoForeignInstructions(id ID, turns []core.Turn) error {
	for _, t := range turns {
		if t.Role == core.RoleSystem {
			return &core.HistoryInvariantError{Specialist: string(id), TurnID: t.ID}
		}
	}
	return nil
}
