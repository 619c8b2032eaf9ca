// Package router implements the supervisor's classification step: one
// completion call that maps the user's prompt onto the closed specialist set,
// optionally answering simple prompts directly.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"strings"

	"github.com/hupe1980/callcentre/core"
	"github.com/hupe1980/callcentre/logging"
	"github.com/hupe1980/callcentre/model"
	"github.com/hupe1980/callcentre/specialist"
)

// Supervisor tags the router's own turns in the shared history.
const Supervisor = "supervisor"

// Decision is the router's output: the selected specialist plus an optional
// direct response used when the router itself can answer (the general case).
type Decision struct {
	Specialist specialist.ID
	Response   string
	Raw        json.RawMessage
}

// Options configure a Router.
type Options struct {
	// Instructions overrides the generated supervisor prompt.
	Instructions string
	// RetryBudget is the number of re-classification attempts after a
	// malformed or out-of-set result before falling back to general. The
	// exact count is not load-bearing; the original used one retry.
	RetryBudget int
	Logger      logging.Logger
}

// Router classifies a user turn into a specialist selection. Classification
// is the single source of truth for tie-breaks: the orchestrator never
// disambiguates on its own.
type Router struct {
	llm          model.Model
	registry     *specialist.Registry
	instructions string
	retryBudget  int
	logger       logging.Logger
}

// New creates a Router over the given model and specialist registry.
func New(llm model.Model, registry *specialist.Registry, optFns ...func(o *Options)) *Router {
	opts := Options{
		RetryBudget: 1,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Instructions == "" {
		opts.Instructions = buildInstructions(registry)
	}
	return &Router{
		llm:          llm,
		registry:     registry,
		instructions: opts.Instructions,
		retryBudget:  opts.RetryBudget,
		logger:       opts.Logger,
	}
}

// Instructions returns the supervisor prompt used for classification calls.
func (r *Router) Instructions() string { return r.instructions }

// Classify issues a structured-output completion call for the session's
// current prompt. Malformed or out-of-set results are retried up to the
// retry budget; after exhaustion the classification is forced to general.
// A completion-service failure is returned as a CompletionError and is not
// retried here.
func (r *Router) Classify(ctx context.Context, sess *core.SessionState) (Decision, error) {
	r.EnsureInstructionTurn(sess.History)

	filtered := collect(sess.History.TurnsWithout(core.RoleSystem))
	schema := classificationSchema(r.registry.IDs())

	var lastErr error
	attempts := r.retryBudget + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		r.logger.Debug("router.classify.start", "attempt", attempt, "prompt", sess.Prompt)

		respCh, errCh := r.llm.Generate(ctx, model.Request{
			Instructions:   r.instructions,
			History:        filtered,
			Prompt:         sess.Prompt,
			ResponseSchema: schema,
		})
		resp, err := model.Consume(ctx, respCh, errCh, nil)
		if err != nil {
			return Decision{}, &core.CompletionError{Stage: "routing", Err: err}
		}
		sess.Usage.Add(resp.Usage)

		decision, err := parseDecision(resp, attempt)
		if err != nil {
			lastErr = err
			r.logger.Warn("router.classify.invalid", "attempt", attempt, "error", err)
			continue
		}

		r.logger.Debug("router.classify.done", "specialist", decision.Specialist, "direct", decision.Response != "")
		return decision, nil
	}

	// Exhausted: force the general path, which always has a textual answer.
	r.logger.Warn("router.classify.fallback", "attempts", attempts, "error", lastErr)
	return Decision{Specialist: specialist.General}, nil
}

// EnsureInstructionTurn records the supervisor's instructions in the shared
// history exactly once per session. The turn is excluded from every
// completion call context by the TurnsWithout filter.
func (r *Router) EnsureInstructionTurn(h *core.History) {
	if h.HasRole(core.RoleSystem) {
		return
	}
	h.Append(core.NewSystemTurn(Supervisor, r.instructions))
}

// parseDecision validates the structured payload against the closed set.
// attempt is carried into the error so retry logs report the real count.
func parseDecision(resp model.Response, attempt int) (Decision, error) {
	raw := resp.Structured
	if raw == nil {
		// Some services return the JSON only as text.
		if json.Valid([]byte(resp.Text)) {
			raw = json.RawMessage(resp.Text)
		} else {
			return Decision{}, &core.ClassificationError{Raw: resp.Text, Attempts: attempt, Err: fmt.Errorf("no structured output")}
		}
	}

	var payload struct {
		Specialist string `json:"specialist"`
		Response   string `json:"response"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Decision{}, &core.ClassificationError{Raw: string(raw), Attempts: attempt, Err: err}
	}

	id, err := specialist.Parse(payload.Specialist)
	if err != nil {
		return Decision{}, &core.ClassificationError{Raw: string(raw), Attempts: attempt, Err: err}
	}

	return Decision{Specialist: id, Response: payload.Response, Raw: raw}, nil
}

// classificationSchema builds the structured-output schema over the closed
// specialist set.
func classificationSchema(ids []specialist.ID) *model.ResponseSchema {
	values := make([]string, len(ids))
	for i, id := range ids {
		values[i] = string(id)
	}
	return &model.ResponseSchema{
		Name:        "routing_decision",
		Description: "Select the specialist best suited to handle the user's prompt",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"specialist": map[string]any{
					"type": "string",
					"enum": values,
				},
				"response": map[string]any{
					"type":        "string",
					"description": "Direct friendly answer, filled only when specialist is general",
				},
			},
			"required":             []string{"specialist", "response"},
			"additionalProperties": false,
		},
	}
}

// buildInstructions renders the supervisor prompt from the registered team.
func buildInstructions(registry *specialist.Registry) string {
	var b strings.Builder
	b.WriteString("You're a call-centre supervisor. You have the following specialists on your team:\n")
	descriptions := registry.Descriptions()
	for _, id := range registry.IDs() {
		if id == specialist.General {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", id, descriptions[id])
	}
	b.WriteString(`
Instructions:
1. Decide which specialist is best suited to handle the user's prompt.
2. If you can't determine a suitable specialist, assume "general" and respond back in a friendly way.`)
	return b.String()
}

func collect(seq iter.Seq[core.Turn]) []core.Turn {
	var turns []core.Turn
	for t := range seq {
		turns = append(turns, t)
	}
	return turns
}
