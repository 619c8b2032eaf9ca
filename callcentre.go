// Package callcentre provides a high-level façade over the routing
// orchestrator for building supervised multi-specialist conversations. Most
// applications interact with this package by:
//  1. Creating a CallCentre via New() with a model implementation
//  2. Asking questions synchronously (Ask) or with streaming (AskStream)
//  3. Resetting the session when the caller wants a clean slate
//
// The façade delegates the hand-off state machine to orchestrator while
// keeping setup ergonomics concise. All defaults are safe for local
// development and testing; production deployments typically supply a
// structured logger and tuned retry/hop budgets.
package callcentre

import (
	"context"

	"github.com/hupe1980/callcentre/core"
	"github.com/hupe1980/callcentre/logging"
	"github.com/hupe1980/callcentre/model"
	"github.com/hupe1980/callcentre/orchestrator"
	"github.com/hupe1980/callcentre/specialist"
)

// Options configures the CallCentre instance.
type Options struct {
	// Shape selects the hand-off strategy (graph hops or specialists as
	// tools). A session applies one shape consistently.
	Shape orchestrator.Shape

	// MaxHops bounds router<->specialist hops per turn.
	MaxHops int

	// RetryBudget is the router's re-classification allowance before it
	// falls back to the general specialist.
	RetryBudget int

	// Specialists overrides the built-in team.
	Specialists []specialist.Config

	// SessionID seeds the session aggregate; generated when empty.
	SessionID string

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// CallCentre is the high-level façade aggregating one session's orchestrator.
type CallCentre struct {
	orch *orchestrator.Orchestrator
}

// New creates a CallCentre instance with optional overrides.
func New(llm model.Model, optFns ...func(o *Options)) (*CallCentre, error) {
	opts := Options{
		Shape:       orchestrator.ShapeGraphHop,
		MaxHops:     2,
		RetryBudget: 1,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	orch, err := orchestrator.New(llm, func(o *orchestrator.Options) {
		o.Shape = opts.Shape
		o.MaxHops = opts.MaxHops
		o.RetryBudget = opts.RetryBudget
		o.Specialists = opts.Specialists
		o.SessionID = opts.SessionID
		o.Logger = opts.Logger
	})
	if err != nil {
		return nil, err
	}

	return &CallCentre{orch: orch}, nil
}

// Ask processes one user turn and returns its terminal result.
func (c *CallCentre) Ask(ctx context.Context, prompt string) (*orchestrator.Result, error) {
	return c.orch.Ask(ctx, prompt)
}

// AskStream processes one user turn, forwarding partial text fragments to
// onDelta as they arrive.
func (c *CallCentre) AskStream(ctx context.Context, prompt string, onDelta func(string)) (*orchestrator.Result, error) {
	return c.orch.AskStream(ctx, prompt, onDelta)
}

// Reset reinitializes the session: history empty, usage counters zero.
func (c *CallCentre) Reset() { c.orch.Reset() }

// Usage returns the session's accumulated usage totals.
func (c *CallCentre) Usage() core.Delta { return c.orch.Usage() }

// History returns a copy of the session's conversation history.
func (c *CallCentre) History() []core.Turn { return c.orch.Session().History.Turns() }
