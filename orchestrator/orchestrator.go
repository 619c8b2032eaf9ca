// Package orchestrator drives the Routing -> Dispatched -> Terminal lifecycle
// for one user turn: it asks the router to classify, hands the prompt to the
// selected specialist, and bounds the number of hops so every turn terminates.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/hupe1980/callcentre/core"
	"github.com/hupe1980/callcentre/logging"
	"github.com/hupe1980/callcentre/model"
	"github.com/hupe1980/callcentre/router"
	"github.com/hupe1980/callcentre/specialist"
)

// Shape selects how a turn is driven. A session picks exactly one shape and
// applies it consistently.
type Shape int

const (
	// ShapeGraphHop routes, dispatches, and loops control back to routing;
	// the next evaluation short-circuits once a final response is set.
	ShapeGraphHop Shape = iota
	// ShapeToolCall issues a single supervisor call that invokes the chosen
	// specialist as a tool and terminates directly.
	ShapeToolCall
)

// fallbackText is the best-effort terminal response when the hop bound is
// reached and no specialist produced any text.
const fallbackText = "I'm sorry, I wasn't able to resolve that just now. Could you rephrase your request?"

// Options configure an Orchestrator.
type Options struct {
	Shape Shape
	// MaxHops bounds router<->specialist hops per turn.
	MaxHops int
	// RetryBudget is forwarded to the router's classification retries.
	RetryBudget int
	// Specialists overrides the built-in call-centre team.
	Specialists []specialist.Config
	// SupervisorInstructions overrides the generated routing prompt.
	SupervisorInstructions string
	// SessionID seeds the session aggregate; generated when empty.
	SessionID string
	Logger    logging.Logger
}

// Result is the terminal outcome of one user turn.
type Result struct {
	Response   string
	Specialist specialist.ID
	Usage      core.Delta // session totals after the turn
}

// Orchestrator owns one session's state machine. Turns are processed
// start-to-finish, one at a time; there is no parallel fan-out across
// specialists.
type Orchestrator struct {
	llm      model.Model
	shape    Shape
	maxHops  int
	logger   logging.Logger
	registry *specialist.Registry
	rt       *router.Router
	sess     *core.SessionState
}

// New constructs an orchestrator with its registry, router and session
// built once up front. All knobs (model handle, retry budget, hop bound)
// are explicit configuration; there are no process-global instances.
func New(llm model.Model, optFns ...func(o *Options)) (*Orchestrator, error) {
	opts := Options{
		Shape:       ShapeGraphHop,
		MaxHops:     2,
		RetryBudget: 1,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxHops < 1 {
		return nil, fmt.Errorf("max hops must be at least 1, got %d", opts.MaxHops)
	}
	if opts.Specialists == nil {
		opts.Specialists = specialist.DefaultConfigs()
	}

	registry, err := specialist.NewRegistry(llm, opts.Specialists, func(o *specialist.Options) {
		o.Logger = opts.Logger
	})
	if err != nil {
		return nil, fmt.Errorf("build specialist registry: %w", err)
	}

	rt := router.New(llm, registry, func(o *router.Options) {
		o.Instructions = opts.SupervisorInstructions
		o.RetryBudget = opts.RetryBudget
		o.Logger = opts.Logger
	})

	return &Orchestrator{
		llm:      llm,
		shape:    opts.Shape,
		maxHops:  opts.MaxHops,
		logger:   opts.Logger,
		registry: registry,
		rt:       rt,
		sess:     core.NewSessionState(opts.SessionID),
	}, nil
}

// Session exposes the session aggregate for inspection.
func (o *Orchestrator) Session() *core.SessionState { return o.sess }

// Usage returns the session's accumulated usage totals.
func (o *Orchestrator) Usage() core.Delta { return o.sess.Usage.Totals() }

// Reset reinitializes the session: history empty, usage zero.
func (o *Orchestrator) Reset() {
	o.sess.Reset()
	o.logger.Info("orchestrator.reset", "session", o.sess.ID)
}

// Ask processes one user turn to its terminal state.
func (o *Orchestrator) Ask(ctx context.Context, prompt string) (*Result, error) {
	return o.ask(ctx, prompt, nil)
}

// AskStream behaves like Ask but forwards partial text fragments to onDelta
// as they arrive. Fragments are not separate turns; only the assembled final
// text enters the history.
func (o *Orchestrator) AskStream(ctx context.Context, prompt string, onDelta func(string)) (*Result, error) {
	return o.ask(ctx, prompt, onDelta)
}

func (o *Orchestrator) ask(ctx context.Context, prompt string, onDelta func(string)) (*Result, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, errors.New("empty prompt")
	}
	o.sess.BeginTurn(prompt)

	if o.shape == ShapeToolCall {
		return o.askToolCall(ctx, onDelta)
	}
	return o.askGraphHop(ctx, onDelta)
}

// step is the tagged result of one routing evaluation: either continue with
// a specialist or finish with a terminal response.
type step struct {
	kind       stepKind
	specialist specialist.ID
	response   string
}

type stepKind int

const (
	stepContinue stepKind = iota
	stepFinish
)

func continueWith(id specialist.ID) step { return step{kind: stepContinue, specialist: id} }

func finish(response string) step { return step{kind: stepFinish, response: response} }

// askGraphHop drives the Routing -> Dispatched loop. The hop bound guarantees
// termination even when a specialist's reply fails to populate the final
// response; exceeding it forces a terminal fallback.
func (o *Orchestrator) askGraphHop(ctx context.Context, onDelta func(string)) (*Result, error) {
	sess := o.sess

	for hop := 0; hop < o.maxHops; hop++ {
		st, err := o.route(ctx, onDelta)
		if err != nil {
			return nil, err
		}
		if st.kind == stepFinish {
			sess.FinalResponse = st.response
			o.logger.Debug("orchestrator.terminal", "hop", hop, "specialist", sess.ActiveSpecialist)
			return o.result(), nil
		}

		sp, ok := o.registry.Get(st.specialist)
		if !ok {
			sp, _ = o.registry.Get(specialist.General)
		}
		sess.ActiveSpecialist = string(sp.ID())
		o.logger.Debug("orchestrator.dispatch", "hop", hop, "specialist", sp.ID())

		text, err := sp.Handle(ctx, sess, onDelta)
		if err != nil {
			var invariantErr *core.HistoryInvariantError
			if errors.As(err, &invariantErr) {
				return nil, err
			}
			return nil, &core.CompletionError{Stage: "dispatch", Err: err}
		}
		if text != "" {
			sess.FinalResponse = text
		}
		// Control returns to routing; with the final response set, the next
		// evaluation short-circuits to terminal instead of re-classifying.
	}

	loopErr := &core.RoutingLoopError{Hops: o.maxHops}
	o.logger.Warn("orchestrator.hop_bound", "error", loopErr, "session", sess.ID)
	sess.FinalResponse = o.fallbackResponse()
	sess.ActiveSpecialist = string(specialist.General)
	if onDelta != nil {
		onDelta(sess.FinalResponse)
	}
	return o.result(), nil
}

// route is the Routing state: short-circuit on an already-set final response,
// otherwise classify. A general classification with a direct answer records
// the exchange, forwards the text to the stream callback (nothing else will)
// and finishes without any specialist dispatch.
func (o *Orchestrator) route(ctx context.Context, onDelta func(string)) (step, error) {
	sess := o.sess
	if sess.FinalResponse != "" {
		return finish(sess.FinalResponse), nil
	}

	decision, err := o.rt.Classify(ctx, sess)
	if err != nil {
		return step{}, err
	}

	if decision.Specialist == specialist.General && decision.Response != "" {
		sess.History.Append(core.NewUserTurn(sess.Prompt))
		sess.History.Append(core.NewAssistantTurn(router.Supervisor, decision.Response))
		sess.ActiveSpecialist = string(specialist.General)
		if onDelta != nil {
			onDelta(decision.Response)
		}
		return finish(decision.Response), nil
	}

	return continueWith(decision.Specialist), nil
}

// askToolCall issues the single supervisor call with every specialist exposed
// as a tool. The service's merged view of the exchange becomes the
// authoritative history via ReplaceAll.
func (o *Orchestrator) askToolCall(ctx context.Context, onDelta func(string)) (*Result, error) {
	sess := o.sess
	o.rt.EnsureInstructionTurn(sess.History)

	respCh, errCh := o.llm.Generate(ctx, model.Request{
		Instructions: o.rt.Instructions(),
		History:      collect(sess.History.TurnsWithout(core.RoleSystem)),
		Prompt:       sess.Prompt,
		Tools:        o.registry.Tools(sess),
		Stream:       onDelta != nil,
	})
	resp, err := model.Consume(ctx, respCh, errCh, onDelta)
	if err != nil {
		return nil, &core.CompletionError{Stage: "routing", Err: err}
	}
	sess.Usage.Add(resp.Usage)

	dispatched := specialist.General
	merged := sess.History.Turns()
	merged = append(merged, core.NewUserTurn(sess.Prompt))
	for _, inv := range resp.ToolInvocations {
		content := inv.Result
		if inv.Error != "" {
			content = fmt.Sprintf("error: %s", inv.Error)
		}
		merged = append(merged, core.NewToolTurn(inv.Name, content))
		if id, err := specialist.Parse(strings.TrimSuffix(inv.Name, "_specialist")); err == nil {
			dispatched = id
		}
	}
	author := router.Supervisor
	if dispatched != specialist.General {
		author = string(dispatched)
	}
	merged = append(merged, core.NewAssistantTurn(author, resp.Text))
	sess.History.ReplaceAll(merged)

	sess.ActiveSpecialist = string(dispatched)
	sess.FinalResponse = resp.Text
	return o.result(), nil
}

// fallbackResponse is the best-effort terminal text after the hop bound:
// the most recent assistant text this session produced, or a fixed apology.
func (o *Orchestrator) fallbackResponse() string {
	turns := o.sess.History.Turns()
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == core.RoleAssistant && turns[i].Content != "" {
			return turns[i].Content
		}
	}
	return fallbackText
}

func (o *Orchestrator) result() *Result {
	return &Result{
		Response:   o.sess.FinalResponse,
		Specialist: specialist.ID(o.sess.ActiveSpecialist),
		Usage:      o.sess.Usage.Totals(),
	}
}

func collect(seq iter.Seq[core.Turn]) []core.Turn {
	var turns []core.Turn
	for t := range seq {
		turns = append(turns, t)
	}
	return turns
}
