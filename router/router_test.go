package router

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/callcentre/core"
	"github.com/hupe1980/callcentre/model"
	"github.com/hupe1980/callcentre/specialist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, stub *model.StubModel, optFns ...func(o *Options)) *Router {
	t.Helper()
	registry, err := specialist.NewRegistry(stub, specialist.DefaultConfigs())
	require.NoError(t, err)
	return New(stub, registry, optFns...)
}

func TestClassifySelectsSpecialist(t *testing.T) {
	stub := model.NewStubModel("test")
	stub.AddStructured("My account is locked", map[string]string{"specialist": "billing", "response": ""})

	r := newTestRouter(t, stub)
	sess := core.NewSessionState("sess-1")
	sess.BeginTurn("My account is locked")

	decision, err := r.Classify(context.Background(), sess)
	require.NoError(t, err)

	assert.Equal(t, specialist.Billing, decision.Specialist)
	assert.Empty(t, decision.Response)
	assert.Equal(t, 1, stub.Calls())
	assert.Equal(t, 1, sess.Usage.Requests())
}

func TestClassifyGeneralWithDirectResponse(t *testing.T) {
	stub := model.NewStubModel("test")
	stub.AddStructured("Hello", map[string]string{"specialist": "general", "response": "Hi there!"})

	r := newTestRouter(t, stub)
	sess := core.NewSessionState("sess-1")
	sess.BeginTurn("Hello")

	decision, err := r.Classify(context.Background(), sess)
	require.NoError(t, err)

	assert.Equal(t, specialist.General, decision.Specialist)
	assert.Equal(t, "Hi there!", decision.Response)
}

func TestClassifyRecordsInstructionTurnOnce(t *testing.T) {
	stub := model.NewStubModel("test")
	stub.AddStructured("Hello", map[string]string{"specialist": "general", "response": "Hi!"})

	r := newTestRouter(t, stub)
	sess := core.NewSessionState("sess-1")
	sess.BeginTurn("Hello")

	_, err := r.Classify(context.Background(), sess)
	require.NoError(t, err)
	_, err = r.Classify(context.Background(), sess)
	require.NoError(t, err)

	systemTurns := 0
	for _, turn := range sess.History.Turns() {
		if turn.Role == core.RoleSystem {
			systemTurns++
			assert.Equal(t, Supervisor, turn.Specialist)
			assert.Equal(t, r.Instructions(), turn.Content)
		}
	}
	assert.Equal(t, 1, systemTurns)
}

func TestClassifyRetriesThenFallsBackToGeneral(t *testing.T) {
	stub := model.NewStubModel("test")
	stub.AddStructured("gibberish", map[string]string{"specialist": "lawncare"})

	r := newTestRouter(t, stub, func(o *Options) { o.RetryBudget = 2 })
	sess := core.NewSessionState("sess-1")
	sess.BeginTurn("gibberish")

	decision, err := r.Classify(context.Background(), sess)
	require.NoError(t, err, "fallback is a recovery, not a failure")

	assert.Equal(t, specialist.General, decision.Specialist)
	assert.Empty(t, decision.Response)
	assert.Equal(t, 3, stub.Calls(), "initial attempt plus two retries")
	assert.Equal(t, 3, sess.Usage.Requests(), "every attempt is accounted")
}

func TestParseDecisionReportsAttemptCount(t *testing.T) {
	_, err := parseDecision(model.Response{Text: "not json"}, 2)

	var classErr *core.ClassificationError
	require.ErrorAs(t, err, &classErr)
	assert.Equal(t, 2, classErr.Attempts)

	_, err = parseDecision(model.Response{Text: `{"specialist":"lawncare","response":""}`}, 3)
	require.ErrorAs(t, err, &classErr)
	assert.Equal(t, 3, classErr.Attempts)
}

func TestClassifyDoesNotRetryServiceErrors(t *testing.T) {
	stub := model.NewStubModel("test")
	stub.SetError(errors.New("rate limited"))

	r := newTestRouter(t, stub, func(o *Options) { o.RetryBudget = 2 })
	sess := core.NewSessionState("sess-1")
	sess.BeginTurn("Hello")

	_, err := r.Classify(context.Background(), sess)

	var completionErr *core.CompletionError
	require.ErrorAs(t, err, &completionErr)
	assert.Equal(t, "routing", completionErr.Stage)
	assert.Equal(t, 1, stub.Calls(), "transport failures are not the router's retries")
}

func TestClassifyAcceptsStructuredJSONInText(t *testing.T) {
	stub := model.NewStubModel("test")
	stub.AddResponse("My screen is blank", `{"specialist":"technical","response":""}`)

	r := newTestRouter(t, stub)
	sess := core.NewSessionState("sess-1")
	sess.BeginTurn("My screen is blank")

	decision, err := r.Classify(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, specialist.Technical, decision.Specialist)
}

func TestBuildInstructionsListsTeam(t *testing.T) {
	stub := model.NewStubModel("test")
	r := newTestRouter(t, stub)

	instructions := r.Instructions()
	assert.Contains(t, instructions, "call-centre supervisor")
	assert.Contains(t, instructions, string(specialist.Billing))
	assert.Contains(t, instructions, string(specialist.Technical))
	assert.Contains(t, instructions, string(specialist.Products))
	assert.NotContains(t, instructions, "- general:", "the general case stays with the supervisor")
}
