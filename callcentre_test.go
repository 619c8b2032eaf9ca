package callcentre

import (
	"context"
	"strings"
	"testing"

	"github.com/hupe1980/callcentre/core"
	"github.com/hupe1980/callcentre/model"
	"github.com/hupe1980/callcentre/specialist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiTurnConversation(t *testing.T) {
	stub := model.NewStubModel("test")
	stub.AddStructured("Hello", map[string]string{"specialist": "general", "response": "Hi! How can I help?"})
	stub.AddStructured("My invoice looks wrong", map[string]string{"specialist": "billing", "response": ""})
	stub.AddResponse("My invoice looks wrong", "I see a duplicate charge; I have refunded it.")

	cc, err := New(stub)
	require.NoError(t, err)

	result, err := cc.Ask(context.Background(), "Hello")
	require.NoError(t, err)
	assert.Equal(t, "Hi! How can I help?", result.Response)
	assert.Equal(t, specialist.General, result.Specialist)

	result, err = cc.Ask(context.Background(), "My invoice looks wrong")
	require.NoError(t, err)
	assert.Equal(t, "I see a duplicate charge; I have refunded it.", result.Response)
	assert.Equal(t, specialist.Billing, result.Specialist)

	// Three calls across the session, each costing one stub request.
	assert.Equal(t, 3, cc.Usage().Requests)

	// One supervisor instruction turn, then both exchanges in order.
	turns := cc.History()
	require.Len(t, turns, 5)
	assert.Equal(t, core.RoleSystem, turns[0].Role)
	assert.Equal(t, "Hello", turns[1].Content)
	assert.Equal(t, "My invoice looks wrong", turns[3].Content)
	assert.Equal(t, string(specialist.Billing), turns[4].Specialist)
}

func TestAskStreamForwardsFragments(t *testing.T) {
	stub := model.NewStubModel("test")
	stub.AddStructured("ping", map[string]string{"specialist": "technical", "response": ""})
	stub.AddResponse("ping", "pong pong pong")

	cc, err := New(stub)
	require.NoError(t, err)

	var fragments []string
	result, err := cc.AskStream(context.Background(), "ping", func(delta string) {
		fragments = append(fragments, delta)
	})
	require.NoError(t, err)

	assert.Equal(t, "pong pong pong", result.Response)
	assert.NotEmpty(t, fragments)
	assert.Equal(t, "pong pong pong", strings.Join(fragments, ""))
}

func TestResetStartsCleanSession(t *testing.T) {
	stub := model.NewStubModel("test")
	stub.AddStructured("Hello", map[string]string{"specialist": "general", "response": "Hi!"})

	cc, err := New(stub)
	require.NoError(t, err)

	_, err = cc.Ask(context.Background(), "Hello")
	require.NoError(t, err)
	require.NotEmpty(t, cc.History())

	cc.Reset()

	assert.Empty(t, cc.History())
	assert.Equal(t, core.Delta{}, cc.Usage())
}

func TestCustomTeam(t *testing.T) {
	stub := model.NewStubModel("test")
	stub.AddStructured("hi", map[string]string{"specialist": "general", "response": "hello"})

	cc, err := New(stub, func(o *Options) {
		o.Specialists = []specialist.Config{
			{ID: specialist.General, Description: "everything else", Instructions: "Be helpful."},
			{ID: specialist.Billing, Description: "payments", Instructions: "Handle invoices."},
		}
	})
	require.NoError(t, err)

	result, err := cc.Ask(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello", result.Response)
}
