package specialist

import (
	"context"
	"testing"

	"github.com/hupe1980/callcentre/core"
	"github.com/hupe1980/callcentre/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func billingConfig() Config {
	for _, cfg := range DefaultConfigs() {
		if cfg.ID == Billing {
			return cfg
		}
	}
	panic("billing config missing")
}

func TestParse(t *testing.T) {
	tests := []struct {
		raw     string
		want    ID
		wantErr bool
	}{
		{raw: "billing", want: Billing},
		{raw: " Technical ", want: Technical},
		{raw: "GENERAL", want: General},
		{raw: "lawncare", wantErr: true},
		{raw: "", wantErr: true},
	}
	for _, tt := range tests {
		id, err := Parse(tt.raw)
		if tt.wantErr {
			assert.Error(t, err, "raw=%q", tt.raw)
			continue
		}
		require.NoError(t, err, "raw=%q", tt.raw)
		assert.Equal(t, tt.want, id)
	}
}

func TestHandleAppendsExactlyTheExchange(t *testing.T) {
	stub := model.NewStubModel("test")
	stub.AddResponse("I'm having issues logging into my account", "Please try resetting your password.")

	sp := New(billingConfig(), stub)
	sess := core.NewSessionState("sess-1")
	sess.History.Append(core.NewSystemTurn("supervisor", "routing instructions"))
	sess.BeginTurn("I'm having issues logging into my account")

	text, err := sp.Handle(context.Background(), sess, nil)
	require.NoError(t, err)
	assert.Equal(t, "Please try resetting your password.", text)

	turns := sess.History.Turns()
	require.Len(t, turns, 3, "one prior system turn plus the new user/assistant exchange")
	assert.Equal(t, core.RoleUser, turns[1].Role)
	assert.Equal(t, "I'm having issues logging into my account", turns[1].Content)
	assert.Equal(t, core.RoleAssistant, turns[2].Role)
	assert.Equal(t, string(Billing), turns[2].Specialist)

	// The specialist's own instructions were not persisted.
	for _, turn := range turns {
		assert.NotEqual(t, billingConfig().Instructions, turn.Content)
	}
}

func TestHandleAccumulatesUsage(t *testing.T) {
	stub := model.NewStubModel("test")
	stub.SetDelta(core.Delta{Requests: 1, TotalTokens: 42})

	sp := New(billingConfig(), stub)
	sess := core.NewSessionState("sess-1")
	sess.BeginTurn("question")

	_, err := sp.Handle(context.Background(), sess, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, sess.Usage.Requests())
	assert.Equal(t, 42, sess.Usage.Totals().TotalTokens)
}

func TestHandleEmptyReplyRecordsNothing(t *testing.T) {
	stub := model.NewStubModel("test")
	stub.AddResponse("anyone there?", "")

	sp := New(billingConfig(), stub)
	sess := core.NewSessionState("sess-1")
	sess.BeginTurn("anyone there?")

	text, err := sp.Handle(context.Background(), sess, nil)
	require.NoError(t, err)
	assert.Empty(t, text)
	assert.Equal(t, 0, sess.History.Len(), "a silent reply must not add turns")
	assert.Equal(t, 1, sess.Usage.Requests(), "the call is still accounted")
}

func TestRespondRejectsForeignInstructions(t *testing.T) {
	stub := model.NewStubModel("test")
	sp := New(billingConfig(), stub)

	leaked := []core.Turn{core.NewSystemTurn("technical", "foreign instructions")}
	_, err := sp.Respond(context.Background(), "question", leaked, core.NewUsage(), nil)

	var invariantErr *core.HistoryInvariantError
	require.ErrorAs(t, err, &invariantErr)
	assert.Equal(t, string(Billing), invariantErr.Specialist)
	assert.Equal(t, 0, stub.Calls(), "no completion call may be issued with a leaked system turn")
}

func TestToolCapturesSessionAccumulator(t *testing.T) {
	stub := model.NewStubModel("test")
	stub.AddResponse("my bill is wrong", "Let me check that charge.")

	sp := New(billingConfig(), stub)
	sess := core.NewSessionState("sess-1")

	tool := sp.Tool(sess)
	assert.Equal(t, "billing_specialist", tool.Name)
	assert.Equal(t, billingConfig().Description, tool.Description)

	result, err := tool.Handler(context.Background(), "my bill is wrong")
	require.NoError(t, err)
	assert.Equal(t, "Let me check that charge.", result)
	assert.Equal(t, 1, sess.Usage.Requests())
	// The tool itself does not mutate history; the merged view arrives later.
	assert.Equal(t, 0, sess.History.Len())
}
