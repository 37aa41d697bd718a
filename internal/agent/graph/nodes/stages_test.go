package nodes

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wex47/Orbi/internal/agent/model"
)

func TestParseRoute(t *testing.T) {
	tests := []struct {
		in   string
		want model.Route
	}{
		{"DIRECT", model.RouteDirect},
		{"  direct.\n", model.RouteDirect},
		{"PLAN", model.RoutePlan},
		{"OFF_TOPIC", model.RouteOffTopic},
		{"off-topic", model.RouteOffTopic},
		{"OFF_TOPIC: cooking recipes", model.RouteOffTopic},
		{"", model.RoutePlan},
		{"maybe direct?", model.RoutePlan},
		{"42", model.RoutePlan},
		{"¯\\_(ツ)_/¯", model.RoutePlan},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseRoute(tt.in))
		})
	}
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"VERIFIED", true},
		{"VERIFIED.", true},
		{"  VERIFIED: looks right", true},
		{"verified", false},
		{"INVALID: wrong airport", false},
		{"NOT VERIFIED", false},
		{"VERIFIEDX", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseVerdict(tt.in))
		})
	}
}

func TestRouterSetsRouteAndQuery(t *testing.T) {
	cm := replyWith(" direct ")
	s := stateWith(
		model.UserEntry{Content: "Where is Rome?"},
		model.AssistantEntry{Content: "Italy."},
		model.UserEntry{Content: "What currency do they use?"},
	)

	u, err := NewRouter(cm, "light").Run(context.Background(), s)
	require.NoError(t, err)
	require.NotNil(t, u.Route)
	assert.Equal(t, model.RouteDirect, *u.Route)
	assert.Equal(t, "What currency do they use?", *u.Query)

	in := cm.lastInput()
	require.Len(t, in, 4)
	assert.Equal(t, schema.System, in[0].Role)
}

func TestRouterPropagatesModelError(t *testing.T) {
	cm := &scriptedModel{reply: func([]*schema.Message) (*schema.Message, error) {
		return nil, errors.New("quota exceeded")
	}}
	_, err := NewRouter(cm, "light").Run(context.Background(), stateWith(model.UserEntry{Content: "hi"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestDirectResponderIsUnverifiedAndUngrounded(t *testing.T) {
	cm := replyWith("Rome uses the euro.")
	u, err := NewDirectResponder(cm, "light").Run(context.Background(), stateWith(model.UserEntry{Content: "currency in Rome?"}))
	require.NoError(t, err)
	assert.Equal(t, "Rome uses the euro.", *u.Execution)
	assert.False(t, *u.ToolsUsed)
	assert.False(t, *u.Verified)
	assert.Empty(t, u.Append)
}

func TestVerifierSendsQueryAndExecution(t *testing.T) {
	cm := replyWith("VERIFIED.")
	s := stateWith(model.UserEntry{Content: "flights TLV to FCO"})
	s.Query = "flights TLV to FCO"
	s.Execution = "There are 3 direct flights."

	u, err := NewVerifier(cm, "verifier").Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, *u.Verified)
	assert.Nil(t, cm.tools)

	in := cm.lastInput()
	last := in[len(in)-1]
	assert.Equal(t, schema.User, last.Role)
	assert.Contains(t, last.Content, "flights TLV to FCO")
	assert.Contains(t, last.Content, "There are 3 direct flights.")
}

func TestVerifierRejects(t *testing.T) {
	cm := replyWith("INVALID: the prices are invented")
	u, err := NewVerifier(cm, "verifier").Run(context.Background(), stateWith(model.UserEntry{Content: "q"}))
	require.NoError(t, err)
	assert.False(t, *u.Verified)
}

func TestOffTopicIsConstant(t *testing.T) {
	states := []*model.ConversationState{
		nil,
		{},
		stateWith(model.UserEntry{Content: "best lasagna recipe?"}),
		{Execution: "leftover", Verified: false, ToolsUsed: true},
	}
	for _, s := range states {
		u, err := OffTopic(context.Background(), s)
		require.NoError(t, err)
		assert.Equal(t, OffTopicReply, *u.Execution)
		assert.True(t, *u.Verified)
		assert.False(t, *u.ToolsUsed)
		assert.Empty(t, u.Append)
	}
}

func TestFinalAnswer(t *testing.T) {
	tests := []struct {
		name       string
		state      *model.ConversationState
		unverified bool
		ungrounded bool
	}{
		{"verified and grounded", &model.ConversationState{Execution: "Rome is lovely", Verified: true, ToolsUsed: true, Route: model.RoutePlan}, false, false},
		{"unverified only", &model.ConversationState{Execution: "Rome is lovely", Verified: false, ToolsUsed: true, Route: model.RoutePlan}, true, false},
		{"both", &model.ConversationState{Execution: "Answer", Route: model.RoutePlan}, true, true},
		{"direct is always ungrounded", &model.ConversationState{Execution: "x", Verified: true, ToolsUsed: true, Route: model.RouteDirect}, false, true},
		{"off topic reply", &model.ConversationState{Execution: OffTopicReply, Verified: true, Route: model.RouteOffTopic}, false, true},
		{"empty state", &model.ConversationState{}, true, true},
		{"nil state", nil, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FinalAnswer(tt.state)
			assert.Equal(t, tt.unverified, strings.Contains(got, WarningUnverified))
			assert.Equal(t, tt.ungrounded, strings.Contains(got, WarningUngrounded))
			if !tt.unverified && !tt.ungrounded {
				assert.Equal(t, tt.state.Execution, got)
			}
		})
	}
}

func TestFinalAnswerWarningOrder(t *testing.T) {
	got := FinalAnswer(&model.ConversationState{Execution: "Answer", Route: model.RoutePlan})
	assert.Equal(t, "Answer\n\n---\n"+WarningUnverified+"\n"+WarningUngrounded, got)
}

func TestFinalizeAppendsAssistantEntry(t *testing.T) {
	s := &model.ConversationState{
		Messages:  model.Log{model.UserEntry{Content: "q"}},
		Execution: "Rome is lovely",
		Verified:  true,
		ToolsUsed: true,
		Route:     model.RoutePlan,
	}
	u, err := Finalize(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, "Rome is lovely", *u.FinalAnswer)
	assert.Equal(t, model.Log{model.AssistantEntry{Content: "Rome is lovely"}}, u.Append)

	s.Apply(u)
	assert.Len(t, s.Messages, 2)
}
