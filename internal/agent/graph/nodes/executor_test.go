package nodes

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wex47/Orbi/internal/agent/graph/tools"
	"github.com/Wex47/Orbi/internal/agent/model"
)

var fixedNow = func() time.Time { return time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC) }

func clockTools(context.Context) ([]tool.BaseTool, error) {
	return tools.New(tools.Deps{Now: fixedNow}), nil
}

func datetimeCall(id string) *schema.Message {
	return schema.AssistantMessage("", []schema.ToolCall{{
		ID:       id,
		Function: schema.FunctionCall{Name: tools.ToolLocalDatetime, Arguments: "{}"},
	}})
}

func hasTool(in []*schema.Message) bool {
	for _, m := range in {
		if m.Role == schema.Tool {
			return true
		}
	}
	return false
}

func TestExecutorAnswersWithoutTools(t *testing.T) {
	cm := replyWith("Pack light for Lisbon.")
	ex := NewExecutor(ExecutorConfig{ChatModel: cm, Tools: clockTools, Now: fixedNow})

	u, err := ex.Run(context.Background(), stateWith(model.UserEntry{Content: "packing tips for Lisbon"}))
	require.NoError(t, err)
	assert.Equal(t, "Pack light for Lisbon.", *u.Execution)
	assert.False(t, *u.ToolsUsed)
	assert.Nil(t, u.Verified)

	require.Len(t, cm.tools, 1)
	assert.Equal(t, tools.ToolLocalDatetime, cm.tools[0].Name)

	in := cm.lastInput()
	require.Len(t, in, 2)
	assert.Equal(t, schema.System, in[0].Role)
	assert.Contains(t, in[0].Content, "2026-05-04")
	assert.Equal(t, "packing tips for Lisbon", in[1].Content)
}

func TestExecutorRunsToolLoop(t *testing.T) {
	cm := &scriptedModel{reply: func(in []*schema.Message) (*schema.Message, error) {
		if hasTool(in) {
			return schema.AssistantMessage("Today is 4 May 2026.", nil), nil
		}
		return datetimeCall(""), nil
	}}
	ex := NewExecutor(ExecutorConfig{ChatModel: cm, Tools: clockTools, Now: fixedNow})

	u, err := ex.Run(context.Background(), stateWith(model.UserEntry{Content: "what's the date?"}))
	require.NoError(t, err)
	assert.Equal(t, "Today is 4 May 2026.", *u.Execution)
	assert.True(t, *u.ToolsUsed)
	require.Equal(t, 2, cm.calls())

	in := cm.lastInput()
	require.Len(t, in, 4)
	assert.Equal(t, schema.System, in[0].Role)
	assert.Equal(t, schema.User, in[1].Role)
	require.Len(t, in[2].ToolCalls, 1)
	assert.Equal(t, "call_1", in[2].ToolCalls[0].ID)
	assert.Equal(t, schema.Tool, in[3].Role)
	assert.Equal(t, "call_1", in[3].ToolCallID)
	assert.Contains(t, in[3].Content, "2026-05-04 09:30:00")
}

func TestExecutorUnknownToolDoesNotFailTurn(t *testing.T) {
	cm := &scriptedModel{reply: func(in []*schema.Message) (*schema.Message, error) {
		if hasTool(in) {
			return schema.AssistantMessage("I could not book that.", nil), nil
		}
		return schema.AssistantMessage("", []schema.ToolCall{{
			ID:       "x1",
			Function: schema.FunctionCall{Name: "book_hotel", Arguments: `{"city":"Rome"}`},
		}}), nil
	}}
	ex := NewExecutor(ExecutorConfig{ChatModel: cm, Tools: clockTools, Now: fixedNow})

	u, err := ex.Run(context.Background(), stateWith(model.UserEntry{Content: "book me a hotel"}))
	require.NoError(t, err)
	assert.Equal(t, "I could not book that.", *u.Execution)
	assert.True(t, *u.ToolsUsed)

	in := cm.lastInput()
	assert.Contains(t, in[len(in)-1].Content, "unknown_tool")
}

func TestExecutorToolLimitForcesWrapUp(t *testing.T) {
	cm := &scriptedModel{reply: func(in []*schema.Message) (*schema.Message, error) {
		for _, m := range in {
			if m.Role == schema.System && strings.HasPrefix(m.Content, "SYSTEM NOTICE") {
				return schema.AssistantMessage("Here is what I found so far.", nil), nil
			}
		}
		return datetimeCall(""), nil
	}}
	ex := NewExecutor(ExecutorConfig{ChatModel: cm, Tools: clockTools, MaxToolCalls: 2, Now: fixedNow})

	u, err := ex.Run(context.Background(), stateWith(model.UserEntry{Content: "loop forever"}))
	require.NoError(t, err)
	assert.Equal(t, "Here is what I found so far.", *u.Execution)
	assert.True(t, *u.ToolsUsed)
	assert.Equal(t, 3, cm.calls())
}

func TestExecutorBuildsLazilyAndRetriesFailedBuild(t *testing.T) {
	var attempts atomic.Int32
	provider := func(ctx context.Context) ([]tool.BaseTool, error) {
		if attempts.Add(1) == 1 {
			return nil, errors.New("tool config not ready")
		}
		return clockTools(ctx)
	}
	cm := replyWith("ok")
	ex := NewExecutor(ExecutorConfig{ChatModel: cm, Tools: provider, Now: fixedNow})
	assert.Equal(t, int32(0), attempts.Load())

	_, err := ex.Run(context.Background(), stateWith(model.UserEntry{Content: "q"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tool config not ready")

	for range 2 {
		u, err := ex.Run(context.Background(), stateWith(model.UserEntry{Content: "q"}))
		require.NoError(t, err)
		assert.Equal(t, "ok", *u.Execution)
	}
	assert.Equal(t, int32(2), attempts.Load())
}

func TestExecutorRequiresChatModel(t *testing.T) {
	_, err := NewExecutor(ExecutorConfig{}).Run(context.Background(), stateWith(model.UserEntry{Content: "q"}))
	require.Error(t, err)
}

func TestToolLimitHelpers(t *testing.T) {
	s := &model.ExecutorState{}
	assert.False(t, incrementToolCalls(s, 2, 2))
	assert.True(t, checkAndMarkToolLimit(s, 2))
	assert.True(t, s.ToolCallLimitReached)
	assert.False(t, checkAndMarkToolLimit(s, 2), "notice is sent once")
	assert.True(t, incrementToolCalls(s, 1, 2))

	assert.Equal(t, DefaultMaxToolCalls, normalizeMaxToolCalls(0))
	assert.Equal(t, 3, normalizeMaxToolCalls(3))
}
