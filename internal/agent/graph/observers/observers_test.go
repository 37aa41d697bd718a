package observers

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wex47/Orbi/internal/core"
	logx "github.com/Wex47/Orbi/pkg/logger"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logx.Init(logx.LoggerOpts{Environment: core.Production, Level: "debug", Output: &buf})
	t.Cleanup(func() { logx.Init(logx.LoggerOpts{Environment: core.Production}) })
	return &buf
}

func TestModelHandlerLogsUserAndReply(t *testing.T) {
	buf := captureLogs(t)
	h := newModelHandler()
	info := &einocb.RunInfo{Name: "chat_model", Type: "Anthropic"}

	h.OnStart(context.Background(), info, &model.CallbackInput{Messages: []*schema.Message{
		schema.SystemMessage("sys"),
		schema.UserMessage("  flights to Rome? "),
	}})
	h.OnEnd(context.Background(), info, &model.CallbackOutput{Message: schema.AssistantMessage("Here you go", nil)})

	out := buf.String()
	assert.Contains(t, out, `"user":"flights to Rome?"`)
	assert.Contains(t, out, `"assistant":"Here you go"`)
	assert.Contains(t, out, `"node":"chat_model"`)
}

func TestToolHandlerLogsErrors(t *testing.T) {
	buf := captureLogs(t)
	h := newToolHandler()
	info := &einocb.RunInfo{Name: "search_flights"}

	h.OnStart(context.Background(), info, &tool.CallbackInput{ArgumentsInJSON: `{"origin":"TLV"}`})
	h.OnError(context.Background(), info, errors.New("boom"))

	out := buf.String()
	assert.Contains(t, out, `"tool_name":"search_flights"`)
	assert.Contains(t, out, "boom")
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("ש", maxLoggedContent+10)
	got := truncate(long)
	require.True(t, strings.HasSuffix(got, "…"))
	assert.Equal(t, maxLoggedContent+1, len([]rune(got)))
	assert.Equal(t, "short", truncate(" short "))
}

func TestPromptHandlerLogsRenderedText(t *testing.T) {
	buf := captureLogs(t)
	h := newPromptHandler()
	info := &einocb.RunInfo{Name: "router"}

	h.OnStart(context.Background(), info, &prompt.CallbackInput{Variables: map[string]any{"Query": "q"}})
	h.OnEnd(context.Background(), info, &prompt.CallbackOutput{Result: []*schema.Message{schema.SystemMessage("Classify the turn")}})

	out := buf.String()
	assert.Contains(t, out, `"variables":["Query"]`)
	assert.Contains(t, out, `"rendered":"Classify the turn"`)
}

func TestNewAllCallbacksIsUsable(t *testing.T) {
	assert.NotNil(t, NewAllCallbacks())
	assert.NotNil(t, NewPromptCallbacks())
	assert.NotNil(t, NewToolCallbacks())
}
