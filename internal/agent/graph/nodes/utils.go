package nodes

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/Wex47/Orbi/internal/agent/model"
	logx "github.com/Wex47/Orbi/pkg/logger"
)

const DefaultMaxToolCalls = 10

// normalizeMaxToolCalls returns a sane default when the provided value is invalid.
func normalizeMaxToolCalls(n int) int {
	if n <= 0 {
		return DefaultMaxToolCalls
	}
	return n
}

// checkAndMarkToolLimit reports whether the wrap-up notice is due now: the
// limit is used up and the notice has not been sent yet.
func checkAndMarkToolLimit(state *model.ExecutorState, max int) bool {
	max = normalizeMaxToolCalls(max)
	if state.WrapUpSent || state.ToolCallCount < max {
		return false
	}
	state.ToolCallLimitReached = true
	state.WrapUpSent = true
	return true
}

// incrementToolCalls adds the calls of one assistant turn and marks the
// state once the count goes past the limit. Returns true when exceeded.
func incrementToolCalls(state *model.ExecutorState, calls, max int) bool {
	max = normalizeMaxToolCalls(max)
	state.ToolCallCount += calls
	if state.ToolCallCount > max {
		state.ToolCallLimitReached = true
		return true
	}
	return false
}

// generate sends system + view (+ extra) to cm and returns the reply.
func generate(ctx context.Context, cm einomodel.BaseChatModel, system string, view model.Log, extra ...*schema.Message) (*schema.Message, error) {
	msgs := make([]*schema.Message, 0, len(view)+len(extra)+1)
	msgs = append(msgs, schema.SystemMessage(system))
	msgs = append(msgs, view.ToMessages()...)
	msgs = append(msgs, extra...)

	out, err := cm.Generate(ctx, msgs)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("model returned no message")
	}
	return out, nil
}

// logUsage prices out's token usage and logs it under stage.
func logUsage(stage, modelName string, out *schema.Message) model.Cost {
	if out == nil || out.ResponseMeta == nil || out.ResponseMeta.Usage == nil {
		return model.Cost{}
	}
	usage := out.ResponseMeta.Usage
	cost := model.UsageCost(modelName, usage)
	logx.Debug().
		Str("stage", stage).
		Str("model", modelName).
		Int("prompt_tokens", usage.PromptTokens).
		Int("completion_tokens", usage.CompletionTokens).
		Int("total_tokens", usage.TotalTokens).
		Float64("input_cost_usd", cost.Input).
		Float64("output_cost_usd", cost.Output).
		Float64("total_cost_usd", cost.Total()).
		Msg("LLM usage")
	return cost
}
