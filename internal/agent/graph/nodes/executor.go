package nodes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/Wex47/Orbi/internal/agent/graph/observers"
	"github.com/Wex47/Orbi/internal/agent/graph/prompts"
	"github.com/Wex47/Orbi/internal/agent/graph/tools"
	"github.com/Wex47/Orbi/internal/agent/model"
	logx "github.com/Wex47/Orbi/pkg/logger"
)

const (
	StageExecutor = "executor"

	NodeChatModel    = "chat_model"
	NodeToolExecutor = "tool_executor"
	NodeFinish       = "finish"
)

// ToolProvider returns the tool set bound to the executor model.
type ToolProvider func(ctx context.Context) ([]tool.BaseTool, error)

type ExecutorConfig struct {
	ChatModel    einomodel.ToolCallingChatModel
	ModelName    string
	Tools        ToolProvider
	MaxToolCalls int
	// Now defaults to time.Now; the executor prompt carries today's date.
	Now func() time.Time
}

// Executor runs the tool-calling loop. The model binding, tools node and
// compiled graph are built on first use and then reused for the process.
type Executor struct {
	cfg ExecutorConfig

	mu        sync.Mutex
	runnable  compose.Runnable[[]*schema.Message, []*schema.Message]
	toolNames []string
}

func NewExecutor(cfg ExecutorConfig) *Executor {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Executor{cfg: cfg}
}

func (e *Executor) Run(ctx context.Context, s *model.ConversationState) (model.Update, error) {
	runnable, toolNames, err := e.compiled(ctx)
	if err != nil {
		return model.Update{}, err
	}

	system, err := prompts.RenderExecutorSystem(ctx, e.cfg.Now(), toolNames)
	if err != nil {
		return model.Update{}, err
	}
	in := append([]*schema.Message{schema.SystemMessage(system)}, s.View().ToMessages()...)

	transcript, err := runnable.Invoke(ctx, in, compose.WithCallbacks(observers.NewAllCallbacks()))
	if err != nil {
		return model.Update{}, fmt.Errorf("executor loop: %w", err)
	}

	return model.Update{
		Execution: model.Ptr(model.LastText(transcript)),
		ToolsUsed: model.Ptr(model.UsedTools(transcript)),
	}, nil
}

// compiled returns the loop, building it if needed. A failed build is not
// remembered so the next turn tries again.
func (e *Executor) compiled(ctx context.Context) (compose.Runnable[[]*schema.Message, []*schema.Message], []string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.runnable != nil {
		return e.runnable, e.toolNames, nil
	}

	runnable, names, err := e.build(ctx)
	if err != nil {
		logx.Error().Err(err).Str("stage", StageExecutor).Msg("Error building executor")
		return nil, nil, err
	}
	e.runnable, e.toolNames = runnable, names
	logx.Debug().Strs("tools", names).Msg("Executor built")
	return runnable, names, nil
}

func (e *Executor) build(ctx context.Context) (compose.Runnable[[]*schema.Message, []*schema.Message], []string, error) {
	if e.cfg.ChatModel == nil {
		return nil, nil, errors.New("executor chat model is nil")
	}
	var businessTools []tool.BaseTool
	if e.cfg.Tools != nil {
		var err error
		if businessTools, err = e.cfg.Tools(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to create tools: %w", err)
		}
	}

	toolInfos, err := tools.GetToolInfos(ctx, businessTools)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get tool infos: %w", err)
	}
	names := make([]string, 0, len(toolInfos))
	for _, info := range toolInfos {
		names = append(names, info.Name)
	}

	bound, err := e.cfg.ChatModel.WithTools(toolInfos)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to bind tools: %w", err)
	}

	toolsNode, err := compose.NewToolNode(ctx, &compose.ToolsNodeConfig{
		Tools:                businessTools,
		ExecuteSequentially:  true,
		UnknownToolsHandler:  tools.UnknownTool,
		ToolArgumentsHandler: tools.SanitizeArguments,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create tools node: %w", err)
	}

	maxCalls := normalizeMaxToolCalls(e.cfg.MaxToolCalls)
	g := compose.NewGraph[[]*schema.Message, []*schema.Message](
		compose.WithGenLocalState(func(ctx context.Context) *model.ExecutorState {
			return &model.ExecutorState{}
		}),
	)

	if err := g.AddChatModelNode(NodeChatModel, bound,
		compose.WithStatePreHandler(newChatModelPreHandler(maxCalls)),
		compose.WithStatePostHandler(newChatModelPostHandler(e.cfg.ModelName)),
	); err != nil {
		return nil, nil, err
	}
	if err := g.AddToolsNode(NodeToolExecutor, toolsNode,
		compose.WithStatePreHandler(newToolExecutorPreHandler(maxCalls)),
	); err != nil {
		return nil, nil, err
	}
	if err := g.AddLambdaNode(NodeFinish, compose.InvokableLambda(finishTranscript)); err != nil {
		return nil, nil, err
	}

	for _, edge := range [][2]string{
		{compose.START, NodeChatModel},
		{NodeToolExecutor, NodeChatModel},
		{NodeFinish, compose.END},
	} {
		if err := g.AddEdge(edge[0], edge[1]); err != nil {
			return nil, nil, err
		}
	}

	decision := compose.NewGraphBranch(toolExecutorCondition, map[string]bool{
		NodeToolExecutor: true,
		NodeFinish:       true,
	})
	if err := g.AddBranch(NodeChatModel, decision); err != nil {
		return nil, nil, fmt.Errorf("error adding decision branch: %w", err)
	}

	// Each tool round costs two steps; leave room for the wrap-up answer.
	maxSteps := max(20, 10+maxCalls*2)
	runnable, err := g.Compile(ctx, compose.WithMaxRunSteps(maxSteps), compose.WithGraphName(StageExecutor))
	if err != nil {
		return nil, nil, fmt.Errorf("error compiling executor graph: %w", err)
	}
	return runnable, names, nil
}

// newChatModelPreHandler records the incoming messages (the conversation on
// the first call, tool results afterwards) and prepends the system prompt.
func newChatModelPreHandler(maxToolCalls int) func(context.Context, []*schema.Message, *model.ExecutorState) ([]*schema.Message, error) {
	return func(ctx context.Context, in []*schema.Message, state *model.ExecutorState) ([]*schema.Message, error) {
		for _, m := range in {
			if m == nil {
				continue
			}
			if m.Role == schema.System && state.System == nil && len(state.History) == 0 {
				state.System = m
				continue
			}
			state.History = append(state.History, m)
		}

		if checkAndMarkToolLimit(state, maxToolCalls) {
			state.History = append(state.History, schema.SystemMessage(fmt.Sprintf(
				"SYSTEM NOTICE: You have reached the maximum tool call limit (%d). "+
					"Please synthesize a helpful response using the information you've already gathered. "+
					"Acknowledge any limitations in your response if you couldn't complete all necessary tool calls.",
				maxToolCalls,
			)))
		}

		out := make([]*schema.Message, 0, len(state.History)+1)
		if state.System != nil {
			out = append(out, state.System)
		}
		return append(out, state.History...), nil
	}
}

func newChatModelPostHandler(modelName string) func(context.Context, *schema.Message, *model.ExecutorState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.ExecutorState) (*schema.Message, error) {
		if out == nil {
			return nil, errors.New("executor model returned no message")
		}
		state.Cost = state.Cost.Add(logUsage(StageExecutor, modelName, out))

		// Some providers omit tool call ids; the tools node needs them to pair results.
		for i := range out.ToolCalls {
			if strings.TrimSpace(out.ToolCalls[i].ID) == "" {
				state.ToolCallIDSeq++
				out.ToolCalls[i].ID = fmt.Sprintf("call_%d", state.ToolCallIDSeq)
			}
		}

		state.History = append(state.History, out)
		if len(out.ToolCalls) > 0 {
			logx.Debug().Int("tool_count", len(out.ToolCalls)).Msg("Calling tools")
		} else {
			logx.Debug().Float64("total_cost_usd", state.Cost.Total()).Msg("AI response ready")
		}
		return out, nil
	}
}

func toolExecutorCondition(ctx context.Context, input *schema.Message) (string, error) {
	var limitReached bool
	_ = compose.ProcessState(ctx, func(_ context.Context, state *model.ExecutorState) error {
		limitReached = state.ToolCallLimitReached
		return nil
	})

	if limitReached {
		logx.Debug().Msg("Tool limit reached previously - routing to finish")
		return NodeFinish, nil
	}
	if len(input.ToolCalls) > 0 {
		return NodeToolExecutor, nil
	}
	return NodeFinish, nil
}

func newToolExecutorPreHandler(maxToolCalls int) func(context.Context, *schema.Message, *model.ExecutorState) (*schema.Message, error) {
	return func(ctx context.Context, in *schema.Message, state *model.ExecutorState) (*schema.Message, error) {
		if incrementToolCalls(state, len(in.ToolCalls), maxToolCalls) {
			logx.Warn().
				Int("tool_call_count", state.ToolCallCount).
				Int("max_tool_calls", maxToolCalls).
				Msg("Tool call limit exceeded - flagging and continuing")
		}
		return in, nil
	}
}

// finishTranscript hands the loop transcript (without the system prompt) back to the caller.
func finishTranscript(ctx context.Context, _ *schema.Message) ([]*schema.Message, error) {
	var transcript []*schema.Message
	err := compose.ProcessState(ctx, func(_ context.Context, state *model.ExecutorState) error {
		transcript = append(transcript, state.History...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access state: %w", err)
	}
	return transcript, nil
}
