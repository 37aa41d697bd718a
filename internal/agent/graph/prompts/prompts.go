package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

var (
	//go:embed template/router_prompt.txt
	routerSystemPrompt string

	//go:embed template/direct_prompt.txt
	directSystemPrompt string

	//go:embed template/executor_prompt.txt
	executorSystemPrompt string

	//go:embed template/verifier_prompt.txt
	verifierSystemPrompt string

	//go:embed template/verifier_request.txt
	verifierRequestPrompt string

	//go:embed template/summary_prompt.txt
	summaryPrompt string
)

// render formats tpl through the Eino prompt component so prompt callbacks fire.
func render(ctx context.Context, name string, tpl string, vars map[string]any) (string, error) {
	t := prompt.FromMessages(schema.GoTemplate, schema.SystemMessage(tpl))
	msgs, err := t.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("%s prompt render: %w", name, err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("%s prompt render: empty result", name)
	}
	return strings.TrimSpace(msgs[0].Content), nil
}

func RenderRouterSystem(ctx context.Context) (string, error) {
	return render(ctx, "router", routerSystemPrompt, nil)
}

func RenderDirectSystem(ctx context.Context) (string, error) {
	return render(ctx, "direct", directSystemPrompt, nil)
}

// RenderExecutorSystem lists the bound tool names and today's date.
func RenderExecutorSystem(ctx context.Context, today time.Time, toolNames []string) (string, error) {
	return render(ctx, "executor", executorSystemPrompt, map[string]any{
		"Today": today.Format("Monday, 2 January 2006"),
		"Tools": strings.Join(toolNames, ", "),
	})
}

func RenderVerifierSystem(ctx context.Context) (string, error) {
	return render(ctx, "verifier", verifierSystemPrompt, nil)
}

func RenderVerifierRequest(ctx context.Context, query, execution string) (string, error) {
	return render(ctx, "verifier request", verifierRequestPrompt, map[string]any{
		"Query":     query,
		"Execution": execution,
	})
}

// RenderSummary builds the summariser instruction. previous may be empty.
func RenderSummary(ctx context.Context, previous, transcript string) (string, error) {
	return render(ctx, "summary", summaryPrompt, map[string]any{
		"Previous":   previous,
		"Transcript": transcript,
	})
}
