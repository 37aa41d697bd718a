package nodes

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"

	"github.com/Wex47/Orbi/internal/agent/graph/prompts"
	"github.com/Wex47/Orbi/internal/agent/model"
)

const StageDirect = "direct"

// DirectResponder answers from the conversation alone, without tools.
type DirectResponder struct {
	cm        einomodel.BaseChatModel
	modelName string
}

func NewDirectResponder(cm einomodel.BaseChatModel, modelName string) *DirectResponder {
	return &DirectResponder{cm: cm, modelName: modelName}
}

// Run never marks the answer verified: direct answers are unverified, not
// vacuously verified.
func (d *DirectResponder) Run(ctx context.Context, s *model.ConversationState) (model.Update, error) {
	system, err := prompts.RenderDirectSystem(ctx)
	if err != nil {
		return model.Update{}, err
	}
	out, err := generate(ctx, d.cm, system, s.View())
	if err != nil {
		return model.Update{}, fmt.Errorf("direct model: %w", err)
	}
	logUsage(StageDirect, d.modelName, out)

	return model.Update{
		Execution: model.Ptr(out.Content),
		ToolsUsed: model.Ptr(false),
		Verified:  model.Ptr(false),
	}, nil
}
