package nodes

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/Wex47/Orbi/internal/agent/graph/prompts"
	"github.com/Wex47/Orbi/internal/agent/model"
	logx "github.com/Wex47/Orbi/pkg/logger"
)

const (
	StageVerifier = "verifier"

	verdictVerified = "VERIFIED"
)

// Verifier checks the executor's answer against the query and conversation.
// It never binds tools.
type Verifier struct {
	cm        einomodel.BaseChatModel
	modelName string
}

func NewVerifier(cm einomodel.BaseChatModel, modelName string) *Verifier {
	return &Verifier{cm: cm, modelName: modelName}
}

func (v *Verifier) Run(ctx context.Context, s *model.ConversationState) (model.Update, error) {
	system, err := prompts.RenderVerifierSystem(ctx)
	if err != nil {
		return model.Update{}, err
	}
	request, err := prompts.RenderVerifierRequest(ctx, s.Query, s.Execution)
	if err != nil {
		return model.Update{}, err
	}
	out, err := generate(ctx, v.cm, system, s.View(), schema.UserMessage(request))
	if err != nil {
		return model.Update{}, fmt.Errorf("verifier model: %w", err)
	}
	logUsage(StageVerifier, v.modelName, out)

	verified := ParseVerdict(out.Content)
	if !verified {
		logx.Debug().Str("stage", StageVerifier).Str("verdict", out.Content).Msg("Answer not verified")
	}
	return model.Update{Verified: model.Ptr(verified)}, nil
}

// ParseVerdict is true only when the first word is exactly VERIFIED,
// ignoring a trailing period or colon.
func ParseVerdict(text string) bool {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return false
	}
	return strings.TrimRight(fields[0], ".:") == verdictVerified
}
