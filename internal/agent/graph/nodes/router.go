package nodes

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	einomodel "github.com/cloudwego/eino/components/model"

	"github.com/Wex47/Orbi/internal/agent/graph/prompts"
	"github.com/Wex47/Orbi/internal/agent/model"
	logx "github.com/Wex47/Orbi/pkg/logger"
)

const StageRouter = "router"

// Router classifies the latest user turn as DIRECT, PLAN or OFF_TOPIC.
type Router struct {
	cm        einomodel.BaseChatModel
	modelName string
}

func NewRouter(cm einomodel.BaseChatModel, modelName string) *Router {
	return &Router{cm: cm, modelName: modelName}
}

func (r *Router) Run(ctx context.Context, s *model.ConversationState) (model.Update, error) {
	system, err := prompts.RenderRouterSystem(ctx)
	if err != nil {
		return model.Update{}, err
	}
	out, err := generate(ctx, r.cm, system, s.View())
	if err != nil {
		return model.Update{}, fmt.Errorf("router model: %w", err)
	}
	logUsage(StageRouter, r.modelName, out)

	route := ParseRoute(out.Content)
	logx.Debug().Str("stage", StageRouter).Str("raw", out.Content).Str("route", string(route)).Msg("Turn routed")

	return model.Update{
		Route: model.Ptr(route),
		Query: model.Ptr(s.LatestUserText()),
	}, nil
}

// ParseRoute maps raw classifier output to a route. Anything that does not
// start with a known route word is PLAN.
func ParseRoute(text string) model.Route {
	token := leadingToken(strings.ToUpper(strings.TrimSpace(text)))
	for _, r := range []model.Route{model.RouteOffTopic, model.RouteDirect, model.RoutePlan} {
		if strings.HasPrefix(token, string(r)) {
			return r
		}
	}
	return model.RoutePlan
}

func leadingToken(s string) string {
	end := strings.IndexFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '_' && r != '-'
	})
	if end >= 0 {
		s = s[:end]
	}
	return strings.ReplaceAll(s, "-", "_")
}
