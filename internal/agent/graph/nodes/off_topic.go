package nodes

import (
	"context"

	"github.com/Wex47/Orbi/internal/agent/model"
)

const (
	StageOffTopic = "off_topic"

	OffTopicReply = "That’s outside my scope, but I’d love to help with travel! " +
		"Ask me about flights, destinations, weather, or trip planning, and we can get started."
)

// OffTopic refuses non-travel turns without calling anything.
func OffTopic(context.Context, *model.ConversationState) (model.Update, error) {
	return model.Update{
		Execution: model.Ptr(OffTopicReply),
		Verified:  model.Ptr(true),
		ToolsUsed: model.Ptr(false),
	}, nil
}
