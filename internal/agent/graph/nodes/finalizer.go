package nodes

import (
	"context"
	"strings"

	"github.com/Wex47/Orbi/internal/agent/model"
)

const (
	StageFinalizer = "finalizer"

	WarningUnverified = "***This answer could not be fully verified for correctness.***"
	WarningUngrounded = "***This answer is based on the LLM Knowledge and was not grounded in tool invocation.***"

	warningSeparator = "\n\n---\n"
)

// Finalize attaches disclosures to the execution and appends the answer to
// the log. It accepts any state, including an empty one.
func Finalize(_ context.Context, s *model.ConversationState) (model.Update, error) {
	answer := FinalAnswer(s)
	return model.Update{
		FinalAnswer: model.Ptr(answer),
		Append:      model.Log{model.AssistantEntry{Content: answer}},
	}, nil
}

// FinalAnswer renders execution plus any warnings, unverified first.
func FinalAnswer(s *model.ConversationState) string {
	if s == nil {
		s = &model.ConversationState{}
	}
	var warnings []string
	if !s.Verified {
		warnings = append(warnings, WarningUnverified)
	}
	if !s.ToolsUsed || s.Route == model.RouteDirect {
		warnings = append(warnings, WarningUngrounded)
	}
	if len(warnings) == 0 {
		return s.Execution
	}
	return s.Execution + warningSeparator + strings.Join(warnings, "\n")
}
