package model

import (
	"github.com/cloudwego/eino/schema"
)

// ExecutorState is the graph-local state of the tool-augmented executor loop.
// It is only touched inside eino state handlers and compose.ProcessState,
// which serialise access, so it carries no lock.
type ExecutorState struct {
	System               *schema.Message
	History              []*schema.Message // transcript of the loop, system prompt excluded
	ToolCallCount        int
	ToolCallLimitReached bool
	WrapUpSent           bool
	ToolCallIDSeq        int

	Cost Cost
}

// QueryInput is one user turn for a thread.
type QueryInput struct {
	ConversationID string `json:"conversation_id"`
	Query          string `json:"query"`
}
