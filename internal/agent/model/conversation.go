package model

import (
	"context"
)

// StateStore persists ConversationState per thread id.
type StateStore interface {
	// Load returns the stored state, or an empty state when the thread is new.
	Load(ctx context.Context, conversationID string) (*ConversationState, error)

	// Save durably stores the full state. The stored log must never shrink.
	Save(ctx context.Context, conversationID string, state *ConversationState) error
}
