package repo

import (
	"context"
	"fmt"
	"sync"

	"github.com/Wex47/Orbi/internal/agent/model"
	errx "github.com/Wex47/Orbi/internal/core/error"
)

// MemoryStateRepository keeps states in process memory. Nothing survives a restart.
type MemoryStateRepository struct {
	mu     sync.RWMutex
	states map[string]*model.ConversationState
}

func NewMemoryStateRepository() *MemoryStateRepository {
	return &MemoryStateRepository{states: make(map[string]*model.ConversationState)}
}

func (r *MemoryStateRepository) Load(_ context.Context, conversationID string) (*model.ConversationState, error) {
	if conversationID == "" {
		return nil, errx.ErrEmptyThreadID
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.states[conversationID]; ok {
		return s.Clone(), nil
	}
	return &model.ConversationState{Messages: model.Log{}}, nil
}

func (r *MemoryStateRepository) Save(_ context.Context, conversationID string, state *model.ConversationState) error {
	if conversationID == "" {
		return errx.ErrEmptyThreadID
	}
	if state == nil {
		return fmt.Errorf("nil state for %s", conversationID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.states[conversationID]; ok && len(state.Messages) < len(prev.Messages) {
		return errx.ErrLogShrunk
	}
	r.states[conversationID] = state.Clone()
	return nil
}

var _ model.StateStore = (*MemoryStateRepository)(nil)
