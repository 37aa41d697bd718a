package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/Wex47/Orbi/internal/agent/model"
	errx "github.com/Wex47/Orbi/internal/core/error"
	logx "github.com/Wex47/Orbi/pkg/logger"
)

// BadgerStateRepository stores one JSON document per thread in an embedded database.
type BadgerStateRepository struct {
	db *badger.DB
}

func NewBadgerStateRepository(db *badger.DB) *BadgerStateRepository {
	return &BadgerStateRepository{db: db}
}

func (r *BadgerStateRepository) key(conversationID string) []byte {
	return []byte("conversation:" + conversationID)
}

func (r *BadgerStateRepository) Load(_ context.Context, conversationID string) (*model.ConversationState, error) {
	if conversationID == "" {
		return nil, errx.ErrEmptyThreadID
	}
	state := &model.ConversationState{Messages: model.Log{}}
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(r.key(conversationID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, state)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return state, nil
	}
	if err != nil {
		logx.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to load conversation state from badger")
		return nil, errx.WrapBadger(err)
	}
	return state, nil
}

func (r *BadgerStateRepository) Save(_ context.Context, conversationID string, state *model.ConversationState) error {
	if conversationID == "" {
		return errx.ErrEmptyThreadID
	}
	if state == nil {
		return fmt.Errorf("nil state for %s", conversationID)
	}
	val, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(r.key(conversationID))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			var prev struct {
				Messages []json.RawMessage `json:"messages"`
			}
			if err := item.Value(func(v []byte) error { return json.Unmarshal(v, &prev) }); err != nil {
				return err
			}
			if len(state.Messages) < len(prev.Messages) {
				return errx.ErrLogShrunk
			}
		}
		return txn.Set(r.key(conversationID), val)
	})
	if errors.Is(err, errx.ErrLogShrunk) {
		return err
	}
	if err != nil {
		logx.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to save conversation state to badger")
		return errx.WrapBadger(err)
	}
	return nil
}

var _ model.StateStore = (*BadgerStateRepository)(nil)
