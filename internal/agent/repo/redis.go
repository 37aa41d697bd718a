package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Wex47/Orbi/internal/agent/model"
	errx "github.com/Wex47/Orbi/internal/core/error"
	logx "github.com/Wex47/Orbi/pkg/logger"
)

const (
	fieldRoute            = "route"
	fieldQuery            = "query"
	fieldExecution        = "execution"
	fieldToolsUsed        = "tools_used"
	fieldVerified         = "verified"
	fieldFinalAnswer      = "final_answer"
	fieldCompactedContext = "compacted_context"
)

// RedisStateRepository keeps the log in a list and the scalar fields in a hash.
type RedisStateRepository struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisStateRepository(rdb redis.Cmdable, ttl time.Duration) *RedisStateRepository {
	return &RedisStateRepository{rdb: rdb, ttl: ttl}
}

func (r *RedisStateRepository) messagesKey(conversationID string) string {
	return fmt.Sprintf("conversation:%s:messages", conversationID)
}

func (r *RedisStateRepository) stateKey(conversationID string) string {
	return fmt.Sprintf("conversation:%s:state", conversationID)
}

func (r *RedisStateRepository) Load(ctx context.Context, conversationID string) (*model.ConversationState, error) {
	if conversationID == "" {
		return nil, errx.ErrEmptyThreadID
	}
	key := r.messagesKey(conversationID)

	rows, err := r.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		logx.Error().Err(err).Str("key", key).Msg("failed to load conversation log from redis")
		return nil, errx.WrapRedis(err)
	}

	state := &model.ConversationState{Messages: make(model.Log, 0, len(rows))}
	for i, s := range rows {
		e, err := model.UnmarshalEntry([]byte(s))
		if err != nil {
			logx.Error().Err(err).Str("conversation_id", conversationID).Int("index", i).Msg("failed to unmarshal entry")
			return nil, fmt.Errorf("unmarshal entry at index %d: %w", i, err)
		}
		state.Messages = append(state.Messages, e)
	}

	fields, err := r.rdb.HGetAll(ctx, r.stateKey(conversationID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		logx.Error().Err(err).Str("key", r.stateKey(conversationID)).Msg("failed to load conversation state from redis")
		return nil, errx.WrapRedis(err)
	}
	if err := decodeFields(fields, state); err != nil {
		return nil, fmt.Errorf("decode state of %s: %w", conversationID, err)
	}
	return state, nil
}

// Save appends the entries not stored yet and rewrites the scalar fields in one MULTI/EXEC.
func (r *RedisStateRepository) Save(ctx context.Context, conversationID string, state *model.ConversationState) error {
	if conversationID == "" {
		return errx.ErrEmptyThreadID
	}
	if state == nil {
		return fmt.Errorf("nil state for %s", conversationID)
	}
	msgKey, stKey := r.messagesKey(conversationID), r.stateKey(conversationID)

	stored, err := r.rdb.LLen(ctx, msgKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return errx.WrapRedis(err)
	}
	if int64(len(state.Messages)) < stored {
		logx.Error().Str("conversation_id", conversationID).Int64("stored", stored).
			Int("saving", len(state.Messages)).Msg("refusing to shrink conversation log")
		return errx.ErrLogShrunk
	}

	suffix := make([]any, 0, len(state.Messages)-int(stored))
	for _, e := range state.Messages[stored:] {
		b, err := model.MarshalEntry(e)
		if err != nil {
			return fmt.Errorf("marshal entry: %w", err)
		}
		suffix = append(suffix, b)
	}

	fields, err := encodeFields(state)
	if err != nil {
		return err
	}

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(suffix) > 0 {
			pipe.RPush(ctx, msgKey, suffix...)
		}
		pipe.HSet(ctx, stKey, fields)
		if len(state.CompactedContext) == 0 {
			pipe.HDel(ctx, stKey, fieldCompactedContext)
		}
		if r.ttl > 0 {
			pipe.Expire(ctx, msgKey, r.ttl)
			pipe.Expire(ctx, stKey, r.ttl)
		}
		return nil
	})
	if err != nil {
		logx.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to save conversation state")
		return errx.WrapRedis(err)
	}
	return nil
}

func encodeFields(s *model.ConversationState) (map[string]any, error) {
	fields := map[string]any{
		fieldRoute:       string(s.Route),
		fieldQuery:       s.Query,
		fieldExecution:   s.Execution,
		fieldToolsUsed:   strconv.FormatBool(s.ToolsUsed),
		fieldVerified:    strconv.FormatBool(s.Verified),
		fieldFinalAnswer: s.FinalAnswer,
	}
	if len(s.CompactedContext) > 0 {
		b, err := json.Marshal(s.CompactedContext)
		if err != nil {
			return nil, fmt.Errorf("marshal compacted context: %w", err)
		}
		fields[fieldCompactedContext] = string(b)
	}
	return fields, nil
}

func decodeFields(fields map[string]string, s *model.ConversationState) error {
	s.Route = model.Route(fields[fieldRoute])
	s.Query = fields[fieldQuery]
	s.Execution = fields[fieldExecution]
	s.FinalAnswer = fields[fieldFinalAnswer]
	s.ToolsUsed = fields[fieldToolsUsed] == "true"
	s.Verified = fields[fieldVerified] == "true"
	if raw := fields[fieldCompactedContext]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &s.CompactedContext); err != nil {
			return fmt.Errorf("unmarshal compacted context: %w", err)
		}
	}
	return nil
}

var _ model.StateStore = (*RedisStateRepository)(nil)
