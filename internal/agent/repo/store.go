package repo

import (
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/redis/go-redis/v9"

	"github.com/Wex47/Orbi/internal/agent/model"
)

// Backends selectable with STATE_BACKEND.
const (
	BackendRedis  = "redis"
	BackendBadger = "badger"
	BackendMemory = "memory"
)

// NewStateStore picks the store for backend. rdb or db may be nil when unused.
func NewStateStore(backend string, rdb redis.Cmdable, db *badger.DB, ttl time.Duration) (model.StateStore, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendRedis:
		if rdb == nil {
			return nil, fmt.Errorf("redis state backend needs a redis client")
		}
		return NewRedisStateRepository(rdb, ttl), nil
	case BackendBadger:
		if db == nil {
			return nil, fmt.Errorf("badger state backend needs an open database")
		}
		return NewBadgerStateRepository(db), nil
	case BackendMemory:
		return NewMemoryStateRepository(), nil
	default:
		return nil, fmt.Errorf("unknown state backend %q", backend)
	}
}
