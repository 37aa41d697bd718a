package datacache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	errx "github.com/Wex47/Orbi/internal/core/error"
)

// Record is the persisted form of one cache entry.
type Record struct {
	Data        json.RawMessage `json:"data"`
	RefreshedAt time.Time       `json:"refreshed_at"`
}

// Backend stores records keyed by cache name and key.
type Backend interface {
	Get(ctx context.Context, cache, key string) (Record, bool, error)
	Put(ctx context.Context, cache, key string, rec Record) error
}

func recordKey(cache, key string) string {
	return "datacache:" + cache + ":" + key
}

type MemoryBackend struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: make(map[string]Record)}
}

func (m *MemoryBackend) Get(_ context.Context, cache, key string) (Record, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[recordKey(cache, key)]
	return rec, ok, nil
}

func (m *MemoryBackend) Put(_ context.Context, cache, key string, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[recordKey(cache, key)] = rec
	return nil
}

// BadgerBackend keeps records in an embedded badger database.
type BadgerBackend struct {
	db *badger.DB
}

func NewBadgerBackend(db *badger.DB) *BadgerBackend {
	return &BadgerBackend{db: db}
}

func (b *BadgerBackend) Get(_ context.Context, cache, key string) (Record, bool, error) {
	var rec Record
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(recordKey(cache, key)))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, errx.WrapBadger(err)
	}
	return rec, true, nil
}

func (b *BadgerBackend) Put(_ context.Context, cache, key string, rec Record) error {
	val, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return errx.WrapBadger(b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(recordKey(cache, key)), val)
	}))
}

var (
	_ Backend = (*MemoryBackend)(nil)
	_ Backend = (*BadgerBackend)(nil)
)
