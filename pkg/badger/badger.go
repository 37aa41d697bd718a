package badger

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	logx "github.com/Wex47/Orbi/pkg/logger"
)

// Config is populated by envconfig under the BADGER_ prefix.
type Config struct {
	Path       string        `split_words:"true" default:".orbi/badger"`
	InMemory   bool          `split_words:"true" default:"false"`
	SyncWrites bool          `split_words:"true" default:"true"`
	GCInterval time.Duration `envconfig:"BADGER_GC_INTERVAL" default:"5m"`
	GCRatio    float64       `envconfig:"BADGER_GC_RATIO" default:"0.5"`
}

// InMemoryConfig is used by tests and by STATE_BACKEND=memory style runs.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// zerologAdapter routes badger's internal logging through logx.
type zerologAdapter struct{}

func (zerologAdapter) Errorf(format string, args ...interface{}) {
	logx.Error().Str("component", "badger").Msgf(format, args...)
}

func (zerologAdapter) Warningf(format string, args ...interface{}) {
	logx.Warn().Str("component", "badger").Msgf(format, args...)
}

func (zerologAdapter) Infof(format string, args ...interface{}) {
	logx.Debug().Str("component", "badger").Msgf(format, args...)
}

func (zerologAdapter) Debugf(format string, args ...interface{}) {}

// DB wraps a badger instance with its value-log GC loop.
type DB struct {
	*badger.DB
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// Open opens the database described by cfg and starts value-log GC for
// persistent databases when GCInterval is positive.
func (c *Config) Open() (*DB, error) {
	var opts badger.Options
	if c.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if c.Path == "" {
			return nil, errors.New("badger path is required for a persistent database")
		}
		if err := os.MkdirAll(c.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create badger directory %s: %w", c.Path, err)
		}
		opts = badger.DefaultOptions(c.Path).WithSyncWrites(c.SyncWrites)
	}
	opts = opts.WithNumVersionsToKeep(1).WithLogger(zerologAdapter{})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	wrapped := &DB{DB: db}
	if !c.InMemory && c.GCInterval > 0 {
		wrapped.stop = make(chan struct{})
		wrapped.done = make(chan struct{})
		go wrapped.runGC(c.GCInterval, c.GCRatio)
	}
	return wrapped, nil
}

func (d *DB) runGC(interval time.Duration, ratio float64) {
	defer close(d.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			// ErrNoRewrite only means there was nothing to collect.
			if err := d.RunValueLogGC(ratio); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				logx.Warn().Err(err).Str("component", "badger").Msg("value log GC failed")
			}
		}
	}
}

// Close stops the GC loop and closes the database.
func (d *DB) Close() error {
	d.stopOnce.Do(func() {
		if d.stop != nil {
			close(d.stop)
			<-d.done
		}
	})
	return d.DB.Close()
}
