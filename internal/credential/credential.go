package credential

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Wex47/Orbi/internal/metrics"
	logx "github.com/Wex47/Orbi/pkg/logger"
)

// DefaultSafetyMargin is subtracted from the provider expiry before a token is stored.
const DefaultSafetyMargin = 60 * time.Second

// ErrEmptyToken is returned when a source answers without an access token.
var ErrEmptyToken = errors.New("credential source returned an empty access token")

// Token is an access token with the expiry reported by the provider.
type Token struct {
	AccessToken string
	Expiry      time.Time
}

// Source fetches a fresh token from the provider.
type Source interface {
	Fetch(ctx context.Context) (Token, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (Token, error)

func (f SourceFunc) Fetch(ctx context.Context) (Token, error) { return f(ctx) }

type Option func(*Cache)

// WithSafetyMargin overrides DefaultSafetyMargin.
func WithSafetyMargin(d time.Duration) Option {
	return func(c *Cache) { c.margin = d }
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// Cache holds at most one token and refreshes it shortly before it expires.
// An expired token is never served: a failed refresh is returned to the caller.
type Cache struct {
	src    Source
	margin time.Duration
	now    func() time.Time

	mu          sync.Mutex
	token       Token
	validBefore time.Time
}

func New(src Source, opts ...Option) *Cache {
	c := &Cache{src: src, margin: DefaultSafetyMargin, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached access token, refreshing it when the stored expiry
// has been reached. The mutex keeps at most one refresh in flight.
func (c *Cache) Get(ctx context.Context) (Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token.AccessToken != "" && c.now().Before(c.validBefore) {
		return c.token, nil
	}

	tok, err := c.src.Fetch(ctx)
	if err == nil && tok.AccessToken == "" {
		err = ErrEmptyToken
	}
	metrics.CredentialRefreshes.WithLabelValues(metrics.Outcome(err)).Inc()
	if err != nil {
		logx.Warn().Err(err).Msg("access token refresh failed")
		return Token{}, err
	}

	c.token = tok
	c.validBefore = tok.Expiry.Add(-c.margin)
	logx.Debug().Time("valid_before", c.validBefore).Msg("access token refreshed")
	return c.token, nil
}

// Invalidate drops the cached token so the next Get refreshes.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.token = Token{}
	c.validBefore = time.Time{}
	c.mu.Unlock()
}
