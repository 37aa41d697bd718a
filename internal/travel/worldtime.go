package travel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Wex47/Orbi/internal/retry"
	"github.com/Wex47/Orbi/pkg/httpclient"
)

var (
	ErrInvalidTimezone = errors.New("invalid timezone format, expected Area/Location")
	ErrUnknownTimezone = errors.New("unknown timezone")
)

// WorldTimePolicy retries transport failures and 5xx answers, three attempts in total.
var WorldTimePolicy = retry.Policy{
	Name:            "worldtime",
	MaxAttempts:     3,
	InitialInterval: 200 * time.Millisecond,
	MaxInterval:     time.Second,
	Retryable:       httpclient.Transient,
}

// TimeClient asks WorldTimeAPI for the current time in a timezone.
type TimeClient struct {
	http    *http.Client
	baseURL string
	policy  retry.Policy
}

func NewTimeClient(client *http.Client, baseURL string) *TimeClient {
	return &TimeClient{http: client, baseURL: strings.TrimRight(baseURL, "/"), policy: WorldTimePolicy}
}

// WithPolicy replaces the retry policy.
func (c *TimeClient) WithPolicy(p retry.Policy) *TimeClient {
	out := *c
	out.policy = p
	return &out
}

// CurrentTime returns the WorldTimeAPI payload for timezone as-is.
func (c *TimeClient) CurrentTime(ctx context.Context, timezone string) (map[string]any, error) {
	timezone = strings.TrimSpace(timezone)
	if !strings.Contains(timezone, "/") {
		return nil, ErrInvalidTimezone
	}

	segments := strings.Split(timezone, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	endpoint := c.baseURL + "/timezone/" + strings.Join(segments, "/")

	return retry.Do(ctx, c.policy, func(ctx context.Context) (map[string]any, error) {
		req, err := http.NewRequest(http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		var out map[string]any
		if err := httpclient.DoJSON(ctx, c.http, req, &out); err != nil {
			if httpclient.StatusCode(err) == http.StatusNotFound {
				return nil, fmt.Errorf("%w %q: %w", ErrUnknownTimezone, timezone, err)
			}
			return nil, fmt.Errorf("worldtimeapi: %w", err)
		}
		return out, nil
	})
}
