package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	errx "github.com/Wex47/Orbi/internal/core/error"
)

const (
	DefaultUserAgent = "Orbi/1.0"

	maxErrorBody = 4 << 10
	drainLimit   = 64 << 10
)

// Config is populated by envconfig; HTTP_TIMEOUT bounds each upstream call.
type Config struct {
	Timeout   time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s"`
	UserAgent string        `envconfig:"HTTP_USER_AGENT" default:"Orbi/1.0"`
}

// New builds a client with pooled keep-alive connections and a default User-Agent.
func (c Config) New() *http.Client {
	ua := c.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	t := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   5,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{
		Timeout:   c.Timeout,
		Transport: &userAgentTransport{base: t, ua: ua},
	}
}

type userAgentTransport struct {
	base http.RoundTripper
	ua   string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.ua)
	}
	return t.base.RoundTrip(req)
}

// ErrTransport marks failures where no HTTP answer was received.
var ErrTransport = errors.New("transport error")

// StatusError is a non-2xx upstream answer.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// StatusCode returns the upstream HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// Transient reports whether err is worth retrying: a transport failure or
// a 5xx answer. Malformed bodies and 4xx answers are not.
func Transient(err error) bool {
	return errors.Is(err, ErrTransport) || StatusCode(err) >= 500
}

// DoJSON sends req and decodes a 2xx JSON body into out (which may be nil).
// Failures come back as *errx.Error with the upstream status; non-2xx
// answers additionally wrap a *StatusError.
func DoJSON(ctx context.Context, client *http.Client, req *http.Request, out any) error {
	if client == nil {
		client = http.DefaultClient
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		return errx.WrapUpstream(fmt.Errorf("%w: %w", ErrTransport, err), 0)
	}
	defer DrainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return errx.WrapUpstream(&StatusError{StatusCode: resp.StatusCode, Body: string(body)}, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errx.WrapUpstream(fmt.Errorf("decode response: %w", err), resp.StatusCode)
	}
	return nil
}

// DrainAndClose lets the transport reuse the connection.
func DrainAndClose(rc io.ReadCloser) {
	if rc == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, drainLimit))
	_ = rc.Close()
}
