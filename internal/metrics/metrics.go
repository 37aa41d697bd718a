package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	logx "github.com/Wex47/Orbi/pkg/logger"
)

// Config is populated by envconfig. An empty Addr disables the endpoint.
type Config struct {
	Addr string `envconfig:"METRICS_ADDR"`
}

// Registry is private so tests and embedders never collide with the default one.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	Turns = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "orbi_turns_total",
		Help: "Conversation turns by route and outcome",
	}, []string{"route", "outcome"})

	TurnDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "orbi_turn_duration_seconds",
		Help:    "Wall time of one conversation turn",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	DataCacheEvents = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "orbi_datacache_events_total",
		Help: "Data cache hits, refreshes, stale serves and failures",
	}, []string{"cache", "event"})

	CredentialRefreshes = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "orbi_credential_refresh_total",
		Help: "Access token refreshes by outcome",
	}, []string{"outcome"})

	ToolCalls = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "orbi_tool_calls_total",
		Help: "Tool invocations by tool and outcome",
	}, []string{"tool", "outcome"})
)

// Data cache event labels.
const (
	EventHit     = "hit"
	EventRefresh = "refresh"
	EventStale   = "stale"
	EventFailure = "failure"
)

// Outcome labels.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Outcome maps an error to its label.
func Outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}

// ObserveTurn records one finished turn.
func ObserveTurn(route string, started time.Time, err error) {
	if route == "" {
		route = "none"
	}
	Turns.WithLabelValues(route, Outcome(err)).Inc()
	TurnDuration.Observe(time.Since(started).Seconds())
}

// Handler exposes the private registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

// Serve runs the /metrics endpoint until ctx is done.
func (c Config) Serve(ctx context.Context) error {
	if c.Addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: c.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logx.Info().Str("addr", c.Addr).Msg("serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
