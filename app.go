package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Wex47/Orbi/internal/agent/graph"
	"github.com/Wex47/Orbi/internal/agent/graph/nodes"
	"github.com/Wex47/Orbi/internal/agent/graph/tools"
	"github.com/Wex47/Orbi/internal/agent/model"
	"github.com/Wex47/Orbi/internal/agent/repo"
	"github.com/Wex47/Orbi/internal/core"
	"github.com/Wex47/Orbi/internal/credential"
	"github.com/Wex47/Orbi/internal/datacache"
	"github.com/Wex47/Orbi/internal/metrics"
	"github.com/Wex47/Orbi/internal/travel"
	pkgbadger "github.com/Wex47/Orbi/pkg/badger"
	"github.com/Wex47/Orbi/pkg/httpclient"
	logx "github.com/Wex47/Orbi/pkg/logger"
	pkgredis "github.com/Wex47/Orbi/pkg/redis"
)

// AppConfig defines all configurable parameters, sourced from environment
// variables (loaded from .env for local runs).
type AppConfig struct {
	Environment core.Environment `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string           `envconfig:"LOG_LEVEL"`

	// Infrastructure
	Redis   pkgredis.Config
	Badger  pkgbadger.Config
	HTTP    httpclient.Config
	Metrics metrics.Config

	// LLM providers
	GeminiAPIKey     string `envconfig:"GEMINI_API_KEY"`
	GeminiBaseURL    string `envconfig:"GEMINI_BASE_URL"`
	AnthropicAPIKey  string `envconfig:"ANTHROPIC_API_KEY"`
	AnthropicBaseURL string `envconfig:"ANTHROPIC_BASE_URL"`

	// Agent configs
	MainModel     model.MainModelConfig
	LightModel    model.LightModelConfig
	VerifierModel model.VerifierModelConfig
	Memory        model.MemoryConfig
	Conversation  model.ConversationConfig
	Travel        travel.Config
}

type app struct {
	runner  graph.Runner
	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logx.Warn().Err(err).Msg("Error during shutdown")
		}
	}
}

func newApp(ctx context.Context, cfg AppConfig) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	go func() {
		if err := cfg.Metrics.Serve(ctx); err != nil {
			logx.Error().Err(err).Msg("Metrics server stopped")
		}
	}()

	var rdb *goredis.Client
	var stateDB *pkgbadger.DB
	switch strings.ToLower(cfg.Conversation.StateBackend) {
	case "", repo.BackendRedis:
		if rdb, err = cfg.Redis.New(ctx); err != nil {
			return nil, fmt.Errorf("failed to initialise redis client: %w", err)
		}
		a.closers = append(a.closers, rdb.Close)
		logx.Info().Msg("Connected to Redis successfully")
	case repo.BackendBadger:
		if stateDB, err = cfg.Badger.Open(); err != nil {
			return nil, fmt.Errorf("failed to open badger: %w", err)
		}
		a.closers = append(a.closers, stateDB.Close)
	}

	var cmdable goredis.Cmdable
	if rdb != nil {
		cmdable = rdb
	}
	store, err := newStateStore(cfg.Conversation, cmdable, stateDB)
	if err != nil {
		return nil, err
	}

	httpClient := cfg.HTTP.New()
	cacheBackend, err := openCacheBackend(cfg.Travel, cfg.Badger, a)
	if err != nil {
		return nil, err
	}

	runner, err := graph.BuildResponseGraph(ctx, graph.Config{
		Models: nodes.ChatModelConfig{
			GeminiAPIKey:     cfg.GeminiAPIKey,
			GeminiBaseURL:    cfg.GeminiBaseURL,
			AnthropicAPIKey:  cfg.AnthropicAPIKey,
			AnthropicBaseURL: cfg.AnthropicBaseURL,
			HTTPClient:       httpClient,
			Main:             cfg.MainModel.ChatModel(),
			Light:            cfg.LightModel.ChatModel(),
			Verifier:         cfg.VerifierModel.ChatModel(),
		},
		Memory:       cfg.Memory,
		Conversation: cfg.Conversation,
		Store:        store,
		Tools:        toolProvider(cfg.Travel, httpClient, cacheBackend),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build graph: %w", err)
	}
	a.runner = runner
	return a, nil
}

func newStateStore(cfg model.ConversationConfig, rdb goredis.Cmdable, db *pkgbadger.DB) (model.StateStore, error) {
	if db != nil {
		return repo.NewStateStore(cfg.StateBackend, rdb, db.DB, cfg.TTL)
	}
	return repo.NewStateStore(cfg.StateBackend, rdb, nil, cfg.TTL)
}

// openCacheBackend keeps dataset snapshots in a badger directory so the
// stale fallback survives restarts. An empty DATA_CACHE_DIR keeps them in memory.
func openCacheBackend(cfg travel.Config, badgerCfg pkgbadger.Config, a *app) (datacache.Backend, error) {
	if cfg.DataCacheDir == "" {
		return datacache.NewMemoryBackend(), nil
	}
	cacheCfg := pkgbadger.Config{
		Path:       cfg.DataCacheDir,
		GCInterval: badgerCfg.GCInterval,
		GCRatio:    badgerCfg.GCRatio,
	}
	db, err := cacheCfg.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open data cache: %w", err)
	}
	a.closers = append(a.closers, db.Close)
	return datacache.NewBadgerBackend(db.DB), nil
}

// toolProvider builds the travel clients on first use. Tools whose
// credentials are missing are left out.
func toolProvider(cfg travel.Config, client *http.Client, backend datacache.Backend) nodes.ToolProvider {
	return func(ctx context.Context) ([]tool.BaseTool, error) {
		if client == nil {
			return nil, errors.New("http client is nil")
		}
		deps := tools.Deps{
			Climate:   travel.NewClimateClient(client, cfg.OpenMeteoGeocodeURL, cfg.OpenMeteoArchiveURL),
			Time:      travel.NewTimeClient(client, cfg.WorldTimeAPIURL),
			Warnings:  travel.NewWarningsClient(client, cfg.GovILAPIURL, cfg.WarningsTTL, datacache.WithBackend(backend)),
			Embassies: travel.NewEmbassiesClient(client, cfg.GovILAPIURL, cfg.EmbassiesTTL, datacache.WithBackend(backend)),
		}
		if cfg.AmadeusAPIKey != "" && cfg.AmadeusAPISecret != "" {
			creds := credential.New(credential.NewClientCredentials(cfg.AmadeusAPIKey, cfg.AmadeusAPISecret, cfg.AmadeusTokenURL, client))
			deps.Flights = travel.NewFlightClient(client, cfg.AmadeusBaseURL, creds)
		} else {
			logx.Warn().Msg("AMADEUS_API_KEY/AMADEUS_API_SECRET not set; flight search disabled")
		}
		if cfg.RapidAPIKey != "" {
			deps.Visa = travel.NewVisaClient(client, cfg.VisaAPIURL, cfg.RapidAPIKey)
		} else {
			logx.Warn().Msg("RAPIDAPI_KEY not set; visa requirements disabled")
		}
		return tools.New(deps), nil
	}
}
