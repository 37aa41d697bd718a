package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/google/uuid"

	"github.com/Wex47/Orbi/internal/agent/graph/nodes"
	"github.com/Wex47/Orbi/internal/agent/graph/observers"
	"github.com/Wex47/Orbi/internal/agent/memory"
	"github.com/Wex47/Orbi/internal/agent/model"
	errx "github.com/Wex47/Orbi/internal/core/error"
	"github.com/Wex47/Orbi/internal/metrics"
	logx "github.com/Wex47/Orbi/pkg/logger"
)

// Runner executes one conversation turn for the public QueryInput.
type Runner interface {
	Invoke(ctx context.Context, in model.QueryInput) (string, error)
}

// Config holds everything needed to compose the turn pipeline end-to-end.
type Config struct {
	Models       nodes.ChatModelConfig
	Memory       model.MemoryConfig
	Conversation model.ConversationConfig
	Store        model.StateStore
	Tools        nodes.ToolProvider

	// ChatModels skips model construction when set.
	ChatModels *nodes.ChatModels
	Now        func() time.Time
}

// GraphConfig is the wired set of collaborators the pipeline is built from.
type GraphConfig struct {
	ChatModels   *nodes.ChatModels
	Compactor    *memory.Compactor
	Tools        nodes.ToolProvider
	ToolMaxCalls int
	Now          func() time.Time
}

type graphRunner struct {
	store    model.StateStore
	pipeline *Pipeline
	locks    *threadLocks
}

// Invoke loads the thread, runs the pipeline and saves the result while
// holding the thread's lock. Nothing is saved when a stage or the save fails.
func (r *graphRunner) Invoke(ctx context.Context, in model.QueryInput) (answer string, err error) {
	threadID := strings.TrimSpace(in.ConversationID)
	if threadID == "" {
		return "", errx.ErrEmptyThreadID
	}

	started := time.Now()
	turnID := uuid.NewString()
	turnLog := logx.With().
		Str("conversation_id", threadID).
		Str("turn_id", turnID).
		Logger()
	ctx = einocb.InitCallbacks(ctx, &einocb.RunInfo{Name: turnID, Type: "Turn"}, observers.NewPromptCallbacks())

	unlock, err := r.locks.lock(ctx, threadID)
	if err != nil {
		return "", err
	}
	defer unlock()

	// once the lock is held the turn runs to completion or failure
	ctx = context.WithoutCancel(ctx)

	var route model.Route
	defer func() {
		metrics.ObserveTurn(string(route), started, err)
		ev := turnLog.Info()
		if err != nil {
			ev = turnLog.Error().Err(err)
		}
		ev.Str("route", string(route)).Dur("took", time.Since(started)).Msg("Turn finished")
	}()

	state, err := r.store.Load(ctx, threadID)
	if err != nil {
		return "", fmt.Errorf("load conversation: %w", err)
	}
	state.BeginTurn(in.Query)

	err = r.pipeline.Run(ctx, state)
	route = state.Route
	if err != nil {
		return "", err
	}

	if err = r.store.Save(ctx, threadID, state); err != nil {
		return "", fmt.Errorf("save conversation: %w", err)
	}
	return state.FinalAnswer, nil
}

// BuildResponseGraph composes chat models, memory, stages and the store, and returns a Runner.
func BuildResponseGraph(ctx context.Context, cfg Config) (Runner, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("conversation store is nil")
	}

	cms := cfg.ChatModels
	if cms == nil {
		var err error
		if cms, err = nodes.NewChatModels(ctx, cfg.Models); err != nil {
			return nil, err
		}
	}

	pipeline, err := BuildGraph(ctx, &GraphConfig{
		ChatModels:   cms,
		Compactor:    memory.NewCompactor(cms.Main, cfg.Memory, memory.NewTokenCounter(cfg.Memory.Tokenizer)),
		Tools:        cfg.Tools,
		ToolMaxCalls: cfg.Conversation.Tools.MaxCalls,
		Now:          cfg.Now,
	})
	if err != nil {
		return nil, err
	}

	logx.Debug().Msg("Response graph built successfully")
	return &graphRunner{store: cfg.Store, pipeline: pipeline, locks: newThreadLocks()}, nil
}

// BuildGraph wires the stages into the transition table
//
//	summarize → router → {direct | executor → verifier | off_topic} → finalizer → end
//
// and validates it. The executor is not built until its first turn.
func BuildGraph(ctx context.Context, config *GraphConfig) (*Pipeline, error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	cms := config.ChatModels
	if cms == nil || cms.Main == nil || cms.Light == nil || cms.Verifier == nil {
		return nil, fmt.Errorf("chat models are not properly initialized")
	}
	if config.Compactor == nil {
		return nil, fmt.Errorf("memory compactor is nil")
	}

	router := nodes.NewRouter(cms.Light, cms.LightModelName)
	direct := nodes.NewDirectResponder(cms.Light, cms.LightModelName)
	executor := nodes.NewExecutor(nodes.ExecutorConfig{
		ChatModel:    cms.Main,
		ModelName:    cms.MainModelName,
		Tools:        config.Tools,
		MaxToolCalls: config.ToolMaxCalls,
		Now:          config.Now,
	})
	verifier := nodes.NewVerifier(cms.Verifier, cms.VerifierModelName)

	table := map[StageName]transition{}
	add := func(name StageName, h Handler, next func(*model.ConversationState) StageName, targets []StageName) {
		table[name] = transition{handler: h, next: next, targets: targets}
	}

	next, targets := always(StageRouter)
	add(StageSummarize, config.Compactor.Compact, next, targets)

	add(StageRouter, router.Run,
		func(s *model.ConversationState) StageName { return nextAfterRouter(s.Route) },
		[]StageName{StageDirect, StageExecutor, StageOffTopic})

	next, targets = always(StageFinalizer)
	add(StageDirect, direct.Run, next, targets)
	add(StageOffTopic, nodes.OffTopic, next, targets)
	add(StageVerifier, verifier.Run, next, targets)

	next, targets = always(StageVerifier)
	add(StageExecutor, executor.Run, next, targets)

	next, targets = always(End)
	add(StageFinalizer, nodes.Finalize, next, targets)

	pipeline, err := newPipeline(StageSummarize, table)
	if err != nil {
		logx.Error().Err(err).Msg("Error validating pipeline")
		return nil, fmt.Errorf("error validating pipeline: %w", err)
	}
	return pipeline, nil
}
