package graph

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/Wex47/Orbi/internal/agent/graph/nodes"
	"github.com/Wex47/Orbi/internal/agent/model"
	logx "github.com/Wex47/Orbi/pkg/logger"
)

// StageName identifies one step of the turn pipeline.
type StageName string

const (
	StageSummarize StageName = "summarize"
	StageRouter    StageName = nodes.StageRouter
	StageDirect    StageName = nodes.StageDirect
	StageExecutor  StageName = nodes.StageExecutor
	StageVerifier  StageName = nodes.StageVerifier
	StageOffTopic  StageName = nodes.StageOffTopic
	StageFinalizer StageName = nodes.StageFinalizer

	End StageName = "__end__"
)

// Handler is one stage: it reads the state and returns the fields it changes.
type Handler func(ctx context.Context, s *model.ConversationState) (model.Update, error)

type transition struct {
	handler Handler
	next    func(s *model.ConversationState) StageName
	// targets lists every value next may return.
	targets []StageName
}

func always(stage StageName) (func(*model.ConversationState) StageName, []StageName) {
	return func(*model.ConversationState) StageName { return stage }, []StageName{stage}
}

// nextAfterRouter is the only branch of the pipeline. An unset or unknown
// route takes the executor path.
func nextAfterRouter(route model.Route) StageName {
	switch route {
	case model.RouteDirect:
		return StageDirect
	case model.RouteOffTopic:
		return StageOffTopic
	default:
		return StageExecutor
	}
}

// Pipeline runs a validated transition table against one state.
type Pipeline struct {
	start    StageName
	table    map[StageName]transition
	maxSteps int
}

// newPipeline rejects tables with missing stages, cycles, unreachable
// stages or no path to End.
func newPipeline(start StageName, table map[StageName]transition) (*Pipeline, error) {
	if _, ok := table[start]; !ok {
		return nil, fmt.Errorf("start stage %q is not in the table", start)
	}
	for name, t := range table {
		if t.handler == nil || t.next == nil {
			return nil, fmt.Errorf("stage %q has no handler or next", name)
		}
		if len(t.targets) == 0 {
			return nil, fmt.Errorf("stage %q has no targets", name)
		}
		for _, target := range t.targets {
			if _, ok := table[target]; !ok && target != End {
				return nil, fmt.Errorf("stage %q points to unknown stage %q", name, target)
			}
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	marks := make(map[StageName]int, len(table))
	reachesEnd := false
	var visit func(StageName) error
	visit = func(name StageName) error {
		if name == End {
			reachesEnd = true
			return nil
		}
		switch marks[name] {
		case visiting:
			return fmt.Errorf("cycle through stage %q", name)
		case done:
			return nil
		}
		marks[name] = visiting
		for _, target := range table[name].targets {
			if err := visit(target); err != nil {
				return err
			}
		}
		marks[name] = done
		return nil
	}
	if err := visit(start); err != nil {
		return nil, err
	}
	if !reachesEnd {
		return nil, fmt.Errorf("no path from %q to the end", start)
	}
	for name := range table {
		if marks[name] != done {
			return nil, fmt.Errorf("stage %q is unreachable", name)
		}
	}

	// Acyclic, so a run can never take more steps than there are stages.
	return &Pipeline{start: start, table: table, maxSteps: len(table)}, nil
}

// Run executes stages from start to End, merging every update into s.
// The first stage error stops the run. Cancelling ctx does not stop it
// between stages.
func (p *Pipeline) Run(ctx context.Context, s *model.ConversationState) error {
	current := p.start
	for steps := 0; current != End; steps++ {
		if steps >= p.maxSteps {
			return fmt.Errorf("pipeline exceeded %d steps at stage %q", p.maxSteps, current)
		}
		t := p.table[current]
		started := time.Now()
		u, err := t.handler(ctx, s)
		if err != nil {
			return fmt.Errorf("stage %s: %w", current, err)
		}
		s.Apply(u)

		next := t.next(s)
		if !slices.Contains(t.targets, next) {
			return fmt.Errorf("stage %s: undeclared next stage %q", current, next)
		}
		logx.Debug().
			Str("stage", string(current)).
			Str("next", string(next)).
			Dur("took", time.Since(started)).
			Msg("Stage done")
		current = next
	}
	return nil
}
