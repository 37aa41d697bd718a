package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/Wex47/Orbi/internal/agent/model"
	"github.com/Wex47/Orbi/internal/metrics"
	"github.com/Wex47/Orbi/internal/travel"
	logx "github.com/Wex47/Orbi/pkg/logger"
)

const (
	ToolPlaceClimate       = "get_place_climate"
	ToolSearchFlights      = "search_flights"
	ToolCurrentTime        = "get_current_time"
	ToolLocalDatetime      = "get_current_local_datetime"
	ToolTravelWarnings     = "get_travel_warnings"
	ToolIsraeliEmbassies   = "get_israeli_embassies"
	ToolVisaRequirements   = "get_visa_requirements"
	localDatetimeLayout    = "2006-01-02 15:04:05"
	unknownToolErrorPrefix = "unknown_tool"
)

// Deps are the collaborators behind the tools. A nil client leaves its tool out.
type Deps struct {
	Climate   *travel.ClimateClient
	Flights   *travel.FlightClient
	Time      *travel.TimeClient
	Warnings  *travel.WarningsClient
	Embassies *travel.EmbassiesClient
	Visa      *travel.VisaClient
	Now       func() time.Time
}

// New returns the travel tool set. Every tool is guarded so a failure
// reaches the model as an error result instead of aborting the loop.
func New(deps Deps) []tool.BaseTool {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	var out []tool.InvokableTool
	if deps.Climate != nil {
		out = append(out, createPlaceClimateTool(deps.Climate))
	}
	if deps.Flights != nil {
		out = append(out, createSearchFlightsTool(deps.Flights))
	}
	if deps.Time != nil {
		out = append(out, createCurrentTimeTool(deps.Time))
	}
	out = append(out, createLocalDatetimeTool(deps.Now))
	if deps.Warnings != nil {
		out = append(out, createTravelWarningsTool(deps.Warnings))
	}
	if deps.Embassies != nil {
		out = append(out, createEmbassiesTool(deps.Embassies))
	}
	if deps.Visa != nil {
		out = append(out, createVisaTool(deps.Visa))
	}

	tools := make([]tool.BaseTool, 0, len(out))
	for _, t := range out {
		tools = append(tools, Guard(t))
	}
	return tools
}

// GetToolInfos collects the schema of every tool.
func GetToolInfos(ctx context.Context, tools []tool.BaseTool) ([]*schema.ToolInfo, error) {
	infos := make([]*schema.ToolInfo, 0, len(tools))
	for _, t := range tools {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

type guardedTool struct {
	tool.InvokableTool
}

// Guard turns a returned error into a {"status":"error"} result and counts the call.
func Guard(t tool.InvokableTool) tool.InvokableTool {
	return &guardedTool{InvokableTool: t}
}

func (g *guardedTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	name := "unknown"
	if info, err := g.Info(ctx); err == nil && info != nil {
		name = info.Name
	}

	out, err := g.InvokableTool.InvokableRun(ctx, argumentsInJSON, opts...)
	if err == nil {
		metrics.ToolCalls.WithLabelValues(name, metrics.OutcomeOK).Inc()
		return out, nil
	}

	metrics.ToolCalls.WithLabelValues(name, metrics.OutcomeError).Inc()
	logx.Warn().Err(err).Str("tool_name", name).Msg("Tool failed; returning error result")
	b, mErr := json.Marshal(model.ToolFailed(err))
	if mErr != nil {
		return fmt.Sprintf(`{"status":"error","error":%q}`, err.Error()), nil
	}
	return string(b), nil
}

// UnknownTool answers hallucinated or malformed tool calls with a structured result.
func UnknownTool(ctx context.Context, name, input string) (string, error) {
	logx.Warn().
		Str("tool_name", name).
		Str("arguments", input).
		Msg("Unknown or invalid tool call; returning fallback result")
	metrics.ToolCalls.WithLabelValues("unknown", metrics.OutcomeError).Inc()
	return fmt.Sprintf(`{"status":"error","error":"%s","name":%q}`, unknownToolErrorPrefix, name), nil
}

// integer arguments that models sometimes send as strings
var intArguments = map[string]struct{ min, max int }{
	"adults":      {1, 9},
	"max_results": {1, 20},
}

// SanitizeArguments trims string values and coerces numeric arguments.
// It never fails: input that is not a JSON object passes through unchanged.
func SanitizeArguments(ctx context.Context, name, arguments string) (string, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(arguments), &m); err != nil {
		return arguments, nil
	}

	for k, v := range m {
		if bounds, ok := intArguments[k]; ok {
			switch vv := v.(type) {
			case float64:
				m[k] = clampInt(int(vv), bounds.min, bounds.max)
			case string:
				if n, err := strconv.Atoi(strings.TrimSpace(vv)); err == nil {
					m[k] = clampInt(n, bounds.min, bounds.max)
				} else {
					delete(m, k)
				}
			default:
				delete(m, k)
			}
			continue
		}
		switch vv := v.(type) {
		case string:
			m[k] = strings.TrimSpace(vv)
		case float64:
			if k == "month" {
				m[k] = strconv.Itoa(int(vv))
			}
		}
	}

	b, err := json.Marshal(m)
	if err != nil {
		return arguments, nil
	}
	return string(b), nil
}

// clampInt returns v limited to [min, max].
func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
