package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/Wex47/Orbi/internal/agent/graph/prompts"
	"github.com/Wex47/Orbi/internal/agent/model"
	logx "github.com/Wex47/Orbi/pkg/logger"
)

const defaultKeepRecent = 4

// Compactor keeps a running summary of the older part of the conversation
// once the working view grows past the configured threshold.
type Compactor struct {
	chatModel einomodel.BaseChatModel
	counter   TokenCounter
	cfg       model.MemoryConfig
	now       func() time.Time
}

func NewCompactor(chatModel einomodel.BaseChatModel, cfg model.MemoryConfig, counter TokenCounter) *Compactor {
	if counter == nil {
		counter = ApproxCounter{}
	}
	if cfg.KeepRecent <= 0 {
		cfg.KeepRecent = defaultKeepRecent
	}
	return &Compactor{chatModel: chatModel, counter: counter, cfg: cfg, now: time.Now}
}

// Compact returns an empty update while the view is within the threshold.
// Otherwise it folds everything but the most recent messages into the
// running summary. Log entries are never removed.
func (c *Compactor) Compact(ctx context.Context, s *model.ConversationState) (model.Update, error) {
	view := s.View()
	tokens := CountEntries(c.counter, view)
	if tokens <= c.cfg.SummaryTokensThreshold {
		return model.Update{}, nil
	}

	prev, _ := s.Summary()
	from := min(max(prev.SummarizedThrough, 0), len(s.Messages))
	cut := c.cutIndex(s.Messages)
	if cut <= from {
		logx.Debug().Int("view_tokens", tokens).Msg("over threshold but nothing old enough to summarise")
		return model.Update{}, nil
	}

	pending := s.Messages[from:cut]
	transcript, taken := c.fitInput(prev.Summary, pending)
	if taken == 0 {
		logx.Warn().Int("view_tokens", tokens).Msg("oldest message does not fit the summary input budget, skipping compaction")
		return model.Update{}, nil
	}
	if taken < len(pending) {
		logx.Debug().Int("deferred", len(pending)-taken).Msg("summary input capped, newer messages left for a later pass")
	}
	through := from + taken

	instruction, err := prompts.RenderSummary(ctx, prev.Summary, transcript)
	if err != nil {
		return model.Update{}, err
	}

	var opts []einomodel.Option
	if c.cfg.MaxSummaryOutputTokens > 0 {
		opts = append(opts, einomodel.WithMaxTokens(c.cfg.MaxSummaryOutputTokens))
	}
	out, err := c.chatModel.Generate(ctx, []*schema.Message{schema.UserMessage(instruction)}, opts...)
	if err != nil {
		return model.Update{}, fmt.Errorf("summarise conversation: %w", err)
	}

	summary := strings.TrimSpace(out.Content)
	if c.cfg.MaxSummaryOutputTokens > 0 {
		summary = c.counter.Truncate(summary, c.cfg.MaxSummaryOutputTokens)
	}
	if summary == "" {
		logx.Warn().Msg("summariser returned no text, keeping previous summary")
		return model.Update{}, nil
	}

	rs := model.RunningSummary{
		Summary:           summary,
		SummarizedThrough: through,
		SummaryTokens:     c.counter.Count(summary),
		UpdatedAt:         c.now().UTC(),
	}
	logx.Debug().
		Int("view_tokens", tokens).
		Int("summarized_through", through).
		Int("summary_tokens", rs.SummaryTokens).
		Msg("conversation compacted")

	return model.Update{CompactedContext: map[string]model.RunningSummary{model.SummaryKey: rs}}, nil
}

// cutIndex is the first message kept verbatim: the most recent KeepRecent
// messages and never later than the latest user turn.
func (c *Compactor) cutIndex(msgs model.Log) int {
	cut := max(len(msgs)-c.cfg.KeepRecent, 0)
	for i := len(msgs) - 1; i >= 0; i-- {
		if _, ok := msgs[i].(model.UserEntry); ok {
			cut = min(cut, i)
			break
		}
	}
	return cut
}

// fitInput renders the oldest pending messages that fit within
// MaxSummaryInputTokens together with the previous summary, and reports how
// many it took. Messages past the budget stay in the view untouched.
func (c *Compactor) fitInput(previous string, pending model.Log) (string, int) {
	lines := make([]string, len(pending))
	for i, e := range pending {
		lines[i] = string(e.Role()) + ": " + e.Text()
	}
	budget := c.cfg.MaxSummaryInputTokens
	if budget <= 0 {
		return strings.Join(lines, "\n"), len(lines)
	}

	used := c.counter.Count(previous)
	taken := 0
	for _, line := range lines {
		cost := c.counter.Count(line) + perMessageTokens
		if used+cost > budget {
			break
		}
		used += cost
		taken++
	}
	return strings.Join(lines[:taken], "\n"), taken
}
