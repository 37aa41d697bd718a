package memory

import (
	"strings"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/Wex47/Orbi/internal/agent/model"
	logx "github.com/Wex47/Orbi/pkg/logger"
)

// perMessageTokens approximates role and framing overhead of one message.
const perMessageTokens = 3

// TokenCounter estimates model tokens for plain text.
type TokenCounter interface {
	Count(text string) int
	// Truncate cuts text to at most maxTokens tokens.
	Truncate(text string, maxTokens int) string
}

// ApproxCounter assumes four characters per token.
type ApproxCounter struct{}

func (ApproxCounter) Count(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}

func (ApproxCounter) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	limit := maxTokens * 4
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	return string([]rune(text)[:limit])
}

// TiktokenCounter counts with a BPE encoding such as cl100k_base.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

func (c *TiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

func (c *TiktokenCounter) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	ids := c.enc.Encode(text, nil, nil)
	if len(ids) <= maxTokens {
		return text
	}
	return c.enc.Decode(ids[:maxTokens])
}

// NewTokenCounter returns the counter named by MEMORY_TOKENIZER. A tiktoken
// encoding that cannot be loaded falls back to the approximate counter.
func NewTokenCounter(name string) TokenCounter {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "tiktoken", "cl100k_base":
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			logx.Warn().Err(err).Msg("tiktoken encoding unavailable, using approximate token counts")
			return ApproxCounter{}
		}
		return &TiktokenCounter{enc: enc}
	default:
		return ApproxCounter{}
	}
}

// CountEntries sums the tokens of every entry plus per-message overhead.
func CountEntries(c TokenCounter, entries model.Log) int {
	total := 0
	for _, e := range entries {
		total += c.Count(e.Text()) + perMessageTokens
	}
	return total
}
