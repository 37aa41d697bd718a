package model

import "time"

// ================ Config ================
type ConversationConfig struct {
	TTL          time.Duration `envconfig:"CONVERSATION_TTL" default:"168h"`
	StateBackend string        `envconfig:"STATE_BACKEND" default:"redis"`
	Tools        struct {
		MaxCalls int `envconfig:"CONVERSATION_TOOL_MAX_CALLS" default:"10"`
	}
}

// Providers understood by nodes.NewChatModels.
const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

// ChatModelConfig describes one reasoning-call handle.
type ChatModelConfig struct {
	Provider    string
	Model       string
	MaxTokens   int
	Temperature float32
}

// Configured reports whether the handle was set up at all.
func (c ChatModelConfig) Configured() bool {
	return c.Model != ""
}

type MainModelConfig struct {
	Provider    string  `envconfig:"MAIN_PROVIDER" default:"anthropic"`
	Model       string  `envconfig:"MAIN_MODEL" default:"claude-sonnet-4-5-20250929"`
	MaxTokens   int     `envconfig:"MAIN_MAX_TOKENS" default:"4096"`
	Temperature float32 `envconfig:"MAIN_TEMPERATURE" default:"0.2"`
}

type LightModelConfig struct {
	Provider    string  `envconfig:"LIGHT_PROVIDER" default:"anthropic"`
	Model       string  `envconfig:"LIGHT_MODEL" default:"claude-haiku-4-5-20251001"`
	MaxTokens   int     `envconfig:"LIGHT_MAX_TOKENS" default:"1024"`
	Temperature float32 `envconfig:"LIGHT_TEMPERATURE" default:"0.2"`
}

// VerifierModelConfig is optional; an empty model falls back to the light handle.
type VerifierModelConfig struct {
	Provider    string  `envconfig:"VERIFIER_PROVIDER" default:"gemini"`
	Model       string  `envconfig:"VERIFIER_MODEL"`
	MaxTokens   int     `envconfig:"VERIFIER_MAX_TOKENS" default:"256"`
	Temperature float32 `envconfig:"VERIFIER_TEMPERATURE" default:"0"`
}

func (c MainModelConfig) ChatModel() ChatModelConfig { return ChatModelConfig(c) }

func (c LightModelConfig) ChatModel() ChatModelConfig { return ChatModelConfig(c) }

func (c VerifierModelConfig) ChatModel() ChatModelConfig { return ChatModelConfig(c) }

type MemoryConfig struct {
	SummaryTokensThreshold int    `envconfig:"SUMMARY_TOKENS_THRESHOLD" default:"2000"`
	MaxSummaryInputTokens  int    `envconfig:"MAX_SUMMARY_INPUT_TOKENS" default:"4000"`
	MaxSummaryOutputTokens int    `envconfig:"MAX_SUMMARY_OUTPUT_TOKENS" default:"512"`
	KeepRecent             int    `envconfig:"MEMORY_KEEP_RECENT" default:"4"`
	Tokenizer              string `envconfig:"MEMORY_TOKENIZER" default:"approx"`
}
