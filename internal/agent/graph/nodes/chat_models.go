package nodes

import (
	"context"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	einomodel "github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	"github.com/Wex47/Orbi/internal/agent/model"
	"github.com/Wex47/Orbi/internal/llm/anthropic"
	logx "github.com/Wex47/Orbi/pkg/logger"
)

// ChatModelConfig holds the configuration for chat model creation
type ChatModelConfig struct {
	GeminiAPIKey     string
	GeminiBaseURL    string
	AnthropicAPIKey  string
	AnthropicBaseURL string
	HTTPClient       *http.Client

	Main     model.ChatModelConfig
	Light    model.ChatModelConfig
	Verifier model.ChatModelConfig
}

// ChatModels holds the three reasoning-call handles. Verifier is the light
// handle when no verifier model is configured.
type ChatModels struct {
	Main     einomodel.ToolCallingChatModel
	Light    einomodel.ToolCallingChatModel
	Verifier einomodel.ToolCallingChatModel

	MainModelName     string
	LightModelName    string
	VerifierModelName string
}

// NewChatModels creates the main, light and (optional) verifier chat models.
func NewChatModels(ctx context.Context, config ChatModelConfig) (*ChatModels, error) {
	f := &modelFactory{cfg: config}

	main, err := f.build(ctx, "main", config.Main)
	if err != nil {
		return nil, err
	}
	light, err := f.build(ctx, "light", config.Light)
	if err != nil {
		return nil, err
	}

	cms := &ChatModels{
		Main:              main,
		Light:             light,
		Verifier:          light,
		MainModelName:     config.Main.Model,
		LightModelName:    config.Light.Model,
		VerifierModelName: config.Light.Model,
	}
	if config.Verifier.Configured() {
		verifier, err := f.build(ctx, "verifier", config.Verifier)
		if err != nil {
			return nil, err
		}
		cms.Verifier = verifier
		cms.VerifierModelName = config.Verifier.Model
	}
	return cms, nil
}

type modelFactory struct {
	cfg    ChatModelConfig
	client *genai.Client
}

func (f *modelFactory) build(ctx context.Context, handle string, mc model.ChatModelConfig) (einomodel.ToolCallingChatModel, error) {
	var (
		cm  einomodel.ToolCallingChatModel
		err error
	)
	switch mc.Provider {
	case model.ProviderGemini:
		cm, err = f.gemini(ctx, mc)
	case model.ProviderAnthropic, "":
		cm, err = f.anthropic(mc)
	default:
		err = fmt.Errorf("unknown provider %q", mc.Provider)
	}
	if err != nil {
		logx.Error().Err(err).Str("handle", handle).Str("provider", mc.Provider).Msg("Error creating chat model")
		return nil, fmt.Errorf("error creating %s model: %w", handle, err)
	}
	logx.Debug().Str("handle", handle).Str("provider", mc.Provider).Str("model", mc.Model).Msg("Chat model ready")
	return cm, nil
}

func (f *modelFactory) gemini(ctx context.Context, mc model.ChatModelConfig) (einomodel.ToolCallingChatModel, error) {
	if f.client == nil {
		clientCfg := &genai.ClientConfig{
			APIKey:     f.cfg.GeminiAPIKey,
			Backend:    genai.BackendGeminiAPI,
			HTTPClient: f.cfg.HTTPClient,
		}
		if f.cfg.GeminiBaseURL != "" {
			clientCfg.HTTPOptions.BaseURL = f.cfg.GeminiBaseURL
		}
		client, err := genai.NewClient(ctx, clientCfg)
		if err != nil {
			return nil, fmt.Errorf("error creating Gemini client: %w", err)
		}
		f.client = client
	}

	temperature := mc.Temperature
	maxTokens := mc.MaxTokens
	return gemini.NewChatModel(ctx, &gemini.Config{
		Client:      f.client,
		Model:       mc.Model,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	})
}

func (f *modelFactory) anthropic(mc model.ChatModelConfig) (einomodel.ToolCallingChatModel, error) {
	var opts []option.RequestOption
	if f.cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(f.cfg.HTTPClient))
	}
	temperature := mc.Temperature
	return anthropic.NewChatModel(anthropic.Config{
		APIKey:      f.cfg.AnthropicAPIKey,
		BaseURL:     f.cfg.AnthropicBaseURL,
		Model:       mc.Model,
		MaxTokens:   mc.MaxTokens,
		Temperature: &temperature,
	}, opts...)
}
