package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"github.com/dyike/StockAnalyzerAI/config"
)

const defaultMaxTokens = 4096

// NewChatModel builds the chat model for the configured provider. modelName
// overrides cfg.Model when set, which is how the manager gets its own model.
func NewChatModel(ctx context.Context, cfg *config.Config, modelName string) (model.ToolCallingChatModel, error) {
	if modelName == "" {
		modelName = cfg.Model
	}

	switch cfg.LLMProvider {
	case config.ProviderOpenAI, "":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is not set")
		}
		maxTokens := defaultMaxTokens
		chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL:   cfg.BackendURL,
			APIKey:    cfg.OpenAIAPIKey,
			Model:     modelName,
			MaxTokens: &maxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI model: %w", err)
		}
		return chatModel, nil

	case config.ProviderDeepSeek:
		if cfg.DeepSeekAPIKey == "" {
			return nil, fmt.Errorf("DEEPSEEK_API_KEY is not set")
		}
		chatModel, err := deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
			APIKey:    cfg.DeepSeekAPIKey,
			Model:     modelName,
			BaseURL:   cfg.BackendURL,
			MaxTokens: defaultMaxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create DeepSeek model: %w", err)
		}
		return chatModel, nil

	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLMProvider)
	}
}
