package llm

import (
	"context"
	"fmt"

	"github.com/sozercan/recyclens/internal/config"
)

// NewProvider builds the backend named by name. openAIModel is the default
// model for the OpenAI backend; Gemini always uses its configured model.
func NewProvider(ctx context.Context, name string, cfg *config.Config, openAIModel string) (Provider, error) {
	switch name {
	case config.ProviderOpenAI:
		return NewOpenAI(&cfg.OpenAI, openAIModel)
	case config.ProviderGemini:
		return NewGemini(ctx, &cfg.Gemini)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", name)
	}
}
