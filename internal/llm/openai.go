package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"

	"github.com/sozercan/recyclens/internal/config"
)

// OpenAI client implementation
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates a provider that defaults to model for every call.
func NewOpenAI(cfg *config.OpenAIConfig, model string) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is not set")
	}

	var client *openai.Client

	switch cfg.Provider {
	case config.ProviderAzure:
		client = openai.NewClient(
			azure.WithEndpoint(cfg.APIEndpoint, cfg.APIVersion),
			azure.WithAPIKey(cfg.APIKey),
			option.WithMaxRetries(0),
		)
	default: // "openai"
		endpoint := cfg.APIEndpoint
		if !strings.HasSuffix(endpoint, "/") {
			endpoint += "/"
		}
		client = openai.NewClient(
			option.WithAPIKey(cfg.APIKey),
			option.WithBaseURL(endpoint),
			option.WithMaxRetries(0),
		)
	}

	return &OpenAI{
		client: client,
		model:  model,
	}, nil
}

func (o *OpenAI) Name() string {
	return config.ProviderOpenAI
}

func (o *OpenAI) Analyze(ctx context.Context, systemMessages []string, userMessages []string, opts ...Option) (*Response, error) {
	options := applyOptions(Options{
		Model:       o.model,
		Temperature: 0,
		MaxTokens:   2000,
	}, opts)

	params := openai.ChatCompletionNewParams{
		Model:       openai.F(options.Model),
		Messages:    openai.F(buildOpenAIMessages(systemMessages, userMessages, options.Images)),
		Temperature: openai.F(options.Temperature),
		MaxTokens:   openai.F(options.MaxTokens),
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, ErrEmptyResponse
	}

	response := &Response{
		Content: resp.Choices[0].Message.Content,
		Model:   resp.Model,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}

	log.Info().
		Str("provider", o.Name()).
		Str("model", options.Model).
		Int("imageCount", len(options.Images)).
		Int64("inputTokens", response.Usage.PromptTokens).
		Int64("outputTokens", response.Usage.CompletionTokens).
		Msg("llm call")

	return response, nil
}

// buildOpenAIMessages attaches images to the final user message.
func buildOpenAIMessages(systemMessages, userMessages []string, images []Image) []openai.ChatCompletionMessageParamUnion {
	if len(userMessages) == 0 {
		userMessages = []string{""}
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(systemMessages)+len(userMessages))
	for _, s := range systemMessages {
		messages = append(messages, openai.SystemMessage(s))
	}

	last := len(userMessages) - 1
	for i, u := range userMessages {
		if i != last || len(images) == 0 {
			messages = append(messages, openai.UserMessage(u))
			continue
		}
		parts := []openai.ChatCompletionContentPartUnionParam{openai.TextPart(u)}
		for _, img := range images {
			parts = append(parts, openai.ImagePart(img.DataURL()))
		}
		messages = append(messages, openai.UserMessageParts(parts...))
	}
	return messages
}
