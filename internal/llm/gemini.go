package llm

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/sozercan/recyclens/internal/config"
)

// Gemini uses Google's Gemini API for vision and text reasoning.
type Gemini struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, cfg *config.GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &Gemini{client: client, model: cfg.Model}, nil
}

func (g *Gemini) Name() string {
	return config.ProviderGemini
}

func (g *Gemini) Analyze(ctx context.Context, systemMessages []string, userMessages []string, opts ...Option) (*Response, error) {
	options := applyOptions(Options{Model: g.model}, opts)

	contents, genConfig := buildGeminiRequest(systemMessages, userMessages, options)

	result, err := g.client.Models.GenerateContent(ctx, options.Model, contents, genConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, ErrEmptyResponse
	}

	response := &Response{
		Content: result.Text(),
		Model:   options.Model,
	}
	if result.UsageMetadata != nil {
		response.Usage = Usage{
			PromptTokens:     int64(result.UsageMetadata.PromptTokenCount),
			CompletionTokens: int64(result.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int64(result.UsageMetadata.TotalTokenCount),
		}
	}

	log.Info().
		Str("provider", g.Name()).
		Str("model", options.Model).
		Int("imageCount", len(options.Images)).
		Int64("inputTokens", response.Usage.PromptTokens).
		Int64("outputTokens", response.Usage.CompletionTokens).
		Msg("llm call")

	return response, nil
}

// buildGeminiRequest puts the user text first, then the images, in a single
// user turn. System messages become the system instruction.
func buildGeminiRequest(systemMessages, userMessages []string, options Options) ([]*genai.Content, *genai.GenerateContentConfig) {
	var parts []*genai.Part
	for _, u := range userMessages {
		if u != "" {
			parts = append(parts, genai.NewPartFromText(u))
		}
	}
	for _, img := range options.Images {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{Data: img.Data, MIMEType: img.MIMEType},
		})
	}

	genConfig := &genai.GenerateContentConfig{}
	if len(systemMessages) > 0 {
		sysParts := make([]*genai.Part, 0, len(systemMessages))
		for _, s := range systemMessages {
			sysParts = append(sysParts, genai.NewPartFromText(s))
		}
		genConfig.SystemInstruction = &genai.Content{Parts: sysParts}
	}
	if options.JSON {
		genConfig.ResponseMIMEType = "application/json"
	}

	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, genConfig
}
