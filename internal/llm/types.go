package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var ErrEmptyResponse = errors.New("empty response from model")

type Provider interface {
	// Analyze sends system and user messages, plus any images attached via
	// WithImages, and returns the model's text response.
	Analyze(ctx context.Context, systemMessages []string, userMessages []string, opts ...Option) (*Response, error)

	// Name identifies the backend in logs, e.g. "openai" or "gemini".
	Name() string
}

type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
}

type Option func(*Options)

type Options struct {
	Model       string
	MaxTokens   int64
	Temperature float64
	Images      []Image

	// JSON asks the backend for a JSON object response where supported.
	JSON bool
}

func WithModel(model string) Option {
	return func(o *Options) {
		if model != "" {
			o.Model = model
		}
	}
}

func WithMaxTokens(n int64) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxTokens = n
		}
	}
}

func WithImages(images ...Image) Option {
	return func(o *Options) {
		o.Images = append(o.Images, images...)
	}
}

func WithJSON() Option {
	return func(o *Options) {
		o.JSON = true
	}
}

func applyOptions(defaults Options, opts []Option) Options {
	for _, opt := range opts {
		opt(&defaults)
	}
	return defaults
}

// Image is a decoded image attached to a user message.
type Image struct {
	Data     []byte
	MIMEType string
}

func (i Image) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", i.MIMEType, base64.StdEncoding.EncodeToString(i.Data))
}

type Response struct {
	Content string
	Model   string
	Usage   Usage
}

// ExtractJSONObject extracts a JSON object from text that may be wrapped in
// markdown code fences or surrounded by prose.
func ExtractJSONObject(text string) (string, error) {
	text = strings.TrimSpace(text)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("no JSON object found in response: %s", text)
	}
	return text[start : end+1], nil
}
