// Package llmtest provides a scripted llm.Provider for tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/sozercan/recyclens/internal/llm"
)

// Call records one Analyze invocation.
type Call struct {
	SystemMessages []string
	UserMessages   []string
	Options        llm.Options
}

// Fake returns Content (or Err) from every Analyze call and records calls.
type Fake struct {
	Content string
	Err     error

	mu    sync.Mutex
	calls []Call
}

func (f *Fake) Name() string {
	return "fake"
}

func (f *Fake) Analyze(_ context.Context, systemMessages []string, userMessages []string, opts ...llm.Option) (*llm.Response, error) {
	var options llm.Options
	for _, opt := range opts {
		opt(&options)
	}

	f.mu.Lock()
	f.calls = append(f.calls, Call{SystemMessages: systemMessages, UserMessages: userMessages, Options: options})
	f.mu.Unlock()

	if f.Err != nil {
		return nil, f.Err
	}
	return &llm.Response{Content: f.Content, Model: "fake"}, nil
}

func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}
