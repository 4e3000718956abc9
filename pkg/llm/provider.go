package llm

import (
	"context"
)

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // Override default model
	JSONMode    bool
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

// WithJSONMode asks the backend to constrain output to a JSON document.
func WithJSONMode() Option {
	return func(o *Options) {
		o.JSONMode = true
	}
}

// ApplyOptions folds opts over the defaults.
func ApplyOptions(defaults Options, opts ...Option) *Options {
	o := defaults
	for _, opt := range opts {
		opt(&o)
	}
	return &o
}

// LLMProvider defines the contract for any LLM backend
type LLMProvider interface {
	// Chat sends a chat history to the model and returns the response
	Chat(ctx context.Context, history []Message, options ...Option) (string, error)

	// Generate sends a single prompt to the model (convenience method)
	Generate(ctx context.Context, prompt string, options ...Option) (string, error)
}

// Chunk is one increment of a streamed completion. The last chunk has Done or Err set.
type Chunk struct {
	Text string
	Done bool
	Err  error
}

// StreamingProvider produces completions incrementally. The returned channel is closed by
// the provider after the final chunk; cancelling ctx stops production.
type StreamingProvider interface {
	LLMProvider
	Stream(ctx context.Context, history []Message, options ...Option) (<-chan Chunk, error)
}

// Send delivers c unless ctx is cancelled first.
func Send(ctx context.Context, ch chan<- Chunk, c Chunk) bool {
	select {
	case ch <- c:
		return true
	case <-ctx.Done():
		return false
	}
}
