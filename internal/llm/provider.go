// Package llm abstracts the model-invocation capability: generate text or
// tool calls given instructions, history, and a tool schema. The router
// treats providers as opaque; swapping Groq, OpenAI, or Gemini is a
// configuration change.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/careswarm/careswarm/agent"
)

// Provider is a single model-invocation capability.
type Provider interface {
	// Complete generates the next assistant message for the given request.
	// The response carries either text content, tool calls, or both; the
	// caller decides precedence.
	Complete(ctx context.Context, req Request) (*Response, error)

	// Name returns the provider name (e.g. "openai", "gemini").
	Name() string
}

// ToolSchema describes one callable tool to the model.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"` // JSON Schema
}

// Request is one completion request.
type Request struct {
	// Model is the model identifier.
	Model string

	// Instructions is the system prompt for the active handler.
	Instructions string

	// Messages is the full conversation history.
	Messages []agent.Message

	// Tools is the tool subset bound to the active handler.
	Tools []ToolSchema

	// Temperature controls sampling randomness.
	Temperature float32

	// MaxTokens caps the generated length (0 = provider default).
	MaxTokens int
}

// Response is the model's next assistant step.
type Response struct {
	// Content is the generated text, possibly empty when tools are called.
	Content string

	// ToolCalls are the requested tool invocations, possibly empty.
	ToolCalls []agent.ToolCall

	// FinishReason explains why generation stopped.
	FinishReason string

	// Usage reports token accounting when the provider supplies it.
	Usage Usage
}

// Usage is token accounting for one completion.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Factory constructs a provider from its configuration map.
type Factory func(config map[string]any) (Provider, error)

var (
	factoryMu sync.RWMutex
	factories = make(map[string]Factory)
)

// RegisterFactory registers a provider factory under name. Called from
// provider init functions.
func RegisterFactory(name string, f Factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factories[name] = f
}

// New constructs a provider by registered name.
func New(name string, config map[string]any) (Provider, error) {
	factoryMu.RLock()
	f, ok := factories[name]
	factoryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown llm provider: %q", name)
	}
	return f(config)
}

func configString(config map[string]any, key string) string {
	if v, ok := config[key].(string); ok {
		return v
	}
	return ""
}
