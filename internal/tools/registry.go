// Package tools defines the callable tool layer: a registry of named
// functions the model can invoke, plus the clinic-domain tools bound to
// the relational store.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/careswarm/careswarm/internal/llm"
	"github.com/careswarm/careswarm/pkg/session"
)

// Invocation carries one tool call's inputs. Tools may read and mutate
// the session's side state; the router persists the session afterwards.
type Invocation struct {
	Args    json.RawMessage
	Session *session.Session
}

// Func executes one tool call. The returned string is fed back to the
// model verbatim as the tool result.
type Func func(ctx context.Context, inv Invocation) (string, error)

// Tool is one registered capability.
type Tool struct {
	Name        string
	Description string
	Parameters  json.RawMessage // JSON Schema for the arguments object
	Func        Func
}

// Registry holds tools by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Duplicate names are an error.
func (r *Registry) Register(t Tool) error {
	if t.Name == "" {
		return fmt.Errorf("tool has no name")
	}
	if t.Func == nil {
		return fmt.Errorf("tool %q has no function", t.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("tool %q already registered", t.Name)
	}
	r.tools[t.Name] = t
	return nil
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Schemas resolves a name list into model-facing tool schemas. Unknown
// names are an error so a misconfigured handler fails at startup, not
// mid-conversation.
func (r *Registry) Schemas(names []string) ([]llm.ToolSchema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	schemas := make([]llm.ToolSchema, 0, len(names))
	for _, name := range names {
		t, ok := r.tools[name]
		if !ok {
			return nil, fmt.Errorf("unknown tool %q", name)
		}
		schemas = append(schemas, llm.ToolSchema{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		})
	}
	return schemas, nil
}

// Execute runs a registered tool.
func (r *Registry) Execute(ctx context.Context, name string, inv Invocation) (string, error) {
	t, ok := r.Get(name)
	if !ok {
		return "", fmt.Errorf("unknown tool %q", name)
	}
	return t.Func(ctx, inv)
}

// jsonResult marshals a tool result payload. Marshal failures are
// programming errors in the tool itself.
func jsonResult(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode tool result: %w", err)
	}
	return string(data), nil
}
