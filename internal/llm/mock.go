package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/careswarm/careswarm/agent"
)

func init() {
	// Registered so the service can run without model credentials in
	// development.
	RegisterFactory("mock", func(map[string]any) (Provider, error) {
		return NewMockProvider(), nil
	})
}

// MockProvider is a scripted provider for tests. Responses and errors are
// consumed in order; once the script is exhausted a plain default reply is
// returned.
type MockProvider struct {
	mu sync.Mutex

	Responses []*Response
	Errors    []error

	// Calls records every request for assertions.
	Calls []Request

	index int
}

// NewMockProvider creates an empty scripted provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, req)

	if m.index < len(m.Errors) && m.Errors[m.index] != nil {
		err := m.Errors[m.index]
		m.index++
		return nil, err
	}
	if m.index < len(m.Responses) {
		resp := m.Responses[m.index]
		m.index++
		return resp, nil
	}
	return &Response{Content: "Mock reply", FinishReason: "stop"}, nil
}

// AddResponse appends a scripted response.
func (m *MockProvider) AddResponse(resp *Response) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses = append(m.Responses, resp)
	if len(m.Errors) < len(m.Responses) {
		m.Errors = append(m.Errors, nil)
	}
	return m
}

// AddError appends a scripted error step.
func (m *MockProvider) AddError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors = append(m.Errors, err)
	if len(m.Responses) < len(m.Errors) {
		m.Responses = append(m.Responses, nil)
	}
	return m
}

// Reset clears the script and the call log.
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses = nil
	m.Errors = nil
	m.Calls = nil
	m.index = 0
}

// MockReply scripts a plain text reply.
func MockReply(content string) *Response {
	return &Response{Content: content, FinishReason: "stop"}
}

// MockToolCall scripts a single tool call with JSON-marshaled arguments.
func MockToolCall(id, name string, args any) *Response {
	raw, err := json.Marshal(args)
	if err != nil {
		panic(fmt.Sprintf("marshal mock tool args: %v", err))
	}
	return &Response{
		ToolCalls:    []agent.ToolCall{{ID: id, Name: name, Arguments: raw}},
		FinishReason: "tool_calls",
	}
}
