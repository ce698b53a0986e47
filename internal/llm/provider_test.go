package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careswarm/careswarm/agent"
)

func TestNewUnknownProvider(t *testing.T) {
	_, err := New("no-such-provider", nil)
	assert.Error(t, err)
}

func TestOpenAIFactoryRequiresAPIKey(t *testing.T) {
	_, err := New("openai", map[string]any{})
	assert.Error(t, err)
}

func TestGroqFactoryKeepsItsOwnName(t *testing.T) {
	// The groq provider rides the OpenAI-compatible client but must
	// report as groq so metric labels identify the real deployment.
	p, err := New("groq", map[string]any{"api_key": "test-key"})
	require.NoError(t, err)
	assert.Equal(t, "groq", p.Name())
}

func TestOpenAIProviderName(t *testing.T) {
	p, err := New("openai", map[string]any{"api_key": "test-key"})
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())
}

func TestToOpenAIMessages(t *testing.T) {
	history := []agent.Message{
		agent.UserMessage("hello"),
		{
			Role:    agent.RoleAssistant,
			Handler: agent.Triage,
			ToolCalls: []agent.ToolCall{
				{ID: "call_1", Name: "verify_user", Arguments: json.RawMessage(`{"email":"a@b.c"}`)},
			},
		},
		agent.ToolResultMessage("call_1", "verified"),
		{Role: agent.RoleAssistant, Handler: agent.Triage, Content: "You are verified."},
	}

	msgs := toOpenAIMessages("system prompt", history)
	require.Len(t, msgs, 5)

	assert.Equal(t, openai.ChatMessageRoleSystem, msgs[0].Role)
	assert.Equal(t, "system prompt", msgs[0].Content)

	assert.Equal(t, openai.ChatMessageRoleUser, msgs[1].Role)

	require.Len(t, msgs[2].ToolCalls, 1)
	assert.Equal(t, "verify_user", msgs[2].ToolCalls[0].Function.Name)
	assert.Equal(t, `{"email":"a@b.c"}`, msgs[2].ToolCalls[0].Function.Arguments)

	assert.Equal(t, openai.ChatMessageRoleTool, msgs[3].Role)
	assert.Equal(t, "call_1", msgs[3].ToolCallID)

	assert.Equal(t, openai.ChatMessageRoleAssistant, msgs[4].Role)
	assert.Equal(t, "You are verified.", msgs[4].Content)
}

func TestBuildGeminiContents(t *testing.T) {
	history := []agent.Message{
		agent.UserMessage("book me in"),
		{
			Role:    agent.RoleAssistant,
			Handler: agent.Appointment,
			ToolCalls: []agent.ToolCall{
				{ID: "check_availability", Name: "check_availability", Arguments: json.RawMessage(`{"doctor_id":1}`)},
			},
		},
		agent.ToolResultMessage("check_availability", `["09:00","10:00"]`),
	}

	contents := buildGeminiContents(history)
	require.Len(t, contents, 3)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)
	require.NotNil(t, contents[1].Parts[0].FunctionCall)
	assert.Equal(t, "check_availability", contents[1].Parts[0].FunctionCall.Name)
	assert.Equal(t, "function", contents[2].Role)
	require.NotNil(t, contents[2].Parts[0].FunctionResponse)
}

func TestMockProviderScript(t *testing.T) {
	mock := NewMockProvider()
	mock.AddResponse(MockToolCall("call_1", "verify_user", map[string]any{"email": "a@b.c"}))
	mock.AddResponse(MockReply("done"))
	mock.AddError(errors.New("boom"))

	ctx := context.Background()

	resp, err := mock.Complete(ctx, Request{})
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "verify_user", resp.ToolCalls[0].Name)

	resp, err = mock.Complete(ctx, Request{})
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Content)

	_, err = mock.Complete(ctx, Request{})
	assert.EqualError(t, err, "boom")

	// Exhausted script falls through to the default reply.
	resp, err = mock.Complete(ctx, Request{})
	require.NoError(t, err)
	assert.Equal(t, "Mock reply", resp.Content)

	assert.Len(t, mock.Calls, 4)
}
