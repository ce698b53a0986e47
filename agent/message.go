package agent

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message roles. The router only ever appends messages with these roles;
// system instructions are supplied per-invocation from the handler definition
// and never stored in session history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry in a session's conversation history.
// History is append-only: messages are never reordered, deduplicated, or
// truncated by the router.
type Message struct {
	// Role is one of RoleUser, RoleAssistant, RoleTool.
	Role string `json:"role"`

	// Content is the message text. For RoleTool messages it is the tool
	// result fed back to the model.
	Content string `json:"content,omitempty"`

	// ToolCalls carries the tool invocations requested by an assistant
	// message, if any.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID links a RoleTool message to the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`

	// Handler records which handler produced an assistant message.
	Handler HandlerName `json:"handler,omitempty"`

	// Timestamp is when the message was appended, RFC 3339.
	Timestamp string `json:"timestamp,omitempty"`
}

// ToolCall is a single tool invocation requested by the model.
type ToolCall struct {
	// ID is the provider-assigned call identifier.
	ID string `json:"id"`

	// Name is the tool name from the handler's bound subset.
	Name string `json:"name"`

	// Arguments is the raw JSON argument object.
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// UnmarshalArguments decodes the call's argument object into v.
func (c *ToolCall) UnmarshalArguments(v any) error {
	if len(c.Arguments) == 0 {
		return nil
	}
	if err := json.Unmarshal(c.Arguments, v); err != nil {
		return fmt.Errorf("tool %s: decode arguments: %w", c.Name, err)
	}
	return nil
}

// UserMessage builds a user message stamped with the current time.
func UserMessage(content string) Message {
	return Message{
		Role:      RoleUser,
		Content:   content,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// AssistantMessage builds an assistant reply attributed to a handler.
func AssistantMessage(handler HandlerName, content string) Message {
	return Message{
		Role:      RoleAssistant,
		Content:   content,
		Handler:   handler,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// ToolResultMessage builds a tool result answering the given call.
func ToolResultMessage(callID, content string) Message {
	return Message{
		Role:       RoleTool,
		Content:    content,
		ToolCallID: callID,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
}
