package tools

import (
	"encoding/json"
	"fmt"

	"github.com/careswarm/careswarm/agent"
	"github.com/careswarm/careswarm/internal/llm"
)

// HandoffSchemas synthesizes the to_<target> tool schemas for a handler's
// permitted handoff targets. These tools are intercepted by the router and
// never executed; calling one transfers the conversation.
func HandoffSchemas(targets []agent.HandlerName) []llm.ToolSchema {
	schemas := make([]llm.ToolSchema, 0, len(targets))
	for _, target := range targets {
		schemas = append(schemas, llm.ToolSchema{
			Name: target.HandoffToolName(),
			Description: fmt.Sprintf(
				"Transfer the conversation to the %s assistant. Use when the request falls in its area.", target),
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"context": {"type": "string", "description": "Short note about why the conversation is being transferred"}
				}
			}`),
		})
	}
	return schemas
}
