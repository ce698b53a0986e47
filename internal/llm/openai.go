package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/careswarm/careswarm/agent"
)

func init() {
	RegisterFactory("openai", func(config map[string]any) (Provider, error) {
		return NewOpenAIProvider("openai", config)
	})
	// Groq exposes an OpenAI-compatible API; only the base URL differs.
	RegisterFactory("groq", func(config map[string]any) (Provider, error) {
		if configString(config, "base_url") == "" {
			config["base_url"] = "https://api.groq.com/openai/v1"
		}
		return NewOpenAIProvider("groq", config)
	})
}

// OpenAIProvider speaks the OpenAI chat-completions API, including
// compatible endpoints such as Groq when base_url is set.
type OpenAIProvider struct {
	client *openai.Client
	name   string
}

// NewOpenAIProvider builds a provider from config keys api_key and
// optional base_url. The name is reported by Name() and flows into the
// per-provider metric labels, so compatible hosts keep their own name.
func NewOpenAIProvider(name string, config map[string]any) (Provider, error) {
	apiKey := configString(config, "api_key")
	if apiKey == "" {
		return nil, fmt.Errorf("%s provider requires api_key", name)
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL := configString(config, "base_url"); baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIProvider{client: openai.NewClientWithConfig(cfg), name: name}, nil
}

func (p *OpenAIProvider) Name() string { return p.name }

func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    toOpenAIMessages(req.Instructions, req.Messages),
		Temperature: req.Temperature,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	for _, t := range req.Tools {
		chatReq.Tools = append(chatReq.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion returned no choices")
	}

	choice := resp.Choices[0]
	out := &Response{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, agent.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	return out, nil
}

// toOpenAIMessages converts history into the wire shape, prepending the
// system prompt. Tool results keep their call IDs so the model can match
// them to the calls it issued.
func toOpenAIMessages(instructions string, history []agent.Message) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	if instructions != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: instructions,
		})
	}
	for _, m := range history {
		switch m.Role {
		case agent.RoleUser:
			msgs = append(msgs, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: m.Content,
			})
		case agent.RoleAssistant:
			wire := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: m.Content,
			}
			for _, tc := range m.ToolCalls {
				wire.ToolCalls = append(wire.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				})
			}
			msgs = append(msgs, wire)
		case agent.RoleTool:
			msgs = append(msgs, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    m.Content,
				ToolCallID: m.ToolCallID,
			})
		}
	}
	return msgs
}
