package translate

import (
	"context"

	"github.com/goclaw/router/internal/content"
	"github.com/goclaw/router/internal/pivot"
)

// ChatCompletionsRequest is the OpenAI Chat Completions inbound shape,
// decoded loosely since messages/tools/content carry dynamic any-typed
// JSON objects rather than a fixed schema.
type ChatCompletionsRequest struct {
	Model           string                   `json:"model"`
	Messages        []map[string]interface{} `json:"messages"`
	Tools           []map[string]interface{} `json:"tools"`
	ToolChoice      interface{}              `json:"tool_choice"`
	Stream          bool                     `json:"stream"`
	Temperature     *float64                 `json:"temperature"`
	TopP            *float64                 `json:"top_p"`
	MaxTokens       int                      `json:"max_tokens"`
	ReasoningEffort string                   `json:"reasoning_effort"`
	User            string                   `json:"user"`
}

// FromChatCompletions converts an inbound OpenAI Chat Completions request
// to the canonical pivot, looking at each message's role to decide whether
// it decodes as a tool result or as text/images/tool_calls.
func FromChatCompletions(ctx context.Context, req *ChatCompletionsRequest) (*pivot.Request, error) {
	out := &pivot.Request{
		Model:           req.Model,
		Stream:          req.Stream,
		Sampling: pivot.Sampling{
			Temperature:     req.Temperature,
			TopP:            req.TopP,
			ReasoningEffort: req.ReasoningEffort,
		},
		MaxOutputTokens: req.MaxTokens,
	}

	for _, m := range req.Messages {
		msg, err := chatMessageToPivot(ctx, m)
		if err != nil {
			return nil, err
		}
		out.Messages = append(out.Messages, msg)
	}

	for _, t := range req.Tools {
		fn, _ := t["function"].(map[string]interface{})
		if fn == nil {
			continue
		}
		name, _ := fn["name"].(string)
		desc, _ := fn["description"].(string)
		params, _ := fn["parameters"].(map[string]interface{})
		out.Tools = append(out.Tools, pivot.ToolDefinition{Name: name, Description: desc, Parameters: params})
	}

	out.ToolChoice = toolChoiceFromAny(req.ToolChoice)
	return out, nil
}

func chatMessageToPivot(ctx context.Context, m map[string]interface{}) (pivot.Message, error) {
	role, _ := m["role"].(string)
	msg := pivot.Message{Role: pivot.Role(role)}

	if role == "tool" {
		callID, _ := m["tool_call_id"].(string)
		msg.ToolResult = &pivot.ToolResult{CallID: callID, Output: TextFromAny(m["content"])}
		return msg, nil
	}

	msg.Parts = append(msg.Parts, partsFromText(TextFromAny(m["content"]))...)
	if arr, ok := m["content"].([]interface{}); ok {
		msg.Parts = append(msg.Parts, collectImageParts(ctx, arr)...)
	}

	if toolCalls, ok := m["tool_calls"].([]interface{}); ok {
		for _, tc := range toolCalls {
			tm, ok := tc.(map[string]interface{})
			if !ok {
				continue
			}
			fn, _ := tm["function"].(map[string]interface{})
			id, _ := tm["id"].(string)
			if id == "" {
				id = NewToolCallID()
			}
			name, _ := fn["name"].(string)
			msg.ToolCalls = append(msg.ToolCalls, pivot.ToolCall{
				CallID:    id,
				Name:      name,
				Arguments: ArgumentsToJSON(fn["arguments"]),
			})
		}
	}

	if rc, ok := m["reasoning_content"].(string); ok {
		msg.ReasoningContent = rc
	}

	return msg, nil
}

func toolChoiceFromAny(v interface{}) *pivot.ToolChoice {
	switch val := v.(type) {
	case string:
		switch val {
		case "auto":
			return &pivot.ToolChoice{Mode: pivot.ToolChoiceAuto}
		case "none":
			return &pivot.ToolChoice{Mode: pivot.ToolChoiceNone}
		case "required":
			return &pivot.ToolChoice{Mode: pivot.ToolChoiceRequired}
		}
	case map[string]interface{}:
		if fn, ok := val["function"].(map[string]interface{}); ok {
			if name, ok := fn["name"].(string); ok {
				return &pivot.ToolChoice{Mode: pivot.ToolChoiceNamed, Name: name}
			}
		}
	}
	return nil
}

// TextFromAny is re-exported for translators in this package; delegates to
// internal/content so all four dialects share one text-coercion rule.
func TextFromAny(v interface{}) string {
	return content.TextFromAny(v)
}
