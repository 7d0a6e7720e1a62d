package translate

import (
	"context"

	"github.com/goclaw/router/internal/pivot"
)

// ResponsesRequest is the OpenAI Responses inbound shape.
type ResponsesRequest struct {
	Model              string                   `json:"model"`
	Instructions       string                   `json:"instructions"`
	Input              []map[string]interface{} `json:"input"`
	Tools              []map[string]interface{} `json:"tools"`
	ToolChoice         interface{}              `json:"tool_choice"`
	Stream             bool                     `json:"stream"`
	Temperature        *float64                 `json:"temperature"`
	TopP               *float64                 `json:"top_p"`
	MaxOutputTokens    int                      `json:"max_output_tokens"`
	PreviousResponseID string                   `json:"previous_response_id"`
	Reasoning          map[string]interface{}   `json:"reasoning"`
}

// FromResponses converts an inbound OpenAI Responses request to the
// canonical pivot: instructions becomes a leading system message;
// function_call/function_call_output items become assistant tool_calls /
// tool-role results. Uses the same assistant/tool message reconstruction
// approach as the Claude request builder's "reassemble structured turns
// from a flat item list" operation for content blocks.
func FromResponses(ctx context.Context, req *ResponsesRequest) (*pivot.Request, error) {
	out := &pivot.Request{
		Model:  req.Model,
		Stream: req.Stream,
		Sampling: pivot.Sampling{
			Temperature: req.Temperature,
			TopP:        req.TopP,
		},
		MaxOutputTokens:     req.MaxOutputTokens,
		PreviousResponseID:  req.PreviousResponseID,
	}
	if effort, ok := req.Reasoning["effort"].(string); ok {
		out.Sampling.ReasoningEffort = effort
	}

	if req.Instructions != "" {
		out.Messages = append(out.Messages, pivot.Message{
			Role:  pivot.RoleSystem,
			Parts: partsFromText(req.Instructions),
		})
	}

	pendingCalls := map[string]string{} // call_id -> name, for output_item bookkeeping

	for _, item := range req.Input {
		typ, _ := item["type"].(string)
		switch typ {
		case "function_call":
			callID, _ := item["call_id"].(string)
			if callID == "" {
				callID = NewToolCallID()
			}
			name, _ := item["name"].(string)
			pendingCalls[callID] = name
			out.Messages = append(out.Messages, pivot.Message{
				Role: pivot.RoleAssistant,
				ToolCalls: []pivot.ToolCall{{
					CallID:    callID,
					Name:      name,
					Arguments: ArgumentsToJSON(item["arguments"]),
				}},
			})
		case "function_call_output":
			callID, _ := item["call_id"].(string)
			out.Messages = append(out.Messages, pivot.Message{
				Role:       pivot.RoleTool,
				ToolResult: &pivot.ToolResult{CallID: callID, Output: TextFromAny(item["output"])},
			})
		default:
			role, _ := item["role"].(string)
			if role == "" {
				role = "user"
			}
			msg := pivot.Message{Role: pivot.Role(role)}
			msg.Parts = append(msg.Parts, partsFromText(TextFromAny(item["content"]))...)
			if arr, ok := item["content"].([]interface{}); ok {
				msg.Parts = append(msg.Parts, collectImageParts(ctx, arr)...)
			}
			out.Messages = append(out.Messages, msg)
		}
	}

	for _, t := range req.Tools {
		name, _ := t["name"].(string)
		desc, _ := t["description"].(string)
		params, _ := t["parameters"].(map[string]interface{})
		out.Tools = append(out.Tools, pivot.ToolDefinition{Name: name, Description: desc, Parameters: params})
	}
	out.ToolChoice = toolChoiceFromAny(req.ToolChoice)

	return out, nil
}
