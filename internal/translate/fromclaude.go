package translate

import (
	"context"

	"github.com/goclaw/router/internal/content"
	"github.com/goclaw/router/internal/pivot"
)

// ClaudeMessagesRequest is the Anthropic Messages inbound shape.
type ClaudeMessagesRequest struct {
	Model       string                   `json:"model"`
	System      interface{}              `json:"system"` // string or []block
	Messages    []map[string]interface{} `json:"messages"`
	Tools       []map[string]interface{} `json:"tools"`
	ToolChoice  map[string]interface{}   `json:"tool_choice"`
	Stream      bool                     `json:"stream"`
	Temperature *float64                 `json:"temperature"`
	TopP        *float64                 `json:"top_p"`
	MaxTokens   int                      `json:"max_tokens"`
}

// FromClaudeMessages converts an inbound Claude Messages request to the
// canonical pivot, walking Claude's system-blocks / tool_use / tool_result
// content-block shapes the same way the native Anthropic request builder
// does elsewhere in this codebase.
func FromClaudeMessages(ctx context.Context, req *ClaudeMessagesRequest) (*pivot.Request, error) {
	out := &pivot.Request{
		Model:  req.Model,
		Stream: req.Stream,
		Sampling: pivot.Sampling{
			Temperature: req.Temperature,
			TopP:        req.TopP,
		},
		MaxOutputTokens: req.MaxTokens,
	}

	if sysText := content.TextFromAny(req.System); sysText != "" {
		out.Messages = append(out.Messages, pivot.Message{Role: pivot.RoleSystem, Parts: partsFromText(sysText)})
	}

	for _, m := range req.Messages {
		role, _ := m["role"].(string)
		blocks, _ := m["content"].([]interface{})
		if blocks == nil {
			out.Messages = append(out.Messages, pivot.Message{
				Role:  pivot.Role(role),
				Parts: partsFromText(content.TextFromAny(m["content"])),
			})
			continue
		}

		msg := pivot.Message{Role: pivot.Role(role)}
		for _, b := range blocks {
			bm, ok := b.(map[string]interface{})
			if !ok {
				continue
			}
			switch bm["type"] {
			case "text":
				if t, ok := bm["text"].(string); ok {
					msg.Parts = append(msg.Parts, pivot.Part{Type: pivot.PartText, Text: t})
				}
			case "image":
				if src, ok := bm["source"].(map[string]interface{}); ok {
					if img, err := content.ImageFromAny(ctx, map[string]interface{}{
						"base64": src["data"], "mime_type": src["media_type"],
					}); err == nil && img != nil {
						msg.Parts = append(msg.Parts, pivot.Part{Type: pivot.PartImage, Image: img})
					}
				}
			case "tool_use":
				id, _ := bm["id"].(string)
				name, _ := bm["name"].(string)
				msg.ToolCalls = append(msg.ToolCalls, pivot.ToolCall{
					CallID: id, Name: name, Arguments: ArgumentsToJSON(bm["input"]),
				})
			case "tool_result":
				// Claude groups multiple tool_results in one user turn; the
				// pivot models one ToolResult per Message, so emit a
				// separate tool-role message per result block.
				id, _ := bm["tool_use_id"].(string)
				out.Messages = append(out.Messages, pivot.Message{
					Role:       pivot.RoleTool,
					ToolResult: &pivot.ToolResult{CallID: id, Output: content.TextFromAny(bm["content"])},
				})
			}
		}
		if len(msg.Parts) > 0 || len(msg.ToolCalls) > 0 {
			out.Messages = append(out.Messages, msg)
		}
	}

	for _, t := range req.Tools {
		name, _ := t["name"].(string)
		desc, _ := t["description"].(string)
		schema, _ := t["input_schema"].(map[string]interface{})
		out.Tools = append(out.Tools, pivot.ToolDefinition{Name: name, Description: desc, Parameters: schema})
	}
	if req.ToolChoice != nil {
		out.ToolChoice = claudeToolChoice(req.ToolChoice)
	}

	return out, nil
}

// claudeToolChoice maps Claude's {type:"auto"|"any"|"tool", name} shape.
func claudeToolChoice(v map[string]interface{}) *pivot.ToolChoice {
	typ, _ := v["type"].(string)
	switch typ {
	case "auto":
		return &pivot.ToolChoice{Mode: pivot.ToolChoiceAuto}
	case "any":
		return &pivot.ToolChoice{Mode: pivot.ToolChoiceRequired}
	case "tool":
		name, _ := v["name"].(string)
		return &pivot.ToolChoice{Mode: pivot.ToolChoiceNamed, Name: name}
	default:
		return nil
	}
}
