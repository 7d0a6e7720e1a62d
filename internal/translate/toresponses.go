package translate

import (
	"github.com/goclaw/router/internal/content"
	"github.com/goclaw/router/internal/pivot"
)

// ToResponses renders the canonical pivot as an OpenAI Responses upstream
// request body, the inverse of FromResponses. Uses the same structured-turn
// reassembly style as the Claude request builder, applied to Responses'
// input-item list shape instead of Claude's content blocks.
func ToResponses(req *pivot.Request) map[string]interface{} {
	body := map[string]interface{}{
		"model":  req.UpstreamModel,
		"stream": req.Stream,
	}
	if req.Sampling.Temperature != nil {
		body["temperature"] = *req.Sampling.Temperature
	}
	if req.Sampling.TopP != nil {
		body["top_p"] = *req.Sampling.TopP
	}
	if req.MaxOutputTokens > 0 {
		body["max_output_tokens"] = req.MaxOutputTokens
	}
	if req.Sampling.ReasoningEffort != "" {
		body["reasoning"] = map[string]interface{}{"effort": req.Sampling.ReasoningEffort}
	}
	if req.PreviousResponseID != "" && !req.NoPreviousResponseID {
		body["previous_response_id"] = req.PreviousResponseID
	}

	var instructions string
	var items []map[string]interface{}

	for _, m := range req.Messages {
		switch {
		case m.Role == pivot.RoleSystem:
			if t := textFromParts(m.Parts); t != "" {
				if instructions != "" {
					instructions += "\n\n"
				}
				instructions += t
			}
		case m.Role == pivot.RoleTool && m.ToolResult != nil:
			items = append(items, map[string]interface{}{
				"type":    "function_call_output",
				"call_id": m.ToolResult.CallID,
				"output":  m.ToolResult.Output,
			})
		case len(m.ToolCalls) > 0:
			for _, tc := range m.ToolCalls {
				items = append(items, map[string]interface{}{
					"type":      "function_call",
					"call_id":   tc.CallID,
					"name":      tc.Name,
					"arguments": tc.Arguments,
				})
			}
		default:
			items = append(items, responsesItemFromPivot(m))
		}
	}

	instructions = truncateInstructions(instructions, req.MaxInstructionsChars)

	if instructions != "" {
		if req.NoInstructions {
			items = append([]map[string]interface{}{{
				"role":    "system",
				"content": []map[string]interface{}{{"type": "input_text", "text": instructions}},
			}}, items...)
		} else {
			body["instructions"] = instructions
		}
	}
	body["input"] = items

	if len(req.Tools) > 0 {
		var tools []map[string]interface{}
		for _, t := range req.Tools {
			tools = append(tools, map[string]interface{}{
				"type":        "function",
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters,
			})
		}
		body["tools"] = tools
	}
	if tc := toolChoiceToChat(req.ToolChoice); tc != nil {
		body["tool_choice"] = tc
	}

	return body
}

func responsesItemFromPivot(m pivot.Message) map[string]interface{} {
	textType, imageType := "input_text", "input_image"
	if m.Role == pivot.RoleAssistant {
		textType = "output_text"
	}

	var parts []map[string]interface{}
	for _, p := range m.Parts {
		switch p.Type {
		case pivot.PartText:
			parts = append(parts, map[string]interface{}{"type": textType, "text": p.Text})
		case pivot.PartImage:
			parts = append(parts, map[string]interface{}{
				"type":      imageType,
				"image_url": content.DataURL(p.Image),
			})
		}
	}
	return map[string]interface{}{"role": string(m.Role), "content": parts}
}
