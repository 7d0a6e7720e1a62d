package translate

import (
	"github.com/goclaw/router/internal/content"
	"github.com/goclaw/router/internal/pivot"
)

// ToChatCompletions renders the canonical pivot as an OpenAI Chat
// Completions upstream request body, matching the shape used for native
// OpenAI-compatible providers elsewhere in this codebase.
func ToChatCompletions(req *pivot.Request) map[string]interface{} {
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
		body["max_tokens"] = req.MaxOutputTokens
	}
	if req.Sampling.ReasoningEffort != "" {
		body["reasoning_effort"] = req.Sampling.ReasoningEffort
	}

	var messages []map[string]interface{}
	for _, m := range req.Messages {
		messages = append(messages, chatMessageFromPivot(m)...)
	}
	body["messages"] = messages

	if len(req.Tools) > 0 {
		var tools []map[string]interface{}
		for _, t := range req.Tools {
			tools = append(tools, map[string]interface{}{
				"type": "function",
				"function": map[string]interface{}{
					"name":        t.Name,
					"description": t.Description,
					"parameters":  t.Parameters,
				},
			})
		}
		body["tools"] = tools
	}
	if tc := toolChoiceToChat(req.ToolChoice); tc != nil {
		body["tool_choice"] = tc
	}

	return body
}

func chatMessageFromPivot(m pivot.Message) []map[string]interface{} {
	if m.Role == pivot.RoleTool && m.ToolResult != nil {
		return []map[string]interface{}{{
			"role":         "tool",
			"tool_call_id": m.ToolResult.CallID,
			"content":      m.ToolResult.Output,
		}}
	}

	out := map[string]interface{}{"role": string(m.Role)}
	out["content"] = chatContentFromParts(m.Parts)
	if m.ReasoningContent != "" {
		out["reasoning_content"] = m.ReasoningContent
	}
	if len(m.ToolCalls) > 0 {
		var calls []map[string]interface{}
		for _, tc := range m.ToolCalls {
			calls = append(calls, map[string]interface{}{
				"id":   tc.CallID,
				"type": "function",
				"function": map[string]interface{}{
					"name":      tc.Name,
					"arguments": tc.Arguments,
				},
			})
		}
		out["tool_calls"] = calls
		// An assistant turn that is purely tool calls carries null content
		// in the OpenAI dialect, not an empty string.
		if out["content"] == "" {
			out["content"] = nil
		}
	}
	return []map[string]interface{}{out}
}

func chatContentFromParts(parts []pivot.Part) interface{} {
	hasImage := false
	for _, p := range parts {
		if p.Type == pivot.PartImage {
			hasImage = true
			break
		}
	}
	if !hasImage {
		return textFromParts(parts)
	}

	var out []map[string]interface{}
	for _, p := range parts {
		switch p.Type {
		case pivot.PartText:
			out = append(out, map[string]interface{}{"type": "text", "text": p.Text})
		case pivot.PartImage:
			out = append(out, map[string]interface{}{
				"type":      "image_url",
				"image_url": map[string]interface{}{"url": content.DataURL(p.Image)},
			})
		}
	}
	return out
}

func toolChoiceToChat(tc *pivot.ToolChoice) interface{} {
	if tc == nil {
		return nil
	}
	switch tc.Mode {
	case pivot.ToolChoiceAuto:
		return "auto"
	case pivot.ToolChoiceNone:
		return "none"
	case pivot.ToolChoiceRequired:
		return "required"
	case pivot.ToolChoiceNamed:
		return map[string]interface{}{
			"type":     "function",
			"function": map[string]interface{}{"name": tc.Name},
		}
	}
	return nil
}
