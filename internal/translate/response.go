package translate

import (
	"github.com/goclaw/router/internal/pivot"
)

// ParseChatCompletionsResponse decodes an OpenAI Chat Completions upstream
// response into the canonical pivot.Response.
func ParseChatCompletionsResponse(raw map[string]interface{}) *pivot.Response {
	out := &pivot.Response{ID: strField(raw, "id"), Model: strField(raw, "model")}

	choices, _ := raw["choices"].([]interface{})
	if len(choices) > 0 {
		choice, _ := choices[0].(map[string]interface{})
		msg, _ := choice["message"].(map[string]interface{})
		out.Content = TextFromAny(msg["content"])
		out.ReasoningContent, _ = msg["reasoning_content"].(string)
		out.ToolCalls = toolCallsFromChatJSON(msg["tool_calls"])
		finish, _ := choice["finish_reason"].(string)
		out.FinishReason = mapFinishReason(finish, len(out.ToolCalls) > 0)
	}

	if usage, ok := raw["usage"].(map[string]interface{}); ok {
		out.Usage = usageFrom(intField(usage, "prompt_tokens"), intField(usage, "completion_tokens"), intField(usage, "total_tokens"))
	}
	return out
}

// ParseClaudeResponse decodes an Anthropic Messages upstream response.
func ParseClaudeResponse(raw map[string]interface{}) *pivot.Response {
	out := &pivot.Response{ID: strField(raw, "id"), Model: strField(raw, "model")}

	if blocks, ok := raw["content"].([]interface{}); ok {
		for _, b := range blocks {
			bm, ok := b.(map[string]interface{})
			if !ok {
				continue
			}
			switch bm["type"] {
			case "text":
				out.Content += strField(bm, "text")
			case "thinking":
				out.ReasoningContent += strField(bm, "thinking")
			case "tool_use":
				out.ToolCalls = append(out.ToolCalls, pivot.ToolCall{
					CallID:    strField(bm, "id"),
					Name:      strField(bm, "name"),
					Arguments: ArgumentsToJSON(bm["input"]),
				})
			}
		}
	}

	stop, _ := raw["stop_reason"].(string)
	out.FinishReason = mapFinishReason(stop, len(out.ToolCalls) > 0)

	if usage, ok := raw["usage"].(map[string]interface{}); ok {
		out.Usage = usageFrom(intField(usage, "input_tokens"), intField(usage, "output_tokens"), 0)
	}
	return out
}

// ParseGeminiResponse decodes a Gemini generateContent upstream response.
func ParseGeminiResponse(raw map[string]interface{}) *pivot.Response {
	out := &pivot.Response{ID: mintChatCompletionID()}

	candidates, _ := raw["candidates"].([]interface{})
	if len(candidates) > 0 {
		cand, _ := candidates[0].(map[string]interface{})
		content, _ := cand["content"].(map[string]interface{})
		parts, _ := content["parts"].([]interface{})
		var pendingSig string
		for _, p := range parts {
			pm, ok := p.(map[string]interface{})
			if !ok {
				continue
			}
			if text, ok := pm["text"].(string); ok {
				if isThought, _ := pm["thought"].(bool); isThought {
					out.ReasoningContent += text
				} else {
					out.Content += text
				}
				continue
			}
			if fc, ok := pm["functionCall"].(map[string]interface{}); ok {
				tc := pivot.ToolCall{Name: strField(fc, "name"), Arguments: ArgumentsToJSON(fc["args"]), CallID: strField(fc, "id")}
				if tc.CallID == "" {
					tc.CallID = NewToolCallID()
				}
				// thoughtSignature arrives either nested in the functionCall
				// part itself or as the next sibling part.
				if sig, ok := pm["thoughtSignature"].(string); ok {
					tc.ThoughtSignature = sig
				} else if pendingSig != "" {
					tc.ThoughtSignature = pendingSig
				}
				out.ToolCalls = append(out.ToolCalls, tc)
				pendingSig = ""
				continue
			}
			if sig, ok := pm["thoughtSignature"].(string); ok {
				if n := len(out.ToolCalls); n > 0 && out.ToolCalls[n-1].ThoughtSignature == "" {
					out.ToolCalls[n-1].ThoughtSignature = sig
				} else {
					pendingSig = sig
				}
			}
		}
		finish, _ := cand["finishReason"].(string)
		out.FinishReason = mapFinishReason(mapGeminiFinish(finish), len(out.ToolCalls) > 0)
	}

	if usage, ok := raw["usageMetadata"].(map[string]interface{}); ok {
		out.Usage = usageFrom(intField(usage, "promptTokenCount"), intField(usage, "candidatesTokenCount"), intField(usage, "totalTokenCount"))
	}
	return out
}

func mapGeminiFinish(raw string) string {
	switch raw {
	case "STOP":
		return "stop"
	case "MAX_TOKENS":
		return "length"
	case "SAFETY", "RECITATION":
		return "content_filter"
	default:
		return "stop"
	}
}

// ParseResponsesResponse decodes an OpenAI Responses non-stream output.
func ParseResponsesResponse(raw map[string]interface{}) *pivot.Response {
	out := &pivot.Response{ID: strField(raw, "id"), Model: strField(raw, "model")}

	output, _ := raw["output"].([]interface{})
	for _, item := range output {
		im, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		switch im["type"] {
		case "message":
			content, _ := im["content"].([]interface{})
			for _, c := range content {
				cm, _ := c.(map[string]interface{})
				if t, ok := cm["text"].(string); ok {
					out.Content += t
				}
			}
		case "function_call":
			out.ToolCalls = append(out.ToolCalls, pivot.ToolCall{
				CallID:    strField(im, "call_id"),
				Name:      strField(im, "name"),
				Arguments: ArgumentsToJSON(im["arguments"]),
			})
		case "reasoning":
			content, _ := im["content"].([]interface{})
			for _, c := range content {
				cm, _ := c.(map[string]interface{})
				if t, ok := cm["text"].(string); ok {
					out.ReasoningContent += t
				}
			}
		}
	}

	status, _ := raw["status"].(string)
	finish := "stop"
	if status == "incomplete" {
		finish = "length"
	}
	out.FinishReason = mapFinishReason(finish, len(out.ToolCalls) > 0)

	if usage, ok := raw["usage"].(map[string]interface{}); ok {
		out.Usage = usageFrom(intField(usage, "input_tokens"), intField(usage, "output_tokens"), intField(usage, "total_tokens"))
	}
	return out
}

func toolCallsFromChatJSON(v interface{}) []pivot.ToolCall {
	arr, _ := v.([]interface{})
	var out []pivot.ToolCall
	for _, item := range arr {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		fn, _ := m["function"].(map[string]interface{})
		out = append(out, pivot.ToolCall{
			CallID:    strField(m, "id"),
			Name:      strField(fn, "name"),
			Arguments: ArgumentsToJSON(fn["arguments"]),
		})
	}
	return out
}

func strField(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func intField(m map[string]interface{}, key string) int {
	if m == nil {
		return 0
	}
	switch n := m[key].(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return 0
}
