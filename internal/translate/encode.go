package translate

import (
	"time"

	"github.com/goclaw/router/internal/pivot"
)

// EncodeChatCompletions renders a canonical pivot.Response as an OpenAI
// Chat Completions client response body.
func EncodeChatCompletions(resp *pivot.Response) map[string]interface{} {
	id := resp.ID
	if id == "" {
		id = mintChatCompletionID()
	}
	message := map[string]interface{}{"role": "assistant", "content": resp.Content}
	if resp.ReasoningContent != "" {
		message["reasoning_content"] = resp.ReasoningContent
	}
	if len(resp.ToolCalls) > 0 {
		message["tool_calls"] = encodeChatToolCalls(resp.ToolCalls)
		message["content"] = nil
	}

	out := map[string]interface{}{
		"id":      id,
		"object":  "chat.completion",
		"created": unixNow(),
		"model":   resp.Model,
		"choices": []map[string]interface{}{{
			"index":         0,
			"message":       message,
			"finish_reason": string(resp.FinishReason),
		}},
	}
	if resp.Usage != nil {
		out["usage"] = encodeUsageChat(resp.Usage)
	}
	return out
}

// EncodeResponses renders a canonical pivot.Response as an OpenAI Responses
// client response body.
func EncodeResponses(resp *pivot.Response, upstreamID string) map[string]interface{} {
	id := mintResponseID(upstreamID)

	var output []map[string]interface{}
	if resp.Content != "" {
		output = append(output, map[string]interface{}{
			"type": "message",
			"role": "assistant",
			"content": []map[string]interface{}{
				{"type": "output_text", "text": resp.Content},
			},
		})
	}
	for _, tc := range resp.ToolCalls {
		output = append(output, map[string]interface{}{
			"type":      "function_call",
			"call_id":   tc.CallID,
			"name":      tc.Name,
			"arguments": tc.Arguments,
		})
	}
	if resp.ReasoningContent != "" {
		output = append(output, map[string]interface{}{
			"type":    "reasoning",
			"content": []map[string]interface{}{{"type": "reasoning_text", "text": resp.ReasoningContent}},
		})
	}

	status := "completed"
	if resp.FinishReason == pivot.FinishLength {
		status = "incomplete"
	}

	out := map[string]interface{}{
		"id":     id,
		"object": "response",
		"model":  resp.Model,
		"status": status,
		"output": output,
	}
	if resp.Usage != nil {
		out["usage"] = map[string]interface{}{
			"input_tokens":  resp.Usage.PromptTokens,
			"output_tokens": resp.Usage.CompletionTokens,
			"total_tokens":  resp.Usage.TotalTokens,
		}
	}
	return out
}

// EncodeClaude renders a canonical pivot.Response as an Anthropic Messages
// client response body.
func EncodeClaude(resp *pivot.Response) map[string]interface{} {
	var blocks []map[string]interface{}
	if resp.ReasoningContent != "" {
		blocks = append(blocks, map[string]interface{}{"type": "thinking", "thinking": resp.ReasoningContent})
	}
	if resp.Content != "" {
		blocks = append(blocks, map[string]interface{}{"type": "text", "text": resp.Content})
	}
	for _, tc := range resp.ToolCalls {
		blocks = append(blocks, map[string]interface{}{
			"type":  "tool_use",
			"id":    tc.CallID,
			"name":  tc.Name,
			"input": parseArguments(tc.Arguments),
		})
	}

	id := resp.ID
	if id == "" {
		id = "msg_" + newUUIDNoDashes()
	}

	out := map[string]interface{}{
		"id":          id,
		"type":        "message",
		"role":        "assistant",
		"model":       resp.Model,
		"content":     blocks,
		"stop_reason": claudeStopReason(resp.FinishReason),
	}
	if resp.Usage != nil {
		out["usage"] = map[string]interface{}{
			"input_tokens":  resp.Usage.PromptTokens,
			"output_tokens": resp.Usage.CompletionTokens,
		}
	}
	return out
}

func claudeStopReason(fr pivot.FinishReason) string {
	switch fr {
	case pivot.FinishToolCalls:
		return "tool_use"
	case pivot.FinishLength:
		return "max_tokens"
	default:
		return "end_turn"
	}
}

// EncodeGemini renders a canonical pivot.Response as a Gemini
// generateContent client response body.
func EncodeGemini(resp *pivot.Response) map[string]interface{} {
	var parts []map[string]interface{}
	if resp.ReasoningContent != "" {
		parts = append(parts, map[string]interface{}{"text": resp.ReasoningContent, "thought": true})
	}
	if resp.Content != "" {
		parts = append(parts, map[string]interface{}{"text": resp.Content})
	}
	for _, tc := range resp.ToolCalls {
		fc := map[string]interface{}{"name": tc.Name, "args": parseArguments(tc.Arguments)}
		if tc.CallID != "" {
			fc["id"] = tc.CallID
		}
		part := map[string]interface{}{"functionCall": fc}
		parts = append(parts, part)
		if tc.ThoughtSignature != "" {
			parts = append(parts, map[string]interface{}{"thoughtSignature": tc.ThoughtSignature})
		}
	}

	out := map[string]interface{}{
		"candidates": []map[string]interface{}{{
			"content":      map[string]interface{}{"role": "model", "parts": parts},
			"finishReason": geminiFinishReason(resp.FinishReason),
		}},
	}
	if resp.Usage != nil {
		out["usageMetadata"] = map[string]interface{}{
			"promptTokenCount":     resp.Usage.PromptTokens,
			"candidatesTokenCount": resp.Usage.CompletionTokens,
			"totalTokenCount":      resp.Usage.TotalTokens,
		}
	}
	return out
}

func geminiFinishReason(fr pivot.FinishReason) string {
	switch fr {
	case pivot.FinishLength:
		return "MAX_TOKENS"
	case pivot.FinishContentFilter:
		return "SAFETY"
	default:
		return "STOP"
	}
}

func encodeChatToolCalls(calls []pivot.ToolCall) []map[string]interface{} {
	var out []map[string]interface{}
	for i, tc := range calls {
		out = append(out, map[string]interface{}{
			"index": i,
			"id":    tc.CallID,
			"type":  "function",
			"function": map[string]interface{}{
				"name":      tc.Name,
				"arguments": tc.Arguments,
			},
		})
	}
	return out
}

func encodeUsageChat(u *pivot.Usage) map[string]interface{} {
	return map[string]interface{}{
		"prompt_tokens":     u.PromptTokens,
		"completion_tokens": u.CompletionTokens,
		"total_tokens":      u.TotalTokens,
	}
}

func unixNow() int64 {
	return time.Now().Unix()
}
