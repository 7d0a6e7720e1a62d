package gatewayhttp

import (
	"encoding/json"

	"github.com/goclaw/router/internal/streampump"
)

// isDoneChunk reports whether chunk is streampump's terminal "emit [DONE]
// and stop" sentinel (nil Choices, see streampump.doneSentinel).
func isDoneChunk(c *streampump.ChatChunk) bool { return len(c.Choices) == 0 }

// encodeResponsesEvent re-renders one OpenAI-Chat-shaped pump chunk as an
// OpenAI Responses streaming event, for clients that called /v1/responses
// with stream:true. streampump.ChatChunk is the one pump output shape;
// re-encoding per client dialect happens here rather than inside streampump,
// keeping that package dialect-neutral.
func encodeResponsesEvent(c *streampump.ChatChunk, respID string) map[string]interface{} {
	if len(c.Choices) == 0 {
		return nil
	}
	ch := c.Choices[0]
	if ch.FinishReason != nil {
		return map[string]interface{}{"type": "response.completed", "response": map[string]interface{}{"id": respID, "status": "completed"}}
	}
	if ch.Delta.Content != "" {
		return map[string]interface{}{"type": "response.output_text.delta", "delta": ch.Delta.Content}
	}
	if ch.Delta.ReasoningContent != "" {
		return map[string]interface{}{"type": "response.reasoning.delta", "delta": ch.Delta.ReasoningContent}
	}
	for _, tc := range ch.Delta.ToolCalls {
		return map[string]interface{}{
			"type": "response.function_call_arguments.delta", "call_id": tc.ID, "name": tc.Function.Name, "delta": tc.Function.Arguments,
		}
	}
	return nil
}

// claudeStreamState tracks whether the text block (index 0) and the
// tool_use block have been opened yet, so encodeClaudeEvents can emit the
// content_block_start for each of the two kinds exactly once per stream
// (Claude's event sequence is block-structured, unlike OpenAI's flat delta
// stream).
type claudeStreamState struct {
	started   bool
	startedTC bool
}

func encodeClaudeEvents(c *streampump.ChatChunk, st *claudeStreamState) []map[string]interface{} {
	if len(c.Choices) == 0 {
		return nil
	}
	ch := c.Choices[0]
	var events []map[string]interface{}

	if ch.Delta.Content != "" {
		if !st.started {
			st.started = true
			events = append(events, map[string]interface{}{
				"type": "content_block_start", "index": 0,
				"content_block": map[string]interface{}{"type": "text", "text": ""},
			})
		}
		events = append(events, map[string]interface{}{
			"type": "content_block_delta", "index": 0,
			"delta": map[string]interface{}{"type": "text_delta", "text": ch.Delta.Content},
		})
	}
	for _, tc := range ch.Delta.ToolCalls {
		if !st.startedTC {
			st.startedTC = true
			events = append(events, map[string]interface{}{
				"type": "content_block_start", "index": tc.Index + 1,
				"content_block": map[string]interface{}{"type": "tool_use", "id": tc.ID, "name": tc.Function.Name, "input": map[string]interface{}{}},
			})
		}
		events = append(events, map[string]interface{}{
			"type": "content_block_delta", "index": tc.Index + 1,
			"delta": map[string]interface{}{"type": "input_json_delta", "partial_json": tc.Function.Arguments},
		})
	}
	if ch.FinishReason != nil {
		events = append(events, map[string]interface{}{
			"type": "message_delta",
			"delta": map[string]interface{}{"stop_reason": claudeStopReasonFromChat(*ch.FinishReason)},
		})
		events = append(events, map[string]interface{}{"type": "message_stop"})
	}
	return events
}

func claudeStopReasonFromChat(fr string) string {
	switch fr {
	case "tool_calls":
		return "tool_use"
	case "length":
		return "max_tokens"
	default:
		return "end_turn"
	}
}

// encodeGeminiEvent re-renders one pump chunk as a Gemini
// streamGenerateContent chunk.
func encodeGeminiEvent(c *streampump.ChatChunk) map[string]interface{} {
	if len(c.Choices) == 0 {
		return nil
	}
	ch := c.Choices[0]
	var parts []map[string]interface{}
	if ch.Delta.Content != "" {
		parts = append(parts, map[string]interface{}{"text": ch.Delta.Content})
	}
	if ch.Delta.ReasoningContent != "" {
		parts = append(parts, map[string]interface{}{"text": ch.Delta.ReasoningContent, "thought": true})
	}
	for _, tc := range ch.Delta.ToolCalls {
		parts = append(parts, map[string]interface{}{
			"functionCall": map[string]interface{}{"name": tc.Function.Name, "args": parseArgsLoose(tc.Function.Arguments)},
		})
	}
	candidate := map[string]interface{}{
		"content": map[string]interface{}{"role": "model", "parts": parts},
	}
	if ch.FinishReason != nil {
		candidate["finishReason"] = geminiFinishFromChat(*ch.FinishReason)
	}
	return map[string]interface{}{"candidates": []interface{}{candidate}}
}

func geminiFinishFromChat(fr string) string {
	switch fr {
	case "tool_calls":
		return "STOP"
	case "length":
		return "MAX_TOKENS"
	case "content_filter":
		return "SAFETY"
	default:
		return "STOP"
	}
}

func parseArgsLoose(s string) map[string]interface{} {
	out := map[string]interface{}{}
	if s == "" {
		return out
	}
	_ = json.Unmarshal([]byte(s), &out)
	return out
}
