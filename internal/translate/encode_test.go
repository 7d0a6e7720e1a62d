package translate

import (
	"testing"

	"github.com/goclaw/router/internal/pivot"
)

func TestEncodeChatCompletions_ToolCallsNullContent(t *testing.T) {
	resp := &pivot.Response{
		Model:        "gpt-5",
		ToolCalls:    []pivot.ToolCall{{CallID: "call_1", Name: "lookup", Arguments: "{}"}},
		FinishReason: pivot.FinishToolCalls,
	}
	out := EncodeChatCompletions(resp)
	choices := out["choices"].([]map[string]interface{})
	message := choices[0]["message"].(map[string]interface{})
	if message["content"] != nil {
		t.Errorf("content = %v, want nil when tool calls are present", message["content"])
	}
	calls := message["tool_calls"].([]map[string]interface{})
	if len(calls) != 1 || calls[0]["id"] != "call_1" {
		t.Errorf("got %+v", calls)
	}
	if choices[0]["finish_reason"] != "tool_calls" {
		t.Errorf("finish_reason = %v", choices[0]["finish_reason"])
	}
}

func TestEncodeChatCompletions_MintsIDWhenEmpty(t *testing.T) {
	out := EncodeChatCompletions(&pivot.Response{})
	if out["id"] == "" {
		t.Error("id was not minted for an empty upstream ID")
	}
}

func TestEncodeResponses_StatusIncompleteOnLengthFinish(t *testing.T) {
	resp := &pivot.Response{Content: "partial", FinishReason: pivot.FinishLength}
	out := EncodeResponses(resp, "chatcmpl_abc")
	if out["status"] != "incomplete" {
		t.Errorf("status = %v, want incomplete", out["status"])
	}
	if out["id"] != "resp_abc" {
		t.Errorf("id = %v, want resp_abc (reused chatcmpl_ suffix)", out["id"])
	}
}

func TestEncodeResponses_ToolCallAndReasoningItems(t *testing.T) {
	resp := &pivot.Response{
		ToolCalls:        []pivot.ToolCall{{CallID: "call_1", Name: "lookup", Arguments: "{}"}},
		ReasoningContent: "thinking",
		FinishReason:     pivot.FinishToolCalls,
	}
	out := EncodeResponses(resp, "")
	output := out["output"].([]map[string]interface{})
	var sawCall, sawReasoning bool
	for _, item := range output {
		switch item["type"] {
		case "function_call":
			sawCall = true
		case "reasoning":
			sawReasoning = true
		}
	}
	if !sawCall || !sawReasoning {
		t.Errorf("got output=%v, want both a function_call and a reasoning item", output)
	}
}

func TestEncodeClaude_StopReasonMapping(t *testing.T) {
	tests := []struct {
		fr   pivot.FinishReason
		want string
	}{
		{pivot.FinishToolCalls, "tool_use"},
		{pivot.FinishLength, "max_tokens"},
		{pivot.FinishStop, "end_turn"},
	}
	for _, tt := range tests {
		out := EncodeClaude(&pivot.Response{FinishReason: tt.fr})
		if out["stop_reason"] != tt.want {
			t.Errorf("stop_reason = %v, want %v", out["stop_reason"], tt.want)
		}
	}
}

func TestEncodeClaude_ThinkingBlockOrderedBeforeText(t *testing.T) {
	resp := &pivot.Response{Content: "answer", ReasoningContent: "thinking"}
	out := EncodeClaude(resp)
	blocks := out["content"].([]map[string]interface{})
	if len(blocks) != 2 || blocks[0]["type"] != "thinking" || blocks[1]["type"] != "text" {
		t.Errorf("got %+v, want [thinking, text]", blocks)
	}
}

func TestEncodeGemini_FinishReasonMapping(t *testing.T) {
	tests := []struct {
		fr   pivot.FinishReason
		want string
	}{
		{pivot.FinishLength, "MAX_TOKENS"},
		{pivot.FinishContentFilter, "SAFETY"},
		{pivot.FinishStop, "STOP"},
	}
	for _, tt := range tests {
		out := EncodeGemini(&pivot.Response{FinishReason: tt.fr})
		candidates := out["candidates"].([]map[string]interface{})
		if candidates[0]["finishReason"] != tt.want {
			t.Errorf("finishReason = %v, want %v", candidates[0]["finishReason"], tt.want)
		}
	}
}

func TestEncodeGemini_ThoughtSignatureFollowsFunctionCall(t *testing.T) {
	resp := &pivot.Response{
		ToolCalls: []pivot.ToolCall{{CallID: "call_1", Name: "lookup", Arguments: "{}", ThoughtSignature: "sig-1"}},
	}
	out := EncodeGemini(resp)
	candidates := out["candidates"].([]map[string]interface{})
	content := candidates[0]["content"].(map[string]interface{})
	parts := content["parts"].([]map[string]interface{})
	if len(parts) != 2 {
		t.Fatalf("got %d parts, want 2 (functionCall + sibling thoughtSignature)", len(parts))
	}
	if _, ok := parts[0]["functionCall"]; !ok {
		t.Errorf("parts[0] = %+v, want functionCall", parts[0])
	}
	if parts[1]["thoughtSignature"] != "sig-1" {
		t.Errorf("parts[1] = %+v, want thoughtSignature sig-1", parts[1])
	}
}
