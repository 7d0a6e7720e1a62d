package gatewayhttp

import (
	"testing"

	"github.com/goclaw/router/internal/streampump"
)

func strPtr(s string) *string { return &s }

func TestIsDoneChunk(t *testing.T) {
	if !isDoneChunk(&streampump.ChatChunk{}) {
		t.Error("isDoneChunk() = false for a chunk with no choices, want true")
	}
	withChoice := &streampump.ChatChunk{Choices: []streampump.ChatChunkChoice{{}}}
	if isDoneChunk(withChoice) {
		t.Error("isDoneChunk() = true for a chunk with a choice, want false")
	}
}

func TestEncodeResponsesEvent_TextDelta(t *testing.T) {
	c := &streampump.ChatChunk{Choices: []streampump.ChatChunkChoice{{Delta: streampump.ChatChunkDelta{Content: "hi"}}}}
	out := encodeResponsesEvent(c, "resp_1")
	if out["type"] != "response.output_text.delta" || out["delta"] != "hi" {
		t.Errorf("got %+v", out)
	}
}

func TestEncodeResponsesEvent_Completion(t *testing.T) {
	c := &streampump.ChatChunk{Choices: []streampump.ChatChunkChoice{{FinishReason: strPtr("stop")}}}
	out := encodeResponsesEvent(c, "resp_1")
	if out["type"] != "response.completed" {
		t.Errorf("got %+v", out)
	}
	resp := out["response"].(map[string]interface{})
	if resp["id"] != "resp_1" || resp["status"] != "completed" {
		t.Errorf("response = %+v", resp)
	}
}

func TestEncodeResponsesEvent_ToolCallDelta(t *testing.T) {
	c := &streampump.ChatChunk{Choices: []streampump.ChatChunkChoice{{Delta: streampump.ChatChunkDelta{
		ToolCalls: []streampump.ChatChunkToolCall{{ID: "call_1", Function: streampump.ChatChunkToolFunction{Name: "lookup", Arguments: "{}"}}},
	}}}}
	out := encodeResponsesEvent(c, "resp_1")
	if out["type"] != "response.function_call_arguments.delta" || out["call_id"] != "call_1" {
		t.Errorf("got %+v", out)
	}
}

func TestEncodeResponsesEvent_NoChoicesReturnsNil(t *testing.T) {
	if out := encodeResponsesEvent(&streampump.ChatChunk{}, "resp_1"); out != nil {
		t.Errorf("got %+v, want nil", out)
	}
}

func TestEncodeClaudeEvents_TextOpensBlockOnceThenDeltas(t *testing.T) {
	st := &claudeStreamState{}
	first := encodeClaudeEvents(&streampump.ChatChunk{Choices: []streampump.ChatChunkChoice{{Delta: streampump.ChatChunkDelta{Content: "a"}}}}, st)
	if len(first) != 2 || first[0]["type"] != "content_block_start" || first[1]["type"] != "content_block_delta" {
		t.Fatalf("got %+v", first)
	}
	second := encodeClaudeEvents(&streampump.ChatChunk{Choices: []streampump.ChatChunkChoice{{Delta: streampump.ChatChunkDelta{Content: "b"}}}}, st)
	if len(second) != 1 || second[0]["type"] != "content_block_delta" {
		t.Errorf("got %+v, want only a delta on the second call (block already started)", second)
	}
}

func TestEncodeClaudeEvents_ToolUseOpensBlockOnceAtOffsetIndex(t *testing.T) {
	st := &claudeStreamState{}
	c := &streampump.ChatChunk{Choices: []streampump.ChatChunkChoice{{Delta: streampump.ChatChunkDelta{
		ToolCalls: []streampump.ChatChunkToolCall{{Index: 0, ID: "call_1", Function: streampump.ChatChunkToolFunction{Name: "lookup", Arguments: "{\"q\":"}}},
	}}}}
	events := encodeClaudeEvents(c, st)
	if len(events) != 2 || events[0]["type"] != "content_block_start" {
		t.Fatalf("got %+v", events)
	}
	if events[0]["index"] != 1 {
		t.Errorf("index = %v, want 1 (tool_use blocks offset past the text block)", events[0]["index"])
	}
}

func TestEncodeClaudeEvents_FinishEmitsMessageDeltaAndStop(t *testing.T) {
	st := &claudeStreamState{}
	c := &streampump.ChatChunk{Choices: []streampump.ChatChunkChoice{{FinishReason: strPtr("tool_calls")}}}
	events := encodeClaudeEvents(c, st)
	if len(events) != 2 || events[0]["type"] != "message_delta" || events[1]["type"] != "message_stop" {
		t.Fatalf("got %+v", events)
	}
	delta := events[0]["delta"].(map[string]interface{})
	if delta["stop_reason"] != "tool_use" {
		t.Errorf("stop_reason = %v, want tool_use", delta["stop_reason"])
	}
}

func TestClaudeStopReasonFromChat(t *testing.T) {
	tests := map[string]string{"tool_calls": "tool_use", "length": "max_tokens", "stop": "end_turn", "": "end_turn"}
	for in, want := range tests {
		if got := claudeStopReasonFromChat(in); got != want {
			t.Errorf("claudeStopReasonFromChat(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEncodeGeminiEvent_TextAndReasoningParts(t *testing.T) {
	c := &streampump.ChatChunk{Choices: []streampump.ChatChunkChoice{{Delta: streampump.ChatChunkDelta{
		Content: "answer", ReasoningContent: "thinking",
	}}}}
	out := encodeGeminiEvent(c)
	candidates := out["candidates"].([]interface{})
	content := candidates[0].(map[string]interface{})["content"].(map[string]interface{})
	parts := content["parts"].([]map[string]interface{})
	if len(parts) != 2 || parts[0]["text"] != "answer" || parts[1]["thought"] != true {
		t.Errorf("got %+v", parts)
	}
}

func TestEncodeGeminiEvent_ToolCallParsesArgsAsObject(t *testing.T) {
	c := &streampump.ChatChunk{Choices: []streampump.ChatChunkChoice{{Delta: streampump.ChatChunkDelta{
		ToolCalls: []streampump.ChatChunkToolCall{{Function: streampump.ChatChunkToolFunction{Name: "lookup", Arguments: `{"q":"x"}`}}},
	}}}}
	out := encodeGeminiEvent(c)
	candidates := out["candidates"].([]interface{})
	content := candidates[0].(map[string]interface{})["content"].(map[string]interface{})
	parts := content["parts"].([]map[string]interface{})
	fc := parts[0]["functionCall"].(map[string]interface{})
	args := fc["args"].(map[string]interface{})
	if args["q"] != "x" {
		t.Errorf("got %+v", args)
	}
}

func TestGeminiFinishFromChat(t *testing.T) {
	tests := map[string]string{"tool_calls": "STOP", "length": "MAX_TOKENS", "content_filter": "SAFETY", "stop": "STOP"}
	for in, want := range tests {
		if got := geminiFinishFromChat(in); got != want {
			t.Errorf("geminiFinishFromChat(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseArgsLoose_EmptyStringYieldsEmptyObject(t *testing.T) {
	out := parseArgsLoose("")
	if len(out) != 0 {
		t.Errorf("got %+v, want empty", out)
	}
}
