package streampump

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/goclaw/router/internal/pivot"
)

type sseBody struct {
	io.Reader
}

func (sseBody) Close() error { return nil }

func newSSEUpstream(lines ...string) io.ReadCloser {
	return sseBody{strings.NewReader(strings.Join(lines, "\n") + "\n")}
}

func TestPumpOpenAIResponses_TextDeltaAndCompletion(t *testing.T) {
	upstream := newSSEUpstream(
		`data: {"type":"response.created","response":{"id":"resp_1","model":"gpt-5"}}`,
		`data: {"type":"response.output_text.delta","delta":"hel"}`,
		`data: {"type":"response.output_text.delta","delta":"lo"}`,
		`data: {"type":"response.completed"}`,
		`data: [DONE]`,
	)

	var chunks []*ChatChunk
	err := PumpOpenAIResponses(context.Background(), upstream, func(c *ChatChunk) error {
		chunks = append(chunks, c)
		return nil
	})
	if err != nil {
		t.Fatalf("PumpOpenAIResponses() error = %v", err)
	}

	var text strings.Builder
	sawDone := false
	for _, c := range chunks {
		if c.Object == "done" {
			sawDone = true
			continue
		}
		for _, ch := range c.Choices {
			text.WriteString(ch.Delta.Content)
		}
	}
	if text.String() != "hello" {
		t.Errorf("accumulated text = %q, want hello", text.String())
	}
	if !sawDone {
		t.Error("never emitted the done sentinel")
	}
}

func TestPumpOpenAIResponses_ToolCallFinishReason(t *testing.T) {
	upstream := newSSEUpstream(
		`data: {"type":"response.created","response":{"id":"resp_1","model":"gpt-5"}}`,
		`data: {"type":"response.function_call_arguments.delta","call_id":"call_1","name":"lookup","delta":"{\"q\":"}`,
		`data: {"type":"response.function_call_arguments.delta","call_id":"call_1","delta":"\"x\"}"}`,
		`data: {"type":"response.function_call_arguments.done","call_id":"call_1","arguments":"{\"q\":\"x\"}"}`,
		`data: {"type":"response.completed"}`,
	)

	var finishReason string
	err := PumpOpenAIResponses(context.Background(), upstream, func(c *ChatChunk) error {
		if c.Object == "done" {
			return nil
		}
		for _, ch := range c.Choices {
			if ch.FinishReason != nil {
				finishReason = *ch.FinishReason
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("PumpOpenAIResponses() error = %v", err)
	}
	if finishReason != "tool_calls" {
		t.Errorf("finishReason = %q, want tool_calls", finishReason)
	}
}

func TestPumpOpenAIResponses_ReconcileToolArgsSkipsAlreadyEmittedPrefix(t *testing.T) {
	upstream := newSSEUpstream(
		`data: {"type":"response.created","response":{"id":"resp_1","model":"gpt-5"}}`,
		`data: {"type":"response.function_call_arguments.delta","call_id":"call_1","name":"lookup","delta":"{\"q\":\"x\"}"}`,
		`data: {"type":"response.function_call_arguments.done","call_id":"call_1","arguments":"{\"q\":\"x\"}"}`,
	)

	var argDeltas []string
	err := PumpOpenAIResponses(context.Background(), upstream, func(c *ChatChunk) error {
		for _, ch := range c.Choices {
			for _, tc := range ch.Delta.ToolCalls {
				if tc.Function.Arguments != "" {
					argDeltas = append(argDeltas, tc.Function.Arguments)
				}
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("PumpOpenAIResponses() error = %v", err)
	}
	joined := strings.Join(argDeltas, "")
	if joined != `{"q":"x"}` {
		t.Errorf("joined arguments = %q, want {\"q\":\"x\"} with no duplicated suffix", joined)
	}
}

func TestPumpOpenAIResponses_StopsOnEmitError(t *testing.T) {
	upstream := newSSEUpstream(
		`data: {"type":"response.created","response":{"id":"resp_1","model":"gpt-5"}}`,
		`data: {"type":"response.output_text.delta","delta":"x"}`,
		`data: {"type":"response.output_text.delta","delta":"y"}`,
	)
	boom := io.ErrClosedPipe
	calls := 0
	err := PumpOpenAIResponses(context.Background(), upstream, func(c *ChatChunk) error {
		calls++
		return boom
	})
	if err == nil {
		t.Fatal("PumpOpenAIResponses() error = nil, want the sink error surfaced")
	}
	if calls != 1 {
		t.Errorf("got %d emit calls, want exactly 1 (pump stops on first error)", calls)
	}
}

func TestPumpNonSSEFallback(t *testing.T) {
	body := []byte(`{"id":"chatcmpl_1","model":"gpt-5","content":"hi","tool_calls":[]}`)
	toResponse := func(m map[string]interface{}) *pivot.Response {
		return &pivot.Response{ID: m["id"].(string), Model: m["model"].(string), Content: m["content"].(string), FinishReason: pivot.FinishStop}
	}

	var chunks []*ChatChunk
	err := PumpNonSSEFallback(body, toResponse, func(c *ChatChunk) error {
		chunks = append(chunks, c)
		return nil
	})
	if err != nil {
		t.Fatalf("PumpNonSSEFallback() error = %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("no chunks emitted")
	}
	if chunks[len(chunks)-1].Object != "done" {
		t.Error("last chunk was not the done sentinel")
	}

	var text strings.Builder
	for _, c := range chunks {
		for _, ch := range c.Choices {
			text.WriteString(ch.Delta.Content)
		}
	}
	if text.String() != "hi" {
		t.Errorf("got %q, want hi", text.String())
	}
}

func TestScanSSELines_ForwardsOnlyDataLines(t *testing.T) {
	r := bytes.NewBufferString("event: ping\ndata: one\n\ndata: two\n")
	out := make(chan string, 8)
	if err := scanSSELines(context.Background(), r, out); err != nil {
		t.Fatalf("scanSSELines() error = %v", err)
	}
	close(out)
	var got []string
	for line := range out {
		got = append(got, line)
	}
	if len(got) != 2 || got[0] != "one" || got[1] != "two" {
		t.Errorf("got %v, want [one two]", got)
	}
}
