// Package streampump re-emits an upstream SSE stream in the requested
// client dialect while the upstream is still streaming. Builds on the same
// bufio.Scanner-based "data: " line parsing with a per-call_id tool-call
// argument accumulator used elsewhere in this codebase, generalized here
// into a dialect-to-dialect pump instead of one fixed upstream-shape-to-
// pivot-shape reader.
package streampump

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/goclaw/router/internal/pivot"
)

// ChatChunk is one OpenAI Chat Completions streaming chunk, the client
// dialect this pump always emits (the gateway translates every inbound
// dialect's stream to OpenAI chunks at the HTTP layer, then re-encodes to
// the client's own dialect if it differs — see internal/gatewayhttp).
type ChatChunk struct {
	ID      string            `json:"id"`
	Object  string            `json:"object"`
	Created int64             `json:"created"`
	Model   string            `json:"model"`
	Choices []ChatChunkChoice `json:"choices"`
}

type ChatChunkChoice struct {
	Index        int            `json:"index"`
	Delta        ChatChunkDelta `json:"delta"`
	FinishReason *string        `json:"finish_reason"`
}

type ChatChunkDelta struct {
	Role             string              `json:"role,omitempty"`
	Content          string              `json:"content,omitempty"`
	ReasoningContent string              `json:"reasoning_content,omitempty"`
	ToolCalls        []ChatChunkToolCall `json:"tool_calls,omitempty"`
}

type ChatChunkToolCall struct {
	Index    int                   `json:"index"`
	ID       string                `json:"id,omitempty"`
	Type     string                `json:"type,omitempty"`
	Function ChatChunkToolFunction `json:"function"`
}

type ChatChunkToolFunction struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// Emit is called once per chunk the pump produces, in order. Sink returns
// an error to abort the pump (e.g. client write failure / disconnect).
type Emit func(chunk *ChatChunk) error

// state tracks everything the pump needs across events within one stream,
// passed by reference rather than threaded through return values.
type state struct {
	id, model string
	roleSent  bool
	textBuf   strings.Builder
	reasonBuf strings.Builder
	toolOrder []string
	toolArgs  map[string]*strings.Builder
	toolNames map[string]string
	emit      Emit
}

func newState(emit Emit) *state {
	return &state{
		toolArgs:  map[string]*strings.Builder{},
		toolNames: map[string]string{},
		emit:      emit,
	}
}

func (s *state) toolIndex(callID string) int {
	for i, id := range s.toolOrder {
		if id == callID {
			return i
		}
	}
	s.toolOrder = append(s.toolOrder, callID)
	return len(s.toolOrder) - 1
}

func (s *state) ensureRole() error {
	if s.roleSent {
		return nil
	}
	s.roleSent = true
	return s.emit(&ChatChunk{
		ID: s.id, Object: "chat.completion.chunk", Model: s.model,
		Choices: []ChatChunkChoice{{Delta: ChatChunkDelta{Role: "assistant"}}},
	})
}

func (s *state) emitTextDelta(delta string) error {
	if delta == "" {
		return nil
	}
	if err := s.ensureRole(); err != nil {
		return err
	}
	s.textBuf.WriteString(delta)
	return s.emit(&ChatChunk{
		ID: s.id, Object: "chat.completion.chunk", Model: s.model,
		Choices: []ChatChunkChoice{{Delta: ChatChunkDelta{Content: delta}}},
	})
}

func (s *state) emitReasoningDelta(delta string) error {
	if delta == "" {
		return nil
	}
	if err := s.ensureRole(); err != nil {
		return err
	}
	s.reasonBuf.WriteString(delta)
	return s.emit(&ChatChunk{
		ID: s.id, Object: "chat.completion.chunk", Model: s.model,
		Choices: []ChatChunkChoice{{Delta: ChatChunkDelta{ReasoningContent: delta}}},
	})
}

// emitToolDelta appends delta to call_id's accumulator and emits only the
// new suffix, preserving first-seen ordering for the tool-call's
// client-visible index.
func (s *state) emitToolDelta(callID, name, delta string) error {
	if err := s.ensureRole(); err != nil {
		return err
	}
	buf, ok := s.toolArgs[callID]
	if !ok {
		buf = &strings.Builder{}
		s.toolArgs[callID] = buf
		if name != "" {
			s.toolNames[callID] = name
		}
	}
	buf.WriteString(delta)
	idx := s.toolIndex(callID)
	return s.emit(&ChatChunk{
		ID: s.id, Object: "chat.completion.chunk", Model: s.model,
		Choices: []ChatChunkChoice{{Delta: ChatChunkDelta{
			ToolCalls: []ChatChunkToolCall{{Index: idx, ID: callID, Type: "function", Function: ChatChunkToolFunction{Name: name, Arguments: delta}}},
		}}},
	})
}

// reconcileToolArgs compares cumulative against the buffered text and
// emits only the non-overlapping suffix.
func (s *state) reconcileToolArgs(callID, name, cumulative string) error {
	buf, ok := s.toolArgs[callID]
	current := ""
	if ok {
		current = buf.String()
	}
	if strings.HasPrefix(cumulative, current) {
		suffix := cumulative[len(current):]
		if suffix == "" {
			return nil
		}
		return s.emitToolDelta(callID, name, suffix)
	}
	// Upstream sent a non-extending "done" value; treat it as the full
	// value and emit it whole (best effort, should not happen upstream).
	return s.emitToolDelta(callID, name, cumulative)
}

func (s *state) emitTerminal(finishReason string) error {
	fr := finishReason
	return s.emit(&ChatChunk{
		ID: s.id, Object: "chat.completion.chunk", Model: s.model,
		Choices: []ChatChunkChoice{{FinishReason: &fr}},
	})
}

// PumpOpenAIResponses reads an upstream OpenAI Responses SSE body and emits
// OpenAI Chat client chunks, the hardest re-encoding case this package
// handles.
func PumpOpenAIResponses(ctx context.Context, upstream io.ReadCloser, emit Emit) error {
	g, ctx := errgroup.WithContext(ctx)
	lines := make(chan string, 64)

	g.Go(func() error {
		defer close(lines)
		return scanSSELines(ctx, upstream, lines)
	})

	g.Go(func() error {
		defer upstream.Close()
		s := newState(emit)
		textSeenViaDelta := false
		finalToolCalls := map[string]bool{}

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case line, ok := <-lines:
				if !ok {
					return nil
				}
				if line == "[DONE]" {
					return nil
				}
				var evt map[string]interface{}
				if err := json.Unmarshal([]byte(line), &evt); err != nil {
					continue // malformed payloads are skipped silently
				}
				typ, _ := evt["type"].(string)

				switch typ {
				case "response.created":
					if r, ok := evt["response"].(map[string]interface{}); ok {
						s.id, _ = r["id"].(string)
						s.model, _ = r["model"].(string)
					}
				case "response.output_text.delta", "response.refusal.delta":
					delta, _ := evt["delta"].(string)
					textSeenViaDelta = textSeenViaDelta || delta != ""
					if err := s.emitTextDelta(delta); err != nil {
						return err
					}
				case "response.output_text.done", "response.refusal.done":
					if !textSeenViaDelta {
						text, _ := evt["text"].(string)
						if err := s.emitTextDelta(text); err != nil {
							return err
						}
					}
				case "response.reasoning.delta", "response.reasoning_summary.delta":
					delta, _ := evt["delta"].(string)
					if err := s.emitReasoningDelta(delta); err != nil {
						return err
					}
				case "response.function_call_arguments.delta":
					callID, _ := evt["call_id"].(string)
					name, _ := evt["name"].(string)
					delta, _ := evt["delta"].(string)
					if err := s.emitToolDelta(callID, name, delta); err != nil {
						return err
					}
				case "response.function_call_arguments.done":
					callID, _ := evt["call_id"].(string)
					args, _ := evt["arguments"].(string)
					finalToolCalls[callID] = true
					if err := s.reconcileToolArgs(callID, "", args); err != nil {
						return err
					}
				case "response.output_item.done":
					if item, ok := evt["item"].(map[string]interface{}); ok {
						if t, _ := item["type"].(string); t == "function_call" {
							callID, _ := item["call_id"].(string)
							name, _ := item["name"].(string)
							args, _ := item["arguments"].(string)
							if !finalToolCalls[callID] {
								if err := s.reconcileToolArgs(callID, name, args); err != nil {
									return err
								}
							}
						}
					}
				case "response.completed":
					finish := "stop"
					if len(s.toolOrder) > 0 {
						finish = "tool_calls"
					}
					if err := s.emitTerminal(finish); err != nil {
						return err
					}
					return emit(doneSentinel())
				}
			}
		}
	})

	return g.Wait()
}

// doneSentinel is a marker chunk meaning "emit [DONE] and stop"; the HTTP
// layer (internal/gatewayhttp) recognizes it by nil Choices.
func doneSentinel() *ChatChunk {
	return &ChatChunk{Object: "done"}
}

// scanSSELines splits upstream on '\n', keeping the trailing partial line
// across reads, forwarding only "data:"-prefixed payloads.
func scanSSELines(ctx context.Context, r io.Reader, out chan<- string) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}
		out <- payload
	}
	return scanner.Err()
}

// PumpNonSSEFallback parses a non-empty, non-SSE body as JSON and replays
// the non-stream translation as a single synthetic chunk sequence, for
// upstreams that claim a streaming content type but never emit a "data:"
// line.
func PumpNonSSEFallback(body []byte, toResponse func(map[string]interface{}) *pivot.Response, emit Emit) error {
	var parsed map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(body), &parsed); err != nil {
		return err
	}
	resp := toResponse(parsed)

	s := newState(emit)
	s.id, s.model = resp.ID, resp.Model
	if resp.ReasoningContent != "" {
		if err := s.emitReasoningDelta(resp.ReasoningContent); err != nil {
			return err
		}
	}
	if resp.Content != "" {
		if err := s.emitTextDelta(resp.Content); err != nil {
			return err
		}
	}
	for _, tc := range resp.ToolCalls {
		if err := s.emitToolDelta(tc.CallID, tc.Name, tc.Arguments); err != nil {
			return err
		}
	}
	if err := s.emitTerminal(string(resp.FinishReason)); err != nil {
		return err
	}
	return emit(doneSentinel())
}
