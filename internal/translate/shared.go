// Package translate converts between the four inbound wire dialects, the
// canonical pivot.Request/pivot.Response, and the four upstream dialects.
// Builds on this codebase's buildRequestBody/parseResponse pairs,
// generalized from one-provider-per-dialect functions into symmetric
// pivot<->dialect converters.
package translate

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/goclaw/router/internal/content"
	"github.com/goclaw/router/internal/pivot"
)

// NewToolCallID mints a call_<uuid-no-dashes> id for inbound tool calls
// that arrive with no id.
func NewToolCallID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return "call_" + hex.EncodeToString(b[:])
}

// ArgumentsToJSON renders a tool call's arguments as a JSON string,
// JSON-stringifying non-string values and falling back to "{}" on failure.
func ArgumentsToJSON(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return "{}"
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "{}"
		}
		return string(b)
	}
}

// partsFromText wraps plain text in a single-part slice, skipping empty text.
func partsFromText(text string) []pivot.Part {
	if text == "" {
		return nil
	}
	return []pivot.Part{{Type: pivot.PartText, Text: text}}
}

// textFromParts concatenates a message's text parts in order.
func textFromParts(parts []pivot.Part) string {
	var b strings.Builder
	for _, p := range parts {
		if p.Type == pivot.PartText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// truncateInstructions bounds a rendered instructions/system string to
// limit runes when limit is positive, cutting on a rune boundary.
func truncateInstructions(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}

// collectImageParts extracts an array-form content field's image entries
// via internal/content, preserving order and dropping any that fail to
// resolve (remote fetch/decode failure).
func collectImageParts(ctx context.Context, items []interface{}) []pivot.Part {
	var parts []pivot.Part
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		typ, _ := m["type"].(string)
		switch typ {
		case "image_url", "input_image":
			ref := m["image_url"]
			if ref == nil {
				ref = m
			}
			img, err := content.ImageFromAny(ctx, ref)
			if err == nil && img != nil {
				parts = append(parts, pivot.Part{Type: pivot.PartImage, Image: img})
			}
		}
	}
	return parts
}

// mapFinishReason normalizes an upstream finish/stop reason string to the
// OpenAI vocabulary. toolCallsPresent overrides any result to "tool_calls".
func mapFinishReason(raw string, toolCallsPresent bool) pivot.FinishReason {
	if toolCallsPresent {
		return pivot.FinishToolCalls
	}
	switch raw {
	case "stop", "end_turn":
		return pivot.FinishStop
	case "length", "max_tokens", "max_tokens_reached":
		return pivot.FinishLength
	case "safety", "recitation", "content_filter":
		return pivot.FinishContentFilter
	default:
		return pivot.FinishStop
	}
}

// mintResponseID reuses an upstream chatcmpl_<suffix> as resp_<suffix> when
// translating toward Responses output, otherwise mints a fresh resp_<uuid>.
func mintResponseID(upstreamID string) string {
	if strings.HasPrefix(upstreamID, "chatcmpl_") {
		return "resp_" + strings.TrimPrefix(upstreamID, "chatcmpl_")
	}
	return "resp_" + newUUIDNoDashes()
}

// mintChatCompletionID mints a chatcmpl_<uuid> id, used for Gemini
// non-stream responses which carry no native response id.
func mintChatCompletionID() string {
	return "chatcmpl_" + newUUIDNoDashes()
}

func newUUIDNoDashes() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	return hex.EncodeToString(b[:])
}

// usageFrom builds a pivot.Usage from whichever field names a dialect uses.
func usageFrom(prompt, completion, total int) *pivot.Usage {
	if total == 0 {
		total = prompt + completion
	}
	return &pivot.Usage{PromptTokens: prompt, CompletionTokens: completion, TotalTokens: total}
}

// parseArguments parses a tool call's JSON-string arguments back into a
// map for dialects (Claude, Gemini) whose wire shape wants a JSON object
// rather than a string. Falls back to an empty object on malformed input.
func parseArguments(args string) map[string]interface{} {
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(args), &m); err != nil {
		return map[string]interface{}{}
	}
	return m
}

var errUnsupported = fmt.Errorf("translate: unsupported operation")
