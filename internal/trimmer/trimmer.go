// Package trimmer reduces an oversized conversation down to configured
// limits, using an iterative context-window reduction pass generalized to
// the gateway's turn/message/char budget and extended with the tool-pair
// sanitization pass Responses-style linkage requires.
package trimmer

import (
	"github.com/goclaw/router/internal/pivot"
)

// Limits bounds a trim pass. The zero value is invalid; use Defaults().
type Limits struct {
	MaxTurns      int
	MaxMessages   int
	MaxInputChars int
}

// Defaults returns the gateway's default trim limits.
func Defaults() Limits {
	return Limits{MaxTurns: 40, MaxMessages: 200, MaxInputChars: 300000}
}

// Result is a trimmed conversation plus whether tools were dropped as a
// last resort (callers surface this to translators that omit the tools
// field entirely rather than sending an empty array).
type Result struct {
	Messages     []pivot.Message
	ToolsDropped bool
}

// Trim applies an iterative reduction policy to messages, keeping the
// leading system/developer prefix and never dropping the last user message.
func Trim(messages []pivot.Message, limits Limits, hasPreviousResponseID bool) Result {
	msgs := append([]pivot.Message(nil), messages...)

	prefixEnd := systemPrefixEnd(msgs)
	lastUserIdx := lastUserIndex(msgs)

	for i := 0; i < 12; i++ {
		if withinLimits(msgs, limits) {
			break
		}
		if dropOldestTurn(&msgs, prefixEnd, lastUserIdx) {
			lastUserIdx = lastUserIndex(msgs)
			continue
		}
		if shrinkSystemPrefix(&msgs, &prefixEnd) {
			lastUserIdx = lastUserIndex(msgs)
			continue
		}
		if tailDropNonUser(&msgs, lastUserIdx) {
			continue
		}
		break
	}

	toolsDropped := false
	if over := charCount(msgs) - limits.MaxInputChars; over > 0 {
		truncateLongestField(msgs, over)
	}
	if charCount(msgs) > limits.MaxInputChars {
		toolsDropped = true
		msgs = minimalRequest(msgs, lastUserIdx)
	}

	msgs = SanitizeToolPairs(msgs, hasPreviousResponseID)

	return Result{Messages: msgs, ToolsDropped: toolsDropped}
}

func systemPrefixEnd(msgs []pivot.Message) int {
	i := 0
	for i < len(msgs) && msgs[i].Role == pivot.RoleSystem {
		i++
	}
	return i
}

func lastUserIndex(msgs []pivot.Message) int {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == pivot.RoleUser {
			return i
		}
	}
	return -1
}

func withinLimits(msgs []pivot.Message, limits Limits) bool {
	if countTurns(msgs) > limits.MaxTurns {
		return false
	}
	if len(msgs) > limits.MaxMessages {
		return false
	}
	return charCount(msgs) <= limits.MaxInputChars
}

func countTurns(msgs []pivot.Message) int {
	n := 0
	for _, m := range msgs {
		if m.Role == pivot.RoleUser {
			n++
		}
	}
	return n
}

func charCount(msgs []pivot.Message) int {
	total := 0
	for _, m := range msgs {
		for _, p := range m.Parts {
			total += len(p.Text)
		}
		for _, tc := range m.ToolCalls {
			total += len(tc.Arguments)
		}
		if m.ToolResult != nil {
			total += len(m.ToolResult.Output)
		}
	}
	return total
}

// dropOldestTurn removes the oldest turn (the first user message after the
// system prefix and everything up to, but not including, the next user
// message) as long as it is not the last user message.
func dropOldestTurn(msgs *[]pivot.Message, prefixEnd, lastUserIdx int) bool {
	m := *msgs
	start := -1
	for i := prefixEnd; i < len(m); i++ {
		if m[i].Role == pivot.RoleUser {
			start = i
			break
		}
	}
	if start < 0 || start == lastUserIdx {
		return false
	}
	end := start + 1
	for end < len(m) && m[end].Role != pivot.RoleUser {
		end++
	}
	kept := append([]pivot.Message(nil), m[:start]...)
	kept = append(kept, m[end:]...)
	*msgs = kept
	return true
}

func shrinkSystemPrefix(msgs *[]pivot.Message, prefixEnd *int) bool {
	if *prefixEnd == 0 {
		return false
	}
	m := *msgs
	// drop from the front of the prefix
	*msgs = append(append([]pivot.Message(nil), m[1:]...))
	*prefixEnd--
	return true
}

func tailDropNonUser(msgs *[]pivot.Message, lastUserIdx int) bool {
	m := *msgs
	for i := len(m) - 1; i > lastUserIdx; i-- {
		if m[i].Role != pivot.RoleUser {
			*msgs = append(m[:i:i], m[i+1:]...)
			return true
		}
	}
	return false
}

const truncateMarker = "…[truncated]…"

// truncateLongestField shrinks the single longest string field across all
// messages by overshoot bytes (plus the marker it prepends), keeping the
// tail of the field since the most recent content matters most.
func truncateLongestField(msgs []pivot.Message, overshoot int) {
	type loc struct {
		msgIdx, partIdx int
		kind            string // "text" | "args" | "result"
		toolIdx         int
	}
	var longest loc
	longestLen := -1

	for mi, m := range msgs {
		for pi, p := range m.Parts {
			if len(p.Text) > longestLen {
				longestLen = len(p.Text)
				longest = loc{msgIdx: mi, partIdx: pi, kind: "text"}
			}
		}
		for ti, tc := range m.ToolCalls {
			if len(tc.Arguments) > longestLen {
				longestLen = len(tc.Arguments)
				longest = loc{msgIdx: mi, kind: "args", toolIdx: ti}
			}
		}
		if m.ToolResult != nil && len(m.ToolResult.Output) > longestLen {
			longestLen = len(m.ToolResult.Output)
			longest = loc{msgIdx: mi, kind: "result"}
		}
	}
	if longestLen <= 0 {
		return
	}

	var field *string
	switch longest.kind {
	case "text":
		field = &msgs[longest.msgIdx].Parts[longest.partIdx].Text
	case "args":
		field = &msgs[longest.msgIdx].ToolCalls[longest.toolIdx].Arguments
	case "result":
		field = &msgs[longest.msgIdx].ToolResult.Output
	default:
		return
	}

	target := len(*field) - overshoot - len(truncateMarker)
	if target < 0 {
		target = 0
	}
	*field = truncateMarker + (*field)[len(*field)-target:]
}

func minimalRequest(msgs []pivot.Message, lastUserIdx int) []pivot.Message {
	if lastUserIdx < 0 {
		return nil
	}
	return []pivot.Message{msgs[lastUserIdx]}
}

// SanitizeToolPairs drops orphaned tool_call/tool_result entries so that no
// tool_result ever references a call_id absent from the trimmed window,
// unless the request is anchored by a previous_response_id/conversation
// link (in which case tool results may legitimately refer to calls made in
// a prior, already-discarded turn).
func SanitizeToolPairs(msgs []pivot.Message, anchored bool) []pivot.Message {
	callIDs := map[string]bool{}
	for _, m := range msgs {
		for _, tc := range m.ToolCalls {
			callIDs[normalizeCallID(tc.CallID)] = true
		}
	}

	out := make([]pivot.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.ToolResult != nil {
			id := normalizeCallID(m.ToolResult.CallID)
			if !callIDs[id] && !anchored {
				continue
			}
		}
		if len(m.ToolCalls) > 0 {
			kept := make([]pivot.ToolCall, 0, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				if hasMatchingResult(msgs, normalizeCallID(tc.CallID)) {
					kept = append(kept, tc)
				}
			}
			if len(kept) == 0 && len(m.Parts) == 0 {
				continue
			}
			m.ToolCalls = kept
		}
		out = append(out, m)
	}
	return out
}

func hasMatchingResult(msgs []pivot.Message, callID string) bool {
	for _, m := range msgs {
		if m.ToolResult != nil && normalizeCallID(m.ToolResult.CallID) == callID {
			return true
		}
	}
	return false
}

// normalizeCallID strips a duplicated "fc_" prefix.
func normalizeCallID(id string) string {
	const p = "fc_"
	if len(id) > 2*len(p) && id[:len(p)] == p && id[len(p):2*len(p)] == p {
		return id[len(p):]
	}
	return id
}
