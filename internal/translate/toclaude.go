package translate

import (
	"strings"

	"github.com/goclaw/router/internal/pivot"
)

// ToClaude renders the canonical pivot as an Anthropic Messages upstream
// request body, assembling the same system-block/tool_use shape used
// elsewhere in this codebase for native Anthropic requests.
func ToClaude(req *pivot.Request) map[string]interface{} {
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
	maxTokens := req.MaxOutputTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}
	body["max_tokens"] = maxTokens

	var systemParts []string
	var messages []map[string]interface{}
	var pendingResults []map[string]interface{}

	flushResults := func() {
		if len(pendingResults) > 0 {
			messages = append(messages, map[string]interface{}{
				"role":    "user",
				"content": pendingResults,
			})
			pendingResults = nil
		}
	}

	for _, m := range req.Messages {
		switch {
		case m.Role == pivot.RoleSystem:
			if t := textFromParts(m.Parts); t != "" {
				systemParts = append(systemParts, t)
			}
		case m.Role == pivot.RoleTool && m.ToolResult != nil:
			pendingResults = append(pendingResults, map[string]interface{}{
				"type":        "tool_result",
				"tool_use_id": m.ToolResult.CallID,
				"content":     m.ToolResult.Output,
			})
		default:
			flushResults()
			messages = append(messages, claudeMessageFromPivot(m))
		}
	}
	flushResults()

	system := truncateInstructions(strings.Join(systemParts, "\n\n"), req.MaxInstructionsChars)
	if system != "" {
		if req.NoInstructions {
			messages = append([]map[string]interface{}{{
				"role":    "user",
				"content": []map[string]interface{}{{"type": "text", "text": system}},
			}}, messages...)
		} else {
			body["system"] = system
		}
	}
	body["messages"] = messages

	if len(req.Tools) > 0 {
		var tools []map[string]interface{}
		for _, t := range req.Tools {
			tools = append(tools, map[string]interface{}{
				"name":         t.Name,
				"description":  t.Description,
				"input_schema": t.Parameters,
			})
		}
		body["tools"] = tools
	}
	if tc := toolChoiceToClaude(req.ToolChoice); tc != nil {
		body["tool_choice"] = tc
	}

	return body
}

func claudeMessageFromPivot(m pivot.Message) map[string]interface{} {
	var blocks []map[string]interface{}
	for _, p := range m.Parts {
		switch p.Type {
		case pivot.PartText:
			blocks = append(blocks, map[string]interface{}{"type": "text", "text": p.Text})
		case pivot.PartImage:
			if p.Image != nil {
				blocks = append(blocks, map[string]interface{}{
					"type": "image",
					"source": map[string]interface{}{
						"type":       "base64",
						"media_type": p.Image.MimeType,
						"data":       p.Image.Data,
					},
				})
			}
		}
	}
	for _, tc := range m.ToolCalls {
		blocks = append(blocks, map[string]interface{}{
			"type":  "tool_use",
			"id":    tc.CallID,
			"name":  tc.Name,
			"input": parseArguments(tc.Arguments),
		})
	}

	return map[string]interface{}{"role": string(m.Role), "content": blocks}
}

func toolChoiceToClaude(tc *pivot.ToolChoice) interface{} {
	if tc == nil {
		return nil
	}
	switch tc.Mode {
	case pivot.ToolChoiceAuto:
		return map[string]interface{}{"type": "auto"}
	case pivot.ToolChoiceRequired:
		return map[string]interface{}{"type": "any"}
	case pivot.ToolChoiceNamed:
		return map[string]interface{}{"type": "tool", "name": tc.Name}
	}
	return nil
}
