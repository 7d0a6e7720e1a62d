package translate

import (
	"github.com/goclaw/router/internal/pivot"
)

// ToGemini renders the canonical pivot as a Gemini generateContent upstream
// request body. Builds on the collapse-tool-calls-without-signature special
// case used elsewhere for Gemini request shaping, generalized here into the
// full functionCall/functionResponse turn assembly the pivot requires for
// arbitrary tool-using conversations.
func ToGemini(req *pivot.Request) map[string]interface{} {
	body := map[string]interface{}{}

	genConfig := map[string]interface{}{}
	if req.Sampling.Temperature != nil {
		genConfig["temperature"] = *req.Sampling.Temperature
	}
	if req.Sampling.TopP != nil {
		genConfig["topP"] = *req.Sampling.TopP
	}
	maxTokens := req.MaxOutputTokens
	if maxTokens == 0 {
		// Some gateways treat absent maxOutputTokens as 0; this one fills in
		// Gemini's own default instead of forwarding 0.
		maxTokens = 65536
	}
	genConfig["maxOutputTokens"] = maxTokens

	includeThoughts := true
	if req.Sampling.IncludeThoughts != nil {
		includeThoughts = *req.Sampling.IncludeThoughts
	}
	genConfig["thinkingConfig"] = map[string]interface{}{"includeThoughts": includeThoughts}
	body["generationConfig"] = genConfig

	var contents []map[string]interface{}
	var systemText string

	i := 0
	for i < len(req.Messages) {
		m := req.Messages[i]
		if m.Role == pivot.RoleSystem {
			systemText += textFromParts(m.Parts)
			i++
			continue
		}

		if m.Role == pivot.RoleAssistant && len(m.ToolCalls) > 0 {
			contents = append(contents, geminiModelTurnWithCalls(m))
			i++

			// Greedily consume the following contiguous tool-role messages
			// and emit one user turn with one functionResponse per
			// preceding functionCall, in order, backfilling any missing
			// output with {output:""} to preserve structural parity.
			results := map[string]string{}
			for i < len(req.Messages) && req.Messages[i].Role == pivot.RoleTool && req.Messages[i].ToolResult != nil {
				results[req.Messages[i].ToolResult.CallID] = req.Messages[i].ToolResult.Output
				i++
			}
			var responseParts []map[string]interface{}
			for _, tc := range m.ToolCalls {
				output, ok := results[tc.CallID]
				if !ok {
					output = ""
				}
				responseParts = append(responseParts, map[string]interface{}{
					"functionResponse": map[string]interface{}{
						"id":   tc.CallID,
						"name": tc.Name,
						"response": map[string]interface{}{"output": output},
					},
				})
			}
			contents = append(contents, map[string]interface{}{"role": "user", "parts": responseParts})
			continue
		}

		contents = append(contents, geminiTurnFromPivot(m))
		i++
	}

	body["contents"] = contents
	if systemText != "" {
		body["systemInstruction"] = map[string]interface{}{
			"role":  "user",
			"parts": []map[string]interface{}{{"text": systemText}},
		}
	}

	if len(req.Tools) > 0 {
		var decls []map[string]interface{}
		for _, t := range req.Tools {
			decls = append(decls, map[string]interface{}{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters,
			})
		}
		body["tools"] = []map[string]interface{}{{"functionDeclarations": decls}}
	}

	return body
}

func geminiModelTurnWithCalls(m pivot.Message) map[string]interface{} {
	var parts []map[string]interface{}
	for _, p := range m.Parts {
		if p.Type == pivot.PartText && p.Text != "" {
			parts = append(parts, map[string]interface{}{"text": p.Text})
		}
	}
	for _, tc := range m.ToolCalls {
		parts = append(parts, map[string]interface{}{
			"functionCall": map[string]interface{}{
				"id":   tc.CallID,
				"name": tc.Name,
				"args": parseArguments(tc.Arguments),
			},
		})
		// thoughtSignature is a sibling of functionCall, not nested inside it.
		if tc.ThoughtSignature != "" {
			parts = append(parts, map[string]interface{}{"thoughtSignature": tc.ThoughtSignature})
		}
	}
	return map[string]interface{}{"role": "model", "parts": parts}
}

func geminiTurnFromPivot(m pivot.Message) map[string]interface{} {
	role := "user"
	if m.Role == pivot.RoleAssistant {
		role = "model"
	}
	var parts []map[string]interface{}
	if m.ReasoningContent != "" {
		parts = append(parts, map[string]interface{}{"text": m.ReasoningContent, "thought": true})
	}
	for _, p := range m.Parts {
		switch p.Type {
		case pivot.PartText:
			parts = append(parts, map[string]interface{}{"text": p.Text})
		case pivot.PartImage:
			if p.Image != nil {
				parts = append(parts, map[string]interface{}{
					"inlineData": map[string]interface{}{"mimeType": p.Image.MimeType, "data": p.Image.Data},
				})
			}
		}
	}
	return map[string]interface{}{"role": role, "parts": parts}
}
