package dispatch

import "context"

// geminiShrinkSteps are the maxOutputTokens values tried in order when a
// Gemini JSON response comes back with no candidates. Capped at 3
// reductions plus one no-thinkingConfig retry — see DESIGN.md's
// open-question resolution.
var geminiShrinkSteps = []int{8192, 4096, 2048}

// DispatchGemini wraps Dispatch with Gemini's JSON-endpoint empty-candidate
// retry sequence: shrinking maxOutputTokens, then one retry without
// thinkingConfig, before falling back to the caller's SSE URLs.
func DispatchGemini(ctx context.Context, jsonURLs, sseURLs []string, headers map[string]string, body map[string]interface{}) (*Response, error) {
	resp, err := Dispatch(ctx, jsonURLs, headers, []Variant{{Label: "base", Body: body}}, false)
	if err == nil && hasGeminiCandidates(resp.JSON) {
		return resp, nil
	}

	for _, tokens := range geminiShrinkSteps {
		shrunk := cloneMap(body)
		if gc, ok := shrunk["generationConfig"].(map[string]interface{}); ok {
			gc2 := cloneMap(gc)
			gc2["maxOutputTokens"] = tokens
			shrunk["generationConfig"] = gc2
		}
		resp, err = Dispatch(ctx, jsonURLs, headers, []Variant{{Label: "shrink", Body: shrunk}}, false)
		if err == nil && hasGeminiCandidates(resp.JSON) {
			return resp, nil
		}
	}

	noThinking := cloneMap(body)
	if gc, ok := noThinking["generationConfig"].(map[string]interface{}); ok {
		gc2 := cloneMap(gc)
		delete(gc2, "thinkingConfig")
		noThinking["generationConfig"] = gc2
	}
	resp, err = Dispatch(ctx, jsonURLs, headers, []Variant{{Label: "no_thinking", Body: noThinking}}, false)
	if err == nil && hasGeminiCandidates(resp.JSON) {
		return resp, nil
	}

	if len(sseURLs) > 0 {
		return Dispatch(ctx, sseURLs, headers, []Variant{{Label: "sse_fallback", Body: body}}, true)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func hasGeminiCandidates(json map[string]interface{}) bool {
	if json == nil {
		return false
	}
	cands, ok := json["candidates"].([]interface{})
	return ok && len(cands) > 0
}
