// Package dispatch generates tolerant request-body variants and drives the
// upstream HTTP dispatcher with failover and retry. Builds on this
// codebase's single fixed-body POST-and-parse request loop, generalized
// here into a URL×variant iteration with empty-SSE and retryable-status
// classification a single-shot request never needed.
package dispatch

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// Variant is one candidate request body plus a human label for logging.
type Variant struct {
	Label string
	Body  map[string]interface{}
}

// BuildResponsesVariants generates up to a dozen tolerant variants from one
// canonical Responses body, applying one axis transformation at a time,
// then dedupes by stable JSON form, preserving list order.
func BuildResponsesVariants(base map[string]interface{}) []Variant {
	var variants []Variant
	variants = append(variants, Variant{Label: "base", Body: cloneMap(base)})

	variants = append(variants, withMaxTokensAlias(base)...)
	variants = append(variants, withInstructionsHoisted(base)...)
	variants = append(variants, withPlainStringInput(base)...)
	variants = append(variants, withFabricatedPrompt(base)...)
	variants = append(variants, withImageURLAsObject(base)...)
	variants = append(variants, withReasoningAxis(base)...)
	variants = append(variants, withStrippedExtras(base)...)

	return dedupeVariants(variants)
}

func withMaxTokensAlias(base map[string]interface{}) []Variant {
	v, ok := base["max_output_tokens"]
	if !ok {
		return nil
	}
	m := cloneMap(base)
	delete(m, "max_output_tokens")
	m["max_tokens"] = v
	return []Variant{{Label: "max_tokens_alias", Body: m}}
}

func withInstructionsHoisted(base map[string]interface{}) []Variant {
	instr, ok := base["instructions"].(string)
	if !ok || instr == "" {
		return nil
	}
	m := cloneMap(base)
	delete(m, "instructions")
	input, _ := m["input"].([]map[string]interface{})
	hoisted := append([]map[string]interface{}{{
		"role":    "system",
		"content": []map[string]interface{}{{"type": "input_text", "text": instr}},
	}}, input...)
	m["input"] = hoisted
	return []Variant{{Label: "instructions_hoisted", Body: m}}
}

func withPlainStringInput(base map[string]interface{}) []Variant {
	input, ok := base["input"].([]map[string]interface{})
	if !ok || hasImagesOrTools(input) {
		return nil
	}
	m := cloneMap(base)
	var flat []map[string]interface{}
	for _, item := range input {
		role, _ := item["role"].(string)
		if role == "" {
			continue
		}
		text := flattenTextContent(item["content"])
		flat = append(flat, map[string]interface{}{"role": role, "content": text})
	}
	m["input"] = flat
	return []Variant{{Label: "plain_string_input", Body: m}}
}

func withFabricatedPrompt(base map[string]interface{}) []Variant {
	input, ok := base["input"].([]map[string]interface{})
	if !ok || hasImagesOrTools(input) {
		return nil
	}
	var lines []string
	for _, item := range input {
		role, _ := item["role"].(string)
		text := flattenTextContent(item["content"])
		lines = append(lines, role+": "+text)
	}
	prompt := joinLines(lines)
	m := cloneMap(base)
	delete(m, "input")
	m["prompt"] = prompt
	return []Variant{{Label: "fabricated_prompt", Body: m}}
}

func withImageURLAsObject(base map[string]interface{}) []Variant {
	input, ok := base["input"].([]map[string]interface{})
	if !ok {
		return nil
	}
	changed := false
	newInput := make([]map[string]interface{}, len(input))
	for i, item := range input {
		content, ok := item["content"].([]map[string]interface{})
		if !ok {
			newInput[i] = item
			continue
		}
		newContent := make([]map[string]interface{}, len(content))
		for j, part := range content {
			url, ok := part["image_url"].(string)
			if !ok {
				newContent[j] = part
				continue
			}
			changed = true
			np := cloneMap(part)
			np["image_url"] = map[string]interface{}{"url": url}
			newContent[j] = np
		}
		ni := cloneMap(item)
		ni["content"] = newContent
		newInput[i] = ni
	}
	if !changed {
		return nil
	}
	m := cloneMap(base)
	m["input"] = newInput
	return []Variant{{Label: "image_url_object", Body: m}}
}

func withReasoningAxis(base map[string]interface{}) []Variant {
	effort, ok := base["reasoning"].(map[string]interface{})
	if !ok {
		return nil
	}
	e, _ := effort["effort"].(string)
	if e == "" {
		return nil
	}
	m := cloneMap(base)
	delete(m, "reasoning")
	m["reasoning_effort"] = e
	return []Variant{{Label: "reasoning_effort_flat", Body: m}}
}

func withStrippedExtras(base map[string]interface{}) []Variant {
	_, hasA := base["prompt_cache_retention"]
	_, hasB := base["safety_identifier"]
	if !hasA && !hasB {
		return nil
	}
	m := cloneMap(base)
	delete(m, "prompt_cache_retention")
	delete(m, "safety_identifier")
	return []Variant{{Label: "stripped_extras", Body: m}}
}

func hasImagesOrTools(input []map[string]interface{}) bool {
	if len(input) == 0 {
		return false
	}
	for _, item := range input {
		if _, ok := item["type"]; ok {
			return true // function_call / function_call_output
		}
		content, ok := item["content"].([]map[string]interface{})
		if !ok {
			continue
		}
		for _, part := range content {
			if t, _ := part["type"].(string); t == "input_image" {
				return true
			}
		}
	}
	return false
}

func flattenTextContent(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case []map[string]interface{}:
		var out string
		for _, part := range val {
			if t, ok := part["text"].(string); ok {
				out += t
			}
		}
		return out
	}
	return ""
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// dedupeVariants suppresses variants whose stable JSON form repeats an
// earlier one, preserving first-seen order.
func dedupeVariants(variants []Variant) []Variant {
	seen := map[string]bool{}
	var out []Variant
	for _, v := range variants {
		key := stableJSON(v.Body)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}

func stableJSON(m map[string]interface{}) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ordered := make(map[string]interface{}, len(m))
	for _, k := range keys {
		ordered[k] = m[k]
	}
	b, _ := json.Marshal(ordered)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
