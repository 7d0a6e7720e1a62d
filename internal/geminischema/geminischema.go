// Package geminischema down-converts a JSON Schema object into Gemini's
// OpenAPI-3 subset. Tool parameter schemas are forwarded largely as-is for
// OpenAI-compatible upstreams elsewhere in this codebase, but Gemini needs
// active down-conversion, so this package is new code written in the same
// struct-transform idiom.
package geminischema

import (
	"fmt"
	"strconv"
)

var unsupportedKeys = map[string]bool{
	"additionalProperties": true,
	"$defs":                true,
	"definitions":          true,
	"examples":             true,
	"$schema":              true,
	"$id":                  true,
}

var intStringFields = map[string]bool{
	"minItems":      true,
	"maxItems":      true,
	"minLength":     true,
	"maxLength":     true,
	"minProperties": true,
	"maxProperties": true,
}

// ToGemini converts schema (rooted at document root) to Gemini's schema
// subset. root is the top-level document used to resolve "$ref": "#/...".
func ToGemini(schema map[string]interface{}, root map[string]interface{}) map[string]interface{} {
	return convert(schema, root, map[string]bool{})
}

func convert(schema map[string]interface{}, root map[string]interface{}, visited map[string]bool) map[string]interface{} {
	if schema == nil {
		return nil
	}

	if ref, ok := schema["$ref"].(string); ok {
		if visited[ref] {
			return map[string]interface{}{}
		}
		resolved := resolveRef(root, ref)
		if resolved == nil {
			return map[string]interface{}{}
		}
		visited2 := copyVisited(visited)
		visited2[ref] = true
		merged := mergeMaps(resolved)
		return convert(merged, root, visited2)
	}

	if allOf, ok := schema["allOf"].([]interface{}); ok {
		schema = mergeAllOf(schema, allOf)
	}

	if out, ok := tryNullableUnion(schema, root, visited); ok {
		return out
	}

	out := map[string]interface{}{}

	typ, hasType := schema["type"]
	if !hasType {
		if _, hasProps := schema["properties"]; hasProps {
			typ = "object"
			hasType = true
		}
	}
	if hasType {
		if ts, ok := typ.(string); ok {
			out["type"] = upperType(ts)
		}
	}

	if desc, ok := schema["description"].(string); ok {
		out["description"] = desc
	}
	if enum, ok := schema["enum"]; ok {
		out["enum"] = enum
	}

	if props, ok := schema["properties"].(map[string]interface{}); ok {
		converted := map[string]interface{}{}
		for k, v := range props {
			if sub, ok := v.(map[string]interface{}); ok {
				converted[k] = convert(sub, root, visited)
			}
		}
		out["properties"] = converted
	}
	if req, ok := schema["required"].([]interface{}); ok {
		out["required"] = req
	}
	if items, ok := schema["items"].(map[string]interface{}); ok {
		out["items"] = convert(items, root, visited)
	}

	convertExclusiveBounds(schema, out)
	copyBound(schema, out, "minimum")
	copyBound(schema, out, "maximum")

	for key := range intStringFields {
		if v, ok := schema[key]; ok {
			out[key] = stringifyInt(v)
		}
	}

	for k, v := range schema {
		if unsupportedKeys[k] || isHandledKey(k) {
			continue
		}
		out[k] = v
	}

	return out
}

func isHandledKey(k string) bool {
	switch k {
	case "$ref", "allOf", "anyOf", "oneOf", "type", "description", "enum",
		"properties", "required", "items", "minimum", "maximum",
		"exclusiveMinimum", "exclusiveMaximum",
		"minItems", "maxItems", "minLength", "maxLength",
		"minProperties", "maxProperties":
		return true
	}
	return false
}

// tryNullableUnion handles anyOf/oneOf with exactly two branches where one
// is {type:"null"}: collapses to the non-null branch plus nullable:true.
func tryNullableUnion(schema map[string]interface{}, root map[string]interface{}, visited map[string]bool) (map[string]interface{}, bool) {
	for _, key := range []string{"anyOf", "oneOf"} {
		branches, ok := schema[key].([]interface{})
		if !ok || len(branches) != 2 {
			continue
		}
		var nullIdx, otherIdx = -1, -1
		for i, b := range branches {
			bm, ok := b.(map[string]interface{})
			if !ok {
				continue
			}
			if t, _ := bm["type"].(string); t == "null" {
				nullIdx = i
			} else {
				otherIdx = i
			}
		}
		if nullIdx < 0 || otherIdx < 0 {
			continue
		}
		otherSchema, _ := branches[otherIdx].(map[string]interface{})
		out := convert(otherSchema, root, visited)
		out["nullable"] = true
		return out, true
	}
	return nil, false
}

func convertExclusiveBounds(schema map[string]interface{}, out map[string]interface{}) {
	if v, ok := schema["exclusiveMinimum"]; ok {
		if b, isBool := v.(bool); isBool {
			if b {
				if min, ok := schema["minimum"]; ok {
					out["minimum"] = bumpExclusive(min, true)
				}
			}
		} else {
			out["minimum"] = bumpExclusive(v, true)
		}
	}
	if v, ok := schema["exclusiveMaximum"]; ok {
		if b, isBool := v.(bool); isBool {
			if b {
				if max, ok := schema["maximum"]; ok {
					out["maximum"] = bumpExclusive(max, false)
				}
			}
		} else {
			out["maximum"] = bumpExclusive(v, false)
		}
	}
}

func bumpExclusive(v interface{}, up bool) interface{} {
	f, isFloat := toFloat(v)
	if !isFloat {
		return v
	}
	if f == float64(int64(f)) {
		if up {
			return int64(f) + 1
		}
		return int64(f) - 1
	}
	eps := epsilon(f)
	if up {
		return f + eps
	}
	return f - eps
}

func epsilon(f float64) float64 {
	abs := f
	if abs < 0 {
		abs = -abs
	}
	if abs < 1 {
		abs = 1
	}
	return abs * 1e-9
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func copyBound(schema, out map[string]interface{}, key string) {
	if _, already := out[key]; already {
		return
	}
	if v, ok := schema[key]; ok {
		out[key] = v
	}
}

func stringifyInt(v interface{}) string {
	switch n := v.(type) {
	case string:
		return n
	case float64:
		return strconv.FormatInt(int64(n), 10)
	case int:
		return strconv.Itoa(n)
	case int64:
		return strconv.FormatInt(n, 10)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func upperType(t string) string {
	switch t {
	case "string":
		return "STRING"
	case "number":
		return "NUMBER"
	case "integer":
		return "INTEGER"
	case "boolean":
		return "BOOLEAN"
	case "array":
		return "ARRAY"
	case "object":
		return "OBJECT"
	default:
		return t
	}
}

func mergeAllOf(schema map[string]interface{}, allOf []interface{}) map[string]interface{} {
	merged := map[string]interface{}{}
	for k, v := range schema {
		if k == "allOf" {
			continue
		}
		merged[k] = v
	}

	props, _ := merged["properties"].(map[string]interface{})
	if props == nil {
		props = map[string]interface{}{}
	}
	var required []interface{}
	if r, ok := merged["required"].([]interface{}); ok {
		required = r
	}
	defs := map[string]interface{}{}

	for _, sub := range allOf {
		sm, ok := sub.(map[string]interface{})
		if !ok {
			continue
		}
		if sp, ok := sm["properties"].(map[string]interface{}); ok {
			for k, v := range sp {
				props[k] = v
			}
		}
		if sr, ok := sm["required"].([]interface{}); ok {
			required = append(required, sr...)
		}
		for _, dk := range []string{"$defs", "definitions"} {
			if d, ok := sm[dk].(map[string]interface{}); ok {
				for k, v := range d {
					defs[k] = v
				}
			}
		}
		for k, v := range sm {
			if k == "properties" || k == "required" || k == "$defs" || k == "definitions" {
				continue
			}
			if _, exists := merged[k]; !exists {
				merged[k] = v
			}
		}
	}

	merged["properties"] = props
	if len(required) > 0 {
		merged["required"] = dedupStrings(required)
	}
	return merged
}

func dedupStrings(items []interface{}) []interface{} {
	seen := map[string]bool{}
	var out []interface{}
	for _, v := range items {
		s, ok := v.(string)
		if !ok || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, v)
	}
	return out
}

func resolveRef(root map[string]interface{}, ref string) map[string]interface{} {
	if len(ref) < 2 || ref[0] != '#' {
		return nil
	}
	path := ref[1:]
	if len(path) > 0 && path[0] == '/' {
		path = path[1:]
	}
	cur := root
	for _, seg := range splitPath(path) {
		next, ok := cur[seg].(map[string]interface{})
		if !ok {
			return nil
		}
		cur = next
	}
	return cur
}

func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '/' {
			out = append(out, path[start:i])
			start = i + 1
		}
	}
	return out
}

func mergeMaps(m map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{}
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyVisited(v map[string]bool) map[string]bool {
	out := make(map[string]bool, len(v)+1)
	for k, val := range v {
		out[k] = val
	}
	return out
}
