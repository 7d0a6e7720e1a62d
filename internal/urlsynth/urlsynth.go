// Package urlsynth synthesizes candidate upstream URLs per dialect, using
// the same baseURL-plus-suffix string building used elsewhere in this
// codebase to hand-assemble "<base>/chat/completions" style endpoints.
package urlsynth

import (
	"net/url"
	"strings"
)

// Dialect is an upstream wire dialect.
type Dialect string

const (
	DialectOpenAIResponses Dialect = "openai-responses"
	DialectOpenAIChat      Dialect = "openai-chat-completions"
	DialectClaude          Dialect = "claude"
	DialectGemini          Dialect = "gemini"
)

// PathOverrides carries the endpoints.* overrides a provider config may set
// per dialect, any of which may be empty to fall back to the inferred path.
type PathOverrides struct {
	ResponsesPath       string
	ChatCompletionsPath string
	MessagesPath        string
}

// Synthesize produces an ordered list of candidate URLs for one base string.
// base may itself be a comma-separated list; each entry is expanded in
// order, and existing query/fragment is dropped from every synthesized URL.
func Synthesize(base string, dialect Dialect, paths PathOverrides, modelID string, stream bool) []string {
	var out []string
	for _, b := range strings.Split(base, ",") {
		b = strings.TrimSpace(b)
		if b == "" {
			continue
		}
		out = append(out, synthesizeOne(b, dialect, paths, modelID, stream)...)
	}
	return out
}

func synthesizeOne(base string, dialect Dialect, paths PathOverrides, modelID string, stream bool) []string {
	base = dropQueryAndFragment(base)
	base = strings.TrimRight(base, "/")

	switch dialect {
	case DialectOpenAIResponses:
		return synthesizeSuffixed(base, paths.ResponsesPath, "/responses", "/v1/responses")
	case DialectOpenAIChat:
		return synthesizeSuffixed(base, paths.ChatCompletionsPath, "/chat/completions", "/v1/chat/completions")
	case DialectClaude:
		return synthesizeClaude(base, paths.MessagesPath)
	case DialectGemini:
		return synthesizeGemini(base, modelID, stream)
	default:
		return []string{base}
	}
}

// synthesizeSuffixed implements the Responses/Chat shared rule: if base
// already ends with one of the two candidate suffixes, keep it as-is.
// Otherwise try the inferred candidate first (short suffix if base already
// ends in /v1, else the /v1-prefixed one), then the other, skipping any
// candidate that would produce a doubled /v1/v1/.
func synthesizeSuffixed(base, explicitPath, shortSuffix, longSuffix string) []string {
	if explicitPath != "" {
		if !strings.HasPrefix(explicitPath, "/") {
			explicitPath = "/" + explicitPath
		}
		return []string{collapseV1(base + explicitPath)}
	}

	if strings.HasSuffix(base, shortSuffix) || strings.HasSuffix(base, longSuffix) {
		return []string{base}
	}

	endsV1 := strings.HasSuffix(base, "/v1")
	var ordered []string
	if endsV1 {
		ordered = []string{shortSuffix, longSuffix}
	} else {
		ordered = []string{longSuffix, shortSuffix}
	}

	seen := map[string]bool{}
	var out []string
	for _, suf := range ordered {
		candidate := collapseV1(base + suf)
		if strings.Contains(candidate, "/v1/v1/") {
			continue
		}
		if !seen[candidate] {
			seen[candidate] = true
			out = append(out, candidate)
		}
	}
	return out
}

func synthesizeClaude(base, explicitPath string) []string {
	if explicitPath != "" {
		if !strings.HasPrefix(explicitPath, "/") {
			explicitPath = "/" + explicitPath
		}
		return []string{base + explicitPath}
	}
	if strings.HasSuffix(base, "/messages") {
		return []string{base}
	}
	if strings.HasSuffix(base, "/v1") {
		return []string{base + "/messages"}
	}
	return []string{base + "/v1/messages"}
}

func synthesizeGemini(base, modelID string, stream bool) []string {
	action := "generateContent"
	if stream {
		action = "streamGenerateContent"
	}

	if strings.HasSuffix(base, ":generateContent") || strings.HasSuffix(base, ":streamGenerateContent") {
		idx := strings.LastIndex(base, ":")
		path := base[:idx] + ":" + action
		return []string{addSSEQuery(path, stream)}
	}

	if !strings.Contains(base, "/v1beta") {
		base = base + "/v1beta"
	}
	path := base + "/models/" + modelID + ":" + action
	return []string{addSSEQuery(path, stream)}
}

func addSSEQuery(rawURL string, stream bool) string {
	if !stream {
		return rawURL
	}
	if strings.Contains(rawURL, "?") {
		return rawURL + "&alt=sse"
	}
	return rawURL + "?alt=sse"
}

func collapseV1(s string) string {
	for strings.Contains(s, "/v1/v1/") {
		s = strings.Replace(s, "/v1/v1/", "/v1/", 1)
	}
	if strings.HasSuffix(s, "/v1/v1") {
		s = strings.TrimSuffix(s, "/v1")
	}
	return s
}

func dropQueryAndFragment(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		if i := strings.IndexAny(raw, "?#"); i >= 0 {
			return raw[:i]
		}
		return raw
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
