package gatewayhttp

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/goclaw/router/internal/dispatch"
	"github.com/goclaw/router/internal/gwconfig"
	"github.com/goclaw/router/internal/pivot"
	"github.com/goclaw/router/internal/resolver"
	"github.com/goclaw/router/internal/streampump"
	"github.com/goclaw/router/internal/translate"
	"github.com/goclaw/router/internal/urlsynth"
)

// providerHintFrom reads an optional provider hint the client may supply to
// disambiguate a model name shared by two providers. "x-provider" is this
// gateway's own choice of header, documented in DESIGN.md.
func providerHintFrom(r *http.Request) string {
	return r.Header.Get("x-provider")
}

// resolveUpstream runs the model resolver, fills in req.UpstreamModel, and
// applies the resolved model's and the environment's runtime defaults
// (reasoning effort, max output tokens, quirks) before returning the owning
// provider.
func resolveUpstream(cfg *gwconfig.GatewayConfig, req *pivot.Request, hint string, env envDefaults) (*gwconfig.ProviderConfig, error) {
	res, err := resolver.Resolve(cfg, req.Model, hint)
	if err != nil {
		return nil, err
	}
	req.UpstreamModel = res.Model.UpstreamModel
	if req.UpstreamModel == "" {
		req.UpstreamModel = res.Model.ID
	}

	quirks := gwconfig.EffectiveQuirks(res.Provider, res.Model)
	req.NoInstructions = quirks.NoInstructions
	req.NoPreviousResponseID = quirks.NoPreviousResponseID

	req.MaxInstructionsChars = res.Model.MaxInstructionsChars

	if req.Sampling.ReasoningEffort == "" {
		if res.Model.ReasoningEffort != "" {
			req.Sampling.ReasoningEffort = res.Model.ReasoningEffort
		} else {
			req.Sampling.ReasoningEffort = env.reasoningEffort
		}
	}

	if res.Model.MaxTokens > 0 && (req.MaxOutputTokens == 0 || req.MaxOutputTokens > res.Model.MaxTokens) {
		req.MaxOutputTokens = res.Model.MaxTokens
	}
	if res.Provider.Type == "gemini" && req.MaxOutputTokens == 0 && env.geminiMaxOutputTokens > 0 {
		req.MaxOutputTokens = env.geminiMaxOutputTokens
	}

	return res.Provider, nil
}

// upstreamBody renders the pivot request into the owning provider's native
// wire shape.
func upstreamBody(req *pivot.Request, providerType string) map[string]interface{} {
	switch providerType {
	case "openai-responses":
		return translate.ToResponses(req)
	case "claude":
		return translate.ToClaude(req)
	case "gemini":
		return translate.ToGemini(req)
	default:
		return translate.ToChatCompletions(req)
	}
}

// upstreamParse converts a provider's raw JSON response into the canonical
// pivot response.
func upstreamParse(providerType string, raw map[string]interface{}) *pivot.Response {
	switch providerType {
	case "openai-responses":
		return translate.ParseResponsesResponse(raw)
	case "claude":
		return translate.ParseClaudeResponse(raw)
	case "gemini":
		return translate.ParseGeminiResponse(raw)
	default:
		return translate.ParseChatCompletionsResponse(raw)
	}
}

// upstreamHeaders builds the auth/version headers each upstream dialect
// expects. URL synthesis covers the path; this covers headers.
func upstreamHeaders(p *gwconfig.ProviderConfig) map[string]string {
	switch p.Type {
	case "claude":
		return map[string]string{
			"x-api-key":         p.Key,
			"anthropic-version": "2023-06-01",
			"content-type":      "application/json",
		}
	case "gemini":
		return map[string]string{
			"x-goog-api-key": p.Key,
			"content-type":   "application/json",
		}
	default:
		return map[string]string{
			"Authorization": "Bearer " + p.Key,
			"content-type":  "application/json",
		}
	}
}

// synthesizeURLs produces the candidate upstream URL list for p at the
// given stream flag.
func synthesizeURLs(p *gwconfig.ProviderConfig, modelID string, stream bool) []string {
	paths := urlsynth.PathOverrides{
		ResponsesPath:       p.Endpoints.ResponsesPath,
		ChatCompletionsPath: p.Endpoints.ChatCompletionsPath,
		MessagesPath:        p.Endpoints.MessagesPath,
	}
	return urlsynth.Synthesize(p.BaseURL, urlsynth.Dialect(p.Type), paths, modelID, stream)
}

// variantsFor builds the request-variant fan-out: only the Responses
// dialect has documented upstream quirks worth varying; other dialects
// dispatch the single canonical body.
func variantsFor(providerType string, body map[string]interface{}) []dispatch.Variant {
	if providerType == "openai-responses" {
		return dispatch.BuildResponsesVariants(body)
	}
	return []dispatch.Variant{{Label: "default", Body: body}}
}

// dispatchNonStream sends req to its resolved provider and returns the
// canonical pivot response, whose ID carries the upstream response id where
// the upstream dialect has one (used for Responses previous_response_id
// threading).
func dispatchNonStream(ctx context.Context, p *gwconfig.ProviderConfig, req *pivot.Request) (*pivot.Response, error) {
	body := upstreamBody(req, p.Type)
	headers := upstreamHeaders(p)

	if p.Type == "gemini" {
		jsonURLs := synthesizeURLs(p, req.UpstreamModel, false)
		resp, err := dispatch.DispatchGemini(ctx, jsonURLs, nil, headers, body)
		if err != nil {
			return nil, err
		}
		return upstreamParse(p.Type, resp.JSON), nil
	}

	urls := synthesizeURLs(p, req.UpstreamModel, false)
	variants := variantsFor(p.Type, body)
	resp, err := dispatch.Dispatch(ctx, urls, headers, variants, false)
	if err != nil {
		return nil, err
	}
	return upstreamParse(p.Type, resp.JSON), nil
}

// dispatchStream feeds emit with one or more streampump.ChatChunk values
// for req, terminated by the doneSentinel. Only the "openai-responses"
// upstream dialect is actually pumped token-by-token; every other upstream
// dialect is dispatched non-stream and its single response is replayed as a
// synthetic one-shot chunk sequence via streampump.PumpNonSSEFallback, so
// every client still sees well-formed SSE ending in a terminal chunk and
// [DONE].
func dispatchStream(ctx context.Context, p *gwconfig.ProviderConfig, req *pivot.Request, emit streampump.Emit) error {
	headers := upstreamHeaders(p)

	if p.Type == "openai-responses" {
		body := upstreamBody(req, p.Type)
		urls := synthesizeURLs(p, req.UpstreamModel, true)
		variants := variantsFor(p.Type, body)
		resp, err := dispatch.Dispatch(ctx, urls, headers, variants, true)
		if err != nil {
			return err
		}
		if resp.SSE != nil {
			return streampump.PumpOpenAIResponses(ctx, resp.SSE, emit)
		}
		raw, _ := json.Marshal(resp.JSON)
		return streampump.PumpNonSSEFallback(raw, func(m map[string]interface{}) *pivot.Response {
			return upstreamParse(p.Type, m)
		}, emit)
	}

	resp, err := dispatchNonStream(ctx, p, req)
	if err != nil {
		return err
	}
	// PumpNonSSEFallback expects a raw JSON body plus a parser; resp is
	// already parsed, so the parser below just hands it back unchanged and
	// the marshal round trip only exists to satisfy that shape.
	raw, _ := json.Marshal(resp)
	return streampump.PumpNonSSEFallback(raw, func(map[string]interface{}) *pivot.Response {
		return resp
	}, emit)
}
