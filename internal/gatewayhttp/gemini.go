package gatewayhttp

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/goclaw/router/internal/pivot"
	"github.com/goclaw/router/internal/sessioncache"
	"github.com/goclaw/router/internal/streampump"
	"github.com/goclaw/router/internal/translate"
	"github.com/goclaw/router/internal/trimmer"
)

// splitModelAndMethod parses the "{model}:{generateContent|streamGenerateContent}"
// path segment used by the Gemini route.
func splitModelAndMethod(seg string) (model string, stream bool, ok bool) {
	idx := strings.LastIndex(seg, ":")
	if idx < 0 {
		return "", false, false
	}
	model, method := seg[:idx], seg[idx+1:]
	switch method {
	case "generateContent":
		return model, false, true
	case "streamGenerateContent":
		return model, true, true
	default:
		return "", false, false
	}
}

func (s *Server) handleGeminiGenerate(w http.ResponseWriter, r *http.Request) {
	_, logger := requestID(r)
	cfg := s.Config()

	if loop := checkSelfForwardLoop(cfg, r); loop != "" {
		writeServerError(w, "infinite routing loop detected via provider "+loop)
		return
	}

	model, stream, ok := splitModelAndMethod(r.PathValue("modelAndMethod"))
	if !ok {
		writeBadRequest(w, "malformed model:method path segment")
		return
	}

	if model == "" {
		model = s.env.geminiDefaultModel
	}

	var in translate.GeminiRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	in.Model = model
	in.Stream = stream

	pivotReq, err := translate.FromGemini(r.Context(), &in)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	pivotReq.Stream = stream

	sessionKey := sessioncache.DeriveSessionKey(r.Header.Get("x-session-id"), "", model, firstUserText(pivotReq))
	pivotReq.SessionKey = sessionKey

	fillThoughtSignatures(r.Context(), s.cache, sessionKey, pivotReq)

	trimResult := trimmer.Trim(pivotReq.Messages, s.env.trimLimits, false)
	pivotReq.Messages = trimResult.Messages

	provider, err := resolveUpstream(cfg, pivotReq, providerHintFrom(r), s.env)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if !stream {
		resp, err := dispatchNonStream(r.Context(), provider, pivotReq)
		if err != nil {
			writeUpstreamError(w, err)
			return
		}
		saveThoughtSignatures(r.Context(), s.cache, sessionKey, resp.ToolCalls)
		writeJSON(w, http.StatusOK, translate.EncodeGemini(resp))
		return
	}

	sw, ok := newSSEWriter(w)
	if !ok {
		writeServerError(w, "streaming unsupported by this response writer")
		return
	}
	// Gemini is never pumped token-by-token (only openai-responses is); it's
	// dispatched non-stream here so the full response's tool calls — and any
	// thoughtSignature they carry — are available to cache before the
	// synthetic chunk sequence is replayed to the client.
	resp, err := dispatchNonStream(r.Context(), provider, pivotReq)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	saveThoughtSignatures(r.Context(), s.cache, sessionKey, resp.ToolCalls)
	raw, _ := json.Marshal(resp)
	err = streampump.PumpNonSSEFallback(raw, func(map[string]interface{}) *pivot.Response {
		return resp
	}, func(c *streampump.ChatChunk) error {
		if isDoneChunk(c) {
			sw.writeDone()
			return nil
		}
		evt := encodeGeminiEvent(c)
		if evt == nil {
			return nil
		}
		return sw.writeJSON(evt)
	})
	if err != nil {
		logger.Warn("gemini generate stream interrupted", "error", err)
	}
}

// fillThoughtSignatures injects a previously cached thoughtSignature onto
// any outgoing assistant tool call that doesn't already carry one, keyed by
// call_id within this session — the client's own replay of an earlier turn
// often omits it, and Gemini requires it back on the next turn's
// functionCall to keep that call's "thinking" context valid.
func fillThoughtSignatures(ctx context.Context, cache sessioncache.Cache, sessionKey string, req *pivot.Request) {
	for mi := range req.Messages {
		m := &req.Messages[mi]
		for ti := range m.ToolCalls {
			tc := &m.ToolCalls[ti]
			if tc.ThoughtSignature != "" || tc.CallID == "" {
				continue
			}
			if sig, ok := cache.GetThoughtSignature(ctx, sessionKey, tc.CallID); ok {
				tc.ThoughtSignature = sig
			}
		}
	}
}

// saveThoughtSignatures persists every non-empty thoughtSignature carried by
// an upstream response's tool calls, so the next turn can echo it back via
// fillThoughtSignatures.
func saveThoughtSignatures(ctx context.Context, cache sessioncache.Cache, sessionKey string, calls []pivot.ToolCall) {
	for _, tc := range calls {
		if tc.CallID == "" || tc.ThoughtSignature == "" {
			continue
		}
		_ = cache.PutThoughtSignature(ctx, sessionKey, tc.CallID, tc.ThoughtSignature)
	}
}
