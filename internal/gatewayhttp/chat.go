package gatewayhttp

import (
	"encoding/json"
	"net/http"

	"github.com/goclaw/router/internal/pivot"
	"github.com/goclaw/router/internal/sessioncache"
	"github.com/goclaw/router/internal/streampump"
	"github.com/goclaw/router/internal/translate"
	"github.com/goclaw/router/internal/trimmer"
)

func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	_, logger := requestID(r)
	cfg := s.Config()

	if loop := checkSelfForwardLoop(cfg, r); loop != "" {
		writeServerError(w, "infinite routing loop detected via provider "+loop)
		return
	}

	var in translate.ChatCompletionsRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if in.Model == "" {
		writeBadRequest(w, "missing model")
		return
	}

	pivotReq, err := translate.FromChatCompletions(r.Context(), &in)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	pivotReq.Stream = in.Stream

	sessionKey := sessioncache.DeriveSessionKey(r.Header.Get("x-session-id"), in.User, in.Model, firstUserText(pivotReq))
	pivotReq.SessionKey = sessionKey

	trimResult := trimmer.Trim(pivotReq.Messages, s.env.trimLimits, pivotReq.PreviousResponseID != "")
	pivotReq.Messages = trimResult.Messages

	provider, err := resolveUpstream(cfg, pivotReq, providerHintFrom(r), s.env)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if !pivotReq.Stream {
		resp, err := dispatchNonStream(r.Context(), provider, pivotReq)
		if err != nil {
			writeUpstreamError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, translate.EncodeChatCompletions(resp))
		return
	}

	sw, ok := newSSEWriter(w)
	if !ok {
		writeServerError(w, "streaming unsupported by this response writer")
		return
	}
	err = dispatchStream(r.Context(), provider, pivotReq, func(c *streampump.ChatChunk) error {
		if isDoneChunk(c) {
			sw.writeDone()
			return nil
		}
		return sw.writeJSON(c)
	})
	if err != nil {
		logger.Warn("chat completions stream interrupted", "error", err)
	}
}

// handleLegacyCompletions serves the legacy /v1/completions route. It
// requires a Responses-dialect provider, since the upstream is always
// addressed through translate.ToResponses's request shape for this route.
func (s *Server) handleLegacyCompletions(w http.ResponseWriter, r *http.Request) {
	cfg := s.Config()
	var in struct {
		Model  string `json:"model"`
		Prompt string `json:"prompt"`
		Stream bool   `json:"stream"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if in.Model == "" || in.Prompt == "" {
		writeBadRequest(w, "missing model or prompt")
		return
	}

	chatReq := &translate.ChatCompletionsRequest{
		Model:    in.Model,
		Stream:   in.Stream,
		Messages: []map[string]interface{}{{"role": "user", "content": in.Prompt}},
	}
	pivotReq, err := translate.FromChatCompletions(r.Context(), chatReq)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	pivotReq.Stream = in.Stream

	provider, err := resolveUpstream(cfg, pivotReq, providerHintFrom(r), s.env)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if provider.Type != "openai-responses" {
		writeBadRequest(w, "legacy completions requires a provider with apiMode openai-responses")
		return
	}

	resp, err := dispatchNonStream(r.Context(), provider, pivotReq)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id": resp.ID, "object": "text_completion", "model": resp.Model,
		"choices": []map[string]interface{}{{"index": 0, "text": resp.Content, "finish_reason": string(resp.FinishReason)}},
	})
}

// firstUserText returns the text of the first user message, used to seed
// session-key derivation when no explicit session id is supplied.
func firstUserText(req *pivot.Request) string {
	for _, m := range req.Messages {
		if m.Role != pivot.RoleUser {
			continue
		}
		for _, part := range m.Parts {
			if part.Type == pivot.PartText && part.Text != "" {
				return part.Text
			}
		}
	}
	return ""
}
