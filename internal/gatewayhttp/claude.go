package gatewayhttp

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/goclaw/router/internal/dispatch"
	"github.com/goclaw/router/internal/gwconfig"
	"github.com/goclaw/router/internal/sessioncache"
	"github.com/goclaw/router/internal/streampump"
	"github.com/goclaw/router/internal/translate"
	"github.com/goclaw/router/internal/trimmer"
)

func (s *Server) handleClaudeMessages(w http.ResponseWriter, r *http.Request) {
	_, logger := requestID(r)
	cfg := s.Config()

	if loop := checkSelfForwardLoop(cfg, r); loop != "" {
		writeServerError(w, "infinite routing loop detected via provider "+loop)
		return
	}

	var in translate.ClaudeMessagesRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if in.Model == "" {
		in.Model = s.env.claudeDefaultModel
	}
	if in.Model == "" {
		writeBadRequest(w, "missing model")
		return
	}

	pivotReq, err := translate.FromClaudeMessages(r.Context(), &in)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	pivotReq.Stream = in.Stream

	sessionKey := sessioncache.DeriveSessionKey(r.Header.Get("x-session-id"), "", in.Model, firstUserText(pivotReq))
	pivotReq.SessionKey = sessionKey

	trimResult := trimmer.Trim(pivotReq.Messages, s.env.trimLimits, false)
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
		writeJSON(w, http.StatusOK, translate.EncodeClaude(resp))
		return
	}

	sw, ok := newSSEWriter(w)
	if !ok {
		writeServerError(w, "streaming unsupported by this response writer")
		return
	}
	st := &claudeStreamState{}
	err = dispatchStream(r.Context(), provider, pivotReq, func(c *streampump.ChatChunk) error {
		if isDoneChunk(c) {
			sw.writeDone()
			return nil
		}
		for _, evt := range encodeClaudeEvents(c, st) {
			if err := sw.writeJSON(evt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logger.Warn("claude messages stream interrupted", "error", err)
	}
}

// handleClaudeCountTokens serves /claude/v1/messages/count_tokens. It's a
// 400 unless the resolved provider is itself Claude, since token counting is
// not something this gateway can approximate across dialects.
func (s *Server) handleClaudeCountTokens(w http.ResponseWriter, r *http.Request) {
	cfg := s.Config()
	var in translate.ClaudeMessagesRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if in.Model == "" {
		in.Model = s.env.claudeDefaultModel
	}
	if in.Model == "" {
		writeBadRequest(w, "missing model")
		return
	}
	pivotReq, err := translate.FromClaudeMessages(r.Context(), &in)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	provider, err := resolveUpstream(cfg, pivotReq, providerHintFrom(r), s.env)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if provider.Type != "claude" {
		writeBadRequest(w, "count_tokens requires a Claude provider")
		return
	}

	body := translate.ToClaude(pivotReq)
	headers := upstreamHeaders(provider)
	urls := countTokensURLs(provider)
	resp, err := dispatch.Dispatch(r.Context(), urls, headers, []dispatch.Variant{{Label: "default", Body: body}}, false)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp.JSON)
}

// countTokensURLs derives the count_tokens sibling of each synthesized
// Claude messages URL.
func countTokensURLs(p *gwconfig.ProviderConfig) []string {
	urls := synthesizeURLs(p, "", false)
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		out = append(out, strings.Replace(u, "/messages", "/messages/count_tokens", 1))
	}
	return out
}
