package gatewayhttp

import (
	"encoding/json"
	"net/http"

	"github.com/goclaw/router/internal/sessioncache"
	"github.com/goclaw/router/internal/streampump"
	"github.com/goclaw/router/internal/translate"
	"github.com/goclaw/router/internal/trimmer"
)

func (s *Server) handleResponses(w http.ResponseWriter, r *http.Request) {
	_, logger := requestID(r)
	cfg := s.Config()

	if loop := checkSelfForwardLoop(cfg, r); loop != "" {
		writeServerError(w, "infinite routing loop detected via provider "+loop)
		return
	}

	var in translate.ResponsesRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if in.Model == "" {
		writeBadRequest(w, "missing model")
		return
	}

	pivotReq, err := translate.FromResponses(r.Context(), &in)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	pivotReq.Stream = in.Stream

	sessionKey := sessioncache.DeriveSessionKey(r.Header.Get("x-session-id"), "", in.Model, firstUserText(pivotReq))
	pivotReq.SessionKey = sessionKey

	if pivotReq.PreviousResponseID == "" {
		if cached, ok := s.cache.Get(r.Context(), sessionKey, sessioncache.NamespacePreviousResponseID); ok {
			pivotReq.PreviousResponseID = string(cached)
		}
	}

	trimResult := trimmer.Trim(pivotReq.Messages, s.env.trimLimits, pivotReq.PreviousResponseID != "")
	pivotReq.Messages = trimmer.SanitizeToolPairs(trimResult.Messages, pivotReq.PreviousResponseID != "")

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
		_ = s.cache.Put(r.Context(), sessionKey, sessioncache.NamespacePreviousResponseID, []byte(resp.ID))
		writeJSON(w, http.StatusOK, translate.EncodeResponses(resp, resp.ID))
		return
	}

	sw, ok := newSSEWriter(w)
	if !ok {
		writeServerError(w, "streaming unsupported by this response writer")
		return
	}
	respID := ""
	err = dispatchStream(r.Context(), provider, pivotReq, func(c *streampump.ChatChunk) error {
		if isDoneChunk(c) {
			sw.writeDone()
			return nil
		}
		if c.ID != "" {
			respID = c.ID
		}
		evt := encodeResponsesEvent(c, respID)
		if evt == nil {
			return nil
		}
		return sw.writeJSON(evt)
	})
	if err != nil {
		logger.Warn("responses stream interrupted", "error", err)
		return
	}
	if respID != "" {
		_ = s.cache.Put(r.Context(), sessionKey, sessioncache.NamespacePreviousResponseID, []byte(respID))
	}
}
