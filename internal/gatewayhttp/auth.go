package gatewayhttp

import (
	"net/http"
	"strings"
)

// extractToken pulls a bearer token from the request, checked in this
// order: Authorization: Bearer, lone Authorization, x-api-key,
// x-goog-api-key, anthropic-api-key, x-anthropic-api-key, and for
// /gemini/* only, the "key" query parameter.
func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
			return strings.TrimSpace(auth[len("bearer "):])
		}
		return strings.TrimSpace(auth)
	}
	for _, h := range []string{"x-api-key", "x-goog-api-key", "anthropic-api-key", "x-anthropic-api-key"} {
		if v := r.Header.Get(h); v != "" {
			return v
		}
	}
	if strings.HasPrefix(r.URL.Path, "/gemini/") {
		if v := r.URL.Query().Get("key"); v != "" {
			return v
		}
	}
	return ""
}

// auth wraps next with bearer-token enforcement against the server's
// configured inbound key set. A server with no configured keys refuses
// everything (misconfiguration, not an open gateway).
func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeCORSHeaders(w, r)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if len(s.authKeys) == 0 {
			writeServerError(w, "no inbound auth key configured")
			return
		}
		token := extractToken(r)
		if token == "" {
			writeUnauthorized(w, "missing bearer token")
			return
		}
		if !s.authKeys[token] {
			writeUnauthorized(w, "invalid bearer token")
			return
		}
		next(w, r)
	}
}
