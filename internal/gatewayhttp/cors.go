package gatewayhttp

import "net/http"

const corsAllowedHeaders = "authorization,content-type,x-session-id,x-api-key,x-goog-api-key,anthropic-api-key,x-anthropic-api-key,anthropic-version,anthropic-beta"

// writeCORSHeaders echoes the request's own Origin back (or "*" when absent)
// rather than checking against a fixed allowlist. There is no configurable
// origin allowlist yet; see DESIGN.md.
func writeCORSHeaders(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		origin = "*"
	}
	h := w.Header()
	h.Set("access-control-allow-origin", origin)
	h.Set("access-control-allow-methods", "GET,POST,OPTIONS")
	h.Set("access-control-allow-headers", corsAllowedHeaders)
}
