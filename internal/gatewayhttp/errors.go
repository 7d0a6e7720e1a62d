package gatewayhttp

import (
	"encoding/json"
	"net/http"

	"github.com/goclaw/router/internal/dispatch"
)

// errorEnvelope is the client-facing error shape: {error:{message,type,code}}.
type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes the error envelope. typ is one of
// invalid_request_error|server_error|authentication_error|not_found_error;
// code is one of bad_request|server_error|bad_gateway|unauthorized|
// not_found|invalid_request_error.
func writeError(w http.ResponseWriter, status int, message, typ, code string) {
	writeJSON(w, status, errorEnvelope{Error: errorBody{Message: message, Type: typ, Code: code}})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, message, "invalid_request_error", "bad_request")
}

func writeServerError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, message, "server_error", "server_error")
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("www-authenticate", "Bearer")
	writeError(w, http.StatusUnauthorized, message, "authentication_error", "unauthorized")
}

func writeBadGateway(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadGateway, message, "server_error", "bad_gateway")
}

// writeUpstreamError converts a dispatch failure into the error envelope:
// echo the upstream status when it is >= 400, otherwise 502 with the
// first-observed error body.
func writeUpstreamError(w http.ResponseWriter, err error) {
	derr, ok := err.(*dispatch.Error)
	if !ok {
		writeBadGateway(w, err.Error())
		return
	}
	if derr.StatusCode >= 400 {
		writeError(w, derr.StatusCode, derr.Body, "server_error", "bad_gateway")
		return
	}
	writeBadGateway(w, derr.Body)
}
