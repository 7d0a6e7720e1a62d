// Package gatewayhttp wires the translation substrate (gwconfig, resolver,
// urlsynth, trimmer, translate, dispatch, streampump, sessioncache) onto an
// HTTP surface: a cached *http.ServeMux built once, method-aware route
// patterns, and a graceful-shutdown http.Server.
package gatewayhttp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/goclaw/router/internal/gwconfig"
	"github.com/goclaw/router/internal/sessioncache"
)

// Server is the gateway's HTTP entry point.
type Server struct {
	cfg      atomic.Pointer[gwconfig.GatewayConfig]
	authKeys map[string]bool
	cache    sessioncache.Cache
	logger   *slog.Logger
	env      envDefaults

	addr       string
	mux        *http.ServeMux
	httpServer *http.Server
}

// Config is the construction-time wiring for a Server.
type Config struct {
	Initial  *gwconfig.GatewayConfig
	AuthKeys []string // from WORKER_AUTH_KEY + WORKER_AUTH_KEYS
	Cache    sessioncache.Cache
	Logger   *slog.Logger
	Addr     string
}

// NewServer builds a Server from cfg. If cache is nil, an in-process Memory
// cache is used.
func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Cache == nil {
		cfg.Cache = sessioncache.NewMemory()
	}
	keys := map[string]bool{}
	for _, k := range cfg.AuthKeys {
		k = strings.TrimSpace(k)
		if k != "" {
			keys[k] = true
		}
	}
	s := &Server{authKeys: keys, cache: cfg.Cache, logger: cfg.Logger, addr: cfg.Addr, env: loadEnvDefaults()}
	s.cfg.Store(cfg.Initial)
	return s
}

// Config returns the currently active provider registry (hot-reloadable,
// see reload.go).
func (s *Server) Config() *gwconfig.GatewayConfig { return s.cfg.Load() }

// SetConfig atomically swaps the active provider registry.
func (s *Server) SetConfig(cfg *gwconfig.GatewayConfig) { s.cfg.Store(cfg) }

// BuildMux creates and caches the HTTP mux with every route registered.
func (s *Server) BuildMux() *http.ServeMux {
	if s.mux != nil {
		return s.mux
	}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /v1/health", s.handleHealth)

	mux.HandleFunc("GET /v1/models", s.auth(s.handleModels))
	mux.HandleFunc("GET /models", s.auth(s.handleModels))
	mux.HandleFunc("GET /openai/v1/models", s.auth(s.handleModels))
	mux.HandleFunc("GET /claude/v1/models", s.auth(s.handleModels))
	mux.HandleFunc("GET /gemini/v1beta/models", s.auth(s.handleGeminiModels))

	mux.HandleFunc("POST /v1/chat/completions", s.auth(s.handleChatCompletions))
	mux.HandleFunc("POST /chat/completions", s.auth(s.handleChatCompletions))
	mux.HandleFunc("POST /v1/completions", s.auth(s.handleLegacyCompletions))
	mux.HandleFunc("POST /completions", s.auth(s.handleLegacyCompletions))

	mux.HandleFunc("POST /v1/responses", s.auth(s.handleResponses))
	mux.HandleFunc("POST /responses", s.auth(s.handleResponses))
	mux.HandleFunc("POST /openai/v1/responses", s.auth(s.handleResponses))

	mux.HandleFunc("POST /claude/v1/messages", s.auth(s.handleClaudeMessages))
	mux.HandleFunc("POST /claude/v1/messages/count_tokens", s.auth(s.handleClaudeCountTokens))

	mux.HandleFunc("POST /gemini/v1beta/models/{modelAndMethod}", s.auth(s.handleGeminiGenerate))

	mux.HandleFunc("/", s.handleCORSOrNotFound)

	s.mux = mux
	return mux
}

// Start serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	mux := s.BuildMux()
	s.httpServer = &http.Server{Addr: s.addr, Handler: mux}

	s.logger.Info("gatewayhttp: starting", "addr", s.addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("gatewayhttp: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "time": time.Now().Unix()})
}

// handleCORSOrNotFound answers bare OPTIONS preflights on any path and
// otherwise 404s, since every real route above is registered explicitly.
func (s *Server) handleCORSOrNotFound(w http.ResponseWriter, r *http.Request) {
	writeCORSHeaders(w, r)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeError(w, http.StatusNotFound, "not found", "not_found_error", "not_found")
}

// requestID mints (or reuses) a per-request correlation id, attached to a
// child logger so every log line from this request carries it.
func requestID(r *http.Request) (string, *slog.Logger) {
	id := r.Header.Get("x-request-id")
	if id == "" {
		id = uuid.NewString()
	}
	return id, slog.Default().With("request_id", id)
}

// checkSelfForwardLoop refuses a request if any configured provider's
// baseURL shares this request's origin+path-prefix, guarding against the
// gateway forwarding a request back to itself.
func checkSelfForwardLoop(cfg *gwconfig.GatewayConfig, r *http.Request) string {
	reqOrigin := requestOrigin(r)
	if reqOrigin == "" {
		return ""
	}
	for _, p := range cfg.Providers {
		for _, base := range strings.Split(p.BaseURL, ",") {
			base = strings.TrimSpace(base)
			if base == "" {
				continue
			}
			if strings.HasPrefix(reqOrigin, originAndPrefix(base)) || strings.HasPrefix(originAndPrefix(base), reqOrigin) {
				return p.ID
			}
		}
	}
	return ""
}

func requestOrigin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("x-forwarded-proto") == "https" {
		scheme = "https"
	}
	if r.Host == "" {
		return ""
	}
	return scheme + "://" + r.Host + r.URL.Path
}

func originAndPrefix(base string) string {
	base = strings.TrimSuffix(base, "/")
	return base
}
