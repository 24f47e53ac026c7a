package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Zera-Labs/simple-oracle/cmd/oracle/internal/auth"
	"github.com/Zera-Labs/simple-oracle/cmd/oracle/internal/hub"
	"github.com/Zera-Labs/simple-oracle/cmd/oracle/internal/oracle"
	"github.com/Zera-Labs/simple-oracle/cmd/oracle/internal/protocol"
	"github.com/Zera-Labs/simple-oracle/cmd/oracle/internal/repository"
	"github.com/Zera-Labs/simple-oracle/pkg/models"
)

// Server is the HTTP edge: it translates routes 1:1 onto the core
// operations. Reads go straight to the store; writes go through the
// service so admission, audit and notification stay in one path.
type Server struct {
	store     repository.Store
	svc       *oracle.Service
	authn     *auth.Authenticator
	hub       *hub.Hub
	heartbeat time.Duration
	logger    *zap.Logger
	mux       *http.ServeMux
	server    *http.Server
}

func NewServer(addr string, store repository.Store, svc *oracle.Service, authn *auth.Authenticator, h *hub.Hub, heartbeat time.Duration, logger *zap.Logger) *Server {
	mux := http.NewServeMux()
	s := &Server{
		store:     store,
		svc:       svc,
		authn:     authn,
		hub:       h,
		heartbeat: heartbeat,
		logger:    logger,
		mux:       mux,
		server: &http.Server{
			Addr:        addr,
			Handler:     mux,
			ReadTimeout: 15 * time.Second,
			IdleTimeout: 60 * time.Second,
			// No WriteTimeout: SSE and websocket connections are long-lived.
		},
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	s.mux.HandleFunc("POST /api/v1/admin/login", s.handleLogin)

	s.mux.HandleFunc("GET /api/v1/prices", s.handleListPrices)
	s.mux.HandleFunc("GET /api/v1/prices/{token}", s.handleGetPrice)
	s.mux.HandleFunc("POST /api/v1/prices", s.handleUpsertPrice)
	s.mux.HandleFunc("PATCH /api/v1/prices/{token}", s.handlePatchPrice)
	s.mux.HandleFunc("DELETE /api/v1/prices/{token}", s.handleDeletePrice)

	s.mux.HandleFunc("GET /api/v1/symbols", s.handleListSymbols)
	s.mux.HandleFunc("POST /api/v1/symbols", s.handleUpsertSymbol)

	s.mux.HandleFunc("GET /api/v1/config", s.handleGetConfig)
	s.mux.HandleFunc("PATCH /api/v1/config", s.handlePatchConfig)

	s.mux.HandleFunc("GET /api/v1/audit", s.handleListAudit)

	s.mux.HandleFunc("GET /api/v1/sse", s.handleSSE)
	s.mux.HandleFunc("GET /api/v1/ws", s.handleWS)
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func statusFor(err error) int {
	var vErr *models.ValidationError
	switch {
	case errors.As(err, &vErr):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, models.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		// The triggering call fails; details stay in the log, not the response.
		s.logger.Error("request failed",
			zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
		msg = "internal error"
	}
	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "60")
	}
	s.writeJSON(w, status, protocol.ErrorResponse{Error: msg, Code: status})
}

// requireAdmin authenticates the request's bearer token. On failure it has
// already written the 401 response.
func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	principal, err := s.authn.Authenticate(r.Header.Get("Authorization"))
	if err != nil {
		s.writeError(w, r, err)
		return auth.Principal{}, false
	}
	return principal, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, r, models.Validationf("body", "malformed JSON: %v", err))
		return false
	}
	return true
}
