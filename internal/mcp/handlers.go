// File: internal/mcp/handlers.go
package mcp

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

const (
	// maxCommandBody bounds a POSTed command. It matches the socket line limit.
	maxCommandBody = 16 << 20
	// commandTimeout caps one POSTed command, typing included.
	commandTimeout = 2 * time.Minute
)

// Handlers serves the plain HTTP routes of the server.
type Handlers struct {
	log        *zap.Logger
	dispatcher Dispatcher
	secret     string
}

// NewHandlers creates a new Handlers instance. An empty secret disables
// bearer authentication.
func NewHandlers(logger *zap.Logger, dispatcher Dispatcher, secret string) *Handlers {
	return &Handlers{
		log:        logger.Named("mcp_handlers"),
		dispatcher: dispatcher,
		secret:     secret,
	}
}

// RegisterRoutes mounts the unauthenticated routes and the v1 command API.
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.HandleHealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(commandTimeout))
		r.Use(h.RequireToken)
		r.Post("/command", h.HandleCommand)
	})
}

// HandleHealthCheck is a simple handler to confirm the server is responsive.
func (h *Handlers) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// HandleCommand runs one host command. Command failures are still 200: the
// envelope carries the outcome, as on the socket.
func (h *Handlers) HandleCommand(w http.ResponseWriter, r *http.Request) {
	var req schemas.CommandRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCommandBody))
	if err := dec.Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, fmt.Errorf("Invalid request body: %w", err))
		return
	}
	if req.RequestID == "" {
		req.RequestID = middleware.GetReqID(r.Context())
	}

	h.log.Info("Received command", zap.String("command", req.Command), zap.String("request_id", req.RequestID))
	resp := h.dispatcher.Dispatch(r.Context(), req)
	h.respondWithJSON(w, http.StatusOK, schemas.CommandResponse{Response: resp, RequestID: req.RequestID})
}

// RequireToken rejects requests without a valid bearer token. It is a no-op
// when no secret is configured.
func (h *Handlers) RequireToken(next http.Handler) http.Handler {
	if h.secret == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			h.respondWithError(w, http.StatusUnauthorized, err)
			return
		}
		claims, err := ParseToken(h.secret, token)
		if err != nil {
			h.log.Debug("Rejected token.", zap.Error(err), zap.String("remoteAddr", r.RemoteAddr))
			h.respondWithError(w, http.StatusUnauthorized, err)
			return
		}
		h.log.Debug("Authenticated request.", zap.String("subject", claims.Subject), zap.String("path", r.URL.Path))
		next.ServeHTTP(w, r)
	})
}

// respondWithError sends a failed envelope.
func (h *Handlers) respondWithError(w http.ResponseWriter, statusCode int, err error) {
	h.respondWithJSON(w, statusCode, schemas.Fail(err))
}

func (h *Handlers) respondWithJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Error("Failed to encode response", zap.Error(err))
	}
}
