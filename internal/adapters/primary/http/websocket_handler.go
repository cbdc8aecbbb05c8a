package http

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	wsAdapter "github.com/lorrc/service-desk-lifecycle/internal/adapters/primary/websocket"
	"github.com/lorrc/service-desk-lifecycle/internal/auth"
	"github.com/lorrc/service-desk-lifecycle/internal/config"
	apperrors "github.com/lorrc/service-desk-lifecycle/internal/core/errors"
)

// WebSocketHandler upgrades authenticated requests to a lifecycle event
// stream served by the hub.
type WebSocketHandler struct {
	hub          *wsAdapter.Hub
	tm           *auth.TokenManager
	errorHandler *ErrorHandler
	upgrader     websocket.Upgrader
	logger       *slog.Logger
}

func NewWebSocketHandler(
	hub *wsAdapter.Hub,
	tm *auth.TokenManager,
	errorHandler *ErrorHandler,
	cfg *config.Config,
	logger *slog.Logger,
) *WebSocketHandler {
	h := &WebSocketHandler{
		hub:          hub,
		tm:           tm,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "websocket"),
	}
	allowAny := cfg.IsDevelopment()
	allowed := cfg.WebSocket.AllowedOrigins
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: cfg.WebSocket.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if allowAny || originAllowed(origin, allowed) {
				return true
			}
			h.logger.Warn("websocket origin rejected",
				"origin", origin,
				"remote_addr", r.RemoteAddr,
			)
			return false
		},
	}
	return h
}

// ServeHTTP handles GET /api/v1/ws. Browsers cannot set headers on the
// upgrade request, so the token may also travel as ?token=.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := streamToken(r)
	if token == "" {
		h.errorHandler.Handle(w, r, apperrors.ErrUnauthorized)
		return
	}
	claims, err := h.tm.ValidateToken(token)
	if err != nil {
		h.errorHandler.Handle(w, r, apperrors.ErrUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written the error response.
		h.logger.Warn("websocket upgrade failed",
			"request_id", GetRequestID(r.Context()),
			"user_id", claims.UserID,
			"error", err,
		)
		return
	}

	if !h.hub.Serve(conn, claims.UserID, claims.TenantID) {
		h.logger.Warn("websocket refused, hub stopped", "user_id", claims.UserID)
	}
}

func streamToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

// originAllowed accepts requests without an Origin header (non-browser
// clients) and origins whose host matches an entry. "*.example.com" also
// matches example.com itself.
func originAllowed(origin string, allowed []string) bool {
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	for _, entry := range allowed {
		if entry == "*" || entry == u.Host {
			return true
		}
		if base, ok := strings.CutPrefix(entry, "*."); ok {
			if u.Host == base || strings.HasSuffix(u.Host, "."+base) {
				return true
			}
		}
	}
	return false
}
