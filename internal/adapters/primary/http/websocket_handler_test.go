package http

import (
	"context"
	"io"
	"log/slog"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	wsAdapter "github.com/lorrc/service-desk-lifecycle/internal/adapters/primary/websocket"
	"github.com/lorrc/service-desk-lifecycle/internal/auth"
	"github.com/lorrc/service-desk-lifecycle/internal/config"
	"github.com/lorrc/service-desk-lifecycle/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOriginAllowed(t *testing.T) {
	allowed := []string{"desk.example.com", "*.acme.io"}

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"https://desk.example.com", true},
		{"https://evil.example.com", false},
		{"https://eu.acme.io", true},
		{"https://acme.io", true},
		{"https://notacme.io", false},
		{"::not a url", false},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			assert.Equal(t, tt.want, originAllowed(tt.origin, allowed))
		})
	}

	assert.True(t, originAllowed("https://anything.test", []string{"*"}))
}

func TestStreamToken(t *testing.T) {
	req := httptest.NewRequest(stdhttp.MethodGet, "/ws?token=from-query", nil)
	assert.Equal(t, "from-query", streamToken(req))

	req.Header.Set("Authorization", "Bearer from-header")
	assert.Equal(t, "from-header", streamToken(req))

	req.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, streamToken(req), "a non-bearer header is not silently replaced by the query token")
}

func newStreamServer(t *testing.T, env string) (*httptest.Server, *wsAdapter.Hub, *auth.TokenManager) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithCancel(context.Background())
	hub := wsAdapter.NewHub(logger, wsAdapter.Settings{})
	go hub.Run(ctx)

	tm := auth.NewTokenManager(testSecret, time.Hour)
	cfg := &config.Config{
		App:       config.AppConfig{Environment: env},
		WebSocket: config.WebSocketConfig{AllowedOrigins: []string{"desk.example.com"}},
	}
	h := NewWebSocketHandler(hub, tm, NewErrorHandler(logger), cfg, logger)

	srv := httptest.NewServer(h)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return srv, hub, tm
}

func TestWebSocketHandler_RejectsMissingOrBadToken(t *testing.T) {
	srv, hub, _ := newStreamServer(t, "production")

	for _, query := range []string{"", "?token=garbage"} {
		resp, err := stdhttp.Get(srv.URL + query)
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		assert.Equal(t, stdhttp.StatusUnauthorized, resp.StatusCode, query)
		assert.Contains(t, string(body), `"code":"UNAUTHORIZED"`)
	}
	assert.Equal(t, 0, hub.ConnectionCount())
}

func TestWebSocketHandler_StreamsTenantEvents(t *testing.T) {
	srv, hub, tm := newStreamServer(t, "production")
	userID, tenantID := uuid.New(), uuid.New()
	token, err := tm.GenerateToken(userID, tenantID, "technician")
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=" + token
	header := stdhttp.Header{"Origin": []string{"https://desk.example.com"}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool { return hub.ConnectionCount() == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, hub.Broadcast(domain.Event{
		Type:     domain.EventTicketAssigned,
		TicketID: 21,
		TenantID: tenantID,
		Payload:  domain.AssignedPayload{AssigneeID: userID.String(), Score: 70},
	}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	var got map[string]any
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "TICKET_ASSIGNED", got["type"])
	assert.Equal(t, float64(21), got["ticketId"])
}

func TestWebSocketHandler_Origin(t *testing.T) {
	tests := []struct {
		env    string
		origin string
		wantOK bool
	}{
		{"production", "https://evil.example.com", false},
		{"production", "https://desk.example.com", true},
		{"development", "https://evil.example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.env+" "+tt.origin, func(t *testing.T) {
			srv, _, tm := newStreamServer(t, tt.env)
			token, err := tm.GenerateToken(uuid.New(), uuid.New(), "technician")
			require.NoError(t, err)

			url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=" + token
			conn, resp, err := websocket.DefaultDialer.Dial(url, stdhttp.Header{"Origin": []string{tt.origin}})
			if tt.wantOK {
				require.NoError(t, err)
				_ = conn.Close()
				return
			}
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, stdhttp.StatusForbidden, resp.StatusCode)
		})
	}
}
