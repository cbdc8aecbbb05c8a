package websocket

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lorrc/service-desk-lifecycle/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testHub struct {
	hub    *Hub
	srv    *httptest.Server
	cancel context.CancelFunc
}

// startHub serves every connection as the user and tenant named by the
// "user" and "tenant" query parameters.
func startHub(t *testing.T, settings Settings) *testHub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(discardLogger(), settings)
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, _ := uuid.Parse(r.URL.Query().Get("user"))
		tenantID, _ := uuid.Parse(r.URL.Query().Get("tenant"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Serve(conn, userID, tenantID)
	}))

	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return &testHub{hub: hub, srv: srv, cancel: cancel}
}

func (th *testHub) dial(t *testing.T, userID, tenantID uuid.UUID) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(th.srv.URL, "http") + "/?user=" + userID.String() + "&tenant=" + tenantID.String()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, cmd Command) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(cmd))
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	var frame map[string]any
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

// expectSilence must be the last read on conn; a timed-out read breaks it.
func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func watch(t *testing.T, conn *websocket.Conn, ticketID int64, kinds ...domain.EventType) {
	t.Helper()
	send(t, conn, Command{Action: ActionWatch, TicketID: ticketID, Events: kinds})
	frame := readFrame(t, conn)
	require.Equal(t, ReplyWatching, frame["type"], frame)
	require.Equal(t, float64(ticketID), frame["ticketId"])
}

func TestHub_RoomsAreScopedByTenant(t *testing.T) {
	th := startHub(t, Settings{})
	tenantA, tenantB := uuid.New(), uuid.New()

	connA := th.dial(t, uuid.New(), tenantA)
	connB := th.dial(t, uuid.New(), tenantB)
	watch(t, connA, 7)
	watch(t, connB, 7)
	assert.Equal(t, 1, th.hub.Watchers(tenantA, 7))
	assert.Equal(t, 1, th.hub.Watchers(tenantB, 7))

	require.NoError(t, th.hub.Broadcast(domain.Event{
		Type:     domain.EventStatusChanged,
		TicketID: 7,
		TenantID: tenantA,
		Payload:  domain.StatusChangedPayload{From: domain.StatusNew, To: domain.StatusInProgress},
	}))

	got := readFrame(t, connA)
	assert.Equal(t, "STATUS_CHANGED", got["type"])
	assert.Equal(t, float64(7), got["ticketId"])
	assert.NotContains(t, got, "TenantID")
	assert.Equal(t, map[string]any{"from": "new", "to": "in_progress", "actorId": ""}, got["payload"])

	expectSilence(t, connB)
}

func TestHub_WatchFilterSelectsEventKinds(t *testing.T) {
	th := startHub(t, Settings{})
	tenantID := uuid.New()
	conn := th.dial(t, uuid.New(), tenantID)

	send(t, conn, Command{Action: ActionWatch, TicketID: 9, Events: []domain.EventType{domain.EventSLABreached}})
	ack := readFrame(t, conn)
	require.Equal(t, ReplyWatching, ack["type"])
	assert.Equal(t, []any{"SLA_BREACHED"}, ack["events"])

	for _, kind := range []domain.EventType{domain.EventStatusChanged, domain.EventTimeEntryCreated, domain.EventSLABreached} {
		require.NoError(t, th.hub.Broadcast(domain.Event{Type: kind, TicketID: 9, TenantID: tenantID}))
	}

	got := readFrame(t, conn)
	assert.Equal(t, "SLA_BREACHED", got["type"])
	expectSilence(t, conn)
}

func TestHub_RewatchReplacesFilter(t *testing.T) {
	th := startHub(t, Settings{})
	tenantID := uuid.New()
	conn := th.dial(t, uuid.New(), tenantID)

	watch(t, conn, 3, domain.EventSLABreached)
	watch(t, conn, 3)
	assert.Equal(t, 1, th.hub.Watchers(tenantID, 3))

	require.NoError(t, th.hub.Broadcast(domain.Event{Type: domain.EventTimeEntryCreated, TicketID: 3, TenantID: tenantID}))
	assert.Equal(t, "TIME_ENTRY_CREATED", readFrame(t, conn)["type"])
}

func TestHub_AssigneeReceivesAssignmentWithoutWatching(t *testing.T) {
	th := startHub(t, Settings{})
	tenantID := uuid.New()
	assignee := uuid.New()

	tab1 := th.dial(t, assignee, tenantID)
	tab2 := th.dial(t, assignee, tenantID)
	bystander := th.dial(t, uuid.New(), tenantID)
	require.Eventually(t, func() bool { return th.hub.ConnectionCount() == 3 }, time.Second, 10*time.Millisecond)

	require.NoError(t, th.hub.Broadcast(domain.Event{
		Type:     domain.EventTicketAssigned,
		TicketID: 12,
		TenantID: tenantID,
		Payload:  domain.AssignedPayload{AssigneeID: assignee.String(), Score: 85, Automatic: true},
	}))

	for _, conn := range []*websocket.Conn{tab1, tab2} {
		got := readFrame(t, conn)
		assert.Equal(t, "TICKET_ASSIGNED", got["type"])
		assert.Equal(t, float64(12), got["ticketId"])
	}
	expectSilence(t, bystander)
}

func TestHub_AssignmentInAnotherTenantIsNotDelivered(t *testing.T) {
	th := startHub(t, Settings{})
	assignee := uuid.New()
	conn := th.dial(t, assignee, uuid.New())
	require.Eventually(t, func() bool { return th.hub.ConnectionCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, th.hub.Broadcast(domain.Event{
		Type:     domain.EventTicketAssigned,
		TicketID: 12,
		TenantID: uuid.New(),
		Payload:  domain.AssignedPayload{AssigneeID: assignee.String()},
	}))

	expectSilence(t, conn)
}

func TestHub_CommandReplies(t *testing.T) {
	th := startHub(t, Settings{})
	conn := th.dial(t, uuid.New(), uuid.New())

	tests := []struct {
		name     string
		raw      string
		wantType string
		wantMsg  string
	}{
		{"malformed json", `not json`, ReplyError, "malformed command"},
		{"non-positive ticket", `{"action":"watch","ticketId":0}`, ReplyError, "ticketId must be positive"},
		{"unknown event kind", `{"action":"watch","ticketId":4,"events":["TICKET_DELETED"]}`, ReplyError, `unknown event kind "TICKET_DELETED"`},
		{"unknown action", `{"action":"subscribe","ticketId":4}`, ReplyError, `unknown action "subscribe"`},
		{"ping", `{"action":"ping"}`, ReplyPong, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(tt.raw)))
			got := readFrame(t, conn)
			assert.Equal(t, tt.wantType, got["type"])
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, got["message"])
			}
		})
	}
	assert.Equal(t, 1, th.hub.ConnectionCount())
}

func TestHub_WatchLimit(t *testing.T) {
	th := startHub(t, Settings{MaxWatches: 1})
	tenantID := uuid.New()
	conn := th.dial(t, uuid.New(), tenantID)

	watch(t, conn, 1)
	watch(t, conn, 1)

	send(t, conn, Command{Action: ActionWatch, TicketID: 2})
	got := readFrame(t, conn)
	assert.Equal(t, ReplyError, got["type"])
	assert.Equal(t, "too many watched tickets", got["message"])
	assert.Equal(t, 0, th.hub.Watchers(tenantID, 2))
}

func TestHub_UnwatchAndDisconnect(t *testing.T) {
	th := startHub(t, Settings{})
	tenantID := uuid.New()
	conn := th.dial(t, uuid.New(), tenantID)

	watch(t, conn, 9)
	watch(t, conn, 10)

	send(t, conn, Command{Action: ActionUnwatch, TicketID: 9})
	got := readFrame(t, conn)
	assert.Equal(t, ReplyUnwatched, got["type"])
	assert.Equal(t, 0, th.hub.Watchers(tenantID, 9))
	assert.Equal(t, 1, th.hub.Watchers(tenantID, 10))

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return th.hub.ConnectionCount() == 0 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, th.hub.Watchers(tenantID, 10))
}

func TestHub_StopClosesConnections(t *testing.T) {
	th := startHub(t, Settings{})
	conn := th.dial(t, uuid.New(), uuid.New())
	require.Eventually(t, func() bool { return th.hub.ConnectionCount() == 1 }, time.Second, 10*time.Millisecond)

	th.cancel()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNoStatusReceived, websocket.CloseNormalClosure), "got %v", err)

	require.Eventually(t, func() bool {
		return !th.hub.join(newClient(th.hub, nil, uuid.New(), uuid.New()))
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, th.hub.ConnectionCount())
}

func TestEventFilter(t *testing.T) {
	all, err := newEventFilter(nil)
	require.NoError(t, err)
	assert.True(t, all.accepts(domain.EventSLABreached))
	assert.Empty(t, all.kinds())

	some, err := newEventFilter([]domain.EventType{domain.EventTimeEntryCreated, domain.EventStatusChanged})
	require.NoError(t, err)
	assert.True(t, some.accepts(domain.EventStatusChanged))
	assert.False(t, some.accepts(domain.EventTicketAssigned))
	assert.Equal(t, []domain.EventType{domain.EventStatusChanged, domain.EventTimeEntryCreated}, some.kinds())

	_, err = newEventFilter([]domain.EventType{"PONG"})
	assert.Error(t, err)
}

func TestSettingsDefaults(t *testing.T) {
	s := Settings{PongWait: 10 * time.Second, PingInterval: 30 * time.Second}.withDefaults()
	assert.Equal(t, 9*time.Second, s.PingInterval, "ping must fire before the pong deadline")
	assert.Equal(t, DefaultSettings().SendBuffer, s.SendBuffer)
	assert.Equal(t, DefaultSettings().MaxWatches, s.MaxWatches)
}
