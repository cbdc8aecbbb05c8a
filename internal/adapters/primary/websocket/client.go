package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lorrc/service-desk-lifecycle/internal/core/domain"
)

// Commands a client may send.
const (
	ActionWatch   = "watch"
	ActionUnwatch = "unwatch"
	ActionPing    = "ping"
)

// Reply frame types sent back for commands. Lifecycle events use their
// own EventType values.
const (
	ReplyWatching  = "WATCHING"
	ReplyUnwatched = "UNWATCHED"
	ReplyPong      = "PONG"
	ReplyError     = "ERROR"
)

var (
	errTooManyWatches = errors.New("too many watched tickets")
	errClientGone     = errors.New("connection closed")
)

// Command is an inbound frame, for example
// {"action":"watch","ticketId":7,"events":["SLA_BREACHED"]}.
type Command struct {
	Action   string             `json:"action"`
	TicketID int64              `json:"ticketId,omitempty"`
	Events   []domain.EventType `json:"events,omitempty"`
}

// Reply acknowledges or rejects a Command.
type Reply struct {
	Type     string             `json:"type"`
	TicketID int64              `json:"ticketId,omitempty"`
	Events   []domain.EventType `json:"events,omitempty"`
	Message  string             `json:"message,omitempty"`
}

// eventFilter selects event kinds for one watched ticket. An empty filter
// accepts every kind.
type eventFilter map[domain.EventType]struct{}

func newEventFilter(kinds []domain.EventType) (eventFilter, error) {
	f := make(eventFilter, len(kinds))
	for _, k := range kinds {
		if !k.IsLifecycle() {
			return nil, fmt.Errorf("unknown event kind %q", k)
		}
		f[k] = struct{}{}
	}
	return f, nil
}

func (f eventFilter) accepts(t domain.EventType) bool {
	if len(f) == 0 {
		return true
	}
	_, ok := f[t]
	return ok
}

func (f eventFilter) kinds() []domain.EventType {
	out := make([]domain.EventType, 0, len(f))
	for k := range f {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Client is one authenticated connection. watching is guarded by the hub's
// lock; out carries pre-encoded frames to writeLoop.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	userID   uuid.UUID
	tenantID uuid.UUID
	watching map[int64]struct{}
	out      chan []byte
	once     sync.Once
	logger   *slog.Logger
}

func newClient(hub *Hub, conn *websocket.Conn, userID, tenantID uuid.UUID) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		userID:   userID,
		tenantID: tenantID,
		watching: make(map[int64]struct{}),
		out:      make(chan []byte, hub.settings.SendBuffer),
		logger:   hub.logger.With("user_id", userID.String(), "tenant_id", tenantID.String()),
	}
}

func (c *Client) closeOut() {
	c.once.Do(func() { close(c.out) })
}

// readLoop handles commands until the peer goes away or stops answering
// pings.
func (c *Client) readLoop() {
	defer func() {
		c.hub.leave(c)
		_ = c.conn.Close()
	}()

	s := c.hub.settings
	c.conn.SetReadLimit(s.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(s.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(s.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read failed", "error", err)
			}
			return
		}
		c.handle(data)
	}
}

func (c *Client) handle(data []byte) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		c.reply(Reply{Type: ReplyError, Message: "malformed command"})
		return
	}

	switch cmd.Action {
	case ActionWatch:
		if cmd.TicketID <= 0 {
			c.reply(Reply{Type: ReplyError, Message: "ticketId must be positive"})
			return
		}
		filter, err := newEventFilter(cmd.Events)
		if err != nil {
			c.reply(Reply{Type: ReplyError, TicketID: cmd.TicketID, Message: err.Error()})
			return
		}
		if err := c.hub.watch(c, cmd.TicketID, filter); err != nil {
			c.reply(Reply{Type: ReplyError, TicketID: cmd.TicketID, Message: err.Error()})
			return
		}
		c.reply(Reply{Type: ReplyWatching, TicketID: cmd.TicketID, Events: filter.kinds()})

	case ActionUnwatch:
		c.hub.unwatch(c, cmd.TicketID)
		c.reply(Reply{Type: ReplyUnwatched, TicketID: cmd.TicketID})

	case ActionPing:
		c.reply(Reply{Type: ReplyPong})

	default:
		c.reply(Reply{Type: ReplyError, Message: fmt.Sprintf("unknown action %q", cmd.Action)})
	}
}

// reply queues a control frame. It is skipped when the buffer is full or
// the hub has already closed out.
func (c *Client) reply(r Reply) {
	frame, err := json.Marshal(r)
	if err != nil {
		return
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.liveLocked(c) {
		return
	}
	select {
	case c.out <- frame:
	default:
		c.logger.Debug("reply dropped, send buffer full", "type", r.Type)
	}
}

// writeLoop writes queued frames and keeps the connection alive with pings.
func (c *Client) writeLoop() {
	s := c.hub.settings
	ticker := time.NewTicker(s.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(s.WriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Debug("websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(s.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
