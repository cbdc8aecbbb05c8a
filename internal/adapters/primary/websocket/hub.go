package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lorrc/service-desk-lifecycle/internal/core/domain"
	"github.com/lorrc/service-desk-lifecycle/internal/core/ports"
)

// Settings tune the connection keep-alive and per-connection limits.
type Settings struct {
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
	SendBuffer     int
	MaxWatches     int
}

func DefaultSettings() Settings {
	return Settings{
		PingInterval:   54 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 1024,
		SendBuffer:     256,
		MaxWatches:     100,
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.PongWait <= 0 {
		s.PongWait = d.PongWait
	}
	if s.PingInterval <= 0 || s.PingInterval >= s.PongWait {
		s.PingInterval = s.PongWait * 9 / 10
	}
	if s.WriteWait <= 0 {
		s.WriteWait = d.WriteWait
	}
	if s.MaxMessageSize <= 0 {
		s.MaxMessageSize = d.MaxMessageSize
	}
	if s.SendBuffer <= 0 {
		s.SendBuffer = d.SendBuffer
	}
	if s.MaxWatches <= 0 {
		s.MaxWatches = d.MaxWatches
	}
	return s
}

// roomKey scopes a ticket room to its tenant. Ticket IDs are only unique
// within a tenant, so two tenants never share a room.
type roomKey struct {
	tenantID uuid.UUID
	ticketID int64
}

// Hub routes lifecycle events to connected clients. A client receives an
// event when it watches the ticket for that event kind, or when the event
// assigns the ticket to the client's user.
type Hub struct {
	settings Settings

	// users maps a user to every open connection (tabs, devices).
	users map[uuid.UUID]map[*Client]struct{}

	// rooms maps a tenant's ticket to its watchers and their filters.
	rooms map[roomKey]map[*Client]eventFilter

	inbox   chan domain.Event
	stopped bool

	mu     sync.RWMutex
	logger *slog.Logger
}

var _ ports.EventBroadcaster = (*Hub)(nil)

func NewHub(logger *slog.Logger, settings Settings) *Hub {
	return &Hub{
		settings: settings.withDefaults(),
		users:    make(map[uuid.UUID]map[*Client]struct{}),
		rooms:    make(map[roomKey]map[*Client]eventFilter),
		inbox:    make(chan domain.Event, 256),
		logger:   logger.With("component", "websocket_hub"),
	}
}

// Broadcast queues an event for delivery. It never blocks the caller; a
// full queue drops the event with a warning.
func (h *Hub) Broadcast(event domain.Event) error {
	select {
	case h.inbox <- event:
	default:
		h.logger.Warn("event queue full, dropping event",
			"event_type", event.Type,
			"ticket_id", event.TicketID,
		)
	}
	return nil
}

// Run delivers queued events until ctx is cancelled, then closes every
// connection.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case event := <-h.inbox:
			h.deliver(event)
		}
	}
}

// Serve attaches an upgraded connection for the given user and starts its
// pumps. It returns false, closing conn, once the hub has stopped.
func (h *Hub) Serve(conn *websocket.Conn, userID, tenantID uuid.UUID) bool {
	c := newClient(h, conn, userID, tenantID)
	if !h.join(c) {
		_ = conn.Close()
		return false
	}
	go c.writeLoop()
	go c.readLoop()
	return true
}

func (h *Hub) join(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return false
	}
	if h.users[c.userID] == nil {
		h.users[c.userID] = make(map[*Client]struct{})
	}
	h.users[c.userID][c] = struct{}{}

	h.logger.Info("client connected",
		"user_id", c.userID,
		"tenant_id", c.tenantID,
		"user_connections", len(h.users[c.userID]),
	)
	return true
}

func (h *Hub) leave(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c)
}

func (h *Hub) dropLocked(c *Client) {
	conns, ok := h.users[c.userID]
	if !ok {
		return
	}
	if _, ok := conns[c]; !ok {
		return
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(h.users, c.userID)
	}

	for ticketID := range c.watching {
		h.leaveRoomLocked(c, ticketID)
	}
	c.closeOut()

	h.logger.Info("client disconnected", "user_id", c.userID)
}

// deliver encodes the event once and fans the frame out to its recipients.
// A recipient whose buffer is full is dropped.
func (h *Hub) deliver(event domain.Event) {
	frame, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to encode event", "event_type", event.Type, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	recipients := h.recipientsLocked(event)
	for c := range recipients {
		select {
		case c.out <- frame:
		default:
			h.logger.Warn("client too slow, disconnecting",
				"user_id", c.userID,
				"event_type", event.Type,
			)
			h.dropLocked(c)
		}
	}

	h.logger.Debug("event delivered",
		"event_type", event.Type,
		"ticket_id", event.TicketID,
		"recipients", len(recipients),
	)
}

func (h *Hub) recipientsLocked(event domain.Event) map[*Client]struct{} {
	recipients := make(map[*Client]struct{})
	for c, filter := range h.rooms[roomKey{event.TenantID, event.TicketID}] {
		if filter.accepts(event.Type) {
			recipients[c] = struct{}{}
		}
	}

	// The assignee hears about a new assignment without watching the ticket.
	if p, ok := event.Payload.(domain.AssignedPayload); ok {
		if assignee, err := uuid.Parse(p.AssigneeID); err == nil {
			for c := range h.users[assignee] {
				if c.tenantID == event.TenantID {
					recipients[c] = struct{}{}
				}
			}
		}
	}
	return recipients
}

// watch joins c to the ticket's room, replacing any earlier filter.
func (h *Hub) watch(c *Client, ticketID int64, filter eventFilter) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.liveLocked(c) {
		return errClientGone
	}
	if _, ok := c.watching[ticketID]; !ok && len(c.watching) >= h.settings.MaxWatches {
		return errTooManyWatches
	}

	key := roomKey{c.tenantID, ticketID}
	if h.rooms[key] == nil {
		h.rooms[key] = make(map[*Client]eventFilter)
	}
	h.rooms[key][c] = filter
	c.watching[ticketID] = struct{}{}

	h.logger.Debug("client watching ticket",
		"user_id", c.userID,
		"ticket_id", ticketID,
		"events", filter.kinds(),
	)
	return nil
}

func (h *Hub) unwatch(c *Client, ticketID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveRoomLocked(c, ticketID)
}

func (h *Hub) leaveRoomLocked(c *Client, ticketID int64) {
	key := roomKey{c.tenantID, ticketID}
	if room, ok := h.rooms[key]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, key)
		}
	}
	delete(c.watching, ticketID)
}

func (h *Hub) liveLocked(c *Client) bool {
	_, ok := h.users[c.userID][c]
	return ok
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stopped = true
	for _, conns := range h.users {
		for c := range conns {
			c.closeOut()
		}
	}
	h.users = make(map[uuid.UUID]map[*Client]struct{})
	h.rooms = make(map[roomKey]map[*Client]eventFilter)
}

// ConnectionCount returns the number of open connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, conns := range h.users {
		n += len(conns)
	}
	return n
}

// Watchers returns how many connections of the tenant watch the ticket.
func (h *Hub) Watchers(tenantID uuid.UUID, ticketID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomKey{tenantID, ticketID}])
}
