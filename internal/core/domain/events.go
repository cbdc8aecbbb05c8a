package domain

import "github.com/google/uuid"

// EventType defines the type of real-time event.
type EventType string

const (
	EventStatusChanged    EventType = "STATUS_CHANGED"
	EventTicketAssigned   EventType = "TICKET_ASSIGNED"
	EventSLABreached      EventType = "SLA_BREACHED"
	EventTimeEntryCreated EventType = "TIME_ENTRY_CREATED"
)

// IsLifecycle reports whether t is one of the event kinds the engine emits.
func (t EventType) IsLifecycle() bool {
	switch t {
	case EventStatusChanged, EventTicketAssigned, EventSLABreached, EventTimeEntryCreated:
		return true
	}
	return false
}

// Event is the payload sent over WebSocket.
type Event struct {
	Type     EventType   `json:"type"`
	Payload  interface{} `json:"payload"`
	TicketID int64       `json:"ticketId"` // Used for routing to specific ticket "rooms"
	TenantID uuid.UUID   `json:"-"`
}

// StatusChangedPayload accompanies EventStatusChanged.
type StatusChangedPayload struct {
	From    TicketStatus `json:"from"`
	To      TicketStatus `json:"to"`
	ActorID string       `json:"actorId"`
}

// AssignedPayload accompanies EventTicketAssigned.
type AssignedPayload struct {
	AssigneeID string `json:"assigneeId"`
	Score      int    `json:"score"`
	Automatic  bool   `json:"automatic"`
}

// BreachPayload accompanies EventSLABreached.
type BreachPayload struct {
	BreachType    BreachType `json:"breachType"`
	BreachMinutes int        `json:"breachMinutes"`
	Reason        string     `json:"reason"`
}
