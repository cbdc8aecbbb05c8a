package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lorrc/service-desk-lifecycle/internal/core/domain"
)

// Clock supplies the current time. Tests inject a fixed clock.
type Clock interface {
	Now() time.Time
}

// CreateTicketParams defines the required input for creating a new ticket.
type CreateTicketParams struct {
	TenantID    uuid.UUID
	RequesterID uuid.UUID
	Title       string
	Description string
	Priority    domain.TicketPriority
	Category    string
	Tags        []string
	CustomerID  uuid.UUID
	ContractID  *uuid.UUID
	AutoAssign  bool
}

// UpdateStatusParams defines the input for changing a ticket's status.
type UpdateStatusParams struct {
	TenantID uuid.UUID
	TicketID int64
	Status   domain.TicketStatus
	ActorID  uuid.UUID
}

// CreateTimeEntryParams defines the input for logging time.
type CreateTimeEntryParams struct {
	TenantID     uuid.UUID
	TicketID     int64
	UserID       uuid.UUID
	Hours        float64
	Description  string
	WorkType     *string
	ServiceLevel *string
	Billable     bool
	EntryDate    time.Time
}

// UpdateTimeEntryParams carries a typed patch for one entry.
type UpdateTimeEntryParams struct {
	TenantID uuid.UUID
	EntryID  uuid.UUID
	ActorID  uuid.UUID
	Patch    domain.TimeEntryPatch
}

// NotificationParams defines the input for sending a notification.
type NotificationParams struct {
	RecipientUserID uuid.UUID
	Subject         string
	Message         string
	TicketID        int64
}

// AssignmentResult is the outcome of auto-assignment. Assigned is false when
// no candidate qualified; that is a normal result, not an error.
type AssignmentResult struct {
	Ticket   *domain.Ticket
	Assigned bool
	Choice   *domain.ScoredCandidate
}

// TimeEntryView pairs an entry with its derived totals.
type TimeEntryView struct {
	Entry  *domain.TimeEntry
	Totals domain.Totals
}

// TicketService defines the lifecycle operations for tickets.
type TicketService interface {
	CreateTicket(ctx context.Context, params CreateTicketParams) (*domain.Ticket, error)
	GetTicket(ctx context.Context, tenantID uuid.UUID, ticketID int64) (*domain.Ticket, error)
	UpdateStatus(ctx context.Context, params UpdateStatusParams) (*domain.Ticket, error)
	RecordFirstResponse(ctx context.Context, tenantID uuid.UUID, ticketID int64) (*domain.Ticket, error)
	GetSLAStatus(ctx context.Context, tenantID uuid.UUID, ticketID int64) (*domain.SLAStatus, error)
	Shutdown()
}

// AssignmentService defines auto-assignment and recommendations.
type AssignmentService interface {
	AutoAssign(ctx context.Context, tenantID uuid.UUID, ticketID int64) (*AssignmentResult, error)
	Recommendations(ctx context.Context, tenantID uuid.UUID, ticketID int64, limit int) ([]domain.ScoredCandidate, error)
}

// TimeEntryService defines time logging with rate snapshots.
type TimeEntryService interface {
	CreateTimeEntry(ctx context.Context, params CreateTimeEntryParams) (*TimeEntryView, error)
	UpdateTimeEntry(ctx context.Context, params UpdateTimeEntryParams) (*TimeEntryView, error)
	ListTimeEntries(ctx context.Context, tenantID uuid.UUID, ticketID int64) ([]TimeEntryView, domain.Totals, error)
}

// Notifier defines the port for sending asynchronous notifications.
type Notifier interface {
	Notify(ctx context.Context, params NotificationParams)
}

// EventBroadcaster pushes lifecycle events to connected clients.
type EventBroadcaster interface {
	Broadcast(event domain.Event) error
}

// TransactionManager defines the port for running atomic operations.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
