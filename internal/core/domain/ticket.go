package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/lorrc/service-desk-lifecycle/internal/core/errors"
)

const (
	MaxTitleLength       = 255
	MaxDescriptionLength = 10000
)

// TicketStatus represents the possible states of a ticket.
type TicketStatus string

const (
	StatusNew             TicketStatus = "new"
	StatusAssigned        TicketStatus = "assigned"
	StatusInProgress      TicketStatus = "in_progress"
	StatusWaitingCustomer TicketStatus = "waiting_customer"
	StatusWaitingVendor   TicketStatus = "waiting_vendor"
	StatusResolved        TicketStatus = "resolved"
	StatusClosed          TicketStatus = "closed"
	StatusCancelled       TicketStatus = "cancelled"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []TicketStatus{
	StatusNew,
	StatusAssigned,
	StatusInProgress,
	StatusWaitingCustomer,
	StatusWaitingVendor,
	StatusResolved,
	StatusClosed,
	StatusCancelled,
}

// ticketTransitions is the complete set of legal moves. There are no
// self-loops; requesting the current status is a no-op, not a move.
var ticketTransitions = map[TicketStatus][]TicketStatus{
	StatusNew:             {StatusAssigned, StatusInProgress, StatusCancelled},
	StatusAssigned:        {StatusInProgress, StatusWaitingCustomer, StatusCancelled},
	StatusInProgress:      {StatusWaitingCustomer, StatusWaitingVendor, StatusResolved, StatusCancelled},
	StatusWaitingCustomer: {StatusInProgress, StatusResolved, StatusCancelled},
	StatusWaitingVendor:   {StatusInProgress, StatusResolved, StatusCancelled},
	StatusResolved:        {StatusClosed, StatusInProgress},
	StatusClosed:          {},
	StatusCancelled:       {},
}

// IsValid reports whether s is a known status.
func (s TicketStatus) IsValid() bool {
	_, ok := ticketTransitions[s]
	return ok
}

// IsTerminal reports whether no transition leaves s.
func (s TicketStatus) IsTerminal() bool {
	return s == StatusClosed || s == StatusCancelled
}

// IsOpen reports whether the ticket still counts toward SLA and workload.
func (s TicketStatus) IsOpen() bool {
	return s.IsValid() && !s.IsTerminal() && s != StatusResolved
}

// AllowedTransitions returns the statuses reachable from s in one step.
func (s TicketStatus) AllowedTransitions() []TicketStatus {
	allowed := ticketTransitions[s]
	out := make([]TicketStatus, len(allowed))
	copy(out, allowed)
	return out
}

// CanTransition reports whether from -> to appears in the transition table.
func CanTransition(from, to TicketStatus) bool {
	for _, s := range ticketTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TicketPriority represents the urgency of a ticket.
type TicketPriority string

const (
	PriorityLow      TicketPriority = "low"
	PriorityMedium   TicketPriority = "medium"
	PriorityHigh     TicketPriority = "high"
	PriorityCritical TicketPriority = "critical"
)

// IsValid reports whether p is a known priority.
func (p TicketPriority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Ticket is the core domain entity.
type Ticket struct {
	ID          int64
	TenantID    uuid.UUID
	Title       string
	Description string
	Status      TicketStatus
	Priority    TicketPriority
	Category    string
	Tags        []string

	RequesterID uuid.UUID
	CustomerID  uuid.UUID
	ContractID  *uuid.UUID
	AssignedTo  *uuid.UUID

	SLAResponseDue   *time.Time
	SLAResolutionDue *time.Time
	FirstResponseAt  *time.Time
	ResolvedAt       *time.Time
	ClosedAt         *time.Time
	SLABreached      bool
	SLABreachReason  string

	CreatedAt time.Time
	UpdatedAt *time.Time
	DeletedAt *time.Time
}

// TicketParams holds the input needed to construct a new ticket.
type TicketParams struct {
	TenantID    uuid.UUID
	Title       string
	Description string
	Priority    TicketPriority
	Category    string
	Tags        []string
	RequesterID uuid.UUID
	CustomerID  uuid.UUID
	ContractID  *uuid.UUID
	CreatedAt   time.Time
}

// NewTicket validates params and returns a ticket in the new status.
func NewTicket(params TicketParams) (*Ticket, error) {
	errs := apperrors.NewValidationErrors()

	title := strings.TrimSpace(params.Title)
	if title == "" {
		errs.Add("title", apperrors.ErrTitleRequired.Error())
	} else if len(title) > MaxTitleLength {
		errs.Add("title", apperrors.ErrTitleTooLong.Error())
	}
	if len(params.Description) > MaxDescriptionLength {
		errs.Add("description", "description exceeds maximum length")
	}
	if !params.Priority.IsValid() {
		errs.Add("priority", apperrors.ErrInvalidPriority.Error())
	}
	if params.CustomerID == uuid.Nil {
		errs.Add("customerId", apperrors.ErrCustomerRequired.Error())
	}
	if errs.HasErrors() {
		return nil, errs
	}

	createdAt := params.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	return &Ticket{
		TenantID:    params.TenantID,
		Title:       title,
		Description: params.Description,
		Status:      StatusNew,
		Priority:    params.Priority,
		Category:    params.Category,
		Tags:        params.Tags,
		RequesterID: params.RequesterID,
		CustomerID:  params.CustomerID,
		ContractID:  params.ContractID,
		CreatedAt:   createdAt,
	}, nil
}

// TransitionTo moves the ticket to next, stamping resolved_at and closed_at
// the first time those states are entered. Requesting the current status
// returns changed=false and leaves the ticket untouched.
func (t *Ticket) TransitionTo(next TicketStatus, now time.Time) (bool, error) {
	if !next.IsValid() {
		return false, apperrors.ErrInvalidStatus
	}
	if t.Status == next {
		return false, nil
	}
	if !CanTransition(t.Status, next) {
		return false, &apperrors.TransitionError{From: string(t.Status), To: string(next)}
	}

	t.Status = next
	switch next {
	case StatusResolved:
		if t.ResolvedAt == nil {
			stamp := now
			t.ResolvedAt = &stamp
		}
	case StatusClosed:
		if t.ClosedAt == nil {
			stamp := now
			t.ClosedAt = &stamp
		}
	}
	t.touch(now)
	return true, nil
}

// Assign sets or changes the assignee of the ticket.
func (t *Ticket) Assign(assigneeID uuid.UUID, now time.Time) error {
	if t.Status.IsTerminal() {
		return apperrors.ErrCannotAssignTerminal
	}
	t.AssignedTo = &assigneeID
	t.touch(now)
	return nil
}

// RecordFirstResponse stamps first_response_at once. Later calls are no-ops.
func (t *Ticket) RecordFirstResponse(now time.Time) bool {
	if t.FirstResponseAt != nil {
		return false
	}
	stamp := now
	t.FirstResponseAt = &stamp
	t.touch(now)
	return true
}

// ApplySLA stores the computed due dates.
func (t *Ticket) ApplySLA(due SLADueDates) {
	response := due.ResponseDue
	resolution := due.ResolutionDue
	t.SLAResponseDue = &response
	t.SLAResolutionDue = &resolution
}

// MarkBreached records a breach. It returns true only the first time.
func (t *Ticket) MarkBreached(info BreachInfo) bool {
	if !info.Breached || t.SLABreached {
		return false
	}
	t.SLABreached = true
	t.SLABreachReason = info.Reason()
	return true
}

// IsAssignedTo checks if the ticket is assigned to the given user.
func (t *Ticket) IsAssignedTo(userID uuid.UUID) bool {
	return t.AssignedTo != nil && *t.AssignedTo == userID
}

func (t *Ticket) touch(now time.Time) {
	stamp := now
	t.UpdatedAt = &stamp
}
