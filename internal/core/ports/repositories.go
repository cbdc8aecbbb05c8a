package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lorrc/service-desk-lifecycle/internal/core/domain"
)

// TicketRepository persists tickets. Every query is scoped by tenant in the adapter.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error)
	GetByID(ctx context.Context, tenantID uuid.UUID, id int64) (*domain.Ticket, error)
	// GetByIDForUpdate locks the row for the rest of the surrounding transaction.
	GetByIDForUpdate(ctx context.Context, tenantID uuid.UUID, id int64) (*domain.Ticket, error)
	Update(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error)
	ListSLAWatch(ctx context.Context, params ListSLAWatchParams) ([]*domain.Ticket, error)
	MarkBreached(ctx context.Context, tenantID uuid.UUID, id int64, reason string) error
}

// ListSLAWatchParams pages through open, not yet breached tickets carrying due dates.
type ListSLAWatchParams struct {
	AfterID int64
	Limit   int32
}

// RateRepository is the read side of rate configuration.
type RateRepository interface {
	// GetUserRates returns apperrors.ErrUserNotFound for unknown users.
	GetUserRates(ctx context.Context, userID uuid.UUID) (*domain.UserRates, error)
	// FindSpecificRates returns active rate records for the user that match
	// either the contract or the customer in the query.
	FindSpecificRates(ctx context.Context, query domain.RateQuery) ([]domain.BillingRate, error)
	// GetContractHourlyRate returns nil when the contract has no flat rate.
	GetContractHourlyRate(ctx context.Context, contractID uuid.UUID) (*float64, error)
}

// TechnicianRepository supplies assignment candidates with fresh workload counts.
type TechnicianRepository interface {
	// ListCandidates returns assignable technicians in the tenant. When
	// customerID is set, HandledCustomer is filled for that customer.
	ListCandidates(ctx context.Context, tenantID uuid.UUID, customerID *uuid.UUID) ([]domain.AssignmentCandidate, error)
	TouchLastAssigned(ctx context.Context, userID uuid.UUID, at time.Time) error
}

// TimeEntryRepository persists time entries. Update never writes rate columns.
type TimeEntryRepository interface {
	Create(ctx context.Context, entry *domain.TimeEntry) (*domain.TimeEntry, error)
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.TimeEntry, error)
	Update(ctx context.Context, entry *domain.TimeEntry) (*domain.TimeEntry, error)
	ListByTicket(ctx context.Context, tenantID uuid.UUID, ticketID int64) ([]*domain.TimeEntry, error)
}

// SLAPolicyRepository resolves contract-level SLA commitments.
type SLAPolicyRepository interface {
	// GetContractSLA returns nil when the contract defines no SLA.
	GetContractSLA(ctx context.Context, contractID uuid.UUID) (*domain.SLAParameters, error)
}

// UserDirectory resolves contact details for notification recipients.
type UserDirectory interface {
	// GetContact returns apperrors.ErrUserNotFound for unknown users.
	GetContact(ctx context.Context, userID uuid.UUID) (*domain.Contact, error)
}
