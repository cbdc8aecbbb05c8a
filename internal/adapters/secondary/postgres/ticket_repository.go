package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lorrc/service-desk-lifecycle/internal/core/domain"
	apperrors "github.com/lorrc/service-desk-lifecycle/internal/core/errors"
	"github.com/lorrc/service-desk-lifecycle/internal/core/ports"
)

// TicketRepository is the secondary adapter for ticket persistence.
type TicketRepository struct {
	pool *pgxpool.Pool
}

// Ensure TicketRepository implements the ports.TicketRepository interface.
var _ ports.TicketRepository = (*TicketRepository)(nil)

// NewTicketRepository creates a new ticket repository.
func NewTicketRepository(pool *pgxpool.Pool) *TicketRepository {
	return &TicketRepository{pool: pool}
}

const ticketColumns = `
id, tenant_id, title, description, status, priority, category, tags,
requester_id, customer_id, contract_id, assigned_to,
sla_response_due, sla_resolution_due, first_response_at, resolved_at, closed_at,
sla_breached, sla_breach_reason, created_at, updated_at, deleted_at`

// scanTicket converts one row selected with ticketColumns into a domain ticket.
func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		t           domain.Ticket
		tenantID    pgtype.UUID
		description pgtype.Text
		status      string
		priority    string
		category    pgtype.Text
		requesterID pgtype.UUID
		customerID  pgtype.UUID
		contractID  pgtype.UUID
		assignedTo  pgtype.UUID
		responseDue pgtype.Timestamptz
		resolveDue  pgtype.Timestamptz
		firstResp   pgtype.Timestamptz
		resolvedAt  pgtype.Timestamptz
		closedAt    pgtype.Timestamptz
		reason      pgtype.Text
		createdAt   pgtype.Timestamptz
		updatedAt   pgtype.Timestamptz
		deletedAt   pgtype.Timestamptz
	)

	err := row.Scan(
		&t.ID, &tenantID, &t.Title, &description, &status, &priority, &category, &t.Tags,
		&requesterID, &customerID, &contractID, &assignedTo,
		&responseDue, &resolveDue, &firstResp, &resolvedAt, &closedAt,
		&t.SLABreached, &reason, &createdAt, &updatedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}

	t.TenantID = tenantID.Bytes
	t.Description = fromText(description)
	t.Status = domain.TicketStatus(status)
	t.Priority = domain.TicketPriority(priority)
	t.Category = fromText(category)
	if requesterID.Valid {
		t.RequesterID = requesterID.Bytes
	}
	t.CustomerID = customerID.Bytes
	t.ContractID = fromNullUUID(contractID)
	t.AssignedTo = fromNullUUID(assignedTo)
	t.SLAResponseDue = fromTimestamptz(responseDue)
	t.SLAResolutionDue = fromTimestamptz(resolveDue)
	t.FirstResponseAt = fromTimestamptz(firstResp)
	t.ResolvedAt = fromTimestamptz(resolvedAt)
	t.ClosedAt = fromTimestamptz(closedAt)
	t.SLABreachReason = fromText(reason)
	t.CreatedAt = createdAt.Time
	t.UpdatedAt = fromTimestamptz(updatedAt)
	t.DeletedAt = fromTimestamptz(deletedAt)
	return &t, nil
}

func nullableRequester(id uuid.UUID) pgtype.UUID {
	if id == uuid.Nil {
		return pgtype.UUID{}
	}
	return toUUID(id)
}

// Create persists a new ticket entity.
func (r *TicketRepository) Create(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error) {
	query := `
INSERT INTO tickets (
    tenant_id, title, description, status, priority, category, tags,
    requester_id, customer_id, contract_id, assigned_to,
    sla_response_due, sla_resolution_due, first_response_at, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
RETURNING ` + ticketColumns

	tags := ticket.Tags
	if tags == nil {
		tags = []string{}
	}

	created, err := scanTicket(GetDBTX(ctx, r.pool).QueryRow(ctx, query,
		toUUID(ticket.TenantID),
		ticket.Title,
		toText(ticket.Description),
		string(ticket.Status),
		string(ticket.Priority),
		toText(ticket.Category),
		tags,
		nullableRequester(ticket.RequesterID),
		toUUID(ticket.CustomerID),
		toNullUUID(ticket.ContractID),
		toNullUUID(ticket.AssignedTo),
		toTimestamptz(ticket.SLAResponseDue),
		toTimestamptz(ticket.SLAResolutionDue),
		toTimestamptz(ticket.FirstResponseAt),
		ticket.CreatedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("insert ticket: %w", err)
	}
	return created, nil
}

// GetByID retrieves a single, non-deleted ticket within the tenant.
func (r *TicketRepository) GetByID(ctx context.Context, tenantID uuid.UUID, id int64) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets
WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`
	return r.getOne(ctx, query, id, tenantID)
}

// GetByIDForUpdate is GetByID plus a row lock held until the surrounding
// transaction ends. Outside a transaction the lock is released immediately.
func (r *TicketRepository) GetByIDForUpdate(ctx context.Context, tenantID uuid.UUID, id int64) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets
WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL
FOR UPDATE`
	return r.getOne(ctx, query, id, tenantID)
}

func (r *TicketRepository) getOne(ctx context.Context, query string, id int64, tenantID uuid.UUID) (*domain.Ticket, error) {
	ticket, err := scanTicket(GetDBTX(ctx, r.pool).QueryRow(ctx, query, id, toUUID(tenantID)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrTicketNotFound
		}
		return nil, fmt.Errorf("get ticket %d: %w", id, err)
	}
	return ticket, nil
}

// Update persists the mutable lifecycle fields of an existing ticket.
func (r *TicketRepository) Update(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error) {
	query := `
UPDATE tickets SET
    status = $3,
    assigned_to = $4,
    sla_response_due = $5,
    sla_resolution_due = $6,
    first_response_at = $7,
    resolved_at = $8,
    closed_at = $9,
    sla_breached = $10,
    sla_breach_reason = $11,
    updated_at = $12
WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL
RETURNING ` + ticketColumns

	updated, err := scanTicket(GetDBTX(ctx, r.pool).QueryRow(ctx, query,
		ticket.ID,
		toUUID(ticket.TenantID),
		string(ticket.Status),
		toNullUUID(ticket.AssignedTo),
		toTimestamptz(ticket.SLAResponseDue),
		toTimestamptz(ticket.SLAResolutionDue),
		toTimestamptz(ticket.FirstResponseAt),
		toTimestamptz(ticket.ResolvedAt),
		toTimestamptz(ticket.ClosedAt),
		ticket.SLABreached,
		toText(ticket.SLABreachReason),
		toTimestamptz(ticket.UpdatedAt),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrTicketNotFound
		}
		return nil, fmt.Errorf("update ticket %d: %w", ticket.ID, err)
	}
	return updated, nil
}

// ListSLAWatch pages, across tenants, through open tickets that carry due
// dates and have not been marked breached, in id order.
func (r *TicketRepository) ListSLAWatch(ctx context.Context, params ports.ListSLAWatchParams) ([]*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets
WHERE id > $1
  AND deleted_at IS NULL
  AND sla_breached = FALSE
  AND status NOT IN ('resolved', 'closed', 'cancelled')
  AND (sla_response_due IS NOT NULL OR sla_resolution_due IS NOT NULL)
ORDER BY id
LIMIT $2`

	rows, err := GetDBTX(ctx, r.pool).Query(ctx, query, params.AfterID, params.Limit)
	if err != nil {
		return nil, fmt.Errorf("list sla watch: %w", err)
	}
	defer rows.Close()

	tickets := make([]*domain.Ticket, 0, params.Limit)
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

// MarkBreached flags the ticket as breached. An already breached ticket
// keeps its original reason.
func (r *TicketRepository) MarkBreached(ctx context.Context, tenantID uuid.UUID, id int64, reason string) error {
	query := `
UPDATE tickets SET sla_breached = TRUE, sla_breach_reason = $3, updated_at = NOW()
WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL AND sla_breached = FALSE`

	if _, err := GetDBTX(ctx, r.pool).Exec(ctx, query, id, toUUID(tenantID), reason); err != nil {
		return fmt.Errorf("mark ticket %d breached: %w", id, err)
	}
	return nil
}
