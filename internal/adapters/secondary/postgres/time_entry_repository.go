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

// TimeEntryRepository persists time entries.
type TimeEntryRepository struct {
	pool *pgxpool.Pool
}

var _ ports.TimeEntryRepository = (*TimeEntryRepository)(nil)

func NewTimeEntryRepository(pool *pgxpool.Pool) *TimeEntryRepository {
	return &TimeEntryRepository{pool: pool}
}

const timeEntryColumns = `
id, tenant_id, ticket_id, user_id, hours::float8, description, work_type, service_level,
billable, entry_date, billing_rate::float8, cost_rate::float8, rate_source, created_at, updated_at`

func scanTimeEntry(row pgx.Row) (*domain.TimeEntry, error) {
	var (
		e            domain.TimeEntry
		id           pgtype.UUID
		tenantID     pgtype.UUID
		userID       pgtype.UUID
		description  pgtype.Text
		workType     pgtype.Text
		serviceLevel pgtype.Text
		entryDate    pgtype.Date
		rateSource   string
		createdAt    pgtype.Timestamptz
		updatedAt    pgtype.Timestamptz
	)
	err := row.Scan(&id, &tenantID, &e.TicketID, &userID, &e.Hours, &description, &workType, &serviceLevel,
		&e.Billable, &entryDate, &e.BillingRate, &e.CostRate, &rateSource, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	e.ID = id.Bytes
	e.TenantID = tenantID.Bytes
	e.UserID = userID.Bytes
	e.Description = fromText(description)
	e.WorkType = fromNullText(workType)
	e.ServiceLevel = fromNullText(serviceLevel)
	e.EntryDate = entryDate.Time
	e.RateSource = domain.RateSource(rateSource)
	e.CreatedAt = createdAt.Time
	e.UpdatedAt = fromTimestamptz(updatedAt)
	return &e, nil
}

// Create inserts the entry together with its rate snapshot.
func (r *TimeEntryRepository) Create(ctx context.Context, entry *domain.TimeEntry) (*domain.TimeEntry, error) {
	query := `
INSERT INTO time_entries (
    id, tenant_id, ticket_id, user_id, hours, description, work_type, service_level,
    billable, entry_date, billing_rate, cost_rate, rate_source, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
RETURNING ` + timeEntryColumns

	created, err := scanTimeEntry(GetDBTX(ctx, r.pool).QueryRow(ctx, query,
		toUUID(entry.ID),
		toUUID(entry.TenantID),
		entry.TicketID,
		toUUID(entry.UserID),
		entry.Hours,
		toText(entry.Description),
		toNullText(entry.WorkType),
		toNullText(entry.ServiceLevel),
		entry.Billable,
		toDate(entry.EntryDate),
		entry.BillingRate,
		entry.CostRate,
		string(entry.RateSource),
		entry.CreatedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("insert time entry: %w", err)
	}
	return created, nil
}

// GetByID returns one entry within the tenant.
func (r *TimeEntryRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.TimeEntry, error) {
	query := `SELECT ` + timeEntryColumns + ` FROM time_entries WHERE id = $1 AND tenant_id = $2`

	entry, err := scanTimeEntry(GetDBTX(ctx, r.pool).QueryRow(ctx, query, toUUID(id), toUUID(tenantID)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrTimeEntryNotFound
		}
		return nil, fmt.Errorf("get time entry: %w", err)
	}
	return entry, nil
}

// Update writes the editable fields. The rate snapshot columns are never
// written after insert.
func (r *TimeEntryRepository) Update(ctx context.Context, entry *domain.TimeEntry) (*domain.TimeEntry, error) {
	query := `
UPDATE time_entries SET
    hours = $3,
    description = $4,
    work_type = $5,
    billable = $6,
    entry_date = $7,
    updated_at = $8
WHERE id = $1 AND tenant_id = $2
RETURNING ` + timeEntryColumns

	updated, err := scanTimeEntry(GetDBTX(ctx, r.pool).QueryRow(ctx, query,
		toUUID(entry.ID),
		toUUID(entry.TenantID),
		entry.Hours,
		toText(entry.Description),
		toNullText(entry.WorkType),
		entry.Billable,
		toDate(entry.EntryDate),
		toTimestamptz(entry.UpdatedAt),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrTimeEntryNotFound
		}
		return nil, fmt.Errorf("update time entry: %w", err)
	}
	return updated, nil
}

// ListByTicket returns a ticket's entries, oldest work first.
func (r *TimeEntryRepository) ListByTicket(ctx context.Context, tenantID uuid.UUID, ticketID int64) ([]*domain.TimeEntry, error) {
	query := `SELECT ` + timeEntryColumns + ` FROM time_entries
WHERE ticket_id = $1 AND tenant_id = $2
ORDER BY entry_date, created_at`

	rows, err := GetDBTX(ctx, r.pool).Query(ctx, query, ticketID, toUUID(tenantID))
	if err != nil {
		return nil, fmt.Errorf("list time entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*domain.TimeEntry, 0)
	for rows.Next() {
		e, err := scanTimeEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
