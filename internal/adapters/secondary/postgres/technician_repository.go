package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lorrc/service-desk-lifecycle/internal/core/domain"
	apperrors "github.com/lorrc/service-desk-lifecycle/internal/core/errors"
	"github.com/lorrc/service-desk-lifecycle/internal/core/ports"
)

// TechnicianRepository reads assignment candidates and their live workload.
type TechnicianRepository struct {
	pool *pgxpool.Pool
}

var _ ports.TechnicianRepository = (*TechnicianRepository)(nil)

func NewTechnicianRepository(pool *pgxpool.Pool) *TechnicianRepository {
	return &TechnicianRepository{pool: pool}
}

// ListCandidates returns every active technician, manager or admin in the
// tenant. Workload counts non-deleted tickets in new, assigned or
// in_progress. With customerID set, HandledCustomer reports whether the
// technician has ever been assigned a non-deleted ticket for that customer.
func (r *TechnicianRepository) ListCandidates(ctx context.Context, tenantID uuid.UUID, customerID *uuid.UUID) ([]domain.AssignmentCandidate, error) {
	const query = `
SELECT u.id, u.full_name, u.role, u.skills, u.is_available, u.last_assigned_at,
       (SELECT COUNT(*) FROM tickets t
         WHERE t.assigned_to = u.id
           AND t.deleted_at IS NULL
           AND t.status IN ('new', 'assigned', 'in_progress')) AS workload,
       ($2::uuid IS NOT NULL AND EXISTS (
           SELECT 1 FROM tickets h
            WHERE h.assigned_to = u.id
              AND h.customer_id = $2
              AND h.deleted_at IS NULL)) AS handled_customer
FROM users u
WHERE u.tenant_id = $1
  AND u.is_active
  AND u.role IN ('technician', 'manager', 'admin')
ORDER BY u.full_name, u.id
`

	rows, err := GetDBTX(ctx, r.pool).Query(ctx, query, toUUID(tenantID), toNullUUID(customerID))
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()

	candidates := make([]domain.AssignmentCandidate, 0)
	for rows.Next() {
		var (
			id           pgtype.UUID
			name         string
			role         string
			skills       []string
			available    bool
			lastAssigned pgtype.Timestamptz
			workload     int64
			handled      bool
		)
		if err := rows.Scan(&id, &name, &role, &skills, &available, &lastAssigned, &workload, &handled); err != nil {
			return nil, err
		}
		candidates = append(candidates, domain.AssignmentCandidate{
			UserID:          id.Bytes,
			Name:            name,
			Role:            domain.TechnicianRole(role),
			CurrentWorkload: int(workload),
			Skills:          skills,
			IsAvailable:     available,
			LastAssignedAt:  fromTimestamptz(lastAssigned),
			HandledCustomer: handled,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return candidates, nil
}

// TouchLastAssigned records when the technician last received a ticket.
func (r *TechnicianRepository) TouchLastAssigned(ctx context.Context, userID uuid.UUID, at time.Time) error {
	const query = `UPDATE users SET last_assigned_at = $2 WHERE id = $1`
	if _, err := GetDBTX(ctx, r.pool).Exec(ctx, query, toUUID(userID), at); err != nil {
		return fmt.Errorf("touch last assigned: %w", err)
	}
	return nil
}

var _ ports.UserDirectory = (*TechnicianRepository)(nil)

// GetContact returns the user's name and email.
func (r *TechnicianRepository) GetContact(ctx context.Context, userID uuid.UUID) (*domain.Contact, error) {
	const query = `SELECT full_name, email FROM users WHERE id = $1`

	contact := &domain.Contact{UserID: userID}
	err := GetDBTX(ctx, r.pool).QueryRow(ctx, query, toUUID(userID)).Scan(&contact.FullName, &contact.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return contact, nil
}
