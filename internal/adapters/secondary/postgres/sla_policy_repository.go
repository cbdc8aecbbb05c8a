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

// SLAPolicyRepository reads SLA commitments stored on contracts.
type SLAPolicyRepository struct {
	pool *pgxpool.Pool
}

var _ ports.SLAPolicyRepository = (*SLAPolicyRepository)(nil)

func NewSLAPolicyRepository(pool *pgxpool.Pool) *SLAPolicyRepository {
	return &SLAPolicyRepository{pool: pool}
}

// GetContractSLA returns nil when either duration is unset on the contract.
func (r *SLAPolicyRepository) GetContractSLA(ctx context.Context, contractID uuid.UUID) (*domain.SLAParameters, error) {
	const query = `
SELECT response_time_hours::float8, resolution_time_hours::float8, business_hours_only
FROM contracts WHERE id = $1`

	var (
		response, resolution pgtype.Float8
		businessOnly         bool
	)
	err := GetDBTX(ctx, r.pool).QueryRow(ctx, query, toUUID(contractID)).
		Scan(&response, &resolution, &businessOnly)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrContractNotFound
		}
		return nil, fmt.Errorf("get contract sla: %w", err)
	}

	if !response.Valid || !resolution.Valid {
		return nil, nil
	}
	return &domain.SLAParameters{
		ResponseTimeHours:   response.Float64,
		ResolutionTimeHours: resolution.Float64,
		BusinessHoursOnly:   businessOnly,
	}, nil
}
