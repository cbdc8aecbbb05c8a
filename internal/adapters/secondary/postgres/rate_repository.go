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

// RateRepository reads user, specific and contract rate configuration.
type RateRepository struct {
	pool *pgxpool.Pool
}

var _ ports.RateRepository = (*RateRepository)(nil)

func NewRateRepository(pool *pgxpool.Pool) *RateRepository {
	return &RateRepository{pool: pool}
}

// GetUserRates returns the user's cost and default billing rates.
func (r *RateRepository) GetUserRates(ctx context.Context, userID uuid.UUID) (*domain.UserRates, error) {
	const query = `SELECT cost_rate::float8, default_billing_rate::float8 FROM users WHERE id = $1`

	var cost, billing pgtype.Float8
	err := GetDBTX(ctx, r.pool).QueryRow(ctx, query, toUUID(userID)).Scan(&cost, &billing)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user rates: %w", err)
	}

	return &domain.UserRates{
		UserID:             userID,
		CostRate:           fromNullFloat(cost),
		DefaultBillingRate: fromNullFloat(billing),
	}, nil
}

// FindSpecificRates returns active records for the user whose validity
// window covers query.AsOf and that match the contract or the customer.
// Ranking among them is left to the resolver.
func (r *RateRepository) FindSpecificRates(ctx context.Context, query domain.RateQuery) ([]domain.BillingRate, error) {
	const sql = `
SELECT id, user_id, customer_id, contract_id, service_level, work_type,
       rate::float8, valid_from, valid_until, is_active, created_at
FROM billing_rates
WHERE user_id = $1
  AND is_active
  AND valid_from <= $2
  AND (valid_until IS NULL OR valid_until >= $2)
  AND ((contract_id IS NOT NULL AND contract_id = $3) OR customer_id = $4)
ORDER BY created_at DESC
`

	rows, err := GetDBTX(ctx, r.pool).Query(ctx, sql,
		toUUID(query.UserID),
		toDate(query.AsOf),
		toNullUUID(query.ContractID),
		toUUID(query.CustomerID),
	)
	if err != nil {
		return nil, fmt.Errorf("find specific rates: %w", err)
	}
	defer rows.Close()

	rates := make([]domain.BillingRate, 0)
	for rows.Next() {
		var (
			rec          domain.BillingRate
			id           pgtype.UUID
			userID       pgtype.UUID
			customerID   pgtype.UUID
			contractID   pgtype.UUID
			serviceLevel pgtype.Text
			workType     pgtype.Text
			validFrom    pgtype.Date
			validUntil   pgtype.Date
			createdAt    pgtype.Timestamptz
		)
		if err := rows.Scan(&id, &userID, &customerID, &contractID, &serviceLevel, &workType,
			&rec.Rate, &validFrom, &validUntil, &rec.IsActive, &createdAt); err != nil {
			return nil, err
		}
		rec.ID = id.Bytes
		rec.UserID = userID.Bytes
		rec.CustomerID = fromNullUUID(customerID)
		rec.ContractID = fromNullUUID(contractID)
		rec.ServiceLevel = fromNullText(serviceLevel)
		rec.WorkType = fromNullText(workType)
		rec.ValidFrom = validFrom.Time
		rec.ValidUntil = fromNullDate(validUntil)
		rec.CreatedAt = createdAt.Time
		rates = append(rates, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return rates, nil
}

// GetContractHourlyRate returns the contract's flat rate, or nil when unset.
func (r *RateRepository) GetContractHourlyRate(ctx context.Context, contractID uuid.UUID) (*float64, error) {
	const query = `SELECT hourly_rate::float8 FROM contracts WHERE id = $1`

	var rate pgtype.Float8
	err := GetDBTX(ctx, r.pool).QueryRow(ctx, query, toUUID(contractID)).Scan(&rate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrContractNotFound
		}
		return nil, fmt.Errorf("get contract rate: %w", err)
	}
	return fromNullFloat(rate), nil
}
