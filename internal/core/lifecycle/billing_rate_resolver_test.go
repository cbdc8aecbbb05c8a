package lifecycle_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lorrc/service-desk-lifecycle/internal/core/domain"
	apperrors "github.com/lorrc/service-desk-lifecycle/internal/core/errors"
	"github.com/lorrc/service-desk-lifecycle/internal/core/lifecycle"
	"github.com/lorrc/service-desk-lifecycle/internal/core/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func f64(v float64) *float64 { return &v }
func str(v string) *string   { return &v }

func TestBillingRateResolver_Resolve(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	customerID := uuid.New()
	contractID := uuid.New()
	asOf := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	query := domain.RateQuery{
		UserID:     userID,
		CustomerID: customerID,
		ContractID: &contractID,
		AsOf:       asOf,
	}
	specific := domain.BillingRate{
		ID:         uuid.New(),
		UserID:     userID,
		ContractID: &contractID,
		Rate:       175,
		ValidFrom:  asOf.AddDate(0, -1, 0),
		IsActive:   true,
	}
	withDefault := &domain.UserRates{UserID: userID, CostRate: f64(60), DefaultBillingRate: f64(120)}

	t.Run("specific rate wins over contract and default", func(t *testing.T) {
		repo := mocks.NewMockRateRepository()
		repo.On("GetUserRates", ctx, userID).Return(withDefault, nil)
		repo.On("FindSpecificRates", ctx, query).Return([]domain.BillingRate{specific}, nil)

		got, err := lifecycle.NewBillingRateResolver(repo).Resolve(ctx, query)

		require.NoError(t, err)
		assert.Equal(t, 175.0, got.BillingRate)
		assert.Equal(t, 60.0, got.CostRate)
		assert.Equal(t, domain.RateSourceContractSpecific, got.Source)
		require.NotNil(t, got.RateID)
		assert.Equal(t, specific.ID, *got.RateID)
		repo.AssertNotCalled(t, "GetContractHourlyRate", mock.Anything, mock.Anything)
	})

	t.Run("customer record under another contract is customer specific", func(t *testing.T) {
		otherContract := uuid.New()
		foreign := domain.BillingRate{
			ID:         uuid.New(),
			UserID:     userID,
			CustomerID: &customerID,
			ContractID: &otherContract,
			Rate:       140,
			ValidFrom:  asOf.AddDate(0, -1, 0),
			IsActive:   true,
		}
		repo := mocks.NewMockRateRepository()
		repo.On("GetUserRates", ctx, userID).Return(withDefault, nil)
		repo.On("FindSpecificRates", ctx, query).Return([]domain.BillingRate{foreign}, nil)

		got, err := lifecycle.NewBillingRateResolver(repo).Resolve(ctx, query)

		require.NoError(t, err)
		assert.Equal(t, 140.0, got.BillingRate)
		assert.Equal(t, domain.RateSourceCustomerSpecific, got.Source)
	})

	t.Run("falls through to contract hourly rate", func(t *testing.T) {
		repo := mocks.NewMockRateRepository()
		repo.On("GetUserRates", ctx, userID).Return(withDefault, nil)
		repo.On("FindSpecificRates", ctx, query).Return([]domain.BillingRate{}, nil)
		repo.On("GetContractHourlyRate", ctx, contractID).Return(f64(150), nil)

		got, err := lifecycle.NewBillingRateResolver(repo).Resolve(ctx, query)

		require.NoError(t, err)
		assert.Equal(t, 150.0, got.BillingRate)
		assert.Equal(t, domain.RateSourceContract, got.Source)
		assert.Nil(t, got.RateID)
	})

	t.Run("falls through to user default", func(t *testing.T) {
		repo := mocks.NewMockRateRepository()
		repo.On("GetUserRates", ctx, userID).Return(withDefault, nil)
		repo.On("FindSpecificRates", ctx, query).Return([]domain.BillingRate{}, nil)
		repo.On("GetContractHourlyRate", ctx, contractID).Return(nil, nil)

		got, err := lifecycle.NewBillingRateResolver(repo).Resolve(ctx, query)

		require.NoError(t, err)
		assert.Equal(t, 120.0, got.BillingRate)
		assert.Equal(t, domain.RateSourceUserDefault, got.Source)
	})

	t.Run("no contract skips the contract level", func(t *testing.T) {
		noContract := query
		noContract.ContractID = nil

		repo := mocks.NewMockRateRepository()
		repo.On("GetUserRates", ctx, userID).Return(withDefault, nil)
		repo.On("FindSpecificRates", ctx, noContract).Return([]domain.BillingRate{}, nil)

		got, err := lifecycle.NewBillingRateResolver(repo).Resolve(ctx, noContract)

		require.NoError(t, err)
		assert.Equal(t, domain.RateSourceUserDefault, got.Source)
		repo.AssertNotCalled(t, "GetContractHourlyRate", mock.Anything, mock.Anything)
	})

	t.Run("nothing configured", func(t *testing.T) {
		repo := mocks.NewMockRateRepository()
		repo.On("GetUserRates", ctx, userID).Return(&domain.UserRates{UserID: userID, CostRate: f64(60)}, nil)
		repo.On("FindSpecificRates", ctx, query).Return([]domain.BillingRate{}, nil)
		repo.On("GetContractHourlyRate", ctx, contractID).Return(nil, nil)

		_, err := lifecycle.NewBillingRateResolver(repo).Resolve(ctx, query)

		assert.ErrorIs(t, err, apperrors.ErrNoRateConfigured)
		var nre *apperrors.NoRateError
		require.ErrorAs(t, err, &nre)
		assert.Equal(t, userID.String(), nre.UserID)
		assert.Equal(t, customerID.String(), nre.CustomerID)
	})

	t.Run("missing cost rate is a hard error", func(t *testing.T) {
		repo := mocks.NewMockRateRepository()
		repo.On("GetUserRates", ctx, userID).Return(&domain.UserRates{UserID: userID, DefaultBillingRate: f64(120)}, nil)

		_, err := lifecycle.NewBillingRateResolver(repo).Resolve(ctx, query)

		assert.ErrorIs(t, err, apperrors.ErrNoCostRateConfigured)
		repo.AssertNotCalled(t, "FindSpecificRates", mock.Anything, mock.Anything)
	})

	t.Run("unknown user", func(t *testing.T) {
		repo := mocks.NewMockRateRepository()
		repo.On("GetUserRates", ctx, userID).Return(nil, apperrors.ErrUserNotFound)

		_, err := lifecycle.NewBillingRateResolver(repo).Resolve(ctx, query)

		assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
	})
}

func TestSelectBestRate(t *testing.T) {
	userID := uuid.New()
	customerID := uuid.New()
	contractID := uuid.New()
	otherContract := uuid.New()
	asOf := time.Date(2024, 6, 15, 14, 0, 0, 0, time.UTC)
	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	base := func(rate float64) domain.BillingRate {
		return domain.BillingRate{
			ID:         uuid.New(),
			UserID:     userID,
			CustomerID: &customerID,
			Rate:       rate,
			ValidFrom:  jan,
			IsActive:   true,
			CreatedAt:  jan,
		}
	}

	query := domain.RateQuery{
		UserID:       userID,
		CustomerID:   customerID,
		ContractID:   &contractID,
		ServiceLevel: str("gold"),
		WorkType:     str("onsite"),
		AsOf:         asOf,
	}

	t.Run("contract-scoped beats customer-scoped", func(t *testing.T) {
		customer := base(100)
		customer.ServiceLevel = str("gold")
		customer.WorkType = str("onsite")
		contract := base(90)
		contract.CustomerID = nil
		contract.ContractID = &contractID

		best, ok := lifecycle.SelectBestRate([]domain.BillingRate{customer, contract}, query)
		require.True(t, ok)
		assert.Equal(t, 90.0, best.Rate)
	})

	t.Run("exact service level beats null", func(t *testing.T) {
		generic := base(100)
		generic.WorkType = str("onsite")
		gold := base(110)
		gold.ServiceLevel = str("gold")

		best, ok := lifecycle.SelectBestRate([]domain.BillingRate{generic, gold}, query)
		require.True(t, ok)
		assert.Equal(t, 110.0, best.Rate)
	})

	t.Run("exact work type beats null", func(t *testing.T) {
		generic := base(100)
		onsite := base(130)
		onsite.WorkType = str("onsite")

		best, ok := lifecycle.SelectBestRate([]domain.BillingRate{generic, onsite}, query)
		require.True(t, ok)
		assert.Equal(t, 130.0, best.Rate)
	})

	t.Run("newest wins a tie", func(t *testing.T) {
		older := base(100)
		newer := base(105)
		newer.CreatedAt = jan.AddDate(0, 2, 0)

		best, ok := lifecycle.SelectBestRate([]domain.BillingRate{older, newer}, query)
		require.True(t, ok)
		assert.Equal(t, 105.0, best.Rate)
	})

	t.Run("filters out inapplicable records", func(t *testing.T) {
		inactive := base(1)
		inactive.IsActive = false
		expired := base(2)
		expired.ValidUntil = ptr(time.Date(2024, 6, 14, 23, 0, 0, 0, time.UTC))
		future := base(3)
		future.ValidFrom = time.Date(2024, 6, 16, 0, 0, 0, 0, time.UTC)
		wrongLevel := base(4)
		wrongLevel.ServiceLevel = str("silver")
		wrongContract := base(5)
		wrongContract.CustomerID = nil
		wrongContract.ContractID = &otherContract
		otherUser := base(6)
		otherUser.UserID = uuid.New()

		_, ok := lifecycle.SelectBestRate([]domain.BillingRate{inactive, expired, future, wrongLevel, wrongContract, otherUser}, query)
		assert.False(t, ok)
	})

	t.Run("validity window is inclusive by date", func(t *testing.T) {
		lastDay := base(100)
		lastDay.ValidUntil = ptr(time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC))

		best, ok := lifecycle.SelectBestRate([]domain.BillingRate{lastDay}, query)
		require.True(t, ok)
		assert.Equal(t, 100.0, best.Rate)
	})

	t.Run("rate bound to another contract does not outrank the customer rate", func(t *testing.T) {
		customer := base(100)
		foreign := base(999)
		foreign.ContractID = &otherContract

		best, ok := lifecycle.SelectBestRate([]domain.BillingRate{customer, foreign}, query)
		require.True(t, ok)
		assert.Equal(t, 100.0, best.Rate)

		noContract := query
		noContract.ContractID = nil
		best, ok = lifecycle.SelectBestRate([]domain.BillingRate{foreign, customer}, noContract)
		require.True(t, ok)
		assert.Equal(t, 100.0, best.Rate)
	})

	t.Run("record with service level does not match a query without one", func(t *testing.T) {
		q := query
		q.ServiceLevel = nil
		gold := base(100)
		gold.ServiceLevel = str("gold")

		_, ok := lifecycle.SelectBestRate([]domain.BillingRate{gold}, q)
		assert.False(t, ok)
	})
}

func TestCalculateTotals(t *testing.T) {
	tests := []struct {
		name                          string
		hours, billing, cost          float64
		revenue, totalCost, profit, m float64
	}{
		{"zero hours", 0, 150, 60, 0, 0, 0, 0},
		{"zero billing rate", 2, 0, 60, 0, 120, -120, 0},
		{"typical", 1.5, 150, 60, 225, 90, 135, 60},
		{"rounds to cents", 0.25, 133.33, 47.77, 33.33, 11.94, 21.39, 64.17},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := lifecycle.CalculateTotals(tt.hours, tt.billing, tt.cost)
			assert.InDelta(t, tt.revenue, got.Revenue, 1e-9)
			assert.InDelta(t, tt.totalCost, got.Cost, 1e-9)
			assert.InDelta(t, tt.profit, got.Profit, 1e-9)
			assert.InDelta(t, tt.m, got.MarginPercent, 1e-9)
		})
	}
}

func TestSumTotals(t *testing.T) {
	got := lifecycle.SumTotals([]domain.Totals{
		lifecycle.CalculateTotals(2, 100, 50),
		lifecycle.CalculateTotals(1, 200, 50),
	})
	assert.InDelta(t, 400.0, got.Revenue, 1e-9)
	assert.InDelta(t, 150.0, got.Cost, 1e-9)
	assert.InDelta(t, 250.0, got.Profit, 1e-9)
	assert.InDelta(t, 62.5, got.MarginPercent, 1e-9)

	assert.Equal(t, domain.Totals{}, lifecycle.SumTotals(nil))
}
