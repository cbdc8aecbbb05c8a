package lifecycle

import (
	"context"
	"fmt"
	"sort"

	"github.com/lorrc/service-desk-lifecycle/internal/core/domain"
	apperrors "github.com/lorrc/service-desk-lifecycle/internal/core/errors"
	"github.com/lorrc/service-desk-lifecycle/internal/core/ports"
)

// BillingRateResolver picks the billing rate to snapshot onto a time entry.
type BillingRateResolver struct {
	rates ports.RateRepository
}

func NewBillingRateResolver(rates ports.RateRepository) *BillingRateResolver {
	return &BillingRateResolver{rates: rates}
}

// Resolve walks the rate hierarchy and returns on the first level that
// yields a rate: specific record, contract hourly rate, user default.
// The cost rate is looked up separately and is mandatory.
func (r *BillingRateResolver) Resolve(ctx context.Context, q domain.RateQuery) (domain.ResolvedRates, error) {
	user, err := r.rates.GetUserRates(ctx, q.UserID)
	if err != nil {
		return domain.ResolvedRates{}, err
	}
	if user.CostRate == nil {
		return domain.ResolvedRates{}, apperrors.ErrNoCostRateConfigured
	}
	costRate := *user.CostRate

	records, err := r.rates.FindSpecificRates(ctx, q)
	if err != nil {
		return domain.ResolvedRates{}, fmt.Errorf("find specific rates: %w", err)
	}
	if best, ok := SelectBestRate(records, q); ok {
		source := domain.RateSourceCustomerSpecific
		if matchesContract(best, q) {
			source = domain.RateSourceContractSpecific
		}
		id := best.ID
		return domain.ResolvedRates{
			BillingRate: best.Rate,
			CostRate:    costRate,
			Source:      source,
			RateID:      &id,
		}, nil
	}

	if q.ContractID != nil {
		hourly, err := r.rates.GetContractHourlyRate(ctx, *q.ContractID)
		if err != nil {
			return domain.ResolvedRates{}, fmt.Errorf("get contract hourly rate: %w", err)
		}
		if hourly != nil {
			return domain.ResolvedRates{
				BillingRate: *hourly,
				CostRate:    costRate,
				Source:      domain.RateSourceContract,
			}, nil
		}
	}

	if user.DefaultBillingRate != nil {
		return domain.ResolvedRates{
			BillingRate: *user.DefaultBillingRate,
			CostRate:    costRate,
			Source:      domain.RateSourceUserDefault,
		}, nil
	}

	return domain.ResolvedRates{}, &apperrors.NoRateError{
		UserID:     q.UserID.String(),
		CustomerID: q.CustomerID.String(),
	}
}

// SelectBestRate filters records down to those applicable to q and returns
// the highest-precedence one. Records whose service level or work type is
// set but differs from the query never apply. A record only ranks as
// contract-scoped when its contract is the query's contract; one bound to a
// different contract of the same customer competes as a customer rate.
func SelectBestRate(records []domain.BillingRate, q domain.RateQuery) (domain.BillingRate, bool) {
	var matches []domain.BillingRate
	for _, rec := range records {
		if rateApplies(rec, q) {
			matches = append(matches, rec)
		}
	}
	if len(matches) == 0 {
		return domain.BillingRate{}, false
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if ac, bc := matchesContract(a, q), matchesContract(b, q); ac != bc {
			return ac
		}
		if as, bs := a.ServiceLevel != nil, b.ServiceLevel != nil; as != bs {
			return as
		}
		if aw, bw := a.WorkType != nil, b.WorkType != nil; aw != bw {
			return aw
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return matches[0], true
}

func rateApplies(rec domain.BillingRate, q domain.RateQuery) bool {
	if !rec.IsActive || rec.UserID != q.UserID || !rec.CoversDate(q.AsOf) {
		return false
	}

	customerMatch := rec.CustomerID != nil && *rec.CustomerID == q.CustomerID
	if !matchesContract(rec, q) && !customerMatch {
		return false
	}

	return optionalMatches(rec.ServiceLevel, q.ServiceLevel) && optionalMatches(rec.WorkType, q.WorkType)
}

func matchesContract(rec domain.BillingRate, q domain.RateQuery) bool {
	return q.ContractID != nil && rec.ContractID != nil && *rec.ContractID == *q.ContractID
}

// optionalMatches treats a nil record value as a wildcard.
func optionalMatches(record, query *string) bool {
	if record == nil {
		return true
	}
	return query != nil && *record == *query
}

// CalculateTotals derives the money figures for hours at the given rates.
func CalculateTotals(hours, billingRate, costRate float64) domain.Totals {
	revenue := hours * billingRate
	cost := hours * costRate
	profit := revenue - cost

	var margin float64
	if revenue != 0 {
		margin = profit / revenue * 100
	}

	return domain.Totals{
		Revenue:       domain.RoundMoney(revenue),
		Cost:          domain.RoundMoney(cost),
		Profit:        domain.RoundMoney(profit),
		MarginPercent: domain.RoundMoney(margin),
	}
}

// SumTotals adds up per-entry totals and recomputes the overall margin.
func SumTotals(items []domain.Totals) domain.Totals {
	var sum domain.Totals
	for _, t := range items {
		sum.Revenue += t.Revenue
		sum.Cost += t.Cost
		sum.Profit += t.Profit
	}
	if sum.Revenue != 0 {
		sum.MarginPercent = sum.Profit / sum.Revenue * 100
	}
	return domain.Totals{
		Revenue:       domain.RoundMoney(sum.Revenue),
		Cost:          domain.RoundMoney(sum.Cost),
		Profit:        domain.RoundMoney(sum.Profit),
		MarginPercent: domain.RoundMoney(sum.MarginPercent),
	}
}
