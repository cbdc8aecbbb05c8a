package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// BillingRate is a specific rate record configured for a technician.
// A record is scoped either to a contract or to a customer.
type BillingRate struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	CustomerID   *uuid.UUID
	ContractID   *uuid.UUID
	ServiceLevel *string
	WorkType     *string
	Rate         float64
	ValidFrom    time.Time
	ValidUntil   *time.Time
	IsActive     bool
	CreatedAt    time.Time
}

// CoversDate reports whether day falls inside [valid_from, valid_until].
// A nil valid_until is open-ended. Comparison is by calendar date.
func (r BillingRate) CoversDate(day time.Time) bool {
	d := DateOf(day)
	if d.Before(DateOf(r.ValidFrom)) {
		return false
	}
	if r.ValidUntil != nil && d.After(DateOf(*r.ValidUntil)) {
		return false
	}
	return true
}

// UserRates carries the per-user values consulted during resolution.
type UserRates struct {
	UserID             uuid.UUID
	CostRate           *float64
	DefaultBillingRate *float64
}

// RateQuery identifies the time entry a rate is being resolved for.
type RateQuery struct {
	UserID       uuid.UUID
	CustomerID   uuid.UUID
	ContractID   *uuid.UUID
	ServiceLevel *string
	WorkType     *string
	AsOf         time.Time
}

// RateSource records which level of the hierarchy produced a billing rate.
type RateSource string

const (
	RateSourceContractSpecific RateSource = "contract_specific"
	RateSourceCustomerSpecific RateSource = "customer_specific"
	RateSourceContract         RateSource = "contract"
	RateSourceUserDefault      RateSource = "user_default"
)

// ResolvedRates is the snapshot written onto a time entry.
type ResolvedRates struct {
	BillingRate float64
	CostRate    float64
	Source      RateSource
	RateID      *uuid.UUID
}

// Totals are the money figures derived from hours and snapshotted rates.
type Totals struct {
	Revenue       float64 `json:"revenue"`
	Cost          float64 `json:"cost"`
	Profit        float64 `json:"profit"`
	MarginPercent float64 `json:"marginPercent"`
}

// RoundMoney rounds to two decimal places.
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

// DateOf truncates t to midnight UTC of its calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
