package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/lorrc/service-desk-lifecycle/internal/core/errors"
)

const (
	MinTimeEntryHours = 0.25
	MaxTimeEntryHours = 24
)

// TimeEntry is logged work against a ticket. BillingRate and CostRate are
// resolved once when the entry is created and never change afterwards.
type TimeEntry struct {
	ID           uuid.UUID  `json:"id"`
	TenantID     uuid.UUID  `json:"-"`
	TicketID     int64      `json:"ticketId"`
	UserID       uuid.UUID  `json:"userId"`
	Hours        float64    `json:"hours"`
	Description  string     `json:"description"`
	WorkType     *string    `json:"workType"`
	ServiceLevel *string    `json:"serviceLevel"`
	Billable     bool       `json:"billable"`
	EntryDate    time.Time  `json:"entryDate"`
	BillingRate  float64    `json:"billingRate"`
	CostRate     float64    `json:"costRate"`
	RateSource   RateSource `json:"rateSource"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`
}

// ValidateHours enforces the 0.25 to 24 hour window.
func ValidateHours(hours float64) error {
	if hours < MinTimeEntryHours || hours > MaxTimeEntryHours {
		return apperrors.ErrInvalidHours
	}
	return nil
}

// TimeEntryParams is the input for a new entry before rates are resolved.
type TimeEntryParams struct {
	TenantID     uuid.UUID
	TicketID     int64
	UserID       uuid.UUID
	Hours        float64
	Description  string
	WorkType     *string
	ServiceLevel *string
	Billable     bool
	EntryDate    time.Time
}

// NewTimeEntry builds an entry carrying the resolved rate snapshot.
func NewTimeEntry(params TimeEntryParams, rates ResolvedRates, now time.Time) (*TimeEntry, error) {
	if err := ValidateHours(params.Hours); err != nil {
		return nil, err
	}
	entryDate := params.EntryDate
	if entryDate.IsZero() {
		entryDate = now
	}
	return &TimeEntry{
		ID:           uuid.New(),
		TenantID:     params.TenantID,
		TicketID:     params.TicketID,
		UserID:       params.UserID,
		Hours:        params.Hours,
		Description:  strings.TrimSpace(params.Description),
		WorkType:     params.WorkType,
		ServiceLevel: params.ServiceLevel,
		Billable:     params.Billable,
		EntryDate:    DateOf(entryDate),
		BillingRate:  rates.BillingRate,
		CostRate:     rates.CostRate,
		RateSource:   rates.Source,
		CreatedAt:    now,
	}, nil
}

// TimeEntryPatch is a typed partial update. BillingRate and CostRate exist
// only so a request that names them can be detected and refused.
type TimeEntryPatch struct {
	Hours       Optional[float64] `json:"hours"`
	Description Optional[string]  `json:"description"`
	WorkType    Optional[*string] `json:"workType"`
	Billable    Optional[bool]    `json:"billable"`
	EntryDate   Optional[string]  `json:"entryDate"`
	BillingRate Optional[float64] `json:"billingRate"`
	CostRate    Optional[float64] `json:"costRate"`
}

// Apply mutates e according to the patch. It never touches the rate snapshot.
func (p TimeEntryPatch) Apply(e *TimeEntry, now time.Time) error {
	if p.BillingRate.Set || p.CostRate.Set {
		return apperrors.ErrRateImmutable
	}
	if hours, ok := p.Hours.Get(); ok {
		if err := ValidateHours(hours); err != nil {
			return err
		}
		e.Hours = hours
	}
	if desc, ok := p.Description.Get(); ok {
		e.Description = strings.TrimSpace(desc)
	}
	if workType, ok := p.WorkType.Get(); ok {
		e.WorkType = workType
	}
	if billable, ok := p.Billable.Get(); ok {
		e.Billable = billable
	}
	if raw, ok := p.EntryDate.Get(); ok {
		day, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			errs := apperrors.NewValidationErrors()
			errs.Add("entryDate", "Must be a date in YYYY-MM-DD format")
			return errs
		}
		e.EntryDate = day
	}
	stamp := now
	e.UpdatedAt = &stamp
	return nil
}

// IsEmpty reports whether the patch changes nothing.
func (p TimeEntryPatch) IsEmpty() bool {
	return !p.Hours.Set && !p.Description.Set && !p.WorkType.Set &&
		!p.Billable.Set && !p.EntryDate.Set && !p.BillingRate.Set && !p.CostRate.Set
}
