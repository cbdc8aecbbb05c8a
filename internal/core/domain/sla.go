package domain

import (
	"fmt"
	"time"

	apperrors "github.com/lorrc/service-desk-lifecycle/internal/core/errors"
)

// SLAParameters are the response and resolution commitments applied to a ticket.
type SLAParameters struct {
	ResponseTimeHours   float64 `json:"response_time_hours" yaml:"response_time_hours"`
	ResolutionTimeHours float64 `json:"resolution_time_hours" yaml:"resolution_time_hours"`
	BusinessHoursOnly   bool    `json:"business_hours_only" yaml:"business_hours_only"`
}

// Validate rejects non-positive durations.
func (p SLAParameters) Validate() error {
	if p.ResponseTimeHours <= 0 || p.ResolutionTimeHours <= 0 {
		return apperrors.ErrInvalidSLAParameters
	}
	return nil
}

// SLADueDates holds the deadlines computed from a ticket's creation time.
type SLADueDates struct {
	ResponseDue   time.Time
	ResolutionDue time.Time
}

// BreachType names which SLA dimension was missed.
type BreachType string

const (
	BreachNone       BreachType = ""
	BreachResponse   BreachType = "response"
	BreachResolution BreachType = "resolution"
	BreachBoth       BreachType = "both"
)

// BreachInfo is the outcome of a breach evaluation.
type BreachInfo struct {
	Breached                bool       `json:"breached"`
	BreachType              BreachType `json:"breachType,omitempty"`
	BreachMinutes           int        `json:"breachMinutes"`
	ResponseBreached        bool       `json:"responseBreached"`
	ResponseBreachMinutes   int        `json:"responseBreachMinutes"`
	ResolutionBreached      bool       `json:"resolutionBreached"`
	ResolutionBreachMinutes int        `json:"resolutionBreachMinutes"`
}

// Reason renders the text stored in sla_breach_reason.
func (b BreachInfo) Reason() string {
	switch b.BreachType {
	case BreachResponse:
		return fmt.Sprintf("response SLA breached by %d minutes", b.ResponseBreachMinutes)
	case BreachResolution:
		return fmt.Sprintf("resolution SLA breached by %d minutes", b.ResolutionBreachMinutes)
	case BreachBoth:
		return fmt.Sprintf("response SLA breached by %d minutes; resolution SLA breached by %d minutes",
			b.ResponseBreachMinutes, b.ResolutionBreachMinutes)
	default:
		return ""
	}
}

// SLAStatus is the read model returned for a ticket's SLA position.
type SLAStatus struct {
	TicketID             int64
	ResponseDue          *time.Time
	ResolutionDue        *time.Time
	FirstResponseAt      *time.Time
	ResolvedAt           *time.Time
	Breach               BreachInfo
	BusinessHoursElapsed float64
	EvaluatedAt          time.Time
}

// SLAPolicies maps a priority to the SLA applied when a ticket has no
// contract-level commitment.
type SLAPolicies map[TicketPriority]SLAParameters

// DefaultSLAPolicies returns the built-in per-priority commitments.
func DefaultSLAPolicies() SLAPolicies {
	return SLAPolicies{
		PriorityCritical: {ResponseTimeHours: 1, ResolutionTimeHours: 4, BusinessHoursOnly: false},
		PriorityHigh:     {ResponseTimeHours: 2, ResolutionTimeHours: 8, BusinessHoursOnly: true},
		PriorityMedium:   {ResponseTimeHours: 4, ResolutionTimeHours: 24, BusinessHoursOnly: true},
		PriorityLow:      {ResponseTimeHours: 8, ResolutionTimeHours: 48, BusinessHoursOnly: true},
	}
}

// For returns the policy for priority, falling back to the medium default.
func (p SLAPolicies) For(priority TicketPriority) SLAParameters {
	if params, ok := p[priority]; ok {
		return params
	}
	if params, ok := p[PriorityMedium]; ok {
		return params
	}
	return DefaultSLAPolicies()[PriorityMedium]
}

// Validate checks every configured policy.
func (p SLAPolicies) Validate() error {
	for priority, params := range p {
		if !priority.IsValid() {
			return fmt.Errorf("sla policy for %q: %w", priority, apperrors.ErrInvalidPriority)
		}
		if err := params.Validate(); err != nil {
			return fmt.Errorf("sla policy for %q: %w", priority, err)
		}
	}
	return nil
}
