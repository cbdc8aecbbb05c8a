package lifecycle

import (
	"github.com/lorrc/service-desk-lifecycle/internal/core/domain"
	apperrors "github.com/lorrc/service-desk-lifecycle/internal/core/errors"
	"github.com/lorrc/service-desk-lifecycle/internal/core/ports"
)

// TicketStateMachine validates and applies status transitions.
//
// Validation is a pure check. Callers must read the current status, validate
// and write back inside one transaction; the machine cannot see concurrent writers.
type TicketStateMachine struct {
	clock ports.Clock
}

func NewTicketStateMachine(clock ports.Clock) *TicketStateMachine {
	if clock == nil {
		clock = SystemClock{}
	}
	return &TicketStateMachine{clock: clock}
}

// ValidateTransition returns nil when current -> next is legal. An unknown
// status is reported as ErrInvalidStatus; an unlisted move as *TransitionError.
func (m *TicketStateMachine) ValidateTransition(current, next domain.TicketStatus) error {
	if !current.IsValid() || !next.IsValid() {
		return apperrors.ErrInvalidStatus
	}
	if !domain.CanTransition(current, next) {
		return &apperrors.TransitionError{From: string(current), To: string(next)}
	}
	return nil
}

// Apply moves the ticket to next. It reports changed=false without error
// when next equals the current status.
func (m *TicketStateMachine) Apply(ticket *domain.Ticket, next domain.TicketStatus) (bool, error) {
	return ticket.TransitionTo(next, m.clock.Now())
}
