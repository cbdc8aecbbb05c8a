package services

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lorrc/service-desk-lifecycle/internal/core/domain"
	apperrors "github.com/lorrc/service-desk-lifecycle/internal/core/errors"
	"github.com/lorrc/service-desk-lifecycle/internal/core/lifecycle"
	"github.com/lorrc/service-desk-lifecycle/internal/core/ports"
)

const (
	DefaultRecommendationLimit = 5
	MaxRecommendationLimit     = 50
)

// AssignmentService places tickets with technicians using the scorer.
type AssignmentService struct {
	ticketRepo ports.TicketRepository
	techRepo   ports.TechnicianRepository
	txManager  ports.TransactionManager
	engine     *lifecycle.Engine
	events     *dispatcher
}

var _ ports.AssignmentService = (*AssignmentService)(nil)

// NewAssignmentService creates a new assignment service.
func NewAssignmentService(
	ticketRepo ports.TicketRepository,
	techRepo ports.TechnicianRepository,
	txManager ports.TransactionManager,
	engine *lifecycle.Engine,
	notifier ports.Notifier,
	broadcaster ports.EventBroadcaster,
	logger *slog.Logger,
) *AssignmentService {
	return &AssignmentService{
		ticketRepo: ticketRepo,
		techRepo:   techRepo,
		txManager:  txManager,
		engine:     engine,
		events:     newDispatcher(notifier, broadcaster, logger),
	}
}

// AutoAssign scores the current technician pool and assigns the winner.
// When nobody qualifies the result has Assigned=false and the ticket is
// returned untouched.
func (s *AssignmentService) AutoAssign(ctx context.Context, tenantID uuid.UUID, ticketID int64) (*ports.AssignmentResult, error) {
	result := &ports.AssignmentResult{}

	err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		ticket, err := s.ticketRepo.GetByIDForUpdate(ctx, tenantID, ticketID)
		if err != nil {
			return err
		}
		if ticket.Status.IsTerminal() {
			return apperrors.ErrCannotAssignTerminal
		}

		candidates, err := s.techRepo.ListCandidates(ctx, tenantID, &ticket.CustomerID)
		if err != nil {
			return err
		}

		choice, ok := s.engine.Scorer.AutoAssign(candidates, domain.CriteriaForTicket(ticket))
		if !ok {
			result.Ticket = ticket
			return nil
		}

		now := s.engine.Clock.Now()
		if err := ticket.Assign(choice.Candidate.UserID, now); err != nil {
			return err
		}
		if ticket.Status == domain.StatusNew {
			if _, err := s.engine.StateMachine.Apply(ticket, domain.StatusAssigned); err != nil {
				return err
			}
		}

		updated, err := s.ticketRepo.Update(ctx, ticket)
		if err != nil {
			return err
		}
		if err := s.techRepo.TouchLastAssigned(ctx, choice.Candidate.UserID, now); err != nil {
			return err
		}

		result.Ticket = updated
		result.Assigned = true
		result.Choice = choice
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.Assigned {
		s.events.logger.InfoContext(ctx, "auto-assign found no suitable technician", "ticket_id", ticketID)
		return result, nil
	}
	s.events.logger.InfoContext(ctx, "ticket auto-assigned",
		"ticket_id", ticketID,
		"assignee_id", result.Choice.Candidate.UserID,
		"score", result.Choice.Score,
	)
	s.events.assigned(result.Ticket, result.Choice, true)
	return result, nil
}

// Recommendations ranks the pool for a ticket without assigning anyone.
func (s *AssignmentService) Recommendations(ctx context.Context, tenantID uuid.UUID, ticketID int64, limit int) ([]domain.ScoredCandidate, error) {
	switch {
	case limit <= 0:
		limit = DefaultRecommendationLimit
	case limit > MaxRecommendationLimit:
		limit = MaxRecommendationLimit
	}

	ticket, err := s.ticketRepo.GetByID(ctx, tenantID, ticketID)
	if err != nil {
		return nil, err
	}
	candidates, err := s.techRepo.ListCandidates(ctx, tenantID, &ticket.CustomerID)
	if err != nil {
		return nil, err
	}
	return s.engine.Scorer.GetRecommendations(candidates, domain.CriteriaForTicket(ticket), limit), nil
}

// Shutdown waits for in-flight notifications and broadcasts.
func (s *AssignmentService) Shutdown() {
	s.events.wait()
}
