package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lorrc/service-desk-lifecycle/internal/core/domain"
	"github.com/lorrc/service-desk-lifecycle/internal/core/lifecycle"
	"github.com/lorrc/service-desk-lifecycle/internal/core/ports"
)

// TicketService implements the ticket lifecycle write paths.
type TicketService struct {
	ticketRepo ports.TicketRepository
	techRepo   ports.TechnicianRepository
	slaRepo    ports.SLAPolicyRepository
	txManager  ports.TransactionManager
	engine     *lifecycle.Engine
	policies   domain.SLAPolicies
	events     *dispatcher
	logger     *slog.Logger
}

var _ ports.TicketService = (*TicketService)(nil)

// TicketServiceDeps groups the collaborators of TicketService.
type TicketServiceDeps struct {
	Tickets     ports.TicketRepository
	Technicians ports.TechnicianRepository
	SLAPolicies ports.SLAPolicyRepository
	TxManager   ports.TransactionManager
	Engine      *lifecycle.Engine
	Defaults    domain.SLAPolicies
	Notifier    ports.Notifier
	Broadcaster ports.EventBroadcaster
	Logger      *slog.Logger
}

// NewTicketService creates a new ticket service
func NewTicketService(deps TicketServiceDeps) *TicketService {
	events := newDispatcher(deps.Notifier, deps.Broadcaster, deps.Logger)
	policies := deps.Defaults
	if len(policies) == 0 {
		policies = domain.DefaultSLAPolicies()
	}
	return &TicketService{
		ticketRepo: deps.Tickets,
		techRepo:   deps.Technicians,
		slaRepo:    deps.SLAPolicies,
		txManager:  deps.TxManager,
		engine:     deps.Engine,
		policies:   policies,
		events:     events,
		logger:     events.logger,
	}
}

// CreateTicket validates the ticket, optionally auto-assigns it, stamps the
// SLA due dates from the creation time and persists it.
func (s *TicketService) CreateTicket(ctx context.Context, params ports.CreateTicketParams) (*domain.Ticket, error) {
	now := s.engine.Clock.Now()

	ticket, err := domain.NewTicket(domain.TicketParams{
		TenantID:    params.TenantID,
		Title:       params.Title,
		Description: params.Description,
		Priority:    params.Priority,
		Category:    params.Category,
		Tags:        params.Tags,
		RequesterID: params.RequesterID,
		CustomerID:  params.CustomerID,
		ContractID:  params.ContractID,
		CreatedAt:   now,
	})
	if err != nil {
		return nil, err
	}

	slaParams, err := s.slaParametersFor(ctx, ticket)
	if err != nil {
		return nil, err
	}
	due, err := s.engine.SLA.ComputeDueDates(ticket.CreatedAt, slaParams)
	if err != nil {
		return nil, err
	}
	ticket.ApplySLA(due)

	var choice *domain.ScoredCandidate
	if params.AutoAssign {
		choice = s.pickAssignee(ctx, ticket)
		if choice != nil {
			if err := ticket.Assign(choice.Candidate.UserID, now); err != nil {
				return nil, err
			}
			if _, err := s.engine.StateMachine.Apply(ticket, domain.StatusAssigned); err != nil {
				return nil, err
			}
		}
	}

	var created *domain.Ticket
	err = s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		created, err = s.ticketRepo.Create(ctx, ticket)
		if err != nil {
			return err
		}
		if choice != nil {
			return s.techRepo.TouchLastAssigned(ctx, choice.Candidate.UserID, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "ticket created",
		"ticket_id", created.ID,
		"priority", created.Priority,
		"auto_assigned", choice != nil,
	)
	if choice != nil {
		s.events.assigned(created, choice, true)
	}
	return created, nil
}

// GetTicket returns the ticket, re-evaluating SLA breach when it is still open.
func (s *TicketService) GetTicket(ctx context.Context, tenantID uuid.UUID, ticketID int64) (*domain.Ticket, error) {
	ticket, err := s.ticketRepo.GetByID(ctx, tenantID, ticketID)
	if err != nil {
		return nil, err
	}

	if ticket.Status.IsOpen() && !ticket.SLABreached {
		info := s.checkBreach(ticket)
		if ticket.MarkBreached(info) {
			if err := s.ticketRepo.MarkBreached(ctx, tenantID, ticketID, ticket.SLABreachReason); err != nil {
				s.logger.WarnContext(ctx, "failed to persist sla breach",
					"ticket_id", ticketID, "error", err)
			} else {
				s.events.breached(ticket, info)
			}
		}
	}
	return ticket, nil
}

// UpdateStatus validates and applies a status change. The read, validation
// and write happen under a row lock in one transaction.
func (s *TicketService) UpdateStatus(ctx context.Context, params ports.UpdateStatusParams) (*domain.Ticket, error) {
	var (
		updated     *domain.Ticket
		from        domain.TicketStatus
		changed     bool
		newlyBreach bool
		breach      domain.BreachInfo
	)

	err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		ticket, err := s.ticketRepo.GetByIDForUpdate(ctx, params.TenantID, params.TicketID)
		if err != nil {
			return err
		}
		from = ticket.Status

		changed, err = s.engine.StateMachine.Apply(ticket, params.Status)
		if err != nil {
			return err
		}
		if !changed {
			updated = ticket
			return nil
		}

		if ticket.Status == domain.StatusResolved && !ticket.SLABreached {
			breach = s.checkBreach(ticket)
			newlyBreach = ticket.MarkBreached(breach)
		}

		updated, err = s.ticketRepo.Update(ctx, ticket)
		return err
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.logger.InfoContext(ctx, "ticket status changed",
			"ticket_id", updated.ID,
			"from", from,
			"to", updated.Status,
			"actor_id", params.ActorID,
		)
		s.events.broadcast(domain.Event{
			Type:     domain.EventStatusChanged,
			TicketID: updated.ID,
			TenantID: updated.TenantID,
			Payload: domain.StatusChangedPayload{
				From:    from,
				To:      updated.Status,
				ActorID: params.ActorID.String(),
			},
		})
		if updated.RequesterID != params.ActorID && updated.RequesterID != uuid.Nil {
			s.events.notify(ports.NotificationParams{
				RecipientUserID: updated.RequesterID,
				Subject:         fmt.Sprintf("Your ticket status has been updated: #%d", updated.ID),
				Message:         fmt.Sprintf("The status of your ticket '%s' was changed to %s.", updated.Title, updated.Status),
				TicketID:        updated.ID,
			})
		}
	}
	if newlyBreach {
		s.events.breached(updated, breach)
	}
	return updated, nil
}

// RecordFirstResponse stamps first_response_at once and re-evaluates the
// breach against the stamped time. Repeated calls return the ticket
// unchanged.
func (s *TicketService) RecordFirstResponse(ctx context.Context, tenantID uuid.UUID, ticketID int64) (*domain.Ticket, error) {
	var (
		updated     *domain.Ticket
		newlyBreach bool
		breach      domain.BreachInfo
	)
	err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		ticket, err := s.ticketRepo.GetByIDForUpdate(ctx, tenantID, ticketID)
		if err != nil {
			return err
		}
		if !ticket.RecordFirstResponse(s.engine.Clock.Now()) {
			updated = ticket
			return nil
		}
		if !ticket.SLABreached {
			breach = s.checkBreach(ticket)
			newlyBreach = ticket.MarkBreached(breach)
		}
		updated, err = s.ticketRepo.Update(ctx, ticket)
		return err
	})
	if err != nil {
		return nil, err
	}

	if newlyBreach {
		s.events.breached(updated, breach)
	}
	return updated, nil
}

// GetSLAStatus reports the SLA position of a ticket as of now.
func (s *TicketService) GetSLAStatus(ctx context.Context, tenantID uuid.UUID, ticketID int64) (*domain.SLAStatus, error) {
	ticket, err := s.GetTicket(ctx, tenantID, ticketID)
	if err != nil {
		return nil, err
	}

	now := s.engine.Clock.Now()
	end := now
	if ticket.ResolvedAt != nil {
		end = *ticket.ResolvedAt
	}

	return &domain.SLAStatus{
		TicketID:             ticket.ID,
		ResponseDue:          ticket.SLAResponseDue,
		ResolutionDue:        ticket.SLAResolutionDue,
		FirstResponseAt:      ticket.FirstResponseAt,
		ResolvedAt:           ticket.ResolvedAt,
		Breach:               s.checkBreach(ticket),
		BusinessHoursElapsed: s.engine.SLA.CalculateBusinessHoursBetween(ticket.CreatedAt, end),
		EvaluatedAt:          now,
	}, nil
}

// slaParametersFor prefers the contract's SLA and falls back to the
// per-priority default.
func (s *TicketService) slaParametersFor(ctx context.Context, ticket *domain.Ticket) (domain.SLAParameters, error) {
	if ticket.ContractID != nil && s.slaRepo != nil {
		params, err := s.slaRepo.GetContractSLA(ctx, *ticket.ContractID)
		if err != nil {
			return domain.SLAParameters{}, err
		}
		if params != nil {
			return *params, nil
		}
	}
	return s.policies.For(ticket.Priority), nil
}

// pickAssignee runs the scorer. Failures are logged and the ticket is left
// for manual assignment.
func (s *TicketService) pickAssignee(ctx context.Context, ticket *domain.Ticket) *domain.ScoredCandidate {
	candidates, err := s.techRepo.ListCandidates(ctx, ticket.TenantID, &ticket.CustomerID)
	if err != nil {
		s.logger.WarnContext(ctx, "auto-assign skipped: failed to load candidates", "error", err)
		return nil
	}
	choice, ok := s.engine.Scorer.AutoAssign(candidates, domain.CriteriaForTicket(ticket))
	if !ok {
		s.logger.InfoContext(ctx, "auto-assign found no suitable technician",
			"candidates", len(candidates))
		return nil
	}
	return choice
}

func (s *TicketService) checkBreach(ticket *domain.Ticket) domain.BreachInfo {
	return s.engine.SLA.CheckBreach(
		ticket.SLAResponseDue,
		ticket.SLAResolutionDue,
		ticket.FirstResponseAt,
		ticket.ResolvedAt,
		s.engine.Clock.Now(),
	)
}

// Shutdown waits for in-flight notifications and broadcasts.
func (s *TicketService) Shutdown() {
	s.events.wait()
}
