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

// TimeEntryService logs work against tickets and snapshots the rates once.
type TimeEntryService struct {
	entryRepo  ports.TimeEntryRepository
	ticketRepo ports.TicketRepository
	txManager  ports.TransactionManager
	engine     *lifecycle.Engine
	events     *dispatcher
	logger     *slog.Logger
}

var _ ports.TimeEntryService = (*TimeEntryService)(nil)

// NewTimeEntryService creates a new time entry service.
func NewTimeEntryService(
	entryRepo ports.TimeEntryRepository,
	ticketRepo ports.TicketRepository,
	txManager ports.TransactionManager,
	engine *lifecycle.Engine,
	broadcaster ports.EventBroadcaster,
	logger *slog.Logger,
) *TimeEntryService {
	events := newDispatcher(nil, broadcaster, logger)
	return &TimeEntryService{
		entryRepo:  entryRepo,
		ticketRepo: ticketRepo,
		txManager:  txManager,
		engine:     engine,
		events:     events,
		logger:     events.logger,
	}
}

// CreateTimeEntry resolves billing and cost rates and inserts the entry in
// the same transaction, so the snapshot always matches the configuration
// that was in force when the work was logged.
func (s *TimeEntryService) CreateTimeEntry(ctx context.Context, params ports.CreateTimeEntryParams) (*ports.TimeEntryView, error) {
	if err := domain.ValidateHours(params.Hours); err != nil {
		return nil, err
	}

	now := s.engine.Clock.Now()
	asOf := params.EntryDate
	if asOf.IsZero() {
		asOf = now
	}

	var created *domain.TimeEntry
	err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		ticket, err := s.ticketRepo.GetByID(ctx, params.TenantID, params.TicketID)
		if err != nil {
			return err
		}

		rates, err := s.engine.Rates.Resolve(ctx, domain.RateQuery{
			UserID:       params.UserID,
			CustomerID:   ticket.CustomerID,
			ContractID:   ticket.ContractID,
			ServiceLevel: params.ServiceLevel,
			WorkType:     params.WorkType,
			AsOf:         asOf,
		})
		if err != nil {
			return err
		}

		entry, err := domain.NewTimeEntry(domain.TimeEntryParams{
			TenantID:     params.TenantID,
			TicketID:     params.TicketID,
			UserID:       params.UserID,
			Hours:        params.Hours,
			Description:  params.Description,
			WorkType:     params.WorkType,
			ServiceLevel: params.ServiceLevel,
			Billable:     params.Billable,
			EntryDate:    asOf,
		}, rates, now)
		if err != nil {
			return err
		}

		created, err = s.entryRepo.Create(ctx, entry)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "time entry created",
		"ticket_id", created.TicketID,
		"entry_id", created.ID,
		"hours", created.Hours,
		"rate_source", created.RateSource,
	)
	s.events.broadcast(domain.Event{
		Type:     domain.EventTimeEntryCreated,
		TicketID: created.TicketID,
		TenantID: created.TenantID,
		Payload:  created,
	})
	return viewOf(created), nil
}

// UpdateTimeEntry applies a typed patch. Patches naming billingRate or
// costRate are refused before anything is read.
func (s *TimeEntryService) UpdateTimeEntry(ctx context.Context, params ports.UpdateTimeEntryParams) (*ports.TimeEntryView, error) {
	if params.Patch.BillingRate.Set || params.Patch.CostRate.Set {
		return nil, apperrors.ErrRateImmutable
	}
	if params.Patch.IsEmpty() {
		errs := apperrors.NewValidationErrors()
		errs.Add("body", "No fields to update")
		return nil, errs
	}

	var updated *domain.TimeEntry
	err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		entry, err := s.entryRepo.GetByID(ctx, params.TenantID, params.EntryID)
		if err != nil {
			return err
		}
		if entry.UserID != params.ActorID {
			return apperrors.ErrForbidden
		}
		if err := params.Patch.Apply(entry, s.engine.Clock.Now()); err != nil {
			return err
		}
		updated, err = s.entryRepo.Update(ctx, entry)
		return err
	})
	if err != nil {
		return nil, err
	}
	return viewOf(updated), nil
}

// ListTimeEntries returns the ticket's entries with per-entry and overall totals.
func (s *TimeEntryService) ListTimeEntries(ctx context.Context, tenantID uuid.UUID, ticketID int64) ([]ports.TimeEntryView, domain.Totals, error) {
	if _, err := s.ticketRepo.GetByID(ctx, tenantID, ticketID); err != nil {
		return nil, domain.Totals{}, err
	}

	entries, err := s.entryRepo.ListByTicket(ctx, tenantID, ticketID)
	if err != nil {
		return nil, domain.Totals{}, err
	}

	views := make([]ports.TimeEntryView, 0, len(entries))
	totals := make([]domain.Totals, 0, len(entries))
	for _, e := range entries {
		v := viewOf(e)
		views = append(views, *v)
		totals = append(totals, v.Totals)
	}
	return views, lifecycle.SumTotals(totals), nil
}

// Shutdown waits for in-flight broadcasts.
func (s *TimeEntryService) Shutdown() {
	s.events.wait()
}

func viewOf(e *domain.TimeEntry) *ports.TimeEntryView {
	return &ports.TimeEntryView{
		Entry:  e,
		Totals: lifecycle.CalculateTotals(e.Hours, e.BillingRate, e.CostRate),
	}
}
