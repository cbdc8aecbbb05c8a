package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lorrc/service-desk-lifecycle/internal/core/domain"
	"github.com/lorrc/service-desk-lifecycle/internal/core/ports"
	"github.com/lorrc/service-desk-lifecycle/internal/infrastructure/logging"
)

// dispatcher fans lifecycle events out to the notifier and broadcaster in
// the background. wait blocks until every send has finished. A panicking
// sink is logged and does not take the process down.
type dispatcher struct {
	notifier    ports.Notifier
	broadcaster ports.EventBroadcaster
	logger      *slog.Logger
	wg          sync.WaitGroup
}

func newDispatcher(notifier ports.Notifier, broadcaster ports.EventBroadcaster, logger *slog.Logger) *dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &dispatcher{notifier: notifier, broadcaster: broadcaster, logger: logger}
}

// notify uses a background context since the request may be done by the
// time the notification goes out.
func (d *dispatcher) notify(params ports.NotificationParams) {
	if d.notifier == nil {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.recoverSend("notify", params.TicketID)
		d.notifier.Notify(context.Background(), params)
	}()
}

func (d *dispatcher) broadcast(event domain.Event) {
	if d.broadcaster == nil {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.recoverSend("broadcast", event.TicketID)
		if err := d.broadcaster.Broadcast(event); err != nil {
			d.logger.Warn("failed to broadcast event",
				"type", event.Type, "ticket_id", event.TicketID, "error", err)
		}
	}()
}

func (d *dispatcher) assigned(ticket *domain.Ticket, choice *domain.ScoredCandidate, automatic bool) {
	d.broadcast(domain.Event{
		Type:     domain.EventTicketAssigned,
		TicketID: ticket.ID,
		TenantID: ticket.TenantID,
		Payload: domain.AssignedPayload{
			AssigneeID: choice.Candidate.UserID.String(),
			Score:      choice.Score,
			Automatic:  automatic,
		},
	})
	d.notify(ports.NotificationParams{
		RecipientUserID: choice.Candidate.UserID,
		Subject:         fmt.Sprintf("Ticket #%d assigned to you", ticket.ID),
		Message:         fmt.Sprintf("'%s' (%s priority) has been assigned to you.", ticket.Title, ticket.Priority),
		TicketID:        ticket.ID,
	})
}

func (d *dispatcher) breached(ticket *domain.Ticket, info domain.BreachInfo) {
	d.logger.Info("sla breached",
		"ticket_id", ticket.ID,
		"tenant_id", ticket.TenantID,
		"breach_type", info.BreachType,
		"breach_minutes", info.BreachMinutes,
	)
	d.broadcast(domain.Event{
		Type:     domain.EventSLABreached,
		TicketID: ticket.ID,
		TenantID: ticket.TenantID,
		Payload: domain.BreachPayload{
			BreachType:    info.BreachType,
			BreachMinutes: info.BreachMinutes,
			Reason:        info.Reason(),
		},
	})
	if ticket.AssignedTo != nil {
		d.notify(ports.NotificationParams{
			RecipientUserID: *ticket.AssignedTo,
			Subject:         fmt.Sprintf("SLA breached on ticket #%d", ticket.ID),
			Message:         info.Reason(),
			TicketID:        ticket.ID,
		})
	}
}

func (d *dispatcher) recoverSend(kind string, ticketID int64) {
	if r := recover(); r != nil {
		logging.LogPanic(d.logger.With("dispatch", kind, "ticket_id", ticketID), r)
	}
}

func (d *dispatcher) wait() {
	d.wg.Wait()
}
