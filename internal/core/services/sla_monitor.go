package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/lorrc/service-desk-lifecycle/internal/core/lifecycle"
	"github.com/lorrc/service-desk-lifecycle/internal/core/ports"
)

const (
	DefaultSLAMonitorInterval = time.Minute
	DefaultSLAMonitorBatch    = 200
)

// SLAMonitor periodically sweeps open tickets and records breaches that
// no request has observed yet.
type SLAMonitor struct {
	ticketRepo ports.TicketRepository
	engine     *lifecycle.Engine
	events     *dispatcher
	logger     *slog.Logger
	interval   time.Duration
	batchSize  int32
}

// NewSLAMonitor creates a monitor. Non-positive interval or batch values
// fall back to the defaults.
func NewSLAMonitor(
	ticketRepo ports.TicketRepository,
	engine *lifecycle.Engine,
	notifier ports.Notifier,
	broadcaster ports.EventBroadcaster,
	logger *slog.Logger,
	interval time.Duration,
	batchSize int,
) *SLAMonitor {
	if interval <= 0 {
		interval = DefaultSLAMonitorInterval
	}
	if batchSize <= 0 {
		batchSize = DefaultSLAMonitorBatch
	}
	events := newDispatcher(notifier, broadcaster, logger)
	return &SLAMonitor{
		ticketRepo: ticketRepo,
		engine:     engine,
		events:     events,
		logger:     events.logger,
		interval:   interval,
		batchSize:  int32(batchSize),
	}
}

// Run sweeps on every tick until ctx is cancelled.
func (m *SLAMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info("sla monitor started", "interval", m.interval.String())
	for {
		select {
		case <-ctx.Done():
			m.events.wait()
			m.logger.Info("sla monitor stopped")
			return
		case <-ticker.C:
			n, err := m.Sweep(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				m.logger.Error("sla sweep failed", "error", err)
				continue
			}
			if n > 0 {
				m.logger.Info("sla sweep recorded breaches", "count", n)
			}
		}
	}
}

// Sweep pages through every watched ticket once and returns how many new
// breaches it recorded.
func (m *SLAMonitor) Sweep(ctx context.Context) (int, error) {
	var (
		afterID  int64
		breached int
	)
	for {
		page, err := m.ticketRepo.ListSLAWatch(ctx, ports.ListSLAWatchParams{
			AfterID: afterID,
			Limit:   m.batchSize,
		})
		if err != nil {
			return breached, err
		}

		now := m.engine.Clock.Now()
		for _, ticket := range page {
			afterID = ticket.ID
			info := m.engine.SLA.CheckBreach(
				ticket.SLAResponseDue,
				ticket.SLAResolutionDue,
				ticket.FirstResponseAt,
				ticket.ResolvedAt,
				now,
			)
			if !ticket.MarkBreached(info) {
				continue
			}
			if err := m.ticketRepo.MarkBreached(ctx, ticket.TenantID, ticket.ID, ticket.SLABreachReason); err != nil {
				m.logger.Warn("failed to persist sla breach", "ticket_id", ticket.ID, "error", err)
				continue
			}
			breached++
			m.events.breached(ticket, info)
		}

		if int32(len(page)) < m.batchSize {
			return breached, nil
		}
	}
}
