package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lorrc/service-desk-lifecycle/internal/core/domain"
	apperrors "github.com/lorrc/service-desk-lifecycle/internal/core/errors"
	"github.com/lorrc/service-desk-lifecycle/internal/core/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTicket(t *testing.T, f fixture, title string) *domain.Ticket {
	t.Helper()
	ticket, err := domain.NewTicket(domain.TicketParams{
		TenantID:   f.tenantID,
		Title:      title,
		Priority:   domain.PriorityHigh,
		Category:   "network",
		Tags:       []string{"vpn", "remote"},
		CustomerID: f.customerID,
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	})
	require.NoError(t, err)
	return ticket
}

func TestTicketRepository_CreateGet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	repo := NewTicketRepository(testPool)

	ticket := newTestTicket(t, f, "VPN drops")
	response := ticket.CreatedAt.Add(2 * time.Hour)
	resolution := ticket.CreatedAt.Add(8 * time.Hour)
	ticket.ApplySLA(domain.SLADueDates{ResponseDue: response, ResolutionDue: resolution})

	created, err := repo.Create(ctx, ticket)
	require.NoError(t, err, "Failed to create ticket")
	assert.NotZero(t, created.ID)

	found, err := repo.GetByID(ctx, f.tenantID, created.ID)
	require.NoError(t, err)

	assert.Equal(t, "VPN drops", found.Title)
	assert.Equal(t, domain.StatusNew, found.Status)
	assert.Equal(t, domain.PriorityHigh, found.Priority)
	assert.Equal(t, []string{"vpn", "remote"}, found.Tags)
	assert.Equal(t, f.customerID, found.CustomerID)
	assert.Nil(t, found.AssignedTo)
	require.NotNil(t, found.SLAResponseDue)
	assert.True(t, response.Equal(*found.SLAResponseDue))
	assert.True(t, resolution.Equal(*found.SLAResolutionDue))
	assert.False(t, found.SLABreached)
}

func TestTicketRepository_TenantScoping(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	repo := NewTicketRepository(testPool)

	created, err := repo.Create(ctx, newTestTicket(t, f, "Printer jam"))
	require.NoError(t, err)

	_, err = repo.GetByID(ctx, uuid.New(), created.ID)
	assert.ErrorIs(t, err, apperrors.ErrTicketNotFound)

	_, err = repo.GetByID(ctx, f.tenantID, created.ID+100000)
	assert.ErrorIs(t, err, apperrors.ErrTicketNotFound)
}

func TestTicketRepository_Update(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	repo := NewTicketRepository(testPool)
	techID := f.addUser(t, userSeed{available: true})

	created, err := repo.Create(ctx, newTestTicket(t, f, "Disk full"))
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, created.Assign(techID, now))
	_, err = created.TransitionTo(domain.StatusAssigned, now)
	require.NoError(t, err)
	created.RecordFirstResponse(now)

	updated, err := repo.Update(ctx, created)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusAssigned, updated.Status)
	require.NotNil(t, updated.AssignedTo)
	assert.Equal(t, techID, *updated.AssignedTo)
	require.NotNil(t, updated.FirstResponseAt)
	assert.True(t, now.Equal(*updated.FirstResponseAt))
	require.NotNil(t, updated.UpdatedAt)
}

func TestTicketRepository_GetByIDForUpdateInTransaction(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	repo := NewTicketRepository(testPool)
	txm := NewTransactionManager(testPool)

	created, err := repo.Create(ctx, newTestTicket(t, f, "Locked"))
	require.NoError(t, err)

	errRollback := errors.New("rollback")
	err = txm.WithTransaction(ctx, func(ctx context.Context) error {
		locked, err := repo.GetByIDForUpdate(ctx, f.tenantID, created.ID)
		if err != nil {
			return err
		}
		if _, err := locked.TransitionTo(domain.StatusInProgress, time.Now()); err != nil {
			return err
		}
		if _, err := repo.Update(ctx, locked); err != nil {
			return err
		}
		return errRollback
	})
	require.ErrorIs(t, err, errRollback)

	after, err := repo.GetByID(ctx, f.tenantID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNew, after.Status, "rolled back transaction must not persist the transition")
}

func TestTicketRepository_SLAWatchAndMarkBreached(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	repo := NewTicketRepository(testPool)

	due := time.Now().UTC().Add(-time.Hour)
	ids := make([]int64, 0, 3)
	for _, title := range []string{"a", "b", "c"} {
		ticket := newTestTicket(t, f, title)
		ticket.ApplySLA(domain.SLADueDates{ResponseDue: due, ResolutionDue: due})
		created, err := repo.Create(ctx, ticket)
		require.NoError(t, err)
		ids = append(ids, created.ID)
	}

	closed := newTestTicket(t, f, "closed")
	closed.Status = domain.StatusCancelled
	closed.ApplySLA(domain.SLADueDates{ResponseDue: due, ResolutionDue: due})
	_, err := repo.Create(ctx, closed)
	require.NoError(t, err)

	require.NoError(t, repo.MarkBreached(ctx, f.tenantID, ids[1], "response SLA breached by 60 minutes"))
	require.NoError(t, repo.MarkBreached(ctx, f.tenantID, ids[1], "overwritten?"))

	marked, err := repo.GetByID(ctx, f.tenantID, ids[1])
	require.NoError(t, err)
	assert.True(t, marked.SLABreached)
	assert.Equal(t, "response SLA breached by 60 minutes", marked.SLABreachReason)

	// Other tenants' tickets may also be in the watch list; filter to ours.
	var watched []int64
	afterID := ids[0] - 1
	for {
		page, err := repo.ListSLAWatch(ctx, ports.ListSLAWatchParams{AfterID: afterID, Limit: 1})
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		afterID = page[0].ID
		if page[0].TenantID == f.tenantID {
			watched = append(watched, page[0].ID)
		}
	}
	assert.Equal(t, []int64{ids[0], ids[2]}, watched)
}
