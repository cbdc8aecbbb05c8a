package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lorrc/service-desk-lifecycle/internal/core/domain"
	"github.com/lorrc/service-desk-lifecycle/internal/core/ports"
	"github.com/stretchr/testify/mock"
)

// MockTicketRepository is a mock implementation of ports.TicketRepository
type MockTicketRepository struct {
	mock.Mock
}

func NewMockTicketRepository() *MockTicketRepository {
	return &MockTicketRepository{}
}

func (m *MockTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error) {
	args := m.Called(ctx, ticket)
	if fn, ok := args.Get(0).(func(context.Context, *domain.Ticket) *domain.Ticket); ok {
		return fn(ctx, ticket), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockTicketRepository) GetByID(ctx context.Context, tenantID uuid.UUID, id int64) (*domain.Ticket, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockTicketRepository) GetByIDForUpdate(ctx context.Context, tenantID uuid.UUID, id int64) (*domain.Ticket, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockTicketRepository) Update(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error) {
	args := m.Called(ctx, ticket)
	if fn, ok := args.Get(0).(func(context.Context, *domain.Ticket) *domain.Ticket); ok {
		return fn(ctx, ticket), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockTicketRepository) ListSLAWatch(ctx context.Context, params ports.ListSLAWatchParams) ([]*domain.Ticket, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Ticket), args.Error(1)
}

func (m *MockTicketRepository) MarkBreached(ctx context.Context, tenantID uuid.UUID, id int64, reason string) error {
	args := m.Called(ctx, tenantID, id, reason)
	return args.Error(0)
}

// MockRateRepository is a mock implementation of ports.RateRepository
type MockRateRepository struct {
	mock.Mock
}

func NewMockRateRepository() *MockRateRepository {
	return &MockRateRepository{}
}

func (m *MockRateRepository) GetUserRates(ctx context.Context, userID uuid.UUID) (*domain.UserRates, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UserRates), args.Error(1)
}

func (m *MockRateRepository) FindSpecificRates(ctx context.Context, query domain.RateQuery) ([]domain.BillingRate, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.BillingRate), args.Error(1)
}

func (m *MockRateRepository) GetContractHourlyRate(ctx context.Context, contractID uuid.UUID) (*float64, error) {
	args := m.Called(ctx, contractID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*float64), args.Error(1)
}

// MockTechnicianRepository is a mock implementation of ports.TechnicianRepository
type MockTechnicianRepository struct {
	mock.Mock
}

func NewMockTechnicianRepository() *MockTechnicianRepository {
	return &MockTechnicianRepository{}
}

func (m *MockTechnicianRepository) ListCandidates(ctx context.Context, tenantID uuid.UUID, customerID *uuid.UUID) ([]domain.AssignmentCandidate, error) {
	args := m.Called(ctx, tenantID, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AssignmentCandidate), args.Error(1)
}

func (m *MockTechnicianRepository) TouchLastAssigned(ctx context.Context, userID uuid.UUID, at time.Time) error {
	args := m.Called(ctx, userID, at)
	return args.Error(0)
}

// MockTimeEntryRepository is a mock implementation of ports.TimeEntryRepository
type MockTimeEntryRepository struct {
	mock.Mock
}

func NewMockTimeEntryRepository() *MockTimeEntryRepository {
	return &MockTimeEntryRepository{}
}

func (m *MockTimeEntryRepository) Create(ctx context.Context, entry *domain.TimeEntry) (*domain.TimeEntry, error) {
	args := m.Called(ctx, entry)
	if fn, ok := args.Get(0).(func(context.Context, *domain.TimeEntry) *domain.TimeEntry); ok {
		return fn(ctx, entry), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TimeEntry), args.Error(1)
}

func (m *MockTimeEntryRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.TimeEntry, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TimeEntry), args.Error(1)
}

func (m *MockTimeEntryRepository) Update(ctx context.Context, entry *domain.TimeEntry) (*domain.TimeEntry, error) {
	args := m.Called(ctx, entry)
	if fn, ok := args.Get(0).(func(context.Context, *domain.TimeEntry) *domain.TimeEntry); ok {
		return fn(ctx, entry), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TimeEntry), args.Error(1)
}

func (m *MockTimeEntryRepository) ListByTicket(ctx context.Context, tenantID uuid.UUID, ticketID int64) ([]*domain.TimeEntry, error) {
	args := m.Called(ctx, tenantID, ticketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.TimeEntry), args.Error(1)
}

// MockSLAPolicyRepository is a mock implementation of ports.SLAPolicyRepository
type MockSLAPolicyRepository struct {
	mock.Mock
}

func NewMockSLAPolicyRepository() *MockSLAPolicyRepository {
	return &MockSLAPolicyRepository{}
}

func (m *MockSLAPolicyRepository) GetContractSLA(ctx context.Context, contractID uuid.UUID) (*domain.SLAParameters, error) {
	args := m.Called(ctx, contractID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SLAParameters), args.Error(1)
}

// MockTicketService is a mock implementation of ports.TicketService
type MockTicketService struct {
	mock.Mock
}

func NewMockTicketService() *MockTicketService {
	return &MockTicketService{}
}

func (m *MockTicketService) CreateTicket(ctx context.Context, params ports.CreateTicketParams) (*domain.Ticket, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockTicketService) GetTicket(ctx context.Context, tenantID uuid.UUID, ticketID int64) (*domain.Ticket, error) {
	args := m.Called(ctx, tenantID, ticketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockTicketService) UpdateStatus(ctx context.Context, params ports.UpdateStatusParams) (*domain.Ticket, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockTicketService) RecordFirstResponse(ctx context.Context, tenantID uuid.UUID, ticketID int64) (*domain.Ticket, error) {
	args := m.Called(ctx, tenantID, ticketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockTicketService) GetSLAStatus(ctx context.Context, tenantID uuid.UUID, ticketID int64) (*domain.SLAStatus, error) {
	args := m.Called(ctx, tenantID, ticketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SLAStatus), args.Error(1)
}

func (m *MockTicketService) Shutdown() {
	m.Called()
}

// MockAssignmentService is a mock implementation of ports.AssignmentService
type MockAssignmentService struct {
	mock.Mock
}

func NewMockAssignmentService() *MockAssignmentService {
	return &MockAssignmentService{}
}

func (m *MockAssignmentService) AutoAssign(ctx context.Context, tenantID uuid.UUID, ticketID int64) (*ports.AssignmentResult, error) {
	args := m.Called(ctx, tenantID, ticketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.AssignmentResult), args.Error(1)
}

func (m *MockAssignmentService) Recommendations(ctx context.Context, tenantID uuid.UUID, ticketID int64, limit int) ([]domain.ScoredCandidate, error) {
	args := m.Called(ctx, tenantID, ticketID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ScoredCandidate), args.Error(1)
}

// MockTimeEntryService is a mock implementation of ports.TimeEntryService
type MockTimeEntryService struct {
	mock.Mock
}

func NewMockTimeEntryService() *MockTimeEntryService {
	return &MockTimeEntryService{}
}

func (m *MockTimeEntryService) CreateTimeEntry(ctx context.Context, params ports.CreateTimeEntryParams) (*ports.TimeEntryView, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.TimeEntryView), args.Error(1)
}

func (m *MockTimeEntryService) UpdateTimeEntry(ctx context.Context, params ports.UpdateTimeEntryParams) (*ports.TimeEntryView, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.TimeEntryView), args.Error(1)
}

func (m *MockTimeEntryService) ListTimeEntries(ctx context.Context, tenantID uuid.UUID, ticketID int64) ([]ports.TimeEntryView, domain.Totals, error) {
	args := m.Called(ctx, tenantID, ticketID)
	if args.Get(0) == nil {
		return nil, domain.Totals{}, args.Error(2)
	}
	return args.Get(0).([]ports.TimeEntryView), args.Get(1).(domain.Totals), args.Error(2)
}

// MockNotifier is a mock implementation of ports.Notifier
type MockNotifier struct {
	mock.Mock
}

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) Notify(ctx context.Context, params ports.NotificationParams) {
	m.Called(ctx, params)
}

// MockEventBroadcaster is a mock implementation of ports.EventBroadcaster
type MockEventBroadcaster struct {
	mock.Mock
}

func NewMockEventBroadcaster() *MockEventBroadcaster {
	return &MockEventBroadcaster{}
}

func (m *MockEventBroadcaster) Broadcast(event domain.Event) error {
	args := m.Called(event)
	return args.Error(0)
}

// MockTransactionManager runs fn directly. Set Err to simulate a failed commit.
type MockTransactionManager struct {
	Calls int
	Err   error
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.Calls++
	if err := fn(ctx); err != nil {
		return err
	}
	return m.Err
}

// MockUserDirectory is a mock implementation of ports.UserDirectory
type MockUserDirectory struct {
	mock.Mock
}

func NewMockUserDirectory() *MockUserDirectory {
	return &MockUserDirectory{}
}

func (m *MockUserDirectory) GetContact(ctx context.Context, userID uuid.UUID) (*domain.Contact, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Contact), args.Error(1)
}
