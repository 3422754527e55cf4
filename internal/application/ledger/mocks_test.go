package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockAccountRepository is a mock implementation of ledger.AccountRepository
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*ledger.Account, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Account), args.Error(1)
}

func (m *MockAccountRepository) FindByCode(ctx context.Context, tenantID uuid.UUID, code string) (*ledger.Account, error) {
	args := m.Called(ctx, tenantID, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Account), args.Error(1)
}

func (m *MockAccountRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID) ([]*ledger.Account, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).([]*ledger.Account), args.Error(1)
}

func (m *MockAccountRepository) FindChildren(ctx context.Context, tenantID, parentID uuid.UUID) ([]*ledger.Account, error) {
	args := m.Called(ctx, tenantID, parentID)
	return args.Get(0).([]*ledger.Account), args.Error(1)
}

func (m *MockAccountRepository) CreateIfAbsent(ctx context.Context, account *ledger.Account) (bool, error) {
	args := m.Called(ctx, account)
	return args.Bool(0), args.Error(1)
}

func (m *MockAccountRepository) Save(ctx context.Context, account *ledger.Account) error {
	return m.Called(ctx, account).Error(0)
}

func (m *MockAccountRepository) LockChart(ctx context.Context, tenantID uuid.UUID) error {
	return m.Called(ctx, tenantID).Error(0)
}

func (m *MockAccountRepository) HasLines(ctx context.Context, tenantID, accountID uuid.UUID) (bool, error) {
	args := m.Called(ctx, tenantID, accountID)
	return args.Bool(0), args.Error(1)
}

func (m *MockAccountRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return m.Called(ctx, tenantID, id).Error(0)
}

// MockFiscalPeriodRepository is a mock implementation of ledger.FiscalPeriodRepository
type MockFiscalPeriodRepository struct {
	mock.Mock
}

func (m *MockFiscalPeriodRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*ledger.FiscalPeriod, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.FiscalPeriod), args.Error(1)
}

func (m *MockFiscalPeriodRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*ledger.FiscalPeriod, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.FiscalPeriod), args.Error(1)
}

func (m *MockFiscalPeriodRepository) FindCovering(ctx context.Context, tenantID uuid.UUID, date time.Time) (*ledger.FiscalPeriod, error) {
	args := m.Called(ctx, tenantID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.FiscalPeriod), args.Error(1)
}

func (m *MockFiscalPeriodRepository) FindOverlapping(ctx context.Context, tenantID uuid.UUID, start, end time.Time) ([]*ledger.FiscalPeriod, error) {
	args := m.Called(ctx, tenantID, start, end)
	return args.Get(0).([]*ledger.FiscalPeriod), args.Error(1)
}

func (m *MockFiscalPeriodRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID) ([]*ledger.FiscalPeriod, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).([]*ledger.FiscalPeriod), args.Error(1)
}

func (m *MockFiscalPeriodRepository) LockCalendar(ctx context.Context, tenantID uuid.UUID) error {
	return m.Called(ctx, tenantID).Error(0)
}

func (m *MockFiscalPeriodRepository) Create(ctx context.Context, period *ledger.FiscalPeriod) error {
	return m.Called(ctx, period).Error(0)
}

func (m *MockFiscalPeriodRepository) Save(ctx context.Context, period *ledger.FiscalPeriod) error {
	return m.Called(ctx, period).Error(0)
}

// MockJournalEntryRepository is a mock implementation of ledger.JournalEntryRepository
type MockJournalEntryRepository struct {
	mock.Mock
}

func (m *MockJournalEntryRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*ledger.JournalEntry, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.JournalEntry), args.Error(1)
}

func (m *MockJournalEntryRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*ledger.JournalEntry, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.JournalEntry), args.Error(1)
}

func (m *MockJournalEntryRepository) FindByReference(ctx context.Context, tenantID uuid.UUID, referenceType, referenceID string) (*ledger.JournalEntry, error) {
	args := m.Called(ctx, tenantID, referenceType, referenceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.JournalEntry), args.Error(1)
}

func (m *MockJournalEntryRepository) Create(ctx context.Context, entry *ledger.JournalEntry) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *MockJournalEntryRepository) Update(ctx context.Context, entry *ledger.JournalEntry) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *MockJournalEntryRepository) ReplaceLines(ctx context.Context, entry *ledger.JournalEntry) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *MockJournalEntryRepository) CountByReference(ctx context.Context, tenantID uuid.UUID, referenceType, referenceID string) (int64, error) {
	args := m.Called(ctx, tenantID, referenceType, referenceID)
	return args.Get(0).(int64), args.Error(1)
}

// MockPostingFailureRepository is a mock implementation of ledger.PostingFailureRepository
type MockPostingFailureRepository struct {
	mock.Mock
}

func (m *MockPostingFailureRepository) Record(ctx context.Context, failure *ledger.PostingFailure) error {
	return m.Called(ctx, failure).Error(0)
}

func (m *MockPostingFailureRepository) FindUnresolved(ctx context.Context, tenantID uuid.UUID, limit int) ([]*ledger.PostingFailure, error) {
	args := m.Called(ctx, tenantID, limit)
	return args.Get(0).([]*ledger.PostingFailure), args.Error(1)
}

func (m *MockPostingFailureRepository) MarkResolved(ctx context.Context, eventID uuid.UUID, at time.Time) error {
	return m.Called(ctx, eventID, at).Error(0)
}

// capturingRecorder keeps recorded events for assertions.
type capturingRecorder struct {
	events []shared.DomainEvent
}

func (r *capturingRecorder) Record(_ context.Context, events ...shared.DomainEvent) error {
	r.events = append(r.events, events...)
	return nil
}

func (r *capturingRecorder) types() []string {
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType())
	}
	return out
}

// capturingHook records failure hook calls.
type capturingHook struct {
	failures  []PostingAttempt
	errs      []error
	successes []PostingAttempt
}

func (h *capturingHook) OnFailure(_ context.Context, attempt PostingAttempt, err error) {
	h.failures = append(h.failures, attempt)
	h.errs = append(h.errs, err)
}

func (h *capturingHook) OnSuccess(_ context.Context, attempt PostingAttempt) {
	h.successes = append(h.successes, attempt)
}

// fixedNumbers issues predictable entry numbers.
type fixedNumbers struct{ n int }

func (f *fixedNumbers) Next(time.Time) string {
	f.n++
	return fmt.Sprintf("JE-TEST-%03d", f.n)
}
