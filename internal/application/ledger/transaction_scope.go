package ledger

import (
	"context"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
)

// TransactionScope provides transactional access to the ledger repositories.
// Every repository handed to fn shares one database transaction, which is
// committed when fn returns nil and rolled back otherwise.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories exposes the repositories bound to the current
// transaction. Events recorded through Events are written to the outbox in
// the same transaction, so they are published only if the posting commits.
type TransactionalRepositories interface {
	AccountRepo() ledger.AccountRepository
	PeriodRepo() ledger.FiscalPeriodRepository
	EntryRepo() ledger.JournalEntryRepository
	Events() EventRecorder
}

// EventRecorder stores domain events for later publication.
type EventRecorder interface {
	Record(ctx context.Context, events ...shared.DomainEvent) error
}

// NoOpTransactionScope runs fn directly against the given repositories.
// It is meant for tests and tools that do not need atomicity.
type NoOpTransactionScope struct {
	accountRepo ledger.AccountRepository
	periodRepo  ledger.FiscalPeriodRepository
	entryRepo   ledger.JournalEntryRepository
	events      EventRecorder
}

func NewNoOpTransactionScope(
	accountRepo ledger.AccountRepository,
	periodRepo ledger.FiscalPeriodRepository,
	entryRepo ledger.JournalEntryRepository,
	events EventRecorder,
) *NoOpTransactionScope {
	if events == nil {
		events = discardRecorder{}
	}
	return &NoOpTransactionScope{
		accountRepo: accountRepo,
		periodRepo:  periodRepo,
		entryRepo:   entryRepo,
		events:      events,
	}
}

func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

func (s *NoOpTransactionScope) AccountRepo() ledger.AccountRepository     { return s.accountRepo }
func (s *NoOpTransactionScope) PeriodRepo() ledger.FiscalPeriodRepository { return s.periodRepo }
func (s *NoOpTransactionScope) EntryRepo() ledger.JournalEntryRepository  { return s.entryRepo }
func (s *NoOpTransactionScope) Events() EventRecorder                     { return s.events }

type discardRecorder struct{}

func (discardRecorder) Record(context.Context, ...shared.DomainEvent) error { return nil }

// recordPending flushes the aggregate's pending events into the recorder.
func recordPending(ctx context.Context, rec EventRecorder, aggregates ...shared.AggregateRoot) error {
	var events []shared.DomainEvent
	for _, agg := range aggregates {
		events = append(events, agg.GetDomainEvents()...)
	}
	if len(events) == 0 {
		return nil
	}
	if err := rec.Record(ctx, events...); err != nil {
		return err
	}
	for _, agg := range aggregates {
		agg.ClearDomainEvents()
	}
	return nil
}

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
