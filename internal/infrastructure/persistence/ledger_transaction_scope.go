package persistence

import (
	"context"

	appledger "github.com/erp/ledger/internal/application/ledger"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"gorm.io/gorm"
)

// GormTransactionScope implements appledger.TransactionScope using GORM
// transactions. Deadlocks and serialization failures re-run the whole
// transaction through the retrier.
type GormTransactionScope struct {
	db      *gorm.DB
	outbox  shared.OutboxEventSaver
	retrier *Retrier
}

// NewGormTransactionScope creates a new GormTransactionScope. Events
// recorded inside a transaction go to outbox within that transaction; a nil
// outbox discards them.
func NewGormTransactionScope(db *gorm.DB, outbox shared.OutboxEventSaver, retrier *Retrier) *GormTransactionScope {
	if retrier == nil {
		retrier = NewRetrier(0, 0, nil)
	}
	return &GormTransactionScope{db: db, outbox: outbox, retrier: retrier}
}

// Execute runs fn within a database transaction. If fn returns an error
// the transaction is rolled back.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appledger.TransactionalRepositories) error) error {
	return s.retrier.Retry(ctx, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(&gormTransactionalRepositories{tx: tx, outbox: s.outbox})
		})
	})
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx     *gorm.DB
	outbox shared.OutboxEventSaver
}

func (r *gormTransactionalRepositories) AccountRepo() ledger.AccountRepository {
	return NewGormAccountRepository(r.tx)
}

func (r *gormTransactionalRepositories) PeriodRepo() ledger.FiscalPeriodRepository {
	return NewGormFiscalPeriodRepository(r.tx)
}

func (r *gormTransactionalRepositories) EntryRepo() ledger.JournalEntryRepository {
	return NewGormJournalEntryRepository(r.tx)
}

func (r *gormTransactionalRepositories) Events() appledger.EventRecorder {
	return outboxRecorder{tx: r.tx, saver: r.outbox}
}

// outboxRecorder writes events through the transaction it was created in.
type outboxRecorder struct {
	tx    *gorm.DB
	saver shared.OutboxEventSaver
}

func (o outboxRecorder) Record(ctx context.Context, events ...shared.DomainEvent) error {
	if o.saver == nil || len(events) == 0 {
		return nil
	}
	return o.saver.SaveEvents(ctx, o.tx, events...)
}

// Ensure GormTransactionScope implements TransactionScope
var _ appledger.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements TransactionalRepositories
var _ appledger.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
