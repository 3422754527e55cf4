package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AccountRepository persists chart-of-accounts nodes.
type AccountRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Account, error)
	FindByCode(ctx context.Context, tenantID uuid.UUID, code string) (*Account, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID) ([]*Account, error)
	FindChildren(ctx context.Context, tenantID, parentID uuid.UUID) ([]*Account, error)
	// CreateIfAbsent inserts the account unless (tenant_id, code) already
	// exists. It reports whether this call performed the insert.
	CreateIfAbsent(ctx context.Context, account *Account) (bool, error)
	// Save updates an existing account with an optimistic version check.
	Save(ctx context.Context, account *Account) error
	HasLines(ctx context.Context, tenantID, accountID uuid.UUID) (bool, error)
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	// LockChart serializes hierarchy changes of one tenant until commit.
	LockChart(ctx context.Context, tenantID uuid.UUID) error
}

// FiscalPeriodRepository persists fiscal periods.
type FiscalPeriodRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*FiscalPeriod, error)
	// FindByIDForUpdate loads the period and locks its row until commit.
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*FiscalPeriod, error)
	// FindCovering returns the period whose range contains date, or ErrPeriodNotFound.
	FindCovering(ctx context.Context, tenantID uuid.UUID, date time.Time) (*FiscalPeriod, error)
	FindOverlapping(ctx context.Context, tenantID uuid.UUID, start, end time.Time) ([]*FiscalPeriod, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID) ([]*FiscalPeriod, error)
	// LockCalendar serializes period creation of one tenant until commit.
	LockCalendar(ctx context.Context, tenantID uuid.UUID) error
	Create(ctx context.Context, period *FiscalPeriod) error
	Save(ctx context.Context, period *FiscalPeriod) error
}

// JournalEntryRepository persists entries together with their lines.
type JournalEntryRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*JournalEntry, error)
	// FindByIDForUpdate loads the entry and locks its row until commit.
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*JournalEntry, error)
	// FindByReference looks up the entry for an idempotency key.
	FindByReference(ctx context.Context, tenantID uuid.UUID, referenceType, referenceID string) (*JournalEntry, error)
	// Create inserts the header and lines. A conflict on the idempotency key
	// returns ErrDuplicateReference and writes nothing.
	Create(ctx context.Context, entry *JournalEntry) error
	// Update persists header changes with an optimistic version check.
	Update(ctx context.Context, entry *JournalEntry) error
	// ReplaceLines rewrites the lines of a draft entry.
	ReplaceLines(ctx context.Context, entry *JournalEntry) error
	CountByReference(ctx context.Context, tenantID uuid.UUID, referenceType, referenceID string) (int64, error)
}

// PostingFailureRepository stores failure-hook records.
type PostingFailureRepository interface {
	// Record inserts the failure or bumps attempts on an unresolved record
	// for the same event.
	Record(ctx context.Context, failure *PostingFailure) error
	FindUnresolved(ctx context.Context, tenantID uuid.UUID, limit int) ([]*PostingFailure, error)
	MarkResolved(ctx context.Context, eventID uuid.UUID, at time.Time) error
}
