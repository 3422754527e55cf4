package persistence

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type entryFixture struct {
	db       *gorm.DB
	repo     *GormJournalEntryRepository
	tenantID uuid.UUID
	period   *ledger.FiscalPeriod
	cash     *ledger.Account
	revenue  *ledger.Account
}

func newEntryFixture(t *testing.T) *entryFixture {
	t.Helper()
	db := setupLedgerTestDB(t)
	tenantID := uuid.New()
	return &entryFixture{
		db:       db,
		repo:     NewGormJournalEntryRepository(db),
		tenantID: tenantID,
		period:   seedPeriod(t, db, tenantID, day(2024, 1, 1), day(2024, 1, 31)),
		cash:     seedAccount(t, db, tenantID, "1000", ledger.AccountTypeAsset),
		revenue:  seedAccount(t, db, tenantID, "4000", ledger.AccountTypeRevenue),
	}
}

func (f *entryFixture) newEntry(t *testing.T, number, refID, amt string) *ledger.JournalEntry {
	t.Helper()
	header := ledger.EntryHeader{EntryDate: day(2024, 1, 10), Description: "sale", CreatedBy: "alice"}
	if refID != "" {
		header.ReferenceType = "invoice"
		header.ReferenceID = refID
	}
	entry, err := ledger.NewJournalEntry(f.tenantID, number, header, f.period, []ledger.LineSpec{
		ledger.Debit(f.cash.ID, amount(amt), "cash in"),
		ledger.Credit(f.revenue.ID, amount(amt), "sales"),
	})
	require.NoError(t, err)
	return entry
}

func (f *entryFixture) lineCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Table("journal_entry_lines").Count(&n).Error)
	return n
}

func TestGormJournalEntryRepository_CreateAndFind(t *testing.T) {
	f := newEntryFixture(t)
	ctx := t.Context()

	entry := f.newEntry(t, "JE-1", "INV-1", "1250.5000")
	require.NoError(t, f.repo.Create(ctx, entry))

	found, err := f.repo.FindByID(ctx, f.tenantID, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "JE-1", found.EntryNumber)
	assert.Equal(t, ledger.EntryStatusDraft, found.Status)
	assert.Equal(t, day(2024, 1, 10), found.EntryDate)
	assert.Equal(t, f.period.ID, found.FiscalPeriodID)
	require.Len(t, found.Lines, 2)
	assert.Equal(t, 1, found.Lines[0].LineNo)
	assert.Equal(t, f.cash.ID, found.Lines[0].AccountID)
	assert.True(t, found.Lines[0].DebitAmount.Equal(amount("1250.5")))
	assert.True(t, found.Lines[1].CreditAmount.Equal(amount("1250.5")))
	assert.True(t, found.ValidateBalance())

	byRef, err := f.repo.FindByReference(ctx, f.tenantID, "invoice", "INV-1")
	require.NoError(t, err)
	assert.Equal(t, entry.ID, byRef.ID)

	_, err = f.repo.FindByReference(ctx, f.tenantID, "invoice", "INV-2")
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestGormJournalEntryRepository_DuplicateReference(t *testing.T) {
	f := newEntryFixture(t)
	ctx := t.Context()

	require.NoError(t, f.repo.Create(ctx, f.newEntry(t, "JE-1", "INV-1", "10")))

	err := f.repo.Create(ctx, f.newEntry(t, "JE-2", "INV-1", "99"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ledger.ErrDuplicateReference))

	// the losing header wrote no orphan lines
	assert.Equal(t, int64(2), f.lineCount(t))
	n, err := f.repo.CountByReference(ctx, f.tenantID, "invoice", "INV-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestGormJournalEntryRepository_EntryNumberCollisionIsNotADuplicate(t *testing.T) {
	f := newEntryFixture(t)
	ctx := t.Context()

	require.NoError(t, f.repo.Create(ctx, f.newEntry(t, "JE-1", "INV-1", "10")))

	tests := []struct {
		name  string
		refID string
	}{
		{"different reference", "INV-2"},
		{"no reference", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.repo.Create(ctx, f.newEntry(t, "JE-1", tt.refID, "20"))
			require.Error(t, err)
			assert.False(t, errors.Is(err, ledger.ErrDuplicateReference))
		})
	}

	t.Run("same primary key", func(t *testing.T) {
		entry := f.newEntry(t, "JE-9", "INV-9", "30")
		require.NoError(t, f.repo.Create(ctx, entry))
		clone := f.newEntry(t, "JE-10", "INV-10", "30")
		clone.ID = entry.ID
		err := f.repo.Create(ctx, clone)
		require.Error(t, err)
		assert.False(t, errors.Is(err, ledger.ErrDuplicateReference))
	})

	assert.Equal(t, int64(4), f.lineCount(t))
}

func TestGormJournalEntryRepository_UnreferencedEntriesDoNotCollide(t *testing.T) {
	f := newEntryFixture(t)
	ctx := t.Context()

	require.NoError(t, f.repo.Create(ctx, f.newEntry(t, "JE-1", "", "10")))
	require.NoError(t, f.repo.Create(ctx, f.newEntry(t, "JE-2", "", "20")))
	assert.Equal(t, int64(4), f.lineCount(t))
}

func TestGormJournalEntryRepository_UpdateWithVersionCheck(t *testing.T) {
	f := newEntryFixture(t)
	ctx := t.Context()

	entry := f.newEntry(t, "JE-1", "", "10")
	require.NoError(t, f.repo.Create(ctx, entry))

	locked, err := f.repo.FindByIDForUpdate(ctx, f.tenantID, entry.ID)
	require.NoError(t, err)
	require.NoError(t, locked.Post(f.period, "bob", day(2024, 1, 11)))
	require.NoError(t, f.repo.Update(ctx, locked))

	posted, err := f.repo.FindByID(ctx, f.tenantID, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.EntryStatusPosted, posted.Status)
	assert.Equal(t, "bob", posted.PostedBy)
	require.NotNil(t, posted.PostedAt)
	assert.Equal(t, 2, posted.Version)

	// the original copy is one version behind
	require.NoError(t, entry.Reject("late"))
	err = f.repo.Update(ctx, entry)
	assert.True(t, errors.Is(err, shared.ErrConcurrencyConflict))
}

func TestGormJournalEntryRepository_ReplaceLines(t *testing.T) {
	f := newEntryFixture(t)
	ctx := t.Context()

	entry := f.newEntry(t, "JE-1", "", "10")
	require.NoError(t, f.repo.Create(ctx, entry))

	require.NoError(t, entry.ReplaceLines([]ledger.LineSpec{
		ledger.Debit(f.cash.ID, amount("7"), ""),
		ledger.Debit(f.cash.ID, amount("3"), ""),
		ledger.Credit(f.revenue.ID, amount("10"), ""),
	}))
	require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error {
		return NewGormJournalEntryRepository(tx).ReplaceLines(ctx, entry)
	}))

	found, err := f.repo.FindByID(ctx, f.tenantID, entry.ID)
	require.NoError(t, err)
	require.Len(t, found.Lines, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{found.Lines[0].LineNo, found.Lines[1].LineNo, found.Lines[2].LineNo})
	assert.Equal(t, int64(3), f.lineCount(t))
}

func TestGormJournalEntryRepository_PostgresSQL(t *testing.T) {
	gormDB, mock, mockDB := newMockGorm(t)
	defer mockDB.Close()
	repo := NewGormJournalEntryRepository(gormDB)

	tenantID := uuid.New()
	period, err := ledger.NewFiscalPeriod(tenantID, "", day(2024, 1, 1), day(2024, 1, 31))
	require.NoError(t, err)
	entry, err := ledger.NewJournalEntry(tenantID, "JE-1",
		ledger.EntryHeader{EntryDate: day(2024, 1, 2), ReferenceType: "payroll", ReferenceID: "P-1"},
		period,
		[]ledger.LineSpec{ledger.Debit(uuid.New(), amount("5"), ""), ledger.Credit(uuid.New(), amount("5"), "")})
	require.NoError(t, err)

	t.Run("conflicting header skips the lines", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO "journal_entries" .* ON CONFLICT \("tenant_id","reference_type","reference_id"\)\s+WHERE reference_id <> ''\s+DO NOTHING`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Create(t.Context(), entry)
		assert.True(t, errors.Is(err, ledger.ErrDuplicateReference))
	})

	t.Run("entry lookup locks the header row", func(t *testing.T) {
		mock.ExpectQuery(`SELECT \* FROM "journal_entries" WHERE tenant_id = \$1 AND id = \$2 .*FOR UPDATE`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := repo.FindByIDForUpdate(t.Context(), tenantID, entry.ID)
		assert.True(t, errors.Is(err, shared.ErrNotFound))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
