package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func manualHeader(ref string) ledger.EntryHeader {
	h := ledger.EntryHeader{
		EntryDate:   date(2024, time.January, 15),
		Description: "Office supplies",
		CreatedBy:   "alice",
	}
	if ref != "" {
		h.ReferenceType = "invoice"
		h.ReferenceID = ref
	}
	return h
}

func balancedLines(amount string) []ledger.LineSpec {
	return []ledger.LineSpec{
		ledger.Debit(uuid.New(), dec(amount), "expense"),
		ledger.Credit(uuid.New(), dec(amount), "cash"),
	}
}

// postedEntry builds a posted entry in period for reversal tests.
func postedEntry(t *testing.T, env *ledgerEnv, period *ledger.FiscalPeriod) *ledger.JournalEntry {
	t.Helper()
	entry, err := ledger.NewJournalEntry(env.tenantID, "JE-SOURCE", manualHeader(""), period, balancedLines("250.00"))
	require.NoError(t, err)
	require.NoError(t, entry.Post(period, "alice", date(2024, time.January, 15)))
	entry.ClearDomainEvents()
	return entry
}

func TestPostingService_CreateEntry_Draft(t *testing.T) {
	env := newLedgerEnv(t)
	env.openPeriod(t)
	env.noEntries()

	entry, err := env.posting.CreateEntry(bg, env.tenantID, manualHeader("INV-1"), balancedLines("100"))
	require.NoError(t, err)
	assert.Equal(t, ledger.EntryStatusDraft, entry.Status)
	assert.Equal(t, "JE-TEST-001", entry.EntryNumber)
	assert.Nil(t, entry.PostedAt)
	assert.Empty(t, env.events.events)
}

func TestPostingService_CreateAndPost(t *testing.T) {
	env := newLedgerEnv(t)
	period := env.openPeriod(t)
	env.noEntries()

	entry, err := env.posting.CreateAndPost(bg, env.tenantID, manualHeader("INV-2"), balancedLines("100"))
	require.NoError(t, err)
	assert.Equal(t, ledger.EntryStatusPosted, entry.Status)
	assert.Equal(t, period.ID, entry.FiscalPeriodID)
	assert.Equal(t, "alice", entry.PostedBy)
	require.NotNil(t, entry.PostedAt)
	assert.Equal(t, date(2024, time.February, 1), *entry.PostedAt)
	assert.Equal(t, []string{ledger.EventTypeJournalEntryPosted}, env.events.types())
	assert.Empty(t, entry.GetDomainEvents())
}

func TestPostingService_CreateAndPost_Unbalanced(t *testing.T) {
	env := newLedgerEnv(t)
	env.openPeriod(t)
	env.noEntries()

	lines := []ledger.LineSpec{
		ledger.Debit(uuid.New(), dec("100.00"), ""),
		ledger.Credit(uuid.New(), dec("99.99"), ""),
	}
	_, err := env.posting.CreateAndPost(bg, env.tenantID, manualHeader("INV-3"), lines)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ledger.ErrUnbalancedEntry))
	assert.Empty(t, env.saved)
}

func TestPostingService_CreateEntry_ExistingReference(t *testing.T) {
	env := newLedgerEnv(t)
	existing := &ledger.JournalEntry{EntryNumber: "JE-OLD"}
	env.entries.On("FindByReference", mock.Anything, env.tenantID, "invoice", "INV-4").Return(existing, nil)

	entry, err := env.posting.CreateAndPost(bg, env.tenantID, manualHeader("INV-4"), balancedLines("100"))
	require.NoError(t, err)
	assert.Same(t, existing, entry)
	env.entries.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	env.periods.AssertNotCalled(t, "FindCovering", mock.Anything, mock.Anything, mock.Anything)
}

func TestPostingService_CreateEntry_ConcurrentDuplicate(t *testing.T) {
	env := newLedgerEnv(t)
	env.openPeriod(t)
	winner := &ledger.JournalEntry{EntryNumber: "JE-WINNER"}
	env.entries.On("FindByReference", mock.Anything, env.tenantID, "invoice", "INV-5").Return(nil, shared.ErrNotFound).Once()
	env.entries.On("Create", mock.Anything, mock.Anything).Return(ledger.ErrDuplicateReference)
	env.entries.On("FindByReference", mock.Anything, env.tenantID, "invoice", "INV-5").Return(winner, nil).Once()

	entry, err := env.posting.CreateAndPost(bg, env.tenantID, manualHeader("INV-5"), balancedLines("100"))
	require.NoError(t, err)
	assert.Same(t, winner, entry)
	assert.Empty(t, env.events.events)
	env.entries.AssertExpectations(t)
}

func TestPostingService_CreateEntry_NoPeriod(t *testing.T) {
	env := newLedgerEnv(t)
	env.noEntries()
	env.periods.On("FindCovering", mock.Anything, env.tenantID, mock.Anything).Return(nil, ledger.ErrPeriodNotFound)

	_, err := env.posting.CreateEntry(bg, env.tenantID, manualHeader(""), balancedLines("1"))
	assert.True(t, errors.Is(err, ledger.ErrPeriodNotFound))
}

func TestPostingService_PostEntry(t *testing.T) {
	env := newLedgerEnv(t)
	period := env.openPeriod(t)
	draft, err := ledger.NewJournalEntry(env.tenantID, "JE-DRAFT", manualHeader(""), period, balancedLines("40"))
	require.NoError(t, err)
	env.entries.On("FindByIDForUpdate", mock.Anything, env.tenantID, draft.ID).Return(draft, nil)
	env.entries.On("Update", mock.Anything, draft).Return(nil)

	entry, err := env.posting.PostEntry(bg, env.tenantID, draft.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, ledger.EntryStatusPosted, entry.Status)
	assert.Equal(t, "bob", entry.PostedBy)
	assert.Equal(t, []string{ledger.EventTypeJournalEntryPosted}, env.events.types())
	env.entries.AssertExpectations(t)
}

func TestPostingService_PostEntry_ClosedPeriod(t *testing.T) {
	env := newLedgerEnv(t)
	period := env.openPeriod(t)
	draft, err := ledger.NewJournalEntry(env.tenantID, "JE-DRAFT", manualHeader(""), period, balancedLines("40"))
	require.NoError(t, err)
	require.NoError(t, period.Close("controller", date(2024, time.February, 3)))
	env.entries.On("FindByIDForUpdate", mock.Anything, env.tenantID, draft.ID).Return(draft, nil)

	_, err = env.posting.PostEntry(bg, env.tenantID, draft.ID, "bob")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ledger.ErrPeriodClosed))
	assert.Equal(t, ledger.EntryStatusDraft, draft.Status)
	env.entries.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestPostingService_PostEntry_AlreadyPosted(t *testing.T) {
	env := newLedgerEnv(t)
	period := env.openPeriod(t)
	entry := postedEntry(t, env, period)
	env.entries.On("FindByIDForUpdate", mock.Anything, env.tenantID, entry.ID).Return(entry, nil)

	_, err := env.posting.PostEntry(bg, env.tenantID, entry.ID, "bob")
	assert.True(t, errors.Is(err, shared.ErrInvalidState))
}

func TestPostingService_ReverseEntry(t *testing.T) {
	env := newLedgerEnv(t)
	period := env.openPeriod(t)
	source := postedEntry(t, env, period)
	env.entries.On("FindByIDForUpdate", mock.Anything, env.tenantID, source.ID).Return(source, nil)
	env.noEntries()
	env.entries.On("Update", mock.Anything, source).Return(nil)

	mirror, err := env.posting.ReverseEntry(bg, env.tenantID, source.ID, date(2024, time.January, 20), "carol")
	require.NoError(t, err)

	assert.Equal(t, ledger.EntryStatusPosted, mirror.Status)
	assert.Equal(t, ledger.EntryTypeReversal, mirror.EntryType)
	require.NotNil(t, mirror.ReversalOfID)
	assert.Equal(t, source.ID, *mirror.ReversalOfID)
	assert.Equal(t, ledger.ReferenceTypeReversal, mirror.ReferenceType)
	assert.Equal(t, source.ID.String(), mirror.ReferenceID)
	assert.Equal(t, date(2024, time.January, 20), mirror.EntryDate)

	require.Len(t, mirror.Lines, len(source.Lines))
	for i, l := range mirror.Lines {
		assert.Equal(t, source.Lines[i].AccountID, l.AccountID)
		assert.True(t, source.Lines[i].DebitAmount.Equal(l.CreditAmount))
		assert.True(t, source.Lines[i].CreditAmount.Equal(l.DebitAmount))
	}

	assert.True(t, source.IsReversed)
	assert.Equal(t, ledger.EntryStatusReversed, source.Status)
	assert.Equal(t, []string{ledger.EventTypeJournalEntryPosted, ledger.EventTypeJournalEntryReversed}, env.events.types())
	require.Len(t, env.saved, 1)
	assert.Same(t, mirror, env.saved[0])
}

func TestPostingService_ReverseEntry_Twice(t *testing.T) {
	env := newLedgerEnv(t)
	period := env.openPeriod(t)
	source := postedEntry(t, env, period)
	env.entries.On("FindByIDForUpdate", mock.Anything, env.tenantID, source.ID).Return(source, nil)
	env.noEntries()
	env.entries.On("Update", mock.Anything, source).Return(nil)

	_, err := env.posting.ReverseEntry(bg, env.tenantID, source.ID, date(2024, time.January, 20), "carol")
	require.NoError(t, err)

	_, err = env.posting.ReverseEntry(bg, env.tenantID, source.ID, date(2024, time.January, 21), "carol")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ledger.ErrEntryAlreadyReversed))
	assert.Len(t, env.saved, 1)
}

func TestPostingService_ReverseEntry_ConcurrentMirror(t *testing.T) {
	env := newLedgerEnv(t)
	period := env.openPeriod(t)
	source := postedEntry(t, env, period)
	env.entries.On("FindByIDForUpdate", mock.Anything, env.tenantID, source.ID).Return(source, nil)
	env.entries.On("Create", mock.Anything, mock.Anything).Return(ledger.ErrDuplicateReference)

	_, err := env.posting.ReverseEntry(bg, env.tenantID, source.ID, date(2024, time.January, 20), "carol")
	assert.True(t, errors.Is(err, ledger.ErrEntryAlreadyReversed))
	assert.False(t, source.IsReversed)
}

func TestPostingService_ReverseEntry_NotPosted(t *testing.T) {
	env := newLedgerEnv(t)
	period := env.openPeriod(t)
	draft, err := ledger.NewJournalEntry(env.tenantID, "JE-DRAFT", manualHeader(""), period, balancedLines("40"))
	require.NoError(t, err)
	env.entries.On("FindByIDForUpdate", mock.Anything, env.tenantID, draft.ID).Return(draft, nil)

	_, err = env.posting.ReverseEntry(bg, env.tenantID, draft.ID, date(2024, time.January, 20), "carol")
	assert.True(t, errors.Is(err, ledger.ErrEntryNotPosted))
}

func TestPostingService_ReverseEntry_IntoClosedPeriod(t *testing.T) {
	env := newLedgerEnv(t)
	period := env.openPeriod(t)
	source := postedEntry(t, env, period)
	require.NoError(t, period.Close("controller", date(2024, time.February, 3)))
	env.entries.On("FindByIDForUpdate", mock.Anything, env.tenantID, source.ID).Return(source, nil)

	_, err := env.posting.ReverseEntry(bg, env.tenantID, source.ID, date(2024, time.January, 20), "carol")
	assert.True(t, errors.Is(err, ledger.ErrPeriodClosed))
	assert.Equal(t, ledger.EntryStatusPosted, source.Status)
}

func TestPostingService_Transitions(t *testing.T) {
	env := newLedgerEnv(t)
	period := env.openPeriod(t)
	draft, err := ledger.NewJournalEntry(env.tenantID, "JE-DRAFT", manualHeader(""), period, balancedLines("40"))
	require.NoError(t, err)
	env.entries.On("FindByIDForUpdate", mock.Anything, env.tenantID, draft.ID).Return(draft, nil)
	env.entries.On("Update", mock.Anything, draft).Return(nil)

	e, err := env.posting.SubmitEntry(bg, env.tenantID, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.EntryStatusPending, e.Status)

	e, err = env.posting.RejectEntry(bg, env.tenantID, draft.ID, "wrong account")
	require.NoError(t, err)
	assert.Equal(t, ledger.EntryStatusRejected, e.Status)
	assert.Equal(t, "wrong account", e.RejectionReason)

	_, err = env.posting.SubmitEntry(bg, env.tenantID, draft.ID)
	assert.True(t, errors.Is(err, shared.ErrInvalidState))

	e, err = env.posting.ReopenEntry(bg, env.tenantID, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.EntryStatusDraft, e.Status)
}

func TestPostingService_ReplaceLines(t *testing.T) {
	env := newLedgerEnv(t)
	period := env.openPeriod(t)
	draft, err := ledger.NewJournalEntry(env.tenantID, "JE-DRAFT", manualHeader(""), period, balancedLines("40"))
	require.NoError(t, err)
	env.entries.On("FindByIDForUpdate", mock.Anything, env.tenantID, draft.ID).Return(draft, nil)
	env.entries.On("ReplaceLines", mock.Anything, draft).Return(nil)

	e, err := env.posting.ReplaceLines(bg, env.tenantID, draft.ID, balancedLines("75"))
	require.NoError(t, err)
	assert.True(t, e.TotalDebit().Equal(dec("75")))
	assert.True(t, env.posting.ValidateBalance(e))
}
