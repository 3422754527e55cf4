package persistence

import (
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostingFailureRepository_RecordTwiceBumpsAttempts(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormPostingFailureRepository(db)
	tenantID, eventID := uuid.New(), uuid.New()

	first := ledger.NewPostingFailure(tenantID, eventID, "inventory.StockMovementRecorded",
		"stock_movement", "SM-1", ledger.CodePeriodClosed, "period closed")
	require.NoError(t, repo.Record(t.Context(), first))

	again := ledger.NewPostingFailure(tenantID, eventID, "inventory.StockMovementRecorded",
		"stock_movement", "SM-1", ledger.CodePeriodNotFound, "no period")
	require.NoError(t, repo.Record(t.Context(), again))

	open, err := repo.FindUnresolved(t.Context(), tenantID, 0)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, first.ID, open[0].ID)
	assert.Equal(t, 2, open[0].Attempts)
	assert.Equal(t, ledger.CodePeriodNotFound, open[0].ErrorCode)
	assert.Equal(t, "no period", open[0].ErrorMessage)
	assert.False(t, open[0].IsResolved())
}

func TestPostingFailureRepository_FindUnresolvedScopesAndOrders(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormPostingFailureRepository(db)
	tenantID := uuid.New()

	older := ledger.NewPostingFailure(tenantID, uuid.New(), "payroll.PayrollProcessed", "payroll_run", "PR-1", ledger.CodeValidation, "bad")
	older.FirstFailedAt = older.FirstFailedAt.Add(-time.Hour)
	older.LastFailedAt = older.FirstFailedAt
	newer := ledger.NewPostingFailure(tenantID, uuid.New(), "payroll.PayrollProcessed", "payroll_run", "PR-2", ledger.CodeValidation, "bad")
	other := ledger.NewPostingFailure(uuid.New(), uuid.New(), "payroll.PayrollProcessed", "payroll_run", "PR-3", ledger.CodeValidation, "bad")
	for _, f := range []*ledger.PostingFailure{older, newer, other} {
		require.NoError(t, repo.Record(t.Context(), f))
	}

	open, err := repo.FindUnresolved(t.Context(), tenantID, 10)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, "PR-2", open[0].ReferenceID)
	assert.Equal(t, "PR-1", open[1].ReferenceID)

	limited, err := repo.FindUnresolved(t.Context(), tenantID, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestPostingFailureRepository_MarkResolved(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormPostingFailureRepository(db)
	tenantID, eventID := uuid.New(), uuid.New()

	require.NoError(t, repo.Record(t.Context(), ledger.NewPostingFailure(tenantID, eventID,
		"inventory.GoodsReceived", "goods_receipt", "GR-1", ledger.CodePeriodClosed, "closed")))
	require.NoError(t, repo.MarkResolved(t.Context(), eventID, time.Now().UTC()))

	open, err := repo.FindUnresolved(t.Context(), tenantID, 10)
	require.NoError(t, err)
	assert.Empty(t, open)

	// a failure after resolution opens a fresh record
	require.NoError(t, repo.Record(t.Context(), ledger.NewPostingFailure(tenantID, eventID,
		"inventory.GoodsReceived", "goods_receipt", "GR-1", ledger.CodePeriodClosed, "closed")))
	open, err = repo.FindUnresolved(t.Context(), tenantID, 10)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, 1, open[0].Attempts)

	// resolving an unknown event is a no-op
	assert.NoError(t, repo.MarkResolved(t.Context(), uuid.New(), time.Now().UTC()))
}
