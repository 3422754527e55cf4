package persistence

import (
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// setupLedgerTestDB opens an in-memory SQLite database with the ledger
// schema. A single connection keeps every statement on the same database.
func setupLedgerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.LedgerModels()...))
	return db
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedPeriod(t *testing.T, db *gorm.DB, tenantID uuid.UUID, start, end time.Time) *ledger.FiscalPeriod {
	t.Helper()
	period, err := ledger.NewFiscalPeriod(tenantID, "", start, end)
	require.NoError(t, err)
	require.NoError(t, NewGormFiscalPeriodRepository(db).Create(t.Context(), period))
	return period
}

func seedAccount(t *testing.T, db *gorm.DB, tenantID uuid.UUID, code string, typ ledger.AccountType) *ledger.Account {
	t.Helper()
	acc, err := ledger.NewAccount(tenantID, code, "Account "+code, typ, "")
	require.NoError(t, err)
	created, err := NewGormAccountRepository(db).CreateIfAbsent(t.Context(), acc)
	require.NoError(t, err)
	require.True(t, created)
	return acc
}
