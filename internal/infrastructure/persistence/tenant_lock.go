package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Advisory lock namespaces. Each one serializes a different kind of
// tenant-wide write.
const (
	lockCalendar = "ledger:calendar:"
	lockChart    = "ledger:chart:"
)

// lockTenant takes a transaction-scoped advisory lock on one tenant's
// namespace. SQLite already runs one writer at a time, so other dialects
// skip it.
func lockTenant(ctx context.Context, db *gorm.DB, namespace string, tenantID uuid.UUID) error {
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	return db.WithContext(ctx).
		Exec("SELECT pg_advisory_xact_lock(hashtext(?))", namespace+tenantID.String()).
		Error
}
