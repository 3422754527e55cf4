// Package testutil holds helpers shared by the ledger's cross-package tests:
// deterministic ids, polling assertions and upstream event fixtures.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/erp/ledger/internal/domain/inventory"
	"github.com/erp/ledger/internal/domain/payroll"
)

// NewTestUUID generates a deterministic UUID from seed.
func NewTestUUID(seed string) uuid.UUID {
	namespace := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	return uuid.NewSHA1(namespace, []byte(seed))
}

// TestTenantID returns a standard tenant ID for tests.
func TestTenantID() uuid.UUID {
	return NewTestUUID("test-tenant")
}

// ContextWithTimeout creates a context with a timeout for tests.
func ContextWithTimeout(t *testing.T, timeout time.Duration) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithTimeout(t.Context(), timeout)
}

// RequireEventually polls condition until it holds or fails the test.
func RequireEventually(t *testing.T, condition func() bool, timeout, interval time.Duration, msgAndArgs ...any) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(interval)
	}

	require.Fail(t, "Condition not met within timeout", msgAndArgs...)
}

// Date returns midnight UTC of the given day.
func Date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Amount parses a decimal literal and panics on malformed input.
func Amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// PayrollRun builds a processed payroll for January 2024: gross 100000.00,
// employee tax 15000.00, employer tax 7650.00, benefits 5000.00, other
// deductions 2000.00 and net 83000.00. Its entry totals 112650.00.
func PayrollRun(tenantID uuid.UUID) *payroll.PayrollProcessedEvent {
	ev := payroll.NewPayrollProcessedEvent(tenantID, uuid.New(), Date(2024, 1, 1), Date(2024, 1, 31))
	ev.GrossSalary = Amount("100000.00")
	ev.EmployeeTaxAmount = Amount("15000.00")
	ev.EmployerTaxAmount = Amount("7650.00")
	ev.EmployerBenefitsAmount = Amount("5000.00")
	ev.OtherDeductionsAmount = Amount("2000.00")
	ev.NetSalary = Amount("83000.00")
	return ev
}

// StockMovement builds a movement of quantity units at unitCost. Issues
// carry a negative quantity.
func StockMovement(tenantID uuid.UUID, movementType inventory.MovementType, quantity, unitCost string) *inventory.StockMovementRecordedEvent {
	ev := inventory.NewStockMovementRecordedEvent(tenantID, uuid.New(), uuid.New(), movementType, Amount(quantity), Amount(unitCost))
	ev.ReferenceNumber = "SM-" + ev.MovementID.String()[:8]
	return ev
}
