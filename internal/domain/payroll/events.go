// Package payroll holds the contract of events published by the payroll
// context. The ledger consumes them; it never reads payroll tables.
package payroll

import (
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventTypePayrollProcessed = "PayrollProcessed"
	AggregateTypePayrollRun   = "PayrollRun"
)

// PayrollProcessedEvent is an immutable snapshot of a processed payroll run.
// NetSalary equals GrossSalary minus EmployeeTaxAmount and OtherDeductionsAmount.
type PayrollProcessedEvent struct {
	shared.BaseDomainEvent
	PayrollID              uuid.UUID       `json:"payroll_id" validate:"required"`
	PeriodStart            time.Time       `json:"period_start" validate:"required"`
	PeriodEnd              time.Time       `json:"period_end" validate:"required,gtefield=PeriodStart"`
	GrossSalary            decimal.Decimal `json:"gross_salary"`
	EmployeeTaxAmount      decimal.Decimal `json:"employee_tax_amount"`
	EmployerTaxAmount      decimal.Decimal `json:"employer_tax_amount"`
	EmployerBenefitsAmount decimal.Decimal `json:"employer_benefits_amount"`
	OtherDeductionsAmount  decimal.Decimal `json:"other_deductions_amount"`
	NetSalary              decimal.Decimal `json:"net_salary"`
}

// Amounts lists the monetary fields by name, for non-negativity checks.
func (e *PayrollProcessedEvent) Amounts() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"gross_salary":             e.GrossSalary,
		"employee_tax_amount":      e.EmployeeTaxAmount,
		"employer_tax_amount":      e.EmployerTaxAmount,
		"employer_benefits_amount": e.EmployerBenefitsAmount,
		"other_deductions_amount":  e.OtherDeductionsAmount,
		"net_salary":               e.NetSalary,
	}
}

// NewPayrollProcessedEvent builds the event for a payroll run with all
// amounts zero; callers fill in the figures.
func NewPayrollProcessedEvent(tenantID, payrollID uuid.UUID, periodStart, periodEnd time.Time) *PayrollProcessedEvent {
	return &PayrollProcessedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePayrollProcessed, AggregateTypePayrollRun, payrollID, tenantID),
		PayrollID:       payrollID,
		PeriodStart:     periodStart,
		PeriodEnd:       periodEnd,
	}
}
