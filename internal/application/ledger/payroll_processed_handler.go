package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/payroll"
	"github.com/erp/ledger/internal/domain/shared"
	"go.uber.org/zap"
)

// PayrollProcessedHandler posts the payroll accrual for a processed run.
type PayrollProcessedHandler struct {
	generatorDeps
}

func NewPayrollProcessedHandler(deps GeneratorDeps) *PayrollProcessedHandler {
	return &PayrollProcessedHandler{generatorDeps: deps.build()}
}

func (h *PayrollProcessedHandler) EventTypes() []string {
	return []string{payroll.EventTypePayrollProcessed}
}

// Handle translates the run into one posted entry dated at the end of the
// payroll period.
func (h *PayrollProcessedHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	ev, ok := event.(*payroll.PayrollProcessedEvent)
	if !ok {
		h.logger.Error("unexpected event type",
			zap.String("expected", payroll.EventTypePayrollProcessed),
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			payroll.EventTypePayrollProcessed, event.EventType())
	}

	attempt := PostingAttempt{
		TenantID:      ev.TenantID(),
		EventID:       ev.EventID(),
		EventType:     ev.EventType(),
		ReferenceType: ReferenceTypePayroll,
		ReferenceID:   ev.PayrollID.String(),
	}
	h.logger.Info("processing payroll processed event",
		zap.String("tenant_id", attempt.TenantID.String()),
		zap.String("payroll_id", attempt.ReferenceID),
		zap.String("gross_salary", ev.GrossSalary.String()),
		zap.String("net_salary", ev.NetSalary.String()),
	)

	header := ledger.EntryHeader{
		EntryType:     ledger.EntryTypePayroll,
		ReferenceType: ReferenceTypePayroll,
		ReferenceID:   attempt.ReferenceID,
		EntryDate:     ev.PeriodEnd,
		Description: fmt.Sprintf("Payroll %s to %s",
			ev.PeriodStart.Format(time.DateOnly), ev.PeriodEnd.Format(time.DateOnly)),
		CreatedBy: SystemActor,
	}
	out, err := h.post(ctx, attempt, header, func() ([]leg, error) {
		if err := validatePayload(ev); err != nil {
			return nil, err
		}
		if err := requireNonNegative(ev.Amounts()); err != nil {
			return nil, err
		}
		return payrollLegs(ev), nil
	})
	if err != nil {
		return fmt.Errorf("failed to post payroll %s: %w", attempt.ReferenceID, err)
	}
	h.logOutcome(attempt, out)
	return nil
}

// payrollLegs lists the accrual legs in posting order, zero legs included.
// Employee tax and other deductions are credited to the same payable
// account as separate lines.
func payrollLegs(ev *payroll.PayrollProcessedEvent) []leg {
	return []leg{
		debitLeg(RoleSalaryExpense, ev.GrossSalary, "Gross salary"),
		debitLeg(RoleEmployerTaxExpense, ev.EmployerTaxAmount, "Employer tax"),
		debitLeg(RoleEmployerBenefitsExpense, ev.EmployerBenefitsAmount, "Employer benefits"),
		creditLeg(RoleEmployeeTaxPayable, ev.EmployeeTaxAmount, "Employee tax withheld"),
		creditLeg(RoleEmployeeTaxPayable, ev.OtherDeductionsAmount, "Other deductions"),
		creditLeg(RoleSalariesPayable, ev.NetSalary, "Net salary"),
		creditLeg(RoleEmployerTaxPayable, ev.EmployerTaxAmount, "Employer tax"),
		creditLeg(RoleEmployerBenefitsPayable, ev.EmployerBenefitsAmount, "Employer benefits"),
	}
}

var _ shared.EventHandler = (*PayrollProcessedHandler)(nil)
