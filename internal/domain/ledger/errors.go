package ledger

import "github.com/erp/ledger/internal/domain/shared"

// Error codes of the posting engine. Callers match with errors.Is against
// the sentinels below; messages carry the specific ids and amounts.
const (
	CodeValidation            = "VALIDATION_ERROR"
	CodeUnbalancedEntry       = "UNBALANCED_ENTRY"
	CodePeriodNotFound        = "PERIOD_NOT_FOUND"
	CodePeriodClosed          = "PERIOD_CLOSED"
	CodePeriodAlreadyClosed   = "PERIOD_ALREADY_CLOSED"
	CodePeriodOverlap         = "PERIOD_OVERLAP"
	CodeEntryAlreadyReversed  = "ENTRY_ALREADY_REVERSED"
	CodeEntryNotPosted        = "ENTRY_NOT_POSTED"
	CodeDuplicateReference    = "DUPLICATE_REFERENCE"
	CodeAccountNotFound       = "ACCOUNT_NOT_FOUND"
	CodeAccountCycle          = "ACCOUNT_CYCLE"
	CodeSystemAccountReadOnly = "SYSTEM_ACCOUNT_PROTECTED"
	CodeAccountInUse          = "ACCOUNT_IN_USE"
)

var (
	ErrValidation            = shared.ErrInvalidInput
	ErrUnbalancedEntry       = shared.NewDomainError(CodeUnbalancedEntry, "Journal entry debits and credits do not balance")
	ErrPeriodNotFound        = shared.NewDomainError(CodePeriodNotFound, "No fiscal period covers the entry date")
	ErrPeriodClosed          = shared.NewDomainError(CodePeriodClosed, "Fiscal period is closed")
	ErrPeriodAlreadyClosed   = shared.NewDomainError(CodePeriodAlreadyClosed, "Fiscal period is already closed")
	ErrPeriodOverlap         = shared.NewDomainError(CodePeriodOverlap, "Fiscal period overlaps an existing period")
	ErrEntryAlreadyReversed  = shared.NewDomainError(CodeEntryAlreadyReversed, "Journal entry has already been reversed")
	ErrEntryNotPosted        = shared.NewDomainError(CodeEntryNotPosted, "Only posted journal entries can be reversed")
	ErrDuplicateReference    = shared.NewDomainError(CodeDuplicateReference, "A journal entry already exists for this reference")
	ErrAccountNotFound       = shared.NewDomainError(CodeAccountNotFound, "Account not found")
	ErrAccountCycle          = shared.NewDomainError(CodeAccountCycle, "Account cannot be its own ancestor")
	ErrSystemAccountReadOnly = shared.NewDomainError(CodeSystemAccountReadOnly, "System accounts cannot be deactivated or deleted")
	ErrAccountInUse          = shared.NewDomainError(CodeAccountInUse, "Account is referenced by journal lines or child accounts")
)

func validationf(format string, args ...any) *shared.DomainError {
	return ErrValidation.Newf(format, args...)
}
