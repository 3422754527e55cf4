package dto

import (
	"net/http"

	"github.com/erp/ledger/internal/domain/ledger"
)

// Error codes returned by the operations API. Domain codes are prefixed
// with ERR_ on the wire.
const (
	ErrCodeInternal            = "ERR_INTERNAL"
	ErrCodeBadRequest          = "ERR_BAD_REQUEST"
	ErrCodeValidation          = "ERR_VALIDATION"
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	ErrCodeInvalidState        = "ERR_INVALID_STATE"
	ErrCodeTenantRequired      = "ERR_TENANT_REQUIRED"
	ErrCodeUnavailable         = "ERR_UNAVAILABLE"
)

// domainCodes maps domain error codes to wire codes.
var domainCodes = map[string]string{
	"NOT_FOUND":                      ErrCodeNotFound,
	"ALREADY_EXISTS":                 ErrCodeConflict,
	"INVALID_STATE":                  ErrCodeInvalidState,
	"CONCURRENCY_CONFLICT":           ErrCodeConcurrencyConflict,
	ledger.CodeValidation:            ErrCodeValidation,
	ledger.CodeUnbalancedEntry:       "ERR_UNBALANCED_ENTRY",
	ledger.CodePeriodNotFound:        "ERR_PERIOD_NOT_FOUND",
	ledger.CodePeriodClosed:          "ERR_PERIOD_CLOSED",
	ledger.CodePeriodAlreadyClosed:   "ERR_PERIOD_ALREADY_CLOSED",
	ledger.CodePeriodOverlap:         "ERR_PERIOD_OVERLAP",
	ledger.CodeEntryAlreadyReversed:  "ERR_ENTRY_ALREADY_REVERSED",
	ledger.CodeEntryNotPosted:        "ERR_ENTRY_NOT_POSTED",
	ledger.CodeDuplicateReference:    "ERR_DUPLICATE_REFERENCE",
	ledger.CodeAccountNotFound:       "ERR_ACCOUNT_NOT_FOUND",
	ledger.CodeAccountCycle:          "ERR_ACCOUNT_CYCLE",
	ledger.CodeSystemAccountReadOnly: "ERR_SYSTEM_ACCOUNT_PROTECTED",
	ledger.CodeAccountInUse:          "ERR_ACCOUNT_IN_USE",
}

var codeStatus = map[string]int{
	ErrCodeInternal:                http.StatusInternalServerError,
	ErrCodeBadRequest:              http.StatusBadRequest,
	ErrCodeValidation:              http.StatusBadRequest,
	ErrCodeTenantRequired:          http.StatusBadRequest,
	ErrCodeNotFound:                http.StatusNotFound,
	"ERR_PERIOD_NOT_FOUND":         http.StatusNotFound,
	"ERR_ACCOUNT_NOT_FOUND":        http.StatusNotFound,
	ErrCodeConflict:                http.StatusConflict,
	ErrCodeConcurrencyConflict:     http.StatusConflict,
	"ERR_DUPLICATE_REFERENCE":      http.StatusConflict,
	"ERR_PERIOD_OVERLAP":           http.StatusConflict,
	"ERR_ENTRY_ALREADY_REVERSED":   http.StatusConflict,
	"ERR_PERIOD_ALREADY_CLOSED":    http.StatusConflict,
	ErrCodeInvalidState:            http.StatusUnprocessableEntity,
	"ERR_UNBALANCED_ENTRY":         http.StatusUnprocessableEntity,
	"ERR_PERIOD_CLOSED":            http.StatusUnprocessableEntity,
	"ERR_ENTRY_NOT_POSTED":         http.StatusUnprocessableEntity,
	"ERR_ACCOUNT_CYCLE":            http.StatusUnprocessableEntity,
	"ERR_SYSTEM_ACCOUNT_PROTECTED": http.StatusUnprocessableEntity,
	"ERR_ACCOUNT_IN_USE":           http.StatusUnprocessableEntity,
	ErrCodeUnavailable:             http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the status for a wire code, 500 when unknown.
func GetHTTPStatus(code string) int {
	if status, ok := codeStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// NormalizeErrorCode converts a domain code to its wire form. Codes that
// are already in wire form, or unknown, are returned as-is.
func NormalizeErrorCode(code string) string {
	if wire, ok := domainCodes[code]; ok {
		return wire
	}
	return code
}
