package dto

import (
	"net/http"
	"testing"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeErrorCode(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"NOT_FOUND", ErrCodeNotFound},
		{ledger.CodeValidation, ErrCodeValidation},
		{ledger.CodeUnbalancedEntry, "ERR_UNBALANCED_ENTRY"},
		{ledger.CodePeriodClosed, "ERR_PERIOD_CLOSED"},
		{ErrCodeConflict, ErrCodeConflict},
		{"SOMETHING_ELSE", "SOMETHING_ELSE"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeErrorCode(tt.code))
		})
	}
}

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeValidation, http.StatusBadRequest},
		{"ERR_DUPLICATE_REFERENCE", http.StatusConflict},
		{"ERR_ENTRY_ALREADY_REVERSED", http.StatusConflict},
		{"ERR_PERIOD_CLOSED", http.StatusUnprocessableEntity},
		{ErrCodeUnavailable, http.StatusServiceUnavailable},
		{"ERR_WHATEVER", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, GetHTTPStatus(tt.code))
		})
	}
}

// Every domain code must land on a status other than the 500 fallback.
func TestDomainCodesHaveStatus(t *testing.T) {
	for domain, wire := range domainCodes {
		assert.NotEqual(t, http.StatusInternalServerError, GetHTTPStatus(wire), "code %s", domain)
	}
}

func TestResponses(t *testing.T) {
	ok := NewSuccessResponse(map[string]int{"count": 2})
	assert.True(t, ok.Success)
	assert.Nil(t, ok.Error)

	failed := NewErrorResponse(ErrCodeNotFound, "missing", "req-1")
	assert.False(t, failed.Success)
	assert.Equal(t, &ErrorInfo{Code: ErrCodeNotFound, Message: "missing", RequestID: "req-1"}, failed.Error)
}
