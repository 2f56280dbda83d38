package dto

import (
	"net/http"

	"github.com/erp/directdebit/internal/domain/directdebit"
)

// API error codes. Direct debit codes are returned with their domain
// spelling (SDD_*), see directdebit.Code*.
const (
	ErrCodeUnknown             = "ERR_UNKNOWN"
	ErrCodeInternal            = "ERR_INTERNAL"
	ErrCodeValidation          = "ERR_VALIDATION"
	ErrCodeBadRequest          = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput        = "ERR_INVALID_INPUT"
	ErrCodeRequestTooLarge     = "ERR_REQUEST_TOO_LARGE"
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	ErrCodeInvalidState        = "ERR_INVALID_STATE"
	ErrCodeBusinessRule        = "ERR_BUSINESS_RULE"
)

var statusByCode = map[string]int{
	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidInput:    http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeInvalidState:        http.StatusUnprocessableEntity,
	ErrCodeBusinessRule:        http.StatusUnprocessableEntity,

	directdebit.CodeUnsupportedFlavor:   http.StatusBadRequest,
	directdebit.CodeInvalidIBAN:         http.StatusBadRequest,
	directdebit.CodeInvalidMandate:      http.StatusUnprocessableEntity,
	directdebit.CodeMandateAlreadyUsed:  http.StatusUnprocessableEntity,
	directdebit.CodeMandateMigration:    http.StatusUnprocessableEntity,
	directdebit.CodeMissingField:        http.StatusUnprocessableEntity,
	directdebit.CodeInvalidMandateInput: http.StatusUnprocessableEntity,
	directdebit.CodeAmountMismatch:      http.StatusConflict,
	directdebit.CodeDuplicateReference:  http.StatusConflict,
}

// GetHTTPStatus maps an API error code to its status, 500 when unknown
func GetHTTPStatus(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// short codes raised by shared.DomainError
var domainCodes = map[string]string{
	"NOT_FOUND":            ErrCodeNotFound,
	"NOT_ARCHIVED":         ErrCodeNotFound,
	"ALREADY_EXISTS":       ErrCodeAlreadyExists,
	"INVALID_INPUT":        ErrCodeInvalidInput,
	"INVALID_STATE":        ErrCodeInvalidState,
	"CONCURRENCY_CONFLICT": ErrCodeConcurrencyConflict,
	"VALIDATION_ERROR":     ErrCodeValidation,
	"BAD_REQUEST":          ErrCodeBadRequest,
	"INTERNAL_ERROR":       ErrCodeInternal,
}

// NormalizeErrorCode turns a shared domain code into its ERR_* form.
// Anything else is returned as is.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := domainCodes[code]; ok {
		return apiCode
	}
	return code
}
