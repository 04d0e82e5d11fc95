package dto

import (
	"net/http"
	"strings"
)

// Response error codes. Domain codes are exposed with the ERR_ prefix, so a
// NOT_FOUND domain error is reported as ERR_NOT_FOUND.
const (
	ErrCodeInternal            = "ERR_INTERNAL"
	ErrCodeValidation          = "ERR_VALIDATION"
	ErrCodeBadRequest          = "ERR_BAD_REQUEST"
	ErrCodeInvalidID           = "ERR_INVALID_ID"
	ErrCodeUnauthorized        = "ERR_UNAUTHORIZED"
	ErrCodeForbidden           = "ERR_FORBIDDEN"
	ErrCodeTokenExpired        = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid        = "ERR_TOKEN_INVALID"
	ErrCodeTokenRevoked        = "ERR_TOKEN_REVOKED"
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	ErrCodeInvalidState        = "ERR_INVALID_STATE"
	ErrCodeRateLimited         = "ERR_RATE_LIMITED"
	ErrCodePayloadTooLarge     = "ERR_PAYLOAD_TOO_LARGE"
)

// domainStatus lists the domain codes that do not map to 400
var domainStatus = map[string]int{
	"NOT_FOUND":             http.StatusNotFound,
	"ALREADY_EXISTS":        http.StatusConflict,
	"CONCURRENCY_CONFLICT":  http.StatusConflict,
	"OPTIMISTIC_LOCK_ERROR": http.StatusConflict,
	"UNAUTHORIZED":          http.StatusUnauthorized,
	"FORBIDDEN":             http.StatusForbidden,
}

// DomainStatus returns the HTTP status for a domain error code. Every code
// not listed is a rule or state violation and maps to 400.
func DomainStatus(code string) int {
	if status, ok := domainStatus[code]; ok {
		return status
	}
	return http.StatusBadRequest
}

// DomainCode converts a domain error code to its response code
func DomainCode(code string) string {
	switch code {
	case "":
		return ErrCodeBadRequest
	case "OPTIMISTIC_LOCK_ERROR":
		return ErrCodeConcurrencyConflict
	}
	if strings.HasPrefix(code, "ERR_") {
		return code
	}
	return "ERR_" + code
}
