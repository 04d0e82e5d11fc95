package dto

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{"NOT_FOUND", http.StatusNotFound},
		{"ALREADY_EXISTS", http.StatusConflict},
		{"CONCURRENCY_CONFLICT", http.StatusConflict},
		{"OPTIMISTIC_LOCK_ERROR", http.StatusConflict},
		{"UNAUTHORIZED", http.StatusUnauthorized},
		{"FORBIDDEN", http.StatusForbidden},
		{"INVALID_STATE", http.StatusBadRequest},
		{"EMPTY_AUDIENCE", http.StatusBadRequest},
		{"INVALID_PROBABILITY", http.StatusBadRequest},
		{"SYSTEM_SETTING", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, DomainStatus(tt.code))
		})
	}
}

func TestDomainCode(t *testing.T) {
	assert.Equal(t, ErrCodeNotFound, DomainCode("NOT_FOUND"))
	assert.Equal(t, ErrCodeConcurrencyConflict, DomainCode("OPTIMISTIC_LOCK_ERROR"))
	assert.Equal(t, ErrCodeConcurrencyConflict, DomainCode("CONCURRENCY_CONFLICT"))
	assert.Equal(t, "ERR_EMPTY_AUDIENCE", DomainCode("EMPTY_AUDIENCE"))
	assert.Equal(t, ErrCodeValidation, DomainCode(ErrCodeValidation))
	assert.Equal(t, ErrCodeBadRequest, DomainCode(""))
}

func TestNewMeta(t *testing.T) {
	tests := []struct {
		name      string
		total     int64
		skip      int
		take      int
		wantPage  int
		wantPages int
	}{
		{name: "first page", total: 45, skip: 0, take: 20, wantPage: 1, wantPages: 3},
		{name: "third page", total: 45, skip: 40, take: 20, wantPage: 3, wantPages: 3},
		{name: "exact fit", total: 40, skip: 20, take: 20, wantPage: 2, wantPages: 2},
		{name: "empty", total: 0, skip: 0, take: 20, wantPage: 1, wantPages: 0},
		{name: "zero take", total: 5, skip: 0, take: 0, wantPage: 1, wantPages: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMeta(tt.total, tt.skip, tt.take)
			assert.Equal(t, tt.wantPage, m.Page)
			assert.Equal(t, tt.wantPages, m.TotalPages)
			assert.Equal(t, tt.take, m.PageSize)
			assert.Equal(t, tt.skip, m.Skip)
		})
	}
}

func TestEnvelopeJSON(t *testing.T) {
	body, err := json.Marshal(NewListResponse([]string{"a"}, 1, 0, 20))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"data":["a"],"meta":{"total":1,"skip":0,"take":20,"page":1,"page_size":20,"total_pages":1}}`, string(body))

	body, err = json.Marshal(NewValidationErrorResponse("Request validation failed", "req-1", []ValidationDetail{
		{Field: "name", Message: "This field is required"},
	}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"error":{"code":"ERR_VALIDATION","message":"Request validation failed","request_id":"req-1","details":[{"field":"name","message":"This field is required"}]}}`, string(body))

	body, err = json.Marshal(NewErrorResponse(ErrCodeInternal, "An unexpected error occurred", ""))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"error":{"code":"ERR_INTERNAL","message":"An unexpected error occurred"}}`, string(body))
}
