package dto

// Response is the envelope every endpoint returns
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
	Meta    *Meta      `json:"meta,omitempty"`
}

// ErrorInfo describes a failed request. RequestID lets clients quote the
// request when reporting a 500.
type ErrorInfo struct {
	Code      string             `json:"code"`
	Message   string             `json:"message"`
	RequestID string             `json:"request_id,omitempty"`
	Details   []ValidationDetail `json:"details,omitempty"`
}

// ValidationDetail names one rejected field
type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Meta carries list paging. Skip/take and page/page_size describe the same
// window.
type Meta struct {
	Total      int64 `json:"total"`
	Skip       int   `json:"skip"`
	Take       int   `json:"take"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// NewMeta derives the page view from a skip/take window
func NewMeta(total int64, skip, take int) *Meta {
	m := &Meta{Total: total, Skip: skip, Take: take, Page: 1, PageSize: take}
	if take > 0 {
		m.Page = skip/take + 1
		m.TotalPages = int((total + int64(take) - 1) / int64(take))
	}
	return m
}

// NewSuccessResponse wraps data in a success envelope
func NewSuccessResponse(data any) Response {
	return Response{Success: true, Data: data}
}

// NewListResponse wraps a page of items with its meta
func NewListResponse(items any, total int64, skip, take int) Response {
	return Response{Success: true, Data: items, Meta: NewMeta(total, skip, take)}
}

// NewErrorResponse builds an error envelope
func NewErrorResponse(code, message, requestID string) Response {
	return Response{
		Error: &ErrorInfo{Code: code, Message: message, RequestID: requestID},
	}
}

// NewValidationErrorResponse builds an ERR_VALIDATION envelope with per-field
// details
func NewValidationErrorResponse(message, requestID string, details []ValidationDetail) Response {
	r := NewErrorResponse(ErrCodeValidation, message, requestID)
	r.Error.Details = details
	return r
}
