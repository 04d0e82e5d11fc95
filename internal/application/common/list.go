package common

import (
	"strings"

	"github.com/opencrm/backend/internal/domain/shared"
)

// ListQuery holds the paging, search and sort parameters shared by every list endpoint.
// Either skip/take or page/page_size may be given; skip/take wins when both are set.
type ListQuery struct {
	Skip     int    `form:"skip" json:"skip" binding:"omitempty,min=0"`
	Take     int    `form:"take" json:"take" binding:"omitempty,min=1,max=100"`
	Page     int    `form:"page" json:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" json:"page_size" binding:"omitempty,min=1,max=100"`
	Search   string `form:"search" json:"search" binding:"omitempty,max=100"`
	OrderBy  string `form:"order_by" json:"order_by" binding:"omitempty,max=50"`
	OrderDir string `form:"order_dir" json:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// Window returns the effective skip and take
func (q ListQuery) Window() (skip, take int) {
	return shared.NormalizePaging(q.Skip, q.Take, q.Page, q.PageSize)
}

// Filter builds a domain filter, falling back to defaultOrderBy descending
func (q ListQuery) Filter(defaultOrderBy string) shared.Filter {
	skip, take := q.Window()

	filter := shared.Filter{
		Skip:     skip,
		Take:     take,
		OrderBy:  q.OrderBy,
		OrderDir: strings.ToLower(q.OrderDir),
		Search:   strings.TrimSpace(q.Search),
		Filters:  make(map[string]any),
	}
	if filter.OrderBy == "" {
		filter.OrderBy = defaultOrderBy
	}
	if filter.OrderDir == "" {
		filter.OrderDir = "desc"
	}
	return filter
}

// PutString adds a non-empty string filter
func PutString(filter shared.Filter, key, value string) {
	if value = strings.TrimSpace(value); value != "" {
		filter.Filters[key] = value
	}
}

// PutBool adds a boolean filter when set
func PutBool(filter shared.Filter, key string, value *bool) {
	if value != nil {
		filter.Filters[key] = *value
	}
}
