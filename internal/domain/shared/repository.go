package shared

import "context"

// Pagination limits shared by every list endpoint
const (
	DefaultTake = 20
	MaxTake     = 100
)

// Filter represents query filter options.
// Skip/Take take precedence over Page/PageSize when Take is set.
type Filter struct {
	Page     int
	PageSize int
	Skip     int
	Take     int
	OrderBy  string
	OrderDir string
	Search   string
	Filters  map[string]any
}

// DefaultFilter returns a filter with default values
func DefaultFilter() Filter {
	return Filter{
		Take:     DefaultTake,
		OrderBy:  "created_at",
		OrderDir: "desc",
		Filters:  make(map[string]any),
	}
}

// Offset returns the number of rows to skip
func (f Filter) Offset() int {
	if f.Take > 0 {
		if f.Skip < 0 {
			return 0
		}
		return f.Skip
	}
	if f.Page > 0 && f.PageSize > 0 {
		return (f.Page - 1) * f.PageSize
	}
	return 0
}

// Limit returns the maximum number of rows to return, 0 meaning unlimited
func (f Filter) Limit() int {
	if f.Take > 0 {
		return f.Take
	}
	return f.PageSize
}

// With returns a copy of the filter with an extra key/value filter
func (f Filter) With(key string, value any) Filter {
	filters := make(map[string]any, len(f.Filters)+1)
	for k, v := range f.Filters {
		filters[k] = v
	}
	filters[key] = value
	f.Filters = filters
	return f
}

// NormalizePaging resolves skip/take against page/page_size and clamps take
func NormalizePaging(skip, take, page, pageSize int) (int, int) {
	if take <= 0 && pageSize > 0 {
		take = pageSize
		if page > 1 {
			skip = (page - 1) * pageSize
		}
	}
	if take <= 0 {
		take = DefaultTake
	}
	if take > MaxTake {
		take = MaxTake
	}
	if skip < 0 {
		skip = 0
	}
	return skip, take
}

// TransactionManager runs a function inside a database transaction.
// Repositories called with the context passed to fn join the transaction.
type TransactionManager interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Paginated represents a paginated result
type Paginated[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Skip  int   `json:"skip"`
	Take  int   `json:"take"`
}

// NewPaginated creates a new paginated result
func NewPaginated[T any](items []T, total int64, skip, take int) Paginated[T] {
	if items == nil {
		items = []T{}
	}
	return Paginated[T]{
		Items: items,
		Total: total,
		Skip:  skip,
		Take:  take,
	}
}
