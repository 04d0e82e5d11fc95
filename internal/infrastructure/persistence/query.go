package persistence

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// immutableColumns are never rewritten by a versioned update
var immutableColumns = []string{"id", "tenant_id", "created_at", "created_by", "deleted_at"}

// mapNotFound translates gorm's missing-row error into the domain sentinel
func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.ErrNotFound
	}
	return err
}

// mapDuplicate translates a unique-constraint violation into ALREADY_EXISTS.
// It relies on gorm.Config.TranslateError.
func mapDuplicate(entity string, err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return shared.NewDomainError("ALREADY_EXISTS", fmt.Sprintf("A %s with the same unique key already exists", entity))
	}
	return err
}

// optimisticLockError is returned when SaveWithLock matches no row
func optimisticLockError(entity string) error {
	return shared.NewDomainError("OPTIMISTIC_LOCK_ERROR",
		fmt.Sprintf("The %s record has been modified by another transaction", entity))
}

// applySearch adds a case-insensitive LIKE across the given columns.
// LOWER/LIKE keeps the clause portable between postgres and sqlite.
func applySearch(query *gorm.DB, search string, columns ...string) *gorm.DB {
	search = strings.TrimSpace(search)
	if search == "" || len(columns) == 0 {
		return query
	}
	pattern := "%" + strings.ToLower(search) + "%"
	clauses := make([]string, len(columns))
	args := make([]any, len(columns))
	for i, col := range columns {
		clauses[i] = "LOWER(" + col + ") LIKE ?"
		args[i] = pattern
	}
	return query.Where("("+strings.Join(clauses, " OR ")+")", args...)
}

// applyPaging applies whitelisted ordering and skip/take from the filter
func applyPaging(query *gorm.DB, filter shared.Filter, allowed map[string]bool, defaultField string) *gorm.DB {
	field := ValidateSortField(filter.OrderBy, allowed, defaultField)
	query = query.Order(field + " " + ValidateSortOrder(filter.OrderDir))

	if limit := filter.Limit(); limit > 0 {
		query = query.Offset(filter.Offset()).Limit(limit)
	}
	return query
}

// filterString returns a non-empty string filter value
func filterString(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, v != ""
	case fmt.Stringer:
		s := v.String()
		return s, s != ""
	case nil:
		return "", false
	}
	// named string types such as crm.CustomerStatus
	if rv := reflect.ValueOf(value); rv.Kind() == reflect.String {
		return rv.String(), rv.Len() > 0
	}
	return "", false
}

// filterBool interprets a bool or "true"/"false" filter value
func filterBool(value any) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(v) {
		case "true", "1":
			return true, true
		case "false", "0":
			return false, true
		}
	}
	return false, false
}

// filterUUID accepts a uuid.UUID or its string form
func filterUUID(value any) (uuid.UUID, bool) {
	switch v := value.(type) {
	case uuid.UUID:
		return v, v != uuid.Nil
	case *uuid.UUID:
		if v == nil {
			return uuid.Nil, false
		}
		return *v, *v != uuid.Nil
	case string:
		id, err := uuid.Parse(v)
		if err != nil {
			return uuid.Nil, false
		}
		return id, true
	}
	return uuid.Nil, false
}

// filterTime accepts a time.Time or an RFC 3339 / YYYY-MM-DD string
func filterTime(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, !v.IsZero()
	case *time.Time:
		if v == nil {
			return time.Time{}, false
		}
		return *v, !v.IsZero()
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t, true
		}
		if t, err := time.Parse("2006-01-02", v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// whereString adds "column = ?" when the filter carries a non-empty value for key
func whereString(query *gorm.DB, filters map[string]any, key, column string) *gorm.DB {
	if v, ok := filterString(filters[key]); ok {
		return query.Where(column+" = ?", v)
	}
	return query
}

// whereUUID adds "column = ?" when the filter carries a valid id for key
func whereUUID(query *gorm.DB, filters map[string]any, key, column string) *gorm.DB {
	if id, ok := filterUUID(filters[key]); ok {
		return query.Where(column+" = ?", id)
	}
	return query
}

// whereBool adds "column = ?" when the filter carries a boolean for key
func whereBool(query *gorm.DB, filters map[string]any, key, column string) *gorm.DB {
	if b, ok := filterBool(filters[key]); ok {
		return query.Where(column+" = ?", b)
	}
	return query
}
