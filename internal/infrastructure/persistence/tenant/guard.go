// Package tenant scopes GORM statements to a single tenant.
//
// Repositories apply Scope explicitly. The Guard is a second line of defence:
// when the request context carries a tenant and a statement has no tenant
// condition of its own, the guard adds one.
package tenant

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/infrastructure/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Column is the tenant discriminator present on every tenant-owned table
const Column = "tenant_id"

// ErrInvalidTenantID is returned when the context tenant is not a UUID
var ErrInvalidTenantID = errors.New("invalid tenant_id format")

// Scope restricts a query to one tenant
func Scope(tenantID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(Column+" = ?", tenantID)
	}
}

// Guard adds the context tenant to statements that lack a tenant condition
type Guard struct {
	column string
}

// NewGuard creates a guard for the given column, defaulting to tenant_id
func NewGuard(column string) *Guard {
	if column == "" {
		column = Column
	}
	return &Guard{column: column}
}

// Register installs the guard on query, row, update and delete callbacks
func (g *Guard) Register(db *gorm.DB) error {
	cb := db.Callback()
	if err := cb.Query().Before("gorm:query").Register("tenant:guard_query", g.apply); err != nil {
		return err
	}
	if err := cb.Row().Before("gorm:row").Register("tenant:guard_row", g.apply); err != nil {
		return err
	}
	if err := cb.Update().Before("gorm:update").Register("tenant:guard_update", g.apply); err != nil {
		return err
	}
	return cb.Delete().Before("gorm:delete").Register("tenant:guard_delete", g.apply)
}

func (g *Guard) apply(db *gorm.DB) {
	if db.Statement.Context == nil || db.Statement.Unscoped || db.Statement.Schema == nil {
		return
	}
	if _, ok := db.Statement.Schema.FieldsByDBName[g.column]; !ok {
		return
	}

	raw := logger.GetTenantID(db.Statement.Context)
	if raw == "" {
		// system jobs and public tracking links run without a tenant
		return
	}
	tenantID, err := uuid.Parse(raw)
	if err != nil {
		_ = db.AddError(ErrInvalidTenantID)
		return
	}
	if g.hasCondition(db) {
		return
	}

	db.Statement.AddClause(clause.Where{
		Exprs: []clause.Expression{
			clause.Eq{
				Column: clause.Column{Table: clause.CurrentTable, Name: g.column},
				Value:  tenantID,
			},
		},
	})
}

func (g *Guard) hasCondition(db *gorm.DB) bool {
	if sql := db.Statement.SQL.String(); sql != "" && strings.Contains(sql, g.column) {
		return true
	}
	c, ok := db.Statement.Clauses["WHERE"]
	if !ok {
		return false
	}
	where, ok := c.Expression.(clause.Where)
	if !ok {
		return false
	}
	for _, expr := range where.Exprs {
		if g.mentions(expr) {
			return true
		}
	}
	return false
}

func (g *Guard) mentions(expr clause.Expression) bool {
	switch e := expr.(type) {
	case clause.Expr:
		return strings.Contains(e.SQL, g.column)
	case clause.NamedExpr:
		return strings.Contains(e.SQL, g.column)
	case clause.Eq:
		if col, ok := e.Column.(clause.Column); ok {
			return col.Name == g.column
		}
		if col, ok := e.Column.(string); ok {
			return col == g.column
		}
	case clause.IN:
		if col, ok := e.Column.(clause.Column); ok {
			return col.Name == g.column
		}
	case clause.AndConditions:
		for _, cond := range e.Exprs {
			if g.mentions(cond) {
				return true
			}
		}
	case clause.OrConditions:
		for _, cond := range e.Exprs {
			if g.mentions(cond) {
				return true
			}
		}
	}
	return false
}
