package persistence

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/domain/crm"
	"github.com/opencrm/backend/internal/domain/shared"
	"github.com/opencrm/backend/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestFilterString(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
		ok    bool
	}{
		{"plain string", "active", "active", true},
		{"empty string", "", "", false},
		{"named string type", crm.CustomerStatusLead, "lead", true},
		{"stringer", uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"), "6ba7b810-9dad-11d1-80b4-00c04fd430c8", true},
		{"nil", nil, "", false},
		{"number", 42, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := filterString(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilterBool(t *testing.T) {
	tests := []struct {
		input any
		want  bool
		ok    bool
	}{
		{true, true, true},
		{false, false, true},
		{"true", true, true},
		{"TRUE", true, true},
		{"1", true, true},
		{"false", false, true},
		{"0", false, true},
		{"yes", false, false},
		{nil, false, false},
	}
	for _, tt := range tests {
		got, ok := filterBool(tt.input)
		assert.Equal(t, tt.ok, ok, "input %v", tt.input)
		assert.Equal(t, tt.want, got, "input %v", tt.input)
	}
}

func TestFilterUUID(t *testing.T) {
	id := uuid.New()

	got, ok := filterUUID(id)
	assert.True(t, ok)
	assert.Equal(t, id, got)

	got, ok = filterUUID(&id)
	assert.True(t, ok)
	assert.Equal(t, id, got)

	got, ok = filterUUID(id.String())
	assert.True(t, ok)
	assert.Equal(t, id, got)

	_, ok = filterUUID("not-a-uuid")
	assert.False(t, ok)
	_, ok = filterUUID(uuid.Nil)
	assert.False(t, ok)
	_, ok = filterUUID((*uuid.UUID)(nil))
	assert.False(t, ok)
}

func TestFilterTime(t *testing.T) {
	at := time.Date(2026, 4, 1, 12, 30, 0, 0, time.UTC)

	got, ok := filterTime(at)
	assert.True(t, ok)
	assert.True(t, at.Equal(got))

	got, ok = filterTime("2026-04-01T12:30:00Z")
	assert.True(t, ok)
	assert.True(t, at.Equal(got))

	got, ok = filterTime("2026-04-01")
	assert.True(t, ok)
	assert.Equal(t, 1, got.Day())

	_, ok = filterTime("yesterday")
	assert.False(t, ok)
	_, ok = filterTime(time.Time{})
	assert.False(t, ok)
}

func TestMapNotFound(t *testing.T) {
	assert.ErrorIs(t, mapNotFound(gorm.ErrRecordNotFound), shared.ErrNotFound)

	other := errors.New("boom")
	assert.Equal(t, other, mapNotFound(other))
}

func TestMapDuplicate(t *testing.T) {
	err := mapDuplicate("customer", fmt.Errorf("save: %w", gorm.ErrDuplicatedKey))
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "ALREADY_EXISTS", domainErr.Code)
	assert.Contains(t, domainErr.Message, "customer")

	other := errors.New("boom")
	assert.Equal(t, other, mapDuplicate("customer", other))
	assert.NoError(t, mapDuplicate("customer", nil))
}

func TestApplySearchAndPaging_SQL(t *testing.T) {
	db := newSQLiteDB(t)

	t.Run("search ORs the columns inside one group", func(t *testing.T) {
		sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
			q := applySearch(tx.Model(&models.CustomerModel{}).Where("tenant_id = ?", uuid.Nil), "  Acme ", "name", "email")
			var out []models.CustomerModel
			return q.Find(&out)
		})
		assert.Contains(t, sql, "(LOWER(name) LIKE \"%acme%\" OR LOWER(email) LIKE \"%acme%\")")
	})

	t.Run("blank search adds nothing", func(t *testing.T) {
		sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
			var out []models.CustomerModel
			return applySearch(tx.Model(&models.CustomerModel{}), "   ", "name").Find(&out)
		})
		assert.NotContains(t, sql, "LIKE")
	})

	t.Run("paging whitelists the sort column", func(t *testing.T) {
		sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
			filter := shared.Filter{OrderBy: "name; DROP TABLE customers", OrderDir: "sideways", Skip: 20, Take: 10}
			var out []models.CustomerModel
			return applyPaging(tx.Model(&models.CustomerModel{}), filter, CustomerSortFields, "created_at").Find(&out)
		})
		assert.Contains(t, sql, "ORDER BY created_at DESC")
		assert.Contains(t, sql, "LIMIT 10 OFFSET 20")
		assert.NotContains(t, sql, "DROP")
	})

	t.Run("key filters skip empty values", func(t *testing.T) {
		filters := map[string]any{"status": "", "owner_id": "bad", "is_primary": "true"}
		sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
			q := tx.Model(&models.ContactModel{})
			q = whereString(q, filters, "status", "status")
			q = whereUUID(q, filters, "owner_id", "owner_id")
			q = whereBool(q, filters, "is_primary", "is_primary")
			var out []models.ContactModel
			return q.Find(&out)
		})
		assert.NotContains(t, sql, "status =")
		assert.NotContains(t, sql, "owner_id")
		assert.Contains(t, sql, "is_primary = true")
	})
}
