package tenant

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/opencrm/backend/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type guardedModel struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;index"`
	Name     string    `gorm:"size:100"`
}

func (guardedModel) TableName() string {
	return "guarded"
}

func setupMockDB(t *testing.T, guard bool) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	if guard {
		require.NoError(t, NewGuard("").Register(gormDB))
	}
	return gormDB, mock, mockDB
}

func tenantContext(tenantID string) context.Context {
	ctx := context.Background()
	ctx = logger.WithTenantID(ctx, tenantID)
	return ctx
}

func TestScope(t *testing.T) {
	db, mock, mockDB := setupMockDB(t, false)
	defer mockDB.Close()

	tenantID := uuid.New()
	mock.ExpectQuery(`SELECT \* FROM "guarded" WHERE tenant_id = \$1`).
		WithArgs(tenantID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "name"}))

	var rows []guardedModel
	require.NoError(t, db.Scopes(Scope(tenantID)).Find(&rows).Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGuard(t *testing.T) {
	t.Run("adds the context tenant when missing", func(t *testing.T) {
		db, mock, mockDB := setupMockDB(t, true)
		defer mockDB.Close()

		tenantID := uuid.New()
		mock.ExpectQuery(`SELECT \* FROM "guarded" WHERE "guarded"."tenant_id" = \$1`).
			WithArgs(tenantID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "name"}))

		var rows []guardedModel
		require.NoError(t, db.WithContext(tenantContext(tenantID.String())).Find(&rows).Error)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("keeps an explicit tenant condition", func(t *testing.T) {
		db, mock, mockDB := setupMockDB(t, true)
		defer mockDB.Close()

		tenantID := uuid.New()
		mock.ExpectQuery(`SELECT \* FROM "guarded" WHERE tenant_id = \$1$`).
			WithArgs(tenantID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "name"}))

		var rows []guardedModel
		err := db.WithContext(tenantContext(tenantID.String())).Scopes(Scope(tenantID)).Find(&rows).Error
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("leaves system queries alone", func(t *testing.T) {
		db, mock, mockDB := setupMockDB(t, true)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT \* FROM "guarded"$`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "name"}))

		var rows []guardedModel
		require.NoError(t, db.WithContext(context.Background()).Find(&rows).Error)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects malformed tenant ids", func(t *testing.T) {
		db, _, mockDB := setupMockDB(t, true)
		defer mockDB.Close()

		var rows []guardedModel
		err := db.WithContext(tenantContext("not-a-uuid")).Find(&rows).Error
		assert.ErrorIs(t, err, ErrInvalidTenantID)
	})
}

func TestNewGuard_DefaultColumn(t *testing.T) {
	assert.Equal(t, Column, NewGuard("").column)
	assert.Equal(t, "org_id", NewGuard("org_id").column)
}
