//go:build integration

package migration_test

import (
	"testing"

	"github.com/opencrm/backend/internal/infrastructure/migration"
	"github.com/opencrm/backend/internal/testutil/pgtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func tableExists(t *testing.T, db *pgtest.DB, table string) bool {
	t.Helper()
	var exists bool
	require.NoError(t, db.SQL.QueryRow(
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)`, table,
	).Scan(&exists))
	return exists
}

func TestMigrator_Lifecycle(t *testing.T) {
	db := pgtest.New(t, pgtest.Options{SkipMigrations: true})
	path := pgtest.MigrationsPath(t)

	files, err := migration.ListMigrations(path)
	require.NoError(t, err)
	require.NoError(t, migration.Validate(files))
	require.NotEmpty(t, files)
	latest := uint(files[len(files)-1].Version)

	m, err := migration.New(db.SQL, path, zaptest.NewLogger(t))
	require.NoError(t, err)

	version, dirty, err := m.Version()
	require.NoError(t, err)
	assert.Zero(t, version)
	assert.False(t, dirty)

	require.NoError(t, m.Up())
	version, _, err = m.Version()
	require.NoError(t, err)
	assert.Equal(t, latest, version)
	for _, table := range []string{"customers", "quotes", "campaign_recipients", "workflows", "system_settings"} {
		assert.True(t, tableExists(t, db, table), table)
	}

	// Up again is a no-op
	require.NoError(t, m.Up())

	require.NoError(t, m.Down(1))
	assert.False(t, tableExists(t, db, "system_settings"))
	assert.True(t, tableExists(t, db, "workflows"))

	first := uint(files[0].Version)
	require.NoError(t, m.GoTo(first))
	version, _, err = m.Version()
	require.NoError(t, err)
	assert.Equal(t, first, version)
	assert.True(t, tableExists(t, db, "customers"))
	assert.False(t, tableExists(t, db, "campaigns"))

	require.NoError(t, m.Force(int(latest)))
	version, dirty, err = m.Version()
	require.NoError(t, err)
	assert.Equal(t, latest, version)
	assert.False(t, dirty)
	require.NoError(t, m.Force(int(first)))

	require.NoError(t, m.Down(0))
	version, _, err = m.Version()
	require.NoError(t, err)
	assert.Zero(t, version)
	assert.False(t, tableExists(t, db, "customers"))

	assert.Error(t, m.Down(-1))
}

func TestMigrator_RefusesDirtyDatabase(t *testing.T) {
	db := pgtest.New(t, pgtest.Options{SkipMigrations: true})
	path := pgtest.MigrationsPath(t)

	m, err := migration.New(db.SQL, path, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, m.Up())

	_, err = db.SQL.Exec(`UPDATE schema_migrations SET dirty = true`)
	require.NoError(t, err)

	assert.ErrorIs(t, m.Up(), migration.ErrDirty)
	assert.ErrorIs(t, m.Down(1), migration.ErrDirty)
}
