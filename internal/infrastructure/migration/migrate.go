package migration

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

// ErrDirty is returned when the last migration failed half way. The schema
// has to be fixed by hand and the version forced before migrating again.
var ErrDirty = errors.New("database is dirty, fix the schema and force a version")

// Migrator applies the SQL migrations in a directory to PostgreSQL
type Migrator struct {
	migrate *migrate.Migrate
	logger  *zap.Logger
}

// New creates a Migrator over an open PostgreSQL connection
func New(db *sql.DB, migrationsPath string, logger *zap.Logger) (*Migrator, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return newMigrator(m, logger), nil
}

func newMigrator(m *migrate.Migrate, logger *zap.Logger) *Migrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Migrator{migrate: m, logger: logger.Named("migration")}
}

// Up applies every pending migration
func (m *Migrator) Up() error {
	if err := m.checkClean(); err != nil {
		return err
	}
	m.logger.Info("Running migrations up")
	return m.report("up", m.migrate.Up())
}

// Down rolls back the last steps migrations, or all of them when steps is 0
func (m *Migrator) Down(steps int) error {
	if steps < 0 {
		return fmt.Errorf("down steps must not be negative, got %d", steps)
	}
	if err := m.checkClean(); err != nil {
		return err
	}
	if steps == 0 {
		m.logger.Info("Rolling back all migrations")
		return m.report("down", m.migrate.Down())
	}
	m.logger.Info("Rolling back migrations", zap.Int("steps", steps))
	return m.report("down", m.migrate.Steps(-steps))
}

// GoTo migrates up or down to version
func (m *Migrator) GoTo(version uint) error {
	if err := m.checkClean(); err != nil {
		return err
	}
	m.logger.Info("Migrating to version", zap.Uint("target_version", version))
	return m.report("goto", m.migrate.Migrate(version))
}

// Version returns the applied version, 0 when nothing has been applied
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, dirty, nil
}

// Force records version as applied and clears the dirty flag without
// running any SQL. -1 resets to no version.
func (m *Migrator) Force(version int) error {
	m.logger.Warn("Forcing migration version", zap.Int("version", version))
	if err := m.migrate.Force(version); err != nil {
		return fmt.Errorf("failed to force version %d: %w", version, err)
	}
	return nil
}

// Close releases the source and the database driver
func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()
	return errors.Join(sourceErr, dbErr)
}

func (m *Migrator) checkClean() error {
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	if dirty {
		return fmt.Errorf("version %d: %w", version, ErrDirty)
	}
	return nil
}

// report turns ErrNoChange into success and logs where the schema ended up
func (m *Migrator) report(op string, err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		m.logger.Info("No migrations to apply", zap.String("op", op))
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration %s failed: %w", op, err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	m.logger.Info("Migrations completed",
		zap.String("op", op),
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
	)
	return nil
}
