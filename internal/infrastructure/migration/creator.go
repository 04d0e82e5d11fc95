package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"time"
)

// versionLayout keeps file versions sortable as plain numbers
const versionLayout = "20060102150405"

const migrationUpTemplate = `-- Migration: {{.Name}}
-- Description: {{.Description}}
{{- if .Table}}

CREATE TABLE IF NOT EXISTS {{.Table}} (
    id         UUID PRIMARY KEY,
    tenant_id  UUID NOT NULL,
    created_by UUID,
    version    INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL,
    deleted_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_{{.Table}}_tenant_id ON {{.Table}}(tenant_id);
CREATE INDEX IF NOT EXISTS idx_{{.Table}}_deleted_at ON {{.Table}}(deleted_at);
{{- end}}
`

const migrationDownTemplate = `-- Migration: {{.Name}} (Rollback)
{{- if .Table}}

DROP TABLE IF EXISTS {{.Table}};
{{- end}}
`

// MigrationFile is a generated up/down pair
type MigrationFile struct {
	Version     string
	Name        string
	Description string
	// Table is set for create_<table> migrations and scaffolds a
	// tenant-scoped table
	Table    string
	UpPath   string
	DownPath string
}

// Migration is one version found in the migrations directory
type Migration struct {
	Version uint64
	Name    string
	HasUp   bool
	HasDown bool
}

// CreateMigration writes a new up/down pair versioned with the current time.
// A name of the form "create <table>" scaffolds a tenant-scoped table.
func CreateMigration(migrationsDir, name, description string) (*MigrationFile, error) {
	return createMigrationAt(migrationsDir, name, description, time.Now().UTC())
}

func createMigrationAt(migrationsDir, name, description string, now time.Time) (*MigrationFile, error) {
	base := sanitizeName(name)
	if base == "" {
		return nil, fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(migrationsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create migrations directory: %w", err)
	}

	existing, err := ListMigrations(migrationsDir)
	if err != nil {
		return nil, err
	}
	version, _ := strconv.ParseUint(now.Format(versionLayout), 10, 64)
	// Keep versions strictly increasing when files were created ahead of the clock
	if n := len(existing); n > 0 && existing[n-1].Version >= version {
		version = existing[n-1].Version + 1
	}

	fileBase := fmt.Sprintf("%d_%s", version, base)
	mf := &MigrationFile{
		Version:     strconv.FormatUint(version, 10),
		Name:        name,
		Description: description,
		Table:       strings.TrimPrefix(base, "create_"),
		UpPath:      filepath.Join(migrationsDir, fileBase+".up.sql"),
		DownPath:    filepath.Join(migrationsDir, fileBase+".down.sql"),
	}
	if !strings.HasPrefix(base, "create_") {
		mf.Table = ""
	}
	if mf.Description == "" {
		mf.Description = name
	}

	if err := writeTemplate(mf.UpPath, migrationUpTemplate, mf); err != nil {
		return nil, fmt.Errorf("failed to create up migration: %w", err)
	}
	if err := writeTemplate(mf.DownPath, migrationDownTemplate, mf); err != nil {
		_ = os.Remove(mf.UpPath)
		return nil, fmt.Errorf("failed to create down migration: %w", err)
	}
	return mf, nil
}

func writeTemplate(path, text string, data *MigrationFile) error {
	tmpl, err := template.New("migration").Parse(text)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", path, err)
	}
	defer f.Close()

	return tmpl.Execute(f, data)
}

// sanitizeName lowercases name and collapses separators into single underscores
func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			if s := b.String(); s != "" && !strings.HasSuffix(s, "_") {
				b.WriteByte('_')
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// ListMigrations returns the versions in migrationsDir in ascending order.
// A missing directory has no migrations.
func ListMigrations(migrationsDir string) ([]Migration, error) {
	entries, err := os.ReadDir(migrationsDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	byVersion := make(map[uint64]*Migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		var up bool
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			up = true
			name = strings.TrimSuffix(name, ".up.sql")
		case strings.HasSuffix(name, ".down.sql"):
			name = strings.TrimSuffix(name, ".down.sql")
		default:
			continue
		}

		prefix, title, ok := strings.Cut(name, "_")
		if !ok {
			continue
		}
		version, err := strconv.ParseUint(prefix, 10, 64)
		if err != nil {
			continue
		}
		m, seen := byVersion[version]
		if !seen {
			m = &Migration{Version: version, Name: title}
			byVersion[version] = m
		}
		if up {
			m.HasUp = true
		} else {
			m.HasDown = true
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		migrations = append(migrations, *m)
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}

// Validate reports versions missing their up or down file
func Validate(migrations []Migration) error {
	var problems []string
	for _, m := range migrations {
		if !m.HasUp {
			problems = append(problems, fmt.Sprintf("%d_%s has no up file", m.Version, m.Name))
		}
		if !m.HasDown {
			problems = append(problems, fmt.Sprintf("%d_%s has no down file", m.Version, m.Name))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("incomplete migrations: %s", strings.Join(problems, "; "))
	}
	return nil
}
