package shared

import (
	"database/sql"
	"embed"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

//go:embed sql/*.sql
var migrationFiles embed.FS

// Migration represents a database migration with up and down SQL.
type Migration struct {
	Version int
	Up      string
	Down    string
}

// loadMigrations reads all migration files from the embedded filesystem and returns them sorted by version.
//
// Filenames follow the pattern NNNN_description_up.sql / NNNN_description_down.sql.
func loadMigrations() ([]Migration, error) {
	entries, err := migrationFiles.ReadDir("sql")
	if err != nil {
		return nil, fmt.Errorf("failed to read migration directory: %w", err)
	}

	byVersion := make(map[int]*Migration)

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}

		parts := strings.SplitN(name, "_", 2)
		if len(parts) < 2 {
			continue
		}

		version, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}

		content, err := migrationFiles.ReadFile(filepath.Join("sql", name))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", name, err)
		}

		if byVersion[version] == nil {
			byVersion[version] = &Migration{Version: version}
		}

		switch {
		case strings.HasSuffix(name, "_up.sql"):
			byVersion[version].Up = string(content)
		case strings.HasSuffix(name, "_down.sql"):
			byVersion[version].Down = string(content)
		}
	}

	var migrations []Migration
	for _, m := range byVersion {
		if m.Up == "" || m.Down == "" {
			return nil, fmt.Errorf("incomplete migration for version %d", m.Version)
		}
		migrations = append(migrations, *m)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// RunMigrations executes all pending migrations on the database.
// Creates a schema_migrations table to track applied migrations.
func RunMigrations(db *sql.DB) error {
	migrations, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	if err := createMigrationsTable(db); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	for _, migration := range migrations {
		var applied bool
		err := db.QueryRow("SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = ?)", migration.Version).Scan(&applied)
		if err != nil {
			return fmt.Errorf("failed to check migration status: %w", err)
		}

		if !applied {
			if err := execMigration(db, migration.Version, migration.Up, false); err != nil {
				return fmt.Errorf("failed to apply migration %d: %w", migration.Version, err)
			}
		}
	}

	return nil
}

// RollbackMigration rolls back the most recently applied migration.
func RollbackMigration(db *sql.DB) error {
	migrations, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	var current int
	err = db.QueryRow("SELECT COALESCE(MAX(version), -1) FROM schema_migrations").Scan(&current)
	if err != nil {
		return fmt.Errorf("failed to check migrations: %w", err)
	}
	if current < 0 {
		return fmt.Errorf("no migrations to rollback")
	}

	for _, migration := range migrations {
		if migration.Version == current {
			if err := execMigration(db, migration.Version, migration.Down, true); err != nil {
				return fmt.Errorf("failed to rollback migration %d: %w", migration.Version, err)
			}
			return nil
		}
	}

	return fmt.Errorf("migration version %d not found", current)
}

func createMigrationsTable(db *sql.DB) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	_, err := db.Exec(query)
	return err
}

// execMigration runs the statements of one migration direction inside a transaction
// and records (or un-records) the version.
func execMigration(db *sql.DB, version int, script string, rollback bool) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range strings.Split(script, ";") {
		stmt = strings.TrimSpace(stripSQLComments(stmt))
		if stmt == "" {
			continue
		}
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute statement: %w\nStatement: %s", err, stmt)
		}
	}

	if rollback {
		_, err = tx.Exec("DELETE FROM schema_migrations WHERE version = ?", version)
	} else {
		_, err = tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version)
	}
	if err != nil {
		return err
	}

	return tx.Commit()
}

// stripSQLComments removes single-line comments from a SQL fragment.
func stripSQLComments(sql string) string {
	lines := strings.Split(sql, "\n")
	var kept []string
	for _, line := range lines {
		if idx := strings.Index(line, "--"); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
