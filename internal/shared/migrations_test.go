package shared

import (
	"testing"
)

func TestMigrationRunner(t *testing.T) {
	t.Run("loadMigrations", func(t *testing.T) {
		migrations, err := loadMigrations()
		if err != nil {
			t.Fatalf("failed to load migrations: %v", err)
		}

		if len(migrations) == 0 {
			t.Fatal("expected at least one migration")
		}

		for i := 1; i < len(migrations); i++ {
			if migrations[i].Version <= migrations[i-1].Version {
				t.Errorf("migrations not sorted: version %d comes after %d", migrations[i].Version, migrations[i-1].Version)
			}
		}

		for _, m := range migrations {
			if m.Up == "" {
				t.Errorf("migration version %d missing up SQL", m.Version)
			}
			if m.Down == "" {
				t.Errorf("migration version %d missing down SQL", m.Version)
			}
		}
	})

	t.Run("RunMigrations And Rollback", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}

		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
			t.Fatalf("failed to query schema_migrations: %v", err)
		}
		if count == 0 {
			t.Error("expected at least one migration to be applied")
		}

		if _, err := db.Exec("SELECT 1 FROM files LIMIT 1"); err != nil {
			t.Errorf("files table should exist after migrations: %v", err)
		}

		if err := RollbackMigration(db); err != nil {
			t.Fatalf("failed to rollback migration: %v", err)
		}

		if _, err := db.Exec("SELECT 1 FROM files LIMIT 1"); err == nil {
			t.Error("files table should not exist after rollback")
		}
	})

	t.Run("RunMigrations Is Idempotent", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if err := RunMigrations(db); err != nil {
			t.Fatalf("first run failed: %v", err)
		}
		if err := RunMigrations(db); err != nil {
			t.Fatalf("second run failed: %v", err)
		}
	})

	t.Run("Rollback Without Migrations", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if err := createMigrationsTable(db); err != nil {
			t.Fatalf("failed to create migrations table: %v", err)
		}

		if err := RollbackMigration(db); err == nil {
			t.Error("expected error rolling back with no applied migrations")
		}
	})
}
