package shared

import (
	"testing"
	"testing/fstest"
)

func TestMigrationRunner(t *testing.T) {
	t.Run("loadMigrations", func(t *testing.T) {
		migrations, err := loadMigrations(migrationFiles, "sql")
		if err != nil {
			t.Fatalf("failed to load migrations: %v", err)
		}

		if len(migrations) < 2 {
			t.Fatalf("expected settings and snapshots migrations, got %d", len(migrations))
		}

		for i := 1; i < len(migrations); i++ {
			if migrations[i].Version <= migrations[i-1].Version {
				t.Errorf("migrations not sorted: version %d comes after %d", migrations[i].Version, migrations[i-1].Version)
			}
		}

		if migrations[0].Name != "create_settings" {
			t.Errorf("expected first migration create_settings, got %q", migrations[0].Name)
		}
	})

	t.Run("incomplete pair", func(t *testing.T) {
		fsys := fstest.MapFS{
			"sql/0000_only_up_up.sql": &fstest.MapFile{Data: []byte("CREATE TABLE x (id INTEGER);")},
		}
		if _, err := loadMigrations(fsys, "sql"); err == nil {
			t.Error("expected error for migration without down script")
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

		for _, table := range []string{"settings", "snapshots", "snapshots_sequence"} {
			if _, err := db.Exec("SELECT 1 FROM " + table + " LIMIT 1"); err != nil {
				t.Errorf("%s table should exist after migrations: %v", table, err)
			}
		}

		applied, err := AppliedMigrations(db)
		if err != nil {
			t.Fatalf("failed to list applied migrations: %v", err)
		}

		if err := RollbackMigration(db); err != nil {
			t.Fatalf("failed to rollback migration: %v", err)
		}

		after, err := AppliedMigrations(db)
		if err != nil {
			t.Fatalf("failed to list applied migrations: %v", err)
		}
		if len(after) != len(applied)-1 {
			t.Errorf("expected %d applied migrations after rollback, got %d", len(applied)-1, len(after))
		}

		if _, err := db.Exec("SELECT 1 FROM snapshots LIMIT 1"); err == nil {
			t.Error("snapshots table should be dropped by rollback")
		}
	})

	t.Run("Idempotent Migrations", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations first time: %v", err)
		}
		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations second time: %v", err)
		}

		applied, err := AppliedMigrations(db)
		if err != nil {
			t.Fatalf("failed to list applied migrations: %v", err)
		}

		migrations, _ := loadMigrations(migrationFiles, "sql")
		if len(applied) != len(migrations) {
			t.Errorf("expected %d migrations to be applied, got %d", len(migrations), len(applied))
		}
	})
}

func TestRemoveComments(t *testing.T) {
	got := removeComments("-- header\nCREATE TABLE t (id INTEGER); -- trailing\n\n")
	if got != "CREATE TABLE t (id INTEGER);" {
		t.Errorf("unexpected result: %q", got)
	}
}
