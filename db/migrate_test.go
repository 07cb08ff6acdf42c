package db

import (
	"path/filepath"
	"testing"
)

func TestMigrateUp_Idempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")

	for i := 0; i < 2; i++ {
		if err := MigrateUpFromPath(dbPath); err != nil {
			t.Fatalf("run %d: MigrateUpFromPath() error = %v", i, err)
		}
	}

	conn, err := NewSQLiteConnectionWithDefaults(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	version, dirty, err := MigrationVersion(conn)
	if err != nil {
		t.Fatalf("MigrationVersion() error = %v", err)
	}
	if version != 1 || dirty {
		t.Errorf("version = %d dirty = %v, want 1 false", version, dirty)
	}
}

func TestMigrateUp_CreatesTables(t *testing.T) {
	_, database := newTestRepository(t)

	for _, table := range []string{"batches", "batch_tasks"} {
		var name string
		err := database.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestMigrateDown_RemovesTables(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	if err := MigrateUpFromPath(dbPath); err != nil {
		t.Fatal(err)
	}

	conn, err := NewSQLiteConnectionWithDefaults(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := MigrateDown(conn, -1); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}

	conn, err = NewSQLiteConnectionWithDefaults(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	var n int
	if err := conn.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='batches'").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Error("batches table still present after MigrateDown")
	}
}

func TestMigrationVersion_Fresh(t *testing.T) {
	conn, err := NewSQLiteConnectionWithDefaults(filepath.Join(t.TempDir(), "fresh.db"))
	if err != nil {
		t.Fatal(err)
	}
	version, dirty, err := MigrationVersion(conn)
	if err != nil {
		t.Fatalf("MigrationVersion() error = %v", err)
	}
	if version != 0 || dirty {
		t.Errorf("version = %d dirty = %v, want 0 false", version, dirty)
	}
}

func TestNewMigrator_NilConnection(t *testing.T) {
	if _, err := newMigrator(nil); err == nil {
		t.Error("expected error for nil connection")
	}
}
