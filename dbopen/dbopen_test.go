package dbopen

import (
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func TestOpenAppliesSchema(t *testing.T) {
	db := OpenMemory(t, WithSchema("CREATE TABLE things (id TEXT PRIMARY KEY)"))

	if _, err := db.Exec("INSERT INTO things (id) VALUES ('a')"); err != nil {
		t.Fatal(err)
	}
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM things").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("rows = %d", n)
	}
}

func TestOpenForeignKeysPragma(t *testing.T) {
	db := OpenMemory(t)
	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatal(err)
	}
	if fk != 1 {
		t.Fatalf("foreign_keys = %d, want 1", fk)
	}
}

func TestOpenWithMkdirAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "test.db")
	db, err := Open(path, WithMkdirAll())
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		t.Fatal(err)
	}
}

func TestOpenBadSchema(t *testing.T) {
	if _, err := Open(":memory:", WithSchema("NOT VALID SQL")); err == nil {
		t.Fatal("expected error for invalid schema")
	}
}
