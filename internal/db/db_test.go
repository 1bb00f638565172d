package db

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
)

const testKeyHex = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func TestOpen_CreatesEncryptedDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "notes.db")

	database, err := Open(path, testKeyHex)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer database.Close()

	if err := database.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	// The schema is applied on open.
	for _, table := range []string{"accounts", "notes", "favorites"} {
		var name string
		err := database.SQL().QueryRow(
			`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Fatalf("table %q missing after Open: %v", table, err)
		}
	}
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.db")

	database, err := Open(path, testKeyHex)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	_, err = database.SQL().Exec(
		`INSERT INTO notes (id, owner_id, title, content, is_favorite, created_at, updated_at)
		 VALUES ('n1', 'o1', 'persisted', '', 0, 0, 0)`)
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := database.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := Open(path, testKeyHex)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	var title string
	if err := reopened.SQL().QueryRow(`SELECT title FROM notes WHERE id = 'n1'`).Scan(&title); err != nil {
		t.Fatalf("read after reopen failed: %v", err)
	}
	if title != "persisted" {
		t.Fatalf("title mismatch after reopen: %q", title)
	}
}

func TestOpen_WrongKeyFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.db")

	database, err := Open(path, testKeyHex)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	database.Close()

	wrongKey := strings.Repeat("f", 64)
	if _, err := Open(path, wrongKey); err == nil {
		t.Fatal("opening with a wrong key should fail")
	}
}

func TestOpen_RejectsBadKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.db")

	for _, key := range []string{"", "abc", strings.Repeat("a", 63), strings.Repeat("z", 64)} {
		if _, err := Open(path, key); err == nil {
			t.Fatalf("key %q should be rejected", key)
		}
	}
}

func TestIsUniqueConstraint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.db")

	database, err := Open(path, testKeyHex)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer database.Close()

	insert := `INSERT INTO favorites (owner_id, note_id, created_at) VALUES ('o1', 'n1', 0)`
	if _, err := database.SQL().Exec(insert); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	_, err = database.SQL().Exec(insert)
	if err == nil {
		t.Fatal("duplicate insert should violate the primary key")
	}
	if !IsUniqueConstraint(err) {
		t.Fatalf("expected unique constraint classification, got: %v", err)
	}
	if IsBusy(err) {
		t.Fatalf("constraint violation misclassified as busy: %v", err)
	}
}

func TestIsUniqueConstraint_IgnoresOtherErrors(t *testing.T) {
	if IsUniqueConstraint(nil) {
		t.Fatal("nil is not a unique constraint violation")
	}
	if IsUniqueConstraint(context.Canceled) {
		t.Fatal("unrelated errors are not unique constraint violations")
	}
	if IsBusy(nil) || IsBusy(context.Canceled) {
		t.Fatal("unrelated errors are not busy conditions")
	}
}
