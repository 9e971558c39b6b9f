package storage

import (
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewMemory()
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewMemory(t *testing.T) {
	s := newTestStore(t)

	// Should have run migration v1
	var version int
	s.db.QueryRow("PRAGMA user_version").Scan(&version)
	if version != 1 {
		t.Fatalf("expected user_version 1, got %d", version)
	}
}

func TestNewWithPath(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/sub/lockstep.db"
	s, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	// Reopen — should succeed and not re-migrate
	s2, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	s2.Close()
}

func TestMigrationIdempotent(t *testing.T) {
	s := newTestStore(t)
	if err := s.migrate(); err != nil {
		t.Fatalf("second migration failed: %v", err)
	}
}

func TestLoadEmpty(t *testing.T) {
	s := newTestStore(t)
	doc, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if doc != nil {
		t.Fatalf("expected nil document, got %q", doc)
	}
}

func TestSaveAndLoad(t *testing.T) {
	s := newTestStore(t)
	if err := s.Save([]byte(`{"settings":{}}`)); err != nil {
		t.Fatal(err)
	}
	doc, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if string(doc) != `{"settings":{}}` {
		t.Fatalf("round trip mismatch: %q", doc)
	}
}

func TestSaveOverwrites(t *testing.T) {
	s := newTestStore(t)
	s.Save([]byte(`first`))
	s.Save([]byte(`second`))

	doc, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if string(doc) != "second" {
		t.Fatalf("expected latest document, got %q", doc)
	}

	// Still a single row.
	var count int
	s.db.QueryRow(`SELECT COUNT(*) FROM snapshot`).Scan(&count)
	if count != 1 {
		t.Fatalf("snapshot rows = %d", count)
	}
}

func TestSavedAt(t *testing.T) {
	s := newTestStore(t)

	ts, err := s.SavedAt()
	if err != nil {
		t.Fatal(err)
	}
	if !ts.IsZero() {
		t.Fatal("SavedAt before any save should be zero")
	}

	before := time.Now().UTC().Add(-time.Second)
	s.Save([]byte(`doc`))
	ts, err = s.SavedAt()
	if err != nil {
		t.Fatal(err)
	}
	if ts.Before(before) {
		t.Fatalf("saved_at = %v", ts)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/lockstep.db"

	s, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	s.Save([]byte(`{"v":1}`))
	s.Close()

	s2, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	doc, err := s2.Load()
	if err != nil {
		t.Fatal(err)
	}
	if string(doc) != `{"v":1}` {
		t.Fatalf("document lost across reopen: %q", doc)
	}
}

func TestDefaultDBPath(t *testing.T) {
	path, err := DefaultDBPath()
	if err != nil {
		t.Fatal(err)
	}
	if path == "" {
		t.Fatal("empty path")
	}
}
