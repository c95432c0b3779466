package ledger

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "ledger.db"), 0)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_RecordAndListNewestFirst(t *testing.T) {
	store := openTestStore(t)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	first := PushRecord{PushID: "p1", TreeName: "T1", WorkbookName: "W", Timestamp: base, Submitted: 3, Succeeded: 3}
	second := PushRecord{
		PushID: "p2", TreeName: "T1", WorkbookName: "W", Timestamp: base.Add(time.Minute),
		Submitted: 3, Succeeded: 2, Failed: 1, Duration: 1500 * time.Millisecond,
		Failures: []Failure{{Path: "Area A >> Bad", Reason: "formula rejected"}},
	}
	other := PushRecord{PushID: "p3", TreeName: "T2", WorkbookName: "W", Timestamp: base}

	if err := store.RecordPushes([]PushRecord{first, second}); err != nil {
		t.Fatalf("record pushes: %v", err)
	}
	if err := store.RecordPush(other); err != nil {
		t.Fatalf("record push: %v", err)
	}

	got, err := store.ListPushes("T1", "W", 0)
	if err != nil {
		t.Fatalf("list pushes: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 pushes, got %d", len(got))
	}
	if got[0].PushID != "p2" || got[1].PushID != "p1" {
		t.Fatalf("unexpected order: %s, %s", got[0].PushID, got[1].PushID)
	}
	if got[0].Duration != 1500*time.Millisecond || got[0].Failed != 1 {
		t.Fatalf("unexpected push: %+v", got[0])
	}
	if len(got[0].Failures) != 1 || got[0].Failures[0].Path != "Area A >> Bad" {
		t.Fatalf("failures = %+v", got[0].Failures)
	}

	limited, err := store.ListPushes("T1", "W", 1)
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(limited) != 1 || limited[0].PushID != "p2" {
		t.Fatalf("unexpected limited result: %+v", limited)
	}
}

func TestStore_RerecordReplacesFailures(t *testing.T) {
	store := openTestStore(t)
	rec := PushRecord{PushID: "p1", TreeName: "T1", WorkbookName: "W", Failures: []Failure{{Path: "a"}, {Path: "b"}}}
	if err := store.RecordPush(rec); err != nil {
		t.Fatalf("record: %v", err)
	}
	rec.Failures = rec.Failures[:1]
	if err := store.RecordPush(rec); err != nil {
		t.Fatalf("re-record: %v", err)
	}
	got, err := store.ListPushes("T1", "W", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || len(got[0].Failures) != 1 {
		t.Fatalf("unexpected pushes: %+v", got)
	}
}

func TestStore_RejectsEmptyPushID(t *testing.T) {
	store := openTestStore(t)
	if err := store.RecordPush(PushRecord{TreeName: "T1"}); err == nil {
		t.Fatal("expected error for empty push id")
	}
}

func TestEnsureSchemaIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	store, err := Open(path, time.Second)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = store.Close()

	db, err := sql.Open(driverName, path)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	defer db.Close()
	if err := EnsureSchema(db); err != nil {
		t.Fatalf("ensure schema twice: %v", err)
	}
	var version int
	if err := db.QueryRow(`SELECT MAX(version) FROM schema_migrations`).Scan(&version); err != nil {
		t.Fatalf("read version: %v", err)
	}
	if version != SchemaVersion {
		t.Fatalf("expected version %d, got %d", SchemaVersion, version)
	}
}

func TestOpenRejectsDirectory(t *testing.T) {
	if _, err := Open(t.TempDir(), 0); err == nil {
		t.Fatal("expected error when path is a directory")
	}
}
