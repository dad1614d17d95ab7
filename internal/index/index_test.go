package index

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/starford/keyline/internal/apperr"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "keyline-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM documents`).Scan(&count); err != nil {
		t.Fatalf("documents table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM targets`).Scan(&count); err != nil {
		t.Fatalf("targets table missing: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestUpsertAndGetDocument(t *testing.T) {
	db := testDB(t)
	row := DocumentRow{
		Path:       "walk.am.json",
		Name:       "Walk",
		Checksum:   "abc123",
		Length:     1200,
		TrackCount: 3,
		Triggers:   1,
		Eases:      []string{"soft"},
		UpdatedAt:  time.Now(),
	}
	if err := db.UpsertDocument(row, "walk legs", []string{"#leg", "#arm"}); err != nil {
		t.Fatalf("UpsertDocument: %v", err)
	}
	cs, err := db.GetChecksum("walk.am.json")
	if err != nil {
		t.Fatalf("GetChecksum: %v", err)
	}
	if cs != "abc123" {
		t.Errorf("checksum = %q, want %q", cs, "abc123")
	}

	got, err := db.GetDocument("walk.am.json")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if got.Name != "Walk" || got.Length != 1200 || got.TrackCount != 3 || got.Triggers != 1 {
		t.Errorf("row = %+v", got)
	}
	if len(got.Eases) != 1 || got.Eases[0] != "soft" {
		t.Errorf("eases = %v", got.Eases)
	}

	sels, err := db.Targets("walk.am.json")
	if err != nil {
		t.Fatalf("Targets: %v", err)
	}
	if len(sels) != 2 || sels[0] != "#arm" || sels[1] != "#leg" {
		t.Errorf("targets = %v, want [#arm #leg]", sels)
	}
}

func TestGetDocument_NotFound(t *testing.T) {
	db := testDB(t)
	_, err := db.GetDocument("missing.am.json")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestTargeting(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertDocument(DocumentRow{Path: "a.am.json", Checksum: "1"}, "body", []string{"#head"})
	_ = db.UpsertDocument(DocumentRow{Path: "c.am.json", Checksum: "2"}, "body", []string{"#head", "#tail"})

	paths, err := db.Targeting("#head")
	if err != nil {
		t.Fatalf("Targeting: %v", err)
	}
	if len(paths) != 2 || paths[0] != "a.am.json" || paths[1] != "c.am.json" {
		t.Fatalf("paths = %v", paths)
	}
}

func TestDeleteDocument(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertDocument(DocumentRow{Path: "del.am.json", Checksum: "x"}, "body", []string{"#target"})

	if err := db.DeleteDocument("del.am.json"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	cs, _ := db.GetChecksum("del.am.json")
	if cs != "" {
		t.Errorf("deleted document still has checksum %q", cs)
	}
	paths, _ := db.Targeting("#target")
	if len(paths) != 0 {
		t.Errorf("expected 0 targets after delete, got %d", len(paths))
	}
}

func TestUpsertUpdatesExisting(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertDocument(DocumentRow{Path: "up.am.json", Name: "Old", Checksum: "1"}, "old body", []string{"#x"})
	_ = db.UpsertDocument(DocumentRow{Path: "up.am.json", Name: "New", Checksum: "2"}, "new body", []string{"#y"})

	cs, _ := db.GetChecksum("up.am.json")
	if cs != "2" {
		t.Errorf("checksum = %q, want %q", cs, "2")
	}
	if paths, _ := db.Targeting("#x"); len(paths) != 0 {
		t.Error("old target should be removed on upsert")
	}
	if paths, _ := db.Targeting("#y"); len(paths) != 1 {
		t.Error("new target should exist")
	}
}

func TestGetChecksum_NotFound(t *testing.T) {
	db := testDB(t)
	cs, err := db.GetChecksum("nonexistent.am.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cs != "" {
		t.Errorf("expected empty checksum, got %q", cs)
	}
}

func TestListDocuments_SortAndPage(t *testing.T) {
	db := testDB(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_ = db.UpsertDocument(DocumentRow{Path: "b.am.json", Name: "beta", Length: 100, UpdatedAt: base}, "", nil)
	_ = db.UpsertDocument(DocumentRow{Path: "a.am.json", Name: "Alpha", Length: 300, UpdatedAt: base.Add(time.Hour)}, "", nil)
	_ = db.UpsertDocument(DocumentRow{Path: "c.am.json", Name: "gamma", Length: 200, UpdatedAt: base.Add(2 * time.Hour)}, "", nil)

	rows, total, err := db.ListDocuments(10, 0, "")
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if total != 3 || len(rows) != 3 || rows[0].Path != "c.am.json" {
		t.Fatalf("recency order wrong: total=%d rows=%+v", total, rows)
	}

	rows, _, _ = db.ListDocuments(10, 0, "name")
	if rows[0].Name != "Alpha" || rows[1].Name != "beta" {
		t.Errorf("name order wrong: %+v", rows)
	}

	rows, _, _ = db.ListDocuments(1, 1, "length")
	if len(rows) != 1 || rows[0].Path != "c.am.json" {
		t.Errorf("length page wrong: %+v", rows)
	}
}

func TestSearch_Basic(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertDocument(DocumentRow{Path: "s.am.json", Name: "Search Me", Checksum: "1"}, "uniqueword appears here", nil)

	results, err := db.Search("uniqueword", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Path != "s.am.json" {
		t.Errorf("search results = %+v, want 1 hit for s.am.json", results)
	}
}
