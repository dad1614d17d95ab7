//go:build !sqlite_fts5

package index

import "testing"

func TestFallback_LikeWildcardsAreLiteral(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertDocument(DocumentRow{Path: "x.am.json", Checksum: "1"}, "axb", nil)
	_ = db.UpsertDocument(DocumentRow{Path: "y.am.json", Checksum: "2"}, "a_b", nil)

	results, err := db.Search("a_b", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Path != "y.am.json" {
		t.Fatalf("results = %+v, want only y.am.json", results)
	}
	if results[0].Snippet != "<b>a_b</b>" {
		t.Errorf("snippet = %q", results[0].Snippet)
	}
}

func TestFallback_NameHitsFirst(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertDocument(DocumentRow{Path: "a.am.json", Name: "Intro", Checksum: "1"}, "logo fade", nil)
	_ = db.UpsertDocument(DocumentRow{Path: "b.am.json", Name: "Logo reveal", Checksum: "2"}, "mask", nil)

	results, err := db.Search("logo", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 || results[0].Path != "b.am.json" {
		t.Errorf("results = %+v, want b.am.json first", results)
	}
}
