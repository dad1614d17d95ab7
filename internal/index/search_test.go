package index

import (
	"strings"
	"testing"
)

func TestFTSQuery(t *testing.T) {
	got := ftsQuery(searchTerms(`  #head  say"hi" `))
	want := `"#head"* "say""hi"""*`
	if got != want {
		t.Errorf("ftsQuery = %q, want %q", got, want)
	}
	if terms := searchTerms("   "); terms != nil {
		t.Errorf("blank query terms = %q, want nil", terms)
	}
}

func TestExcerpt(t *testing.T) {
	tests := []struct {
		name, body, term string
		width            int
		want             string
	}{
		{"short", "logo sweeps in from the left edge", "SWEEPS", 64, "logo <b>sweeps</b> in from the left edge"},
		{"clipped", strings.Repeat("a", 20) + "X" + strings.Repeat("b", 20), "x", 11, "...aaaaa<b>X</b>bbbbb..."},
		{"no match", "abcdef", "zz", 3, "abc..."},
		{"no term", "abc", "", 10, "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := excerpt(tt.body, tt.term, tt.width); got != tt.want {
				t.Errorf("excerpt = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSearch_AllTermsMustMatch(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertDocument(DocumentRow{Path: "walk.am.json", Name: "Walk cycle", Checksum: "1"}, "arm swing", []string{"#arm"})
	_ = db.UpsertDocument(DocumentRow{Path: "run.am.json", Name: "Run", Checksum: "2"}, "leg", []string{"#arm"})

	results, err := db.Search("arm walk", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Path != "walk.am.json" {
		t.Errorf("results = %+v, want only walk.am.json", results)
	}

	results, err = db.Search("#arm", 10)
	if err != nil {
		t.Fatalf("Search selector: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("selector search = %+v, want 2 hits", results)
	}

	results, err = db.Search("  ", 10)
	if err != nil || results != nil {
		t.Errorf("blank search = %+v, %v", results, err)
	}
}
