package parser

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/starford/keyline/internal/apperr"
)

func TestParse_Sample(t *testing.T) {
	data, err := os.ReadFile("../models/testdata/zomb1.am.json")
	if err != nil {
		t.Fatal(err)
	}
	r, err := Parse("chars/zomb1.am.json", data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Name != "zomb1" {
		t.Errorf("name = %q, want %q", r.Name, "zomb1")
	}
	if r.TrackCount != 7 {
		t.Errorf("track count = %d, want 7", r.TrackCount)
	}
	if len(r.Selectors) != 7 || r.Selectors[0] != "#head" || r.Selectors[6] != "#lfoot" {
		t.Errorf("selectors = %v", r.Selectors)
	}
	if r.Length < 816 || r.Length > 817 {
		t.Errorf("length = %v", r.Length)
	}
	if !strings.Contains(r.Body, "#rshoulder") {
		t.Errorf("body missing selector: %q", r.Body)
	}
}

func TestParse_NamedDocument(t *testing.T) {
	input := []byte(`{"name":"Intro","timebar":{"currTime":0,"timescale":0.12,"length":1000},` +
		`"sequences":[{"type":"css_sequ_type","data":{"name":"logo","selectors":[".logo",".logo"," "],"parameters":[]}}],` +
		`"easeMap":{"bounce":{"points":[0.3,1.5,0.6,1]}},` +
		`"triggerMap":{"t1":{"time":500,"script":"console.log('half way')"}}}`)
	r, err := Parse("intro.am.json", input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Name != "Intro" {
		t.Errorf("name = %q, want Intro", r.Name)
	}
	if len(r.Selectors) != 1 || r.Selectors[0] != ".logo" {
		t.Errorf("selectors = %v, want [.logo]", r.Selectors)
	}
	if len(r.Eases) != 1 || r.Eases[0] != "bounce" {
		t.Errorf("eases = %v", r.Eases)
	}
	if r.Triggers != 1 {
		t.Errorf("triggers = %d, want 1", r.Triggers)
	}
	for _, want := range []string{"logo", "bounce", "t1", "half way"} {
		if !strings.Contains(r.Body, want) {
			t.Errorf("body missing %q: %q", want, r.Body)
		}
	}
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse("bad.am.json", []byte(`{"sequences": 3}`))
	if !errors.Is(err, apperr.ErrMalformedTrackData) {
		t.Fatalf("err = %v, want ErrMalformedTrackData", err)
	}
}

func TestDisplayName(t *testing.T) {
	if got := DisplayName("a/b/walk.am.json", ""); got != "walk" {
		t.Errorf("got %q, want walk", got)
	}
	if got := DisplayName("walk.am.json", "  Walk cycle "); got != "Walk cycle" {
		t.Errorf("got %q, want %q", got, "Walk cycle")
	}
}
