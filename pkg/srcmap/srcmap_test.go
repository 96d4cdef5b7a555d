package srcmap

import (
	"testing"

	"derkjs/pkg/errors"
)

// minimalMap is a valid V3 source map with a single segment mapping
// generated (line 1, col 0) back to (input.js, line 1, col 0) — "AAAA"
// decodes to four zero-valued VLQ fields (genCol, sourceIndex, sourceLine,
// sourceCol), the smallest non-empty mapping string there is.
const minimalMap = `{
  "version": 3,
  "sources": ["input.js"],
  "names": [],
  "mappings": "AAAA"
}`

func TestLoadValidMap(t *testing.T) {
	b, err := Load([]byte(minimalMap), []string{"var x = 1;"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if b == nil {
		t.Fatal("Load returned a nil Bridge with no error")
	}
}

func TestLoadInvalidMap(t *testing.T) {
	if _, err := Load([]byte("not a source map"), nil); err == nil {
		t.Error("Load with invalid JSON must return an error")
	}
}

func TestResolveNilBridgeIsPassthrough(t *testing.T) {
	var b *Bridge
	got := b.Resolve(0, errors.Position{StartPos: 5})
	if got.OK {
		t.Error("Resolve on a nil *Bridge must report OK=false")
	}
}

func TestResolveOutOfRangeIndex(t *testing.T) {
	b, err := Load([]byte(minimalMap), []string{"var x = 1;"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := b.Resolve(5, errors.Position{StartPos: 0})
	if got.OK {
		t.Error("Resolve with an out-of-range source index must report OK=false")
	}
}

func TestResolveMapsFirstSegment(t *testing.T) {
	b, err := Load([]byte(minimalMap), []string{"var x = 1;"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := b.Resolve(0, errors.Position{StartPos: 0})
	if !got.OK {
		t.Fatal("Resolve of the mapped segment's own position must succeed")
	}
	if got.Source != "input.js" {
		t.Errorf("Source = %q, want input.js", got.Source)
	}
}

func TestLineCol(t *testing.T) {
	text := "ab\ncd\nef"
	cases := []struct {
		offset   int
		wantLine int
		wantCol  int
	}{
		{0, 1, 0},
		{1, 1, 1},
		{3, 2, 0},
		{6, 3, 0},
	}
	for _, c := range cases {
		line, col := lineCol(text, c.offset)
		if line != c.wantLine || col != c.wantCol {
			t.Errorf("lineCol(%q, %d) = (%d, %d), want (%d, %d)", text, c.offset, line, col, c.wantLine, c.wantCol)
		}
	}
}
