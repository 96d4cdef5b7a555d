// Package srcmap bridges the runtime's own byte-span source positions
// (spec.md §6.2's ordered Program.Sources list) back to original-source
// line/column locations when the loaded image was produced from a source
// map, using gopkg.in/sourcemap.v1 the way a transpiled-source consumer
// normally would. This lets cmd/derkjs report errors against the
// script the author actually wrote rather than the compiler's output.
package srcmap

import (
	"fmt"

	sourcemap "gopkg.in/sourcemap.v1"

	"derkjs/pkg/errors"
)

// Bridge resolves runtime positions through an optional parsed source
// map; a nil *sourcemap.Consumer makes every Resolve a no-op passthrough,
// so cmd/derkjs can construct a Bridge unconditionally and only load a
// map file when one was given on the command line.
type Bridge struct {
	consumer *sourcemap.Consumer
	sources  []string
}

// Load parses raw source-map JSON (V3 format, as emitted by the external
// compiler's -sourcemap flag) paired with the program's own ordered
// source list, so Resolve can report original file/line/col.
func Load(mapJSON []byte, sources []string) (*Bridge, error) {
	consumer, err := sourcemap.Parse("", mapJSON)
	if err != nil {
		return nil, fmt.Errorf("srcmap: parse: %w", err)
	}
	return &Bridge{consumer: consumer, sources: sources}, nil
}

// Resolved is a location in the author's original source.
type Resolved struct {
	Source string
	Line   int
	Column int
	Name   string
	OK     bool
}

// Resolve maps a runtime Position (byte offsets into Program.Sources[idx])
// through the map. Offsets are converted to 1-based line/column against
// the compiled source text before the lookup, since sourcemap.v1 operates
// on generated-file line/column, not byte offsets.
func (b *Bridge) Resolve(idx int, pos errors.Position) Resolved {
	if b == nil || b.consumer == nil || idx < 0 || idx >= len(b.sources) {
		return Resolved{}
	}
	line, col := lineCol(b.sources[idx], pos.StartPos)
	src, name, origLine, origCol, ok := b.consumer.Source(line, col)
	return Resolved{Source: src, Line: origLine, Column: origCol, Name: name, OK: ok}
}

// lineCol converts a byte offset into a 1-based line and 0-based column
// within text, the convention gopkg.in/sourcemap.v1 expects its Source
// lookup arguments in.
func lineCol(text string, offset int) (line, col int) {
	line = 1
	lineStart := 0
	for i := 0; i < offset && i < len(text); i++ {
		if text[i] == '\n' {
			line++
			lineStart = i + 1
		}
	}
	if offset > len(text) {
		offset = len(text)
	}
	col = offset - lineStart
	if col < 0 {
		col = 0
	}
	return line, col
}
