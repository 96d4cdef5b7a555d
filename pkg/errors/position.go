package errors

import "derkjs/pkg/source"

// Position represents a specific location in the source code: line/column
// for human-readable reporting, byte offsets for tooling, and a reference
// back to the source file itself (spec.md §6.2's per-instruction span,
// resolved against the program's ordered source list).
type Position struct {
	Line     int // 1-based line number
	Column   int // 1-based column number (rune index within the line)
	StartPos int // 0-based byte offset of the start of the span
	EndPos   int // 0-based byte offset of the end of the span (exclusive)
	Source   *source.SourceFile
}
