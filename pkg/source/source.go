// Package source holds the runtime's view of a loaded source string: a
// name/content pair plus the byte-offset-to-line/column conversion that
// spec.md §6.2 error positions need, grounded on the teacher's own
// pkg/source package.
package source

// SourceFile pairs a display name with the source text the runtime's
// byte spans index into. One SourceFile wraps one entry of
// bytecode.Program.Sources (spec.md §6.2's "ordered source-map list").
type SourceFile struct {
	Name    string
	Path    string
	Content string
}

// NewSourceFile constructs a SourceFile; path is empty for sources that
// were never read from disk (e.g. an image's embedded source string).
func NewSourceFile(name, path, content string) *SourceFile {
	return &SourceFile{Name: name, Path: path, Content: content}
}

// DisplayPath returns the best name for error reporting: the file path
// when the source came from one, otherwise its synthetic Name.
func (sf *SourceFile) DisplayPath() string {
	if sf.Path != "" {
		return sf.Path
	}
	return sf.Name
}

// PositionAt converts a byte offset into Content to a 1-based line number
// and 1-based rune-index column within that line, the convention
// errors.Position uses for human-readable reporting.
func (sf *SourceFile) PositionAt(offset int) (line, col int) {
	line, col = 1, 1
	for i, r := range sf.Content {
		if i >= offset {
			break
		}
		if r == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}
