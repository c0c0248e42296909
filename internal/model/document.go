package model

// Fundament selects a book's execution semantics (spec.md §3).
type Fundament int32

// Known fundaments. Only MieUrlyd is implemented; others are reserved
// identifiers a book may still reference without this package rejecting it -
// the mie compiler/vmie VM only understand MieUrlyd (see internal/mie).
const (
	FundamentReserved Fundament = iota
	FundamentMieUrlyd
)

// Book is a namespace for documents, tied to a fundament (spec.md §3).
type Book struct {
	BookID              int64
	Fundament           Fundament
	SnapshotCacheOffset int64
}

// Document is a named sequence of colored characters inside a book.
// Identity is (BookID, DocID); both are positive integers chosen by clients.
type Document struct {
	BookID              int64
	DocID               int64
	Name                string
	Chars               []DocChar
	SnapshotCacheOffset int64
}

// DocKey identifies a document uniquely within a snapshot.
type DocKey struct {
	BookID int64
	DocID  int64
}

// Key returns d's identity key.
func (d *Document) Key() DocKey { return DocKey{BookID: d.BookID, DocID: d.DocID} }

// LineStarts returns the buffer index of the first character of each line,
// scanning committed-or-not text (carets must stay valid mid-edit too).
// Line numbers are 1-based, so LineStarts()[0] is line 1's start index.
func (d *Document) LineStarts() []int {
	starts := []int{0}

	for i, c := range d.Chars {
		if c.Codepoint == '\n' {
			starts = append(starts, i+1)
		}
	}

	return starts
}

// LineLength returns the number of characters on the given 1-based line,
// excluding any trailing newline.
func (d *Document) LineLength(line int) int {
	starts := d.LineStarts()
	if line < 1 || line > len(starts) {
		return 0
	}

	start := starts[line-1]

	end := len(d.Chars)
	if line < len(starts) {
		end = starts[line] - 1 // exclude the newline itself
	}

	if end < start {
		end = start
	}

	return end - start
}

// NumLines returns the number of lines in the document (at least 1).
func (d *Document) NumLines() int {
	return len(d.LineStarts())
}

// Index converts a [Location] to a buffer index. The one-past-end position
// on a line (column == LineLength+1) is a valid location per spec.md
// invariant 1 and maps to the index of the line's terminating newline (or
// end-of-buffer on the last line).
func (d *Document) Index(loc Location) (int, bool) {
	starts := d.LineStarts()
	if loc.Line < 1 || loc.Line > len(starts) {
		return 0, false
	}

	lineLen := d.LineLength(loc.Line)
	if loc.Column < 1 || loc.Column > lineLen+1 {
		return 0, false
	}

	return starts[loc.Line-1] + loc.Column - 1, true
}

// Location converts a buffer index back to a [Location].
func (d *Document) Location(index int) Location {
	starts := d.LineStarts()

	line := 1

	for i := len(starts) - 1; i >= 0; i-- {
		if index >= starts[i] {
			line = i + 1

			break
		}
	}

	return Location{Line: line, Column: index - starts[line-1] + 1}
}

// Constrain clamps loc to a valid position in d, mirroring the original
// source's doc_location_constraint (spec.md §9 open question: retained).
func (d *Document) Constrain(loc Location) Location {
	numLines := d.NumLines()

	if loc.Line < 1 {
		loc.Line = 1
	}

	if loc.Line > numLines {
		loc.Line = numLines
	}

	lineLen := d.LineLength(loc.Line)
	if loc.Column < 1 {
		loc.Column = 1
	}

	if loc.Column > lineLen+1 {
		loc.Column = lineLen + 1
	}

	return loc
}

// Text renders the document's committed-and-pending-insert text as a string,
// skipping characters pending deletion. This is the view mie compiles from.
func (d *Document) Text() string {
	runes := make([]rune, 0, len(d.Chars))

	for _, c := range d.Chars {
		if c.Flags.Has(IsDelete) {
			continue
		}

		runes = append(runes, c.Codepoint)
	}

	return string(runes)
}
