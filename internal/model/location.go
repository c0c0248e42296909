// Package model holds the in-memory snapshot state: books, documents, carets,
// and mim-states, plus the replay/validation rules that keep them consistent.
//
// Identity is always by integer id (book_id, doc_id, artist_id, session_id);
// there is no pointer aliasing between entities, so a [Snapshot] can be
// deep-copied by value (see [Snapshot.Clone]) the way the peer's fiddle
// snapshot is rebuilt from upstream on every journal broadcast.
package model

import "fmt"

// Location is a 1-based (line, column) position, compared lexicographically.
type Location struct {
	Line   int
	Column int
}

// Less reports whether l sorts strictly before other.
func (l Location) Less(other Location) bool {
	if l.Line != other.Line {
		return l.Line < other.Line
	}

	return l.Column < other.Column
}

// LessEqual reports whether l sorts at or before other.
func (l Location) LessEqual(other Location) bool {
	return l == other || l.Less(other)
}

func (l Location) String() string {
	return fmt.Sprintf("%d:%d", l.Line, l.Column)
}

// Valid reports whether l uses the 1-based convention required everywhere
// carets and edit positions are expressed (spec.md §3).
func (l Location) Valid() bool {
	return l.Line >= 1 && l.Column >= 1
}
