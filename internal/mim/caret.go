package mim

import "github.com/dojam/dojam/internal/model"

// adjustCaretsForInsert applies spec.md §4.3's caret-adjustment rule to
// every caret of every mim-state pinned to (bookID, docID) after a single
// character was inserted at loc. There is no "owner" caret exempted from
// this rule - including the caret that performed the insertion - which is
// what makes a caret sitting exactly at the insertion point advance along
// with the text it just typed (this resolves spec.md's "strictly after" as
// "at or after": a caret pointing at the insertion column is, after the
// insert, pointing at the character that moved one column right).
func adjustCaretsForInsert(snap *model.Snapshot, bookID, docID int64, loc model.Location, isNewline bool) {
	for i := range snap.MimStates {
		st := &snap.MimStates[i]
		if st.BookID != bookID || st.DocID != docID {
			continue
		}

		for j := range st.Carets {
			st.Carets[j].CaretLoc = shiftForInsert(st.Carets[j].CaretLoc, loc, isNewline)
			st.Carets[j].AnchorLoc = shiftForInsert(st.Carets[j].AnchorLoc, loc, isNewline)
		}
	}
}

func shiftForInsert(pos, at model.Location, isNewline bool) model.Location {
	if pos.Line < at.Line {
		return pos
	}

	if pos.Line > at.Line {
		if isNewline {
			pos.Line++
		}

		return pos
	}

	// Same line as the insertion point.
	if pos.Column < at.Column {
		return pos
	}

	if !isNewline {
		pos.Column++

		return pos
	}

	return model.Location{Line: pos.Line + 1, Column: pos.Column - (at.Column - 1)}
}

// adjustCaretsForDelete mirrors adjustCaretsForInsert for a single character
// physically removed at loc (spec.md §4.3: "Deletion mirrors these rules").
// A caret strictly after the removed character shifts left by one column on
// the same line (collapsing to the removal point if it is closer than one
// column away); a caret on a later line shifts up if a newline was removed,
// with its column re-based onto the line the removed newline used to split.
func adjustCaretsForDelete(snap *model.Snapshot, bookID, docID int64, loc model.Location, wasNewline bool) {
	for i := range snap.MimStates {
		st := &snap.MimStates[i]
		if st.BookID != bookID || st.DocID != docID {
			continue
		}

		for j := range st.Carets {
			st.Carets[j].CaretLoc = shiftForDelete(st.Carets[j].CaretLoc, loc, wasNewline)
			st.Carets[j].AnchorLoc = shiftForDelete(st.Carets[j].AnchorLoc, loc, wasNewline)
		}
	}
}

func shiftForDelete(pos, at model.Location, wasNewline bool) model.Location {
	if pos.Line < at.Line {
		return pos
	}

	if wasNewline && pos.Line > at.Line+1 {
		return model.Location{Line: pos.Line - 1, Column: pos.Column}
	}

	if wasNewline && pos.Line == at.Line+1 {
		// pos was on the line that used to start right after the removed
		// newline; it is now appended onto at.Line at column at.Column+pos.Column-1.
		return model.Location{Line: at.Line, Column: at.Column + pos.Column - 1}
	}

	if pos.Line > at.Line {
		return pos
	}

	// Same line as the removed character.
	if pos.Column <= at.Column {
		return pos
	}

	return model.Location{Line: pos.Line, Column: pos.Column - 1}
}
