package model

// Caret is a single cursor within a [MimState]: a tag distinguishing it from
// the state's other carets, plus a caret/anchor pair. caret != anchor
// describes a selection.
type Caret struct {
	Tag       int64
	CaretLoc  Location
	AnchorLoc Location
}

// HasSelection reports whether c describes a non-empty selection.
func (c Caret) HasSelection() bool { return c.CaretLoc != c.AnchorLoc }

// Range returns the caret's selection as an ordered (low, high) pair.
func (c Caret) Range() (low, high Location) {
	if c.AnchorLoc.Less(c.CaretLoc) {
		return c.AnchorLoc, c.CaretLoc
	}

	return c.CaretLoc, c.AnchorLoc
}

// MimState is one editor session's pinned document, paint color, and carets.
// Identity is (ArtistID, SessionID).
type MimState struct {
	ArtistID            int64
	SessionID           int64
	BookID              int64
	DocID               int64
	Splash4             Splash4
	Carets              []Caret
	SnapshotCacheOffset int64
}

// MimKey identifies a mim-state uniquely within a snapshot.
type MimKey struct {
	ArtistID  int64
	SessionID int64
}

// Key returns m's identity key.
func (m *MimState) Key() MimKey { return MimKey{ArtistID: m.ArtistID, SessionID: m.SessionID} }

// CaretByTag returns the index of the caret with the given tag, or -1.
func (m *MimState) CaretByTag(tag int64) int {
	for i := range m.Carets {
		if m.Carets[i].Tag == tag {
			return i
		}
	}

	return -1
}
