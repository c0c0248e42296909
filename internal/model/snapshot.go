package model

import (
	"errors"
	"fmt"
)

// ErrBookNotFound reports a reference to a book_id absent from the snapshot.
var ErrBookNotFound = errors.New("model: book not found")

// ErrDocNotFound reports a reference to a (book_id, doc_id) absent from the snapshot.
var ErrDocNotFound = errors.New("model: document not found")

// ErrCaretOutOfBounds reports a caret or anchor location invalid for its document.
var ErrCaretOutOfBounds = errors.New("model: caret out of bounds")

// Snapshot is the full replayed state at some journal offset: ordered
// sequences of books, documents, and mim-states (spec.md §3).
type Snapshot struct {
	Books     []Book
	Documents []Document
	MimStates []MimState
}

// New returns an empty snapshot, the state at journal offset 0.
func New() *Snapshot {
	return &Snapshot{}
}

// Clone deep-copies s. Used by the peer to rebuild fiddle from upstream
// before replaying un-ack'd local mim (spec.md §3 invariant 5).
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{
		Books:     append([]Book(nil), s.Books...),
		Documents: make([]Document, len(s.Documents)),
		MimStates: make([]MimState, len(s.MimStates)),
	}

	for i, d := range s.Documents {
		out.Documents[i] = d
		out.Documents[i].Chars = append([]DocChar(nil), d.Chars...)
	}

	for i, m := range s.MimStates {
		out.MimStates[i] = m
		out.MimStates[i].Carets = append([]Caret(nil), m.Carets...)
	}

	return out
}

// BookIndex returns the index of the book with bookID, or -1.
func (s *Snapshot) BookIndex(bookID int64) int {
	for i := range s.Books {
		if s.Books[i].BookID == bookID {
			return i
		}
	}

	return -1
}

// DocIndex returns the index of the document identified by key, or -1.
func (s *Snapshot) DocIndex(key DocKey) int {
	for i := range s.Documents {
		if s.Documents[i].BookID == key.BookID && s.Documents[i].DocID == key.DocID {
			return i
		}
	}

	return -1
}

// MimIndex returns the index of the mim-state identified by key, or -1.
func (s *Snapshot) MimIndex(key MimKey) int {
	for i := range s.MimStates {
		if s.MimStates[i].ArtistID == key.ArtistID && s.MimStates[i].SessionID == key.SessionID {
			return i
		}
	}

	return -1
}

// Document returns a pointer to the document identified by key.
func (s *Snapshot) Document(key DocKey) (*Document, error) {
	i := s.DocIndex(key)
	if i < 0 {
		return nil, fmt.Errorf("%w: book=%d doc=%d", ErrDocNotFound, key.BookID, key.DocID)
	}

	return &s.Documents[i], nil
}

// MimState returns a pointer to the mim-state identified by key.
func (s *Snapshot) MimState(key MimKey) (*MimState, error) {
	i := s.MimIndex(key)
	if i < 0 {
		return nil, fmt.Errorf("%w: artist=%d session=%d", ErrDocNotFound, key.ArtistID, key.SessionID)
	}

	return &s.MimStates[i], nil
}

// Validate checks spec.md §3 invariants 1-3 across the whole snapshot.
func (s *Snapshot) Validate() error {
	for _, d := range s.Documents {
		if s.BookIndex(d.BookID) < 0 {
			return fmt.Errorf("%w: document (%d,%d) references book %d", ErrBookNotFound, d.BookID, d.DocID, d.BookID)
		}
	}

	for _, m := range s.MimStates {
		if s.BookIndex(m.BookID) < 0 {
			return fmt.Errorf("%w: mim-state (%d,%d) references book %d", ErrBookNotFound, m.ArtistID, m.SessionID, m.BookID)
		}

		doc, err := s.Document(DocKey{BookID: m.BookID, DocID: m.DocID})
		if err != nil {
			return fmt.Errorf("mim-state (%d,%d): %w", m.ArtistID, m.SessionID, err)
		}

		for _, c := range m.Carets {
			if !docLocationValid(doc, c.CaretLoc) || !docLocationValid(doc, c.AnchorLoc) {
				return fmt.Errorf("%w: mim-state (%d,%d) tag %d", ErrCaretOutOfBounds, m.ArtistID, m.SessionID, c.Tag)
			}
		}
	}

	return nil
}

func docLocationValid(doc *Document, loc Location) bool {
	_, ok := doc.Index(loc)

	return ok
}
